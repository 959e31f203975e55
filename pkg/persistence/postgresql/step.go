package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rsvphq/journey/pkg/models"
	"github.com/rsvphq/journey/pkg/persistence"
)

// StepRepository handles automation step database operations.
type StepRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *StepRepository) Create(ctx context.Context, step *models.AutomationStep) error {
	configJSON, err := json.Marshal(step.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal step config: %w", err)
	}

	query := `
		INSERT INTO automation_steps (automation_id, id, step_type, config, position, next_step_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		step.AutomationID,
		step.ID,
		step.Type,
		configJSON,
		step.Position,
		step.NextStepID,
		step.CreatedAt,
		step.UpdatedAt,
	)
	if err != nil {
		return persistence.NewAutomationError("CreateStep", step.AutomationID, err)
	}

	return nil
}

func (r *StepRepository) GetByID(ctx context.Context, automationID, stepID string) (*models.AutomationStep, error) {
	query := `
		SELECT automation_id, id, step_type, config, position, next_step_id, created_at, updated_at
		FROM automation_steps
		WHERE automation_id = $1 AND id = $2
	`

	step, err := r.scanStep(r.db.QueryRowContext(ctx, query, automationID, stepID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewAutomationError("GetStep", automationID, persistence.ErrStepNotFound)
		}

		return nil, persistence.NewAutomationError("GetStep", automationID, err)
	}

	return step, nil
}

// ListByAutomation returns the automation's steps ordered by position.
func (r *StepRepository) ListByAutomation(ctx context.Context, automationID string) ([]*models.AutomationStep, error) {
	query := `
		SELECT automation_id, id, step_type, config, position, next_step_id, created_at, updated_at
		FROM automation_steps
		WHERE automation_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, automationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query automation steps: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	steps := make([]*models.AutomationStep, 0)

	for rows.Next() {
		step, err := r.scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		steps = append(steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}

	return steps, nil
}

func (r *StepRepository) Delete(ctx context.Context, automationID, stepID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM automation_steps WHERE automation_id = $1 AND id = $2", automationID, stepID)
	if err != nil {
		return persistence.NewAutomationError("DeleteStep", automationID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewAutomationError("DeleteStep", automationID, err)
	}

	if rowsAffected == 0 {
		return persistence.NewAutomationError("DeleteStep", automationID, persistence.ErrStepNotFound)
	}

	return nil
}

func (r *StepRepository) scanStep(scanner interface {
	Scan(dest ...any) error
}) (*models.AutomationStep, error) {
	var (
		step       models.AutomationStep
		configJSON []byte
	)

	err := scanner.Scan(
		&step.AutomationID,
		&step.ID,
		&step.Type,
		&configJSON,
		&step.Position,
		&step.NextStepID,
		&step.CreatedAt,
		&step.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if configJSON != nil {
		err := json.Unmarshal(configJSON, &step.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal step config: %w", err)
		}
	}

	return &step, nil
}
