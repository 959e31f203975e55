package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rsvphq/journey/pkg/models"
	"github.com/rsvphq/journey/pkg/persistence"
)

// AutomationRepository handles automation-related database operations.
type AutomationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *AutomationRepository) Create(ctx context.Context, automation *models.Automation) error {
	triggerJSON, err := json.Marshal(automation.Trigger)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	query := `
		INSERT INTO automations (id, scope_id, name, status, trigger_type,
trigger_config, start_step_id, enrollment_count, completed_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		automation.ID,
		automation.ScopeID,
		automation.Name,
		automation.Status,
		automation.Trigger.Type,
		triggerJSON,
		automation.StartStepID,
		automation.EnrollmentCount,
		automation.CompletedCount,
		automation.CreatedAt,
		automation.UpdatedAt,
	)
	if err != nil {
		return persistence.NewAutomationError("Create", automation.ID, err)
	}

	return nil
}

func (r *AutomationRepository) GetByID(ctx context.Context, id string) (*models.Automation, error) {
	query := `
		SELECT
			id
		  , scope_id
		  , name
		  , status
		  , trigger_config
		  , start_step_id
		  , enrollment_count
		  , completed_count
		  , created_at
		  , updated_at
		FROM automations
		WHERE id = $1
	`

	automation, err := r.scanAutomation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewAutomationError("GetByID", id, persistence.ErrAutomationNotFound)
		}

		return nil, persistence.NewAutomationError("GetByID", id, err)
	}

	return automation, nil
}

// Update writes the automation's definition fields. The counters are owned by
// the increment operations and are never touched here.
func (r *AutomationRepository) Update(ctx context.Context, automation *models.Automation) error {
	triggerJSON, err := json.Marshal(automation.Trigger)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	automation.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE automations SET
			name = $2,
			status = $3,
			trigger_type = $4,
			trigger_config = $5,
			start_step_id = $6,
			updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		automation.ID,
		automation.Name,
		automation.Status,
		automation.Trigger.Type,
		triggerJSON,
		automation.StartStepID,
		automation.UpdatedAt,
	)
	if err != nil {
		return persistence.NewAutomationError("Update", automation.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewAutomationError("Update", automation.ID, err)
	}

	if rowsAffected == 0 {
		return persistence.NewAutomationError("Update", automation.ID, persistence.ErrAutomationNotFound)
	}

	return nil
}

// Delete removes the automation; steps cascade at the schema level.
func (r *AutomationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM automations WHERE id = $1", id)
	if err != nil {
		return persistence.NewAutomationError("Delete", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewAutomationError("Delete", id, err)
	}

	if rowsAffected == 0 {
		return persistence.NewAutomationError("Delete", id, persistence.ErrAutomationNotFound)
	}

	return nil
}

func (r *AutomationRepository) List(ctx context.Context, opts persistence.AutomationListOptions) ([]*models.Automation, error) {
	query := `
		SELECT
			id
		  , scope_id
		  , name
		  , status
		  , trigger_config
		  , start_step_id
		  , enrollment_count
		  , completed_count
		  , created_at
		  , updated_at
		FROM automations
		WHERE ($1 = '' OR scope_id = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR trigger_type = $3)
		ORDER BY created_at DESC
	`

	status := ""
	if opts.Status != nil {
		status = string(*opts.Status)
	}

	triggerType := ""
	if opts.TriggerType != nil {
		triggerType = string(*opts.TriggerType)
	}

	rows, err := r.db.QueryContext(ctx, query, opts.ScopeID, status, triggerType)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	automations := make([]*models.Automation, 0)

	for rows.Next() {
		automation, err := r.scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}

		automations = append(automations, automation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}

	return automations, nil
}

func (r *AutomationRepository) IncrementEnrollmentCount(ctx context.Context, id string) error {
	return r.increment(ctx, "IncrementEnrollmentCount", id, "enrollment_count")
}

func (r *AutomationRepository) IncrementCompletedCount(ctx context.Context, id string) error {
	return r.increment(ctx, "IncrementCompletedCount", id, "completed_count")
}

// increment bumps a counter in a single UPDATE, so concurrent enrollments
// never lose updates.
func (r *AutomationRepository) increment(ctx context.Context, op, id, column string) error {
	query := fmt.Sprintf("UPDATE automations SET %s = %s + 1, updated_at = NOW() WHERE id = $1", column, column)

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return persistence.NewAutomationError(op, id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewAutomationError(op, id, err)
	}

	if rowsAffected == 0 {
		return persistence.NewAutomationError(op, id, persistence.ErrAutomationNotFound)
	}

	return nil
}

func (r *AutomationRepository) scanAutomation(scanner interface {
	Scan(dest ...any) error
}) (*models.Automation, error) {
	var (
		automation  models.Automation
		triggerJSON []byte
	)

	err := scanner.Scan(
		&automation.ID,
		&automation.ScopeID,
		&automation.Name,
		&automation.Status,
		&triggerJSON,
		&automation.StartStepID,
		&automation.EnrollmentCount,
		&automation.CompletedCount,
		&automation.CreatedAt,
		&automation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if triggerJSON != nil {
		err := json.Unmarshal(triggerJSON, &automation.Trigger)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
		}
	}

	return &automation, nil
}
