package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rsvphq/journey/pkg/models"
)

// LogRepository handles the append-only audit trail.
type LogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *LogRepository) Append(ctx context.Context, entry *models.AutomationLog) error {
	inputJSON, err := json.Marshal(entry.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal log input: %w", err)
	}

	outputJSON, err := json.Marshal(entry.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal log output: %w", err)
	}

	query := `
		INSERT INTO automation_logs (id, automation_id, enrollment_id, contact_id,
step_id, step_type, status, input, output, error, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.AutomationID,
		entry.EnrollmentID,
		entry.ContactID,
		entry.StepID,
		entry.StepType,
		entry.Status,
		inputJSON,
		outputJSON,
		entry.Error,
		entry.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append automation log: %w", err)
	}

	return nil
}

// ListByEnrollment returns the enrollment's audit records in execution order.
func (r *LogRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]*models.AutomationLog, error) {
	query := `
		SELECT id, automation_id, enrollment_id, contact_id, step_id, step_type, status, input, output, error, executed_at
		FROM automation_logs
		WHERE enrollment_id = $1
		ORDER BY executed_at
	`

	rows, err := r.db.QueryContext(ctx, query, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query automation logs: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.AutomationLog, 0)

	for rows.Next() {
		var (
			entry                 models.AutomationLog
			inputJSON, outputJSON []byte
		)

		err := rows.Scan(
			&entry.ID,
			&entry.AutomationID,
			&entry.EnrollmentID,
			&entry.ContactID,
			&entry.StepID,
			&entry.StepType,
			&entry.Status,
			&inputJSON,
			&outputJSON,
			&entry.Error,
			&entry.ExecutedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation log: %w", err)
		}

		if inputJSON != nil {
			err := json.Unmarshal(inputJSON, &entry.Input)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal log input: %w", err)
			}
		}

		if outputJSON != nil {
			err := json.Unmarshal(outputJSON, &entry.Output)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal log output: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating automation logs: %w", err)
	}

	return entries, nil
}
