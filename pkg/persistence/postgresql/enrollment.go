package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/rsvphq/journey/pkg/models"
	"github.com/rsvphq/journey/pkg/persistence"
)

const uniqueViolationCode = "23505"

// EnrollmentRepository handles enrollment database operations.
type EnrollmentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// Create inserts a new enrollment. The partial unique index on active
// enrollments enforces the one-active-per-contact guarantee; a violation maps
// to ErrDuplicateEnrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.AutomationEnrollment) error {
	query := `
		INSERT INTO enrollments (id, automation_id, contact_id, current_step_id,
status, wait_until, enrolled_at, completed_at, exited_at, exit_reason, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		enrollment.ID,
		enrollment.AutomationID,
		enrollment.ContactID,
		enrollment.CurrentStepID,
		enrollment.Status,
		enrollment.WaitUntil,
		enrollment.EnrolledAt,
		enrollment.CompletedAt,
		enrollment.ExitedAt,
		enrollment.ExitReason,
		enrollment.Version,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return persistence.NewEnrollmentError("Create", enrollment.ID, persistence.ErrDuplicateEnrollment)
		}

		return persistence.NewEnrollmentError("Create", enrollment.ID, err)
	}

	return nil
}

func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*models.AutomationEnrollment, error) {
	query := enrollmentSelect + " WHERE id = $1"

	enrollment, err := r.scanEnrollment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEnrollmentError("GetByID", id, persistence.ErrEnrollmentNotFound)
		}

		return nil, persistence.NewEnrollmentError("GetByID", id, err)
	}

	return enrollment, nil
}

func (r *EnrollmentRepository) FindActive(ctx context.Context, automationID, contactID string) (*models.AutomationEnrollment, error) {
	query := enrollmentSelect + " WHERE automation_id = $1 AND contact_id = $2 AND status = 'active'"

	enrollment, err := r.scanEnrollment(r.db.QueryRowContext(ctx, query, automationID, contactID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEnrollmentError("FindActive", contactID, persistence.ErrEnrollmentNotFound)
		}

		return nil, persistence.NewEnrollmentError("FindActive", contactID, err)
	}

	return enrollment, nil
}

// Update applies a version-conditional write: a row is updated only when its
// stored version still matches, and the version advances with the write. A
// mismatch surfaces as ErrEnrollmentConflict so the caller retries against
// fresh state.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.AutomationEnrollment) error {
	query := `
		UPDATE enrollments SET
			current_step_id = $3,
			status = $4,
			wait_until = $5,
			completed_at = $6,
			exited_at = $7,
			exit_reason = $8,
			version = version + 1
		WHERE id = $1 AND version = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		enrollment.ID,
		enrollment.Version,
		enrollment.CurrentStepID,
		enrollment.Status,
		enrollment.WaitUntil,
		enrollment.CompletedAt,
		enrollment.ExitedAt,
		enrollment.ExitReason,
	)
	if err != nil {
		return persistence.NewEnrollmentError("Update", enrollment.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewEnrollmentError("Update", enrollment.ID, err)
	}

	if rowsAffected == 0 {
		exists, err := r.exists(ctx, enrollment.ID)
		if err != nil {
			return persistence.NewEnrollmentError("Update", enrollment.ID, err)
		}

		if !exists {
			return persistence.NewEnrollmentError("Update", enrollment.ID, persistence.ErrEnrollmentNotFound)
		}

		return persistence.NewEnrollmentError("Update", enrollment.ID, persistence.ErrEnrollmentConflict)
	}

	enrollment.Version++

	return nil
}

// ListDue returns active enrollments whose suspension elapsed at now.
func (r *EnrollmentRepository) ListDue(ctx context.Context, now time.Time) ([]*models.AutomationEnrollment, error) {
	query := enrollmentSelect + `
		WHERE status = 'active' AND wait_until IS NOT NULL AND wait_until <= $1
		ORDER BY wait_until
	`

	return r.list(ctx, query, now)
}

func (r *EnrollmentRepository) ListByAutomation(ctx context.Context, automationID string) ([]*models.AutomationEnrollment, error) {
	query := enrollmentSelect + " WHERE automation_id = $1 ORDER BY enrolled_at DESC"

	return r.list(ctx, query, automationID)
}

func (r *EnrollmentRepository) list(ctx context.Context, query string, args ...any) ([]*models.AutomationEnrollment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	enrollments := make([]*models.AutomationEnrollment, 0)

	for rows.Next() {
		enrollment, err := r.scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}

		enrollments = append(enrollments, enrollment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating enrollments: %w", err)
	}

	return enrollments, nil
}

func (r *EnrollmentRepository) exists(ctx context.Context, id string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM enrollments WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

const enrollmentSelect = `
	SELECT
		id
	  , automation_id
	  , contact_id
	  , current_step_id
	  , status
	  , wait_until
	  , enrolled_at
	  , completed_at
	  , exited_at
	  , exit_reason
	  , version
	FROM enrollments
`

func (r *EnrollmentRepository) scanEnrollment(scanner interface {
	Scan(dest ...any) error
}) (*models.AutomationEnrollment, error) {
	var enrollment models.AutomationEnrollment

	err := scanner.Scan(
		&enrollment.ID,
		&enrollment.AutomationID,
		&enrollment.ContactID,
		&enrollment.CurrentStepID,
		&enrollment.Status,
		&enrollment.WaitUntil,
		&enrollment.EnrolledAt,
		&enrollment.CompletedAt,
		&enrollment.ExitedAt,
		&enrollment.ExitReason,
		&enrollment.Version,
	)
	if err != nil {
		return nil, err
	}

	return &enrollment, nil
}
