// Package persistence provides the data storage abstraction for automations,
// steps, enrollments, and audit logs.
package persistence

import (
	"context"
	"time"

	"github.com/rsvphq/journey/pkg/models"
)

// Persistence is the record store the engine runs against. Implementations
// must make the counter increments atomic and the enrollment update
// conditional on its version.
type Persistence interface {
	Automations() AutomationRepository
	Steps() StepRepository
	Enrollments() EnrollmentRepository
	Logs() LogRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// AutomationListOptions filters automation listings.
type AutomationListOptions struct {
	ScopeID     string
	Status      *models.AutomationStatus
	TriggerType *models.TriggerType
}

type AutomationRepository interface {
	Create(ctx context.Context, automation *models.Automation) error
	GetByID(ctx context.Context, id string) (*models.Automation, error)
	Update(ctx context.Context, automation *models.Automation) error

	// Delete removes the automation and cascades to its steps.
	Delete(ctx context.Context, id string) error

	List(ctx context.Context, opts AutomationListOptions) ([]*models.Automation, error)

	// IncrementEnrollmentCount and IncrementCompletedCount are atomic at the
	// storage layer so concurrent enrollments cannot lose updates.
	IncrementEnrollmentCount(ctx context.Context, id string) error
	IncrementCompletedCount(ctx context.Context, id string) error
}

type StepRepository interface {
	Create(ctx context.Context, step *models.AutomationStep) error
	GetByID(ctx context.Context, automationID, stepID string) (*models.AutomationStep, error)

	// ListByAutomation returns the automation's steps sorted by Position.
	ListByAutomation(ctx context.Context, automationID string) ([]*models.AutomationStep, error)

	Delete(ctx context.Context, automationID, stepID string) error
}

type EnrollmentRepository interface {
	// Create fails with ErrDuplicateEnrollment when an active enrollment
	// already exists for the same (automation, contact) pair.
	Create(ctx context.Context, enrollment *models.AutomationEnrollment) error

	GetByID(ctx context.Context, id string) (*models.AutomationEnrollment, error)
	FindActive(ctx context.Context, automationID, contactID string) (*models.AutomationEnrollment, error)

	// Update applies a conditional write: it fails with ErrEnrollmentConflict
	// when the stored version differs from enrollment.Version, and bumps the
	// version on success.
	Update(ctx context.Context, enrollment *models.AutomationEnrollment) error

	// ListDue returns active enrollments whose wait_until has elapsed at now.
	ListDue(ctx context.Context, now time.Time) ([]*models.AutomationEnrollment, error)

	ListByAutomation(ctx context.Context, automationID string) ([]*models.AutomationEnrollment, error)
}

type LogRepository interface {
	// Append writes one audit record. Logs are never mutated or deleted.
	Append(ctx context.Context, entry *models.AutomationLog) error

	ListByEnrollment(ctx context.Context, enrollmentID string) ([]*models.AutomationLog, error)
}
