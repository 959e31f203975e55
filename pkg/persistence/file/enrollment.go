package file

import (
	"context"
	"time"

	"github.com/rsvphq/journey/pkg/models"
	"github.com/rsvphq/journey/pkg/persistence"
)

// EnrollmentRepository handles enrollment documents. The exclusive lock makes
// the duplicate-active guard and the version-conditional update atomic.
type EnrollmentRepository struct {
	persistence *Persistence
}

func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.AutomationEnrollment) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	existing, err := r.findActiveLocked(enrollment.AutomationID, enrollment.ContactID)
	if err != nil {
		return err
	}

	if existing != nil {
		return persistence.NewEnrollmentError("Create", enrollment.ID, persistence.ErrDuplicateEnrollment)
	}

	return r.persistence.writeDocument(r.persistence.enrollmentsDir(), enrollment.ID, enrollment)
}

func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*models.AutomationEnrollment, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.getLocked(id)
}

func (r *EnrollmentRepository) getLocked(id string) (*models.AutomationEnrollment, error) {
	var enrollment models.AutomationEnrollment

	found, err := r.persistence.readDocument(r.persistence.enrollmentsDir(), id, &enrollment)
	if err != nil {
		return nil, persistence.NewEnrollmentError("GetByID", id, err)
	}

	if !found {
		return nil, persistence.NewEnrollmentError("GetByID", id, persistence.ErrEnrollmentNotFound)
	}

	return &enrollment, nil
}

func (r *EnrollmentRepository) FindActive(ctx context.Context, automationID, contactID string) (*models.AutomationEnrollment, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	enrollment, err := r.findActiveLocked(automationID, contactID)
	if err != nil {
		return nil, err
	}

	if enrollment == nil {
		return nil, persistence.ErrEnrollmentNotFound
	}

	return enrollment, nil
}

func (r *EnrollmentRepository) findActiveLocked(automationID, contactID string) (*models.AutomationEnrollment, error) {
	ids, err := r.persistence.listDocumentIDs(r.persistence.enrollmentsDir())
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		enrollment, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}

		if enrollment.AutomationID == automationID &&
			enrollment.ContactID == contactID &&
			enrollment.Status == models.EnrollmentStatusActive {
			return enrollment, nil
		}
	}

	return nil, nil
}

func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.AutomationEnrollment) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	stored, err := r.getLocked(enrollment.ID)
	if err != nil {
		return err
	}

	if stored.Version != enrollment.Version {
		return persistence.NewEnrollmentError("Update", enrollment.ID, persistence.ErrEnrollmentConflict)
	}

	enrollment.Version++

	return r.persistence.writeDocument(r.persistence.enrollmentsDir(), enrollment.ID, enrollment)
}

func (r *EnrollmentRepository) ListDue(ctx context.Context, now time.Time) ([]*models.AutomationEnrollment, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	ids, err := r.persistence.listDocumentIDs(r.persistence.enrollmentsDir())
	if err != nil {
		return nil, err
	}

	due := make([]*models.AutomationEnrollment, 0)

	for _, id := range ids {
		enrollment, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}

		if enrollment.Status == models.EnrollmentStatusActive &&
			enrollment.WaitUntil != nil &&
			!enrollment.WaitUntil.After(now) {
			due = append(due, enrollment)
		}
	}

	return due, nil
}

func (r *EnrollmentRepository) ListByAutomation(ctx context.Context, automationID string) ([]*models.AutomationEnrollment, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	ids, err := r.persistence.listDocumentIDs(r.persistence.enrollmentsDir())
	if err != nil {
		return nil, err
	}

	enrollments := make([]*models.AutomationEnrollment, 0)

	for _, id := range ids {
		enrollment, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}

		if enrollment.AutomationID == automationID {
			enrollments = append(enrollments, enrollment)
		}
	}

	return enrollments, nil
}
