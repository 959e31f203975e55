package file

import (
	"context"
	"os"
	"time"

	"github.com/rsvphq/journey/pkg/models"
	"github.com/rsvphq/journey/pkg/persistence"
)

// AutomationRepository handles automation documents.
type AutomationRepository struct {
	persistence *Persistence
}

func (r *AutomationRepository) Create(ctx context.Context, automation *models.Automation) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	return r.persistence.writeDocument(r.persistence.automationsDir(), automation.ID, automation)
}

func (r *AutomationRepository) GetByID(ctx context.Context, id string) (*models.Automation, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.getLocked(id)
}

func (r *AutomationRepository) getLocked(id string) (*models.Automation, error) {
	var automation models.Automation

	found, err := r.persistence.readDocument(r.persistence.automationsDir(), id, &automation)
	if err != nil {
		return nil, persistence.NewAutomationError("GetByID", id, err)
	}

	if !found {
		return nil, persistence.NewAutomationError("GetByID", id, persistence.ErrAutomationNotFound)
	}

	return &automation, nil
}

func (r *AutomationRepository) Update(ctx context.Context, automation *models.Automation) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	existing, err := r.getLocked(automation.ID)
	if err != nil {
		return persistence.NewAutomationError("Update", automation.ID, persistence.ErrAutomationNotFound)
	}

	// Counters are owned by the increment operations, not by Update.
	automation.EnrollmentCount = existing.EnrollmentCount
	automation.CompletedCount = existing.CompletedCount
	automation.UpdatedAt = time.Now().UTC()

	return r.persistence.writeDocument(r.persistence.automationsDir(), automation.ID, automation)
}

func (r *AutomationRepository) Delete(ctx context.Context, id string) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if _, err := r.getLocked(id); err != nil {
		return err
	}

	if err := os.Remove(r.persistence.automationsDir() + "/" + id + ".json"); err != nil {
		return persistence.NewAutomationError("Delete", id, err)
	}

	// Automation owns its steps: deletion cascades.
	if err := os.RemoveAll(r.persistence.stepsDir(id)); err != nil {
		return persistence.NewAutomationError("Delete", id, err)
	}

	return nil
}

func (r *AutomationRepository) List(ctx context.Context, opts persistence.AutomationListOptions) ([]*models.Automation, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	ids, err := r.persistence.listDocumentIDs(r.persistence.automationsDir())
	if err != nil {
		return nil, err
	}

	automations := make([]*models.Automation, 0, len(ids))

	for _, id := range ids {
		automation, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}

		if opts.ScopeID != "" && automation.ScopeID != opts.ScopeID {
			continue
		}

		if opts.Status != nil && automation.Status != *opts.Status {
			continue
		}

		if opts.TriggerType != nil && automation.Trigger.Type != *opts.TriggerType {
			continue
		}

		automations = append(automations, automation)
	}

	return automations, nil
}

func (r *AutomationRepository) IncrementEnrollmentCount(ctx context.Context, id string) error {
	return r.increment(id, func(a *models.Automation) { a.EnrollmentCount++ })
}

func (r *AutomationRepository) IncrementCompletedCount(ctx context.Context, id string) error {
	return r.increment(id, func(a *models.Automation) { a.CompletedCount++ })
}

// increment applies the counter bump under the exclusive lock, which makes it
// atomic with respect to concurrent enrollments and completions.
func (r *AutomationRepository) increment(id string, bump func(*models.Automation)) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	automation, err := r.getLocked(id)
	if err != nil {
		return err
	}

	bump(automation)
	automation.UpdatedAt = time.Now().UTC()

	return r.persistence.writeDocument(r.persistence.automationsDir(), id, automation)
}
