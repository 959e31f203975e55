package file

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/rsvphq/journey/pkg/models"
	"github.com/rsvphq/journey/pkg/persistence"
)

// StepRepository handles step documents, grouped per automation.
type StepRepository struct {
	persistence *Persistence
}

func (r *StepRepository) Create(ctx context.Context, step *models.AutomationStep) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	return r.persistence.writeDocument(r.persistence.stepsDir(step.AutomationID), step.ID, step)
}

func (r *StepRepository) GetByID(ctx context.Context, automationID, stepID string) (*models.AutomationStep, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	var step models.AutomationStep

	found, err := r.persistence.readDocument(r.persistence.stepsDir(automationID), stepID, &step)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrStepNotFound
	}

	return &step, nil
}

func (r *StepRepository) ListByAutomation(ctx context.Context, automationID string) ([]*models.AutomationStep, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	ids, err := r.persistence.listDocumentIDs(r.persistence.stepsDir(automationID))
	if err != nil {
		return nil, err
	}

	steps := make([]*models.AutomationStep, 0, len(ids))

	for _, id := range ids {
		var step models.AutomationStep

		found, err := r.persistence.readDocument(r.persistence.stepsDir(automationID), id, &step)
		if err != nil {
			return nil, err
		}

		if found {
			steps = append(steps, &step)
		}
	}

	sort.Slice(steps, func(i, j int) bool {
		return steps[i].Position < steps[j].Position
	})

	return steps, nil
}

func (r *StepRepository) Delete(ctx context.Context, automationID, stepID string) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	path := filepath.Join(r.persistence.stepsDir(automationID), stepID+".json")

	err := os.Remove(path)
	if os.IsNotExist(err) {
		return persistence.ErrStepNotFound
	}

	return err
}
