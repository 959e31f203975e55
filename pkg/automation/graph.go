// Package automation implements the workflow engine: step graph traversal,
// trigger matching, step execution, the enrollment state machine, and the
// wait-resumption sweep.
package automation

import "github.com/rsvphq/journey/pkg/models"

// FindStep resolves a step id within a step collection, or nil.
func FindStep(steps []*models.AutomationStep, stepID string) *models.AutomationStep {
	for _, step := range steps {
		if step.ID == stepID {
			return step
		}
	}

	return nil
}

// NextStep resolves the successor of a step. For condition steps with a branch
// outcome, the matching branch target wins; every other step follows its
// NextStepID. Returns nil when there is no successor or the reference is
// dangling.
func NextStep(step *models.AutomationStep, steps []*models.AutomationStep, branch *bool) *models.AutomationStep {
	if step.Type == models.StepCondition && branch != nil && step.Config.Condition != nil {
		var target *string
		if *branch {
			target = step.Config.Condition.TrueBranchStepID
		} else {
			target = step.Config.Condition.FalseBranchStepID
		}

		if target == nil {
			return nil
		}

		return FindStep(steps, *target)
	}

	if step.NextStepID == nil {
		return nil
	}

	return FindStep(steps, *step.NextStepID)
}

// LinearSequence walks NextStepID pointers from the start step, recording each
// step once. The visited set bounds the walk, so it terminates on cyclic and
// malformed graphs alike. Used for display and validation only; execution
// re-resolves successors per step so branch outcomes are respected.
func LinearSequence(startStepID string, steps []*models.AutomationStep) []*models.AutomationStep {
	sequence := make([]*models.AutomationStep, 0, len(steps))
	visited := make(map[string]bool, len(steps))

	current := FindStep(steps, startStepID)

	for current != nil && !visited[current.ID] {
		visited[current.ID] = true
		sequence = append(sequence, current)

		current = NextStep(current, steps, nil)
	}

	return sequence
}
