// Package models defines the core domain models for marketing automation workflows.
package models

import (
	"fmt"
	"time"
)

// AutomationStatus represents the lifecycle state of an automation.
type AutomationStatus string

const (
	AutomationStatusDraft  AutomationStatus = "draft"  // Editable, not enrolling
	AutomationStatusActive AutomationStatus = "active" // Enrolling and executing
	AutomationStatusPaused AutomationStatus = "paused" // Enrollments suspended implicitly
)

// IsValid checks if the automation status is one of the known states.
func (s AutomationStatus) IsValid() bool {
	switch s {
	case AutomationStatusDraft, AutomationStatusActive, AutomationStatusPaused:
		return true
	default:
		return false
	}
}

// Automation is a workflow definition: a trigger plus a graph of steps.
// Counters are maintained by atomic store increments, never read-modify-write.
type Automation struct {
	ID              string           `json:"id"`
	ScopeID         string           `json:"scope_id"          validate:"required"` // Owning event
	Name            string           `json:"name"              validate:"required,min=3"`
	Status          AutomationStatus `json:"status"            validate:"required"`
	Trigger         TriggerConfig    `json:"trigger"`
	StartStepID     *string          `json:"start_step_id,omitempty"`
	EnrollmentCount int64            `json:"enrollment_count"`
	CompletedCount  int64            `json:"completed_count"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// ActivationCheck is the result of an activation precondition check.
type ActivationCheck struct {
	Can    bool   `json:"can"`
	Reason string `json:"reason,omitempty"`
}

// CanActivate reports whether the automation may transition to active given its
// current steps. The reasons are distinct so callers can tell a missing start
// step apart from an empty automation.
func (a *Automation) CanActivate(steps []*AutomationStep) ActivationCheck {
	if len(steps) == 0 {
		return ActivationCheck{Can: false, Reason: "automation has no steps"}
	}

	if a.StartStepID == nil || *a.StartStepID == "" {
		return ActivationCheck{Can: false, Reason: "automation has no start step"}
	}

	for _, step := range steps {
		if step.ID == *a.StartStepID {
			return ActivationCheck{Can: true}
		}
	}

	return ActivationCheck{
		Can:    false,
		Reason: fmt.Sprintf("start step %s does not exist in automation", *a.StartStepID),
	}
}
