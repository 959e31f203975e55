// Package web provides HTTP request and response types for the automation API.
package web

import "github.com/rsvphq/journey/pkg/models"

// CreateAutomationRequest represents the request body for creating an automation.
type CreateAutomationRequest struct {
	ScopeID string               `json:"scope_id" validate:"required"`
	Name    string               `json:"name"     validate:"required,min=3"`
	Trigger models.TriggerConfig `json:"trigger"`
}

// UpdateAutomationRequest represents the request body for updating an automation.
// All fields are optional to support partial updates.
type UpdateAutomationRequest struct {
	Name    *string               `json:"name,omitempty"    validate:"omitempty,min=3"`
	Trigger *models.TriggerConfig `json:"trigger,omitempty"`
}

// CreateStepRequest represents the request body for appending a step.
type CreateStepRequest struct {
	Type       models.StepType   `json:"type"         validate:"required"`
	Config     models.StepConfig `json:"config"`
	NextStepID *string           `json:"next_step_id,omitempty"`
}

// CreateEnrollmentRequest represents the request body for a manual enrollment.
type CreateEnrollmentRequest struct {
	ContactID string `json:"contact_id" validate:"required"`
}

// ExitEnrollmentRequest represents the request body for removing a contact
// from an automation.
type ExitEnrollmentRequest struct {
	Reason string `json:"reason"`
}

// TriggerRequest represents an inbound domain event for trigger matching.
type TriggerRequest struct {
	TriggerType models.TriggerType `json:"trigger_type" validate:"required"`
	ScopeID     string             `json:"scope_id"     validate:"required"`
	Payload     map[string]any     `json:"payload"      validate:"required"`
}
