// Package services provides automation management functionality.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rsvphq/journey/pkg/models"
	"github.com/rsvphq/journey/pkg/persistence"
)

// CreateAutomationRequest represents the request to create a new automation.
type CreateAutomationRequest struct {
	ScopeID string
	Name    string
	Trigger models.TriggerConfig
}

// UpdateAutomationRequest represents the request to update an automation's
// definition. Nil fields are left unchanged.
type UpdateAutomationRequest struct {
	Name    *string
	Trigger *models.TriggerConfig
}

// AddStepRequest represents the request to append a step to an automation.
type AddStepRequest struct {
	Type       models.StepType
	Config     models.StepConfig
	NextStepID *string
}

// Automation handles automation-related business operations.
type Automation struct {
	persistence persistence.Persistence
}

// NewAutomation creates a new automation service.
func NewAutomation(persistence persistence.Persistence) *Automation {
	return &Automation{
		persistence: persistence,
	}
}

// CreateAutomation creates a new automation in draft status.
func (s *Automation) CreateAutomation(ctx context.Context, req *CreateAutomationRequest) (*models.Automation, error) {
	if req.Name == "" {
		return nil, ErrNameRequired
	}

	if req.ScopeID == "" {
		return nil, ErrScopeRequired
	}

	if !req.Trigger.Type.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTrigger, req.Trigger.Type)
	}

	now := time.Now().UTC()
	automation := &models.Automation{
		ID:        uuid.New().String(),
		ScopeID:   req.ScopeID,
		Name:      req.Name,
		Status:    models.AutomationStatusDraft,
		Trigger:   req.Trigger,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.persistence.Automations().Create(ctx, automation)
	if err != nil {
		return nil, fmt.Errorf("failed to create automation: %w", err)
	}

	return automation, nil
}

// GetAutomation retrieves an automation by ID.
func (s *Automation) GetAutomation(ctx context.Context, id string) (*models.Automation, error) {
	return s.persistence.Automations().GetByID(ctx, id)
}

// ListAutomations returns automations matching the filter options.
func (s *Automation) ListAutomations(ctx context.Context, opts persistence.AutomationListOptions) ([]*models.Automation, error) {
	return s.persistence.Automations().List(ctx, opts)
}

// UpdateAutomation updates the automation's definition fields. The step graph
// and trigger of an active automation stay frozen until it is paused.
func (s *Automation) UpdateAutomation(ctx context.Context, id string, req *UpdateAutomationRequest) (*models.Automation, error) {
	automation, err := s.persistence.Automations().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Trigger != nil {
		if automation.Status == models.AutomationStatusActive {
			return nil, ErrCannotModifyActive
		}

		if !req.Trigger.Type.IsValid() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTrigger, req.Trigger.Type)
		}

		automation.Trigger = *req.Trigger
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, ErrNameRequired
		}

		automation.Name = *req.Name
	}

	err = s.persistence.Automations().Update(ctx, automation)
	if err != nil {
		return nil, fmt.Errorf("failed to update automation: %w", err)
	}

	return automation, nil
}

// DeleteAutomation removes the automation and its steps.
func (s *Automation) DeleteAutomation(ctx context.Context, id string) error {
	return s.persistence.Automations().Delete(ctx, id)
}

// AddStep validates and appends a step to a draft or paused automation. The
// first step added becomes the automation's start step.
func (s *Automation) AddStep(ctx context.Context, automationID string, req *AddStepRequest) (*models.AutomationStep, error) {
	automation, err := s.persistence.Automations().GetByID(ctx, automationID)
	if err != nil {
		return nil, err
	}

	if automation.Status == models.AutomationStatusActive {
		return nil, ErrCannotModifyActive
	}

	if !req.Type.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStepType, req.Type)
	}

	if err := models.ValidateStepConfig(req.Type, req.Config); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	existing, err := s.persistence.Steps().ListByAutomation(ctx, automationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list automation steps: %w", err)
	}

	now := time.Now().UTC()
	step := &models.AutomationStep{
		ID:           uuid.New().String(),
		AutomationID: automationID,
		Type:         req.Type,
		Config:       req.Config,
		Position:     len(existing),
		NextStepID:   req.NextStepID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.persistence.Steps().Create(ctx, step)
	if err != nil {
		return nil, fmt.Errorf("failed to save step: %w", err)
	}

	// The first step anchors the graph entry point.
	if len(existing) == 0 {
		automation.StartStepID = &step.ID

		err = s.persistence.Automations().Update(ctx, automation)
		if err != nil {
			return nil, fmt.Errorf("failed to set start step: %w", err)
		}
	}

	return step, nil
}

// GetSteps returns the automation's steps in position order.
func (s *Automation) GetSteps(ctx context.Context, automationID string) ([]*models.AutomationStep, error) {
	if _, err := s.persistence.Automations().GetByID(ctx, automationID); err != nil {
		return nil, err
	}

	return s.persistence.Steps().ListByAutomation(ctx, automationID)
}

// DeleteStep removes a step from a draft or paused automation.
func (s *Automation) DeleteStep(ctx context.Context, automationID, stepID string) error {
	automation, err := s.persistence.Automations().GetByID(ctx, automationID)
	if err != nil {
		return err
	}

	if automation.Status == models.AutomationStatusActive {
		return ErrCannotModifyActive
	}

	err = s.persistence.Steps().Delete(ctx, automationID, stepID)
	if err != nil {
		return err
	}

	if automation.StartStepID != nil && *automation.StartStepID == stepID {
		automation.StartStepID = nil

		return s.persistence.Automations().Update(ctx, automation)
	}

	return nil
}

// Activate transitions the automation to active after verifying its step
// graph is runnable.
func (s *Automation) Activate(ctx context.Context, id string) (*models.Automation, error) {
	automation, err := s.persistence.Automations().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if automation.Status == models.AutomationStatusActive {
		return automation, nil
	}

	steps, err := s.persistence.Steps().ListByAutomation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list automation steps: %w", err)
	}

	check := automation.CanActivate(steps)
	if !check.Can {
		return nil, fmt.Errorf("%w: %s", ErrActivationBlocked, check.Reason)
	}

	automation.Status = models.AutomationStatusActive

	err = s.persistence.Automations().Update(ctx, automation)
	if err != nil {
		return nil, fmt.Errorf("failed to activate automation: %w", err)
	}

	return automation, nil
}

// Pause stops new enrollments and implicitly suspends step execution for
// existing enrollments. Their stored state does not change.
func (s *Automation) Pause(ctx context.Context, id string) (*models.Automation, error) {
	automation, err := s.persistence.Automations().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if automation.Status != models.AutomationStatusActive {
		return nil, fmt.Errorf("%w: cannot pause %s automation", ErrInvalidTransition, automation.Status)
	}

	automation.Status = models.AutomationStatusPaused

	err = s.persistence.Automations().Update(ctx, automation)
	if err != nil {
		return nil, fmt.Errorf("failed to pause automation: %w", err)
	}

	return automation, nil
}
