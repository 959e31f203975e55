package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// StepType identifies the kind of work a step performs.
type StepType string

const (
	StepSendEmail   StepType = "send_email"
	StepWait        StepType = "wait"
	StepCondition   StepType = "condition"
	StepAddTag      StepType = "add_tag"
	StepRemoveTag   StepType = "remove_tag"
	StepUpdateField StepType = "update_field"
	StepWebhook     StepType = "webhook"
)

// IsValid checks if the step type is one of the known kinds.
func (t StepType) IsValid() bool {
	switch t {
	case StepSendEmail, StepWait, StepCondition, StepAddTag,
		StepRemoveTag, StepUpdateField, StepWebhook:
		return true
	default:
		return false
	}
}

// WaitUnit is the time unit of a wait step duration.
type WaitUnit string

const (
	WaitUnitMinutes WaitUnit = "minutes"
	WaitUnitHours   WaitUnit = "hours"
	WaitUnitDays    WaitUnit = "days"
)

var (
	// ErrInvalidStepConfig is returned when a step configuration fails validation.
	ErrInvalidStepConfig = errors.New("invalid step configuration")

	// ErrInvalidWaitUnit is returned for wait units outside minutes/hours/days.
	ErrInvalidWaitUnit = errors.New("invalid wait unit")
)

// SendEmailConfig delivers a template through the email collaborator.
type SendEmailConfig struct {
	TemplateID string `json:"template_id" validate:"required"`
}

// WaitConfig suspends the enrollment for a fixed duration. The suspension is
// durable data (wait_until on the enrollment), never an in-memory timer.
type WaitConfig struct {
	Duration int      `json:"duration" validate:"required,gt=0"`
	Unit     WaitUnit `json:"unit"     validate:"required,oneof=minutes hours days"`
}

// ConditionConfig branches on a contact attribute, tag, or segment membership.
// Branch targets replace the step-level next pointer for condition steps.
type ConditionConfig struct {
	Field             string            `json:"field"    validate:"required"`
	Operator          ConditionOperator `json:"operator" validate:"required"`
	Value             any               `json:"value,omitempty"`
	TrueBranchStepID  *string           `json:"true_branch_step_id,omitempty"`
	FalseBranchStepID *string           `json:"false_branch_step_id,omitempty"`
}

// AddTagConfig adds a tag to the contact (no-op when already present).
type AddTagConfig struct {
	TagID string `json:"tag_id" validate:"required"`
}

// RemoveTagConfig removes a tag from the contact.
type RemoveTagConfig struct {
	TagID string `json:"tag_id" validate:"required"`
}

// UpdateFieldConfig writes a single contact field.
type UpdateFieldConfig struct {
	Field string `json:"field" validate:"required"`
	Value any    `json:"value,omitempty"`
}

// WebhookConfig records the target URL of an outbound webhook. Dispatch
// mechanics belong to an external collaborator.
type WebhookConfig struct {
	URL string `json:"url" validate:"required,url"`
}

// StepConfig is the per-type configuration envelope. Exactly one variant is set,
// matching the step's Type.
type StepConfig struct {
	SendEmail   *SendEmailConfig   `json:"send_email,omitempty"`
	Wait        *WaitConfig        `json:"wait,omitempty"`
	Condition   *ConditionConfig   `json:"condition,omitempty"`
	AddTag      *AddTagConfig      `json:"add_tag,omitempty"`
	RemoveTag   *RemoveTagConfig   `json:"remove_tag,omitempty"`
	UpdateField *UpdateFieldConfig `json:"update_field,omitempty"`
	Webhook     *WebhookConfig     `json:"webhook,omitempty"`
}

// AutomationStep is a node in the workflow graph. Position is for display
// ordering only; execution order follows NextStepID and branch targets.
type AutomationStep struct {
	ID           string     `json:"id"`
	AutomationID string     `json:"automation_id" validate:"required"`
	Type         StepType   `json:"type"          validate:"required"`
	Config       StepConfig `json:"config"`
	Position     int        `json:"position"`
	NextStepID   *string    `json:"next_step_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

var stepValidate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStepConfig checks that the configuration envelope carries the variant
// matching stepType and that the variant satisfies its own constraints. It is
// called before any step is persisted; a failure rejects creation outright.
func ValidateStepConfig(stepType StepType, config StepConfig) error {
	var variant any

	switch stepType {
	case StepSendEmail:
		if config.SendEmail == nil {
			return fmt.Errorf("%w: send_email requires a template reference", ErrInvalidStepConfig)
		}

		variant = config.SendEmail
	case StepWait:
		if config.Wait == nil {
			return fmt.Errorf("%w: wait requires a duration and unit", ErrInvalidStepConfig)
		}

		if config.Wait.Duration <= 0 {
			return fmt.Errorf("%w: wait duration must be a positive integer", ErrInvalidStepConfig)
		}

		variant = config.Wait
	case StepCondition:
		if config.Condition == nil {
			return fmt.Errorf("%w: condition requires a field and an operator", ErrInvalidStepConfig)
		}

		if !config.Condition.Operator.IsValid() {
			return fmt.Errorf("%w: unknown condition operator %q", ErrInvalidStepConfig, config.Condition.Operator)
		}

		variant = config.Condition
	case StepAddTag:
		if config.AddTag == nil {
			return fmt.Errorf("%w: add_tag requires a tag reference", ErrInvalidStepConfig)
		}

		variant = config.AddTag
	case StepRemoveTag:
		if config.RemoveTag == nil {
			return fmt.Errorf("%w: remove_tag requires a tag reference", ErrInvalidStepConfig)
		}

		variant = config.RemoveTag
	case StepUpdateField:
		if config.UpdateField == nil {
			return fmt.Errorf("%w: update_field requires a field name", ErrInvalidStepConfig)
		}

		variant = config.UpdateField
	case StepWebhook:
		if config.Webhook == nil {
			return fmt.Errorf("%w: webhook requires a URL", ErrInvalidStepConfig)
		}

		variant = config.Webhook
	default:
		return fmt.Errorf("%w: unknown step type %q", ErrInvalidStepConfig, stepType)
	}

	if err := stepValidate.Struct(variant); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidStepConfig, err.Error())
	}

	return nil
}

// WaitDurationToMillis converts a wait duration to milliseconds. The
// conversion is exact: minutes x 60,000; hours x 3,600,000; days x 86,400,000.
func WaitDurationToMillis(duration int, unit WaitUnit) (int64, error) {
	switch unit {
	case WaitUnitMinutes:
		return int64(duration) * 60_000, nil
	case WaitUnitHours:
		return int64(duration) * 3_600_000, nil
	case WaitUnitDays:
		return int64(duration) * 86_400_000, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidWaitUnit, unit)
	}
}

// Until computes the resume timestamp for a wait that starts at now.
func (w *WaitConfig) Until(now time.Time) (time.Time, error) {
	millis, err := WaitDurationToMillis(w.Duration, w.Unit)
	if err != nil {
		return time.Time{}, err
	}

	return now.Add(time.Duration(millis) * time.Millisecond), nil
}
