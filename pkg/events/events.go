// Package events defines event types for enrollment lifecycle notifications.
package events

import (
	"time"

	"github.com/rsvphq/journey/pkg/models"
)

type EventType string

// Topic carries all enrollment lifecycle events.
const Topic = "journey.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	EnrollmentStartedEvent   EventType = "enrollment.started"
	EnrollmentCompletedEvent EventType = "enrollment.completed"
	EnrollmentFailedEvent    EventType = "enrollment.failed"
	EnrollmentExitedEvent    EventType = "enrollment.exited"
	EnrollmentSuspendedEvent EventType = "enrollment.suspended"
	EnrollmentResumedEvent   EventType = "enrollment.resumed"
	StepExecutedEvent        EventType = "step.executed"
)

type BaseEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	AutomationID string         `json:"automation_id"`
	EnrollmentID string         `json:"enrollment_id"`
	ContactID    string         `json:"contact_id"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type EnrollmentStarted struct {
	BaseEvent

	TriggerType models.TriggerType `json:"trigger_type,omitempty"`
}

func (e EnrollmentStarted) GetType() EventType {
	return EnrollmentStartedEvent
}

type EnrollmentCompleted struct {
	BaseEvent

	CompletedAt time.Time `json:"completed_at"`
}

func (e EnrollmentCompleted) GetType() EventType {
	return EnrollmentCompletedEvent
}

type EnrollmentFailed struct {
	BaseEvent

	StepID string `json:"step_id"`
	Error  string `json:"error"`
}

func (e EnrollmentFailed) GetType() EventType {
	return EnrollmentFailedEvent
}

type EnrollmentExited struct {
	BaseEvent

	Reason string `json:"reason"`
}

func (e EnrollmentExited) GetType() EventType {
	return EnrollmentExitedEvent
}

type EnrollmentSuspended struct {
	BaseEvent

	StepID    string    `json:"step_id"`
	WaitUntil time.Time `json:"wait_until"`
}

func (e EnrollmentSuspended) GetType() EventType {
	return EnrollmentSuspendedEvent
}

type EnrollmentResumed struct {
	BaseEvent

	ResumedAt time.Time `json:"resumed_at"`
}

func (e EnrollmentResumed) GetType() EventType {
	return EnrollmentResumedEvent
}

type StepExecuted struct {
	BaseEvent

	StepID   string                 `json:"step_id"`
	StepType models.StepType        `json:"step_type"`
	Status   models.ExecutionStatus `json:"status"`
	Output   map[string]any         `json:"output,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

func (e StepExecuted) GetType() EventType {
	return StepExecutedEvent
}
