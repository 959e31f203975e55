package models

import "time"

// ExecutionStatus is the outcome state of one step attempt.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusExecuting ExecutionStatus = "executing"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusSkipped   ExecutionStatus = "skipped"
)

// AutomationLog is an immutable audit record of one step attempt. Records are
// append-only and outlive their enrollment for audit purposes.
type AutomationLog struct {
	ID           string          `json:"id"`
	AutomationID string          `json:"automation_id"`
	EnrollmentID string          `json:"enrollment_id"`
	ContactID    string          `json:"contact_id"`
	StepID       string          `json:"step_id"`
	StepType     StepType        `json:"step_type"`
	Status       ExecutionStatus `json:"status"`
	Input        map[string]any  `json:"input,omitempty"`
	Output       map[string]any  `json:"output,omitempty"`
	Error        string          `json:"error,omitempty"`
	ExecutedAt   time.Time       `json:"executed_at"`
}
