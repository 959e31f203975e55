package models

import "time"

// EnrollmentStatus is the lifecycle state of one contact's run through an
// automation. Everything except active is terminal.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusExited    EnrollmentStatus = "exited"
	EnrollmentStatusFailed    EnrollmentStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s EnrollmentStatus) IsTerminal() bool {
	return s != EnrollmentStatusActive
}

// AutomationEnrollment is one contact's single run through one automation.
// At most one active enrollment exists per (automation, contact) pair.
//
// Version supports optimistic-concurrency writes: the store only applies an
// update whose Version matches the stored row and bumps it on success, so two
// racing advances cannot both win a read-modify-write.
type AutomationEnrollment struct {
	ID            string           `json:"id"`
	AutomationID  string           `json:"automation_id" validate:"required"`
	ContactID     string           `json:"contact_id"    validate:"required"`
	CurrentStepID *string          `json:"current_step_id,omitempty"`
	Status        EnrollmentStatus `json:"status"`
	WaitUntil     *time.Time       `json:"wait_until,omitempty"`
	EnrolledAt    time.Time        `json:"enrolled_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	ExitedAt      *time.Time       `json:"exited_at,omitempty"`
	ExitReason    string           `json:"exit_reason,omitempty"`
	Version       int64            `json:"version"`
}

// Suspended reports whether the enrollment is waiting for a future resume
// time. A suspended enrollment is still active; it is just not runnable yet.
func (e *AutomationEnrollment) Suspended(now time.Time) bool {
	return e.WaitUntil != nil && e.WaitUntil.After(now)
}
