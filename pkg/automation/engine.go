package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rsvphq/journey/pkg/eventbus"
	"github.com/rsvphq/journey/pkg/events"
	"github.com/rsvphq/journey/pkg/models"
	"github.com/rsvphq/journey/pkg/persistence"
)

var (
	// ErrAutomationNotActive is returned when enrolling into an automation
	// that is not in the active state.
	ErrAutomationNotActive = errors.New("automation is not active")

	// ErrContactRequired is returned when a trigger payload has no contact reference.
	ErrContactRequired = errors.New("trigger payload has no contact_id")
)

// Engine owns the enrollment state machine. It drives a contact through an
// automation's step graph, suspends on wait steps, and resumes them during
// the sweep.
//
// Per-enrollment processing is serialized in process with a keyed mutex;
// across processes the store's version-conditional enrollment update is the
// backstop against destructive interleaving.
type Engine struct {
	store    persistence.Persistence
	executor *Executor
	matcher  *TriggerMatcher
	bus      eventbus.EventPublisher
	logger   *slog.Logger

	locks *keyedMutex
	now   func() time.Time
}

func NewEngine(
	store persistence.Persistence,
	executor *Executor,
	matcher *TriggerMatcher,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		store:    store,
		executor: executor,
		matcher:  matcher,
		logger:   logger.With("module", "enrollment_engine"),
		locks:    newKeyedMutex(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithEventBus enables best-effort lifecycle event publishing.
func (e *Engine) WithEventBus(bus eventbus.EventPublisher) *Engine {
	e.bus = bus

	return e
}

// Enroll creates an enrollment for the contact and immediately advances it
// through the step graph. Enrolling is idempotent: a second call for an
// already-active (automation, contact) pair fails with ErrDuplicateEnrollment
// without creating state.
func (e *Engine) Enroll(ctx context.Context, automationID, contactID string) (*models.AutomationEnrollment, error) {
	automation, err := e.store.Automations().GetByID(ctx, automationID)
	if err != nil {
		return nil, err
	}

	if automation.Status != models.AutomationStatusActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrAutomationNotActive, automationID, automation.Status)
	}

	enrollment := &models.AutomationEnrollment{
		ID:            uuid.New().String(),
		AutomationID:  automationID,
		ContactID:     contactID,
		CurrentStepID: automation.StartStepID,
		Status:        models.EnrollmentStatusActive,
		EnrolledAt:    e.now(),
	}

	if err := e.store.Enrollments().Create(ctx, enrollment); err != nil {
		return nil, err
	}

	if err := e.store.Automations().IncrementEnrollmentCount(ctx, automationID); err != nil {
		return nil, err
	}

	e.logger.Info("Enrolled contact",
		"automation_id", automationID,
		"contact_id", contactID,
		"enrollment_id", enrollment.ID)

	e.publish(ctx, enrollment.ID, events.EnrollmentStarted{
		BaseEvent:   e.baseEvent(events.EnrollmentStartedEvent, enrollment),
		TriggerType: automation.Trigger.Type,
	})

	if err := e.Advance(ctx, enrollment.ID); err != nil {
		return enrollment, err
	}

	return e.store.Enrollments().GetByID(ctx, enrollment.ID)
}

// Advance runs the enrollment forward through non-suspending steps until it
// suspends, completes, exits, or fails. No-op for terminal, suspended, or
// implicitly paused enrollments.
func (e *Engine) Advance(ctx context.Context, enrollmentID string) error {
	e.locks.Lock(enrollmentID)
	defer e.locks.Unlock(enrollmentID)

	return e.advanceLocked(ctx, enrollmentID)
}

func (e *Engine) advanceLocked(ctx context.Context, enrollmentID string) error {
	hops := 0

	for {
		enrollment, err := e.store.Enrollments().GetByID(ctx, enrollmentID)
		if err != nil {
			return err
		}

		if enrollment.Status != models.EnrollmentStatusActive {
			return nil
		}

		if enrollment.Suspended(e.now()) {
			return nil
		}

		automation, err := e.store.Automations().GetByID(ctx, enrollment.AutomationID)
		if err != nil {
			return err
		}

		// Enrollments pause implicitly with their automation; their own
		// status does not change.
		if automation.Status != models.AutomationStatusActive {
			return nil
		}

		if enrollment.CurrentStepID == nil {
			return e.complete(ctx, enrollment)
		}

		steps, err := e.store.Steps().ListByAutomation(ctx, enrollment.AutomationID)
		if err != nil {
			return err
		}

		// Second cycle defense besides the graph's own visited-set guard.
		hops++
		if hops > len(steps)+1 {
			return e.exitEnrollment(ctx, enrollment, "step graph cycle detected")
		}

		step := FindStep(steps, *enrollment.CurrentStepID)
		if step == nil {
			return e.exitEnrollment(ctx, enrollment, "step not found")
		}

		result := e.executor.Execute(ctx, step, enrollment)

		e.publish(ctx, enrollment.ID, events.StepExecuted{
			BaseEvent: e.baseEvent(events.StepExecutedEvent, enrollment),
			StepID:    step.ID,
			StepType:  step.Type,
			Status:    result.Status,
			Output:    result.Output,
			Error:     result.Error,
		})

		if result.Status == models.ExecutionStatusFailed {
			return e.fail(ctx, enrollment, step, result.Error)
		}

		if result.WaitUntil != nil {
			return e.suspend(ctx, enrollment, step, steps, *result.WaitUntil)
		}

		nextStepID := e.resolveNext(step, steps, result)
		if nextStepID == nil {
			return e.complete(ctx, enrollment)
		}

		enrollment.CurrentStepID = nextStepID

		if err := e.store.Enrollments().Update(ctx, enrollment); err != nil {
			return err
		}
	}
}

// resolveNext picks the successor id: the condition branch override wins, a
// condition without a branch target ends the run, everything else follows
// the graph's next pointer.
func (e *Engine) resolveNext(step *models.AutomationStep, steps []*models.AutomationStep, result ExecutionResult) *string {
	if result.NextStepIDOverride != nil {
		return result.NextStepIDOverride
	}

	if step.Type == models.StepCondition {
		return nil
	}

	next := NextStep(step, steps, nil)
	if next == nil {
		return nil
	}

	nextID := next.ID

	return &nextID
}

// suspend records the durable wait and moves the pointer past the wait step so
// the sweep resumes directly at its successor. No advance happens until the
// wait elapses.
func (e *Engine) suspend(
	ctx context.Context,
	enrollment *models.AutomationEnrollment,
	step *models.AutomationStep,
	steps []*models.AutomationStep,
	waitUntil time.Time,
) error {
	enrollment.WaitUntil = &waitUntil

	next := NextStep(step, steps, nil)
	if next != nil {
		nextID := next.ID
		enrollment.CurrentStepID = &nextID
	} else {
		enrollment.CurrentStepID = nil
	}

	if err := e.store.Enrollments().Update(ctx, enrollment); err != nil {
		return err
	}

	e.logger.Info("Enrollment suspended",
		"enrollment_id", enrollment.ID,
		"wait_until", waitUntil)

	e.publish(ctx, enrollment.ID, events.EnrollmentSuspended{
		BaseEvent: e.baseEvent(events.EnrollmentSuspendedEvent, enrollment),
		StepID:    step.ID,
		WaitUntil: waitUntil,
	})

	return nil
}

func (e *Engine) complete(ctx context.Context, enrollment *models.AutomationEnrollment) error {
	now := e.now()
	enrollment.Status = models.EnrollmentStatusCompleted
	enrollment.CurrentStepID = nil
	enrollment.WaitUntil = nil
	enrollment.CompletedAt = &now

	if err := e.store.Enrollments().Update(ctx, enrollment); err != nil {
		return err
	}

	if err := e.store.Automations().IncrementCompletedCount(ctx, enrollment.AutomationID); err != nil {
		return err
	}

	e.logger.Info("Enrollment completed", "enrollment_id", enrollment.ID)

	e.publish(ctx, enrollment.ID, events.EnrollmentCompleted{
		BaseEvent:   e.baseEvent(events.EnrollmentCompletedEvent, enrollment),
		CompletedAt: now,
	})

	return nil
}

func (e *Engine) fail(ctx context.Context, enrollment *models.AutomationEnrollment, step *models.AutomationStep, message string) error {
	enrollment.Status = models.EnrollmentStatusFailed
	enrollment.WaitUntil = nil

	if err := e.store.Enrollments().Update(ctx, enrollment); err != nil {
		return err
	}

	e.logger.Error("Enrollment failed",
		"enrollment_id", enrollment.ID,
		"step_id", step.ID,
		"error", message)

	e.publish(ctx, enrollment.ID, events.EnrollmentFailed{
		BaseEvent: e.baseEvent(events.EnrollmentFailedEvent, enrollment),
		StepID:    step.ID,
		Error:     message,
	})

	return nil
}

// Exit unconditionally transitions the enrollment to exited, recording the
// reason. Used for manual removal and unrecoverable graph errors.
func (e *Engine) Exit(ctx context.Context, enrollmentID, reason string) error {
	e.locks.Lock(enrollmentID)
	defer e.locks.Unlock(enrollmentID)

	enrollment, err := e.store.Enrollments().GetByID(ctx, enrollmentID)
	if err != nil {
		return err
	}

	return e.exitEnrollment(ctx, enrollment, reason)
}

func (e *Engine) exitEnrollment(ctx context.Context, enrollment *models.AutomationEnrollment, reason string) error {
	now := e.now()
	enrollment.Status = models.EnrollmentStatusExited
	enrollment.WaitUntil = nil
	enrollment.ExitedAt = &now
	enrollment.ExitReason = reason

	if err := e.store.Enrollments().Update(ctx, enrollment); err != nil {
		return err
	}

	e.logger.Info("Enrollment exited",
		"enrollment_id", enrollment.ID,
		"reason", reason)

	e.publish(ctx, enrollment.ID, events.EnrollmentExited{
		BaseEvent: e.baseEvent(events.EnrollmentExitedEvent, enrollment),
		Reason:    reason,
	})

	return nil
}

// HandleTrigger matches an inbound domain event against the scope's active
// automations and enrolls the contact in each match. Returns the number of
// enrollments created. Duplicate active enrollments are skipped silently;
// other enrollment failures are logged and do not stop remaining matches.
func (e *Engine) HandleTrigger(ctx context.Context, event events.TriggerEvent) (int, error) {
	if err := events.ValidateTriggerPayload(event.TriggerType, event.Payload); err != nil {
		return 0, err
	}

	contactID := event.ContactID()
	if contactID == "" {
		return 0, ErrContactRequired
	}

	active := models.AutomationStatusActive

	automations, err := e.store.Automations().List(ctx, persistence.AutomationListOptions{
		ScopeID: event.ScopeID,
		Status:  &active,
	})
	if err != nil {
		return 0, err
	}

	matches := e.matcher.MatchAutomations(event, automations)

	enrolled := 0

	for _, automation := range matches {
		_, err := e.Enroll(ctx, automation.ID, contactID)
		if err != nil {
			if persistence.IsDuplicateEnrollment(err) {
				e.logger.Debug("Contact already enrolled",
					"automation_id", automation.ID,
					"contact_id", contactID)

				continue
			}

			e.logger.Error("Failed to enroll contact",
				"automation_id", automation.ID,
				"contact_id", contactID,
				"error", err)

			continue
		}

		enrolled++
	}

	return enrolled, nil
}

// ResumeDue resumes every active enrollment whose suspension has elapsed at
// now and returns the count processed. This sweep is the only resumption
// mechanism; callers invoke it on a schedule.
func (e *Engine) ResumeDue(ctx context.Context, now time.Time) (int, error) {
	due, err := e.store.Enrollments().ListDue(ctx, now)
	if err != nil {
		return 0, err
	}

	processed := 0

	for _, enrollment := range due {
		resumed, err := e.resumeOne(ctx, enrollment.ID, now)
		if err != nil {
			e.logger.Error("Failed to resume enrollment",
				"enrollment_id", enrollment.ID,
				"error", err)

			continue
		}

		if resumed {
			processed++
		}
	}

	return processed, nil
}

func (e *Engine) resumeOne(ctx context.Context, enrollmentID string, now time.Time) (bool, error) {
	e.locks.Lock(enrollmentID)

	enrollment, err := e.store.Enrollments().GetByID(ctx, enrollmentID)
	if err != nil {
		e.locks.Unlock(enrollmentID)

		return false, err
	}

	// Re-check under the lock: a concurrent sweep may have resumed it already.
	if enrollment.Status != models.EnrollmentStatusActive ||
		enrollment.WaitUntil == nil ||
		enrollment.WaitUntil.After(now) {
		e.locks.Unlock(enrollmentID)

		return false, nil
	}

	enrollment.WaitUntil = nil

	if err := e.store.Enrollments().Update(ctx, enrollment); err != nil {
		e.locks.Unlock(enrollmentID)

		return false, err
	}

	e.publish(ctx, enrollment.ID, events.EnrollmentResumed{
		BaseEvent: e.baseEvent(events.EnrollmentResumedEvent, enrollment),
		ResumedAt: now,
	})

	e.locks.Unlock(enrollmentID)

	return true, e.Advance(ctx, enrollmentID)
}

func (e *Engine) baseEvent(eventType events.EventType, enrollment *models.AutomationEnrollment) events.BaseEvent {
	return events.BaseEvent{
		ID:           uuid.New().String(),
		Type:         eventType,
		Timestamp:    e.now(),
		AutomationID: enrollment.AutomationID,
		EnrollmentID: enrollment.ID,
		ContactID:    enrollment.ContactID,
	}
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	if err := e.bus.Publish(ctx, key, event); err != nil {
		e.logger.Warn("Failed to publish lifecycle event",
			"event_type", event.GetType(),
			"key", key,
			"error", err)
	}
}
