package automation

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsvphq/journey/pkg/events"
	"github.com/rsvphq/journey/pkg/models"
	"github.com/rsvphq/journey/pkg/persistence"
	"github.com/rsvphq/journey/pkg/persistence/file"
	"github.com/rsvphq/journey/pkg/protocol"
)

// engineHarness wires an engine against the file store with a controllable
// clock shared by the engine and executor.
type engineHarness struct {
	engine   *Engine
	store    persistence.Persistence
	contacts *protocol.LocalDirectory
	clock    *time.Time
}

func newEngineHarness(t *testing.T) *engineHarness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := file.NewPersistence(t.TempDir())
	contacts := protocol.NewLocalDirectory()
	contacts.PutContact(&protocol.Contact{ID: "c-1", Fields: map[string]any{"country": "Brazil"}})

	executor := NewExecutor(logger, store.Logs(), contacts, &protocol.LogDeliverer{Logger: logger}, protocol.NewStaticSegments())
	engine := NewEngine(store, executor, NewTriggerMatcher(logger), logger)

	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	clock := &now
	engine.now = func() time.Time { return *clock }
	executor.now = func() time.Time { return *clock }

	return &engineHarness{
		engine:   engine,
		store:    store,
		contacts: contacts,
		clock:    clock,
	}
}

func (h *engineHarness) createAutomation(t *testing.T, steps ...*models.AutomationStep) *models.Automation {
	t.Helper()

	ctx := context.Background()

	automation := &models.Automation{
		ID:      uuid.New().String(),
		ScopeID: "scope-1",
		Name:    "Welcome sequence",
		Status:  models.AutomationStatusActive,
		Trigger: models.TriggerConfig{Type: models.TriggerContactCreated},
	}
	if len(steps) > 0 {
		automation.StartStepID = &steps[0].ID
	}

	require.NoError(t, h.store.Automations().Create(ctx, automation))

	for i, step := range steps {
		step.AutomationID = automation.ID
		step.Position = i
		require.NoError(t, h.store.Steps().Create(ctx, step))
	}

	return automation
}

func emailStep(id string, next *string) *models.AutomationStep {
	return &models.AutomationStep{
		ID:         id,
		Type:       models.StepSendEmail,
		Config:     models.StepConfig{SendEmail: &models.SendEmailConfig{TemplateID: "tpl-" + id}},
		NextStepID: next,
	}
}

func TestEngine_EnrollRunsToCompletion(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	automation := h.createAutomation(t,
		emailStep("s1", strPtr("s2")),
		emailStep("s2", nil),
	)

	enrollment, err := h.engine.Enroll(ctx, automation.ID, "c-1")
	require.NoError(t, err)

	assert.Equal(t, models.EnrollmentStatusCompleted, enrollment.Status)
	assert.Nil(t, enrollment.CurrentStepID)
	require.NotNil(t, enrollment.CompletedAt)

	stored, err := h.store.Automations().GetByID(ctx, automation.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.EnrollmentCount)
	assert.Equal(t, int64(1), stored.CompletedCount)

	// Two audit entries per executed step.
	logs, err := h.store.Logs().ListByEnrollment(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 4)
}

func TestEngine_EnrollRejectsInactiveAutomation(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	automation := h.createAutomation(t, emailStep("s1", nil))
	automation.Status = models.AutomationStatusPaused
	require.NoError(t, h.store.Automations().Update(ctx, automation))

	_, err := h.engine.Enroll(ctx, automation.ID, "c-1")
	require.ErrorIs(t, err, ErrAutomationNotActive)
}

func TestEngine_EnrollRejectsDuplicateActive(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	wait := &models.AutomationStep{
		ID:     "s1",
		Type:   models.StepWait,
		Config: models.StepConfig{Wait: &models.WaitConfig{Duration: 1, Unit: models.WaitUnitDays}},
	}
	automation := h.createAutomation(t, wait)

	first, err := h.engine.Enroll(ctx, automation.ID, "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, first.Status)

	_, err = h.engine.Enroll(ctx, automation.ID, "c-1")
	require.Error(t, err)
	assert.True(t, persistence.IsDuplicateEnrollment(err))
}

func TestEngine_TerminalEnrollmentAllowsReenroll(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	automation := h.createAutomation(t, emailStep("s1", nil))

	first, err := h.engine.Enroll(ctx, automation.ID, "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, first.Status)

	second, err := h.engine.Enroll(ctx, automation.ID, "c-1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEngine_WaitSuspendsAndSweepResumes(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	wait := &models.AutomationStep{
		ID:         "s2",
		Type:       models.StepWait,
		Config:     models.StepConfig{Wait: &models.WaitConfig{Duration: 24, Unit: models.WaitUnitHours}},
		NextStepID: strPtr("s3"),
	}
	tag := &models.AutomationStep{
		ID:     "s3",
		Type:   models.StepAddTag,
		Config: models.StepConfig{AddTag: &models.AddTagConfig{TagID: "welcomed"}},
	}
	automation := h.createAutomation(t, emailStep("s1", strPtr("s2")), wait, tag)

	enrolledAt := *h.clock

	enrollment, err := h.engine.Enroll(ctx, automation.ID, "c-1")
	require.NoError(t, err)

	// Suspended with the pointer already past the wait step.
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	require.NotNil(t, enrollment.WaitUntil)
	assert.Equal(t, enrolledAt.Add(24*time.Hour), *enrollment.WaitUntil)
	require.NotNil(t, enrollment.CurrentStepID)
	assert.Equal(t, "s3", *enrollment.CurrentStepID)

	// A sweep before the wait elapses resumes nothing.
	resumed, err := h.engine.ResumeDue(ctx, enrolledAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, resumed)

	*h.clock = enrolledAt.Add(25 * time.Hour)

	resumed, err = h.engine.ResumeDue(ctx, *h.clock)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)

	final, err := h.store.Enrollments().GetByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, final.Status)
	assert.Nil(t, final.WaitUntil)

	contact, err := h.contacts.GetContact(ctx, "c-1")
	require.NoError(t, err)
	assert.Contains(t, contact.Tags, "welcomed")
}

func TestEngine_ConditionBranching(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	condition := &models.AutomationStep{
		ID:   "s1",
		Type: models.StepCondition,
		Config: models.StepConfig{
			Condition: &models.ConditionConfig{
				Field:             "country",
				Operator:          models.OpEquals,
				Value:             "Brazil",
				TrueBranchStepID:  strPtr("s-br"),
				FalseBranchStepID: strPtr("s-intl"),
			},
		},
	}
	brTag := &models.AutomationStep{
		ID:     "s-br",
		Type:   models.StepAddTag,
		Config: models.StepConfig{AddTag: &models.AddTagConfig{TagID: "brazil-track"}},
	}
	intlTag := &models.AutomationStep{
		ID:     "s-intl",
		Type:   models.StepAddTag,
		Config: models.StepConfig{AddTag: &models.AddTagConfig{TagID: "intl-track"}},
	}
	automation := h.createAutomation(t, condition, brTag, intlTag)

	enrollment, err := h.engine.Enroll(ctx, automation.ID, "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, enrollment.Status)

	contact, err := h.contacts.GetContact(ctx, "c-1")
	require.NoError(t, err)
	assert.Contains(t, contact.Tags, "brazil-track")
	assert.NotContains(t, contact.Tags, "intl-track")
}

func TestEngine_FailedStepFailsEnrollment(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	// send_email with a missing config fails at execution time.
	broken := &models.AutomationStep{
		ID:   "s1",
		Type: models.StepSendEmail,
	}
	automation := h.createAutomation(t, broken)

	enrollment, err := h.engine.Enroll(ctx, automation.ID, "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusFailed, enrollment.Status)
}

func TestEngine_DanglingStartStepExitsEnrollment(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	automation := h.createAutomation(t, emailStep("s1", nil))
	automation.StartStepID = strPtr("ghost")
	require.NoError(t, h.store.Automations().Update(ctx, automation))

	enrollment, err := h.engine.Enroll(ctx, automation.ID, "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusExited, enrollment.Status)
	assert.Equal(t, "step not found", enrollment.ExitReason)
}

func TestEngine_CycleDetection(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	automation := h.createAutomation(t,
		emailStep("s1", strPtr("s2")),
		emailStep("s2", strPtr("s1")),
	)

	enrollment, err := h.engine.Enroll(ctx, automation.ID, "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusExited, enrollment.Status)
	assert.Equal(t, "step graph cycle detected", enrollment.ExitReason)
}

func TestEngine_PausedAutomationHaltsAdvance(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	wait := &models.AutomationStep{
		ID:         "s1",
		Type:       models.StepWait,
		Config:     models.StepConfig{Wait: &models.WaitConfig{Duration: 1, Unit: models.WaitUnitHours}},
		NextStepID: strPtr("s2"),
	}
	automation := h.createAutomation(t, wait, emailStep("s2", nil))

	enrollment, err := h.engine.Enroll(ctx, automation.ID, "c-1")
	require.NoError(t, err)
	require.NotNil(t, enrollment.WaitUntil)

	automation.Status = models.AutomationStatusPaused
	require.NoError(t, h.store.Automations().Update(ctx, automation))

	*h.clock = h.clock.Add(2 * time.Hour)

	// The sweep clears the wait but the advance stops at the paused automation.
	resumed, err := h.engine.ResumeDue(ctx, *h.clock)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)

	paused, err := h.store.Enrollments().GetByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, paused.Status)
	require.NotNil(t, paused.CurrentStepID)
	assert.Equal(t, "s2", *paused.CurrentStepID)

	// Reactivating lets a manual advance finish the run.
	automation.Status = models.AutomationStatusActive
	require.NoError(t, h.store.Automations().Update(ctx, automation))

	require.NoError(t, h.engine.Advance(ctx, enrollment.ID))

	final, err := h.store.Enrollments().GetByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, final.Status)
}

func TestEngine_Exit(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	wait := &models.AutomationStep{
		ID:     "s1",
		Type:   models.StepWait,
		Config: models.StepConfig{Wait: &models.WaitConfig{Duration: 1, Unit: models.WaitUnitDays}},
	}
	automation := h.createAutomation(t, wait)

	enrollment, err := h.engine.Enroll(ctx, automation.ID, "c-1")
	require.NoError(t, err)

	require.NoError(t, h.engine.Exit(ctx, enrollment.ID, "unsubscribed"))

	exited, err := h.store.Enrollments().GetByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusExited, exited.Status)
	assert.Equal(t, "unsubscribed", exited.ExitReason)
	assert.Nil(t, exited.WaitUntil)
	require.NotNil(t, exited.ExitedAt)
}

func TestEngine_HandleTrigger(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	matching := h.createAutomation(t, emailStep("s1", nil))

	// Same scope but a different trigger type, so it never matches.
	other := h.createAutomation(t, emailStep("s1", nil))
	other.Trigger = models.TriggerConfig{Type: models.TriggerCheckedIn}
	require.NoError(t, h.store.Automations().Update(ctx, other))

	event := events.TriggerEvent{
		ID:          uuid.New().String(),
		TriggerType: models.TriggerContactCreated,
		ScopeID:     "scope-1",
		Payload:     map[string]any{"contact_id": "c-1"},
		ReceivedAt:  *h.clock,
	}

	enrolled, err := h.engine.HandleTrigger(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, 1, enrolled)

	enrollments, err := h.store.Enrollments().ListByAutomation(ctx, matching.ID)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, "c-1", enrollments[0].ContactID)
}

func TestEngine_HandleTriggerRequiresContact(t *testing.T) {
	h := newEngineHarness(t)

	event := events.TriggerEvent{
		ID:          uuid.New().String(),
		TriggerType: models.TriggerContactCreated,
		ScopeID:     "scope-1",
		Payload:     map[string]any{},
	}

	_, err := h.engine.HandleTrigger(context.Background(), event)
	require.Error(t, err)
}

func TestEngine_HandleTriggerRejectsInvalidPayload(t *testing.T) {
	h := newEngineHarness(t)

	event := events.TriggerEvent{
		ID:          uuid.New().String(),
		TriggerType: models.TriggerTagAdded,
		ScopeID:     "scope-1",
		// tag_added requires a tag_id.
		Payload: map[string]any{"contact_id": "c-1"},
	}

	_, err := h.engine.HandleTrigger(context.Background(), event)
	require.ErrorIs(t, err, events.ErrInvalidPayload)
}

func TestEngine_HandleTriggerSkipsDuplicates(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	wait := &models.AutomationStep{
		ID:     "s1",
		Type:   models.StepWait,
		Config: models.StepConfig{Wait: &models.WaitConfig{Duration: 1, Unit: models.WaitUnitDays}},
	}
	h.createAutomation(t, wait)

	event := events.TriggerEvent{
		ID:          uuid.New().String(),
		TriggerType: models.TriggerContactCreated,
		ScopeID:     "scope-1",
		Payload:     map[string]any{"contact_id": "c-1"},
	}

	enrolled, err := h.engine.HandleTrigger(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, 1, enrolled)

	enrolled, err = h.engine.HandleTrigger(ctx, event)
	require.NoError(t, err)
	assert.Zero(t, enrolled)
}
