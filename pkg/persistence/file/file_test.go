package file_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsvphq/journey/pkg/models"
	"github.com/rsvphq/journey/pkg/persistence"
	"github.com/rsvphq/journey/pkg/persistence/file"
)

func newStore(t *testing.T) *file.Persistence {
	t.Helper()

	return file.NewPersistence(t.TempDir())
}

func sampleAutomation(scopeID string) *models.Automation {
	return &models.Automation{
		ID:      uuid.New().String(),
		ScopeID: scopeID,
		Name:    "Welcome sequence",
		Status:  models.AutomationStatusDraft,
		Trigger: models.TriggerConfig{Type: models.TriggerContactCreated},
	}
}

func sampleEnrollment(automationID, contactID string) *models.AutomationEnrollment {
	return &models.AutomationEnrollment{
		ID:           uuid.New().String(),
		AutomationID: automationID,
		ContactID:    contactID,
		Status:       models.EnrollmentStatusActive,
		EnrolledAt:   time.Now().UTC(),
	}
}

func TestAutomationRepository_CreateAndGet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	automation := sampleAutomation("scope-1")
	require.NoError(t, store.Automations().Create(ctx, automation))

	stored, err := store.Automations().GetByID(ctx, automation.ID)
	require.NoError(t, err)
	assert.Equal(t, automation.Name, stored.Name)
	assert.Equal(t, models.TriggerContactCreated, stored.Trigger.Type)

	_, err = store.Automations().GetByID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsAutomationNotFound(err))
}

func TestAutomationRepository_ListFilters(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first := sampleAutomation("scope-1")
	first.Status = models.AutomationStatusActive
	require.NoError(t, store.Automations().Create(ctx, first))

	second := sampleAutomation("scope-1")
	require.NoError(t, store.Automations().Create(ctx, second))

	other := sampleAutomation("scope-2")
	require.NoError(t, store.Automations().Create(ctx, other))

	all, err := store.Automations().List(ctx, persistence.AutomationListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	scoped, err := store.Automations().List(ctx, persistence.AutomationListOptions{ScopeID: "scope-1"})
	require.NoError(t, err)
	assert.Len(t, scoped, 2)

	active := models.AutomationStatusActive

	filtered, err := store.Automations().List(ctx, persistence.AutomationListOptions{
		ScopeID: "scope-1",
		Status:  &active,
	})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, first.ID, filtered[0].ID)
}

func TestAutomationRepository_CountersSurviveUpdate(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	automation := sampleAutomation("scope-1")
	require.NoError(t, store.Automations().Create(ctx, automation))

	require.NoError(t, store.Automations().IncrementEnrollmentCount(ctx, automation.ID))
	require.NoError(t, store.Automations().IncrementEnrollmentCount(ctx, automation.ID))
	require.NoError(t, store.Automations().IncrementCompletedCount(ctx, automation.ID))

	// A definition update with stale in-memory counters must not clobber them.
	automation.Name = "Renamed sequence"
	automation.EnrollmentCount = 0
	automation.CompletedCount = 0
	require.NoError(t, store.Automations().Update(ctx, automation))

	stored, err := store.Automations().GetByID(ctx, automation.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed sequence", stored.Name)
	assert.Equal(t, int64(2), stored.EnrollmentCount)
	assert.Equal(t, int64(1), stored.CompletedCount)
}

func TestAutomationRepository_DeleteCascadesSteps(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	automation := sampleAutomation("scope-1")
	require.NoError(t, store.Automations().Create(ctx, automation))

	step := &models.AutomationStep{
		ID:           "s1",
		AutomationID: automation.ID,
		Type:         models.StepSendEmail,
		Config:       models.StepConfig{SendEmail: &models.SendEmailConfig{TemplateID: "tpl-1"}},
	}
	require.NoError(t, store.Steps().Create(ctx, step))

	require.NoError(t, store.Automations().Delete(ctx, automation.ID))

	_, err := store.Automations().GetByID(ctx, automation.ID)
	require.Error(t, err)

	steps, err := store.Steps().ListByAutomation(ctx, automation.ID)
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestStepRepository_ListOrdersByPosition(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	automationID := uuid.New().String()

	for i, id := range []string{"s-c", "s-a", "s-b"} {
		step := &models.AutomationStep{
			ID:           id,
			AutomationID: automationID,
			Type:         models.StepSendEmail,
			Config:       models.StepConfig{SendEmail: &models.SendEmailConfig{TemplateID: "tpl-" + id}},
			Position:     2 - i,
		}
		require.NoError(t, store.Steps().Create(ctx, step))
	}

	steps, err := store.Steps().ListByAutomation(ctx, automationID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "s-b", steps[0].ID)
	assert.Equal(t, "s-a", steps[1].ID)
	assert.Equal(t, "s-c", steps[2].ID)
}

func TestEnrollmentRepository_DuplicateActive(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	automationID := uuid.New().String()

	first := sampleEnrollment(automationID, "c-1")
	require.NoError(t, store.Enrollments().Create(ctx, first))

	duplicate := sampleEnrollment(automationID, "c-1")
	err := store.Enrollments().Create(ctx, duplicate)
	require.Error(t, err)
	assert.True(t, persistence.IsDuplicateEnrollment(err))

	// Other contacts and other automations are unaffected.
	require.NoError(t, store.Enrollments().Create(ctx, sampleEnrollment(automationID, "c-2")))
	require.NoError(t, store.Enrollments().Create(ctx, sampleEnrollment(uuid.New().String(), "c-1")))
}

func TestEnrollmentRepository_TerminalDoesNotBlockReenroll(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	automationID := uuid.New().String()

	first := sampleEnrollment(automationID, "c-1")
	first.Status = models.EnrollmentStatusCompleted
	require.NoError(t, store.Enrollments().Create(ctx, first))

	require.NoError(t, store.Enrollments().Create(ctx, sampleEnrollment(automationID, "c-1")))
}

func TestEnrollmentRepository_VersionConflict(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	enrollment := sampleEnrollment(uuid.New().String(), "c-1")
	require.NoError(t, store.Enrollments().Create(ctx, enrollment))

	fresh, err := store.Enrollments().GetByID(ctx, enrollment.ID)
	require.NoError(t, err)

	stale, err := store.Enrollments().GetByID(ctx, enrollment.ID)
	require.NoError(t, err)

	fresh.ExitReason = "first writer"
	require.NoError(t, store.Enrollments().Update(ctx, fresh))
	assert.Equal(t, int64(1), fresh.Version)

	stale.ExitReason = "second writer"
	err = store.Enrollments().Update(ctx, stale)
	require.Error(t, err)
	assert.True(t, persistence.IsEnrollmentConflict(err))
}

func TestEnrollmentRepository_FindActive(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	automationID := uuid.New().String()

	enrollment := sampleEnrollment(automationID, "c-1")
	require.NoError(t, store.Enrollments().Create(ctx, enrollment))

	found, err := store.Enrollments().FindActive(ctx, automationID, "c-1")
	require.NoError(t, err)
	assert.Equal(t, enrollment.ID, found.ID)

	_, err = store.Enrollments().FindActive(ctx, automationID, "c-2")
	require.Error(t, err)
	assert.True(t, persistence.IsEnrollmentNotFound(err))
}

func TestEnrollmentRepository_ListDue(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	due := sampleEnrollment(uuid.New().String(), "c-1")
	due.WaitUntil = &past
	require.NoError(t, store.Enrollments().Create(ctx, due))

	notYet := sampleEnrollment(uuid.New().String(), "c-2")
	notYet.WaitUntil = &future
	require.NoError(t, store.Enrollments().Create(ctx, notYet))

	terminal := sampleEnrollment(uuid.New().String(), "c-3")
	terminal.WaitUntil = &past
	terminal.Status = models.EnrollmentStatusExited
	require.NoError(t, store.Enrollments().Create(ctx, terminal))

	running := sampleEnrollment(uuid.New().String(), "c-4")
	require.NoError(t, store.Enrollments().Create(ctx, running))

	dueList, err := store.Enrollments().ListDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, dueList, 1)
	assert.Equal(t, due.ID, dueList[0].ID)
}

func TestLogRepository_AppendAndList(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	enrollmentID := uuid.New().String()
	base := time.Now().UTC()

	for i, status := range []models.ExecutionStatus{
		models.ExecutionStatusExecuting,
		models.ExecutionStatusCompleted,
	} {
		entry := &models.AutomationLog{
			ID:           uuid.New().String(),
			AutomationID: "auto-1",
			EnrollmentID: enrollmentID,
			ContactID:    "c-1",
			StepID:       "s1",
			StepType:     models.StepSendEmail,
			Status:       status,
			ExecutedAt:   base.Add(time.Duration(i) * time.Millisecond),
		}
		require.NoError(t, store.Logs().Append(ctx, entry))
	}

	entries, err := store.Logs().ListByEnrollment(ctx, enrollmentID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ExecutionStatusExecuting, entries[0].Status)
	assert.Equal(t, models.ExecutionStatusCompleted, entries[1].Status)

	empty, err := store.Logs().ListByEnrollment(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
