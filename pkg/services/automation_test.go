package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsvphq/journey/pkg/models"
	"github.com/rsvphq/journey/pkg/persistence"
	"github.com/rsvphq/journey/pkg/persistence/file"
	"github.com/rsvphq/journey/pkg/services"
)

func newService(t *testing.T) *services.Automation {
	t.Helper()

	return services.NewAutomation(file.NewPersistence(t.TempDir()))
}

func createRequest() *services.CreateAutomationRequest {
	return &services.CreateAutomationRequest{
		ScopeID: "scope-1",
		Name:    "Welcome sequence",
		Trigger: models.TriggerConfig{Type: models.TriggerContactCreated},
	}
}

func emailStepRequest() *services.AddStepRequest {
	return &services.AddStepRequest{
		Type:   models.StepSendEmail,
		Config: models.StepConfig{SendEmail: &models.SendEmailConfig{TemplateID: "tpl-welcome"}},
	}
}

func TestCreateAutomation(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	automation, err := service.CreateAutomation(ctx, createRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, automation.ID)
	assert.Equal(t, models.AutomationStatusDraft, automation.Status)
	assert.Equal(t, models.TriggerContactCreated, automation.Trigger.Type)
	assert.Nil(t, automation.StartStepID)
}

func TestCreateAutomation_Validation(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	noName := createRequest()
	noName.Name = ""
	_, err := service.CreateAutomation(ctx, noName)
	require.ErrorIs(t, err, services.ErrNameRequired)

	noScope := createRequest()
	noScope.ScopeID = ""
	_, err = service.CreateAutomation(ctx, noScope)
	require.ErrorIs(t, err, services.ErrScopeRequired)

	badTrigger := createRequest()
	badTrigger.Trigger = models.TriggerConfig{Type: "page_viewed"}
	_, err = service.CreateAutomation(ctx, badTrigger)
	require.ErrorIs(t, err, services.ErrInvalidTrigger)
}

func TestAddStep_FirstStepBecomesStart(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	automation, err := service.CreateAutomation(ctx, createRequest())
	require.NoError(t, err)

	first, err := service.AddStep(ctx, automation.ID, emailStepRequest())
	require.NoError(t, err)
	assert.Equal(t, 0, first.Position)

	second, err := service.AddStep(ctx, automation.ID, &services.AddStepRequest{
		Type:   models.StepAddTag,
		Config: models.StepConfig{AddTag: &models.AddTagConfig{TagID: "welcomed"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Position)

	stored, err := service.GetAutomation(ctx, automation.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.StartStepID)
	assert.Equal(t, first.ID, *stored.StartStepID)
}

func TestAddStep_RejectsInvalidConfig(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	automation, err := service.CreateAutomation(ctx, createRequest())
	require.NoError(t, err)

	_, err = service.AddStep(ctx, automation.ID, &services.AddStepRequest{
		Type: models.StepWait,
		Config: models.StepConfig{
			Wait: &models.WaitConfig{Duration: 0, Unit: models.WaitUnitHours},
		},
	})
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))

	_, err = service.AddStep(ctx, automation.ID, &services.AddStepRequest{Type: "teleport"})
	require.ErrorIs(t, err, services.ErrInvalidStepType)
}

func TestActivate(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	automation, err := service.CreateAutomation(ctx, createRequest())
	require.NoError(t, err)

	// No steps yet.
	_, err = service.Activate(ctx, automation.ID)
	require.ErrorIs(t, err, services.ErrActivationBlocked)
	assert.Contains(t, err.Error(), "no steps")

	_, err = service.AddStep(ctx, automation.ID, emailStepRequest())
	require.NoError(t, err)

	activated, err := service.Activate(ctx, automation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AutomationStatusActive, activated.Status)

	// Activating an active automation is a no-op.
	again, err := service.Activate(ctx, automation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AutomationStatusActive, again.Status)
}

func TestActivate_MissingStartStep(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	automation, err := service.CreateAutomation(ctx, createRequest())
	require.NoError(t, err)

	step, err := service.AddStep(ctx, automation.ID, emailStepRequest())
	require.NoError(t, err)

	// Deleting the start step clears the anchor.
	require.NoError(t, service.DeleteStep(ctx, automation.ID, step.ID))

	_, err = service.Activate(ctx, automation.ID)
	require.ErrorIs(t, err, services.ErrActivationBlocked)
}

func TestPause(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	automation, err := service.CreateAutomation(ctx, createRequest())
	require.NoError(t, err)

	// Draft automations cannot be paused.
	_, err = service.Pause(ctx, automation.ID)
	require.ErrorIs(t, err, services.ErrInvalidTransition)

	_, err = service.AddStep(ctx, automation.ID, emailStepRequest())
	require.NoError(t, err)
	_, err = service.Activate(ctx, automation.ID)
	require.NoError(t, err)

	paused, err := service.Pause(ctx, automation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AutomationStatusPaused, paused.Status)

	// Paused automations can be reactivated.
	reactivated, err := service.Activate(ctx, automation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AutomationStatusActive, reactivated.Status)
}

func TestUpdateAutomation(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	automation, err := service.CreateAutomation(ctx, createRequest())
	require.NoError(t, err)

	name := "Renamed sequence"
	trigger := models.TriggerConfig{Type: models.TriggerTagAdded, TagIDs: []string{"vip"}}

	updated, err := service.UpdateAutomation(ctx, automation.ID, &services.UpdateAutomationRequest{
		Name:    &name,
		Trigger: &trigger,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed sequence", updated.Name)
	assert.Equal(t, models.TriggerTagAdded, updated.Trigger.Type)
}

func TestActiveAutomationIsFrozen(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	automation, err := service.CreateAutomation(ctx, createRequest())
	require.NoError(t, err)

	step, err := service.AddStep(ctx, automation.ID, emailStepRequest())
	require.NoError(t, err)

	_, err = service.Activate(ctx, automation.ID)
	require.NoError(t, err)

	// Steps and trigger are frozen while active; a rename is still allowed.
	_, err = service.AddStep(ctx, automation.ID, emailStepRequest())
	require.ErrorIs(t, err, services.ErrCannotModifyActive)

	err = service.DeleteStep(ctx, automation.ID, step.ID)
	require.ErrorIs(t, err, services.ErrCannotModifyActive)

	trigger := models.TriggerConfig{Type: models.TriggerCheckedIn}
	_, err = service.UpdateAutomation(ctx, automation.ID, &services.UpdateAutomationRequest{Trigger: &trigger})
	require.ErrorIs(t, err, services.ErrCannotModifyActive)

	name := "Renamed while active"
	updated, err := service.UpdateAutomation(ctx, automation.ID, &services.UpdateAutomationRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
}

func TestGetSteps_UnknownAutomation(t *testing.T) {
	service := newService(t)

	_, err := service.GetSteps(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsAutomationNotFound(err))
}
