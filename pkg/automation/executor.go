package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rsvphq/journey/pkg/models"
	"github.com/rsvphq/journey/pkg/otelhelper"
	"github.com/rsvphq/journey/pkg/persistence"
	"github.com/rsvphq/journey/pkg/protocol"
)

// Side-effect steps get a bounded number of retries with exponential backoff
// before the enrollment is marked failed. Pure steps never retry.
const (
	stepRetryMax      = 2
	stepRetryInterval = 250 * time.Millisecond
)

// ExecutionResult is the outcome of one step attempt.
type ExecutionResult struct {
	Status models.ExecutionStatus
	Output map[string]any
	Error  string

	// WaitUntil suspends the enrollment until the given time.
	WaitUntil *time.Time

	// NextStepIDOverride carries the branch target resolved by a condition
	// step. It may be nil even for conditions, meaning the branch has no
	// target and the enrollment completes.
	NextStepIDOverride *string
}

// Executor performs a step's side effect against the collaborators and
// reports the outcome. Every invocation writes two audit entries: one as
// executing before dispatch and one with the final status after.
type Executor struct {
	logger   *slog.Logger
	logs     persistence.LogRepository
	contacts protocol.ContactDirectory
	mailer   protocol.EmailDeliverer
	segments protocol.SegmentResolver
	tracer   trace.Tracer

	now func() time.Time
}

func NewExecutor(
	logger *slog.Logger,
	logs persistence.LogRepository,
	contacts protocol.ContactDirectory,
	mailer protocol.EmailDeliverer,
	segments protocol.SegmentResolver,
) *Executor {
	return &Executor{
		logger:   logger.With("module", "step_executor"),
		logs:     logs,
		contacts: contacts,
		mailer:   mailer,
		segments: segments,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithTracer enables span creation around step execution.
func (e *Executor) WithTracer(tracer trace.Tracer) *Executor {
	e.tracer = tracer

	return e
}

// Execute dispatches on the step type and returns the outcome. Errors from
// collaborators are converted into a failed result, never propagated.
func (e *Executor) Execute(ctx context.Context, step *models.AutomationStep, enrollment *models.AutomationEnrollment) ExecutionResult {
	logger := e.logger.With(
		"automation_id", enrollment.AutomationID,
		"enrollment_id", enrollment.ID,
		"step_id", step.ID,
		"step_type", step.Type)

	if e.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "step.execute",
			attribute.String(otelhelper.AutomationIDKey, enrollment.AutomationID),
			attribute.String(otelhelper.EnrollmentIDKey, enrollment.ID),
			attribute.String(otelhelper.StepIDKey, step.ID),
			attribute.String(otelhelper.StepTypeKey, string(step.Type)))
		defer span.End()
	}

	input := stepInput(step)
	e.appendLog(ctx, step, enrollment, models.ExecutionStatusExecuting, input, nil, "")

	logger.Info("Executing step")

	result := e.dispatch(ctx, step, enrollment)

	e.appendLog(ctx, step, enrollment, result.Status, input, result.Output, result.Error)

	if result.Status == models.ExecutionStatusFailed {
		logger.Error("Step execution failed", "error", result.Error)
		otelhelper.SetError(trace.SpanFromContext(ctx), errors.New(result.Error),
			attribute.String(otelhelper.StepIDKey, step.ID))
	} else {
		logger.Info("Step executed", "status", result.Status)
	}

	return result
}

func (e *Executor) dispatch(ctx context.Context, step *models.AutomationStep, enrollment *models.AutomationEnrollment) ExecutionResult {
	switch step.Type {
	case models.StepSendEmail:
		return e.executeSendEmail(ctx, step, enrollment)
	case models.StepWait:
		return e.executeWait(step)
	case models.StepCondition:
		return e.executeCondition(ctx, step, enrollment)
	case models.StepAddTag:
		return e.executeAddTag(ctx, step, enrollment)
	case models.StepRemoveTag:
		return e.executeRemoveTag(ctx, step, enrollment)
	case models.StepUpdateField:
		return e.executeUpdateField(ctx, step, enrollment)
	case models.StepWebhook:
		return e.executeWebhook(step)
	default:
		return failedResult(fmt.Sprintf("unknown step type: %s", step.Type))
	}
}

func (e *Executor) executeSendEmail(ctx context.Context, step *models.AutomationStep, enrollment *models.AutomationEnrollment) ExecutionResult {
	config := step.Config.SendEmail
	if config == nil {
		return failedResult("send_email step has no configuration")
	}

	err := e.withRetry(ctx, func() error {
		return e.mailer.Send(ctx, config.TemplateID, enrollment.ContactID)
	})
	if err != nil {
		return failedResult(fmt.Sprintf("email delivery rejected: %v", err))
	}

	return completedResult(map[string]any{"template_id": config.TemplateID})
}

func (e *Executor) executeWait(step *models.AutomationStep) ExecutionResult {
	config := step.Config.Wait
	if config == nil {
		return failedResult("wait step has no configuration")
	}

	until, err := config.Until(e.now())
	if err != nil {
		return failedResult(err.Error())
	}

	result := completedResult(map[string]any{"wait_until": until.Format(time.RFC3339)})
	result.WaitUntil = &until

	return result
}

func (e *Executor) executeCondition(ctx context.Context, step *models.AutomationStep, enrollment *models.AutomationEnrollment) ExecutionResult {
	config := step.Config.Condition
	if config == nil {
		return failedResult("condition step has no configuration")
	}

	// Always evaluate against freshly fetched contact state.
	contact, err := e.contacts.GetContact(ctx, enrollment.ContactID)
	if err != nil {
		return failedResult(fmt.Sprintf("failed to fetch contact: %v", err))
	}

	segments, err := e.segments.SegmentsFor(ctx, enrollment.ContactID)
	if err != nil {
		return failedResult(fmt.Sprintf("failed to resolve segments: %v", err))
	}

	snapshot := models.ContactSnapshot{
		Fields:   contact.Fields,
		Tags:     contact.Tags,
		Segments: segments,
	}

	outcome, err := models.EvaluateCondition(config, snapshot)
	if err != nil {
		return failedResult(err.Error())
	}

	result := completedResult(map[string]any{"result": outcome})

	if outcome {
		result.NextStepIDOverride = config.TrueBranchStepID
	} else {
		result.NextStepIDOverride = config.FalseBranchStepID
	}

	return result
}

func (e *Executor) executeAddTag(ctx context.Context, step *models.AutomationStep, enrollment *models.AutomationEnrollment) ExecutionResult {
	config := step.Config.AddTag
	if config == nil {
		return failedResult("add_tag step has no configuration")
	}

	err := e.withRetry(ctx, func() error {
		contact, err := e.contacts.GetContact(ctx, enrollment.ContactID)
		if err != nil {
			return err
		}

		// Idempotent: adding an existing tag is a no-op.
		if slices.Contains(contact.Tags, config.TagID) {
			return nil
		}

		return e.contacts.SetTags(ctx, enrollment.ContactID, append(contact.Tags, config.TagID))
	})
	if err != nil {
		return failedResult(fmt.Sprintf("failed to add tag: %v", err))
	}

	return completedResult(map[string]any{"tag_id": config.TagID})
}

func (e *Executor) executeRemoveTag(ctx context.Context, step *models.AutomationStep, enrollment *models.AutomationEnrollment) ExecutionResult {
	config := step.Config.RemoveTag
	if config == nil {
		return failedResult("remove_tag step has no configuration")
	}

	err := e.withRetry(ctx, func() error {
		contact, err := e.contacts.GetContact(ctx, enrollment.ContactID)
		if err != nil {
			return err
		}

		tags := slices.DeleteFunc(slices.Clone(contact.Tags), func(tag string) bool {
			return tag == config.TagID
		})

		return e.contacts.SetTags(ctx, enrollment.ContactID, tags)
	})
	if err != nil {
		return failedResult(fmt.Sprintf("failed to remove tag: %v", err))
	}

	return completedResult(map[string]any{"tag_id": config.TagID})
}

func (e *Executor) executeUpdateField(ctx context.Context, step *models.AutomationStep, enrollment *models.AutomationEnrollment) ExecutionResult {
	config := step.Config.UpdateField
	if config == nil {
		return failedResult("update_field step has no configuration")
	}

	err := e.withRetry(ctx, func() error {
		return e.contacts.SetField(ctx, enrollment.ContactID, config.Field, config.Value)
	})
	if err != nil {
		return failedResult(fmt.Sprintf("failed to update field: %v", err))
	}

	return completedResult(map[string]any{"field": config.Field, "value": config.Value})
}

func (e *Executor) executeWebhook(step *models.AutomationStep) ExecutionResult {
	config := step.Config.Webhook
	if config == nil {
		return failedResult("webhook step has no configuration")
	}

	// Dispatch mechanics belong to an external collaborator; the engine only
	// records the target.
	return completedResult(map[string]any{"url": config.URL})
}

func (e *Executor) withRetry(ctx context.Context, operation func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = stepRetryInterval

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, stepRetryMax), ctx))
}

func (e *Executor) appendLog(
	ctx context.Context,
	step *models.AutomationStep,
	enrollment *models.AutomationEnrollment,
	status models.ExecutionStatus,
	input, output map[string]any,
	errorMessage string,
) {
	entry := &models.AutomationLog{
		ID:           uuid.New().String(),
		AutomationID: enrollment.AutomationID,
		EnrollmentID: enrollment.ID,
		ContactID:    enrollment.ContactID,
		StepID:       step.ID,
		StepType:     step.Type,
		Status:       status,
		Input:        input,
		Output:       output,
		Error:        errorMessage,
		ExecutedAt:   e.now(),
	}

	if err := e.logs.Append(ctx, entry); err != nil {
		// Audit failures must not interrupt execution.
		e.logger.Warn("Failed to append audit log entry",
			"enrollment_id", enrollment.ID,
			"step_id", step.ID,
			"error", err)
	}
}

func stepInput(step *models.AutomationStep) map[string]any {
	data, err := json.Marshal(step.Config)
	if err != nil {
		return nil
	}

	var input map[string]any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil
	}

	return input
}

func completedResult(output map[string]any) ExecutionResult {
	return ExecutionResult{
		Status: models.ExecutionStatusCompleted,
		Output: output,
	}
}

func failedResult(message string) ExecutionResult {
	return ExecutionResult{
		Status: models.ExecutionStatusFailed,
		Error:  message,
	}
}
