package events

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rsvphq/journey/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidPayload indicates an inbound trigger payload failed schema validation.
var ErrInvalidPayload = errors.New("invalid trigger payload")

// Per-trigger-type payload schemas. Every payload must carry the contact
// reference; trigger-specific keys are required where matching depends on them.
var triggerPayloadSchemas = map[models.TriggerType]string{
	models.TriggerContactCreated: `{
		"type": "object",
		"required": ["contact_id"],
		"properties": {
			"contact_id":   {"type": "string", "minLength": 1},
			"contact_type": {"type": "string"}
		}
	}`,
	models.TriggerTicketPurchased: `{
		"type": "object",
		"required": ["contact_id"],
		"properties": {
			"contact_id":  {"type": "string", "minLength": 1},
			"ticket_type": {"type": "string"}
		}
	}`,
	models.TriggerTagAdded: `{
		"type": "object",
		"required": ["contact_id", "tag_id"],
		"properties": {
			"contact_id": {"type": "string", "minLength": 1},
			"tag_id":     {"type": "string", "minLength": 1}
		}
	}`,
	models.TriggerConsentGiven: `{
		"type": "object",
		"required": ["contact_id", "consent_type"],
		"properties": {
			"contact_id":   {"type": "string", "minLength": 1},
			"consent_type": {"type": "string", "minLength": 1}
		}
	}`,
}

const defaultPayloadSchema = `{
	"type": "object",
	"required": ["contact_id"],
	"properties": {
		"contact_id": {"type": "string", "minLength": 1}
	}
}`

// ValidateTriggerPayload checks an inbound payload against the schema for its
// trigger type before the event reaches the matcher.
func ValidateTriggerPayload(triggerType models.TriggerType, payload map[string]any) error {
	if !triggerType.IsValid() {
		return fmt.Errorf("%w: unknown trigger type %q", ErrInvalidPayload, triggerType)
	}

	schema, ok := triggerPayloadSchemas[triggerType]
	if !ok {
		schema = defaultPayloadSchema
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewGoLoader(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to validate trigger payload: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("%w for %s: %s", ErrInvalidPayload, triggerType, strings.Join(details, "; "))
	}

	return nil
}
