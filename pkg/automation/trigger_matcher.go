package automation

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/rsvphq/journey/pkg/events"
	"github.com/rsvphq/journey/pkg/models"
)

// TriggerMatcher filters automations against inbound trigger events.
type TriggerMatcher struct {
	logger *slog.Logger
}

// NewTriggerMatcher creates a new trigger matcher.
func NewTriggerMatcher(logger *slog.Logger) *TriggerMatcher {
	return &TriggerMatcher{
		logger: logger.With("module", "trigger_matcher"),
	}
}

// MatchAutomations returns the active automations whose trigger configuration
// matches the event.
func (tm *TriggerMatcher) MatchAutomations(event events.TriggerEvent, automations []*models.Automation) []*models.Automation {
	var matches []*models.Automation

	tm.logger.Debug("Matching trigger event against automations",
		"trigger_type", event.TriggerType,
		"scope_id", event.ScopeID,
		"automations_count", len(automations))

	for _, automation := range automations {
		if automation.Status != models.AutomationStatusActive {
			continue
		}

		if Matches(automation.Trigger, event.TriggerType, event.Payload) {
			matches = append(matches, automation)

			tm.logger.Debug("Found matching automation",
				"automation_id", automation.ID,
				"automation_name", automation.Name,
				"trigger_type", automation.Trigger.Type)
		}
	}

	tm.logger.Info("Completed trigger matching",
		"trigger_type", event.TriggerType,
		"scope_id", event.ScopeID,
		"matches_found", len(matches))

	return matches
}

// Matches reports whether a trigger configuration accepts an inbound event.
// Pure function over its three inputs; no side effects.
func Matches(config models.TriggerConfig, incoming models.TriggerType, payload map[string]any) bool {
	if config.Type != incoming {
		return false
	}

	switch config.Type {
	case models.TriggerContactCreated:
		// Matches unconditionally unless a contact-type allow-list is set.
		if len(config.ContactTypes) == 0 {
			return true
		}

		return slices.Contains(config.ContactTypes, payloadString(payload, "contact_type"))
	case models.TriggerTicketPurchased:
		if len(config.TicketTypes) == 0 {
			return true
		}

		return slices.Contains(config.TicketTypes, payloadString(payload, "ticket_type"))
	case models.TriggerTagAdded:
		// The tag set is mandatory for this trigger type.
		if len(config.TagIDs) == 0 {
			return false
		}

		return slices.Contains(config.TagIDs, payloadString(payload, "tag_id"))
	case models.TriggerConsentGiven:
		return config.ConsentType == payloadString(payload, "consent_type")
	case models.TriggerCheckedIn, models.TriggerTalkSubmitted,
		models.TriggerTalkAccepted, models.TriggerTalkRejected:
		return true
	default:
		return false
	}
}

func payloadString(payload map[string]any, key string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}

	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", value)
}
