package events

import (
	"time"

	"github.com/rsvphq/journey/pkg/models"
)

// TriggerEvent is an inbound domain event handed to the engine for matching
// and enrollment. Payload shape depends on the trigger type; see schemas.go.
type TriggerEvent struct {
	ID          string             `json:"id"`
	TriggerType models.TriggerType `json:"trigger_type" validate:"required"`
	ScopeID     string             `json:"scope_id"     validate:"required"`
	Payload     map[string]any     `json:"payload"`
	ReceivedAt  time.Time          `json:"received_at"`
}

// ContactID extracts the contact reference every trigger payload must carry.
func (e TriggerEvent) ContactID() string {
	contactID, _ := e.Payload["contact_id"].(string)

	return contactID
}
