package models

// TriggerType identifies the domain event kind that can enroll a contact.
type TriggerType string

const (
	TriggerContactCreated  TriggerType = "contact_created"
	TriggerTicketPurchased TriggerType = "ticket_purchased"
	TriggerTagAdded        TriggerType = "tag_added"
	TriggerConsentGiven    TriggerType = "consent_given"
	TriggerCheckedIn       TriggerType = "checked_in"
	TriggerTalkSubmitted   TriggerType = "talk_submitted"
	TriggerTalkAccepted    TriggerType = "talk_accepted"
	TriggerTalkRejected    TriggerType = "talk_rejected"
)

// IsValid checks if the trigger type is one of the known kinds.
func (t TriggerType) IsValid() bool {
	switch t {
	case TriggerContactCreated, TriggerTicketPurchased, TriggerTagAdded,
		TriggerConsentGiven, TriggerCheckedIn, TriggerTalkSubmitted,
		TriggerTalkAccepted, TriggerTalkRejected:
		return true
	default:
		return false
	}
}

// TriggerConfig describes when an automation enrolls a contact. Type is the
// discriminator; the optional filter fields only apply to their trigger type.
type TriggerConfig struct {
	Type TriggerType `json:"type" validate:"required"`

	// ContactTypes is an optional allow-list for contact_created triggers.
	ContactTypes []string `json:"contact_types,omitempty"`

	// TicketTypes is an optional allow-list for ticket_purchased triggers.
	TicketTypes []string `json:"ticket_types,omitempty"`

	// TagIDs is the mandatory tag set for tag_added triggers.
	TagIDs []string `json:"tag_ids,omitempty"`

	// ConsentType is the exact consent kind for consent_given triggers.
	ConsentType string `json:"consent_type,omitempty"`
}
