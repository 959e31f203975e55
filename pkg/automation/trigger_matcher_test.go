package automation

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsvphq/journey/pkg/events"
	"github.com/rsvphq/journey/pkg/models"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		config   models.TriggerConfig
		incoming models.TriggerType
		payload  map[string]any
		want     bool
	}{
		{
			name:     "cross type never matches",
			config:   models.TriggerConfig{Type: models.TriggerContactCreated},
			incoming: models.TriggerTicketPurchased,
			payload:  map[string]any{},
			want:     false,
		},
		{
			name:     "contact created without allow-list",
			config:   models.TriggerConfig{Type: models.TriggerContactCreated},
			incoming: models.TriggerContactCreated,
			payload:  map[string]any{"contact_id": "c-1"},
			want:     true,
		},
		{
			name: "contact created allow-list hit",
			config: models.TriggerConfig{
				Type:         models.TriggerContactCreated,
				ContactTypes: []string{"speaker", "sponsor"},
			},
			incoming: models.TriggerContactCreated,
			payload:  map[string]any{"contact_type": "speaker"},
			want:     true,
		},
		{
			name: "contact created allow-list miss",
			config: models.TriggerConfig{
				Type:         models.TriggerContactCreated,
				ContactTypes: []string{"speaker"},
			},
			incoming: models.TriggerContactCreated,
			payload:  map[string]any{"contact_type": "attendee"},
			want:     false,
		},
		{
			name:     "ticket purchased without allow-list",
			config:   models.TriggerConfig{Type: models.TriggerTicketPurchased},
			incoming: models.TriggerTicketPurchased,
			payload:  map[string]any{"ticket_type": "Workshop Pass"},
			want:     true,
		},
		{
			name: "ticket purchased allow-list hit",
			config: models.TriggerConfig{
				Type:        models.TriggerTicketPurchased,
				TicketTypes: []string{"Workshop Pass"},
			},
			incoming: models.TriggerTicketPurchased,
			payload:  map[string]any{"ticket_type": "Workshop Pass"},
			want:     true,
		},
		{
			name: "tag added matching tag",
			config: models.TriggerConfig{
				Type:   models.TriggerTagAdded,
				TagIDs: []string{"vip", "speaker"},
			},
			incoming: models.TriggerTagAdded,
			payload:  map[string]any{"tag_id": "vip"},
			want:     true,
		},
		{
			name: "tag added other tag",
			config: models.TriggerConfig{
				Type:   models.TriggerTagAdded,
				TagIDs: []string{"vip"},
			},
			incoming: models.TriggerTagAdded,
			payload:  map[string]any{"tag_id": "newsletter"},
			want:     false,
		},
		{
			name:     "tag added with empty tag set never matches",
			config:   models.TriggerConfig{Type: models.TriggerTagAdded},
			incoming: models.TriggerTagAdded,
			payload:  map[string]any{"tag_id": "vip"},
			want:     false,
		},
		{
			name: "consent given exact kind",
			config: models.TriggerConfig{
				Type:        models.TriggerConsentGiven,
				ConsentType: "marketing",
			},
			incoming: models.TriggerConsentGiven,
			payload:  map[string]any{"consent_type": "marketing"},
			want:     true,
		},
		{
			name: "consent given other kind",
			config: models.TriggerConfig{
				Type:        models.TriggerConsentGiven,
				ConsentType: "marketing",
			},
			incoming: models.TriggerConsentGiven,
			payload:  map[string]any{"consent_type": "photography"},
			want:     false,
		},
		{
			name:     "checked in is unconditional",
			config:   models.TriggerConfig{Type: models.TriggerCheckedIn},
			incoming: models.TriggerCheckedIn,
			payload:  map[string]any{},
			want:     true,
		},
		{
			name:     "talk accepted is unconditional",
			config:   models.TriggerConfig{Type: models.TriggerTalkAccepted},
			incoming: models.TriggerTalkAccepted,
			payload:  nil,
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.config, tt.incoming, tt.payload))
		})
	}
}

func TestMatchAutomations(t *testing.T) {
	matcher := NewTriggerMatcher(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	automations := []*models.Automation{
		{
			ID:     "auto-active",
			Name:   "VIP welcome",
			Status: models.AutomationStatusActive,
			Trigger: models.TriggerConfig{
				Type:   models.TriggerTagAdded,
				TagIDs: []string{"vip"},
			},
		},
		{
			ID:     "auto-paused",
			Name:   "Paused twin",
			Status: models.AutomationStatusPaused,
			Trigger: models.TriggerConfig{
				Type:   models.TriggerTagAdded,
				TagIDs: []string{"vip"},
			},
		},
		{
			ID:     "auto-other-trigger",
			Name:   "Check-in follow up",
			Status: models.AutomationStatusActive,
			Trigger: models.TriggerConfig{
				Type: models.TriggerCheckedIn,
			},
		},
	}

	event := events.TriggerEvent{
		ID:          "evt-1",
		TriggerType: models.TriggerTagAdded,
		ScopeID:     "scope-1",
		Payload:     map[string]any{"contact_id": "c-1", "tag_id": "vip"},
	}

	matches := matcher.MatchAutomations(event, automations)
	require.Len(t, matches, 1)
	assert.Equal(t, "auto-active", matches[0].ID)
}
