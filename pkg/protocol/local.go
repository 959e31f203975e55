package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// LocalDirectory is an in-memory ContactDirectory for local development and
// tests. Safe for concurrent use.
type LocalDirectory struct {
	mu       sync.RWMutex
	contacts map[string]*Contact
}

func NewLocalDirectory() *LocalDirectory {
	return &LocalDirectory{
		contacts: make(map[string]*Contact),
	}
}

// PutContact seeds or replaces a contact record.
func (d *LocalDirectory) PutContact(contact *Contact) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stored := *contact
	if stored.Fields == nil {
		stored.Fields = make(map[string]any)
	}

	d.contacts[contact.ID] = &stored
}

func (d *LocalDirectory) GetContact(_ context.Context, id string) (*Contact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	contact, ok := d.contacts[id]
	if !ok {
		return nil, fmt.Errorf("contact %s not found", id)
	}

	clone := *contact
	clone.Fields = make(map[string]any, len(contact.Fields))
	for k, v := range contact.Fields {
		clone.Fields[k] = v
	}

	clone.Tags = slices.Clone(contact.Tags)

	return &clone, nil
}

func (d *LocalDirectory) SetTags(_ context.Context, id string, tags []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	contact, ok := d.contacts[id]
	if !ok {
		return fmt.Errorf("contact %s not found", id)
	}

	contact.Tags = slices.Clone(tags)

	return nil
}

func (d *LocalDirectory) SetField(_ context.Context, id, name string, value any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	contact, ok := d.contacts[id]
	if !ok {
		return fmt.Errorf("contact %s not found", id)
	}

	if contact.Fields == nil {
		contact.Fields = make(map[string]any)
	}

	contact.Fields[name] = value

	return nil
}

// LogDeliverer is an EmailDeliverer that only logs the delivery request.
// Useful when no delivery backend is wired, e.g. local development.
type LogDeliverer struct {
	Logger *slog.Logger
}

func (d *LogDeliverer) Send(ctx context.Context, templateID, contactID string) error {
	d.Logger.InfoContext(ctx, "Accepted email for delivery",
		"template_id", templateID,
		"contact_id", contactID)

	return nil
}

// StaticSegments is a SegmentResolver backed by a fixed membership map.
type StaticSegments struct {
	mu         sync.RWMutex
	membership map[string][]string
}

func NewStaticSegments() *StaticSegments {
	return &StaticSegments{
		membership: make(map[string][]string),
	}
}

// PutSegments sets the segment ids for a contact.
func (s *StaticSegments) PutSegments(contactID string, segmentIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.membership[contactID] = slices.Clone(segmentIDs)
}

func (s *StaticSegments) SegmentsFor(_ context.Context, contactID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.membership[contactID]), nil
}
