// Package protocol defines the collaborator contracts the automation engine
// consumes. Implementations live outside the engine; the in-process ones here
// exist for local development and tests.
package protocol

import "context"

// Contact is the directory's view of a contact: free-form field values plus
// the current tag set.
type Contact struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
	Tags   []string       `json:"tags"`
}

// ContactDirectory reads and mutates contact records.
type ContactDirectory interface {
	GetContact(ctx context.Context, id string) (*Contact, error)
	SetTags(ctx context.Context, id string, tags []string) error
	SetField(ctx context.Context, id, name string, value any) error
}

// EmailDeliverer hands a template off for delivery. Fire-and-forget is
// acceptable; the engine only cares about accept/reject.
type EmailDeliverer interface {
	Send(ctx context.Context, templateID, contactID string) error
}

// SegmentResolver returns the segment ids a contact currently belongs to.
type SegmentResolver interface {
	SegmentsFor(ctx context.Context, contactID string) ([]string, error)
}
