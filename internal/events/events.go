// Package events publishes lead lifecycle events to in-process subscribers
// and, optionally, to RabbitMQ.
package events

import (
	"context"
	"errors"
	"time"
)

// Event types.
const (
	LeadIngested       = "lead.ingested"
	LeadMaterialized   = "lead.materialized"
	LeadUpdated        = "lead.updated"
	LeadArchived       = "lead.archived"
	LeadAutoArchived   = "lead.auto_archived"
	LeadDropped        = "lead.dropped"
	FollowUpOverdue    = "followup.overdue"
	PipelineRefreshed  = "pipeline.refreshed"
	TransitionRejected = "transition.rejected"
	StructuralOpFailed = "action.failed"
)

// Event is a single lifecycle notification.
type Event struct {
	Type   string         `json:"type"`
	LeadID string         `json:"lead_id,omitempty"`
	At     time.Time      `json:"at"`
	Data   map[string]any `json:"data,omitempty"`
}

// New creates an event stamped with the current time.
func New(typ, leadID string, data map[string]any) Event {
	return Event{Type: typ, LeadID: leadID, At: time.Now().UTC(), Data: data}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Multi fans an event out to several publishers and joins their errors.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(context.Context, Event) error { return nil }
