package audit

import (
	"context"
	"strings"

	"github.com/nerrad567/gray-logic-fleet/internal/fleet"
)

// sourceUnknown is recorded when a report carries no channel tag.
const sourceUnknown = "internal"

// Sink records every fleet event as an audit log entry.
type Sink struct {
	repo Repository
}

// NewSink creates an event sink writing to repo.
func NewSink(repo Repository) *Sink {
	return &Sink{repo: repo}
}

// Publish implements fleet.EventSink.
func (s *Sink) Publish(ctx context.Context, event fleet.Event) error {
	return s.repo.Create(ctx, FromEvent(event))
}

// FromEvent maps a fleet event onto an audit entry. The action is the
// event type without its "device." prefix.
func FromEvent(event fleet.Event) *AuditLog {
	source := event.Source
	if source == "" {
		source = sourceUnknown
	}

	details := map[string]any{"created": event.Created}
	if event.IPAddress != "" {
		details["ip_address"] = event.IPAddress
	}
	if event.Email != "" {
		details["email"] = event.Email
	}

	return &AuditLog{
		Action:    strings.TrimPrefix(string(event.Type), "device."),
		Serial:    event.Serial,
		UserID:    event.UserID,
		Source:    source,
		Details:   details,
		CreatedAt: event.Timestamp,
	}
}
