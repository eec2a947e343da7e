package fleet

import (
	"context"
	"errors"
	"time"
)

// EventType names a fleet event. Sinks use it in topics and channels.
type EventType string

// Fleet event types.
const (
	// EventRegistered is emitted when RegisterDevice creates a record.
	EventRegistered EventType = "device.registered"

	// EventHeartbeat is emitted when RegisterDevice refreshes an existing record.
	EventHeartbeat EventType = "device.heartbeat"

	// EventAssigned is emitted after AssignUser.
	EventAssigned EventType = "device.assigned"
)

// Event describes a completed reconciliation.
type Event struct {
	Type      EventType `json:"type"`
	Serial    string    `json:"serial"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Created   bool      `json:"created"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Channels a report can arrive on, carried in Event.Source.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

type sourceKey struct{}

// WithSource tags ctx with the channel the current report arrived on.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the channel set by WithSource, or "".
func SourceFrom(ctx context.Context) string {
	source, _ := ctx.Value(sourceKey{}).(string)
	return source
}

// EventSink receives fleet events.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, event Event) error

// Publish calls f.
func (f EventSinkFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// MultiSink publishes to every sink in order and joins their errors.
type MultiSink []EventSink

// Publish delivers event to all sinks. One failing sink does not stop the others.
func (m MultiSink) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// discardSink drops events.
type discardSink struct{}

func (discardSink) Publish(context.Context, Event) error { return nil }
