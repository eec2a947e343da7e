package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-fleet/internal/fleet"
)

// Publisher is the subset of Client used by EventSink.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// EventSink publishes fleet events as JSON to {prefix}/device/{serial}/{event}.
// Events are not retained; the store is the source of truth.
type EventSink struct {
	pub    Publisher
	topics Topics
	qos    byte
}

// NewEventSink creates an EventSink publishing through pub.
func NewEventSink(pub Publisher, topics Topics, qos byte) *EventSink {
	return &EventSink{pub: pub, topics: topics, qos: qos}
}

// Publish implements fleet.EventSink.
func (s *EventSink) Publish(ctx context.Context, event fleet.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidLevel(event.Serial) {
		return fmt.Errorf("%w: serial %q is not a valid topic level", ErrInvalidTopic, event.Serial)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding fleet event: %w", err)
	}

	topic := s.topics.DeviceEvent(event.Serial, string(event.Type))
	if err := s.pub.Publish(topic, payload, s.qos, false); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}
