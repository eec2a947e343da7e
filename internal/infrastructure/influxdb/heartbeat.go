package influxdb

import (
	"context"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-fleet/internal/fleet"
)

// MeasurementHeartbeat is the measurement written for every registration.
const MeasurementHeartbeat = "device_heartbeat"

// PointWriter queues points for writing. *Client implements it.
type PointWriter interface {
	WritePoint(point *write.Point)
}

// HeartbeatPoint builds the device_heartbeat point for a registration event.
// The serial is the only tag; addresses are fields to keep series cardinality
// bounded by fleet size.
func HeartbeatPoint(event fleet.Event) *write.Point {
	fields := map[string]any{
		"created": event.Created,
	}
	if event.IPAddress != "" {
		fields["ip_address"] = event.IPAddress
	}

	return write.NewPoint(
		MeasurementHeartbeat,
		map[string]string{"serial": event.Serial},
		fields,
		event.Timestamp,
	)
}

// HeartbeatSink writes registration events to InfluxDB. Assignment events
// carry no telemetry and are ignored.
type HeartbeatSink struct {
	w PointWriter
}

// NewHeartbeatSink creates a sink writing through w.
func NewHeartbeatSink(w PointWriter) *HeartbeatSink {
	return &HeartbeatSink{w: w}
}

// Publish implements fleet.EventSink. Writes are asynchronous, so it only
// fails for a cancelled context.
func (s *HeartbeatSink) Publish(ctx context.Context, event fleet.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch event.Type {
	case fleet.EventRegistered, fleet.EventHeartbeat:
		s.w.WritePoint(HeartbeatPoint(event))
	}
	return nil
}
