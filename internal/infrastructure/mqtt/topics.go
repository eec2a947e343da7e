package mqtt

import (
	"strings"
)

// DefaultTopicPrefix is used when the configuration leaves topic_prefix empty.
const DefaultTopicPrefix = "fleet"

// Topics builds the fleet topic hierarchy under a prefix:
//
//	{prefix}/device/{serial}/{event}   fleet events, published by the service
//	{prefix}/report/{serial}           device self-reports, consumed by the service
//	{prefix}/system/status             service online/offline status (retained, LWT)
type Topics struct {
	Prefix string
}

// NewTopics returns topic builders for prefix, trimming any trailing slash.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// DeviceEvent returns the topic for a fleet event about serial.
// The "device." namespace of the event type is dropped from the level.
//
// Example: fleet/device/PI-001/registered
func (t Topics) DeviceEvent(serial, eventType string) string {
	return t.prefix() + "/device/" + serial + "/" + strings.TrimPrefix(eventType, "device.")
}

// AllDeviceEvents returns the wildcard for every fleet event.
func (t Topics) AllDeviceEvents() string {
	return t.prefix() + "/device/+/+"
}

// Report returns the topic a device publishes its self-report on.
//
// Example: fleet/report/PI-001
func (t Topics) Report(serial string) string {
	return t.prefix() + "/report/" + serial
}

// AllReports returns the wildcard the service subscribes to for self-reports.
func (t Topics) AllReports() string {
	return t.prefix() + "/report/+"
}

// SystemStatus returns the retained service status topic.
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// ValidLevel reports whether s can be used as a single topic level.
func ValidLevel(s string) bool {
	return s != "" && !strings.ContainsAny(s, "/+#\x00")
}

// LastLevel returns the final level of topic.
func LastLevel(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
