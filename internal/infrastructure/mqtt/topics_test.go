package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("site-a/fleet/")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DeviceEvent registered", topics.DeviceEvent("PI-001", "device.registered"), "site-a/fleet/device/PI-001/registered"},
		{"DeviceEvent heartbeat", topics.DeviceEvent("PI-001", "device.heartbeat"), "site-a/fleet/device/PI-001/heartbeat"},
		{"DeviceEvent bare type", topics.DeviceEvent("PI-001", "custom"), "site-a/fleet/device/PI-001/custom"},
		{"AllDeviceEvents", topics.AllDeviceEvents(), "site-a/fleet/device/+/+"},
		{"Report", topics.Report("PI-001"), "site-a/fleet/report/PI-001"},
		{"AllReports", topics.AllReports(), "site-a/fleet/report/+"},
		{"SystemStatus", topics.SystemStatus(), "site-a/fleet/system/status"},
		{"zero value prefix", Topics{}.SystemStatus(), "fleet/system/status"},
		{"empty prefix", NewTopics("").AllReports(), "fleet/report/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	tests := []struct {
		level string
		want  bool
	}{
		{"PI-001", true},
		{"00000000a1b2c3d4", true},
		{"", false},
		{"a/b", false},
		{"+", false},
		{"#", false},
		{"bad\x00", false},
	}
	for _, tt := range tests {
		if got := ValidLevel(tt.level); got != tt.want {
			t.Errorf("ValidLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestLastLevel(t *testing.T) {
	tests := map[string]string{
		"fleet/report/PI-001": "PI-001",
		"fleet/report/":       "",
		"single":              "single",
	}
	for topic, want := range tests {
		if got := LastLevel(topic); got != want {
			t.Errorf("LastLevel(%q) = %q, want %q", topic, got, want)
		}
	}
}
