package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-fleet/internal/fleet"
)

type fakeRegistrar struct {
	mu       sync.Mutex
	requests []fleet.RegisterRequest
	sources  []string
	err      error
}

func (f *fakeRegistrar) RegisterDevice(ctx context.Context, req fleet.RegisterRequest) (*fleet.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	f.sources = append(f.sources, fleet.SourceFrom(ctx))
	return &fleet.Registration{Serial: req.Serial, IPAddress: req.IPAddress}, nil
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *recordingLogger) Debug(string, ...any) {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errs = append(l.errs, msg)
	l.mu.Unlock()
}

func TestReportHandler(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		want    fleet.RegisterRequest
	}{
		{
			name:    "full payload",
			topic:   "fleet/report/PI-001",
			payload: `{"serial":"PI-001","ip_address":"10.0.0.7"}`,
			want:    fleet.RegisterRequest{Serial: "PI-001", IPAddress: "10.0.0.7", Remote: true},
		},
		{
			name:    "serial from topic",
			topic:   "fleet/report/PI-002",
			payload: `{"ip_address":"10.0.0.8"}`,
			want:    fleet.RegisterRequest{Serial: "PI-002", IPAddress: "10.0.0.8", Remote: true},
		},
		{
			name:    "empty payload",
			topic:   "fleet/report/PI-003",
			payload: "",
			want:    fleet.RegisterRequest{Serial: "PI-003", Remote: true},
		},
		{
			name:    "payload serial wins over topic",
			topic:   "fleet/report/alias",
			payload: `{"serial":" PI-004 "}`,
			want:    fleet.RegisterRequest{Serial: "PI-004", Remote: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &fakeRegistrar{}
			handler := ReportHandler(reg, nil)

			if err := handler(tt.topic, []byte(tt.payload)); err != nil {
				t.Fatalf("handler error = %v", err)
			}
			if len(reg.requests) != 1 {
				t.Fatalf("RegisterDevice called %d times, want 1", len(reg.requests))
			}
			if reg.requests[0] != tt.want {
				t.Errorf("request = %+v, want %+v", reg.requests[0], tt.want)
			}
			if reg.sources[0] != fleet.SourceMQTT {
				t.Errorf("source = %q, want %q", reg.sources[0], fleet.SourceMQTT)
			}
		})
	}
}

func TestReportHandler_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"malformed JSON", "fleet/report/PI-001", `{"serial":`},
		{"no serial anywhere", "fleet/report/", `{"ip_address":"10.0.0.7"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &fakeRegistrar{}
			err := ReportHandler(reg, nil)(tt.topic, []byte(tt.payload))
			if !errors.Is(err, ErrInvalidReport) {
				t.Errorf("error = %v, want ErrInvalidReport", err)
			}
			if len(reg.requests) != 0 {
				t.Error("RegisterDevice called for rejected report")
			}
		})
	}
}

func TestReportHandler_RegistrarError(t *testing.T) {
	storeErr := errors.New("database is locked")
	err := ReportHandler(&fakeRegistrar{err: storeErr}, nil)("fleet/report/PI-001", nil)
	if !errors.Is(err, storeErr) {
		t.Errorf("error = %v, want wrapped store error", err)
	}
}

func TestDispatch_LogsErrorsAndPanics(t *testing.T) {
	logger := &recordingLogger{}
	c := &Client{subscriptions: make(map[string]subscription)}
	c.SetLogger(logger)

	c.dispatch(func(string, []byte) error { return errors.New("bad report") }, "fleet/report/x", nil)
	c.dispatch(func(string, []byte) error { panic("boom") }, "fleet/report/x", nil)

	if len(logger.warns) != 1 {
		t.Errorf("warnings = %v, want 1", logger.warns)
	}
	if len(logger.errs) != 1 {
		t.Errorf("errors = %v, want 1", logger.errs)
	}
}
