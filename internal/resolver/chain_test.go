package resolver

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

// recordingLogger captures log messages for assertions.
type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, level+": "+msg)
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.record("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.record("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.record("error", msg) }

func (l *recordingLogger) contains(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if m == entry {
			return true
		}
	}
	return false
}

func fixed(name string, res Result) Strategy {
	return Strategy{Name: name, Resolve: func(context.Context) Result { return res }}
}

func TestResult(t *testing.T) {
	tests := []struct {
		name       string
		res        Result
		wantOK     bool
		wantValue  string
		wantReason string
	}{
		{"found", Found("abc"), true, "abc", ""},
		{"found empty is a miss", Found(""), false, "", "empty value"},
		{"not found", NotFound("no file"), false, "", "no file"},
		{"not foundf", NotFoundf("exit %d", 1), false, "", "exit 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.res.OK() != tt.wantOK {
				t.Errorf("OK() = %v, want %v", tt.res.OK(), tt.wantOK)
			}
			if tt.res.Value() != tt.wantValue {
				t.Errorf("Value() = %q, want %q", tt.res.Value(), tt.wantValue)
			}
			if tt.res.Reason() != tt.wantReason {
				t.Errorf("Reason() = %q, want %q", tt.res.Reason(), tt.wantReason)
			}
		})
	}
}

func TestChain_Resolve(t *testing.T) {
	tests := []struct {
		name       string
		strategies []Strategy
		want       Resolution
	}{
		{
			name:       "first hit wins",
			strategies: []Strategy{fixed("a", Found("one")), fixed("b", Found("two"))},
			want:       Resolution{Value: "one", Source: "a"},
		},
		{
			name:       "skips misses",
			strategies: []Strategy{fixed("a", NotFound("nope")), fixed("b", Found("two"))},
			want:       Resolution{Value: "two", Source: "b"},
		},
		{
			name:       "falls back",
			strategies: []Strategy{fixed("a", NotFound("nope")), fixed("b", NotFound("nope"))},
			want:       Resolution{Value: "DEFAULT", Source: FallbackSource},
		},
		{
			name:       "no strategies",
			strategies: nil,
			want:       Resolution{Value: "DEFAULT", Source: FallbackSource},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewChain("test", "DEFAULT", tt.strategies...).Resolve(context.Background())
			if got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestChain_RecoversPanic(t *testing.T) {
	logger := &recordingLogger{}
	chain := NewChain("test", "DEFAULT",
		Strategy{Name: "boom", Resolve: func(context.Context) Result { panic("bad parser") }},
		fixed("next", Found("ok")),
	)
	chain.SetLogger(logger)

	got := chain.Resolve(context.Background())
	if got.Value != "ok" || got.Source != "next" {
		t.Errorf("Resolve() = %+v, want ok from next", got)
	}
	if !logger.contains("error: strategy panicked") {
		t.Errorf("expected panic to be logged, got %v", logger.messages)
	}
}

func TestChain_StopsOnCancelledContext(t *testing.T) {
	called := false
	chain := NewChain("test", "DEFAULT", Strategy{Name: "a", Resolve: func(context.Context) Result {
		called = true
		return Found("x")
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := chain.Resolve(ctx)
	if called {
		t.Error("strategy ran after context was cancelled")
	}
	if got.Value != "DEFAULT" {
		t.Errorf("Resolve() = %+v, want fallback", got)
	}
}

func TestChain_LogsMissesAndFallback(t *testing.T) {
	logger := &recordingLogger{}
	chain := NewChain("test", "DEFAULT", fixed("a", NotFound("nope")))
	chain.SetLogger(logger)
	chain.Resolve(context.Background())

	for _, want := range []string{"debug: strategy missed", "warn: all strategies failed, using fallback"} {
		if !logger.contains(want) {
			t.Errorf("missing log entry %q in %v", want, logger.messages)
		}
	}
}

func TestChain_Strategies(t *testing.T) {
	chain := NewChain("test", "x", fixed("a", NotFound("")), fixed("b", NotFound("")))
	if got := fmt.Sprint(chain.Strategies()); got != "[a b]" {
		t.Errorf("Strategies() = %s, want [a b]", got)
	}
}
