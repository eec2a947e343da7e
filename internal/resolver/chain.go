package resolver

import (
	"context"
	"fmt"
)

// Logger defines the logging interface used by resolver chains.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Strategy is one named way of resolving a value.
type Strategy struct {
	Name    string
	Resolve func(ctx context.Context) Result
}

// Resolution is the value a chain settled on and where it came from.
type Resolution struct {
	Value  string
	Source string
}

// FallbackSource is the Resolution.Source used when every strategy missed.
const FallbackSource = "fallback"

// Chain tries strategies in order and falls back to a fixed value.
// It holds no mutable state and is safe for concurrent use.
type Chain struct {
	kind       string
	strategies []Strategy
	fallback   string
	logger     Logger
}

// NewChain creates a chain. kind names the resolved quantity in logs.
func NewChain(kind string, fallback string, strategies ...Strategy) *Chain {
	return &Chain{
		kind:       kind,
		strategies: strategies,
		fallback:   fallback,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the chain.
func (c *Chain) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// Resolve returns the first Found value. It never fails.
func (c *Chain) Resolve(ctx context.Context) Resolution {
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("resolution cancelled",
				"kind", c.kind,
				"strategy", s.Name,
				"error", err,
			)
			break
		}

		res := c.try(ctx, s)
		if res.OK() {
			c.logger.Debug("resolved",
				"kind", c.kind,
				"strategy", s.Name,
				"value", res.Value(),
			)
			return Resolution{Value: res.Value(), Source: s.Name}
		}

		c.logger.Debug("strategy missed",
			"kind", c.kind,
			"strategy", s.Name,
			"reason", res.Reason(),
		)
	}

	c.logger.Warn("all strategies failed, using fallback",
		"kind", c.kind,
		"fallback", c.fallback,
	)
	return Resolution{Value: c.fallback, Source: FallbackSource}
}

// try runs one strategy, converting a panic into a miss.
func (c *Chain) try(ctx context.Context, s Strategy) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("strategy panicked",
				"kind", c.kind,
				"strategy", s.Name,
				"panic", fmt.Sprint(r),
			)
			res = NotFoundf("panic: %v", r)
		}
	}()
	return s.Resolve(ctx)
}

// Strategies returns the strategy names in evaluation order.
func (c *Chain) Strategies() []string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name)
	}
	return names
}
