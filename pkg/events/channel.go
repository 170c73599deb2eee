// Package events implements the one-way, fire-and-forget broadcast from native to UI
// for non-parameter telemetry such as meters and status.
package events

import (
	"log/slog"

	"github.com/aretw0/relaykit/internal/logging"
	"github.com/aretw0/relaykit/internal/metrics"
	"github.com/aretw0/relaykit/pkg/domain"
	"github.com/aretw0/relaykit/pkg/ports"
)

// Channel emits events to a UI sink, guarded by the sink's visibility.
type Channel struct {
	sink    ports.UISink
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger configures a logger for the Channel.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		c.logger = logger
	}
}

// WithMetrics counts delivered and suppressed emissions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Channel) {
		c.metrics = m
	}
}

// New creates a Channel delivering to sink.
func New(sink ports.UISink, opts ...Option) *Channel {
	c := &Channel{
		sink:   sink,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Emit sends one event when the UI is visible and reports whether it was handed to
// the sink. While hidden the call returns immediately; nothing is queued.
func (c *Channel) Emit(name string, payload any) bool {
	if c.sink == nil || !c.sink.Visible() {
		c.metrics.Event(name, false)
		return false
	}
	c.sink.SendEvent(domain.Event{Name: name, Payload: payload})
	c.metrics.Event(name, true)
	c.logger.Debug("Event emitted", "event", name)
	return true
}
