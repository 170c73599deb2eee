// Package editor composes relays, attachments, the UI transport and the event channel
// into one unit with a single owner goroutine.
//
// Construction order is fixed: relays are created and sealed, the UI transport is
// built from the sealed set, then one attachment binds each relay to its native
// parameter. Close tears everything down in reverse.
package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/relaykit/internal/logging"
	"github.com/aretw0/relaykit/internal/metrics"
	"github.com/aretw0/relaykit/pkg/attachment"
	"github.com/aretw0/relaykit/pkg/domain"
	"github.com/aretw0/relaykit/pkg/events"
	"github.com/aretw0/relaykit/pkg/ports"
	"github.com/aretw0/relaykit/pkg/relay"
)

// DefaultTickRate is the telemetry rate in Hz.
const DefaultTickRate = 30

var (
	// ErrClosed is returned for work submitted after Close.
	ErrClosed = errors.New("editor closed")
	// ErrRunning is returned when Run is called while the owner loop is already running.
	ErrRunning = errors.New("editor already running")
)

// TransportFactory builds the UI transport from the sealed relay set. Commands
// received by the transport are delivered to inbox.
type TransportFactory func(relays *relay.Set, inbox ports.Inbox) (ports.Transport, error)

// Editor owns the bridge between one control surface and one UI.
type Editor struct {
	relays      *relay.Set
	attachments map[domain.ParameterID]*attachment.Attachment
	order       []*attachment.Attachment
	transport   ports.Transport
	events      *events.Channel

	telemetry  ports.TelemetrySource
	tickRate   float64
	initialURL string

	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	queue   []func()
	running bool
	closed  bool
	wake    chan struct{}
	quit    chan struct{}
	stopped chan struct{}
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithMetrics records relay, gesture and event activity.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Editor) {
		e.metrics = m
	}
}

// WithTelemetry polls src on every tick and emits its event.
func WithTelemetry(src ports.TelemetrySource) Option {
	return func(e *Editor) {
		e.telemetry = src
	}
}

// WithTickRate sets the telemetry rate in Hz. Zero or less disables the ticker.
func WithTickRate(hz float64) Option {
	return func(e *Editor) {
		e.tickRate = hz
	}
}

// WithInitialURL sets the URL the UI runtime navigates to first.
func WithInitialURL(url string) Option {
	return func(e *Editor) {
		e.initialURL = url
	}
}

// New builds the editor for layout. Every parameter in layout must exist in registry;
// an unknown identifier or a kind mismatch is returned as a fatal error.
func New(registry ports.ParameterRegistry, layout domain.Layout, newTransport TransportFactory, opts ...Option) (*Editor, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	e := &Editor{
		relays:      relay.NewSet(),
		attachments: make(map[domain.ParameterID]*attachment.Attachment, len(layout)),
		tickRate:    DefaultTickRate,
		initialURL:  "/",
		logger:      logging.NewNop(),
		wake:        make(chan struct{}, 1),
		quit:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, spec := range layout {
		if _, err := e.relays.Add(spec); err != nil {
			return nil, err
		}
	}
	e.relays.Seal()

	transport, err := newTransport(e.relays, e)
	if err != nil {
		e.relays.Close()
		return nil, fmt.Errorf("build transport: %w", err)
	}
	e.transport = transport
	e.events = events.New(transport, events.WithLogger(e.logger), events.WithMetrics(e.metrics))

	for _, r := range e.relays.All() {
		a, err := attachment.New(r, registry, e,
			attachment.WithLogger(e.logger),
			attachment.WithMetrics(e.metrics),
		)
		if err != nil {
			e.teardown()
			return nil, err
		}
		e.attachments[r.ID()] = a
		e.order = append(e.order, a)
	}

	e.logger.Info("Editor ready", "relays", e.relays.Len())
	return e, nil
}

// Relays returns the sealed relay set.
func (e *Editor) Relays() *relay.Set { return e.relays }

// Events returns the event channel.
func (e *Editor) Events() *events.Channel { return e.events }

// InitialURL returns the first navigation target of the UI runtime.
func (e *Editor) InitialURL() string { return e.initialURL }

// teardown closes attachments, then relays, then the transport.
func (e *Editor) teardown() {
	for i := len(e.order) - 1; i >= 0; i-- {
		e.order[i].Close()
	}
	e.relays.Close()
	if e.transport != nil {
		if err := e.transport.Close(); err != nil {
			e.logger.Warn("Transport close failed", "err", err)
		}
	}
	e.logger.Info("Editor closed")
}
