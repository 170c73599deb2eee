package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/aretw0/relaykit/internal/logging"
	"github.com/aretw0/relaykit/internal/metrics"
	"github.com/aretw0/relaykit/internal/protocol"
	"github.com/aretw0/relaykit/pkg/domain"
	"github.com/aretw0/relaykit/pkg/ports"
	"github.com/aretw0/relaykit/pkg/relay"
)

// DefaultClientBuffer is the number of frames queued per client.
const DefaultClientBuffer = 256

var (
	// ErrHubClosed is returned when subscribing to a closed hub.
	ErrHubClosed = errors.New("hub closed")
	// ErrUnknownClient is returned for commands naming a client that is not connected.
	ErrUnknownClient = errors.New("unknown client")
)

// Frame is one outbound message. Event names the SSE event; Data is the JSON body.
type Frame struct {
	Event string
	Data  []byte
}

// Client is one connected UI (an SSE stream or a WebSocket).
type Client struct {
	id     string
	send   chan Frame
	hidden bool
}

// ID returns the client identifier announced to the UI.
func (c *Client) ID() string { return c.id }

// Frames returns the outbound queue. It is closed when the client is evicted or the
// hub shuts down.
func (c *Client) Frames() <-chan Frame { return c.send }

// Hub is the UI transport: it fans relay updates and events out to every client and
// routes client commands to the inbox. It implements ports.Transport.
type Hub struct {
	inbox    ports.Inbox
	decoder  *protocol.Decoder
	manifest []relay.Descriptor
	cancels  []func()

	logger     *slog.Logger
	metrics    *metrics.Metrics
	bufferSize int

	mu      sync.RWMutex
	clients map[string]*Client
	nextID  uint64
	closed  bool
}

var _ ports.Transport = (*Hub)(nil)

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger configures the hub logger.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithHubMetrics tracks connected clients.
func WithHubMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithClientBuffer sets the per-client queue length.
func WithClientBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// NewHub builds the transport from the sealed relay set and listens to every relay.
// It must be called on the owner goroutine, typically from an editor.TransportFactory.
func NewHub(relays *relay.Set, inbox ports.Inbox, opts ...HubOption) *Hub {
	h := &Hub{
		inbox:      inbox,
		decoder:    protocol.MustDecoder(),
		manifest:   relays.Manifest(),
		logger:     logging.NewNop(),
		bufferSize: DefaultClientBuffer,
		clients:    make(map[string]*Client),
	}
	for _, opt := range opts {
		opt(h)
	}
	for _, r := range relays.All() {
		h.cancels = append(h.cancels, r.Listen(h.relayChanged))
	}
	return h
}

// Manifest returns the static relay descriptors.
func (h *Hub) Manifest() []relay.Descriptor { return h.manifest }

// Decoder returns the inbound command decoder.
func (h *Hub) Decoder() *protocol.Decoder { return h.decoder }

// Subscribe registers a new client. Clients start visible.
func (h *Hub) Subscribe() (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	h.nextID++
	c := &Client{
		id:   "c" + strconv.FormatUint(h.nextID, 10),
		send: make(chan Frame, h.bufferSize),
	}
	h.clients[c.id] = c
	h.metrics.ClientConnected()
	h.logger.Debug("Client connected", "client", c.id, "clients", len(h.clients))
	return c, nil
}

// Unsubscribe removes c. It is safe to call more than once.
func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(c)
}

// remove must be called with h.mu held.
func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	h.metrics.ClientDisconnected()
	h.logger.Debug("Client disconnected", "client", c.id, "clients", len(h.clients))
}

// Client returns the connected client with id.
func (h *Hub) Client(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Visible reports whether at least one connected client has not reported itself hidden.
func (h *Hub) Visible() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if !c.hidden {
			return true
		}
	}
	return false
}

// SendEvent broadcasts e. Clients with a full queue miss it.
func (h *Hub) SendEvent(e domain.Event) {
	data, err := protocol.Encode(protocol.NewEvent(e))
	if err != nil {
		h.logger.Warn("Event encode failed", "event", e.Name, "err", err)
		return
	}
	h.broadcast(Frame{Event: protocol.TypeEvent, Data: data}, false)
}

func (h *Hub) relayChanged(u domain.RelayUpdate) {
	data, err := protocol.Encode(protocol.NewUpdate(u))
	if err != nil {
		h.logger.Warn("Relay update encode failed", "relay", string(u.ID), "err", err)
		return
	}
	h.broadcast(Frame{Event: protocol.TypeRelay, Data: data}, true)
}

// broadcast never blocks. A client that cannot take a state-bearing frame is evicted
// so it reconnects and resyncs instead of silently diverging; other frames are dropped.
func (h *Hub) broadcast(f Frame, stateful bool) {
	var slow []*Client
	h.mu.RLock()
	for _, c := range h.clients {
		select {
		case c.send <- f:
		default:
			if stateful {
				slow = append(slow, c)
			} else {
				h.logger.Debug("Client buffer full, dropping frame", "client", c.id, "event", f.Event)
			}
		}
	}
	h.mu.RUnlock()

	if len(slow) > 0 {
		h.mu.Lock()
		for _, c := range slow {
			h.logger.Warn("Client buffer full, evicting", "client", c.id)
			h.remove(c)
		}
		h.mu.Unlock()
	}
}

// deliver queues f for one client, evicting it when the queue is full.
func (h *Hub) deliver(c *Client, f Frame) {
	h.mu.RLock()
	_, ok := h.clients[c.id]
	sent := false
	if ok {
		select {
		case c.send <- f:
			sent = true
		default:
		}
	}
	h.mu.RUnlock()
	if ok && !sent {
		h.Unsubscribe(c)
	}
}

// Sync queues the full relay state for c. The state is read and queued on the owner
// goroutine, so no relay update can slip in between.
func (h *Hub) Sync(ctx context.Context, c *Client) error {
	return h.inbox.Sync(ctx, func(updates []domain.RelayUpdate) {
		data, err := protocol.Encode(protocol.NewState(updates))
		if err != nil {
			h.logger.Warn("State encode failed", "err", err)
			return
		}
		h.deliver(c, Frame{Event: protocol.TypeState, Data: data})
	})
}

// State reads the full relay state on the owner goroutine.
func (h *Hub) State(ctx context.Context) (protocol.State, error) {
	ch := make(chan protocol.State, 1)
	err := h.inbox.Sync(ctx, func(updates []domain.RelayUpdate) {
		ch <- protocol.NewState(updates)
	})
	if err != nil {
		return protocol.State{}, err
	}
	return <-ch, nil
}

// Handle applies one decoded command on behalf of c, which may be nil for stateless
// transports such as POST.
func (h *Hub) Handle(ctx context.Context, c *Client, cmd domain.Command) error {
	switch cmd.Type {
	case domain.CommandVisibility:
		if c == nil {
			return fmt.Errorf("%w: visibility needs a connected client", ErrUnknownClient)
		}
		if cmd.Visible == nil {
			return fmt.Errorf("%w: visibility carries no flag", domain.ErrMalformedValue)
		}
		h.setHidden(c, !*cmd.Visible)
		return nil
	case domain.CommandSync:
		if c == nil {
			return fmt.Errorf("%w: sync needs a connected client", ErrUnknownClient)
		}
		return h.Sync(ctx, c)
	default:
		return h.inbox.Dispatch(ctx, cmd)
	}
}

// Reject queues an error frame for c.
func (h *Hub) Reject(c *Client, err error) {
	data, encErr := protocol.Encode(protocol.NewError(err))
	if encErr != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- Frame{Event: protocol.TypeError, Data: data}:
	default:
	}
}

func (h *Hub) setHidden(c *Client, hidden bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.hidden = hidden
	h.logger.Debug("Client visibility", "client", c.id, "hidden", hidden)
}

// Close disconnects every client and stops listening to the relays.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for _, c := range h.clients {
		h.remove(c)
	}
	h.mu.Unlock()

	for _, cancel := range h.cancels {
		cancel()
	}
	h.cancels = nil
	return nil
}
