// Package http exposes the editor to a browser-hosted UI: the relay manifest, a
// command endpoint, server-sent events and a WebSocket, the preset store, and the
// asset server for everything else.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/relaykit/internal/logging"
	"github.com/aretw0/relaykit/internal/metrics"
	"github.com/aretw0/relaykit/internal/protocol"
	"github.com/aretw0/relaykit/pkg/domain"
	"github.com/aretw0/relaykit/pkg/ports"
	"github.com/aretw0/relaykit/pkg/relay"
	"github.com/go-chi/chi/v5"
)

// Snapshotter captures and restores the native parameter state.
type Snapshotter interface {
	Capture(ctx context.Context, name string) (*domain.Snapshot, error)
	Restore(ctx context.Context, snap *domain.Snapshot) (int, error)
}

// Server holds the handler dependencies.
type Server struct {
	Hub       *Hub
	Assets    *AssetServer
	Presets   ports.SnapshotStore
	Snapshots Snapshotter
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithPresets enables the /api/presets routes.
func WithPresets(store ports.SnapshotStore, snaps Snapshotter) Option {
	return func(s *Server) {
		s.Presets = store
		s.Snapshots = snaps
	}
}

// WithMetrics serves the registry at /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.Metrics = m
	}
}

// WithLogger configures the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// NewHandler creates the HTTP handler. Paths outside /api, /metrics and /health go to
// the asset server.
func NewHandler(hub *Hub, assets *AssetServer, opts ...Option) http.Handler {
	server := &Server{
		Hub:    hub,
		Assets: assets,
		Logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/relays", server.GetRelays)
		r.Post("/relays/{id}", server.PostRelay)
		r.Post("/commands", server.PostCommand)
		r.Get("/events", server.SubscribeEvents)
		r.Get("/ws", server.ServeWebSocket)
		if server.Presets != nil {
			r.Get("/presets", server.ListPresets)
			r.Get("/presets/{name}", server.GetPreset)
			r.Put("/presets/{name}", server.SavePreset)
			r.Post("/presets/{name}/load", server.LoadPreset)
			r.Delete("/presets/{name}", server.DeletePreset)
		}
	})
	r.Get("/health", server.GetHealth)
	if server.Metrics != nil {
		r.Handle("/metrics", server.Metrics.Handler())
	}
	if assets != nil {
		r.Handle("/*", assets)
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Manifest is the GET /api/relays response.
type Manifest struct {
	Relays []relay.Descriptor `json:"relays"`
	State  []protocol.Update  `json:"state"`
}

// GetRelays handles GET /api/relays.
func (s *Server) GetRelays(w http.ResponseWriter, r *http.Request) {
	state, err := s.Hub.State(r.Context())
	if err != nil {
		s.fail(w, "GetRelays", err)
		return
	}
	s.writeJSON(w, http.StatusOK, Manifest{Relays: s.Hub.Manifest(), State: state.Relays})
}

// PostRelay handles POST /api/relays/{id}: gesture and value commands for one relay.
func (s *Server) PostRelay(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	id := domain.ParameterID(chi.URLParam(r, "id"))
	cmd, err := s.Hub.Decoder().DecodeFor(id, body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		s.Logger.Warn("PostRelay: invalid command", "relay", string(id), "err", err)
		return
	}
	switch cmd.Type {
	case domain.CommandGestureStart, domain.CommandValue, domain.CommandGestureEnd:
	default:
		http.Error(w, fmt.Sprintf("%s is not a relay command", cmd.Type), http.StatusBadRequest)
		return
	}
	if err := s.Hub.Handle(r.Context(), nil, cmd); err != nil {
		s.fail(w, "PostRelay", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostCommand handles POST /api/commands. The optional "client" query parameter names
// the SSE client that visibility and sync commands apply to; sync without a client
// answers with the state in the response body.
func (s *Server) PostCommand(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cmd, err := s.Hub.Decoder().Decode(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		s.Logger.Warn("PostCommand: invalid command", "err", err)
		return
	}

	var client *Client
	if id := r.URL.Query().Get("client"); id != "" {
		c, ok := s.Hub.Client(id)
		if !ok {
			http.Error(w, fmt.Sprintf("client %q is not connected", id), http.StatusNotFound)
			return
		}
		client = c
	}
	if cmd.Type == domain.CommandSync && client == nil {
		state, err := s.Hub.State(r.Context())
		if err != nil {
			s.fail(w, "PostCommand", err)
			return
		}
		s.writeJSON(w, http.StatusOK, state)
		return
	}
	if err := s.Hub.Handle(r.Context(), client, cmd); err != nil {
		s.fail(w, "PostCommand", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubscribeEvents handles GET /api/events (SSE). The stream opens with a ping, a hello
// carrying the client id, and the full relay state.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	client, err := s.Hub.Subscribe()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer s.Hub.Unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	fmt.Fprintf(w, "event: hello\ndata: {\"client\":%q}\n\n", client.ID())
	flusher.Flush()

	if err := s.Hub.Sync(r.Context(), client); err != nil {
		s.Logger.Warn("SSE: initial sync failed", "client", client.ID(), "err", err)
		return
	}
	s.Logger.Info("SSE: Client subscribed", "client", client.ID())

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE: Client disconnected", "client", client.ID())
			return
		case f, ok := <-client.Frames():
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.Event, f.Data)
			flusher.Flush()
		}
	}
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "clients": s.Hub.Clients()})
}

// readBody reads at most protocol.MaxMessageBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, protocol.MaxMessageBytes))
}

// fail maps domain errors to status codes.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnknownParameter),
		errors.Is(err, domain.ErrSnapshotNotFound),
		errors.Is(err, ErrUnknownClient):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrMalformedValue),
		errors.Is(err, domain.ErrKindMismatch),
		errors.Is(err, protocol.ErrInvalidMessage):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.Logger.Error(op+" failed", "err", err)
	} else {
		s.Logger.Warn(op+" rejected", "err", err)
	}
	http.Error(w, err.Error(), status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("Response encode failed", "err", err)
	}
}
