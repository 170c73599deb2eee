package http

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/aretw0/relaykit/internal/metrics"
	"github.com/aretw0/relaykit/pkg/adapters/memory"
	"github.com/aretw0/relaykit/pkg/domain"
	"github.com/aretw0/relaykit/pkg/editor"
	"github.com/aretw0/relaykit/pkg/params"
	"github.com/aretw0/relaykit/pkg/ports"
	"github.com/aretw0/relaykit/pkg/relay"
	"github.com/aretw0/relaykit/pkg/resource"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLayout = domain.Layout{
	{ID: "gain", Name: "Gain", Kind: domain.Continuous, Range: domain.Range{Min: 0, Max: 1}, Default: domain.FloatValue(0.5)},
	{ID: "bypass", Name: "Bypass", Kind: domain.Boolean, Default: domain.BoolValue(false)},
	{ID: "mode", Name: "Mode", Kind: domain.Enumerated, Choices: []string{"Clean", "Warm", "Drive"}, Default: domain.IndexValue(0)},
}

type testEnv struct {
	srv    *httptest.Server
	reg    *params.Registry
	hub    *Hub
	editor *editor.Editor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	reg, err := params.NewRegistry(testLayout)
	require.NoError(t, err)
	m := metrics.New()

	env := &testEnv{reg: reg}
	env.editor, err = editor.New(reg, testLayout, func(rs *relay.Set, inbox ports.Inbox) (ports.Transport, error) {
		env.hub = NewHub(rs, inbox, WithHubMetrics(m))
		return env.hub, nil
	}, editor.WithTickRate(0), editor.WithMetrics(m))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = env.editor.Run(ctx)
		close(done)
	}()

	resolver := resource.NewResolver(fstest.MapFS{
		"index.html": {Data: []byte("<html>relaykit</html>")},
		"app.js":     {Data: []byte("export {}")},
	})
	assets, err := NewAssetServer(Bundled, resolver, "", WithAssetMetrics(m))
	require.NoError(t, err)

	handler := NewHandler(env.hub, assets,
		WithPresets(memory.NewStore(), env.editor),
		WithMetrics(m),
	)
	env.srv = httptest.NewServer(handler)
	t.Cleanup(func() {
		env.srv.CloseClientConnections()
		env.srv.Close()
		_ = env.editor.Close()
		cancel()
		<-done
	})
	return env
}

func (env *testEnv) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(env.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (env *testEnv) do(t *testing.T, method, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, env.srv.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestGetRelays(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/relays")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var m struct {
		Relays []map[string]any `json:"relays"`
		State  []map[string]any `json:"state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	require.Len(t, m.Relays, 3)
	assert.Equal(t, "gain", m.Relays[0]["id"])
	assert.Equal(t, "continuous", m.Relays[0]["kind"])
	assert.Equal(t, []any{"Clean", "Warm", "Drive"}, m.Relays[2]["choices"])
	require.Len(t, m.State, 3)
	assert.Equal(t, 0.5, m.State[0]["value"])
}

func TestPostRelay_GestureRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusNoContent, env.post(t, "/api/relays/gain", `{"type":"gesture_start"}`).StatusCode)
	assert.Equal(t, http.StatusNoContent, env.post(t, "/api/relays/gain", `{"type":"value","value":0.8}`).StatusCode)
	assert.Equal(t, http.StatusNoContent, env.post(t, "/api/relays/gain", `{"type":"gesture_end"}`).StatusCode)

	gain, err := env.reg.Get("gain")
	require.NoError(t, err)
	assert.Equal(t, 0.8, gain.Value().Float)
	begins, ends := gain.GestureCounts()
	assert.Equal(t, 1, begins)
	assert.Equal(t, 1, ends)
}

func TestPostRelay_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name, path, body string
		status           int
	}{
		{"malformed json", "/api/relays/gain", `{`, http.StatusBadRequest},
		{"schema violation", "/api/relays/gain", `{"type":"value","value":"x"}`, http.StatusBadRequest},
		{"wrong kind", "/api/relays/bypass", `{"type":"value","value":0.5}`, http.StatusBadRequest},
		{"unknown relay", "/api/relays/ghost", `{"type":"gesture_start"}`, http.StatusNotFound},
		{"not a relay command", "/api/relays/gain", `{"type":"sync"}`, http.StatusBadRequest},
		{"id mismatch", "/api/relays/gain", `{"type":"gesture_start","id":"mix"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, env.post(t, tt.path, tt.body).StatusCode)
		})
	}
}

func TestPostCommand_SyncWithoutClient(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/commands", `{"type":"sync"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, "state", state["type"])

	assert.Equal(t, http.StatusNotFound, env.post(t, "/api/commands", `{"type":"visibility","visible":false}`).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.post(t, "/api/commands?client=c99", `{"type":"sync"}`).StatusCode)
}

// readSSE streams "event" names and their data lines until the body closes.
func readSSE(body io.Reader) <-chan [2]string {
	out := make(chan [2]string, 64)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(body)
		var event string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				out <- [2]string{event, strings.TrimPrefix(line, "data: ")}
			}
		}
	}()
	return out
}

func next(t *testing.T, ch <-chan [2]string) [2]string {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "stream closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SSE message")
		return [2]string{}
	}
}

func TestSubscribeEvents(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/events")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	stream := readSSE(resp.Body)

	assert.Equal(t, [2]string{"ping", "connected"}, next(t, stream))
	hello := next(t, stream)
	assert.Equal(t, "hello", hello[0])
	var h struct{ Client string }
	require.NoError(t, json.Unmarshal([]byte(hello[1]), &h))
	assert.Equal(t, "state", next(t, stream)[0])

	gain, _ := env.reg.Get("gain")
	require.NoError(t, gain.Automate(domain.FloatValue(0.25)))

	msg := next(t, stream)
	assert.Equal(t, "relay", msg[0])
	assert.JSONEq(t, `{"type":"relay","id":"gain","kind":"continuous","value":0.25,"normalized":0.25}`, msg[1])

	assert.True(t, env.hub.Visible())
	assert.Equal(t, http.StatusNoContent, env.post(t, "/api/commands?client="+h.Client, `{"type":"visibility","visible":false}`).StatusCode)
	assert.False(t, env.hub.Visible())
}

func TestWebSocket(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(env.srv.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	read := func() map[string]any {
		t.Helper()
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}
	write := func(s string) {
		t.Helper()
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(s)))
	}

	state := read()
	assert.Equal(t, "state", state["type"])
	assert.Len(t, state["relays"], 3)

	write(`{"type":"value","id":"bypass","value":true}`)
	assert.Eventually(t, func() bool {
		on, _ := env.reg.Bool("bypass")
		return on
	}, time.Second, 5*time.Millisecond)

	write(`{"type":"value","id":"gain"}`)
	assert.Equal(t, "error", read()["type"])

	mode, _ := env.reg.Get("mode")
	require.NoError(t, mode.Automate(domain.IndexValue(1)))
	update := read()
	assert.Equal(t, "relay", update["type"])
	assert.Equal(t, "mode", update["id"])
	assert.Equal(t, 1.0, update["value"])

	write(`{"type":"visibility","visible":false}`)
	assert.Eventually(t, func() bool { return !env.hub.Visible() }, time.Second, 5*time.Millisecond)

	write(`{"type":"sync"}`)
	assert.Equal(t, "state", read()["type"])

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	assert.Eventually(t, func() bool { return env.hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestPresets(t *testing.T) {
	env := newTestEnv(t)
	gain, _ := env.reg.Get("gain")
	require.NoError(t, gain.Automate(domain.FloatValue(0.9)))

	assert.Equal(t, http.StatusCreated, env.do(t, http.MethodPut, "/api/presets/loud").StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/api/presets/bad*name").StatusCode)

	require.NoError(t, gain.Automate(domain.FloatValue(0.1)))

	resp := env.do(t, http.MethodGet, "/api/presets")
	var list struct{ Presets []string }
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, []string{"loud"}, list.Presets)

	resp = env.do(t, http.MethodGet, "/api/presets/loud")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap domain.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, 0.9, snap.Values["gain"].Float)

	resp = env.do(t, http.MethodPost, "/api/presets/loud/load")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loaded struct{ Applied int }
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&loaded))
	assert.Equal(t, 3, loaded.Applied)
	assert.Equal(t, 0.9, gain.Value().Float)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/presets/quiet/load").StatusCode)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/presets/loud").StatusCode)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/presets/loud").StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env.do(t, http.MethodGet, "/index.html")
	resp = env.do(t, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "relaykit_ui_clients")
	assert.Contains(t, string(body), `relaykit_resources_total{result="hit"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodOptions, "/api/relays/gain")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
