package editor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/relaykit/internal/metrics"
	"github.com/aretw0/relaykit/internal/protocol"
	"github.com/aretw0/relaykit/pkg/domain"
	"github.com/aretw0/relaykit/pkg/editor"
	"github.com/aretw0/relaykit/pkg/params"
	"github.com/aretw0/relaykit/pkg/ports"
	"github.com/aretw0/relaykit/pkg/relay"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var layout = domain.Layout{
	{ID: "gain", Name: "Gain", Kind: domain.Continuous, Range: domain.Range{Min: 0, Max: 1}, Default: domain.FloatValue(0.5)},
	{ID: "bypass", Name: "Bypass", Kind: domain.Boolean, Default: domain.BoolValue(false)},
	{ID: "mode", Name: "Mode", Kind: domain.Enumerated, Choices: []string{"Clean", "Warm", "Drive"}, Default: domain.IndexValue(0)},
}

// fakeTransport records everything the editor sends to the UI.
type fakeTransport struct {
	mu       sync.Mutex
	visible  bool
	updates  []domain.RelayUpdate
	events   []domain.Event
	closed   int
	onClose  func()
	inbox    ports.Inbox
	manifest []relay.Descriptor
}

func (f *fakeTransport) Visible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible
}

func (f *fakeTransport) SetVisible(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = v
}

func (f *fakeTransport) SendEvent(e domain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeTransport) Close() error {
	if f.onClose != nil {
		f.onClose()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeTransport) Updates() []domain.RelayUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.RelayUpdate(nil), f.updates...)
}

func (f *fakeTransport) Events() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeTransport) factory() editor.TransportFactory {
	return func(relays *relay.Set, inbox ports.Inbox) (ports.Transport, error) {
		f.inbox = inbox
		f.manifest = relays.Manifest()
		for _, r := range relays.All() {
			r.Listen(func(u domain.RelayUpdate) {
				f.mu.Lock()
				defer f.mu.Unlock()
				f.updates = append(f.updates, u)
			})
		}
		return f, nil
	}
}

type meter struct {
	mu    sync.Mutex
	calls int
}

func (m *meter) Telemetry() (domain.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return domain.Event{Name: "visualizerData", Payload: map[string]float64{"outputLevel": 0.5}}, true
}

type harness struct {
	reg       *params.Registry
	transport *fakeTransport
	editor    *editor.Editor
	metrics   *metrics.Metrics
	ctx       context.Context
}

// start builds an editor over layout and runs its owner loop until the test ends.
func start(t *testing.T, opts ...editor.Option) *harness {
	t.Helper()
	reg, err := params.NewRegistry(layout)
	require.NoError(t, err)

	h := &harness{reg: reg, transport: &fakeTransport{}, metrics: metrics.New()}
	opts = append([]editor.Option{editor.WithMetrics(h.metrics), editor.WithTickRate(0)}, opts...)
	h.editor, err = editor.New(reg, layout, h.transport.factory(), opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx
	done := make(chan error, 1)
	go func() { done <- h.editor.Run(ctx) }()
	t.Cleanup(func() {
		require.NoError(t, h.editor.Close())
		cancel()
		<-done
	})
	return h
}

func (h *harness) dispatch(t *testing.T, cmd domain.Command) {
	t.Helper()
	require.NoError(t, h.editor.Dispatch(h.ctx, cmd))
}

// settle waits until every notification queued so far has been processed.
func (h *harness) settle(t *testing.T) {
	t.Helper()
	for range 2 {
		require.NoError(t, h.editor.Do(h.ctx, func() {}))
	}
}

func TestEndToEnd_GainGesture(t *testing.T) {
	h := start(t)
	gain, err := h.reg.Get("gain")
	require.NoError(t, err)
	require.Equal(t, 0.5, gain.Value().Float)

	h.dispatch(t, domain.Command{Type: domain.CommandGestureStart, ID: "gain"})
	h.dispatch(t, domain.Command{Type: domain.CommandValue, ID: "gain", Value: 0.8})
	h.dispatch(t, domain.Command{Type: domain.CommandGestureEnd, ID: "gain"})
	h.settle(t)

	assert.Equal(t, 0.8, gain.Value().Float)
	begins, ends := gain.GestureCounts()
	assert.Equal(t, 1, begins)
	assert.Equal(t, 1, ends)
	assert.Empty(t, h.transport.Updates(), "no native-originated update goes back to the UI")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.EchoesSuppressed))
}

func TestAutomation_ReachesUIOnce(t *testing.T) {
	h := start(t)
	gain, err := h.reg.Get("gain")
	require.NoError(t, err)

	require.NoError(t, gain.Automate(domain.FloatValue(0.3)))
	h.settle(t)

	updates := h.transport.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, domain.ParameterID("gain"), updates[0].ID)
	assert.Equal(t, 0.3, updates[0].Value.Float)
	assert.InDelta(t, 0.3, updates[0].Normalized, 1e-9)
}

func TestAutomation_RefusedDuringGesture(t *testing.T) {
	h := start(t)
	gain, err := h.reg.Get("gain")
	require.NoError(t, err)

	h.dispatch(t, domain.Command{Type: domain.CommandGestureStart, ID: "gain"})
	h.dispatch(t, domain.Command{Type: domain.CommandValue, ID: "gain", Value: 0.9})
	assert.ErrorIs(t, gain.Automate(domain.FloatValue(0.1)), params.ErrGestureActive)
	h.dispatch(t, domain.Command{Type: domain.CommandGestureEnd, ID: "gain"})

	require.NoError(t, gain.Automate(domain.FloatValue(0.1)))
	h.settle(t)

	assert.Equal(t, 0.1, gain.Value().Float)
	require.Len(t, h.transport.Updates(), 1)
}

func TestDispatch_NormalizedAndDiscrete(t *testing.T) {
	h := start(t)
	n := 1.0

	h.dispatch(t, domain.Command{Type: domain.CommandValue, ID: "mode", Normalized: &n})
	h.dispatch(t, domain.Command{Type: domain.CommandValue, ID: "bypass", Value: true})
	h.settle(t)

	mode, _ := h.reg.Choice("mode")
	bypass, _ := h.reg.Bool("bypass")
	assert.Equal(t, 2, mode)
	assert.True(t, bypass)

	p, _ := h.reg.Get("bypass")
	begins, ends := p.GestureCounts()
	assert.Equal(t, 1, begins)
	assert.Equal(t, 1, ends)
}

func TestDispatch_Errors(t *testing.T) {
	h := start(t)

	err := h.editor.Dispatch(h.ctx, domain.Command{Type: domain.CommandValue, ID: "ghost", Value: 1.0})
	assert.ErrorIs(t, err, domain.ErrUnknownParameter)

	err = h.editor.Dispatch(h.ctx, domain.Command{Type: domain.CommandValue, ID: "gain", Value: "loud"})
	assert.ErrorIs(t, err, domain.ErrMalformedValue)

	err = h.editor.Dispatch(h.ctx, domain.Command{Type: domain.CommandValue, ID: "gain"})
	assert.ErrorIs(t, err, domain.ErrMalformedValue)

	assert.NoError(t, h.editor.Dispatch(h.ctx, domain.Command{Type: domain.CommandSync}))
}

func TestDispatch_OutOfRangeIsClampedAndEchoedCorrected(t *testing.T) {
	h := start(t)

	h.dispatch(t, domain.Command{Type: domain.CommandValue, ID: "gain", Value: 7.5})
	h.settle(t)

	gain, _ := h.reg.Float("gain")
	assert.Equal(t, 1.0, gain)
	updates := h.transport.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, 1.0, updates[0].Value.Float)
}

func TestDispatch_NormalizedOvershootIsClamped(t *testing.T) {
	h := start(t)

	under := -0.3
	h.dispatch(t, domain.Command{Type: domain.CommandValue, ID: "gain", Normalized: &under})
	h.settle(t)
	gain, _ := h.reg.Float("gain")
	assert.Equal(t, 0.0, gain)

	cmd, err := protocol.MustDecoder().Decode([]byte(`{"type":"value","id":"gain","normalized":1.2}`))
	require.NoError(t, err)
	h.dispatch(t, cmd)
	h.settle(t)
	gain, _ = h.reg.Float("gain")
	assert.Equal(t, 1.0, gain)
}

func TestState(t *testing.T) {
	h := start(t)
	h.dispatch(t, domain.Command{Type: domain.CommandValue, ID: "gain", Value: 0.25})

	state, err := h.editor.State(h.ctx)
	require.NoError(t, err)
	require.Len(t, state, 3)
	assert.Equal(t, domain.ParameterID("gain"), state[0].ID)
	assert.Equal(t, 0.25, state[0].Value.Float)
	assert.Equal(t, domain.ParameterID("mode"), state[2].ID)

	assert.Len(t, h.transport.manifest, 3)
}

func TestCaptureRestore(t *testing.T) {
	h := start(t)
	h.dispatch(t, domain.Command{Type: domain.CommandValue, ID: "gain", Value: 0.9})

	snap, err := h.editor.Capture(h.ctx, "loud")
	require.NoError(t, err)
	assert.Equal(t, "loud", snap.Name)
	assert.Equal(t, domain.FloatValue(0.9), snap.Values["gain"])
	assert.Equal(t, domain.BoolValue(false), snap.Values["bypass"])

	restore := domain.NewSnapshot("mixed")
	restore.Values["gain"] = domain.FloatValue(0.2)
	restore.Values["bypass"] = domain.BoolValue(true)
	restore.Values["mode"] = domain.FloatValue(1) // wrong kind
	restore.Values["ghost"] = domain.BoolValue(true)

	applied, err := h.editor.Restore(h.ctx, restore)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	h.settle(t)

	gain, _ := h.reg.Float("gain")
	assert.Equal(t, 0.2, gain)
	assert.Len(t, h.transport.Updates(), 2, "restored values reach the UI")
}

func TestTelemetry_GuardedByVisibility(t *testing.T) {
	src := &meter{}
	h := start(t, editor.WithTelemetry(src), editor.WithTickRate(500))

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, h.transport.Events(), "hidden UI receives nothing")

	h.transport.SetVisible(true)
	assert.Eventually(t, func() bool { return h.transport.Events() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Positive(t, testutil.ToFloat64(h.metrics.Events.WithLabelValues("visualizerData", "suppressed")))
}

func TestNew_UnknownParameterIsFatal(t *testing.T) {
	reg, err := params.NewRegistry(layout[:1])
	require.NoError(t, err)
	transport := &fakeTransport{}

	_, err = editor.New(reg, layout, transport.factory())
	assert.ErrorIs(t, err, domain.ErrUnknownParameter)
	assert.Equal(t, 1, transport.closed)

	gain, _ := reg.Get("gain")
	assert.Zero(t, gain.Listeners(), "partially built attachments are released")
}

func TestNew_DuplicateLayout(t *testing.T) {
	reg, err := params.NewRegistry(layout)
	require.NoError(t, err)

	_, err = editor.New(reg, append(domain.Layout{}, layout[0], layout[0]), (&fakeTransport{}).factory())
	assert.ErrorIs(t, err, domain.ErrInvalidSpec)
}

func TestClose_TeardownOrder(t *testing.T) {
	reg, err := params.NewRegistry(layout)
	require.NoError(t, err)
	transport := &fakeTransport{}
	var listenersAtClose int
	transport.onClose = func() {
		for _, spec := range layout {
			p, _ := reg.Get(spec.ID)
			listenersAtClose += p.Listeners()
		}
	}

	e, err := editor.New(reg, layout, transport.factory())
	require.NoError(t, err)

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	require.NoError(t, e.Dispatch(ctx, domain.Command{Type: domain.CommandGestureStart, ID: "gain"}))

	require.NoError(t, e.Close())
	require.NoError(t, <-done)

	assert.Zero(t, listenersAtClose, "attachments are closed before the transport")
	assert.Equal(t, 1, transport.closed)
	gain, _ := reg.Get("gain")
	_, ends := gain.GestureCounts()
	assert.Equal(t, 1, ends, "open gesture is ended on teardown")

	assert.NoError(t, e.Close())
	assert.Equal(t, 1, transport.closed)
	assert.ErrorIs(t, e.Do(ctx, func() {}), editor.ErrClosed)
	assert.ErrorIs(t, e.Run(ctx), editor.ErrClosed)
}

func TestClose_WithoutRun(t *testing.T) {
	reg, err := params.NewRegistry(layout)
	require.NoError(t, err)
	transport := &fakeTransport{}

	e, err := editor.New(reg, layout, transport.factory(), editor.WithInitialURL("http://localhost:5173"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5173", e.InitialURL())

	require.NoError(t, e.Close())
	assert.Equal(t, 1, transport.closed)
}
