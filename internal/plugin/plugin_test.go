package plugin

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/relaykit/pkg/domain"
	"github.com/aretw0/relaykit/pkg/params"
	"github.com/aretw0/relaykit/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *params.Registry {
	t.Helper()
	reg, err := params.NewRegistry(Layout())
	require.NoError(t, err)
	return reg
}

func TestLayout(t *testing.T) {
	l := Layout()
	require.NoError(t, l.Validate())

	ids := make([]domain.ParameterID, 0, len(l))
	for _, spec := range l {
		ids = append(ids, spec.ID)
	}
	assert.Equal(t, []domain.ParameterID{Gain, Mix, Bypass, Mode}, ids)

	reg := newRegistry(t)
	gain, err := reg.Float(Gain)
	require.NoError(t, err)
	assert.Equal(t, 0.5, gain)
	mix, err := reg.Float(Mix)
	require.NoError(t, err)
	assert.Equal(t, 1.0, mix)
	mode, err := reg.Choice(Mode)
	require.NoError(t, err)
	assert.Equal(t, ModeClean, mode)

	// callers may not mutate the shared choice list
	l[3].Choices[0] = "changed"
	assert.Equal(t, "Clean", Layout()[3].Choices[0])
}

func TestProcess(t *testing.T) {
	t.Run("bypassed passes input through", func(t *testing.T) {
		got := Process(0.6, 1, 1, true, ModeDrive)
		assert.Equal(t, VisualizerData{InputLevel: 0.6, OutputLevel: 0.6, Bypassed: true}, got)
	})
	t.Run("dry mix passes input through", func(t *testing.T) {
		got := Process(0.3, 1, 0, false, ModeClean)
		assert.InDelta(t, 0.3, got.OutputLevel, 1e-9)
	})
	t.Run("drive raises the output", func(t *testing.T) {
		clean := Process(0.3, 0.5, 1, false, ModeClean)
		drive := Process(0.3, 0.5, 1, false, ModeDrive)
		assert.Greater(t, drive.OutputLevel, clean.OutputLevel)
		assert.LessOrEqual(t, drive.OutputLevel, 1.0)
	})
	t.Run("silent gain", func(t *testing.T) {
		got := Process(0.8, 0, 1, false, ModeWarm)
		assert.Equal(t, 0.0, got.OutputLevel)
	})
}

func TestMeter_Telemetry(t *testing.T) {
	reg := newRegistry(t)
	var src ports.TelemetrySource = NewMeter(reg, 0)

	e, ok := src.Telemetry()
	require.True(t, ok)
	assert.Equal(t, VisualizerEvent, e.Name)
	data, ok := e.Payload.(VisualizerData)
	require.True(t, ok)
	assert.InDelta(t, 0.5, data.InputLevel, 1e-9) // sin(0)
	assert.False(t, data.Bypassed)

	bypass, err := reg.Get(Bypass)
	require.NoError(t, err)
	_, err = bypass.Set(domain.BoolValue(true), domain.OriginHost)
	require.NoError(t, err)

	e, ok = src.Telemetry()
	require.True(t, ok)
	data = e.Payload.(VisualizerData)
	assert.True(t, data.Bypassed)
	assert.Equal(t, data.InputLevel, data.OutputLevel)
	assert.NotEqual(t, 0.5, data.InputLevel, "phase advances per tick")
}

func TestMeter_MissingParameterSkipsTick(t *testing.T) {
	reg, err := params.NewRegistry(Layout()[:1])
	require.NoError(t, err)

	_, ok := NewMeter(reg, 0.1).Telemetry()
	assert.False(t, ok)
}

func TestTriangle(t *testing.T) {
	assert.Equal(t, 0.0, triangle(0, 4))
	assert.Equal(t, 0.5, triangle(1, 4))
	assert.Equal(t, 1.0, triangle(2, 4))
	assert.Equal(t, 0.5, triangle(3, 4))
	assert.Equal(t, 0.0, triangle(4, 4))
}

func TestNewLane_Errors(t *testing.T) {
	reg := newRegistry(t)
	mix, err := reg.Get(Mix)
	require.NoError(t, err)

	_, err = NewLane(nil, time.Second)
	assert.Error(t, err)
	_, err = NewLane(mix, 0)
	assert.Error(t, err)
}

func TestLane_WritesUntilCancelled(t *testing.T) {
	reg := newRegistry(t)
	mix, err := reg.Get(Mix)
	require.NoError(t, err)

	var mu sync.Mutex
	var origins []domain.Origin
	cancelSub := mix.Subscribe(func(c ports.Change) {
		mu.Lock()
		defer mu.Unlock()
		origins = append(origins, c.Origin)
	})
	defer cancelSub()

	lane, err := NewLane(mix, 40*time.Millisecond, WithLaneSteps(4))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lane.Run(ctx) }()

	assert.Eventually(t, func() bool {
		writes, _ := lane.Stats()
		return writes >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("lane did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, origins)
	for _, o := range origins {
		assert.Equal(t, domain.OriginAutomation, o)
	}
}

func TestLane_RefusedDuringGesture(t *testing.T) {
	reg := newRegistry(t)
	gain, err := reg.Get(Gain)
	require.NoError(t, err)

	gain.BeginGesture()
	lane, err := NewLane(gain, 20*time.Millisecond, WithLaneSteps(2))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = lane.Run(ctx) }()

	assert.Eventually(t, func() bool {
		_, refused := lane.Stats()
		return refused >= 2
	}, 2*time.Second, 5*time.Millisecond)

	writes, _ := lane.Stats()
	assert.Zero(t, writes)
	v, err := reg.Float(Gain)
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)
}
