package plugin

import (
	"math"
	"sync"

	"github.com/aretw0/relaykit/pkg/domain"
	"github.com/aretw0/relaykit/pkg/params"
	"github.com/aretw0/relaykit/pkg/ports"
)

// VisualizerEvent is the name of the meter event.
const VisualizerEvent = "visualizerData"

// VisualizerData is the payload of VisualizerEvent.
type VisualizerData struct {
	InputLevel  float64 `json:"inputLevel"`
	OutputLevel float64 `json:"outputLevel"`
	Bypassed    bool    `json:"bypassed"`
}

// drive multiplier per mode
var modeDrive = [...]float64{ModeClean: 1.0, ModeWarm: 1.3, ModeDrive: 1.8}

// Meter synthesizes input and output levels from the current parameter values.
// There is no audio engine behind it: the input is a slow sine.
type Meter struct {
	registry *params.Registry
	step     float64

	mu    sync.Mutex
	phase float64
}

var _ ports.TelemetrySource = (*Meter)(nil)

// NewMeter creates a meter reading from registry, which must hold Layout.
// step is the phase advance per tick in radians.
func NewMeter(registry *params.Registry, step float64) *Meter {
	if step <= 0 {
		step = 0.15
	}
	return &Meter{registry: registry, step: step}
}

// Telemetry implements ports.TelemetrySource.
func (m *Meter) Telemetry() (domain.Event, bool) {
	m.mu.Lock()
	phase := m.phase
	m.phase = math.Mod(m.phase+m.step, 2*math.Pi)
	m.mu.Unlock()

	data, err := m.levels(phase)
	if err != nil {
		return domain.Event{}, false
	}
	return domain.Event{Name: VisualizerEvent, Payload: data}, true
}

func (m *Meter) levels(phase float64) (VisualizerData, error) {
	gain, err := m.registry.Float(Gain)
	if err != nil {
		return VisualizerData{}, err
	}
	mix, err := m.registry.Float(Mix)
	if err != nil {
		return VisualizerData{}, err
	}
	bypassed, err := m.registry.Bool(Bypass)
	if err != nil {
		return VisualizerData{}, err
	}
	mode, err := m.registry.Choice(Mode)
	if err != nil {
		return VisualizerData{}, err
	}
	return Process(0.5+0.4*math.Sin(phase), gain, mix, bypassed, mode), nil
}

// Process is the demo effect: a gain stage with mode-dependent drive
// blended with the dry input.
func Process(input, gain, mix float64, bypassed bool, mode int) VisualizerData {
	out := VisualizerData{InputLevel: input, OutputLevel: input, Bypassed: bypassed}
	if bypassed {
		return out
	}
	drive := 1.0
	if mode >= 0 && mode < len(modeDrive) {
		drive = modeDrive[mode]
	}
	wet := math.Tanh(input * gain * 2 * drive)
	out.OutputLevel = math.Min(1, (1-mix)*input+mix*wet)
	return out
}
