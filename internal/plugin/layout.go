// Package plugin is the demo control surface served by the relaykit binary:
// a small effect with four parameters, a level meter and an optional
// simulated automation lane.
package plugin

import "github.com/aretw0/relaykit/pkg/domain"

// Parameter IDs. They double as relay identifiers on the UI side.
const (
	Gain   domain.ParameterID = "gain"
	Mix    domain.ParameterID = "mix"
	Bypass domain.ParameterID = "bypass"
	Mode   domain.ParameterID = "mode"
)

// Mode choices, in index order.
const (
	ModeClean = iota
	ModeWarm
	ModeDrive
)

var modeNames = []string{"Clean", "Warm", "Drive"}

// Layout returns the parameters of the demo plugin, in display order.
func Layout() domain.Layout {
	return domain.Layout{
		{
			ID:      Gain,
			Name:    "Gain",
			Kind:    domain.Continuous,
			Range:   domain.Range{Min: 0, Max: 1, Interval: 0.001},
			Default: domain.FloatValue(0.5),
		},
		{
			ID:      Mix,
			Name:    "Mix",
			Kind:    domain.Continuous,
			Range:   domain.Range{Min: 0, Max: 1, Interval: 0.001},
			Default: domain.FloatValue(1.0),
		},
		{
			ID:      Bypass,
			Name:    "Bypass",
			Kind:    domain.Boolean,
			Default: domain.BoolValue(false),
		},
		{
			ID:      Mode,
			Name:    "Mode",
			Kind:    domain.Enumerated,
			Choices: append([]string(nil), modeNames...),
			Default: domain.IndexValue(ModeClean),
		},
	}
}
