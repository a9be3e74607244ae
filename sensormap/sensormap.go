// Package sensormap implements the host-side sensor map: the config surface
// that binds the console's 18 raw channels (Temp0..Temp8, Humidity0..Humidity8)
// to user-chosen labels, and projects a decoded CurrentReading into labeled
// observations.
package sensormap

import (
	"fmt"

	"weatherlink-go/types"
)

// Kind distinguishes a temperature channel binding from a humidity one; the
// two live in the same label namespace but read different fields off a
// types.ChannelReading.
type Kind int

const (
	KindTemperature Kind = iota
	KindHumidity
)

// Binding is one entry of the sensor map: channel 0..8 of the given kind,
// labeled for host consumption.
type Binding struct {
	Channel int
	Kind    Kind
	Label   string
}

// Map is the validated set of bindings the host reads before projecting any
// reading. Built with New; the zero value is not valid.
type Map struct {
	bindings []Binding
}

// New validates bindings — channel in range, kind known, every label
// non-empty and unique — and returns the resulting Map. A duplicate label
// is rejected rather than silently keeping the first: label uniqueness is
// a hard invariant, not a tie-break rule.
func New(bindings []Binding) (*Map, error) {
	seen := make(map[string]struct{}, len(bindings))
	for _, b := range bindings {
		if b.Channel < 0 || b.Channel >= types.NumChannels {
			return nil, fmt.Errorf("sensormap: channel %d out of range [0,%d)", b.Channel, types.NumChannels)
		}
		if b.Kind != KindTemperature && b.Kind != KindHumidity {
			return nil, fmt.Errorf("sensormap: unknown kind %d for label %q", b.Kind, b.Label)
		}
		if b.Label == "" {
			return nil, fmt.Errorf("sensormap: channel %d has an empty label", b.Channel)
		}
		if _, dup := seen[b.Label]; dup {
			return nil, fmt.Errorf("sensormap: label %q is bound more than once", b.Label)
		}
		seen[b.Label] = struct{}{}
	}
	out := make([]Binding, len(bindings))
	copy(out, bindings)
	return &Map{bindings: out}, nil
}

// Observation is one labeled value projected out of a CurrentReading.
type Observation struct {
	Label string
	Value float64
}

// Project walks the map's bindings against r and returns one Observation per
// binding whose underlying channel reading is present. A binding whose
// channel reports NP or OFL (TemperaturePresent/HumidityPresent false) is
// omitted entirely rather than emitted with a sentinel value: an absent
// reading drops its label from the projection instead of surfacing
// 81.1/136.0/110/121 to a consumer that was never told about those
// sentinels.
func (m *Map) Project(r types.CurrentReading) []Observation {
	obs := make([]Observation, 0, len(m.bindings))
	for _, b := range m.bindings {
		ch := r.Channels[b.Channel]
		switch b.Kind {
		case KindTemperature:
			if ch.TemperaturePresent {
				obs = append(obs, Observation{Label: b.Label, Value: ch.Temperature})
			}
		case KindHumidity:
			if ch.HumidityPresent {
				obs = append(obs, Observation{Label: b.Label, Value: float64(ch.Humidity)})
			}
		}
	}
	return obs
}

// Bindings returns a copy of the map's bindings, for display or persistence.
func (m *Map) Bindings() []Binding {
	out := make([]Binding, len(m.bindings))
	copy(out, m.bindings)
	return out
}
