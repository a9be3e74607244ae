package sensormap

import (
	"testing"

	"weatherlink-go/types"
)

func TestNewRejectsDuplicateLabel(t *testing.T) {
	_, err := New([]Binding{
		{Channel: 0, Kind: KindTemperature, Label: "outTemp"},
		{Channel: 1, Kind: KindTemperature, Label: "outTemp"},
	})
	if err == nil {
		t.Fatalf("expected an error for a duplicate label")
	}
}

func TestNewRejectsChannelOutOfRange(t *testing.T) {
	if _, err := New([]Binding{{Channel: types.NumChannels, Kind: KindTemperature, Label: "x"}}); err == nil {
		t.Fatalf("expected an error for an out-of-range channel")
	}
}

func TestNewRejectsEmptyLabel(t *testing.T) {
	if _, err := New([]Binding{{Channel: 0, Kind: KindTemperature, Label: ""}}); err == nil {
		t.Fatalf("expected an error for an empty label")
	}
}

// TestProjectScenario: Temp1 bound to outTemp but
// absent (NP) in the reading, Humidity4 bound to leafWet1 and present at 55.
// The projection must omit outTemp and emit leafWet1.
func TestProjectScenario(t *testing.T) {
	m, err := New([]Binding{
		{Channel: 1, Kind: KindTemperature, Label: "outTemp"},
		{Channel: 4, Kind: KindHumidity, Label: "leafWet1"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var r types.CurrentReading
	r.Channels[1].TemperaturePresent = false // NP(81.1): no reading this cycle
	r.Channels[4].Humidity = 55
	r.Channels[4].HumidityPresent = true

	obs := m.Project(r)
	if len(obs) != 1 {
		t.Fatalf("len(obs) = %d, want 1 (outTemp omitted)", len(obs))
	}
	if obs[0].Label != "leafWet1" || obs[0].Value != 55 {
		t.Fatalf("obs[0] = %+v, want {leafWet1 55}", obs[0])
	}
}

func TestProjectOmitsAbsentTemperatureButKeepsPresentOnes(t *testing.T) {
	m, err := New([]Binding{
		{Channel: 0, Kind: KindTemperature, Label: "outTemp"},
		{Channel: 0, Kind: KindHumidity, Label: "outHumidity"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var r types.CurrentReading
	r.Channels[0].Temperature = 31.9
	r.Channels[0].TemperaturePresent = true
	r.Channels[0].HumidityPresent = false

	obs := m.Project(r)
	if len(obs) != 1 || obs[0].Label != "outTemp" {
		t.Fatalf("obs = %+v, want only outTemp", obs)
	}
}
