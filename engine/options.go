package engine

import "time"

// Options configures the engine's policy knobs.
type Options struct {
	// CollectOutstandingHistory, when true, lets the engine walk the
	// outstanding-records window (ack with the next uncached index)
	// instead of always re-requesting the latest record. Defaults to
	// false: on first contact the outstanding window can run to
	// thousands of records, and walking it unasked would starve the
	// weather stream. See DESIGN.md.
	CollectOutstandingHistory bool

	// StaleThreshold is how long since the last current-weather frame
	// before the connection is considered stale and the staleness
	// messages start. The morphing rule has its own, much tighter
	// threshold derived from the comm-mode interval.
	StaleThreshold time.Duration

	// StaleLogInterval is the cadence at which "no new weather data" /
	// "no contact with console" messages are emitted once StaleThreshold
	// is exceeded.
	StaleLogInterval time.Duration

	// SendTimeQuantumWindow is the ±window, in seconds, around a whole
	// minute boundary within which the engine defers sending the clock
	// rather than risk the console applying it across a minute rollover.
	SendTimeQuantumWindow int

	// CommInterval is the communication-mode interval carried in every
	// outbound ack, governing how often the console broadcasts current
	// weather. Zero keeps the store's default.
	CommInterval byte
}

// DefaultOptions carries the protocol's staleness cadence (300s
// threshold, 600s repeat) and the ±6s send-time window.
func DefaultOptions() Options {
	return Options{
		CollectOutstandingHistory: false,
		StaleThreshold:            300 * time.Second,
		StaleLogInterval:          600 * time.Second,
		SendTimeQuantumWindow:     6,
		CommInterval:              3,
	}
}
