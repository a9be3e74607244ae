package engine

import (
	"sync"
	"time"

	"weatherlink-go/types"
	"weatherlink-go/x/mathx"
)

// HistoryRecord is one decoded history sample placed at its circular-buffer
// index.
type HistoryRecord struct {
	Index  int
	Sample types.HistorySample
}

// HistoryCache is the ordered append list of decoded history records plus
// the collection bookkeeping: the earliest wall time of interest, the
// clamped request size, the console-side cursors (next/latest index),
// outstanding and scanned counters, and the wait-at-start gate the RF
// engine blocks on until a caller arms collection.
type HistoryCache struct {
	mu sync.Mutex

	armed       bool
	waitAtStart bool
	sinceTS     time.Time
	numRec      int

	nextIndex      int
	latestIndex    int
	numOutstanding int
	numScanned     int

	records []HistoryRecord
}

// NewHistoryCache returns a cache that starts gated: the engine will not
// walk the outstanding-records window until Arm is called.
func NewHistoryCache() *HistoryCache {
	return &HistoryCache{waitAtStart: true}
}

// Arm opens the gate and bounds future collection to records at or after
// sinceTS, with at most numRec records kept (clamped to MaxRecords-2, per
// the console's circular buffer minus the slack the protocol reserves).
func (c *HistoryCache) Arm(sinceTS time.Time, numRec int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinceTS = sinceTS
	c.numRec = mathx.Clamp(numRec, 0, types.MaxRecords-2)
	c.waitAtStart = false
	c.armed = true
}

// Armed reports whether a caller has called Arm.
func (c *HistoryCache) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// WaitingAtStart reports whether the cache is still gated.
func (c *HistoryCache) WaitingAtStart() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitAtStart
}

// Outstanding computes the outstanding-record count:
// (latestIndex - thisIndex) mod MaxRecords.
func Outstanding(latestIndex, thisIndex int) int {
	return mathx.ModPositive(latestIndex-thisIndex, types.MaxRecords)
}

// Ingest records the cursor bookkeeping from a decoded history block and,
// if armed, appends every sample at or after sinceTS up to numRec records.
// Position 1 (Samples[0], newest) is taken to sit at thisIndex; positions
// 2..6 step one record earlier each, matching "positions 1..6, newest
// first" against a block whose thisAddress names the record being
// delivered.
func (c *HistoryCache) Ingest(block types.HistoryBlock) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latestIndex = block.LatestIndex()
	c.nextIndex = block.ThisIndex()
	c.numOutstanding = Outstanding(c.latestIndex, c.nextIndex)
	c.numScanned++

	if !c.armed {
		return
	}
	for pos, s := range block.Samples {
		if !s.TimestampOK || s.Timestamp.Before(c.sinceTS) {
			continue
		}
		if len(c.records) >= c.numRec {
			return
		}
		idx := mathx.ModPositive(c.nextIndex-pos, types.MaxRecords)
		c.records = append(c.records, HistoryRecord{Index: idx, Sample: s})
	}
}

// Records returns a copy of the accumulated records.
func (c *HistoryCache) Records() []HistoryRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]HistoryRecord, len(c.records))
	copy(out, c.records)
	return out
}

// NumOutstanding returns the most recently ingested outstanding-record count.
func (c *HistoryCache) NumOutstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.numOutstanding
}

// NumScanned returns how many history blocks have been ingested.
func (c *HistoryCache) NumScanned() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.numScanned
}

// NextRequestAddress computes the flash address the next GetHistory ack
// should target. While unarmed, or while
// collectOutstanding is false, or once there is nothing outstanding, the
// engine acks with latestIndex so the console keeps sending current
// weather rather than stalling on a multi-thousand-record catch-up walk.
// Only when collectOutstanding is true and records remain outstanding does
// it ask for the next uncached index.
func (c *HistoryCache) NextRequestAddress(collectOutstanding bool) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waitAtStart || !c.armed || !collectOutstanding || c.numOutstanding == 0 {
		return 0xFFFFFF
	}
	next := (c.nextIndex + 1) % types.MaxRecords
	return types.IndexToAddress(next)
}
