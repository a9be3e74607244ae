package engine

import (
	"testing"
	"time"

	"weatherlink-go/types"
)

func TestHistoryCacheStartsGated(t *testing.T) {
	c := NewHistoryCache()
	if !c.WaitingAtStart() {
		t.Fatalf("expected a fresh cache to be waiting at start")
	}
	if c.Armed() {
		t.Fatalf("expected a fresh cache to be unarmed")
	}
	if addr := c.NextRequestAddress(true); addr != 0xFFFFFF {
		t.Fatalf("unarmed NextRequestAddress = %#x, want 0xFFFFFF sentinel", addr)
	}
}

func TestHistoryCacheArmOpensGate(t *testing.T) {
	c := NewHistoryCache()
	c.Arm(time.Time{}, 100000) // oversized request, must clamp
	if c.WaitingAtStart() {
		t.Fatalf("expected Arm to clear the wait_at_start gate")
	}
	if !c.Armed() {
		t.Fatalf("expected cache to be armed")
	}
}

func TestOutstandingWrapsModulo(t *testing.T) {
	if got := Outstanding(5, 59998); got != 7 {
		// (5 - 59998) mod 60000 = 7
		t.Fatalf("Outstanding = %d, want 7", got)
	}
	if got := Outstanding(100, 50); got != 50 {
		t.Fatalf("Outstanding = %d, want 50", got)
	}
}

// TestHistoryDecodeScenarioAddressMath pins the worked example: latestIndex
// must come out to 63066 for latestAddress 0x1E4E40.
func TestHistoryDecodeScenarioAddressMath(t *testing.T) {
	block := types.HistoryBlock{LatestAddress: 0x1E4E40, ThisAddress: 0x070180}
	if got := block.LatestIndex(); got != 63066 {
		t.Fatalf("LatestIndex = %d, want 63066", got)
	}
	if got := block.ThisIndex(); got != 24 {
		t.Fatalf("ThisIndex = %d, want 24", got)
	}
}

func TestHistoryCacheIngestTracksCursorsRegardlessOfArming(t *testing.T) {
	c := NewHistoryCache()
	block := types.HistoryBlock{LatestAddress: 0x1E4E40, ThisAddress: 0x070180}
	c.Ingest(block)
	if c.NumScanned() != 1 {
		t.Fatalf("NumScanned = %d, want 1", c.NumScanned())
	}
	if got := c.NumOutstanding(); got != Outstanding(block.LatestIndex(), block.ThisIndex()) {
		t.Fatalf("NumOutstanding = %d, want %d", got, Outstanding(block.LatestIndex(), block.ThisIndex()))
	}
	if len(c.Records()) != 0 {
		t.Fatalf("expected no records ingested while unarmed")
	}
}

func TestHistoryCacheIngestRecordsWhenArmed(t *testing.T) {
	c := NewHistoryCache()
	c.Arm(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), 10)

	var block types.HistoryBlock
	block.ThisAddress = types.IndexToAddress(1000)
	block.LatestAddress = types.IndexToAddress(1005)
	for i := range block.Samples {
		block.Samples[i].TimestampOK = true
		block.Samples[i].Timestamp = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	c.Ingest(block)

	recs := c.Records()
	if len(recs) != 6 {
		t.Fatalf("len(records) = %d, want 6", len(recs))
	}
	if recs[0].Index != 1000 {
		t.Fatalf("recs[0].Index = %d, want 1000 (position 1 == thisIndex)", recs[0].Index)
	}
	if recs[5].Index != 995 {
		t.Fatalf("recs[5].Index = %d, want 995", recs[5].Index)
	}
}

func TestHistoryCacheIngestSkipsRecordsBeforeSinceTS(t *testing.T) {
	c := NewHistoryCache()
	cutoff := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	c.Arm(cutoff, 10)

	var block types.HistoryBlock
	block.Samples[0].TimestampOK = true
	block.Samples[0].Timestamp = cutoff.Add(time.Hour) // after cutoff: kept
	block.Samples[1].TimestampOK = true
	block.Samples[1].Timestamp = cutoff.Add(-time.Hour) // before cutoff: skipped
	c.Ingest(block)

	if len(c.Records()) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(c.Records()))
	}
}

func TestNextRequestAddressWithoutCollectReturnsSentinel(t *testing.T) {
	c := NewHistoryCache()
	c.Arm(time.Time{}, 10)
	block := types.HistoryBlock{LatestAddress: types.IndexToAddress(500), ThisAddress: types.IndexToAddress(490)}
	c.Ingest(block)

	if addr := c.NextRequestAddress(false); addr != 0xFFFFFF {
		t.Fatalf("NextRequestAddress(false) = %#x, want sentinel 0xFFFFFF", addr)
	}
}

func TestNextRequestAddressWithCollectWalksOutstanding(t *testing.T) {
	c := NewHistoryCache()
	c.Arm(time.Time{}, 10)
	block := types.HistoryBlock{LatestAddress: types.IndexToAddress(500), ThisAddress: types.IndexToAddress(490)}
	c.Ingest(block)

	want := types.IndexToAddress(491)
	if addr := c.NextRequestAddress(true); addr != want {
		t.Fatalf("NextRequestAddress(true) = %#x, want %#x", addr, want)
	}
}
