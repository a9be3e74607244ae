package engine

import (
	"testing"
	"time"

	"weatherlink-go/types"
)

func TestReconcileRequestsConfigWhenChecksumUnknown(t *testing.T) {
	s := NewStore()
	if got := s.reconcile(0x1234); got != NextGetConfig {
		t.Fatalf("reconcile = %v, want NextGetConfig", got)
	}
}

func TestReconcileRequestsConfigWhenChecksumMismatches(t *testing.T) {
	s := NewStore()
	s.setConfig(mustConfig(0xAAAA))
	if got := s.reconcile(0xBBBB); got != NextGetConfig {
		t.Fatalf("reconcile = %v, want NextGetConfig", got)
	}
}

func TestReconcileRequestsSetConfigWhenChangePending(t *testing.T) {
	s := NewStore()
	s.setConfig(mustConfig(0xAAAA))
	var raw [125]byte
	raw[0] = 1
	s.RequestConfigChange(raw)
	if got := s.reconcile(0xAAAA); got != NextReqSetConfig {
		t.Fatalf("reconcile = %v, want NextReqSetConfig", got)
	}
}

func TestReconcileRequestsHistoryWhenStable(t *testing.T) {
	s := NewStore()
	s.setConfig(mustConfig(0xAAAA))
	if got := s.reconcile(0xAAAA); got != NextGetHistory {
		t.Fatalf("reconcile = %v, want NextGetHistory", got)
	}
}

func mustConfig(inBuf uint16) types.DeviceConfig {
	return types.DeviceConfig{InBufChecksum: inBuf, OutBufChecksum: inBuf}
}

func TestSendTimeQuantumScenario(t *testing.T) {
	tm := time.Date(2026, time.March, 5, 10, 30, 57, 0, time.UTC)
	shortened, inWindow := sendTimeQuantum(tm, 6)
	if !inWindow {
		t.Fatalf("expected :57 to fall inside the +-6s window")
	}
	if shortened != 9 {
		t.Fatalf("shortened interval = %d, want 9 (= 6 - (57 - 60))", shortened)
	}
}

func TestSendTimeQuantumOutsideWindow(t *testing.T) {
	tm := time.Date(2026, time.March, 5, 10, 30, 30, 0, time.UTC)
	if _, inWindow := sendTimeQuantum(tm, 6); inWindow {
		t.Fatalf(":30 should not fall inside the +-6s window")
	}
}

func TestSendTimeQuantumJustAfterBoundary(t *testing.T) {
	tm := time.Date(2026, time.March, 5, 10, 30, 2, 0, time.UTC)
	shortened, inWindow := sendTimeQuantum(tm, 6)
	if !inWindow {
		t.Fatalf("expected :02 to fall inside the +-6s window")
	}
	if shortened != 4 {
		t.Fatalf("shortened interval = %d, want 4", shortened)
	}
}
