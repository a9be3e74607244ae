package engine

import (
	"sync"
	"time"

	"weatherlink-go/types"
)

// Store holds every piece of mutable state the RF thread owns: the latest
// current-weather snapshot, device config, connection status, pairing
// state, and the history cache. A single coarse mutex protects it;
// handlers complete in milliseconds, so contention is
// negligible and collaborators reading from the host thread always see an
// atomic snapshot.
type Store struct {
	mu sync.Mutex

	current      types.CurrentReading
	haveCurrent  bool
	config       types.DeviceConfig
	haveConfig   bool
	desiredRaw   *[125]byte // set by RequestConfigChange; nil when no change is pending
	conn         types.ConnectionStatus
	pairing      types.PairingState
	commInterval byte

	history *HistoryCache
}

// NewStore returns a Store with its history cache gated at the wait_at_start
// state and a default comm-mode interval (matching the console's own
// default current-weather broadcast cadence before any config is known).
func NewStore() *Store {
	return &Store{
		history:      NewHistoryCache(),
		commInterval: defaultCommInterval,
	}
}

const defaultCommInterval byte = 3

// History returns the shared history cache (itself independently locked).
func (s *Store) History() *HistoryCache { return s.history }

// CurrentReading returns the last decoded snapshot and whether one exists
// yet.
func (s *Store) CurrentReading() (types.CurrentReading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.haveCurrent
}

// Config returns the last decoded device config and whether one exists yet.
func (s *Store) Config() (types.DeviceConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config, s.haveConfig
}

// ConnectionStatus returns a snapshot of the connection status.
func (s *Store) ConnectionStatus() types.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Pairing returns a snapshot of the pairing state.
func (s *Store) Pairing() types.PairingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairing
}

// RequestConfigChange arms a pending host-side config change; the engine's
// reconciliation logic will ask the console to accept it (ReqSetConfig)
// until the last decoded config payload equals raw byte for byte (see
// testConfigChanged).
func (s *Store) RequestConfigChange(raw [125]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.desiredRaw = &raw
}

// testConfigChanged reports whether a host-side config change is still
// pending: the desired payload differs from what the console last echoed
// back as its current config.
func (s *Store) testConfigChanged() bool {
	if s.desiredRaw == nil {
		return false
	}
	if !s.haveConfig {
		return true
	}
	return *s.desiredRaw != s.config.Raw
}

// registerPairing adopts dongleID as the expected console id the first
// time an unpaired console makes contact. Once set it is never silently
// replaced; a caller that observes a different
// id arriving after pairing should treat it as UnknownDevice, not call
// this again.
func (s *Store) registerPairing(dongleID uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pairing.Paired {
		return
	}
	s.pairing = types.PairingState{Paired: true, ConsoleID: dongleID}
}

// observeDeviceID validates an inbound frame's device id against the
// pairing state. Pairing frames (id == the sentinel) always pass. While
// unpaired, the first real id seen is adopted as the console's — a console
// paired in an earlier run keeps sending its real id, and refusing it
// would deadlock the driver on every restart. Once paired, the id is never
// silently replaced: a mismatch fails and the caller reports
// UnknownDevice.
func (s *Store) observeDeviceID(id uint16, pairingSentinel uint16) bool {
	if id == pairingSentinel {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pairing.Paired {
		s.pairing = types.PairingState{Paired: true, ConsoleID: id}
		return true
	}
	return id == s.pairing.ConsoleID
}

// outboundConfig returns the payload a SendConfig frame should carry: the
// pending host-side change if one is armed, else the last decoded config.
// ok is false when neither exists yet.
func (s *Store) outboundConfig() (raw [125]byte, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.desiredRaw != nil {
		return *s.desiredRaw, true
	}
	if s.haveConfig {
		return s.config.Raw, true
	}
	return raw, false
}

func (s *Store) updateConnStatus(now time.Time, linkQuality int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.LastSeen = now
	s.conn.LastLinkQuality = linkQuality
}

func (s *Store) setBattery(b types.BatteryFlags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.LastBattery = b
}

func (s *Store) setCurrentWeatherAt(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.LastWeatherAt = now
}

func (s *Store) setHistoryAt(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.LastHistoryAt = now
}

func (s *Store) setConfigAt(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.LastConfigAt = now
}

func (s *Store) setCurrent(r types.CurrentReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = r
	s.haveCurrent = true
}

func (s *Store) setConfig(c types.DeviceConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = c
	s.haveConfig = true
}

func (s *Store) resetMinMaxFlags() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.ResetMinMaxFlags = 0
}

func (s *Store) commInt() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commInterval
}

func (s *Store) setCommInt(v byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commInterval = v
}

// configChecksumMatches reports whether a frame's echoed config checksum
// matches what the store has on file. Used by the reconciliation decision: a
// mismatch (or no config yet) means GetConfig takes priority over anything
// else.
func (s *Store) configChecksumMatches(echoed uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.haveConfig && echoed != 0 && echoed == s.config.InBufChecksum
}
