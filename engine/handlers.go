package engine

import (
	"fmt"
	"time"

	"weatherlink-go/errcode"
	"weatherlink-go/frame"
)

// handleFrame is the protocol's single dispatch point: trim the
// raw transfer down to one frame, validate the device id against pairing
// state, update connection status, then route to the per-kind handler.
// Each handler updates its store, decides the next action, and returns the
// outbound frame bytes plus the timing table entry that decision carries.
// A nil outbound with a nil error means "nothing to transmit" — the run
// loop returns the dongle to RX instead.
func (e *Engine) handleFrame(raw []byte) ([]byte, Timing, error) {
	buf, err := frame.Trim(raw)
	if err != nil {
		return nil, TimingFor(NextGetHistory), err
	}
	h, kind, err := frame.ParseHeader(buf)
	if err != nil {
		return nil, TimingFor(NextGetHistory), err
	}

	if !e.store.observeDeviceID(h.DeviceID, frame.PairingDeviceID) {
		return nil, TimingFor(NextGetHistory), &errcode.E{
			C: errcode.UnknownDevice, Op: "handle_frame",
			Msg: fmt.Sprintf("frame device id %#x does not match registered console", h.DeviceID),
		}
	}

	now := e.now()
	e.store.updateConnStatus(now, h.LinkQuality)

	switch kind {
	case frame.KindReqFirstConfig:
		return e.handlePairing(h), TimingFor(NextReqFirstConfig), nil
	case frame.KindDataWritten:
		return e.handleDataWritten()
	case frame.KindConfig:
		return e.handleConfig(buf, h, now)
	case frame.KindCurrentWeather:
		return e.handleCurrentWeather(buf, h, now)
	case frame.KindHistory:
		return e.handleHistory(buf, h, now)
	case frame.KindReqSetConfig:
		return e.handleReqSetConfig(h, now)
	case frame.KindReqSetTime:
		return e.handleReqSetTime(h, now)
	default:
		return nil, TimingFor(NextGetHistory), &errcode.E{C: errcode.BadResponse, Op: "handle_frame", Msg: "unhandled frame kind"}
	}
}

// buildGenericAck builds the ack-shaped outbound frame for any decision
// that isn't SendConfig, SendTime, or the special pairing ack: echoed
// device id and flag, the wire action the decision maps to, the echoed
// config checksum, the store's comm-mode interval, and whatever history
// address the cache currently wants.
func (e *Engine) buildGenericAck(h frame.Header, kind NextActionKind) []byte {
	histAddr := e.store.history.NextRequestAddress(e.opts.CollectOutstandingHistory)
	return frame.BuildAck(h.DeviceID, h.Flag, kind.WireAction(), h.ConfigChecksum, e.store.commInt(), histAddr)
}

// applyMorph implements the morphing rule on top of a reconciliation
// decision: a pending GetHistory is overridden to GetCurrent when the
// current-weather data has gone stale, so a long history catchup never
// starves the weather stream. The rule excludes frames from a console
// still announcing itself with the pairing id — those belong to the
// bootstrap handshake, where thrashing between GetHistory and GetCurrent
// would only delay the first config handover.
func (e *Engine) applyMorph(kind NextActionKind, devID uint16, now time.Time) NextActionKind {
	if kind != NextGetHistory || devID == frame.PairingDeviceID {
		return kind
	}
	if e.store.currentStale(now) {
		return NextGetCurrent
	}
	return kind
}

// handlePairing implements the pairing handshake: adopt the dongle's own
// id as the expected console id, and ack with GetConfig
// (echoing the inbound F0F0 id/flag, not yet the dongle's real id — the
// console doesn't know its own id is "wrong" until it has a config to
// compare against).
func (e *Engine) handlePairing(h frame.Header) []byte {
	e.store.registerPairing(e.identity.ID)
	return frame.BuildPairingAck(h.DeviceID, h.Flag, e.store.commInt())
}

// handleDataWritten is the not-an-error control-flow signal: the console
// acknowledged a prior SendTime/SendConfig. Reset the pending min/max
// reset flag and transmit nothing — the run loop puts the dongle straight
// back into RX and the console resumes its broadcast schedule.
func (e *Engine) handleDataWritten() ([]byte, Timing, error) {
	e.store.resetMinMaxFlags()
	return nil, TimingFor(NextGetHistory), nil
}

// handleConfig decodes a config frame into the store, stamps
// ConnectionStatus.LastConfigAt, then reconciles as usual — now that the
// store has a config on file, reconciliation will normally proceed to
// GetHistory (or ReqSetConfig, if a host-side change is still pending).
func (e *Engine) handleConfig(buf []byte, h frame.Header, now time.Time) ([]byte, Timing, error) {
	cfg, err := frame.DecodeConfig(buf)
	if err != nil {
		return nil, TimingFor(NextGetHistory), err
	}
	e.store.setConfig(cfg)
	e.store.setConfigAt(now)
	e.pubRetained("config", cfg)

	kind := e.applyMorph(e.store.reconcile(h.ConfigChecksum), h.DeviceID, now)
	return e.buildGenericAck(h, kind), TimingFor(kind), nil
}

// handleCurrentWeather decodes a current-weather frame, replaces
// the store's snapshot atomically, stamps the battery bitmap and
// ConnectionStatus.LastWeatherAt, then reconciles.
func (e *Engine) handleCurrentWeather(buf []byte, h frame.Header, now time.Time) ([]byte, Timing, error) {
	reading, err := frame.DecodeCurrentWeather(buf, h)
	if err != nil {
		return nil, TimingFor(NextGetHistory), err
	}
	reading.Timestamp = now
	e.store.setCurrent(reading)
	e.store.setBattery(reading.Battery)
	e.store.setCurrentWeatherAt(now)
	e.pubRetained("current", reading)

	kind := e.applyMorph(e.store.reconcile(h.ConfigChecksum), h.DeviceID, now)
	return e.buildGenericAck(h, kind), TimingFor(kind), nil
}

// handleHistory decodes a history block, ingests it into the
// history cache (which tracks latestIndex/thisIndex/outstanding whether or
// not collection is armed), stamps ConnectionStatus.LastHistoryAt, then
// reconciles — applying the morphing rule, since this is exactly the case
// the rule exists for (a long history catchup must not starve the
// current-weather stream).
func (e *Engine) handleHistory(buf []byte, h frame.Header, now time.Time) ([]byte, Timing, error) {
	block, err := frame.DecodeHistory(buf, h)
	if err != nil {
		return nil, TimingFor(NextGetHistory), err
	}
	e.store.history.Ingest(block)
	e.store.setHistoryAt(now)
	e.pubRetained("history", block)

	kind := e.applyMorph(e.store.reconcile(h.ConfigChecksum), h.DeviceID, now)
	return e.buildGenericAck(h, kind), TimingFor(kind), nil
}

// handleReqSetConfig answers the console's explicit request to resend its
// config: build and send the full SendConfig frame from the store's
// pending (or last decoded) config payload, bypassing ordinary
// reconciliation — the console asked directly, so the host honours it
// directly. With no config payload on file yet there is nothing to send,
// so the handler falls back to a regular ack.
func (e *Engine) handleReqSetConfig(h frame.Header, now time.Time) ([]byte, Timing, error) {
	raw, ok := e.store.outboundConfig()
	if !ok {
		kind := e.applyMorph(e.store.reconcile(h.ConfigChecksum), h.DeviceID, now)
		return e.buildGenericAck(h, kind), TimingFor(kind), nil
	}
	return frame.BuildSendConfig(h.DeviceID, h.Flag, raw), TimingFor(NextSendConfig), nil
}

// handleReqSetTime answers the console's explicit request to resend the
// clock, subject to the send-time quantisation rule: if the current wall time
// falls within ±SendTimeQuantumWindow seconds of a whole-minute boundary,
// the host defers: instead of a SendTime frame it sends a regular ack
// whose comm-interval field carries the shortened wait the console should
// use before trying again.
func (e *Engine) handleReqSetTime(h frame.Header, now time.Time) ([]byte, Timing, error) {
	shortened, inWindow := sendTimeQuantum(now, e.opts.SendTimeQuantumWindow)
	if inWindow {
		kind := e.applyMorph(e.store.reconcile(h.ConfigChecksum), h.DeviceID, now)
		histAddr := e.store.history.NextRequestAddress(e.opts.CollectOutstandingHistory)
		ack := frame.BuildAck(h.DeviceID, h.Flag, kind.WireAction(), h.ConfigChecksum, byte(shortened), histAddr)
		return ack, TimingFor(kind), nil
	}
	return frame.BuildSendTime(h.DeviceID, h.Flag, h.ConfigChecksum, now), TimingFor(NextSendTime), nil
}
