package engine

import (
	"context"
	"fmt"
	"time"

	"weatherlink-go/bus"
	"weatherlink-go/errcode"
	"weatherlink-go/types"
)

// Dongle is the subset of usbtransport.Transport the engine drives. Kept as
// an interface, like radio.controller, so tests can supply a fake.
type Dongle interface {
	SetRX(ctx context.Context) error
	SetTX(ctx context.Context) error
	GetState(ctx context.Context) (b0, b1 byte, err error)
	GetFrame(ctx context.Context, maxLen int) ([]byte, error)
	SetFrame(ctx context.Context, frame []byte) error
}

const maxFrameLen = 273

// pollBudget bounds how many non-ready polls the engine tolerates before
// giving up on this wake and re-entering the outer sleep/poll cycle.
const pollBudget = 200

// Engine is the reactive protocol engine: one goroutine owns the dongle and
// every mutable store, woken by its own sleep/poll cycle rather than any
// external notification. One goroutine owning all mutable state is the
// single-run-loop idiom this codebase uses throughout.
type Engine struct {
	dongle   Dongle
	store    *Store
	identity types.DeviceIdentity
	opts     Options

	conn *bus.Connection // optional; nil-safe publication helpers below

	now func() time.Time

	lastStaleLog time.Time
}

// New returns an Engine ready to Run. identity is the dongle's own identity
// (read once at startup by the radio configurator); it is what gets adopted
// as the registered console id the first time an unpaired console appears.
func New(dongle Dongle, identity types.DeviceIdentity, opts Options, conn *bus.Connection) *Engine {
	e := &Engine{
		dongle:   dongle,
		store:    NewStore(),
		identity: identity,
		opts:     opts,
		conn:     conn,
		now:      time.Now,
	}
	if opts.CommInterval != 0 {
		e.store.setCommInt(opts.CommInterval)
	}
	return e
}

// Store exposes the shared stores to the host thread. Every accessor takes
// the coarse mutex only for the duration of the read.
func (e *Engine) Store() *Store { return e.store }

// ArmHistory opens the history cache's gate; see HistoryCache.Arm.
func (e *Engine) ArmHistory(sinceTS time.Time, numRec int) {
	e.store.history.Arm(sinceTS, numRec)
}

// RequestConfigChange arms a pending host-side config change the engine
// will push to the console via ReqSetConfig/SendConfig.
func (e *Engine) RequestConfigChange(raw [125]byte) {
	e.store.RequestConfigChange(raw)
}

// Run is the RF thread's entire lifetime: it loops until ctx is cancelled,
// each iteration sleeping, polling for readiness, reading one frame,
// dispatching it, and handing the reply back to the dongle. Cancellation
// is observed at the top of the loop and inside both sleeps.
func (e *Engine) Run(ctx context.Context) {
	e.pubState("starting", "")
	defer func() {
		if r := recover(); r != nil {
			e.pubLog(fmt.Sprintf("rf thread fatal: %v", r))
			e.pubState("stopped", string(errcode.ThreadFatal))
			return
		}
		e.pubState("stopped", "context_cancelled")
	}()

	timing := Timing{FirstSleep: 300 * time.Millisecond, NextSleep: 10 * time.Millisecond}

	for {
		if ctx.Err() != nil {
			return
		}
		if !e.sleepCtx(ctx, timing.FirstSleep) {
			return
		}

		e.checkStaleness()

		ready, err := e.pollUntilReady(ctx, timing.NextSleep)
		if err != nil {
			e.logTransportFailure(err)
			continue
		}
		if !ready {
			continue
		}

		buf, err := e.dongle.GetFrame(ctx, maxFrameLen)
		if err != nil {
			e.logTransportFailure(err)
			continue
		}

		outbound, nextTiming, err := e.handleFrame(buf)
		if err != nil {
			e.logProtocolError(err)
			timing = nextTiming
			continue
		}

		if outbound == nil {
			// DataWritten: nothing to transmit, go straight back to receive.
			if err := e.dongle.SetRX(ctx); err != nil {
				e.logTransportFailure(err)
			}
			timing = nextTiming
			continue
		}

		if err := e.dongle.SetFrame(ctx, outbound); err != nil {
			e.logTransportFailure(err)
			continue
		}
		if err := e.dongle.SetTX(ctx); err != nil {
			e.logTransportFailure(err)
			continue
		}

		timing = nextTiming
	}
}

// pollUntilReady polls get_state until a non-idle
// state is observed, sleeping nextSleep between polls, bounded by
// pollBudget. Only the frame-ready state (0x16) is treated as "go read a
// frame"; anything else (including the intermediate/idle states) just
// means keep polling.
func (e *Engine) pollUntilReady(ctx context.Context, nextSleep time.Duration) (ready bool, err error) {
	for i := 0; i < pollBudget; i++ {
		if ctx.Err() != nil {
			return false, nil
		}
		b0, _, err := e.dongle.GetState(ctx)
		if err != nil {
			return false, err
		}
		if b0 == stateFrameReady {
			return true, nil
		}
		if !e.sleepCtx(ctx, nextSleep) {
			return false, nil
		}
	}
	return false, nil
}

const stateFrameReady = 0x16

// sleepCtx sleeps for d or until ctx is cancelled, whichever comes first.
// Returns false if ctx was cancelled (caller should return immediately).
func (e *Engine) sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// logTransportFailure handles a TransportError: fatal to the current RF
// cycle only. The loop continues from the top.
func (e *Engine) logTransportFailure(err error) {
	e.pubLog(fmt.Sprintf("transport error: %v", err))
}

// logProtocolError handles BadResponse/UnknownDevice: logged, no state
// change, next iteration proceeds.
func (e *Engine) logProtocolError(err error) {
	e.pubLog(fmt.Sprintf("protocol error: %v", errcode.Of(err)))
}

// checkStaleness emits the user-visible staleness messages at their fixed
// cadence once the threshold is exceeded: "no contact" when nothing at all
// has arrived within the threshold, "no new weather data" when frames are
// flowing but none of them carry weather.
func (e *Engine) checkStaleness() {
	now := e.now()
	conn := e.store.ConnectionStatus()
	if !conn.Stale(now, e.opts.StaleThreshold) {
		return
	}
	if !e.lastStaleLog.IsZero() && now.Sub(e.lastStaleLog) < e.opts.StaleLogInterval {
		return
	}
	e.lastStaleLog = now
	if conn.LastSeen.IsZero() || now.Sub(conn.LastSeen) > e.opts.StaleThreshold {
		e.pubLog("no contact with console")
		return
	}
	e.pubLog("no new weather data")
}

func (e *Engine) pubState(level, status string) {
	if e.conn == nil {
		return
	}
	e.conn.Publish(e.conn.NewMessage(bus.T("engine", "state"), level+":"+status, true))
}

func (e *Engine) pubLog(msg string) {
	if e.conn == nil {
		return
	}
	e.conn.Publish(e.conn.NewMessage(bus.T("engine", "log"), msg, false))
}

// pubRetained publishes a decoded frame under engine/<sub> as a retained
// message so a collaborator can subscribe instead of polling the store; a
// late subscriber still receives the last snapshot.
func (e *Engine) pubRetained(sub string, payload any) {
	if e.conn == nil {
		return
	}
	e.conn.Publish(e.conn.NewMessage(bus.T("engine", sub), payload, true))
}
