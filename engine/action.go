// Package engine implements the reactive protocol engine: the
// run loop that polls the dongle, classifies and decodes each inbound
// frame, decides the next action, builds the outbound frame, and maintains
// the shared stores (current reading, history cache, device config,
// connection status, pairing state) a host collaborator reads from.
package engine

import (
	"time"

	"weatherlink-go/frame"
)

// NextActionKind is the engine's own decision space for "what do we ask the
// console for next". It deliberately does not reuse frame.Action directly:
// frame.ActionReqSetConfig and frame.ActionReqFirstConfig share one wire
// byte (0x02 — "the console doesn't distinguish these on the wire", per
// frame/outbound.go), but the timing table gives them different
// firstSleep/nextSleep values. Keeping the engine-level decision distinct
// from the wire byte avoids a switch ever needing two case clauses with the
// same constant value, and matches the real distinction the timing table
// draws.
type NextActionKind int

const (
	NextGetHistory NextActionKind = iota
	NextGetCurrent
	NextReqSetConfig
	NextReqFirstConfig
	NextGetConfig
	NextSendConfig
	NextSendTime
	NextReqSetTime
)

// WireAction returns the frame.Action byte this decision maps to.
func (k NextActionKind) WireAction() frame.Action {
	switch k {
	case NextGetHistory:
		return frame.ActionGetHistory
	case NextGetCurrent:
		return frame.ActionGetCurrent
	case NextReqSetConfig, NextReqFirstConfig:
		return frame.ActionReqSetConfig
	case NextGetConfig:
		return frame.ActionGetConfig
	case NextSendConfig:
		return frame.ActionSendConfig
	case NextSendTime:
		return frame.ActionSendTime
	case NextReqSetTime:
		return frame.ActionReqSetTime
	default:
		return frame.ActionGetHistory
	}
}

// Timing is the firstSleep/nextSleep pair the timing table assigns to a
// decision. Deviating from these produces intermittent losses of sync.
type Timing struct {
	FirstSleep time.Duration
	NextSleep  time.Duration
}

// TimingFor looks up the timing table entry for a decision.
func TimingFor(k NextActionKind) Timing {
	switch k {
	case NextGetHistory, NextGetCurrent, NextReqSetConfig:
		return Timing{FirstSleep: 300 * time.Millisecond, NextSleep: 10 * time.Millisecond}
	case NextSendConfig, NextSendTime, NextReqSetTime, NextReqFirstConfig:
		return Timing{FirstSleep: 85 * time.Millisecond, NextSleep: 5 * time.Millisecond}
	case NextGetConfig:
		return Timing{FirstSleep: 400 * time.Millisecond, NextSleep: 400 * time.Millisecond}
	default:
		return Timing{FirstSleep: 300 * time.Millisecond, NextSleep: 10 * time.Millisecond}
	}
}
