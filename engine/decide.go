package engine

import (
	"time"

	"weatherlink-go/x/timex"
)

// reconcile decides what to ask the console for next: compare the
// just-seen frame's echoed config checksum against what the store has on
// file. A mismatch (or no config yet) always wins — GetConfig. Otherwise a
// pending host-side config change wins — ReqSetConfig. Otherwise
// GetHistory.
func (s *Store) reconcile(echoedChecksum uint16) NextActionKind {
	if !s.configChecksumMatches(echoedChecksum) {
		return NextGetConfig
	}
	s.mu.Lock()
	changed := s.testConfigChanged()
	s.mu.Unlock()
	if changed {
		return NextReqSetConfig
	}
	return NextGetHistory
}

// currentStale reports whether the last current-weather frame is older
// than 2*(commInt+1) seconds, the threshold the morphing rule uses
// to decide whether a pending GetHistory should be overridden to
// GetCurrent so the weather stream doesn't go stale during a long history
// catchup.
func (s *Store) currentStale(now time.Time) bool {
	s.mu.Lock()
	lastWeather := s.conn.LastWeatherAt
	commInt := s.commInterval
	s.mu.Unlock()
	if lastWeather.IsZero() {
		return true
	}
	threshold := time.Duration(2*(int(commInt)+1)) * time.Second
	return now.Sub(lastWeather) > threshold
}

// sendTimeQuantum implements the send-time quantisation rule: the host
// must not send its clock within ±window seconds of a whole minute
// boundary. When the wall clock falls inside that window, it returns the
// shortened effective interval the caller should carry in a regular ack
// instead of building a send-time frame, and inWindow=true.
func sendTimeQuantum(now time.Time, window int) (shortenedInterval int, inWindow bool) {
	if !timex.NearMinuteEdge(now, window) {
		return 0, false
	}
	s := now.Second()
	if s >= 60-window {
		return (60 - s) + window, true
	}
	return window - s, true
}
