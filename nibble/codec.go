// Package nibble implements the byte/nibble codec: pure functions that
// convert the nibble-packed ranges used throughout the console's RF frames
// into typed values, and back. No I/O; every function here is a total
// function of its input buffer.
package nibble

import (
	"time"

	"weatherlink-go/x/mathx"
)

// Sentinel temperature/humidity values. A decoded reading that hits one of
// these never participates in arithmetic — callers check Presence first.
const (
	TempNP            = 81.1  // not present
	TempOFL           = 136.0 // outside factory limits
	TemperatureOffset = 40.0

	HumidityNP  = 110
	HumidityOFL = 121
)

// Presence distinguishes a real decoded value from the two sentinel shapes.
type Presence int

const (
	Present Presence = iota
	AbsentNotPresent
	AbsentOutOfLimits
)

// Logf is the hook for the "invalid datetime" diagnostics the date-time
// readers emit. It defaults to a no-op: log sinks are an external collaborator's
// concern, not this package's.
var Logf = func(format string, args ...any) {}

// NibbleAt returns the n-th nibble (0-indexed) of a virtual nibble stream
// that starts at byte ofs, high nibble first if hi is true, else low nibble
// first. Every multi-nibble field in this protocol — 1, 2, 3, 8 or 10
// nibbles wide — is just consecutive draws from this stream, which is why
// every read_* helper below reduces to a handful of NibbleAt calls instead
// of hand-rolled per-width branching.
func NibbleAt(buf []byte, ofs int, hi bool, n int) byte {
	idx := ofs*2 + n
	if !hi {
		idx++
	}
	b := buf[idx/2]
	if idx%2 == 0 {
		return b >> 4
	}
	return b & 0xF
}

// ReadU1N reads one nibble as an integer 0..15.
func ReadU1N(buf []byte, ofs int, hi bool) int {
	return int(NibbleAt(buf, ofs, hi, 0))
}

// ReadU2N reads two adjacent nibbles as a 2-digit decimal 0..99, with no
// sentinel interpretation (that's ReadHumidity2N's job).
func ReadU2N(buf []byte, ofs int, hi bool) int {
	return int(NibbleAt(buf, ofs, hi, 0))*10 + int(NibbleAt(buf, ofs, hi, 1))
}

// isErrNibble reports whether a nibble value is the "error" shape: a digit
// 0xA..0xE that isn't the overflow marker 0xF.
func isErrNibble(v byte) bool { return v >= 0xA && v != 0xF }

func errInRange(buf []byte, ofs int, hi bool, width int) bool {
	for n := 0; n < width; n++ {
		if isErrNibble(NibbleAt(buf, ofs, hi, n)) {
			return true
		}
	}
	return false
}

func oflInRange(buf []byte, ofs int, hi bool, width int) bool {
	for n := 0; n < width; n++ {
		if NibbleAt(buf, ofs, hi, n) == 0xF {
			return true
		}
	}
	return false
}

// ReadTemp3N reads three nibbles as XX.X, offsetting by -40.0 to produce
// degrees Celsius. A run of 0xF nibbles decodes as "out of factory limits";
// any other nibble >= 0xA decodes as "not present".
func ReadTemp3N(buf []byte, ofs int, hi bool) (celsius float64, presence Presence) {
	switch {
	case errInRange(buf, ofs, hi, 3):
		return TempNP, AbsentNotPresent
	case oflInRange(buf, ofs, hi, 3):
		return TempOFL, AbsentOutOfLimits
	}
	raw := float64(NibbleAt(buf, ofs, hi, 0))*10 +
		float64(NibbleAt(buf, ofs, hi, 1))*1 +
		float64(NibbleAt(buf, ofs, hi, 2))*0.1
	return raw - TemperatureOffset, Present
}

// ReadHumidity2N reads two nibbles as a 0..99 percent value, with the same
// NP/OFL sentinel discipline as ReadTemp3N.
func ReadHumidity2N(buf []byte, ofs int, hi bool) (percent int, presence Presence) {
	switch {
	case errInRange(buf, ofs, hi, 2):
		return HumidityNP, AbsentNotPresent
	case oflInRange(buf, ofs, hi, 2):
		return HumidityOFL, AbsentOutOfLimits
	}
	return ReadU2N(buf, ofs, hi), Present
}

// isErr8Pattern reports whether the first 8 nibbles from the stream form the
// compact-date "error" shape: AA4AAA4A (equivalently AA4A AA4A) regardless
// of which nibble the stream starts on, since NibbleAt already folds the
// hi/lo choice into stream position.
func isErr8Pattern(buf []byte, ofs int, hi bool) bool {
	want := [8]byte{0xA, 0xA, 0x4, 0xA, 0xA, 0xA, 0x4, 0xA}
	for n, w := range want {
		if NibbleAt(buf, ofs, hi, n) != w {
			return false
		}
	}
	return true
}

// ReadDT8N reads the 8-nibble compact date-time: year-2000 (2n), month
// (1n), day (2n), then a compound hour/minute pair. The compound field packs
// hour and minute across 3 nibbles: the first nibble is the hour's units
// digit (plus 10 if the hour is >= 10); the remaining two nibbles carry the
// minute, with an extra tens-of-hour carry folded into the minute digit when
// present. Returns ok=false for the fixed error pattern or for a date/time
// that doesn't parse (logged via Logf, never surfaced as an error value).
func ReadDT8N(buf []byte, ofs int, hi bool, label string) (t time.Time, ok bool) {
	if isErr8Pattern(buf, ofs, hi) {
		return time.Time{}, false
	}
	year := int(NibbleAt(buf, ofs, hi, 0))*10 + int(NibbleAt(buf, ofs, hi, 1)) + 2000
	month := int(NibbleAt(buf, ofs, hi, 2))
	day := int(NibbleAt(buf, ofs, hi, 3))*10 + int(NibbleAt(buf, ofs, hi, 4))
	tim1 := int(NibbleAt(buf, ofs, hi, 5))
	tim2 := int(NibbleAt(buf, ofs, hi, 6))
	tim3 := int(NibbleAt(buf, ofs, hi, 7))

	hour := tim1
	var minute int
	if tim1 >= 10 {
		hour = tim1 + 10
	}
	if tim2 >= 10 {
		hour += 10
		minute = (tim2 - 10) * 10
	} else {
		minute = tim2 * 10
	}
	minute += tim3

	if !validDate(year, month, day, hour, minute) {
		Logf("invalid datetime for %s: %04d-%02d-%02d %02d:%02d", label, year, month, day, hour, minute)
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC), true
}

// ReadDT10N reads the 10-nibble plain date-time: five 2-nibble decimal
// fields for year-2000, month, day, hour, minute.
func ReadDT10N(buf []byte, ofs int, hi bool, label string) (t time.Time, ok bool) {
	for field := 0; field < 5; field++ {
		if isErrNibble(NibbleAt(buf, ofs, hi, field*2)) || isErrNibble(NibbleAt(buf, ofs, hi, field*2+1)) {
			Logf("invalid datetime for %s: error nibble in field %d", label, field)
			return time.Time{}, false
		}
	}
	field := func(i int) int {
		return int(NibbleAt(buf, ofs, hi, i*2))*10 + int(NibbleAt(buf, ofs, hi, i*2+1))
	}
	year := field(0) + 2000
	month := field(1)
	day := field(2)
	hour := field(3)
	minute := field(4)

	if !validDate(year, month, day, hour, minute) {
		Logf("invalid datetime for %s: %04d-%02d-%02d %02d:%02d", label, year, month, day, hour, minute)
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC), true
}

func validDate(year, month, day, hour, minute int) bool {
	if month < 1 || month > 12 || day < 1 || day > 31 || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	return t.Month() == time.Month(month) && t.Day() == day
}

// ReadAddr24 reads a big-endian 3-byte address.
func ReadAddr24(buf []byte, ofs int) uint32 {
	return uint32(buf[ofs])<<16 | uint32(buf[ofs+1])<<8 | uint32(buf[ofs+2])
}

// WriteAddr24 writes a big-endian 3-byte address.
func WriteAddr24(buf []byte, ofs int, addr uint32) {
	buf[ofs] = byte(addr >> 16)
	buf[ofs+1] = byte(addr >> 8)
	buf[ofs+2] = byte(addr)
}

// bcdDigit packs a decimal digit pair the way the send-time frame expects:
// (digit%10) + 0x10*(digit/10).
func bcdDigit(v int) byte {
	v = int(mathx.Clamp(v, 0, 99))
	return byte(v%10) | byte(v/10)<<4
}

// EncodeTime emits the inverse 7-byte layout used by the outbound
// "send time" frame: seconds, minutes, hours, then three bytes packing
// day-of-week/day/month/year as nibble pairs.
func EncodeTime(buf []byte, ofs int, tm time.Time) {
	buf[ofs+0] = bcdDigit(tm.Second())
	buf[ofs+1] = bcdDigit(tm.Minute())
	buf[ofs+2] = bcdDigit(tm.Hour())

	dow := (int(tm.Weekday()) + 6) % 7 // Monday == 0
	day := tm.Day()
	month := int(tm.Month())
	year := tm.Year() - 2000

	buf[ofs+3] = byte(day%10)<<4 | byte(dow)
	buf[ofs+4] = byte(month%10)<<4 | byte(day/10)
	buf[ofs+5] = byte(year%10)<<4 | byte(month/10)
	buf[ofs+6] = byte(year / 10)
}

// EncodeNumber writes a multi-digit decimal value into the nibble stream
// starting at (ofs, hi), widthNibbles wide, padding high (leftmost) nibbles
// with zero. Used when emitting config frames back to the console.
func EncodeNumber(buf []byte, ofs int, hi bool, widthNibbles int, value int) {
	digits := make([]byte, widthNibbles)
	v := value
	for i := widthNibbles - 1; i >= 0; i-- {
		digits[i] = byte(v % 10)
		v /= 10
	}
	for n, d := range digits {
		writeNibbleAt(buf, ofs, hi, n, d)
	}
}

func writeNibbleAt(buf []byte, ofs int, hi bool, n int, v byte) {
	idx := ofs*2 + n
	if !hi {
		idx++
	}
	bi := idx / 2
	if idx%2 == 0 {
		buf[bi] = (buf[bi] & 0x0F) | (v << 4)
	} else {
		buf[bi] = (buf[bi] & 0xF0) | (v & 0xF)
	}
}
