package frame

// ChecksumFrame is the general frame checksum of a current-weather frame:
// the sum of every byte from the response type onward. DecodeCurrentWeather
// does not compute or check it. Deliberately named and kept apart from
// ChecksumConfig — the
// source conflated the two at one point, which is the kind of bug this split
// exists to prevent.
func ChecksumFrame(buf []byte) uint32 {
	var sum uint32
	for _, b := range buf[6:] {
		sum += uint32(b)
	}
	return sum
}

// ChecksumConfig is the config checksum, computed over a 125-byte config
// payload: 7 plus the sum of bytes [4,116). The `+7` constant and the exact
// bound (116, not 39 — that value belongs to a sibling driver's shorter
// config frame) are load-bearing; see the InBufChecksum comparison in the
// engine package.
func ChecksumConfig(buf []byte) uint16 {
	var sum uint32 = 7
	end := 116
	if end > len(buf) {
		end = len(buf)
	}
	for _, b := range buf[4:end] {
		sum += uint32(b)
	}
	return uint16(sum)
}
