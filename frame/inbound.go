// Package frame implements the frame codec: classification and decode of
// inbound console frames, and the builders for every outbound frame the
// engine can send. It has no I/O of its own; callers pass it buffers from
// usbtransport and get back typed records or byte slices.
package frame

import (
	"fmt"

	"weatherlink-go/errcode"
	"weatherlink-go/nibble"
	"weatherlink-go/types"
)

// Inbound response-type byte (found at buf[6]).
const (
	RespDataWritten     = 0x10
	RespConfig          = 0x20
	RespCurrentWeather  = 0x30
	RespHistory         = 0x40
	RespReqFirstConfig  = 0x51
	RespReqSetConfig    = 0x52
	RespReqSetTime      = 0x53
)

// PairingDeviceID is the sentinel console id an unpaired console sends in
// place of its real id.
const PairingDeviceID = 0xF0F0

// Kind tags a decoded inbound frame so the engine can dispatch without a
// chain of type assertions.
type Kind int

const (
	KindUnknown Kind = iota
	KindDataWritten
	KindConfig
	KindCurrentWeather
	KindHistory
	KindReqFirstConfig
	KindReqSetConfig
	KindReqSetTime
)

// Header is the prefix common to every inbound frame, decoded before
// dispatch.
type Header struct {
	DeviceID       uint16
	Flag           byte
	RespType       byte
	LinkQuality    int // already divided by 5
	ConfigChecksum uint16
}

// lengths maps response type to the declared payload length it must carry.
// The declared length (bytes 1-2) counts the payload after the 3-byte
// prefix, so a frame's full wire length is always prefixLen more than the
// value here.
var lengths = map[byte]int{
	RespDataWritten:    7,
	RespConfig:         0x7D,
	RespCurrentWeather: 0xE5,
	RespHistory:        0xB5,
	RespReqFirstConfig: 7,
	RespReqSetConfig:   7,
	RespReqSetTime:     7,
}

// prefixLen is the 3-byte wire prefix (tag byte plus the 2-byte declared
// length) in front of every frame's payload.
const prefixLen = 3

// maxDeclaredLen bounds the declared length field; the dongle's frame
// buffer holds at most 0x111 payload bytes and the upper bits of byte 1
// are not part of the length.
const maxDeclaredLen = 0x1FF

// Trim slices one frame out of a raw dongle transfer: the dongle hands back
// its whole frame buffer, with bytes 1-2 declaring how much payload follows
// the prefix. Everything past declared+prefix is buffer residue, not frame.
func Trim(buf []byte) ([]byte, error) {
	if len(buf) < prefixLen {
		return nil, &errcode.E{C: errcode.BadResponse, Op: "trim", Msg: "transfer shorter than frame prefix"}
	}
	declared := (int(buf[1])<<8 | int(buf[2])) & maxDeclaredLen
	if total := declared + prefixLen; total <= len(buf) {
		return buf[:total], nil
	}
	return nil, &errcode.E{C: errcode.BadResponse, Op: "trim", Msg: fmt.Sprintf("declared length %d exceeds %d-byte transfer", declared, len(buf))}
}

// ParseHeader validates the trimmed frame against its declared response
// type and decodes the common prefix: device id at bytes 3-4, flag at 5,
// response type at 6, link quality at 7, echoed config checksum at 8-9.
func ParseHeader(buf []byte) (Header, Kind, error) {
	if len(buf) < 10 {
		return Header{}, KindUnknown, &errcode.E{C: errcode.BadResponse, Op: "parse_header", Msg: "frame shorter than common prefix"}
	}
	respType := buf[6]
	wantLen, known := lengths[respType]
	if !known {
		return Header{}, KindUnknown, &errcode.E{C: errcode.BadResponse, Op: "parse_header", Msg: fmt.Sprintf("unknown response type %#x", respType)}
	}
	if len(buf) != wantLen+prefixLen {
		return Header{}, KindUnknown, &errcode.E{C: errcode.BadResponse, Op: "parse_header", Msg: fmt.Sprintf("resp %#x: length %d, want %d", respType, len(buf), wantLen+prefixLen)}
	}
	if declared := int(uint16(buf[1])<<8 | uint16(buf[2])); declared != wantLen {
		return Header{}, KindUnknown, &errcode.E{C: errcode.BadResponse, Op: "parse_header", Msg: fmt.Sprintf("declared length %d, want %d for resp %#x", declared, wantLen, respType)}
	}

	h := Header{
		DeviceID:       uint16(buf[3])<<8 | uint16(buf[4]),
		Flag:           buf[5],
		RespType:       respType,
		LinkQuality:    int(buf[7]) / 5,
		ConfigChecksum: uint16(buf[8])<<8 | uint16(buf[9]),
	}

	var kind Kind
	switch respType {
	case RespDataWritten:
		kind = KindDataWritten
	case RespConfig:
		kind = KindConfig
	case RespCurrentWeather:
		kind = KindCurrentWeather
	case RespHistory:
		kind = KindHistory
	case RespReqFirstConfig:
		kind = KindReqFirstConfig
	case RespReqSetConfig:
		kind = KindReqSetConfig
	case RespReqSetTime:
		kind = KindReqSetTime
	}
	return h, kind, nil
}

// currentWeatherBUFMAP gives, per channel 0..8, the byte offsets for
// (tempMax, tempMin, tempCur, tempMaxTS, tempMinTS, humMax, humMin, humCur,
// humMaxTS, humMinTS). Channel 0's tuple is the base layout; channels 1..8
// step by 24 bytes each, the console's fixed per-channel record width.
var currentWeatherBUFMAP = buildCurrentWeatherBUFMAP()

func buildCurrentWeatherBUFMAP() [types.NumChannels][10]int {
	base := [10]int{29, 31, 32, 21, 25, 18, 19, 20, 10, 14}
	var table [types.NumChannels][10]int
	for ch := 0; ch < types.NumChannels; ch++ {
		for i, v := range base {
			table[ch][i] = v + 24*ch
		}
	}
	return table
}

// DecodeCurrentWeather decodes a current-weather frame into a
// CurrentReading. The caller has already validated buf's kind via
// ParseHeader.
func DecodeCurrentWeather(buf []byte, h Header) (types.CurrentReading, error) {
	r := types.CurrentReading{
		LinkQuality:    h.LinkQuality,
		ConfigChecksum: h.ConfigChecksum,
	}
	for ch := 0; ch < types.NumChannels; ch++ {
		off := currentWeatherBUFMAP[ch]
		cr := &r.Channels[ch]

		tempMax, pMax := nibble.ReadTemp3N(buf, off[0], false)
		tempMin, pMin := nibble.ReadTemp3N(buf, off[1], true)
		tempCur, pCur := nibble.ReadTemp3N(buf, off[2], false)
		cr.TemperatureMax, cr.TemperatureMaxPresent = tempMax, pMax == nibble.Present
		cr.TemperatureMin, cr.TemperatureMinPresent = tempMin, pMin == nibble.Present
		cr.Temperature, cr.TemperaturePresent = tempCur, pCur == nibble.Present
		if cr.TemperatureMaxPresent {
			if ts, ok := nibble.ReadDT8N(buf, off[3], false, fmt.Sprintf("Temp%dMax", ch)); ok {
				cr.TemperatureMaxAt = ts
			}
		}
		if cr.TemperatureMinPresent {
			if ts, ok := nibble.ReadDT8N(buf, off[4], false, fmt.Sprintf("Temp%dMin", ch)); ok {
				cr.TemperatureMinAt = ts
			}
		}

		humMax, hMax := nibble.ReadHumidity2N(buf, off[5], true)
		humMin, hMin := nibble.ReadHumidity2N(buf, off[6], true)
		humCur, hCur := nibble.ReadHumidity2N(buf, off[7], true)
		cr.HumidityMax, cr.HumidityMaxPresent = humMax, hMax == nibble.Present
		cr.HumidityMin, cr.HumidityMinPresent = humMin, hMin == nibble.Present
		cr.Humidity, cr.HumidityPresent = humCur, hCur == nibble.Present
		if cr.HumidityMaxPresent {
			if ts, ok := nibble.ReadDT8N(buf, off[8], true, fmt.Sprintf("Humidity%dMax", ch)); ok {
				cr.HumidityMaxAt = ts
			}
		}
		if cr.HumidityMinPresent {
			if ts, ok := nibble.ReadDT8N(buf, off[9], true, fmt.Sprintf("Humidity%dMin", ch)); ok {
				cr.HumidityMinAt = ts
			}
		}
	}
	r.Battery = decodeBattery(buf)
	return r, nil
}

// decodeBattery extracts the low-battery bitmap from byte 5's low nibble.
// The chosen layout: bit (ch-1) for remote channel ch; see DESIGN.md. A
// nibble carries four bits, so only channels 1..4 can be flagged; the bits
// for channels 5..8 are always clear.
func decodeBattery(buf []byte) types.BatteryFlags {
	return types.BatteryFlags(buf[5] & 0x0F)
}

// historyPositionOffsets gives, per position 1..6, the 10-nibble timestamp
// offset and the 9 per-channel temperature/humidity offsets.
type historyPositionOffsets struct {
	ts    int
	temps [types.NumChannels]int
	hums  [types.NumChannels]int
}

var historyBUFMAP = map[int]historyPositionOffsets{
	1: {179, [9]int{177, 176, 174, 173, 171, 170, 168, 167, 165}, [9]int{164, 163, 162, 161, 160, 159, 158, 157, 156}},
	2: {151, [9]int{149, 148, 146, 145, 143, 142, 140, 139, 137}, [9]int{136, 135, 134, 133, 132, 131, 130, 129, 128}},
	3: {123, [9]int{121, 120, 118, 117, 115, 114, 112, 111, 109}, [9]int{108, 107, 106, 105, 104, 103, 102, 101, 100}},
	4: {95, [9]int{93, 92, 90, 89, 87, 86, 84, 83, 81}, [9]int{80, 79, 78, 77, 76, 75, 74, 73, 72}},
	5: {67, [9]int{65, 64, 62, 61, 59, 58, 56, 55, 53}, [9]int{52, 51, 50, 49, 48, 47, 46, 45, 44}},
	6: {39, [9]int{37, 36, 34, 33, 31, 30, 28, 27, 25}, [9]int{24, 23, 22, 21, 20, 19, 18, 17, 16}},
}

// DecodeHistory decodes a history frame into a HistoryBlock: the
// two addresses plus six dated samples, newest (position 1) first.
func DecodeHistory(buf []byte, h Header) (types.HistoryBlock, error) {
	var block types.HistoryBlock
	block.LatestAddress = nibble.ReadAddr24(buf, 10)
	block.ThisAddress = nibble.ReadAddr24(buf, 13)

	for pos := 1; pos <= 6; pos++ {
		off := historyBUFMAP[pos]
		s := &block.Samples[pos-1]
		if ts, ok := nibble.ReadDT10N(buf, off.ts, true, fmt.Sprintf("HistoryPos%d", pos)); ok {
			s.Timestamp, s.TimestampOK = ts, true
		}
		for ch := 0; ch < types.NumChannels; ch++ {
			temp, pt := nibble.ReadTemp3N(buf, off.temps[ch], ch%2 == 1)
			s.Temperature[ch], s.TemperatureOK[ch] = temp, pt == nibble.Present
			hum, ph := nibble.ReadHumidity2N(buf, off.hums[ch], true)
			s.Humidity[ch], s.HumidityOK[ch] = hum, ph == nibble.Present
		}
	}
	return block, nil
}

// Config payload offsets. The history-interval enum sits right after the
// two parameter bytes; the in-buffer checksum sits at payload bytes 46-47;
// the eight 8-byte sensor-description blobs fill payload bytes 58-121,
// before the trailing unknown bytes.
const (
	cfgHistoryIntervalOfs = 7
	cfgDescriptionOfs     = 58
	cfgDescriptionLen     = 8
	cfgChecksumOfs        = 46
)

// DecodeConfig decodes a config frame into the store's DeviceConfig: both
// checksums, the history-interval enum, the raw per-channel description
// blobs (their character encoding is undocumented, so they are surfaced as
// bytes rather than guessed at), and the full payload for round-tripping
// the fields this driver doesn't interpret.
func DecodeConfig(buf []byte) (types.DeviceConfig, error) {
	var cfg types.DeviceConfig
	payload := buf[prefixLen:]
	copy(cfg.Raw[:], payload)
	cfg.InBufChecksum = uint16(payload[cfgChecksumOfs])<<8 | uint16(payload[cfgChecksumOfs+1])
	cfg.OutBufChecksum = ChecksumConfig(payload)
	cfg.HistoryInterval = types.HistoryInterval(nibble.ReadU2N(payload, cfgHistoryIntervalOfs, true))
	for ch := range cfg.Descriptions {
		ofs := cfgDescriptionOfs + ch*cfgDescriptionLen
		copy(cfg.Descriptions[ch][:], payload[ofs:ofs+cfgDescriptionLen])
	}
	return cfg, nil
}
