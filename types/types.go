// Package types holds the data model shared across the driver's packages:
// device identity, pairing state, current-weather/history/config records,
// connection status, and the battery-flag decoding documented in DESIGN.md.
package types

import (
	"time"

	"weatherlink-go/x/mathx"
)

// MaxRecords is the capacity of the console's circular history buffer.
const MaxRecords = 60000

// HistoryAddressBase is the flash address of history record index 0.
const HistoryAddressBase = 0x070000

// HistoryRecordStride is the byte span of one history record's address slot.
const HistoryRecordStride = 32

// NumChannels is the number of logical sensor channels: 0 = internal base
// channel, 1..8 = remote channels.
const NumChannels = 9

// DeviceIdentity is the dongle's own identity, read once at startup from its
// configuration flash and immutable thereafter.
type DeviceIdentity struct {
	ID     uint16
	Serial string // identity bytes 0..6, each formatted %02d (14 digits when every byte is below 100)
}

// PairingState tracks whether the driver has adopted a console yet.
type PairingState struct {
	Paired    bool
	ConsoleID uint16
}

// BatteryFlags is a per-channel low-battery bitmap decoded from the current-
// weather frame's battery nibble: bit (c-1) set means remote channel c is
// reporting low battery. Bit layout chosen explicitly (see DESIGN.md) rather
// than left as an unverified guess; channel 0 (the console's own base unit)
// has no bit here because it runs on mains/rechargeable power, not a
// replaceable cell.
type BatteryFlags uint8

// Low reports whether remote channel ch (1..8) is flagged low-battery.
func (b BatteryFlags) Low(ch int) bool {
	if ch < 1 || ch > 8 {
		return false
	}
	return b&(1<<uint(ch-1)) != 0
}

// ChannelReading is one logical sensor channel's current value plus its
// tracked extrema.
type ChannelReading struct {
	Temperature           float64
	TemperaturePresent    bool
	TemperatureMax        float64
	TemperatureMaxPresent bool
	TemperatureMaxAt      time.Time
	TemperatureMin        float64
	TemperatureMinPresent bool
	TemperatureMinAt      time.Time

	Humidity           int
	HumidityPresent    bool
	HumidityMax        int
	HumidityMaxPresent bool
	HumidityMaxAt      time.Time
	HumidityMin        int
	HumidityMinPresent bool
	HumidityMinAt      time.Time
}

// CurrentReading is a timestamped snapshot of all nine channels plus link
// quality and the device-config checksum the console echoed.
type CurrentReading struct {
	Timestamp      time.Time
	Channels       [NumChannels]ChannelReading
	LinkQuality    int // 0..100
	Battery        BatteryFlags
	ConfigChecksum uint16
}

// HistorySample is one dated sample within a HistoryBlock: all nine
// channels of temperature and humidity for one point in time.
type HistorySample struct {
	Timestamp     time.Time
	TimestampOK   bool
	Temperature   [NumChannels]float64
	TemperatureOK [NumChannels]bool
	Humidity      [NumChannels]int
	HumidityOK    [NumChannels]bool
}

// HistoryBlock is one inbound history frame: six dated samples, newest
// first, plus the two addresses needed to place them in the circular
// history buffer.
type HistoryBlock struct {
	LatestAddress uint32
	ThisAddress   uint32
	Samples       [6]HistorySample // index 0 == position 1 (newest)
}

// LatestIndex and ThisIndex convert this block's addresses to record
// indices in the circular buffer of capacity MaxRecords.
func (h HistoryBlock) LatestIndex() int { return AddressToIndex(h.LatestAddress) }
func (h HistoryBlock) ThisIndex() int   { return AddressToIndex(h.ThisAddress) }

// AddressToIndex converts a flash address to a record index, truncating.
func AddressToIndex(addr uint32) int {
	return int((addr - HistoryAddressBase) / HistoryRecordStride)
}

// IndexToAddress converts a record index, taken modulo MaxRecords, to its
// flash address.
func IndexToAddress(index int) uint32 {
	i := mathx.ModPositive(index, MaxRecords)
	return HistoryRecordStride*uint32(i) + HistoryAddressBase
}

// HistoryInterval is the console's history-logging period enum.
type HistoryInterval int

const (
	HistoryInterval1Min HistoryInterval = iota
	HistoryInterval5Min
	HistoryInterval10Min
	HistoryInterval15Min
	HistoryInterval20Min
	HistoryInterval30Min
	HistoryInterval60Min
	HistoryInterval2Hour
	HistoryInterval4Hour
	HistoryInterval6Hour
)

var historyIntervalMinutes = map[HistoryInterval]int{
	HistoryInterval1Min:  1,
	HistoryInterval5Min:  5,
	HistoryInterval10Min: 10,
	HistoryInterval15Min: 15,
	HistoryInterval20Min: 20,
	HistoryInterval30Min: 30,
	HistoryInterval60Min: 60,
	HistoryInterval2Hour: 120,
	HistoryInterval4Hour: 240,
	HistoryInterval6Hour: 360,
}

// Minutes returns the interval's period in minutes, or 0 for a value
// outside the enum.
func (h HistoryInterval) Minutes() int { return historyIntervalMinutes[h] }

// DescriptionLen is the width of one raw sensor-description blob.
const DescriptionLen = 8

// NumDescriptions is how many description slots the config frame carries,
// one per remote channel.
const NumDescriptions = 8

// DeviceConfig is the console's persistent settings: history interval,
// alarm thresholds, sensor descriptions, plus the two checksums that
// indicate whether a host-side change is still pending. Descriptions are
// kept as raw bytes; their character encoding is undocumented and this
// driver surfaces rather than guesses it.
type DeviceConfig struct {
	HistoryInterval HistoryInterval
	Descriptions    [NumDescriptions][DescriptionLen]byte

	InBufChecksum    uint16 // received from the console
	OutBufChecksum   uint16 // computed over the host-prepared outbound version
	ResetMinMaxFlags byte

	Raw [125]byte // last decoded payload, for round-tripping unknown fields
}

// Stable reports whether the config is considered stable: in/out checksums
// agree and no reset-min-max flag is pending.
func (c DeviceConfig) Stable() bool {
	return c.InBufChecksum == c.OutBufChecksum && c.ResetMinMaxFlags == 0
}

// ConnectionStatus tracks last-seen timing and per-frame-kind freshness.
type ConnectionStatus struct {
	LastSeen        time.Time
	LastLinkQuality int
	LastBattery     BatteryFlags

	LastWeatherAt time.Time
	LastHistoryAt time.Time
	LastConfigAt  time.Time
}

// Stale reports whether no weather frame has arrived within the given
// threshold, measured from now.
func (c ConnectionStatus) Stale(now time.Time, threshold time.Duration) bool {
	if c.LastWeatherAt.IsZero() {
		return true
	}
	return now.Sub(c.LastWeatherAt) > threshold
}
