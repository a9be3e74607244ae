package frame

import (
	"time"

	"weatherlink-go/nibble"
)

// Action is the single action byte the console expects in byte 6 of every
// ack-shaped outbound frame.
type Action byte

const (
	ActionGetHistory     Action = 0x00
	ActionReqSetTime     Action = 0x01
	ActionReqSetConfig   Action = 0x02
	ActionReqFirstConfig Action = 0x02 // console doesn't distinguish these on the wire
	ActionGetConfig      Action = 0x03
	ActionGetCurrent     Action = 0x04
	ActionSendConfig     Action = 0x20
	ActionSendTime       Action = 0x60
)

// pairingAddr is the history-address sentinel sent while no specific
// record is being requested.
const pairingAddr = 0xFFFFFF

// BuildAck builds the 14-byte (3-byte USB prefix + 11-byte data) ack frame
// the engine sends after every inbound frame: D5 00 LEN devHi devLo flag
// action csHi csLo 0x80 comInt addrHi addrMid addrLo.
//
// flag is echoed from the inbound frame that prompted this ack. cs is the
// checksum word: the echoed config checksum for an ordinary ack, the
// all-ones 0xFFFF sentinel for the pairing ack.
// histAddr is the flash address of the next history record to request, or
// the 0xFFFFFF sentinel when there is none.
func BuildAck(devID uint16, flag byte, action Action, cs uint16, comInterval byte, histAddr uint32) []byte {
	buf := make([]byte, 14)
	buf[0] = 0xD5
	buf[1] = 0x00
	buf[2] = 11
	buf[3] = byte(devID >> 8)
	buf[4] = byte(devID)
	buf[5] = flag
	buf[6] = byte(action)
	buf[7] = byte(cs >> 8)
	buf[8] = byte(cs)
	buf[9] = 0x80
	buf[10] = comInterval
	nibble.WriteAddr24(buf, 11, histAddr)
	return buf
}

// BuildPairingAck builds the ack the engine sends the first time an
// unpaired console (devID == PairingDeviceID) makes contact. The device id
// and flag are simply echoed from the inbound frame, the action is
// GetConfig (not ReqSetConfig — the console has no config on file yet),
// the checksum is the all-ones sentinel, and the history address is the
// usual "nothing requested yet" sentinel.
func BuildPairingAck(inboundDevID uint16, flag byte, comInterval byte) []byte {
	return BuildAck(inboundDevID, flag, ActionGetConfig, 0xFFFF, comInterval, pairingAddr)
}

// BuildSendTime builds the "send time" frame the engine sends in response
// to RespReqSetTime: D5 00 0D devHi devLo flag action csHi csLo, followed
// by the 7-byte BCD time block nibble.EncodeTime produces. cs is the
// console's config checksum, echoed the same way the ack frames echo it.
func BuildSendTime(devID uint16, flag byte, cs uint16, tm time.Time) []byte {
	buf := make([]byte, 16)
	buf[0] = 0xD5
	buf[1] = 0x00
	buf[2] = 13
	buf[3] = byte(devID >> 8)
	buf[4] = byte(devID)
	buf[5] = flag
	buf[6] = byte(ActionSendTime)
	buf[7] = byte(cs >> 8)
	buf[8] = byte(cs)
	nibble.EncodeTime(buf, 9, tm)
	return buf
}

// BuildSendConfig builds the outbound config frame (declared length 0x7D)
// the engine sends to push a host-side config change: the stored payload
// with the header fields rewritten for the outbound direction and the
// out-buffer checksum recomputed over the result.
func BuildSendConfig(devID uint16, flag byte, cfg [125]byte) []byte {
	buf := make([]byte, 3+len(cfg))
	buf[0] = 0xD5
	buf[1] = 0x00
	buf[2] = 0x7D
	copy(buf[3:], cfg[:])
	buf[3] = byte(devID >> 8)
	buf[4] = byte(devID)
	buf[5] = flag
	buf[6] = byte(ActionSendConfig)
	// The checksum slots sit inside the summed range; they are zeroed
	// before summing so the embedded value is a pure function of the
	// config fields.
	buf[3+46], buf[3+47] = 0, 0
	cs := ChecksumConfig(buf[3:])
	buf[3+46] = byte(cs >> 8)
	buf[3+47] = byte(cs)
	return buf
}
