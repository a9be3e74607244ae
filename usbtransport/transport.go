// Package usbtransport wraps the dongle's single USB control endpoint: a
// dozen synchronous primitives, each a vendor control transfer, each with a
// default 1s timeout. No framing or protocol knowledge lives here — that is
// the frame and radio packages' job.
package usbtransport

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/google/gousb"

	"weatherlink-go/errcode"
)

const (
	VendorID  = gousb.ID(0x6666)
	ProductID = gousb.ID(0x5555)

	defaultTimeout = 1000 * time.Millisecond
)

// Control-endpoint value-field encodings. request is always 0x09; the value
// field selects the operation.
const (
	reqSetRX              = 0x03D0
	reqSetTX              = 0x03D1
	reqSetFrame           = 0x03D5
	reqGetFrame           = 0x03D6
	reqSetState           = 0x03D7
	reqSetPreamble        = 0x03D8
	reqExecute            = 0x03D9
	reqReadConfigFlash    = 0x03DC
	reqReadConfigFlashOut = 0x03DD
	reqGetState           = 0x03DE
	reqWriteReg           = 0x03F0

	bRequest = 0x09
)

// States reported by get_state.
const (
	StateIntermediate = 0x14
	StateIdle         = 0x15
	StateFrameReady   = 0x16
)

// Transport owns the one USB claim for the lifetime of the driver.
type Transport struct {
	ctx    *gousb.Context
	device *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
}

// Open finds the dongle by VID/PID, detaches any kernel driver (best-effort),
// claims interface 0/0, and returns a ready Transport.
func Open() (*Transport, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(VendorID, ProductID)
	if err != nil {
		ctx.Close()
		return nil, &errcode.E{C: errcode.TransportError, Op: "open_device", Err: err}
	}
	if dev == nil {
		ctx.Close()
		return nil, &errcode.E{C: errcode.TransportError, Op: "open_device", Msg: "dongle not found"}
	}

	// Best-effort: let the kernel driver go so the control endpoint is ours.
	_ = dev.SetAutoDetach(true)
	dev.ControlTimeout = defaultTimeout

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, &errcode.E{C: errcode.TransportError, Op: "set_config", Err: err}
	}

	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, &errcode.E{C: errcode.TransportError, Op: "claim_interface", Err: err}
	}

	return &Transport{
		ctx:    ctx,
		device: dev,
		config: cfg,
		intf:   intf,
	}, nil
}

// Close releases the interface, config, device and context, in that order.
func (t *Transport) Close() error {
	if t.intf != nil {
		t.intf.Close()
	}
	if t.config != nil {
		t.config.Close()
	}
	if t.device != nil {
		t.device.Close()
	}
	if t.ctx != nil {
		t.ctx.Close()
	}
	return nil
}

// control issues one control-OUT transfer. ctx is checked only for early
// cancellation: the USB timeout itself is enforced by the device's
// ControlTimeout, set once in Open.
func (t *Transport) control(ctx context.Context, value uint16, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, &errcode.E{C: errcode.TransportError, Op: "control_out", Err: err}
	}
	n, err := t.device.Control(
		gousb.ControlOut|gousb.ControlVendor|gousb.ControlDevice,
		bRequest, value, 0, data,
	)
	if err != nil {
		return 0, &errcode.E{C: errcode.TransportError, Op: "control_out", Err: err}
	}
	return n, nil
}

func (t *Transport) controlIn(ctx context.Context, value uint16, length int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &errcode.E{C: errcode.TransportError, Op: "control_in", Err: err}
	}
	buf := make([]byte, length)
	n, err := t.device.Control(
		gousb.ControlIn|gousb.ControlVendor|gousb.ControlDevice,
		bRequest, value, 0, buf,
	)
	if err != nil {
		return nil, &errcode.E{C: errcode.TransportError, Op: "control_in", Err: err}
	}
	return buf[:n], nil
}

// SetRX puts the dongle into receive mode.
func (t *Transport) SetRX(ctx context.Context) error {
	_, err := t.control(ctx, reqSetRX, nil)
	return err
}

// SetTX puts the dongle into transmit mode.
func (t *Transport) SetTX(ctx context.Context) error {
	_, err := t.control(ctx, reqSetTX, nil)
	return err
}

// GetState polls the dongle's current state byte (and a second status byte).
func (t *Transport) GetState(ctx context.Context) (b0, b1 byte, err error) {
	buf, err := t.controlIn(ctx, reqGetState, 2)
	if err != nil {
		return 0, 0, err
	}
	if len(buf) < 2 {
		return 0, 0, &errcode.E{C: errcode.TransportError, Op: "get_state", Msg: "short read"}
	}
	return buf[0], buf[1], nil
}

// SetState forces the dongle's state byte.
func (t *Transport) SetState(ctx context.Context, state byte) error {
	_, err := t.control(ctx, reqSetState, []byte{state})
	return err
}

// SetPreamblePattern configures the preamble byte; the init sequence
// requires this exact call twice.
func (t *Transport) SetPreamblePattern(ctx context.Context, pattern byte) error {
	_, err := t.control(ctx, reqSetPreamble, []byte{pattern})
	return err
}

// Execute issues the dongle's undocumented "start" command.
func (t *Transport) Execute(ctx context.Context, code byte) error {
	_, err := t.control(ctx, reqExecute, []byte{code})
	return err
}

// GetFrame retrieves the frame currently held by the dongle, up to maxLen
// bytes.
func (t *Transport) GetFrame(ctx context.Context, maxLen int) ([]byte, error) {
	return t.controlIn(ctx, reqGetFrame, maxLen)
}

// SetFrame hands an outbound frame to the dongle.
func (t *Transport) SetFrame(ctx context.Context, frame []byte) error {
	_, err := t.control(ctx, reqSetFrame, frame)
	return err
}

// WriteReg programs one AX-5051 radio register.
func (t *Transport) WriteReg(ctx context.Context, addr, value byte) error {
	_, err := t.control(ctx, reqWriteReg, []byte{addr, value})
	return err
}

// ReadConfigFlash reads n bytes of factory data starting at addr, 16 bytes
// at a time (the dongle's control-transfer granularity).
func (t *Transport) ReadConfigFlash(ctx context.Context, addr uint16, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		chunk := 16
		if remain := n - len(out); remain < chunk {
			chunk = remain
		}
		a := addr + uint16(len(out))
		if _, err := t.control(ctx, reqReadConfigFlash, beU16(a)); err != nil {
			return nil, err
		}
		buf, err := t.controlIn(ctx, reqReadConfigFlashOut, chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, buf...)
	}
	return out, nil
}

func beU16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}
