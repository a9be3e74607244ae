package radio

import (
	"context"
	"fmt"
	"time"

	"weatherlink-go/errcode"
	"weatherlink-go/types"
	"weatherlink-go/usbtransport"
)

// controller is the subset of usbtransport.Transport the configurator needs;
// kept as an interface so tests can supply a fake dongle.
type controller interface {
	ReadConfigFlash(ctx context.Context, addr uint16, n int) ([]byte, error)
	WriteReg(ctx context.Context, addr, value byte) error
	Execute(ctx context.Context, code byte) error
	SetPreamblePattern(ctx context.Context, pattern byte) error
	SetState(ctx context.Context, state byte) error
	SetRX(ctx context.Context) error
}

var _ controller = (*usbtransport.Transport)(nil)

// initWait is the settle time the double-preamble ritual requires between
// each setState and the following setRX.
var initWait = time.Second

// Configure brings the dongle up: derive the frequency registers
// from factory calibration, program the AX5051 register table, then run the
// two-pass preamble/state ritual the console needs after a factory reset.
// baseFreqHz is BaseFreqUS or BaseFreqEU.
func Configure(ctx context.Context, t controller, baseFreqHz int64) (types.DeviceIdentity, error) {
	corr, err := t.ReadConfigFlash(ctx, FlashFreqCorrectionAddr, 4)
	if err != nil {
		return types.DeviceIdentity{}, &errcode.E{C: errcode.InitError, Op: "read_freq_correction", Err: err}
	}
	if len(corr) < 4 {
		return types.DeviceIdentity{}, &errcode.E{C: errcode.InitError, Op: "read_freq_correction", Msg: "short read"}
	}
	correction := int32(uint32(corr[0])<<24 | uint32(corr[1])<<16 | uint32(corr[2])<<8 | uint32(corr[3]))

	freqReg := baseFreqHz*16777216/16000000 + int64(correction)
	if freqReg%2 == 0 {
		freqReg++
	}

	ident, err := t.ReadConfigFlash(ctx, FlashIdentityAddr, 7)
	if err != nil {
		return types.DeviceIdentity{}, &errcode.E{C: errcode.InitError, Op: "read_identity", Err: err}
	}
	if len(ident) < 7 {
		return types.DeviceIdentity{}, &errcode.E{C: errcode.InitError, Op: "read_identity", Msg: "short read"}
	}
	deviceID := uint16(ident[5])<<8 | uint16(ident[6])
	serial := ""
	for _, b := range ident {
		serial += fmt.Sprintf("%02d", b)
	}

	table := make([]regVal, len(baseRegisterTable))
	copy(table, baseRegisterTable)
	for i := range table {
		switch table[i].reg {
		case RegFreq3:
			table[i].val = byte(freqReg >> 24)
		case RegFreq2:
			table[i].val = byte(freqReg >> 16)
		case RegFreq1:
			table[i].val = byte(freqReg >> 8)
		case RegFreq0:
			table[i].val = byte(freqReg)
		}
	}

	for _, rv := range table {
		if err := t.WriteReg(ctx, byte(rv.reg), rv.val); err != nil {
			return types.DeviceIdentity{}, &errcode.E{C: errcode.InitError, Op: "write_reg", Err: err}
		}
	}

	if err := initRitual(ctx, t); err != nil {
		return types.DeviceIdentity{}, err
	}

	return types.DeviceIdentity{ID: deviceID, Serial: serial}, nil
}

// initRitual is the double-preamble sequence required for the console to
// start responding after a factory reset.
func initRitual(ctx context.Context, t controller) error {
	if err := t.Execute(ctx, 5); err != nil {
		return &errcode.E{C: errcode.InitError, Op: "execute", Err: err}
	}
	if err := t.SetPreamblePattern(ctx, 0xAA); err != nil {
		return &errcode.E{C: errcode.InitError, Op: "set_preamble", Err: err}
	}
	if err := t.SetState(ctx, 0); err != nil {
		return &errcode.E{C: errcode.InitError, Op: "set_state", Err: err}
	}
	sleep(initWait)
	if err := t.SetRX(ctx); err != nil {
		return &errcode.E{C: errcode.InitError, Op: "set_rx", Err: err}
	}

	if err := t.SetPreamblePattern(ctx, 0xAA); err != nil {
		return &errcode.E{C: errcode.InitError, Op: "set_preamble", Err: err}
	}
	if err := t.SetState(ctx, 0x1E); err != nil {
		return &errcode.E{C: errcode.InitError, Op: "set_state", Err: err}
	}
	sleep(initWait)
	if err := t.SetRX(ctx); err != nil {
		return &errcode.E{C: errcode.InitError, Op: "set_rx", Err: err}
	}
	return nil
}

// sleep is a var so tests can stub it out instead of actually waiting.
var sleep = time.Sleep
