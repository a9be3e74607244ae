// Package radio brings the dongle's AX5051 FSK transceiver up: it programs
// the fixed register table, derives the frequency registers from the
// dongle's factory calibration, and runs the two-pass init ritual the
// console needs to start responding after a factory reset.
package radio

// Register is one AX5051 register address.
type Register byte

// AX5051 register addresses used by this driver. Named after the chip's own
// datasheet mnemonics; only the registers the init sequence touches are
// listed here.
const (
	RegIFMode      Register = 0x08
	RegModulation  Register = 0x10
	RegEncoding    Register = 0x11
	RegFraming     Register = 0x12
	RegCRCInit3    Register = 0x14
	RegCRCInit2    Register = 0x15
	RegCRCInit1    Register = 0x16
	RegCRCInit0    Register = 0x17
	RegFreq3       Register = 0x20
	RegFreq2       Register = 0x21
	RegFreq1       Register = 0x22
	RegFreq0       Register = 0x23
	RegFSKDev2     Register = 0x25
	RegFSKDev1     Register = 0x26
	RegFSKDev0     Register = 0x27
	RegIFFreqHi    Register = 0x28
	RegIFFreqLo    Register = 0x29
	RegPLLLoop     Register = 0x2C
	RegPLLRanging  Register = 0x2D
	RegPLLRngClk   Register = 0x2E
	RegTXPwr       Register = 0x30
	RegTXRateHi    Register = 0x31
	RegTXRateMid   Register = 0x32
	RegTXRateLo    Register = 0x33
	RegModMisc     Register = 0x34
	RegADCMisc     Register = 0x38
	RegAGCTarget   Register = 0x39
	RegAGCAttack   Register = 0x3A
	RegAGCDecay    Register = 0x3B
	RegCICDec      Register = 0x3F
	RegDataRateHi  Register = 0x40
	RegDataRateLo  Register = 0x41
	RegTmgGainHi   Register = 0x42
	RegTmgGainLo   Register = 0x43
	RegPhaseGain   Register = 0x44
	RegFreqGain    Register = 0x45
	RegFreqGain2   Register = 0x46
	RegAmplGain    Register = 0x47
	RegSpareOut    Register = 0x60
	RegTestObs     Register = 0x68
	RegAPEOver     Register = 0x70
	RegTmMux       Register = 0x71
	RegPLLVCOI     Register = 0x72
	RegPLLCPEn     Register = 0x73
	RegAGCManual   Register = 0x78
	RegADCDCLevel  Register = 0x79
	RegRFMisc      Register = 0x7A
	RegTXDriver    Register = 0x7B
	RegRef         Register = 0x7C
	RegRXMisc      Register = 0x7D
)

// regVal is one (address, value) pair from the fixed configuration table.
type regVal struct {
	reg Register
	val byte
}

// baseRegisterTable is the dongle's fixed AX5051 configuration: FSK
// modulation, CRC init, PLL/AGC tuning and driver gains. FREQ3..FREQ0 are
// overwritten afterward with the frequency derived in Configure.
var baseRegisterTable = []regVal{
	{RegIFMode, 0x00},
	{RegModulation, 0x41}, // FSK
	{RegEncoding, 0x07},
	{RegFraming, 0x84},
	{RegCRCInit3, 0xFF},
	{RegCRCInit2, 0xFF},
	{RegCRCInit1, 0xFF},
	{RegCRCInit0, 0xFF},
	{RegFreq3, 0x38},
	{RegFreq2, 0x90},
	{RegFreq1, 0x00},
	{RegFreq0, 0x01},
	{RegPLLLoop, 0x1D},
	{RegPLLRanging, 0x08},
	{RegPLLRngClk, 0x03},
	{RegModMisc, 0x03},
	{RegSpareOut, 0x00},
	{RegTestObs, 0x00},
	{RegAPEOver, 0x00},
	{RegTmMux, 0x00},
	{RegPLLVCOI, 0x01},
	{RegPLLCPEn, 0x01},
	{RegRFMisc, 0xB0},
	{RegRef, 0x23},
	{RegIFFreqHi, 0x20},
	{RegIFFreqLo, 0x00},
	{RegADCMisc, 0x01},
	{RegAGCTarget, 0x0E},
	{RegAGCAttack, 0x11},
	{RegAGCDecay, 0x0E},
	{RegCICDec, 0x3F},
	{RegDataRateHi, 0x19},
	{RegDataRateLo, 0x66},
	{RegTmgGainHi, 0x01},
	{RegTmgGainLo, 0x96},
	{RegPhaseGain, 0x03},
	{RegFreqGain, 0x04},
	{RegFreqGain2, 0x0A},
	{RegAmplGain, 0x06},
	{RegAGCManual, 0x00},
	{RegADCDCLevel, 0x10},
	{RegRXMisc, 0x35},
	{RegFSKDev2, 0x00},
	{RegFSKDev1, 0x31},
	{RegFSKDev0, 0x27},
	{RegTXPwr, 0x03},
	{RegTXRateHi, 0x00},
	{RegTXRateMid, 0x51},
	{RegTXRateLo, 0xEC},
	{RegTXDriver, 0x88},
}

// Factory flash addresses.
const (
	FlashFreqCorrectionAddr = 0x1F5 // 4 bytes, big-endian signed
	FlashIdentityAddr       = 0x1F9 // 7 bytes: 5 serial digits + 2 device-id bytes
)

// Base frequencies, Hz.
const (
	BaseFreqUS = 905000000
	BaseFreqEU = 868300000
)
