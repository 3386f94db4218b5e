// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import (
	"fmt"
	"math"
	"time"
)

// TemporaryOnUnit is the resolution of temporary-on durations
const TemporaryOnUnit = 5 * time.Second

// MaxTemporaryOn is the longest encodable temporary-on duration
const MaxTemporaryOn = 0xFFFF * TemporaryOnUnit

// clearMemoryKey must accompany CLEAR_MEMORY requests
var clearMemoryKey = []byte{170, 85, 170, 85}

////// Level scales //////

// BrightnessScale selects how a 0..1 level becomes a SET_BRIGHTNESS byte
type BrightnessScale uint8

const (
	// ScaleVendor is the non-linear dimmer curve: 0, 35+round(120*level), 255 at full
	ScaleVendor BrightnessScale = iota
	// ScaleLinear is round(level*255)
	ScaleLinear
	// ScaleVendorCapped is the vendor curve saturating at 155 as in older firmware
	ScaleVendorCapped
)

func (s BrightnessScale) String() string {
	switch s {
	case ScaleVendor:
		return "vendor"
	case ScaleLinear:
		return "linear"
	case ScaleVendorCapped:
		return "vendor-capped"
	default:
		return fmt.Sprintf("SCALE(%d)", uint8(s))
	}
}

// Encode converts a level with this scale
func (s BrightnessScale) Encode(level float64) byte {
	switch s {
	case ScaleLinear:
		return LinearLevel(level)
	case ScaleVendorCapped:
		return VendorBrightnessCapped(level)
	default:
		return VendorBrightness(level)
	}
}

// LinearLevel maps 0..1 to 0..255, clamping out-of-range input
func LinearLevel(level float64) byte {
	if math.IsNaN(level) || level <= 0 {
		return 0
	}
	if level >= 1 {
		return 255
	}
	return byte(math.Round(level * 255))
}

// VendorBrightness maps 0..1 onto the dimmer's non-linear range
func VendorBrightness(level float64) byte {
	if math.IsNaN(level) || level <= 0 {
		return 0
	}
	if level >= 1 {
		return 255
	}
	return byte(35 + math.Round(120*level))
}

// VendorBrightnessCapped is VendorBrightness with full level encoded as 155
func VendorBrightnessCapped(level float64) byte {
	if level >= 1 {
		return 155
	}
	return VendorBrightness(level)
}

// levelFraction is the inverse of LinearLevel
func levelFraction(b byte) float64 {
	return float64(b) / 255
}

////// Tuning //////

// TuneDirection is the direction of a brightness ramp
type TuneDirection uint8

const (
	TuneUp TuneDirection = iota
	TuneDown
)

func (d TuneDirection) String() string {
	if d == TuneDown {
		return "down"
	}
	return "up"
}

// encodeTuneSpeed packs a 0..1 speed and direction into the BRIGHT_REG byte.
// The magnitude is 7 bits; down is stored as -(value+1) in two's complement.
func encodeTuneSpeed(dir TuneDirection, speed float64) byte {
	v := 0
	switch {
	case math.IsNaN(speed) || speed <= 0:
	case speed >= 1:
		v = 127
	default:
		v = int(math.Round(speed * 127))
	}
	if dir == TuneDown {
		return byte(-v - 1)
	}
	return byte(v)
}

// decodeTuneSpeed is the inverse of encodeTuneSpeed
func decodeTuneSpeed(b byte) (TuneDirection, float64) {
	if b&0x80 != 0 {
		return TuneDown, float64(int(^b)) / 127
	}
	return TuneUp, float64(b) / 127
}

// encodeStep returns format and data for BRIGHT_STEP_*. step 0 selects the
// device default; 1..256 are explicit with 256 encoded as 0.
func encodeStep(step int) (uint8, []byte, error) {
	switch {
	case step == 0:
		return FormatNone, nil, nil
	case step < 0 || step > 256:
		return 0, nil, fmt.Errorf("%w: step %d outside 1..256", ErrInvalidArgument, step)
	default:
		return FormatOneByte, []byte{byte(step)}, nil
	}
}

// decodeStep returns the explicit step carried by an event, or 0 for the default
func decodeStep(format uint8, data [DataSize]byte) int {
	if format != FormatOneByte {
		return 0
	}
	if data[0] == 0 {
		return 256
	}
	return int(data[0])
}

////// Temporary on //////

// encodeTemporaryOn converts a duration to 5 s units, low byte first
func encodeTemporaryOn(d time.Duration) ([]byte, error) {
	if d < 0 {
		return nil, fmt.Errorf("%w: negative duration %s", ErrInvalidArgument, d)
	}
	if d > MaxTemporaryOn {
		return nil, fmt.Errorf("%w: duration %s exceeds %s", ErrInvalidArgument, d, MaxTemporaryOn)
	}
	units := uint16((d + TemporaryOnUnit/2) / TemporaryOnUnit)
	return []byte{byte(units), byte(units >> 8)}, nil
}

// decodeTemporaryOn reads format 5 (one byte) and format 6 (two bytes) durations
func decodeTemporaryOn(format uint8, data [DataSize]byte) time.Duration {
	units := int(data[0])
	if format == FormatTempOnLong {
		units |= int(data[1]) << 8
	}
	return time.Duration(units) * TemporaryOnUnit
}

////// Configuration //////

// ExtraInputMode is the function of a power block's extra input
type ExtraInputMode uint8

const (
	ExtraInputDisabled ExtraInputMode = 0
	ExtraInputSwitch   ExtraInputMode = 1
	ExtraInputButton   ExtraInputMode = 2
	ExtraInputReserved ExtraInputMode = 3
)

func (m ExtraInputMode) String() string {
	switch m {
	case ExtraInputDisabled:
		return "disabled"
	case ExtraInputSwitch:
		return "switch"
	case ExtraInputButton:
		return "button"
	default:
		return fmt.Sprintf("mode-%d", uint8(m))
	}
}

// Config bit positions
const (
	cfgSaveState       = 1 << 0
	cfgDimmerMode      = 1 << 1
	cfgNooLiteSupport  = 1 << 2
	cfgExtraInputShift = 3
	cfgExtraInputMask  = 0x03 << cfgExtraInputShift
	cfgInitState       = 1 << 5
	cfgRetransmit      = 1 << 6
)

// DeviceConfig is the format-16 device configuration. Nil fields are left
// unchanged by WriteConfig and are absent from decoded configs only when the
// frame is not a config frame.
type DeviceConfig struct {
	SaveState         *bool
	DimmerMode        *bool
	NooLiteSupport    *bool
	ExtraInput        *ExtraInputMode
	InitState         *bool
	NooLiteRetransmit *bool
}

// encode builds the WRITE_STATE payload: byte 0 flags, byte 2 the mask of
// fields present so the device leaves the others untouched
func (c DeviceConfig) encode() []byte {
	var flags, mask byte
	setBit := func(v *bool, bit byte) {
		if v == nil {
			return
		}
		mask |= bit
		if *v {
			flags |= bit
		}
	}
	setBit(c.SaveState, cfgSaveState)
	setBit(c.DimmerMode, cfgDimmerMode)
	setBit(c.NooLiteSupport, cfgNooLiteSupport)
	if c.ExtraInput != nil {
		mask |= cfgExtraInputMask
		flags |= (byte(*c.ExtraInput) << cfgExtraInputShift) & cfgExtraInputMask
	}
	setBit(c.InitState, cfgInitState)
	setBit(c.NooLiteRetransmit, cfgRetransmit)
	return []byte{flags, 0, mask, 0}
}

// decodeDeviceConfig unpacks a device's full configuration byte
func decodeDeviceConfig(b byte) *DeviceConfig {
	flag := func(bit byte) *bool {
		v := b&bit != 0
		return &v
	}
	mode := ExtraInputMode((b & cfgExtraInputMask) >> cfgExtraInputShift)
	return &DeviceConfig{
		SaveState:         flag(cfgSaveState),
		DimmerMode:        flag(cfgDimmerMode),
		NooLiteSupport:    flag(cfgNooLiteSupport),
		ExtraInput:        &mode,
		InitState:         flag(cfgInitState),
		NooLiteRetransmit: flag(cfgRetransmit),
	}
}

// DimmerCorrection is the format-17 dimmer output range, each level 0..1
type DimmerCorrection struct {
	Min float64
	Max float64
}

func (c DimmerCorrection) encode() []byte {
	return []byte{LinearLevel(c.Min), LinearLevel(c.Max), 0xFF, 0xFF}
}
