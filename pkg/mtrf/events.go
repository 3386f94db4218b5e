// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import (
	"time"
)

// Origin identifies where an unsolicited frame came from
type Origin struct {
	Channel  uint8
	Mode     Mode
	ID       uint32 // sender id, nooLite-F only
	Received time.Time
}

// Source returns the event origin
func (o Origin) Source() Origin { return o }

// Event is one of the event types declared in this file
type Event interface {
	Source() Origin
	isEvent()
}

type (
	// PowerOn: a remote or sensor sent ON
	PowerOn struct{ Origin }
	// PowerOff: a remote or sensor sent OFF
	PowerOff struct{ Origin }
	// Switch: toggle
	Switch struct{ Origin }
	// LoadPreset: recall scene
	LoadPreset struct{ Origin }
	// SavePreset: store scene
	SavePreset struct{ Origin }

	// TemporaryOn: on for Duration, sent by motion sensors and timers
	TemporaryOn struct {
		Origin
		Duration time.Duration
	}

	// BrightnessTune: start ramping brightness in Direction
	BrightnessTune struct {
		Origin
		Direction TuneDirection
	}
	// BrightnessTuneBack: start ramping in the opposite direction of the last ramp
	BrightnessTuneBack struct{ Origin }
	// BrightnessTuneStop: stop ramping
	BrightnessTuneStop struct{ Origin }

	// BrightnessTuneCustom: ramp with an explicit speed 0..1
	BrightnessTuneCustom struct {
		Origin
		Direction TuneDirection
		Speed     float64
	}

	// BrightnessTuneStep: single step, Step 0 means the device default
	BrightnessTuneStep struct {
		Origin
		Direction TuneDirection
		Step      int
	}

	// SetBrightness: single-channel level 0..1
	SetBrightness struct {
		Origin
		Level float64
	}

	// SetRGBBrightness: per-channel levels 0..1
	SetRGBBrightness struct {
		Origin
		Red, Green, Blue float64
	}

	RollColor   struct{ Origin }
	SwitchColor struct{ Origin }
	SwitchMode  struct{ Origin }
	SwitchSpeed struct{ Origin }

	// BatteryLow: the sender's battery needs replacing
	BatteryLow struct{ Origin }

	// TempHumi: periodic sensor telemetry
	TempHumi struct {
		Origin
		Temperature float64 // °C
		Humidity    int     // %, valid when HasHumidity
		HasHumidity bool
		BatteryLow  bool
		Analog      float64 // 0..1
		SensorType  uint8
	}

	// BindRequest: a transmitter in bind mode announced itself
	BindRequest struct{ Origin }
)

func (PowerOn) isEvent() {}
func (PowerOff) isEvent() {}
func (Switch) isEvent() {}
func (LoadPreset) isEvent() {}
func (SavePreset) isEvent() {}
func (TemporaryOn) isEvent() {}
func (BrightnessTune) isEvent() {}
func (BrightnessTuneBack) isEvent() {}
func (BrightnessTuneStop) isEvent() {}
func (BrightnessTuneCustom) isEvent() {}
func (BrightnessTuneStep) isEvent() {}
func (SetBrightness) isEvent() {}
func (SetRGBBrightness) isEvent() {}
func (RollColor) isEvent() {}
func (SwitchColor) isEvent() {}
func (SwitchMode) isEvent() {}
func (SwitchSpeed) isEvent() {}
func (BatteryLow) isEvent() {}
func (TempHumi) isEvent() {}
func (BindRequest) isEvent() {}

// Sensor type reported in SENS_TEMP_HUMI frames
const (
	SensorTypeTemperature = 1 // PT112
	SensorTypeTempHumi    = 2 // PT111
)

// DecodeEvent converts an unsolicited frame into an Event. It returns false
// for commands that carry no event.
func DecodeEvent(resp *Response) (Event, bool) {
	o := Origin{
		Channel:  resp.Channel,
		Mode:     resp.Mode,
		ID:       resp.ID,
		Received: resp.Received,
	}

	switch resp.Command {
	case CmdOn:
		return PowerOn{o}, true
	case CmdOff:
		return PowerOff{o}, true
	case CmdSwitch:
		return Switch{o}, true
	case CmdLoadPreset:
		return LoadPreset{o}, true
	case CmdSavePreset:
		return SavePreset{o}, true
	case CmdTemporaryOn:
		return TemporaryOn{Origin: o, Duration: decodeTemporaryOn(resp.Format, resp.Data)}, true
	case CmdBrightUp:
		return BrightnessTune{Origin: o, Direction: TuneUp}, true
	case CmdBrightDown:
		return BrightnessTune{Origin: o, Direction: TuneDown}, true
	case CmdBrightBack:
		return BrightnessTuneBack{o}, true
	case CmdStopBright:
		return BrightnessTuneStop{o}, true
	case CmdBrightReg:
		dir, speed := decodeTuneSpeed(resp.Data[0])
		return BrightnessTuneCustom{Origin: o, Direction: dir, Speed: speed}, true
	case CmdBrightStepUp:
		return BrightnessTuneStep{Origin: o, Direction: TuneUp, Step: decodeStep(resp.Format, resp.Data)}, true
	case CmdBrightStepDown:
		return BrightnessTuneStep{Origin: o, Direction: TuneDown, Step: decodeStep(resp.Format, resp.Data)}, true
	case CmdSetBrightness:
		if resp.Format == FormatRGB {
			return SetRGBBrightness{
				Origin: o,
				Red:    levelFraction(resp.Data[0]),
				Green:  levelFraction(resp.Data[1]),
				Blue:   levelFraction(resp.Data[2]),
			}, true
		}
		return SetBrightness{Origin: o, Level: levelFraction(resp.Data[0])}, true
	case CmdRollColor:
		return RollColor{o}, true
	case CmdSwitchColor:
		return SwitchColor{o}, true
	case CmdSwitchMode:
		return SwitchMode{o}, true
	case CmdSpeedMode:
		return SwitchSpeed{o}, true
	case CmdBatteryLow:
		return BatteryLow{o}, true
	case CmdSensTempHumi:
		return decodeTempHumi(o, resp.Data), true
	case CmdBind:
		return BindRequest{o}, true
	default:
		return nil, false
	}
}

// decodeTempHumi unpacks a SENS_TEMP_HUMI payload:
// d0 + low nibble of d1 = 12-bit signed temperature in 0.1 °C,
// d1 bits 4..6 = sensor type, d1 bit 7 = battery low,
// d2 = humidity (temp/humidity sensors only), d3 = analog input.
func decodeTempHumi(o Origin, d [DataSize]byte) TempHumi {
	raw := int(d[1]&0x0F)<<8 | int(d[0])
	if raw >= 0x800 {
		raw -= 0x1000
	}
	sensorType := (d[1] >> 4) & 0x07
	ev := TempHumi{
		Origin:      o,
		Temperature: float64(raw) / 10,
		BatteryLow:  d[1]&0x80 != 0,
		Analog:      levelFraction(d[3]),
		SensorType:  sensorType,
	}
	if sensorType == SensorTypeTempHumi {
		ev.Humidity = int(d[2])
		ev.HasHumidity = true
	}
	return ev
}
