// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import (
	"fmt"
	"time"
)

// FormatHex renders raw frame bytes as space-separated hex
func FormatHex(frame []byte) string {
	return fmt.Sprintf("% X", frame)
}

// FormatRequest formats an outgoing request into a human-readable line
func FormatRequest(req *Request) string {
	result := fmt.Sprintf("TX %s %s (%d) mode=%s ch=%d", req.Action, req.Command, uint8(req.Command), req.Mode, req.Channel)
	if req.ID != 0 {
		result += fmt.Sprintf(" id=%08X", req.ID)
	}
	if req.Format != 0 || len(req.Data) > 0 {
		result += fmt.Sprintf(" fmt=%d data=[% X]", req.Format, req.Data)
	}
	return result
}

// FormatResponse formats an incoming frame into a human-readable string,
// followed by the decoded payload when there is one
func FormatResponse(resp *Response) string {
	timestamp := "--:--:--.---"
	if !resp.Received.IsZero() {
		timestamp = resp.Received.Format("15:04:05.000")
	}

	result := fmt.Sprintf("[%s] %s %s (%d) status=%s ch=%d count=%d fmt=%d",
		timestamp, resp.Mode, resp.Command, uint8(resp.Command), resp.Status, resp.Channel, resp.Count, resp.Format)
	if resp.ID != 0 {
		result += fmt.Sprintf(" id=%08X", resp.ID)
	}
	result += fmt.Sprintf(" data=[% X]\n", resp.Data[:])

	switch {
	case resp.Command == CmdSendState:
		result += formatSendState(resp)
	case resp.Mode.IsIncoming():
		if ev, ok := DecodeEvent(resp); ok {
			result += "  " + FormatEvent(ev) + "\n"
		}
	}
	return result
}

func formatSendState(resp *Response) string {
	info := decodeInfo(resp)
	result := fmt.Sprintf("  Device: %s\n", info)

	switch resp.Format {
	case FormatState:
		s := decodeBaseState(resp)
		result += fmt.Sprintf("  State: %s, Service: %s, Brightness: %.0f%%\n",
			s.State, yesNo(s.ServiceMode), s.Brightness*100)
	case FormatExtraState:
		s := decodeExtraState(resp)
		result += fmt.Sprintf("  Extra Input: %s, nooLite: %s\n", yesNo(s.ExtraInput), s.NooLiteMode)
	case FormatChannels:
		s := decodeChannelsState(resp)
		result += fmt.Sprintf("  Channels: nooLite %d, nooLite-F %d\n", s.Legacy, s.Extended)
	case FormatConfig:
		result += "  Config: " + DescribeConfig(decodeConfig(resp)) + "\n"
	case FormatDimmerCorrection:
		s := decodeDimmerCorrection(resp)
		result += fmt.Sprintf("  Dimmer Correction: %.0f%%..%.0f%%\n", s.Min*100, s.Max*100)
	}
	return result
}

// DescribeConfig renders the fields present in cfg
func DescribeConfig(cfg *DeviceConfig) string {
	if cfg == nil {
		return "(none)"
	}
	result := ""
	add := func(name string, v *bool) {
		if v == nil {
			return
		}
		if result != "" {
			result += ", "
		}
		result += name + "=" + yesNo(*v)
	}
	add("save-state", cfg.SaveState)
	add("dimmer", cfg.DimmerMode)
	add("noolite", cfg.NooLiteSupport)
	if cfg.ExtraInput != nil {
		if result != "" {
			result += ", "
		}
		result += "extra-input=" + cfg.ExtraInput.String()
	}
	add("init-state", cfg.InitState)
	add("retransmit", cfg.NooLiteRetransmit)
	return result
}

// FormatEvent formats an event without its origin
func FormatEvent(ev Event) string {
	switch e := ev.(type) {
	case PowerOn:
		return "ON"
	case PowerOff:
		return "OFF"
	case Switch:
		return "SWITCH"
	case LoadPreset:
		return "LOAD_PRESET"
	case SavePreset:
		return "SAVE_PRESET"
	case TemporaryOn:
		return fmt.Sprintf("TEMPORARY_ON %s", e.Duration.Round(time.Second))
	case BrightnessTune:
		return fmt.Sprintf("TUNE %s", e.Direction)
	case BrightnessTuneBack:
		return "TUNE_BACK"
	case BrightnessTuneStop:
		return "TUNE_STOP"
	case BrightnessTuneCustom:
		return fmt.Sprintf("TUNE %s speed=%.2f", e.Direction, e.Speed)
	case BrightnessTuneStep:
		if e.Step == 0 {
			return fmt.Sprintf("STEP %s", e.Direction)
		}
		return fmt.Sprintf("STEP %s by %d", e.Direction, e.Step)
	case SetBrightness:
		return fmt.Sprintf("SET_BRIGHTNESS %.0f%%", e.Level*100)
	case SetRGBBrightness:
		return fmt.Sprintf("SET_RGB %.2f/%.2f/%.2f", e.Red, e.Green, e.Blue)
	case RollColor:
		return "ROLL_COLOR"
	case SwitchColor:
		return "SWITCH_COLOR"
	case SwitchMode:
		return "SWITCH_MODE"
	case SwitchSpeed:
		return "SWITCH_SPEED"
	case BatteryLow:
		return "BATTERY_LOW"
	case TempHumi:
		result := fmt.Sprintf("TEMP %.1f°C", e.Temperature)
		if e.HasHumidity {
			result += fmt.Sprintf(" HUMI %d%%", e.Humidity)
		}
		result += fmt.Sprintf(" ANALOG %.2f", e.Analog)
		if e.BatteryLow {
			result += " BATTERY_LOW"
		}
		return result
	case BindRequest:
		return "BIND"
	default:
		return fmt.Sprintf("%T", ev)
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
