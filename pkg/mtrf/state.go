// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import "fmt"

// DeviceInfo identifies the device that sent a SEND_STATE frame
type DeviceInfo struct {
	ID       uint32
	Type     uint8
	Firmware uint8
}

func (i DeviceInfo) String() string {
	return fmt.Sprintf("id=%08X type=%d fw=%d", i.ID, i.Type, i.Firmware)
}

// DeviceState is the output state reported in format 0
type DeviceState uint8

const (
	StateOff         DeviceState = 0
	StateOn          DeviceState = 1
	StateTemporaryOn DeviceState = 2
)

func (s DeviceState) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateOn:
		return "on"
	case StateTemporaryOn:
		return "temporary-on"
	default:
		return fmt.Sprintf("state-%d", uint8(s))
	}
}

// BaseState is the format-0 payload
type BaseState struct {
	State       DeviceState
	ServiceMode bool // device is in bind/service mode
	Brightness  float64
}

// NooLiteMode reports whether a feedback device obeys legacy nooLite commands
type NooLiteMode uint8

const (
	NooLiteDisabled NooLiteMode = iota
	NooLiteTemporarilyDisabled
	NooLiteEnabled
)

func (m NooLiteMode) String() string {
	switch m {
	case NooLiteDisabled:
		return "disabled"
	case NooLiteTemporarilyDisabled:
		return "temporarily-disabled"
	case NooLiteEnabled:
		return "enabled"
	default:
		return fmt.Sprintf("noolite-mode-%d", uint8(m))
	}
}

// ExtraState is the format-1 payload
type ExtraState struct {
	ExtraInput  bool
	NooLiteMode NooLiteMode
}

// ChannelsState is the format-2 payload: bound channel slot counts
type ChannelsState struct {
	Legacy   int
	Extended int
}

// Result is the outcome reported by one device for a command
type Result[T any] struct {
	Success bool
	Info    *DeviceInfo // nil unless the frame was SEND_STATE
	State   *T          // nil unless the frame carried the requested format
}

func decodeInfo(resp *Response) *DeviceInfo {
	if resp.Command != CmdSendState {
		return nil
	}
	return &DeviceInfo{
		ID:       resp.ID,
		Type:     resp.Data[0],
		Firmware: resp.Data[1],
	}
}

func decodeBaseState(resp *Response) *BaseState {
	if resp.Command != CmdSendState || resp.Format != FormatState {
		return nil
	}
	return &BaseState{
		State:       DeviceState(resp.Data[2] & 0x0F),
		ServiceMode: resp.Data[2]&0x80 != 0,
		Brightness:  levelFraction(resp.Data[3]),
	}
}

func decodeExtraState(resp *Response) *ExtraState {
	if resp.Command != CmdSendState || resp.Format != FormatExtraState {
		return nil
	}
	mode := NooLiteDisabled
	switch {
	case resp.Data[3]&0x02 != 0:
		mode = NooLiteTemporarilyDisabled
	case resp.Data[3]&0x01 != 0:
		mode = NooLiteEnabled
	}
	return &ExtraState{
		ExtraInput:  resp.Data[2] != 0,
		NooLiteMode: mode,
	}
}

func decodeChannelsState(resp *Response) *ChannelsState {
	if resp.Command != CmdSendState || resp.Format != FormatChannels {
		return nil
	}
	return &ChannelsState{
		Legacy:   int(resp.Data[2]),
		Extended: int(resp.Data[3]),
	}
}

func decodeConfig(resp *Response) *DeviceConfig {
	if resp.Command != CmdSendState || resp.Format != FormatConfig {
		return nil
	}
	return decodeDeviceConfig(resp.Data[0])
}

func decodeDimmerCorrection(resp *Response) *DimmerCorrection {
	if resp.Command != CmdSendState || resp.Format != FormatDimmerCorrection {
		return nil
	}
	return &DimmerCorrection{
		Min: levelFraction(resp.Data[0]),
		Max: levelFraction(resp.Data[1]),
	}
}

// results converts a response burst into per-device results
func results[T any](responses []*Response, decode func(*Response) *T) []Result[T] {
	out := make([]Result[T], 0, len(responses))
	for _, resp := range responses {
		out = append(out, Result[T]{
			Success: resp.Success(),
			Info:    decodeInfo(resp),
			State:   decode(resp),
		})
	}
	return out
}
