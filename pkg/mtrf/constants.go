// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

// Package mtrf implements the host side of the NooLite / NooLite-F protocol
// spoken by the MTRF-64 USB transceiver.
//
// The transceiver exchanges fixed 17-byte frames over a 9600 baud serial
// line. This package provides the frame codec, an Adapter that owns the
// serial connection and separates command responses from unsolicited
// events, and a Controller that maps high-level operations (power,
// dimming, colour, configuration, binding) onto frames and decodes the
// replies.
package mtrf

import "fmt"

// Frame layout
const (
	FrameSize = 17
	DataSize  = 4

	StartByteTX = 0xAB // 171, host → transceiver
	StopByteTX  = 0xAC // 172
	StartByteRX = 0xAD // 173, transceiver → host
	StopByteRX  = 0xAE // 174

	BaudRate = 9600
)

// Field offsets within a frame
const (
	offStart    = 0
	offMode     = 1
	offAction   = 2 // status on incoming frames
	offReserved = 3 // count on incoming frames
	offChannel  = 4
	offCommand  = 5
	offFormat   = 6
	offData     = 7
	offID       = 11
	offChecksum = 15
	offStop     = 16
)

// Mode selects the radio protocol and the direction of the transceiver block.
type Mode uint8

const (
	ModeTX             Mode = 0 // nooLite transmitter
	ModeRX             Mode = 1 // nooLite receiver
	ModeTXF            Mode = 2 // nooLite-F transmitter
	ModeRXF            Mode = 3 // nooLite-F receiver
	ModeService        Mode = 4
	ModeFirmwareUpdate Mode = 5
)

// IsFeedback reports whether the mode is one of the nooLite-F variants,
// where devices answer with structured acknowledgement frames.
func (m Mode) IsFeedback() bool {
	return m == ModeTXF || m == ModeRXF
}

// IsCommand reports whether frames with this mode belong to command exchanges.
func (m Mode) IsCommand() bool {
	return m == ModeTX || m == ModeTXF
}

// IsIncoming reports whether frames with this mode are unsolicited device traffic.
func (m Mode) IsIncoming() bool {
	return m == ModeRX || m == ModeRXF
}

func (m Mode) String() string {
	switch m {
	case ModeTX:
		return "TX"
	case ModeRX:
		return "RX"
	case ModeTXF:
		return "TX_F"
	case ModeRXF:
		return "RX_F"
	case ModeService:
		return "SERVICE"
	case ModeFirmwareUpdate:
		return "FIRMWARE_UPDATE"
	default:
		return fmt.Sprintf("MODE(%d)", uint8(m))
	}
}

// Action is the control byte of outgoing frames. It encodes the addressing scheme.
type Action uint8

const (
	ActionSendCommand          Action = 0
	ActionSendBroadcastCommand Action = 1
	ActionReadResponse         Action = 2
	ActionBindModeOn           Action = 3
	ActionBindModeOff          Action = 4
	ActionClearChannel         Action = 5
	ActionClearMemory          Action = 6
	ActionUnbindAddress        Action = 7
	ActionSendCommandToID      Action = 8
)

func (a Action) String() string {
	switch a {
	case ActionSendCommand:
		return "SEND_COMMAND"
	case ActionSendBroadcastCommand:
		return "SEND_BROADCAST_COMMAND"
	case ActionReadResponse:
		return "READ_RESPONSE"
	case ActionBindModeOn:
		return "BIND_MODE_ON"
	case ActionBindModeOff:
		return "BIND_MODE_OFF"
	case ActionClearChannel:
		return "CLEAR_CHANNEL"
	case ActionClearMemory:
		return "CLEAR_MEMORY"
	case ActionUnbindAddress:
		return "UNBIND_ADDRESS"
	case ActionSendCommandToID:
		return "SEND_COMMAND_TO_ID"
	default:
		return fmt.Sprintf("ACTION(%d)", uint8(a))
	}
}

// Status is the control byte of incoming frames.
type Status uint8

const (
	StatusSuccess     Status = 0
	StatusNoResponse  Status = 1
	StatusError       Status = 2
	StatusBindSuccess Status = 3
)

// OK reports whether the status counts as a successful exchange.
func (s Status) OK() bool {
	return s == StatusSuccess || s == StatusBindSuccess
}

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusNoResponse:
		return "NO_RESPONSE"
	case StatusError:
		return "ERROR"
	case StatusBindSuccess:
		return "BIND_SUCCESS"
	default:
		return fmt.Sprintf("STATUS(%d)", uint8(s))
	}
}

// Command is the vendor-assigned command code.
type Command uint8

const (
	CmdOff            Command = 0
	CmdBrightDown     Command = 1
	CmdOn             Command = 2
	CmdBrightUp       Command = 3
	CmdSwitch         Command = 4
	CmdBrightBack     Command = 5
	CmdSetBrightness  Command = 6
	CmdLoadPreset     Command = 7
	CmdSavePreset     Command = 8
	CmdUnbind         Command = 9
	CmdStopBright     Command = 10
	CmdBrightStepDown Command = 11
	CmdBrightStepUp   Command = 12
	CmdBrightReg      Command = 13
	CmdBind           Command = 15
	CmdRollColor      Command = 16
	CmdSwitchColor    Command = 17
	CmdSwitchMode     Command = 18
	CmdSpeedMode      Command = 19
	CmdBatteryLow     Command = 20
	CmdSensTempHumi   Command = 21
	CmdTemporaryOn    Command = 25
	CmdModes          Command = 26
	CmdReadState      Command = 128
	CmdWriteState     Command = 129
	CmdSendState      Command = 130
	CmdService        Command = 131
	CmdClearMemory    Command = 132
)

var commandNames = map[Command]string{
	CmdOff:            "OFF",
	CmdBrightDown:     "BRIGHT_DOWN",
	CmdOn:             "ON",
	CmdBrightUp:       "BRIGHT_UP",
	CmdSwitch:         "SWITCH",
	CmdBrightBack:     "BRIGHT_BACK",
	CmdSetBrightness:  "SET_BRIGHTNESS",
	CmdLoadPreset:     "LOAD_PRESET",
	CmdSavePreset:     "SAVE_PRESET",
	CmdUnbind:         "UNBIND",
	CmdStopBright:     "STOP_BRIGHT",
	CmdBrightStepDown: "BRIGHT_STEP_DOWN",
	CmdBrightStepUp:   "BRIGHT_STEP_UP",
	CmdBrightReg:      "BRIGHT_REG",
	CmdBind:           "BIND",
	CmdRollColor:      "ROLL_COLOR",
	CmdSwitchColor:    "SWITCH_COLOR",
	CmdSwitchMode:     "SWITCH_MODE",
	CmdSpeedMode:      "SPEED_MODE",
	CmdBatteryLow:     "BATTERY_LOW",
	CmdSensTempHumi:   "SENS_TEMP_HUMI",
	CmdTemporaryOn:    "TEMPORARY_ON",
	CmdModes:          "MODES",
	CmdReadState:      "READ_STATE",
	CmdWriteState:     "WRITE_STATE",
	CmdSendState:      "SEND_STATE",
	CmdService:        "SERVICE",
	CmdClearMemory:    "CLEAR_MEMORY",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("COMMAND(%d)", uint8(c))
}

// Format codes used by SEND_STATE / READ_STATE / WRITE_STATE
const (
	FormatState            = 0
	FormatExtraState       = 1
	FormatChannels         = 2
	FormatConfig           = 16
	FormatDimmerCorrection = 17
)

// Format codes used by control commands
const (
	FormatNone        = 0
	FormatOneByte     = 1
	FormatRGB         = 3
	FormatTempOnShort = 5
	FormatTempOnLong  = 6
	FormatTempHumi    = 7
)

// ModuleKind selects the radio protocol of the addressed module.
type ModuleKind uint8

const (
	NooLiteF ModuleKind = iota // feedback protocol, answers every command
	NooLite                    // legacy one-way protocol
)

// txMode returns the transceiver mode used to command modules of this kind.
func (k ModuleKind) txMode() Mode {
	if k == NooLite {
		return ModeTX
	}
	return ModeTXF
}

func (k ModuleKind) String() string {
	if k == NooLite {
		return "noolite"
	}
	return "noolite-f"
}
