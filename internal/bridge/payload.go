// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/noolite/pkg/mtrf"
)

// Command actions accepted on a device set topic
const (
	ActionOn          = "on"
	ActionOff         = "off"
	ActionSwitch      = "switch"
	ActionLevel       = "level"
	ActionRGB         = "rgb"
	ActionTemporaryOn = "temporary_on"
	ActionLoadPreset  = "load_preset"
	ActionSavePreset  = "save_preset"
	ActionTuneUp      = "tune_up"
	ActionTuneDown    = "tune_down"
	ActionTuneStop    = "tune_stop"
	ActionRead        = "read"
)

var errBadCommand = errors.New("bad command")

// Command is a device command. A bare action name such as "on" is accepted
// as well as a JSON object.
type Command struct {
	Action   string    `json:"action"`
	Level    *float64  `json:"level,omitempty"`
	RGB      []float64 `json:"rgb,omitempty"`
	Duration string    `json:"duration,omitempty"`
}

// ParseCommand decodes a set-topic payload
func ParseCommand(payload []byte) (Command, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return Command{}, fmt.Errorf("%w: empty payload", errBadCommand)
	}

	var cmd Command
	if payload[0] == '{' {
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return Command{}, fmt.Errorf("%w: %w", errBadCommand, err)
		}
	} else {
		cmd.Action = string(payload)
	}
	cmd.Action = strings.ToLower(cmd.Action)

	switch cmd.Action {
	case ActionLevel:
		if cmd.Level == nil {
			return Command{}, fmt.Errorf("%w: level requires a level", errBadCommand)
		}
	case ActionRGB:
		if len(cmd.RGB) != 3 {
			return Command{}, fmt.Errorf("%w: rgb requires three levels", errBadCommand)
		}
	case ActionTemporaryOn:
		if _, err := time.ParseDuration(cmd.Duration); err != nil {
			return Command{}, fmt.Errorf("%w: duration: %w", errBadCommand, err)
		}
	case ActionOn, ActionOff, ActionSwitch, ActionLoadPreset, ActionSavePreset,
		ActionTuneUp, ActionTuneDown, ActionTuneStop, ActionRead:
	default:
		return Command{}, fmt.Errorf("%w: unknown action %q", errBadCommand, cmd.Action)
	}
	return cmd, nil
}

// execute runs cmd against dev
func execute(dev *mtrf.Device, cmd Command) ([]mtrf.Result[mtrf.BaseState], error) {
	switch cmd.Action {
	case ActionOn:
		return dev.On()
	case ActionOff:
		return dev.Off()
	case ActionSwitch:
		return dev.Switch()
	case ActionLevel:
		return dev.SetLevel(*cmd.Level)
	case ActionRGB:
		return dev.SetRGB(cmd.RGB[0], cmd.RGB[1], cmd.RGB[2])
	case ActionTemporaryOn:
		d, _ := time.ParseDuration(cmd.Duration)
		return dev.TemporaryOn(d)
	case ActionLoadPreset:
		return dev.LoadPreset()
	case ActionSavePreset:
		return dev.SavePreset()
	case ActionTuneUp:
		return dev.Tune(mtrf.TuneUp)
	case ActionTuneDown:
		return dev.Tune(mtrf.TuneDown)
	case ActionTuneStop:
		return dev.TuneStop()
	case ActionRead:
		return dev.ReadState()
	default:
		return nil, fmt.Errorf("%w: unknown action %q", errBadCommand, cmd.Action)
	}
}

// DeviceResult is one responding device in a state message
type DeviceResult struct {
	Success    bool     `json:"success"`
	ID         string   `json:"id,omitempty"`
	State      string   `json:"state,omitempty"`
	Brightness *float64 `json:"brightness,omitempty"`
}

// StateMessage is published on a device state topic after each command
type StateMessage struct {
	Device  string         `json:"device"`
	Action  string         `json:"action"`
	Results []DeviceResult `json:"results"`
	Error   string         `json:"error,omitempty"`
	Time    time.Time      `json:"time"`
}

func newStateMessage(name, action string, results []mtrf.Result[mtrf.BaseState], err error, at time.Time) StateMessage {
	msg := StateMessage{Device: name, Action: action, Results: []DeviceResult{}, Time: at}
	if err != nil {
		msg.Error = err.Error()
	}
	for _, r := range results {
		dr := DeviceResult{Success: r.Success}
		if r.Info != nil {
			dr.ID = fmt.Sprintf("%08X", r.Info.ID)
		}
		if r.State != nil {
			dr.State = r.State.State.String()
			level := r.State.Brightness
			dr.Brightness = &level
		}
		msg.Results = append(msg.Results, dr)
	}
	return msg
}

// EventMessage is published on the events topic for every decoded event
type EventMessage struct {
	Channel uint8          `json:"channel"`
	Mode    string         `json:"mode"`
	ID      string         `json:"id,omitempty"`
	Event   string         `json:"event"`
	Fields  map[string]any `json:"fields,omitempty"`
	Time    time.Time      `json:"time"`
}

func newEventMessage(ev mtrf.Event) EventMessage {
	o := ev.Source()
	msg := EventMessage{
		Channel: o.Channel,
		Mode:    o.Mode.String(),
		Event:   mtrf.FormatEvent(ev),
		Fields:  eventFields(ev),
		Time:    o.Received,
	}
	if o.ID != 0 {
		msg.ID = fmt.Sprintf("%08X", o.ID)
	}
	return msg
}

func eventFields(ev mtrf.Event) map[string]any {
	switch e := ev.(type) {
	case mtrf.TemporaryOn:
		return map[string]any{"duration_s": e.Duration.Seconds()}
	case mtrf.SetBrightness:
		return map[string]any{"level": e.Level}
	case mtrf.SetRGBBrightness:
		return map[string]any{"red": e.Red, "green": e.Green, "blue": e.Blue}
	case mtrf.BrightnessTuneCustom:
		return map[string]any{"direction": e.Direction.String(), "speed": e.Speed}
	case mtrf.TempHumi:
		return tempHumiFields(e)
	default:
		return nil
	}
}

func tempHumiFields(e mtrf.TempHumi) map[string]any {
	fields := map[string]any{
		"temperature": e.Temperature,
		"battery_low": e.BatteryLow,
		"analog":      e.Analog,
	}
	if e.HasHumidity {
		fields["humidity"] = e.Humidity
	}
	return fields
}
