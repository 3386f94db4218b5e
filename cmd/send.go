// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/noolite/pkg/mtrf"
)

var (
	sendChannel   int
	sendID        string
	sendDevice    string
	sendBroadcast bool
	sendLegacy    bool
	sendScale     string
)

var sendCmd = &cobra.Command{
	Use:   "send <action> [args...]",
	Short: "Send a command and print the device responses",
	Long: `Send one command to the devices selected by --channel, --id or --device
and print one line per responding device.

Actions:
` + actionHelp() + `
Addressing:
  --channel N            every device bound to channel N
  --id 0xABCD1234        one nooLite-F device by id (with --channel: within that channel)
  --broadcast            broadcast to the channel (nooLite-F only)
  --legacy               use the nooLite (TX) protocol instead of nooLite-F
  --device NAME          a device from the config file`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().IntVar(&sendChannel, "channel", -1, "Channel 0-63")
	sendCmd.Flags().StringVar(&sendID, "id", "", "nooLite-F device id (hex)")
	sendCmd.Flags().StringVar(&sendDevice, "device", "", "Device name from the config file")
	sendCmd.Flags().BoolVar(&sendBroadcast, "broadcast", false, "Broadcast to the channel")
	sendCmd.Flags().BoolVar(&sendLegacy, "legacy", false, "Use the nooLite (TX) protocol")
	sendCmd.Flags().StringVar(&sendScale, "scale", "vendor", "Brightness scale for 'level': vendor, linear, vendor-capped")
}

func runSend(cmd *cobra.Command, args []string) error {
	addr, err := sendAddress()
	if err != nil {
		return err
	}

	ctl, _, connInfo, err := openController()
	if err != nil {
		return err
	}
	defer ctl.Close()

	fmt.Fprintf(os.Stderr, "Connection: %s\nTarget: %s\n", connInfo, addr)
	return runAction(os.Stdout, ctl, addr, args[0], args[1:])
}

// sendAddress builds the target address from the send flags
func sendAddress() (mtrf.Address, error) {
	if sendDevice != "" {
		for _, d := range cfg.Devices {
			if d.Name == sendDevice {
				return d.Address(), nil
			}
		}
		return mtrf.Address{}, fmt.Errorf("no device %q in config", sendDevice)
	}
	return parseAddress(sendChannel, sendID, sendBroadcast, sendLegacy)
}

func parseAddress(channel int, id string, broadcast, legacy bool) (mtrf.Address, error) {
	var addr mtrf.Address
	if channel >= 0 {
		if channel > 63 {
			return addr, fmt.Errorf("channel %d out of range 0-63", channel)
		}
		addr = addr.InChannel(uint8(channel))
	}
	if id != "" {
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(id), "0x"), 16, 32)
		if err != nil {
			return addr, fmt.Errorf("invalid device id %q: %w", id, err)
		}
		addr.ID = uint32(v)
	}
	if broadcast {
		addr = addr.AsBroadcast()
	}
	if legacy {
		addr = addr.WithKind(mtrf.NooLite)
	}
	return addr, nil
}

//////////////////////////////////////////////////////////////
// Actions
//////////////////////////////////////////////////////////////

type action struct {
	usage string
	nargs int // exact argument count, -1 for a range checked by run
	run   func(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, args []string) error
}

// simple wraps a command without arguments
func simple(fn func(*mtrf.Controller, mtrf.Address) ([]mtrf.Result[mtrf.BaseState], error)) action {
	return action{run: func(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, _ []string) error {
		results, err := fn(ctl, addr)
		printResults(w, results, describeBaseState)
		return err
	}}
}

var actions = map[string]action{
	"on":           simple((*mtrf.Controller).On),
	"off":          simple((*mtrf.Controller).Off),
	"switch":       simple((*mtrf.Controller).Switch),
	"load-preset":  simple((*mtrf.Controller).LoadPreset),
	"save-preset":  simple((*mtrf.Controller).SavePreset),
	"bind":         simple((*mtrf.Controller).Bind),
	"unbind":       simple((*mtrf.Controller).Unbind),
	"tune-back":    simple((*mtrf.Controller).BrightnessTuneBack),
	"tune-stop":    simple((*mtrf.Controller).BrightnessTuneStop),
	"roll-color":   simple((*mtrf.Controller).RollColor),
	"switch-color": simple((*mtrf.Controller).SwitchColor),
	"switch-mode":  simple((*mtrf.Controller).SwitchMode),
	"switch-speed": simple((*mtrf.Controller).SwitchSpeed),
	"read-state":   simple((*mtrf.Controller).ReadState),

	"level": {usage: "<0..1>", nargs: 1, run: func(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, args []string) error {
		level, err := parseLevel(args[0])
		if err != nil {
			return err
		}
		scale, err := parseScale(sendScale)
		if err != nil {
			return err
		}
		results, err := ctl.SetBrightnessScaled(addr, level, scale)
		printResults(w, results, describeBaseState)
		return err
	}},
	"rgb": {usage: "<r> <g> <b>", nargs: 3, run: func(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, args []string) error {
		var levels [3]float64
		for i, arg := range args {
			v, err := parseLevel(arg)
			if err != nil {
				return err
			}
			levels[i] = v
		}
		results, err := ctl.SetRGBBrightness(addr, levels[0], levels[1], levels[2])
		printResults(w, results, describeBaseState)
		return err
	}},
	"tune": {usage: "up|down", nargs: 1, run: func(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, args []string) error {
		dir, err := parseDirection(args[0])
		if err != nil {
			return err
		}
		results, err := ctl.BrightnessTune(addr, dir)
		printResults(w, results, describeBaseState)
		return err
	}},
	"tune-custom": {usage: "up|down <speed 0..1>", nargs: 2, run: func(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, args []string) error {
		dir, err := parseDirection(args[0])
		if err != nil {
			return err
		}
		speed, err := parseLevel(args[1])
		if err != nil {
			return err
		}
		results, err := ctl.BrightnessTuneCustom(addr, dir, speed)
		printResults(w, results, describeBaseState)
		return err
	}},
	"step": {usage: "up|down [1..256]", nargs: -1, run: func(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, args []string) error {
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("step takes a direction and an optional step size")
		}
		dir, err := parseDirection(args[0])
		if err != nil {
			return err
		}
		step := 0
		if len(args) == 2 {
			if step, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("invalid step %q: %w", args[1], err)
			}
		}
		results, err := ctl.BrightnessTuneStep(addr, dir, step)
		printResults(w, results, describeBaseState)
		return err
	}},
	"temp-on": {usage: "<duration, e.g. 90s>", nargs: 1, run: func(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, args []string) error {
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", args[0], err)
		}
		results, err := ctl.TemporaryOn(addr, d)
		printResults(w, results, describeBaseState)
		return err
	}},
	"temp-on-mode": {usage: "on|off", nargs: 1, run: func(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, args []string) error {
		on, err := parseOnOff(args[0])
		if err != nil {
			return err
		}
		results, err := ctl.SetTemporaryOnMode(addr, on)
		printResults(w, results, describeBaseState)
		return err
	}},
	"service": {usage: "on|off", nargs: 1, run: func(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, args []string) error {
		on, err := parseOnOff(args[0])
		if err != nil {
			return err
		}
		results, err := ctl.SetServiceMode(addr, on)
		printResults(w, results, describeBaseState)
		return err
	}},
	"read-extra": {run: func(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, _ []string) error {
		results, err := ctl.ReadExtraState(addr)
		printResults(w, results, func(s *mtrf.ExtraState) string {
			return fmt.Sprintf("extra-input=%t noolite=%s", s.ExtraInput, s.NooLiteMode)
		})
		return err
	}},
	"read-channels": {run: func(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, _ []string) error {
		results, err := ctl.ReadChannelsState(addr)
		printResults(w, results, func(s *mtrf.ChannelsState) string {
			return fmt.Sprintf("noolite=%d noolite-f=%d", s.Legacy, s.Extended)
		})
		return err
	}},
	"read-config": {run: func(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, _ []string) error {
		results, err := ctl.ReadConfig(addr)
		printResults(w, results, mtrf.DescribeConfig)
		return err
	}},
	"write-config": {usage: "key=value... (save-state, dimmer, noolite, init-state, retransmit: on|off; extra-input: disabled|switch|button)", nargs: -1, run: func(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, args []string) error {
		devCfg, err := parseDeviceConfig(args)
		if err != nil {
			return err
		}
		results, err := ctl.WriteConfig(addr, devCfg)
		printResults(w, results, mtrf.DescribeConfig)
		return err
	}},
	"read-correction": {run: func(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, _ []string) error {
		results, err := ctl.ReadDimmerCorrection(addr)
		printResults(w, results, describeCorrection)
		return err
	}},
	"write-correction": {usage: "<min 0..1> <max 0..1>", nargs: 2, run: func(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, args []string) error {
		lo, err := parseLevel(args[0])
		if err != nil {
			return err
		}
		hi, err := parseLevel(args[1])
		if err != nil {
			return err
		}
		results, err := ctl.WriteDimmerCorrection(addr, mtrf.DimmerCorrection{Min: lo, Max: hi})
		printResults(w, results, describeCorrection)
		return err
	}},
	"clear-channel": {run: func(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, _ []string) error {
		if !addr.HasChannel {
			return fmt.Errorf("clear-channel requires --channel")
		}
		results, err := ctl.ClearChannel(addr.Channel, addr.Kind)
		printResults(w, results, describeBaseState)
		return err
	}},
	"clear-memory": {run: func(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, _ []string) error {
		results, err := ctl.ClearMemory(addr.Kind)
		printResults(w, results, describeBaseState)
		return err
	}},
}

func actionHelp() string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "  %-18s %s\n", name, actions[name].usage)
	}
	return b.String()
}

// runAction executes a named action and prints its results to w
func runAction(w io.Writer, ctl *mtrf.Controller, addr mtrf.Address, name string, args []string) error {
	act, ok := actions[name]
	if !ok {
		return fmt.Errorf("unknown action %q", name)
	}
	if act.nargs >= 0 && len(args) != act.nargs {
		return fmt.Errorf("%s takes %d argument(s): %s", name, act.nargs, act.usage)
	}
	return act.run(w, ctl, addr, args)
}

//////////////////////////////////////////////////////////////
// Output
//////////////////////////////////////////////////////////////

// printResults prints one line per responding device
func printResults[T any](w io.Writer, results []mtrf.Result[T], describe func(*T) string) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no response")
		return
	}
	for i, r := range results {
		status := "FAIL"
		if r.Success {
			status = "OK"
		}
		line := fmt.Sprintf("#%d %s", i+1, status)
		if r.Info != nil {
			line += " " + r.Info.String()
		}
		if r.State != nil {
			line += " " + describe(r.State)
		}
		fmt.Fprintln(w, line)
	}
}

func describeBaseState(s *mtrf.BaseState) string {
	return fmt.Sprintf("state=%s service=%t brightness=%.0f%%", s.State, s.ServiceMode, s.Brightness*100)
}

func describeCorrection(c *mtrf.DimmerCorrection) string {
	return fmt.Sprintf("min=%.0f%% max=%.0f%%", c.Min*100, c.Max*100)
}

//////////////////////////////////////////////////////////////
// Argument parsing
//////////////////////////////////////////////////////////////

func parseLevel(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid level %q: %w", s, err)
	}
	if strings.HasSuffix(s, "%") {
		v /= 100
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("level %q out of range 0..1", s)
	}
	return v, nil
}

func parseScale(s string) (mtrf.BrightnessScale, error) {
	for _, scale := range []mtrf.BrightnessScale{mtrf.ScaleVendor, mtrf.ScaleLinear, mtrf.ScaleVendorCapped} {
		if scale.String() == s {
			return scale, nil
		}
	}
	return 0, fmt.Errorf("unknown brightness scale %q", s)
}

func parseDirection(s string) (mtrf.TuneDirection, error) {
	switch strings.ToLower(s) {
	case "up":
		return mtrf.TuneUp, nil
	case "down":
		return mtrf.TuneDown, nil
	default:
		return 0, fmt.Errorf("direction must be up or down, got %q", s)
	}
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true", "yes":
		return true, nil
	case "off", "0", "false", "no":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
}

func parseDeviceConfig(args []string) (mtrf.DeviceConfig, error) {
	var devCfg mtrf.DeviceConfig
	if len(args) == 0 {
		return devCfg, fmt.Errorf("write-config needs at least one key=value")
	}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return devCfg, fmt.Errorf("expected key=value, got %q", arg)
		}
		if key == "extra-input" {
			mode, err := parseExtraInput(value)
			if err != nil {
				return devCfg, err
			}
			devCfg.ExtraInput = &mode
			continue
		}

		on, err := parseOnOff(value)
		if err != nil {
			return devCfg, fmt.Errorf("%s: %w", key, err)
		}
		switch key {
		case "save-state":
			devCfg.SaveState = &on
		case "dimmer":
			devCfg.DimmerMode = &on
		case "noolite":
			devCfg.NooLiteSupport = &on
		case "init-state":
			devCfg.InitState = &on
		case "retransmit":
			devCfg.NooLiteRetransmit = &on
		default:
			return devCfg, fmt.Errorf("unknown config key %q", key)
		}
	}
	return devCfg, nil
}

func parseExtraInput(s string) (mtrf.ExtraInputMode, error) {
	for _, mode := range []mtrf.ExtraInputMode{mtrf.ExtraInputDisabled, mtrf.ExtraInputSwitch, mtrf.ExtraInputButton} {
		if mode.String() == s {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown extra-input mode %q", s)
}
