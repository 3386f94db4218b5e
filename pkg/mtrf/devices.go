// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the fixture type of a power block
type Kind uint8

const (
	KindSwitch         Kind = iota // relay, on/off only
	KindExtendedSwitch             // relay with temporary-on
	KindDimmer
	KindRGBLed
	KindFan
)

var kindNames = map[Kind]string{
	KindSwitch:         "switch",
	KindExtendedSwitch: "extended-switch",
	KindDimmer:         "dimmer",
	KindRGBLed:         "rgb",
	KindFan:            "fan",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind-%d", uint8(k))
}

// ParseKind converts a kind name as printed by String
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown device kind %q", ErrInvalidArgument, s)
}

// Capability is a group of operations a fixture supports
type Capability uint8

const (
	CapBase        Capability = 1 << iota // power, presets, state, config, binding
	CapTemporaryOn                        // timed on and temporary-on mode
	CapLevel                              // ramp and set level
	CapFineLevel                          // custom ramp speed and steps
	CapCorrection                         // dimmer output range
	CapColor                              // RGB programs and colour levels
)

var kindCaps = map[Kind]Capability{
	KindSwitch:         CapBase,
	KindExtendedSwitch: CapBase | CapTemporaryOn,
	KindDimmer:         CapBase | CapTemporaryOn | CapLevel | CapFineLevel | CapCorrection,
	KindFan:            CapBase | CapTemporaryOn | CapLevel | CapFineLevel | CapCorrection,
	KindRGBLed:         CapBase | CapLevel | CapColor,
}

// Capabilities returns the operations supported by the kind
func (k Kind) Capabilities() Capability {
	return kindCaps[k]
}

// Has reports whether all capabilities in c are present
func (k Kind) Has(c Capability) bool {
	return kindCaps[k]&c == c
}

// Device is a fixture bound to an address. Operations outside the fixture's
// capabilities fail with ErrUnsupported before any I/O.
type Device struct {
	Kind    Kind
	Address Address
	ctl     *Controller
}

// Device returns a fixture handle using this controller
func (c *Controller) Device(kind Kind, addr Address) *Device {
	return &Device{Kind: kind, Address: addr, ctl: c}
}

func (d *Device) require(c Capability, op string) error {
	if !d.Kind.Has(c) {
		return fmt.Errorf("%w: %s on %s", ErrUnsupported, op, d.Kind)
	}
	return nil
}

// On switches the device on
func (d *Device) On() ([]Result[BaseState], error) { return d.ctl.On(d.Address) }

// Off switches the device off
func (d *Device) Off() ([]Result[BaseState], error) { return d.ctl.Off(d.Address) }

// Switch toggles the device
func (d *Device) Switch() ([]Result[BaseState], error) { return d.ctl.Switch(d.Address) }

// LoadPreset recalls the stored scene
func (d *Device) LoadPreset() ([]Result[BaseState], error) { return d.ctl.LoadPreset(d.Address) }

// SavePreset stores the current state as the scene
func (d *Device) SavePreset() ([]Result[BaseState], error) { return d.ctl.SavePreset(d.Address) }

// ReadState requests the on/off state and brightness
func (d *Device) ReadState() ([]Result[BaseState], error) { return d.ctl.ReadState(d.Address) }

// ReadExtraState requests the extra input and nooLite support state
func (d *Device) ReadExtraState() ([]Result[ExtraState], error) {
	return d.ctl.ReadExtraState(d.Address)
}

// ReadChannelsState requests the number of bound channels
func (d *Device) ReadChannelsState() ([]Result[ChannelsState], error) {
	return d.ctl.ReadChannelsState(d.Address)
}

// Bind sends a bind request on the device address
func (d *Device) Bind() ([]Result[BaseState], error) { return d.ctl.Bind(d.Address) }

// Unbind removes the binding
func (d *Device) Unbind() ([]Result[BaseState], error) { return d.ctl.Unbind(d.Address) }

// SetServiceMode turns service (bind) mode on or off
func (d *Device) SetServiceMode(on bool) ([]Result[BaseState], error) {
	return d.ctl.SetServiceMode(d.Address, on)
}

// ReadConfig requests the device configuration
func (d *Device) ReadConfig() ([]Result[DeviceConfig], error) { return d.ctl.ReadConfig(d.Address) }

// WriteConfig updates the flags set in cfg
func (d *Device) WriteConfig(cfg DeviceConfig) ([]Result[DeviceConfig], error) {
	return d.ctl.WriteConfig(d.Address, cfg)
}

// TemporaryOn switches on for dur
func (d *Device) TemporaryOn(dur time.Duration) ([]Result[BaseState], error) {
	if err := d.require(CapTemporaryOn, "temporary on"); err != nil {
		return nil, err
	}
	return d.ctl.TemporaryOn(d.Address, dur)
}

// SetTemporaryOnMode enables or disables temporary-on handling
func (d *Device) SetTemporaryOnMode(enabled bool) ([]Result[BaseState], error) {
	if err := d.require(CapTemporaryOn, "temporary on mode"); err != nil {
		return nil, err
	}
	return d.ctl.SetTemporaryOnMode(d.Address, enabled)
}

// Tune starts a brightness (or fan speed) ramp
func (d *Device) Tune(dir TuneDirection) ([]Result[BaseState], error) {
	if err := d.require(CapLevel, "tune"); err != nil {
		return nil, err
	}
	return d.ctl.BrightnessTune(d.Address, dir)
}

// TuneBack reverses a running ramp
func (d *Device) TuneBack() ([]Result[BaseState], error) {
	if err := d.require(CapLevel, "tune back"); err != nil {
		return nil, err
	}
	return d.ctl.BrightnessTuneBack(d.Address)
}

// TuneStop stops a running ramp
func (d *Device) TuneStop() ([]Result[BaseState], error) {
	if err := d.require(CapLevel, "tune stop"); err != nil {
		return nil, err
	}
	return d.ctl.BrightnessTuneStop(d.Address)
}

// TuneCustom starts a ramp at the given speed
func (d *Device) TuneCustom(dir TuneDirection, speed float64) ([]Result[BaseState], error) {
	if err := d.require(CapFineLevel, "custom tune"); err != nil {
		return nil, err
	}
	return d.ctl.BrightnessTuneCustom(d.Address, dir, speed)
}

// TuneStep changes brightness by one step
func (d *Device) TuneStep(dir TuneDirection, step int) ([]Result[BaseState], error) {
	if err := d.require(CapFineLevel, "tune step"); err != nil {
		return nil, err
	}
	return d.ctl.BrightnessTuneStep(d.Address, dir, step)
}

// SetLevel sets brightness or fan speed on the vendor scale
func (d *Device) SetLevel(level float64) ([]Result[BaseState], error) {
	if err := d.require(CapLevel, "set level"); err != nil {
		return nil, err
	}
	return d.ctl.SetBrightness(d.Address, level)
}

// ReadDimmerCorrection requests the dimmer's level limits
func (d *Device) ReadDimmerCorrection() ([]Result[DimmerCorrection], error) {
	if err := d.require(CapCorrection, "read dimmer correction"); err != nil {
		return nil, err
	}
	return d.ctl.ReadDimmerCorrection(d.Address)
}

// WriteDimmerCorrection sets the dimmer's level limits
func (d *Device) WriteDimmerCorrection(c DimmerCorrection) ([]Result[DimmerCorrection], error) {
	if err := d.require(CapCorrection, "write dimmer correction"); err != nil {
		return nil, err
	}
	return d.ctl.WriteDimmerCorrection(d.Address, c)
}

// RollColor starts cycling through colours
func (d *Device) RollColor() ([]Result[BaseState], error) {
	if err := d.require(CapColor, "roll color"); err != nil {
		return nil, err
	}
	return d.ctl.RollColor(d.Address)
}

// SwitchColor jumps to the next colour
func (d *Device) SwitchColor() ([]Result[BaseState], error) {
	if err := d.require(CapColor, "switch color"); err != nil {
		return nil, err
	}
	return d.ctl.SwitchColor(d.Address)
}

// SwitchMode changes the animation mode
func (d *Device) SwitchMode() ([]Result[BaseState], error) {
	if err := d.require(CapColor, "switch mode"); err != nil {
		return nil, err
	}
	return d.ctl.SwitchMode(d.Address)
}

// SwitchSpeed changes the animation speed
func (d *Device) SwitchSpeed() ([]Result[BaseState], error) {
	if err := d.require(CapColor, "switch speed"); err != nil {
		return nil, err
	}
	return d.ctl.SwitchSpeed(d.Address)
}

// SetRGB sets each colour channel from 0..1
func (d *Device) SetRGB(red, green, blue float64) ([]Result[BaseState], error) {
	if err := d.require(CapColor, "set rgb"); err != nil {
		return nil, err
	}
	return d.ctl.SetRGBBrightness(d.Address, red, green, blue)
}

////// Sensors //////

// Sensor is a listener registration for a transmitter bound to a channel.
// Release removes it.
type Sensor struct {
	ctl     *Controller
	channel uint8
	id      ListenerID
}

// Release stops delivering events
func (s *Sensor) Release() {
	s.ctl.RemoveListener(s.channel, s.id)
}

// Channel returns the channel the sensor is bound to
func (s *Sensor) Channel() uint8 {
	return s.channel
}

// WatchTempHumi delivers temperature/humidity telemetry from channel
func (c *Controller) WatchTempHumi(channel uint8, fn func(TempHumi)) *Sensor {
	return c.watch(channel, On(fn))
}

// WatchMotion delivers motion detections (temporary-on) from channel
func (c *Controller) WatchMotion(channel uint8, fn func(TemporaryOn)) *Sensor {
	return c.watch(channel, On(fn))
}

// WatchBinary delivers on/off transitions of a door or leak sensor on channel
func (c *Controller) WatchBinary(channel uint8, fn func(on bool, ev Event)) *Sensor {
	return c.watch(channel, func(ev Event) {
		switch ev.(type) {
		case PowerOn:
			fn(true, ev)
		case PowerOff:
			fn(false, ev)
		}
	})
}

// WatchBattery delivers low-battery reports from channel
func (c *Controller) WatchBattery(channel uint8, fn func(BatteryLow)) *Sensor {
	return c.watch(channel, On(fn))
}

// WatchRemote delivers every event of a remote control on channel
func (c *Controller) WatchRemote(channel uint8, fn Handler) *Sensor {
	return c.watch(channel, fn)
}

func (c *Controller) watch(channel uint8, h Handler) *Sensor {
	return &Sensor{ctl: c, channel: channel, id: c.AddListener(channel, h)}
}
