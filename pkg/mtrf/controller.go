// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Transport carries requests to the transceiver. *Adapter implements it.
type Transport interface {
	Send(req *Request) ([]*Response, error)
	SetFrameHandler(h FrameHandler)
	Close() error
}

// Controller exposes the device operations of an MTRF-64 transceiver and
// routes unsolicited events to registered listeners.
//
// Every command returns one Result per responding device. A device that
// reported an error or did not answer yields Success=false; it is not an
// error return. Errors are reserved for addressing problems, invalid
// arguments and transport failures.
type Controller struct {
	transport Transport
	log       *zap.Logger
	listeners *listenerRegistry
}

// NewController wraps a transport and installs itself as its frame handler
func NewController(t Transport, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{
		transport: t,
		log:       log,
		listeners: newListenerRegistry(),
	}
	t.SetFrameHandler(c.handleFrame)
	return c
}

// Open opens a serial port and returns a Controller driving it
func Open(portName string, opts ...Option) (*Controller, error) {
	a, err := OpenSerial(portName, opts...)
	if err != nil {
		return nil, err
	}
	return NewController(a, a.log), nil
}

// Close releases the transport
func (c *Controller) Close() error {
	return c.transport.Close()
}

// Transport returns the underlying transport
func (c *Controller) Transport() Transport {
	return c.transport
}

////// Listeners //////

// AddListener registers h for events on channel
func (c *Controller) AddListener(channel uint8, h Handler) ListenerID {
	return c.listeners.add(channel, h)
}

// RemoveListener removes a listener; it reports whether it was registered
func (c *Controller) RemoveListener(channel uint8, id ListenerID) bool {
	return c.listeners.remove(channel, id)
}

// Subscribe registers h for events on every channel
func (c *Controller) Subscribe(h Handler) ListenerID {
	return c.listeners.subscribe(h)
}

// Unsubscribe removes a listener added with Subscribe
func (c *Controller) Unsubscribe(id ListenerID) bool {
	return c.listeners.unsubscribe(id)
}

func (c *Controller) handleFrame(resp *Response) {
	handlers := c.listeners.handlers(resp.Channel)
	if len(handlers) == 0 {
		return
	}
	ev, ok := DecodeEvent(resp)
	if !ok {
		c.log.Debug("no event for incoming command",
			zap.Stringer("command", resp.Command),
			zap.Uint8("channel", resp.Channel),
		)
		return
	}
	for _, h := range handlers {
		c.deliver(h, ev)
	}
}

// deliver isolates listeners from each other's panics
func (c *Controller) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("listener panicked",
				zap.Any("panic", r),
				zap.String("event", fmt.Sprintf("%T", ev)),
				zap.Uint8("channel", ev.Source().Channel),
			)
		}
	}()
	h(ev)
}

////// Commands //////

func (c *Controller) send(addr Address, cmd Command, format uint8, data []byte) ([]*Response, error) {
	req, err := addr.request(cmd, format, data)
	if err != nil {
		return nil, err
	}
	return c.transport.Send(req)
}

// command sends cmd and decodes the burst with decode
func command[T any](c *Controller, addr Address, cmd Command, format uint8, data []byte, decode func(*Response) *T) ([]Result[T], error) {
	responses, err := c.send(addr, cmd, format, data)
	return results(responses, decode), err
}

func (c *Controller) control(addr Address, cmd Command, format uint8, data []byte) ([]Result[BaseState], error) {
	return command(c, addr, cmd, format, data, decodeBaseState)
}

// On switches the load on
func (c *Controller) On(addr Address) ([]Result[BaseState], error) {
	return c.control(addr, CmdOn, FormatNone, nil)
}

// Off switches the load off
func (c *Controller) Off(addr Address) ([]Result[BaseState], error) {
	return c.control(addr, CmdOff, FormatNone, nil)
}

// Switch toggles the load
func (c *Controller) Switch(addr Address) ([]Result[BaseState], error) {
	return c.control(addr, CmdSwitch, FormatNone, nil)
}

// TemporaryOn switches the load on for d, rounded to 5 s units
func (c *Controller) TemporaryOn(addr Address, d time.Duration) ([]Result[BaseState], error) {
	data, err := encodeTemporaryOn(d)
	if err != nil {
		return nil, err
	}
	return c.control(addr, CmdTemporaryOn, FormatTempOnLong, data)
}

// SetTemporaryOnMode enables or disables reaction to temporary-on commands
func (c *Controller) SetTemporaryOnMode(addr Address, enabled bool) ([]Result[BaseState], error) {
	data := []byte{1}
	if enabled {
		data[0] = 0
	}
	return c.control(addr, CmdModes, FormatOneByte, data)
}

// LoadPreset recalls the stored scene
func (c *Controller) LoadPreset(addr Address) ([]Result[BaseState], error) {
	return c.control(addr, CmdLoadPreset, FormatNone, nil)
}

// SavePreset stores the current state as the scene
func (c *Controller) SavePreset(addr Address) ([]Result[BaseState], error) {
	return c.control(addr, CmdSavePreset, FormatNone, nil)
}

// BrightnessTune starts ramping brightness in dir
func (c *Controller) BrightnessTune(addr Address, dir TuneDirection) ([]Result[BaseState], error) {
	cmd := CmdBrightUp
	if dir == TuneDown {
		cmd = CmdBrightDown
	}
	return c.control(addr, cmd, FormatNone, nil)
}

// BrightnessTuneBack starts ramping opposite to the last ramp
func (c *Controller) BrightnessTuneBack(addr Address) ([]Result[BaseState], error) {
	return c.control(addr, CmdBrightBack, FormatNone, nil)
}

// BrightnessTuneStop stops ramping
func (c *Controller) BrightnessTuneStop(addr Address) ([]Result[BaseState], error) {
	return c.control(addr, CmdStopBright, FormatNone, nil)
}

// BrightnessTuneCustom ramps in dir at speed 0..1
func (c *Controller) BrightnessTuneCustom(addr Address, dir TuneDirection, speed float64) ([]Result[BaseState], error) {
	return c.control(addr, CmdBrightReg, FormatOneByte, []byte{encodeTuneSpeed(dir, speed)})
}

// BrightnessTuneStep changes brightness by one step. step 0 uses the device
// default, otherwise 1..256.
func (c *Controller) BrightnessTuneStep(addr Address, dir TuneDirection, step int) ([]Result[BaseState], error) {
	format, data, err := encodeStep(step)
	if err != nil {
		return nil, err
	}
	cmd := CmdBrightStepUp
	if dir == TuneDown {
		cmd = CmdBrightStepDown
	}
	return c.control(addr, cmd, format, data)
}

// SetBrightness sets a 0..1 level on the vendor dimmer scale
func (c *Controller) SetBrightness(addr Address, level float64) ([]Result[BaseState], error) {
	return c.SetBrightnessScaled(addr, level, ScaleVendor)
}

// SetBrightnessScaled sets a 0..1 level encoded with scale
func (c *Controller) SetBrightnessScaled(addr Address, level float64, scale BrightnessScale) ([]Result[BaseState], error) {
	return c.control(addr, CmdSetBrightness, FormatOneByte, []byte{scale.Encode(level)})
}

// SetRGBBrightness sets each colour channel to a 0..1 level
func (c *Controller) SetRGBBrightness(addr Address, red, green, blue float64) ([]Result[BaseState], error) {
	data := []byte{LinearLevel(red), LinearLevel(green), LinearLevel(blue)}
	return c.control(addr, CmdSetBrightness, FormatRGB, data)
}

// RollColor starts cycling through colours
func (c *Controller) RollColor(addr Address) ([]Result[BaseState], error) {
	return c.control(addr, CmdRollColor, FormatNone, nil)
}

// SwitchColor jumps to the next colour
func (c *Controller) SwitchColor(addr Address) ([]Result[BaseState], error) {
	return c.control(addr, CmdSwitchColor, FormatNone, nil)
}

// SwitchMode selects the next colour program
func (c *Controller) SwitchMode(addr Address) ([]Result[BaseState], error) {
	return c.control(addr, CmdSwitchMode, FormatNone, nil)
}

// SwitchSpeed selects the next colour program speed
func (c *Controller) SwitchSpeed(addr Address) ([]Result[BaseState], error) {
	return c.control(addr, CmdSpeedMode, FormatNone, nil)
}

// Bind pairs the device in bind mode with the addressed channel
func (c *Controller) Bind(addr Address) ([]Result[BaseState], error) {
	return c.control(addr, CmdBind, FormatNone, nil)
}

// Unbind removes the device binding
func (c *Controller) Unbind(addr Address) ([]Result[BaseState], error) {
	return c.control(addr, CmdUnbind, FormatNone, nil)
}

// SetServiceMode switches the device service (bind) mode
func (c *Controller) SetServiceMode(addr Address, on bool) ([]Result[BaseState], error) {
	var data []byte
	if on {
		data = []byte{1}
	}
	return c.control(addr, CmdService, FormatNone, data)
}

////// State //////

// ReadState reads output state and brightness
func (c *Controller) ReadState(addr Address) ([]Result[BaseState], error) {
	return command(c, addr, CmdReadState, FormatState, nil, decodeBaseState)
}

// ReadExtraState reads extra-input and nooLite-support state
func (c *Controller) ReadExtraState(addr Address) ([]Result[ExtraState], error) {
	return command(c, addr, CmdReadState, FormatExtraState, nil, decodeExtraState)
}

// ReadChannelsState reads the bound channel slot counts
func (c *Controller) ReadChannelsState(addr Address) ([]Result[ChannelsState], error) {
	return command(c, addr, CmdReadState, FormatChannels, nil, decodeChannelsState)
}

// ReadConfig reads the device configuration
func (c *Controller) ReadConfig(addr Address) ([]Result[DeviceConfig], error) {
	return command(c, addr, CmdReadState, FormatConfig, nil, decodeConfig)
}

// WriteConfig updates the non-nil fields of cfg; other settings keep their values
func (c *Controller) WriteConfig(addr Address, cfg DeviceConfig) ([]Result[DeviceConfig], error) {
	data := cfg.encode()
	if data[2] == 0 {
		return nil, fmt.Errorf("%w: empty configuration", ErrInvalidArgument)
	}
	return command(c, addr, CmdWriteState, FormatConfig, data, decodeConfig)
}

// ReadDimmerCorrection reads the dimmer output range
func (c *Controller) ReadDimmerCorrection(addr Address) ([]Result[DimmerCorrection], error) {
	return command(c, addr, CmdReadState, FormatDimmerCorrection, nil, decodeDimmerCorrection)
}

// WriteDimmerCorrection sets the dimmer output range
func (c *Controller) WriteDimmerCorrection(addr Address, corr DimmerCorrection) ([]Result[DimmerCorrection], error) {
	if corr.Min > corr.Max {
		return nil, fmt.Errorf("%w: correction min %.2f above max %.2f", ErrInvalidArgument, corr.Min, corr.Max)
	}
	return command(c, addr, CmdWriteState, FormatDimmerCorrection, corr.encode(), decodeDimmerCorrection)
}

////// Transceiver memory //////

// ClearChannel erases the transceiver bindings of the addressed channel
func (c *Controller) ClearChannel(channel uint8, kind ModuleKind) ([]Result[BaseState], error) {
	req := &Request{
		Mode:    kind.txMode(),
		Action:  ActionClearChannel,
		Channel: channel,
	}
	responses, err := c.transport.Send(req)
	return results(responses, decodeBaseState), err
}

// ClearMemory erases every transceiver binding for the module kind
func (c *Controller) ClearMemory(kind ModuleKind) ([]Result[BaseState], error) {
	req := &Request{
		Mode:   kind.txMode(),
		Action: ActionClearMemory,
		Data:   clearMemoryKey,
	}
	responses, err := c.transport.Send(req)
	return results(responses, decodeBaseState), err
}
