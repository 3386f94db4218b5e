// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_Capabilities(t *testing.T) {
	tests := []struct {
		kind   Kind
		has    []Capability
		hasNot []Capability
	}{
		{KindSwitch, []Capability{CapBase}, []Capability{CapTemporaryOn, CapLevel, CapColor}},
		{KindExtendedSwitch, []Capability{CapBase, CapTemporaryOn}, []Capability{CapLevel, CapColor}},
		{KindDimmer, []Capability{CapLevel, CapFineLevel, CapCorrection}, []Capability{CapColor}},
		{KindFan, []Capability{CapLevel, CapFineLevel, CapCorrection, CapTemporaryOn}, []Capability{CapColor}},
		{KindRGBLed, []Capability{CapLevel, CapColor}, []Capability{CapTemporaryOn, CapFineLevel, CapCorrection}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			for _, c := range tt.has {
				assert.True(t, tt.kind.Has(c), "expected capability %d", c)
			}
			for _, c := range tt.hasNot {
				assert.False(t, tt.kind.Has(c), "unexpected capability %d", c)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for k, name := range kindNames {
		got, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	got, err := ParseKind("Dimmer")
	require.NoError(t, err)
	assert.Equal(t, KindDimmer, got)

	_, err = ParseKind("toaster")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDevice_UnsupportedBeforeIO(t *testing.T) {
	ctl, ft := newFakeController(t)
	sw := ctl.Device(KindSwitch, ChannelAddress(2))

	_, err := sw.SetLevel(0.5)
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = sw.TemporaryOn(time.Minute)
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = sw.SetRGB(1, 1, 1)
	assert.ErrorIs(t, err, ErrUnsupported)

	rgb := ctl.Device(KindRGBLed, ChannelAddress(2))
	_, err = rgb.TuneStep(TuneUp, 0)
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = rgb.ReadDimmerCorrection()
	assert.ErrorIs(t, err, ErrUnsupported)

	assert.Equal(t, 0, ft.count())
}

func TestDevice_DelegatesWithAddress(t *testing.T) {
	ctl, ft := newFakeController(t)
	dimmer := ctl.Device(KindDimmer, DeviceAddress(0x77).InChannel(9))

	_, err := dimmer.SetLevel(0.5)
	require.NoError(t, err)
	req := ft.last(t)
	assert.Equal(t, CmdSetBrightness, req.Command)
	assert.Equal(t, []byte{95}, req.Data)
	assert.Equal(t, uint32(0x77), req.ID)
	assert.Equal(t, uint8(9), req.Channel)

	_, err = dimmer.TuneCustom(TuneUp, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7F}, ft.last(t).Data)

	fan := ctl.Device(KindFan, ChannelAddress(4))
	_, err = fan.TemporaryOn(10 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, CmdTemporaryOn, ft.last(t).Command)

	rgb := ctl.Device(KindRGBLed, ChannelAddress(4).AsBroadcast())
	_, err = rgb.SetRGB(0, 1, 0)
	require.NoError(t, err)
	req = ft.last(t)
	assert.Equal(t, uint8(FormatRGB), req.Format)
	assert.Equal(t, ActionSendBroadcastCommand, req.Action)

	sw := ctl.Device(KindSwitch, ChannelAddress(1).WithKind(NooLite))
	_, err = sw.On()
	require.NoError(t, err)
	assert.Equal(t, ModeTX, ft.last(t).Mode)
}

// ============================================================
// Sensors
// ============================================================

func TestSensors_WatchAndRelease(t *testing.T) {
	ctl, ft := newFakeController(t)

	var temps []float64
	var motion []time.Duration
	var binary []bool
	var battery int

	th := ctl.WatchTempHumi(1, func(ev TempHumi) { temps = append(temps, ev.Temperature) })
	ctl.WatchMotion(2, func(ev TemporaryOn) { motion = append(motion, ev.Duration) })
	ctl.WatchBinary(3, func(on bool, _ Event) { binary = append(binary, on) })
	ctl.WatchBattery(3, func(BatteryLow) { battery++ })

	ft.deliver(event(1, CmdSensTempHumi, FormatTempHumi, [4]byte{0xC8, 0x00, 0, 0}))
	ft.deliver(event(2, CmdTemporaryOn, FormatTempOnShort, [4]byte{6}))
	ft.deliver(event(3, CmdOn, 0, [4]byte{}))
	ft.deliver(event(3, CmdOff, 0, [4]byte{}))
	ft.deliver(event(3, CmdBatteryLow, 0, [4]byte{}))

	assert.Equal(t, []float64{20}, temps)
	assert.Equal(t, []time.Duration{30 * time.Second}, motion)
	assert.Equal(t, []bool{true, false}, binary)
	assert.Equal(t, 1, battery)

	th.Release()
	ft.deliver(event(1, CmdSensTempHumi, FormatTempHumi, [4]byte{0xC8, 0x00, 0, 0}))
	assert.Len(t, temps, 1)
	assert.Equal(t, uint8(1), th.Channel())
}
