// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Level Scale Tests
// ============================================================

func TestLinearLevel(t *testing.T) {
	tests := []struct {
		level    float64
		expected byte
	}{
		{0, 0},
		{1, 255},
		{0.5, 128},
		{0.25, 64},
		{-0.3, 0},
		{1.7, 255},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := LinearLevel(tt.level); got != tt.expected {
			t.Errorf("LinearLevel(%v) = %d, want %d", tt.level, got, tt.expected)
		}
	}
}

func TestVendorBrightness(t *testing.T) {
	tests := []struct {
		level    float64
		expected byte
	}{
		{0, 0},
		{1, 255},
		{0.5, 95},
		{0.01, 36},
		{0.99, 154},
		{-1, 0},
		{2, 255},
	}
	for _, tt := range tests {
		if got := VendorBrightness(tt.level); got != tt.expected {
			t.Errorf("VendorBrightness(%v) = %d, want %d", tt.level, got, tt.expected)
		}
	}
}

func TestVendorBrightnessCapped(t *testing.T) {
	assert.Equal(t, byte(155), VendorBrightnessCapped(1))
	assert.Equal(t, byte(155), VendorBrightnessCapped(3))
	assert.Equal(t, byte(95), VendorBrightnessCapped(0.5))
	assert.Equal(t, byte(0), VendorBrightnessCapped(0))
}

func TestBrightnessScale_Encode(t *testing.T) {
	assert.Equal(t, byte(255), ScaleLinear.Encode(1))
	assert.Equal(t, byte(255), ScaleVendor.Encode(1))
	assert.Equal(t, byte(155), ScaleVendorCapped.Encode(1))
	assert.Equal(t, byte(0), ScaleVendor.Encode(0))
	assert.Equal(t, byte(95), ScaleVendor.Encode(0.5))
	assert.Equal(t, byte(128), ScaleLinear.Encode(0.5))
}

// ============================================================
// Tuning Tests
// ============================================================

func TestEncodeTuneSpeed(t *testing.T) {
	tests := []struct {
		name     string
		dir      TuneDirection
		speed    float64
		expected byte
	}{
		{"up stopped", TuneUp, 0, 0x00},
		{"up full", TuneUp, 1, 0x7F},
		{"up half", TuneUp, 0.5, 64},
		{"down stopped", TuneDown, 0, 0xFF},
		{"down full", TuneDown, 1, 0x80},
		{"down half", TuneDown, 0.5, 0xBF},
		{"up clamped", TuneUp, 5, 0x7F},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := encodeTuneSpeed(tt.dir, tt.speed); got != tt.expected {
				t.Errorf("encodeTuneSpeed(%s, %v) = 0x%02X, want 0x%02X", tt.dir, tt.speed, got, tt.expected)
			}
		})
	}
}

func TestDecodeTuneSpeed_Inverse(t *testing.T) {
	for _, dir := range []TuneDirection{TuneUp, TuneDown} {
		for v := 0; v <= 127; v++ {
			speed := float64(v) / 127
			gotDir, gotSpeed := decodeTuneSpeed(encodeTuneSpeed(dir, speed))
			require.Equal(t, dir, gotDir)
			require.InDelta(t, speed, gotSpeed, 1e-9)
		}
	}
}

func TestEncodeStep(t *testing.T) {
	format, data, err := encodeStep(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(FormatNone), format)
	assert.Nil(t, data)

	format, data, err = encodeStep(10)
	require.NoError(t, err)
	assert.Equal(t, uint8(FormatOneByte), format)
	assert.Equal(t, []byte{10}, data)

	_, data, err = encodeStep(256)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, data, "256 is encoded as 0")

	for _, bad := range []int{-1, 257, 1000} {
		_, _, err := encodeStep(bad)
		assert.ErrorIs(t, err, ErrInvalidArgument, "step %d", bad)
	}
}

func TestDecodeStep(t *testing.T) {
	assert.Equal(t, 0, decodeStep(FormatNone, [4]byte{}))
	assert.Equal(t, 7, decodeStep(FormatOneByte, [4]byte{7}))
	assert.Equal(t, 256, decodeStep(FormatOneByte, [4]byte{0}))
}

// ============================================================
// Temporary On Tests
// ============================================================

func TestEncodeTemporaryOn(t *testing.T) {
	tests := []struct {
		name     string
		d        time.Duration
		expected []byte
	}{
		{"zero", 0, []byte{0, 0}},
		{"one unit", 5 * time.Second, []byte{1, 0}},
		{"rounds to nearest unit", 7 * time.Second, []byte{1, 0}},
		{"one minute", time.Minute, []byte{12, 0}},
		{"high byte", 2 * time.Hour, []byte{0xA0, 0x05}},
		{"maximum", MaxTemporaryOn, []byte{0xFF, 0xFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := encodeTemporaryOn(tt.d)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, data)
		})
	}

	_, err := encodeTemporaryOn(-time.Second)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = encodeTemporaryOn(MaxTemporaryOn + TemporaryOnUnit)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDecodeTemporaryOn(t *testing.T) {
	assert.Equal(t, 2*time.Hour, decodeTemporaryOn(FormatTempOnLong, [4]byte{0xA0, 0x05}))
	assert.Equal(t, 50*time.Second, decodeTemporaryOn(FormatTempOnShort, [4]byte{10, 0xFF}),
		"short format ignores the high byte")
}

// ============================================================
// Configuration Tests
// ============================================================

func TestDeviceConfig_EncodePartial(t *testing.T) {
	data := DeviceConfig{DimmerMode: ptr(true)}.encode()
	assert.Equal(t, []byte{0x02, 0x00, 0x02, 0x00}, data)
}

func TestDeviceConfig_EncodeFalseStillMasked(t *testing.T) {
	data := DeviceConfig{SaveState: ptr(false), InitState: ptr(true)}.encode()
	assert.Equal(t, []byte{0x20, 0x00, 0x21, 0x00}, data)
}

func TestDeviceConfig_EncodeAll(t *testing.T) {
	cfg := DeviceConfig{
		SaveState:         ptr(true),
		DimmerMode:        ptr(true),
		NooLiteSupport:    ptr(true),
		ExtraInput:        ptr(ExtraInputButton),
		InitState:         ptr(true),
		NooLiteRetransmit: ptr(true),
	}
	assert.Equal(t, []byte{0x77, 0x00, 0x7F, 0x00}, cfg.encode())
}

func TestDeviceConfig_DecodeMatchesEncode(t *testing.T) {
	for b := 0; b < 0x80; b++ {
		cfg := decodeDeviceConfig(byte(b))
		data := cfg.encode()
		require.Equal(t, byte(b), data[0], "config byte 0x%02X", b)
		require.Equal(t, byte(0x7F), data[2])
	}
}

func TestDimmerCorrection_Encode(t *testing.T) {
	data := DimmerCorrection{Min: 0.2, Max: 1}.encode()
	assert.Equal(t, []byte{51, 255, 0xFF, 0xFF}, data)
}
