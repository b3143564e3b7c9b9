package main

import (
	"net/netip"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybre/birthday-visualizer/internal/config"
	"github.com/cybre/birthday-visualizer/internal/yeelight"
)

func testDevices() []*portaudio.DeviceInfo {
	return []*portaudio.DeviceInfo{
		{Name: "Built-in Microphone", MaxInputChannels: 1, DefaultSampleRate: 48000, DefaultLowInputLatency: 5 * time.Millisecond},
		{Name: "Loopback", MaxInputChannels: 2, DefaultSampleRate: 44100, DefaultLowInputLatency: 10 * time.Millisecond},
	}
}

func TestSelectWithFlagsSkipsPrompt(t *testing.T) {
	devices := testDevices()
	dev, preset, err := selectDeviceAndPreset(devices, 0, config.PresetIntense, runtimeOptions{deviceIndex: 1, preset: config.PresetIntense})
	require.NoError(t, err)
	assert.Same(t, devices[1], dev)
	assert.Equal(t, config.PresetIntense, preset)
}

func TestSelectRejectsBadInput(t *testing.T) {
	_, _, err := selectDeviceAndPreset(nil, 0, "", runtimeOptions{deviceIndex: -1})
	assert.ErrorContains(t, err, "no input devices available")

	_, _, err = selectDeviceAndPreset(testDevices(), 0, "", runtimeOptions{deviceIndex: 7, preset: config.PresetSmooth})
	assert.ErrorContains(t, err, "invalid device index 7")
}

func TestBuildDeviceOptions(t *testing.T) {
	opts := buildDeviceOptions(testDevices())
	require.Len(t, opts, 2)
	assert.Equal(t, "[1] Loopback · 44100Hz · in:2 · latency:10.0ms", opts[1].Label)
}

func TestBuildPresetOptions(t *testing.T) {
	opts := buildPresetOptions(config.PresetNames())
	require.Len(t, opts, len(config.PresetNames()))
	assert.Contains(t, opts[1].Label, "intense")
	assert.Contains(t, opts[1].Label, "smoothing:0.60")
}

func TestEffectiveInitialDeviceIndex(t *testing.T) {
	assert.Equal(t, 0, effectiveInitialDeviceIndex(3, 1, 0))
	assert.Equal(t, 2, effectiveInitialDeviceIndex(2, 1, 3))
	assert.Equal(t, 1, effectiveInitialDeviceIndex(-1, 1, 3))
	assert.Equal(t, 0, effectiveInitialDeviceIndex(-1, 9, 3))
}

func TestInitialPresetIndex(t *testing.T) {
	names := config.PresetNames()
	assert.Equal(t, 2, initialPresetIndex(names, config.PresetSmooth))
	assert.Equal(t, 0, initialPresetIndex(names, "disco"))
	assert.Equal(t, 0, initialPresetIndex(nil, "disco"))
}

func TestDescribeBulb(t *testing.T) {
	d := yeelight.Device{
		Addr:    netip.MustParseAddrPort("192.168.1.40:55443"),
		ID:      "0x0000000002dfb19a",
		Model:   "color",
		Support: []string{"set_power", "set_music"},
	}
	assert.Equal(t, "Yeelight [0x0000000002dfb19a] · model:color · fw:n/a · 192.168.1.40:55443", describeBulb(d))

	d.Support = nil
	assert.Contains(t, describeBulb(d), "no music mode")
}

func TestApplyOverrides(t *testing.T) {
	cfg, err := applyOverrides(config.Default(), runtimeOptions{preset: config.PresetSmooth, seed: 42})
	require.NoError(t, err)
	assert.Equal(t, config.PresetSmooth, cfg.Preset)
	assert.Equal(t, 0.9, cfg.AnalyserSmoothing)
	assert.Equal(t, int64(42), cfg.Seed)

	_, err = applyOverrides(config.Default(), runtimeOptions{preset: "disco"})
	assert.True(t, eris.Is(err, config.ErrInvalidConfiguration))
}

func TestNewRandIsSeeded(t *testing.T) {
	cfg := config.Default()
	cfg.Seed = 7
	assert.Equal(t, newRand(cfg).Int63(), newRand(cfg).Int63())
}
