package main

import (
	"fmt"
	"slices"

	"github.com/gordonklaus/portaudio"
	"github.com/rotisserie/eris"

	"github.com/cybre/birthday-visualizer/internal/config"
	"github.com/cybre/birthday-visualizer/internal/ui"
	"github.com/cybre/birthday-visualizer/internal/yeelight"
)

// selectDeviceAndPreset resolves the input device and preset from flags, prompting for
// whatever is still open when a terminal is attached.
func selectDeviceAndPreset(
	devices []*portaudio.DeviceInfo,
	defaultDeviceIndex int,
	currentPreset string,
	opts runtimeOptions,
) (*portaudio.DeviceInfo, string, error) {
	if len(devices) == 0 {
		return nil, "", eris.New("no input devices available")
	}

	presets := config.PresetNames()

	var (
		selectedDevice *portaudio.DeviceInfo
		deviceIndex    = -1
	)
	if opts.deviceIndex >= 0 {
		if opts.deviceIndex >= len(devices) {
			return nil, "", eris.Errorf("invalid device index %d", opts.deviceIndex)
		}
		selectedDevice = devices[opts.deviceIndex]
		deviceIndex = opts.deviceIndex
	}

	needDevice := selectedDevice == nil
	needPreset := opts.preset == ""

	if !needDevice && !needPreset {
		return selectedDevice, currentPreset, nil
	}

	initialDevice := effectiveInitialDeviceIndex(deviceIndex, defaultDeviceIndex, len(devices))
	initialPreset := initialPresetIndex(presets, currentPreset)

	result, err := ui.RunSetup(
		buildDeviceOptions(devices),
		buildPresetOptions(presets),
		ui.SetupConfig{
			RequireDevice: needDevice,
			RequirePreset: needPreset,
			InitialDevice: initialDevice,
			InitialPreset: initialPreset,
		},
	)
	if err != nil {
		if !eris.Is(err, ui.ErrNoInteractiveTTY) {
			return nil, "", err
		}
		result = ui.SetupResult{DeviceIndex: initialDevice, PresetIndex: initialPreset}
	}

	if needDevice {
		selectedDevice = devices[result.DeviceIndex]
	}
	preset := currentPreset
	if needPreset && result.PresetIndex >= 0 && result.PresetIndex < len(presets) {
		preset = presets[result.PresetIndex]
	}

	return selectedDevice, preset, nil
}

func describeBulb(d yeelight.Device) string {
	name := d.Name
	if name == "" {
		name = "Yeelight"
	}
	id := d.ID
	if id == "" {
		id = "n/a"
	}
	model := d.Model
	if model == "" {
		model = "n/a"
	}
	fw := d.Firmware
	if fw == "" {
		fw = "n/a"
	}

	music := ""
	if !d.Supports("set_music") {
		music = " · no music mode"
	}

	return fmt.Sprintf("%s [%s] · model:%s · fw:%s · %s%s",
		name,
		id,
		model,
		fw,
		d.Addr,
		music,
	)
}

func buildDeviceOptions(devices []*portaudio.DeviceInfo) []ui.Option {
	options := make([]ui.Option, len(devices))
	for i, dev := range devices {
		options[i] = ui.Option{
			Label: fmt.Sprintf(
				"[%d] %s · %.0fHz · in:%d · latency:%.1fms",
				i,
				dev.Name,
				dev.DefaultSampleRate,
				dev.MaxInputChannels,
				dev.DefaultLowInputLatency.Seconds()*1000,
			),
		}
	}
	return options
}

func buildPresetOptions(names []string) []ui.Option {
	options := make([]ui.Option, 0, len(names))
	for _, name := range names {
		p, _ := config.LookupPreset(name)
		options = append(options, ui.Option{
			Label: fmt.Sprintf("%-8s · smoothing:%.2f · beat offset:%.2f", name, p.AnalyserSmoothing, p.ThresholdOffset),
		})
	}
	return options
}

func effectiveInitialDeviceIndex(requested, fallback, length int) int {
	if length == 0 {
		return 0
	}
	if requested >= 0 && requested < length {
		return requested
	}
	if fallback >= 0 && fallback < length {
		return fallback
	}
	return 0
}

func initialPresetIndex(names []string, current string) int {
	if idx := slices.Index(names, current); idx >= 0 {
		return idx
	}
	return max(slices.Index(names, config.PresetDefault), 0)
}
