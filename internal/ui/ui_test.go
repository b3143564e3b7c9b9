package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybre/birthday-visualizer/internal/dsp"
	"github.com/cybre/birthday-visualizer/internal/engine"
)

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestSpectrumLevels(t *testing.T) {
	spectrum := make([]uint8, 8)
	spectrum[0], spectrum[1] = 255, 255
	spectrum[2], spectrum[3] = 31, 31

	levels := spectrumLevels(spectrum, 4)
	assert.Equal(t, []int{8, 1, 0, 0}, levels)

	assert.Equal(t, []int{0, 0}, spectrumLevels(nil, 2))
	assert.Len(t, spectrumLevels(spectrum, 16), 16, "more columns than bins repeats bins")
}

func TestRenderBar(t *testing.T) {
	bar := renderBar("Bass", 0.5, 25, 45, 0.9)
	assert.Contains(t, bar, "Bass")
	assert.Contains(t, bar, " 50%")
	assert.Equal(t, 16, strings.Count(bar, "░"))

	assert.Contains(t, renderBar("Mid", 2, 55, 75, 0.9), "100%")
}

func TestFrameFromSnapshotCopiesSpectrum(t *testing.T) {
	snap := engine.Snapshot{
		Beat:      true,
		Threshold: 0.4,
		Smoothed:  dsp.BandEnergies{Bass: 0.5},
		Spectrum:  dsp.Frame{1, 2, 3},
		Tasks:     2,
	}
	frame := FrameFromSnapshot(snap)
	snap.Spectrum[0] = 99

	assert.True(t, frame.Beat)
	assert.Equal(t, 0.4, frame.Threshold)
	assert.Equal(t, 2, frame.Tasks)
	assert.Equal(t, []uint8{1, 2, 3}, frame.Spectrum)
}

func TestVisualizerKeysInvokeControls(t *testing.T) {
	var calls []string
	m := &visualizerModel{controls: Controls{
		OnExit:     func() { calls = append(calls, "exit") },
		OnNext:     func() { calls = append(calls, "next") },
		OnPrevious: func() { calls = append(calls, "previous") },
		OnShuffle:  func() { calls = append(calls, "shuffle") },
		OnPreset:   func(name string) { calls = append(calls, "preset:"+name) },
		Presets:    []string{"default", "intense"},
	}}

	for _, k := range []string{"n", "p", "s", "2", "4"} {
		_, cmd := m.Update(runeKey(k))
		assert.Nil(t, cmd)
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	assert.Equal(t, []string{"next", "previous", "shuffle", "preset:intense", "exit"}, calls)
}

func TestVisualizerView(t *testing.T) {
	m := &visualizerModel{}
	assert.Contains(t, m.View(), "Waiting for the music")

	start := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	m.Update(frameMsg{frame: Frame{Time: start, Track: "Happy Birthday", Beat: true}, receivedAt: start})
	m.Update(frameMsg{frame: Frame{
		Time:     start.Add(time.Second),
		Track:    "Happy Birthday",
		Preset:   "intense",
		Smoothed: dsp.BandEnergies{Bass: 0.7, Volume: 0.3},
		Spectrum: []uint8{200, 100, 0, 0},
	}, receivedAt: start.Add(time.Second)})

	view := m.View()
	for _, want := range []string{"Happy Birthday", "intense", "Spectrum", "Bass", "Volume", "Beat Level"} {
		assert.Contains(t, view, want)
	}
	assert.Equal(t, start, m.first)
}

func TestTitleHueDrifts(t *testing.T) {
	assert.InDelta(t, 36.0, titleHue(Frame{}, 1), 1e-9)
	assert.InDelta(t, 0.0, titleHue(Frame{Smoothed: dsp.BandEnergies{Treble: 0.5}}, 5), 1e-9)
}

func TestSetupWalksThroughSteps(t *testing.T) {
	devices := []Option{{Label: "Built-in"}, {Label: "USB Mic"}}
	presets := []Option{{Label: "default"}, {Label: "intense"}, {Label: "smooth"}}
	m := newSetupModel(devices, presets, SetupConfig{RequireDevice: true, RequirePreset: true})
	assert.Equal(t, stepSelectDevice, m.step)

	step := func(msg tea.KeyMsg) {
		next, _ := m.Update(msg)
		m = next.(setupModel)
	}

	step(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, m.cursor, "cursor wraps upwards")
	step(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, stepSelectPreset, m.step)
	assert.Contains(t, m.View(), "USB Mic")

	step(tea.KeyMsg{Type: tea.KeyDown})
	step(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, stepConfirm, m.step)

	step(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, stepSelectPreset, m.step)
	assert.Equal(t, 1, m.cursor, "back restores the previous choice")

	step(tea.KeyMsg{Type: tea.KeyEnter})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	assert.Equal(t, SetupResult{DeviceIndex: 1, PresetIndex: 1}, m.result())
	assert.NoError(t, m.err)
}

func TestSetupSkipsUnrequiredSteps(t *testing.T) {
	m := newSetupModel(nil, []Option{{Label: "default"}}, SetupConfig{RequireDevice: true, RequirePreset: true})
	assert.Equal(t, stepSelectPreset, m.step, "no devices to choose from")

	next, _ := m.Update(runeKey("q"))
	assert.ErrorIs(t, next.(setupModel).err, ErrSelectionAborted)
}

func TestRunSetupWithoutPrompts(t *testing.T) {
	res, err := RunSetup([]Option{{Label: "a"}}, []Option{{Label: "x"}, {Label: "y"}}, SetupConfig{InitialDevice: 5, InitialPreset: 1})
	require.NoError(t, err)
	assert.Equal(t, SetupResult{DeviceIndex: 0, PresetIndex: 1}, res)
}
