package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybre/birthday-visualizer/internal/dsp"
	"github.com/cybre/birthday-visualizer/internal/effects"
	"github.com/cybre/birthday-visualizer/internal/yeelight"
)

type recordingLamp struct {
	mu     sync.Mutex
	colors []Color
	sent   chan Color
	err    error
}

func newRecordingLamp() *recordingLamp {
	return &recordingLamp{sent: make(chan Color, 16)}
}

func (l *recordingLamp) SetHSV(h, s, v int, _ time.Duration) error {
	l.mu.Lock()
	err := l.err
	if err == nil {
		l.colors = append(l.colors, Color{h, s, v})
	}
	l.mu.Unlock()
	if err == nil {
		l.sent <- Color{h, s, v}
	}
	return err
}

func waitColor(t *testing.T, ch <-chan Color) Color {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(time.Second):
		t.Fatal("lamp was not updated")
		return Color{}
	}
}

func TestSilenceMapsToRestingColour(t *testing.T) {
	target := NewBulbTarget("bulb", newRecordingLamp(), 0, nil)
	require.NoError(t, target.Apply(effects.Signals{}))

	assert.Equal(t, Color{Hue: 40, Saturation: 38, Brightness: 28}, target.Color())
	assert.Equal(t, ModeEnergyPulse, target.Mode())
}

func TestBeatPulsesBrightness(t *testing.T) {
	target := NewBulbTarget("bulb", newRecordingLamp(), 0, nil)
	quiet := effects.Signals{Smoothed: dsp.BandEnergies{Bass: 0.3, Volume: 0.2}}
	for range 10 {
		require.NoError(t, target.Apply(quiet))
	}
	before := target.Color().Brightness

	beat := quiet
	beat.Beat = true
	beat.Raw = dsp.BandEnergies{Bass: 0.8}
	require.NoError(t, target.Apply(beat))
	assert.Greater(t, target.Color().Brightness, before)
}

func TestLoudTrebleSwitchesToSpectrumFlow(t *testing.T) {
	target := NewBulbTarget("bulb", newRecordingLamp(), 0, nil)
	loud := effects.Signals{Smoothed: dsp.BandEnergies{Bass: 0.1, Mid: 0.4, Treble: 0.9, Volume: 0.9}}

	loud.Elapsed = time.Second
	require.NoError(t, target.Apply(loud))
	assert.Equal(t, ModeEnergyPulse, target.Mode(), "mode is held after start")

	loud.Elapsed = 3 * time.Second
	require.NoError(t, target.Apply(loud))
	assert.Equal(t, ModeSpectrumFlow, target.Mode())

	quiet := effects.Signals{Smoothed: dsp.BandEnergies{Bass: 0.1, Volume: 0.1}, Elapsed: 4 * time.Second}
	require.NoError(t, target.Apply(quiet))
	assert.Equal(t, ModeSpectrumFlow, target.Mode(), "switch back waits for the hold")

	quiet.Elapsed = 6 * time.Second
	require.NoError(t, target.Apply(quiet))
	assert.Equal(t, ModeEnergyPulse, target.Mode())
}

func TestApplyNeverBlocks(t *testing.T) {
	target := NewBulbTarget("bulb", newRecordingLamp(), 0, nil)
	for i := range 100 {
		sig := effects.Signals{Smoothed: dsp.BandEnergies{Volume: float64(i) / 100}}
		require.NoError(t, target.Apply(sig))
	}
	assert.Len(t, target.updates, 1)
	assert.Equal(t, target.Color(), <-target.updates, "only the newest colour is queued")
}

func TestRunSendsChangedColours(t *testing.T) {
	lamp := newRecordingLamp()
	target := NewBulbTarget("bulb", lamp, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- target.Run(ctx) }()

	target.updates <- Color{Hue: 10, Saturation: 50, Brightness: 50}
	assert.Equal(t, Color{Hue: 10, Saturation: 50, Brightness: 50}, waitColor(t, lamp.sent))

	target.updates <- Color{Hue: 10, Saturation: 50, Brightness: 50}
	target.updates <- Color{Hue: 20, Saturation: 50, Brightness: 50}
	assert.Equal(t, Color{Hue: 20, Saturation: 50, Brightness: 50}, waitColor(t, lamp.sent))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	lamp.mu.Lock()
	defer lamp.mu.Unlock()
	assert.Len(t, lamp.colors, 2, "repeated colours are skipped")
}

func TestRunStopsWhenBulbCloses(t *testing.T) {
	lamp := newRecordingLamp()
	lamp.err = eris.Wrap(yeelight.ErrClosed, "write")
	target := NewBulbTarget("bulb", lamp, time.Millisecond, nil)

	target.updates <- Color{Hue: 1, Saturation: 1, Brightness: 1}
	err := target.Run(context.Background())
	assert.True(t, eris.Is(err, yeelight.ErrClosed))
}

func TestSmoothHueTakesShortestPath(t *testing.T) {
	assert.InDelta(t, 0.0, smoothHue(350, 10, 0.5), 1e-9)
	assert.InDelta(t, 350.0, smoothHue(10, 330, 0.5), 1e-9)
}
