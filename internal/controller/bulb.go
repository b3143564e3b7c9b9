package controller

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cybre/birthday-visualizer/internal/dsp"
	"github.com/cybre/birthday-visualizer/internal/effects"
	"github.com/cybre/birthday-visualizer/internal/utils"
	"github.com/cybre/birthday-visualizer/internal/yeelight"
)

// DefaultMinSpacing keeps a bulb in music mode well under its command throughput.
const DefaultMinSpacing = 25 * time.Millisecond

// Lamp is anything that can show an HSV colour.
type Lamp interface {
	SetHSV(hue, saturation, brightness int, fade time.Duration) error
}

// Color is a bulb colour: hue in degrees, saturation and brightness in percent.
type Color struct {
	Hue        int
	Saturation int
	Brightness int
}

// BulbTarget is an effect target that mirrors the music on a smart bulb. Apply runs on the
// engine's tick and never blocks; Run delivers the latest colour to the lamp at most once
// per MinSpacing.
type BulbTarget struct {
	name       string
	lamp       Lamp
	logger     *slog.Logger
	minSpacing time.Duration
	updates    chan Color

	initialized bool
	hue         float64
	saturation  float64
	brightness  float64
	beatPulse   float64
	current     Color

	mood           moodTracker
	satSmoother    *dsp.Smoother
	brightSmoother *dsp.Smoother
	sparkle        *dsp.Smoother
}

// NewBulbTarget wraps lamp as a target called name. minSpacing <= 0 uses DefaultMinSpacing.
func NewBulbTarget(name string, lamp Lamp, minSpacing time.Duration, logger *slog.Logger) *BulbTarget {
	if minSpacing <= 0 {
		minSpacing = DefaultMinSpacing
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BulbTarget{
		name:           name,
		lamp:           lamp,
		logger:         logger,
		minSpacing:     minSpacing,
		updates:        make(chan Color, 1),
		satSmoother:    dsp.NewSmoother(0.16),
		brightSmoother: dsp.NewSmoother(0.22),
		sparkle:        dsp.NewSmoother(0.14),
	}
}

func (t *BulbTarget) Name() string { return t.name }

// Mode returns the colour strategy currently in use.
func (t *BulbTarget) Mode() Mode { return t.mood.mode }

// Color returns the colour computed on the last Apply.
func (t *BulbTarget) Color() Color { return t.current }

// Apply maps the frame to a colour and queues it, replacing any colour not yet sent.
func (t *BulbTarget) Apply(sig effects.Signals) error {
	t.current = t.next(sig)

	select {
	case <-t.updates:
	default:
	}
	select {
	case t.updates <- t.current:
	default:
	}
	return nil
}

func (t *BulbTarget) next(sig effects.Signals) Color {
	e := sig.Smoothed
	if sig.Beat {
		t.beatPulse = utils.Clamp(sig.Raw.Bass*1.2, 0.0, 1.0)
	} else {
		t.beatPulse *= 0.88
	}
	sparkle := t.sparkle.Step(e.Treble)
	tone := tonalBrightness(e)

	var hue, sat, bright float64
	switch t.mood.update(sig.Elapsed, e.Volume, tone) {
	case ModeSpectrumFlow:
		hue = spectrumFlowHue(e, tone)
		sat = spectrumFlowSaturation(e)
		bright = spectrumFlowBrightness(e, t.beatPulse, sparkle)
	default:
		hue = energyPulseHue(e, tone, t.beatPulse)
		sat = energyPulseSaturation(e, t.beatPulse, sparkle)
		bright = energyPulseBrightness(e.Volume, t.beatPulse, sparkle)
	}

	if !t.initialized {
		t.hue, t.saturation, t.brightness = hue, sat, bright
		t.satSmoother.Set(sat)
		t.brightSmoother.Set(bright)
		t.initialized = true
	} else {
		t.hue = smoothHue(t.hue, hue, 0.22)
		t.saturation = t.satSmoother.Step(sat)
		t.brightness = t.brightSmoother.Step(bright)
	}

	h := int(math.Round(t.hue)) % 360
	if h < 0 {
		h += 360
	}
	return Color{
		Hue:        h,
		Saturation: utils.Clamp(int(math.Round(t.saturation)), 0, 100),
		Brightness: utils.Clamp(int(math.Round(t.brightness)), 1, 100),
	}
}

// Run sends queued colours until ctx is done or the lamp connection closes. Unchanged
// colours are skipped; other lamp errors are logged and the loop carries on.
func (t *BulbTarget) Run(ctx context.Context) error {
	var (
		last     Color
		sent     bool
		lastSend time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-t.updates:
			if sent && c == last {
				continue
			}
			if wait := t.minSpacing - time.Since(lastSend); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
				select {
				case newer := <-t.updates:
					c = newer
				default:
				}
			}

			if err := t.lamp.SetHSV(c.Hue, c.Saturation, c.Brightness, t.minSpacing); err != nil {
				if eris.Is(err, yeelight.ErrClosed) {
					return err
				}
				t.logger.Warn("failed to update bulb",
					slog.String("target", t.name),
					slog.Any("error", err),
				)
				continue
			}
			last, sent, lastSend = c, true, time.Now()
		}
	}
}

func smoothHue(current, target, alpha float64) float64 {
	delta := math.Mod(target-current+540, 360) - 180
	return math.Mod(current+alpha*delta+360, 360)
}
