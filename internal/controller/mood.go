package controller

import (
	"time"

	"github.com/cybre/birthday-visualizer/internal/dsp"
	"github.com/cybre/birthday-visualizer/internal/utils"
)

// Mode is the colour strategy the bulb follows.
type Mode int

const (
	// ModeEnergyPulse pumps brightness with the beat and shifts hue with bass.
	ModeEnergyPulse Mode = iota
	// ModeSpectrumFlow drifts hue with the spectral balance for busy, bright passages.
	ModeSpectrumFlow
)

func (m Mode) String() string {
	switch m {
	case ModeEnergyPulse:
		return "energy-pulse"
	case ModeSpectrumFlow:
		return "spectrum-flow"
	default:
		return "unknown"
	}
}

const modeHold = 2500 * time.Millisecond

// moodTracker picks a Mode from the smoothed bands and keeps it for at least modeHold.
type moodTracker struct {
	mode  Mode
	since time.Duration
}

func (m *moodTracker) update(elapsed time.Duration, volume, brightness float64) Mode {
	if elapsed-m.since < modeHold {
		return m.mode
	}

	next := m.mode
	switch m.mode {
	case ModeEnergyPulse:
		if volume > 0.6 && brightness > 0.45 {
			next = ModeSpectrumFlow
		}
	case ModeSpectrumFlow:
		if volume < 0.35 || brightness < 0.3 {
			next = ModeEnergyPulse
		}
	}
	if next != m.mode {
		m.mode = next
		m.since = elapsed
	}
	return m.mode
}

// tonalBrightness places the energy on a 0 (all bass) to 1 (all treble) scale.
func tonalBrightness(e dsp.BandEnergies) float64 {
	total := e.Bass + e.Mid + e.Treble
	if total <= 1e-9 {
		return 0
	}
	return utils.Clamp01((0.5*e.Mid + e.Treble) / total)
}

func energyPulseHue(e dsp.BandEnergies, brightness, beatPulse float64) float64 {
	base := 40.0 + 180.0*brightness - 100.0*e.Bass + 60.0*e.Treble
	shift := 20.0 * beatPulse * (0.5 - utils.SpectralBalance(e.Bass, e.Mid))
	return utils.Clamp(base+shift, 0.0, 359.0)
}

func energyPulseSaturation(e dsp.BandEnergies, beatPulse, sparkle float64) float64 {
	return utils.Clamp(38+42*e.Mid+25*e.Treble+20*beatPulse+18*sparkle, 25.0, 100.0)
}

func energyPulseBrightness(volume, beatPulse, sparkle float64) float64 {
	return utils.Clamp(28+62*volume+32*beatPulse+26*sparkle, 8.0, 100.0)
}

func spectrumFlowHue(e dsp.BandEnergies, brightness float64) float64 {
	return utils.Clamp(210*brightness+90*(utils.SpectralBalance(e.Mid, e.Treble)-0.5)+40, 0.0, 359.0)
}

func spectrumFlowSaturation(e dsp.BandEnergies) float64 {
	return utils.Clamp(42+50*e.Mid+18*e.Treble+12*e.Volume, 28.0, 98.0)
}

func spectrumFlowBrightness(e dsp.BandEnergies, beatPulse, sparkle float64) float64 {
	return utils.Clamp(34+56*e.Volume+22*e.Treble+12*beatPulse+20*sparkle, 10.0, 100.0)
}
