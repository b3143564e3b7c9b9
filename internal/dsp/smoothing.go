package dsp

import "github.com/cybre/birthday-visualizer/internal/utils"

// Weights is the share each band's new sample takes in the smoothed value.
type Weights struct {
	Bass   float64 `yaml:"bass"`
	Mid    float64 `yaml:"mid"`
	Treble float64 `yaml:"treble"`
	Volume float64 `yaml:"volume"`
}

// DefaultWeights reacts quickly on the beat-carrying bands and slowly on overall volume,
// which drives coarse scene mood.
func DefaultWeights() Weights {
	return Weights{Bass: 0.3, Mid: 0.3, Treble: 0.3, Volume: 0.2}
}

// Smoother implements a simple exponential moving average starting from zero.
type Smoother struct {
	alpha float64
	value float64
}

// NewSmoother constructs a Smoother using the supplied alpha (0..1).
// Smaller values produce heavier smoothing.
func NewSmoother(alpha float64) *Smoother {
	return &Smoother{alpha: utils.Clamp(alpha, 0.0, 1.0)}
}

// Step updates the internal state and returns the smoothed value.
func (s *Smoother) Step(v float64) float64 {
	s.value = s.value*(1-s.alpha) + v*s.alpha
	return s.value
}

// Value returns the current smoothed value without updating it.
func (s *Smoother) Value() float64 {
	return s.value
}

// Set jumps straight to v.
func (s *Smoother) Set(v float64) {
	s.value = v
}

// Reset returns the smoother to zero.
func (s *Smoother) Reset() {
	s.value = 0
}

// SmoothingFilter low-pass filters band energies across frames.
type SmoothingFilter struct {
	bass, mid, treble, volume *Smoother
}

// NewSmoothingFilter builds a filter with one smoother per band.
func NewSmoothingFilter(w Weights) *SmoothingFilter {
	return &SmoothingFilter{
		bass:   NewSmoother(w.Bass),
		mid:    NewSmoother(w.Mid),
		treble: NewSmoother(w.Treble),
		volume: NewSmoother(w.Volume),
	}
}

// Step folds the current frame's energies into the smoothed state and returns it.
func (f *SmoothingFilter) Step(e BandEnergies) BandEnergies {
	e = e.Clamped()
	f.bass.Step(e.Bass)
	f.mid.Step(e.Mid)
	f.treble.Step(e.Treble)
	f.volume.Step(e.Volume)
	return f.Value()
}

// Value returns the smoothed energies.
func (f *SmoothingFilter) Value() BandEnergies {
	return BandEnergies{
		Bass:   f.bass.Value(),
		Mid:    f.mid.Value(),
		Treble: f.treble.Value(),
		Volume: f.volume.Value(),
	}.Clamped()
}

// Reset zeroes every band.
func (f *SmoothingFilter) Reset() {
	f.bass.Reset()
	f.mid.Reset()
	f.treble.Reset()
	f.volume.Reset()
}
