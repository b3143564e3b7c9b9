package beat

import (
	"time"
)

// Options tunes the behaviour of the Detector. Zero values take the defaults.
type Options struct {
	DecayFactor         float64
	Floor               float64
	Hold                time.Duration
	ThresholdMultiplier float64
	ThresholdOffset     float64
}

const (
	DefaultDecayFactor         = 0.98
	DefaultFloor               = 0.15
	DefaultHold                = 60 * time.Millisecond
	DefaultThresholdMultiplier = 1.5
	DefaultThresholdOffset     = 0.15
)

// WithDefaults fills in every unset option.
func (o Options) WithDefaults() Options {
	if o.DecayFactor <= 0 || o.DecayFactor >= 1 {
		o.DecayFactor = DefaultDecayFactor
	}
	if o.Floor <= 0 {
		o.Floor = DefaultFloor
	}
	if o.Hold <= 0 {
		o.Hold = DefaultHold
	}
	if o.ThresholdMultiplier <= 0 {
		o.ThresholdMultiplier = DefaultThresholdMultiplier
	}
	if o.ThresholdOffset <= 0 {
		o.ThresholdOffset = DefaultThresholdOffset
	}
	return o
}

// MinThreshold is the level the threshold settles at after prolonged silence.
func (o Options) MinThreshold() float64 {
	o = o.WithDefaults()
	return max(o.Floor*o.ThresholdMultiplier+o.ThresholdOffset, o.Floor)
}

// State is the detector's continuously valued state.
type State struct {
	Threshold float64
	LastBeat  time.Time
	Level     float64
	Floor     float64
}

// Detector fires one-frame pulses when bass energy jumps over an adaptive threshold.
// The threshold follows a decaying peak of recent beats, so loud songs raise the bar and
// quiet ones lower it.
type Detector struct {
	opts  Options
	state State
}

// NewDetector returns a Detector in its initial state.
func NewDetector(opts Options) *Detector {
	d := &Detector{opts: opts.WithDefaults()}
	d.Reset()
	return d
}

// Options returns the effective options.
func (d *Detector) Options() Options {
	return d.opts
}

// Reset returns the detector to its initial state.
func (d *Detector) Reset() {
	d.state = State{
		Threshold: d.opts.MinThreshold(),
		Floor:     d.opts.Floor,
	}
}

// State returns a copy of the current state.
func (d *Detector) State() State {
	return d.state
}

// Step advances the detector by one frame and reports whether a beat fired on it.
func (d *Detector) Step(now time.Time, bass float64) bool {
	s := &d.state

	s.Level *= d.opts.DecayFactor
	if s.Level < s.Floor {
		s.Level = s.Floor
	}
	// Never below the floor, even with a multiplier under 1 and a small offset.
	s.Threshold = max(s.Level*d.opts.ThresholdMultiplier+d.opts.ThresholdOffset, s.Floor)

	// The level check only bites when ThresholdMultiplier is below 1.
	if bass <= s.Threshold || bass <= s.Level {
		return false
	}
	if !s.LastBeat.IsZero() && now.Sub(s.LastBeat) <= d.opts.Hold {
		return false
	}

	s.Level = bass
	s.LastBeat = now
	return true
}
