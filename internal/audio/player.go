package audio

import (
	"sync"
	"time"

	"github.com/cybre/birthday-visualizer/internal/dsp"
)

// Player exposes a Track as a spectrum source that follows a wall clock, so the spectrum
// reflects whatever part of the song is "playing" at the moment of each tick.
type Player struct {
	track    *Track
	analyser *dsp.ByteAnalyser
	now      func() time.Time

	mu      sync.Mutex
	started time.Time
	closed  bool
	window  []float64
}

// NewPlayer prepares track for playback. now defaults to time.Now.
func NewPlayer(track *Track, bins int, smoothing float64, now func() time.Time) (*Player, error) {
	analyser, err := dsp.NewByteAnalyser(bins, smoothing)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Player{track: track, analyser: analyser, now: now}, nil
}

// Track returns the track being played.
func (p *Player) Track() *Track {
	return p.track
}

// Play starts playback from the beginning of the track.
func (p *Player) Play() {
	p.mu.Lock()
	p.started = p.now()
	p.mu.Unlock()
	p.analyser.Reset()
}

// Position returns how far playback has progressed.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

// Finished reports whether playback reached the end of the track.
func (p *Player) Finished() bool {
	return p.Position() >= p.track.Duration()
}

// ByteFrequencyData analyses the window of samples ending at the current position.
// Before Play, after the end and after Close it reports silence.
func (p *Player) ByteFrequencyData(dst []uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.started.IsZero() || p.track.SampleRate <= 0 {
		clear(dst)
		return nil
	}

	end := int(p.positionLocked().Seconds() * float64(p.track.SampleRate))
	if end > len(p.track.Samples) {
		clear(dst)
		return nil
	}
	start := max(0, end-p.analyser.FFTSize())
	p.window = append(p.window[:0], p.track.Samples[start:end]...)
	p.analyser.Analyse(p.window, dst)
	return nil
}

// SetSmoothing adjusts the analyser's temporal smoothing.
func (p *Player) SetSmoothing(tc float64) {
	p.analyser.SetSmoothing(tc)
}

// Close stops playback for good.
func (p *Player) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *Player) positionLocked() time.Duration {
	if p.started.IsZero() {
		return 0
	}
	return p.now().Sub(p.started)
}
