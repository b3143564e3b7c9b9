package dsp

import (
	"log/slog"

	"github.com/rotisserie/eris"
)

// MaxMagnitude is the largest value a spectrum bin can hold.
const MaxMagnitude = 255

// Frame is one captured frequency spectrum, one unsigned magnitude per bin.
// A Frame is never written to after Sample returns it.
type Frame []uint8

// Source is the audio-analysis collaborator. ByteFrequencyData fills dst with the most
// recent magnitudes and must not block.
type Source interface {
	ByteFrequencyData(dst []uint8) error
}

// SilentSource always reports an all-zero spectrum.
type SilentSource struct{}

func (SilentSource) ByteFrequencyData(dst []uint8) error {
	clear(dst)
	return nil
}

// Sampler pulls exactly one fixed-length Frame per tick from a Source.
type Sampler struct {
	size    int
	src     Source
	logger  *slog.Logger
	failing bool
}

// NewSampler returns a Sampler producing frames of size bins. A nil src yields silence.
func NewSampler(size int, src Source, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{size: size, src: src, logger: logger}
}

// Size returns the number of bins per frame.
func (s *Sampler) Size() int {
	return s.size
}

// Sample captures the current spectrum. Source failures degrade to a zero frame; the
// first failure of a streak is logged.
func (s *Sampler) Sample() Frame {
	frame := make(Frame, s.size)
	if s.src == nil {
		return frame
	}

	if err := s.read(frame); err != nil {
		clear(frame)
		if !s.failing {
			s.logger.Warn("spectrum source failed, sampling silence", slog.Any("error", err))
		}
		s.failing = true
		return frame
	}

	if s.failing {
		s.logger.Info("spectrum source recovered")
		s.failing = false
	}
	return frame
}

func (s *Sampler) read(frame Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("spectrum source panicked: %v", r)
		}
	}()
	return s.src.ByteFrequencyData(frame)
}
