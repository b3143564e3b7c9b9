package dsp

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"

	"github.com/cybre/birthday-visualizer/internal/utils"
)

const (
	DefaultMinDecibels           = -100.0
	DefaultMaxDecibels           = -30.0
	DefaultSmoothingTimeConstant = 0.8
)

// ErrInvalidBinCount is returned when an analyser is asked for a non power-of-two bin count.
var ErrInvalidBinCount = eris.New("bin count must be a power of two")

// ByteAnalyser turns a window of PCM samples into byte magnitudes the way a browser
// AnalyserNode does: Blackman window, FFT, temporal smoothing, then decibels mapped onto
// [0,255] between the min and max decibel bounds.
type ByteAnalyser struct {
	mu sync.Mutex

	fftSize   int
	bins      int
	smoothing float64
	minDb     float64
	maxDb     float64

	window   []float64
	windowed []float64
	smoothed []float64
}

// NewByteAnalyser builds an analyser with bins output magnitudes (the FFT size is twice that).
func NewByteAnalyser(bins int, smoothing float64) (*ByteAnalyser, error) {
	if !utils.IsPowerOfTwo(bins) {
		return nil, eris.Wrapf(ErrInvalidBinCount, "bins=%d", bins)
	}

	fftSize := bins * 2
	coeffs := make([]float64, fftSize)
	for i := range coeffs {
		coeffs[i] = 1
	}

	return &ByteAnalyser{
		fftSize:   fftSize,
		bins:      bins,
		smoothing: utils.Clamp(smoothing, 0.0, 1.0),
		minDb:     DefaultMinDecibels,
		maxDb:     DefaultMaxDecibels,
		window:    window.Blackman(coeffs),
		windowed:  make([]float64, fftSize),
		smoothed:  make([]float64, bins),
	}, nil
}

// FFTSize returns the number of PCM samples consumed per analysis.
func (a *ByteAnalyser) FFTSize() int {
	return a.fftSize
}

// Bins returns the number of magnitudes produced per analysis.
func (a *ByteAnalyser) Bins() int {
	return a.bins
}

// SetSmoothing changes the temporal smoothing constant (0 = none, 1 = frozen).
func (a *ByteAnalyser) SetSmoothing(tc float64) {
	a.mu.Lock()
	a.smoothing = utils.Clamp(tc, 0.0, 1.0)
	a.mu.Unlock()
}

// Reset forgets the smoothing history.
func (a *ByteAnalyser) Reset() {
	a.mu.Lock()
	clear(a.smoothed)
	a.mu.Unlock()
}

// Analyse writes byte magnitudes for the most recent FFTSize samples into dst. Short input
// is zero-padded at the front so the newest sample stays aligned with the window's end.
func (a *ByteAnalyser) Analyse(samples []float64, dst []uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(samples) > a.fftSize {
		samples = samples[len(samples)-a.fftSize:]
	}
	pad := a.fftSize - len(samples)
	clear(a.windowed[:pad])
	floats.MulTo(a.windowed[pad:], samples, a.window[pad:])

	spectrum := fft.FFTReal(a.windowed)

	dbRange := a.maxDb - a.minDb
	for k := range a.bins {
		mag := cmplx.Abs(spectrum[k]) / float64(a.fftSize)
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag

		if k >= len(dst) {
			continue
		}
		if a.smoothed[k] <= 0 {
			dst[k] = 0
			continue
		}
		db := 20 * math.Log10(a.smoothed[k])
		scaled := MaxMagnitude * (db - a.minDb) / dbRange
		dst[k] = uint8(utils.Clamp(scaled, 0, MaxMagnitude))
	}
	if len(dst) > a.bins {
		clear(dst[a.bins:])
	}
}
