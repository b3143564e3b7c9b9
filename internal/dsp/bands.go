package dsp

import "github.com/cybre/birthday-visualizer/internal/utils"

const (
	bassFraction = 0.1
	midFraction  = 0.4 // cumulative: mid covers [10%, 40%)
)

// BandEnergies holds the per-band energy of a frame, each in [0,1].
type BandEnergies struct {
	Bass   float64 `json:"bass"`
	Mid    float64 `json:"mid"`
	Treble float64 `json:"treble"`
	Volume float64 `json:"volume"`
}

// Clamped returns e with every band bounded to [0,1].
func (e BandEnergies) Clamped() BandEnergies {
	return BandEnergies{
		Bass:   utils.Clamp01(e.Bass),
		Mid:    utils.Clamp01(e.Mid),
		Treble: utils.Clamp01(e.Treble),
		Volume: utils.Clamp01(e.Volume),
	}
}

// BandRanges returns the [start, end) bin ranges of bass, mid and treble for n bins.
func BandRanges(n int) (bass, mid, treble [2]int) {
	if n <= 0 {
		return
	}
	bassEnd := int(float64(n) * bassFraction)
	midEnd := int(float64(n) * midFraction)
	return [2]int{0, bassEnd}, [2]int{bassEnd, midEnd}, [2]int{midEnd, n}
}

// Aggregate reduces a frame to band energies. A band with no bins has zero energy.
func Aggregate(frame Frame) BandEnergies {
	bass, mid, treble := BandRanges(len(frame))
	return BandEnergies{
		Bass:   meanMagnitude(frame, bass),
		Mid:    meanMagnitude(frame, mid),
		Treble: meanMagnitude(frame, treble),
		Volume: meanMagnitude(frame, [2]int{0, len(frame)}),
	}
}

func meanMagnitude(frame Frame, span [2]int) float64 {
	width := span[1] - span[0]
	if width <= 0 {
		return 0
	}
	var sum int
	for _, mag := range frame[span[0]:span[1]] {
		sum += int(mag)
	}
	return utils.Clamp01(float64(sum) / float64(width*MaxMagnitude))
}
