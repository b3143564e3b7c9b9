package dsp

// ToMono averages interleaved multi-channel data into a mono frame.
func ToMono(samples []float32, channels int, dst []float64) []float64 {
	if channels <= 0 {
		channels = 1
	}
	frameLen := len(samples) / channels
	if cap(dst) < frameLen {
		dst = make([]float64, frameLen)
	} else {
		dst = dst[:frameLen]
	}
	idx := 0
	for i := range frameLen {
		sum := 0.0
		for range channels {
			sum += float64(samples[idx])
			idx++
		}
		dst[i] = sum / float64(channels)
	}
	return dst
}
