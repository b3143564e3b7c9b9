package audio

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/rotisserie/eris"
)

// ErrUnsupportedFormat is returned for files that are neither WAV nor MP3.
var ErrUnsupportedFormat = eris.New("unsupported audio format")

// Track is a decoded song held in memory as mono PCM in [-1,1].
type Track struct {
	Title  string
	Artist string
	Path   string
	// Color is the accent colour shown while the track plays, as #rrggbb.
	Color string

	SampleRate int
	Samples    []float64
}

// Duration returns the playing time of the track.
func (t *Track) Duration() time.Duration {
	if t.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(t.Samples)) * time.Second / time.Duration(t.SampleRate)
}

// LoadTrack decodes a WAV or MP3 file chosen by extension.
func LoadTrack(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	var (
		samples []float64
		rate    int
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		samples, rate, err = DecodeWAV(f)
	case ".mp3":
		samples, rate, err = DecodeMP3(f)
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "%s", ext)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to decode %s", path)
	}

	return &Track{
		Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:       path,
		SampleRate: rate,
		Samples:    samples,
	}, nil
}

// DecodeWAV reads an integer PCM WAV stream and downmixes it to mono.
func DecodeWAV(r io.ReadSeeker) ([]float64, int, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, 0, eris.Wrap(ErrUnsupportedFormat, "not a valid wav file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, eris.Wrap(err, "read wav pcm")
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, 0, eris.Wrap(ErrUnsupportedFormat, "wav without sample rate")
	}

	bitDepth := int(d.SampleBitDepth())
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))
	if bitDepth == 8 {
		// 8-bit wav is unsigned.
		samples := downmix(buf.Data, buf.Format.NumChannels, func(v int) float64 { return float64(v-128) / 128 })
		return samples, buf.Format.SampleRate, nil
	}
	samples := downmix(buf.Data, buf.Format.NumChannels, func(v int) float64 { return float64(v) / scale })
	return samples, buf.Format.SampleRate, nil
}

// DecodeMP3 decodes an MP3 stream and downmixes it to mono.
func DecodeMP3(r io.Reader) ([]float64, int, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, eris.Wrap(err, "open mp3 stream")
	}
	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, 0, eris.Wrap(err, "read mp3 pcm")
	}

	// go-mp3 always produces 16-bit little-endian stereo.
	const frameBytes = 4
	samples := make([]float64, len(raw)/frameBytes)
	for i := range samples {
		l := int16(binary.LittleEndian.Uint16(raw[i*frameBytes:]))
		r := int16(binary.LittleEndian.Uint16(raw[i*frameBytes+2:]))
		samples[i] = (float64(l) + float64(r)) / 2 / 32768
	}
	return samples, d.SampleRate(), nil
}

func downmix(data []int, channels int, conv func(int) float64) []float64 {
	if channels <= 0 {
		channels = 1
	}
	out := make([]float64, len(data)/channels)
	for i := range out {
		sum := 0.0
		for ch := range channels {
			sum += conv(data[i*channels+ch])
		}
		out[i] = sum / float64(channels)
	}
	return out
}
