package audio

import (
	"bytes"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybre/birthday-visualizer/internal/dsp"
)

func writeWAV(t *testing.T, path string, rate int, frames [][2]int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	data := make([]int, 0, len(frames)*2)
	for _, fr := range frames {
		data = append(data, fr[0], fr[1])
	}
	enc := wav.NewEncoder(f, rate, 16, 2, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func toneTrack(rate, bin, fftSize int, seconds float64) *Track {
	n := int(float64(rate) * seconds)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.8 * math.Sin(2*math.Pi*float64(bin)*float64(i)/float64(fftSize))
	}
	return &Track{Title: "tone", SampleRate: rate, Samples: samples}
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func TestHistoryKeepsNewestSamples(t *testing.T) {
	h := newHistory(4)
	assert.Empty(t, h.snapshot(nil))

	h.push([]float64{1, 2})
	assert.Equal(t, []float64{1, 2}, h.snapshot(nil))

	h.push([]float64{3, 4, 5})
	assert.Equal(t, []float64{2, 3, 4, 5}, h.snapshot(nil))

	h.push([]float64{6, 7, 8, 9, 10})
	assert.Equal(t, []float64{7, 8, 9, 10}, h.snapshot(nil))
}

func TestLoadTrackWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Happy Birthday.wav")
	frames := make([][2]int, 8000)
	for i := range frames {
		frames[i] = [2]int{16384, 0}
	}
	writeWAV(t, path, 8000, frames)

	track, err := LoadTrack(path)
	require.NoError(t, err)
	assert.Equal(t, "Happy Birthday", track.Title)
	assert.Equal(t, 8000, track.SampleRate)
	require.Len(t, track.Samples, 8000)
	assert.InDelta(t, 0.25, track.Samples[100], 1e-9, "stereo is averaged to mono")
	assert.Equal(t, time.Second, track.Duration())
}

func TestLoadTrackRejectsUnknownFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("la la la"), 0o644))

	_, err := LoadTrack(path)
	assert.True(t, eris.Is(err, ErrUnsupportedFormat))

	_, err = LoadTrack(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, _, err := DecodeWAV(bytes.NewReader([]byte("definitely not a riff file")))
	assert.Error(t, err)
}

func TestDecodeMP3RejectsEmptyInput(t *testing.T) {
	_, _, err := DecodeMP3(bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestPlayerFollowsClock(t *testing.T) {
	const bins = 256
	clock := &fakeClock{t: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)}
	track := toneTrack(8192, 5, 2*bins, 2)
	p, err := NewPlayer(track, bins, 0, clock.now)
	require.NoError(t, err)

	frame := make([]uint8, bins)
	require.NoError(t, p.ByteFrequencyData(frame))
	assert.Equal(t, make([]uint8, bins), frame, "silent before Play")

	p.Play()
	clock.t = clock.t.Add(time.Second)
	require.NoError(t, p.ByteFrequencyData(frame))
	assert.Greater(t, frame[5], uint8(200))
	energies := dsp.Aggregate(frame)
	assert.Greater(t, energies.Bass, energies.Treble)
	assert.False(t, p.Finished())

	clock.t = clock.t.Add(2 * time.Second)
	assert.True(t, p.Finished())
	require.NoError(t, p.ByteFrequencyData(frame))
	assert.Equal(t, make([]uint8, bins), frame, "silent after the end")
}

func TestPlayerSilentAfterClose(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)}
	p, err := NewPlayer(toneTrack(8192, 5, 512, 2), 256, 0, clock.now)
	require.NoError(t, err)
	p.Play()
	clock.t = clock.t.Add(500 * time.Millisecond)
	require.NoError(t, p.Close())

	frame := make([]uint8, 256)
	require.NoError(t, p.ByteFrequencyData(frame))
	assert.Equal(t, make([]uint8, 256), frame)
}

func TestNewPlayerRejectsBadBins(t *testing.T) {
	_, err := NewPlayer(&Track{}, 300, 0, nil)
	assert.True(t, eris.Is(err, dsp.ErrInvalidBinCount))
}

func TestPlaylistNavigation(t *testing.T) {
	tracks := []*Track{{Title: "one"}, {Title: "two"}, {Title: "three", Color: "#123456"}}
	pl, err := NewPlaylist(tracks, rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	assert.Equal(t, "#ff6b6b", tracks[0].Color)
	assert.Equal(t, "#4ecdc4", tracks[1].Color)
	assert.Equal(t, "#123456", tracks[2].Color, "explicit colours are kept")

	assert.Equal(t, "one", pl.Current().Title)
	assert.Equal(t, "three", pl.Previous().Title, "previous wraps to the end")
	assert.Equal(t, "one", pl.Next().Title, "next wraps to the start")
	assert.Equal(t, "two", pl.Next().Title)
	assert.Equal(t, 1, pl.Index())

	for range 20 {
		pl.Shuffle()
		assert.GreaterOrEqual(t, pl.Index(), 0)
		assert.Less(t, pl.Index(), pl.Len())
	}

	_, err = pl.Select(3)
	assert.Error(t, err)
	tr, err := pl.Select(2)
	require.NoError(t, err)
	assert.Equal(t, "three", tr.Title)
}

func TestEmptyPlaylist(t *testing.T) {
	_, err := NewPlaylist(nil, nil)
	assert.True(t, eris.Is(err, ErrEmptyPlaylist))
}

func TestLoadPlaylistRejectsSilentTracks(t *testing.T) {
	song := filepath.Join(t.TempDir(), "song.wav")
	writeWAV(t, song, 8000, [][2]int{{100, 100}, {200, 200}})

	pl, err := LoadPlaylist([]string{song}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, pl.Len())

	assert.NoError(t, requireAudio(pl.Current()))
	assert.True(t, eris.Is(requireAudio(&Track{Path: "blank.wav", SampleRate: 8000}), ErrEmptyTrack))
	assert.True(t, eris.Is(requireAudio(&Track{Path: "broken.wav", Samples: []float64{0.1}}), ErrEmptyTrack))
}

func TestDeviceParameterFallbacks(t *testing.T) {
	assert.Equal(t, 1, SanitizeChannelCount(0, 2))
	assert.Equal(t, 2, SanitizeChannelCount(6, 2))
	assert.Equal(t, 2, SanitizeChannelCount(2, 0))
	assert.Equal(t, 48000.0, EffectiveSampleRate(48000, 44100))
	assert.Equal(t, 44100.0, EffectiveSampleRate(0, 44100))
	assert.Equal(t, 44100.0, EffectiveSampleRate(0, 0))
}
