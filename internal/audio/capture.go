package audio

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rotisserie/eris"

	"github.com/cybre/birthday-visualizer/internal/dsp"
)

// CaptureConfig describes the input stream to open.
type CaptureConfig struct {
	Device     *portaudio.DeviceInfo
	SampleRate float64
	FrameSize  int
	Channels   int
	Latency    time.Duration
	// Bins is the number of spectrum magnitudes produced per frame.
	Bins      int
	Smoothing float64
}

// Capture is a live PortAudio input exposed as a spectrum source.
type Capture struct {
	stream   *portaudio.Stream
	history  *history
	analyser *dsp.ByteAnalyser
	channels int
	logger   *slog.Logger

	readMu  sync.Mutex
	scratch []float64
	mono    []float64

	closeOnce sync.Once
	closeErr  error
}

// OpenCapture opens and starts an input stream. PortAudio must already be initialised.
func OpenCapture(cfg CaptureConfig, logger *slog.Logger) (*Capture, error) {
	if cfg.Device == nil {
		return nil, eris.New("audio device is not specified")
	}
	if logger == nil {
		logger = slog.Default()
	}

	analyser, err := dsp.NewByteAnalyser(cfg.Bins, cfg.Smoothing)
	if err != nil {
		return nil, err
	}

	c := &Capture{
		history:  newHistory(analyser.FFTSize()),
		analyser: analyser,
		channels: SanitizeChannelCount(cfg.Channels, cfg.Device.MaxInputChannels),
		logger:   logger,
	}

	sampleRate := EffectiveSampleRate(cfg.SampleRate, cfg.Device.DefaultSampleRate)
	frameSize := cfg.FrameSize
	if frameSize <= 0 {
		frameSize = 1024
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   cfg.Device,
			Channels: c.channels,
			Latency:  cfg.Device.DefaultLowInputLatency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: frameSize,
	}
	if cfg.Latency > 0 {
		params.Input.Latency = cfg.Latency
	}

	stream, err := portaudio.OpenStream(params, c.process)
	if err != nil {
		return nil, eris.Wrap(err, "open audio stream")
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, eris.Wrap(err, "start audio stream")
	}
	c.stream = stream

	logger.Info("capturing audio input",
		slog.String("device", cfg.Device.Name),
		slog.Float64("sample_rate", sampleRate),
		slog.Int("channels", c.channels),
		slog.Int("frame_size", frameSize),
	)
	return c, nil
}

// process runs on the PortAudio callback thread.
func (c *Capture) process(in []float32) {
	c.mono = dsp.ToMono(in, c.channels, c.mono)
	c.history.push(c.mono)
}

// ByteFrequencyData analyses the most recent window of captured audio.
func (c *Capture) ByteFrequencyData(dst []uint8) error {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	c.scratch = c.history.snapshot(c.scratch)
	c.analyser.Analyse(c.scratch, dst)
	return nil
}

// SetSmoothing adjusts the analyser's temporal smoothing.
func (c *Capture) SetSmoothing(tc float64) {
	c.analyser.SetSmoothing(tc)
}

// Close stops and releases the stream. Further calls return the first result.
func (c *Capture) Close() error {
	c.closeOnce.Do(func() {
		if c.stream == nil {
			return
		}
		if err := c.stream.Stop(); err != nil {
			c.closeErr = eris.Wrap(err, "stop audio stream")
		}
		if err := c.stream.Close(); err != nil && c.closeErr == nil {
			c.closeErr = eris.Wrap(err, "close audio stream")
		}
	})
	return c.closeErr
}

// InputDevices lists devices that can record, and the index of the default input among
// them (-1 when there is none).
func InputDevices() ([]*portaudio.DeviceInfo, int, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, -1, eris.Wrap(err, "enumerate audio devices")
	}

	var def *portaudio.DeviceInfo
	if d, err := portaudio.DefaultInputDevice(); err == nil {
		def = d
	}

	inputs := make([]*portaudio.DeviceInfo, 0, len(devices))
	defaultIdx := -1
	for _, dev := range devices {
		if dev.MaxInputChannels < 1 {
			continue
		}
		if def != nil && dev.Index == def.Index {
			defaultIdx = len(inputs)
		}
		inputs = append(inputs, dev)
	}
	return inputs, defaultIdx, nil
}

// SanitizeChannelCount bounds the requested channel count by the device's capability.
func SanitizeChannelCount(requested, max int) int {
	if requested <= 0 {
		return 1
	}
	if max > 0 && requested > max {
		return max
	}
	return requested
}

// EffectiveSampleRate prefers the requested rate, then the device default, then 44.1kHz.
func EffectiveSampleRate(requested, deviceDefault float64) float64 {
	if requested > 0 {
		return requested
	}
	if deviceDefault > 0 {
		return deviceDefault
	}
	return 44100
}
