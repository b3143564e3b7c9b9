package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rotisserie/eris"

	"github.com/cybre/birthday-visualizer/internal/audio"
	"github.com/cybre/birthday-visualizer/internal/config"
	"github.com/cybre/birthday-visualizer/internal/yeelight"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func setupLogger(debug, visualize bool) *slog.Logger {
	logOutput := os.Stdout
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	if visualize && !debug {
		logLevel = slog.LevelWarn
	}
	if visualize {
		logOutput = os.Stderr
	}

	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	return logger
}

// loadConfig reads the config file and layers the command line preset and seed on top.
func loadConfig(opts runtimeOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	return applyOverrides(cfg, opts)
}

func applyOverrides(cfg config.Config, opts runtimeOptions) (config.Config, error) {
	if opts.preset != "" {
		if err := cfg.ApplyPreset(opts.preset); err != nil {
			return config.Config{}, err
		}
	}
	if opts.seed != 0 {
		cfg.Seed = opts.seed
	}
	return cfg, cfg.Validate()
}

func newRand(cfg config.Config) *rand.Rand {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func runLive(ctx context.Context, opts runtimeOptions) error {
	logger := setupLogger(opts.debug, opts.visualize)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		return eris.Wrap(err, "initialize PortAudio")
	}
	defer portaudio.Terminate()

	devices, defaultIdx, err := audio.InputDevices()
	if err != nil {
		return err
	}

	device, preset, err := selectDeviceAndPreset(devices, defaultIdx, cfg.Preset, opts)
	if err != nil {
		return eris.Wrap(err, "select device/preset")
	}
	if preset != cfg.Preset {
		if err := cfg.ApplyPreset(preset); err != nil {
			return err
		}
	}

	if opts.channels > 0 && opts.channels > device.MaxInputChannels {
		logger.Warn("requested channels exceed device capabilities",
			slog.Int("requested", opts.channels),
			slog.Int("max", device.MaxInputChannels),
		)
	}

	capture, err := audio.OpenCapture(audio.CaptureConfig{
		Device:     device,
		SampleRate: opts.sampleRate,
		FrameSize:  opts.frameSize,
		Channels:   opts.channels,
		Latency:    opts.latency,
		Bins:       cfg.FFTWindowSize,
		Smoothing:  cfg.AnalyserSmoothing,
	}, logger)
	if err != nil {
		return err
	}

	s, err := newSession(cfg, opts, logger)
	if err != nil {
		capture.Close()
		return err
	}
	if err := s.engine.Start(capture); err != nil {
		return err
	}
	return s.run(ctx)
}

func runPlaylist(ctx context.Context, opts runtimeOptions, files []string) error {
	logger := setupLogger(opts.debug, opts.visualize)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	playlist, err := audio.LoadPlaylist(files, newRand(cfg))
	if err != nil {
		return err
	}

	s, err := newSession(cfg, opts, logger)
	if err != nil {
		return err
	}
	s.playlist = playlist
	if err := s.playTrack(playlist.Current()); err != nil {
		return err
	}
	return s.run(ctx)
}

func listDevices(w io.Writer) error {
	if err := portaudio.Initialize(); err != nil {
		return eris.Wrap(err, "initialize PortAudio")
	}
	defer portaudio.Terminate()

	devices, defaultIdx, err := audio.InputDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintln(w, "No input devices found.")
		return nil
	}
	for i, opt := range buildDeviceOptions(devices) {
		marker := " "
		if i == defaultIdx {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s\n", marker, opt.Label)
	}
	return nil
}

func listBulbs(ctx context.Context, w io.Writer) error {
	bulbs, err := yeelight.Discover(ctx)
	if err != nil {
		return err
	}
	if len(bulbs) == 0 {
		fmt.Fprintln(w, "No bulbs answered.")
		return nil
	}
	for _, b := range bulbs {
		fmt.Fprintln(w, describeBulb(b))
	}
	return nil
}
