package main

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/cybre/birthday-visualizer/internal/audio"
	"github.com/cybre/birthday-visualizer/internal/config"
	"github.com/cybre/birthday-visualizer/internal/controller"
	"github.com/cybre/birthday-visualizer/internal/engine"
	"github.com/cybre/birthday-visualizer/internal/scene"
	"github.com/cybre/birthday-visualizer/internal/transport"
	"github.com/cybre/birthday-visualizer/internal/ui"
	"github.com/cybre/birthday-visualizer/internal/yeelight"
)

// Without music mode a bulb accepts roughly one command per second.
const rateLimitedSpacing = time.Second

// session owns everything that runs while the visuals are live. Only the tick loop
// goroutine touches the engine's source and the playlist; other goroutines hand it work
// through commands.
type session struct {
	cfg    config.Config
	opts   runtimeOptions
	logger *slog.Logger

	engine   *engine.Engine
	party    *scene.Birthday
	hub      *transport.Hub
	viz      *ui.Visualizer
	bulb     *yeelight.Bulb
	lamp     *controller.BulbTarget
	playlist *audio.Playlist
	player   *audio.Player

	commands chan func() error
	cancel   context.CancelFunc
}

func newSession(cfg config.Config, opts runtimeOptions, logger *slog.Logger) (*session, error) {
	rng := newRand(cfg)
	party := scene.NewBirthday(scene.DefaultLayout(), rand.New(rand.NewSource(rng.Int63())))

	eng, err := engine.New(cfg, engine.Options{
		Spawner: scene.NewSpawner(party.Scene, rng, logger),
		Rules:   scene.Rules(),
		Rand:    rng,
		Logger:  logger,
		OnReset: func() { party.Scene.ClearTransient() },
	})
	if err != nil {
		return nil, err
	}
	if err := party.Register(eng.Registry()); err != nil {
		return nil, err
	}

	s := &session{
		cfg:      cfg,
		opts:     opts,
		logger:   logger,
		engine:   eng,
		party:    party,
		commands: make(chan func() error, 8),
	}
	if opts.wsAddr != "" {
		s.hub = transport.NewHub(logger)
	}
	return s, nil
}

func (s *session) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel
	defer s.engine.Stop()

	if err := s.connectBulb(ctx); err != nil {
		return err
	}
	if s.bulb != nil {
		defer s.releaseBulb()
	}

	if s.opts.visualize {
		s.viz = ui.NewVisualizer(s.controls(ctx))
		defer s.viz.Close()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.tickLoop(gctx)
	})

	if s.hub != nil {
		g.Go(func() error {
			return s.hub.ListenAndServe(gctx, s.opts.wsAddr)
		})
	}

	if s.lamp != nil {
		g.Go(func() error {
			err := s.lamp.Run(gctx)
			if eris.Is(err, yeelight.ErrClosed) {
				s.logger.Warn("bulb connection closed, continuing without it")
				return nil
			}
			return err
		})
	}

	if s.opts.configPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, s.opts.configPath, s.logger, func(next config.Config) {
				s.submit(gctx, func() error { return s.reconfigure(next) })
			})
		})
	}

	if err := g.Wait(); err != nil && !eris.Is(err, context.Canceled) {
		s.logger.Error("visualizer stopped", slog.Any("error", err))
		return err
	}
	return nil
}

func (s *session) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.FrameInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-s.commands:
			if err := cmd(); err != nil {
				s.logger.Warn("command failed", slog.Any("error", err))
			}
		case now := <-ticker.C:
			snap := s.engine.Tick(now)
			s.publish(snap)

			if s.player != nil && s.player.Finished() {
				if err := s.playTrack(s.playlist.Next()); err != nil {
					return err
				}
			}
		}
	}
}

func (s *session) publish(snap engine.Snapshot) {
	if s.hub != nil {
		if err := s.hub.Broadcast(snap); err != nil {
			s.logger.Warn("failed to broadcast frame", slog.Any("error", err))
		}
	}
	if s.viz != nil {
		frame := ui.FrameFromSnapshot(snap)
		frame.Preset = s.engine.Config().Preset
		if s.player != nil {
			frame.Track = s.player.Track().Title
			frame.TrackColor = s.player.Track().Color
		}
		s.viz.Update(frame)
	}
}

// playTrack swaps the engine's source for a fresh player. Starting the engine again
// releases the previous player and reinitialises all mapping state.
func (s *session) playTrack(track *audio.Track) error {
	cfg := s.engine.Config()
	player, err := audio.NewPlayer(track, cfg.FFTWindowSize, cfg.AnalyserSmoothing, nil)
	if err != nil {
		return err
	}
	player.Play()
	s.player = player

	s.logger.Info("now playing",
		slog.String("title", track.Title),
		slog.Duration("duration", track.Duration()),
		slog.Int("position", s.playlist.Index()+1),
		slog.Int("tracks", s.playlist.Len()),
	)
	return s.engine.Start(player)
}

func (s *session) reconfigure(next config.Config) error {
	next, err := applyOverrides(next, s.opts)
	if err != nil {
		return err
	}
	current := s.engine.Config()
	if next.FFTWindowSize != current.FFTWindowSize {
		s.logger.Warn("fft_window_size changes need a restart, keeping the current size",
			slog.Int("current", current.FFTWindowSize),
			slog.Int("requested", next.FFTWindowSize),
		)
		next.FFTWindowSize = current.FFTWindowSize
	}
	return s.engine.Reconfigure(next)
}

// submit queues fn for the tick loop unless ctx ends first.
func (s *session) submit(ctx context.Context, fn func() error) {
	select {
	case s.commands <- fn:
	case <-ctx.Done():
	}
}

func (s *session) controls(ctx context.Context) ui.Controls {
	c := ui.Controls{
		OnExit:  s.cancel,
		Presets: config.PresetNames(),
	}
	c.OnPreset = func(name string) {
		s.submit(ctx, func() error { return s.engine.ApplyPreset(name) })
	}
	if s.playlist != nil {
		c.OnNext = func() {
			s.submit(ctx, func() error { return s.playTrack(s.playlist.Next()) })
		}
		c.OnPrevious = func() {
			s.submit(ctx, func() error { return s.playTrack(s.playlist.Previous()) })
		}
		c.OnShuffle = func() {
			s.submit(ctx, func() error { return s.playTrack(s.playlist.Shuffle()) })
		}
	}
	return c
}

func (s *session) connectBulb(ctx context.Context) error {
	if s.opts.bulbAddr == "" {
		return nil
	}

	addr := s.opts.bulbAddr
	if addr == "auto" {
		found, err := yeelight.Discover(ctx)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return eris.New("no bulbs available")
		}
		s.logger.Info("using yeelight bulb", slog.String("bulb", describeBulb(found[0])))
		addr = found[0].Addr.String()
	}

	bulb, err := yeelight.Dial(ctx, addr, s.logger)
	if err != nil {
		return err
	}
	if err := bulb.SetPower(ctx, true); err != nil {
		s.logger.Warn("failed to turn on bulb", slog.Any("error", err))
	}

	spacing := controller.DefaultMinSpacing
	if err := bulb.EnableMusicMode(ctx); err != nil {
		s.logger.Warn("music mode unavailable, updating the bulb slowly", slog.Any("error", err))
		spacing = rateLimitedSpacing
	}

	lamp := controller.NewBulbTarget("bulb", bulb, spacing, s.logger)
	if err := s.engine.Registry().Register(lamp); err != nil {
		bulb.Close()
		return err
	}
	s.bulb = bulb
	s.lamp = lamp
	return nil
}

func (s *session) releaseBulb() {
	s.engine.Registry().Unregister(s.lamp.Name())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.bulb.SetPower(ctx, false); err != nil {
		s.logger.Warn("failed to turn off bulb", slog.Any("error", err))
	}
	if err := s.bulb.Close(); err != nil {
		s.logger.Warn("failed to disconnect from bulb", slog.Any("error", err))
	} else {
		s.logger.Info("bulb disconnected")
	}
}
