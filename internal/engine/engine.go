package engine

import (
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cybre/birthday-visualizer/internal/beat"
	"github.com/cybre/birthday-visualizer/internal/config"
	"github.com/cybre/birthday-visualizer/internal/dsp"
	"github.com/cybre/birthday-visualizer/internal/effects"
)

// ErrCollaboratorUnavailable is returned when the engine has no usable audio source.
// The engine still runs, sampling silence.
var ErrCollaboratorUnavailable = eris.New("audio source unavailable")

// State is the lifecycle state of an Engine.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Options carries the collaborators of an Engine. Zero values are valid.
type Options struct {
	Spawner effects.Spawner
	Rules   []effects.Rule
	// Rand drives spawn-rule probabilities. Nil seeds from config.Seed.
	Rand   *rand.Rand
	Logger *slog.Logger
	// OnReset runs whenever transient tasks are discarded, so owners can drop the
	// objects those tasks were animating.
	OnReset func()
}

// Engine owns every piece of mutable mapping state. Ticks never interleave.
type Engine struct {
	mu sync.Mutex

	cfg     config.Config
	logger  *slog.Logger
	onReset func()

	state    State
	source   dsp.Source
	sampler  *dsp.Sampler
	filter   *dsp.SmoothingFilter
	detector *beat.Detector

	registry   *effects.Registry
	tasks      *effects.TaskRunner
	dispatcher *effects.Dispatcher

	started  time.Time
	lastTick time.Time
	frame    uint64
	last     Snapshot
}

// New validates cfg and builds a stopped engine.
func New(cfg config.Config, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rng := opts.Rand
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}

	registry := effects.NewRegistry()
	tasks := effects.NewTaskRunner(logger)
	dispatcher := effects.NewDispatcher(registry, opts.Spawner, tasks, rng, logger)
	for _, rule := range opts.Rules {
		dispatcher.AddRule(rule)
	}

	e := &Engine{
		cfg:        cfg,
		logger:     logger,
		onReset:    opts.OnReset,
		registry:   registry,
		tasks:      tasks,
		dispatcher: dispatcher,
	}
	e.reinitialise()
	return e, nil
}

// Registry exposes the effect target registry. Targets may be added or removed at any time.
func (e *Engine) Registry() *effects.Registry {
	return e.registry
}

// Config returns the active configuration.
func (e *Engine) Config() config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Running reports whether the engine is ticking.
func (e *Engine) Running() bool {
	return e.State() == Running
}

// Start acquires src and resets all mapping state. Starting a running engine releases its
// current source first. A nil src leaves the engine running on silence and returns
// ErrCollaboratorUnavailable.
func (e *Engine) Start(src dsp.Source) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Running {
		e.releaseSource()
	}

	e.source = src
	e.reinitialise()
	e.state = Running
	e.logger.Info("visual engine started",
		slog.Int("bins", e.cfg.FFTWindowSize),
		slog.Bool("silent", src == nil),
	)

	if src == nil {
		e.logger.Warn("no audio source, visuals will idle")
		return eris.Wrap(ErrCollaboratorUnavailable, "engine started without a source")
	}
	return nil
}

// Stop halts the engine and releases its source. Stopping twice is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Stopped {
		return
	}
	e.releaseSource()
	e.state = Stopped
	e.last.Running = false
	e.logger.Info("visual engine stopped", slog.Uint64("frames", e.frame))
}

// Reconfigure validates cfg and applies it. A running engine keeps its source but restarts
// its mapping state from scratch.
func (e *Engine) Reconfigure(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg = cfg
	if s, ok := e.source.(interface{ SetSmoothing(float64) }); ok {
		s.SetSmoothing(cfg.AnalyserSmoothing)
	}
	e.reinitialise()
	e.logger.Info("visual engine reconfigured", slog.String("preset", cfg.Preset))
	return nil
}

// ApplyPreset switches to a named preset.
func (e *Engine) ApplyPreset(name string) error {
	cfg := e.Config()
	if err := cfg.ApplyPreset(name); err != nil {
		return err
	}
	return e.Reconfigure(cfg)
}

// Tick runs one frame of the pipeline. It is a no-op on a stopped engine, which returns
// its last snapshot.
func (e *Engine) Tick(now time.Time) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Running {
		return e.last
	}

	if e.started.IsZero() {
		e.started = now
		e.lastTick = now
	}
	dt := now.Sub(e.lastTick)
	if dt < 0 {
		dt = 0
	}
	e.lastTick = now
	e.frame++

	frame := e.sampler.Sample()
	raw := dsp.Aggregate(frame)
	smoothed := e.filter.Step(raw)
	fired := e.detector.Step(now, raw.Bass)
	bs := e.detector.State()

	sig := effects.Signals{
		Smoothed:  smoothed,
		Raw:       raw,
		Beat:      fired,
		BeatLevel: bs.Level,
		Threshold: bs.Threshold,
		Elapsed:   now.Sub(e.started),
		Delta:     dt,
	}
	report := e.dispatcher.Dispatch(sig)
	active := e.tasks.Advance(dt)

	e.last = Snapshot{
		Frame:     e.frame,
		Time:      now,
		Running:   true,
		Smoothed:  smoothed,
		Raw:       raw,
		Beat:      fired,
		BeatLevel: bs.Level,
		Threshold: bs.Threshold,
		Targets:   e.registry.Len(),
		Tasks:     active,
		Spawned:   report.Spawned,
		Removed:   report.Removed,
		Spectrum:  frame,
	}
	return e.last
}

// Snapshot returns the result of the most recent tick.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// reinitialise resets filter, detector and tasks. Callers hold e.mu.
func (e *Engine) reinitialise() {
	e.sampler = dsp.NewSampler(e.cfg.FFTWindowSize, e.source, e.logger)
	e.filter = dsp.NewSmoothingFilter(e.cfg.SmoothingWeights)
	e.detector = beat.NewDetector(e.cfg.BeatOptions())
	e.tasks.Clear()
	if e.onReset != nil {
		e.onReset()
	}
	e.started = time.Time{}
	e.lastTick = time.Time{}
	e.frame = 0
	e.last = Snapshot{Running: e.state == Running, Targets: e.registry.Len()}
}

// releaseSource drops the current source for good. Callers hold e.mu.
func (e *Engine) releaseSource() {
	if c, ok := e.source.(io.Closer); ok {
		if err := c.Close(); err != nil {
			e.logger.Warn("failed to release audio source", slog.Any("error", err))
		}
	}
	e.source = nil
	e.sampler = dsp.NewSampler(e.cfg.FFTWindowSize, nil, e.logger)
}
