package effects

import (
	"log/slog"
	"math/rand"

	"github.com/rotisserie/eris"
)

// SpawnKind names a transient effect the scene knows how to create.
type SpawnKind string

const (
	SpawnMusicParticle SpawnKind = "music-particle"
	SpawnFireworks     SpawnKind = "fireworks"
	SpawnConfetti      SpawnKind = "confetti"
	SpawnCameraShake   SpawnKind = "camera-shake"
	SpawnFlash         SpawnKind = "flash"
)

// SpawnRequest asks the scene for a transient effect. Requests are fire-and-forget.
type SpawnRequest struct {
	Kind      SpawnKind
	Intensity float64
	Count     int
	Signals   Signals
}

// Spawner creates transient effects on request and returns the tasks that animate them.
type Spawner interface {
	Spawn(SpawnRequest) []Task
}

// Rule emits a spawn request when its condition holds, with the given probability.
// A Probability of 0 or at least 1 means the rule fires whenever the condition holds.
type Rule struct {
	Name        string
	When        func(Signals) bool
	Probability float64
	Request     func(Signals) SpawnRequest
}

// Report summarises one dispatch pass.
type Report struct {
	Applied int
	Failed  int
	Removed []string
	Spawned []SpawnKind
}

// Dispatcher fans signals out to every registered target once per frame, in
// registration order, then evaluates spawn rules.
type Dispatcher struct {
	registry *Registry
	rules    []Rule
	spawner  Spawner
	tasks    *TaskRunner
	rng      *rand.Rand
	logger   *slog.Logger
}

// NewDispatcher wires a dispatcher to its registry. spawner may be nil, in which case
// rules are still evaluated but nothing is spawned. Tasks returned by the spawner are
// scheduled on tasks when it is non-nil.
func NewDispatcher(registry *Registry, spawner Spawner, tasks *TaskRunner, rng *rand.Rand, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Dispatcher{
		registry: registry,
		spawner:  spawner,
		tasks:    tasks,
		rng:      rng,
		logger:   logger,
	}
}

// Registry returns the target registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// AddRule appends a spawn rule.
func (d *Dispatcher) AddRule(r Rule) {
	d.rules = append(d.rules, r)
}

// Dispatch applies sig to every target. Invalid targets are dropped from the registry,
// other failures are logged; neither stops the pass.
func (d *Dispatcher) Dispatch(sig Signals) Report {
	var report Report

	for _, target := range d.registry.snapshot() {
		err := applySafely(target, sig)
		switch {
		case err == nil:
			report.Applied++
		case eris.Is(err, ErrTargetInvalid):
			if d.registry.Unregister(target.Name()) {
				d.logger.Debug("dropped invalid effect target", slog.String("target", target.Name()))
			}
			report.Removed = append(report.Removed, target.Name())
		default:
			report.Failed++
			d.logger.Warn("effect target failed",
				slog.String("target", target.Name()),
				slog.Any("error", err),
			)
		}
	}

	for _, rule := range d.rules {
		if rule.When == nil || !rule.When(sig) {
			continue
		}
		if rule.Probability > 0 && rule.Probability < 1 && d.rng.Float64() >= rule.Probability {
			continue
		}
		req := SpawnRequest{Signals: sig}
		if rule.Request != nil {
			req = rule.Request(sig)
			req.Signals = sig
		}
		if d.spawner != nil {
			for _, task := range d.spawner.Spawn(req) {
				if d.tasks != nil {
					d.tasks.Add(task)
				}
			}
		}
		report.Spawned = append(report.Spawned, req.Kind)
	}

	return report
}

func applySafely(target Target, sig Signals) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Wrapf(ErrTargetInvalid, "target %q panicked: %v", target.Name(), r)
		}
	}()
	return target.Apply(sig)
}
