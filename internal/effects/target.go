package effects

import (
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cybre/birthday-visualizer/internal/dsp"
)

var (
	// ErrTargetInvalid is returned by a target whose visual object no longer exists.
	ErrTargetInvalid = eris.New("effect target is no longer valid")
	// ErrDuplicateTarget is returned when registering a name that is already taken.
	ErrDuplicateTarget = eris.New("effect target already registered")
)

// Signals is everything a target may react to on one frame.
type Signals struct {
	Smoothed  dsp.BandEnergies
	Raw       dsp.BandEnergies
	Beat      bool
	BeatLevel float64
	Threshold float64
	// Elapsed is wall-clock time since the engine started; targets derive idle
	// animation phases from it.
	Elapsed time.Duration
	Delta   time.Duration
}

// Seconds returns Elapsed in seconds.
func (s Signals) Seconds() float64 {
	return s.Elapsed.Seconds()
}

// Target is a named visual property driven by the dispatcher.
type Target interface {
	Name() string
	Apply(Signals) error
}

type funcTarget struct {
	name string
	fn   func(Signals) error
}

func (t funcTarget) Name() string { return t.name }

func (t funcTarget) Apply(sig Signals) error { return t.fn(sig) }

// NewTarget adapts a function into a Target.
func NewTarget(name string, fn func(Signals) error) Target {
	return funcTarget{name: name, fn: fn}
}

// Registry holds targets in registration order. It is safe to mutate while a dispatch
// pass is running; the pass works on a copy.
type Registry struct {
	mu      sync.Mutex
	targets []Target
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a target.
func (r *Registry) Register(t Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(t.Name()) >= 0 {
		return eris.Wrapf(ErrDuplicateTarget, "target %q", t.Name())
	}
	r.targets = append(r.targets, t)
	return nil
}

// Unregister removes the named target and reports whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(name)
	if idx < 0 {
		return false
	}
	r.targets = slices.Delete(r.targets, idx, idx+1)
	return true
}

// Names lists registered target names in order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.targets))
	for i, t := range r.targets {
		names[i] = t.Name()
	}
	return names
}

// Len returns the number of registered targets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.targets)
}

func (r *Registry) snapshot() []Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.targets)
}

func (r *Registry) indexOf(name string) int {
	return slices.IndexFunc(r.targets, func(t Target) bool { return t.Name() == name })
}
