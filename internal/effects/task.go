package effects

import (
	"log/slog"
	"sync"
	"time"
)

// Task is a short-lived animation advanced once per frame. Step returns false once the
// task has finished and should be discarded.
type Task interface {
	Step(dt time.Duration) bool
}

// TaskFunc adapts a function into a Task.
type TaskFunc func(dt time.Duration) bool

func (f TaskFunc) Step(dt time.Duration) bool { return f(dt) }

// TaskRunner owns the live transient tasks. Tasks may add new tasks while being stepped;
// those start on the next Advance.
type TaskRunner struct {
	mu     sync.Mutex
	tasks  []Task
	logger *slog.Logger
}

func NewTaskRunner(logger *slog.Logger) *TaskRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskRunner{logger: logger}
}

// Add schedules a task.
func (r *TaskRunner) Add(t Task) {
	r.mu.Lock()
	r.tasks = append(r.tasks, t)
	r.mu.Unlock()
}

// Advance steps every task by dt and returns how many are still running.
func (r *TaskRunner) Advance(dt time.Duration) int {
	r.mu.Lock()
	current := r.tasks
	r.tasks = nil
	r.mu.Unlock()

	alive := current[:0]
	for _, t := range current {
		if r.step(t, dt) {
			alive = append(alive, t)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(alive, r.tasks...)
	return len(r.tasks)
}

// Len returns the number of scheduled tasks.
func (r *TaskRunner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Clear drops every task without finishing it.
func (r *TaskRunner) Clear() {
	r.mu.Lock()
	r.tasks = nil
	r.mu.Unlock()
}

func (r *TaskRunner) step(t Task, dt time.Duration) (alive bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("transient task panicked", slog.Any("panic", rec))
			alive = false
		}
	}()
	return t.Step(dt)
}
