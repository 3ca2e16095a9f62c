package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Status represents the current state of a supervised task.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusFailed  Status = "failed"
)

// Default timings.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultGracePeriod  = 10 * time.Second
)

var (
	// ErrTaskExited is returned when a task stopped without error before
	// shutdown was requested.
	ErrTaskExited = errors.New("supervisor: task exited")

	// ErrGracePeriodExceeded is returned when tasks were still running
	// after the grace period.
	ErrGracePeriodExceeded = errors.New("supervisor: tasks did not stop within grace period")

	// ErrTaskPanic wraps a panic recovered from a task.
	ErrTaskPanic = errors.New("supervisor: task panicked")
)

// TaskFunc is a long-lived task. It must return when ctx is done.
type TaskFunc func(ctx context.Context) error

// Config holds supervisor timings.
type Config struct {
	// PollInterval is how often the supervisor checks for a finished task.
	PollInterval time.Duration

	// GracePeriod bounds the wait for tasks after shutdown is signalled.
	GracePeriod time.Duration
}

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type task struct {
	name string
	fn   TaskFunc

	status Status
	err    error
	seq    int
	done   chan struct{}
}

// Supervisor owns a set of tasks sharing one shutdown signal.
type Supervisor struct {
	config Config
	logger Logger

	mu       sync.RWMutex
	tasks    []*task
	finished int
	started  bool
}

// New creates a Supervisor, applying defaults for zero timings.
func New(cfg Config) *Supervisor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	return &Supervisor{
		config: cfg,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// Go registers a task. Tasks registered after Run has started are ignored.
func (s *Supervisor) Go(name string, fn TaskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.logger.Warn("task registered after start, ignoring", "task", name)
		return
	}
	s.tasks = append(s.tasks, &task{
		name:   name,
		fn:     fn,
		status: StatusPending,
		done:   make(chan struct{}),
	})
}

// Run starts every task and blocks until all of them have stopped or the
// grace period has elapsed after shutdown.
//
// Shutdown starts when any task returns or ctx is done. Run returns:
//   - the first task error, in the order tasks finished;
//   - ErrTaskExited when a task returned nil before shutdown;
//   - ErrGracePeriodExceeded (joined with any task error) when some task
//     outlived the grace period;
//   - nil when ctx was cancelled and every task returned cleanly.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("supervisor: already started")
	}
	s.started = true
	tasks := append([]*task(nil), s.tasks...)
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, t := range tasks {
		s.setStatus(t, StatusRunning)
		go s.runTask(runCtx, t)
	}
	s.logger.Info("tasks started", "count", len(tasks))

	s.waitForShutdown(ctx)

	shutdownRequested := ctx.Err() != nil
	s.logger.Info("shutting down tasks", "requested", shutdownRequested)
	cancel()

	stuck := s.join(tasks)
	return s.result(shutdownRequested, stuck)
}

// runTask runs one task and records how it ended.
func (s *Supervisor) runTask(ctx context.Context, t *task) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
		s.finish(t, err)
	}()

	err = t.fn(ctx)
}

// finish records the end of a task.
func (s *Supervisor) finish(t *task, err error) {
	s.mu.Lock()
	s.finished++
	t.seq = s.finished
	t.err = err
	if err != nil {
		t.status = StatusFailed
	} else {
		t.status = StatusStopped
	}
	s.mu.Unlock()
	close(t.done)

	if err != nil {
		s.logger.Error("task failed", "task", t.name, "error", err)
	} else {
		s.logger.Info("task stopped", "task", t.name)
	}
}

// waitForShutdown polls until a task has finished or ctx is done.
func (s *Supervisor) waitForShutdown(ctx context.Context) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			finished := s.finished
			s.mu.RUnlock()
			if finished > 0 {
				return
			}
		}
	}
}

// join waits up to the grace period and returns the tasks still running.
func (s *Supervisor) join(tasks []*task) []string {
	deadline := time.NewTimer(s.config.GracePeriod)
	defer deadline.Stop()

	for _, t := range tasks {
		select {
		case <-t.done:
		case <-deadline.C:
			var stuck []string
			for _, r := range tasks {
				select {
				case <-r.done:
				default:
					stuck = append(stuck, r.name)
				}
			}
			s.logger.Error("grace period exceeded", "tasks", stuck, "grace_period", s.config.GracePeriod)
			return stuck
		}
	}
	return nil
}

func (s *Supervisor) result(shutdownRequested bool, stuck []string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ended := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.seq > 0 {
			ended = append(ended, t)
		}
	}
	sort.Slice(ended, func(i, j int) bool { return ended[i].seq < ended[j].seq })

	var first error
	for _, t := range ended {
		if t.err != nil {
			first = fmt.Errorf("task %s: %w", t.name, t.err)
			break
		}
	}
	if first == nil && !shutdownRequested && len(ended) > 0 {
		first = fmt.Errorf("%w: %s", ErrTaskExited, ended[0].name)
	}

	if len(stuck) > 0 {
		grace := fmt.Errorf("%w: %s", ErrGracePeriodExceeded, strings.Join(stuck, ", "))
		if first != nil {
			return errors.Join(first, grace)
		}
		return grace
	}
	return first
}

func (s *Supervisor) setStatus(t *task, status Status) {
	s.mu.Lock()
	t.status = status
	s.mu.Unlock()
}

// TaskStatus describes one task for logs.
type TaskStatus struct {
	Name   string
	Status Status
	Err    error
}

// Status reports every task in registration order.
func (s *Supervisor) Status() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TaskStatus, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = TaskStatus{Name: t.name, Status: t.status, Err: t.err}
	}
	return out
}
