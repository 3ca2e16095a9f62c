package thermostat

import (
	"context"
	"fmt"
	"time"

	"github.com/azviot/thermostazv/internal/protocol"
	"github.com/azviot/thermostazv/internal/watch"
)

// Logger defines the logging interface for the manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager runs the control loop and owns State.
type Manager struct {
	store    Store
	in       <-chan Command
	device   chan<- protocol.Command
	announce chan<- protocol.Command

	state     State
	broadcast *watch.Value[State]

	now      func() time.Time
	location *time.Location
	logger   Logger
}

// NewManager creates a Manager starting from initial.
//
// Parameters:
//   - store: Where every accepted command is persisted
//   - initial: State loaded at start-up (see LoadOrInit)
//   - in: Queue of thermostat commands
//   - device: Serial writer queue receiving Set when the relay must flip
func NewManager(store Store, initial State, in <-chan Command, device chan<- protocol.Command) *Manager {
	return &Manager{
		store:     store,
		in:        in,
		device:    device,
		state:     initial,
		broadcast: watch.New(initial),
		now:       time.Now,
		location:  time.Local,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetAnnounce sets a queue that also receives every relay change, so the
// bus can report it. Optional.
func (m *Manager) SetAnnounce(ch chan<- protocol.Command) {
	m.announce = ch
}

// SetClock replaces the clock used for the day/night schedule.
func (m *Manager) SetClock(now func() time.Time, loc *time.Location) {
	m.now = now
	if loc != nil {
		m.location = loc
	}
}

// State returns the read side of the state broadcast.
func (m *Manager) State() *watch.Value[State] {
	return m.broadcast
}

// Hour returns the local hour used by the schedule.
func (m *Manager) Hour() int {
	return m.now().In(m.location).Hour()
}

// Run handles commands until ctx is done or a store write fails.
func (m *Manager) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-m.in:
			if err := m.handle(ctx, cmd); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// handle applies one command, persists, and broadcasts a changed state.
func (m *Manager) handle(ctx context.Context, cmd Command) error {
	next := m.state

	switch c := cmd.(type) {
	case SetDay:
		next.Day = c.Value
	case SetNight:
		next.Night = c.Value
	case SetEmpty:
		next.Empty = c.Value
	case SetMorning:
		if !validHour(c.Hour) {
			m.logger.Warn("rejected thermostat command", "command", c.String(), "error", ErrInvalidHour)
			return nil
		}
		next.Morning = c.Hour
	case SetEvening:
		if !validHour(c.Hour) {
			m.logger.Warn("rejected thermostat command", "command", c.String(), "error", ErrInvalidHour)
			return nil
		}
		next.Evening = c.Hour
	case SetPresent:
		next.Present = c.Present
	case SetHot:
		next.Hot = c.Hot
	case Current:
		hour := m.Hour()
		next.Hot = m.state.WantHot(hour, c.Temperature)
		m.logger.Debug("temperature evaluated",
			"temperature", c.Temperature,
			"threshold", m.state.Threshold(hour),
			"hot", next.Hot,
		)
		if next.Hot != m.state.Hot {
			if err := m.switchRelay(ctx, next.Hot); err != nil {
				return err
			}
		}
	default:
		m.logger.Warn("unknown thermostat command", "command", fmt.Sprintf("%T", cmd))
		return nil
	}

	if err := m.store.Save(ctx, next); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	m.state = next

	if m.broadcast.Publish(next) {
		m.logger.Debug("thermostat state changed", "command", cmd.String())
	}
	return nil
}

// switchRelay queues Set for the device and, if configured, the bus.
func (m *Manager) switchRelay(ctx context.Context, hot bool) error {
	set := protocol.Set{Relay: protocol.RelayFor(hot)}
	m.logger.Info("switching relay", "relay", set.Relay.String())

	if err := send(ctx, m.device, set); err != nil {
		return err
	}
	if m.announce != nil {
		return send(ctx, m.announce, set)
	}
	return nil
}

func send(ctx context.Context, ch chan<- protocol.Command, cmd protocol.Command) error {
	select {
	case ch <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func validHour(h int) bool {
	return h >= 0 && h <= 23
}
