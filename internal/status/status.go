// Package status owns the cache of the last Status reported by the device.
//
// The Manager is the only writer; everyone else reads through the watch
// returned by Cache.
package status

import (
	"context"

	"github.com/azviot/thermostazv/internal/protocol"
	"github.com/azviot/thermostazv/internal/watch"
)

// Initial is the cached status before the device has reported anything.
var Initial = protocol.Status{
	Relay:  protocol.Cold,
	Sensor: protocol.SensorFailure(protocol.SensorUninitialized),
}

// Logger is the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Manager applies Status reports from the serial reader to the cache.
type Manager struct {
	in     <-chan protocol.Status
	cache  *watch.Value[protocol.Status]
	logger Logger
}

// NewManager creates a Manager reading reports from in.
func NewManager(in <-chan protocol.Status) *Manager {
	return &Manager{
		in:     in,
		cache:  watch.New(Initial),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Cache returns the read side of the status cache.
func (m *Manager) Cache() *watch.Value[protocol.Status] {
	return m.cache
}

// Run applies reports until ctx is done. Identical consecutive reports
// are absorbed without a broadcast.
func (m *Manager) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-m.in:
			if m.cache.Publish(s) {
				m.logger.Debug("device status changed", "status", s.String())
			}
		}
	}
}
