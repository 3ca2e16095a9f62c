package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/azviot/thermostazv/internal/protocol"
	"github.com/azviot/thermostazv/internal/status"
	"github.com/azviot/thermostazv/internal/thermostat"
	"github.com/azviot/thermostazv/internal/watch"
)

type fakeSink struct {
	mu     sync.Mutex
	writes [][]Point
	err    error
}

func (s *fakeSink) WritePoints(_ context.Context, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.writes = append(s.writes, points)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

var fixedNow = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func newTestReporter(sink Sink, state thermostat.State, st protocol.Status, interval time.Duration) *Reporter {
	return NewReporter(sink, watch.New(state), watch.New(st), Options{
		Interval: interval,
		Now:      func() time.Time { return fixedNow },
	})
}

func TestPoints(t *testing.T) {
	reading := protocol.Status{Relay: protocol.Hot, Sensor: protocol.SensorReading(1<<19, 3<<18)}

	tests := []struct {
		name       string
		state      thermostat.State
		status     protocol.Status
		wantPoints int
		wantTarget float64
	}{
		{
			name:       "no reading yet",
			state:      thermostat.DefaultState(),
			status:     status.Initial,
			wantPoints: 1,
			wantTarget: 17.0,
		},
		{
			name: "heating with reading",
			state: func() thermostat.State {
				s := thermostat.DefaultState()
				s.Hot = true
				return s
			}(),
			status:     reading,
			wantPoints: 2,
			wantTarget: 18.0,
		},
		{
			name: "absent",
			state: func() thermostat.State {
				s := thermostat.DefaultState()
				s.Present = false
				return s
			}(),
			status:     protocol.Status{Relay: protocol.Cold, Sensor: protocol.SensorFailure(protocol.SensorChecksum)},
			wantPoints: 1,
			wantTarget: 9.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReporter(&fakeSink{}, tt.state, tt.status, time.Minute)
			points := r.Points()

			if len(points) != tt.wantPoints {
				t.Fatalf("len(Points()) = %d, want %d", len(points), tt.wantPoints)
			}

			p := points[0]
			if p.Measurement != "azviot" || p.Tags["device"] != "thermostazv" {
				t.Errorf("point = %s %v, want azviot device=thermostazv", p.Measurement, p.Tags)
			}
			if !p.Time.Equal(fixedNow) {
				t.Errorf("Time = %v, want %v", p.Time, fixedNow)
			}
			if p.Fields["relay"] != tt.state.Hot {
				t.Errorf("relay = %v, want %v", p.Fields["relay"], tt.state.Hot)
			}
			if p.Fields["absent"] != !tt.state.Present {
				t.Errorf("absent = %v, want %v", p.Fields["absent"], !tt.state.Present)
			}
			if p.Fields["targetf"] != tt.wantTarget {
				t.Errorf("targetf = %v, want %v", p.Fields["targetf"], tt.wantTarget)
			}

			if tt.wantPoints == 2 {
				s := points[1]
				if s.Fields["Temperature"] != tt.status.Sensor.Celsius() {
					t.Errorf("Temperature = %v, want %v", s.Fields["Temperature"], tt.status.Sensor.Celsius())
				}
				if s.Fields["Humidity"] != 50.0 {
					t.Errorf("Humidity = %v, want 50", s.Fields["Humidity"])
				}
			}
		})
	}
}

func TestRun_WritesEachInterval(t *testing.T) {
	sink := &fakeSink{}
	r := newTestReporter(sink, thermostat.DefaultState(), status.Initial, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for sink.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("writes = %d, want at least 2", sink.count())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() after cancel = %v, want nil", err)
	}
}

func TestRun_SinkFailureIsFatal(t *testing.T) {
	sink := &fakeSink{err: errors.New("bucket not found")}
	r := newTestReporter(sink, thermostat.DefaultState(), status.Initial, 5*time.Millisecond)

	select {
	case err := <-runAsync(r):
		if !errors.Is(err, ErrSinkFailed) {
			t.Errorf("Run() = %v, want ErrSinkFailed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after sink failure")
	}
}

func TestNewReporter_Defaults(t *testing.T) {
	r := NewReporter(&fakeSink{}, watch.New(thermostat.DefaultState()), watch.New(status.Initial), Options{})

	if r.opts.Interval != DefaultInterval {
		t.Errorf("Interval = %v, want %v", r.opts.Interval, DefaultInterval)
	}
	if r.opts.Measurement != "azviot" || r.opts.Device != "thermostazv" {
		t.Errorf("Measurement/Device = %q/%q", r.opts.Measurement, r.opts.Device)
	}
}

func runAsync(r *Reporter) <-chan error {
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()
	return done
}
