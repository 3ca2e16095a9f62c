// Package telemetry periodically reports the thermostat and sensor state
// to a time-series sink.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/azviot/thermostazv/internal/protocol"
	"github.com/azviot/thermostazv/internal/thermostat"
	"github.com/azviot/thermostazv/internal/watch"
)

// Defaults used when Options leaves a field empty.
const (
	DefaultInterval    = 300 * time.Second
	DefaultMeasurement = "azviot"
	DefaultDevice      = "thermostazv"
)

// ErrSinkFailed wraps a failed write; it ends the reporter.
var ErrSinkFailed = errors.New("telemetry: sink write failed")

// Point is one time-series record.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
	Time        time.Time
}

// Sink stores points. Implemented by the InfluxDB adapter.
type Sink interface {
	WritePoints(ctx context.Context, points []Point) error
}

// Logger is the logging interface used by the Reporter.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Options configures a Reporter.
type Options struct {
	// Interval between reports. Default: 300s.
	Interval time.Duration

	// Measurement name. Default: azviot.
	Measurement string

	// Device is the value of the device tag. Default: thermostazv.
	Device string

	// Hour returns the local hour used to compute the threshold.
	// Default: time.Now().Hour().
	Hour func() int

	// Now stamps the points. Default: time.Now.
	Now func() time.Time
}

// Reporter writes one or two points per interval.
type Reporter struct {
	sink       Sink
	thermostat *watch.Value[thermostat.State]
	status     *watch.Value[protocol.Status]
	opts       Options
	logger     Logger
}

// NewReporter creates a Reporter reading both state broadcasts.
func NewReporter(sink Sink, state *watch.Value[thermostat.State], status *watch.Value[protocol.Status], opts Options) *Reporter {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Measurement == "" {
		opts.Measurement = DefaultMeasurement
	}
	if opts.Device == "" {
		opts.Device = DefaultDevice
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Hour == nil {
		now := opts.Now
		opts.Hour = func() int { return now().Hour() }
	}

	return &Reporter{
		sink:       sink,
		thermostat: state,
		status:     status,
		opts:       opts,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the reporter.
func (r *Reporter) SetLogger(logger Logger) {
	r.logger = logger
}

// Run reports every interval until ctx is done. The first report is sent
// one interval after start. A sink failure is returned.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Report(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// Report writes the current points once.
func (r *Reporter) Report(ctx context.Context) error {
	points := r.Points()
	if err := r.sink.WritePoints(ctx, points); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkFailed, err)
	}
	r.logger.Debug("telemetry written", "points", len(points))
	return nil
}

// Points builds the records for the current state: the thermostat point
// always, the sensor point only when the last reading succeeded.
func (r *Reporter) Points() []Point {
	now := r.opts.Now()
	tags := map[string]string{"device": r.opts.Device}
	state := r.thermostat.Load()

	points := []Point{{
		Measurement: r.opts.Measurement,
		Tags:        tags,
		Fields: map[string]any{
			"relay":   state.Hot,
			"absent":  !state.Present,
			"targetf": state.Threshold(r.opts.Hour()),
		},
		Time: now,
	}}

	if sensor := r.status.Load().Sensor; sensor.OK {
		points = append(points, Point{
			Measurement: r.opts.Measurement,
			Tags:        tags,
			Fields: map[string]any{
				"Temperature": sensor.Celsius(),
				"Humidity":    sensor.Humidity(),
			},
			Time: now,
		})
	}
	return points
}
