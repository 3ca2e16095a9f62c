package influxdb

import (
	"context"
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// NewPoint builds a point for WritePoints.
//
// Example:
//
//	p := influxdb.NewPoint("azviot",
//	    map[string]string{"device": "thermostazv"},
//	    map[string]any{"relay": true, "absent": false, "targetf": 17.0},
//	    time.Now())
func NewPoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) *write.Point {
	return write.NewPoint(measurement, tags, fields, ts)
}

// WritePoints writes points in one request and waits for the server.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - points: Points to write to the configured bucket
//
// Returns:
//   - error: ErrNotConnected after Close, or ErrWriteFailed wrapping the cause
func (c *Client) WritePoints(ctx context.Context, points ...*write.Point) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if len(points) == 0 {
		return nil
	}

	if err := c.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
