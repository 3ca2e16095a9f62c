// Package influxdb provides the InfluxDB v2 sink for thermostazv telemetry.
//
// It wraps the official influxdb-client-go v2 library with connection
// checks and a blocking writer, so that a write failure reaches the
// caller as an error.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without telemetry
//	}
//	defer client.Close()
//
//	err = client.WritePoints(ctx, influxdb.NewPoint("azviot",
//	    map[string]string{"device": "thermostazv"},
//	    map[string]any{"Temperature": 18.2, "Humidity": 61.0},
//	    time.Now()))
package influxdb
