// Package logging provides structured logging for thermostazv.
//
// It wraps Go's standard log/slog package so that every component logs
// with the same handler, level and default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("uart").Info("port opened", "port", cfg.Serial.Port)
//
// Never log the MQTT password, the InfluxDB token or bridge credentials.
package logging
