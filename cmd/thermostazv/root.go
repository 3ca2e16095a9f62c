package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/azviot/thermostazv/internal/infrastructure/config"
	"github.com/azviot/thermostazv/internal/uart"
)

// defaultConfigPath is used when neither --config nor THERMOSTAZV_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

// options holds the persistent flags.
type options struct {
	configPath string
	port       string
	baud       int
	url        string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "thermostazv",
		Short: "Serial thermostat to MQTT/InfluxDB bridge",
		Long: `thermostazv drives a heater relay through a serial thermostat controller.

It answers device pings, caches the device status, switches the relay from
room temperatures received over MQTT, publishes events on a log topic and
records telemetry in InfluxDB.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path

The WebSocket password is read from THERMOSTAZV_SERIAL_PASSWORD.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBridge(cmd.Context(), opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Configuration file (default $THERMOSTAZV_CONFIG or "+defaultConfigPath+")")
	flags.StringVarP(&opts.port, "port", "p", "", "Serial port device")
	flags.IntVarP(&opts.baud, "baud", "b", 0, "Baud rate (serial only)")
	flags.StringVarP(&opts.url, "url", "u", "", "WebSocket serial bridge URL (ws:// or wss://)")

	root.AddCommand(newRunCmd(opts), newMonitorCmd(opts), newSendCmd(opts))
	return root
}

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bridge (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBridge(cmd.Context(), opts)
		},
	}
}

// loadConfig resolves the configuration file and applies flag overrides.
// A missing default file falls back to built-in defaults; an explicitly
// named file must exist.
func loadConfig(opts *options) (*config.Config, string, error) {
	path := opts.configPath
	if path == "" {
		path = os.Getenv("THERMOSTAZV_CONFIG")
	}
	if path == "" {
		path = defaultConfigPath
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}

	if opts.port != "" {
		cfg.Serial.Port = opts.port
	}
	if opts.baud != 0 {
		cfg.Serial.BaudRate = opts.baud
	}
	if opts.url != "" {
		cfg.Serial.WebSocket.URL = opts.url
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("validating flags: %w", err)
	}
	return cfg, path, nil
}

// serialConfig maps the serial section onto the link configuration.
func serialConfig(cfg *config.Config) uart.Config {
	return uart.Config{
		Port:               cfg.Serial.Port,
		BaudRate:           cfg.Serial.BaudRate,
		ReadTimeout:        cfg.GetReadTimeout(),
		URL:                cfg.Serial.WebSocket.URL,
		Username:           cfg.Serial.WebSocket.Username,
		Password:           cfg.Serial.WebSocket.Password,
		InsecureSkipVerify: cfg.Serial.WebSocket.InsecureSkipVerify,
	}
}

// describeLink names the link for log and console output.
func describeLink(cfg uart.Config) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf("%s @ %d baud", cfg.Port, cfg.BaudRate)
}
