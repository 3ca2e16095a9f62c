package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for thermostazv.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Serial     SerialConfig     `yaml:"serial"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Database   DatabaseConfig   `yaml:"database"`
	Thermostat ThermostatConfig `yaml:"thermostat"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SerialConfig describes the link to the device.
// Either Port (local UART) or WebSocket.URL (remote serial bridge) must be set;
// the WebSocket URL wins when both are present.
type SerialConfig struct {
	Port        string          `yaml:"port"`
	BaudRate    int             `yaml:"baud_rate"`
	ReadTimeout int             `yaml:"read_timeout_ms"`
	QueueSize   int             `yaml:"queue_size"`
	WebSocket   WebSocketConfig `yaml:"websocket"`
}

// WebSocketConfig contains settings for a WebSocket serial bridge.
type WebSocketConfig struct {
	URL                string `yaml:"url"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Topics    MQTTTopicsConfig    `yaml:"topics"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// MQTTTopicsConfig names every topic the bridge reads or writes.
type MQTTTopicsConfig struct {
	// Command carries single-character orders: c, f, s, p.
	Command string `yaml:"command"`

	// Presence carries a free-text presence marker.
	Presence string `yaml:"presence"`

	// Sensor is a third-party JSON telemetry topic (e.g. a Tasmota SENSOR topic).
	Sensor string `yaml:"sensor"`

	// Log receives the human-readable event stream.
	Log string `yaml:"log"`

	// Availability holds the retained Online/Offline marker and the last will.
	Availability string `yaml:"availability"`

	// Settings is the prefix for thermostat setters: <prefix>/set/<field>.
	Settings string `yaml:"settings"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// ThermostatConfig contains the control loop settings.
type ThermostatConfig struct {
	// Defaults seed the persisted state on first start.
	Defaults ThermostatDefaults `yaml:"defaults"`

	// PresenceMarker is the presence payload meaning "someone is home".
	PresenceMarker string `yaml:"presence_marker"`

	// SensorPath is the dotted JSON path of the temperature in sensor payloads.
	SensorPath string `yaml:"sensor_path"`

	// Timezone selects the clock used for the day/night schedule.
	Timezone string `yaml:"timezone"`
}

// ThermostatDefaults are the initial targets and schedule.
type ThermostatDefaults struct {
	Day     float64 `yaml:"day"`
	Night   float64 `yaml:"night"`
	Empty   float64 `yaml:"empty"`
	Morning int     `yaml:"morning"`
	Evening int     `yaml:"evening"`
	Present bool    `yaml:"present"`
}

// TelemetryConfig contains the time-series reporter settings.
type TelemetryConfig struct {
	Interval    int    `yaml:"interval"`
	Measurement string `yaml:"measurement"`
	Device      string `yaml:"device"`
}

// SupervisorConfig contains task supervision settings (seconds).
type SupervisorConfig struct {
	PollInterval int `yaml:"poll_interval"`
	GracePeriod  int `yaml:"grace_period"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: THERMOSTAZV_SECTION_KEY
// For example: THERMOSTAZV_SERIAL_PORT, THERMOSTAZV_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:        "/dev/ttyUSB0",
			BaudRate:    115200,
			ReadTimeout: 100,
			QueueSize:   32,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "thermostazv",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			Topics: MQTTTopicsConfig{
				Command:      "/azv/thermostazv/cmd",
				Presence:     "/azv/thermostazv/presence",
				Sensor:       "tele/tasmota_43D8FD/SENSOR",
				Log:          "/azv/thermostazv/log",
				Availability: "/azv/thermostazv/status",
				Settings:     "/azv/thermostazv",
			},
		},
		InfluxDB: InfluxDBConfig{
			Enabled: true,
			URL:     "http://localhost:8086",
			Org:     "azviot",
			Bucket:  "azviot",
		},
		Database: DatabaseConfig{
			Path:        defaultDatabasePath(),
			WALMode:     true,
			BusyTimeout: 5,
		},
		Thermostat: ThermostatConfig{
			Defaults: ThermostatDefaults{
				Day:     17.5,
				Night:   17.0,
				Empty:   10.0,
				Morning: 6,
				Evening: 23,
				Present: true,
			},
			PresenceMarker: "présent",
			SensorPath:     "SI7021.Temperature",
			Timezone:       "Local",
		},
		Telemetry: TelemetryConfig{
			Interval:    300,
			Measurement: "azviot",
			Device:      "thermostazv",
		},
		Supervisor: SupervisorConfig{
			PollInterval: 5,
			GracePeriod:  10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// defaultDatabasePath places the state database in the per-user config directory.
func defaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "data", "state.db")
	}
	return filepath.Join(dir, "thermostazv", "state.db")
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: THERMOSTAZV_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Serial
	if v := os.Getenv("THERMOSTAZV_SERIAL_PORT"); v != "" {
		cfg.Serial.Port = v
	}
	if v := os.Getenv("THERMOSTAZV_SERIAL_BAUD_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Serial.BaudRate = n
		}
	}
	if v := os.Getenv("THERMOSTAZV_SERIAL_URL"); v != "" {
		cfg.Serial.WebSocket.URL = v
	}
	if v := os.Getenv("THERMOSTAZV_SERIAL_PASSWORD"); v != "" {
		cfg.Serial.WebSocket.Password = v
	}

	// MQTT
	if v := os.Getenv("THERMOSTAZV_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("THERMOSTAZV_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("THERMOSTAZV_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("THERMOSTAZV_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("THERMOSTAZV_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Database
	if v := os.Getenv("THERMOSTAZV_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Logging
	if v := os.Getenv("THERMOSTAZV_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Every problem is collected so a single run reports all of them.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Serial validation
	if c.Serial.Port == "" && c.Serial.WebSocket.URL == "" {
		errs = append(errs, "serial.port or serial.websocket.url is required")
	}
	if c.Serial.WebSocket.URL == "" && c.Serial.BaudRate <= 0 {
		errs = append(errs, "serial.baud_rate must be positive")
	}
	if c.Serial.ReadTimeout <= 0 {
		errs = append(errs, "serial.read_timeout_ms must be positive")
	}
	if c.Serial.QueueSize <= 0 {
		errs = append(errs, "serial.queue_size must be positive")
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	topics := map[string]string{
		"command":      c.MQTT.Topics.Command,
		"presence":     c.MQTT.Topics.Presence,
		"sensor":       c.MQTT.Topics.Sensor,
		"log":          c.MQTT.Topics.Log,
		"availability": c.MQTT.Topics.Availability,
		"settings":     c.MQTT.Topics.Settings,
	}
	for _, name := range []string{"command", "presence", "sensor", "log", "availability", "settings"} {
		if strings.TrimSpace(topics[name]) == "" {
			errs = append(errs, fmt.Sprintf("mqtt.topics.%s is required", name))
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// Thermostat validation
	d := c.Thermostat.Defaults
	if d.Morning < 0 || d.Morning > 23 || d.Evening < 0 || d.Evening > 23 {
		errs = append(errs, "thermostat.defaults.morning and evening must be between 0 and 23")
	}
	if c.Thermostat.SensorPath == "" {
		errs = append(errs, "thermostat.sensor_path is required")
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("thermostat.timezone: %v", err))
	}

	// Telemetry and supervisor validation
	if c.Telemetry.Interval <= 0 {
		errs = append(errs, "telemetry.interval must be positive")
	}
	if c.Telemetry.Measurement == "" {
		errs = append(errs, "telemetry.measurement is required")
	}
	if c.Supervisor.PollInterval <= 0 || c.Supervisor.GracePeriod <= 0 {
		errs = append(errs, "supervisor.poll_interval and grace_period must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location returns the time zone used by the thermostat schedule.
func (c *Config) Location() (*time.Location, error) {
	switch c.Thermostat.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Thermostat.Timezone)
	}
}

// GetReadTimeout returns the serial read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Serial.ReadTimeout) * time.Millisecond
}

// GetTelemetryInterval returns the reporting period as a Duration.
func (c *Config) GetTelemetryInterval() time.Duration {
	return time.Duration(c.Telemetry.Interval) * time.Second
}

// GetPollInterval returns the supervisor polling period as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Supervisor.PollInterval) * time.Second
}

// GetGracePeriod returns the shutdown grace period as a Duration.
func (c *Config) GetGracePeriod() time.Duration {
	return time.Duration(c.Supervisor.GracePeriod) * time.Second
}
