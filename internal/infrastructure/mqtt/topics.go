package mqtt

import (
	"strings"

	"github.com/azviot/thermostazv/internal/infrastructure/config"
)

// settingsSegment separates the settings prefix from the field name.
const settingsSegment = "/set/"

// Availability payloads. The will and the graceful close both publish
// PayloadOffline, retained.
const (
	PayloadOnline  = "Online"
	PayloadOffline = "Offline"
)

// Topics wraps the configured topic names.
//
//	topics := mqtt.NewTopics(cfg.MQTT.Topics)
//	topics.Setting("day")
//	// Returns: "/azv/thermostazv/set/day"
type Topics struct {
	cfg config.MQTTTopicsConfig
}

// NewTopics creates topic builders from configuration.
func NewTopics(cfg config.MQTTTopicsConfig) Topics {
	cfg.Settings = strings.TrimSuffix(cfg.Settings, "/")
	return Topics{cfg: cfg}
}

// Command is the topic carrying c/f/s/p orders.
func (t Topics) Command() string { return t.cfg.Command }

// Presence is the topic carrying the presence marker.
func (t Topics) Presence() string { return t.cfg.Presence }

// Sensor is the JSON telemetry topic of the room sensor.
func (t Topics) Sensor() string { return t.cfg.Sensor }

// Log is the topic receiving human-readable events.
func (t Topics) Log() string { return t.cfg.Log }

// Availability is the retained Online/Offline topic.
func (t Topics) Availability() string { return t.cfg.Availability }

// Setting returns the topic for one thermostat setting.
//
// Example: /azv/thermostazv/set/day
func (t Topics) Setting(field string) string {
	return t.cfg.Settings + settingsSegment + field
}

// AllSettings is the wildcard subscription for every setting.
//
// Example: /azv/thermostazv/set/+
func (t Topics) AllSettings() string {
	return t.Setting("+")
}

// SettingField extracts the field from a settings topic. It reports false
// for topics outside the settings prefix or with extra levels.
func (t Topics) SettingField(topic string) (string, bool) {
	field, ok := strings.CutPrefix(topic, t.cfg.Settings+settingsSegment)
	if !ok || field == "" || strings.Contains(field, "/") {
		return "", false
	}
	return field, true
}
