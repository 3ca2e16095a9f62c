package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/azviot/thermostazv/internal/protocol"
	"github.com/azviot/thermostazv/internal/thermostat"
)

// RunReceive routes inbound messages until ctx is done. Bad payloads are
// logged and dropped; it only returns on shutdown.
func (b *Bridge) RunReceive(ctx context.Context) error {
	defer b.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-b.inbound:
			if !b.route(ctx, msg) {
				return nil
			}
		}
	}
}

// route handles one message. It returns false once ctx is done.
func (b *Bridge) route(ctx context.Context, msg Message) bool {
	logger := b.getLogger()
	logger.Debug("mqtt received", "topic", msg.Topic, "payload", string(msg.Payload))

	topics := b.opts.Topics
	switch msg.Topic {
	case topics.Command():
		return b.handleCommand(ctx, msg.Payload)
	case topics.Presence():
		present := string(msg.Payload) == b.opts.PresenceMarker
		return send(ctx, b.opts.Thermostat, thermostat.Command(thermostat.SetPresent{Present: present}))
	case topics.Sensor():
		t, err := sensorValue(msg.Payload, b.sensorPath)
		if err != nil {
			logger.Warn("dropping sensor payload", "topic", msg.Topic, "error", err)
			return true
		}
		return send(ctx, b.opts.Thermostat, thermostat.Command(thermostat.Current{Temperature: t}))
	}

	if field, ok := topics.SettingField(msg.Topic); ok {
		cmd, err := parseSetting(field, string(msg.Payload))
		if err != nil {
			logger.Warn("dropping setting", "topic", msg.Topic, "error", err)
			return true
		}
		return send(ctx, b.opts.Thermostat, cmd)
	}

	logger.Warn("message on unexpected topic", "topic", msg.Topic)
	return true
}

// handleCommand maps the single-character orders.
func (b *Bridge) handleCommand(ctx context.Context, payload []byte) bool {
	switch string(payload) {
	case "c":
		return send(ctx, b.opts.Device, protocol.Command(protocol.Set{Relay: protocol.Hot}))
	case "f":
		return send(ctx, b.opts.Device, protocol.Command(protocol.Set{Relay: protocol.Cold}))
	case "p":
		return send(ctx, b.opts.Device, protocol.Command(protocol.Ping{}))
	case "s":
		return send(ctx, b.opts.Publish, protocol.Command(b.opts.Status.Load()))
	default:
		b.getLogger().Warn("unknown order", "payload", string(payload))
		return true
	}
}

// sensorValue extracts the number at path from a JSON object.
func sensorValue(payload []byte, path []string) (float64, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("decoding sensor JSON: %w", err)
	}

	for _, key := range path {
		obj, ok := v.(map[string]any)
		if !ok {
			return 0, fmt.Errorf("%w: %q is not an object", ErrBadSensorPayload, key)
		}
		if v, ok = obj[key]; !ok {
			return 0, fmt.Errorf("%w: missing %q", ErrBadSensorPayload, key)
		}
	}

	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrBadSensorPayload, v)
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadSensorPayload, err)
	}
	return f, nil
}

// parseSetting builds the thermostat setter for a settings field.
func parseSetting(field, raw string) (thermostat.Command, error) {
	value := strings.TrimSpace(raw)

	switch field {
	case "day", "night", "empty":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", field, err)
		}
		switch field {
		case "day":
			return thermostat.SetDay{Value: f}, nil
		case "night":
			return thermostat.SetNight{Value: f}, nil
		default:
			return thermostat.SetEmpty{Value: f}, nil
		}
	case "morning", "evening":
		h, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", field, err)
		}
		if field == "morning" {
			return thermostat.SetMorning{Hour: h}, nil
		}
		return thermostat.SetEvening{Hour: h}, nil
	case "present", "hot":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", field, err)
		}
		if field == "present" {
			return thermostat.SetPresent{Present: v}, nil
		}
		return thermostat.SetHot{Hot: v}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSetting, field)
	}
}

// send enqueues v and reports false if ctx ended first.
func send[T any](ctx context.Context, ch chan<- T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}
