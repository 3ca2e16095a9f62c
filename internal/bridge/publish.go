package bridge

import (
	"context"
	"fmt"

	"github.com/azviot/thermostazv/internal/protocol"
)

// RunPublish renders queued events onto the log topic until ctx is done.
// A publish failure is returned.
func (b *Bridge) RunPublish(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-b.opts.Publish:
			if err := b.publish(cmd); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (b *Bridge) publish(cmd protocol.Command) error {
	msg, ok := Render(cmd, b.opts.State.Load().Present)
	if !ok {
		b.getLogger().Error("command cannot be published", "command", cmd.String())
		return nil
	}

	topic := b.opts.Topics.Log()
	if err := b.opts.MQTT.Publish(topic, []byte(msg), b.opts.QoS, false); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublish, topic, err)
	}
	b.published.Add(1)
	b.getLogger().Debug("mqtt published", "topic", topic, "payload", msg)
	return nil
}

// Render turns an outbound event into its log line. Get and Ping are
// never published and return false.
func Render(cmd protocol.Command, present bool) (string, bool) {
	switch c := cmd.(type) {
	case protocol.Pong:
		return "pong", true
	case protocol.Set:
		if c.Relay == protocol.Hot {
			return "allumage du chauffe-eau", true
		}
		return "extinction du chauffe-eau", true
	case protocol.Status:
		return fmt.Sprintf("présent: %t, relay: %s, garage: %s", present, c.Relay, renderSensor(c.Sensor)), true
	default:
		return "", false
	}
}

func renderSensor(s protocol.SensorResult) string {
	if s.OK {
		return fmt.Sprintf("%.1f°C, %.1f%%", s.Celsius(), s.Humidity())
	}
	return fmt.Sprintf("error %s", s.Err)
}
