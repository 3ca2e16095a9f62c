package bridge

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/azviot/thermostazv/internal/infrastructure/mqtt"
	"github.com/azviot/thermostazv/internal/protocol"
	"github.com/azviot/thermostazv/internal/thermostat"
	"github.com/azviot/thermostazv/internal/watch"
)

// Defaults applied by NewBridge.
const (
	DefaultPresenceMarker = "présent"
	DefaultSensorPath     = "SI7021.Temperature"
	defaultInboundSize    = 32
)

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Logger defines the logging interface for the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Message is one inbound MQTT message.
type Message struct {
	Topic   string
	Payload []byte
}

// Options configures a Bridge.
type Options struct {
	// MQTT is the broker connection.
	MQTT MQTTClient

	// Topics names the subscribed and published topics.
	Topics mqtt.Topics

	// QoS for subscriptions and log publishes.
	QoS byte

	// PresenceMarker is the presence payload meaning "present".
	// Default: "présent".
	PresenceMarker string

	// SensorPath is the dotted path to the temperature in the sensor JSON.
	// Default: "SI7021.Temperature".
	SensorPath string

	// InboundSize is the capacity of the inbound message queue.
	InboundSize int

	// Device is the serial writer queue.
	Device chan<- protocol.Command

	// Thermostat is the thermostat command queue.
	Thermostat chan<- thermostat.Command

	// Publish is the bus publish queue, fed by the serial reader, the
	// thermostat and the "s" order, drained by RunPublish.
	Publish chan protocol.Command

	// Status is the device status cache.
	Status *watch.Value[protocol.Status]

	// State is the thermostat state broadcast, read for presence.
	State *watch.Value[thermostat.State]
}

// BridgeMetrics holds operational counters.
type BridgeMetrics struct {
	Received  uint64
	Dropped   uint64
	Published uint64
}

// Bridge runs the receive and publish tasks.
//
// Thread Safety: handlers registered by Start may run on any goroutine;
// RunReceive and RunPublish each run on their own.
type Bridge struct {
	opts       Options
	sensorPath []string
	inbound    chan Message

	// done is closed when RunReceive returns so handlers stop blocking.
	done     chan struct{}
	doneOnce sync.Once

	received  atomic.Uint64
	dropped   atomic.Uint64
	published atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge validates options and creates a Bridge.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("bridge: MQTT client is required")
	}
	if opts.Device == nil || opts.Thermostat == nil || opts.Publish == nil {
		return nil, fmt.Errorf("bridge: device, thermostat and publish queues are required")
	}
	if opts.Status == nil || opts.State == nil {
		return nil, fmt.Errorf("bridge: status and state broadcasts are required")
	}
	if opts.PresenceMarker == "" {
		opts.PresenceMarker = DefaultPresenceMarker
	}
	if opts.SensorPath == "" {
		opts.SensorPath = DefaultSensorPath
	}
	if opts.InboundSize <= 0 {
		opts.InboundSize = defaultInboundSize
	}

	return &Bridge{
		opts:       opts,
		sensorPath: splitPath(opts.SensorPath),
		inbound:    make(chan Message, opts.InboundSize),
		done:       make(chan struct{}),
		logger:     noopLogger{},
	}, nil
}

// Start subscribes to the command, presence, sensor and settings topics.
// Handlers only enqueue; call RunReceive to process.
func (b *Bridge) Start() error {
	topics := []string{
		b.opts.Topics.Command(),
		b.opts.Topics.Presence(),
		b.opts.Topics.Sensor(),
		b.opts.Topics.AllSettings(),
	}
	for _, topic := range topics {
		if err := b.opts.MQTT.Subscribe(topic, b.opts.QoS, b.enqueue); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSubscribe, topic, err)
		}
	}
	b.getLogger().Info("bridge subscribed", "topics", topics)
	return nil
}

// enqueue hands a message to RunReceive. It blocks while the queue is
// full and drops the message once the receive task has stopped.
func (b *Bridge) enqueue(topic string, payload []byte) {
	msg := Message{Topic: topic, Payload: append([]byte(nil), payload...)}
	select {
	case b.inbound <- msg:
		b.received.Add(1)
	case <-b.done:
		b.dropped.Add(1)
	}
}

// stop releases blocked handlers.
func (b *Bridge) stop() {
	b.doneOnce.Do(func() { close(b.done) })
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// GetMetrics returns a snapshot of the bridge counters.
func (b *Bridge) GetMetrics() BridgeMetrics {
	return BridgeMetrics{
		Received:  b.received.Load(),
		Dropped:   b.dropped.Load(),
		Published: b.published.Load(),
	}
}
