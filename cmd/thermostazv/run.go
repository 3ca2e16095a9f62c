package main

import (
	"context"
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/azviot/thermostazv/internal/bridge"
	"github.com/azviot/thermostazv/internal/infrastructure/config"
	"github.com/azviot/thermostazv/internal/infrastructure/database"
	"github.com/azviot/thermostazv/internal/infrastructure/influxdb"
	"github.com/azviot/thermostazv/internal/infrastructure/logging"
	"github.com/azviot/thermostazv/internal/infrastructure/mqtt"
	"github.com/azviot/thermostazv/internal/protocol"
	"github.com/azviot/thermostazv/internal/status"
	"github.com/azviot/thermostazv/internal/supervisor"
	"github.com/azviot/thermostazv/internal/telemetry"
	"github.com/azviot/thermostazv/internal/thermostat"
	"github.com/azviot/thermostazv/internal/uart"
	"github.com/azviot/thermostazv/internal/watch"
	"github.com/azviot/thermostazv/migrations"
)

// runBridge starts every task and blocks until ctx is cancelled or a task fails.
func runBridge(ctx context.Context, opts *options) error {
	log := logging.Default()
	log.Info("starting thermostazv", "version", version, "commit", commit, "date", date)

	cfg, path, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", path)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("resolving timezone: %w", err)
	}

	// Persistent thermostat state
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		} else {
			log.Info("database connection closed")
		}
	}()

	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	log.Info("database ready", "path", db.Path(), "migrations_applied", applied)

	store := thermostat.NewSQLiteStore(db.DB)
	initial, err := thermostat.LoadOrInit(ctx, store, defaultsFromConfig(cfg.Thermostat.Defaults))
	if err != nil {
		return fmt.Errorf("loading thermostat state: %w", err)
	}
	log.Info("thermostat state loaded",
		"day", initial.Day, "night", initial.Night, "empty", initial.Empty,
		"morning", initial.Morning, "evening", initial.Evening,
		"present", initial.Present, "hot", initial.Hot)

	// Serial link
	linkCfg := serialConfig(cfg)
	port, err := uart.Open(ctx, linkCfg)
	if err != nil {
		return fmt.Errorf("opening serial link: %w", err)
	}
	defer func() {
		if closeErr := port.Close(); closeErr != nil {
			log.Error("error closing serial link", "error", closeErr)
		} else {
			log.Info("serial link closed")
		}
	}()
	log.Info("serial link open", "link", describeLink(linkCfg))

	// MQTT
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT session restored, subscriptions replayed")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT connection lost", "error", err)
	})
	defer func() {
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT connection", "error", closeErr)
		} else {
			log.Info("MQTT connection closed")
		}
	}()
	log.Info("MQTT connected", "broker", cfg.MQTT.Broker.Host, "port", cfg.MQTT.Broker.Port)

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB connection", "error", closeErr)
			} else {
				log.Info("InfluxDB connection closed")
			}
		}()
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled, telemetry reporter not started")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	p, err := buildTasks(cfg, loc, log, tasks{
		port:    port,
		store:   store,
		initial: initial,
		mqtt:    &mqttBridgeAdapter{client: mqttClient, log: log},
		influx:  influxClient,
	})
	if err != nil {
		return err
	}

	log.Info("thermostazv started successfully")
	runErr := p.sup.Run(ctx)

	for _, ts := range p.sup.Status() {
		if ts.Err != nil {
			log.Info("task finished", "task", ts.Name, "status", string(ts.Status), "error", ts.Err)
			continue
		}
		log.Info("task finished", "task", ts.Name, "status", string(ts.Status))
	}

	log.Info("link and bus counters", p.summary()...)

	if runErr != nil {
		log.Error("thermostazv stopped", "error", runErr)
		return runErr
	}
	log.Info("thermostazv stopped")
	return nil
}

// tasks holds the resources the supervised tasks run against.
type tasks struct {
	port    uart.Port
	store   thermostat.Store
	initial thermostat.State
	mqtt    bridge.MQTTClient
	influx  *influxdb.Client // nil when telemetry is disabled
}

// pipeline is the supervised task set and the components whose counters
// are reported at shutdown.
type pipeline struct {
	sup    *supervisor.Supervisor
	reader *uart.Reader
	writer *uart.Writer
	bridge *bridge.Bridge
	status *watch.Value[protocol.Status]
	state  *watch.Value[thermostat.State]
}

// summary returns the counters as slog key/value pairs.
func (p *pipeline) summary() []any {
	rx := p.reader.Stats()
	bus := p.bridge.GetMetrics()
	return []any{
		"frames_rx", rx.FramesRx,
		"decode_errors", rx.DecodeErrors,
		"frames_tx", p.writer.FramesTx(),
		"bus_received", bus.Received,
		"bus_dropped", bus.Dropped,
		"bus_published", bus.Published,
		"status_changes", p.status.Version(),
		"state_changes", p.state.Version(),
	}
}

// buildTasks creates the queues and registers every long-lived task.
func buildTasks(cfg *config.Config, loc *time.Location, log *logging.Logger, res tasks) (*pipeline, error) {
	size := cfg.Serial.QueueSize

	toDevice := make(chan protocol.Command, size)
	toStatus := make(chan protocol.Status, size)
	toThermostat := make(chan thermostat.Command, size)
	toBus := make(chan protocol.Command, size)

	statusMgr := status.NewManager(toStatus)
	statusMgr.SetLogger(log.Component("status"))

	thermo := thermostat.NewManager(res.store, res.initial, toThermostat, toDevice)
	thermo.SetLogger(log.Component("thermostat"))
	thermo.SetAnnounce(toBus)
	thermo.SetClock(time.Now, loc)

	reader := uart.NewReader(res.port, toDevice, toStatus, toBus)
	reader.SetLogger(log.Component("serial-reader"))

	writer := uart.NewWriter(res.port, toDevice)
	writer.SetLogger(log.Component("serial-writer"))

	br, err := bridge.NewBridge(bridge.Options{
		MQTT:           res.mqtt,
		Topics:         mqtt.NewTopics(cfg.MQTT.Topics),
		QoS:            byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0..2
		PresenceMarker: cfg.Thermostat.PresenceMarker,
		SensorPath:     cfg.Thermostat.SensorPath,
		InboundSize:    size,
		Device:         toDevice,
		Thermostat:     toThermostat,
		Publish:        toBus,
		Status:         statusMgr.Cache(),
		State:          thermo.State(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating bridge: %w", err)
	}
	br.SetLogger(log.Component("bridge"))
	if err := br.Start(); err != nil {
		return nil, fmt.Errorf("starting bridge: %w", err)
	}

	sup := supervisor.New(supervisor.Config{
		PollInterval: cfg.GetPollInterval(),
		GracePeriod:  cfg.GetGracePeriod(),
	})
	sup.SetLogger(log.Component("supervisor"))

	sup.Go("serial-reader", reader.Run)
	sup.Go("serial-writer", writer.Run)
	sup.Go("status", statusMgr.Run)
	sup.Go("thermostat", thermo.Run)
	sup.Go("bus-receive", br.RunReceive)
	sup.Go("bus-publish", br.RunPublish)

	if res.influx != nil {
		reporter := telemetry.NewReporter(&influxSink{client: res.influx}, thermo.State(), statusMgr.Cache(), telemetry.Options{
			Interval:    cfg.GetTelemetryInterval(),
			Measurement: cfg.Telemetry.Measurement,
			Device:      cfg.Telemetry.Device,
			Hour:        thermo.Hour,
		})
		reporter.SetLogger(log.Component("telemetry"))
		sup.Go("telemetry", reporter.Run)
	}

	return &pipeline{
		sup:    sup,
		reader: reader,
		writer: writer,
		bridge: br,
		status: statusMgr.Cache(),
		state:  thermo.State(),
	}, nil
}

// defaultsFromConfig seeds the state written on first start.
func defaultsFromConfig(d config.ThermostatDefaults) thermostat.State {
	return thermostat.State{
		Day:     d.Day,
		Night:   d.Night,
		Empty:   d.Empty,
		Morning: d.Morning,
		Evening: d.Evening,
		Present: d.Present,
	}
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. Bridge handlers do not return errors.
type mqttBridgeAdapter struct {
	client *mqtt.Client
	log    *logging.Logger
}

// Publish implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// influxSink writes telemetry points through the InfluxDB client.
type influxSink struct {
	client *influxdb.Client
}

// WritePoints implements telemetry.Sink.
func (s *influxSink) WritePoints(ctx context.Context, points []telemetry.Point) error {
	if s.client == nil {
		return influxdb.ErrNotConnected
	}
	converted := make([]*write.Point, 0, len(points))
	for _, p := range points {
		converted = append(converted, influxdb.NewPoint(p.Measurement, p.Tags, p.Fields, p.Time))
	}
	if err := s.client.WritePoints(ctx, converted...); err != nil {
		return fmt.Errorf("writing %d points: %w", len(points), err)
	}
	return nil
}
