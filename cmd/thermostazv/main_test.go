package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/azviot/thermostazv/internal/infrastructure/config"
	"github.com/azviot/thermostazv/internal/infrastructure/logging"
	"github.com/azviot/thermostazv/internal/protocol"
	"github.com/azviot/thermostazv/internal/thermostat"
	"github.com/azviot/thermostazv/internal/uart"
)

// fakePort replays rx chunks and records writes. Read blocks once rx is
// drained until Close.
type fakePort struct {
	rx     chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written bytes.Buffer
}

func newFakePort(chunks ...[]byte) *fakePort {
	p := &fakePort{
		rx:     make(chan []byte, len(chunks)),
		closed: make(chan struct{}),
	}
	for _, c := range chunks {
		p.rx <- c
	}
	return p
}

func (p *fakePort) Read(b []byte) (int, error) {
	select {
	case chunk := <-p.rx:
		return copy(b, chunk), nil
	case <-p.closed:
		return 0, io.ErrClosedPipe
	}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *fakePort) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written.Bytes()...)
}

func mustFrame(t *testing.T, cmd protocol.Command) []byte {
	t.Helper()
	frame, err := protocol.EncodeFrame(cmd)
	if err != nil {
		t.Fatalf("EncodeFrame(%s) error = %v", cmd, err)
	}
	return frame
}

// TestRunBridge_InvalidConfig verifies the bridge fails with an invalid config path.
func TestRunBridge_InvalidConfig(t *testing.T) {
	t.Setenv("THERMOSTAZV_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := runBridge(ctx, &options{}); err == nil {
		t.Fatal("runBridge() should fail with invalid config path")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "serial:\n  port: /dev/ttyACM3\n  baud_rate: 9600\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	t.Run("env path", func(t *testing.T) {
		t.Setenv("THERMOSTAZV_CONFIG", path)

		cfg, got, err := loadConfig(&options{})
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if got != path {
			t.Errorf("path = %q, want %q", got, path)
		}
		if cfg.Serial.Port != "/dev/ttyACM3" || cfg.Serial.BaudRate != 9600 {
			t.Errorf("Serial = %+v, want values from file", cfg.Serial)
		}
	})

	t.Run("flag wins over env", func(t *testing.T) {
		t.Setenv("THERMOSTAZV_CONFIG", "/nonexistent/path/config.yaml")

		_, got, err := loadConfig(&options{configPath: path})
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if got != path {
			t.Errorf("path = %q, want %q", got, path)
		}
	})

	t.Run("missing default falls back to defaults", func(t *testing.T) {
		t.Setenv("THERMOSTAZV_CONFIG", "")

		cfg, got, err := loadConfig(&options{})
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if got != "" {
			t.Errorf("path = %q, want empty", got)
		}
		if cfg.MQTT.Topics.Command != "/azv/thermostazv/cmd" {
			t.Errorf("Topics.Command = %q, want default", cfg.MQTT.Topics.Command)
		}
	})

	t.Run("link flags override file", func(t *testing.T) {
		cfg, _, err := loadConfig(&options{
			configPath: path,
			port:       "/dev/ttyUSB7",
			baud:       57600,
			url:        "ws://bridge.local/serial",
		})
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.Serial.Port != "/dev/ttyUSB7" {
			t.Errorf("Serial.Port = %q", cfg.Serial.Port)
		}
		if cfg.Serial.BaudRate != 57600 {
			t.Errorf("Serial.BaudRate = %d", cfg.Serial.BaudRate)
		}
		if got := serialConfig(cfg).URL; got != "ws://bridge.local/serial" {
			t.Errorf("serialConfig().URL = %q", got)
		}
		if got := describeLink(serialConfig(cfg)); got != "ws://bridge.local/serial" {
			t.Errorf("describeLink() = %q, want the URL", got)
		}
	})

	t.Run("invalid flag value", func(t *testing.T) {
		_, _, err := loadConfig(&options{configPath: path, baud: -1})
		if err == nil || !strings.Contains(err.Error(), "baud_rate") {
			t.Errorf("loadConfig() error = %v, want baud_rate error", err)
		}
	})
}

func TestParseOrder(t *testing.T) {
	tests := []struct {
		word string
		want protocol.Command
	}{
		{"get", protocol.Get{}},
		{"PING", protocol.Ping{}},
		{"hot", protocol.Set{Relay: protocol.Hot}},
		{"cold", protocol.Set{Relay: protocol.Cold}},
	}

	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			got, err := parseOrder(tt.word)
			if err != nil {
				t.Fatalf("parseOrder() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("parseOrder() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := parseOrder("warm"); !errors.Is(err, errUnknownOrder) {
		t.Errorf("parseOrder(warm) error = %v, want errUnknownOrder", err)
	}
}

func TestRootCmd(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"run", "monitor", "send"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	for _, flag := range []string{"config", "port", "baud", "url"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

func TestSendCmd_UnknownOrder(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"send", "warm"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	if err := root.ExecuteContext(context.Background()); !errors.Is(err, errUnknownOrder) {
		t.Errorf("Execute() error = %v, want errUnknownOrder", err)
	}
}

func TestSendAndWait(t *testing.T) {
	port := newFakePort(mustFrame(t, protocol.Ping{}))
	var out bytes.Buffer

	err := sendAndWait(context.Background(), port, protocol.Get{}, 200*time.Millisecond, &out)
	if err != nil {
		t.Fatalf("sendAndWait() error = %v", err)
	}

	want := append(mustFrame(t, protocol.Get{}), mustFrame(t, protocol.Pong{})...)
	if got := port.Written(); !bytes.Equal(got, want) {
		t.Errorf("written = % X, want % X", got, want)
	}
	if !strings.Contains(out.String(), "sent Get") || !strings.Contains(out.String(), "Ping") {
		t.Errorf("output = %q, want sent line and Ping", out.String())
	}
}

func TestMonitor(t *testing.T) {
	status := protocol.Status{Relay: protocol.Cold, Sensor: protocol.SensorFailure(protocol.SensorBus)}
	bad := []byte{0xFF, 0xFF, 0xFD, 0x00, 0x00}
	port := newFakePort(mustFrame(t, status), bad)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	if err := monitor(ctx, port, &out); err != nil {
		t.Fatalf("monitor() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), out.String())
	}
	if !strings.Contains(lines[0], status.String()) {
		t.Errorf("line 0 = %q, want %s", lines[0], status)
	}
	if !strings.Contains(lines[1], "ERR") {
		t.Errorf("line 1 = %q, want an error", lines[1])
	}
	if len(port.Written()) != 0 {
		t.Error("monitor wrote to the device")
	}
}

// fakeBus records subscriptions and counts publishes.
type fakeBus struct {
	mu        sync.Mutex
	handlers  map[string]func(string, []byte)
	published int
}

func (b *fakeBus) Publish(string, []byte, byte, bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published++
	return nil
}

func (b *fakeBus) Subscribe(topic string, _ byte, handler func(string, []byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[string]func(string, []byte))
	}
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBus) IsConnected() bool { return true }

func (b *fakeBus) deliver(topic string, payload []byte) {
	b.mu.Lock()
	h := b.handlers[topic]
	b.mu.Unlock()
	h(topic, payload)
}

// nullStore persists nothing.
type nullStore struct{}

func (nullStore) Load(context.Context) (thermostat.State, error) {
	return thermostat.State{}, thermostat.ErrStateNotFound
}

func (nullStore) Save(context.Context, thermostat.State) error { return nil }

func TestPipeline_Summary(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	cfg.InfluxDB.Enabled = false

	status := protocol.Status{Relay: protocol.Hot, Sensor: protocol.SensorReading(300000, 350000)}
	port := newFakePort(mustFrame(t, protocol.Ping{}), mustFrame(t, status))
	bus := &fakeBus{}

	p, err := buildTasks(cfg, time.UTC, logging.Discard(), tasks{
		port:    port,
		store:   nullStore{},
		initial: thermostat.DefaultState(),
		mqtt:    bus,
	})
	if err != nil {
		t.Fatalf("buildTasks() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.sup.Run(ctx) }()

	// Ask for a status report once the device status has landed.
	deadline := time.After(2 * time.Second)
	for p.status.Version() == 0 {
		select {
		case <-deadline:
			t.Fatal("device status never reached the cache")
		case <-time.After(10 * time.Millisecond):
		}
	}
	bus.deliver(cfg.MQTT.Topics.Command, []byte("s"))

	for p.writer.FramesTx() < 1 || p.bridge.GetMetrics().Published < 1 {
		select {
		case <-deadline:
			t.Fatalf("pipeline stalled: %v", p.summary())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	kv := p.summary()
	got := make(map[string]uint64, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		got[kv[i].(string)] = kv[i+1].(uint64)
	}

	want := map[string]uint64{
		"frames_rx":      2,
		"decode_errors":  0,
		"frames_tx":      1,
		"bus_received":   1,
		"bus_dropped":    0,
		"bus_published":  1,
		"status_changes": 1,
		"state_changes":  0,
	}
	for key, w := range want {
		if got[key] != w {
			t.Errorf("%s = %d, want %d", key, got[key], w)
		}
	}
	if len(got) != len(want) {
		t.Errorf("summary keys = %v, want %d counters", got, len(want))
	}
}

var _ uart.Port = (*fakePort)(nil)
