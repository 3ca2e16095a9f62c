package uart

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
)

const (
	// defaultReadTimeout bounds a single serial read so the reader can
	// notice shutdown.
	defaultReadTimeout = 100 * time.Millisecond

	// handshakeTimeout bounds the WebSocket upgrade.
	handshakeTimeout = 10 * time.Second

	// dialTimeout bounds the whole WebSocket connect.
	dialTimeout = 15 * time.Second
)

// Port is a byte link to the device. Close may be called more than once.
type Port interface {
	io.Reader
	io.Writer
	io.Closer
}

// Config selects and configures the transport.
type Config struct {
	// Port is the serial device path, e.g. /dev/ttyUSB0.
	Port string

	// BaudRate is the serial line speed.
	BaudRate int

	// ReadTimeout bounds each serial read. Default: 100ms.
	ReadTimeout time.Duration

	// URL of a WebSocket serial bridge (ws:// or wss://). Takes precedence
	// over Port when set.
	URL string

	// Username and Password enable HTTP basic auth on the bridge.
	Username string
	Password string

	// InsecureSkipVerify disables TLS verification for wss://.
	InsecureSkipVerify bool
}

// Open connects the configured transport.
func Open(ctx context.Context, cfg Config) (Port, error) {
	switch {
	case cfg.URL != "":
		return OpenWebSocket(ctx, cfg.URL, cfg.Username, cfg.Password, cfg.InsecureSkipVerify)
	case cfg.Port != "":
		return OpenSerial(cfg.Port, cfg.BaudRate, cfg.ReadTimeout)
	default:
		return nil, ErrNoTransport
	}
}

// serialPort wraps a go.bug.st/serial port.
type serialPort struct {
	port      serial.Port
	closeOnce sync.Once
	closeErr  error
}

// OpenSerial opens name at baud, 8N1. Reads return (0, nil) after
// readTimeout without data.
func OpenSerial(name string, baud int, readTimeout time.Duration) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", name, err)
	}

	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("setting read timeout on %s: %w", name, err)
	}

	return &serialPort{port: port}, nil
}

func (s *serialPort) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *serialPort) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *serialPort) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.port.Close() })
	return s.closeErr
}

// wsPort adapts a WebSocket connection to a byte stream.
type wsPort struct {
	conn *websocket.Conn

	// Read side, used only by the reader goroutine.
	buf    []byte
	offset int
	closed bool

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// OpenWebSocket dials a serial bridge at rawURL.
func OpenWebSocket(ctx context.Context, rawURL, username, password string, skipVerify bool) (Port, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid bridge URL: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	switch u.Scheme {
	case "ws":
	case "wss":
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipVerify, //nolint:gosec // Opt-in for self-signed bridges
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, rawURL, headers)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // Handshake body is not used
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connecting to bridge (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("connecting to bridge: %w", err)
	}

	return &wsPort{conn: conn}, nil
}

// Read returns buffered message bytes first, then blocks for the next
// binary message. Text messages are skipped.
func (w *wsPort) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	if w.offset < len(w.buf) {
		n := copy(p, w.buf[w.offset:])
		w.offset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		w.buf = data
		n := copy(p, w.buf)
		w.offset = n
		return n, nil
	}
}

// Write sends p as one binary message.
func (w *wsPort) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsPort) Close() error {
	w.closeOnce.Do(func() { w.closeErr = w.conn.Close() })
	return w.closeErr
}
