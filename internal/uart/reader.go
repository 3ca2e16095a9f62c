package uart

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/azviot/thermostazv/internal/protocol"
)

// readBufferSize is the size of one transport read.
const readBufferSize = 256

// Logger defines the logging interface for the link tasks.
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

// errStop ends a Scan from inside the callback without reporting an error.
var errStop = errors.New("uart: stop scan")

// Scan reads port until ctx is done or a read fails, calling fn with every
// decoded command or decode error. A non-nil return from fn ends the scan
// with that error. The port is closed when ctx is done so that blocking
// transports return.
func Scan(ctx context.Context, port Port, fn func(protocol.Command, error) error) error {
	stop := context.AfterFunc(ctx, func() {
		port.Close() //nolint:errcheck // Unblocks a pending Read on shutdown
	})
	defer stop()

	dec := protocol.NewDecoder()
	buf := make([]byte, readBufferSize)

	for {
		n, err := port.Read(buf)

		p := buf[:n]
		for len(p) > 0 {
			cmd, used, decErr := dec.Decode(p)
			p = p[used:]
			if cmd == nil && decErr == nil {
				continue
			}
			if ferr := fn(cmd, decErr); ferr != nil {
				if errors.Is(ferr, errStop) {
					return nil
				}
				return ferr
			}
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrRead, err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// ReaderStats holds reader counters.
type ReaderStats struct {
	FramesRx     uint64
	DecodeErrors uint64
}

// Reader decodes device frames and routes them to the other tasks.
type Reader struct {
	port    Port
	writer  chan<- protocol.Command
	status  chan<- protocol.Status
	publish chan<- protocol.Command
	logger  Logger

	framesRx     atomic.Uint64
	decodeErrors atomic.Uint64
}

// NewReader creates a Reader.
//
// Parameters:
//   - port: The device link
//   - writer: Serial writer queue, receives Pong replies to Ping
//   - status: Status cache queue
//   - publish: Bus publish queue, receives Pong from the device
func NewReader(port Port, writer chan<- protocol.Command, status chan<- protocol.Status, publish chan<- protocol.Command) *Reader {
	return &Reader{
		port:    port,
		writer:  writer,
		status:  status,
		publish: publish,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the reader.
func (r *Reader) SetLogger(logger Logger) {
	r.logger = logger
}

// Stats returns a snapshot of the reader counters.
func (r *Reader) Stats() ReaderStats {
	return ReaderStats{
		FramesRx:     r.framesRx.Load(),
		DecodeErrors: r.decodeErrors.Load(),
	}
}

// Run reads and routes frames until ctx is done or the transport fails.
func (r *Reader) Run(ctx context.Context) error {
	r.logger.Info("serial reader started")
	defer r.logger.Info("serial reader stopped")

	return Scan(ctx, r.port, func(cmd protocol.Command, err error) error {
		if err != nil {
			r.decodeErrors.Add(1)
			r.logger.Warn("dropping bad frame", "error", err)
			return nil
		}
		r.framesRx.Add(1)
		return r.route(ctx, cmd)
	})
}

// route delivers one decoded command. It returns errStop once ctx is done.
func (r *Reader) route(ctx context.Context, cmd protocol.Command) error {
	r.logger.Debug("frame received", "command", cmd.String())

	switch c := cmd.(type) {
	case protocol.Ping:
		return send(ctx, r.writer, protocol.Command(protocol.Pong{}))
	case protocol.Status:
		return send(ctx, r.status, c)
	case protocol.Pong:
		return send(ctx, r.publish, protocol.Command(c))
	default:
		r.logger.Warn("unexpected command from device", "command", cmd.String())
		return nil
	}
}

// send enqueues v unless ctx is done first.
func send[T any](ctx context.Context, ch chan<- T, v T) error {
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		return errStop
	}
}
