package uart

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/azviot/thermostazv/internal/protocol"
)

// Writer frames queued commands onto the link.
type Writer struct {
	port   io.Writer
	in     <-chan protocol.Command
	logger Logger

	framesTx atomic.Uint64
}

// NewWriter creates a Writer draining in.
func NewWriter(port io.Writer, in <-chan protocol.Command) *Writer {
	return &Writer{
		port:   port,
		in:     in,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the writer.
func (w *Writer) SetLogger(logger Logger) {
	w.logger = logger
}

// FramesTx returns the number of frames written.
func (w *Writer) FramesTx() uint64 {
	return w.framesTx.Load()
}

// Run writes commands in queue order until ctx is done. An encode or
// write failure is returned.
func (w *Writer) Run(ctx context.Context) error {
	w.logger.Info("serial writer started")
	defer w.logger.Info("serial writer stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-w.in:
			if err := w.Write(cmd); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// Write frames and writes a single command.
func (w *Writer) Write(cmd protocol.Command) error {
	frame, err := protocol.EncodeFrame(cmd)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", cmd, err)
	}
	if _, err := w.port.Write(frame); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	w.framesTx.Add(1)
	w.logger.Debug("frame sent", "command", cmd.String())
	return nil
}
