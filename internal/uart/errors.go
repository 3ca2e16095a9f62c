package uart

import "errors"

// Sentinel errors for the serial link.
var (
	// ErrConnectionClosed is returned when reading from a closed link.
	ErrConnectionClosed = errors.New("uart: connection closed")

	// ErrUnsupportedScheme is returned for bridge URLs that are not ws:// or wss://.
	ErrUnsupportedScheme = errors.New("uart: unsupported URL scheme")

	// ErrNoTransport is returned when neither a port nor a URL is configured.
	ErrNoTransport = errors.New("uart: no serial port or bridge URL configured")

	// ErrRead wraps transport failures seen by the reader.
	ErrRead = errors.New("uart: read failed")

	// ErrWrite wraps transport failures seen by the writer.
	ErrWrite = errors.New("uart: write failed")
)
