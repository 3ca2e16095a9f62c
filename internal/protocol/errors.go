package protocol

import "errors"

// Sentinel errors for the codec. Use errors.Is to test for them.
var (
	// ErrDecode wraps any failure to deserialize a complete frame payload.
	ErrDecode = errors.New("protocol: decode failed")

	// ErrInvalidLength is reported when a frame announces 0 or more than MaxPayloadSize bytes.
	ErrInvalidLength = errors.New("protocol: invalid frame length")

	// ErrFrameTooLarge is returned when an encoded command does not fit in one frame.
	ErrFrameTooLarge = errors.New("protocol: encoded command exceeds frame capacity")

	// ErrTruncated is returned when a payload ends in the middle of a value.
	ErrTruncated = errors.New("protocol: truncated payload")

	// ErrUnknownTag is returned for an enum index outside the known variants.
	ErrUnknownTag = errors.New("protocol: unknown variant tag")

	// ErrTrailingBytes is returned when a payload holds more than one value.
	ErrTrailingBytes = errors.New("protocol: trailing bytes after command")

	// ErrIntegerOverflow is returned when a varint does not fit its target type.
	ErrIntegerOverflow = errors.New("protocol: integer overflow")
)
