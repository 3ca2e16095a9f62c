package protocol

import (
	"bytes"
	"fmt"
)

// Header opens every frame.
var Header = [4]byte{0xFF, 0xFF, 0xFD, 0x00}

// Frame limits.
const (
	// MaxPayloadSize is the decoder's payload buffer capacity.
	MaxPayloadSize = 32

	// MaxFrameSize is header + length byte + payload.
	MaxFrameSize = len(Header) + 1 + MaxPayloadSize
)

// EncodeFrame returns the complete frame carrying cmd.
func EncodeFrame(cmd Command) ([]byte, error) {
	payload, err := MarshalCommand(cmd)
	if err != nil {
		return nil, err
	}
	return frame(payload)
}

func frame(payload []byte) ([]byte, error) {
	if len(payload) == 0 || len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	out := make([]byte, 0, len(Header)+1+len(payload))
	out = append(out, Header[:]...)
	out = append(out, byte(len(payload)))
	return append(out, payload...), nil
}

// Decoder reassembles commands from a byte stream.
//
// The zero value is ready to use. A Decoder is not safe for concurrent use;
// each link owns its own.
type Decoder struct {
	headerIndex int
	buf         [MaxPayloadSize]byte
	bufIndex    int
	expected    int
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Reset drops any partial frame.
func (d *Decoder) Reset() {
	d.headerIndex = 0
	d.bufIndex = 0
	d.expected = 0
}

// DecodeByte feeds one byte. It returns a command when b completes a frame,
// an error when b completes a bad frame or announces an invalid length, and
// (nil, nil) otherwise. The decoder is ready for the next frame after any
// non-nil return.
func (d *Decoder) DecodeByte(b byte) (Command, error) {
	if d.headerIndex < len(Header) {
		if b == Header[d.headerIndex] {
			d.headerIndex++
		} else {
			d.headerIndex = restartMatch(d.headerIndex, b)
		}
		return nil, nil
	}

	if d.expected == 0 {
		if b == 0 || int(b) > MaxPayloadSize {
			d.Reset()
			if b == Header[0] {
				d.headerIndex = 1
			}
			return nil, fmt.Errorf("%w: %d", ErrInvalidLength, b)
		}
		d.expected = int(b)
		return nil, nil
	}

	d.buf[d.bufIndex] = b
	d.bufIndex++
	if d.bufIndex < d.expected {
		return nil, nil
	}

	payload := d.buf[:d.expected]
	d.Reset()

	cmd, err := UnmarshalCommand(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return cmd, nil
}

// Decode feeds bytes from p until one command or one error is produced, and
// returns the number of bytes consumed. When p ends first it returns
// (nil, len(p), nil) and keeps the partial frame for the next call.
func (d *Decoder) Decode(p []byte) (Command, int, error) {
	for i, b := range p {
		cmd, err := d.DecodeByte(b)
		if cmd != nil || err != nil {
			return cmd, i + 1, err
		}
	}
	return nil, len(p), nil
}

// restartMatch returns the header progress after byte b broke a match of
// length matched: the longest header prefix that is a suffix of the bytes
// seen so far.
func restartMatch(matched int, b byte) int {
	for k := matched; k > 0; k-- {
		if b == Header[k-1] && bytes.Equal(Header[matched-k+1:matched], Header[:k-1]) {
			return k
		}
	}
	return 0
}
