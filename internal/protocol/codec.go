package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Varint markers. Values up to singleByteMax are stored as-is.
const (
	singleByteMax = 250
	markerU16     = 251
	markerU32     = 252
	markerU64     = 253
)

// Command variant tags, in declaration order.
const (
	tagGet uint32 = iota
	tagPing
	tagPong
	tagSet
	tagStatus
)

// SensorResult variant tags.
const (
	tagSensorErr uint32 = iota
	tagSensorOk
)

// MarshalCommand encodes cmd into its payload form, without framing.
func MarshalCommand(cmd Command) ([]byte, error) {
	e := encoder{buf: make([]byte, 0, MaxPayloadSize)}

	switch c := cmd.(type) {
	case Get:
		e.uvarint(uint64(tagGet))
	case Ping:
		e.uvarint(uint64(tagPing))
	case Pong:
		e.uvarint(uint64(tagPong))
	case Set:
		if err := checkRelay(c.Relay); err != nil {
			return nil, err
		}
		e.uvarint(uint64(tagSet))
		e.uvarint(uint64(c.Relay))
	case Status:
		if err := checkRelay(c.Relay); err != nil {
			return nil, err
		}
		e.uvarint(uint64(tagStatus))
		e.uvarint(uint64(c.Relay))
		if c.Sensor.OK {
			e.uvarint(uint64(tagSensorOk))
			e.uvarint(uint64(c.Sensor.H))
			e.uvarint(uint64(c.Sensor.T))
		} else {
			if c.Sensor.Err > SensorUninitialized {
				return nil, fmt.Errorf("%w: sensor error %d", ErrUnknownTag, uint32(c.Sensor.Err))
			}
			e.uvarint(uint64(tagSensorErr))
			e.uvarint(uint64(c.Sensor.Err))
		}
	case nil:
		return nil, fmt.Errorf("%w: nil command", ErrUnknownTag)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownTag, cmd)
	}

	return e.buf, nil
}

// UnmarshalCommand decodes exactly one command from payload.
func UnmarshalCommand(payload []byte) (Command, error) {
	d := decoder{p: payload}

	tag, err := d.u32()
	if err != nil {
		return nil, err
	}

	var cmd Command
	switch tag {
	case tagGet:
		cmd = Get{}
	case tagPing:
		cmd = Ping{}
	case tagPong:
		cmd = Pong{}
	case tagSet:
		r, err := d.relay()
		if err != nil {
			return nil, err
		}
		cmd = Set{Relay: r}
	case tagStatus:
		r, err := d.relay()
		if err != nil {
			return nil, err
		}
		s, err := d.sensor()
		if err != nil {
			return nil, err
		}
		cmd = Status{Relay: r, Sensor: s}
	default:
		return nil, fmt.Errorf("%w: command %d", ErrUnknownTag, tag)
	}

	if d.off != len(d.p) {
		return nil, fmt.Errorf("%w: %d unread", ErrTrailingBytes, len(d.p)-d.off)
	}
	return cmd, nil
}

func checkRelay(r Relay) error {
	if r > Cold {
		return fmt.Errorf("%w: relay %d", ErrUnknownTag, uint32(r))
	}
	return nil
}

type encoder struct {
	buf []byte
}

func (e *encoder) uvarint(v uint64) {
	switch {
	case v <= singleByteMax:
		e.buf = append(e.buf, byte(v))
	case v <= math.MaxUint16:
		e.buf = append(e.buf, markerU16)
		e.buf = binary.LittleEndian.AppendUint16(e.buf, uint16(v))
	case v <= math.MaxUint32:
		e.buf = append(e.buf, markerU32)
		e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(v))
	default:
		e.buf = append(e.buf, markerU64)
		e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
	}
}

type decoder struct {
	p   []byte
	off int
}

func (d *decoder) take(n int) ([]byte, error) {
	if len(d.p)-d.off < n {
		return nil, ErrTruncated
	}
	b := d.p[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) uvarint() (uint64, error) {
	head, err := d.take(1)
	if err != nil {
		return 0, err
	}

	switch m := head[0]; {
	case m <= singleByteMax:
		return uint64(m), nil
	case m == markerU16:
		b, err := d.take(2)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case m == markerU32:
		b, err := d.take(4)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(b)), nil
	case m == markerU64:
		b, err := d.take(8)
		if err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(b), nil
	default:
		return 0, fmt.Errorf("%w: marker %d", ErrIntegerOverflow, m)
	}
}

func (d *decoder) u32() (uint32, error) {
	v, err := d.uvarint()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d does not fit u32", ErrIntegerOverflow, v)
	}
	return uint32(v), nil
}

func (d *decoder) relay() (Relay, error) {
	v, err := d.u32()
	if err != nil {
		return 0, err
	}
	r := Relay(v)
	if err := checkRelay(r); err != nil {
		return 0, err
	}
	return r, nil
}

func (d *decoder) sensor() (SensorResult, error) {
	tag, err := d.u32()
	if err != nil {
		return SensorResult{}, err
	}

	switch tag {
	case tagSensorOk:
		h, err := d.u32()
		if err != nil {
			return SensorResult{}, err
		}
		t, err := d.u32()
		if err != nil {
			return SensorResult{}, err
		}
		return SensorReading(h, t), nil
	case tagSensorErr:
		v, err := d.u32()
		if err != nil {
			return SensorResult{}, err
		}
		if SensorError(v) > SensorUninitialized {
			return SensorResult{}, fmt.Errorf("%w: sensor error %d", ErrUnknownTag, v)
		}
		return SensorFailure(SensorError(v)), nil
	default:
		return SensorResult{}, fmt.Errorf("%w: sensor result %d", ErrUnknownTag, tag)
	}
}
