package protocol

import "fmt"

// sensorScale is the full-scale count of the 20-bit humidity/temperature readings.
const sensorScale = 1 << 20

// Relay is the commanded or observed output state.
type Relay uint32

const (
	// Hot means the heater relay is energised.
	Hot Relay = iota
	// Cold means the heater relay is released.
	Cold
)

func (r Relay) String() string {
	switch r {
	case Hot:
		return "Hot"
	case Cold:
		return "Cold"
	default:
		return fmt.Sprintf("Relay(%d)", uint32(r))
	}
}

// RelayFor returns Hot when hot is true and Cold otherwise.
func RelayFor(hot bool) Relay {
	if hot {
		return Hot
	}
	return Cold
}

// SensorError identifies why the device could not read its sensor.
type SensorError uint32

const (
	SensorUncalibrated SensorError = iota
	SensorBus
	SensorChecksum
	SensorUninitialized
)

func (e SensorError) String() string {
	switch e {
	case SensorUncalibrated:
		return "Uncalibrated"
	case SensorBus:
		return "Bus"
	case SensorChecksum:
		return "Checksum"
	case SensorUninitialized:
		return "Uninitialized"
	default:
		return fmt.Sprintf("SensorError(%d)", uint32(e))
	}
}

// SensorResult is either a raw reading (OK) or the reason it failed.
// H and T are zero when OK is false; Err is zero when OK is true.
type SensorResult struct {
	OK  bool
	H   uint32
	T   uint32
	Err SensorError
}

// SensorReading builds a successful result from raw counts.
func SensorReading(h, t uint32) SensorResult {
	return SensorResult{OK: true, H: h, T: t}
}

// SensorFailure builds a failed result.
func SensorFailure(e SensorError) SensorResult {
	return SensorResult{Err: e}
}

// Humidity converts the raw count to relative humidity in percent.
func (s SensorResult) Humidity() float64 {
	return 100 * float64(s.H) / sensorScale
}

// Celsius converts the raw count to degrees Celsius.
func (s SensorResult) Celsius() float64 {
	return 200*float64(s.T)/sensorScale - 50
}

func (s SensorResult) String() string {
	if s.OK {
		return fmt.Sprintf("Ok(%.1f°C, %.1f%%)", s.Celsius(), s.Humidity())
	}
	return fmt.Sprintf("Err(%s)", s.Err)
}

// Command is a protocol message. The set of implementations is closed:
// Get, Ping, Pong, Set and Status.
type Command interface {
	fmt.Stringer
	command()
}

// Get asks the device for a Status.
type Get struct{}

// Ping asks the peer for a Pong.
type Ping struct{}

// Pong answers a Ping.
type Pong struct{}

// Set orders the device to switch its relay.
type Set struct {
	Relay Relay
}

// Status reports the relay position and the last sensor reading.
type Status struct {
	Relay  Relay
	Sensor SensorResult
}

func (Get) command()    {}
func (Ping) command()   {}
func (Pong) command()   {}
func (Set) command()    {}
func (Status) command() {}

func (Get) String() string  { return "Get" }
func (Ping) String() string { return "Ping" }
func (Pong) String() string { return "Pong" }

func (s Set) String() string { return fmt.Sprintf("Set(%s)", s.Relay) }

func (s Status) String() string {
	return fmt.Sprintf("Status(%s, %s)", s.Relay, s.Sensor)
}
