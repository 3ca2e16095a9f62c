// Package protocol implements the serial wire protocol spoken by the
// thermostat device.
//
// # Command model
//
// A Command is one of Get, Ping, Pong, Set and Status. Get and Set travel
// host to device; Status and Pong travel device to host; Ping goes both
// ways. Every variant is a comparable value type.
//
// # Framing
//
// Each command is carried in one frame:
//
//	FF FF FD 00 | N | payload (N bytes, 1 <= N <= 32)
//
// The payload is a compact varint encoding: integers below 251 take one
// byte, 251/252/253 announce a little-endian u16/u32/u64. Enum tags are
// varint-encoded indexes.
//
//	frame, err := protocol.EncodeFrame(protocol.Ping{})
//	// frame == FF FF FD 00 01 01
//
// Decoder is a streaming parser fed one byte at a time. It resynchronises
// on the next header after any framing or payload fault.
package protocol
