// Package uart carries protocol frames between the bridge and the
// thermostat device.
//
// The link is either a local serial port (go.bug.st/serial, 8N1) or a
// WebSocket serial bridge that forwards the device's bytes as binary
// messages. Both are exposed as a Port.
//
// Two tasks share a Port:
//   - Writer drains the device queue, frames each command and writes it.
//   - Reader decodes incoming frames and routes them: Ping is answered
//     with Pong through the writer queue, Status goes to the status cache
//     and Pong is reported on the bus.
//
// Decode faults are logged and skipped. Transport faults end the task.
package uart
