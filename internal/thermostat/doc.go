// Package thermostat implements the heater control loop.
//
// The Manager is the single owner of State. Other tasks change it only by
// sending Commands on the Manager's queue and observe it through the watch
// returned by Manager.State.
//
// # Control rule
//
// The target is the day temperature while someone is present and the local
// hour is within [morning, evening), the night temperature while someone is
// present outside those hours, and the empty temperature otherwise. The
// relay switches with a 0.5 °C hysteresis band around the target:
//
//	threshold = target + 0.5  (relay currently hot)
//	threshold = target - 0.5  (relay currently cold)
//	hot       = temperature <= threshold
//
// Every accepted command is persisted through a Store before the next one
// is handled.
package thermostat
