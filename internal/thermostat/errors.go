package thermostat

import "errors"

// Domain-specific errors for the thermostat.
var (
	// ErrStateNotFound is returned by a Store that holds no record yet.
	ErrStateNotFound = errors.New("thermostat: no persisted state")

	// ErrInvalidHour is returned for schedule hours outside 0-23.
	ErrInvalidHour = errors.New("thermostat: hour must be between 0 and 23")

	// ErrPersist wraps store failures, which stop the manager.
	ErrPersist = errors.New("thermostat: persisting state failed")
)
