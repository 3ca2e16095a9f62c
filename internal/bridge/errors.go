package bridge

import "errors"

// Sentinel errors for the bus bridge.
var (
	// ErrPublish wraps a failed publish; it ends RunPublish.
	ErrPublish = errors.New("bridge: publish failed")

	// ErrSubscribe wraps a failed subscription in Start.
	ErrSubscribe = errors.New("bridge: subscribe failed")

	// ErrBadSensorPayload is logged when sensor JSON lacks a numeric value
	// at the configured path.
	ErrBadSensorPayload = errors.New("bridge: no numeric value at sensor path")

	// ErrUnknownSetting is logged for a settings topic with an unknown field.
	ErrUnknownSetting = errors.New("bridge: unknown setting")
)
