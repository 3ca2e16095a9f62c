package thermostat

// hysteresis is half the width of the switching band, in °C.
const hysteresis = 0.5

// State is the persisted thermostat configuration plus the last relay demand.
type State struct {
	Day     float64 `json:"day"`
	Night   float64 `json:"night"`
	Empty   float64 `json:"empty"`
	Morning int     `json:"morning"`
	Evening int     `json:"evening"`
	Present bool    `json:"present"`
	Hot     bool    `json:"hot"`
}

// DefaultState is used when nothing has been persisted yet.
func DefaultState() State {
	return State{
		Day:     17.5,
		Night:   17.0,
		Empty:   10.0,
		Morning: 6,
		Evening: 23,
		Present: true,
	}
}

// InSchedule reports whether hour falls in the day period [Morning, Evening).
func (s State) InSchedule(hour int) bool {
	return s.Morning <= hour && hour < s.Evening
}

// Target returns the temperature to hold at the given local hour.
func (s State) Target(hour int) float64 {
	switch {
	case s.Present && s.InSchedule(hour):
		return s.Day
	case s.Present:
		return s.Night
	default:
		return s.Empty
	}
}

// Threshold returns the switching temperature at the given local hour,
// shifted by the hysteresis band in the direction of the current demand.
func (s State) Threshold(hour int) float64 {
	if s.Hot {
		return s.Target(hour) + hysteresis
	}
	return s.Target(hour) - hysteresis
}

// WantHot reports the relay demand for a measured temperature.
func (s State) WantHot(hour int, temperature float64) bool {
	return temperature <= s.Threshold(hour)
}
