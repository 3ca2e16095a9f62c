package thermostat

import "fmt"

// Command changes the thermostat. The set of implementations is closed.
type Command interface {
	fmt.Stringer
	thermostatCommand()
}

// SetDay sets the daytime target (°C).
type SetDay struct{ Value float64 }

// SetNight sets the night target (°C).
type SetNight struct{ Value float64 }

// SetEmpty sets the target used when nobody is present (°C).
type SetEmpty struct{ Value float64 }

// SetMorning sets the hour the day period starts.
type SetMorning struct{ Hour int }

// SetEvening sets the hour the day period ends.
type SetEvening struct{ Hour int }

// SetPresent records whether someone is home.
type SetPresent struct{ Present bool }

// SetHot overrides the recorded relay demand.
type SetHot struct{ Hot bool }

// Current reports a measured temperature (°C) and runs the control rule.
type Current struct{ Temperature float64 }

func (SetDay) thermostatCommand()     {}
func (SetNight) thermostatCommand()   {}
func (SetEmpty) thermostatCommand()   {}
func (SetMorning) thermostatCommand() {}
func (SetEvening) thermostatCommand() {}
func (SetPresent) thermostatCommand() {}
func (SetHot) thermostatCommand()     {}
func (Current) thermostatCommand()    {}

func (c SetDay) String() string     { return fmt.Sprintf("SetDay(%.1f)", c.Value) }
func (c SetNight) String() string   { return fmt.Sprintf("SetNight(%.1f)", c.Value) }
func (c SetEmpty) String() string   { return fmt.Sprintf("SetEmpty(%.1f)", c.Value) }
func (c SetMorning) String() string { return fmt.Sprintf("SetMorning(%d)", c.Hour) }
func (c SetEvening) String() string { return fmt.Sprintf("SetEvening(%d)", c.Hour) }
func (c SetPresent) String() string { return fmt.Sprintf("SetPresent(%t)", c.Present) }
func (c SetHot) String() string     { return fmt.Sprintf("SetHot(%t)", c.Hot) }
func (c Current) String() string    { return fmt.Sprintf("Current(%.2f)", c.Temperature) }
