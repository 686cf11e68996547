// Package logic contains the pure reporting logic of the climate bridge.
// This package has NO external dependencies (no GPIO, MQTT, OS, or sleeps).
// Time is always injected as a Clock millisecond timestamp.
package logic

import "math"

// Occupancy wording used in log lines.
const (
	OccupancyActive   = "active"
	OccupancyInactive = "inactive"
)

// Reading is one sample of the node's sensors.
// Temperature and Humidity are NaN when the sensor faulted.
type Reading struct {
	Temperature float64 // °C, raw from the sensor
	Humidity    float64 // %RH
	Occupancy   bool
}

// Valid reports whether the temperature/humidity pair can be published.
// The pair is checked jointly: one NaN invalidates both.
func (r Reading) Valid() bool {
	return !math.IsNaN(r.Temperature) && !math.IsNaN(r.Humidity)
}

// Calibrated returns a copy with offset added to the temperature.
// NaN stays NaN.
func (r Reading) Calibrated(offset float64) Reading {
	r.Temperature += offset
	return r
}

// OccupancyString returns "active" or "inactive".
func OccupancyString(detected bool) string {
	if detected {
		return OccupancyActive
	}
	return OccupancyInactive
}
