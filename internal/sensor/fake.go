package sensor

import "math"

// Fake is a test double that returns scripted readings.
type Fake struct {
	// Samples contains scripted readings. Each ReadTemperature call
	// consumes the next sample; ReadHumidity returns the humidity of the
	// sample last consumed. Once exhausted the last sample repeats.
	Samples []Sample

	index   int
	current Sample

	// TemperatureReads and HumidityReads count calls.
	TemperatureReads int
	HumidityReads    int

	// Closed tracks if Close was called.
	Closed bool
}

// Sample is one scripted sensor reading. Use math.NaN() for a fault.
type Sample struct {
	Temperature float64
	Humidity    float64
}

// NewFake creates a Fake with the given samples.
func NewFake(samples []Sample) *Fake {
	f := &Fake{Samples: samples}
	f.current = Sample{Temperature: math.NaN(), Humidity: math.NaN()}
	return f
}

// ReadTemperature returns the next scripted temperature.
func (f *Fake) ReadTemperature() float64 {
	f.TemperatureReads++
	if len(f.Samples) == 0 {
		f.current = Sample{Temperature: math.NaN(), Humidity: math.NaN()}
		return f.current.Temperature
	}
	f.current = f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return f.current.Temperature
}

// ReadHumidity returns the humidity of the current sample.
func (f *Fake) ReadHumidity() float64 {
	f.HumidityReads++
	return f.current.Humidity
}

// Name implements Sensor.
func (f *Fake) Name() string {
	return "fake"
}

// Close marks the sensor as closed.
func (f *Fake) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds to the first sample.
func (f *Fake) Reset() {
	f.index = 0
	f.Closed = false
	f.current = Sample{Temperature: math.NaN(), Humidity: math.NaN()}
}
