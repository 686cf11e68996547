package gpio

import "errors"

// FakePins is a test double that returns scripted occupancy values and
// records status writes.
type FakePins struct {
	// Occupancy contains scripted input values.
	// Each call to ReadOccupancy() consumes the next value.
	Occupancy []bool

	// index tracks current position in Occupancy
	index int

	// StatusWrites records every WriteStatus level in order.
	StatusWrites []bool

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by ReadOccupancy()
	ReadError error

	// WriteError, if set, will be returned by WriteStatus()
	WriteError error
}

// NewFakePins creates a FakePins with the given occupancy samples.
func NewFakePins(occupancy []bool) *FakePins {
	return &FakePins{Occupancy: occupancy}
}

// ReadOccupancy returns the next scripted value.
// If values are exhausted, returns the last value repeatedly.
func (f *FakePins) ReadOccupancy() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Occupancy) == 0 {
		return false, errors.New("no samples configured")
	}

	v := f.Occupancy[f.index]
	if f.index < len(f.Occupancy)-1 {
		f.index++
	}

	return v, nil
}

// WriteStatus records the level.
func (f *FakePins) WriteStatus(active bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.StatusWrites = append(f.StatusWrites, active)
	return nil
}

// Status returns the last written level (false if never written).
func (f *FakePins) Status() bool {
	if len(f.StatusWrites) == 0 {
		return false
	}
	return f.StatusWrites[len(f.StatusWrites)-1]
}

// Close marks the pins as closed.
func (f *FakePins) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the pins to the beginning of samples.
func (f *FakePins) Reset() {
	f.index = 0
	f.StatusWrites = nil
	f.Closed = false
}
