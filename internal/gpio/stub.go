//go:build !linux

package gpio

import "errors"

// RealPins is not available on non-Linux platforms.
type RealPins struct{}

// NewRealPins returns an error on non-Linux platforms.
func NewRealPins(chipName string, occupancyPin, statusPin int, activeLow bool) (*RealPins, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// ReadOccupancy is not implemented on non-Linux platforms.
func (p *RealPins) ReadOccupancy() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// WriteStatus is not implemented on non-Linux platforms.
func (p *RealPins) WriteStatus(active bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (p *RealPins) Close() error {
	return nil
}
