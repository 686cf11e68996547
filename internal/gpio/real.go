//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
)

// RealPins drives actual hardware using the Linux GPIO character device.
type RealPins struct {
	chip      *gpiocdev.Chip
	occupancy *gpiocdev.Line
	status    *gpiocdev.Line
}

// NewRealPins requests the occupancy line as input and the status line as
// output (initially inactive). activeLow inverts the occupancy input for
// sensors that pull the line low on detection.
func NewRealPins(chipName string, occupancyPin, statusPin int, activeLow bool) (*RealPins, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	// Pull-down matches Pi boot defaults, so a disconnected sensor reads
	// as no occupancy.
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	occupancy, err := chip.RequestLine(occupancyPin, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request occupancy pin %d: %w", occupancyPin, err)
	}

	status, err := chip.RequestLine(statusPin, gpiocdev.AsOutput(0))
	if err != nil {
		occupancy.Close()
		chip.Close()
		return nil, fmt.Errorf("request status pin %d: %w", statusPin, err)
	}

	return &RealPins{
		chip:      chip,
		occupancy: occupancy,
		status:    status,
	}, nil
}

// ReadOccupancy returns the logical occupancy input level.
func (p *RealPins) ReadOccupancy() (bool, error) {
	v, err := p.occupancy.Value()
	if err != nil {
		return false, fmt.Errorf("read occupancy pin: %w", err)
	}
	return v == 1, nil
}

// WriteStatus sets the status output level.
func (p *RealPins) WriteStatus(active bool) error {
	v := 0
	if active {
		v = 1
	}
	if err := p.status.SetValue(v); err != nil {
		return fmt.Errorf("write status pin: %w", err)
	}
	return nil
}

// Close drives the status output inactive and returns both lines to
// input with pull-down (Pi boot defaults) before releasing them, so
// attached hardware sees a clean state across restarts and reboots.
func (p *RealPins) Close() error {
	var err error

	if p.status != nil {
		err = multierr.Append(err, p.status.SetValue(0))
		err = multierr.Append(err, p.status.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown))
		err = multierr.Append(err, p.status.Close())
	}
	if p.occupancy != nil {
		err = multierr.Append(err, p.occupancy.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown))
		err = multierr.Append(err, p.occupancy.Close())
	}
	if p.chip != nil {
		err = multierr.Append(err, p.chip.Close())
	}

	if err != nil {
		return fmt.Errorf("close gpio: %w", err)
	}
	return nil
}
