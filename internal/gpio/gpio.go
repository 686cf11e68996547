// Package gpio provides the node's digital I/O with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Pins reads the occupancy input and drives the status output.
type Pins interface {
	// ReadOccupancy returns the logical occupancy state (true = detected).
	ReadOccupancy() (bool, error)

	// WriteStatus drives the status output: true = active level.
	WriteStatus(active bool) error

	// Close releases GPIO resources.
	Close() error
}

