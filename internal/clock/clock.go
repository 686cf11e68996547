// Package clock provides the node's monotonic millisecond counter.
package clock

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Clock returns a monotonically increasing millisecond counter that wraps
// at 2^32 (about 49.7 days).
type Clock interface {
	Millis() uint32
}

// Millis derives a wrapping 32-bit millisecond counter from a time source.
type Millis struct {
	clk   clock.Clock
	start time.Time
	base  uint32
}

// New returns a counter starting at zero now.
func New(clk clock.Clock) *Millis {
	return NewAt(clk, 0)
}

// NewAt returns a counter whose current value is base. Useful to exercise
// behaviour near the wrap without waiting weeks.
func NewAt(clk clock.Clock, base uint32) *Millis {
	return &Millis{
		clk:   clk,
		start: clk.Now(),
		base:  base,
	}
}

// Millis returns the counter value. Truncation to uint32 is the wrap.
func (m *Millis) Millis() uint32 {
	return m.base + uint32(m.clk.Since(m.start).Milliseconds())
}

// Source returns the underlying time source.
func (m *Millis) Source() clock.Clock {
	return m.clk
}
