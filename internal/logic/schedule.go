package logic

import "time"

// Schedule tracks the next due time of one periodic task against a
// wrapping 32-bit millisecond counter.
//
// Deadlines are anchored to the time the task last fired (NextDue = now +
// Period), so cadence drifts by the task's own run time. A stalled loop
// therefore fires once on recovery instead of catching up.
type Schedule struct {
	Name    string
	Period  uint32 // milliseconds
	NextDue uint32 // Clock timestamp
}

// NewSchedule returns a schedule that is due immediately at start.
func NewSchedule(name string, period time.Duration, start uint32) *Schedule {
	return &Schedule{
		Name:    name,
		Period:  DurationToMillis(period),
		NextDue: start,
	}
}

// IsDue reports whether now has reached NextDue.
// The signed difference keeps the comparison correct across counter wrap.
func (s *Schedule) IsDue(now uint32) bool {
	return int32(now-s.NextDue) >= 0
}

// Rearm sets the next deadline one period after now.
func (s *Schedule) Rearm(now uint32) {
	s.NextDue = now + s.Period
}

// Remaining returns the milliseconds left until the schedule is due,
// or 0 if it already is.
func (s *Schedule) Remaining(now uint32) uint32 {
	d := int32(s.NextDue - now)
	if d <= 0 {
		return 0
	}
	return uint32(d)
}

// DurationToMillis converts d to a millisecond period, clamped to the
// largest period the signed comparison can represent.
func DurationToMillis(d time.Duration) uint32 {
	ms := d.Milliseconds()
	switch {
	case ms <= 0:
		return 0
	case ms > MaxPeriodMillis:
		return MaxPeriodMillis
	}
	return uint32(ms)
}

// MaxPeriodMillis is the longest period for which IsDue stays correct
// (half the counter range, about 24.8 days).
const MaxPeriodMillis = 1<<31 - 1
