package clock

import (
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestMillisStartsAtZero(t *testing.T) {
	mock := clock.NewMock()
	m := New(mock)

	if got := m.Millis(); got != 0 {
		t.Errorf("initial: got %d, want 0", got)
	}

	mock.Add(2500 * time.Millisecond)
	if got := m.Millis(); got != 2500 {
		t.Errorf("after 2.5s: got %d, want 2500", got)
	}
}

func TestMillisWraps(t *testing.T) {
	mock := clock.NewMock()
	m := NewAt(mock, math.MaxUint32-999)

	if got := m.Millis(); got != math.MaxUint32-999 {
		t.Fatalf("initial: got %d", got)
	}

	mock.Add(999 * time.Millisecond)
	if got := m.Millis(); got != math.MaxUint32 {
		t.Errorf("at boundary: got %d, want %d", got, uint32(math.MaxUint32))
	}

	mock.Add(time.Millisecond)
	if got := m.Millis(); got != 0 {
		t.Errorf("after wrap: got %d, want 0", got)
	}

	mock.Add(1500 * time.Millisecond)
	if got := m.Millis(); got != 1500 {
		t.Errorf("after wrap + 1.5s: got %d, want 1500", got)
	}
}

func TestSource(t *testing.T) {
	mock := clock.NewMock()
	if New(mock).Source() != mock {
		t.Error("Source should return the wrapped clock")
	}
}
