package logic

import (
	"math"
	"testing"
	"time"
)

func TestNewScheduleDueImmediately(t *testing.T) {
	s := NewSchedule("report", 2*time.Second, 0)
	if s.Period != 2000 {
		t.Errorf("Period: got %d, want 2000", s.Period)
	}
	if !s.IsDue(0) {
		t.Error("new schedule should be due at its start time")
	}
}

func TestRearmThenNotDue(t *testing.T) {
	s := NewSchedule("report", 2*time.Second, 0)
	s.Rearm(0)

	if s.NextDue != 2000 {
		t.Fatalf("NextDue: got %d, want 2000", s.NextDue)
	}
	if s.IsDue(500) {
		t.Error("should not be due at 500")
	}
	if s.IsDue(1999) {
		t.Error("should not be due at 1999")
	}
	if !s.IsDue(2000) {
		t.Error("should be due exactly at 2000")
	}
	if !s.IsDue(2500) {
		t.Error("should be due after 2000")
	}
}

func TestRearmAnchorsToFireTime(t *testing.T) {
	s := NewSchedule("report", 2*time.Second, 0)

	// Fired late: the next deadline drifts with the fire time.
	s.Rearm(2150)
	if s.NextDue != 4150 {
		t.Errorf("NextDue: got %d, want 4150", s.NextDue)
	}
}

func TestIsDueAcrossWrap(t *testing.T) {
	const period = 2000
	now := uint32(math.MaxUint32 - 500) // just below the wrap
	s := &Schedule{Name: "report", Period: period}
	s.Rearm(now)

	wantNext := uint32(1499) // (2^32 - 501 + 2000) mod 2^32
	if s.NextDue != wantNext {
		t.Fatalf("NextDue: got %d, want %d", s.NextDue, wantNext)
	}

	// A naive now > NextDue comparison would report due here.
	if now <= s.NextDue {
		t.Fatal("test setup: expected now numerically greater than NextDue")
	}
	if s.IsDue(now) {
		t.Error("should not be due right after rearm near the wrap")
	}
	if s.IsDue(math.MaxUint32) {
		t.Error("should not be due at the last counter value")
	}
	if s.IsDue(0) {
		t.Error("should not be due right after the wrap")
	}
	if s.IsDue(1498) {
		t.Error("should not be due one millisecond early")
	}
	if !s.IsDue(1499) {
		t.Error("should be due at NextDue after the wrap")
	}
	if !s.IsDue(3000) {
		t.Error("should be due past NextDue after the wrap")
	}
}

func TestIsDueTable(t *testing.T) {
	tests := []struct {
		name    string
		nextDue uint32
		now     uint32
		want    bool
	}{
		{"equal", 1000, 1000, true},
		{"before", 1000, 999, false},
		{"after", 1000, 1001, true},
		{"zero", 0, 0, true},
		{"next just past wrap, now before", 10, math.MaxUint32 - 10, false},
		{"next just before wrap, now after", math.MaxUint32 - 10, 10, true},
		{"half range behind", 1 << 31, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Schedule{NextDue: tt.nextDue}
			if got := s.IsDue(tt.now); got != tt.want {
				t.Errorf("IsDue(%d) with NextDue=%d: got %v, want %v", tt.now, tt.nextDue, got, tt.want)
			}
		})
	}
}

func TestRemaining(t *testing.T) {
	s := &Schedule{Period: 2000}
	s.Rearm(math.MaxUint32 - 99)

	if got := s.Remaining(math.MaxUint32 - 99); got != 2000 {
		t.Errorf("Remaining at rearm: got %d, want 2000", got)
	}
	if got := s.Remaining(100); got != 1800 {
		t.Errorf("Remaining after wrap: got %d, want 1800", got)
	}
	if got := s.Remaining(5000); got != 0 {
		t.Errorf("Remaining when overdue: got %d, want 0", got)
	}
}

func TestDurationToMillis(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want uint32
	}{
		{2 * time.Second, 2000},
		{10 * time.Second, 10000},
		{0, 0},
		{-time.Second, 0},
		{1500 * time.Microsecond, 1},
		{30 * 24 * time.Hour, MaxPeriodMillis},
	}
	for _, tt := range tests {
		if got := DurationToMillis(tt.in); got != tt.want {
			t.Errorf("DurationToMillis(%v): got %d, want %d", tt.in, got, tt.want)
		}
	}
}
