// Package status provides a thread-safe status tracker for the climate-bridge daemon.
// It is written by the report and diagnostics cycles and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/climate-bridge/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	ReportMs          int64
	DiagnosticsMs     int64
	TemperatureOffset float64
	SensorDriver      string
	Broker            string
	TopicPrefix       string
	HTTPPort          string
}

// Counts are cycle counters since start.
type Counts struct {
	Reports      int
	SensorFaults int
	Diagnostics  int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	// Temperature and Humidity are the last published (calibrated) values.
	// They are only meaningful when HaveClimate is true.
	Temperature float64
	Humidity    float64
	HaveClimate bool
	SensorOK    bool
	Occupancy   bool
	Reported    bool // at least one report cycle ran
	LastReport  time.Time

	Observers  int
	FreeMemory uint64

	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// RecordReport stores the outcome of one report cycle. r is the calibrated
// reading; an invalid pair keeps the previous climate values and counts a
// sensor fault.
func (t *Tracker) RecordReport(r logic.Reading) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.Reported = true
	t.snap.LastReport = time.Now()
	t.snap.Occupancy = r.Occupancy
	t.snap.Counts.Reports++
	t.snap.SensorOK = r.Valid()
	if !t.snap.SensorOK {
		t.snap.Counts.SensorFaults++
		return
	}
	t.snap.Temperature = r.Temperature
	t.snap.Humidity = r.Humidity
	t.snap.HaveClimate = true
}

// RecordDiagnostics stores the outcome of one diagnostics cycle.
func (t *Tracker) RecordDiagnostics(freeMemory uint64, observers int) {
	t.mu.Lock()
	t.snap.FreeMemory = freeMemory
	t.snap.Observers = observers
	t.snap.Counts.Diagnostics++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
