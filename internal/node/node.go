// Package node runs the bridge's periodic work: the report cycle (sample,
// validate, calibrate, publish), the diagnostics cycle and the per-iteration
// step that drives both from the schedules.
//
// A Node is used from a single goroutine. Characteristic writes and
// notifications happen in a fixed order within a cycle: temperature,
// humidity, then occupancy.
package node

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/climate-bridge/internal/accessory"
	"github.com/sweeney/climate-bridge/internal/gpio"
	"github.com/sweeney/climate-bridge/internal/logic"
	"github.com/sweeney/climate-bridge/internal/metrics"
	"github.com/sweeney/climate-bridge/internal/mqtt"
	"github.com/sweeney/climate-bridge/internal/sensor"
	"github.com/sweeney/climate-bridge/internal/status"
)

// Options wires a Node. Tracker and Metrics may be nil.
type Options struct {
	Store     *accessory.Store
	Sensor    sensor.Sensor
	Pins      gpio.Pins
	Transport mqtt.Transport
	Memory    MemoryProbe
	Tracker   *status.Tracker
	Metrics   *metrics.Metrics
	Logger    *zap.SugaredLogger

	ReportPeriod      time.Duration
	DiagnosticsPeriod time.Duration
	TemperatureOffset float64

	// Start is the Clock value at startup. Both schedules are due then.
	Start uint32
}

// Node owns the schedules and characteristic handles.
type Node struct {
	report      *logic.Schedule
	diagnostics *logic.Schedule

	temperature *accessory.Characteristic
	humidity    *accessory.Characteristic
	occupancy   *accessory.Characteristic

	sensor    sensor.Sensor
	pins      gpio.Pins
	transport mqtt.Transport
	memory    MemoryProbe
	tracker   *status.Tracker
	metrics   *metrics.Metrics
	log       *zap.SugaredLogger
	offset    float64
}

// New looks up the temperature, humidity and occupancy characteristics and
// creates both schedules.
func New(opts Options) (*Node, error) {
	if opts.Store == nil || opts.Sensor == nil || opts.Pins == nil || opts.Transport == nil {
		return nil, errors.New("node: store, sensor, pins and transport are required")
	}

	n := &Node{
		report:      logic.NewSchedule("report", opts.ReportPeriod, opts.Start),
		diagnostics: logic.NewSchedule("diagnostics", opts.DiagnosticsPeriod, opts.Start),
		sensor:      opts.Sensor,
		pins:        opts.Pins,
		transport:   opts.Transport,
		memory:      opts.Memory,
		tracker:     opts.Tracker,
		metrics:     opts.Metrics,
		log:         opts.Logger,
		offset:      opts.TemperatureOffset,
	}
	if n.memory == nil {
		n.memory = SystemMemory{}
	}
	if n.log == nil {
		n.log = zap.NewNop().Sugar()
	}

	var err error
	if n.temperature, err = opts.Store.Characteristic(accessory.Temperature); err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	if n.humidity, err = opts.Store.Characteristic(accessory.Humidity); err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	if n.occupancy, err = opts.Store.Characteristic(accessory.Occupancy); err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	return n, nil
}

// Step is one main loop iteration: poll the transport, then run each cycle
// whose schedule is due at now.
func (n *Node) Step(now uint32) {
	n.transport.Poll()

	if n.report.IsDue(now) {
		n.report.Rearm(now)
		n.RunReportCycle()
	}
	if n.diagnostics.IsDue(now) {
		n.diagnostics.Rearm(now)
		n.RunDiagnosticsCycle()
	}
}

// ReportSchedule returns the report schedule.
func (n *Node) ReportSchedule() *logic.Schedule { return n.report }

// DiagnosticsSchedule returns the diagnostics schedule.
func (n *Node) DiagnosticsSchedule() *logic.Schedule { return n.diagnostics }

// RunReportCycle samples the sensors and publishes the result. It returns
// the calibrated reading.
//
// Occupancy is mirrored to the status pin before anything else. A NaN
// temperature or humidity skips both climate characteristics for this
// cycle; occupancy is published regardless.
func (n *Node) RunReportCycle() logic.Reading {
	occupied, err := n.pins.ReadOccupancy()
	if err != nil {
		n.log.Warnw("occupancy read failed", "error", err)
		occupied = false
	}
	if err := n.pins.WriteStatus(occupied); err != nil {
		n.log.Warnw("status pin write failed", "error", err)
	}

	raw := logic.Reading{
		Temperature: n.sensor.ReadTemperature(),
		Humidity:    n.sensor.ReadHumidity(),
		Occupancy:   occupied,
	}
	r := raw.Calibrated(n.offset)

	ok := r.Valid()
	if ok {
		n.publish(n.temperature, r.Temperature)
		n.publish(n.humidity, r.Humidity)
		n.log.Infof("Temp (C): %.1f", r.Temperature)
		n.log.Infof("Hum (percent): %.0f", r.Humidity)
	} else {
		n.log.Warnf("Failed to read from %s sensor!", n.sensor.Name())
	}

	n.publish(n.occupancy, occupied)
	n.log.Infof("Occupancy sensor is: %s", logic.OccupancyString(occupied))

	n.metrics.ReportCycle(ok, raw.Temperature, r.Temperature, r.Humidity, occupied)
	if n.tracker != nil {
		n.tracker.RecordReport(r)
	}
	return r
}

// RunDiagnosticsCycle logs free memory and the connected observer count.
func (n *Node) RunDiagnosticsCycle() {
	free := n.memory.FreeMemory()
	clients := n.transport.ConnectedObservers()
	n.log.Infof("Free heap: %d, %s clients: %d", free, n.transport.Protocol(), clients)

	n.metrics.DiagnosticsCycle(free, clients)
	if n.tracker != nil {
		n.tracker.RecordDiagnostics(free, clients)
	}
}

func (n *Node) publish(c *accessory.Characteristic, v any) {
	if err := c.Set(v); err != nil {
		n.log.Errorw("characteristic update failed", "characteristic", c.ID(), "error", err)
		return
	}
	c.Notify()
}
