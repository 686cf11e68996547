package status

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sweeney/climate-bridge/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Sensor        SensorJSON   `json:"sensor"`
	Occupancy     string       `json:"occupancy"`
	Observers     int          `json:"observers"`
	FreeMemory    uint64       `json:"free_memory"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// SensorJSON reports the temperature/humidity sensor. Temperature and
// Humidity are omitted until a valid pair has been published.
type SensorJSON struct {
	Driver      string   `json:"driver"`
	OK          bool     `json:"ok"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	LastReport  string   `json:"last_report,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of cycle counts.
type CountsJSON struct {
	Reports      int `json:"reports"`
	SensorFaults int `json:"sensor_faults"`
	Diagnostics  int `json:"diagnostics"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	ReportMs          int64   `json:"report_ms"`
	DiagnosticsMs     int64   `json:"diagnostics_ms"`
	TemperatureOffset float64 `json:"temperature_offset"`
	SensorDriver      string  `json:"sensor_driver"`
	Broker            string  `json:"broker"`
	TopicPrefix       string  `json:"topic_prefix"`
	HTTPPort          string  `json:"http_port"`
}

// round1 rounds to one decimal, the precision of the log lines.
func round1(v float64) *float64 {
	r := math.Round(v*10) / 10
	return &r
}

func buildInner(snap Snapshot) StatusInner {
	occupancy := "unknown"
	if snap.Reported {
		occupancy = logic.OccupancyString(snap.Occupancy)
	}

	sensor := SensorJSON{
		Driver: snap.Config.SensorDriver,
		OK:     snap.SensorOK,
	}
	if snap.HaveClimate {
		sensor.Temperature = round1(snap.Temperature)
		sensor.Humidity = round1(snap.Humidity)
	}
	if !snap.LastReport.IsZero() {
		sensor.LastReport = snap.LastReport.UTC().Format(time.RFC3339)
	}

	return StatusInner{
		Ready:         snap.Reported,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Sensor:        sensor,
		Occupancy:     occupancy,
		Observers:     snap.Observers,
		FreeMemory:    snap.FreeMemory,
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Reports:      snap.Counts.Reports,
			SensorFaults: snap.Counts.SensorFaults,
			Diagnostics:  snap.Counts.Diagnostics,
		},
		Config: ConfigJSON{
			ReportMs:          snap.Config.ReportMs,
			DiagnosticsMs:     snap.Config.DiagnosticsMs,
			TemperatureOffset: snap.Config.TemperatureOffset,
			SensorDriver:      snap.Config.SensorDriver,
			Broker:            snap.Config.Broker,
			TopicPrefix:       snap.Config.TopicPrefix,
			HTTPPort:          snap.Config.HTTPPort,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
