package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	bclock "github.com/benbjohnson/clock"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sweeney/climate-bridge/internal/accessory"
	"github.com/sweeney/climate-bridge/internal/clock"
	"github.com/sweeney/climate-bridge/internal/config"
	"github.com/sweeney/climate-bridge/internal/gpio"
	"github.com/sweeney/climate-bridge/internal/mqtt"
	"github.com/sweeney/climate-bridge/internal/node"
	"github.com/sweeney/climate-bridge/internal/sensor"
	"github.com/sweeney/climate-bridge/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}

	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")

	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkType, "")
	t.Setenv(envNetworkIP, "")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want connected", info.Status)
	}
	if info.Type != "" || info.IP != "" {
		t.Errorf("expected empty Type and IP, got %q and %q", info.Type, info.IP)
	}
}

// --- config flag tests ---

// parseFlags runs the app with args and returns the config loadConfig built.
func parseFlags(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	var (
		cfg     *config.Config
		loadErr error
	)
	app := newApp()
	app.Action = func(c *cli.Context) error {
		cfg, loadErr = loadConfig(c)
		return nil
	}
	if err := app.Run(append([]string{"climate-bridge"}, args...)); err != nil {
		t.Fatalf("app.Run: %v", err)
	}
	return cfg, loadErr
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := parseFlags(t)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ReportPeriod != 2*time.Second {
		t.Errorf("ReportPeriod: got %v, want 2s", cfg.ReportPeriod)
	}
	if cfg.TemperatureOffset != -3 {
		t.Errorf("TemperatureOffset: got %v, want -3", cfg.TemperatureOffset)
	}
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	cfg, err := parseFlags(t,
		"--report-period", "3s",
		"--diagnostics-period", "10s",
		"--temperature-offset", "-1.5",
		"--sensor-driver", "fake",
		"--pin-occupancy", "6",
		"--pin-status", "17",
		"--broker", "tcp://10.0.0.1:1883",
		"--http", "",
	)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ReportPeriod != 3*time.Second {
		t.Errorf("ReportPeriod: got %v, want 3s", cfg.ReportPeriod)
	}
	if cfg.DiagnosticsPeriod != 10*time.Second {
		t.Errorf("DiagnosticsPeriod: got %v, want 10s", cfg.DiagnosticsPeriod)
	}
	if cfg.TemperatureOffset != -1.5 {
		t.Errorf("TemperatureOffset: got %v, want -1.5", cfg.TemperatureOffset)
	}
	if cfg.Sensor.Driver != config.DriverFake {
		t.Errorf("Sensor.Driver: got %q, want fake", cfg.Sensor.Driver)
	}
	if cfg.GPIO.OccupancyPin != 6 || cfg.GPIO.StatusPin != 17 {
		t.Errorf("pins: got %d/%d, want 6/17", cfg.GPIO.OccupancyPin, cfg.GPIO.StatusPin)
	}
	if cfg.MQTT.Broker != "tcp://10.0.0.1:1883" {
		t.Errorf("Broker: got %q", cfg.MQTT.Broker)
	}
	if cfg.HTTP.Addr != "" {
		t.Errorf("HTTP.Addr: got %q, want empty", cfg.HTTP.Addr)
	}
}

func TestLoadConfigFlagBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("report_period: 4s\ndiagnostics_period: 8s\nmqtt:\n  topic_prefix: lab/bridge\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := parseFlags(t, "--config", path, "--report-period", "1s")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ReportPeriod != time.Second {
		t.Errorf("ReportPeriod: got %v, want 1s from the flag", cfg.ReportPeriod)
	}
	if cfg.DiagnosticsPeriod != 8*time.Second {
		t.Errorf("DiagnosticsPeriod: got %v, want 8s from the file", cfg.DiagnosticsPeriod)
	}
	if cfg.MQTT.TopicPrefix != "lab/bridge" {
		t.Errorf("TopicPrefix: got %q, want lab/bridge", cfg.MQTT.TopicPrefix)
	}
}

func TestLoadConfigEnvBinding(t *testing.T) {
	t.Setenv("CLIMATE_BRIDGE_TEMPERATURE_OFFSET", "0.5")

	cfg, err := parseFlags(t)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.TemperatureOffset != 0.5 {
		t.Errorf("TemperatureOffset: got %v, want 0.5", cfg.TemperatureOffset)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	_, err := parseFlags(t, "--diagnostics-period", "1s")
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

// --- runLoop tests ---

type loopEnv struct {
	node      *node.Node
	pins      *gpio.FakePins
	transport *mqtt.FakeTransport
	tracker   *status.Tracker
	mock      *bclock.Mock
	millis    *clock.Millis
	logs      *observer.ObservedLogs
	logger    *zap.SugaredLogger
}

func newLoopEnv(t *testing.T, occupancy []bool) *loopEnv {
	t.Helper()

	store, err := accessory.NewStore(accessory.DefaultTable(accessory.Info{Name: "Climate bridge"}))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	core, logs := observer.New(zapcore.DebugLevel)
	env := &loopEnv{
		pins:      gpio.NewFakePins(occupancy),
		transport: mqtt.NewFakeTransport(),
		mock:      bclock.NewMock(),
		logs:      logs,
		logger:    zap.New(core).Sugar(),
	}
	env.mock.Set(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	env.millis = clock.New(env.mock)
	env.tracker = status.NewTracker(env.mock.Now(), status.Config{ReportMs: 2000, DiagnosticsMs: 5000})
	store.Subscribe(env.transport)

	env.node, err = node.New(node.Options{
		Store:             store,
		Sensor:            sensor.NewFake([]sensor.Sample{{Temperature: 21.3, Humidity: 55}}),
		Pins:              env.pins,
		Transport:         env.transport,
		Memory:            node.FixedMemory(204800),
		Tracker:           env.tracker,
		Logger:            env.logger,
		ReportPeriod:      2 * time.Second,
		DiagnosticsPeriod: 5 * time.Second,
		TemperatureOffset: -3,
		Start:             env.millis.Millis(),
	})
	if err != nil {
		t.Fatalf("node.New: %v", err)
	}
	return env
}

// runRunLoop advances the mock clock by step before each of nTicks ticks
// (the first tick is at the start time), then sends signal.
func (e *loopEnv) runRunLoop(t *testing.T, step time.Duration, nTicks int, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(e.node, e.transport, e.pins, e.tracker, e.millis, e.mock.Now, tick, sig, e.logger)
	}()

	for i := 0; i < nTicks; i++ {
		if i > 0 {
			e.mock.Add(step)
		}
		tick <- e.mock.Now()
	}
	sig <- signal

	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("runLoop did not return after the signal")
		return nil
	}
}

func TestRunLoopFirstTickReportsAndDiagnoses(t *testing.T) {
	env := newLoopEnv(t, []bool{true})

	if err := env.runRunLoop(t, 0, 1, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	got := env.transport.Characteristics()
	want := []string{accessory.Temperature, accessory.Humidity, accessory.Occupancy}
	if len(got) != len(want) {
		t.Fatalf("notifications: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification %d: got %s, want %s", i, got[i], want[i])
		}
	}
	if env.transport.Polls != 1 {
		t.Errorf("Polls: got %d, want 1", env.transport.Polls)
	}
	if env.logs.FilterMessage("Free heap: 204800, MQTT clients: 0").Len() != 1 {
		t.Error("expected one diagnostics line")
	}
}

func TestRunLoopCadence(t *testing.T) {
	env := newLoopEnv(t, []bool{false})

	// Ticks at 0, 100, ..., 4900 ms.
	if err := env.runRunLoop(t, 100*time.Millisecond, 50, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	snap := env.tracker.Snapshot()
	if snap.Counts.Reports != 3 {
		t.Errorf("reports: got %d, want 3 (at 0, 2000, 4000)", snap.Counts.Reports)
	}
	if snap.Counts.Diagnostics != 1 {
		t.Errorf("diagnostics: got %d, want 1", snap.Counts.Diagnostics)
	}
	if env.transport.Polls != 50 {
		t.Errorf("Polls: got %d, want 50", env.transport.Polls)
	}
}

func TestRunLoopTracksMQTTConnection(t *testing.T) {
	env := newLoopEnv(t, []bool{false})
	env.transport.Connected = true

	if err := env.runRunLoop(t, 0, 1, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if !env.tracker.Snapshot().MQTTConnected {
		t.Error("expected tracker to report MQTT connected")
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	env := newLoopEnv(t, []bool{true})

	if err := env.runRunLoop(t, 0, 1, syscall.SIGINT); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(env.transport.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(env.transport.SystemEvents))
	}
	se := env.transport.SystemEvents[0]
	if se.Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN, got %q", se.Event)
	}
	if se.Reason != "SIGINT" {
		t.Errorf("expected reason SIGINT, got %q", se.Reason)
	}
	if !se.Retained {
		t.Error("expected Retained=true for SHUTDOWN")
	}
}

func TestRunLoopShutdownPayload(t *testing.T) {
	env := newLoopEnv(t, []bool{true})

	if err := env.runRunLoop(t, 0, 1, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(env.transport.SystemPayloads) != 1 {
		t.Fatalf("expected 1 system payload, got %d", len(env.transport.SystemPayloads))
	}
	var sj status.StatusJSON
	if err := json.Unmarshal(env.transport.SystemPayloads[0], &sj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sj.Status.Event != "SHUTDOWN" || sj.Status.Reason != "SIGTERM" {
		t.Errorf("event/reason: got %q/%q", sj.Status.Event, sj.Status.Reason)
	}
	if sj.Status.Counts.Reports != 1 {
		t.Errorf("Counts.Reports: got %d, want 1", sj.Status.Counts.Reports)
	}
	if sj.Status.Occupancy != "active" {
		t.Errorf("Occupancy: got %q, want active", sj.Status.Occupancy)
	}
}

func TestRunLoopShutdownUnknownSignal(t *testing.T) {
	env := newLoopEnv(t, []bool{false})

	if err := env.runRunLoop(t, 0, 0, syscall.SIGHUP); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(env.transport.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(env.transport.SystemEvents))
	}
	if got := env.transport.SystemEvents[0].Reason; got != "UNKNOWN" {
		t.Errorf("reason: got %q, want UNKNOWN", got)
	}
}

func TestRunLoopShutdownResetsStatusPin(t *testing.T) {
	env := newLoopEnv(t, []bool{true})

	if err := env.runRunLoop(t, 0, 1, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	want := []bool{true, false}
	if len(env.pins.StatusWrites) != len(want) {
		t.Fatalf("status writes: got %v, want %v", env.pins.StatusWrites, want)
	}
	for i := range want {
		if env.pins.StatusWrites[i] != want[i] {
			t.Errorf("status write %d: got %v, want %v", i, env.pins.StatusWrites[i], want[i])
		}
	}
}

func TestRunLoopShutdownPublishError(t *testing.T) {
	env := newLoopEnv(t, []bool{true})
	env.transport.PublishSystemError = errors.New("broker gone")

	if err := env.runRunLoop(t, 0, 1, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop should not fail on publish error: %v", err)
	}
	if env.logs.FilterMessage("failed to publish shutdown event").Len() != 1 {
		t.Error("expected publish failure to be logged")
	}
	if env.pins.Status() {
		t.Error("status pin should be inactive after shutdown")
	}
}

func TestPrintOnce(t *testing.T) {
	tests := []struct {
		name   string
		sample sensor.Sample
		occ    bool
		want   string
	}{
		{"valid", sensor.Sample{Temperature: 21.5, Humidity: 55}, true, "Temp (C): 18.5, Hum (percent): 55, Occupancy sensor is: active\n"},
		{"fault", sensor.Sample{Temperature: math.NaN(), Humidity: 55}, false, "Failed to read from fake sensor!, Occupancy sensor is: inactive\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := printOnce(&buf, sensor.NewFake([]sensor.Sample{tt.sample}), gpio.NewFakePins([]bool{tt.occ}), -3)
			if err != nil {
				t.Fatalf("printOnce: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestPrintOnceOccupancyError(t *testing.T) {
	pins := gpio.NewFakePins([]bool{false})
	pins.ReadError = errors.New("line busy")

	var buf bytes.Buffer
	if err := printOnce(&buf, sensor.NewFake(nil), pins, -3); err == nil {
		t.Fatal("expected an error")
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be printed on error, got %q", buf.String())
	}
}
