// Command climate-bridge samples a temperature/humidity sensor and an
// occupancy input and exposes them as accessory characteristics over MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bclock "github.com/benbjohnson/clock"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sweeney/climate-bridge/internal/accessory"
	"github.com/sweeney/climate-bridge/internal/clock"
	"github.com/sweeney/climate-bridge/internal/config"
	"github.com/sweeney/climate-bridge/internal/gpio"
	"github.com/sweeney/climate-bridge/internal/history"
	"github.com/sweeney/climate-bridge/internal/logging"
	"github.com/sweeney/climate-bridge/internal/logic"
	"github.com/sweeney/climate-bridge/internal/metrics"
	"github.com/sweeney/climate-bridge/internal/mqtt"
	"github.com/sweeney/climate-bridge/internal/node"
	"github.com/sweeney/climate-bridge/internal/sensor"
	"github.com/sweeney/climate-bridge/internal/status"
	"github.com/sweeney/climate-bridge/internal/web"
)

// Flag names.
const (
	flagConfig            = "config"
	flagReportPeriod      = "report-period"
	flagDiagnosticsPeriod = "diagnostics-period"
	flagLoopYield         = "loop-yield"
	flagOffset            = "temperature-offset"
	flagSensorDriver      = "sensor-driver"
	flagSensorPin         = "sensor-pin"
	flagOccupancyPin      = "pin-occupancy"
	flagStatusPin         = "pin-status"
	flagBroker            = "broker"
	flagTopicPrefix       = "topic-prefix"
	flagHTTP              = "http"
	flagLogLevel          = "log-level"
	flagPrintReading      = "print-reading"
)

const envPrefix = "CLIMATE_BRIDGE_"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "climate-bridge",
		Usage: "publish temperature, humidity and occupancy as MQTT accessory characteristics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{envPrefix + "CONFIG"},
			},
			&cli.DurationFlag{
				Name:    flagReportPeriod,
				Usage:   "sensor report cadence",
				EnvVars: []string{envPrefix + "REPORT_PERIOD"},
			},
			&cli.DurationFlag{
				Name:    flagDiagnosticsPeriod,
				Usage:   "free memory / observer log cadence",
				EnvVars: []string{envPrefix + "DIAGNOSTICS_PERIOD"},
			},
			&cli.DurationFlag{
				Name:    flagLoopYield,
				Usage:   "pause between main loop iterations",
				EnvVars: []string{envPrefix + "LOOP_YIELD"},
			},
			&cli.Float64Flag{
				Name:    flagOffset,
				Usage:   "calibration offset added to every temperature (°C)",
				EnvVars: []string{envPrefix + "TEMPERATURE_OFFSET"},
			},
			&cli.StringFlag{
				Name:    flagSensorDriver,
				Usage:   "sensor driver: dht11, dht22, bme280, sht4x or fake",
				EnvVars: []string{envPrefix + "SENSOR_DRIVER"},
			},
			&cli.StringFlag{
				Name:    flagSensorPin,
				Usage:   "DHT data pin name (e.g. GPIO22)",
				EnvVars: []string{envPrefix + "SENSOR_PIN"},
			},
			&cli.IntFlag{
				Name:    flagOccupancyPin,
				Usage:   "BCM line offset of the occupancy input",
				EnvVars: []string{envPrefix + "PIN_OCCUPANCY"},
			},
			&cli.IntFlag{
				Name:    flagStatusPin,
				Usage:   "BCM line offset of the status output",
				EnvVars: []string{envPrefix + "PIN_STATUS"},
			},
			&cli.StringFlag{
				Name:    flagBroker,
				Usage:   "MQTT broker address",
				EnvVars: []string{envPrefix + "MQTT_BROKER"},
			},
			&cli.StringFlag{
				Name:    flagTopicPrefix,
				Usage:   "MQTT topic prefix",
				EnvVars: []string{envPrefix + "MQTT_TOPIC_PREFIX"},
			},
			&cli.StringFlag{
				Name:    flagHTTP,
				Usage:   `HTTP status address ("" disables)`,
				EnvVars: []string{envPrefix + "HTTP_ADDR"},
			},
			&cli.StringFlag{
				Name:    flagLogLevel,
				Usage:   "log level: debug, info, warn or error",
				EnvVars: []string{envPrefix + "LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:  flagPrintReading,
				Usage: "take one reading, print it and exit",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			return run(cfg, c.Bool(flagPrintReading))
		},
	}
}

// loadConfig reads the config file and applies the flags that were given
// on the command line or through their environment variables.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return nil, err
	}

	if c.IsSet(flagReportPeriod) {
		cfg.ReportPeriod = c.Duration(flagReportPeriod)
	}
	if c.IsSet(flagDiagnosticsPeriod) {
		cfg.DiagnosticsPeriod = c.Duration(flagDiagnosticsPeriod)
	}
	if c.IsSet(flagLoopYield) {
		cfg.LoopYield = c.Duration(flagLoopYield)
	}
	if c.IsSet(flagOffset) {
		cfg.TemperatureOffset = c.Float64(flagOffset)
	}
	if c.IsSet(flagSensorDriver) {
		cfg.Sensor.Driver = c.String(flagSensorDriver)
	}
	if c.IsSet(flagSensorPin) {
		cfg.Sensor.Pin = c.String(flagSensorPin)
	}
	if c.IsSet(flagOccupancyPin) {
		cfg.GPIO.OccupancyPin = c.Int(flagOccupancyPin)
	}
	if c.IsSet(flagStatusPin) {
		cfg.GPIO.StatusPin = c.Int(flagStatusPin)
	}
	if c.IsSet(flagBroker) {
		cfg.MQTT.Broker = c.String(flagBroker)
	}
	if c.IsSet(flagTopicPrefix) {
		cfg.MQTT.TopicPrefix = c.String(flagTopicPrefix)
	}
	if c.IsSet(flagHTTP) {
		cfg.HTTP.Addr = c.String(flagHTTP)
	}
	if c.IsSet(flagLogLevel) {
		cfg.Logging.Level = c.String(flagLogLevel)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config, printReading bool) error {
	logger := logging.New(cfg.Logging)
	defer logger.Sync()

	clk := bclock.New()

	// Initialize GPIO
	pins, err := gpio.NewRealPins(cfg.GPIO.Chip, cfg.GPIO.OccupancyPin, cfg.GPIO.StatusPin, cfg.GPIO.OccupancyActiveLow)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}

	sens, err := sensor.Open(cfg.Sensor, clk, logger.Named("sensor"))
	if err != nil {
		pins.Close()
		return fmt.Errorf("init sensor: %w", err)
	}

	// Print reading mode
	if printReading {
		defer closeAll(logger, sens, pins)
		return printOnce(os.Stdout, sens, pins, cfg.TemperatureOffset)
	}

	store, err := accessory.NewStore(accessory.DefaultTable(accessory.Info{
		Name:         cfg.Accessory.Name,
		Manufacturer: cfg.Accessory.Manufacturer,
		SerialNumber: cfg.Accessory.SerialNumber,
		Model:        cfg.Accessory.Model,
		Firmware:     cfg.Accessory.Firmware,
	}))
	if err != nil {
		closeAll(logger, sens, pins)
		return fmt.Errorf("build accessory table: %w", err)
	}

	// Initialize MQTT
	mqttLog := logger.Named("mqtt")
	transport, err := mqtt.NewRealTransport(cfg.MQTT, store, func(accessoryID int) {
		mqttLog.Infow("accessory identify", "accessory_id", accessoryID)
	}, mqttLog)
	if err != nil {
		closeAll(logger, sens, pins)
		return fmt.Errorf("init mqtt: %w", err)
	}
	closers := []closer{transport, sens, pins}
	defer func() { closeAll(logger, closers...) }()

	m := metrics.New()
	store.Subscribe(transport)
	store.Subscribe(m)

	if cfg.InfluxDB.Enabled {
		sink, err := history.Connect(context.Background(), cfg.InfluxDB, cfg.Accessory.Name, logger.Named("history"))
		if err != nil {
			logger.Warnw("history disabled", "error", err)
		} else {
			store.Subscribe(sink)
			closers = append(closers, sink)
		}
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(clk.Now(), status.Config{
		ReportMs:          cfg.ReportPeriod.Milliseconds(),
		DiagnosticsMs:     cfg.DiagnosticsPeriod.Milliseconds(),
		TemperatureOffset: cfg.TemperatureOffset,
		SensorDriver:      cfg.Sensor.Driver,
		Broker:            cfg.MQTT.Broker,
		TopicPrefix:       cfg.MQTT.TopicPrefix,
		HTTPPort:          cfg.HTTP.Addr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(transport.IsConnected())

	millis := clock.New(clk)
	n, err := node.New(node.Options{
		Store:             store,
		Sensor:            sens,
		Pins:              pins,
		Transport:         transport,
		Memory:            node.SystemMemory{},
		Tracker:           tracker,
		Metrics:           m,
		Logger:            logger,
		ReportPeriod:      cfg.ReportPeriod,
		DiagnosticsPeriod: cfg.DiagnosticsPeriod,
		TemperatureOffset: cfg.TemperatureOffset,
		Start:             millis.Millis(),
	})
	if err != nil {
		return err
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := transport.PublishSystem(startupEvent); err != nil {
		logger.Warnw("failed to publish startup event", "error", err)
	} else {
		logger.Info("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, store, m, logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Infow("http status server listening", "addr", cfg.HTTP.Addr)
	}

	logger.Infow("started",
		"report", cfg.ReportPeriod,
		"diagnostics", cfg.DiagnosticsPeriod,
		"sensor", sens.Name(),
		"broker", cfg.MQTT.Broker,
		"prefix", cfg.MQTT.TopicPrefix,
	)

	ticker := clk.Ticker(cfg.LoopYield)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(n, transport, pins, tracker, millis, clk.Now, ticker.C, sigCh, logger)
}

// loopTransport is the part of the transport runLoop uses directly; the
// node drives Poll and Notify.
type loopTransport interface {
	mqtt.SystemPublisher
	mqtt.ConnectionStatus
}

// runLoop runs one node iteration per tick until a signal arrives. On
// SIGINT or SIGTERM it publishes SHUTDOWN, drives the status pin inactive
// and returns nil.
func runLoop(n *node.Node, transport loopTransport, pins gpio.Pins, tracker *status.Tracker, millis clock.Clock, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, logger *zap.SugaredLogger) error {
	for {
		select {
		case s := <-sig:
			logger.Infow("shutting down", "signal", s.String())
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				tracker.SetMQTTConnected(transport.IsConnected())
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := transport.PublishSystem(event); err != nil {
				logger.Warnw("failed to publish shutdown event", "error", err)
			} else {
				logger.Info("published shutdown event")
			}
			if err := pins.WriteStatus(false); err != nil {
				logger.Warnw("status pin reset failed", "error", err)
			}
			return nil

		case <-tick:
			n.Step(millis.Millis())
			if tracker != nil {
				tracker.SetMQTTConnected(transport.IsConnected())
			}
		}
	}
}

// printOnce takes one reading and prints it in the report log format.
func printOnce(w io.Writer, sens sensor.Sensor, pins gpio.Pins, offset float64) error {
	occupied, err := pins.ReadOccupancy()
	if err != nil {
		return fmt.Errorf("read occupancy: %w", err)
	}
	r := logic.Reading{
		Temperature: sens.ReadTemperature(),
		Humidity:    sens.ReadHumidity(),
		Occupancy:   occupied,
	}.Calibrated(offset)

	if r.Valid() {
		fmt.Fprintf(w, "Temp (C): %.1f, Hum (percent): %.0f, ", r.Temperature, r.Humidity)
	} else {
		fmt.Fprintf(w, "Failed to read from %s sensor!, ", sens.Name())
	}
	fmt.Fprintf(w, "Occupancy sensor is: %s\n", logic.OccupancyString(r.Occupancy))
	return nil
}

type closer interface {
	Close() error
}

// closeAll closes every resource and logs the combined failure, if any.
func closeAll(logger *zap.SugaredLogger, cs ...closer) {
	var err error
	for _, c := range cs {
		err = multierr.Append(err, c.Close())
	}
	if err != nil {
		logger.Warnw("closing resources", "error", err)
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
