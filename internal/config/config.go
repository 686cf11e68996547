// Package config loads the climate bridge configuration.
//
// Values come from defaults, then an optional YAML file, then environment
// variables (CLIMATE_BRIDGE_SECTION_KEY). CLI flags are applied on top by
// the caller.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid")

// Supported sensor drivers.
const (
	DriverDHT11  = "dht11"
	DriverDHT22  = "dht22"
	DriverBME280 = "bme280"
	DriverSHT4x  = "sht4x"
	DriverFake   = "fake"
)

// Config is the root configuration.
type Config struct {
	// ReportPeriod is the sensor report cadence.
	ReportPeriod time.Duration `yaml:"report_period"`
	// DiagnosticsPeriod is the free-memory/observer log cadence.
	DiagnosticsPeriod time.Duration `yaml:"diagnostics_period"`
	// LoopYield is the pause between main loop iterations.
	LoopYield time.Duration `yaml:"loop_yield"`
	// TemperatureOffset is added to every raw temperature (°C).
	TemperatureOffset float64 `yaml:"temperature_offset"`

	Sensor    SensorConfig    `yaml:"sensor"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	HTTP      HTTPConfig      `yaml:"http"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Accessory AccessoryConfig `yaml:"accessory"`
}

// SensorConfig selects and addresses the temperature/humidity sensor.
type SensorConfig struct {
	Driver string `yaml:"driver"`
	// Pin is the periph pin name of a DHT data line (e.g. "GPIO22").
	Pin string `yaml:"pin"`
	// I2CBus is the periph I²C bus name; empty picks the first bus.
	I2CBus string `yaml:"i2c_bus"`
	// I2CAddr is the BME280 address (0x76 or 0x77). Zero uses 0x76.
	I2CAddr uint16 `yaml:"i2c_addr"`
	// MinInterval is the shortest time between two physical reads.
	// Zero picks the driver's datasheet minimum.
	MinInterval time.Duration `yaml:"min_interval"`
}

// GPIOConfig contains the digital I/O lines (BCM offsets).
type GPIOConfig struct {
	Chip               string `yaml:"chip"`
	OccupancyPin       int    `yaml:"occupancy_pin"`
	OccupancyActiveLow bool   `yaml:"occupancy_active_low"`
	StatusPin          int    `yaml:"status_pin"`
}

// MQTTConfig contains the accessory bridge broker settings.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	// BufferSize bounds the messages kept while disconnected.
	BufferSize int `yaml:"buffer_size"`
}

// HTTPConfig contains the status server settings. Empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// InfluxDBConfig contains the optional history sink settings.
type InfluxDBConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	Token         string        `yaml:"token"`
	Org           string        `yaml:"org"`
	Bucket        string        `yaml:"bucket"`
	BatchSize     uint          `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig enables a rotating log file next to stdout.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// AccessoryConfig is the bridge accessory information.
type AccessoryConfig struct {
	Name         string `yaml:"name"`
	Manufacturer string `yaml:"manufacturer"`
	SerialNumber string `yaml:"serial_number"`
	Model        string `yaml:"model"`
	Firmware     string `yaml:"firmware"`
}

// Default returns the configuration used when nothing else is given.
func Default() *Config {
	return &Config{
		ReportPeriod:      2 * time.Second,
		DiagnosticsPeriod: 5 * time.Second,
		LoopYield:         10 * time.Millisecond,
		TemperatureOffset: -3.0,
		Sensor: SensorConfig{
			Driver: DriverDHT11,
			Pin:    "GPIO22",
		},
		GPIO: GPIOConfig{
			Chip:         "gpiochip0",
			OccupancyPin: 5,
			StatusPin:    16,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "climate-bridge",
			TopicPrefix: "home/climate-bridge",
			QoS:         0,
			BufferSize:  256,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "climate",
			BatchSize:     50,
			FlushInterval: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File: FileLoggingConfig{
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
		Accessory: AccessoryConfig{
			Name:         "Climate bridge",
			Manufacturer: "sweeney",
			SerialNumber: "0123456",
			Model:        "climate-bridge",
			Firmware:     "1.0",
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if path
// is not empty) and environment overrides. The result is not validated;
// callers apply flags first and then call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides covers the secrets and the settings most often changed
// per deployment.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CLIMATE_BRIDGE_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("CLIMATE_BRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("CLIMATE_BRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("CLIMATE_BRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("CLIMATE_BRIDGE_SENSOR_DRIVER"); v != "" {
		cfg.Sensor.Driver = v
	}
}

// Validate checks the configuration. All problems are reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.ReportPeriod <= 0 {
		errs = append(errs, "report_period must be positive")
	}
	if c.DiagnosticsPeriod <= 0 {
		errs = append(errs, "diagnostics_period must be positive")
	} else if c.DiagnosticsPeriod <= c.ReportPeriod {
		errs = append(errs, "diagnostics_period must be longer than report_period")
	}
	// Half the 32-bit millisecond counter range.
	maxPeriod := time.Duration(math.MaxInt32) * time.Millisecond
	if c.ReportPeriod > maxPeriod || c.DiagnosticsPeriod > maxPeriod {
		errs = append(errs, "periods must be shorter than 24 days")
	}
	if c.LoopYield <= 0 {
		errs = append(errs, "loop_yield must be positive")
	} else if c.LoopYield >= c.ReportPeriod {
		errs = append(errs, "loop_yield must be shorter than report_period")
	}
	if math.IsNaN(c.TemperatureOffset) || math.IsInf(c.TemperatureOffset, 0) {
		errs = append(errs, "temperature_offset must be a finite number")
	}

	switch strings.ToLower(c.Sensor.Driver) {
	case DriverDHT11, DriverDHT22:
		if c.Sensor.Pin == "" {
			errs = append(errs, "sensor.pin is required for DHT sensors")
		}
	case DriverBME280, DriverSHT4x, DriverFake:
	default:
		errs = append(errs, fmt.Sprintf("sensor.driver %q is not supported", c.Sensor.Driver))
	}
	if c.Sensor.MinInterval < 0 {
		errs = append(errs, "sensor.min_interval must not be negative")
	}

	if c.GPIO.OccupancyPin < 0 || c.GPIO.StatusPin < 0 {
		errs = append(errs, "gpio pins must not be negative")
	}
	if c.GPIO.OccupancyPin == c.GPIO.StatusPin {
		errs = append(errs, "gpio.occupancy_pin and gpio.status_pin must differ")
	}

	if c.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required")
	}
	if c.MQTT.ClientID == "" {
		errs = append(errs, "mqtt.client_id is required")
	}
	if c.MQTT.TopicPrefix == "" || strings.ContainsAny(c.MQTT.TopicPrefix, "+#") {
		errs = append(errs, "mqtt.topic_prefix must be set and contain no wildcards")
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1 or 2")
	}
	if c.MQTT.BufferSize <= 0 {
		errs = append(errs, "mqtt.buffer_size must be positive")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q is not supported", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
