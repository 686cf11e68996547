// Package sensor reads the combined temperature/humidity sensor.
// Faults are reported as NaN, never as errors, so a failed read simply
// skips one publish.
package sensor

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/sweeney/climate-bridge/internal/config"
)

// ErrUnsupportedDriver is returned by Open for an unknown driver name.
var ErrUnsupportedDriver = errors.New("sensor: unsupported driver")

// Sensor provides temperature and humidity readings.
type Sensor interface {
	// ReadTemperature returns °C, or NaN on fault.
	ReadTemperature() float64
	// ReadHumidity returns %RH, or NaN on fault.
	ReadHumidity() float64
	// Name identifies the hardware in log lines, e.g. "DHT22".
	Name() string
	// Close releases the hardware.
	Close() error
}

// pairFunc performs one physical transaction returning both values.
type pairFunc func() (temperature, humidity float64, err error)

// Device adapts a one-transaction sensor to the Sensor interface.
// A read within minInterval of the previous one returns the cached pair,
// so ReadTemperature followed by ReadHumidity costs one bus transaction.
type Device struct {
	name        string
	read        pairFunc
	closeFn     func() error
	clk         clock.Clock
	minInterval time.Duration
	log         *zap.SugaredLogger

	lastRead    time.Time
	temperature float64
	humidity    float64
}

func newDevice(name string, read pairFunc, closeFn func() error, clk clock.Clock, minInterval time.Duration, log *zap.SugaredLogger) *Device {
	return &Device{
		name:        name,
		read:        read,
		closeFn:     closeFn,
		clk:         clk,
		minInterval: minInterval,
		log:         log,
		temperature: math.NaN(),
		humidity:    math.NaN(),
	}
}

func (d *Device) sample() {
	now := d.clk.Now()
	if !d.lastRead.IsZero() && now.Sub(d.lastRead) < d.minInterval {
		return
	}
	d.lastRead = now

	t, h, err := d.read()
	if err != nil {
		d.log.Debugw("sensor read failed", "sensor", d.name, "error", err)
		d.temperature, d.humidity = math.NaN(), math.NaN()
		return
	}
	d.temperature, d.humidity = t, h
}

// ReadTemperature implements Sensor.
func (d *Device) ReadTemperature() float64 {
	d.sample()
	return d.temperature
}

// ReadHumidity implements Sensor.
func (d *Device) ReadHumidity() float64 {
	d.sample()
	return d.humidity
}

// Name implements Sensor.
func (d *Device) Name() string {
	return d.name
}

// Close implements Sensor.
func (d *Device) Close() error {
	if d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}

// Open creates the sensor selected by cfg.Driver.
func Open(cfg config.SensorConfig, clk clock.Clock, log *zap.SugaredLogger) (Sensor, error) {
	switch strings.ToLower(cfg.Driver) {
	case config.DriverDHT11:
		return openDHT(cfg, false, clk, log)
	case config.DriverDHT22:
		return openDHT(cfg, true, clk, log)
	case config.DriverBME280:
		return openBME280(cfg, clk, log)
	case config.DriverSHT4x:
		return openSHT4x(cfg, clk, log)
	case config.DriverFake:
		return NewFake([]Sample{{Temperature: 21, Humidity: 50}}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

func minIntervalOr(cfg config.SensorConfig, def time.Duration) time.Duration {
	if cfg.MinInterval > 0 {
		return cfg.MinInterval
	}
	return def
}
