package sensor

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/devices/v3/sht4x"
	"periph.io/x/host/v3"

	"github.com/sweeney/climate-bridge/internal/config"
)

const (
	bme280DefaultAddr = 0x76
	i2cMinInterval    = 1 * time.Second
)

func openBME280(cfg config.SensorConfig, clk clock.Clock, log *zap.SugaredLogger) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.I2CBus, err)
	}

	addr := cfg.I2CAddr
	if addr == 0 {
		addr = bme280DefaultAddr
	}
	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("open bme280 at %#x: %w", addr, err)
	}

	read := func() (float64, float64, error) {
		var env physic.Env
		if err := dev.Sense(&env); err != nil {
			return 0, 0, err
		}
		t, h := envPair(env)
		return t, h, nil
	}
	closeFn := func() error {
		return multierr.Append(dev.Halt(), bus.Close())
	}

	return newDevice("BME280", read, closeFn, clk, minIntervalOr(cfg, i2cMinInterval), log), nil
}

// openSHT4x always uses the sensor's fixed address; cfg.I2CAddr is ignored.
func openSHT4x(cfg config.SensorConfig, clk clock.Clock, log *zap.SugaredLogger) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.I2CBus, err)
	}

	dev, err := sht4x.New(bus, sht4x.DefaultAddress)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("open sht4x: %w", err)
	}

	read := func() (float64, float64, error) {
		var env physic.Env
		if err := dev.Sense(&env); err != nil {
			return 0, 0, err
		}
		t, h := envPair(env)
		return t, h, nil
	}

	return newDevice("SHT4x", read, bus.Close, clk, minIntervalOr(cfg, i2cMinInterval), log), nil
}

// envPair converts a periph environment sample to °C and %RH.
func envPair(env physic.Env) (float64, float64) {
	return env.Temperature.Celsius(), float64(env.Humidity) / float64(physic.PercentRH)
}
