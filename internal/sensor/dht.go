package sensor

import (
	"fmt"
	"time"

	"github.com/MichaelS11/go-dht"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/sweeney/climate-bridge/internal/config"
)

// Datasheet minimum sampling periods.
const (
	dht11MinInterval = 1 * time.Second
	dht22MinInterval = 2 * time.Second
)

func openDHT(cfg config.SensorConfig, dht22 bool, clk clock.Clock, log *zap.SugaredLogger) (*Device, error) {
	if err := dht.HostInit(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	name, sensorType, interval := "DHT11", "dht11", dht11MinInterval
	if dht22 {
		name, sensorType, interval = "DHT22", "dht22", dht22MinInterval
	}

	dev, err := dht.NewDHT(cfg.Pin, dht.Celsius, sensorType)
	if err != nil {
		return nil, fmt.Errorf("open %s on %s: %w", name, cfg.Pin, err)
	}

	read := func() (float64, float64, error) {
		humidity, temperature, err := dev.Read()
		if err != nil {
			return 0, 0, err
		}
		return temperature, humidity, nil
	}

	return newDevice(name, read, nil, clk, minIntervalOr(cfg, interval), log), nil
}
