// Package history records published characteristic values in InfluxDB.
//
// Sink is an accessory.Observer: every notification becomes one point in
// the "characteristic" measurement. Writes go through the client's
// non-blocking batched write API, so Notify never waits on the network.
package history

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/sweeney/climate-bridge/internal/accessory"
	"github.com/sweeney/climate-bridge/internal/config"
)

// Measurement is the InfluxDB measurement written for every notification.
const Measurement = "characteristic"

const connectTimeout = 10 * time.Second

// Sentinel errors.
var (
	// ErrDisabled indicates the history sink is disabled in configuration.
	ErrDisabled = errors.New("history: disabled in configuration")

	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("history: connection failed")
)

// pointWriter is the part of api.WriteAPI the sink uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Sink writes characteristic notifications to InfluxDB.
type Sink struct {
	client influxdb2.Client
	writer pointWriter
	node   string
	now    func() time.Time
}

// Connect pings the server and returns a sink writing to cfg.Bucket.
// node tags every point (the bridge accessory name).
func Connect(ctx context.Context, cfg config.InfluxDBConfig, node string, log *zap.SugaredLogger) (*Sink, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 50
	}
	flush := cfg.FlushInterval
	if flush <= 0 {
		flush = 10 * time.Second
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(batchSize).
			SetFlushInterval(uint(flush.Milliseconds())),
	)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			log.Warnw("influxdb write failed", "error", err)
		}
	}()

	s := newSink(writeAPI, node, time.Now)
	s.client = client
	return s, nil
}

func newSink(w pointWriter, node string, now func() time.Time) *Sink {
	return &Sink{writer: w, node: node, now: now}
}

// Notify writes ev as one point. Values other than bool and float64 are
// ignored.
func (s *Sink) Notify(ev accessory.Event) {
	var value interface{}
	switch v := ev.Value.(type) {
	case bool:
		value = v
	case float64:
		value = v
	default:
		return
	}

	point := write.NewPoint(
		Measurement,
		map[string]string{
			"node":           s.node,
			"accessory_id":   strconv.Itoa(ev.AccessoryID),
			"characteristic": ev.Characteristic,
			"type":           ev.Type,
		},
		map[string]interface{}{
			"value": value,
		},
		s.now(),
	)
	s.writer.WritePoint(point)
}

// Close flushes pending points and closes the client.
func (s *Sink) Close() error {
	s.writer.Flush()
	if s.client != nil {
		s.client.Close()
	}
	return nil
}
