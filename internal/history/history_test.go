package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/sweeney/climate-bridge/internal/accessory"
	"github.com/sweeney/climate-bridge/internal/config"
)

type fakeWriter struct {
	points  []*write.Point
	flushes int
}

func (f *fakeWriter) WritePoint(p *write.Point) { f.points = append(f.points, p) }
func (f *fakeWriter) Flush()                    { f.flushes++ }

func tags(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func field(p *write.Point, key string) interface{} {
	for _, f := range p.FieldList() {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(context.Background(), config.InfluxDBConfig{Enabled: false}, "node", zap.NewNop().Sugar())
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestSinkNotify(t *testing.T) {
	at := time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC)
	w := &fakeWriter{}
	s := newSink(w, "Climate bridge", func() time.Time { return at })

	s.Notify(accessory.Event{AccessoryID: 3, Characteristic: accessory.Temperature, Type: "CurrentTemperature", Value: 18.3})
	s.Notify(accessory.Event{AccessoryID: 2, Characteristic: accessory.Occupancy, Type: "OccupancyDetected", Value: true})

	if len(w.points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(w.points))
	}

	p := w.points[0]
	if p.Name() != Measurement {
		t.Errorf("measurement: got %s, want %s", p.Name(), Measurement)
	}
	if !p.Time().Equal(at) {
		t.Errorf("time: got %v, want %v", p.Time(), at)
	}
	tg := tags(p)
	if tg["accessory_id"] != "3" || tg["characteristic"] != "temperature" || tg["node"] != "Climate bridge" || tg["type"] != "CurrentTemperature" {
		t.Errorf("unexpected tags: %v", tg)
	}
	if v := field(p, "value"); v != 18.3 {
		t.Errorf("value: got %v, want 18.3", v)
	}

	if v := field(w.points[1], "value"); v != true {
		t.Errorf("occupancy value: got %v, want true", v)
	}
}

func TestSinkIgnoresUnsupportedValues(t *testing.T) {
	w := &fakeWriter{}
	s := newSink(w, "n", time.Now)

	s.Notify(accessory.Event{Characteristic: "name", Value: "kitchen"})

	if len(w.points) != 0 {
		t.Errorf("expected no points, got %d", len(w.points))
	}
}

func TestSinkClose(t *testing.T) {
	w := &fakeWriter{}
	s := newSink(w, "n", time.Now)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes: got %d, want 1", w.flushes)
	}
}
