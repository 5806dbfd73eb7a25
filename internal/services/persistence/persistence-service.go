// Package persistence consumes the aggregated telemetry stream and lands it
// in InfluxDB, keeping an in-memory copy of the latest reading per sensor so
// the query API survives an Influx outage.
package persistence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"

	"github.com/thoufik1111/AgroNITY/internal/model/messages"
	"github.com/thoufik1111/AgroNITY/pkg/broker"
	"github.com/thoufik1111/AgroNITY/pkg/dedup"
)

const telemetryMeasurement = "soil_telemetry"

type InfluxConfig struct {
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

// CachedReading is a sensor reading plus a staleness flag for readings older
// than the service TTL.
type CachedReading struct {
	messages.SensorReading
	Stale bool `json:"stale,omitempty"`
}

type Service struct {
	consumer   broker.IConsumer[messages.SensorReading]
	writeAPI   api.WriteAPIBlocking
	queryAPI   api.QueryAPI
	bucket     string
	staleAfter time.Duration
	log        *zap.SugaredLogger
	dedup      *dedup.Deduper

	mu     sync.RWMutex
	latest map[string]messages.SensorReading // key field/sensor

	now func() time.Time
}

func NewService(consumer broker.IConsumer[messages.SensorReading], cfg InfluxConfig, staleAfter time.Duration, log *zap.SugaredLogger) (*Service, error) {
	if cfg.InfluxURL == "" || cfg.InfluxToken == "" || cfg.InfluxOrg == "" || cfg.InfluxBucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}

	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	return &Service{
		consumer:   consumer,
		writeAPI:   client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		queryAPI:   client.QueryAPI(cfg.InfluxOrg),
		bucket:     cfg.InfluxBucket,
		staleAfter: staleAfter,
		log:        log,
		dedup:      dedup.New(10*time.Minute, 10000),
		latest:     make(map[string]messages.SensorReading),
		now:        time.Now,
	}, nil
}

// Start consumes until the context closes. The aggregated topic rides QoS 1,
// so redeliveries are dropped by payload hash before writing.
func (s *Service) Start(ctx context.Context) {
	s.consumer.SetHandler(func(topic string, msg mqtt.Message) error {
		sum := sha256.Sum256(msg.Payload())
		if !s.dedup.ShouldProcess(hex.EncodeToString(sum[:])) {
			s.log.Debugw("dropping duplicate delivery", "topic", topic)
			return nil
		}
		if !strings.HasPrefix(topic, "sensor/") {
			s.log.Warnw("unexpected topic", "topic", topic)
			return nil
		}
		return s.handleTelemetry(ctx, topic, msg.Payload())
	})
	s.consumer.ConsumeMessage(ctx)
}

func (s *Service) handleTelemetry(ctx context.Context, topic string, payload []byte) error {
	var m messages.SensorReading
	if err := json.Unmarshal(payload, &m); err != nil {
		s.log.Warnw("invalid telemetry json", "topic", topic, "error", err)
		return nil // never block the stream on a bad payload
	}

	t := m.Timestamp
	if t.IsZero() {
		t = s.now()
	}
	point := influxdb2.NewPoint(telemetryMeasurement,
		map[string]string{
			"field_id":  m.FieldID,
			"sensor_id": m.SensorID,
		},
		map[string]interface{}{
			"moisture":    m.MoisturePct,
			"temperature": m.TemperatureC,
			"humidity":    m.HumidityPct,
		},
		t)

	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		s.log.Errorw("influx write failed", "measurement", telemetryMeasurement, "error", err)
		return err
	}

	s.mu.Lock()
	s.latest[m.FieldID+"/"+m.SensorID] = m
	s.mu.Unlock()

	s.log.Debugw("wrote telemetry", "field", m.FieldID, "sensor", m.SensorID, "moisture", m.MoisturePct)
	return nil
}

func (s *Service) flag(r messages.SensorReading) CachedReading {
	stale := !r.Timestamp.IsZero() && s.now().Sub(r.Timestamp) > s.staleAfter
	return CachedReading{SensorReading: r, Stale: stale}
}

// LatestCache returns the newest reading seen per sensor since startup,
// flagged stale past the TTL.
func (s *Service) LatestCache() []CachedReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CachedReading, 0, len(s.latest))
	for _, v := range s.latest {
		out = append(out, s.flag(v))
	}
	return out
}

// TimedValue is one sample of a history series.
type TimedValue struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

// QueryLatestTelemetry reads the last moisture value per sensor from
// Influx inside the window.
func (s *Service) QueryLatestTelemetry(ctx context.Context, minutes int) ([]CachedReading, error) {
	if s.queryAPI == nil {
		return nil, fmt.Errorf("influx query api unavailable")
	}
	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q)
  |> filter(fn: (r) => r._field == "moisture")
  |> last()`, s.bucket, minutes, telemetryMeasurement)

	result, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	var out []CachedReading
	for result.Next() {
		rec := result.Record()
		reading := messages.SensorReading{
			FieldID:   stringTag(rec.ValueByKey("field_id")),
			SensorID:  stringTag(rec.ValueByKey("sensor_id")),
			Timestamp: rec.Time(),
		}
		reading.MoisturePct = int(numeric(rec.Value()))
		reading.Aggregated = true
		out = append(out, s.flag(reading))
	}
	if result.Err() != nil {
		return nil, result.Err()
	}
	return out, nil
}

// MoistureHistory returns the moisture series for one sensor. An empty
// fieldID matches any field carrying that sensor id.
func (s *Service) MoistureHistory(ctx context.Context, fieldID, sensorID string, minutes int) ([]TimedValue, error) {
	if s.queryAPI == nil {
		return nil, fmt.Errorf("influx query api unavailable")
	}
	sensorFilter := fmt.Sprintf(`r.sensor_id == %q`, sensorID)
	if fieldID != "" {
		sensorFilter = fmt.Sprintf(`r.field_id == %q and r.sensor_id == %q`, fieldID, sensorID)
	}
	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q)
  |> filter(fn: (r) => r._field == "moisture")
  |> filter(fn: (r) => %s)
  |> sort(columns: ["_time"])`, s.bucket, minutes, telemetryMeasurement, sensorFilter)

	return s.queryValues(ctx, flux)
}

func (s *Service) queryValues(ctx context.Context, flux string) ([]TimedValue, error) {
	result, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	var out []TimedValue
	for result.Next() {
		rec := result.Record()
		out = append(out, TimedValue{At: rec.Time(), Value: numeric(rec.Value())})
	}
	if result.Err() != nil {
		return nil, result.Err()
	}
	return out, nil
}

func stringTag(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func numeric(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return 0
}
