// Package market consumes mandi price ticks, lands them in InfluxDB and
// serves latest quotes, window stats and a smoothed price forecast.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"

	"github.com/thoufik1111/AgroNITY/internal/model/entities"
	"github.com/thoufik1111/AgroNITY/internal/model/messages"
	"github.com/thoufik1111/AgroNITY/pkg/broker"
)

const priceMeasurement = "mandi_price"

type InfluxConfig struct {
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

type Service struct {
	consumer   broker.IConsumer[messages.PriceTickEvent]
	writeAPI   api.WriteAPIBlocking
	queryAPI   api.QueryAPI
	bucket     string
	staleAfter time.Duration
	log        *zap.SugaredLogger

	mu     sync.RWMutex
	latest map[string]entities.PriceQuote // key crop|district, lowercased

	now func() time.Time
}

func NewService(consumer broker.IConsumer[messages.PriceTickEvent], cfg InfluxConfig, staleAfter time.Duration, log *zap.SugaredLogger) (*Service, error) {
	if cfg.InfluxURL == "" || cfg.InfluxToken == "" || cfg.InfluxOrg == "" || cfg.InfluxBucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}

	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	return &Service{
		consumer:   consumer,
		writeAPI:   client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		queryAPI:   client.QueryAPI(cfg.InfluxOrg),
		bucket:     cfg.InfluxBucket,
		staleAfter: staleAfter,
		log:        log,
		latest:     make(map[string]entities.PriceQuote),
		now:        time.Now,
	}, nil
}

func quoteKey(crop, district string) string {
	return strings.ToLower(strings.TrimSpace(crop)) + "|" + strings.ToLower(strings.TrimSpace(district))
}

// Start consumes price ticks until the context closes.
func (s *Service) Start(ctx context.Context) {
	s.consumer.SetHandler(func(topic string, msg mqtt.Message) error {
		return s.handleTick(ctx, topic, msg.Payload())
	})
	s.consumer.ConsumeMessage(ctx)
}

func (s *Service) handleTick(ctx context.Context, topic string, payload []byte) error {
	var tick messages.PriceTickEvent
	if err := json.Unmarshal(payload, &tick); err != nil {
		s.log.Warnw("invalid price json", "topic", topic, "error", err)
		return nil // never block the stream on a bad payload
	}
	if strings.TrimSpace(tick.Crop) == "" || tick.PriceRsQtl <= 0 {
		s.log.Warnw("incomplete price tick", "topic", topic)
		return nil
	}

	t := tick.Timestamp
	if t.IsZero() {
		t = s.now()
	}
	point := influxdb2.NewPoint(priceMeasurement,
		map[string]string{
			"crop":     tick.Crop,
			"district": tick.District,
			"market":   tick.Market,
		},
		map[string]interface{}{
			"price_rs_qtl": tick.PriceRsQtl,
		},
		t)

	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		s.log.Errorw("influx write failed", "measurement", priceMeasurement, "error", err)
		return err
	}

	s.mu.Lock()
	s.latest[quoteKey(tick.Crop, tick.District)] = entities.PriceQuote{
		Crop:       tick.Crop,
		District:   tick.District,
		Market:     tick.Market,
		PriceRsQtl: tick.PriceRsQtl,
		At:         t,
	}
	s.mu.Unlock()

	s.log.Debugw("wrote price", "crop", tick.Crop, "district", tick.District, "price", tick.PriceRsQtl)
	return nil
}

// LatestQuote returns the newest cached quote for crop (and district when
// given), flagged stale past the TTL. With no district it returns the most
// recently updated quote for the crop across districts.
func (s *Service) LatestQuote(crop, district string) (entities.PriceQuote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if district != "" {
		q, ok := s.latest[quoteKey(crop, district)]
		if !ok {
			return entities.PriceQuote{}, false
		}
		q.Stale = s.now().Sub(q.At) > s.staleAfter
		return q, true
	}

	var best entities.PriceQuote
	found := false
	prefix := strings.ToLower(strings.TrimSpace(crop)) + "|"
	for k, q := range s.latest {
		if strings.HasPrefix(k, prefix) && (!found || q.At.After(best.At)) {
			best, found = q, true
		}
	}
	if found {
		best.Stale = s.now().Sub(best.At) > s.staleAfter
	}
	return best, found
}

// TimedValue is one sample of a price series.
type TimedValue struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

// InfluxLatest reads the last stored quote for the crop/district pair.
func (s *Service) InfluxLatest(ctx context.Context, crop, district string) (entities.PriceQuote, error) {
	if s.queryAPI == nil {
		return entities.PriceQuote{}, fmt.Errorf("influx query api unavailable")
	}
	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: -30d)
  |> filter(fn: (r) => r._measurement == %q)
  |> filter(fn: (r) => r._field == "price_rs_qtl")
  |> filter(fn: (r) => %s)
  |> last()`, s.bucket, priceMeasurement, cropFilter(crop, district))

	result, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return entities.PriceQuote{}, err
	}
	var q entities.PriceQuote
	found := false
	for result.Next() {
		rec := result.Record()
		at := rec.Time()
		if !found || at.After(q.At) {
			q = entities.PriceQuote{
				Crop:       stringTag(rec.ValueByKey("crop")),
				District:   stringTag(rec.ValueByKey("district")),
				Market:     stringTag(rec.ValueByKey("market")),
				PriceRsQtl: numeric(rec.Value()),
				At:         at,
			}
			found = true
		}
	}
	if result.Err() != nil {
		return entities.PriceQuote{}, result.Err()
	}
	if !found {
		return entities.PriceQuote{}, fmt.Errorf("no stored price for %s", crop)
	}
	q.Stale = s.now().Sub(q.At) > s.staleAfter
	return q, nil
}

// DailySeries returns the daily mean price for the crop over the window.
// District narrows the series when given, otherwise the mean spans districts.
func (s *Service) DailySeries(ctx context.Context, crop, district string, days int) ([]TimedValue, error) {
	if s.queryAPI == nil {
		return nil, fmt.Errorf("influx query api unavailable")
	}
	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: -%dd)
  |> filter(fn: (r) => r._measurement == %q)
  |> filter(fn: (r) => r._field == "price_rs_qtl")
  |> filter(fn: (r) => %s)
  |> group(columns: ["_field"])
  |> aggregateWindow(every: 1d, fn: mean, createEmpty: false)
  |> sort(columns: ["_time"])`, s.bucket, days, priceMeasurement, cropFilter(crop, district))

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

func cropFilter(crop, district string) string {
	if district != "" {
		return fmt.Sprintf(`r.crop == %q and r.district == %q`, crop, district)
	}
	return fmt.Sprintf(`r.crop == %q`, crop)
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
