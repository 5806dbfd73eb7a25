package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/thoufik1111/AgroNITY/internal/model/entities"
	"github.com/thoufik1111/AgroNITY/internal/model/messages"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (f *fakeMessage) Duplicate() bool   { return false }
func (f *fakeMessage) Qos() byte         { return 0 }
func (f *fakeMessage) Retained() bool    { return false }
func (f *fakeMessage) Topic() string     { return f.topic }
func (f *fakeMessage) MessageID() uint16 { return 0 }
func (f *fakeMessage) Payload() []byte   { return f.payload }
func (f *fakeMessage) Ack()              {}

type fakeConsumer struct {
	handler func(topic string, message mqtt.Message) error
}

func (f *fakeConsumer) ConsumeMessage(ctx context.Context) {}
func (f *fakeConsumer) SetHandler(h func(topic string, message mqtt.Message) error) {
	f.handler = h
}

type captureWriter struct {
	mu     sync.Mutex
	points []*write.Point
	fail   bool
}

func (c *captureWriter) WriteRecord(_ context.Context, _ ...string) error { return nil }

func (c *captureWriter) WritePoint(_ context.Context, point ...*write.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return fmt.Errorf("influx unreachable")
	}
	c.points = append(c.points, point...)
	return nil
}

func (c *captureWriter) EnableBatching() {}

func (c *captureWriter) Flush(_ context.Context) error { return nil }

func (c *captureWriter) all() []*write.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*write.Point(nil), c.points...)
}

func newTestService() (*Service, *captureWriter) {
	w := &captureWriter{}
	svc := &Service{
		consumer:   &fakeConsumer{},
		writeAPI:   w,
		bucket:     "farm-data",
		staleAfter: 24 * time.Hour,
		log:        zap.NewNop().Sugar(),
		latest:     make(map[string]entities.PriceQuote),
		now:        time.Now,
	}
	svc.Start(context.Background())
	return svc, w
}

func tick(t *testing.T, svc *Service, v messages.PriceTickEvent) error {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	handler := svc.consumer.(*fakeConsumer).handler
	require.NotNil(t, handler)
	topic := "market/price/" + v.Crop + "/" + v.District
	return handler(topic, &fakeMessage{topic: topic, payload: b})
}

func TestTickLandsAsPoint(t *testing.T) {
	svc, w := newTestService()

	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, tick(t, svc, messages.PriceTickEvent{
		Crop:       "Paddy",
		District:   "Thanjavur",
		Market:     "Thanjavur Mandi",
		PriceRsQtl: 2205,
		Timestamp:  at,
	}))

	points := w.all()
	require.Len(t, points, 1)
	p := points[0]
	assert.Equal(t, "mandi_price", p.Name())
	assert.Equal(t, at, p.Time())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, "Paddy", tags["crop"])
	assert.Equal(t, "Thanjavur", tags["district"])
	assert.Equal(t, "Thanjavur Mandi", tags["market"])

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.InDelta(t, 2205, fields["price_rs_qtl"], 0.001)
}

func TestIncompleteTickIgnored(t *testing.T) {
	svc, w := newTestService()

	require.NoError(t, tick(t, svc, messages.PriceTickEvent{District: "Thanjavur", PriceRsQtl: 2205}))
	require.NoError(t, tick(t, svc, messages.PriceTickEvent{Crop: "Paddy", District: "Thanjavur"}))
	assert.Empty(t, w.all())
}

func TestLatestQuotePerDistrictAndAcross(t *testing.T) {
	svc, _ := newTestService()

	require.NoError(t, tick(t, svc, messages.PriceTickEvent{
		Crop: "Maize", District: "Coimbatore", PriceRsQtl: 2090,
		Timestamp: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, tick(t, svc, messages.PriceTickEvent{
		Crop: "Maize", District: "Erode", PriceRsQtl: 2060,
		Timestamp: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}))

	q, ok := svc.LatestQuote("maize", "COIMBATORE")
	require.True(t, ok, "lookup is case-insensitive")
	assert.InDelta(t, 2090, q.PriceRsQtl, 0.001)

	q, ok = svc.LatestQuote("Maize", "")
	require.True(t, ok)
	assert.Equal(t, "Erode", q.District, "no district returns the most recent quote")

	_, ok = svc.LatestQuote("Wheat", "")
	assert.False(t, ok)
}

func TestLatestQuoteStaleFlag(t *testing.T) {
	svc, _ := newTestService()

	base := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	require.NoError(t, tick(t, svc, messages.PriceTickEvent{
		Crop: "Paddy", District: "Thanjavur", PriceRsQtl: 2205,
		Timestamp: base.Add(-48 * time.Hour),
	}))
	svc.now = func() time.Time { return base }

	q, ok := svc.LatestQuote("Paddy", "Thanjavur")
	require.True(t, ok)
	assert.True(t, q.Stale, "a two day old quote is stale at a 24h TTL")
}

func TestLatestEndpoint(t *testing.T) {
	svc, _ := newTestService()
	require.NoError(t, tick(t, svc, messages.PriceTickEvent{
		Crop: "Paddy", District: "Thanjavur", PriceRsQtl: 2205,
		Timestamp: time.Now(),
	}))

	mux := NewHTTPMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/market/latest?crop=Paddy", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cache", rec.Header().Get("X-Data-Source"))

	var quote entities.PriceQuote
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&quote))
	assert.InDelta(t, 2205, quote.PriceRsQtl, 0.001)

	// unknown crop, nil query api: nothing anywhere
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/market/latest?crop=Durian", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/market/latest", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForecastEndpointRequiresCrop(t *testing.T) {
	svc, _ := newTestService()
	mux := NewHTTPMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/market/forecast?days=30", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSeriesStats(t *testing.T) {
	series := []TimedValue{
		{Value: 2100}, {Value: 2200}, {Value: 2000}, {Value: 2180},
	}
	st := seriesStats("Paddy", "", series)
	assert.Equal(t, 4, st.Count)
	assert.InDelta(t, 2000, st.Min, 0.001)
	assert.InDelta(t, 2200, st.Max, 0.001)
	assert.InDelta(t, 2120, st.Mean, 0.001)
	assert.InDelta(t, 2180, st.Latest, 0.001)

	empty := seriesStats("Paddy", "Thanjavur", nil)
	assert.Equal(t, 0, empty.Count)
}
