package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestET0Hargreaves(t *testing.T) {
	// tmean 28, span 12: 0.0023 * 45.8 * sqrt(12) * 0.408
	et0 := ET0Hargreaves(22, 34)
	assert.InDelta(t, 0.14889, et0, 0.0001)

	// inverted span must not NaN
	assert.Zero(t, ET0Hargreaves(30, 30))
}

func TestOWMClientParsesDaily(t *testing.T) {
	dt := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "k123", r.URL.Query().Get("appid"))
		fmt.Fprintf(w, `{"daily":[{"dt":%d,"temp":{"min":22,"max":34},"humidity":68,"rain":4.5}]}`, dt)
	}))
	defer srv.Close()

	c := NewOWMClient("k123")
	c.BaseURL = srv.URL

	days, err := c.Daily(context.Background(), 10.79, 79.14)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.InDelta(t, 4.5, days[0].RainMM, 0.001)
	assert.InDelta(t, 68, days[0].HumidityPct, 0.001)
	assert.InDelta(t, ET0Hargreaves(22, 34), days[0].ET0MM, 0.0001)
}

func TestOWMClientRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"cod":401}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewOWMClient("bad")
	c.BaseURL = srv.URL

	_, err := c.Daily(context.Background(), 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestOWMClientNeedsKey(t *testing.T) {
	c := NewOWMClient("")
	_, err := c.Daily(context.Background(), 0, 0)
	require.Error(t, err)
}

type fakeSource struct {
	days  []Day
	err   error
	calls int
}

func (f *fakeSource) Daily(ctx context.Context, lat, lon float64) ([]Day, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.days, nil
}

func TestCacheServesFreshWithoutRefetch(t *testing.T) {
	src := &fakeSource{days: []Day{{RainMM: 2}}}
	cache := NewCache(src, time.Hour, zap.NewNop().Sugar())

	_, stale, err := cache.Daily(context.Background(), 10, 79)
	require.NoError(t, err)
	assert.False(t, stale)

	_, _, err = cache.Daily(context.Background(), 10, 79)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
}

func TestCacheServesStaleOnUpstreamFailure(t *testing.T) {
	src := &fakeSource{days: []Day{{RainMM: 2}}}
	cache := NewCache(src, time.Hour, zap.NewNop().Sugar())

	now := time.Now()
	cache.now = func() time.Time { return now }

	_, _, err := cache.Daily(context.Background(), 10, 79)
	require.NoError(t, err)

	cache.now = func() time.Time { return now.Add(2 * time.Hour) }
	src.err = errors.New("owm down")

	days, stale, err := cache.Daily(context.Background(), 10, 79)
	require.NoError(t, err)
	assert.True(t, stale)
	assert.InDelta(t, 2, days[0].RainMM, 0.001)
}

func TestCacheFailsWithNothingCached(t *testing.T) {
	src := &fakeSource{err: errors.New("owm down")}
	cache := NewCache(src, time.Hour, zap.NewNop().Sugar())

	_, _, err := cache.Daily(context.Background(), 10, 79)
	require.Error(t, err)
}

func TestRainAheadWindow(t *testing.T) {
	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	days := []Day{
		{Date: base, RainMM: 5},
		{Date: base.AddDate(0, 0, 1), RainMM: 10},
		{Date: base.AddDate(0, 0, 2), RainMM: 20},
		{Date: base.AddDate(0, 0, 5), RainMM: 40},
	}
	assert.InDelta(t, 15, RainAhead(days, base, 2), 0.001)
	assert.InDelta(t, 35, RainAhead(days, base, 3), 0.001)
	assert.Zero(t, RainAhead(nil, base, 3))
}

func TestNearestDayPicksClosest(t *testing.T) {
	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	days := []Day{
		{Date: base, RainMM: 1},
		{Date: base.AddDate(0, 0, 1), RainMM: 2},
	}
	d, ok := NearestDay(days, base.Add(26*time.Hour))
	require.True(t, ok)
	assert.InDelta(t, 2, d.RainMM, 0.001)

	_, ok = NearestDay(nil, base)
	assert.False(t, ok)
}
