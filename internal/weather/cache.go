package weather

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Source is anything that can produce a daily forecast.
type Source interface {
	Daily(ctx context.Context, lat, lon float64) ([]Day, error)
}

type cacheEntry struct {
	days []Day
	at   time.Time
}

// Cache keeps the last forecast per location and serves it while fresh.
// When the upstream fails, the last good forecast is returned with stale
// set, so an OpenWeather outage does not take advisories down with it.
type Cache struct {
	src Source
	ttl time.Duration
	log *zap.SugaredLogger

	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewCache(src Source, ttl time.Duration, log *zap.SugaredLogger) *Cache {
	return &Cache{
		src:     src,
		ttl:     ttl,
		log:     log,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Daily returns the forecast for the coordinates. stale reports that the
// upstream failed and an expired entry was served instead.
func (c *Cache) Daily(ctx context.Context, lat, lon float64) (days []Day, stale bool, err error) {
	key := fmt.Sprintf("%.3f,%.3f", lat, lon)

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()

	if ok && c.now().Sub(entry.at) < c.ttl {
		return entry.days, false, nil
	}

	fresh, err := c.src.Daily(ctx, lat, lon)
	if err != nil {
		if ok {
			c.log.Warnw("weather upstream failed, serving stale forecast",
				"lat", lat, "lon", lon, "age", c.now().Sub(entry.at), "error", err)
			return entry.days, true, nil
		}
		return nil, false, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{days: fresh, at: c.now()}
	c.mu.Unlock()
	return fresh, false, nil
}
