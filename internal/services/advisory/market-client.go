package advisory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/thoufik1111/AgroNITY/internal/model/entities"
)

// MarketClient fetches live mandi quotes and price trends from the
// market service. A circuit breaker keeps a market outage from dragging
// every analysis out to the HTTP timeout; while the breaker is open the
// engine falls back to the survey price.
type MarketClient struct {
	base string
	http *http.Client
	cb   *gobreaker.CircuitBreaker
}

func NewMarketClient(baseURL string, timeout time.Duration) *MarketClient {
	return &MarketClient{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "market-service",
			Interval: 60 * time.Second,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
	}
}

// Latest returns the newest quote for the crop, scoped to the district
// when one is given.
func (c *MarketClient) Latest(ctx context.Context, crop, district string) (entities.PriceQuote, error) {
	res, err := c.cb.Execute(func() (any, error) {
		u := fmt.Sprintf("%s/market/latest?crop=%s", c.base, url.QueryEscape(crop))
		if district != "" {
			u += "&district=" + url.QueryEscape(district)
		}
		var q entities.PriceQuote
		if err := c.getJSON(ctx, u, &q); err != nil {
			return nil, err
		}
		return q, nil
	})
	if err != nil {
		return entities.PriceQuote{}, err
	}
	return res.(entities.PriceQuote), nil
}

// Trend classifies the recent price drift for the crop using the market
// service's forecast endpoint.
func (c *MarketClient) Trend(ctx context.Context, crop, district string, days int) (string, error) {
	res, err := c.cb.Execute(func() (any, error) {
		u := fmt.Sprintf("%s/market/forecast?crop=%s&days=%d", c.base, url.QueryEscape(crop), days)
		if district != "" {
			u += "&district=" + url.QueryEscape(district)
		}
		var out struct {
			Trend string `json:"trend"`
		}
		if err := c.getJSON(ctx, u, &out); err != nil {
			return nil, err
		}
		if out.Trend == "" {
			return nil, fmt.Errorf("market: empty trend for %s", crop)
		}
		return out.Trend, nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (c *MarketClient) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("market: status %d from %s", resp.StatusCode, req.URL.Path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
