package fieldsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// soilGridsURL is fetched once per probe at startup, never per tick.
const soilGridsURL = "https://rest.isric.org/soilgrids/v2.0/properties/query?lat=%f&lon=%f&property=wv0010"

// SoilGrids looks up topsoil volumetric water content from the ISRIC
// SoilGrids API, so a probe opens at the moisture the real soil at its
// coordinates holds instead of an arbitrary constant.
type SoilGrids struct {
	base string
	http *http.Client
	log  *zap.SugaredLogger
}

func NewSoilGrids(log *zap.SugaredLogger) *SoilGrids {
	return &SoilGrids{
		base: soilGridsURL,
		http: &http.Client{Timeout: 8 * time.Second},
		log:  log,
	}
}

// SurfaceMoisture returns the wv0010 median at (lat, lon) normalised to
// [0..1]. Rate limits and server errors are retried with exponential
// backoff; anything else fails straight away.
func (s *SoilGrids) SurfaceMoisture(ctx context.Context, lat, lon float64) (float64, error) {
	url := fmt.Sprintf(s.base, lat, lon)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = 15 * time.Second

	var moisture float64
	err := backoff.Retry(func() error {
		m, err := s.fetchOnce(ctx, url)
		if err != nil {
			s.log.Warnw("soilgrids fetch failed", "error", err)
			return err
		}
		moisture = m
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx))
	if err != nil {
		return 0, err
	}
	return moisture, nil
}

func (s *SoilGrids) fetchOnce(ctx context.Context, url string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", "agronity-fieldsim/1.0")

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var parsed any
		if err := json.Unmarshal(body, &parsed); err != nil {
			return 0, backoff.Permanent(err)
		}
		m := moistureFrom(parsed)
		if m < 0 {
			return 0, backoff.Permanent(errors.New("soilgrids: moisture value not found"))
		}
		return normalizeWV(m), nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return 0, fmt.Errorf("soilgrids HTTP %d", resp.StatusCode)
	default:
		return 0, backoff.Permanent(fmt.Errorf("soilgrids HTTP %d: %s", resp.StatusCode, string(body)))
	}
}

// moistureFrom digs through the two response shapes SoilGrids has been seen
// to return: {"properties":{"layers":[...]}} and a GeoJSON wrapper with the
// same thing under features[0]. Returns -1 when neither matches.
func moistureFrom(v any) float64 {
	m, ok := v.(map[string]any)
	if !ok {
		return -1
	}
	if feats, ok := m["features"].([]any); ok && len(feats) > 0 {
		if f0, ok := feats[0].(map[string]any); ok {
			if p, ok := f0["properties"].(map[string]any); ok {
				if x := layerValue(p); x >= 0 {
					return x
				}
			}
		}
	}
	if p, ok := m["properties"].(map[string]any); ok {
		return layerValue(p)
	}
	return -1
}

func layerValue(p map[string]any) float64 {
	layers, ok := p["layers"].([]any)
	if !ok || len(layers) == 0 {
		return -1
	}
	l0, ok := layers[0].(map[string]any)
	if !ok {
		return -1
	}
	depths, ok := l0["depths"].([]any)
	if !ok || len(depths) == 0 {
		return -1
	}
	d0, ok := depths[0].(map[string]any)
	if !ok {
		return -1
	}
	values, ok := d0["values"].(map[string]any)
	if !ok {
		return -1
	}
	// prefer the median, fall back to whatever quantile is present
	for _, k := range []string{"Q0.5", "mean", "Q0.95", "Q0.05", "value", "MED"} {
		if f, ok := values[k].(float64); ok {
			return f
		}
	}
	return -1
}

// normalizeWV maps SoilGrids wv layers onto [0..1]. Many layers come back
// as integers in thousandths of m3/m3, e.g. 412 for 0.412.
func normalizeWV(x float64) float64 {
	if x > 1.5 {
		x /= 1000
	}
	return clamp01(x)
}
