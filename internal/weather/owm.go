package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.openweathermap.org/data/3.0/onecall"

type owmDaily struct {
	Dt   int64 `json:"dt"`
	Temp struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"temp"`
	Humidity float64 `json:"humidity"`
	Rain     float64 `json:"rain"`
}

type owmResp struct {
	Daily []owmDaily `json:"daily"`
}

// OWMClient talks to the OpenWeather One Call 3.0 endpoint.
type OWMClient struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

func NewOWMClient(key string) *OWMClient {
	return &OWMClient{
		APIKey:  key,
		BaseURL: defaultBaseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Daily returns the daily forecast for the coordinates, ET0 included.
func (c *OWMClient) Daily(ctx context.Context, lat, lon float64) ([]Day, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("weather: missing api key")
	}
	url := fmt.Sprintf("%s?lat=%f&lon=%f&exclude=current,minutely,hourly,alerts&units=metric&appid=%s",
		c.BaseURL, lat, lon, c.APIKey)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("weather: owm status %d: %s", resp.StatusCode, string(b))
	}
	var out owmResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Daily) == 0 {
		return nil, fmt.Errorf("weather: no daily data")
	}

	days := make([]Day, 0, len(out.Daily))
	for _, d := range out.Daily {
		days = append(days, Day{
			Date:        time.Unix(d.Dt, 0).UTC(),
			TempMinC:    d.Temp.Min,
			TempMaxC:    d.Temp.Max,
			RainMM:      d.Rain,
			HumidityPct: d.Humidity,
			ET0MM:       ET0Hargreaves(d.Temp.Min, d.Temp.Max),
		})
	}
	return days, nil
}
