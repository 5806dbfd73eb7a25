// Package weather fetches daily forecasts from OpenWeather One Call and
// derives reference evapotranspiration for irrigation budgets.
package weather

import "time"

// Day is one daily forecast entry, with ET0 already derived.
type Day struct {
	Date        time.Time `json:"date"`
	TempMinC    float64   `json:"temp_min_c"`
	TempMaxC    float64   `json:"temp_max_c"`
	RainMM      float64   `json:"rain_mm"`
	HumidityPct float64   `json:"humidity_pct"`
	ET0MM       float64   `json:"et0_mm"`
}

// NearestDay picks the forecast entry whose date is closest to t (UTC).
func NearestDay(days []Day, t time.Time) (Day, bool) {
	if len(days) == 0 {
		return Day{}, false
	}
	target := truncateUTC(t)
	chosen := days[0]
	minDelta := time.Duration(1<<63 - 1)
	for _, d := range days {
		delta := target.Sub(truncateUTC(d.Date))
		if delta < 0 {
			delta = -delta
		}
		if delta < minDelta {
			minDelta = delta
			chosen = d
		}
	}
	return chosen, true
}

// RainAhead sums forecast rain for the n days starting at from.
func RainAhead(days []Day, from time.Time, n int) float64 {
	start := truncateUTC(from)
	end := start.AddDate(0, 0, n)
	total := 0.0
	for _, d := range days {
		date := truncateUTC(d.Date)
		if !date.Before(start) && date.Before(end) {
			total += d.RainMM
		}
	}
	return total
}

func truncateUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
