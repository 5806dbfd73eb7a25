package market

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/thoufik1111/AgroNITY/internal/forecast"
)

func NewHTTPMux(svc *Service) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	// GET /market/latest?crop=[&district=]
	// Cache first, then Influx; 404 when the crop has never been quoted.
	mux.HandleFunc("/market/latest", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		crop := q.Get("crop")
		if crop == "" {
			httpError(w, http.StatusBadRequest, "crop is required")
			return
		}
		district := q.Get("district")

		if quote, ok := svc.LatestQuote(crop, district); ok {
			w.Header().Set("X-Data-Source", "cache")
			writeJSON(w, quote)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		quote, err := svc.InfluxLatest(ctx, crop, district)
		if err != nil {
			httpError(w, http.StatusNotFound, "no price data for "+crop)
			return
		}
		w.Header().Set("X-Data-Source", "influx")
		writeJSON(w, quote)
	})

	// GET /market/stats?crop=[&district=&days=]
	mux.HandleFunc("/market/stats", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		crop := q.Get("crop")
		if crop == "" {
			httpError(w, http.StatusBadRequest, "crop is required")
			return
		}
		days := intParam(q.Get("days"), 30)

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		series, err := svc.DailySeries(ctx, crop, q.Get("district"), days)
		if err != nil {
			httpError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, seriesStats(crop, q.Get("district"), series))
	})

	// GET /market/forecast?crop=&days=[&district=&horizon=]
	mux.HandleFunc("/market/forecast", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		crop := q.Get("crop")
		if crop == "" {
			httpError(w, http.StatusBadRequest, "crop is required")
			return
		}
		days := intParam(q.Get("days"), 30)
		horizon := intParam(q.Get("horizon"), 7)

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		series, err := svc.DailySeries(ctx, crop, q.Get("district"), days)
		if err != nil {
			httpError(w, http.StatusBadGateway, err.Error())
			return
		}
		vals := values(series)
		writeJSON(w, map[string]interface{}{
			"crop":            crop,
			"series":          series,
			"forecast_values": forecast.Linear(vals, horizon),
			"trend":           forecast.Direction(vals),
		})
	})

	return mux
}

// Stats summarizes a price window.
type Stats struct {
	Crop     string  `json:"crop"`
	District string  `json:"district,omitempty"`
	Count    int     `json:"count"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Latest   float64 `json:"latest"`
}

func seriesStats(crop, district string, series []TimedValue) Stats {
	st := Stats{Crop: crop, District: district, Count: len(series)}
	if len(series) == 0 {
		return st
	}
	st.Min, st.Max = series[0].Value, series[0].Value
	sum := 0.0
	for _, s := range series {
		if s.Value < st.Min {
			st.Min = s.Value
		}
		if s.Value > st.Max {
			st.Max = s.Value
		}
		sum += s.Value
	}
	st.Mean = sum / float64(len(series))
	st.Latest = series[len(series)-1].Value
	return st
}

func values(series []TimedValue) []float64 {
	out := make([]float64, len(series))
	for i, s := range series {
		out[i] = s.Value
	}
	return out
}

func intParam(s string, d int) int {
	if s == "" {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return d
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
