package persistence

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/thoufik1111/AgroNITY/internal/forecast"
)

func NewHTTPMux(svc *Service) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	// GET /data/latest
	// Query params:
	//   source=auto|influx|cache   (default auto: try Influx, fall back to cache)
	//   minutes=<int>              (Influx window, default 1440 = 24h)
	mux.HandleFunc("/data/latest", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		source := strings.ToLower(q.Get("source"))
		if source == "" {
			source = "auto"
		}
		minutes := intParam(q.Get("minutes"), 60*24)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		var list []CachedReading
		var used string

		if source == "influx" || source == "auto" {
			if fromInflux, err := svc.QueryLatestTelemetry(ctx, minutes); err == nil && len(fromInflux) > 0 {
				list, used = fromInflux, "influx"
			}
		}
		if used == "" {
			list, used = svc.LatestCache(), "cache"
		}

		sort.Slice(list, func(i, j int) bool {
			if list[i].FieldID != list[j].FieldID {
				return list[i].FieldID < list[j].FieldID
			}
			return list[i].SensorID < list[j].SensorID
		})

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Data-Source", used)
		_ = json.NewEncoder(w).Encode(list)
	})

	// GET /data/range?sensor=&minutes=[&field=]
	mux.HandleFunc("/data/range", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		sensorID := q.Get("sensor")
		if sensorID == "" {
			httpError(w, http.StatusBadRequest, "sensor is required")
			return
		}
		minutes := intParam(q.Get("minutes"), 60*24)

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		series, err := svc.MoistureHistory(ctx, q.Get("field"), sensorID, minutes)
		if err != nil {
			httpError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, map[string]interface{}{"series": series})
	})

	// GET /data/history?field=&sensor=&hours=
	mux.HandleFunc("/data/history", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		fieldID, sensorID := q.Get("field"), q.Get("sensor")
		if fieldID == "" || sensorID == "" {
			httpError(w, http.StatusBadRequest, "field and sensor are required")
			return
		}
		hours := intParam(q.Get("hours"), 72)

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		series, err := svc.MoistureHistory(ctx, fieldID, sensorID, hours*60)
		if err != nil {
			httpError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, map[string]interface{}{"series": series})
	})

	// GET /data/forecast?field=&sensor=&hours=&horizon=
	// Horizon counts smoothing steps past the last observation.
	mux.HandleFunc("/data/forecast", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		fieldID, sensorID := q.Get("field"), q.Get("sensor")
		if fieldID == "" || sensorID == "" {
			httpError(w, http.StatusBadRequest, "field and sensor are required")
			return
		}
		hours := intParam(q.Get("hours"), 72)
		horizon := intParam(q.Get("horizon"), 12)

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		series, err := svc.MoistureHistory(ctx, fieldID, sensorID, hours*60)
		if err != nil {
			httpError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, map[string]interface{}{
			"series":          series,
			"forecast_values": forecast.Linear(values(series), horizon),
		})
	})

	return mux
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
