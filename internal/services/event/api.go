package event

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// AdvisorySummary is the per-report row served to the gateway.
type AdvisorySummary struct {
	FieldID     string  `json:"field_id"`
	Crop        string  `json:"crop,omitempty"`
	District    string  `json:"district,omitempty"`
	Severity    string  `json:"severity"`
	Probability float64 `json:"probability"`
	Time        string  `json:"time"` // RFC3339
}

// AlertSummary is the per-alert row served to the gateway.
type AlertSummary struct {
	FieldID  string `json:"field_id"`
	SensorID string `json:"sensor_id,omitempty"`
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Time     string `json:"time"` // RFC3339
}

type queryWindow struct {
	Minutes   int
	Limit     int
	TimeoutMS int
}

func parseWindow(r *http.Request, defMin, defLim, defTOms int) queryWindow {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return queryWindow{
		Minutes:   get("minutes", defMin, 1, 7*24*60),
		Limit:     get("limit", defLim, 1, 500),
		TimeoutMS: get("timeout_ms", defTOms, 200, 5000),
	}
}

func advisoryFlux(bucket string, minutes, limit int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == "system_event" and r.event_type == "advisory.issued")
  |> filter(fn: (r) => r._field == "probability")
  |> keep(columns: ["_time","_value","field_id","crop","district","severity"])
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, minutes, limit)
}

func alertFlux(bucket string, minutes, limit int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == "system_event")
  |> filter(fn: (r) => r.event_type =~ /^alert\./)
  |> filter(fn: (r) => r._field == "message")
  |> keep(columns: ["_time","_value","event_type","severity","field_id","sensor_id"])
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, minutes, limit)
}

// asFloat coerces whatever Influx handed back into a float64.
func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return 0
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// NewRecentAdvisoriesHandler serves GET /events/advisories/recent?limit=&minutes=.
func NewRecentAdvisoriesHandler(influx influxdb2.Client, org, bucket string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := parseWindow(r, 1440, 20, 2000)

		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
		defer cancel()

		res, err := influx.QueryAPI(org).Query(ctx, advisoryFlux(bucket, p.Minutes, p.Limit))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Error", "influx-query-error")
			_, _ = w.Write([]byte("[]"))
			return
		}
		defer func() { _ = res.Close() }()

		out := make([]AdvisorySummary, 0, p.Limit)
		for res.Next() {
			rec := res.Record()
			out = append(out, AdvisorySummary{
				FieldID:     asString(rec.ValueByKey("field_id")),
				Crop:        asString(rec.ValueByKey("crop")),
				District:    asString(rec.ValueByKey("district")),
				Severity:    asString(rec.ValueByKey("severity")),
				Probability: asFloat(rec.Value()),
				Time:        rec.Time().UTC().Format(time.RFC3339),
			})
		}
		if res.Err() != nil {
			w.Header().Set("X-Error", "influx-iter-error")
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
}

// NewRecentAlertsHandler serves GET /events/alerts/recent?limit=&minutes=.
func NewRecentAlertsHandler(influx influxdb2.Client, org, bucket string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := parseWindow(r, 1440, 50, 2000)

		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
		defer cancel()

		res, err := influx.QueryAPI(org).Query(ctx, alertFlux(bucket, p.Minutes, p.Limit))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Error", "influx-query-error")
			_, _ = w.Write([]byte("[]"))
			return
		}
		defer func() { _ = res.Close() }()

		out := make([]AlertSummary, 0, p.Limit)
		for res.Next() {
			rec := res.Record()
			out = append(out, AlertSummary{
				FieldID:  asString(rec.ValueByKey("field_id")),
				SensorID: asString(rec.ValueByKey("sensor_id")),
				Kind:     strings.TrimPrefix(asString(rec.ValueByKey("event_type")), "alert."),
				Severity: asString(rec.ValueByKey("severity")),
				Message:  asString(rec.Value()),
				Time:     rec.Time().UTC().Format(time.RFC3339),
			})
		}
		if res.Err() != nil {
			w.Header().Set("X-Error", "influx-iter-error")
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
}
