package app

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// forward relays the request to an upstream keeping method, body and
// query intact. /api is stripped, so /api/market/latest reaches the
// market service as /market/latest.
func (g *Gateway) forward(up *Upstream) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), g.cfg.HTTPTimeout)
		defer cancel()

		path := strings.TrimPrefix(r.URL.Path, "/api")
		if r.URL.RawQuery != "" {
			path += "?" + r.URL.RawQuery
		}
		var body []byte
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			body, _ = io.ReadAll(r.Body)
		}

		fwd, err := up.Forward(ctx, r.Method, path, body)
		if err != nil {
			g.log.Warnw("upstream failed", "upstream", up.name, "path", path, "error", err)
			httpError(w, http.StatusBadGateway, up.name+" service unavailable")
			return
		}
		passThrough(w, fwd)
	}
}

// forwardWithLang relays a POST to the advisory service, filling lang
// from Accept-Language when the body does not carry one.
func (g *Gateway) forwardWithLang(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpError(w, http.StatusMethodNotAllowed, "POST required")
			return
		}
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil || raw == nil {
			httpError(w, http.StatusBadRequest, "invalid JSON payload")
			return
		}
		if asString(raw["lang"]) == "" {
			if l := primaryLang(r); l != "" {
				raw["lang"] = l
			}
		}
		body, _ := json.Marshal(raw)

		ctx, cancel := context.WithTimeout(r.Context(), g.cfg.HTTPTimeout)
		defer cancel()
		fwd, err := g.advisory.Forward(ctx, http.MethodPost, path, body)
		if err != nil {
			g.log.Warnw("advisory upstream failed", "path", path, "error", err)
			httpError(w, http.StatusBadGateway, "advisory service unavailable")
			return
		}
		passThrough(w, fwd)
	}
}

// handleDashboard assembles the page's blocks from all four upstreams
// in parallel. A block whose upstream is down comes from the last good
// copy and gets listed under degraded.
func (g *Gateway) handleDashboard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.HTTPTimeout)
	defer cancel()

	crop := r.URL.Query().Get("crop")
	if crop == "" {
		crop = g.cfg.DashboardCrop
	}
	district := r.URL.Query().Get("district")

	type res struct {
		key string
		val any
		err error
	}
	ch := make(chan res, 4)

	go func() {
		var rows []SensorRow
		err := g.persistence.GetJSON(ctx, "/data/latest", &rows)
		ch <- res{"sensors", rows, err}
	}()
	go func() {
		var rows []AdvisoryRow
		err := g.events.GetJSON(ctx, "/events/advisories/recent?limit=10", &rows)
		ch <- res{"advisories", rows, err}
	}()
	go func() {
		var rows []AlertRow
		err := g.events.GetJSON(ctx, "/events/alerts/recent?limit=20", &rows)
		ch <- res{"alerts", rows, err}
	}()
	go func() {
		var st MarketStats
		p := "/market/stats?crop=" + url.QueryEscape(crop)
		if district != "" {
			p += "&district=" + url.QueryEscape(district)
		}
		err := g.market.GetJSON(ctx, p, &st)
		ch <- res{"market", st, err}
	}()

	got := make(map[string]res, 4)
	for i := 0; i < 4; i++ {
		rv := <-ch
		got[rv.key] = rv
	}

	data := DashboardData{
		Sensors:    []SensorRow{},
		Advisories: []AdvisoryRow{},
		Alerts:     []AlertRow{},
		Moisture:   map[string]float64{},
	}
	var degraded []string

	g.mu.Lock()
	for _, rv := range got {
		switch rv.key {
		case "sensors":
			rows, _ := rv.val.([]SensorRow)
			if rv.err == nil {
				sortSensors(rows)
				g.lastSensors = rows
			} else {
				rows = g.lastSensors
				degraded = append(degraded, "sensors")
			}
			if rows != nil {
				data.Sensors = rows
			}
		case "advisories":
			rows, _ := rv.val.([]AdvisoryRow)
			if rv.err == nil {
				g.lastAdvisories = rows
			} else {
				rows = g.lastAdvisories
				degraded = append(degraded, "advisories")
			}
			if rows != nil {
				data.Advisories = rows
			}
		case "alerts":
			rows, _ := rv.val.([]AlertRow)
			if rv.err == nil {
				g.lastAlerts = rows
			} else {
				rows = g.lastAlerts
				degraded = append(degraded, "alerts")
			}
			if rows != nil {
				data.Alerts = rows
			}
		case "market":
			st, _ := rv.val.(MarketStats)
			if rv.err == nil {
				g.lastMarket = &st
				data.Market = &st
			} else {
				degraded = append(degraded, "market")
				if g.lastMarket != nil && g.lastMarket.Crop == crop {
					data.Market = g.lastMarket
				}
			}
		}
	}
	g.mu.Unlock()

	if n := len(data.Sensors); n > 0 {
		var sum float64
		minv, maxv := math.MaxFloat64, -math.MaxFloat64
		for _, s := range data.Sensors {
			sum += s.MoisturePct
			minv = math.Min(minv, s.MoisturePct)
			maxv = math.Max(maxv, s.MoisturePct)
		}
		data.Moisture["mean"] = math.Round(sum / float64(n))
		data.Moisture["min"] = minv
		data.Moisture["max"] = maxv
	}
	sort.Strings(degraded)
	data.Degraded = degraded

	writeJSON(w, data)

	g.log.Debugw("dashboard assembled",
		"elapsed_ms", time.Since(start).Milliseconds(),
		"sensors", len(data.Sensors),
		"advisories", len(data.Advisories),
		"alerts", len(data.Alerts),
		"degraded", degraded,
		"cb_persistence", g.persistence.State(),
		"cb_events", g.events.State(),
		"cb_market", g.market.State(),
	)
}

// sortSensors orders by field then sensor so the page renders stably.
// Cached rows are sorted once, when stored.
func sortSensors(rows []SensorRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].FieldID != rows[j].FieldID {
			return rows[i].FieldID < rows[j].FieldID
		}
		return rows[i].SensorID < rows[j].SensorID
	})
}

// primaryLang extracts the first language subtag from Accept-Language,
// "ta-IN,ta;q=0.9,en;q=0.8" yields "ta".
func primaryLang(r *http.Request) string {
	h := r.Header.Get("Accept-Language")
	if h == "" {
		return ""
	}
	first := h
	if i := strings.IndexByte(first, ','); i >= 0 {
		first = first[:i]
	}
	if i := strings.IndexByte(first, ';'); i >= 0 {
		first = first[:i]
	}
	if i := strings.IndexByte(first, '-'); i >= 0 {
		first = first[:i]
	}
	first = strings.ToLower(strings.TrimSpace(first))
	if first == "*" {
		return ""
	}
	return first
}

func passThrough(w http.ResponseWriter, fwd forwarded) {
	ct := fwd.contentType
	if ct == "" {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(fwd.status)
	_, _ = w.Write(fwd.body)
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
