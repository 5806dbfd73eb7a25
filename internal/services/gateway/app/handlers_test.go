package app

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const latestSensors = `[
  {"field_id":"f-2","sensor_id":"s-1","moisture_pct":50,"temperature_c":27.5,"humidity_pct":61.0,"aggregated":true,"timestamp":"2026-08-23T06:30:00Z"},
  {"field_id":"f-1","sensor_id":"s-1","moisture_pct":30,"temperature_c":29.1,"humidity_pct":55.5,"aggregated":true,"timestamp":"2026-08-23T06:30:00Z","stale":true}
]`

const recentAdvisories = `[
  {"field_id":"f-1","crop":"Paddy","district":"Thanjavur","severity":"info","probability":0.963,"time":"2026-08-23T05:00:00Z"}
]`

const recentAlerts = `[
  {"field_id":"f-1","sensor_id":"s-1","kind":"moisture_low","severity":"warn","message":"soil moisture 20% is at the 25% guard level","time":"2026-08-23T06:00:00Z"}
]`

const paddyStats = `{"crop":"Paddy","count":12,"min":2150,"max":2260,"mean":2205,"latest":2240}`

func dashboardFakes(t *testing.T) (pers, ev, mkt *fakeUpstream) {
	t.Helper()
	pers = newFakeUpstream(t, map[string]http.HandlerFunc{
		"/data/latest": jsonHandler(latestSensors),
	})
	ev = newFakeUpstream(t, map[string]http.HandlerFunc{
		"/events/advisories/recent": jsonHandler(recentAdvisories),
		"/events/alerts/recent":     jsonHandler(recentAlerts),
	})
	mkt = newFakeUpstream(t, map[string]http.HandlerFunc{
		"/market/stats": jsonHandler(paddyStats),
	})
	return pers, ev, mkt
}

func TestDashboardAggregatesAllBlocks(t *testing.T) {
	pers, ev, mkt := dashboardFakes(t)
	gw := newTestGateway(t, func(c *Config) {
		c.PersistenceURL = pers.srv.URL
		c.EventsURL = ev.srv.URL
		c.MarketURL = mkt.srv.URL
	})

	rec := do(t, gw.Routes(), http.MethodGet, "/api/dashboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data DashboardData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))

	require.Len(t, data.Sensors, 2)
	assert.Equal(t, "f-1", data.Sensors[0].FieldID)
	assert.Equal(t, "f-2", data.Sensors[1].FieldID)
	assert.True(t, data.Sensors[0].Stale)

	require.Len(t, data.Advisories, 1)
	assert.Equal(t, "Paddy", data.Advisories[0].Crop)
	require.Len(t, data.Alerts, 1)
	assert.Equal(t, "moisture_low", data.Alerts[0].Kind)

	assert.Equal(t, 40.0, data.Moisture["mean"])
	assert.Equal(t, 30.0, data.Moisture["min"])
	assert.Equal(t, 50.0, data.Moisture["max"])

	require.NotNil(t, data.Market)
	assert.Equal(t, "Paddy", data.Market.Crop)
	assert.Equal(t, 2205.0, data.Market.Mean)
	assert.Contains(t, mkt.lastQuery("/market/stats"), "crop=Paddy")

	assert.Empty(t, data.Degraded)
}

func TestDashboardCropAndDistrictParams(t *testing.T) {
	pers, ev, mkt := dashboardFakes(t)
	gw := newTestGateway(t, func(c *Config) {
		c.PersistenceURL = pers.srv.URL
		c.EventsURL = ev.srv.URL
		c.MarketURL = mkt.srv.URL
	})

	rec := do(t, gw.Routes(), http.MethodGet, "/api/dashboard?crop=Maize&district=Salem", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	q := mkt.lastQuery("/market/stats")
	assert.Contains(t, q, "crop=Maize")
	assert.Contains(t, q, "district=Salem")
}

func TestDashboardServesLastGoodWhenUpstreamDies(t *testing.T) {
	var down atomic.Bool
	pers := newFakeUpstream(t, map[string]http.HandlerFunc{
		"/data/latest": func(w http.ResponseWriter, _ *http.Request) {
			if down.Load() {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(latestSensors))
		},
	})
	_, ev, mkt := dashboardFakes(t)
	gw := newTestGateway(t, func(c *Config) {
		c.PersistenceURL = pers.srv.URL
		c.EventsURL = ev.srv.URL
		c.MarketURL = mkt.srv.URL
	})
	mux := gw.Routes()

	rec := do(t, mux, http.MethodGet, "/api/dashboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var first DashboardData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.Len(t, first.Sensors, 2)
	require.Empty(t, first.Degraded)

	down.Store(true)

	rec = do(t, mux, http.MethodGet, "/api/dashboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var second DashboardData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Len(t, second.Sensors, 2)
	assert.Contains(t, second.Degraded, "sensors")
	assert.NotContains(t, second.Degraded, "market")
}

func TestDashboardEmptyWhenNothingCached(t *testing.T) {
	gw := newTestGateway(t, nil)

	rec := do(t, gw.Routes(), http.MethodGet, "/api/dashboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data DashboardData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	assert.Empty(t, data.Sensors)
	assert.Empty(t, data.Advisories)
	assert.Empty(t, data.Alerts)
	assert.Nil(t, data.Market)
	assert.ElementsMatch(t, []string{"sensors", "advisories", "alerts", "market"}, data.Degraded)
}

func TestMarketProxyStripsAPIPrefix(t *testing.T) {
	mkt := newFakeUpstream(t, map[string]http.HandlerFunc{
		"/market/latest": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("crop") == "Nutmeg" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"error":"no price data for Nutmeg"}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"crop":"Paddy","price_rs_per_quintal":2240,"at":"2026-08-23T06:00:00Z"}`))
		},
	})
	gw := newTestGateway(t, func(c *Config) { c.MarketURL = mkt.srv.URL })
	mux := gw.Routes()

	rec := do(t, mux, http.MethodGet, "/api/market/latest?crop=Paddy", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2240")
	assert.Equal(t, "crop=Paddy", mkt.lastQuery("/market/latest"))

	// a 4xx passes through untouched and never trips the breaker
	for i := 0; i < 5; i++ {
		rec = do(t, mux, http.MethodGet, "/api/market/latest?crop=Nutmeg", "", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "no price data for Nutmeg")
	}
	rec = do(t, mux, http.MethodGet, "/api/market/latest?crop=Paddy", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	mkt := newFakeUpstream(t, map[string]http.HandlerFunc{
		"/market/stats": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
	})
	gw := newTestGateway(t, func(c *Config) { c.MarketURL = mkt.srv.URL })
	mux := gw.Routes()

	for i := 0; i < 5; i++ {
		rec := do(t, mux, http.MethodGet, "/api/market/stats?crop=Paddy", "", nil)
		require.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "market service unavailable")
	}
	// three consecutive failures tripped the breaker, later calls
	// were answered without reaching the upstream
	assert.Equal(t, 3, mkt.hitCount("/market/stats"))
}

func TestForwardWithLangInjectsHeaderLang(t *testing.T) {
	adv := newFakeUpstream(t, map[string]http.HandlerFunc{
		"/advisory": jsonHandler(feasibleReport),
	})
	gw := newTestGateway(t, func(c *Config) { c.AdvisoryURL = adv.srv.URL })
	mux := gw.Routes()

	rec := do(t, mux, http.MethodPost, "/api/advisory", `{"field_id":"f-1"}`,
		map[string]string{"Accept-Language": "hi-IN,hi;q=0.9"})
	require.Equal(t, http.StatusOK, rec.Code)

	var fwd map[string]any
	require.NoError(t, json.Unmarshal(adv.lastBody("/advisory"), &fwd))
	assert.Equal(t, "hi", fwd["lang"])
	assert.Equal(t, "f-1", fwd["field_id"])

	rec = do(t, mux, http.MethodPost, "/api/advisory", `{oops`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid JSON payload")

	rec = do(t, mux, http.MethodGet, "/api/advisory", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestForwardPassesUpstreamErrorsThrough(t *testing.T) {
	adv := newFakeUpstream(t, map[string]http.HandlerFunc{
		"/query": func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"type: cannot be blank."}`))
		},
	})
	gw := newTestGateway(t, func(c *Config) { c.AdvisoryURL = adv.srv.URL })

	rec := do(t, gw.Routes(), http.MethodPost, "/api/query", `{"text":"two acres"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "type: cannot be blank.")
}

func TestFieldsProxyKeepsMethodAndPath(t *testing.T) {
	adv := newFakeUpstream(t, map[string]http.HandlerFunc{
		"/fields": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if r.Method == http.MethodPost {
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"id":"f-9"}`))
				return
			}
			_, _ = w.Write([]byte(`[]`))
		},
		"/fields/f-9": func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodDelete {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"f-9","district":"Thanjavur"}`))
		},
	})
	gw := newTestGateway(t, func(c *Config) { c.AdvisoryURL = adv.srv.URL })
	mux := gw.Routes()

	body := `{"id":"f-9","district":"Thanjavur","soil":"Alluvial","crop":"Paddy","area_ha":1.2}`
	rec := do(t, mux, http.MethodPost, "/api/fields", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, body, string(adv.lastBody("/fields")))

	rec = do(t, mux, http.MethodGet, "/api/fields/f-9", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Thanjavur")

	rec = do(t, mux, http.MethodDelete, "/api/fields/f-9", "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.MethodDelete, adv.lastMethod("/fields/f-9"))
}

func TestEventsAndDataProxies(t *testing.T) {
	pers, ev, _ := dashboardFakes(t)
	gw := newTestGateway(t, func(c *Config) {
		c.PersistenceURL = pers.srv.URL
		c.EventsURL = ev.srv.URL
	})
	mux := gw.Routes()

	rec := do(t, mux, http.MethodGet, "/api/data/latest?minutes=60", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "moisture_pct")
	assert.Equal(t, "minutes=60", pers.lastQuery("/data/latest"))

	rec = do(t, mux, http.MethodGet, "/api/events/alerts/recent?limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "moisture_low")
}
