package app

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feasibleReport = `{
  "report_id": "r-1",
  "crop": "Paddy",
  "district": "Thanjavur",
  "soil_type": "Alluvial",
  "area_ha": 0.8094,
  "lang": "en",
  "feasibility": {
    "feasible": true,
    "probability": 0.963,
    "expected_yield_tpha": 5.35,
    "yield_percentage": 16.99,
    "profit_rs": 41230.5,
    "total_revenue_rs": 65510.2,
    "revenue_1yr_rs": 68785.7,
    "revenue_2yr_rs": 72225.0,
    "mandi_price_rs_per_quintal": 2205,
    "factors": {"soil_type": 1, "rainfall": 1}
  },
  "steps": [{"seq": 1, "category": "general", "severity": "info", "title": "ok"}]
}`

const infeasibleReport = `{
  "report_id": "r-2",
  "crop": "Paddy",
  "district": "Jaisalmer",
  "soil_type": "Desert",
  "area_ha": 0.8094,
  "lang": "en",
  "feasibility": {
    "feasible": false,
    "probability": 0.051,
    "mandi_price_rs_per_quintal": 2205,
    "reasons": ["Annual rainfall 150 mm is below the 1000 mm this crop prefers."],
    "factors": {"rainfall": 0}
  },
  "steps": []
}`

func TestAnalyzeFlattensFeasibleReport(t *testing.T) {
	adv := newFakeUpstream(t, map[string]http.HandlerFunc{
		"/analyze": jsonHandler(feasibleReport),
	})
	gw := newTestGateway(t, func(c *Config) { c.AdvisoryURL = adv.srv.URL })

	rec := do(t, gw.Routes(), http.MethodPost, "/analyze",
		`{"crop":"paddy","district":"Thanjavur","area":"2","soil":"Alluvial"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, true, got["feasible"])
	assert.InDelta(t, 0.963, got["probability"].(float64), 1e-9)
	assert.InDelta(t, 5.35, got["expected_yield_tpha"].(float64), 1e-9)
	assert.InDelta(t, 2205, got["mandi_price_rs_per_quintal"].(float64), 1e-9)
	assert.NotContains(t, got, "factors")
	assert.NotContains(t, got, "steps")
	assert.NotContains(t, got, "reasons")

	// the form's string area reached the advisory service as a number
	var fwd map[string]any
	require.NoError(t, json.Unmarshal(adv.lastBody("/analyze"), &fwd))
	assert.InDelta(t, 2.0, fwd["area"].(float64), 1e-9)
	assert.Equal(t, "paddy", fwd["crop"])
}

func TestAnalyzeInfeasibleKeepsOnlyVerdictAndReasons(t *testing.T) {
	adv := newFakeUpstream(t, map[string]http.HandlerFunc{
		"/analyze": jsonHandler(infeasibleReport),
	})
	gw := newTestGateway(t, func(c *Config) { c.AdvisoryURL = adv.srv.URL })

	rec := do(t, gw.Routes(), http.MethodPost, "/analyze",
		`{"crop":"paddy","district":"Jaisalmer","area":2,"soil":"Desert"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, false, got["feasible"])
	reasons, ok := got["reasons"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, reasons)
	assert.Contains(t, reasons[0], "Annual rainfall 150 mm")
}

func TestAnalyzeRejectsBadPayloads(t *testing.T) {
	gw := newTestGateway(t, nil)
	mux := gw.Routes()

	rec := do(t, mux, http.MethodPost, "/analyze", `{oops`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid JSON payload")

	rec = do(t, mux, http.MethodPost, "/analyze", `{}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid JSON payload")

	rec = do(t, mux, http.MethodPost, "/analyze", `{"crop":"paddy","district":"Thanjavur","area":2}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing required fields: crop, district, area, soil")

	rec = do(t, mux, http.MethodGet, "/analyze", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAnalyzeUpstreamDown(t *testing.T) {
	gw := newTestGateway(t, nil)

	rec := do(t, gw.Routes(), http.MethodPost, "/analyze",
		`{"crop":"paddy","district":"Thanjavur","area":2,"soil":"Alluvial"}`, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Server error during analysis")
}

func TestAnalyzeLangFromAcceptLanguage(t *testing.T) {
	adv := newFakeUpstream(t, map[string]http.HandlerFunc{
		"/analyze": jsonHandler(feasibleReport),
	})
	gw := newTestGateway(t, func(c *Config) { c.AdvisoryURL = adv.srv.URL })
	mux := gw.Routes()

	rec := do(t, mux, http.MethodPost, "/analyze",
		`{"crop":"paddy","district":"Thanjavur","area":2,"soil":"Alluvial"}`,
		map[string]string{"Accept-Language": "ta-IN,ta;q=0.9,en;q=0.8"})
	require.Equal(t, http.StatusOK, rec.Code)

	var fwd map[string]any
	require.NoError(t, json.Unmarshal(adv.lastBody("/analyze"), &fwd))
	assert.Equal(t, "ta", fwd["lang"])

	// a lang in the body wins over the header
	rec = do(t, mux, http.MethodPost, "/analyze",
		`{"crop":"paddy","district":"Thanjavur","area":2,"soil":"Alluvial","lang":"hi"}`,
		map[string]string{"Accept-Language": "ta"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(adv.lastBody("/analyze"), &fwd))
	assert.Equal(t, "hi", fwd["lang"])
}

func TestAnalyzeImagePassesResultThrough(t *testing.T) {
	adv := newFakeUpstream(t, map[string]http.HandlerFunc{
		"/analyze_image": jsonHandler(`{"status":"success","crop":"Paddy","avg_production":"5.50 tons per year","mandi_price":"2200.00 rupees per quintal"}`),
	})
	gw := newTestGateway(t, func(c *Config) { c.AdvisoryURL = adv.srv.URL })

	rec := do(t, gw.Routes(), http.MethodPost, "/analyze_image", `{"filename":"paddy_field.jpg"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "success", got["status"])
	assert.Equal(t, "Paddy", got["crop"])

	var fwd map[string]any
	require.NoError(t, json.Unmarshal(adv.lastBody("/analyze_image"), &fwd))
	assert.Equal(t, "paddy_field.jpg", fwd["filename"])
}

func TestAnalyzeImageRejectsPayloadWithoutFilename(t *testing.T) {
	gw := newTestGateway(t, nil)
	mux := gw.Routes()

	rec := do(t, mux, http.MethodPost, "/analyze_image", `{oops`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid JSON payload")

	rec = do(t, mux, http.MethodPost, "/analyze_image", `{"lang":"en"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid JSON payload")
}

func TestAnalyzeImageEmptyFilenameNotRecognized(t *testing.T) {
	// An empty name cannot match any crop; answered locally without
	// touching the advisory service.
	gw := newTestGateway(t, nil)

	rec := do(t, gw.Routes(), http.MethodPost, "/analyze_image", `{"filename":""}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "error", got["status"])
	assert.Equal(t, imageNotRecognized, got["message"])
}

func TestAnalyzeImageUpstreamDown(t *testing.T) {
	gw := newTestGateway(t, nil)

	rec := do(t, gw.Routes(), http.MethodPost, "/analyze_image", `{"filename":"paddy.jpg"}`, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Server error during image analysis")
}
