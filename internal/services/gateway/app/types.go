package app

import (
	"strconv"
	"strings"
)

// ---------- Upstream payloads ----------

// SensorRow is one live reading on the dashboard, as the persistence
// service serves it from /data/latest.
type SensorRow struct {
	FieldID      string  `json:"field_id"`
	SensorID     string  `json:"sensor_id"`
	MoisturePct  float64 `json:"moisture_pct"`
	TemperatureC float64 `json:"temperature_c"`
	HumidityPct  float64 `json:"humidity_pct"`
	Timestamp    string  `json:"timestamp"` // RFC3339
	Stale        bool    `json:"stale,omitempty"`
}

// AdvisoryRow is one recently issued advisory from the event service.
type AdvisoryRow struct {
	FieldID     string  `json:"field_id"`
	Crop        string  `json:"crop,omitempty"`
	District    string  `json:"district,omitempty"`
	Severity    string  `json:"severity"`
	Probability float64 `json:"probability"`
	Time        string  `json:"time"` // RFC3339
}

// AlertRow is one recent alert from the event service.
type AlertRow struct {
	FieldID  string `json:"field_id"`
	SensorID string `json:"sensor_id,omitempty"`
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Time     string `json:"time"` // RFC3339
}

// MarketStats is the market service's price window summary.
type MarketStats struct {
	Crop     string  `json:"crop"`
	District string  `json:"district,omitempty"`
	Count    int     `json:"count"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Latest   float64 `json:"latest"`
}

// DashboardData is the single payload the farm dashboard polls for.
// Degraded lists the blocks that came from the last-good cache.
type DashboardData struct {
	Sensors    []SensorRow        `json:"sensors"`
	Advisories []AdvisoryRow      `json:"advisories"`
	Alerts     []AlertRow         `json:"alerts"`
	Moisture   map[string]float64 `json:"moisture"`
	Market     *MarketStats       `json:"market,omitempty"`
	Degraded   []string           `json:"degraded,omitempty"`
}

// ---------- Form payloads ----------

// analyzeBody is the feasibility form. The page posts area as a string
// while API clients send a number, so fields are pulled loosely.
type analyzeBody struct {
	Crop      string
	District  string
	Soil      string
	Area      float64
	CostPerHa float64
	Lang      string
}

func analyzeBodyFrom(raw map[string]any) analyzeBody {
	return analyzeBody{
		Crop:      asString(raw["crop"]),
		District:  asString(raw["district"]),
		Soil:      asString(raw["soil"]),
		Area:      asFloat(raw["area"]),
		CostPerHa: asFloat(raw["cost_per_ha"]),
		Lang:      asString(raw["lang"]),
	}
}

// analyzeResult is the flat shape /analyze has always answered with.
type analyzeResult struct {
	Feasible          bool    `json:"feasible"`
	Probability       float64 `json:"probability"`
	ExpectedYieldTPHA float64 `json:"expected_yield_tpha"`
	YieldPercentage   float64 `json:"yield_percentage"`
	ProfitRs          float64 `json:"profit_rs"`
	TotalRevenueRs    float64 `json:"total_revenue_rs"`
	Revenue1YrRs      float64 `json:"revenue_1yr_rs"`
	Revenue2YrRs      float64 `json:"revenue_2yr_rs"`
	MandiPriceRsQtl   float64 `json:"mandi_price_rs_per_quintal"`
}

// analyzeRefusal is what an infeasible combination gets back, nothing
// beyond the verdict and the reasons.
type analyzeRefusal struct {
	Feasible bool     `json:"feasible"`
	Reasons  []string `json:"reasons"`
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return 0
}
