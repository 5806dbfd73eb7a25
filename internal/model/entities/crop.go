package entities

// Tolerance describes an agronomic comfort band. Values inside
// [IdealMin, IdealMax] score 1.0, values outside [AbsMin, AbsMax] score
// 0.0, with linear ramps between the bounds.
type Tolerance struct {
	AbsMin   float64 `json:"abs_min"`
	IdealMin float64 `json:"ideal_min"`
	IdealMax float64 `json:"ideal_max"`
	AbsMax   float64 `json:"abs_max"`
}

func (t Tolerance) Score(v float64) float64 {
	switch {
	case v >= t.IdealMin && v <= t.IdealMax:
		return 1
	case v <= t.AbsMin || v >= t.AbsMax:
		return 0
	case v < t.IdealMin:
		return (v - t.AbsMin) / (t.IdealMin - t.AbsMin)
	default:
		return (t.AbsMax - v) / (t.AbsMax - t.IdealMax)
	}
}

// PestRisk flags a pest or disease that becomes likely inside the given
// weather window.
type PestRisk struct {
	Name           string  `json:"name"`
	TempMinC       float64 `json:"temp_min_c"`
	TempMaxC       float64 `json:"temp_max_c"`
	HumidityMinPct float64 `json:"humidity_min_pct"`
	Advice         string  `json:"advice"`
}

func (p PestRisk) Likely(tempC, humidityPct float64) bool {
	return tempC >= p.TempMinC && tempC <= p.TempMaxC && humidityPct >= p.HumidityMinPct
}

// Crop is the agronomy profile the advisory engine scores a district
// against. Profiles ship in the embedded crop catalog and can be
// overridden with a catalog file at deploy time.
type Crop struct {
	Name    string              `json:"name"`
	Season  string              `json:"season,omitempty"` // kharif, rabi or perennial
	Aliases map[string][]string `json:"aliases,omitempty"` // locale → spoken names

	Rainfall Tolerance `json:"rainfall_mm"`
	Temp     Tolerance `json:"temp_c"`
	PH       Tolerance `json:"ph"`

	NReqKgHa float64 `json:"n_req_kg_ha"`
	PReqKgHa float64 `json:"p_req_kg_ha"`
	KReqKgHa float64 `json:"k_req_kg_ha"`

	OrganicMatterMinPct float64 `json:"om_min_pct"`
	SalinityMaxDSM      float64 `json:"salinity_max_ds_m"`

	PreferredSoils []string `json:"preferred_soils,omitempty"`
	ToleratedSoils []string `json:"tolerated_soils,omitempty"`

	BaseYieldTPHA float64 `json:"base_yield_tpha"`

	Stages map[Stage]StageParams `json:"stages,omitempty"`
	Pests  []PestRisk            `json:"pests,omitempty"`
}

// SeasonDays is the sum of the stage durations.
func (c *Crop) SeasonDays() int {
	total := 0
	for _, p := range c.Stages {
		total += p.DurationDays
	}
	return total
}

// StageAt returns the phenological stage active n days after sowing.
func (c *Crop) StageAt(daysAfterSowing int) (Stage, StageParams) {
	return StageAt(c.Stages, daysAfterSowing)
}
