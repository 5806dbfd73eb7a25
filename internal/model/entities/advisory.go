package entities

import "time"

// FeasibilityReport is the scored verdict for growing a crop in a
// district. Factors holds the per-input suitability scores in [0,1] so a
// caller can see which input dragged the verdict down.
type FeasibilityReport struct {
	Feasible          bool               `json:"feasible"`
	Probability       float64            `json:"probability"`
	ExpectedYieldTPHA float64            `json:"expected_yield_tpha"`
	YieldPercentage   float64            `json:"yield_percentage"`
	ProfitRs          float64            `json:"profit_rs"`
	TotalRevenueRs    float64            `json:"total_revenue_rs"`
	Revenue1YrRs      float64            `json:"revenue_1yr_rs"`
	Revenue2YrRs      float64            `json:"revenue_2yr_rs"`
	MandiPriceRsQtl   float64            `json:"mandi_price_rs_per_quintal"`
	Reasons           []string           `json:"reasons,omitempty"`
	Factors           map[string]float64 `json:"factors,omitempty"`
}

// Step categories.
const (
	StepIrrigation = "irrigation"
	StepFertilizer = "fertilizer"
	StepPest       = "pest"
	StepMarket     = "market"
	StepGeneral    = "general"
)

// Step severities.
const (
	SeverityInfo   = "info"
	SeverityWarn   = "warn"
	SeverityUrgent = "urgent"
)

// AdvisoryStep is one actionable instruction, already rendered in the
// farmer's language.
type AdvisoryStep struct {
	Seq      int    `json:"seq"`
	Category string `json:"category"`
	Severity string `json:"severity"`
	Title    string `json:"title"`
	Detail   string `json:"detail,omitempty"`
}

// IrrigationPlan is the water schedule for the current stage. A non-empty
// SkipReason means no irrigation should run and DoseMM is zero.
type IrrigationPlan struct {
	Stage      Stage   `json:"stage"`
	Kc         float64 `json:"kc"`
	ET0MM      float64 `json:"et0_mm"`
	RainMM     float64 `json:"rain_mm"`
	DoseMM     float64 `json:"dose_mm"`
	RuntimeMin float64 `json:"runtime_min,omitempty"`
	SkipReason string  `json:"skip_reason,omitempty"`
}

// FertilizerSplit is the share of the season's fertilizer applied at one
// stage.
type FertilizerSplit struct {
	Stage  Stage   `json:"stage"`
	UreaKg float64 `json:"urea_kg"`
	DAPKg  float64 `json:"dap_kg"`
	MOPKg  float64 `json:"mop_kg"`
}

// FertilizerPlan translates the nutrient gap between crop demand and the
// district soil panel into product quantities for the whole field.
type FertilizerPlan struct {
	NGapKgHa float64           `json:"n_gap_kg_ha"`
	PGapKgHa float64           `json:"p_gap_kg_ha"`
	KGapKgHa float64           `json:"k_gap_kg_ha"`
	UreaKg   float64           `json:"urea_kg"`
	DAPKg    float64           `json:"dap_kg"`
	MOPKg    float64           `json:"mop_kg"`
	Splits   []FertilizerSplit `json:"splits,omitempty"`
}

// AdvisoryReport is the full advisory bundle returned to a farmer query.
type AdvisoryReport struct {
	ID          string            `json:"report_id"`
	FieldID     string            `json:"field_id,omitempty"`
	Crop        string            `json:"crop"`
	District    string            `json:"district"`
	SoilType    string            `json:"soil_type"`
	AreaHa      float64           `json:"area_ha"`
	Lang        string            `json:"lang"`
	GeneratedAt time.Time         `json:"generated_at"`
	Feasibility FeasibilityReport `json:"feasibility"`
	Irrigation  *IrrigationPlan   `json:"irrigation,omitempty"`
	Fertilizer  *FertilizerPlan   `json:"fertilizer,omitempty"`
	Steps       []AdvisoryStep    `json:"steps"`
}
