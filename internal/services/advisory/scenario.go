package advisory

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/thoufik1111/AgroNITY/internal/model/entities"
)

// ScenarioRequest is the analyze input plus bounded what-if deltas.
// Rainfall and price move by percent, cost by rupees per hectare, area
// by acres.
type ScenarioRequest struct {
	AnalyzeRequest
	RainfallDeltaPct float64 `json:"rainfall_delta_pct,omitempty"`
	PriceDeltaPct    float64 `json:"price_delta_pct,omitempty"`
	CostDeltaRsHa    float64 `json:"cost_delta_rs_ha,omitempty"`
	AreaDeltaAcres   float64 `json:"area_delta_acres,omitempty"`
}

func (r ScenarioRequest) Validate() error {
	if err := r.AnalyzeRequest.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.RainfallDeltaPct, validation.Min(-80.0), validation.Max(80.0)),
		validation.Field(&r.PriceDeltaPct, validation.Min(-80.0), validation.Max(80.0)),
	)
}

// ScenarioDelta is the headline movement between base and scenario.
type ScenarioDelta struct {
	ProfitRs    float64 `json:"profit_rs"`
	YieldTPHA   float64 `json:"yield_tpha"`
	Probability float64 `json:"probability"`
}

// ScenarioResult pairs the untouched and the adjusted report.
type ScenarioResult struct {
	Base     *entities.AdvisoryReport `json:"base"`
	Scenario *entities.AdvisoryReport `json:"scenario"`
	Delta    ScenarioDelta            `json:"delta"`
}

// Scenario evaluates the request twice, as given and with the deltas
// applied, and reports the movement between the two verdicts.
func (a *Advisor) Scenario(ctx context.Context, req ScenarioRequest) (*ScenarioResult, error) {
	base, err := a.engine.Analyze(ctx, req.AnalyzeRequest)
	if err != nil {
		return nil, err
	}

	adjusted := req.AnalyzeRequest
	adjusted.AreaAcres += req.AreaDeltaAcres
	if adjusted.AreaAcres <= 0 {
		return nil, fmt.Errorf("advisory: scenario area %.2f acres is not workable", adjusted.AreaAcres)
	}
	cost := adjusted.CostPerHa
	if cost <= 0 {
		cost = defaultCostRsHa
	}
	if cost += req.CostDeltaRsHa; cost < 0 {
		cost = 0
	}
	adjusted.CostPerHa = cost

	scenario, err := a.engine.analyze(ctx, adjusted, adjustments{
		rainScale:  1 + req.RainfallDeltaPct/100,
		priceScale: 1 + req.PriceDeltaPct/100,
	})
	if err != nil {
		return nil, err
	}

	return &ScenarioResult{
		Base:     base,
		Scenario: scenario,
		Delta: ScenarioDelta{
			ProfitRs:    round2(scenario.Feasibility.ProfitRs - base.Feasibility.ProfitRs),
			YieldTPHA:   round2(scenario.Feasibility.ExpectedYieldTPHA - base.Feasibility.ExpectedYieldTPHA),
			Probability: round3(scenario.Feasibility.Probability - base.Feasibility.Probability),
		},
	}, nil
}
