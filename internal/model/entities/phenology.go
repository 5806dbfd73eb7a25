package entities

type Stage string

const (
	StageEmergence  Stage = "Emergence"
	StageMaxRooting Stage = "MaxRooting"
	StageSenescence Stage = "Senescence"
	StageMaturity   Stage = "Maturity"
)

// StageOrder is the canonical progression of a season.
var StageOrder = []Stage{StageEmergence, StageMaxRooting, StageSenescence, StageMaturity}

type StageParams struct {
	Kc           float64 `json:"kc"`
	SMT          float64 `json:"smt_pct"`       // soil moisture threshold, % of TAW
	RootZmm      float64 `json:"root_depth_mm"` // mm
	DurationDays int     `json:"duration_days"`
}

// StageAt walks the stage durations and returns the stage active on the
// given day after sowing. Days past the whole season stay at Maturity.
func StageAt(stages map[Stage]StageParams, daysAfterSowing int) (Stage, StageParams) {
	if len(stages) == 0 {
		return "", StageParams{}
	}
	elapsed := 0
	last := StageOrder[0]
	for _, st := range StageOrder {
		p, ok := stages[st]
		if !ok {
			continue
		}
		last = st
		elapsed += p.DurationDays
		if daysAfterSowing < elapsed {
			return st, p
		}
	}
	return last, stages[last]
}
