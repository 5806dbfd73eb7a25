package advisory

import (
	"github.com/thoufik1111/AgroNITY/internal/model/entities"
	"github.com/thoufik1111/AgroNITY/internal/weather"
)

// pestSteps checks the crop's pest envelopes against the forecast window
// and yields a scouting step for every risk the weather favours. No
// forecast means no pest calls; guessing would cry wolf.
func (a *Advisor) pestSteps(lang string, crop *entities.Crop, days []weather.Day) []step {
	day, ok := weather.NearestDay(days, a.now())
	if !ok {
		return nil
	}
	tempC := (day.TempMinC + day.TempMaxC) / 2

	var steps []step
	for _, p := range crop.Pests {
		if !p.Likely(tempC, day.HumidityPct) {
			continue
		}
		steps = append(steps, step{
			category: entities.StepPest, severity: entities.SeverityWarn,
			title:  a.tr.T(lang, "advisory.pest.title", p.Name),
			detail: p.Advice,
		})
	}
	return steps
}

// likelyPests names the pests favoured by the given conditions, for the
// alerting loop.
func likelyPests(crop *entities.Crop, tempC, humidityPct float64) []entities.PestRisk {
	var out []entities.PestRisk
	for _, p := range crop.Pests {
		if p.Likely(tempC, humidityPct) {
			out = append(out, p)
		}
	}
	return out
}
