package advisory

import (
	"math"

	"github.com/thoufik1111/AgroNITY/internal/model/entities"
	"github.com/thoufik1111/AgroNITY/internal/weather"
)

// Weather fallbacks used when no forecast is available.
const (
	fallbackET0MM  = 4.0
	fallbackRainMM = 0.0
)

// Irrigation skip reasons carried in IrrigationPlan.SkipReason.
const (
	SkipRainAhead   = "rain_ahead"
	SkipSoilWet     = "soil_wet"
	SkipBudgetSpent = "budget_spent"
)

// litresPerHaMM converts an irrigation depth to volume: one millimetre
// over one hectare is ten thousand litres.
const litresPerHaMM = 10000.0

// irrigationPlan applies the dose model to the current stage: water only
// when the soil is drier than the stage threshold, dose by crop
// evapotranspiration less effective rain, never past the day's budget.
// The returned steps are rendered in lang and ready to append.
func (a *Advisor) irrigationPlan(lang string, crop *entities.Crop, prof *entities.DistrictProfile, pc PlanContext, days []weather.Day) (*entities.IrrigationPlan, []step) {
	stage, params := stageFor(crop, pc.DaysAfterSowing)
	plan := &entities.IrrigationPlan{Stage: stage, Kc: params.Kc}

	now := a.now()
	et0, rain := fallbackET0MM, fallbackRainMM
	if day, ok := weather.NearestDay(days, now); ok {
		et0, rain = day.ET0MM, day.RainMM
	}
	plan.ET0MM, plan.RainMM = round2(et0), round2(rain)

	t := func(key string, args ...any) string { return a.tr.T(lang, key, args...) }

	if ahead := weather.RainAhead(days, now, a.cfg.RainHoldDays); ahead >= a.cfg.RainHoldMM {
		plan.SkipReason = SkipRainAhead
		return plan, []step{{
			category: entities.StepIrrigation, severity: entities.SeverityInfo,
			title:  t("advisory.skip.rain.title"),
			detail: t("advisory.skip.rain.detail", ahead, a.cfg.RainHoldDays),
		}}
	}

	threshold := a.guardFor(params)
	if pc.MoisturePct >= 0 && pc.MoisturePct >= threshold {
		plan.SkipReason = SkipSoilWet
		return plan, []step{{
			category: entities.StepIrrigation, severity: entities.SeverityInfo,
			title:  t("advisory.skip.wet.title"),
			detail: t("advisory.skip.wet.detail", pc.MoisturePct, threshold),
		}}
	}

	soil := entities.SoilProfileFor(prof.SoilType)
	dose := a.cfg.BaseMM + a.cfg.ETOCoeff*math.Max(0, params.Kc*et0-rain*soil.RainEfficiency)

	// Budget applies only to field-bound advisories; a what-if query for
	// unregistered land has no sensor to meter against.
	if pc.FieldID != "" && pc.SensorID != "" {
		key := pc.FieldID + "|" + pc.SensorID
		dayStart := midnightLocal(now, a.cfg.Timezone)
		left, total := a.budget.Remaining(key, dayStart, et0, rain)
		if dose > left {
			dose = left
		}
		if dose <= 0 {
			plan.SkipReason = SkipBudgetSpent
			return plan, []step{{
				category: entities.StepIrrigation, severity: entities.SeverityInfo,
				title:  t("advisory.skip.budget.title"),
				detail: t("advisory.skip.budget.detail", total),
			}}
		}
		a.budget.Deduct(key, dayStart, dose)
	}

	plan.DoseMM = round2(dose)
	area := pc.AreaHa
	detail := t("advisory.irrigate.detail", dose*area*litresPerHaMM, dose, area)
	if pc.MMPerMinute > 0 {
		mins := math.Round(dose / pc.MMPerMinute)
		if mins < 1 {
			mins = 1
		}
		plan.RuntimeMin = mins
		detail += " " + t("advisory.irrigate.runtime", mins)
	}
	sev := entities.SeverityInfo
	if pc.MoisturePct >= 0 && pc.MoisturePct < threshold-10 {
		sev = entities.SeverityUrgent
	}
	return plan, []step{{
		category: entities.StepIrrigation, severity: sev,
		title:  t("advisory.irrigate.title", dose),
		detail: detail,
	}}
}

// stageFor resolves the active growth stage, defaulting to peak growth
// when the sowing date is unknown or the crop carries no stage table.
func stageFor(crop *entities.Crop, daysAfterSowing int) (entities.Stage, entities.StageParams) {
	if len(crop.Stages) == 0 {
		return entities.StageMaxRooting, entities.StageParams{Kc: 1.0}
	}
	if daysAfterSowing < 0 {
		if p, ok := crop.Stages[entities.StageMaxRooting]; ok {
			return entities.StageMaxRooting, p
		}
		daysAfterSowing = 0
	}
	return crop.StageAt(daysAfterSowing)
}

// guardFor picks the moisture threshold: the stage's own when defined,
// otherwise the highest configured guard level.
func (a *Advisor) guardFor(params entities.StageParams) float64 {
	if params.SMT > 0 {
		return params.SMT
	}
	if len(a.cfg.GuardLevels) > 0 {
		return a.cfg.GuardLevels[0]
	}
	return 35
}
