package advisory

import (
	"math"

	"github.com/thoufik1111/AgroNITY/internal/model/entities"
)

// Nutrient content of the products the plan is expressed in.
const (
	ureaN = 0.46 // urea: 46% N
	dapN  = 0.18 // DAP: 18% N
	dapP  = 0.46 // DAP: 46% P2O5
	mopK  = 0.60 // MOP: 60% K2O
)

// buildFertilizer turns the nutrient gap between crop demand and the
// district soil panel into product doses for the whole field. DAP covers
// the phosphorus gap and its nitrogen credit reduces the urea dose.
func buildFertilizer(crop *entities.Crop, prof *entities.DistrictProfile, areaHa float64) *entities.FertilizerPlan {
	plan := &entities.FertilizerPlan{
		NGapKgHa: round1(gap(crop.NReqKgHa, prof.NitrogenKgHa)),
		PGapKgHa: round1(gap(crop.PReqKgHa, prof.PhosphorusKgHa)),
		KGapKgHa: round1(gap(crop.KReqKgHa, prof.PotassiumKgHa)),
	}

	dapKgHa := plan.PGapKgHa / dapP
	nLeft := math.Max(0, plan.NGapKgHa-dapKgHa*dapN)
	ureaKgHa := nLeft / ureaN
	mopKgHa := plan.KGapKgHa / mopK

	plan.UreaKg = round1(ureaKgHa * areaHa)
	plan.DAPKg = round1(dapKgHa * areaHa)
	plan.MOPKg = round1(mopKgHa * areaHa)

	if plan.UreaKg <= 0 && plan.DAPKg <= 0 && plan.MOPKg <= 0 {
		return plan
	}

	// 50% basal carrying the full DAP dose, then two 25% top-dressings.
	plan.Splits = []entities.FertilizerSplit{
		{Stage: entities.StageEmergence, UreaKg: round1(plan.UreaKg * 0.50), DAPKg: plan.DAPKg, MOPKg: round1(plan.MOPKg * 0.50)},
		{Stage: entities.StageMaxRooting, UreaKg: round1(plan.UreaKg * 0.25), MOPKg: round1(plan.MOPKg * 0.25)},
		{Stage: entities.StageSenescence, UreaKg: round1(plan.UreaKg * 0.25), MOPKg: round1(plan.MOPKg * 0.25)},
	}
	return plan
}

// fertilizerSteps renders the split schedule plus soil amendments for
// low organic matter and off-range pH.
func (a *Advisor) fertilizerSteps(lang string, plan *entities.FertilizerPlan, crop *entities.Crop, prof *entities.DistrictProfile) []step {
	t := func(key string, args ...any) string { return a.tr.T(lang, key, args...) }

	var steps []step
	if len(plan.Splits) > 0 {
		basal := plan.Splits[0]
		steps = append(steps, step{
			category: entities.StepFertilizer, severity: entities.SeverityInfo,
			title:  t("advisory.fertilizer.basal.title"),
			detail: t("advisory.fertilizer.basal.detail", basal.UreaKg, basal.DAPKg, basal.MOPKg),
		})
		for _, split := range plan.Splits[1:] {
			if split.UreaKg <= 0 && split.MOPKg <= 0 {
				continue
			}
			steps = append(steps, step{
				category: entities.StepFertilizer, severity: entities.SeverityInfo,
				title:  t("advisory.fertilizer.split.title", t("stage."+string(split.Stage))),
				detail: t("advisory.fertilizer.split.detail", split.UreaKg, split.MOPKg),
			})
		}
	}

	if crop.OrganicMatterMinPct > 0 && prof.OrganicMatterPct < crop.OrganicMatterMinPct {
		steps = append(steps, step{
			category: entities.StepFertilizer, severity: entities.SeverityInfo,
			title:  t("advisory.compost.title"),
			detail: t("advisory.compost.detail", prof.OrganicMatterPct),
		})
	}
	switch {
	case prof.PHLevel > 0 && prof.PHLevel < crop.PH.IdealMin:
		steps = append(steps, step{
			category: entities.StepFertilizer, severity: entities.SeverityInfo,
			title:  t("advisory.lime.title"),
			detail: t("advisory.lime.detail", prof.PHLevel),
		})
	case prof.PHLevel > crop.PH.IdealMax:
		steps = append(steps, step{
			category: entities.StepFertilizer, severity: entities.SeverityInfo,
			title:  t("advisory.gypsum.title"),
			detail: t("advisory.gypsum.detail", prof.PHLevel),
		})
	}
	return steps
}

func gap(need, have float64) float64 {
	return math.Max(0, need-have)
}
