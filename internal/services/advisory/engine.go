// Package advisory scores crop choices against the district soil survey
// and turns the verdict into a stepwise plan a farmer can act on. The
// scoring is deliberately explainable: each input contributes a bounded
// factor score, and every failed factor becomes a reason string in the
// farmer's language.
package advisory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thoufik1111/AgroNITY/internal/catalog"
	"github.com/thoufik1111/AgroNITY/internal/i18n"
	"github.com/thoufik1111/AgroNITY/internal/model/entities"
)

// Economics constants carried over from the first AgroNITY release.
const (
	haPerAcre        = 0.4047 // one acre in hectares
	marketingLosses  = 0.90   // share of the mandi price left after mandi costs
	yieldRealization = 0.80   // share of the agronomic yield actually sold
	defaultCostRsHa  = 30000.0
	annualGrowth     = 1.05
)

// Factor weights sum to 1.0. Nutrients and rainfall dominate because
// they dominate the survey's yield spread.
const (
	weightRainfall    = 0.20
	weightTemperature = 0.15
	weightPH          = 0.15
	weightNutrients   = 0.20
	weightOrganic     = 0.10
	weightSalinity    = 0.05
	weightSoil        = 0.15
)

// AnalyzeRequest is the feasibility query. Area is in acres, the way the
// survey and the farmers count land.
type AnalyzeRequest struct {
	Crop      string  `json:"crop"`
	District  string  `json:"district"`
	SoilType  string  `json:"soil"`
	AreaAcres float64 `json:"area"`
	CostPerHa float64 `json:"cost_per_ha,omitempty"`
	Lang      string  `json:"lang,omitempty"`
}

func (r AnalyzeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Crop, validation.Required),
		validation.Field(&r.District, validation.Required),
		validation.Field(&r.SoilType, validation.Required),
		validation.Field(&r.AreaAcres, validation.Required, validation.Min(0.01)),
		validation.Field(&r.CostPerHa, validation.Min(0.0)),
	)
}

// PriceSource serves the latest mandi quote for a crop, live from the
// market service when it is reachable.
type PriceSource interface {
	Latest(ctx context.Context, crop, district string) (entities.PriceQuote, error)
}

// Engine runs feasibility analysis against the catalog.
type Engine struct {
	store  *catalog.Store
	tr     *i18n.Translator
	prices PriceSource // optional
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewEngine(store *catalog.Store, tr *i18n.Translator, prices PriceSource, log *zap.SugaredLogger) *Engine {
	return &Engine{store: store, tr: tr, prices: prices, log: log, now: time.Now}
}

// factorScore pairs a suitability score with the reason shown when the
// factor drags the verdict down.
type factorScore struct {
	name   string
	weight float64
	score  float64
	reason string
}

// adjustments scales survey inputs for what-if scenarios. The neutral
// value for both fields is 1.
type adjustments struct {
	rainScale  float64
	priceScale float64
}

var noAdjust = adjustments{rainScale: 1, priceScale: 1}

// Analyze scores the crop/district/soil combination and fills in the
// economics. Unknown districts and crops come back as infeasible reports
// with a reason, not as errors; errors are reserved for catalog failures.
func (e *Engine) Analyze(ctx context.Context, req AnalyzeRequest) (*entities.AdvisoryReport, error) {
	return e.analyze(ctx, req, noAdjust)
}

func (e *Engine) analyze(ctx context.Context, req AnalyzeRequest, adj adjustments) (*entities.AdvisoryReport, error) {
	lang := e.tr.Resolve(req.Lang)
	report := &entities.AdvisoryReport{
		ID:          uuid.NewString(),
		Crop:        req.Crop,
		District:    req.District,
		SoilType:    req.SoilType,
		AreaHa:      round2(req.AreaAcres * haPerAcre),
		Lang:        lang,
		GeneratedAt: e.now(),
	}

	prof, err := e.store.LookupDistrict(ctx, req.District, req.SoilType)
	if errors.Is(err, catalog.ErrDistrictNotFound) {
		report.Feasibility = entities.FeasibilityReport{
			Reasons: []string{e.tr.T(lang, "reason.no_data", req.District, req.SoilType)},
		}
		analysesTotal.WithLabelValues("false").Inc()
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("advisory: district lookup: %w", err)
	}

	crop, err := e.store.Crop(req.Crop)
	if errors.Is(err, catalog.ErrCropNotFound) {
		report.Feasibility = entities.FeasibilityReport{
			Reasons: []string{e.tr.T(lang, "reason.unknown_crop", req.Crop)},
		}
		analysesTotal.WithLabelValues("false").Inc()
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("advisory: crop lookup: %w", err)
	}
	report.Crop = crop.Name

	scored := *prof
	scored.AvgRainfallMM = round1(prof.AvgRainfallMM * adj.rainScale)
	factors := e.scoreFactors(lang, crop, &scored)

	suitability := 0.0
	scores := make(map[string]float64, len(factors))
	for _, f := range factors {
		suitability += f.weight * f.score
		scores[f.name] = round3(f.score)
	}
	probability := 1 / (1 + math.Exp(-8*(suitability-0.55)))
	feasible := probability >= 0.5

	fr := entities.FeasibilityReport{
		Feasible:    feasible,
		Probability: round3(probability),
		Factors:     scores,
	}
	if !feasible {
		fr.Reasons = failedReasons(factors)
	}

	// Yield percentage is measured against the best production rate in
	// the survey, not against the crop's own ceiling.
	yield := crop.BaseYieldTPHA * (0.35 + 0.65*suitability)
	if yield < 0 {
		yield = 0
	}
	fr.ExpectedYieldTPHA = round2(yield)
	if maxRate, err := e.store.MaxProductionRate(ctx); err == nil && maxRate > 0 {
		fr.YieldPercentage = round2(yield / maxRate * 100)
	}

	price, err := e.mandiPrice(ctx, crop.Name, req.District, prof)
	if err != nil {
		return nil, err
	}
	price = round2(price * adj.priceScale)
	fr.MandiPriceRsQtl = price

	costPerHa := req.CostPerHa
	if costPerHa <= 0 {
		costPerHa = defaultCostRsHa
	}
	pricePerTon := price * 10 * marketingLosses
	revenue := yield * yieldRealization * pricePerTon * report.AreaHa
	fr.TotalRevenueRs = round2(revenue)
	fr.ProfitRs = round2(revenue - costPerHa*report.AreaHa)
	fr.Revenue1YrRs = round2(revenue * annualGrowth)
	fr.Revenue2YrRs = round2(revenue * annualGrowth * annualGrowth)

	report.Feasibility = fr
	analysesTotal.WithLabelValues(strconv.FormatBool(feasible)).Inc()
	return report, nil
}

// scoreFactors produces one bounded score per survey input, each with
// its localized reason ready in case the factor fails.
func (e *Engine) scoreFactors(lang string, crop *entities.Crop, prof *entities.DistrictProfile) []factorScore {
	t := func(key string, args ...any) string { return e.tr.T(lang, key, args...) }

	rain := factorScore{name: "rainfall", weight: weightRainfall, score: crop.Rainfall.Score(prof.AvgRainfallMM)}
	if prof.AvgRainfallMM < crop.Rainfall.IdealMin {
		rain.reason = t("reason.rainfall.low", prof.AvgRainfallMM, crop.Rainfall.IdealMin)
	} else {
		rain.reason = t("reason.rainfall.high", prof.AvgRainfallMM, crop.Rainfall.IdealMax)
	}

	temp := factorScore{
		name: "temperature", weight: weightTemperature,
		score:  crop.Temp.Score(prof.AvgTempC),
		reason: t("reason.temp", prof.AvgTempC, crop.Temp.IdealMin, crop.Temp.IdealMax),
	}
	ph := factorScore{
		name: "ph", weight: weightPH,
		score:  crop.PH.Score(prof.PHLevel),
		reason: t("reason.ph", prof.PHLevel, crop.PH.IdealMin, crop.PH.IdealMax),
	}

	nutrients := factorScore{name: "nutrients", weight: weightNutrients, score: 1}
	if worst, need, have := worstNutrient(crop, prof); worst != "" {
		nutrients.score = nutrientScore(crop, prof)
		nutrients.reason = t("reason.nutrient", t("nutrient."+worst), have, have/need*100)
	}

	om := factorScore{name: "organic_matter", weight: weightOrganic, score: 1,
		reason: t("reason.om", prof.OrganicMatterPct, crop.OrganicMatterMinPct)}
	if crop.OrganicMatterMinPct > 0 {
		om.score = clamp01(prof.OrganicMatterPct / crop.OrganicMatterMinPct)
	}

	sal := factorScore{name: "salinity", weight: weightSalinity, score: 1,
		reason: t("reason.salinity", prof.SalinityDSM, crop.SalinityMaxDSM)}
	if crop.SalinityMaxDSM > 0 && prof.SalinityDSM > crop.SalinityMaxDSM {
		sal.score = clamp01(crop.SalinityMaxDSM / prof.SalinityDSM)
	}

	soil := factorScore{name: "soil_type", weight: weightSoil,
		score:  soilPreference(crop, prof.SoilType),
		reason: t("reason.soil", prof.SoilType, crop.Name),
	}

	return []factorScore{rain, temp, ph, nutrients, om, sal, soil}
}

// failedReasons collects the reasons of every factor scoring under 0.6,
// worst first. A borderline-infeasible verdict with no outright failure
// still names its weakest factor.
func failedReasons(factors []factorScore) []string {
	failed := make([]factorScore, 0, len(factors))
	for _, f := range factors {
		if f.score < 0.6 {
			failed = append(failed, f)
		}
	}
	if len(failed) == 0 {
		weakest := factors[0]
		for _, f := range factors[1:] {
			if f.score < weakest.score {
				weakest = f
			}
		}
		failed = append(failed, weakest)
	}
	sort.SliceStable(failed, func(i, j int) bool { return failed[i].score < failed[j].score })
	reasons := make([]string, 0, len(failed))
	for _, f := range failed {
		reasons = append(reasons, f.reason)
	}
	return reasons
}

// nutrientScore is the mean sufficiency ratio across N, P and K.
func nutrientScore(crop *entities.Crop, prof *entities.DistrictProfile) float64 {
	ratios := []float64{
		sufficiency(prof.NitrogenKgHa, crop.NReqKgHa),
		sufficiency(prof.PhosphorusKgHa, crop.PReqKgHa),
		sufficiency(prof.PotassiumKgHa, crop.KReqKgHa),
	}
	sum := 0.0
	for _, r := range ratios {
		sum += r
	}
	return sum / float64(len(ratios))
}

// worstNutrient names the least sufficient of N, P and K together with
// its demand and supply. Empty name means the crop defines no demand.
func worstNutrient(crop *entities.Crop, prof *entities.DistrictProfile) (name string, need, have float64) {
	worst := math.MaxFloat64
	check := func(n string, haveV, needV float64) {
		if needV <= 0 {
			return
		}
		if r := sufficiency(haveV, needV); r < worst {
			name, worst, need, have = n, r, needV, haveV
		}
	}
	check("n", prof.NitrogenKgHa, crop.NReqKgHa)
	check("p", prof.PhosphorusKgHa, crop.PReqKgHa)
	check("k", prof.PotassiumKgHa, crop.KReqKgHa)
	return name, need, have
}

func sufficiency(have, need float64) float64 {
	if need <= 0 {
		return 1
	}
	return clamp01(have / need)
}

// soilPreference scores the soil type against the crop's lists.
func soilPreference(crop *entities.Crop, soilType string) float64 {
	s := strings.ToLower(strings.TrimSpace(soilType))
	for _, p := range crop.PreferredSoils {
		if strings.ToLower(p) == s {
			return 1.0
		}
	}
	for _, p := range crop.ToleratedSoils {
		if strings.ToLower(p) == s {
			return 0.6
		}
	}
	return 0.25
}

// mandiPrice resolves the price used for economics: the live market
// quote when fresh, otherwise the survey price.
func (e *Engine) mandiPrice(ctx context.Context, crop, district string, prof *entities.DistrictProfile) (float64, error) {
	if e.prices != nil {
		if q, err := e.prices.Latest(ctx, crop, district); err == nil && !q.Stale && q.PriceRsQtl > 0 {
			return q.PriceRsQtl, nil
		} else if err != nil {
			e.log.Debugw("live price unavailable, using survey price", "crop", crop, "error", err)
		}
	}
	if strings.EqualFold(prof.MajorCrop, crop) && prof.MandiPriceRsQtl > 0 {
		return prof.MandiPriceRsQtl, nil
	}
	price, err := e.store.MandiPrice(ctx, crop, district)
	if errors.Is(err, catalog.ErrCropNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("advisory: mandi price: %w", err)
	}
	return price, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
