package advisory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/thoufik1111/AgroNITY/internal/catalog"
	"github.com/thoufik1111/AgroNITY/internal/forecast"
	"github.com/thoufik1111/AgroNITY/internal/i18n"
	"github.com/thoufik1111/AgroNITY/internal/model/entities"
	"github.com/thoufik1111/AgroNITY/internal/weather"
)

// ForecastSource is the slice of the weather cache the planner needs.
type ForecastSource interface {
	Daily(ctx context.Context, lat, lon float64) ([]weather.Day, bool, error)
}

// MarketSource is the slice of the market service the planner needs.
type MarketSource interface {
	PriceSource
	Trend(ctx context.Context, crop, district string, days int) (string, error)
}

// PlanConfig tunes the irrigation model.
type PlanConfig struct {
	GuardLevels  []float64 // moisture guards in percent, highest first
	BaseMM       float64
	ETOCoeff     float64
	RainHoldMM   float64 // hold irrigation when this much rain is ahead
	RainHoldDays int
	Timezone     *time.Location
}

func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		GuardLevels:  []float64{35, 25},
		BaseMM:       5.0,
		ETOCoeff:     0.5,
		RainHoldMM:   10,
		RainHoldDays: 2,
	}
}

// Advisor assembles full advisory reports: the engine's verdict plus
// irrigation, fertilizer, pest and market steps rendered in the
// farmer's language.
type Advisor struct {
	engine  *Engine
	store   *catalog.Store
	tr      *i18n.Translator
	weather ForecastSource // optional
	market  MarketSource   // optional
	budget  *WaterBudget
	cfg     PlanConfig
	log     *zap.SugaredLogger
	now     func() time.Time
}

func NewAdvisor(store *catalog.Store, tr *i18n.Translator, wsrc ForecastSource, market MarketSource, cfg PlanConfig, log *zap.SugaredLogger) *Advisor {
	if cfg.Timezone == nil {
		cfg.Timezone = time.Local
	}
	var prices PriceSource
	if market != nil {
		prices = market
	}
	return &Advisor{
		engine:  NewEngine(store, tr, prices, log),
		store:   store,
		tr:      tr,
		weather: wsrc,
		market:  market,
		budget:  NewWaterBudget(cfg.BaseMM, cfg.ETOCoeff),
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// Analyze runs the feasibility engine alone.
func (a *Advisor) Analyze(ctx context.Context, req AnalyzeRequest) (*entities.AdvisoryReport, error) {
	return a.engine.Analyze(ctx, req)
}

// PlanContext is the live field state folded into the plan. The zero
// value of the moisture and sowing fields must come from UnboundPlan for
// a what-if query with no registered field.
type PlanContext struct {
	FieldID         string
	SensorID        string
	AreaHa          float64
	MoisturePct     float64 // negative when unknown
	DaysAfterSowing int     // negative when unknown
	MMPerMinute     float64
	Lat, Lon        float64 // zero pair falls back to the district centroid
}

// UnboundPlan is the context for advising on unregistered land.
func UnboundPlan() PlanContext {
	return PlanContext{MoisturePct: -1, DaysAfterSowing: -1}
}

// step is a rendered instruction before sequence numbers are assigned.
type step struct {
	category string
	severity string
	title    string
	detail   string
}

// BuildAdvisory produces the ordered plan for the request: irrigation,
// fertilizer, pest and market steps for a feasible crop, a single
// warning step otherwise.
func (a *Advisor) BuildAdvisory(ctx context.Context, req AnalyzeRequest, pc PlanContext) (*entities.AdvisoryReport, error) {
	report, err := a.engine.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	report.FieldID = pc.FieldID
	lang := report.Lang

	appendStep := func(s step) {
		report.Steps = append(report.Steps, entities.AdvisoryStep{
			Seq:      len(report.Steps) + 1,
			Category: s.category,
			Severity: s.severity,
			Title:    s.title,
			Detail:   s.detail,
		})
	}

	if !report.Feasibility.Feasible {
		appendStep(step{
			category: entities.StepGeneral, severity: entities.SeverityWarn,
			title:  a.tr.T(lang, "advisory.infeasible.title"),
			detail: a.tr.T(lang, "advisory.infeasible.detail", report.Crop),
		})
		return report, nil
	}

	// Feasible implies both lookups succeed; a failure here is a real
	// catalog fault, not a bad request.
	crop, err := a.store.Crop(report.Crop)
	if err != nil {
		return nil, fmt.Errorf("advisory: crop profile: %w", err)
	}
	prof, err := a.store.LookupDistrict(ctx, req.District, req.SoilType)
	if err != nil {
		return nil, fmt.Errorf("advisory: district profile: %w", err)
	}

	if pc.AreaHa <= 0 {
		pc.AreaHa = report.AreaHa
	}
	lat, lon := pc.Lat, pc.Lon
	if lat == 0 && lon == 0 {
		lat, lon = prof.Latitude, prof.Longitude
	}
	days := a.forecastDays(ctx, lat, lon)

	plan, irrSteps := a.irrigationPlan(lang, crop, prof, pc, days)
	report.Irrigation = plan
	for _, s := range irrSteps {
		appendStep(s)
	}

	fert := buildFertilizer(crop, prof, report.AreaHa)
	report.Fertilizer = fert
	for _, s := range a.fertilizerSteps(lang, fert, crop, prof) {
		appendStep(s)
	}

	for _, s := range a.pestSteps(lang, crop, days) {
		appendStep(s)
	}

	appendStep(a.marketStep(ctx, lang, report))
	return report, nil
}

// forecastDays fetches the daily forecast, tolerating a missing source
// and upstream failures; callers fall back to default weather.
func (a *Advisor) forecastDays(ctx context.Context, lat, lon float64) []weather.Day {
	if a.weather == nil || (lat == 0 && lon == 0) {
		return nil
	}
	days, stale, err := a.weather.Daily(ctx, lat, lon)
	if err != nil {
		a.log.Warnw("forecast unavailable, using default weather", "lat", lat, "lon", lon, "error", err)
		return nil
	}
	if stale {
		a.log.Debugw("serving stale forecast", "lat", lat, "lon", lon)
	}
	return days
}

// marketStep reports the going price and the near-term trend.
func (a *Advisor) marketStep(ctx context.Context, lang string, report *entities.AdvisoryReport) step {
	trend := forecast.TrendSteady
	if a.market != nil {
		if dir, err := a.market.Trend(ctx, report.Crop, report.District, 30); err == nil {
			trend = dir
		} else {
			a.log.Debugw("price trend unavailable", "crop", report.Crop, "error", err)
		}
	}
	return step{
		category: entities.StepMarket, severity: entities.SeverityInfo,
		title:  a.tr.T(lang, "advisory.market.title", report.Feasibility.MandiPriceRsQtl),
		detail: a.tr.T(lang, "advisory.market."+trend, report.Crop),
	}
}
