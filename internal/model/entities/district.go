package entities

import "github.com/uptrace/bun"

// DistrictProfile is one row of the district survey dataset: long-term
// weather normals, the soil chemistry panel, and the mandi price and
// production rate recorded for the district's major crop.
type DistrictProfile struct {
	bun.BaseModel `bun:"table:district_profiles,alias:dp" json:"-"`

	ID       int64  `bun:"id,pk,autoincrement" json:"-"`
	District string `bun:"district,notnull" json:"district"`
	State    string `bun:"state" json:"state,omitempty"`
	SoilType string `bun:"soil_type,notnull" json:"soil_type"`

	Latitude  float64 `bun:"latitude" json:"latitude,omitempty"`
	Longitude float64 `bun:"longitude" json:"longitude,omitempty"`

	AvgRainfallMM float64 `bun:"avg_rainfall_mm" json:"avg_rainfall_mm"`
	AvgTempC      float64 `bun:"avg_temp_c" json:"avg_temp_c"`

	FertUsageKgHa    float64 `bun:"fert_usage_kg_ha" json:"fert_usage_kg_ha"`
	PHLevel          float64 `bun:"ph_level" json:"ph_level"`
	NitrogenKgHa     float64 `bun:"nitrogen_kg_ha" json:"nitrogen_kg_ha"`
	PhosphorusKgHa   float64 `bun:"phosphorus_kg_ha" json:"phosphorus_kg_ha"`
	PotassiumKgHa    float64 `bun:"potassium_kg_ha" json:"potassium_kg_ha"`
	OrganicMatterPct float64 `bun:"organic_matter_pct" json:"organic_matter_pct"`
	SalinityDSM      float64 `bun:"salinity_ds_m" json:"salinity_ds_m"` // electrical conductivity
	CECMeq100g       float64 `bun:"cec_meq_100g" json:"cec_meq_100g"`
	ZincPPM          float64 `bun:"zinc_ppm" json:"zinc_ppm"`
	IronPPM          float64 `bun:"iron_ppm" json:"iron_ppm"`
	ManganesePPM     float64 `bun:"manganese_ppm" json:"manganese_ppm"`
	CopperPPM        float64 `bun:"copper_ppm" json:"copper_ppm"`

	MajorCrop         string  `bun:"major_crop,notnull" json:"crop"`
	MandiPriceRsQtl   float64 `bun:"mandi_price_rs_qtl" json:"mandi_price_rs_per_quintal"`
	ProductionRateTPY float64 `bun:"production_rate_tpy" json:"production_rate_tpy"`
}
