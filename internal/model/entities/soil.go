package entities

import "strings"

// SoilProfile carries the water-holding traits of a soil texture class.
type SoilProfile struct {
	ThetaFC        float64 `json:"theta_fc"` // volumetric water content at field capacity
	ThetaWP        float64 `json:"theta_wp"` // volumetric water content at wilting point
	Efficiency     float64 `json:"efficiency"`
	RainEfficiency float64 `json:"rain_efficiency"`
	CooldownHours  int     `json:"cooldown_h"`
}

// TAWmm is the total available water over the given root depth.
func (p SoilProfile) TAWmm(rootZmm float64) float64 {
	return (p.ThetaFC - p.ThetaWP) * rootZmm
}

// Indian soil orders as they appear in the district dataset, with
// FAO-style texture defaults.
var soilProfiles = map[string]SoilProfile{
	"alluvial": {ThetaFC: 0.31, ThetaWP: 0.15, Efficiency: 0.85, RainEfficiency: 0.80, CooldownHours: 12},
	"black":    {ThetaFC: 0.40, ThetaWP: 0.24, Efficiency: 0.80, RainEfficiency: 0.75, CooldownHours: 24},
	"red":      {ThetaFC: 0.26, ThetaWP: 0.12, Efficiency: 0.85, RainEfficiency: 0.75, CooldownHours: 12},
	"laterite": {ThetaFC: 0.24, ThetaWP: 0.11, Efficiency: 0.85, RainEfficiency: 0.70, CooldownHours: 8},
	"sandy":    {ThetaFC: 0.15, ThetaWP: 0.06, Efficiency: 0.90, RainEfficiency: 0.65, CooldownHours: 6},
	"loamy":    {ThetaFC: 0.28, ThetaWP: 0.13, Efficiency: 0.85, RainEfficiency: 0.80, CooldownHours: 12},
	"clay":     {ThetaFC: 0.41, ThetaWP: 0.25, Efficiency: 0.75, RainEfficiency: 0.75, CooldownHours: 24},
}

// SoilProfileFor looks up water traits by soil type name. Compound names
// like "sandy loam" resolve on their first word; unknown soils fall back
// to loamy defaults.
func SoilProfileFor(soilType string) SoilProfile {
	key := strings.ToLower(strings.TrimSpace(soilType))
	if p, ok := soilProfiles[key]; ok {
		return p
	}
	if first, _, ok := strings.Cut(key, " "); ok {
		if p, ok := soilProfiles[first]; ok {
			return p
		}
	}
	return soilProfiles["loamy"]
}
