package weather

import "math"

// ET0Hargreaves estimates reference evapotranspiration [mm/day] from the
// daily temperature span. 0.408 converts radiation to evaporation depth;
// extraterrestrial radiation is folded in as a constant.
func ET0Hargreaves(tminC, tmaxC float64) float64 {
	const ra = 0.408
	tmean := (tminC + tmaxC) / 2.0
	return 0.0023 * (tmean + 17.8) * math.Sqrt(math.Max(tmaxC-tminC, 0)) * ra
}
