// Package forecast implements Holt's linear exponential smoothing for
// short-horizon projections of mandi prices and soil telemetry.
package forecast

const (
	defaultAlpha = 0.5
	defaultBeta  = 0.3
)

// Holt smooths the series with the given level and trend gains and
// extrapolates horizon steps past the last observation. Series shorter
// than three points fall back to repeating the last value.
func Holt(series []float64, alpha, beta float64, horizon int) []float64 {
	if horizon <= 0 || len(series) == 0 {
		return nil
	}
	out := make([]float64, horizon)
	if len(series) < 3 {
		last := series[len(series)-1]
		for i := range out {
			out[i] = last
		}
		return out
	}

	level := series[0]
	trend := series[1] - series[0]
	for _, x := range series[1:] {
		prevLevel := level
		level = alpha*x + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
	}
	for h := 1; h <= horizon; h++ {
		out[h-1] = level + float64(h)*trend
	}
	return out
}

// Linear runs Holt with the default gains.
func Linear(series []float64, horizon int) []float64 {
	return Holt(series, defaultAlpha, defaultBeta, horizon)
}

// Trend directions.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendSteady  = "steady"
)

// Direction classifies the smoothed per-step drift of the series. Drift
// below 0.2% of the current level per step counts as steady.
func Direction(series []float64) string {
	if len(series) < 3 {
		return TrendSteady
	}
	level := series[0]
	trend := series[1] - series[0]
	for _, x := range series[1:] {
		prevLevel := level
		level = defaultAlpha*x + (1-defaultAlpha)*(level+trend)
		trend = defaultBeta*(level-prevLevel) + (1-defaultBeta)*trend
	}
	threshold := 0.002 * abs(level)
	switch {
	case trend > threshold:
		return TrendRising
	case trend < -threshold:
		return TrendFalling
	default:
		return TrendSteady
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
