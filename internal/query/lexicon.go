package query

// Soil-type words across the served languages, mapped to the survey's
// Latin soil names.
var soilWords = map[string]string{
	"sandy":    "Sandy",
	"loamy":    "Loamy",
	"loam":     "Loamy",
	"clay":     "Clay",
	"clayey":   "Clay",
	"black":    "Black",
	"red":      "Red",
	"alluvial": "Alluvial",
	"laterite": "Laterite",

	"रेतीली": "Sandy",
	"दोमट":   "Loamy",
	"चिकनी":  "Clay",
	"काली":   "Black",
	"लाल":    "Red",
	"जलोढ़":   "Alluvial",

	"மணல்":     "Sandy",
	"களிமண்":   "Clay",
	"கரிசல்":   "Black",
	"செம்மண்":  "Red",
	"வண்டல்":   "Alluvial",
	"சரளை":     "Laterite",
	"வண்டல்மண்": "Alluvial",
}

// Area units in acres.
var unitWords = map[string]float64{
	"acre":      1,
	"acres":     1,
	"एकड़":      1,
	"ஏக்கர்":    1,
	"hectare":   2.47105,
	"hectares":  2.47105,
	"ha":        2.47105,
	"हेक्टेयर":  2.47105,
	"ஹெக்டேர்":  2.47105,
	"cent":      0.01,
	"cents":     0.01,
	"சென்ட்":    0.01,
}
