package advisory

import (
	"context"
	"fmt"
	"strings"
)

// imageKeywords maps filename substrings to catalog crop names, checked
// in order.
var imageKeywords = []struct{ key, crop string }{
	{"maize", "Maize"},
	{"tapioca", "Tapioca"},
	{"wheat", "Wheat"},
	{"cotton", "Cotton"},
	{"groundnut", "Groundnut"},
	{"paddy", "Paddy"},
}

// ImageResult is the crop-photo verdict: a status discriminator plus
// catalog aggregates as display strings. LivePriceRsQtl is filled when
// the market service has a fresh quote for the crop.
type ImageResult struct {
	Status         string  `json:"status"`
	Message        string  `json:"message,omitempty"`
	Crop           string  `json:"crop,omitempty"`
	AvgProduction  string  `json:"avg_production,omitempty"`
	MandiPrice     string  `json:"mandi_price,omitempty"`
	LivePriceRsQtl float64 `json:"live_price_rs_per_quintal,omitempty"`
}

const imageNotRecognized = "The uploaded image is not recognized. Please upload a picture of correct crop."

// AnalyzeImage identifies the crop from the uploaded photo's filename
// and returns its catalog aggregates. Recognition is keyword based; the
// client sends only the name, never the bytes.
func (a *Advisor) AnalyzeImage(ctx context.Context, filename string) ImageResult {
	name := strings.ToLower(filename)
	cropName := ""
	for _, kw := range imageKeywords {
		if strings.Contains(name, kw.key) {
			cropName = kw.crop
			break
		}
	}
	if cropName == "" {
		return ImageResult{Status: "error", Message: imageNotRecognized}
	}

	production, price, err := a.store.CropBaseline(ctx, cropName)
	if err != nil {
		return ImageResult{
			Status:  "error",
			Message: fmt.Sprintf("Data for '%s' not found in the dataset.", cropName),
		}
	}

	out := ImageResult{
		Status:        "success",
		Crop:          cropName,
		AvgProduction: fmt.Sprintf("%.2f tons per year", production),
		MandiPrice:    fmt.Sprintf("%.2f", price),
	}
	if a.market != nil {
		if q, err := a.market.Latest(ctx, cropName, ""); err == nil && !q.Stale && q.PriceRsQtl > 0 {
			out.LivePriceRsQtl = q.PriceRsQtl
		}
	}
	return out
}
