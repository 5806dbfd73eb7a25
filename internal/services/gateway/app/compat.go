package app

import (
	"context"
	"encoding/json"
	"net/http"
)

// The /analyze and /analyze_image handlers answer exactly the way the
// first AgroNITY backend did. The page built against that contract is
// still deployed on farms, so wording and shapes must not drift.

const imageNotRecognized = "The uploaded image is not recognized. Please upload a picture of correct crop."

func (g *Gateway) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil || len(raw) == 0 {
		httpError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	req := analyzeBodyFrom(raw)
	if req.Crop == "" || req.District == "" || req.Soil == "" || req.Area == 0 {
		httpError(w, http.StatusBadRequest, "Missing required fields: crop, district, area, soil")
		return
	}
	if req.Lang == "" {
		req.Lang = primaryLang(r)
	}

	payload, _ := json.Marshal(map[string]any{
		"crop":        req.Crop,
		"district":    req.District,
		"soil":        req.Soil,
		"area":        req.Area,
		"cost_per_ha": req.CostPerHa,
		"lang":        req.Lang,
	})

	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.HTTPTimeout)
	defer cancel()
	fwd, err := g.advisory.Forward(ctx, http.MethodPost, "/analyze", payload)
	if err != nil {
		g.log.Warnw("analyze upstream failed", "error", err)
		httpError(w, http.StatusBadGateway, "Server error during analysis: "+err.Error())
		return
	}
	if fwd.status != http.StatusOK {
		passThrough(w, fwd)
		return
	}

	var rep struct {
		Feasibility struct {
			analyzeResult
			Reasons []string `json:"reasons"`
		} `json:"feasibility"`
	}
	if err := json.Unmarshal(fwd.body, &rep); err != nil {
		httpError(w, http.StatusBadGateway, "Server error during analysis: "+err.Error())
		return
	}
	if !rep.Feasibility.Feasible {
		writeJSON(w, analyzeRefusal{Feasible: false, Reasons: rep.Feasibility.Reasons})
		return
	}
	writeJSON(w, rep.Feasibility.analyzeResult)
}

func (g *Gateway) handleAnalyzeImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil || len(raw) == 0 {
		httpError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if _, ok := raw["filename"]; !ok {
		httpError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	name := asString(raw["filename"])
	if name == "" {
		writeJSON(w, map[string]string{"status": "error", "message": imageNotRecognized})
		return
	}

	payload, _ := json.Marshal(map[string]string{"filename": name})

	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.HTTPTimeout)
	defer cancel()
	fwd, err := g.advisory.Forward(ctx, http.MethodPost, "/analyze_image", payload)
	if err != nil {
		g.log.Warnw("analyze_image upstream failed", "error", err)
		httpError(w, http.StatusBadGateway, "Server error during image analysis: "+err.Error())
		return
	}
	passThrough(w, fwd)
}
