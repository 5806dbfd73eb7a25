package advisory

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thoufik1111/AgroNITY/internal/model/entities"
)

// advisoryBody is the /advisory payload: the analyze input, optionally
// bound to a registered field whose telemetry then drives the plan.
type advisoryBody struct {
	AnalyzeRequest
	FieldID    string `json:"field_id,omitempty"`
	SowingDate string `json:"sowing_date,omitempty"` // YYYY-MM-DD
}

type imageBody struct {
	Filename string `json:"filename"`
}

// NewHTTPMux wires the advisory API.
func NewHTTPMux(svc *Service) *http.ServeMux {
	adv := svc.Advisor()
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	mux.Handle("/metrics", promhttp.Handler())

	// POST /analyze: feasibility verdict only.
	mux.HandleFunc("/analyze", timed("analyze", func(w http.ResponseWriter, r *http.Request) {
		var req AnalyzeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		report, err := adv.Analyze(r.Context(), req)
		if err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, report)
	}))

	// POST /advisory: full step plan.
	mux.HandleFunc("/advisory", timed("advisory", func(w http.ResponseWriter, r *http.Request) {
		var body advisoryBody
		if !decodeBody(w, r, &body) {
			return
		}
		pc := UnboundPlan()
		if body.FieldID != "" {
			f, ok := svc.Field(body.FieldID)
			if !ok {
				httpError(w, http.StatusNotFound, "field "+body.FieldID+" is not registered")
				return
			}
			if body.Crop == "" {
				body.Crop = f.Crop
			}
			if body.District == "" {
				body.District = f.District
			}
			if body.SoilType == "" {
				body.SoilType = f.SoilType
			}
			if body.AreaAcres <= 0 && f.AreaHa > 0 {
				body.AreaAcres = f.AreaHa / haPerAcre
			}
			if body.Lang == "" {
				body.Lang = f.Lang
			}
			pc = svc.planContext(&f)
		} else if body.SowingDate != "" {
			d, err := time.Parse("2006-01-02", body.SowingDate)
			if err != nil {
				httpError(w, http.StatusBadRequest, "sowing_date must be YYYY-MM-DD")
				return
			}
			if days := int(time.Since(d).Hours() / 24); days >= 0 {
				pc.DaysAfterSowing = days
			}
		}
		if err := body.AnalyzeRequest.Validate(); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		report, err := adv.BuildAdvisory(r.Context(), body.AnalyzeRequest, pc)
		if err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, report)
	}))

	// POST /scenario: what-if deltas against the base verdict.
	mux.HandleFunc("/scenario", timed("scenario", func(w http.ResponseWriter, r *http.Request) {
		var req ScenarioRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		result, err := adv.Scenario(r.Context(), req)
		if err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, result)
	}))

	// POST /query: free text, transcribed voice or image filename.
	mux.HandleFunc("/query", timed("query", func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		resp, err := adv.Query(r.Context(), req)
		if err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, resp)
	}))

	// POST /analyze_image: crop photo lookup by filename.
	mux.HandleFunc("/analyze_image", timed("analyze_image", func(w http.ResponseWriter, r *http.Request) {
		var body imageBody
		if !decodeBody(w, r, &body) {
			return
		}
		if body.Filename == "" {
			httpError(w, http.StatusBadRequest, "filename is required")
			return
		}
		writeJSON(w, adv.AnalyzeImage(r.Context(), body.Filename))
	}))

	// GET /crops and /districts: catalog listings for client pickers.
	mux.HandleFunc("/crops", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"crops": adv.store.Crops()})
	})
	mux.HandleFunc("/districts", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		ds, err := adv.store.Districts(ctx)
		if err != nil {
			httpError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, map[string]any{"districts": ds})
	})

	// /fields: registry CRUD.
	mux.HandleFunc("/fields", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, svc.Fields())
		case http.MethodPost:
			var f entities.Field
			if !decodeBody(w, r, &f) {
				return
			}
			if err := validateField(f); err != nil {
				httpError(w, http.StatusBadRequest, err.Error())
				return
			}
			if err := svc.UpsertField(f); err != nil {
				httpError(w, http.StatusBadRequest, err.Error())
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(f)
		default:
			httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})
	mux.HandleFunc("/fields/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/fields/")
		if id, ok := strings.CutSuffix(rest, "/advisory"); ok {
			if r.Method != http.MethodPost {
				httpError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			report, err := svc.IssueAdvisory(r.Context(), id)
			if err != nil {
				httpError(w, http.StatusNotFound, err.Error())
				return
			}
			writeJSON(w, report)
			return
		}
		switch r.Method {
		case http.MethodGet:
			f, ok := svc.Field(rest)
			if !ok {
				httpError(w, http.StatusNotFound, "field "+rest+" is not registered")
				return
			}
			writeJSON(w, f)
		case http.MethodDelete:
			if !svc.DeleteField(rest) {
				httpError(w, http.StatusNotFound, "field "+rest+" is not registered")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	return mux
}

func validateField(f entities.Field) error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.ID, validation.Required),
		validation.Field(&f.District, validation.Required),
		validation.Field(&f.SoilType, validation.Required),
		validation.Field(&f.Crop, validation.Required),
		validation.Field(&f.AreaHa, validation.Required, validation.Min(0.01)),
	)
}

// timed wraps a POST handler with a method guard and a latency sample.
func timed(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpError(w, http.StatusMethodNotAllowed, "POST required")
			return
		}
		timer := prometheus.NewTimer(requestDuration.WithLabelValues(endpoint))
		defer timer.ObserveDuration()
		h(w, r)
	}
}

// decodeBody parses the JSON body, answering 400 itself on garbage.
func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
