package advisory

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/thoufik1111/AgroNITY/internal/model/entities"
	"github.com/thoufik1111/AgroNITY/internal/query"
)

// QueryRequest is a multi-modal farmer query. Voice arrives already
// transcribed; image queries carry only the filename.
type QueryRequest struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Filename   string `json:"filename,omitempty"`
	Lang       string `json:"lang,omitempty"`
}

func (r QueryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type, validation.Required, validation.In("text", "voice", "image")),
	)
}

// QueryResponse carries the parse and, when it was complete, the full
// report. Missing lists the fields to prompt the farmer for.
type QueryResponse struct {
	Parsed  *query.Parsed            `json:"parsed,omitempty"`
	Missing []string                 `json:"missing,omitempty"`
	Report  *entities.AdvisoryReport `json:"report,omitempty"`
	Image   *ImageResult             `json:"image,omitempty"`
}

// Query resolves a text, voice or image query end to end. A text parse
// that misses the soil type borrows it from the district survey, since
// most farmers name the place but not the soil.
func (a *Advisor) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	switch req.Type {
	case "image":
		res := a.AnalyzeImage(ctx, req.Filename)
		return &QueryResponse{Image: &res}, nil
	case "voice":
		if req.Text == "" {
			req.Text = req.Transcript
		}
	}

	parser := query.NewParser(a.store.ResolveCrop, func() []string {
		ds, err := a.store.Districts(ctx)
		if err != nil {
			a.log.Warnw("district list unavailable for parsing", "error", err)
			return nil
		}
		return ds
	})
	parsed := parser.Parse(req.Text, req.Lang)

	if parsed.SoilType == "" && parsed.District != "" {
		if prof, err := a.store.DistrictAny(ctx, parsed.District); err == nil {
			parsed.SoilType = prof.SoilType
		}
	}

	if missing := parsed.Missing(); len(missing) > 0 {
		return &QueryResponse{Parsed: &parsed, Missing: missing}, nil
	}

	report, err := a.BuildAdvisory(ctx, AnalyzeRequest{
		Crop:      parsed.Crop,
		District:  parsed.District,
		SoilType:  parsed.SoilType,
		AreaAcres: parsed.AreaAcres,
		Lang:      parsed.Lang,
	}, UnboundPlan())
	if err != nil {
		return nil, err
	}
	return &QueryResponse{Parsed: &parsed, Report: report}, nil
}
