package advisory

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoufik1111/AgroNITY/internal/model/entities"
)

func newTestMux(t *testing.T) (*http.ServeMux, *Service) {
	t.Helper()
	svc, _, _ := newTestService(t)
	return NewHTTPMux(svc), svc
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestHTTPAnalyze(t *testing.T) {
	mux, _ := newTestMux(t)

	w := doJSON(t, mux, http.MethodPost, "/analyze", AnalyzeRequest{
		Crop: "Paddy", District: "Thanjavur", SoilType: "Alluvial", AreaAcres: 2,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var report entities.AdvisoryReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.True(t, report.Feasibility.Feasible)
	assert.Empty(t, report.Steps)
}

func TestHTTPAnalyzeRejectsBadInput(t *testing.T) {
	mux, _ := newTestMux(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewBufferString("{oops")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid JSON payload")

	w = doJSON(t, mux, http.MethodPost, "/analyze", AnalyzeRequest{Crop: "Paddy"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, mux, http.MethodGet, "/analyze", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHTTPAdvisoryWithSowingDate(t *testing.T) {
	mux, _ := newTestMux(t)

	sown := time.Now().AddDate(0, 0, -10).Format("2006-01-02")
	w := doJSON(t, mux, http.MethodPost, "/advisory", map[string]any{
		"crop": "Paddy", "district": "Thanjavur", "soil": "Alluvial", "area": 2,
		"sowing_date": sown,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var report entities.AdvisoryReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.NotNil(t, report.Irrigation)
	// ten days in is still establishment
	assert.Equal(t, entities.StageEmergence, report.Irrigation.Stage)
	assert.NotEmpty(t, report.Steps)

	w = doJSON(t, mux, http.MethodPost, "/advisory", map[string]any{
		"crop": "Paddy", "district": "Thanjavur", "soil": "Alluvial", "area": 2,
		"sowing_date": "01-08-2026",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTPAdvisoryFieldBound(t *testing.T) {
	mux, svc := newTestMux(t)
	require.NoError(t, svc.UpsertField(paddyField()))

	w := doJSON(t, mux, http.MethodPost, "/advisory", map[string]any{"field_id": "f-1"})
	require.Equal(t, http.StatusOK, w.Code)

	var report entities.AdvisoryReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "f-1", report.FieldID)
	assert.Equal(t, "Paddy", report.Crop)
	assert.Equal(t, "Thanjavur", report.District)

	w = doJSON(t, mux, http.MethodPost, "/advisory", map[string]any{"field_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHTTPScenario(t *testing.T) {
	mux, _ := newTestMux(t)

	w := doJSON(t, mux, http.MethodPost, "/scenario", ScenarioRequest{
		AnalyzeRequest: AnalyzeRequest{Crop: "Paddy", District: "Thanjavur", SoilType: "Alluvial", AreaAcres: 2},
		PriceDeltaPct:  10,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var res ScenarioResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotNil(t, res.Base)
	require.NotNil(t, res.Scenario)
	assert.Greater(t, res.Delta.ProfitRs, 0.0)
}

func TestHTTPQuery(t *testing.T) {
	mux, _ := newTestMux(t)

	w := doJSON(t, mux, http.MethodPost, "/query", QueryRequest{
		Type: "text", Text: "2 acres of paddy in Thanjavur",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Report)
	assert.True(t, resp.Report.Feasibility.Feasible)
}

func TestHTTPAnalyzeImage(t *testing.T) {
	mux, _ := newTestMux(t)

	w := doJSON(t, mux, http.MethodPost, "/analyze_image", map[string]string{"filename": "paddy.jpg"})
	require.Equal(t, http.StatusOK, w.Code)
	var res ImageResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "success", res.Status)

	w = doJSON(t, mux, http.MethodPost, "/analyze_image", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "filename is required")
}

func TestHTTPCatalogListings(t *testing.T) {
	mux, _ := newTestMux(t)

	w := doJSON(t, mux, http.MethodGet, "/crops", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Paddy")

	w = doJSON(t, mux, http.MethodGet, "/districts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Thanjavur")
}

func TestHTTPFieldsCRUD(t *testing.T) {
	mux, _ := newTestMux(t)

	w := doJSON(t, mux, http.MethodPost, "/fields", paddyField())
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, mux, http.MethodPost, "/fields", entities.Field{ID: "f-2", District: "Thanjavur"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, mux, http.MethodGet, "/fields", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fields []entities.Field
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fields))
	require.Len(t, fields, 1)
	assert.Equal(t, "f-1", fields[0].ID)

	w = doJSON(t, mux, http.MethodGet, "/fields/f-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, mux, http.MethodPost, "/fields/f-1/advisory", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report entities.AdvisoryReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "f-1", report.FieldID)
	assert.NotEmpty(t, report.Steps)

	w = doJSON(t, mux, http.MethodDelete, "/fields/f-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, mux, http.MethodGet, "/fields/f-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHTTPHealthz(t *testing.T) {
	mux, _ := newTestMux(t)
	w := doJSON(t, mux, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
