package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"go.ngs.io/harmonic/internal/usecase"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(usecase.NewAnalysisUseCase(nil), usecase.NewPredictionUseCase(nil))
}

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	testRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestGetConstituents(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/constituents", nil)
	testRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Constituents []ConstituentInfo `json:"constituents"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Constituents) == 0 {
		t.Fatal("empty constituent list")
	}
	seen := map[string]bool{}
	for _, c := range body.Constituents {
		seen[c.Name] = true
		if c.FrequencyCPH <= 0 {
			t.Errorf("%s has non-positive frequency", c.Name)
		}
	}
	for _, name := range []string{"M2", "S2", "K1", "O1"} {
		if !seen[name] {
			t.Errorf("constituent %s missing from listing", name)
		}
	}
}

func TestAnalyzeRejectsMalformedBody(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	testRouter().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAnalyzeRejectsInvalidRequest(t *testing.T) {
	payload := `{"interval_hours": 1}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	testRouter().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestPredictInlineTable(t *testing.T) {
	payload := `{
		"constituents": [{"name": "M2", "amplitude": 1.0, "phase_deg": 0}],
		"start": "2023-06-01T00:00:00Z",
		"end": "2023-06-02T00:00:00Z",
		"interval": "30m"
	}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/predict", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	testRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body usecase.PredictionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Predictions) != 49 {
		t.Errorf("got %d predictions, want 49", len(body.Predictions))
	}
}

func TestPredictExplicitTimes(t *testing.T) {
	payload := `{
		"constituents": [{"name": "M2", "amplitude": 1.0, "phase_deg": 0}],
		"times": ["2023-06-01T06:30:00Z", "2023-06-01T00:00:00Z", "2023-06-03T12:15:00Z"]
	}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/predict", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	testRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body usecase.PredictionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Predictions) != 3 {
		t.Fatalf("got %d predictions, want 3", len(body.Predictions))
	}
	if body.Predictions[1].Time != "2023-06-01T00:00:00Z" {
		t.Errorf("predictions must keep request order, got %q second", body.Predictions[1].Time)
	}

	bad := `{
		"constituents": [{"name": "M2", "amplitude": 1.0}],
		"times": ["yesterday"]
	}`
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/predict", bytes.NewBufferString(bad))
	req.Header.Set("Content-Type", "application/json")
	testRouter().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d for malformed target time", w.Code)
	}
}
