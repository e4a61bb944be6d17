package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go.ngs.io/harmonic/internal/domain"
	"go.ngs.io/harmonic/internal/usecase"
)

// Handler handles HTTP requests for harmonic analysis and prediction.
type Handler struct {
	analysisUC   *usecase.AnalysisUseCase
	predictionUC *usecase.PredictionUseCase
}

// NewHandler creates a new HTTP handler.
func NewHandler(analysisUC *usecase.AnalysisUseCase, predictionUC *usecase.PredictionUseCase) *Handler {
	return &Handler{
		analysisUC:   analysisUC,
		predictionUC: predictionUC,
	}
}

// analyzeBody is the JSON request body for POST /v1/analyze.
type analyzeBody struct {
	Start         string    `json:"start"`
	IntervalHours float64   `json:"interval_hours"`
	Heights       []float64 `json:"heights"`
	U             []float64 `json:"u"`
	V             []float64 `json:"v"`
	RecordName    string    `json:"record_name"`

	Latitude *float64 `json:"latitude"`

	Rayleigh     float64                 `json:"rayleigh"`
	Constituents []string                `json:"constituents"`
	Shallow      []string                `json:"shallow"`
	Inferences   []usecase.InferenceRule `json:"inferences"`

	Trend  string `json:"trend"`
	Solver string `json:"solver"`

	ErrorMethod string `json:"error_method"`
	Trials      int    `json:"trials"`
	Seed        int64  `json:"seed"`

	SNRThreshold          float64 `json:"snr_threshold"`
	IncludeReconstruction bool    `json:"include_reconstruction"`
}

// Analyze handles POST /v1/analyze.
func (h *Handler) Analyze(c *gin.Context) {
	var body analyzeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	req := usecase.AnalyzeRequest{
		IntervalHours:         body.IntervalHours,
		Heights:               body.Heights,
		U:                     body.U,
		V:                     body.V,
		RecordName:            body.RecordName,
		Latitude:              body.Latitude,
		Rayleigh:              body.Rayleigh,
		Constituents:          body.Constituents,
		Shallow:               body.Shallow,
		Inferences:            body.Inferences,
		Trend:                 body.Trend,
		Solver:                body.Solver,
		ErrorMethod:           body.ErrorMethod,
		Trials:                body.Trials,
		Seed:                  body.Seed,
		SNRThreshold:          body.SNRThreshold,
		IncludeReconstruction: body.IncludeReconstruction,
	}
	if body.Start != "" {
		start, err := time.Parse(time.RFC3339, body.Start)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid start time (expected RFC3339): %v", err)})
			return
		}
		req.Start = start.UTC()
	}

	response, err := h.analysisUC.Execute(req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, response)
}

// predictBody is the JSON request body for POST /v1/predict.
type predictBody struct {
	TableName    string               `json:"table_name"`
	Constituents []usecase.TableEntry `json:"constituents"`

	Latitude *float64 `json:"latitude"`

	Start    string   `json:"start"`
	End      string   `json:"end"`
	Interval string   `json:"interval"`
	Times    []string `json:"times"`

	SNRThreshold float64 `json:"snr_threshold"`
	AnalysisMode string  `json:"analysis_mode"`
}

// Predict handles POST /v1/predict.
func (h *Handler) Predict(c *gin.Context) {
	var body predictBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	req := usecase.PredictionRequest{
		TableName:    body.TableName,
		Constituents: body.Constituents,
		Latitude:     body.Latitude,
		SNRThreshold: body.SNRThreshold,
		AnalysisMode: body.AnalysisMode,
	}

	if len(body.Times) > 0 {
		req.Times = make([]time.Time, len(body.Times))
		for i, ts := range body.Times {
			tt, err := time.Parse(time.RFC3339, ts)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid target time %q (expected RFC3339): %v", ts, err)})
				return
			}
			req.Times[i] = tt.UTC()
		}
	} else {
		start, err := time.Parse(time.RFC3339, body.Start)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid start time (expected RFC3339): %v", err)})
			return
		}
		end, err := time.Parse(time.RFC3339, body.End)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid end time (expected RFC3339): %v", err)})
			return
		}

		intervalStr := body.Interval
		if intervalStr == "" {
			intervalStr = "10m"
		}
		interval, err := time.ParseDuration(intervalStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid interval: %v", err)})
			return
		}
		req.Start = start.UTC()
		req.End = end.UTC()
		req.Interval = interval
	}

	response, err := h.predictionUC.Execute(req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, response)
}

// ConstituentInfo is one row of the constituent listing.
type ConstituentInfo struct {
	Name         string  `json:"name"`
	FrequencyCPH float64 `json:"frequency_cph"`
	PeriodHours  float64 `json:"period_hours"`
	Doodson      [6]int  `json:"doodson"`
	Satellites   int     `json:"satellites"`
	ShallowWater bool    `json:"shallow_water"`
}

// GetConstituents handles GET /v1/constituents.
func (h *Handler) GetConstituents(c *gin.Context) {
	cat := domain.DefaultCatalog()

	response := make([]ConstituentInfo, len(cat.Constituents))
	for i := range cat.Constituents {
		cons := &cat.Constituents[i]
		response[i] = ConstituentInfo{
			Name:         cons.Name,
			FrequencyCPH: cons.FreqCPH,
			PeriodHours:  1 / cons.FreqCPH,
			Doodson:      cons.Doodson,
			Satellites:   len(cons.Satellites),
			ShallowWater: len(cons.Shallow) > 0,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"constituents": response,
		"count":        len(response),
	})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// statusFor maps analysis errors to HTTP status codes. Configuration
// problems are the caller's fault; data problems are unprocessable.
func statusFor(err error) int {
	var (
		cfgErr   *domain.InvalidConfigurationError
		dataErr  *domain.InsufficientDataError
		rankErr  *domain.RankDeficientError
		emptyErr *domain.EmptySeriesError
	)
	switch {
	case errors.As(err, &dataErr), errors.As(err, &rankErr), errors.As(err, &emptyErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}
