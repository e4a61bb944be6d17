package usecase

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"go.ngs.io/harmonic/internal/adapter/store"
	"go.ngs.io/harmonic/internal/domain"
	"go.ngs.io/harmonic/internal/metrics"
)

// PredictionRequest encapsulates a tide prediction request. The constituent
// table comes either inline or by table name resolved through the
// configured store. Target instants come either as a regular grid
// (start/end/interval) or as an explicit list of times, which need not be
// ordered or evenly spaced.
type PredictionRequest struct {
	TableName    string
	Constituents []TableEntry

	Latitude *float64

	Start    time.Time
	End      time.Time
	Interval time.Duration

	Times []time.Time

	SNRThreshold float64

	// AnalysisMode selects the synthesis of satellite structure: "nodal"
	// (default) folds it into f,u corrections at the span center, "full"
	// synthesizes every satellite as an explicit spectral line.
	AnalysisMode string
}

// TableEntry is one inline constituent of a prediction request.
type TableEntry struct {
	Name      string  `json:"name"`
	Amplitude float64 `json:"amplitude"`
	PhaseDeg  float64 `json:"phase_deg"`
}

// PredictionResponse contains the tide prediction results.
type PredictionResponse struct {
	Constituents []string          `json:"constituents"`
	Predictions  []SamplePoint     `json:"predictions"`
	Extrema      ExtremaResponse   `json:"extrema"`
	Meta         map[string]string `json:"meta"`
}

// ExtremaResponse contains high and low tides.
type ExtremaResponse struct {
	Highs []SamplePoint `json:"highs"`
	Lows  []SamplePoint `json:"lows"`
}

// PredictionUseCase orchestrates tide prediction.
type PredictionUseCase struct {
	tables store.TableLoader
}

// NewPredictionUseCase creates a new prediction use case. The loader may
// be nil when only inline tables are served.
func NewPredictionUseCase(tables store.TableLoader) *PredictionUseCase {
	return &PredictionUseCase{tables: tables}
}

// Validate checks if the request is valid.
func (r *PredictionRequest) Validate() error {
	hasTable := r.TableName != ""
	hasInline := len(r.Constituents) > 0
	if !hasTable && !hasInline {
		return fmt.Errorf("either table_name or constituents must be provided")
	}
	if hasTable && hasInline {
		return fmt.Errorf("table_name and constituents are mutually exclusive")
	}

	if r.Latitude != nil && (*r.Latitude < -90 || *r.Latitude > 90) {
		return fmt.Errorf("latitude must be between -90 and 90")
	}

	switch r.AnalysisMode {
	case "", "nodal", "full":
	default:
		return fmt.Errorf("analysis_mode must be nodal or full, got %q", r.AnalysisMode)
	}

	if len(r.Times) > 0 {
		if !r.Start.IsZero() || !r.End.IsZero() || r.Interval != 0 {
			return fmt.Errorf("times and start/end/interval are mutually exclusive")
		}
		if len(r.Times) > 100000 {
			return fmt.Errorf("too many prediction points (%d) - reduce the times list", len(r.Times))
		}
		return nil
	}

	if !r.Start.Before(r.End) {
		return fmt.Errorf("start time must be before end time")
	}
	if r.Interval < time.Minute {
		return fmt.Errorf("interval must be at least 1 minute")
	}
	if r.Interval > 6*time.Hour {
		return fmt.Errorf("interval must be at most 6 hours")
	}

	duration := r.End.Sub(r.Start)
	if duration > 365*24*time.Hour {
		return fmt.Errorf("time range must be at most 365 days")
	}
	numPoints := int(duration/r.Interval) + 1
	if numPoints > 100000 {
		return fmt.Errorf("too many prediction points (%d) - reduce time range or increase interval", numPoints)
	}
	return nil
}

// Execute performs the tide prediction.
func (uc *PredictionUseCase) Execute(req PredictionRequest) (*PredictionResponse, error) {
	began := time.Now()
	resp, err := uc.execute(req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ObservePrediction(status, began)
	return resp, err
}

func (uc *PredictionUseCase) execute(req PredictionRequest) (*PredictionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	table, err := uc.loadTable(req)
	if err != nil {
		return nil, err
	}

	pred, err := domain.NewPredictorFromReport(nil, table, req.Latitude, req.SNRThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to build predictor: %w", err)
	}
	pred.ResolveSatellites = req.AnalysisMode == "full"

	var levels []domain.TideLevel
	var extrema domain.Extrema
	if len(req.Times) > 0 {
		levels, err = pred.HeightsAt(utcTimes(req.Times))
		if err != nil {
			return nil, fmt.Errorf("prediction failed: %w", err)
		}
		// Extrema detection needs a regular grid; an explicit time list
		// returns heights only.
	} else {
		n := int(req.End.Sub(req.Start)/req.Interval) + 1
		levels, err = pred.Heights(req.Start.UTC(), req.Interval.Hours(), n)
		if err != nil {
			return nil, fmt.Errorf("prediction failed: %w", err)
		}
		extrema = domain.FindExtrema(levels)
	}

	names := make([]string, len(table.Entries))
	for i, e := range table.Entries {
		names[i] = e.Name
	}

	resp := &PredictionResponse{
		Constituents: names,
		Predictions:  levelPoints(levels),
		Extrema: ExtremaResponse{
			Highs: levelPoints(extrema.Highs),
			Lows:  levelPoints(extrema.Lows),
		},
		Meta: map[string]string{
			"request_id": uuid.NewString(),
			"model":      engineVersion,
			"timezone":   "+00:00",
		},
	}
	return resp, nil
}

func (uc *PredictionUseCase) loadTable(req PredictionRequest) (*domain.TidalConstituentReport, error) {
	if req.TableName != "" {
		if uc.tables == nil {
			return nil, fmt.Errorf("no table store configured - provide an inline constituent table")
		}
		table, err := uc.tables.LoadTable(req.TableName)
		if err != nil {
			return nil, fmt.Errorf("failed to load constituent table %s: %w", req.TableName, err)
		}
		return table, nil
	}

	cat := domain.DefaultCatalog()
	table := &domain.TidalConstituentReport{}
	for _, e := range req.Constituents {
		ci, ok := cat.Lookup(e.Name)
		if !ok {
			return nil, fmt.Errorf("unknown constituent: %s", e.Name)
		}
		table.Entries = append(table.Entries, domain.ReportEntry{
			Name:      e.Name,
			FreqCPH:   cat.Constituents[ci].FreqCPH,
			Amplitude: e.Amplitude,
			PhaseDeg:  e.PhaseDeg,
			SNR:       math.Inf(1),
		})
	}
	return table, nil
}

func utcTimes(times []time.Time) []time.Time {
	out := make([]time.Time, len(times))
	for i, tt := range times {
		out[i] = tt.UTC()
	}
	return out
}

func levelPoints(levels []domain.TideLevel) []SamplePoint {
	points := make([]SamplePoint, len(levels))
	for i, l := range levels {
		points[i] = SamplePoint{
			Time:  l.Time.UTC().Format(time.RFC3339),
			Value: roundToDecimal(l.HeightM, 3),
		}
	}
	return points
}
