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

// engineVersion identifies the analysis engine in response metadata.
const engineVersion = "harmonic_v1"

// AnalyzeRequest encapsulates a harmonic analysis request. Observations
// come either inline (Heights for scalar series, U and V for vector
// series) or by record name resolved through the configured store.
type AnalyzeRequest struct {
	Start         time.Time
	IntervalHours float64

	Heights []float64
	U, V    []float64

	RecordName string

	Latitude *float64

	// Selection options.
	Rayleigh     float64
	Constituents []string
	Shallow      []string
	Inferences   []InferenceRule

	Trend  string // "mean" (default) or "linear"
	Solver string // "auto" (default), "direct" or "normal"

	ErrorMethod string // "linear" (default), "wboot" or "cboot"
	Trials      int
	Seed        int64

	SNRThreshold          float64
	IncludeReconstruction bool
}

// InferenceRule requests that one unresolvable constituent be tied to a
// reference with a fixed amplitude ratio and phase offset.
type InferenceRule struct {
	Inferred         string  `json:"inferred"`
	Reference        string  `json:"reference"`
	AmpRatio         float64 `json:"amp_ratio"`
	PhaseLagDeg      float64 `json:"phase_lag_deg"`
	AmpRatioMinus    float64 `json:"amp_ratio_minus,omitempty"`
	PhaseLagMinusDeg float64 `json:"phase_lag_minus_deg,omitempty"`
}

// ConstituentRow is one constituent of an analysis response.
type ConstituentRow struct {
	Name    string  `json:"name"`
	FreqCPH float64 `json:"frequency_cph"`

	Amplitude float64 `json:"amplitude"`
	PhaseDeg  float64 `json:"phase_deg"`

	Major  float64 `json:"major,omitempty"`
	Minor  float64 `json:"minor,omitempty"`
	IncDeg float64 `json:"inclination_deg,omitempty"`

	AmpCI      float64 `json:"amplitude_ci"`
	PhaseCIDeg float64 `json:"phase_ci_deg"`
	MajorCI    float64 `json:"major_ci,omitempty"`
	MinorCI    float64 `json:"minor_ci,omitempty"`
	IncCIDeg   float64 `json:"inclination_ci_deg,omitempty"`

	SNR      float64 `json:"snr"`
	Inferred bool    `json:"inferred,omitempty"`
}

// AnalyzeResponse contains the analysis results.
type AnalyzeResponse struct {
	Constituents []ConstituentRow `json:"constituents"`
	Mean         []float64        `json:"mean"`
	TrendPerHour []float64        `json:"trend_per_hour,omitempty"`

	TotalVariance    float64 `json:"total_variance"`
	ResidualVariance float64 `json:"residual_variance"`
	CapturedFraction float64 `json:"captured_fraction"`
	ValidSamples     int     `json:"valid_samples"`
	TotalSamples     int     `json:"total_samples"`
	DOF              int     `json:"degrees_of_freedom"`

	SatelliteResolved bool `json:"satellite_resolved"`

	Reconstruction []SamplePoint `json:"reconstruction,omitempty"`

	Meta map[string]string `json:"meta"`
}

// SamplePoint is one value of a reconstructed or predicted series.
type SamplePoint struct {
	Time    string  `json:"time"`
	Value   float64 `json:"value"`
	ValueV  float64 `json:"value_v,omitempty"`
	Missing bool    `json:"missing,omitempty"`
}

// AnalysisUseCase orchestrates harmonic analysis.
type AnalysisUseCase struct {
	loader store.SeriesLoader
}

// NewAnalysisUseCase creates a new analysis use case. The loader may be
// nil when only inline observations are served.
func NewAnalysisUseCase(loader store.SeriesLoader) *AnalysisUseCase {
	return &AnalysisUseCase{loader: loader}
}

// Validate checks if the request is valid.
func (r *AnalyzeRequest) Validate() error {
	hasHeights := len(r.Heights) > 0
	hasUV := len(r.U) > 0 || len(r.V) > 0
	hasRecord := r.RecordName != ""

	sources := 0
	for _, ok := range []bool{hasHeights, hasUV, hasRecord} {
		if ok {
			sources++
		}
	}
	if sources == 0 {
		return fmt.Errorf("either heights, u/v or record_name must be provided")
	}
	if sources > 1 {
		return fmt.Errorf("heights, u/v and record_name are mutually exclusive")
	}
	if hasUV && len(r.U) != len(r.V) {
		return fmt.Errorf("u and v must have equal length, got %d and %d", len(r.U), len(r.V))
	}
	if !hasRecord {
		if r.IntervalHours <= 0 {
			return fmt.Errorf("interval_hours must be positive")
		}
		if r.Start.IsZero() {
			return fmt.Errorf("start time is required with inline observations")
		}
	}

	if r.Latitude != nil && (*r.Latitude < -90 || *r.Latitude > 90) {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if r.Rayleigh < 0 {
		return fmt.Errorf("rayleigh criterion must be non-negative")
	}

	switch r.Trend {
	case "", "mean", "linear":
	default:
		return fmt.Errorf("unknown trend mode %q (expected mean or linear)", r.Trend)
	}
	switch r.Solver {
	case "", "auto", "direct", "normal":
	default:
		return fmt.Errorf("unknown solver mode %q (expected auto, direct or normal)", r.Solver)
	}
	switch r.ErrorMethod {
	case "", "linear", "wboot", "cboot":
	default:
		return fmt.Errorf("unknown error method %q (expected linear, wboot or cboot)", r.ErrorMethod)
	}
	if r.Trials < 0 {
		return fmt.Errorf("trials must be non-negative")
	}
	if r.Trials > 10000 {
		return fmt.Errorf("too many bootstrap trials (%d) - maximum is 10000", r.Trials)
	}
	return nil
}

// Execute performs the harmonic analysis.
func (uc *AnalysisUseCase) Execute(req AnalyzeRequest) (*AnalyzeResponse, error) {
	began := time.Now()
	resp, err := uc.execute(req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	method := req.ErrorMethod
	if method == "" {
		method = "linear"
	}
	metrics.ObserveAnalysis(status, method, began)
	return resp, err
}

func (uc *AnalysisUseCase) execute(req AnalyzeRequest) (*AnalyzeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	series, err := uc.buildSeries(req)
	if err != nil {
		return nil, err
	}

	opts := domain.AnalyzeOptions{
		Latitude: req.Latitude,
		Select: domain.SelectOptions{
			RayleighCriterion: req.Rayleigh,
			Constituents:      req.Constituents,
			ShallowNames:      req.Shallow,
		},
		Trend:        trendMode(req.Trend),
		Solver:       solverMode(req.Solver),
		SNRThreshold: req.SNRThreshold,
		Errors: domain.ErrorConfig{
			Strategy: domain.ErrorStrategy(defaultString(req.ErrorMethod, "linear")),
			Trials:   req.Trials,
			Seed:     req.Seed,
		},
	}
	for _, rule := range req.Inferences {
		opts.Select.Inferences = append(opts.Select.Inferences, domain.InferenceRule{
			Inferred:         rule.Inferred,
			Reference:        rule.Reference,
			AmpRatio:         rule.AmpRatio,
			PhaseLagDeg:      rule.PhaseLagDeg,
			AmpRatioMinus:    rule.AmpRatioMinus,
			PhaseLagMinusDeg: rule.PhaseLagMinusDeg,
		})
	}

	report, recon, diag, err := domain.Analyze(series, opts)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	resp := &AnalyzeResponse{
		Constituents:      make([]ConstituentRow, len(report.Entries)),
		Mean:              complexParts(report.Mean, report.Vector),
		TotalVariance:     diag.TotalVar,
		ResidualVariance:  diag.ResidVar,
		CapturedFraction:  diag.CapturedFraction,
		ValidSamples:      diag.ValidSamples,
		TotalSamples:      diag.TotalSamples,
		DOF:               diag.DOF,
		SatelliteResolved: diag.SatelliteResolved,
		Meta: map[string]string{
			"request_id": uuid.NewString(),
			"model":      engineVersion,
		},
	}
	if report.TrendMode == domain.TrendLinear {
		resp.TrendPerHour = complexParts(report.TrendPerHour, report.Vector)
	}
	for i, e := range report.Entries {
		resp.Constituents[i] = ConstituentRow{
			Name:       e.Name,
			FreqCPH:    e.FreqCPH,
			Amplitude:  e.Amplitude,
			PhaseDeg:   e.PhaseDeg,
			Major:      e.Major,
			Minor:      e.Minor,
			IncDeg:     e.IncDeg,
			AmpCI:      e.AmpCI,
			PhaseCIDeg: e.PhaseCIDeg,
			MajorCI:    e.MajorCI,
			MinorCI:    e.MinorCI,
			IncCIDeg:   e.IncCIDeg,
			SNR:        e.SNR,
			Inferred:   e.Inferred,
		}
	}
	if req.IncludeReconstruction {
		resp.Reconstruction = samplePoints(recon)
	}
	return resp, nil
}

func (uc *AnalysisUseCase) buildSeries(req AnalyzeRequest) (*domain.Series, error) {
	if req.RecordName != "" {
		if uc.loader == nil {
			return nil, fmt.Errorf("no series store configured - provide inline observations")
		}
		series, err := uc.loader.LoadSeries(req.RecordName)
		if err != nil {
			return nil, fmt.Errorf("failed to load record %s: %w", req.RecordName, err)
		}
		return series, nil
	}

	series := &domain.Series{
		Start:         req.Start.UTC(),
		IntervalHours: req.IntervalHours,
	}
	if len(req.Heights) > 0 {
		series.Values = make([]complex128, len(req.Heights))
		for i, h := range req.Heights {
			series.Values[i] = complex(h, 0)
		}
	} else {
		series.Vector = true
		series.Values = make([]complex128, len(req.U))
		for i := range req.U {
			if math.IsNaN(req.U[i]) || math.IsNaN(req.V[i]) {
				series.Values[i] = complex(math.NaN(), math.NaN())
			} else {
				series.Values[i] = complex(req.U[i], req.V[i])
			}
		}
	}
	return series, nil
}

func samplePoints(s *domain.Series) []SamplePoint {
	points := make([]SamplePoint, s.Len())
	for i, v := range s.Values {
		t := s.Start.Add(time.Duration(float64(i) * s.IntervalHours * float64(time.Hour)))
		p := SamplePoint{Time: t.UTC().Format(time.RFC3339)}
		if domain.IsMissing(v) {
			p.Missing = true
		} else {
			p.Value = roundToDecimal(real(v), 6)
			if s.Vector {
				p.ValueV = roundToDecimal(imag(v), 6)
			}
		}
		points[i] = p
	}
	return points
}

func trendMode(s string) domain.TrendMode {
	if s == "linear" {
		return domain.TrendLinear
	}
	return domain.TrendMean
}

func solverMode(s string) domain.SolverMode {
	switch s {
	case "direct":
		return domain.SolverDirect
	case "normal":
		return domain.SolverNormal
	default:
		return domain.SolverAuto
	}
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func complexParts(v complex128, vector bool) []float64 {
	if vector {
		return []float64{real(v), imag(v)}
	}
	return []float64{real(v)}
}

// roundToDecimal rounds to the given number of decimal places.
func roundToDecimal(val float64, precision int) float64 {
	multiplier := 1.0
	for i := 0; i < precision; i++ {
		multiplier *= 10
	}
	return math.Round(val*multiplier) / multiplier
}
