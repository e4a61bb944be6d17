package domain

import (
	"math"
	"math/cmplx"
	"sort"
	"time"
)

// SatelliteMode controls how nodal fine structure is handled.
type SatelliteMode int

const (
	// SatelliteAuto folds satellites into f,u corrections for records
	// shorter than the nodal period and resolves them as independent lines
	// otherwise.
	SatelliteAuto SatelliteMode = iota
	// SatelliteFolded always applies a single f,u per constituent, computed
	// at the record's central time.
	SatelliteFolded
	// SatelliteResolved always fits satellites as separate spectral lines.
	SatelliteResolved
)

// PrefilterCorrection is one point of an instrument or filter transfer
// function. Fitted coefficients are divided by the gain interpolated at
// each constituent's frequency.
type PrefilterCorrection struct {
	FreqCPH float64
	Gain    complex128
}

// Corrections weaker than 1/maxPrefilterGain are treated as intentionally
// removed constituents and left unapplied.
const maxPrefilterGain = 100.0

// AnalyzeOptions collects every knob of a harmonic analysis.
type AnalyzeOptions struct {
	Latitude  *float64
	Catalog   *Catalog // nil selects DefaultCatalog
	Select    SelectOptions
	Trend     TrendMode
	Solver    SolverMode
	Satellite SatelliteMode
	Prefilter []PrefilterCorrection
	Errors    ErrorConfig

	// SNRThreshold filters the reconstructed series: 0 keeps every
	// constituent, positive values drop those below the signal-to-noise
	// cut, negative values return the raw fit reconstruction with gap
	// positions preserved as NaN.
	SNRThreshold float64
}

// ReportEntry is one constituent row of a TidalConstituentReport. Scalar
// analyses populate Amplitude and PhaseDeg; vector analyses additionally
// carry the ellipse parameters.
type ReportEntry struct {
	Name    string
	FreqCPH float64

	Amplitude float64
	PhaseDeg  float64
	Major     float64
	Minor     float64
	IncDeg    float64

	AmpCI      float64
	PhaseCIDeg float64
	MajorCI    float64
	MinorCI    float64
	IncCIDeg   float64

	SNR      float64
	Inferred bool
}

// TidalConstituentReport is the externally visible analysis result.
type TidalConstituentReport struct {
	Center       time.Time
	Vector       bool
	Entries      []ReportEntry
	Mean         complex128
	TrendPerHour complex128
	TrendMode    TrendMode
}

// Diagnostics summarizes fit quality and the choices the analysis resolved
// automatically.
type Diagnostics struct {
	TotalSamples int
	ValidSamples int
	RecordHours  float64
	DOF          int

	TotalVar         float64
	ResidVar         float64
	ResidVarPlus     float64
	ResidVarMinus    float64
	CapturedFraction float64

	SolverUsed        SolverMode
	SatelliteResolved bool
	SatelliteLines    []SatelliteLine
}

// Analyze runs the full harmonic analysis pipeline: constituent selection,
// nodal correction, least-squares fit, error estimation and synthesis of
// the reconstructed series.
func Analyze(s *Series, opts AnalyzeOptions) (*TidalConstituentReport, *Series, *Diagnostics, error) {
	if s == nil || s.Len() == 0 {
		return nil, nil, nil, &EmptySeriesError{}
	}
	if s.IntervalHours <= 0 {
		return nil, nil, nil, invalidConfigf("sampling interval must be positive, got %.4g hours", s.IntervalHours)
	}
	cat := opts.Catalog
	if cat == nil {
		cat = DefaultCatalog()
	}

	set, err := SelectConstituents(cat, s.RecordHours(), opts.Select)
	if err != nil {
		return nil, nil, nil, err
	}

	center := s.CentralTime()
	nodal := ComputeNodal(cat, center, opts.Latitude)

	resolved := opts.Satellite == SatelliteResolved ||
		(opts.Satellite == SatelliteAuto && s.SpansNodalPeriod())
	var satLines []SatelliteLine
	if resolved {
		satLines = SatelliteLines(cat, center, opts.Latitude, set.Indices)
		// Main lines carry no folded correction in this mode.
		nodal = append([]NodalFactors(nil), nodal...)
		for i := range nodal {
			nodal[i].F = 1
			nodal[i].U = 0
		}
	}

	fit, err := FitHarmonic(cat, s, set, nodal, satLines, FitConfig{Trend: opts.Trend, Solver: opts.Solver})
	if err != nil {
		return nil, nil, nil, err
	}
	applyPrefilter(fit, opts.Prefilter)

	errs, err := EstimateErrors(s, fit, opts.Errors)
	if err != nil {
		return nil, nil, nil, err
	}

	report := buildReport(fit, errs, center)
	recon, err := reconstruct(s, fit, errs, opts)
	if err != nil {
		return nil, nil, nil, err
	}

	diag := &Diagnostics{
		TotalSamples:      s.Len(),
		ValidSamples:      s.ValidCount(),
		RecordHours:       s.RecordHours(),
		DOF:               fit.DOF,
		TotalVar:          fit.TotalVar,
		ResidVar:          fit.ResidVar,
		ResidVarPlus:      fit.ResidVarPlus,
		ResidVarMinus:     fit.ResidVarMinus,
		SolverUsed:        fit.solver.mode,
		SatelliteResolved: resolved,
		SatelliteLines:    satLines,
	}
	if fit.TotalVar > 0 {
		diag.CapturedFraction = 1 - fit.ResidVar/fit.TotalVar
	}
	return report, recon, diag, nil
}

// applyPrefilter divides fitted coefficients by the transfer-function gain
// interpolated at each constituent frequency.
func applyPrefilter(fit *FitResult, corr []PrefilterCorrection) {
	if len(corr) == 0 {
		return
	}
	pairs := append([]PrefilterCorrection(nil), corr...)
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].FreqCPH < pairs[j].FreqCPH })

	fix := func(c *Coef, freq float64) {
		g := gainAt(pairs, freq)
		mag := cmplx.Abs(g)
		if mag == 0 || 1/mag > maxPrefilterGain {
			return
		}
		c.Ap /= g
		c.Am /= cmplx.Conj(g)
	}
	for pos := range fit.Coefs {
		fix(&fit.Coefs[pos], fit.Catalog.Constituents[fit.Coefs[pos].Index].FreqCPH)
	}
	for k := range fit.InferredCoefs {
		fix(&fit.InferredCoefs[k], fit.Catalog.Constituents[fit.InferredCoefs[k].Index].FreqCPH)
	}
	for k := range fit.SatCoefs {
		fix(&fit.SatCoefs[k], fit.SatLines[k].FreqCPH)
	}
}

// gainAt linearly interpolates the transfer function at freq, clamping to
// the endpoints outside the tabulated range.
func gainAt(pairs []PrefilterCorrection, freq float64) complex128 {
	if freq <= pairs[0].FreqCPH {
		return pairs[0].Gain
	}
	last := pairs[len(pairs)-1]
	if freq >= last.FreqCPH {
		return last.Gain
	}
	i := sort.Search(len(pairs), func(i int) bool { return pairs[i].FreqCPH >= freq })
	lo, hi := pairs[i-1], pairs[i]
	w := (freq - lo.FreqCPH) / (hi.FreqCPH - lo.FreqCPH)
	return lo.Gain + complex(w, 0)*(hi.Gain-lo.Gain)
}

func buildReport(fit *FitResult, errs *ErrorEstimates, center time.Time) *TidalConstituentReport {
	rep := &TidalConstituentReport{
		Center:       center,
		Vector:       fit.Vector,
		Mean:         fit.Mean,
		TrendPerHour: fit.TrendPerHour,
		TrendMode:    fit.TrendMode,
	}
	add := func(c Coef, ce ConstituentErrors, inferred bool) {
		e := ReportEntry{
			Name:       fit.Catalog.Constituents[c.Index].Name,
			FreqCPH:    fit.Catalog.Constituents[c.Index].FreqCPH,
			AmpCI:      ce.AmpCI,
			PhaseCIDeg: ce.PhaseCIDeg,
			SNR:        ce.SNR,
			Inferred:   inferred,
		}
		if fit.Vector {
			el := ToEllipse(c.Ap, c.Am)
			e.Major, e.Minor = el.Major, el.Minor
			e.IncDeg, e.PhaseDeg = el.IncDeg, el.PhaseDeg
			e.Amplitude = el.Major
			e.MajorCI, e.MinorCI, e.IncCIDeg = ce.MajorCI, ce.MinorCI, ce.IncCIDeg
		} else {
			e.Amplitude, e.PhaseDeg = ScalarParams(c.Ap)
		}
		rep.Entries = append(rep.Entries, e)
	}
	for pos, c := range fit.Coefs {
		add(c, errs.Selected[pos], false)
	}
	for k, c := range fit.InferredCoefs {
		add(c, errs.Inferred[k], true)
	}
	sort.Slice(rep.Entries, func(i, j int) bool { return rep.Entries[i].FreqCPH < rep.Entries[j].FreqCPH })
	return rep
}

func reconstruct(s *Series, fit *FitResult, errs *ErrorEstimates, opts AnalyzeOptions) (*Series, error) {
	if opts.SNRThreshold < 0 {
		out := &Series{Start: s.Start, IntervalHours: s.IntervalHours, Vector: s.Vector}
		out.Values = make([]complex128, s.Len())
		for j := range out.Values {
			if IsMissing(s.Values[j]) {
				out.Values[j] = complex(math.NaN(), math.NaN())
			} else {
				out.Values[j] = fit.Fitted[j]
			}
		}
		return out, nil
	}
	pred := &Predictor{
		Fit:          fit,
		Latitude:     opts.Latitude,
		Errors:       errs,
		SNRThreshold: opts.SNRThreshold,
	}
	return pred.Reconstruct(s.Start, s.IntervalHours, s.Len())
}
