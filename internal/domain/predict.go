package domain

import (
	"math"
	"math/cmplx"
	"sort"
	"time"
)

// TideLevel represents a single predicted value at a specific time.
type TideLevel struct {
	Time    time.Time
	HeightM float64
}

// Extrema represents high and low tide events.
type Extrema struct {
	Highs []TideLevel
	Lows  []TideLevel
}

// Predictor synthesizes series from a completed fit. Nodal corrections are
// recomputed at the center of each requested span, so predictions stay valid
// far from the analysis window.
type Predictor struct {
	Fit      *FitResult
	Latitude *float64

	// Errors enables signal-to-noise screening. With a nil Errors or a
	// non-positive threshold every fitted constituent contributes.
	Errors       *ErrorEstimates
	SNRThreshold float64

	// ResolveSatellites synthesizes every constituent's satellite spectrum
	// as explicit lines scaled by the catalog's equilibrium ratios instead
	// of folding it into f and u. Fits that already carry resolved
	// satellite coefficients use those and ignore this flag.
	ResolveSatellites bool
}

// NewPredictorFromReport rebuilds a Predictor from a previously produced
// constituent table, for prediction runs decoupled from the original fit.
// Entries with names missing from the catalog are rejected.
func NewPredictorFromReport(cat *Catalog, rep *TidalConstituentReport, lat *float64, snrThreshold float64) (*Predictor, error) {
	if cat == nil {
		cat = DefaultCatalog()
	}
	if rep == nil || len(rep.Entries) == 0 {
		return nil, invalidConfigf("constituent table is empty")
	}
	fit := &FitResult{
		Catalog:      cat,
		Vector:       rep.Vector,
		Center:       rep.Center,
		Mean:         rep.Mean,
		TrendPerHour: rep.TrendPerHour,
		TrendMode:    rep.TrendMode,
	}
	errs := &ErrorEstimates{Strategy: ErrorLinear}
	for _, e := range rep.Entries {
		ci, ok := cat.Lookup(e.Name)
		if !ok {
			return nil, invalidConfigf("unknown constituent %q in table", e.Name)
		}
		var ap, am complex128
		if rep.Vector {
			ap = cmplx.Rect((e.Major+e.Minor)/2, Deg2Rad(e.IncDeg-e.PhaseDeg))
			am = cmplx.Rect((e.Major-e.Minor)/2, Deg2Rad(e.IncDeg+e.PhaseDeg))
		} else {
			ap = cmplx.Rect(e.Amplitude/2, -Deg2Rad(e.PhaseDeg))
			am = cmplx.Conj(ap)
		}
		fit.Coefs = append(fit.Coefs, Coef{Index: ci, Ap: ap, Am: am})
		errs.Selected = append(errs.Selected, ConstituentErrors{
			AmpCI:      e.AmpCI,
			PhaseCIDeg: e.PhaseCIDeg,
			MajorCI:    e.MajorCI,
			MinorCI:    e.MinorCI,
			IncCIDeg:   e.IncCIDeg,
			SNR:        e.SNR,
		})
	}
	return &Predictor{Fit: fit, Latitude: lat, Errors: errs, SNRThreshold: snrThreshold}, nil
}

// predLine is one synthesized spectral line with its coefficients resolved
// against the prediction-epoch nodal state.
type predLine struct {
	freq   float64 // cycles per hour
	vu     float64 // V0+u in radians at the span center
	f      float64
	ap, am complex128
}

// Reconstruct evaluates the fitted model on a regular grid of n samples.
func (p *Predictor) Reconstruct(start time.Time, intervalHours float64, n int) (*Series, error) {
	if p.Fit == nil {
		return nil, invalidConfigf("predictor requires a completed fit")
	}
	if intervalHours <= 0 {
		return nil, invalidConfigf("prediction interval must be positive, got %.4g hours", intervalHours)
	}
	if n <= 0 {
		return nil, invalidConfigf("prediction length must be positive, got %d", n)
	}

	fit := p.Fit
	spanHours := float64(n-1) * intervalHours
	center := start.Add(time.Duration(spanHours / 2 * float64(time.Hour)))
	lines, err := p.lines(center)
	if err != nil {
		return nil, err
	}

	// Secular terms stay referenced to the analysis center.
	trendBase := center.Sub(fit.Center).Hours() - spanHours/2

	out := &Series{Start: start, IntervalHours: intervalHours, Vector: fit.Vector}
	out.Values = make([]complex128, n)
	for j := range out.Values {
		t := float64(j)*intervalHours - spanHours/2
		v := fit.Mean + fit.TrendPerHour*complex(trendBase+float64(j)*intervalHours, 0)
		for _, ln := range lines {
			w := cmplx.Rect(ln.f, 2*math.Pi*ln.freq*t+ln.vu)
			v += ln.ap*w + ln.am*cmplx.Conj(w)
		}
		if !fit.Vector {
			v = complex(real(v), 0)
		}
		out.Values[j] = v
	}
	return out, nil
}

// AtTimes evaluates the fitted model at arbitrary target times, which need
// not be ordered or uniformly spaced. The nodal reference is the center of
// the overall target span.
func (p *Predictor) AtTimes(times []time.Time) ([]complex128, error) {
	if p.Fit == nil {
		return nil, invalidConfigf("predictor requires a completed fit")
	}
	if len(times) == 0 {
		return nil, invalidConfigf("prediction requires at least one target time")
	}

	lo, hi := times[0], times[0]
	for _, tt := range times[1:] {
		if tt.Before(lo) {
			lo = tt
		}
		if tt.After(hi) {
			hi = tt
		}
	}
	center := lo.Add(hi.Sub(lo) / 2)
	lines, err := p.lines(center)
	if err != nil {
		return nil, err
	}

	fit := p.Fit
	out := make([]complex128, len(times))
	for j, tt := range times {
		t := tt.Sub(center).Hours()
		v := fit.Mean + fit.TrendPerHour*complex(tt.Sub(fit.Center).Hours(), 0)
		for _, ln := range lines {
			w := cmplx.Rect(ln.f, 2*math.Pi*ln.freq*t+ln.vu)
			v += ln.ap*w + ln.am*cmplx.Conj(w)
		}
		if !fit.Vector {
			v = complex(real(v), 0)
		}
		out[j] = v
	}
	return out, nil
}

// HeightsAt predicts scalar tide heights at arbitrary target times.
func (p *Predictor) HeightsAt(times []time.Time) ([]TideLevel, error) {
	if p.Fit != nil && p.Fit.Vector {
		return nil, invalidConfigf("height prediction requires a scalar fit")
	}
	vals, err := p.AtTimes(times)
	if err != nil {
		return nil, err
	}
	out := make([]TideLevel, len(times))
	for j, v := range vals {
		out[j] = TideLevel{Time: times[j], HeightM: real(v)}
	}
	return out, nil
}

// lines resolves the constituents that survive SNR screening into spectral
// lines with nodal state recomputed at the given instant.
func (p *Predictor) lines(center time.Time) ([]predLine, error) {
	fit := p.Fit
	nodal := ComputeNodal(fit.Catalog, center, p.Latitude)
	if len(fit.SatLines) > 0 || p.ResolveSatellites {
		// Satellite-resolved synthesis carries no folded correction on the
		// main lines; the satellites appear as explicit lines instead.
		nodal = append([]NodalFactors(nil), nodal...)
		for i := range nodal {
			nodal[i].F = 1
			nodal[i].U = 0
		}
	}

	mkLine := func(c Coef) predLine {
		nf := nodal[c.Index]
		f := nf.F
		if f == 0 {
			f = 1
		}
		return predLine{
			freq: fit.Catalog.Constituents[c.Index].FreqCPH,
			vu:   Deg2Rad(nf.V0 + nf.U),
			f:    f,
			ap:   c.Ap,
			am:   c.Am,
		}
	}

	lines := make([]predLine, 0, len(fit.Coefs)+len(fit.InferredCoefs)+len(fit.SatCoefs))
	kept := make(map[int]Coef)
	for pos, c := range fit.Coefs {
		if !p.keep(p.Errors, pos, false) {
			continue
		}
		kept[c.Index] = c
		lines = append(lines, mkLine(c))
	}
	for k, c := range fit.InferredCoefs {
		if !p.keep(p.Errors, k, true) {
			continue
		}
		kept[c.Index] = c
		lines = append(lines, mkLine(c))
	}

	if len(fit.SatLines) == 0 && p.ResolveSatellites {
		// Satellite amplitudes follow the main coefficients through the
		// catalog's equilibrium ratios, the same relation the folded f and
		// u corrections summarize at a single instant.
		mains := make([]int, 0, len(kept))
		for ci := range kept {
			mains = append(mains, ci)
		}
		sort.Ints(mains)
		for _, ln := range SatelliteLines(fit.Catalog, center, p.Latitude, mains) {
			c := kept[ln.Main]
			lines = append(lines, predLine{
				freq: ln.FreqCPH,
				vu:   Deg2Rad(ln.V0),
				f:    1,
				ap:   c.Ap * complex(ln.Amp, 0),
				am:   c.Am * complex(ln.Amp, 0),
			})
		}
	}

	if len(fit.SatLines) > 0 {
		mains := make([]int, 0, len(fit.SatLines))
		seen := make(map[int]bool)
		for _, ln := range fit.SatLines {
			if !seen[ln.Main] {
				seen[ln.Main] = true
				mains = append(mains, ln.Main)
			}
		}
		fresh := SatelliteLines(fit.Catalog, center, p.Latitude, mains)
		if len(fresh) != len(fit.SatCoefs) {
			return nil, invalidConfigf("satellite line set changed between fit and prediction")
		}
		for k, ln := range fresh {
			lines = append(lines, predLine{
				freq: ln.FreqCPH,
				vu:   Deg2Rad(ln.V0),
				f:    1,
				ap:   fit.SatCoefs[k].Ap,
				am:   fit.SatCoefs[k].Am,
			})
		}
	}
	return lines, nil
}

func (p *Predictor) keep(errs *ErrorEstimates, idx int, inferred bool) bool {
	if p.SNRThreshold <= 0 || errs == nil {
		return true
	}
	var ce ConstituentErrors
	if inferred {
		if idx >= len(errs.Inferred) {
			return true
		}
		ce = errs.Inferred[idx]
	} else {
		if idx >= len(errs.Selected) {
			return true
		}
		ce = errs.Selected[idx]
	}
	return ce.SNR >= p.SNRThreshold
}

// Heights predicts scalar tide heights on a regular grid.
func (p *Predictor) Heights(start time.Time, intervalHours float64, n int) ([]TideLevel, error) {
	if p.Fit != nil && p.Fit.Vector {
		return nil, invalidConfigf("height prediction requires a scalar fit")
	}
	s, err := p.Reconstruct(start, intervalHours, n)
	if err != nil {
		return nil, err
	}
	out := make([]TideLevel, n)
	for j, v := range s.Values {
		out[j] = TideLevel{Time: start.Add(time.Duration(float64(j) * intervalHours * float64(time.Hour))), HeightM: real(v)}
	}
	return out, nil
}

// FindExtrema identifies high and low tides from a predicted series.
// Discrete peaks are refined by parabolic interpolation over their three
// surrounding samples.
func FindExtrema(levels []TideLevel) Extrema {
	ex := Extrema{Highs: []TideLevel{}, Lows: []TideLevel{}}
	for i := 1; i < len(levels)-1; i++ {
		prev, curr, next := levels[i-1].HeightM, levels[i].HeightM, levels[i+1].HeightM
		switch {
		case curr > prev && curr > next:
			ex.Highs = append(ex.Highs, refineExtremum(levels[i-1], levels[i], levels[i+1]))
		case curr < prev && curr < next:
			ex.Lows = append(ex.Lows, refineExtremum(levels[i-1], levels[i], levels[i+1]))
		}
	}
	sort.Slice(ex.Highs, func(i, j int) bool { return ex.Highs[i].Time.Before(ex.Highs[j].Time) })
	sort.Slice(ex.Lows, func(i, j int) bool { return ex.Lows[i].Time.Before(ex.Lows[j].Time) })
	return ex
}

// refineExtremum fits a parabola through three equally spaced samples and
// returns its vertex. Falls back to the discrete peak when the spacing is
// uneven or the curvature vanishes.
func refineExtremum(before, peak, after TideLevel) TideLevel {
	dt1 := peak.Time.Sub(before.Time).Hours()
	dt2 := after.Time.Sub(peak.Time).Hours()
	if math.Abs(dt1-dt2) > 1e-6 {
		return peak
	}
	h0, h1, h2 := before.HeightM, peak.HeightM, after.HeightM
	a := (h2 - 2*h1 + h0) / (2 * dt1 * dt1)
	b := (h2 - h0) / (2 * dt1)
	if math.Abs(a) < 1e-10 {
		return peak
	}
	dv := -b / (2 * a)
	if math.Abs(dv) > dt1 {
		return peak
	}
	return TideLevel{
		Time:    peak.Time.Add(time.Duration(dv * float64(time.Hour))),
		HeightM: h1 + b*dv + a*dv*dv,
	}
}
