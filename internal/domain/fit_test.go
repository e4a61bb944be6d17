package domain

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"
	"time"
)

var fitStart = time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)

// syntheticScalar builds an hourly scalar series from cosine components
// given as (frequency cph, amplitude, phase deg) triples plus an offset.
func syntheticScalar(n int, offset float64, comps ...[3]float64) *Series {
	s := &Series{Start: fitStart, IntervalHours: 1, Values: make([]complex128, n)}
	for j := 0; j < n; j++ {
		t := float64(j)
		v := offset
		for _, c := range comps {
			v += c[1] * math.Cos(2*math.Pi*c[0]*t-Deg2Rad(c[2]))
		}
		s.Values[j] = complex(v, 0)
	}
	return s
}

func fitSeries(t *testing.T, s *Series, opts SelectOptions, cfg FitConfig) *FitResult {
	t.Helper()
	cat := DefaultCatalog()
	set, err := SelectConstituents(cat, s.RecordHours(), opts)
	if err != nil {
		t.Fatal(err)
	}
	nodal := ComputeNodal(cat, s.CentralTime(), nil)
	fit, err := FitHarmonic(cat, s, set, nodal, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return fit
}

func coefByName(t *testing.T, fit *FitResult, name string) Coef {
	t.Helper()
	for _, c := range fit.Coefs {
		if fit.Catalog.Constituents[c.Index].Name == name {
			return c
		}
	}
	t.Fatalf("constituent %s not in fit", name)
	return Coef{}
}

func TestFitRecoversPureM2WithOffset(t *testing.T) {
	cat := DefaultCatalog()
	fM2 := cat.Constituents[cat.MustLookup("M2")].FreqCPH

	// One year, hourly: 2.0*cos(2*pi*f*t) + 5.0, no noise.
	s := syntheticScalar(365*24+1, 5.0, [3]float64{fM2, 2.0, 0})
	fit := fitSeries(t, s, SelectOptions{}, FitConfig{Trend: TrendMean})

	if math.Abs(real(fit.Mean)-5.0) > 1e-6 {
		t.Errorf("mean = %.9f, want 5.0", real(fit.Mean))
	}
	amp, _ := ScalarParams(coefByName(t, fit, "M2").Ap)
	if math.Abs(amp-2.0) > 1e-6 {
		t.Errorf("M2 amplitude = %.9f, want 2.0", amp)
	}
	if fit.ResidVar > 1e-12 {
		t.Errorf("residual variance = %v for a noise-free series", fit.ResidVar)
	}
}

func TestFitRecoversMultipleConstituents(t *testing.T) {
	cat := DefaultCatalog()
	fM2 := cat.Constituents[cat.MustLookup("M2")].FreqCPH
	fS2 := cat.Constituents[cat.MustLookup("S2")].FreqCPH
	fK1 := cat.Constituents[cat.MustLookup("K1")].FreqCPH

	s := syntheticScalar(180*24, 1.5,
		[3]float64{fM2, 1.0, 40},
		[3]float64{fS2, 0.5, 110},
		[3]float64{fK1, 0.25, 300},
	)
	fit := fitSeries(t, s, SelectOptions{}, FitConfig{Trend: TrendMean})

	cases := []struct {
		name string
		amp  float64
	}{
		{"M2", 1.0},
		{"S2", 0.5},
		{"K1", 0.25},
	}
	for _, c := range cases {
		amp, _ := ScalarParams(coefByName(t, fit, c.name).Ap)
		if math.Abs(amp-c.amp) > 1e-6 {
			t.Errorf("%s amplitude = %.9f, want %v", c.name, amp, c.amp)
		}
	}
}

func TestFitWithMissingData(t *testing.T) {
	cat := DefaultCatalog()
	fM2 := cat.Constituents[cat.MustLookup("M2")].FreqCPH

	s := syntheticScalar(90*24, 3.0, [3]float64{fM2, 1.25, 75})
	// Punch a contiguous gap and scattered holes.
	for j := 200; j < 400; j++ {
		s.Values[j] = complex(math.NaN(), 0)
	}
	for j := 17; j < s.Len(); j += 97 {
		s.Values[j] = complex(math.NaN(), 0)
	}

	fit := fitSeries(t, s, SelectOptions{}, FitConfig{Trend: TrendMean})
	amp, _ := ScalarParams(coefByName(t, fit, "M2").Ap)
	if math.Abs(amp-1.25) > 1e-6 {
		t.Errorf("M2 amplitude with gaps = %.9f, want 1.25", amp)
	}
	// Gap positions stay NaN in the residual series.
	if !IsMissing(fit.Residuals[250]) {
		t.Error("residual at a gap position should stay NaN")
	}
	if IsMissing(fit.Fitted[250]) {
		t.Error("fitted value at a gap position should be synthesized")
	}
}

func TestFitLinearTrend(t *testing.T) {
	cat := DefaultCatalog()
	fM2 := cat.Constituents[cat.MustLookup("M2")].FreqCPH

	s := syntheticScalar(120*24, 2.0, [3]float64{fM2, 0.8, 20})
	// Superimpose a slow linear rise of 1e-4 per hour.
	half := s.RecordHours() / 2
	for j := range s.Values {
		s.Values[j] += complex(1e-4*(float64(j)-half), 0)
	}

	fit := fitSeries(t, s, SelectOptions{}, FitConfig{Trend: TrendLinear})
	if math.Abs(real(fit.TrendPerHour)-1e-4) > 1e-9 {
		t.Errorf("trend = %v per hour, want 1e-4", real(fit.TrendPerHour))
	}
	if math.Abs(real(fit.Mean)-2.0) > 1e-6 {
		t.Errorf("mean = %v, want 2.0", real(fit.Mean))
	}
}

func TestFitSolverModesAgree(t *testing.T) {
	cat := DefaultCatalog()
	fM2 := cat.Constituents[cat.MustLookup("M2")].FreqCPH
	fK1 := cat.Constituents[cat.MustLookup("K1")].FreqCPH

	s := syntheticScalar(60*24, 0.5, [3]float64{fM2, 1.0, 10}, [3]float64{fK1, 0.3, 200})

	direct := fitSeries(t, s, SelectOptions{}, FitConfig{Solver: SolverDirect})
	normal := fitSeries(t, s, SelectOptions{}, FitConfig{Solver: SolverNormal})

	for pos := range direct.Coefs {
		d := direct.Coefs[pos].Ap
		n := normal.Coefs[pos].Ap
		if cmplx.Abs(d-n) > 1e-8 {
			t.Errorf("constituent %s: direct %v vs normal %v",
				direct.Catalog.Constituents[direct.Coefs[pos].Index].Name, d, n)
		}
	}
}

func TestFitVectorSeriesEllipse(t *testing.T) {
	cat := DefaultCatalog()
	fM2 := cat.Constituents[cat.MustLookup("M2")].FreqCPH

	// Rotary components with known magnitudes.
	apWant := cmplx.Rect(0.9, Deg2Rad(25))
	amWant := cmplx.Rect(0.4, Deg2Rad(-65))

	s := &Series{Start: fitStart, IntervalHours: 1, Vector: true, Values: make([]complex128, 60*24)}
	for j := range s.Values {
		th := 2 * math.Pi * fM2 * float64(j)
		e := cmplx.Rect(1, th)
		s.Values[j] = complex(0.1, -0.2) + apWant*e + amWant*cmplx.Conj(e)
	}

	set, err := SelectConstituents(cat, s.RecordHours(), SelectOptions{Constituents: []string{"M2", "S2", "K1", "O1"}})
	if err != nil {
		t.Fatal(err)
	}
	nodal := ComputeNodal(cat, s.CentralTime(), nil)
	fit, err := FitHarmonic(cat, s, set, nodal, nil, FitConfig{})
	if err != nil {
		t.Fatal(err)
	}

	c := coefByName(t, fit, "M2")
	el := ToEllipse(c.Ap, c.Am)
	if math.Abs(el.Major-1.3) > 1e-6 {
		t.Errorf("major axis = %v, want 1.3", el.Major)
	}
	if math.Abs(el.Minor-0.5) > 1e-6 {
		t.Errorf("minor axis = %v, want 0.5", el.Minor)
	}
	if cmplx.Abs(fit.Mean-complex(0.1, -0.2)) > 1e-6 {
		t.Errorf("vector mean = %v, want (0.1-0.2i)", fit.Mean)
	}
}

func TestFitInsufficientData(t *testing.T) {
	cat := DefaultCatalog()
	s := syntheticScalar(400, 0)
	// Leave only a handful of valid samples.
	for j := 10; j < s.Len(); j++ {
		s.Values[j] = complex(math.NaN(), 0)
	}
	set, err := SelectConstituents(cat, s.RecordHours(), SelectOptions{})
	if err != nil {
		t.Fatal(err)
	}
	nodal := ComputeNodal(cat, s.CentralTime(), nil)
	_, err = FitHarmonic(cat, s, set, nodal, nil, FitConfig{})
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}

func TestFitEmptySeries(t *testing.T) {
	cat := DefaultCatalog()
	set := &SelectedSet{Indices: []int{cat.MustLookup("M2")}}
	_, err := FitHarmonic(cat, &Series{IntervalHours: 1}, set, nil, nil, FitConfig{})
	var empty *EmptySeriesError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptySeriesError, got %v", err)
	}
}

func TestFitRankDeficientAliasedSampling(t *testing.T) {
	cat := DefaultCatalog()
	// S2 runs at exactly two cycles per day, so a 12-hour sampling interval
	// makes its basis columns constant and collinear with the mean column.
	s := &Series{Start: fitStart, IntervalHours: 12, Values: make([]complex128, 240)}
	for j := range s.Values {
		s.Values[j] = complex(math.Sin(0.3*float64(j)), 0)
	}
	set, err := SelectConstituents(cat, s.RecordHours(), SelectOptions{
		Constituents: []string{"M2", "S2"},
	})
	if err != nil {
		t.Fatal(err)
	}
	nodal := ComputeNodal(cat, s.CentralTime(), nil)
	_, err = FitHarmonic(cat, s, set, nodal, nil, FitConfig{Solver: SolverDirect})
	var rank *RankDeficientError
	if !errors.As(err, &rank) {
		t.Fatalf("expected RankDeficientError, got %v", err)
	}
}

func TestFitScalarRejectsMinusSideInference(t *testing.T) {
	cat := DefaultCatalog()
	fK1 := cat.Constituents[cat.MustLookup("K1")].FreqCPH

	set, err := SelectConstituents(cat, 20*24, SelectOptions{
		Constituents: []string{"K1"},
		Inferences: []InferenceRule{{
			Inferred: "P1", Reference: "K1",
			AmpRatio: 0.33, PhaseLagDeg: -7.07,
			AmpRatioMinus: 0.5,
		}},
	})
	if err != nil {
		t.Fatal(err)
	}

	// A scalar series mirrors its rotary pair, so an asymmetric minus side
	// cannot enter the design matrix.
	s := syntheticScalar(20*24+1, 0, [3]float64{fK1, 1.0, 0})
	nodal := ComputeNodal(cat, s.CentralTime(), nil)
	_, err = FitHarmonic(cat, s, set, nodal, nil, FitConfig{})
	var invalid *InvalidConfigurationError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidConfigurationError, got %v", err)
	}

	// A vector series carries both rotary sides and accepts it.
	v := &Series{Start: fitStart, IntervalHours: 1, Vector: true, Values: make([]complex128, 20*24+1)}
	for j := range v.Values {
		v.Values[j] = cmplx.Rect(1, 2*math.Pi*fK1*float64(j))
	}
	if _, err := FitHarmonic(cat, v, set, ComputeNodal(cat, v.CentralTime(), nil), nil, FitConfig{}); err != nil {
		t.Fatalf("vector fit rejected asymmetric inference: %v", err)
	}
}

func TestFitInferenceRecovery(t *testing.T) {
	cat := DefaultCatalog()
	fK1 := cat.Constituents[cat.MustLookup("K1")].FreqCPH
	fP1 := cat.Constituents[cat.MustLookup("P1")].FreqCPH

	const ratio = 0.33093
	const lag = -7.07

	// P1 synthesized exactly per the inference relation: its Greenwich
	// phase is the reference's plus the lag, its amplitude the ratio.
	// A 15-day record cannot separate the pair.
	nodal := ComputeNodal(cat, fitStart.Add(time.Duration(15*24/2)*time.Hour), nil)
	vK1 := nodal[cat.MustLookup("K1")].V0
	vP1 := nodal[cat.MustLookup("P1")].V0

	gK1 := 50.0
	gP1 := gK1 - lag
	s := &Series{Start: fitStart, IntervalHours: 1, Values: make([]complex128, 15*24+1)}
	half := s.RecordHours() / 2
	for j := range s.Values {
		t := float64(j) - half
		v := 0.6*math.Cos(2*math.Pi*fK1*t+Deg2Rad(vK1-gK1)) +
			0.6*ratio*math.Cos(2*math.Pi*fP1*t+Deg2Rad(vP1-gP1))
		s.Values[j] = complex(v, 0)
	}

	set, err := SelectConstituents(cat, s.RecordHours(), SelectOptions{
		Constituents: []string{"K1", "M2", "O1"},
		Inferences:   []InferenceRule{{Inferred: "P1", Reference: "K1", AmpRatio: ratio, PhaseLagDeg: lag}},
	})
	if err != nil {
		t.Fatal(err)
	}
	fit, err := FitHarmonic(cat, s, set, nodal, nil, FitConfig{})
	if err != nil {
		t.Fatal(err)
	}

	ampK1, phK1 := ScalarParams(coefByName(t, fit, "K1").Ap)
	if math.Abs(ampK1-0.6) > 1e-6 {
		t.Errorf("K1 amplitude = %.9f, want 0.6", ampK1)
	}
	if math.Abs(Mod360(phK1-gK1)) > 1e-4 && math.Abs(Mod360(phK1-gK1)-360) > 1e-4 {
		t.Errorf("K1 phase = %.6f, want %v", phK1, gK1)
	}

	if len(fit.InferredCoefs) != 1 {
		t.Fatalf("expected 1 inferred coefficient, got %d", len(fit.InferredCoefs))
	}
	ampP1, phP1 := ScalarParams(fit.InferredCoefs[0].Ap)
	if math.Abs(ampP1-0.6*ratio) > 1e-6 {
		t.Errorf("inferred P1 amplitude = %.9f, want %v", ampP1, 0.6*ratio)
	}
	wantP1 := Mod360(gP1)
	if math.Abs(Mod360(phP1-wantP1)) > 1e-4 && math.Abs(Mod360(phP1-wantP1)-360) > 1e-4 {
		t.Errorf("inferred P1 phase = %.6f, want %v", phP1, wantP1)
	}
	if fit.ResidVar > 1e-10 {
		t.Errorf("inference should absorb P1 exactly, residual variance %v", fit.ResidVar)
	}
}
