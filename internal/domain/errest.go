package domain

import (
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// ErrorStrategy selects how confidence intervals are estimated.
type ErrorStrategy string

const (
	// ErrorLinear propagates the band-averaged residual spectrum through
	// the least-squares covariance analytically.
	ErrorLinear ErrorStrategy = "linear"
	// ErrorWhiteBootstrap refits against white-noise perturbations of the
	// fitted series.
	ErrorWhiteBootstrap ErrorStrategy = "wboot"
	// ErrorColoredBootstrap refits against phase-randomized surrogates of
	// the residual, preserving its spectral shape.
	ErrorColoredBootstrap ErrorStrategy = "cboot"
)

const defaultTrials = 300

// ci95 converts a standard deviation into a 95% half-width under a normal
// assumption.
const ci95 = 1.959963984540054

// ErrorConfig configures confidence-interval estimation.
type ErrorConfig struct {
	Strategy ErrorStrategy
	Trials   int   // bootstrap replicates; 0 means defaultTrials
	Seed     int64 // master seed; identical seeds give identical intervals
	Workers  int   // bootstrap parallelism; 0 means GOMAXPROCS

	// Estimator supplies the residual PSD for the linear strategy.
	// nil selects WelchPSD.
	Estimator SpectralEstimator
}

// ConstituentErrors holds 95% confidence half-widths for one constituent.
// Scalar series populate Amp and Phase; vector series additionally carry
// the ellipse parameter half-widths.
type ConstituentErrors struct {
	AmpCI      float64
	PhaseCIDeg float64

	MajorCI  float64
	MinorCI  float64
	IncCIDeg float64

	// SNR is (amplitude / amplitude standard error) squared. Infinite when
	// the amplitude error is zero.
	SNR float64
}

// ErrorEstimates pairs the selected constituents' intervals with those of
// the inferred ones, in the same order as FitResult.Coefs and
// FitResult.InferredCoefs.
type ErrorEstimates struct {
	Strategy ErrorStrategy
	Selected []ConstituentErrors
	Inferred []ConstituentErrors
}

// EstimateErrors computes confidence intervals for every fitted
// constituent using the configured strategy.
func EstimateErrors(s *Series, fit *FitResult, cfg ErrorConfig) (*ErrorEstimates, error) {
	if fit == nil || len(fit.Coefs) == 0 {
		return nil, invalidConfigf("error estimation requires a completed fit")
	}
	switch cfg.Strategy {
	case "", ErrorLinear:
		return linearErrors(fit, cfg)
	case ErrorWhiteBootstrap, ErrorColoredBootstrap:
		return bootstrapErrors(s, fit, cfg)
	default:
		return nil, invalidConfigf("unknown error strategy %q", cfg.Strategy)
	}
}

func linearErrors(fit *FitResult, cfg ErrorConfig) (*ErrorEstimates, error) {
	est := cfg.Estimator
	if est == nil {
		est = WelchPSD
	}
	psd := est(zeroFilled(fit.Residuals), fit.IntervalHours)

	perConst := 2
	if fit.Vector {
		perConst = 4
	}
	out := &ErrorEstimates{Strategy: ErrorLinear, Selected: make([]ConstituentErrors, len(fit.Coefs))}
	for pos, c := range fit.Coefs {
		freq := fit.bases[pos].freq
		col := pos * perConst
		var ce ConstituentErrors
		if fit.Vector {
			// Noise on the ap columns comes from the positive rotary side,
			// on the am columns from the negative. density/(2*dt) is the
			// per-equation variance the band density corresponds to.
			sp2 := fit.covDiag[col] * bandDensity(psd, psd.Plus, freq) / (2 * fit.IntervalHours)
			sm2 := fit.covDiag[col+2] * bandDensity(psd, psd.Minus, freq) / (2 * fit.IntervalHours)
			es := LinearizedEllipseStd(c.Ap, c.Am, sp2, sm2)
			ce = ConstituentErrors{
				AmpCI:      ci95 * es.Major,
				PhaseCIDeg: ci95 * es.Phase,
				MajorCI:    ci95 * es.Major,
				MinorCI:    ci95 * es.Minor,
				IncCIDeg:   ci95 * es.Inc,
			}
			ce.SNR = snr(ToEllipse(c.Ap, c.Am).Major, es.Major)
		} else {
			sigEq := bandDensity(psd, psd.Plus, freq) / (2 * fit.IntervalHours)
			varC := fit.covDiag[col] * sigEq
			varS := fit.covDiag[col+1] * sigEq
			amp, _ := ScalarParams(c.Ap)
			ampStd, phStd := scalarStd(c.Ap, varC, varS)
			ce = ConstituentErrors{AmpCI: ci95 * ampStd, PhaseCIDeg: ci95 * phStd, SNR: snr(amp, ampStd)}
		}
		out.Selected[pos] = ce
	}
	out.Inferred = inferredFrom(fit, out.Selected)
	return out, nil
}

// scalarStd propagates independent variances of the in-phase and
// quadrature coefficients through amplitude and Greenwich phase.
func scalarStd(ap complex128, varC, varS float64) (ampStd, phaseStdDeg float64) {
	cc := 2 * real(ap)
	ss := -2 * imag(ap)
	a2 := cc*cc + ss*ss
	if a2 == 0 {
		return math.Sqrt((varC + varS) / 2), 0
	}
	ampStd = math.Sqrt((cc*cc*varC + ss*ss*varS) / a2)
	phaseStdDeg = Rad2Deg(math.Sqrt((ss*ss*varC + cc*cc*varS) / (a2 * a2)))
	return ampStd, phaseStdDeg
}

func snr(amp, std float64) float64 {
	if std == 0 {
		return math.Inf(1)
	}
	return (amp / std) * (amp / std)
}

// inferredFrom scales reference intervals by the inference amplitude
// ratios; phase intervals carry across unchanged.
func inferredFrom(fit *FitResult, sel []ConstituentErrors) []ConstituentErrors {
	posOf := make(map[int]int, len(fit.Set.Indices))
	for pos, ci := range fit.Set.Indices {
		posOf[ci] = pos
	}
	out := make([]ConstituentErrors, len(fit.Set.Inferences))
	for k, inf := range fit.Set.Inferences {
		ref := sel[posOf[inf.Reference]]
		out[k] = ConstituentErrors{
			AmpCI:      inf.AmpRatio * ref.AmpCI,
			PhaseCIDeg: ref.PhaseCIDeg,
			MajorCI:    inf.AmpRatio * ref.MajorCI,
			MinorCI:    inf.AmpRatioMinus * ref.MinorCI,
			IncCIDeg:   ref.IncCIDeg,
			SNR:        ref.SNR,
		}
	}
	return out
}

// trialSample is one bootstrap replicate's parameters for every selected
// constituent.
type trialSample struct {
	amp, phase        []float64
	major, minor, inc []float64
}

func bootstrapErrors(s *Series, fit *FitResult, cfg ErrorConfig) (*ErrorEstimates, error) {
	if s == nil || s.Len() == 0 {
		return nil, &EmptySeriesError{}
	}
	trials := cfg.Trials
	if trials <= 0 {
		trials = defaultTrials
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > trials {
		workers = trials
	}

	// Per-trial seeds drawn up front from the master seed, so intervals do
	// not depend on goroutine scheduling.
	master := rand.New(rand.NewSource(cfg.Seed))
	seeds := make([]int64, trials)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	model := residNoiseModel(fit.Residuals, s.Vector)
	zeroed := zeroFilled(fit.Residuals)

	samples := make([]trialSample, trials)
	errs := make([]error, trials)
	var wg sync.WaitGroup
	next := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				samples[i], errs[i] = runTrial(s, fit, cfg.Strategy, zeroed, model, seeds[i])
			}
		}()
	}
	for i := 0; i < trials; i++ {
		next <- i
	}
	close(next)
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	out := &ErrorEstimates{Strategy: cfg.Strategy, Selected: make([]ConstituentErrors, len(fit.Coefs))}
	for pos, c := range fit.Coefs {
		var ce ConstituentErrors
		if fit.Vector {
			el := ToEllipse(c.Ap, c.Am)
			ce.MajorCI = percentileHalfWidth(column(samples, pos, func(t trialSample) []float64 { return t.major }))
			ce.MinorCI = percentileHalfWidth(column(samples, pos, func(t trialSample) []float64 { return t.minor }))
			ce.IncCIDeg = percentileHalfWidth(centeredAngles(column(samples, pos, func(t trialSample) []float64 { return t.inc }), el.IncDeg))
			ce.PhaseCIDeg = percentileHalfWidth(centeredAngles(column(samples, pos, func(t trialSample) []float64 { return t.phase }), el.PhaseDeg))
			ce.AmpCI = ce.MajorCI
			ce.SNR = snr(el.Major, ce.MajorCI/ci95)
		} else {
			amp, phase := ScalarParams(c.Ap)
			ce.AmpCI = percentileHalfWidth(column(samples, pos, func(t trialSample) []float64 { return t.amp }))
			ce.PhaseCIDeg = percentileHalfWidth(centeredAngles(column(samples, pos, func(t trialSample) []float64 { return t.phase }), phase))
			ce.SNR = snr(amp, ce.AmpCI/ci95)
		}
		out.Selected[pos] = ce
	}
	out.Inferred = inferredFrom(fit, out.Selected)
	return out, nil
}

// runTrial perturbs the fitted series with one noise realization, refits
// and extracts per-constituent parameters.
func runTrial(s *Series, fit *FitResult, strategy ErrorStrategy, zeroed []complex128, model residNoise, seed int64) (trialSample, error) {
	rng := rand.New(rand.NewSource(seed))
	var noise []complex128
	if strategy == ErrorColoredBootstrap {
		noise = surrogateResidual(zeroed, s.Vector, rng)
	} else {
		noise = make([]complex128, s.Len())
		for i := range noise {
			if s.Vector {
				noise[i] = model.draw(rng)
			} else {
				noise[i] = complex(model.lxx*rng.NormFloat64(), 0)
			}
		}
	}

	synth := &Series{
		Start:         s.Start,
		IntervalHours: s.IntervalHours,
		Vector:        s.Vector,
		Values:        make([]complex128, s.Len()),
	}
	for i := range synth.Values {
		if IsMissing(s.Values[i]) {
			synth.Values[i] = complex(math.NaN(), math.NaN())
		} else {
			synth.Values[i] = fit.Fitted[i] + noise[i]
		}
	}

	refit, err := FitHarmonic(fit.Catalog, synth, fit.Set, fit.Nodal, fit.SatLines,
		FitConfig{Trend: fit.TrendMode, Solver: fit.solver.mode})
	if err != nil {
		return trialSample{}, err
	}

	n := len(refit.Coefs)
	ts := trialSample{
		amp:   make([]float64, n),
		phase: make([]float64, n),
	}
	if s.Vector {
		ts.major = make([]float64, n)
		ts.minor = make([]float64, n)
		ts.inc = make([]float64, n)
	}
	for pos, c := range refit.Coefs {
		if s.Vector {
			el := ToEllipse(c.Ap, c.Am)
			ts.major[pos] = el.Major
			ts.minor[pos] = el.Minor
			ts.inc[pos] = el.IncDeg
			ts.phase[pos] = el.PhaseDeg
			ts.amp[pos] = el.Major
		} else {
			ts.amp[pos], ts.phase[pos] = ScalarParams(c.Ap)
		}
	}
	return ts, nil
}

func column(samples []trialSample, pos int, pick func(trialSample) []float64) []float64 {
	out := make([]float64, len(samples))
	for i, ts := range samples {
		out[i] = pick(ts)[pos]
	}
	return out
}

// centeredAngles wraps angle samples to within 180 degrees of the point
// estimate so percentile spreads are not inflated by branch cuts.
func centeredAngles(vals []float64, center float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		d := math.Mod(v-center+180, 360)
		if d < 0 {
			d += 360
		}
		out[i] = d - 180
	}
	return out
}

// percentileHalfWidth is half the spread between the 2.5th and 97.5th
// percentiles of the trial samples.
func percentileHalfWidth(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	lo := stat.Quantile(0.025, stat.Empirical, sorted, nil)
	hi := stat.Quantile(0.975, stat.Empirical, sorted, nil)
	return (hi - lo) / 2
}

// residNoise is the lower Cholesky factor of the residual's 2x2 (Re, Im)
// cross-covariance. White-noise trials draw correlated component pairs from
// it, so cross-channel structure in a vector residual carries into the
// intervals. Scalar residuals only populate lxx.
type residNoise struct {
	lxx, lyx, lyy float64
}

func residNoiseModel(res []complex128, vector bool) residNoise {
	var sxx, syy, sxy float64
	n := 0
	for _, v := range res {
		if IsMissing(v) {
			continue
		}
		x, y := real(v), imag(v)
		sxx += x * x
		syy += y * y
		sxy += x * y
		n++
	}
	if n == 0 {
		return residNoise{}
	}
	sxx /= float64(n)
	syy /= float64(n)
	sxy /= float64(n)
	if !vector {
		return residNoise{lxx: math.Sqrt(sxx)}
	}
	lxx := math.Sqrt(sxx)
	if lxx == 0 {
		return residNoise{lyy: math.Sqrt(syy)}
	}
	lyx := sxy / lxx
	d := syy - lyx*lyx
	if d < 0 {
		d = 0
	}
	return residNoise{lxx: lxx, lyx: lyx, lyy: math.Sqrt(d)}
}

// draw produces one bivariate Gaussian sample with the factored covariance.
func (m residNoise) draw(rng *rand.Rand) complex128 {
	z1, z2 := rng.NormFloat64(), rng.NormFloat64()
	return complex(m.lxx*z1, m.lyx*z1+m.lyy*z2)
}

func zeroFilled(res []complex128) []complex128 {
	out := make([]complex128, len(res))
	for i, v := range res {
		if !IsMissing(v) {
			out[i] = v
		}
	}
	return out
}
