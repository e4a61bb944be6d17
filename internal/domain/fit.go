package domain

import (
	"math"
	"math/cmplx"
	"time"

	"gonum.org/v1/gonum/mat"
)

// TrendMode selects the secular terms fitted alongside the constituents.
type TrendMode int

const (
	// TrendMean fits a constant offset only.
	TrendMean TrendMode = iota
	// TrendLinear fits a constant offset plus a linear trend.
	TrendLinear
)

// SolverMode selects how the least-squares system is solved.
type SolverMode int

const (
	// SolverAuto picks direct QR for short records and normal equations for
	// long ones, bounding design-matrix memory.
	SolverAuto SolverMode = iota
	// SolverDirect factors the raw design matrix by QR.
	SolverDirect
	// SolverNormal forms and solves the normal equations by Cholesky.
	SolverNormal
)

// Valid-sample count above which SolverAuto switches to normal equations.
const normalSolveThreshold = 20000

// Relative tolerance on the QR R-diagonal below which the system is
// declared rank deficient.
const rankTol = 1e-10

// Coef is the raw rotary coefficient pair of one fitted line. Scalar series
// satisfy Am == conj(Ap).
type Coef struct {
	Index  int // catalog index; -1 for satellite fine-structure lines
	Ap, Am complex128
}

// FitConfig configures the harmonic fit.
type FitConfig struct {
	Trend  TrendMode
	Solver SolverMode
}

// FitResult is the immutable outcome of one harmonic fit.
type FitResult struct {
	Catalog  *Catalog
	Set      *SelectedSet
	Nodal    []NodalFactors
	SatLines []SatelliteLine
	Vector   bool

	Center        time.Time // instant the secular terms are referenced to
	IntervalHours float64

	Coefs         []Coef // one per Set.Indices entry, same order
	InferredCoefs []Coef // one per Set.Inferences entry, derived
	SatCoefs      []Coef // one per SatLines entry (satellite-resolving mode)
	Mean          complex128
	TrendPerHour  complex128
	TrendMode     TrendMode

	Fitted    []complex128 // model evaluated at every sample, gap or not
	Residuals []complex128 // observed minus fitted; NaN preserved at gaps

	TotalVar      float64 // variance of valid observations
	ResidVar      float64 // mean squared residual over valid samples
	ResidVarPlus  float64 // vector series: residual energy, positive rotary
	ResidVarMinus float64 // vector series: residual energy, negative rotary

	DOF int // valid equations minus unknowns

	// Solver state retained for error estimation: the design matrix, its
	// factorization and the unscaled parameter covariance diagonal.
	covDiag  []float64
	validIdx []int
	times    []float64 // hours relative to the central time, per sample
	bases    []lineBasis
	solver   *solverState
}

// lineBasis is the complex design-matrix basis of one fitted line, with any
// inference contributions folded in.
type lineBasis struct {
	freq  float64 // cycles per hour
	vu    float64 // V0+u in radians
	f     float64
	extra []inferTerm
}

type solverState struct {
	mode SolverMode // resolved to SolverDirect or SolverNormal
	a    *mat.Dense
	qr   *mat.QR
	chol *mat.Cholesky
	cols int
}

// FitHarmonic builds the design matrix for the selected constituents and
// secular terms, drops gap rows, applies inference constraints as column
// substitutions and solves the linear least-squares system.
func FitHarmonic(cat *Catalog, s *Series, set *SelectedSet, nodal []NodalFactors, satLines []SatelliteLine, cfg FitConfig) (*FitResult, error) {
	if s == nil || s.Len() == 0 {
		return nil, &EmptySeriesError{}
	}
	if s.IntervalHours <= 0 {
		return nil, invalidConfigf("sampling interval must be positive, got %.4g hours", s.IntervalHours)
	}
	if len(set.Indices) == 0 {
		return nil, invalidConfigf("no constituents selected")
	}
	valid := s.validIndices()
	if len(valid) == 0 {
		return nil, &EmptySeriesError{}
	}

	perConst := 2
	rowsPerSample := 1
	if s.Vector {
		perConst = 4
		rowsPerSample = 2
	}
	nLines := len(set.Indices) + len(satLines)
	secCols := rowsPerSample // mean
	if cfg.Trend == TrendLinear {
		secCols *= 2
	}
	cols := nLines*perConst + secCols
	rows := len(valid) * rowsPerSample
	if rows < cols {
		return nil, &InsufficientDataError{Samples: len(valid), Unknowns: cols}
	}

	// Sample times relative to the central instant.
	half := s.RecordHours() / 2.0
	times := make([]float64, s.Len())
	for j := range times {
		times[j] = float64(j)*s.IntervalHours - half
	}

	// Complex basis factors per fitted line: the positive-rotary factor
	// multiplies ap, its conjugate multiplies am. Inference terms are
	// folded into the reference's factors.
	bases := make([]lineBasis, 0, nLines)
	refPos := make(map[int]int, len(set.Indices)) // catalog index -> line position
	for pos, ci := range set.Indices {
		nf := nodal[ci]
		f := nf.F
		if f == 0 {
			f = 1
		}
		bases = append(bases, lineBasis{
			freq: cat.Constituents[ci].FreqCPH,
			vu:   Deg2Rad(nf.V0 + nf.U),
			f:    f,
		})
		refPos[ci] = pos
	}
	for _, ln := range satLines {
		bases = append(bases, lineBasis{freq: ln.FreqCPH, vu: Deg2Rad(ln.V0), f: 1})
	}

	for _, inf := range set.Inferences {
		pos, ok := refPos[inf.Reference]
		if !ok {
			return nil, invalidConfigf("inference reference %q missing from selection",
				cat.Constituents[inf.Reference].Name)
		}
		// A scalar series has one rotary pair mirrored across zero; its
		// design columns encode the positive side only, so distinct
		// minus-side inference values cannot be honored.
		if !s.Vector && (inf.AmpRatioMinus != inf.AmpRatio || inf.PhaseLagMinusDeg != inf.PhaseLagDeg) {
			return nil, invalidConfigf("minus-side inference ratios for %q apply to vector series only",
				cat.Constituents[inf.Inferred].Name)
		}
		nf := nodal[inf.Inferred]
		fi := nf.F
		if fi == 0 {
			fi = 1
		}
		bases[pos].extra = append(bases[pos].extra, inferTerm{
			freq:     cat.Constituents[inf.Inferred].FreqCPH,
			vu:       Deg2Rad(nf.V0 + nf.U),
			f:        fi,
			rhoPlus:  cmplx.Rect(inf.AmpRatio, Deg2Rad(inf.PhaseLagDeg)),
			rhoMinus: cmplx.Rect(inf.AmpRatioMinus, -Deg2Rad(inf.PhaseLagMinusDeg)),
		})
	}

	a := mat.NewDense(rows, cols, nil)
	b := mat.NewVecDense(rows, nil)
	for r, j := range valid {
		t := times[j]
		obs := s.Values[j]
		for pos := range bases {
			wp, wm := bases[pos].at(t)
			col := pos * perConst
			if s.Vector {
				setComplexCols(a, 2*r, col, wp)
				setComplexCols(a, 2*r, col+2, wm)
			} else {
				a.Set(r, col, real(wp))
				a.Set(r, col+1, imag(wp))
			}
		}
		sec := nLines * perConst
		if s.Vector {
			setComplexCols(a, 2*r, sec, 1)
			if cfg.Trend == TrendLinear {
				setComplexCols(a, 2*r, sec+2, complex(t, 0))
			}
			b.SetVec(2*r, real(obs))
			b.SetVec(2*r+1, imag(obs))
		} else {
			a.Set(r, sec, 1)
			if cfg.Trend == TrendLinear {
				a.Set(r, sec+1, t)
			}
			b.SetVec(r, real(obs))
		}
	}

	st, err := factorize(a, cfg.Solver, len(valid))
	if err != nil {
		return nil, err
	}
	x, err := st.solve(b)
	if err != nil {
		return nil, err
	}

	res := &FitResult{
		Catalog:       cat,
		Set:           set,
		Nodal:         nodal,
		SatLines:      satLines,
		Vector:        s.Vector,
		Center:        s.CentralTime(),
		IntervalHours: s.IntervalHours,
		TrendMode:     cfg.Trend,
		TotalVar:      s.Variance(),
		DOF:           rows - cols,
		covDiag:       st.covarianceDiag(),
		validIdx:      valid,
		times:         times,
		bases:         bases,
		solver:        st,
	}
	res.unpack(x)
	res.evaluate(s)
	return res, nil
}

type inferTerm struct {
	freq, vu, f       float64
	rhoPlus, rhoMinus complex128
}

// at evaluates the positive- and negative-rotary basis factors at time t
// (hours from the central instant), inference contributions included.
func (lb *lineBasis) at(t float64) (wp, wm complex128) {
	th := 2*math.Pi*lb.freq*t + lb.vu
	e := cmplx.Rect(lb.f, th)
	wp, wm = e, cmplx.Conj(e)
	for _, inf := range lb.extra {
		thI := 2*math.Pi*inf.freq*t + inf.vu
		eI := cmplx.Rect(inf.f, thI)
		wp += inf.rhoPlus * eI
		wm += inf.rhoMinus * cmplx.Conj(eI)
	}
	return wp, wm
}

// setComplexCols writes the 2x2 real block representing multiplication of a
// complex unknown by the complex basis factor w.
func setComplexCols(a *mat.Dense, row, col int, w complex128) {
	a.Set(row, col, real(w))
	a.Set(row+1, col, imag(w))
	a.Set(row, col+1, -imag(w))
	a.Set(row+1, col+1, real(w))
}

func factorize(a *mat.Dense, mode SolverMode, validSamples int) (*solverState, error) {
	_, cols := a.Dims()
	st := &solverState{a: a, cols: cols, mode: mode}
	if st.mode == SolverAuto {
		if validSamples > normalSolveThreshold {
			st.mode = SolverNormal
		} else {
			st.mode = SolverDirect
		}
	}
	switch st.mode {
	case SolverDirect:
		st.qr = &mat.QR{}
		st.qr.Factorize(a)
		var r mat.Dense
		st.qr.RTo(&r)
		maxd := 0.0
		mind := math.Inf(1)
		for i := 0; i < cols; i++ {
			d := math.Abs(r.At(i, i))
			if d > maxd {
				maxd = d
			}
			if d < mind {
				mind = d
			}
		}
		if maxd == 0 || mind <= rankTol*maxd {
			return nil, &RankDeficientError{Reason: "design matrix is numerically singular for the selected constituents"}
		}
	case SolverNormal:
		var g mat.Dense
		g.Mul(a.T(), a)
		sym := mat.NewSymDense(cols, nil)
		for i := 0; i < cols; i++ {
			for j := i; j < cols; j++ {
				sym.SetSym(i, j, g.At(i, j))
			}
		}
		st.chol = &mat.Cholesky{}
		if !st.chol.Factorize(sym) {
			return nil, &RankDeficientError{Reason: "normal equations are not positive definite for the selected constituents"}
		}
	}
	return st, nil
}

func (st *solverState) solve(b *mat.VecDense) (*mat.VecDense, error) {
	x := mat.NewVecDense(st.cols, nil)
	if st.mode == SolverDirect {
		if err := st.qr.SolveVecTo(x, false, b); err != nil {
			return nil, &RankDeficientError{Reason: err.Error()}
		}
		return x, nil
	}
	atb := mat.NewVecDense(st.cols, nil)
	atb.MulVec(st.a.T(), b)
	if err := st.chol.SolveVecTo(x, atb); err != nil {
		return nil, &RankDeficientError{Reason: err.Error()}
	}
	return x, nil
}

// covarianceDiag returns the diagonal of (AᵀA)⁻¹, the unscaled parameter
// covariance. Falls back to the orthogonal-design approximation if the
// normal matrix cannot be inverted despite a successful solve.
func (st *solverState) covarianceDiag() []float64 {
	rows, _ := st.a.Dims()
	diag := make([]float64, st.cols)
	ch := st.chol
	if ch == nil {
		var g mat.Dense
		g.Mul(st.a.T(), st.a)
		sym := mat.NewSymDense(st.cols, nil)
		for i := 0; i < st.cols; i++ {
			for j := i; j < st.cols; j++ {
				sym.SetSym(i, j, g.At(i, j))
			}
		}
		ch = &mat.Cholesky{}
		if !ch.Factorize(sym) {
			ch = nil
		}
	}
	if ch != nil {
		var inv mat.SymDense
		if err := ch.InverseTo(&inv); err == nil {
			for i := range diag {
				diag[i] = inv.At(i, i)
			}
			return diag
		}
	}
	for i := range diag {
		diag[i] = 2.0 / float64(rows)
	}
	return diag
}

// unpack extracts coefficients from the solution vector.
func (r *FitResult) unpack(x *mat.VecDense) {
	perConst := 2
	if r.Vector {
		perConst = 4
	}
	nSel := len(r.Set.Indices)
	r.Coefs = make([]Coef, nSel)
	coefAt := func(pos int) (ap, am complex128) {
		col := pos * perConst
		if r.Vector {
			ap = complex(x.AtVec(col), x.AtVec(col+1))
			am = complex(x.AtVec(col+2), x.AtVec(col+3))
		} else {
			ap = complex(x.AtVec(col), -x.AtVec(col+1)) / 2
			am = cmplx.Conj(ap)
		}
		return ap, am
	}
	for pos, ci := range r.Set.Indices {
		ap, am := coefAt(pos)
		r.Coefs[pos] = Coef{Index: ci, Ap: ap, Am: am}
	}
	r.SatCoefs = make([]Coef, len(r.SatLines))
	for k := range r.SatLines {
		ap, am := coefAt(nSel + k)
		r.SatCoefs[k] = Coef{Index: -1, Ap: ap, Am: am}
	}

	sec := (nSel + len(r.SatLines)) * perConst
	if r.Vector {
		r.Mean = complex(x.AtVec(sec), x.AtVec(sec+1))
		if r.TrendMode == TrendLinear {
			r.TrendPerHour = complex(x.AtVec(sec+2), x.AtVec(sec+3))
		}
	} else {
		r.Mean = complex(x.AtVec(sec), 0)
		if r.TrendMode == TrendLinear {
			r.TrendPerHour = complex(x.AtVec(sec+1), 0)
		}
	}

	// Inferred coefficients follow algebraically from their references.
	r.InferredCoefs = make([]Coef, len(r.Set.Inferences))
	posOf := make(map[int]int, nSel)
	for pos, ci := range r.Set.Indices {
		posOf[ci] = pos
	}
	for k, inf := range r.Set.Inferences {
		ref := r.Coefs[posOf[inf.Reference]]
		rhoP := cmplx.Rect(inf.AmpRatio, Deg2Rad(inf.PhaseLagDeg))
		rhoM := cmplx.Rect(inf.AmpRatioMinus, -Deg2Rad(inf.PhaseLagMinusDeg))
		r.InferredCoefs[k] = Coef{Index: inf.Inferred, Ap: rhoP * ref.Ap, Am: rhoM * ref.Am}
	}
}

// evaluate fills the fitted and residual series and the residual energy
// accounting.
func (r *FitResult) evaluate(s *Series) {
	r.Fitted = make([]complex128, s.Len())
	r.Residuals = make([]complex128, s.Len())
	perCoef := func(pos int) (ap, am complex128) {
		nSel := len(r.Set.Indices)
		if pos < nSel {
			return r.Coefs[pos].Ap, r.Coefs[pos].Am
		}
		k := pos - nSel
		return r.SatCoefs[k].Ap, r.SatCoefs[k].Am
	}
	for j := range s.Values {
		t := r.times[j]
		v := r.Mean + r.TrendPerHour*complex(t, 0)
		for pos := range r.bases {
			wp, wm := r.bases[pos].at(t)
			ap, am := perCoef(pos)
			v += ap*wp + am*wm
		}
		if !s.Vector {
			v = complex(real(v), 0)
		}
		r.Fitted[j] = v
		if IsMissing(s.Values[j]) {
			r.Residuals[j] = complex(math.NaN(), math.NaN())
		} else {
			r.Residuals[j] = s.Values[j] - v
		}
	}

	ss := 0.0
	n := 0
	for _, v := range r.Residuals {
		if !IsMissing(v) {
			ss += real(v)*real(v) + imag(v)*imag(v)
			n++
		}
	}
	if n > 0 {
		r.ResidVar = ss / float64(n)
	}
	if r.Vector {
		r.ResidVarPlus, r.ResidVarMinus = rotaryVariance(r.Residuals)
	}
}
