package domain

import (
	"math"
	"math/cmplx"
)

// EllipseParams are the reportable tidal parameters of one constituent.
// Scalar series use Major as the amplitude and PhaseDeg as the Greenwich
// phase lag; Minor and IncDeg stay zero. For vector series Minor is signed:
// positive means counterclockwise rotation, negative clockwise.
type EllipseParams struct {
	Major    float64
	Minor    float64
	IncDeg   float64
	PhaseDeg float64
}

// ToEllipse converts a rotary coefficient pair to ellipse parameters.
// Closed form, no iteration: with ap = |ap|e^{i εp} and am = |am|e^{i εm},
// the ellipse has semi-axes |ap|±|am|, inclination (εp+εm)/2 and Greenwich
// phase (εm−εp)/2.
func ToEllipse(ap, am complex128) EllipseParams {
	epsp := Rad2Deg(cmplx.Phase(ap))
	epsm := Rad2Deg(cmplx.Phase(am))
	p := EllipseParams{
		Major:    cmplx.Abs(ap) + cmplx.Abs(am),
		Minor:    cmplx.Abs(ap) - cmplx.Abs(am),
		IncDeg:   Mod360((epsp + epsm) / 2),
		PhaseDeg: Mod360((epsm - epsp) / 2),
	}
	// Fold the inclination into [0, 180) with the phase absorbing the flip.
	if p.IncDeg >= 180 {
		p.IncDeg -= 180
		p.PhaseDeg = Mod360(p.PhaseDeg + 180)
	}
	return p
}

// ScalarParams converts a scalar coefficient (am = conj(ap)) to amplitude
// and Greenwich phase.
func ScalarParams(ap complex128) (amp, phaseDeg float64) {
	return 2 * cmplx.Abs(ap), Mod360(-Rad2Deg(cmplx.Phase(ap)))
}

// EllipseStd holds one-standard-deviation uncertainties of the ellipse
// parameters (angles in degrees).
type EllipseStd struct {
	Major, Minor, Inc, Phase float64
}

// LinearizedEllipseStd propagates per-component coefficient variances sp2
// (real or imaginary part of ap) and sm2 (of am) through the ellipse
// transform to first order. Zero-amplitude components degrade to zero
// angular uncertainty rather than blowing up.
func LinearizedEllipseStd(ap, am complex128, sp2, sm2 float64) EllipseStd {
	axis := math.Sqrt(sp2 + sm2)
	var incVar float64
	if abs := cmplx.Abs(ap); abs > 0 {
		incVar += sp2 / (abs * abs)
	}
	if abs := cmplx.Abs(am); abs > 0 {
		incVar += sm2 / (abs * abs)
	}
	ang := Rad2Deg(math.Sqrt(incVar) / 2)
	return EllipseStd{Major: axis, Minor: axis, Inc: ang, Phase: ang}
}
