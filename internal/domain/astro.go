package domain

import (
	"math"
	"time"
)

// AstronomicalState holds the six fundamental astronomical angles (degrees,
// reduced to [0, 360)) and their rates (degrees per hour) at one instant.
//
//   - Tau: mean lunar time
//   - S:   mean longitude of the moon
//   - H:   mean longitude of the sun
//   - P:   mean longitude of the lunar perigee
//   - Np:  negative mean longitude of the ascending lunar node
//   - Pp:  mean longitude of the solar perigee (perihelion)
type AstronomicalState struct {
	Tau, S, H, P, Np, Pp       float64
	DTau, DS, DH, DP, DNp, DPp float64
}

// astroEpoch is 1899-12-31 12:00:00 UTC, the reference origin of the
// Schureman polynomial ephemeris approximations. Valid roughly 1850-2050.
var astroEpoch = time.Date(1899, 12, 31, 12, 0, 0, 0, time.UTC)

// Polynomial coefficients in [1, d, (d/1e4)^2, (d/1e4)^3] with d in days
// since astroEpoch, yielding degrees.
var (
	coefS  = [4]float64{270.434164, 13.1763965268, -0.0000850, 0.000000039}
	coefH  = [4]float64{279.696678, 0.9856473354, 0.00002267, 0.000000000}
	coefP  = [4]float64{334.329556, 0.1114040803, -0.0007739, -0.00000026}
	coefNp = [4]float64{-259.183275, 0.0529539222, -0.0001557, -0.000000050}
	coefPp = [4]float64{281.220844, 0.0000470684, 0.0000339, 0.000000070}
)

func evalPoly(c [4]float64, d float64) float64 {
	D := d / 10000.0
	return c[0] + c[1]*d + c[2]*D*D + c[3]*D*D*D
}

// Derivative with respect to d, in degrees per day.
func evalPolyRate(c [4]float64, d float64) float64 {
	D := d / 10000.0
	return c[1] + 2.0e-4*c[2]*D + 3.0e-4*c[3]*D*D
}

// Mod360 reduces an angle in degrees to [0, 360).
func Mod360(deg float64) float64 {
	m := math.Mod(deg, 360.0)
	if m < 0 {
		m += 360.0
	}
	return m
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Rad2Deg converts radians to degrees.
func Rad2Deg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// Arguments evaluates the fundamental astronomical angles and their hourly
// rates at t. Pure and deterministic.
func Arguments(t time.Time) AstronomicalState {
	d := t.Sub(astroEpoch).Hours() / 24.0

	s := Mod360(evalPoly(coefS, d))
	h := Mod360(evalPoly(coefH, d))
	p := Mod360(evalPoly(coefP, d))
	np := Mod360(evalPoly(coefNp, d))
	pp := Mod360(evalPoly(coefPp, d))

	// Fraction of the UTC day since midnight, in degrees of rotation.
	ut := t.UTC()
	fracDeg := 360.0 * (float64(ut.Hour()) + float64(ut.Minute())/60.0 +
		(float64(ut.Second())+float64(ut.Nanosecond())/1e9)/3600.0) / 24.0
	tau := Mod360(fracDeg + h - s)

	ds := evalPolyRate(coefS, d) / 24.0
	dh := evalPolyRate(coefH, d) / 24.0
	dp := evalPolyRate(coefP, d) / 24.0
	dnp := evalPolyRate(coefNp, d) / 24.0
	dpp := evalPolyRate(coefPp, d) / 24.0
	dtau := 15.0 + dh - ds

	return AstronomicalState{
		Tau: tau, S: s, H: h, P: p, Np: np, Pp: pp,
		DTau: dtau, DS: ds, DH: dh, DP: dp, DNp: dnp, DPp: dpp,
	}
}

// Angles returns the six angles as a vector in Doodson order.
func (a AstronomicalState) Angles() [6]float64 {
	return [6]float64{a.Tau, a.S, a.H, a.P, a.Np, a.Pp}
}

// Rates returns the six hourly rates in Doodson order.
func (a AstronomicalState) Rates() [6]float64 {
	return [6]float64{a.DTau, a.DS, a.DH, a.DP, a.DNp, a.DPp}
}
