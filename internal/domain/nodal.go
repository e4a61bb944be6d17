package domain

import (
	"math"
	"time"
)

// NodalPeriodYears is the lunar nodal cycle length. Records spanning at
// least this long resolve satellite lines directly instead of folding them
// into a single f/u correction.
const NodalPeriodYears = 18.61

// NodalFactors holds the nodal amplitude factor f, the nodal phase
// correction u (degrees) and the Greenwich phase lag V0 (degrees) for one
// constituent at one reference instant.
type NodalFactors struct {
	F  float64
	U  float64
	V0 float64
}

// ComputeNodal evaluates f, u and V0 for every catalog constituent at the
// reference time. Satellite modulations need a latitude; when lat is nil the
// corrections collapse to f=1, u=0 and only V0 is carried.
//
// A single correction at the record's central time is accurate for records
// well below the nodal period. Multi-year records approaching it should be
// analyzed in sub-year chunks, or fitted in satellite-resolving mode.
func ComputeNodal(cat *Catalog, ref time.Time, lat *float64) []NodalFactors {
	args := Arguments(ref)
	out := make([]NodalFactors, len(cat.Constituents))
	done := make([]bool, len(cat.Constituents))

	var eval func(i int)
	eval = func(i int) {
		if done[i] {
			return
		}
		c := &cat.Constituents[i]
		if c.IsShallow() {
			f := 1.0
			u := 0.0
			v := 0.0
			for k, term := range c.Shallow {
				j := c.shallowIdx[k]
				eval(j)
				f *= math.Pow(out[j].F, math.Abs(term.Coef))
				u += term.Coef * out[j].U
				v += term.Coef * out[j].V0
			}
			out[i] = NodalFactors{F: f, U: Mod360(u), V0: Mod360(v)}
		} else {
			f, u := satelliteSum(c, args, lat)
			out[i] = NodalFactors{F: f, U: u, V0: equilibriumArg(c, args)}
		}
		done[i] = true
	}
	for i := range cat.Constituents {
		eval(i)
	}
	return out
}

// equilibriumArg is the astronomical argument V in degrees, the phase of the
// equilibrium tide at Greenwich for the constituent's main line.
func equilibriumArg(c *Constituent, args AstronomicalState) float64 {
	angles := args.Angles()
	v := c.SemiCycles * 360.0
	for i := 0; i < 6; i++ {
		v += float64(c.Doodson[i]) * angles[i]
	}
	return Mod360(v)
}

// satelliteSum folds the constituent's satellite lines into a complex
// modulation of the main line: f is its magnitude, u its phase in degrees.
func satelliteSum(c *Constituent, args AstronomicalState, lat *float64) (f, u float64) {
	if lat == nil || len(c.Satellites) == 0 {
		return 1.0, 0.0
	}
	slat := clampedSinLat(*lat)
	sumRe, sumIm := 1.0, 0.0
	for _, sat := range c.Satellites {
		r := satAmp(sat, slat)
		ph := Deg2Rad(sat.PhaseDeg +
			float64(sat.Del[0])*args.P +
			float64(sat.Del[1])*args.Np +
			float64(sat.Del[2])*args.Pp)
		sumRe += r * math.Cos(ph)
		sumIm += r * math.Sin(ph)
	}
	f = math.Hypot(sumRe, sumIm)
	u = Rad2Deg(math.Atan2(sumIm, sumRe))
	if f == 0 {
		f = 1.0
	}
	return f, u
}

// satAmp applies the standard latitude-dependent amplitude factors.
func satAmp(sat Satellite, slat float64) float64 {
	switch sat.LatFactor {
	case 1:
		return sat.Amp * 0.36309 * (1.0 - 5.0*slat*slat) / slat
	case 2:
		return sat.Amp * 2.59808 * slat
	default:
		return sat.Amp
	}
}

// clampedSinLat keeps the latitude-dependent factors finite near the equator.
func clampedSinLat(lat float64) float64 {
	if math.Abs(lat) < 5.0 {
		lat = math.Copysign(5.0, lat)
	}
	return math.Sin(Deg2Rad(lat))
}

// SatelliteLine is one explicitly resolved fine-structure line, used when a
// record spans the nodal period and satellites are fitted directly.
type SatelliteLine struct {
	Main    int     // catalog index of the parent constituent
	FreqCPH float64 // absolute frequency of the line
	V0      float64 // Greenwich phase lag in degrees, phase correction included
	Amp     float64 // equilibrium amplitude relative to the main line
}

// SatelliteLines expands the satellites of the given catalog entries into
// independent spectral lines at the reference time. Shallow-water entries
// have no satellites of their own and contribute nothing.
func SatelliteLines(cat *Catalog, ref time.Time, lat *float64, indices []int) []SatelliteLine {
	args := Arguments(ref)
	rates := args.Rates()
	var lines []SatelliteLine
	for _, i := range indices {
		c := &cat.Constituents[i]
		if c.IsShallow() {
			continue
		}
		var slat float64
		if lat != nil {
			slat = clampedSinLat(*lat)
		}
		for _, sat := range c.Satellites {
			amp := sat.Amp
			if sat.LatFactor != 0 {
				if lat == nil {
					continue
				}
				amp = satAmp(sat, slat)
			}
			dfreq := (float64(sat.Del[0])*rates[3] +
				float64(sat.Del[1])*rates[4] +
				float64(sat.Del[2])*rates[5]) / 360.0
			v0 := equilibriumArg(c, args) + sat.PhaseDeg +
				float64(sat.Del[0])*args.P +
				float64(sat.Del[1])*args.Np +
				float64(sat.Del[2])*args.Pp
			lines = append(lines, SatelliteLine{
				Main:    i,
				FreqCPH: c.FreqCPH + dfreq,
				V0:      Mod360(v0),
				Amp:     amp,
			})
		}
	}
	return lines
}
