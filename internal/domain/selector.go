package domain

import (
	"math"
	"sort"
)

// InferenceRule forces an unresolvable constituent's amplitude and phase to a
// fixed ratio/offset against a resolvable reference constituent. For vector
// series the negative rotary component may carry its own ratio and offset;
// leave AmpRatioMinus zero to reuse the positive-component values.
type InferenceRule struct {
	Inferred  string
	Reference string

	AmpRatio    float64
	PhaseLagDeg float64

	AmpRatioMinus    float64
	PhaseLagMinusDeg float64
}

// SelectOptions configures constituent selection.
type SelectOptions struct {
	// RayleighCriterion scales the minimum resolvable frequency separation
	// (criterion / record length). Zero means the default of 1.
	RayleighCriterion float64

	// Constituents, when non-empty, is an explicit selection that bypasses
	// automatic Rayleigh filtering entirely.
	Constituents []string

	// ShallowNames are shallow-water constituents to include unconditionally.
	ShallowNames []string

	// Inferences are resolved against the selection; each reference is added
	// if missing and each inferred constituent is kept out of the fit.
	Inferences []InferenceRule

	// Priority overrides DefaultPriority for automatic selection.
	Priority []string
}

// ResolvedInference is an InferenceRule with catalog indices resolved.
type ResolvedInference struct {
	Inferred  int
	Reference int

	AmpRatio    float64
	PhaseLagDeg float64

	AmpRatioMinus    float64
	PhaseLagMinusDeg float64
}

// SelectedSet is the outcome of constituent selection: catalog indices in
// ascending frequency order plus the resolved inference rules.
type SelectedSet struct {
	Indices    []int
	Inferences []ResolvedInference
}

// SelectConstituents chooses the usable constituent subset for a record of
// the given length. Automatic selection walks the priority table greedily,
// skipping constituents within the Rayleigh resolution window of an already
// accepted one; an explicit list disables the window but not validation.
//
// When two constituents collide and neither is linked by inference, only the
// higher-priority one is kept; the collision is silent, not an error.
//
// An explicit list may force a pair closer than the Rayleigh limit. The fit
// still solves, splitting the pair's energy by conditioning; the fitter
// fails only when the design is numerically singular, as when the sampling
// interval aliases a constituent onto another column.
func SelectConstituents(cat *Catalog, recordHours float64, opts SelectOptions) (*SelectedSet, error) {
	if recordHours <= 0 {
		return nil, invalidConfigf("record length must be positive, got %.4g hours", recordHours)
	}
	rayleigh := opts.RayleighCriterion
	if rayleigh == 0 {
		rayleigh = 1.0
	}
	if rayleigh < 0 {
		return nil, invalidConfigf("Rayleigh criterion must be non-negative, got %.4g", rayleigh)
	}
	fmin := rayleigh / recordHours

	inSet := make(map[int]bool)
	var indices []int
	add := func(i int) {
		if !inSet[i] {
			inSet[i] = true
			indices = append(indices, i)
		}
	}

	if len(opts.Constituents) > 0 {
		for _, name := range opts.Constituents {
			i, ok := cat.Lookup(name)
			if !ok {
				return nil, invalidConfigf("unknown constituent %q in explicit list", name)
			}
			// A forced constituent still needs at least one full cycle
			// in the record to be estimable at all.
			if recordHours*cat.Constituents[i].FreqCPH < 1.0 {
				return nil, &InsufficientDataError{
					Reason: "record shorter than one cycle of constituent " + name,
				}
			}
			add(i)
		}
	} else {
		priority := opts.Priority
		if priority == nil {
			priority = DefaultPriority
		}
		for _, name := range priority {
			i, ok := cat.Lookup(name)
			if !ok {
				return nil, invalidConfigf("unknown constituent %q in priority table", name)
			}
			freq := cat.Constituents[i].FreqCPH
			if freq < fmin {
				// Unresolvable against the mean.
				continue
			}
			collides := false
			for _, j := range indices {
				if math.Abs(freq-cat.Constituents[j].FreqCPH) < fmin {
					collides = true
					break
				}
			}
			if !collides {
				add(i)
			}
		}
	}

	// Shallow-water constituents join unconditionally; they are exempt from
	// the Rayleigh check against their generating constituents.
	for _, name := range opts.ShallowNames {
		i, ok := cat.Lookup(name)
		if !ok {
			return nil, invalidConfigf("unknown shallow-water constituent %q", name)
		}
		add(i)
	}

	// Resolve inference rules: the reference joins the set even when it
	// collides with the inferred line (that collision is the point of
	// inference); the inferred line must not be fitted independently.
	resolved := make([]ResolvedInference, 0, len(opts.Inferences))
	for _, rule := range opts.Inferences {
		ri, ok := cat.Lookup(rule.Inferred)
		if !ok {
			return nil, invalidConfigf("unknown inferred constituent %q", rule.Inferred)
		}
		rr, ok := cat.Lookup(rule.Reference)
		if !ok {
			return nil, invalidConfigf("unknown inference reference %q", rule.Reference)
		}
		if ri == rr {
			return nil, invalidConfigf("inference rule for %q references itself", rule.Inferred)
		}
		if rule.AmpRatio <= 0 {
			return nil, invalidConfigf("inference amplitude ratio for %q must be positive", rule.Inferred)
		}
		for _, name := range opts.Constituents {
			if name == rule.Inferred {
				return nil, invalidConfigf("inferred constituent %q cannot also be explicitly selected", name)
			}
		}
		add(rr)
		if inSet[ri] {
			// Auto-selection may have picked it up; drop it in favor of
			// the inference constraint.
			delete(inSet, ri)
			for k, j := range indices {
				if j == ri {
					indices = append(indices[:k], indices[k+1:]...)
					break
				}
			}
		}
		r := ResolvedInference{
			Inferred:         ri,
			Reference:        rr,
			AmpRatio:         rule.AmpRatio,
			PhaseLagDeg:      rule.PhaseLagDeg,
			AmpRatioMinus:    rule.AmpRatioMinus,
			PhaseLagMinusDeg: rule.PhaseLagMinusDeg,
		}
		if r.AmpRatioMinus == 0 {
			r.AmpRatioMinus = r.AmpRatio
			r.PhaseLagMinusDeg = r.PhaseLagDeg
		}
		resolved = append(resolved, r)
	}

	sort.Slice(indices, func(a, b int) bool {
		return cat.Constituents[indices[a]].FreqCPH < cat.Constituents[indices[b]].FreqCPH
	})

	return &SelectedSet{Indices: indices, Inferences: resolved}, nil
}
