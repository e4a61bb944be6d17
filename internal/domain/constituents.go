package domain

import (
	"fmt"
	"sync"
	"time"
)

// Satellite is a fine-structure spectral line attached to a main constituent.
// Its frequency differs from the main line only through the slow astronomical
// angles (lunar perigee, node, solar perigee), so over records much shorter
// than the nodal period it appears as a slow amplitude/phase modulation.
type Satellite struct {
	Del       [3]int  // Doodson offsets on (p, np, pp)
	Amp       float64 // amplitude relative to the main line
	PhaseDeg  float64 // phase contribution in degrees
	LatFactor int     // 0 none, 1 or 2 for the standard latitude-dependent forms
}

// ShallowTerm is one term of a shallow-water combination rule.
type ShallowTerm struct {
	Coef float64
	Name string
}

// Constituent is a single catalog entry. Astronomical constituents carry
// Doodson numbers (and optionally satellites); shallow-water constituents
// carry a combination rule over other entries and derive everything else.
type Constituent struct {
	Name       string
	Doodson    [6]int  // multiples of (tau, s, h, p, np, pp)
	SemiCycles float64 // constant phase offset in cycles
	Satellites []Satellite
	Shallow    []ShallowTerm

	// FreqCPH is the base angular frequency in cycles per hour,
	// resolved from the Doodson numbers (or parents) at catalog load.
	FreqCPH float64

	shallowIdx []int // parent indices, resolved at load
}

// IsShallow reports whether the entry is defined as a combination of others.
func (c *Constituent) IsShallow() bool {
	return len(c.Shallow) > 0
}

// SpeedDegPerHr returns the angular speed in degrees per hour.
func (c *Constituent) SpeedDegPerHr() float64 {
	return c.FreqCPH * 360.0
}

// Catalog is the read-only constituent table. Construct once (NewCatalog or
// DefaultCatalog) and share freely; it is never mutated after construction.
type Catalog struct {
	Constituents []Constituent
	byName       map[string]int
}

// NewCatalog resolves frequencies and shallow-water links for the given
// entries and validates the table. Shallow combination rules must reference
// existing entries and must not be self-referential or cyclic.
func NewCatalog(entries []Constituent) (*Catalog, error) {
	cat := &Catalog{
		Constituents: make([]Constituent, len(entries)),
		byName:       make(map[string]int, len(entries)),
	}
	copy(cat.Constituents, entries)

	for i := range cat.Constituents {
		name := cat.Constituents[i].Name
		if name == "" || len(name) > 4 {
			return nil, invalidConfigf("constituent name %q must be 1-4 characters", name)
		}
		if _, dup := cat.byName[name]; dup {
			return nil, invalidConfigf("duplicate constituent name %q", name)
		}
		cat.byName[name] = i
	}

	// Resolve shallow links, rejecting unknown references and cycles.
	state := make([]int, len(cat.Constituents)) // 0 unvisited, 1 in progress, 2 done
	var resolve func(i int) error
	resolve = func(i int) error {
		switch state[i] {
		case 2:
			return nil
		case 1:
			return invalidConfigf("cyclic shallow-water definition involving %q", cat.Constituents[i].Name)
		}
		state[i] = 1
		c := &cat.Constituents[i]
		if c.IsShallow() {
			c.shallowIdx = make([]int, len(c.Shallow))
			freq := 0.0
			var dood [6]int
			for k, term := range c.Shallow {
				j, ok := cat.byName[term.Name]
				if !ok {
					return invalidConfigf("shallow constituent %q references unknown %q", c.Name, term.Name)
				}
				if j == i {
					return invalidConfigf("shallow constituent %q references itself", c.Name)
				}
				if err := resolve(j); err != nil {
					return err
				}
				c.shallowIdx[k] = j
				parent := &cat.Constituents[j]
				freq += term.Coef * parent.FreqCPH
				for d := 0; d < 6; d++ {
					dood[d] += int(term.Coef) * parent.Doodson[d]
				}
			}
			c.FreqCPH = freq
			c.Doodson = dood
		} else {
			c.FreqCPH = doodsonFreqCPH(c.Doodson)
		}
		if c.FreqCPH <= 0 {
			return invalidConfigf("constituent %q has non-positive frequency %.8g", c.Name, c.FreqCPH)
		}
		state[i] = 2
		return nil
	}
	for i := range cat.Constituents {
		if err := resolve(i); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// doodsonFreqCPH converts Doodson numbers to a frequency in cycles per hour
// using the fundamental rates at the reference epoch J2000.
func doodsonFreqCPH(dood [6]int) float64 {
	rates := j2000Rates()
	deg := 0.0
	for i := 0; i < 6; i++ {
		deg += float64(dood[i]) * rates[i]
	}
	return deg / 360.0
}

var (
	j2000          = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	j2000RatesOnce sync.Once
	j2000RatesVal  [6]float64
)

func j2000Rates() [6]float64 {
	j2000RatesOnce.Do(func() {
		j2000RatesVal = Arguments(j2000).Rates()
	})
	return j2000RatesVal
}

// Lookup returns the index of a constituent by name.
func (cat *Catalog) Lookup(name string) (int, bool) {
	i, ok := cat.byName[name]
	return i, ok
}

// MustLookup is Lookup for names known to exist; it panics otherwise.
// Intended for static tables and tests.
func (cat *Catalog) MustLookup(name string) int {
	i, ok := cat.byName[name]
	if !ok {
		panic(fmt.Sprintf("unknown constituent %q", name))
	}
	return i
}

// Names returns all constituent names in table order.
func (cat *Catalog) Names() []string {
	names := make([]string, len(cat.Constituents))
	for i := range cat.Constituents {
		names[i] = cat.Constituents[i].Name
	}
	return names
}

var (
	defaultCatalogOnce sync.Once
	defaultCatalog     *Catalog
)

// DefaultCatalog returns the built-in constituent table, constructed lazily
// on first use and immutable thereafter.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		cat, err := NewCatalog(defaultEntries())
		if err != nil {
			// The built-in table is static; a resolution failure here is a
			// programming error, not a runtime condition.
			panic(err)
		}
		defaultCatalog = cat
	})
	return defaultCatalog
}
