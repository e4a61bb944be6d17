package domain

// Built-in constituent table. Doodson numbers are multiples of
// (tau, s, h, p, np, pp); frequencies are derived from them at load so the
// table cannot drift out of self-consistency. Satellite amplitude/phase
// entries encode the truncated classical nodal modulation series as complex
// side-lines in the slow angles.

// Nodal satellite sets shared between constituents of the same species.
var (
	// Lunar semidiurnal family (M2, N2, 2N2, MU2, NU2, EPS2, LDA2).
	satsM2 = []Satellite{
		{Del: [3]int{0, -1, 0}, Amp: 0.0374, PhaseDeg: 180},
		{Del: [3]int{0, -2, 0}, Amp: 0.0001},
		{Del: [3]int{0, 2, 0}, Amp: 0.0001},
	}
	satsS2 = []Satellite{
		{Del: [3]int{0, -1, 0}, Amp: 0.0022},
	}
	satsK2 = []Satellite{
		{Del: [3]int{0, -1, 0}, Amp: 0.0117, PhaseDeg: 180},
		{Del: [3]int{0, 1, 0}, Amp: 0.2980},
		{Del: [3]int{0, -2, 0}, Amp: 0.0101},
		{Del: [3]int{0, 2, 0}, Amp: 0.0018, PhaseDeg: 180},
	}
	// Lunar diurnal family (O1, Q1, 2Q1, RHO1).
	satsO1 = []Satellite{
		{Del: [3]int{0, -1, 0}, Amp: 0.1878},
		{Del: [3]int{0, 1, 0}, Amp: 0.0007, PhaseDeg: 180},
		{Del: [3]int{0, -2, 0}, Amp: 0.0191, PhaseDeg: 180},
		{Del: [3]int{0, 2, 0}, Amp: 0.0044},
	}
	satsK1 = []Satellite{
		{Del: [3]int{0, -1, 0}, Amp: 0.0198, PhaseDeg: 180},
		{Del: [3]int{0, 1, 0}, Amp: 0.1348},
		{Del: [3]int{0, -2, 0}, Amp: 0.0016},
		{Del: [3]int{0, 2, 0}, Amp: 0.0104, PhaseDeg: 180},
	}
	satsJ1 = []Satellite{
		{Del: [3]int{0, -1, 0}, Amp: 0.0290, PhaseDeg: 180},
		{Del: [3]int{0, 1, 0}, Amp: 0.1970},
		{Del: [3]int{0, -2, 0}, Amp: 0.0035},
		{Del: [3]int{0, 2, 0}, Amp: 0.0199, PhaseDeg: 180},
	}
	satsOO1 = []Satellite{
		{Del: [3]int{0, -1, 0}, Amp: 0.0051},
		{Del: [3]int{0, 1, 0}, Amp: 0.6453},
		{Del: [3]int{0, -2, 0}, Amp: 0.0510},
		{Del: [3]int{0, 2, 0}, Amp: 0.0193, PhaseDeg: 180},
	}
	satsMm = []Satellite{
		{Del: [3]int{0, -1, 0}, Amp: 0.0650, PhaseDeg: 180},
		{Del: [3]int{0, 1, 0}, Amp: 0.0650, PhaseDeg: 180},
		{Del: [3]int{0, -2, 0}, Amp: 0.0007},
		{Del: [3]int{0, 2, 0}, Amp: 0.0007},
	}
	satsMf = []Satellite{
		{Del: [3]int{0, -1, 0}, Amp: 0.0004, PhaseDeg: 180},
		{Del: [3]int{0, 1, 0}, Amp: 0.4139},
		{Del: [3]int{0, -2, 0}, Amp: 0.0214},
		{Del: [3]int{0, 2, 0}, Amp: 0.0254, PhaseDeg: 180},
	}
	// L2 and M1 carry perigee satellites; the small extra lines use the
	// standard latitude-dependent amplitude factors.
	satsL2 = []Satellite{
		{Del: [3]int{-2, 0, 0}, Amp: 0.2505, PhaseDeg: 180},
		{Del: [3]int{-2, 1, 0}, Amp: 0.1102, PhaseDeg: 180},
		{Del: [3]int{-2, 2, 0}, Amp: 0.0156, PhaseDeg: 180},
		{Del: [3]int{0, -1, 0}, Amp: 0.0374, PhaseDeg: 180},
		{Del: [3]int{0, 1, 0}, Amp: 0.0047, LatFactor: 1},
	}
	satsM1 = []Satellite{
		{Del: [3]int{-1, 0, 0}, Amp: 0.3593, LatFactor: 2},
		{Del: [3]int{1, 0, 0}, Amp: 0.0184, LatFactor: 2},
		{Del: [3]int{0, -1, 0}, Amp: 0.1878},
	}
)

func defaultEntries() []Constituent {
	return []Constituent{
		// Long period.
		{Name: "SA", Doodson: [6]int{0, 0, 1, 0, 0, 0}},
		{Name: "SSA", Doodson: [6]int{0, 0, 2, 0, 0, 0}},
		{Name: "MM", Doodson: [6]int{0, 1, 0, -1, 0, 0}, Satellites: satsMm},
		{Name: "MSF", Doodson: [6]int{0, 2, -2, 0, 0, 0}},
		{Name: "MF", Doodson: [6]int{0, 2, 0, 0, 0, 0}, Satellites: satsMf},

		// Diurnal.
		{Name: "2Q1", Doodson: [6]int{1, -3, 0, 2, 0, 0}, SemiCycles: -0.25, Satellites: satsO1},
		{Name: "Q1", Doodson: [6]int{1, -2, 0, 1, 0, 0}, SemiCycles: -0.25, Satellites: satsO1},
		{Name: "RHO1", Doodson: [6]int{1, -2, 2, -1, 0, 0}, SemiCycles: -0.25, Satellites: satsO1},
		{Name: "O1", Doodson: [6]int{1, -1, 0, 0, 0, 0}, SemiCycles: -0.25, Satellites: satsO1},
		{Name: "M1", Doodson: [6]int{1, 0, 0, 1, 0, 0}, SemiCycles: -0.25, Satellites: satsM1},
		{Name: "CHI1", Doodson: [6]int{1, 0, 2, -1, 0, 0}, SemiCycles: -0.75, Satellites: satsJ1},
		{Name: "PI1", Doodson: [6]int{1, 1, -3, 0, 0, 1}, SemiCycles: -0.25},
		{Name: "P1", Doodson: [6]int{1, 1, -2, 0, 0, 0}, SemiCycles: -0.25},
		{Name: "K1", Doodson: [6]int{1, 1, 0, 0, 0, 0}, SemiCycles: -0.75, Satellites: satsK1},
		{Name: "PSI1", Doodson: [6]int{1, 1, 1, 0, 0, -1}, SemiCycles: -0.75},
		{Name: "PHI1", Doodson: [6]int{1, 1, 2, 0, 0, 0}, SemiCycles: -0.75},
		{Name: "THE1", Doodson: [6]int{1, 2, -2, 1, 0, 0}, SemiCycles: -0.75, Satellites: satsJ1},
		{Name: "J1", Doodson: [6]int{1, 2, 0, -1, 0, 0}, SemiCycles: -0.75, Satellites: satsJ1},
		{Name: "OO1", Doodson: [6]int{1, 3, 0, 0, 0, 0}, SemiCycles: -0.75, Satellites: satsOO1},

		// Semidiurnal.
		{Name: "EPS2", Doodson: [6]int{2, -3, 2, 1, 0, 0}, Satellites: satsM2},
		{Name: "2N2", Doodson: [6]int{2, -2, 0, 2, 0, 0}, Satellites: satsM2},
		{Name: "MU2", Doodson: [6]int{2, -2, 2, 0, 0, 0}, Satellites: satsM2},
		{Name: "N2", Doodson: [6]int{2, -1, 0, 1, 0, 0}, Satellites: satsM2},
		{Name: "NU2", Doodson: [6]int{2, -1, 2, -1, 0, 0}, Satellites: satsM2},
		{Name: "M2", Doodson: [6]int{2, 0, 0, 0, 0, 0}, Satellites: satsM2},
		{Name: "LDA2", Doodson: [6]int{2, 1, -2, 1, 0, 0}, SemiCycles: -0.5, Satellites: satsM2},
		{Name: "L2", Doodson: [6]int{2, 1, 0, -1, 0, 0}, SemiCycles: -0.5, Satellites: satsL2},
		{Name: "T2", Doodson: [6]int{2, 2, -3, 0, 0, 1}},
		{Name: "S2", Doodson: [6]int{2, 2, -2, 0, 0, 0}, Satellites: satsS2},
		{Name: "R2", Doodson: [6]int{2, 2, -1, 0, 0, -1}, SemiCycles: -0.5},
		{Name: "K2", Doodson: [6]int{2, 2, 0, 0, 0, 0}, Satellites: satsK2},

		// Terdiurnal.
		{Name: "M3", Doodson: [6]int{3, 0, 0, 0, 0, 0}, SemiCycles: -0.5},

		// Shallow water.
		{Name: "M4", Shallow: []ShallowTerm{{2, "M2"}}},
		{Name: "M6", Shallow: []ShallowTerm{{3, "M2"}}},
		{Name: "M8", Shallow: []ShallowTerm{{4, "M2"}}},
		{Name: "MN4", Shallow: []ShallowTerm{{1, "M2"}, {1, "N2"}}},
		{Name: "MS4", Shallow: []ShallowTerm{{1, "M2"}, {1, "S2"}}},
		{Name: "S4", Shallow: []ShallowTerm{{2, "S2"}}},
		{Name: "MK3", Shallow: []ShallowTerm{{1, "M2"}, {1, "K1"}}},
		{Name: "2MK3", Shallow: []ShallowTerm{{2, "M2"}, {-1, "K1"}}},
		{Name: "2SM2", Shallow: []ShallowTerm{{2, "S2"}, {-1, "M2"}}},
	}
}

// DefaultPriority orders constituents by conventional tidal importance for
// automatic Rayleigh selection. Callers may supply their own ordering.
var DefaultPriority = []string{
	"M2", "S2", "N2", "K2",
	"K1", "O1", "P1", "Q1",
	"MF", "MM", "SSA", "SA",
	"M4", "MS4", "MN4",
	"NU2", "MU2", "2N2", "L2", "T2",
	"J1", "OO1", "RHO1", "2Q1", "LDA2",
	"M6", "MK3", "S4", "EPS2",
	"CHI1", "PI1", "PHI1", "THE1", "PSI1", "M1",
	"M3", "2MK3", "2SM2", "MSF", "M8", "R2",
}
