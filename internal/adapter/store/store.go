package store

import "go.ngs.io/harmonic/internal/domain"

// SeriesLoader is the interface for loading observation series from a
// backing format. Implementations mark missing samples as NaN.
type SeriesLoader interface {
	// LoadSeries reads the observation series stored under the given name.
	LoadSeries(name string) (*domain.Series, error)
}

// TableLoader is the interface for loading previously computed constituent
// tables for standalone prediction.
type TableLoader interface {
	// LoadTable reads a constituent table stored under the given name.
	LoadTable(name string) (*domain.TidalConstituentReport, error)
}
