package domain

import "fmt"

// InvalidConfigurationError reports contradictory or out-of-range analysis
// options (unknown constituent names, negative intervals, bad thresholds).
type InvalidConfigurationError struct {
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// InsufficientDataError reports that fewer usable samples remain than
// unknowns, or that the record is too short for a selected constituent.
type InsufficientDataError struct {
	Samples  int
	Unknowns int
	Reason   string
}

func (e *InsufficientDataError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("insufficient data: %s", e.Reason)
	}
	return fmt.Sprintf("insufficient data: %d usable samples for %d unknowns", e.Samples, e.Unknowns)
}

// RankDeficientError reports that the selected constituents cannot be
// resolved given the actual (post-gap) sampling pattern.
type RankDeficientError struct {
	Reason string
}

func (e *RankDeficientError) Error() string {
	return fmt.Sprintf("rank-deficient system: %s", e.Reason)
}

// EmptySeriesError reports a series with no usable samples.
type EmptySeriesError struct{}

func (e *EmptySeriesError) Error() string {
	return "empty series: no usable samples"
}

func invalidConfigf(format string, args ...interface{}) error {
	return &InvalidConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
