package domain

import (
	"math"
	"time"
)

// Series is a uniformly sampled observation record. Scalar records (water
// level) carry their values in the real part; vector records (U + iV
// velocity) set Vector and use both parts. Missing samples are NaN and are
// first-class: they are excluded from fitting but preserved positionally.
type Series struct {
	Start         time.Time
	IntervalHours float64
	Values        []complex128
	Vector        bool
}

// IsMissing reports whether a sample is a gap marker.
func IsMissing(v complex128) bool {
	return math.IsNaN(real(v)) || math.IsNaN(imag(v))
}

// Len returns the number of samples including gaps.
func (s *Series) Len() int { return len(s.Values) }

// RecordHours is the spanned record length in hours.
func (s *Series) RecordHours() float64 {
	if len(s.Values) < 2 {
		return 0
	}
	return float64(len(s.Values)-1) * s.IntervalHours
}

// CentralTime is the midpoint of the record, the reference instant for
// nodal corrections and the fit's time origin.
func (s *Series) CentralTime() time.Time {
	half := s.RecordHours() / 2.0
	return s.Start.Add(time.Duration(half * float64(time.Hour)))
}

// ValidCount returns the number of non-gap samples.
func (s *Series) ValidCount() int {
	n := 0
	for _, v := range s.Values {
		if !IsMissing(v) {
			n++
		}
	}
	return n
}

// validIndices lists the sample positions that participate in the fit.
func (s *Series) validIndices() []int {
	idx := make([]int, 0, len(s.Values))
	for i, v := range s.Values {
		if !IsMissing(v) {
			idx = append(idx, i)
		}
	}
	return idx
}

// Variance is the sample variance of the valid observations about their
// mean, summing real and imaginary channels.
func (s *Series) Variance() float64 {
	var sum complex128
	n := 0
	for _, v := range s.Values {
		if !IsMissing(v) {
			sum += v
			n++
		}
	}
	if n < 2 {
		return 0
	}
	mean := sum / complex(float64(n), 0)
	ss := 0.0
	for _, v := range s.Values {
		if !IsMissing(v) {
			d := v - mean
			ss += real(d)*real(d) + imag(d)*imag(d)
		}
	}
	return ss / float64(n-1)
}

// SpansNodalPeriod reports whether the record is long enough to resolve
// satellite lines directly.
func (s *Series) SpansNodalPeriod() bool {
	return s.RecordHours() >= NodalPeriodYears*365.25*24.0
}
