// Package ncgauge provides NetCDF-based loading of gauge observation
// series.
package ncgauge

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/harmonic/internal/domain"
)

// Store reads gauge records from NetCDF files in a directory. Each record
// is one file holding a "time" coordinate (hours or seconds since an epoch
// named in its units attribute) plus either a "height" variable (scalar
// series) or "u" and "v" variables (vector series).
type Store struct {
	dataDir string
}

// NewStore creates a new NetCDF gauge store.
func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// LoadSeries reads the record named <name>.nc.
func (s *Store) LoadSeries(name string) (*domain.Series, error) {
	filename := filepath.Join(s.dataDir, fmt.Sprintf("%s.nc", strings.ToLower(name)))

	nc, err := netcdf.OpenFile(filename, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open gauge record %s: %w", name, err)
	}
	defer func() { _ = nc.Close() }()

	timeVar, err := nc.Var("time")
	if err != nil {
		return nil, fmt.Errorf("gauge record %s has no time variable: %w", name, err)
	}
	offsets, err := readFloat64Var(timeVar)
	if err != nil {
		return nil, fmt.Errorf("failed to read time axis: %w", err)
	}
	if len(offsets) < 2 {
		return nil, fmt.Errorf("gauge record %s holds %d samples, need at least 2", name, len(offsets))
	}
	epoch, scale, err := parseTimeUnits(timeVar)
	if err != nil {
		return nil, fmt.Errorf("gauge record %s: %w", name, err)
	}

	interval := (offsets[1] - offsets[0]) * scale
	if interval <= 0 {
		return nil, fmt.Errorf("gauge record %s is not in ascending time order", name)
	}
	for i := 1; i < len(offsets); i++ {
		dt := (offsets[i] - offsets[i-1]) * scale
		if math.Abs(dt-interval) > 1e-9 {
			return nil, fmt.Errorf("gauge record %s is not uniformly sampled", name)
		}
	}

	values, vector, err := readObservations(nc, len(offsets))
	if err != nil {
		return nil, fmt.Errorf("gauge record %s: %w", name, err)
	}

	start := epoch.Add(time.Duration(offsets[0] * scale * float64(time.Hour)))
	return &domain.Series{
		Start:         start,
		IntervalHours: interval,
		Values:        values,
		Vector:        vector,
	}, nil
}

// readObservations pulls the height (or u,v) variables and converts fill
// values to NaN.
func readObservations(nc netcdf.Dataset, n int) ([]complex128, bool, error) {
	if v, err := nc.Var("height"); err == nil {
		re, err := readMasked(v, n)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read height: %w", err)
		}
		values := make([]complex128, n)
		for i := range values {
			values[i] = complex(re[i], 0)
		}
		return values, false, nil
	}

	uVar, errU := nc.Var("u")
	vVar, errV := nc.Var("v")
	if errU != nil || errV != nil {
		return nil, false, fmt.Errorf("no height variable and no u,v pair present")
	}
	us, err := readMasked(uVar, n)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read u: %w", err)
	}
	vs, err := readMasked(vVar, n)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read v: %w", err)
	}
	values := make([]complex128, n)
	for i := range values {
		if math.IsNaN(us[i]) || math.IsNaN(vs[i]) {
			values[i] = complex(math.NaN(), math.NaN())
		} else {
			values[i] = complex(us[i], vs[i])
		}
	}
	return values, true, nil
}

// readMasked reads a 1D variable and replaces its fill value with NaN.
func readMasked(v netcdf.Var, n int) ([]float64, error) {
	data, err := readFloat64Var(v)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("length mismatch: %d values on a %d-sample time axis", len(data), n)
	}
	if fv, ok := fillValue(v); ok {
		for i := range data {
			if data[i] == fv {
				data[i] = math.NaN()
			}
		}
	}
	return data, nil
}

// parseTimeUnits interprets a CF-style units attribute such as
// "hours since 1990-01-01 00:00:00" and returns the epoch together with the
// factor converting offsets to hours.
func parseTimeUnits(v netcdf.Var) (time.Time, float64, error) {
	attr := v.Attr("units")
	n, err := attr.Len()
	if err != nil || n == 0 {
		return time.Time{}, 0, fmt.Errorf("time variable has no units attribute")
	}
	buf := make([]byte, n)
	if err := attr.ReadBytes(buf); err != nil {
		return time.Time{}, 0, fmt.Errorf("failed to read time units: %w", err)
	}
	units := strings.TrimRight(string(buf), "\x00")

	parts := strings.SplitN(units, " since ", 2)
	if len(parts) != 2 {
		return time.Time{}, 0, fmt.Errorf("unsupported time units %q", units)
	}
	var scale float64
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "hours":
		scale = 1
	case "minutes":
		scale = 1.0 / 60
	case "seconds":
		scale = 1.0 / 3600
	case "days":
		scale = 24
	default:
		return time.Time{}, 0, fmt.Errorf("unsupported time unit %q", parts[0])
	}

	stamp := strings.TrimSpace(parts[1])
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, stamp); err == nil {
			return t.UTC(), scale, nil
		}
	}
	return time.Time{}, 0, fmt.Errorf("unsupported time epoch %q", stamp)
}

// fillValue returns the _FillValue or missing_value attribute if present.
func fillValue(v netcdf.Var) (float64, bool) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		a := v.Attr(name)
		if n, err := a.Len(); err != nil || n == 0 {
			continue
		}
		buf64 := make([]float64, 1)
		if err := a.ReadFloat64s(buf64); err == nil {
			return buf64[0], true
		}
		buf32 := make([]float32, 1)
		if err := a.ReadFloat32s(buf32); err == nil {
			return float64(buf32[0]), true
		}
	}
	return 0, false
}

// readFloat64Var reads a 1D variable of any numeric type as float64.
func readFloat64Var(v netcdf.Var) ([]float64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("expected 1D variable, got %dD", len(dims))
	}
	length, err := dims[0].Len()
	if err != nil {
		return nil, err
	}

	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get var type: %w", err)
	}
	switch t {
	case netcdf.DOUBLE:
		data := make([]float64, length)
		if err := v.ReadFloat64s(data); err != nil {
			return nil, err
		}
		return data, nil
	case netcdf.FLOAT:
		tmp := make([]float32, length)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, length)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.INT:
		tmp := make([]int32, length)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, length)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.SHORT:
		tmp := make([]int16, length)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, length)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
}
