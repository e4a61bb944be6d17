// Package csv provides CSV-based loading of gauge records and constituent
// tables.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.ngs.io/harmonic/internal/domain"
)

// Store reads gauge observations and constituent tables from a directory.
type Store struct {
	dataDir string
}

// NewStore creates a new CSV-based store.
func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// LoadSeries reads a gauge record named <name>.csv. The expected layout is
// a header of either "time,height" (scalar) or "time,u,v" (vector) with
// RFC3339 timestamps at a uniform interval. Empty or "NaN" value cells mark
// missing samples.
func (s *Store) LoadSeries(name string) (*domain.Series, error) {
	filename := filepath.Join(s.dataDir, fmt.Sprintf("%s.csv", strings.ToLower(name)))

	//nolint:gosec // G304: path constructed from configured dataDir and a validated name.
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open gauge record %s: %w", name, err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	var vector bool
	switch {
	case len(header) == 2 && header[0] == "time" && header[1] == "height":
		vector = false
	case len(header) == 3 && header[0] == "time" && header[1] == "u" && header[2] == "v":
		vector = true
	default:
		return nil, fmt.Errorf("invalid CSV header: expected [time height] or [time u v], got %v", header)
	}

	var times []time.Time
	var values []complex128
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", record[0], err)
		}
		times = append(times, t.UTC())

		re, err := parseSample(record[1])
		if err != nil {
			return nil, fmt.Errorf("invalid value at %s: %w", record[0], err)
		}
		im := 0.0
		if vector {
			im, err = parseSample(record[2])
			if err != nil {
				return nil, fmt.Errorf("invalid value at %s: %w", record[0], err)
			}
			if math.IsNaN(re) || math.IsNaN(im) {
				re, im = math.NaN(), math.NaN()
			}
		}
		values = append(values, complex(re, im))
	}
	if len(values) < 2 {
		return nil, fmt.Errorf("gauge record %s holds %d samples, need at least 2", name, len(values))
	}

	interval := times[1].Sub(times[0]).Hours()
	if interval <= 0 {
		return nil, fmt.Errorf("gauge record %s is not in ascending time order", name)
	}
	for i := 1; i < len(times); i++ {
		dt := times[i].Sub(times[i-1]).Hours()
		if math.Abs(dt-interval) > 1e-9 {
			return nil, fmt.Errorf("gauge record %s is not uniformly sampled: step %d is %.6g hours, expected %.6g",
				name, i, dt, interval)
		}
	}

	return &domain.Series{
		Start:         times[0],
		IntervalHours: interval,
		Values:        values,
		Vector:        vector,
	}, nil
}

// LoadTable reads a constituent table named <name>_constituents.csv with
// the header "constituent,amplitude_m,phase_deg". Frequencies come from
// the default catalog.
func (s *Store) LoadTable(name string) (*domain.TidalConstituentReport, error) {
	filename := filepath.Join(s.dataDir, fmt.Sprintf("%s_constituents.csv", strings.ToLower(name)))

	//nolint:gosec // G304: path constructed from configured dataDir and a validated name.
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open constituent table %s: %w", name, err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	expected := []string{"constituent", "amplitude_m", "phase_deg"}
	if len(header) != len(expected) {
		return nil, fmt.Errorf("invalid CSV header: expected %v, got %v", expected, header)
	}
	for i, h := range header {
		if h != expected[i] {
			return nil, fmt.Errorf("invalid CSV header: expected column %d to be %s, got %s", i, expected[i], h)
		}
	}

	cat := domain.DefaultCatalog()
	rep := &domain.TidalConstituentReport{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		cname := strings.TrimSpace(record[0])
		ci, ok := cat.Lookup(cname)
		if !ok {
			return nil, fmt.Errorf("unknown constituent %s", cname)
		}
		amp, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amplitude for constituent %s: %w", cname, err)
		}
		phase, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid phase for constituent %s: %w", cname, err)
		}
		rep.Entries = append(rep.Entries, domain.ReportEntry{
			Name:      cname,
			FreqCPH:   cat.Constituents[ci].FreqCPH,
			Amplitude: amp,
			PhaseDeg:  phase,
			SNR:       math.Inf(1),
		})
	}
	if len(rep.Entries) == 0 {
		return nil, fmt.Errorf("no constituents found in table %s", name)
	}
	return rep, nil
}

// ListRecords returns the gauge record names available in the data
// directory.
func (s *Store) ListRecords() ([]string, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}
	records := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".csv") && !strings.HasSuffix(name, "_constituents.csv") {
			records = append(records, strings.TrimSuffix(name, ".csv"))
		}
	}
	return records, nil
}

func parseSample(field string) (float64, error) {
	field = strings.TrimSpace(field)
	if field == "" || strings.EqualFold(field, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(field, 64)
}
