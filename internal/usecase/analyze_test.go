package usecase

import (
	"math"
	"strings"
	"testing"
	"time"

	"go.ngs.io/harmonic/internal/domain"
)

var reqStart = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func m2Heights(n int) []float64 {
	cat := domain.DefaultCatalog()
	f := cat.Constituents[cat.MustLookup("M2")].FreqCPH
	out := make([]float64, n)
	for i := range out {
		out[i] = 1.5 + 0.8*math.Cos(2*math.Pi*f*float64(i)-domain.Deg2Rad(110))
	}
	return out
}

func TestAnalyzeRequestValidate(t *testing.T) {
	lat91 := 91.0
	cases := []struct {
		name    string
		req     AnalyzeRequest
		wantErr string
	}{
		{
			name:    "no source",
			req:     AnalyzeRequest{Start: reqStart, IntervalHours: 1},
			wantErr: "must be provided",
		},
		{
			name: "two sources",
			req: AnalyzeRequest{
				Start: reqStart, IntervalHours: 1,
				Heights: []float64{1, 2}, RecordName: "gauge1",
			},
			wantErr: "mutually exclusive",
		},
		{
			name: "uneven uv",
			req: AnalyzeRequest{
				Start: reqStart, IntervalHours: 1,
				U: []float64{1, 2}, V: []float64{1},
			},
			wantErr: "equal length",
		},
		{
			name:    "missing interval",
			req:     AnalyzeRequest{Start: reqStart, Heights: []float64{1, 2}},
			wantErr: "interval_hours",
		},
		{
			name:    "missing start",
			req:     AnalyzeRequest{IntervalHours: 1, Heights: []float64{1, 2}},
			wantErr: "start time",
		},
		{
			name: "bad latitude",
			req: AnalyzeRequest{
				Start: reqStart, IntervalHours: 1,
				Heights: []float64{1, 2}, Latitude: &lat91,
			},
			wantErr: "latitude",
		},
		{
			name: "bad trend",
			req: AnalyzeRequest{
				Start: reqStart, IntervalHours: 1,
				Heights: []float64{1, 2}, Trend: "quadratic",
			},
			wantErr: "trend",
		},
		{
			name: "bad solver",
			req: AnalyzeRequest{
				Start: reqStart, IntervalHours: 1,
				Heights: []float64{1, 2}, Solver: "svd",
			},
			wantErr: "solver",
		},
		{
			name: "bad error method",
			req: AnalyzeRequest{
				Start: reqStart, IntervalHours: 1,
				Heights: []float64{1, 2}, ErrorMethod: "jackknife",
			},
			wantErr: "error method",
		},
		{
			name: "too many trials",
			req: AnalyzeRequest{
				Start: reqStart, IntervalHours: 1,
				Heights: []float64{1, 2}, Trials: 10001,
			},
			wantErr: "trials",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}

	ok := AnalyzeRequest{Start: reqStart, IntervalHours: 1, Heights: []float64{1, 2}}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
	byName := AnalyzeRequest{RecordName: "gauge1"}
	if err := byName.Validate(); err != nil {
		t.Errorf("record-name request should not need start or interval: %v", err)
	}
}

func TestAnalysisExecuteInlineHeights(t *testing.T) {
	uc := NewAnalysisUseCase(nil)
	resp, err := uc.Execute(AnalyzeRequest{
		Start:         reqStart,
		IntervalHours: 1,
		Heights:       m2Heights(60*24 + 1),
	})
	if err != nil {
		t.Fatal(err)
	}
	var m2 *ConstituentRow
	for i := range resp.Constituents {
		if resp.Constituents[i].Name == "M2" {
			m2 = &resp.Constituents[i]
		}
	}
	if m2 == nil {
		t.Fatal("M2 missing from response")
	}
	if math.Abs(m2.Amplitude-0.8) > 1e-6 {
		t.Errorf("M2 amplitude %v, want 0.8", m2.Amplitude)
	}
	if math.Abs(m2.PhaseDeg-110) > 1e-4 {
		t.Errorf("M2 phase %v, want 110", m2.PhaseDeg)
	}
	if len(resp.Mean) != 1 || math.Abs(resp.Mean[0]-1.5) > 1e-6 {
		t.Errorf("mean %v, want [1.5]", resp.Mean)
	}
	if resp.CapturedFraction < 0.999999 {
		t.Errorf("captured fraction %v on a clean signal", resp.CapturedFraction)
	}
	if resp.Meta["model"] != engineVersion {
		t.Errorf("meta model = %q", resp.Meta["model"])
	}
	if resp.Meta["request_id"] == "" {
		t.Error("missing request id")
	}
	if len(resp.Reconstruction) != 0 {
		t.Error("reconstruction returned without being requested")
	}
}

func TestAnalysisExecuteReconstruction(t *testing.T) {
	uc := NewAnalysisUseCase(nil)
	heights := m2Heights(30*24 + 1)
	resp, err := uc.Execute(AnalyzeRequest{
		Start:                 reqStart,
		IntervalHours:         1,
		Heights:               heights,
		IncludeReconstruction: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Reconstruction) != len(heights) {
		t.Fatalf("reconstruction has %d points, want %d", len(resp.Reconstruction), len(heights))
	}
	first := resp.Reconstruction[0]
	if first.Time != "2023-01-01T00:00:00Z" {
		t.Errorf("first timestamp = %q", first.Time)
	}
	if math.Abs(first.Value-heights[0]) > 1e-5 {
		t.Errorf("first value %v, want %v", first.Value, heights[0])
	}
}

func TestAnalysisExecuteRecordWithoutStore(t *testing.T) {
	uc := NewAnalysisUseCase(nil)
	_, err := uc.Execute(AnalyzeRequest{RecordName: "gauge1"})
	if err == nil || !strings.Contains(err.Error(), "no series store") {
		t.Fatalf("err = %v, want missing-store error", err)
	}
}
