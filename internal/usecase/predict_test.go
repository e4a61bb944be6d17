package usecase

import (
	"math"
	"strings"
	"testing"
	"time"
)

func validPredictionRequest() PredictionRequest {
	return PredictionRequest{
		Constituents: []TableEntry{{Name: "M2", Amplitude: 1.0, PhaseDeg: 0}},
		Start:        reqStart,
		End:          reqStart.Add(48 * time.Hour),
		Interval:     10 * time.Minute,
	}
}

func TestPredictionRequestValidate(t *testing.T) {
	lat91 := -91.0
	cases := []struct {
		name    string
		mutate  func(*PredictionRequest)
		wantErr string
	}{
		{
			name:    "no table",
			mutate:  func(r *PredictionRequest) { r.Constituents = nil },
			wantErr: "must be provided",
		},
		{
			name: "both sources",
			mutate: func(r *PredictionRequest) {
				r.TableName = "station"
			},
			wantErr: "mutually exclusive",
		},
		{
			name:    "bad latitude",
			mutate:  func(r *PredictionRequest) { r.Latitude = &lat91 },
			wantErr: "latitude",
		},
		{
			name:    "start after end",
			mutate:  func(r *PredictionRequest) { r.End = r.Start.Add(-time.Hour) },
			wantErr: "before end",
		},
		{
			name:    "interval too short",
			mutate:  func(r *PredictionRequest) { r.Interval = 30 * time.Second },
			wantErr: "at least 1 minute",
		},
		{
			name:    "interval too long",
			mutate:  func(r *PredictionRequest) { r.Interval = 7 * time.Hour },
			wantErr: "at most 6 hours",
		},
		{
			name:    "range too long",
			mutate:  func(r *PredictionRequest) { r.End = r.Start.Add(400 * 24 * time.Hour) },
			wantErr: "365 days",
		},
		{
			name: "too many points",
			mutate: func(r *PredictionRequest) {
				r.End = r.Start.Add(300 * 24 * time.Hour)
				r.Interval = time.Minute
			},
			wantErr: "too many prediction points",
		},
		{
			name: "times and grid together",
			mutate: func(r *PredictionRequest) {
				r.Times = []time.Time{reqStart}
			},
			wantErr: "mutually exclusive",
		},
		{
			name: "too many explicit times",
			mutate: func(r *PredictionRequest) {
				r.Start, r.End, r.Interval = time.Time{}, time.Time{}, 0
				r.Times = make([]time.Time, 100001)
			},
			wantErr: "too many prediction points",
		},
		{
			name:    "bad analysis mode",
			mutate:  func(r *PredictionRequest) { r.AnalysisMode = "hourly" },
			wantErr: "analysis_mode",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validPredictionRequest()
			tc.mutate(&req)
			err := req.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}

	req := validPredictionRequest()
	if err := req.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	timesReq := PredictionRequest{
		Constituents: []TableEntry{{Name: "M2", Amplitude: 1.0}},
		Times:        []time.Time{reqStart.Add(3 * time.Hour), reqStart},
		AnalysisMode: "full",
	}
	if err := timesReq.Validate(); err != nil {
		t.Errorf("explicit-times request rejected: %v", err)
	}
}

func TestPredictionExecuteInlineTable(t *testing.T) {
	uc := NewPredictionUseCase(nil)
	resp, err := uc.Execute(validPredictionRequest())
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Constituents) != 1 || resp.Constituents[0] != "M2" {
		t.Errorf("constituents = %v", resp.Constituents)
	}
	wantPoints := 48*6 + 1
	if len(resp.Predictions) != wantPoints {
		t.Fatalf("got %d predictions, want %d", len(resp.Predictions), wantPoints)
	}
	if resp.Predictions[0].Time != "2023-01-01T00:00:00Z" {
		t.Errorf("first timestamp = %q", resp.Predictions[0].Time)
	}
	for _, p := range resp.Predictions {
		if math.Abs(p.Value) > 1.0001 {
			t.Fatalf("prediction %v exceeds the unit amplitude", p.Value)
		}
	}
	// Two days of a semidiurnal constituent carry three or four full highs.
	if n := len(resp.Extrema.Highs); n < 3 || n > 4 {
		t.Errorf("got %d highs in 48h, want 3 or 4", n)
	}
	if resp.Meta["model"] != engineVersion {
		t.Errorf("meta model = %q", resp.Meta["model"])
	}
	if resp.Meta["timezone"] != "+00:00" {
		t.Errorf("meta timezone = %q", resp.Meta["timezone"])
	}
}

func TestPredictionExecuteExplicitTimes(t *testing.T) {
	uc := NewPredictionUseCase(nil)
	gridResp, err := uc.Execute(validPredictionRequest())
	if err != nil {
		t.Fatal(err)
	}

	// Unordered targets that sit on the 10-minute grid; heights must match
	// the grid run point for point, in request order.
	offsets := []time.Duration{2 * time.Hour, 40 * time.Hour, 0}
	req := PredictionRequest{
		Constituents: []TableEntry{{Name: "M2", Amplitude: 1.0, PhaseDeg: 0}},
		Times:        make([]time.Time, len(offsets)),
	}
	for j, off := range offsets {
		req.Times[j] = reqStart.Add(off)
	}
	resp, err := uc.Execute(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Predictions) != len(offsets) {
		t.Fatalf("got %d predictions, want %d", len(resp.Predictions), len(offsets))
	}
	for j, off := range offsets {
		idx := int(off / (10 * time.Minute))
		want := gridResp.Predictions[idx]
		if resp.Predictions[j].Time != want.Time {
			t.Errorf("prediction %d at %q, want %q", j, resp.Predictions[j].Time, want.Time)
		}
		// The two runs center their nodal reference differently, so allow
		// one rounding step on top of the slow-drift difference.
		if math.Abs(resp.Predictions[j].Value-want.Value) > 0.002 {
			t.Errorf("prediction %d = %v, grid gives %v", j, resp.Predictions[j].Value, want.Value)
		}
	}
	if len(resp.Extrema.Highs) != 0 || len(resp.Extrema.Lows) != 0 {
		t.Errorf("explicit-times prediction should carry no extrema, got %+v", resp.Extrema)
	}
}

func TestPredictionExecuteFullAnalysisMode(t *testing.T) {
	uc := NewPredictionUseCase(nil)
	lat := 45.0
	req := validPredictionRequest()
	req.Latitude = &lat
	req.AnalysisMode = "full"
	resp, err := uc.Execute(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Predictions) != 48*6+1 {
		t.Fatalf("got %d predictions", len(resp.Predictions))
	}
	for _, p := range resp.Predictions {
		if math.Abs(p.Value) > 1.1 {
			t.Fatalf("prediction %v implausible for unit amplitude", p.Value)
		}
	}
}

func TestPredictionExecuteUnknownConstituent(t *testing.T) {
	uc := NewPredictionUseCase(nil)
	req := validPredictionRequest()
	req.Constituents = []TableEntry{{Name: "ZZ9", Amplitude: 1}}
	if _, err := uc.Execute(req); err == nil {
		t.Fatal("expected error for unknown constituent")
	}
}

func TestPredictionExecuteTableWithoutStore(t *testing.T) {
	uc := NewPredictionUseCase(nil)
	req := validPredictionRequest()
	req.Constituents = nil
	req.TableName = "station"
	_, err := uc.Execute(req)
	if err == nil || !strings.Contains(err.Error(), "no table store") {
		t.Fatalf("err = %v, want missing-store error", err)
	}
}
