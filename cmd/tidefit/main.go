// Package main provides a command-line harmonic analysis tool for gauge
// records stored as CSV.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"go.ngs.io/harmonic/internal/adapter/store/csv"
	"go.ngs.io/harmonic/internal/usecase"
)

func main() {
	var (
		input    = flag.String("input", "", "Path to the gauge record CSV (required)")
		lat      = flag.Float64("lat", 0, "Station latitude in degrees")
		noLat    = flag.Bool("no-lat", false, "Skip latitude-dependent nodal corrections")
		rayleigh = flag.Float64("rayleigh", 1.0, "Rayleigh resolution criterion")
		consts   = flag.String("constituents", "", "Comma-separated explicit constituent list (overrides automatic selection)")
		shallow  = flag.String("shallow", "", "Comma-separated shallow-water constituents to force-include")
		trend    = flag.String("trend", "mean", "Secular mode: mean or linear")
		solver   = flag.String("solver", "auto", "Solver mode: auto, direct or normal")
		method   = flag.String("errors", "linear", "Error estimation: linear, wboot or cboot")
		trials   = flag.Int("trials", 0, "Bootstrap trial count (0 uses the default)")
		seed     = flag.Int64("seed", 0, "Bootstrap random seed")
		snr      = flag.Float64("snr", 0, "SNR threshold for the reconstructed series")
		recon    = flag.Bool("reconstruction", false, "Include the reconstructed series in the output")
		pretty   = flag.Bool("pretty", true, "Indent the JSON output")
	)
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: tidefit -input <record.csv> [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	dir := filepath.Dir(*input)
	name := strings.TrimSuffix(filepath.Base(*input), ".csv")

	loader := csv.NewStore(dir)
	uc := usecase.NewAnalysisUseCase(loader)

	req := usecase.AnalyzeRequest{
		RecordName:            name,
		Rayleigh:              *rayleigh,
		Trend:                 *trend,
		Solver:                *solver,
		ErrorMethod:           *method,
		Trials:                *trials,
		Seed:                  *seed,
		SNRThreshold:          *snr,
		IncludeReconstruction: *recon,
	}
	if !*noLat {
		req.Latitude = lat
	}
	if *consts != "" {
		req.Constituents = splitList(*consts)
	}
	if *shallow != "" {
		req.Shallow = splitList(*shallow)
	}

	resp, err := uc.Execute(req)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(resp); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
