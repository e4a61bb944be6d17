// Package main provides the harmonic analysis HTTP server.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/kelseyhightower/envconfig"

	"go.ngs.io/harmonic/internal/adapter/store"
	"go.ngs.io/harmonic/internal/adapter/store/csv"
	"go.ngs.io/harmonic/internal/adapter/store/ncgauge"
	httpHandler "go.ngs.io/harmonic/internal/http"
	"go.ngs.io/harmonic/internal/usecase"
)

const version = "1.0.0"

// Config holds the server configuration, read from the environment.
type Config struct {
	Port    string `default:"8080"`
	DataDir string `split_words:"true" default:"./data"`

	// SeriesFormat selects the gauge record backend: "csv" or "netcdf".
	SeriesFormat string `split_words:"true" default:"csv"`
}

func main() {
	// Parse command-line flags.
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("harmonic version %s\n", version)
		return
	}

	// Load configuration from environment.
	var cfg Config
	if err := envconfig.Process("harmonic", &cfg); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting harmonic analysis server...")
	log.Printf("Port: %s", cfg.Port)
	log.Printf("Data directory: %s", cfg.DataDir)
	log.Printf("Series format: %s", cfg.SeriesFormat)

	// Initialize stores.
	csvStore := csv.NewStore(cfg.DataDir)
	var seriesLoader store.SeriesLoader
	switch cfg.SeriesFormat {
	case "csv":
		seriesLoader = csvStore
	case "netcdf":
		seriesLoader = ncgauge.NewStore(cfg.DataDir)
	default:
		log.Fatalf("Unknown series format %q (expected csv or netcdf)", cfg.SeriesFormat)
	}

	// Initialize use cases.
	analysisUC := usecase.NewAnalysisUseCase(seriesLoader)
	predictionUC := usecase.NewPredictionUseCase(csvStore)

	// Setup router.
	router := httpHandler.SetupRouter(analysisUC, predictionUC)

	// Start server.
	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Server listening on %s", addr)
	log.Printf("Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("API endpoints:")
	log.Printf("  - POST /v1/analyze")
	log.Printf("  - POST /v1/predict")
	log.Printf("  - GET  /v1/constituents")
	log.Printf("  - GET  /metrics")

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("Harmonic Analysis Server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  harmonic-server [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  HARMONIC_PORT             Server port (default: 8080)")
	fmt.Println("  HARMONIC_DATA_DIR         Gauge record directory (default: ./data)")
	fmt.Println("  HARMONIC_SERIES_FORMAT    Gauge record backend: csv or netcdf (default: csv)")
	fmt.Println("  CORS_ALLOWED_ORIGINS      Comma-separated list of allowed origins (default: all origins)")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET  /health              Health check")
	fmt.Println("  GET  /v1/constituents     List tidal constituents")
	fmt.Println("  POST /v1/analyze          Run a harmonic analysis")
	fmt.Println("  POST /v1/predict          Predict tides from a constituent table")
	fmt.Println("  GET  /metrics             Prometheus metrics")
	fmt.Println()
}
