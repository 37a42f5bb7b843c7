package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/gohtr/internal/benchmark"
	"github.com/MeKo-Tech/gohtr/internal/version"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	defaults := benchmark.DefaultModelConfig()
	var (
		iterations = flag.Int("iterations", 3, "Number of iterations per benchmark")
		batchSize  = flag.Int("batch-size", defaults.BatchSize, "Samples per batch")
		width      = flag.Int("width", defaults.Width, "Training image width")
		only       = flag.String("only", "", "Run a single benchmark (preprocess, preprocess-single, infer, infer-probability, train)")
		outputFile = flag.String("output", "", "Write results as CSV to this file (optional)")
	)
	flag.Parse()

	fmt.Printf("htr %s model benchmark\n", version.Version)
	fmt.Println("==========================")

	cfg := defaults
	cfg.BatchSize = *batchSize
	cfg.Width = *width

	mb, err := benchmark.NewModelBenchmark(cfg)
	if err != nil {
		slog.Error("Failed to set up benchmark", "error", err)
		os.Exit(1)
	}
	defer func() { _ = mb.Close() }()

	fmt.Printf("Running benchmarks with %d iterations, batch size %d...\n", *iterations, cfg.BatchSize)
	if *only != "" {
		res := mb.Run(*only, *iterations)
		fmt.Println(res.String())
		if res.Error != nil {
			os.Exit(1)
		}
		return
	}
	mb.RunAll(*iterations)
	mb.WriteResults(os.Stdout)

	if *outputFile != "" {
		if err := saveResultsToFile(*outputFile, mb.Suite); err != nil {
			slog.Error("Failed to save results", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Results saved to: %s\n", *outputFile)
	}
}

func saveResultsToFile(filename string, suite *benchmark.Suite) error {
	file, err := os.Create(filename) //nolint:gosec // G304: user-chosen output path
	if err != nil {
		return err
	}
	if err := suite.WriteCSV(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
