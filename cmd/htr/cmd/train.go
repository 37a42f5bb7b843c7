package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/gohtr/internal/pipeline"
	"github.com/MeKo-Tech/gohtr/internal/server"
	"github.com/MeKo-Tech/gohtr/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// trainCmd trains the recognizer from scratch.
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the recognizer on an IAM-style dataset",
	Long: `Train the recognizer on the words listed in <data-dir>/gt/words.txt.

The character list and the word corpus are written into the model directory
before training starts. After every epoch the model is validated, and a new
snapshot is saved whenever the character error rate improves. Training stops
after --early-stopping epochs without improvement or after --max-epochs.

Examples:
  htr train --data-dir data/iam
  htr train --batch-size 50 --early-stopping 10 --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
	addTrainFlags(trainCmd)
	bindTrainFlags(trainCmd)
}

func addTrainFlags(cmd *cobra.Command) {
	cmd.Flags().Int("batch-size", 100, "number of samples per batch")
	cmd.Flags().Int("early-stopping", 25, "stop after this many epochs without improvement")
	cmd.Flags().Int("max-epochs", 0, "stop after this many epochs (0 = no limit)")
	cmd.Flags().Bool("augment", true, "apply data augmentation to training images")
	cmd.Flags().Int64("seed", 0, "seed for shuffling, augmentation and weight init (0 = time based)")
	cmd.Flags().String("metrics-addr", "", "serve /health, /status and /metrics on this address")
	cmd.Flags().Bool("progress", false, "draw a progress bar on stderr")
}

func bindTrainFlags(cmd *cobra.Command) {
	bindFlag("training.batch_size", cmd.Flags().Lookup("batch-size"))
	bindFlag("training.early_stopping", cmd.Flags().Lookup("early-stopping"))
	bindFlag("training.max_epochs", cmd.Flags().Lookup("max-epochs"))
	bindFlag("training.augment", cmd.Flags().Lookup("augment"))
	bindFlag("training.seed", cmd.Flags().Lookup("seed"))
	bindFlag("metrics.addr", cmd.Flags().Lookup("metrics-addr"))
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cfg := GetConfig()
	opts := cfg.ToRunOptions(pipeline.ModeTrain)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	opts.Trainer.Metrics = pipeline.NewMetrics(reg)

	tracker := server.NewStatusTracker()
	progress := pipeline.NewMultiProgressCallback(
		tracker,
		pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug),
	)
	if showProgress, _ := cmd.Flags().GetBool("progress"); showProgress {
		progress.Add(pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr()))
	}
	opts.Trainer.Progress = progress

	serverDone := make(chan error, 1)
	serverCtx, stopServer := context.WithCancel(ctx)
	if cfg.Metrics.Addr != "" {
		srv := server.New(server.Config{
			Addr:     cfg.Metrics.Addr,
			Version:  version.String(),
			Registry: reg,
			Status:   tracker,
		})
		go func() { serverDone <- srv.Serve(serverCtx) }()
	} else {
		close(serverDone)
	}

	slog.Info("Training started", "data_dir", opts.DataDir, "model_dir", opts.ModelDir,
		"batch_size", opts.BatchSize, "early_stopping", opts.Trainer.EarlyStopping)
	res, err := pipeline.RunTrain(ctx, opts)

	stopServer()
	if serr := <-serverDone; serr != nil {
		slog.Error("Status server failed", "error", serr)
	}

	if res != nil {
		printTrainResult(cmd, res)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Training interrupted")
			return nil
		}
		return fmt.Errorf("training failed: %w", err)
	}
	return nil
}

func printTrainResult(cmd *cobra.Command, res *pipeline.Result) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Epochs: %d\n", res.Epochs)
	_, _ = fmt.Fprintf(out, "Snapshots saved: %d\n", res.Snapshots)
	if res.Snapshots > 0 {
		_, _ = fmt.Fprintf(out, "Best character error rate: %.2f%%\n", res.BestCharErrorRate*100)
	}
	if res.Reason != pipeline.StopNone {
		_, _ = fmt.Fprintf(out, "Stopped: %s\n", res.Reason)
	}
}
