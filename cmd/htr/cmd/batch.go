package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/gohtr/internal/batch"
	"github.com/MeKo-Tech/gohtr/internal/pipeline"
	"github.com/spf13/cobra"
)

// batchCmd recognizes many word images with one model.
var batchCmd = &cobra.Command{
	Use:   "batch [files or directories...]",
	Short: "Recognize many word images",
	Long: `Recognize every word image in the given files and directories with the
latest snapshot from the model directory. Images are loaded in parallel and
fed to the network in batches. Unreadable files are reported per file.

Examples:
  htr batch scans/
  htr batch scans/ --recursive --include "*.png" --format csv --output results.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	batchCmd.Flags().StringSlice("include", nil, "only include files matching these glob patterns")
	batchCmd.Flags().StringSlice("exclude", nil, "exclude files matching these glob patterns")
	batchCmd.Flags().Int("workers", 0, "parallel image loaders (0 = number of CPUs)")
	batchCmd.Flags().Int("batch-size", 32, "images per model call")
	batchCmd.Flags().String("format", "text", "output format (text, json, csv)")
	batchCmd.Flags().StringP("output", "o", "", "write results to this file instead of stdout")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	opts := cfg.ToRunOptions(pipeline.ModeInfer)

	bcfg := batch.DefaultConfig(opts.Architecture.Height, opts.InferencePadding)
	bcfg.Recursive, _ = cmd.Flags().GetBool("recursive")
	bcfg.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	bcfg.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		bcfg.Workers = workers
	}
	bcfg.BatchSize, _ = cmd.Flags().GetInt("batch-size")
	format, _ := cmd.Flags().GetString("format")
	outputFile, _ := cmd.Flags().GetString("output")

	model, err := pipeline.RestoreModel(opts)
	if err != nil {
		return fmt.Errorf("failed to restore model: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := batch.Process(ctx, model, args, bcfg)
	if err != nil {
		return fmt.Errorf("batch recognition failed: %w", err)
	}

	if outputFile != "" {
		if err := res.SaveResults(format, outputFile); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputFile)
		return nil
	}
	output, err := res.FormatResults(format)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprint(cmd.OutOrStdout(), output)
	return nil
}
