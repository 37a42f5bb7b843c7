package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/gohtr/internal/pipeline"
	"github.com/spf13/cobra"
)

// validateCmd evaluates the latest snapshot on the validation partition.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Evaluate the saved model on the validation partition",
	Long: `Restore the latest snapshot from the model directory and report the
character error rate and word accuracy on the validation partition of the
dataset. The dataset split is the same as during training when the seed and
data directory match.

Examples:
  htr validate --data-dir data/iam --model-dir model`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	opts := GetConfig().ToRunOptions(pipeline.ModeValidate)

	cer, wa, err := pipeline.RunValidate(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Character error rate: %.2f%%. Word accuracy: %.2f%%.\n",
		cer*100, wa*100)
	return nil
}
