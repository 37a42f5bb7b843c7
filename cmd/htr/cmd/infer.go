package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/MeKo-Tech/gohtr/internal/pipeline"
	"github.com/spf13/cobra"
)

// inferCmd recognizes the word in a single image.
var inferCmd = &cobra.Command{
	Use:   "infer [image]",
	Short: "Recognize the handwritten word in an image",
	Long: `Recognize the handwritten word in a single image using the latest
snapshot from the model directory. The image is scaled to the network height
and keeps its aspect ratio.

Examples:
  htr infer word.png
  htr infer --img-file word.png --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInfer,
}

func init() {
	rootCmd.AddCommand(inferCmd)
	inferCmd.Flags().String("img-file", "", "image to recognize (alternative to the positional argument)")
	inferCmd.Flags().String("format", "text", "output format (text, json)")
	inferCmd.Flags().Int("padding", 16, "horizontal padding added after scaling")
	bindFlag("inference.padding", inferCmd.Flags().Lookup("padding"))
}

func runInfer(cmd *cobra.Command, args []string) error {
	imgFile, _ := cmd.Flags().GetString("img-file")
	if len(args) == 1 {
		imgFile = args[0]
	}
	if imgFile == "" {
		return fmt.Errorf("no image given: pass a path or --img-file")
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format %q (use text or json)", format)
	}

	opts := GetConfig().ToRunOptions(pipeline.ModeInfer)
	opts.ImagePath = imgFile

	res, err := pipeline.RunInfer(opts)
	if err != nil {
		return fmt.Errorf("inference failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, _ = fmt.Fprintf(out, "Recognized: %q\n", res.Text)
	_, _ = fmt.Fprintf(out, "Probability: %g\n", res.Probability)
	return nil
}
