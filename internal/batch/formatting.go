package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
)

// formatResults renders items as text, json or csv.
func formatResults(items []Item, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(items)
	case "csv":
		return formatCSV(items)
	case "text", "":
		return formatText(items), nil
	default:
		return "", fmt.Errorf("unsupported format %q (use text, json or csv)", format)
	}
}

func formatJSON(items []Item) (string, error) {
	out := struct {
		Images []Item `json:"images"`
	}{Images: items}
	if out.Images == nil {
		out.Images = []Item{}
	}
	bts, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bts) + "\n", nil
}

func formatCSV(items []Item) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.Write([]string{"file", "text", "probability", "error"}); err != nil {
		return "", err
	}
	for _, it := range items {
		row := []string{it.File, it.Text, fmt.Sprintf("%.6f", it.Probability), it.Error}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

func formatText(items []Item) string {
	var output strings.Builder
	for _, it := range items {
		if it.Error != "" {
			fmt.Fprintf(&output, "%s\terror: %s\n", it.File, it.Error)
			continue
		}
		fmt.Fprintf(&output, "%s\t%q\t%.4f\n", it.File, it.Text, it.Probability)
	}
	return output.String()
}
