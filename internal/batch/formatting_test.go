package batch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleItems = []Item{
	{File: "a.png", Text: "cat", Probability: 0.5},
	{File: "b.png", Error: "decode failed"},
}

func TestFormatText(t *testing.T) {
	out, err := formatResults(sampleItems, "text")
	require.NoError(t, err)
	assert.Equal(t, "a.png\t\"cat\"\t0.5000\nb.png\terror: decode failed\n", out)
}

func TestFormatJSON(t *testing.T) {
	out, err := formatResults(sampleItems, "json")
	require.NoError(t, err)

	var decoded struct {
		Images []Item `json:"images"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, sampleItems, decoded.Images)

	out, err = formatResults(nil, "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"images": []}`, out)
}

func TestFormatCSV(t *testing.T) {
	out, err := formatResults(sampleItems, "csv")
	require.NoError(t, err)
	assert.Equal(t, "file,text,probability,error\na.png,cat,0.500000,\nb.png,,0.000000,decode failed\n", out)
}

func TestFormatUnknown(t *testing.T) {
	_, err := formatResults(sampleItems, "yaml")
	require.Error(t, err)
}
