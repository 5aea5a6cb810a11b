package converter_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/VolkanSah/ImageConverter/pkg/converter"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func resultWith(successful, total int) converter.BatchResult {
	return converter.BatchResult{
		BatchID:        "batch-1",
		Format:         converter.FormatPNG,
		DestinationDir: "/home/u/WebP_Converted",
		Successful:     successful,
		Total:          total,
	}
}

func TestVerdict(t *testing.T) {
	testCases := []struct {
		name              string
		successful, total int
		want              converter.Verdict
	}{
		{"all converted", 3, 3, converter.VerdictAllSucceeded},
		{"partial", 2, 3, converter.VerdictPartial},
		{"none converted", 0, 3, converter.VerdictFailed},
		{"empty batch", 0, 0, converter.VerdictFailed},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resultWith(tc.successful, tc.total).Verdict())
		})
	}
}

func TestSummary_DistinctPerVerdict(t *testing.T) {
	all := resultWith(3, 3).Summary()
	partial := resultWith(1, 3).Summary()
	failed := resultWith(0, 3).Summary()

	assert.Contains(t, all, "All 3 files converted successfully")
	assert.Contains(t, all, "/home/u/WebP_Converted")
	assert.Contains(t, partial, "1 of 3")
	assert.Contains(t, partial, "/home/u/WebP_Converted")
	assert.Contains(t, failed, "no WebP files found")
	assert.NotEqual(t, all, partial)
	assert.NotEqual(t, partial, failed)
}

func sampleReport() converter.BatchResult {
	r := resultWith(1, 3)
	r.Duration = 2 * time.Second
	r.Outcomes = []converter.Outcome{
		{InputPath: "/in/a.webp", OutputPath: "/out/a.png", Status: converter.StatusConverted, Duration: 40 * time.Millisecond},
		{InputPath: "/in/notes.txt", Status: converter.StatusSkipped, Message: "not a WebP file"},
		{InputPath: "/in/broken.webp", OutputPath: "/out/broken.png", Status: converter.StatusFailed, Message: "failed to decode image: unexpected EOF"},
	}
	return r
}

func TestWriteReport_Text(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	require.NoError(t, converter.WriteReport(&buf, sampleReport(), converter.OutputFormatText))

	out := buf.String()
	assert.Contains(t, out, "✓ a.webp -> a.png")
	assert.Contains(t, out, "Skipping: notes.txt (not a WebP file)")
	assert.Contains(t, out, "broken.webp: failed to decode image: unexpected EOF", "failure lines name the file and the cause")
	assert.Contains(t, out, "1 of 3 files converted successfully")
	assert.Contains(t, out, "batch-1")
}

func TestWriteReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, converter.WriteReport(&buf, sampleReport(), converter.OutputFormatJSON))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, converter.ReportSchemaVersion, decoded["schemaVersion"])
	assert.Equal(t, float64(1), decoded["successful"])
	assert.Equal(t, float64(3), decoded["total"])
	assert.Equal(t, float64(2000), decoded["durationMs"])
	outcomes, ok := decoded["outcomes"].([]interface{})
	require.True(t, ok)
	require.Len(t, outcomes, 3)
	first := outcomes[0].(map[string]interface{})
	assert.Equal(t, "converted", first["status"])
	assert.Equal(t, float64(40), first["durationMs"])
}

func TestWriteReport_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, converter.WriteReport(&buf, sampleReport(), converter.OutputFormatYAML))

	var decoded struct {
		BatchID  string `yaml:"batchId"`
		Format   string `yaml:"format"`
		Outcomes []struct {
			InputPath string `yaml:"inputPath"`
			Status    string `yaml:"status"`
			Message   string `yaml:"message"`
		} `yaml:"outcomes"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "batch-1", decoded.BatchID)
	assert.Equal(t, "PNG", decoded.Format)
	require.Len(t, decoded.Outcomes, 3)
	assert.Equal(t, "failed", decoded.Outcomes[2].Status)
	assert.Equal(t, "/in/broken.webp", decoded.Outcomes[2].InputPath)
}

func TestWriteReport_UnknownFormat(t *testing.T) {
	err := converter.WriteReport(&bytes.Buffer{}, sampleReport(), converter.OutputFormat("xml"))
	assert.ErrorIs(t, err, converter.ErrConfigValidation)
}
