package converter

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Outcome is the ConversionOutcome of a single input path.
type Outcome struct {
	InputPath  string        `json:"inputPath" yaml:"inputPath"`
	OutputPath string        `json:"outputPath,omitempty" yaml:"outputPath,omitempty"`
	Status     Status        `json:"status" yaml:"status"`
	Message    string        `json:"message,omitempty" yaml:"message,omitempty"`
	Duration   time.Duration `json:"-" yaml:"-"`
	DurationMs int64         `json:"durationMs" yaml:"durationMs"`
}

// BatchResult summarizes one consumed Request.
// Total counts every input path, candidates and skipped alike.
type BatchResult struct {
	BatchID        string        `json:"batchId" yaml:"batchId"`
	Format         Format        `json:"format" yaml:"format"`
	DestinationDir string        `json:"destinationDir" yaml:"destinationDir"`
	Successful     int           `json:"successful" yaml:"successful"`
	Total          int           `json:"total" yaml:"total"`
	Outcomes       []Outcome     `json:"outcomes" yaml:"outcomes"`
	StartedAt      time.Time     `json:"startedAt" yaml:"startedAt"`
	Duration       time.Duration `json:"-" yaml:"-"`
	DurationMs     int64         `json:"durationMs" yaml:"durationMs"`
	SchemaVersion  string        `json:"schemaVersion,omitempty" yaml:"schemaVersion,omitempty"`
}

// Count returns the number of outcomes with the given status.
func (r BatchResult) Count(status Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Verdict distinguishes the three user-visible endings of a batch.
func (r BatchResult) Verdict() Verdict {
	switch {
	case r.Successful == r.Total && r.Successful > 0:
		return VerdictAllSucceeded
	case r.Successful > 0:
		return VerdictPartial
	default:
		return VerdictFailed
	}
}

// Summary returns the message a shell shows once the batch has finished.
func (r BatchResult) Summary() string {
	switch r.Verdict() {
	case VerdictAllSucceeded:
		return fmt.Sprintf("All %d files converted successfully! (destination: %s)", r.Successful, r.DestinationDir)
	case VerdictPartial:
		return fmt.Sprintf("%d of %d files converted successfully. Results in %s", r.Successful, r.Total, r.DestinationDir)
	default:
		return "Conversion failed or no WebP files found."
	}
}

// WriteReport renders the result in the requested format.
func WriteReport(w io.Writer, r BatchResult, format OutputFormat) error {
	r.SchemaVersion = ReportSchemaVersion
	r.DurationMs = r.Duration.Milliseconds()
	outcomes := make([]Outcome, len(r.Outcomes))
	for i, o := range r.Outcomes {
		o.DurationMs = o.Duration.Milliseconds()
		outcomes[i] = o
	}
	r.Outcomes = outcomes

	switch format {
	case OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case OutputFormatText, "":
		return writeTextReport(w, r)
	}
	return fmt.Errorf("%w: unknown report format %q", ErrConfigValidation, format)
}

var (
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	red    = color.New(color.FgHiRed).SprintFunc()
	subtle = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func writeTextReport(w io.Writer, r BatchResult) error {
	for _, o := range r.Outcomes {
		if _, err := fmt.Fprintln(w, formatOutcomeLine(o, true)); err != nil {
			return err
		}
	}
	summary := r.Summary()
	switch r.Verdict() {
	case VerdictAllSucceeded:
		summary = green(summary)
	case VerdictPartial:
		summary = yellow(summary)
	default:
		summary = red(summary)
	}
	_, err := fmt.Fprintf(w, "%s\n%s %s\n", bold(summary), subtle("batch"), subtle(r.BatchID))
	return err
}

// formatOutcomeLine renders the per-file log line. Failure lines always name the file.
func formatOutcomeLine(o Outcome, colored bool) string {
	name := filepath.Base(o.InputPath)
	paint := func(f func(a ...interface{}) string, s string) string {
		if colored {
			return f(s)
		}
		return s
	}
	switch o.Status {
	case StatusConverted:
		return fmt.Sprintf("%s %s -> %s", paint(green, "✓"), name, filepath.Base(o.OutputPath))
	case StatusSkipped:
		return fmt.Sprintf("%s %s (%s)", paint(yellow, "Skipping:"), name, o.Message)
	case StatusFailed:
		return fmt.Sprintf("%s %s: %s", paint(red, "✗ Error converting"), name, o.Message)
	}
	return fmt.Sprintf("%s %s", o.Status, name)
}
