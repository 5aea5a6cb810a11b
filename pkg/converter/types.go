package converter

import (
	"fmt"
	"strings"
)

// Format is the target image format of a batch.
type Format string

// Supported target formats.
const (
	FormatPNG Format = "PNG"
	FormatJPG Format = "JPG"
)

// ParseFormat converts a user supplied format name ("png", "jpg", "jpeg", any case) into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPG, nil
	}
	return "", fmt.Errorf("%w: unsupported target format %q (allowed: png, jpg)", ErrConfigValidation, s)
}

// Extension returns the lowercase output file extension without the leading dot.
func (f Format) Extension() string {
	return strings.ToLower(string(f))
}

// Valid reports whether f is one of the supported target formats.
func (f Format) Valid() bool {
	return f == FormatPNG || f == FormatJPG
}

// Status defines the processing state of a single input file.
type Status string

// Constants representing the file processing statuses. Only Converted, Skipped
// and Failed are ever recorded in an Outcome; Pending and Processing exist for
// shells that display in-flight state.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusConverted  Status = "converted"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
)

// IsFinal reports whether s is a terminal status.
func (s Status) IsFinal() bool {
	return s == StatusConverted || s == StatusSkipped || s == StatusFailed
}

// CollisionPolicy decides what happens when the derived output path already exists.
type CollisionPolicy string

const (
	// CollisionOverwrite replaces the existing file; the last writer wins.
	CollisionOverwrite CollisionPolicy = "overwrite"
	// CollisionFail records the input as Failed and leaves the existing file untouched.
	CollisionFail CollisionPolicy = "fail"
	// CollisionRename writes to the first free "<stem>_<n>.<ext>" name.
	CollisionRename CollisionPolicy = "rename"
)

// OutputFormat defines the format of the final report printed when the TUI is disabled.
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
)

// Verdict classifies a finished batch for the user.
type Verdict string

const (
	VerdictAllSucceeded Verdict = "all_succeeded"
	VerdictPartial      Verdict = "partial"
	VerdictFailed       Verdict = "failed"
)
