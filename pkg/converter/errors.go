package converter

import "errors"

// --- Exported Error Variables ---
// Library users can check against these using errors.Is. Per-file errors are
// wrapped around the underlying cause and recorded in the Outcome; only
// ErrDestinationUncreatable, ErrConfigValidation and ErrBatchInFlight are
// ever returned from Run or Submit.

var (
	// ErrNotSourceFormat is the reason recorded for inputs whose extension is not .webp.
	// It is informational: such inputs are Skipped, never attempted.
	ErrNotSourceFormat = errors.New("not a WebP file")

	// ErrDecodeFailed indicates the input could not be read or parsed as an image.
	ErrDecodeFailed = errors.New("failed to decode image")

	// ErrEncodeFailed indicates the output could not be encoded or written
	// (disk full, permission denied, unsupported parameter).
	ErrEncodeFailed = errors.New("failed to encode image")

	// ErrOutputExists indicates the derived output path already exists and the
	// collision policy is "fail".
	ErrOutputExists = errors.New("output file already exists")

	// ErrDestinationUncreatable indicates the destination directory could not be created.
	// It is fatal for the whole batch and returned before any file is attempted.
	ErrDestinationUncreatable = errors.New("cannot create destination directory")

	// ErrConfigValidation indicates that a Request or Options failed validation.
	ErrConfigValidation = errors.New("invalid configuration options provided")

	// ErrBatchInFlight is returned by Session.Submit while another batch is still running.
	ErrBatchInFlight = errors.New("a conversion batch is already running")
)
