// Package converter implements the batch conversion engine: it converts
// ordered lists of WebP files to PNG or JPEG, records a per-file outcome and
// reports progress through Hooks or a Session event stream.
package converter

import (
	"context"
	"fmt"
	"log/slog"
)

// Convert is the main entry point for library users. It expands directory
// inputs, builds the engine and runs one batch synchronously.
func Convert(ctx context.Context, opts Options, req Request) (BatchResult, error) {
	if opts.Logger == nil {
		return BatchResult{}, fmt.Errorf("%w: Logger implementation cannot be nil", ErrConfigValidation)
	}
	logger := slog.New(opts.Logger)

	paths, err := ExpandInputs(req.Paths, ExpandOptions{
		Recursive:      opts.Recursive,
		IgnorePatterns: opts.IgnorePatterns,
		Logger:         opts.Logger,
	})
	if err != nil {
		logger.Error("Failed to expand inputs", slog.String("error", err.Error()))
		return BatchResult{}, err
	}
	req.Paths = paths

	engine, err := NewEngine(opts)
	if err != nil {
		return BatchResult{}, err
	}
	logger.Debug("Running conversion batch", slog.String("version", appVersion(opts)), slog.Int("inputs", len(paths)))
	return engine.Run(ctx, req)
}

func appVersion(opts Options) string {
	if opts.AppVersion == "" {
		return "dev"
	}
	return opts.AppVersion
}
