package converter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/VolkanSah/ImageConverter/pkg/util"
	"github.com/karrick/godirwalk"
)

// ExpandOptions controls how ExpandInputs treats directory arguments.
type ExpandOptions struct {
	Recursive      bool
	IgnorePatterns []string
	Logger         slog.Handler // Optional
}

// ExpandInputs turns the shell's positional arguments into the ordered path
// list of a Request. Files are kept as given, in argument order. A directory
// is replaced by the files it contains in lexical order, descending into
// subdirectories only when Recursive is set. Ignore patterns are matched
// against paths relative to the directory argument. Non-WebP files are kept so
// the engine records them as skipped.
func ExpandInputs(inputs []string, opts ExpandOptions) ([]string, error) {
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = slog.New(opts.Logger).With(slog.String("component", "walker"))
	} else {
		logger = slog.New(discardHandler{})
	}

	paths := make([]string, 0, len(inputs))
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil || !info.IsDir() {
			// Missing or unreadable files still go to the engine, which records them.
			paths = append(paths, in)
			continue
		}
		found, err := walkDir(in, opts, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to expand directory %s: %w", in, err)
		}
		logger.Debug("Expanded directory input", slog.String("path", in), slog.Int("files", len(found)))
		paths = append(paths, found...)
	}
	return paths, nil
}

func walkDir(root string, opts ExpandOptions, logger *slog.Logger) ([]string, error) {
	var files []string
	root = filepath.Clean(root)
	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: false,
		Callback: func(p string, de *godirwalk.Dirent) error {
			if p == root {
				return nil
			}
			rel, relErr := filepath.Rel(root, p)
			if relErr != nil {
				return relErr
			}
			isDir, dirErr := de.IsDirOrSymlinkToDir()
			if dirErr != nil {
				logger.Warn("Cannot stat entry, skipping", slog.String("path", p), slog.String("error", dirErr.Error()))
				return nil
			}
			if util.MatchesAny(opts.IgnorePatterns, rel) {
				logger.Debug("Ignoring path", slog.String("path", rel))
				if isDir {
					return filepath.SkipDir
				}
				return nil
			}
			if isDir {
				if !opts.Recursive {
					return filepath.SkipDir
				}
				return nil
			}
			files = append(files, p)
			return nil
		},
		ErrorCallback: func(p string, err error) godirwalk.ErrorAction {
			logger.Warn("Error while walking, skipping entry", slog.String("path", p), slog.String("error", err.Error()))
			return godirwalk.SkipNode
		},
	})
	return files, err
}

// discardHandler drops every record.
type discardHandler struct{}

func (discardHandler) Enabled(_ context.Context, _ slog.Level) bool  { return false }
func (discardHandler) Handle(_ context.Context, _ slog.Record) error { return nil }
func (h discardHandler) WithAttrs(_ []slog.Attr) slog.Handler        { return h }
func (h discardHandler) WithGroup(_ string) slog.Handler             { return h }
