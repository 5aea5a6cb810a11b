// Package watch turns filesystem changes in input directories into new
// conversion batches.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/VolkanSah/ImageConverter/pkg/converter"
	"github.com/VolkanSah/ImageConverter/pkg/util"
	"github.com/fsnotify/fsnotify"
	"github.com/karrick/godirwalk"
)

// Submitter starts batches. *converter.Session implements it.
type Submitter interface {
	Submit(ctx context.Context, req converter.Request) (*converter.Handle, error)
}

// Options configures a Watcher.
type Options struct {
	Dirs           []string
	Recursive      bool
	IgnorePatterns []string
	Debounce       time.Duration
	Format         converter.Format
	Quality        int
	Logger         *slog.Logger
	// OnBatch receives every submitted batch on its own goroutine. It must
	// drain the handle's events or call Wait. Run returns only after every
	// OnBatch call has returned.
	OnBatch func(*converter.Handle)
}

// Watcher collects created or modified WebP files and submits them as one
// batch once the directories have been quiet for the debounce period.
type Watcher struct {
	submitter Submitter
	opts      Options
	logger    *slog.Logger
	fsw       *fsnotify.Watcher
	pending   map[string]struct{}
	batches   sync.WaitGroup
}

// New creates a Watcher and registers the directories. Close it when done.
func New(submitter Submitter, opts Options) (*Watcher, error) {
	if len(opts.Dirs) == 0 {
		return nil, fmt.Errorf("%w: watch mode needs at least one directory input", converter.ErrConfigValidation)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = converter.DefaultWatchDebounceDuration
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		submitter: submitter,
		opts:      opts,
		logger:    opts.Logger.With(slog.String("component", "watch")),
		fsw:       fsw,
		pending:   make(map[string]struct{}),
	}
	for _, dir := range opts.Dirs {
		if err := w.addTree(dir); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// addTree watches dir and, when Recursive is set, every subdirectory that is not ignored.
func (w *Watcher) addTree(dir string) error {
	if !w.opts.Recursive {
		return w.add(dir)
	}
	root := filepath.Clean(dir)
	return godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(p string, de *godirwalk.Dirent) error {
			isDir, err := de.IsDirOrSymlinkToDir()
			if err != nil || !isDir {
				return nil
			}
			if p != root && w.ignored(root, p) {
				return filepath.SkipDir
			}
			return w.add(p)
		},
		ErrorCallback: func(p string, err error) godirwalk.ErrorAction {
			w.logger.Warn("Error while registering watch, skipping", slog.String("path", p), slog.String("error", err.Error()))
			return godirwalk.SkipNode
		},
	})
}

func (w *Watcher) add(dir string) error {
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.logger.Debug("Watching directory", slog.String("path", dir))
	return nil
}

// ignored reports whether p, below one of the watched roots, matches an ignore pattern.
func (w *Watcher) ignored(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return util.MatchesAny(w.opts.IgnorePatterns, rel)
}

func (w *Watcher) rootFor(p string) string {
	best := ""
	for _, d := range w.opts.Dirs {
		d = filepath.Clean(d)
		rel, err := filepath.Rel(d, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if len(d) > len(best) {
			best = d
		}
	}
	return best
}

// Close stops watching.
func (w *Watcher) Close() error { return w.fsw.Close() }

// Run processes filesystem events until ctx is cancelled. Submissions
// rejected because a batch is still running are retried after another
// debounce period with the pending set preserved. Run waits for the batches
// it submitted to be consumed before returning.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.batches.Wait()
	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	w.logger.Info("Watching for new WebP files", slog.Any("dirs", w.opts.Dirs), slog.Duration("debounce", w.opts.Debounce))
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(ev) {
				timer.Reset(w.opts.Debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			if retry := w.flush(ctx); retry {
				timer.Reset(w.opts.Debounce)
			}
		}
	}
}

// handleEvent records a relevant change and reports whether the debounce timer should restart.
func (w *Watcher) handleEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	root := w.rootFor(ev.Name)
	if root != "" && w.ignored(root, ev.Name) {
		return false
	}
	if ev.Has(fsnotify.Create) && w.opts.Recursive {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("Cannot watch new directory", slog.String("path", ev.Name), slog.String("error", err.Error()))
			}
			return false
		}
	}
	if !converter.IsCandidate(ev.Name) {
		return false
	}
	w.pending[ev.Name] = struct{}{}
	return true
}

// flush submits the pending files and reports whether a retry is needed.
func (w *Watcher) flush(ctx context.Context) bool {
	if len(w.pending) == 0 {
		return false
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h, err := w.submitter.Submit(ctx, converter.Request{Paths: paths, Format: w.opts.Format, Quality: w.opts.Quality})
	if errors.Is(err, converter.ErrBatchInFlight) {
		w.logger.Debug("Batch in flight, deferring watch submission", slog.Int("pending", len(paths)))
		return true
	}
	w.pending = make(map[string]struct{})
	if err != nil {
		w.logger.Error("Failed to submit watch batch", slog.String("error", err.Error()))
		return false
	}
	w.logger.Info("Submitted watch batch", slog.String("batchID", h.ID()), slog.Int("files", len(paths)))
	w.batches.Add(1)
	go func() {
		defer w.batches.Done()
		if w.opts.OnBatch != nil {
			w.opts.OnBatch(h)
			return
		}
		_, _ = h.Wait()
	}()
	return false
}
