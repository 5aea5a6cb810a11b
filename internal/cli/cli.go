package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/VolkanSah/ImageConverter/internal/cli/hooks"
	"github.com/VolkanSah/ImageConverter/internal/cli/ui"
	"github.com/VolkanSah/ImageConverter/internal/cli/watch"
	"github.com/VolkanSah/ImageConverter/pkg/converter"
	"github.com/VolkanSah/ImageConverter/pkg/converter/history"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

// ErrNothingConverted is returned when a batch ends with the failed verdict.
var ErrNothingConverted = errors.New("no files were converted")

// environment describes the terminal the shell runs in.
type environment struct {
	stdout      io.Writer
	stderr      io.Writer
	stdoutIsTTY bool
	stderrIsTTY bool
}

func osEnvironment() environment {
	return environment{
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		stdoutIsTTY: term.IsTerminal(int(os.Stdout.Fd())),
		stderrIsTTY: term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// Run is the conversion shell. It expands the inputs, submits one batch to a
// Session and renders its events through the TUI, a progress bar or log
// lines. In watch mode it keeps submitting batches for new files until ctx is
// cancelled or the TUI is closed.
func Run(ctx context.Context, opts converter.Options, logger *slog.Logger) error {
	return run(ctx, opts, logger, osEnvironment())
}

func run(ctx context.Context, opts converter.Options, logger *slog.Logger, env environment) error {
	if len(opts.Inputs) == 0 {
		return fmt.Errorf("%w: no input files given", converter.ErrConfigValidation)
	}
	paths, err := converter.ExpandInputs(opts.Inputs, converter.ExpandOptions{
		Recursive:      opts.Recursive,
		IgnorePatterns: opts.IgnorePatterns,
		Logger:         opts.Logger,
	})
	if err != nil {
		return err
	}
	if len(paths) == 0 && !opts.WatchMode {
		return fmt.Errorf("%w: no files found in the given inputs", converter.ErrConfigValidation)
	}

	// --- History ---
	if opts.History.Enabled {
		store, err := history.Open(opts.History.Path, opts.Logger)
		if err != nil {
			logger.Warn("Batch history unavailable, continuing without it", slog.String("error", err.Error()))
		} else {
			defer store.Close()
			opts.EventHooks = converter.ChainHooks(opts.EventHooks, history.NewRecorder(store, opts.AppVersion))
		}
	}

	engine, err := converter.NewEngine(opts)
	if err != nil {
		return err
	}
	session := converter.NewSession(engine)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// --- Display ---
	var program *tea.Program
	var display *hooks.CLIHooks
	useTUI := opts.TuiEnabled && env.stdoutIsTTY
	switch {
	case useTUI:
		program = tea.NewProgram(ui.NewModel(opts.AppVersion), tea.WithContext(gctx), tea.WithOutput(env.stdout))
		display = hooks.NewCLIHooks(logger, program, nil)
	case env.stderrIsTTY && !opts.Verbose:
		display = hooks.NewCLIHooks(logger, nil, hooks.NewTerminalProgressBar(env.stderr))
	default:
		display = hooks.NewCLIHooks(logger, nil, nil)
	}

	var (
		reportMu sync.Mutex
		first    converter.BatchResult
		firstErr error
	)
	consume := func(h *converter.Handle) (converter.BatchResult, error) {
		for ev := range h.Events() {
			display.Handle(ev)
		}
		result, err := h.Wait()
		if err == nil || errors.Is(err, context.Canceled) {
			if !useTUI {
				reportMu.Lock()
				if werr := converter.WriteReport(env.stdout, result, opts.OutputFormat); werr != nil {
					logger.Error("Failed to write report", slog.String("error", werr.Error()))
				}
				reportMu.Unlock()
			}
		}
		return result, err
	}

	if program != nil {
		g.Go(func() error {
			_, err := program.Run()
			// Closing the TUI ends the session.
			cancel()
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("terminal UI failed: %w", err)
			}
			return nil
		})
	}

	if len(paths) > 0 {
		h, err := session.Submit(gctx, converter.Request{Paths: paths, Format: opts.Format, Quality: opts.Quality})
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			first, firstErr = consume(h)
			return nil
		})
	}

	if opts.WatchMode {
		dirs := watchDirs(opts.Inputs)
		w, err := watch.New(session, watch.Options{
			Dirs:           dirs,
			Recursive:      opts.Recursive,
			IgnorePatterns: opts.IgnorePatterns,
			Debounce:       opts.WatchDebounce,
			Format:         opts.Format,
			Quality:        opts.Quality,
			Logger:         logger,
			OnBatch: func(h *converter.Handle) {
				_, _ = consume(h)
			},
		})
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		defer w.Close()
		g.Go(func() error { return w.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if len(paths) == 0 || opts.WatchMode {
		return nil
	}
	if firstErr != nil {
		return firstErr
	}
	if useTUI {
		// The TUI clears its screen on exit.
		fmt.Fprintln(env.stdout, first.Summary())
	}
	if first.Verdict() == converter.VerdictFailed {
		return ErrNothingConverted
	}
	return nil
}

// watchDirs returns the directory inputs.
func watchDirs(inputs []string) []string {
	var dirs []string
	for _, in := range inputs {
		if info, err := os.Stat(in); err == nil && info.IsDir() {
			dirs = append(dirs, in)
		}
	}
	return dirs
}
