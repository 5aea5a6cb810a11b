package hooks

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/VolkanSah/ImageConverter/pkg/converter"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/schollz/progressbar/v3"
)

// --- TUI Message Structs ---

// BatchStartedMsg signals that a batch has started.
type BatchStartedMsg struct{ Info converter.BatchInfo }

// FileStatusMsg carries the final outcome of one input.
type FileStatusMsg struct {
	Index   int
	Outcome converter.Outcome
}

// BatchFinishedMsg signals the completion of a batch.
type BatchFinishedMsg struct{ Result converter.BatchResult }

// BatchAbortedMsg signals that a batch failed before converting anything.
type BatchAbortedMsg struct{ Err error }

// --- Hook Implementation ---

// TUIProgram defines the interface needed to interact with the Bubble Tea program.
type TUIProgram interface {
	Send(msg tea.Msg)
}

// ProgressBar defines the interface needed to interact with the progress bar.
type ProgressBar interface {
	Add(num int) error
	Close() error
}

// ProgressBarFactory creates a progress bar sized for total inputs.
type ProgressBarFactory func(total int) ProgressBar

// NewTerminalProgressBar returns a ProgressBarFactory writing to w.
func NewTerminalProgressBar(w io.Writer) ProgressBarFactory {
	return func(total int) ProgressBar {
		return progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("Converting"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionClearOnFinish(),
		)
	}
}

// CLIHooks bridges batch events to the CLI's UI layer (TUI, progress bar or
// plain log lines). Exactly one of the three is active.
type CLIHooks struct {
	logger      *slog.Logger
	tuiProgram  TUIProgram
	newProgress ProgressBarFactory

	mu          sync.Mutex
	progressBar ProgressBar
}

// NewCLIHooks creates a new CLIHooks. A non-nil tuiProg selects TUI mode;
// otherwise a non-nil newProgress selects progress-bar mode; otherwise every
// event is logged.
func NewCLIHooks(logger *slog.Logger, tuiProg TUIProgram, newProgress ProgressBarFactory) *CLIHooks {
	return &CLIHooks{
		logger:      logger.With(slog.String("component", "shell")),
		tuiProgram:  tuiProg,
		newProgress: newProgress,
	}
}

// Handle dispatches one Session event.
func (h *CLIHooks) Handle(ev converter.Event) {
	switch ev.Kind {
	case converter.EventStarted:
		_ = h.OnBatchStart(ev.Info)
	case converter.EventFile:
		_ = h.OnFileStatusUpdate(ev.Index, ev.Outcome)
	case converter.EventFinished:
		_ = h.OnBatchComplete(ev.Result)
	case converter.EventAborted:
		h.onBatchAborted(ev)
	}
}

// OnBatchStart implements converter.Hooks.
func (h *CLIHooks) OnBatchStart(info converter.BatchInfo) error {
	if h.tuiProgram != nil {
		h.tuiProgram.Send(BatchStartedMsg{Info: info})
		return nil
	}
	if h.newProgress != nil {
		h.mu.Lock()
		h.progressBar = h.newProgress(info.Total)
		h.mu.Unlock()
	}
	h.logger.Info(fmt.Sprintf("Starting conversion of %d files to %s. Destination: %s", info.Total, info.Format, info.DestinationDir),
		slog.String("batchID", info.BatchID))
	return nil
}

// OnFileStatusUpdate implements converter.Hooks.
func (h *CLIHooks) OnFileStatusUpdate(index int, outcome converter.Outcome) error {
	if h.tuiProgram != nil {
		h.tuiProgram.Send(FileStatusMsg{Index: index, Outcome: outcome})
		return nil
	}

	h.mu.Lock()
	bar := h.progressBar
	h.mu.Unlock()
	if bar != nil {
		_ = bar.Add(1)
		// Failures stay visible above the bar.
		if outcome.Status == converter.StatusFailed {
			h.logger.Error("File conversion failed", slog.String("input", outcome.InputPath), slog.String("error", outcome.Message))
		}
		return nil
	}

	line := converter.Event{Kind: converter.EventFile, Outcome: outcome}.Text()
	switch outcome.Status {
	case converter.StatusFailed:
		h.logger.Error(line)
	case converter.StatusSkipped:
		h.logger.Warn(line)
	default:
		h.logger.Info(line, slog.Duration("duration", outcome.Duration))
	}
	return nil
}

// OnBatchComplete implements converter.Hooks.
func (h *CLIHooks) OnBatchComplete(result converter.BatchResult) error {
	if h.tuiProgram != nil {
		h.tuiProgram.Send(BatchFinishedMsg{Result: result})
		return nil
	}
	h.closeProgress()
	h.logger.Info(result.Summary(), slog.String("verdict", string(result.Verdict())), slog.Duration("duration", result.Duration))
	return nil
}

func (h *CLIHooks) onBatchAborted(ev converter.Event) {
	if h.tuiProgram != nil {
		h.tuiProgram.Send(BatchAbortedMsg{Err: ev.Err})
		return
	}
	h.closeProgress()
	h.logger.Error(ev.Text())
}

func (h *CLIHooks) closeProgress() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.progressBar != nil {
		_ = h.progressBar.Close()
		h.progressBar = nil
	}
}
