package ui

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/VolkanSah/ImageConverter/internal/cli/hooks"
	"github.com/VolkanSah/ImageConverter/pkg/converter"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const listHeightMargin = 4 // header, banner, footer

// Phase messages shown in the header.
const (
	phaseWaiting  = "Waiting for files..."
	phaseComplete = "Complete"
	phaseAborted  = "Aborted"
)

// Model is the Bubble Tea model of the conversion shell. It shows one row per
// input of the current batch, a running summary and the final verdict.
type Model struct {
	list    list.Model
	spinner spinner.Model

	width       int
	height      int
	initialized bool

	version     string
	batchID     string
	destination string
	format      converter.Format

	// items is indexed by the input's position in the batch request.
	// Access MUST be protected by listLock.
	items    []listItem
	listLock sync.Mutex

	summary      Summary
	phaseMessage string
	verdict      converter.Verdict
	banner       string
	fatalError   string
	quitting     bool

	debounceTimer *time.Timer
}

// listItem represents a single input in the TUI list.
type listItem struct {
	path     string
	output   string
	status   converter.Status
	message  string
	duration time.Duration
}

// Summary holds the aggregated statistics displayed in the TUI footer.
type Summary struct {
	Total     int
	Converted int
	Skipped   int
	Failed    int
	StartTime time.Time
}

// Done returns the number of inputs with a recorded outcome.
func (s Summary) Done() int { return s.Converted + s.Skipped + s.Failed }

// --- Bubble Tea Interface Implementations ---

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages (user input, batch events) and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(m.width, max(m.height-listHeightMargin, 1))
		m.initialized = true

	case tea.KeyMsg:
		if m.quitting {
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
		var listCmd tea.Cmd
		m.list, listCmd = m.list.Update(msg)
		cmds = append(cmds, listCmd)

	case spinner.TickMsg:
		if m.quitting {
			return m, nil
		}
		var spinnerCmd tea.Cmd
		m.spinner, spinnerCmd = m.spinner.Update(msg)
		cmds = append(cmds, spinnerCmd)

	case hooks.BatchStartedMsg:
		m.listLock.Lock()
		m.items = make([]listItem, len(msg.Info.Paths))
		for i, p := range msg.Info.Paths {
			m.items[i] = listItem{path: p, status: converter.StatusPending}
		}
		m.listLock.Unlock()
		m.batchID = msg.Info.BatchID
		m.destination = msg.Info.DestinationDir
		m.format = msg.Info.Format
		m.summary = Summary{Total: msg.Info.Total, StartTime: msg.Info.StartedAt}
		m.phaseMessage = fmt.Sprintf("Converting %d files to %s...", msg.Info.Total, msg.Info.Format)
		m.verdict, m.banner, m.fatalError = "", "", ""
		cmds = append(cmds, m.debounceListUpdate())

	case hooks.FileStatusMsg:
		m.listLock.Lock()
		if msg.Index >= 0 && msg.Index < len(m.items) {
			item := &m.items[msg.Index]
			if !item.status.IsFinal() {
				m.incrementSummaryCount(msg.Outcome.Status)
			}
			item.status = msg.Outcome.Status
			item.output = msg.Outcome.OutputPath
			item.message = msg.Outcome.Message
			item.duration = msg.Outcome.Duration
		}
		m.listLock.Unlock()
		cmds = append(cmds, m.debounceListUpdate())

	case hooks.BatchFinishedMsg:
		m.phaseMessage = phaseComplete
		m.summary.Converted = msg.Result.Successful
		m.summary.Skipped = msg.Result.Count(converter.StatusSkipped)
		m.summary.Failed = msg.Result.Count(converter.StatusFailed)
		m.verdict = msg.Result.Verdict()
		m.banner = msg.Result.Summary()

	case hooks.BatchAbortedMsg:
		m.phaseMessage = phaseAborted
		m.fatalError = fmt.Sprintf("Conversion aborted: %v", msg.Err)

	case UpdateListMsg:
		m.listLock.Lock()
		items := make([]list.Item, len(m.items))
		for i, item := range m.items {
			items[i] = item
		}
		m.listLock.Unlock()
		cmds = append(cmds, m.list.SetItems(items))
	}

	return m, tea.Batch(cmds...)
}

// View renders the current state of the model.
func (m *Model) View() string {
	if m.quitting {
		return "Exiting...\n"
	}
	if !m.initialized {
		return "Initializing..."
	}

	// --- Header ---
	headerLeft := fmt.Sprintf("WebP Converter v%s", m.version)
	headerRight := m.phaseMessage
	if m.phaseMessage != phaseComplete && m.phaseMessage != phaseAborted && m.phaseMessage != phaseWaiting {
		headerRight = m.spinner.View() + " " + m.phaseMessage
	}
	headerCenter := ""
	if w := m.width - lipgloss.Width(headerLeft) - lipgloss.Width(headerRight); w > 0 {
		headerCenter = lipgloss.PlaceHorizontal(w, lipgloss.Center, " ")
	}
	header := HeaderStyle.Width(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Top, headerLeft, headerCenter, headerRight))

	// --- Footer ---
	elapsed := time.Duration(0)
	if !m.summary.StartTime.IsZero() {
		elapsed = time.Since(m.summary.StartTime).Round(time.Millisecond)
	}
	footerLeft := fmt.Sprintf(
		"Converted: %d | Skipped: %d | Failed: %d | %d/%d | Elapsed: %s",
		m.summary.Converted,
		m.summary.Skipped,
		m.summary.Failed,
		m.summary.Done(),
		m.summary.Total,
		elapsed,
	)
	footerRight := "q: quit"
	footerCenter := ""
	if w := m.width - lipgloss.Width(footerLeft) - lipgloss.Width(footerRight); w > 0 {
		footerCenter = lipgloss.PlaceHorizontal(w, lipgloss.Center, " ")
	}
	footer := FooterStyle.Width(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Bottom, footerLeft, footerCenter, footerRight))

	// --- Verdict / Fatal Error ---
	bannerView := ""
	switch {
	case m.fatalError != "":
		bannerView = StatusStyleFailed.Render(m.fatalError)
	case m.banner != "":
		bannerView = verdictStyle(m.verdict).Render(m.banner)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.list.View(),
		bannerView,
		footer,
	)
}

// --- Helper Methods ---

// NewModel creates the initial model for the TUI.
func NewModel(version string) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorStatusProcessing)

	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)
	delegate.ShowDescription = true
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorSelectedFg).
		Background(ColorSelectedBg).
		Bold(true).
		Padding(0, 0, 0, 1)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorSelectedDescFg).
		Background(ColorSelectedBg).
		Padding(0, 0, 0, 1)
	delegate.Styles.NormalTitle = delegate.Styles.NormalTitle.
		Foreground(ColorNormalFg).Padding(0, 0, 0, 1)
	delegate.Styles.NormalDesc = delegate.Styles.NormalDesc.
		Foreground(ColorNormalDescFg).Padding(0, 0, 0, 1)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowTitle(false)
	l.SetShowFilter(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	if version == "" {
		version = "dev"
	}
	return &Model{
		list:         l,
		spinner:      s,
		version:      version,
		phaseMessage: phaseWaiting,
	}
}

// Verdict returns the verdict of the last finished batch, or "" while none has finished.
func (m *Model) Verdict() converter.Verdict { return m.verdict }

// incrementSummaryCount MUST be called with listLock held.
func (m *Model) incrementSummaryCount(status converter.Status) {
	switch status {
	case converter.StatusConverted:
		m.summary.Converted++
	case converter.StatusSkipped:
		m.summary.Skipped++
	case converter.StatusFailed:
		m.summary.Failed++
	}
}

// --- List Item Interface ---

// FilterValue implements the list.Item interface.
func (i listItem) FilterValue() string { return i.path }

// Title implements the list.Item interface.
func (i listItem) Title() string { return filepath.Base(i.path) }

// Description implements the list.Item interface.
func (i listItem) Description() string {
	statusStr := statusStyle(i.status).Render(fmt.Sprintf("[%s]", statusIcon(i.status)))
	details := ""
	switch i.status {
	case converter.StatusConverted:
		details = "-> " + filepath.Base(i.output)
		if d := formatDuration(i.duration); d != "" {
			details += " (" + d + ")"
		}
	case converter.StatusSkipped, converter.StatusFailed:
		details = i.message
	}
	return fmt.Sprintf("%s %s", statusStr, details)
}

func statusIcon(s converter.Status) string {
	switch s {
	case converter.StatusConverted:
		return "✓"
	case converter.StatusFailed:
		return "✗"
	case converter.StatusSkipped:
		return "S"
	case converter.StatusProcessing:
		return "…"
	}
	return " "
}

func statusStyle(s converter.Status) lipgloss.Style {
	switch s {
	case converter.StatusConverted:
		return StatusStyleSuccess
	case converter.StatusFailed:
		return StatusStyleFailed
	case converter.StatusSkipped:
		return StatusStyleSkipped
	case converter.StatusProcessing:
		return StatusStyleProcessing
	}
	return StatusStylePending
}

func verdictStyle(v converter.Verdict) lipgloss.Style {
	switch v {
	case converter.VerdictAllSucceeded:
		return StatusStyleSuccess.Bold(true)
	case converter.VerdictPartial:
		return StatusStyleSkipped.Bold(true)
	}
	return StatusStyleFailed.Bold(true)
}

// formatDuration formats duration for display.
func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return ""
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// --- Update Debouncing ---

// UpdateListMsg signals that the list component should update its items.
type UpdateListMsg struct{}

const listUpdateDebounceDuration = 50 * time.Millisecond

// debounceListUpdate returns a command that emits UpdateListMsg after a short
// delay, coalescing bursts of status changes into one list refresh.
func (m *Model) debounceListUpdate() tea.Cmd {
	if m.debounceTimer != nil {
		m.debounceTimer.Stop()
	}
	timer := time.NewTimer(listUpdateDebounceDuration)
	m.debounceTimer = timer
	return func() tea.Msg {
		<-timer.C
		return UpdateListMsg{}
	}
}

// --- Styles ---

const (
	ColorHeaderFg = lipgloss.Color("252")
	ColorHeaderBg = lipgloss.Color("62")

	ColorFooterFg = lipgloss.Color("252")
	ColorFooterBg = lipgloss.Color("56")

	ColorNormalFg     = lipgloss.Color("250")
	ColorNormalDescFg = lipgloss.Color("244")

	ColorSelectedFg     = lipgloss.Color("255")
	ColorSelectedBg     = lipgloss.Color("56")
	ColorSelectedDescFg = lipgloss.Color("248")

	ColorStatusSuccess    = lipgloss.Color("40")
	ColorStatusFailed     = lipgloss.Color("196")
	ColorStatusSkipped    = lipgloss.Color("214")
	ColorStatusPending    = lipgloss.Color("244")
	ColorStatusProcessing = lipgloss.Color("205")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorHeaderFg).
			Background(ColorHeaderBg).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorFooterFg).
			Background(ColorFooterBg).
			Padding(0, 1)

	StatusStyleSuccess    = lipgloss.NewStyle().Foreground(ColorStatusSuccess)
	StatusStyleFailed     = lipgloss.NewStyle().Foreground(ColorStatusFailed)
	StatusStyleSkipped    = lipgloss.NewStyle().Foreground(ColorStatusSkipped)
	StatusStylePending    = lipgloss.NewStyle().Foreground(ColorStatusPending)
	StatusStyleProcessing = lipgloss.NewStyle().Foreground(ColorStatusProcessing)
)
