package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/VolkanSah/ImageConverter/internal/cli/hooks"
	"github.com/VolkanSah/ImageConverter/pkg/converter"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestModel creates a model with the given dimensions.
func newTestModel(width, height int) *Model {
	m := NewModel("1.2.3")
	m.width = width
	m.height = height
	m.list.SetSize(width, max(height-listHeightMargin, 1))
	m.initialized = true
	return m
}

func startBatch(t *testing.T, m *Model, paths ...string) {
	t.Helper()
	_, cmd := m.Update(hooks.BatchStartedMsg{Info: converter.BatchInfo{
		BatchID:        "b1",
		Paths:          paths,
		Total:          len(paths),
		Format:         converter.FormatJPG,
		DestinationDir: "/dest",
		StartedAt:      time.Now(),
	}})
	require.NotNil(t, cmd, "a started batch schedules a list refresh")
}

func TestModel_Init(t *testing.T) {
	m := newTestModel(80, 25)
	cmd := m.Init()
	require.NotNil(t, cmd)
	_, ok := cmd().(spinner.TickMsg)
	assert.True(t, ok, "Init should return a command that produces spinner.TickMsg")
}

func TestModel_Update_Quit(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c"} {
		t.Run(key, func(t *testing.T) {
			m := newTestModel(80, 25)
			var msg tea.KeyMsg
			if key == "ctrl+c" {
				msg = tea.KeyMsg{Type: tea.KeyCtrlC}
			} else {
				msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
			}
			newModel, cmd := m.Update(msg)
			require.NotNil(t, cmd)
			updated, ok := newModel.(*Model)
			require.True(t, ok)
			assert.True(t, updated.quitting)
			assert.Equal(t, tea.Quit(), cmd())
		})
	}
}

func TestModel_Update_WindowSize(t *testing.T) {
	m := NewModel("")
	assert.Equal(t, "Initializing...", m.View())

	newModel, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	updated := newModel.(*Model)
	assert.True(t, updated.initialized)
	assert.Equal(t, 100, updated.width)
	assert.Equal(t, 30, updated.height)
	assert.Equal(t, "dev", updated.version)
}

func TestModel_Update_BatchLifecycle(t *testing.T) {
	m := newTestModel(80, 25)
	startBatch(t, m, "/in/a.webp", "/in/b.txt", "/in/c.webp")

	require.Len(t, m.items, 3)
	for _, it := range m.items {
		assert.Equal(t, converter.StatusPending, it.status)
	}
	assert.Equal(t, 3, m.summary.Total)
	assert.Contains(t, m.phaseMessage, "Converting 3 files to JPG")

	// Outcomes may arrive in any order.
	m.Update(hooks.FileStatusMsg{Index: 2, Outcome: converter.Outcome{InputPath: "/in/c.webp", Status: converter.StatusFailed, Message: "failed to decode image"}})
	m.Update(hooks.FileStatusMsg{Index: 0, Outcome: converter.Outcome{InputPath: "/in/a.webp", OutputPath: "/dest/a.jpg", Status: converter.StatusConverted}})
	m.Update(hooks.FileStatusMsg{Index: 1, Outcome: converter.Outcome{InputPath: "/in/b.txt", Status: converter.StatusSkipped, Message: "not a WebP file"}})
	// Out-of-range indexes are ignored.
	m.Update(hooks.FileStatusMsg{Index: 7, Outcome: converter.Outcome{Status: converter.StatusConverted}})

	assert.Equal(t, 1, m.summary.Converted)
	assert.Equal(t, 1, m.summary.Skipped)
	assert.Equal(t, 1, m.summary.Failed)
	assert.Equal(t, 3, m.summary.Done())
	assert.Equal(t, "/dest/a.jpg", m.items[0].output)
	assert.Equal(t, converter.StatusFailed, m.items[2].status)

	result := converter.BatchResult{
		BatchID: "b1", DestinationDir: "/dest", Successful: 1, Total: 3,
		Outcomes: []converter.Outcome{
			{Status: converter.StatusConverted}, {Status: converter.StatusSkipped}, {Status: converter.StatusFailed},
		},
	}
	m.Update(hooks.BatchFinishedMsg{Result: result})
	assert.Equal(t, phaseComplete, m.phaseMessage)
	assert.Equal(t, converter.VerdictPartial, m.Verdict())
	assert.Contains(t, m.banner, "1 of 3 files converted successfully")
}

func TestModel_Update_NewBatchResetsState(t *testing.T) {
	m := newTestModel(80, 25)
	startBatch(t, m, "/in/a.webp")
	m.Update(hooks.FileStatusMsg{Index: 0, Outcome: converter.Outcome{Status: converter.StatusConverted}})
	m.Update(hooks.BatchFinishedMsg{Result: converter.BatchResult{Successful: 1, Total: 1}})
	require.Equal(t, converter.VerdictAllSucceeded, m.Verdict())

	startBatch(t, m, "/in/x.webp", "/in/y.webp")
	assert.Len(t, m.items, 2)
	assert.Equal(t, 0, m.summary.Converted)
	assert.Empty(t, m.banner)
	assert.Equal(t, converter.Verdict(""), m.Verdict())
}

func TestModel_Update_Aborted(t *testing.T) {
	m := newTestModel(80, 25)
	m.Update(hooks.BatchAbortedMsg{Err: errors.New("destination cannot be created")})
	assert.Equal(t, phaseAborted, m.phaseMessage)
	assert.Contains(t, m.fatalError, "destination cannot be created")
}

func TestModel_Update_ListRefresh(t *testing.T) {
	m := newTestModel(80, 25)
	startBatch(t, m, "/in/a.webp", "/in/b.webp")
	m.Update(UpdateListMsg{})
	assert.Len(t, m.list.Items(), 2)
}

func TestModel_DebounceCoalesces(t *testing.T) {
	m := newTestModel(80, 25)
	first := m.debounceListUpdate()
	second := m.debounceListUpdate()
	require.NotNil(t, first)

	done := make(chan tea.Msg, 1)
	go func() { done <- second() }()
	select {
	case msg := <-done:
		assert.IsType(t, UpdateListMsg{}, msg)
	case <-time.After(time.Second):
		t.Fatal("debounced command never fired")
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "", formatDuration(0))
	assert.Equal(t, "500µs", formatDuration(500*time.Microsecond))
	assert.Equal(t, "42ms", formatDuration(42*time.Millisecond))
	assert.Equal(t, "1.50s", formatDuration(1500*time.Millisecond))
}
