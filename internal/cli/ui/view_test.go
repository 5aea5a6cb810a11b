package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/VolkanSah/ImageConverter/internal/cli/hooks"
	"github.com/VolkanSah/ImageConverter/pkg/converter"
	"github.com/stretchr/testify/assert"
)

func TestView_Quitting(t *testing.T) {
	m := newTestModel(80, 25)
	m.quitting = true
	assert.Equal(t, "Exiting...\n", m.View())
}

func TestView_HeaderAndFooter(t *testing.T) {
	m := newTestModel(120, 25)
	view := m.View()
	assert.Contains(t, view, "WebP Converter v1.2.3")
	assert.Contains(t, view, phaseWaiting)
	assert.Contains(t, view, "Converted: 0 | Skipped: 0 | Failed: 0 | 0/0")
	assert.Contains(t, view, "q: quit")
}

func TestView_VerdictBanner(t *testing.T) {
	testCases := []struct {
		name   string
		result converter.BatchResult
		want   string
	}{
		{"all", converter.BatchResult{Successful: 2, Total: 2, DestinationDir: "/d"}, "All 2 files converted successfully!"},
		{"partial", converter.BatchResult{Successful: 1, Total: 2, DestinationDir: "/d"}, "1 of 2 files converted successfully."},
		{"failed", converter.BatchResult{Successful: 0, Total: 2}, "Conversion failed or no WebP files found."},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestModel(160, 25)
			m.Update(hooks.BatchFinishedMsg{Result: tc.result})
			view := m.View()
			assert.Contains(t, view, tc.want)
			assert.Contains(t, view, phaseComplete)
		})
	}
}

func TestView_FatalErrorWinsOverBanner(t *testing.T) {
	m := newTestModel(160, 25)
	m.banner = "stale"
	m.Update(hooks.BatchAbortedMsg{Err: errors.New("no space left")})
	view := m.View()
	assert.Contains(t, view, "Conversion aborted: no space left")
	assert.NotContains(t, view, "stale")
}

func TestListItem_Description(t *testing.T) {
	testCases := []struct {
		name string
		item listItem
		want []string
	}{
		{"pending", listItem{path: "/in/a.webp", status: converter.StatusPending}, []string{"[ ]"}},
		{"converted", listItem{path: "/in/a.webp", output: "/d/a.png", status: converter.StatusConverted}, []string{"[✓]", "-> a.png"}},
		{"skipped", listItem{path: "/in/n.txt", status: converter.StatusSkipped, message: "not a WebP file"}, []string{"[S]", "not a WebP file"}},
		{"failed", listItem{path: "/in/c.webp", status: converter.StatusFailed, message: "failed to decode image"}, []string{"[✗]", "failed to decode image"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			desc := tc.item.Description()
			for _, w := range tc.want {
				assert.True(t, strings.Contains(desc, w), "description %q should contain %q", desc, w)
			}
		})
	}
	assert.Equal(t, "a.webp", listItem{path: "/in/a.webp"}.Title())
	assert.Equal(t, "/in/a.webp", listItem{path: "/in/a.webp"}.FilterValue())
}
