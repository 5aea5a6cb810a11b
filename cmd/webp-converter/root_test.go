package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/VolkanSah/ImageConverter/internal/testutil"
	"github.com/VolkanSah/ImageConverter/pkg/converter"
	"github.com/VolkanSah/ImageConverter/pkg/converter/history"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// executeCommand is a helper function to execute cobra command and capture output
func executeCommand(root *cobra.Command, args ...string) (stdout string, stderr string, err error) {
	stdoutBuf := new(bytes.Buffer)
	stderrBuf := new(bytes.Buffer)
	root.SetOut(stdoutBuf)
	root.SetErr(stderrBuf)
	root.SetArgs(args)

	err = root.Execute()

	return stdoutBuf.String(), stderrBuf.String(), err
}

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	return home
}

func TestRootCmdHelp(t *testing.T) {
	stdout, stderr, err := executeCommand(newRootCmd(), "--help")

	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Contains(t, stdout, "Usage:")
	assert.Contains(t, stdout, "webp-converter [flags] <files|dirs>...")
	assert.Contains(t, stdout, "history")
}

func TestRootCmdHelp_AllFlagsPresent(t *testing.T) {
	cmd := newRootCmd()
	stdout, _, err := executeCommand(cmd, "--help")
	require.NoError(t, err)

	check := func(f *pflag.Flag) {
		assert.Contains(t, stdout, "--"+f.Name, "Help output should contain flag --%s", f.Name)
		if f.Shorthand != "" {
			assert.Contains(t, stdout, "-"+f.Shorthand+",", "Help output should contain shorthand -%s", f.Shorthand)
		}
	}
	cmd.Flags().VisitAll(check)
	cmd.PersistentFlags().VisitAll(check)
}

func TestRootCmdVersion(t *testing.T) {
	originalVersion, originalCommit, originalDate := version, commit, date
	version, commit, date = "test-1.2.3", "testcommit123", "2024-01-01T10:00:00Z"
	defer func() {
		version, commit, date = originalVersion, originalCommit, originalDate
	}()

	cmd := newRootCmd()
	cmd.SetVersionTemplate(`{{.Use}} version {{.Version}}` + "\n")
	stdout, _, err := executeCommand(cmd, "--version")

	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("webp-converter [flags] <files|dirs>... version %s (commit: %s, built: %s)\n", version, commit, date), stdout)
}

func TestRootCmdArgumentErrors(t *testing.T) {
	isolateHome(t)
	testCases := []struct {
		name     string
		args     []string
		errorMsg string
	}{
		{"no inputs", []string{}, "requires at least 1 arg"},
		{"unknown flag", []string{"a.webp", "--unknown-flag"}, "unknown flag: --unknown-flag"},
		{"invalid int", []string{"a.webp", "--quality", "abc"}, `invalid argument "abc"`},
		{"unknown format", []string{"a.webp", "--format", "gif"}, "gif"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := executeCommand(newRootCmd(), tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errorMsg)
		})
	}
}

func TestRootCmd_ConvertsAndRecordsHistory(t *testing.T) {
	isolateHome(t)
	color.NoColor = true
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.webp")
	testutil.WriteWebP(t, in, testutil.GradientNRGBA(4, 4))
	dest := filepath.Join(dir, "out")
	historyPath := filepath.Join(dir, "history.db")

	_, _, err := executeCommand(newRootCmd(), in, "--no-tui", "--format", "jpg", "--output", dest, "--history-path", historyPath)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dest, "photo.jpg"))

	t.Run("history lists the batch", func(t *testing.T) {
		stdout, _, err := executeCommand(newRootCmd(), "history", "--history-path", historyPath)
		require.NoError(t, err)
		assert.Contains(t, stdout, "JPG")
		assert.Contains(t, stdout, "1/1")
		assert.Contains(t, stdout, string(converter.VerdictAllSucceeded))
	})

	t.Run("history as yaml", func(t *testing.T) {
		stdout, _, err := executeCommand(newRootCmd(), "history", "--history-path", historyPath, "--output-format", "yaml")
		require.NoError(t, err)

		var entries []history.Entry
		require.NoError(t, yaml.Unmarshal([]byte(stdout), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, 1, entries[0].Successful)
		assert.Equal(t, "JPG", entries[0].Format)
		assert.Contains(t, stdout, "successful: 1")
	})

	t.Run("history as json", func(t *testing.T) {
		stdout, _, err := executeCommand(newRootCmd(), "history", "--history-path", historyPath, "--output-format", "json")
		require.NoError(t, err)
		assert.Contains(t, stdout, `"successful": 1`)
	})
}

func TestRootCmd_NothingConvertedFails(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "notes.txt")
	testutil.CreateDummyFile(t, in, "x")

	_, _, err := executeCommand(newRootCmd(), in, "--no-tui", "--no-history", "--output", filepath.Join(dir, "out"))
	assert.Error(t, err)
}

func TestHistoryCmd_EmptyDatabase(t *testing.T) {
	isolateHome(t)
	stdout, _, err := executeCommand(newRootCmd(), "history", "--history-path", filepath.Join(t.TempDir(), "none.db"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "No batches recorded yet.")
}

func TestPrintHistory(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	entries := []history.Entry{{
		BatchID:        "0123456789abcdef",
		StartedAt:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Format:         "PNG",
		DestinationDir: "/tmp/out/",
		Successful:     2,
		Total:          3,
		Verdict:        string(converter.VerdictPartial),
	}}
	require.NoError(t, printHistory(&buf, entries, converter.OutputFormatText))
	out := buf.String()
	assert.Contains(t, out, "01234567 ")
	assert.NotContains(t, out, "89abcdef")
	assert.Contains(t, out, "2/3")
	assert.Contains(t, out, "partial")
	assert.Contains(t, out, "/tmp/out\n")
}
