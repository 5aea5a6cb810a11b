package converter_test

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/VolkanSah/ImageConverter/internal/testutil"
	"github.com/VolkanSah/ImageConverter/pkg/converter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert_ExpandsDirectoriesAndRuns(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	dest := filepath.Join(dir, "out")
	testutil.WriteWebP(t, filepath.Join(in, "one.webp"), testutil.GradientNRGBA(4, 4))
	testutil.WriteWebP(t, filepath.Join(in, "nested", "two.webp"), testutil.GradientNRGBA(5, 3))
	testutil.CreateDummyFile(t, filepath.Join(in, "readme.md"), "# hi")

	logBuf := &bytes.Buffer{}
	opts := converter.Options{
		DestinationDir: dest,
		Recursive:      true,
		Concurrency:    2,
		AppVersion:     "1.2.3",
		Logger:         slog.NewTextHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}

	result, err := converter.Convert(context.Background(), opts, pngRequest(in))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, converter.VerdictPartial, result.Verdict())
	assert.FileExists(t, filepath.Join(dest, "one.png"))
	assert.FileExists(t, filepath.Join(dest, "two.png"))
	assert.Contains(t, logBuf.String(), "version=1.2.3")
}

func TestConvert_NilLogger(t *testing.T) {
	_, err := converter.Convert(context.Background(), converter.Options{}, pngRequest("a.webp"))
	assert.ErrorIs(t, err, converter.ErrConfigValidation)
}

func TestConvert_EmptyDirectoryIsAPreconditionError(t *testing.T) {
	opts := converter.Options{
		DestinationDir: filepath.Join(t.TempDir(), "out"),
		Logger:         slog.NewTextHandler(&bytes.Buffer{}, nil),
	}
	_, err := converter.Convert(context.Background(), opts, pngRequest(t.TempDir()))
	assert.ErrorIs(t, err, converter.ErrConfigValidation)
}
