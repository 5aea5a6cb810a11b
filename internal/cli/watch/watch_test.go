package watch

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/VolkanSah/ImageConverter/internal/testutil"
	"github.com/VolkanSah/ImageConverter/pkg/converter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakySubmitter rejects the first n submissions as if a batch were running.
type flakySubmitter struct {
	mu       sync.Mutex
	next     Submitter
	reject   int
	requests []converter.Request
}

func (f *flakySubmitter) Submit(ctx context.Context, req converter.Request) (*converter.Handle, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	if f.reject > 0 {
		f.reject--
		f.mu.Unlock()
		return nil, converter.ErrBatchInFlight
	}
	f.mu.Unlock()
	return f.next.Submit(ctx, req)
}

func (f *flakySubmitter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type watchFixture struct {
	in      string
	dest    string
	sub     *flakySubmitter
	batches chan converter.BatchResult
	logger  *slog.Logger
}

func newWatchFixture(t *testing.T, reject int) *watchFixture {
	t.Helper()
	dir := t.TempDir()
	f := &watchFixture{
		in:      filepath.Join(dir, "in"),
		dest:    filepath.Join(dir, "out"),
		batches: make(chan converter.BatchResult, 4),
		logger:  slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}
	testutil.CreateDummyDir(t, f.in)
	engine, err := converter.NewEngine(converter.Options{
		DestinationDir: f.dest,
		Concurrency:    1,
		Logger:         f.logger.Handler(),
	})
	require.NoError(t, err)
	f.sub = &flakySubmitter{next: converter.NewSession(engine), reject: reject}
	return f
}

func (f *watchFixture) start(t *testing.T, mutate func(*Options)) {
	t.Helper()
	opts := Options{
		Dirs:     []string{f.in},
		Debounce: 40 * time.Millisecond,
		Format:   converter.FormatPNG,
		Quality:  converter.DefaultQuality,
		Logger:   f.logger,
		OnBatch: func(h *converter.Handle) {
			result, _ := h.Wait()
			f.batches <- result
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	w, err := New(f.sub, opts)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, w.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})
}

func (f *watchFixture) nextBatch(t *testing.T) converter.BatchResult {
	t.Helper()
	select {
	case r := <-f.batches:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no batch submitted")
		return converter.BatchResult{}
	}
}

func TestNew_RequiresDirectories(t *testing.T) {
	_, err := New(&flakySubmitter{}, Options{})
	assert.ErrorIs(t, err, converter.ErrConfigValidation)
}

func TestWatcher_SubmitsNewWebPFiles(t *testing.T) {
	f := newWatchFixture(t, 0)
	f.start(t, nil)

	testutil.CreateDummyFile(t, filepath.Join(f.in, "notes.txt"), "ignored, not a candidate")
	testutil.WriteWebP(t, filepath.Join(f.in, "a.webp"), testutil.GradientNRGBA(4, 4))
	testutil.WriteWebP(t, filepath.Join(f.in, "b.webp"), testutil.GradientNRGBA(4, 4))

	result := f.nextBatch(t)
	var inputs []string
	for _, o := range result.Outcomes {
		inputs = append(inputs, filepath.Base(o.InputPath))
		assert.Equal(t, converter.StatusConverted, o.Status)
		assert.FileExists(t, o.OutputPath)
	}
	require.NotEmpty(t, inputs)
	// Both files usually land in one batch, but a slow disk may split them.
	assert.Subset(t, []string{"a.webp", "b.webp"}, inputs)
}

func TestWatcher_RetriesWhileBatchInFlight(t *testing.T) {
	f := newWatchFixture(t, 2)
	f.start(t, nil)

	testutil.WriteWebP(t, filepath.Join(f.in, "late.webp"), testutil.GradientNRGBA(3, 3))

	result := f.nextBatch(t)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, "late.webp", filepath.Base(result.Outcomes[0].InputPath))
	assert.Equal(t, 3, f.sub.calls(), "two rejections then one accepted submission")
	assert.FileExists(t, filepath.Join(f.dest, "late.png"))
}

func TestWatcher_RecursiveHonorsIgnore(t *testing.T) {
	f := newWatchFixture(t, 0)
	testutil.CreateDummyDir(t, filepath.Join(f.in, "keep"))
	testutil.CreateDummyDir(t, filepath.Join(f.in, "cache"))
	f.start(t, func(o *Options) {
		o.Recursive = true
		o.IgnorePatterns = []string{"cache"}
	})

	testutil.WriteWebP(t, filepath.Join(f.in, "cache", "skip.webp"), testutil.GradientNRGBA(3, 3))
	testutil.WriteWebP(t, filepath.Join(f.in, "keep", "take.webp"), testutil.GradientNRGBA(3, 3))

	result := f.nextBatch(t)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, "take.webp", filepath.Base(result.Outcomes[0].InputPath))
}

func TestWatcher_RunWaitsForSubmittedBatches(t *testing.T) {
	f := newWatchFixture(t, 0)
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	w, err := New(f.sub, Options{
		Dirs:     []string{f.in},
		Debounce: 40 * time.Millisecond,
		Format:   converter.FormatPNG,
		Quality:  converter.DefaultQuality,
		Logger:   f.logger,
		OnBatch: func(h *converter.Handle) {
			once.Do(func() { close(entered) })
			<-release
			_, _ = h.Wait()
		},
	})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	testutil.WriteWebP(t, filepath.Join(f.in, "a.webp"), testutil.GradientNRGBA(3, 3))
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("no batch submitted")
	}

	cancel()
	select {
	case <-done:
		t.Fatal("Run returned while a batch was still being consumed")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the batch was consumed")
	}
}
