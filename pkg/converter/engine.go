package converter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/VolkanSah/ImageConverter/pkg/converter/imaging"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// Engine runs conversion batches. An Engine holds no per-batch state and may
// be reused; a Session serializes batches when a shell needs that guarantee.
type Engine struct {
	opts        *Options
	logger      *slog.Logger
	codec       ImageCodec
	fs          FileSystem
	hooks       Hooks
	concurrency int
}

// NewEngine validates opts, resolves defaults and returns a ready Engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("%w: Logger implementation (slog.Handler) cannot be nil", ErrConfigValidation)
	}
	logger := slog.New(opts.Logger).With(slog.String("component", "engine"))

	if opts.EventHooks == nil {
		opts.EventHooks = &NoOpHooks{}
	}
	if opts.Codec == nil {
		opts.Codec = imaging.NewCodec()
		logger.Debug("Codec not provided, using default imaging codec.")
	}
	if opts.FileSystem == nil {
		opts.FileSystem = OSFileSystem{}
	}

	if opts.DestinationDir == "" {
		dir, err := DefaultDestinationDir()
		if err != nil {
			return nil, fmt.Errorf("%w: cannot resolve default destination: %w", ErrConfigValidation, err)
		}
		opts.DestinationDir = dir
		logger.Debug("DestinationDir not set, defaulting", "path", dir)
	}

	switch opts.CollisionPolicy {
	case "":
		opts.CollisionPolicy = DefaultCollisionPolicy
	case CollisionOverwrite, CollisionFail, CollisionRename:
	default:
		return nil, fmt.Errorf("%w: invalid collision policy %q", ErrConfigValidation, opts.CollisionPolicy)
	}

	concurrency := opts.Concurrency
	switch {
	case concurrency == 0:
		concurrency = DefaultConcurrency
	case concurrency == AutoConcurrency:
		concurrency = runtime.NumCPU()
		logger.Debug("Concurrency auto-detected", "count", concurrency)
	case concurrency < 0:
		return nil, fmt.Errorf("%w: concurrency must be %d (auto) or positive, got %d", ErrConfigValidation, AutoConcurrency, opts.Concurrency)
	}
	opts.Concurrency = concurrency

	return &Engine{
		opts:        &opts,
		logger:      logger,
		codec:       opts.Codec,
		fs:          opts.FileSystem,
		hooks:       opts.EventHooks,
		concurrency: concurrency,
	}, nil
}

// DefaultDestinationDir returns <home>/WebP_Converted.
func DefaultDestinationDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultDestinationDirName), nil
}

// DestinationDir returns the resolved destination directory.
func (e *Engine) DestinationDir() string { return e.opts.DestinationDir }

// Run converts every path of req in order and returns the batch result.
//
// Per-file failures are recorded in the result and never abort the batch. An
// error is returned only when the request is invalid, the destination cannot
// be created (before any file is attempted), or ctx is cancelled; ctx is
// checked between files, and a cancelled run still returns the partial result.
func (e *Engine) Run(ctx context.Context, req Request) (BatchResult, error) {
	return e.run(ctx, req, e.hooks, uuid.NewString())
}

// ValidateRequest checks the preconditions of a Request.
func ValidateRequest(req Request) error {
	if len(req.Paths) == 0 {
		return fmt.Errorf("%w: no input files", ErrConfigValidation)
	}
	if !req.Format.Valid() {
		return fmt.Errorf("%w: unsupported target format %q", ErrConfigValidation, req.Format)
	}
	if req.Format == FormatJPG && (req.Quality < MinQuality || req.Quality > MaxQuality) {
		return fmt.Errorf("%w: JPEG quality %d out of range [%d,%d]", ErrConfigValidation, req.Quality, MinQuality, MaxQuality)
	}
	return nil
}

// fileResult carries one outcome from a worker to the aggregation point.
type fileResult struct {
	index   int
	outcome Outcome
}

// job is a candidate that passed classification and collision checks.
type job struct {
	index  int
	input  string
	output string
}

func (e *Engine) run(ctx context.Context, req Request, hooks Hooks, batchID string) (result BatchResult, err error) {
	if err := ValidateRequest(req); err != nil {
		return BatchResult{}, err
	}
	transform, err := transformFor(req.Format)
	if err != nil {
		return BatchResult{}, err
	}
	paths := append([]string(nil), req.Paths...)
	dest := e.opts.DestinationDir

	if err := e.fs.EnsureDir(dest); err != nil {
		e.logger.Error("Cannot create destination directory", slog.String("batchID", batchID), slog.String("path", dest), slog.String("error", err.Error()))
		return BatchResult{}, fmt.Errorf("%w: %s: %w", ErrDestinationUncreatable, dest, err)
	}

	startedAt := time.Now()
	info := BatchInfo{
		BatchID:        batchID,
		Paths:          paths,
		Total:          len(paths),
		Format:         req.Format,
		Quality:        req.Quality,
		DestinationDir: dest,
		StartedAt:      startedAt,
	}
	logger := e.logger.With(slog.String("batchID", info.BatchID))
	logger.Info("Starting conversion batch",
		slog.Int("files", info.Total),
		slog.String("format", string(req.Format)),
		slog.String("destination", dest),
		slog.Int("concurrency", e.concurrency),
	)
	if hookErr := hooks.OnBatchStart(info); hookErr != nil {
		logger.Warn("OnBatchStart hook returned an error", slog.String("error", hookErr.Error()))
	}

	agg := newBatchAggregator(len(paths))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered during batch", "panicValue", r)
			if err == nil {
				err = fmt.Errorf("panic during conversion batch: %v", r)
			}
		}
		result = agg.result(info, time.Since(startedAt))
		logger.Info("Conversion batch finished",
			slog.Duration("duration", result.Duration),
			slog.Int("successful", result.Successful),
			slog.Int("total", result.Total),
			slog.Int("skipped", result.Count(StatusSkipped)),
			slog.Int("failed", result.Count(StatusFailed)),
			slog.String("verdict", string(result.Verdict())),
		)
		if hookErr := hooks.OnBatchComplete(result); hookErr != nil {
			logger.Warn("OnBatchComplete hook returned an error", slog.String("error", hookErr.Error()))
		}
	}()

	results := make(chan fileResult, max(e.concurrency, 1))
	aggregatorDone := make(chan struct{})
	go func() {
		defer close(aggregatorDone)
		for r := range results {
			agg.record(r.index, r.outcome)
			logOutcome(logger, r.outcome)
			if hookErr := hooks.OnFileStatusUpdate(r.index, r.outcome); hookErr != nil {
				logger.Warn("OnFileStatusUpdate hook returned an error", slog.String("error", hookErr.Error()))
			}
		}
	}()

	runJob := func(j job) {
		start := time.Now()
		outcome := Outcome{InputPath: j.input, OutputPath: j.output, Status: StatusConverted}
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic recovered while converting file", slog.String("input", j.input), "panicValue", r)
				outcome.Status = StatusFailed
				outcome.Message = fmt.Sprintf("panic: %v", r)
			}
			outcome.Duration = time.Since(start)
			results <- fileResult{index: j.index, outcome: outcome}
		}()
		if convErr := convertFile(e.codec, transform, j.input, j.output, req.Quality); convErr != nil {
			outcome.Status = StatusFailed
			outcome.Message = convErr.Error()
		}
	}

	var pool *ants.Pool
	if e.concurrency > 1 {
		pool, err = ants.NewPool(e.concurrency)
		if err != nil {
			close(results)
			<-aggregatorDone
			return BatchResult{}, fmt.Errorf("failed to start worker pool: %w", err)
		}
		defer pool.Release()
	}

	var wg sync.WaitGroup
	reserved := make(map[string]bool, len(paths))
	// Jobs sharing an output path run in request order.
	lastWriter := make(map[string]chan struct{})
	cancelled := false
	for i, p := range paths {
		if !cancelled && ctx.Err() != nil {
			cancelled = true
			logger.Info("Conversion batch cancelled", slog.String("reason", ctx.Err().Error()), slog.Int("remaining", len(paths)-i))
		}
		if cancelled {
			results <- fileResult{index: i, outcome: Outcome{InputPath: p, Status: StatusSkipped, Message: "batch cancelled"}}
			continue
		}

		if !IsCandidate(p) {
			results <- fileResult{index: i, outcome: Outcome{InputPath: p, Status: StatusSkipped, Message: ErrNotSourceFormat.Error()}}
			continue
		}

		out, collisionErr := resolveCollision(e.fs, e.opts.CollisionPolicy, OutputPath(dest, p, req.Format), reserved)
		if collisionErr != nil {
			results <- fileResult{index: i, outcome: Outcome{InputPath: p, Status: StatusFailed, Message: collisionErr.Error()}}
			continue
		}
		reserved[out] = true

		j := job{index: i, input: p, output: out}
		if pool == nil {
			runJob(j)
			continue
		}
		prev := lastWriter[out]
		done := make(chan struct{})
		lastWriter[out] = done
		wg.Add(1)
		if submitErr := pool.Submit(func() {
			defer wg.Done()
			defer close(done)
			if prev != nil {
				<-prev
			}
			runJob(j)
		}); submitErr != nil {
			if prev != nil {
				<-prev
			}
			close(done)
			wg.Done()
			results <- fileResult{index: i, outcome: Outcome{InputPath: p, OutputPath: out, Status: StatusFailed, Message: submitErr.Error()}}
		}
	}

	wg.Wait()
	close(results)
	<-aggregatorDone

	if cancelled {
		return result, ctx.Err()
	}
	return result, nil
}

func logOutcome(logger *slog.Logger, o Outcome) {
	attrs := []any{
		slog.String("input", o.InputPath),
		slog.String("status", string(o.Status)),
	}
	switch o.Status {
	case StatusConverted:
		logger.Debug("File converted", append(attrs, slog.String("output", o.OutputPath), slog.Duration("duration", o.Duration))...)
	case StatusFailed:
		logger.Warn("File conversion failed", append(attrs, slog.String("error", o.Message))...)
	default:
		logger.Debug("File skipped", append(attrs, slog.String("reason", o.Message))...)
	}
}

// --- batchAggregator ---

// batchAggregator collects outcomes in request order. It is written only by
// the aggregation goroutine and read after that goroutine has finished.
type batchAggregator struct {
	mu         sync.Mutex
	outcomes   []Outcome
	successful int
}

func newBatchAggregator(n int) *batchAggregator {
	return &batchAggregator{outcomes: make([]Outcome, n)}
}

func (a *batchAggregator) record(index int, o Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outcomes[index] = o
	if o.Status == StatusConverted {
		a.successful++
	}
}

func (a *batchAggregator) result(info BatchInfo, d time.Duration) BatchResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	outcomes := make([]Outcome, len(a.outcomes))
	copy(outcomes, a.outcomes)
	return BatchResult{
		BatchID:        info.BatchID,
		Format:         info.Format,
		DestinationDir: info.DestinationDir,
		Successful:     a.successful,
		Total:          info.Total,
		Outcomes:       outcomes,
		StartedAt:      info.StartedAt,
		Duration:       d,
	}
}
