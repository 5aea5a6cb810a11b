package converter

import (
	"errors"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"time"
)

// Request is a ConversionRequest: the ordered input paths, the target format
// and the format options. The engine copies Paths, so a submitted Request is
// never observed to change.
type Request struct {
	Paths   []string
	Format  Format
	Quality int // JPEG quality 1-100; ignored for PNG.
}

// BatchInfo describes a batch at the moment it starts.
type BatchInfo struct {
	BatchID        string
	Paths          []string
	Total          int
	Format         Format
	Quality        int
	DestinationDir string
	StartedAt      time.Time
}

// Hooks defines callbacks for progress updates during a batch.
// Implementations MUST be thread-safe; with Concurrency > 1 the engine still
// calls them from a single goroutine, but hooks may be shared across batches.
type Hooks interface {
	OnBatchStart(info BatchInfo) error
	OnFileStatusUpdate(index int, outcome Outcome) error
	OnBatchComplete(result BatchResult) error
}

// NoOpHooks provides a default, do-nothing implementation of the Hooks interface.
type NoOpHooks struct{}

// OnBatchStart implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnBatchStart(info BatchInfo) error { return nil }

// OnFileStatusUpdate implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnFileStatusUpdate(index int, outcome Outcome) error { return nil }

// OnBatchComplete implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnBatchComplete(result BatchResult) error { return nil }

// ChainHooks returns Hooks that call each of hooks in order. Nil entries are
// ignored and the first error is returned after every hook has been called.
func ChainHooks(hooks ...Hooks) Hooks {
	chain := make(hookChain, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			chain = append(chain, h)
		}
	}
	return chain
}

type hookChain []Hooks

func (c hookChain) OnBatchStart(info BatchInfo) error {
	var first error
	for _, h := range c {
		if err := h.OnBatchStart(info); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c hookChain) OnFileStatusUpdate(index int, outcome Outcome) error {
	var first error
	for _, h := range c {
		if err := h.OnFileStatusUpdate(index, outcome); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c hookChain) OnBatchComplete(result BatchResult) error {
	var first error
	for _, h := range c {
		if err := h.OnBatchComplete(result); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ImageCodec is the image codec capability the engine delegates pixel work to.
// The default implementation lives in pkg/converter/imaging.
type ImageCodec interface {
	Decode(path string) (image.Image, error)
	EncodePNG(img image.Image, path string) error
	EncodeJPEG(img image.Image, path string, quality int) error
}

// FileSystem is the filesystem capability used for the destination directory
// and collision checks.
type FileSystem interface {
	EnsureDir(path string) error
	Exists(path string) bool
}

// OSFileSystem implements FileSystem on the local disk.
type OSFileSystem struct{}

// EnsureDir creates path and any missing parents. It is a no-op when the directory exists.
func (OSFileSystem) EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// Exists reports whether path exists.
func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

// WatchConfig holds settings related to watch mode.
type WatchConfig struct {
	Debounce string `mapstructure:"debounce"`
}

// HistoryConfig holds settings for the batch history database.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Options holds the configuration for the engine and the CLI shell around it.
// Fields tagged `mapstructure:"-"` are derived or injected rather than read from config.
type Options struct {
	// --- Core ---
	DestinationDir  string          `mapstructure:"destination"` // Absolute path; default <home>/WebP_Converted
	FormatName      string          `mapstructure:"format"`      // "png" or "jpg" as configured
	Format          Format          `mapstructure:"-"`           // Derived from FormatName
	Quality         int             `mapstructure:"quality"`     // JPEG quality, clamped to [1,100]
	Concurrency     int             `mapstructure:"concurrency"` // Workers (0 or 1=sequential, -1=one per CPU)
	CollisionPolicy CollisionPolicy `mapstructure:"onCollision"` // ("overwrite", "fail", "rename")

	// --- Application Info ---
	AppVersion     string `mapstructure:"-"`
	ConfigFilePath string `mapstructure:"-"`
	ProfileName    string `mapstructure:"-"`

	// --- Shell Behavior ---
	Inputs         []string      `mapstructure:"-"`         // Positional arguments (files or directories)
	Recursive      bool          `mapstructure:"recursive"` // Descend into directory inputs
	IgnorePatterns []string      `mapstructure:"ignore"`    // Glob patterns skipped during expansion
	Verbose        bool          `mapstructure:"verbose"`
	TuiEnabled     bool          `mapstructure:"tuiEnabled"`
	OutputFormat   OutputFormat  `mapstructure:"outputFormat"`
	WatchMode      bool          `mapstructure:"-"`
	WatchDebounce  time.Duration `mapstructure:"-"`
	WatchConfig    WatchConfig   `mapstructure:"watch"`
	History        HistoryConfig `mapstructure:"history"`

	// --- Injected Dependencies ---
	EventHooks Hooks        `mapstructure:"-"` // Optional: defaults to NoOpHooks
	Logger     slog.Handler `mapstructure:"-"` // Required: Logging backend
	Codec      ImageCodec   `mapstructure:"-"` // Optional: defaults to imaging.NewCodec()
	FileSystem FileSystem   `mapstructure:"-"` // Optional: defaults to OSFileSystem
}
