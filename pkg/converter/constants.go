package converter

import "time"

// Constants defining default values for configuration options.
// These are used when setting up Viper defaults in the configuration loading process.
const (
	// SourceExtension is the only extension treated as a conversion candidate (compared case-insensitively).
	SourceExtension = ".webp"
	// DefaultFormat is the target format when none is configured.
	DefaultFormat = FormatPNG
	// DefaultQuality is the default JPEG quality.
	DefaultQuality = 100
	// MinQuality and MaxQuality bound the JPEG quality setting.
	MinQuality = 1
	MaxQuality = 100
	// DefaultDestinationDirName is the folder created under the user's home directory.
	DefaultDestinationDirName = "WebP_Converted"
	// DefaultConcurrency runs the batch on a single worker.
	DefaultConcurrency = 1
	// AutoConcurrency sizes the worker pool to the number of CPUs.
	AutoConcurrency = -1
	// DefaultCollisionPolicy keeps the historical last-writer-wins behavior.
	DefaultCollisionPolicy = CollisionOverwrite
	// DefaultTuiEnabled is the default state for the Terminal UI.
	DefaultTuiEnabled = true
	// DefaultRecursive controls whether directory inputs are descended into.
	DefaultRecursive = false
	// DefaultOutputFormat is the default final report format.
	DefaultOutputFormat = OutputFormatText
	// DefaultVerbose is the default verbosity.
	DefaultVerbose = false
	// DefaultHistoryEnabled records finished batches in the history database.
	DefaultHistoryEnabled = true
	// DefaultWatchDebounceString is the default quiet period before a watch batch is submitted.
	DefaultWatchDebounceString = "500ms"
	// DefaultWatchDebounceDuration is DefaultWatchDebounceString parsed.
	DefaultWatchDebounceDuration = 500 * time.Millisecond

	// ReportSchemaVersion is the version of the JSON/YAML report layout.
	ReportSchemaVersion = "1.0"

	// eventBufferSize bounds the number of undelivered events per batch.
	eventBufferSize = 64
)
