package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/VolkanSah/ImageConverter/pkg/converter"
	"github.com/VolkanSah/ImageConverter/pkg/converter/history"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "WEBPCONVERTER"
	DefaultConfigName = "webp-converter"
)

// flagKeys maps command-line flag names to the config keys they override.
var flagKeys = map[string]string{
	"format":         "format",
	"quality":        "quality",
	"output":         "destination",
	"concurrency":    "concurrency",
	"on-collision":   "onCollision",
	"recursive":      "recursive",
	"ignore":         "ignore",
	"output-format":  "outputFormat",
	"watch-debounce": "watch.debounce",
	"history-path":   "history.path",
}

// LoadAndValidate loads configuration from all sources (defaults, file,
// profile, env, flags), validates the merged result and derives the typed
// fields. It also builds the stderr logger and injects its handler into the
// returned Options.
func LoadAndValidate(cfgFile, profileName, appVersion string, verbose bool, flags *pflag.FlagSet) (converter.Options, *slog.Logger, error) {
	var opts converter.Options
	v := viper.New()

	// Basic logger for errors that happen before the final level is known.
	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	setDefaults(v)

	// --- Load Config File ---
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			tempLogger.Error("Failed to get user home directory", slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
		v.AddConfigPath(filepath.Join(home, "."+DefaultConfigName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			tempLogger.Debug("No configuration file found, using defaults/env/flags.")
		} else {
			configFileUsed := cfgFile
			if configFileUsed == "" {
				configFileUsed = fmt.Sprintf("searched locations for %s.yaml", DefaultConfigName)
			}
			tempLogger.Error("Error reading configuration file", slog.String("path", configFileUsed), slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("error reading config file '%s': %w", configFileUsed, err)
		}
	} else {
		opts.ConfigFilePath = v.ConfigFileUsed()
		tempLogger.Debug("Using configuration file", slog.String("path", opts.ConfigFilePath))
	}

	// --- Apply Profile ---
	opts.ProfileName = profileName
	if profileName != "" {
		profileKey := "profiles." + profileName
		if !v.IsSet(profileKey) {
			configPath := v.ConfigFileUsed()
			if configPath == "" {
				configPath = "(no config file found)"
			}
			err := fmt.Errorf("%w: profile '%s' not found in config file '%s'", converter.ErrConfigValidation, profileName, configPath)
			tempLogger.Error(err.Error())
			return opts, tempLogger, err
		}
		profileSettings := v.Sub(profileKey)
		if profileSettings == nil {
			err := fmt.Errorf("%w: profile '%s' is not a mapping", converter.ErrConfigValidation, profileName)
			tempLogger.Error(err.Error())
			return opts, tempLogger, err
		}
		if err := v.MergeConfigMap(profileSettings.AllSettings()); err != nil {
			tempLogger.Error("Error merging profile", slog.String("profile", profileName), slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("error merging profile '%s': %w", profileName, err)
		}
		tempLogger.Debug("Applied configuration profile", slog.String("profile", profileName))
	}

	// --- Bind Environment Variables ---
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// --- Bind Flags (Highest Priority) ---
	if flags != nil {
		for flagName, key := range flagKeys {
			flag := flags.Lookup(flagName)
			if flag == nil {
				tempLogger.Debug("Flag lookup failed during binding", slog.String("flag", flagName))
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				tempLogger.Error("Error binding flag", slog.String("flag", flagName), slog.Any("error", err))
				return opts, tempLogger, fmt.Errorf("error binding flag '--%s': %w", flagName, err)
			}
		}
	}

	opts.AppVersion = appVersion
	if err := v.Unmarshal(&opts); err != nil {
		tempLogger.Error("Error unmarshalling configuration", slog.Any("error", err))
		return opts, tempLogger, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// --- Explicit Flag Overrides for Booleans ---
	if verbose {
		opts.Verbose = true
	}
	if flags != nil {
		if flags.Changed("verbose") {
			opts.Verbose, _ = flags.GetBool("verbose")
		}
		if flags.Changed("no-tui") {
			if noTui, _ := flags.GetBool("no-tui"); noTui {
				opts.TuiEnabled = false
			}
		}
		if flags.Changed("watch") {
			opts.WatchMode, _ = flags.GetBool("watch")
		}
		if flags.Changed("no-history") {
			if noHistory, _ := flags.GetBool("no-history"); noHistory {
				opts.History.Enabled = false
			}
		}
	}

	// --- Setup Final Logger ---
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logHandler)
	opts.Logger = logHandler

	// WatchConfig.Debounce arrives as a string.
	debounce, err := time.ParseDuration(opts.WatchConfig.Debounce)
	if err != nil {
		if flags != nil && flags.Changed("watch-debounce") {
			err = fmt.Errorf("%w: invalid watch debounce duration '%s': %w", converter.ErrConfigValidation, opts.WatchConfig.Debounce, err)
			logger.Error(err.Error(), slog.String("key", "watch.debounce"))
			return opts, logger, err
		}
		logger.Warn("Could not parse watch.debounce string, using default",
			slog.String("value", opts.WatchConfig.Debounce),
			slog.Duration("default", converter.DefaultWatchDebounceDuration),
			slog.String("error", err.Error()))
		debounce = converter.DefaultWatchDebounceDuration
	}
	if debounce < 0 {
		err = fmt.Errorf("%w: invalid negative watch debounce duration '%s'", converter.ErrConfigValidation, opts.WatchConfig.Debounce)
		logger.Error(err.Error(), slog.String("key", "watch.debounce"))
		return opts, logger, err
	}
	opts.WatchDebounce = debounce

	if err := validateAndDeriveOptions(&opts, logger); err != nil {
		return opts, logger, err
	}

	logger.Debug("Configuration loading and validation complete",
		slog.String("configFile", opts.ConfigFilePath),
		slog.String("profile", opts.ProfileName),
		slog.Bool("verbose", opts.Verbose),
		slog.String("logLevel", logLevel.String()),
	)
	return opts, logger, nil
}

// setDefaults establishes the default values for configuration options in Viper.
func setDefaults(v *viper.Viper) {
	// --- Conversion ---
	v.SetDefault("format", strings.ToLower(string(converter.DefaultFormat)))
	v.SetDefault("quality", converter.DefaultQuality)
	v.SetDefault("destination", "") // Resolved to <home>/WebP_Converted
	v.SetDefault("concurrency", converter.DefaultConcurrency)
	v.SetDefault("onCollision", string(converter.DefaultCollisionPolicy))

	// --- Input Selection ---
	v.SetDefault("recursive", converter.DefaultRecursive)
	v.SetDefault("ignore", []string{})

	// --- Output & Behavior ---
	v.SetDefault("verbose", converter.DefaultVerbose)
	v.SetDefault("tuiEnabled", converter.DefaultTuiEnabled)
	v.SetDefault("outputFormat", string(converter.DefaultOutputFormat))

	// --- Workflow Features ---
	v.SetDefault("watch.debounce", converter.DefaultWatchDebounceString)
	v.SetDefault("history.enabled", converter.DefaultHistoryEnabled)
	v.SetDefault("history.path", "") // Resolved to the user config dir
}

func isValidEnumValue[T ~string](value T, allowedValues []T) bool {
	return slices.Contains(allowedValues, value)
}

// validateAndDeriveOptions performs semantic validation on the populated
// Options and fills derived fields. Errors wrap converter.ErrConfigValidation.
func validateAndDeriveOptions(opts *converter.Options, logger *slog.Logger) error {
	format, err := converter.ParseFormat(opts.FormatName)
	if err != nil {
		logger.Error(err.Error(), slog.String("key", "format"), slog.String("value", opts.FormatName))
		return err
	}
	opts.Format = format

	switch {
	case opts.Quality < converter.MinQuality:
		logger.Warn("JPEG quality below range, clamping", slog.Int("value", opts.Quality), slog.Int("clampedTo", converter.MinQuality))
		opts.Quality = converter.MinQuality
	case opts.Quality > converter.MaxQuality:
		logger.Warn("JPEG quality above range, clamping", slog.Int("value", opts.Quality), slog.Int("clampedTo", converter.MaxQuality))
		opts.Quality = converter.MaxQuality
	}

	if opts.DestinationDir == "" {
		dir, err := converter.DefaultDestinationDir()
		if err != nil {
			err = fmt.Errorf("%w: cannot resolve default destination: %w", converter.ErrConfigValidation, err)
			logger.Error(err.Error(), slog.String("key", "destination"))
			return err
		}
		opts.DestinationDir = dir
	}
	absDest, err := filepath.Abs(opts.DestinationDir)
	if err != nil {
		err = fmt.Errorf("%w: cannot resolve absolute destination '%s': %w", converter.ErrConfigValidation, opts.DestinationDir, err)
		logger.Error(err.Error(), slog.String("key", "destination"))
		return err
	}
	opts.DestinationDir = absDest

	allowedCollision := []converter.CollisionPolicy{converter.CollisionOverwrite, converter.CollisionFail, converter.CollisionRename}
	if !isValidEnumValue(opts.CollisionPolicy, allowedCollision) {
		err := fmt.Errorf("%w: invalid value '%s' for key 'onCollision' (flag --on-collision). Allowed: %v", converter.ErrConfigValidation, opts.CollisionPolicy, allowedCollision)
		logger.Error(err.Error(), slog.String("key", "onCollision"))
		return err
	}
	allowedOutputFormat := []converter.OutputFormat{converter.OutputFormatText, converter.OutputFormatJSON, converter.OutputFormatYAML}
	if !isValidEnumValue(opts.OutputFormat, allowedOutputFormat) {
		err := fmt.Errorf("%w: invalid value '%s' for key 'outputFormat' (flag --output-format). Allowed: %v", converter.ErrConfigValidation, opts.OutputFormat, allowedOutputFormat)
		logger.Error(err.Error(), slog.String("key", "outputFormat"))
		return err
	}

	if opts.Concurrency < converter.AutoConcurrency {
		err := fmt.Errorf("%w: invalid value '%d' for key 'concurrency' (flag --concurrency). Must be >= %d", converter.ErrConfigValidation, opts.Concurrency, converter.AutoConcurrency)
		logger.Error(err.Error(), slog.String("key", "concurrency"))
		return err
	}

	if opts.History.Enabled && opts.History.Path == "" {
		path, err := history.DefaultPath()
		if err != nil {
			logger.Warn("Cannot resolve history location, disabling history", slog.String("error", err.Error()))
			opts.History.Enabled = false
		} else {
			opts.History.Path = path
		}
	}

	// Verbose logs and the TUI both want the terminal.
	if opts.Verbose && opts.TuiEnabled {
		logger.Debug("Verbose mode enabled, TUI disabled")
		opts.TuiEnabled = false
	}

	logger.Debug("Final derived settings validated",
		slog.String("format", string(opts.Format)),
		slog.Int("quality", opts.Quality),
		slog.String("destination", opts.DestinationDir),
		slog.Int("concurrency", opts.Concurrency),
		slog.String("onCollision", string(opts.CollisionPolicy)),
		slog.Duration("watchDebounce", opts.WatchDebounce),
		slog.Bool("historyEnabled", opts.History.Enabled),
		slog.Bool("tuiEnabledEffective", opts.TuiEnabled),
	)
	return nil
}
