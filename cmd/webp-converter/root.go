package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/VolkanSah/ImageConverter/internal/cli"
	"github.com/VolkanSah/ImageConverter/internal/cli/config"
	"github.com/VolkanSah/ImageConverter/pkg/converter"
	"github.com/VolkanSah/ImageConverter/pkg/converter/history"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

var (
	// These are set during build time using -ldflags
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Flags persistent across commands
	cfgFile     string
	profileName string
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webp-converter [flags] <files|dirs>...",
		Short: "Converts WebP images to PNG or JPEG.",
		Long: `webp-converter converts batches of WebP images into PNG or JPEG files
in a single destination directory.

It features:
  - Lossless PNG output with the alpha channel preserved.
  - JPEG output with transparency flattened onto white.
  - Parallel conversion and collision policies for existing files.
  - Watch mode for directories that keep receiving new images.
  - A batch history and text, JSON or YAML reports.
  - An interactive Terminal UI (TUI) for monitoring progress.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			opts, logger, err := config.LoadAndValidate(cfgFile, profileName, version, verbose, cmd.Flags())
			if err != nil {
				return err
			}
			opts.Inputs = args

			// Give the terminal a moment before the TUI takes over the screen.
			if term.IsTerminal(int(os.Stdout.Fd())) && !opts.Verbose && opts.TuiEnabled {
				time.Sleep(100 * time.Millisecond)
			}
			return cli.Run(ctx, opts, logger)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default is search standard locations like ., $HOME/.config/webp-converter/)")
	cmd.PersistentFlags().StringVar(&profileName, "profile", "", "Name of configuration profile to use")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging output (disables TUI)")

	// Conversion flags
	cmd.Flags().StringP("format", "f", string(converter.DefaultFormat), `Target format ("png", "jpg" or "jpeg")`)
	cmd.Flags().IntP("quality", "q", converter.DefaultQuality, "JPEG quality (1-100, clamped)")
	cmd.Flags().StringP("output", "o", "", "Destination directory (default $HOME/"+converter.DefaultDestinationDirName+")")
	cmd.Flags().Int("concurrency", converter.DefaultConcurrency, "Number of parallel workers (-1 for one per CPU core)")
	cmd.Flags().String("on-collision", string(converter.DefaultCollisionPolicy), `Behavior when the output file exists ("overwrite", "fail", "rename")`)

	// Input flags
	cmd.Flags().BoolP("recursive", "r", false, "Descend into subdirectories of directory inputs")
	cmd.Flags().StringArray("ignore", []string{}, "Glob patterns for files/directories to ignore (can be specified multiple times)")

	// Output & workflow flags
	cmd.Flags().Bool("no-tui", false, "Disable interactive Terminal UI even if in a TTY")
	cmd.Flags().String("output-format", string(converter.DefaultOutputFormat), `Final report format ("text", "json", "yaml")`)
	cmd.Flags().Bool("watch", false, "Keep watching directory inputs and convert new WebP files")
	cmd.Flags().String("watch-debounce", converter.DefaultWatchDebounceString, "Watch debounce duration string (e.g., '300ms', '1s')")
	cmd.Flags().Bool("no-history", false, "Do not record the batch in the history database")
	cmd.Flags().String("history-path", "", "History database path (default $XDG_CONFIG_HOME/webp-converter/"+history.FileName+")")

	cmd.AddCommand(newHistoryCmd())
	return cmd
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Lists recently recorded batches, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, _, err := config.LoadAndValidate(cfgFile, profileName, version, verbose, cmd.Flags())
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			if _, err := os.Stat(opts.History.Path); os.IsNotExist(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "No batches recorded yet.")
				return nil
			}
			store, err := history.Open(opts.History.Path, opts.Logger)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), entries, opts.OutputFormat)
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of batches to list (0 for all)")
	cmd.Flags().String("history-path", "", "History database path")
	cmd.Flags().String("output-format", string(converter.DefaultOutputFormat), `Listing format ("text", "json", "yaml")`)
	return cmd
}

func printHistory(w io.Writer, entries []history.Entry, format converter.OutputFormat) error {
	switch format {
	case converter.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case converter.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No batches recorded yet.")
		return err
	}

	subtle := color.New(color.FgHiBlack).SprintFunc()
	for _, e := range entries {
		verdict := e.Verdict
		switch converter.Verdict(e.Verdict) {
		case converter.VerdictAllSucceeded:
			verdict = color.HiGreenString(verdict)
		case converter.VerdictPartial:
			verdict = color.HiYellowString(verdict)
		default:
			verdict = color.HiRedString(verdict)
		}
		_, err := fmt.Fprintf(w, "%s  %s  %-4s %d/%d  %s  %s\n",
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			subtle(e.BatchID[:min(8, len(e.BatchID))]),
			e.Format, e.Successful, e.Total, verdict,
			subtle(filepath.Clean(e.DestinationDir)))
		if err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	rootCmd.SetVersionTemplate(`{{.Use}} version {{.Version}}` + "\n")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.HiRedString("Error:"), err)
		os.Exit(1)
	}
}
