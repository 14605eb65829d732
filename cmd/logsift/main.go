// logsift - log ingestion and normalization pipeline.
// Converts heterogeneous, possibly multi-line raw log files into
// structured records with per-file fault isolation.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// Global flags
var (
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "logsift",
	Short: "logsift - normalize raw log files into structured records",
	Long: `logsift ingests raw, possibly multi-line log files from a work
directory, classifies each line against a configurable format catalog,
assembles continuation lines into complete records, and moves every
file to a processed or error directory.`,
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// newLogger builds the process logger handed to every component.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
