// Package cli implements the tablegest command line.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X".
var version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "tablegest",
	Short: "Extract tables from HTML documents",
	Long: `tablegest finds the tables of an HTML, Markdown, or CSV document and
prints each as a rectangular grid with its cell markup and the headings and
paragraphs around it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log dropped tables and other details to stderr")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}
