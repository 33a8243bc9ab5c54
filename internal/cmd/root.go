// Package cmd wires the pyweaver command-line interface. Each tool is one
// cobra subcommand; configuration merges defaults, the project config file
// and explicitly-set flags, in that order.
package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for pyweaver.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pyweaver",
		Short: "Python project file tools",
		Long: `pyweaver generates __init__.py files, combines project sources into a
single annotated file, prints directory structures and keeps an archive of
finished runs.

Configuration is loaded from .pyweaver.yaml in the project root.
CLI flags override configuration file settings.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().Bool("verbose", false, "Show debug-level output")
	cmd.PersistentFlags().Bool("quiet", false, "Only show errors")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	cmd.PersistentFlags().Bool("log-file", false, "Also write a run log file under the configured log directory")
	cmd.PersistentFlags().String("config", "", "Path to config file (default: <root>/.pyweaver.yaml)")
	cmd.PersistentFlags().String("root", ".", "Project root directory")
	cmd.PersistentFlags().Bool("no-history", false, "Do not record this run in the history archive")

	cmd.AddCommand(NewInitCommand())
	cmd.AddCommand(NewCombineCommand())
	cmd.AddCommand(NewStructureCommand())
	cmd.AddCommand(NewReadmeCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewWatchCommand())

	return cmd
}
