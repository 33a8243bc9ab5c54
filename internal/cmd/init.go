package cmd

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/edwardmakesthings/pyweaver/internal/config"
	"github.com/edwardmakesthings/pyweaver/internal/initgen"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate __init__.py files for every package directory",
		Long: `Scan the project for Python package directories and write an __init__.py
for each one: a docstring describing the package, grouped re-exports for the
classes, functions, constants and type definitions its modules define, and
optionally an __all__ list.

Files whose generated content is unchanged are left untouched.

Examples:
  pyweaver init
  pyweaver init --dry-run
  pyweaver init --docstring "Public API for {package}." --no-all`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}

	cmd.Flags().Bool("dry-run", false, "Collect previews without writing files")
	cmd.Flags().String("docstring", "", "Docstring template ({package} and {path} placeholders)")
	cmd.Flags().Bool("all", false, "Emit an __all__ block (overrides config)")
	cmd.Flags().Bool("no-all", false, "Do not emit an __all__ block (overrides config)")
	cmd.Flags().Bool("include-private", false, "Export names with a leading underscore")
	cmd.Flags().StringSlice("exclude-module", nil, "Module names never imported from")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if cmd.Flags().Changed("all") && cmd.Flags().Changed("no-all") {
		return fmt.Errorf("cannot use both --all and --no-all")
	}

	// Legacy init_config.json sits between the yaml config and the flags.
	settings, pathSettings, err := config.LoadInitConfig(
		filepath.Join(a.root, config.InitConfigFileName), a.cfg.Init, a.cfg.Path)
	if err != nil {
		return err
	}
	a.cfg.Path = pathSettings
	if cmd.Flags().Changed("dry-run") {
		settings.DryRun, _ = cmd.Flags().GetBool("dry-run")
	}
	if cmd.Flags().Changed("docstring") {
		settings.DocstringTemplate, _ = cmd.Flags().GetString("docstring")
	}
	if cmd.Flags().Changed("all") {
		settings.GenerateAll, _ = cmd.Flags().GetBool("all")
	}
	if cmd.Flags().Changed("no-all") {
		settings.GenerateAll = false
	}
	if cmd.Flags().Changed("include-private") {
		settings.IncludePrivate, _ = cmd.Flags().GetBool("include-private")
	}
	if cmd.Flags().Changed("exclude-module") {
		settings.ExcludedModules, _ = cmd.Flags().GetStringSlice("exclude-module")
	}

	bar, stopBar := a.progress("init")
	defer stopBar()

	gen := initgen.New(initgen.Options{
		Settings:    settings,
		Paths:       a.paths(),
		Logger:      a.log,
		MaxAttempts: a.cfg.MaxAttempts,
		Progress:    bar,
	})
	result, err := gen.Run()
	stopBar()
	if err != nil {
		return err
	}

	if settings.DryRun {
		previews := gen.Preview()
		paths := make([]string, 0, len(previews))
		for path := range previews {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			fmt.Fprintf(a.out, "--- %s ---\n%s\n", path, previews[path])
		}
	} else {
		for _, path := range gen.Written() {
			fmt.Fprintf(a.out, "wrote %s\n", path)
		}
	}

	return a.finish("init", result)
}
