package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edwardmakesthings/pyweaver/internal/config"
	"github.com/edwardmakesthings/pyweaver/internal/structure"
)

// NewStructureCommand creates the structure command.
func NewStructureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "structure",
		Short: "Print the project's directory structure",
		Long: `Render the project layout as a tree, flat list, indented list or markdown
list, with optional size and modification-date annotations. The report goes to
stdout unless an output file is configured.

Examples:
  pyweaver structure
  pyweaver structure --style markdown --sort files_first
  pyweaver structure --sizes --modified --max-depth 3
  pyweaver structure --output docs/structure.txt`,
		Args: cobra.NoArgs,
		RunE: runStructure,
	}

	cmd.Flags().String("style", "", "Report style: tree, flat, indented, markdown")
	cmd.Flags().String("sort", "", "Sort order: alpha, dirs_first, files_first, modified, size")
	cmd.Flags().Bool("sizes", false, "Show file sizes")
	cmd.Flags().Bool("modified", false, "Show modification dates")
	cmd.Flags().Int("max-depth", 0, "Limit the rendered depth (0 = unlimited)")
	cmd.Flags().Bool("include-empty", false, "Keep directories with no matching children")
	cmd.Flags().String("output", "", "Write the report to a file instead of stdout")

	return cmd
}

func runStructure(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	settings := mergeStructureFlags(cmd, a.cfg.Structure)

	bar, stopBar := a.progress("structure")
	defer stopBar()

	p, err := structure.New(structure.Options{
		Settings:    settings,
		Paths:       a.paths(),
		Logger:      a.log,
		MaxAttempts: a.cfg.MaxAttempts,
		Progress:    bar,
	})
	if err != nil {
		return err
	}

	result, err := p.Run()
	stopBar()
	if err != nil {
		return err
	}

	if p.OutputPath() == "" {
		fmt.Fprint(a.out, p.Report())
	} else {
		fmt.Fprintf(a.out, "wrote %s\n", p.OutputPath())
	}

	return a.finish("structure", result)
}

// mergeStructureFlags overlays explicitly-set structure flags onto the config
// section.
func mergeStructureFlags(cmd *cobra.Command, settings config.StructureSettings) config.StructureSettings {
	if cmd.Flags().Changed("style") {
		settings.Style, _ = cmd.Flags().GetString("style")
	}
	if cmd.Flags().Changed("sort") {
		settings.SortOrder, _ = cmd.Flags().GetString("sort")
	}
	if cmd.Flags().Changed("sizes") {
		settings.ShowSizes, _ = cmd.Flags().GetBool("sizes")
	}
	if cmd.Flags().Changed("modified") {
		settings.ShowModified, _ = cmd.Flags().GetBool("modified")
	}
	if cmd.Flags().Changed("max-depth") {
		settings.MaxDepth, _ = cmd.Flags().GetInt("max-depth")
	}
	if cmd.Flags().Changed("include-empty") {
		settings.IncludeEmpty, _ = cmd.Flags().GetBool("include-empty")
	}
	if cmd.Flags().Changed("output") {
		settings.OutputFile, _ = cmd.Flags().GetString("output")
	}
	return settings
}
