package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edwardmakesthings/pyweaver/internal/combiner"
	"github.com/edwardmakesthings/pyweaver/internal/config"
)

// NewCombineCommand creates the combine command.
func NewCombineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Combine project sources into one annotated file",
		Long: `Concatenate every matched source file into a single output file. Each file
is framed with a ruler-delimited header naming its relative path; comments and
docstrings can be stripped per the content mode.

Examples:
  pyweaver combine
  pyweaver combine --output everything.txt --mode minimal
  pyweaver combine --include-tree --stats
  pyweaver combine --dry-run --preview 40`,
		Args: cobra.NoArgs,
		RunE: runCombine,
	}

	cmd.Flags().String("output", "", "Output file path")
	cmd.Flags().String("mode", "", "Content mode: full, no_comments, no_docstrings, minimal")
	cmd.Flags().Bool("remove-comments", false, "Strip comments (ignored when --mode is set)")
	cmd.Flags().Bool("remove-docstrings", false, "Strip docstrings (ignored when --mode is set)")
	cmd.Flags().Bool("include-tree", false, "Prepend a commented tree of the included files")
	cmd.Flags().Bool("stats", false, "Append line/size notes to section headers")
	cmd.Flags().Int("ruler-width", 0, "Width of the # rulers around section headers")
	cmd.Flags().Bool("dry-run", false, "Assemble the output without writing it")
	cmd.Flags().Int("preview", 0, "Print the first N lines of the assembled output")

	return cmd
}

func runCombine(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	settings := mergeCombineFlags(cmd, a.cfg.Combiner)
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	previewLines, _ := cmd.Flags().GetInt("preview")

	bar, stopBar := a.progress("combine")
	defer stopBar()

	c, err := combiner.New(combiner.Options{
		Settings:    settings,
		Paths:       a.paths(),
		Logger:      a.log,
		MaxAttempts: a.cfg.MaxAttempts,
		DryRun:      dryRun,
		Progress:    bar,
	})
	if err != nil {
		return err
	}

	result, err := c.Run()
	stopBar()
	if err != nil {
		return err
	}

	if previewLines > 0 {
		fmt.Fprintln(a.out, c.Preview(previewLines))
	}
	if !dryRun {
		fmt.Fprintf(a.out, "wrote %s\n", c.OutputPath())
	}

	return a.finish("combine", result)
}

// mergeCombineFlags overlays explicitly-set combine flags onto the config
// section.
func mergeCombineFlags(cmd *cobra.Command, settings config.CombinerSettings) config.CombinerSettings {
	if cmd.Flags().Changed("output") {
		settings.OutputFile, _ = cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("mode") {
		settings.ContentMode, _ = cmd.Flags().GetString("mode")
	}
	if cmd.Flags().Changed("remove-comments") {
		settings.RemoveComments, _ = cmd.Flags().GetBool("remove-comments")
	}
	if cmd.Flags().Changed("remove-docstrings") {
		settings.RemoveDocstrings, _ = cmd.Flags().GetBool("remove-docstrings")
	}
	if cmd.Flags().Changed("include-tree") {
		settings.IncludeTree, _ = cmd.Flags().GetBool("include-tree")
	}
	if cmd.Flags().Changed("stats") {
		settings.ShowFileStats, _ = cmd.Flags().GetBool("stats")
	}
	if cmd.Flags().Changed("ruler-width") {
		settings.RulerWidth, _ = cmd.Flags().GetInt("ruler-width")
	}
	return settings
}
