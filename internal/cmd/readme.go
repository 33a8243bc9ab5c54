package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edwardmakesthings/pyweaver/internal/readme"
)

// NewReadmeCommand creates the readme command.
func NewReadmeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readme",
		Short: "Rewrite the README for the docs site",
		Long: `Transform the repository README into its docs-site variant: strip or
retitle the badge header, drop the configured sections and rewrite
repo-relative links against the docs-site prefix.

Examples:
  pyweaver readme --in README.md --out docs/index.md
  pyweaver readme --title "pyweaver documentation" --drop Development
  pyweaver readme --link-prefix https://docs.example.com/`,
		Args: cobra.NoArgs,
		RunE: runReadme,
	}

	cmd.Flags().String("in", "", "Input README path")
	cmd.Flags().String("out", "", "Output markdown path")
	cmd.Flags().String("title", "", "Replacement top-level heading")
	cmd.Flags().StringSlice("drop", nil, "Section headings to drop with their bodies")
	cmd.Flags().String("link-prefix", "", "Prefix for repo-relative link targets")
	cmd.Flags().Bool("keep-badges", false, "Keep badge lines under the top heading")

	return cmd
}

func runReadme(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	settings := a.cfg.Readme
	if cmd.Flags().Changed("in") {
		settings.InputFile, _ = cmd.Flags().GetString("in")
	}
	if cmd.Flags().Changed("out") {
		settings.OutputFile, _ = cmd.Flags().GetString("out")
	}
	if cmd.Flags().Changed("title") {
		settings.Title, _ = cmd.Flags().GetString("title")
	}
	if cmd.Flags().Changed("drop") {
		settings.DropSections, _ = cmd.Flags().GetStringSlice("drop")
	}
	if cmd.Flags().Changed("link-prefix") {
		settings.LinkPrefix, _ = cmd.Flags().GetString("link-prefix")
	}
	if keep, _ := cmd.Flags().GetBool("keep-badges"); keep {
		settings.StripBadges = false
	}

	out, err := readme.New(settings, a.log).Run(a.root)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %s\n", out)
	return nil
}
