package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the 'pyweaver history' parent command.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the archive of finished runs",
		Long: `Commands for listing, inspecting and exporting the archive of finished
pyweaver runs. Every tool records its final report here unless history is
disabled.`,
	}

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryExportCommand())

	return cmd
}

func newHistoryListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistoryList,
	}
	cmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 = all)")
	return cmd
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.out, "no recorded runs")
		return nil
	}

	for _, run := range runs {
		fmt.Fprintf(a.out, "%s  %-6s  %-9s  %3d file(s)  %6s  %s\n",
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			a.statusWord(run.Success),
			run.Tool,
			run.FilesProcessed,
			(time.Duration(run.Duration) * time.Millisecond).Round(time.Millisecond),
			run.RunID)
	}
	return nil
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one archived run in full",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	}
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Show(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Run:       %s\n", run.RunID)
	fmt.Fprintf(a.out, "Tool:      %s\n", run.Tool)
	fmt.Fprintf(a.out, "Root:      %s\n", run.Root)
	fmt.Fprintf(a.out, "Status:    %s\n", a.statusWord(run.Success))
	if run.Message != "" {
		fmt.Fprintf(a.out, "Message:   %s\n", run.Message)
	}
	fmt.Fprintf(a.out, "Files:     %d processed, %d ignored, %d error(s) of %d\n",
		run.FilesProcessed, run.IgnoredItems, run.ErrorItems, run.TotalItems)
	fmt.Fprintf(a.out, "Duration:  %s\n", time.Duration(run.Duration)*time.Millisecond)
	fmt.Fprintf(a.out, "Timestamp: %s\n", run.Timestamp.Local().Format(time.RFC3339))
	for _, w := range run.Warnings {
		fmt.Fprintf(a.out, "warning: %s\n", w)
	}
	for _, e := range run.Errors {
		fmt.Fprintf(a.out, "error: %s\n", e)
	}
	return nil
}

func newHistoryExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the archive as YAML",
		Args:  cobra.NoArgs,
		RunE:  runHistoryExport,
	}
	cmd.Flags().String("out", "", "Write to a file instead of stdout")
	return cmd
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), 0)
	if err != nil {
		return err
	}

	outPath, _ := cmd.Flags().GetString("out")
	if outPath == "" {
		return store.ExportYAML(a.out, runs)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("cannot create export file: %w", err)
	}
	defer f.Close()
	if err := store.ExportYAML(f, runs); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %s\n", outPath)
	return nil
}

// statusWord renders ok/failed, colored when enabled.
func (a *app) statusWord(success bool) string {
	if success {
		if a.useColor {
			return color.New(color.FgGreen).Sprint("ok")
		}
		return "ok"
	}
	if a.useColor {
		return color.New(color.FgRed).Sprint("failed")
	}
	return "failed"
}
