package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/edwardmakesthings/pyweaver/internal/combiner"
	"github.com/edwardmakesthings/pyweaver/internal/processor"
	"github.com/edwardmakesthings/pyweaver/internal/structure"
	"github.com/edwardmakesthings/pyweaver/internal/watcher"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run a tool whenever project files change",
		Long: `Watch the project root recursively and re-run the selected tool on every
debounced change. Changes to the tool's own output file are ignored so a run
never retriggers itself. Stop with Ctrl-C.

Examples:
  pyweaver watch
  pyweaver watch --tool structure --debounce 500ms`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}

	cmd.Flags().String("tool", "combine", "Tool to re-run: combine or structure")
	cmd.Flags().Duration("debounce", watcher.DefaultDebounce, "Quiet period before a write event fires")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	tool, _ := cmd.Flags().GetString("tool")
	debounce, _ := cmd.Flags().GetDuration("debounce")

	run, outputs, err := a.watchRunner(tool)
	if err != nil {
		return err
	}

	// One run up front so the output exists before the first change.
	if err := run(); err != nil {
		return err
	}

	w, err := watcher.New(a.paths(), debounce)
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.log.Info("watch: watching %s (tool: %s)", a.root, tool)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(a.out, "watch stopped")
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			if outputs[ev.Path] {
				continue
			}
			a.log.Info("watch: %s %s", ev.Op, ev.Path)
			if err := run(); err != nil {
				return err
			}
		case werr, ok := <-w.Errors():
			if ok {
				a.log.Warn("watch: %v", werr)
			}
		}
	}
}

// watchRunner builds the per-change run function for a tool, plus the set of
// paths the tool writes (which must never retrigger a run).
func (a *app) watchRunner(tool string) (func() error, map[string]bool, error) {
	switch tool {
	case "combine":
		probe, err := combiner.New(combiner.Options{
			Settings: a.cfg.Combiner,
			Paths:    a.paths(),
		})
		if err != nil {
			return nil, nil, err
		}
		outputs := ownOutputs(probe.OutputPath())

		run := func() error {
			c, err := combiner.New(combiner.Options{
				Settings:    a.cfg.Combiner,
				Paths:       a.paths(),
				Logger:      a.log,
				MaxAttempts: a.cfg.MaxAttempts,
			})
			if err != nil {
				return err
			}
			result, err := c.Run()
			if err != nil {
				return err
			}
			a.report("combine", result)
			return nil
		}
		return run, outputs, nil

	case "structure":
		probe, err := structure.New(structure.Options{
			Settings: a.cfg.Structure,
			Paths:    a.paths(),
		})
		if err != nil {
			return nil, nil, err
		}
		outputs := ownOutputs(probe.OutputPath())

		run := func() error {
			p, err := structure.New(structure.Options{
				Settings:    a.cfg.Structure,
				Paths:       a.paths(),
				Logger:      a.log,
				MaxAttempts: a.cfg.MaxAttempts,
			})
			if err != nil {
				return err
			}
			result, err := p.Run()
			if err != nil {
				return err
			}
			if p.OutputPath() == "" {
				fmt.Fprint(a.out, p.Report())
			}
			a.report("structure", result)
			return nil
		}
		return run, outputs, nil

	default:
		return nil, nil, fmt.Errorf("unknown tool %q (expected combine or structure)", tool)
	}
}

// report is finish without the exit-code conversion: a failed run inside the
// watch loop is reported and archived but keeps the loop alive.
func (a *app) report(tool string, result *processor.Result) {
	a.printSummary(tool, result)
	a.recordRun(tool, result)
}

// ownOutputs is the set of paths a tool's write touches, including the
// sidecar lock file.
func ownOutputs(path string) map[string]bool {
	outputs := map[string]bool{}
	if path != "" {
		outputs[path] = true
		outputs[path+".lock"] = true
	}
	return outputs
}
