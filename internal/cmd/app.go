package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/edwardmakesthings/pyweaver/internal/config"
	"github.com/edwardmakesthings/pyweaver/internal/history"
	"github.com/edwardmakesthings/pyweaver/internal/logger"
	"github.com/edwardmakesthings/pyweaver/internal/processor"
)

// app carries everything a subcommand needs after the shared flags have been
// resolved: the merged configuration, the project root and the logger.
type app struct {
	cfg       *config.Config
	root      string
	log       logger.Logger
	fileLog   *logger.FileLogger
	out       io.Writer
	errOut    io.Writer
	useColor  bool
	quiet     bool
	noHistory bool
}

// newApp resolves the persistent flags, loads and validates the project
// configuration and builds the logger stack.
func newApp(cmd *cobra.Command) (*app, error) {
	rootFlag, _ := cmd.Flags().GetString("root")
	root, err := filepath.Abs(rootFlag)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve project root %q: %w", rootFlag, err)
	}

	configPath, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, err = config.LoadConfigFromDir(root)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")
	if verbose && quiet {
		return nil, fmt.Errorf("cannot use both --verbose and --quiet")
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	if quiet {
		level = "error"
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	console := logger.NewConsoleLogger(cmd.ErrOrStderr(), level)
	if noColor {
		console.DisableColor()
	}

	var fileLog *logger.FileLogger
	if enabled, _ := cmd.Flags().GetBool("log-file"); enabled {
		logDir := cfg.LogDir
		if !filepath.IsAbs(logDir) {
			logDir = filepath.Join(root, logDir)
		}
		fileLog, err = logger.NewFileLoggerWithDirAndLevel(logDir, level)
		if err != nil {
			return nil, err
		}
	}

	noHistory, _ := cmd.Flags().GetBool("no-history")

	return &app{
		cfg:       cfg,
		root:      root,
		log:       logger.NewTee(console, fileLog),
		fileLog:   fileLog,
		out:       cmd.OutOrStdout(),
		errOut:    cmd.ErrOrStderr(),
		useColor:  !noColor,
		quiet:     quiet,
		noHistory: noHistory,
	}, nil
}

// close releases the app's resources; safe to defer unconditionally.
func (a *app) close() {
	if a.fileLog != nil {
		a.fileLog.Close()
	}
}

// progress builds a progress bar rendered on stderr and starts redrawing it.
// Off a terminal (or under --quiet) it returns a nil bar, which the tools
// treat as "no progress display". The stop function erases the bar; safe to
// defer unconditionally.
func (a *app) progress(prefix string) (*logger.ProgressBar, func()) {
	f, ok := a.errOut.(*os.File)
	if a.quiet || !ok || !isatty.IsTerminal(f.Fd()) {
		return nil, func() {}
	}

	bar := logger.NewProgressBar(0, 30, a.useColor)
	bar.SetPrefix(prefix + " ")

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				fmt.Fprint(f, "\r\033[K")
				return
			case <-ticker.C:
				fmt.Fprintf(f, "\r%s", bar.Render())
			}
		}
	}()

	var once sync.Once
	return bar, func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}

// paths builds the project's PathConfig from the merged settings.
func (a *app) paths() *config.PathConfig {
	return config.NewPathConfig(a.root, a.cfg.Path, a.log)
}

// finish prints the run summary, archives the run and converts a failed
// result into a non-zero exit.
func (a *app) finish(tool string, result *processor.Result) error {
	a.printSummary(tool, result)
	a.recordRun(tool, result)
	if !result.Success {
		return fmt.Errorf("%s finished with %d error(s)", tool, result.Stats.Errors)
	}
	return nil
}

// printSummary writes the colored end-of-run report.
func (a *app) printSummary(tool string, result *processor.Result) {
	status := "ok"
	paint := color.New(color.FgGreen)
	if !result.Success {
		status = "failed"
		paint = color.New(color.FgRed)
	}
	if a.useColor {
		status = paint.Sprint(status)
	}

	fmt.Fprintf(a.out, "\n%s: %s\n", tool, status)
	fmt.Fprintf(a.out, "  Files processed: %d\n", result.FilesProcessed)
	if result.Stats.Ignored > 0 {
		fmt.Fprintf(a.out, "  Ignored: %d\n", result.Stats.Ignored)
	}
	if result.Stats.Errors > 0 {
		fmt.Fprintf(a.out, "  Errors: %d\n", result.Stats.Errors)
	}
	fmt.Fprintf(a.out, "  Duration: %s\n", logger.FormatDuration(result.Duration))

	for _, w := range result.Warnings {
		line := "  warning: " + w
		if a.useColor {
			line = color.New(color.FgYellow).Sprint(line)
		}
		fmt.Fprintln(a.out, line)
	}
	for _, e := range result.Errors {
		line := "  error: " + e
		if a.useColor {
			line = color.New(color.FgRed).Sprint(line)
		}
		fmt.Fprintln(a.out, line)
	}
}

// recordRun archives the result unless history is disabled. Archive failures
// are warnings, never run failures.
func (a *app) recordRun(tool string, result *processor.Result) {
	if a.noHistory || !a.cfg.History.Enabled {
		return
	}
	store, err := a.openHistory()
	if err != nil {
		a.log.Warn("history: cannot open archive: %v", err)
		return
	}
	defer store.Close()

	if err := store.Record(context.Background(), result, tool, a.root); err != nil {
		a.log.Warn("history: cannot record run: %v", err)
	}
}

// openHistory opens the run archive at the configured path.
func (a *app) openHistory() (*history.Store, error) {
	dbPath := a.cfg.History.DBPath
	if dbPath != ":memory:" && !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(a.root, dbPath)
	}
	return history.NewStore(dbPath)
}
