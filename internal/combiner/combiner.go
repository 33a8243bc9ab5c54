// Package combiner concatenates a project's source files into one annotated
// output file. Each file is transformed by a per-language content processor,
// framed with a ruler-delimited section header, and the whole batch is written
// atomically under a file lock.
package combiner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/edwardmakesthings/pyweaver/internal/config"
	"github.com/edwardmakesthings/pyweaver/internal/errs"
	"github.com/edwardmakesthings/pyweaver/internal/filelock"
	"github.com/edwardmakesthings/pyweaver/internal/fileutil"
	"github.com/edwardmakesthings/pyweaver/internal/logger"
	"github.com/edwardmakesthings/pyweaver/internal/processor"
	"github.com/edwardmakesthings/pyweaver/internal/tracker"
)

// defaultRulerWidth frames section headers when the config leaves it unset.
const defaultRulerWidth = 80

// Options bundles the combiner's dependencies.
type Options struct {
	Settings    config.CombinerSettings
	Paths       *config.PathConfig
	Logger      logger.Logger
	MaxAttempts int

	// DryRun collects sections and previews without writing the output file.
	DryRun bool

	// Progress, when non-nil, tracks the run item by item.
	Progress *logger.ProgressBar
}

// fileSection is one processed file's contribution to the output.
type fileSection struct {
	relPath   string
	content   string
	origLines int
	origSize  int
}

// Combiner drives the combine tool.
type Combiner struct {
	settings config.CombinerSettings
	paths    *config.PathConfig
	log      logger.Logger
	mode     ContentMode
	maxAtt   int
	dryRun   bool
	bar      *logger.ProgressBar
	output   string // absolute output path

	mu       sync.Mutex
	sections []fileSection
}

// New creates a Combiner. The content mode is resolved eagerly so a bad
// configuration fails before any file is touched.
func New(opts Options) (*Combiner, error) {
	mode, err := ResolveContentMode(opts.Settings)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	outputFile := opts.Settings.OutputFile
	if outputFile == "" {
		outputFile = "combined_output.txt"
	}
	if !filepath.IsAbs(outputFile) {
		outputFile = filepath.Join(opts.Paths.Root, outputFile)
	}
	absOut, err := filepath.Abs(outputFile)
	if err != nil {
		return nil, errs.NewPathError("combine", "cannot resolve output path", outputFile, err).
			WithCode(errs.CodePathInvalid)
	}

	return &Combiner{
		settings: opts.Settings,
		paths:    opts.Paths,
		log:      log,
		mode:     mode,
		maxAtt:   opts.MaxAttempts,
		dryRun:   opts.DryRun,
		bar:      opts.Progress,
		output:   absOut,
	}, nil
}

// Run scans, processes every matched file, and writes the combined output.
// Item-level failures are retried and reported through the result; the output
// file is still written from the files that survived.
func (c *Combiner) Run() (*processor.Result, error) {
	scan, err := fileutil.Scan(c.paths)
	if err != nil {
		return nil, err
	}
	for _, scanErr := range scan.Errors {
		c.log.Warn("combine: %v", scanErr)
	}

	proc := processor.New(processor.ItemHandlerFunc(c.processFile), processor.Options{
		Operation:   "combine",
		Paths:       c.paths,
		ItemType:    tracker.ItemTypeFiles,
		MaxAttempts: c.maxAtt,
		Logger:      c.log,
		Progress:    c.bar,
	})
	if err := proc.Configure(); err != nil {
		return nil, err
	}
	for _, file := range scan.Files {
		// The output of a previous run is never an input.
		if file == c.output {
			continue
		}
		if err := proc.AddPending(file); err != nil {
			return nil, err
		}
	}

	result, err := proc.Process()
	if err != nil {
		return nil, err
	}

	if !c.dryRun {
		if err := filelock.LockAndWrite(c.output, []byte(c.Output())); err != nil {
			return nil, err
		}
		c.log.Info("combine: wrote %s (%d section(s))", c.output, len(c.sections))
	}
	return result, nil
}

// OutputPath returns the absolute path the combined output is written to.
func (c *Combiner) OutputPath() string {
	return c.output
}

// processFile reads, transforms and stores one file's section.
func (c *Combiner) processFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.NewFileError("combine", "cannot read source file", path, err).
			WithCode(errs.CodeFileRead)
	}

	raw := string(data)
	processed := raw
	if p := processorFor(filepath.Ext(path)); p != nil {
		processed = p(raw, c.mode)
	}
	processed = postProcess(processed)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sections = append(c.sections, fileSection{
		relPath:   c.paths.Matcher().RelativePath(path),
		content:   processed,
		origLines: strings.Count(raw, "\n") + 1,
		origSize:  len(raw),
	})
	return nil
}

// Output assembles the final combined content from the collected sections.
func (c *Combiner) Output() string {
	c.mu.Lock()
	sections := append([]fileSection(nil), c.sections...)
	c.mu.Unlock()

	// Retried items may finish out of order; the output is always sorted.
	sort.Slice(sections, func(i, j int) bool {
		return sections[i].relPath < sections[j].relPath
	})

	var b strings.Builder
	if c.settings.IncludeTree {
		b.WriteString(c.renderTree(sections))
		b.WriteString("\n")
	}

	ruler := strings.Repeat("#", c.rulerWidth())
	for i, sec := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(ruler + "\n")
		b.WriteString("# Source: " + sec.relPath + "\n")
		if c.settings.ShowFileStats {
			b.WriteString(fmt.Sprintf("# Lines: %d | Size: %d bytes\n", sec.origLines, sec.origSize))
		}
		b.WriteString(ruler + "\n")
		b.WriteString(sec.content)
		if !strings.HasSuffix(sec.content, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Preview returns the first n lines of the assembled output without writing.
func (c *Combiner) Preview(n int) string {
	lines := strings.Split(c.Output(), "\n")
	if n > 0 && len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

func (c *Combiner) rulerWidth() int {
	if c.settings.RulerWidth > 0 {
		return c.settings.RulerWidth
	}
	return defaultRulerWidth
}

// renderTree emits a commented tree of the included files.
func (c *Combiner) renderTree(sections []fileSection) string {
	var b strings.Builder
	b.WriteString("# Project Structure\n")
	b.WriteString(fmt.Sprintf("# Total files: %d\n", len(sections)))

	type node struct {
		children map[string]*node
		order    []string
	}
	root := &node{children: map[string]*node{}}
	for _, sec := range sections {
		cur := root
		for _, part := range strings.Split(sec.relPath, "/") {
			child, ok := cur.children[part]
			if !ok {
				child = &node{children: map[string]*node{}}
				cur.children[part] = child
				cur.order = append(cur.order, part)
			}
			cur = child
		}
	}

	var walk func(n *node, prefix string)
	walk = func(n *node, prefix string) {
		sort.Strings(n.order)
		for i, name := range n.order {
			connector := "├── "
			childPrefix := prefix + "│   "
			if i == len(n.order)-1 {
				connector = "└── "
				childPrefix = prefix + "    "
			}
			b.WriteString("# " + prefix + connector + name + "\n")
			walk(n.children[name], childPrefix)
		}
	}
	walk(root, "")
	return b.String()
}

// postProcess normalizes line endings, strips trailing whitespace and
// collapses runs of blank lines into one.
func postProcess(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blanks++
			if blanks > 1 {
				continue
			}
		} else {
			blanks = 0
		}
		out = append(out, line)
	}

	// Drop leading and trailing blank lines.
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n") + "\n"
}
