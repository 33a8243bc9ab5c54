// Package structure renders a project's directory layout as a text report.
// Four styles are supported (tree, flat, indented, markdown) with per-level
// sorting, optional size and modification annotations, depth limiting and
// empty-directory pruning. Unreadable entries stay in the report with an
// error marker instead of aborting the run.
package structure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/edwardmakesthings/pyweaver/internal/config"
	"github.com/edwardmakesthings/pyweaver/internal/errs"
	"github.com/edwardmakesthings/pyweaver/internal/filelock"
	"github.com/edwardmakesthings/pyweaver/internal/fileutil"
	"github.com/edwardmakesthings/pyweaver/internal/logger"
	"github.com/edwardmakesthings/pyweaver/internal/processor"
	"github.com/edwardmakesthings/pyweaver/internal/tracker"
)

// Style selects the report layout.
type Style int

const (
	// StyleTree draws box-drawing connectors.
	StyleTree Style = iota
	// StyleFlat lists relative paths, one per line.
	StyleFlat
	// StyleIndented nests entries with plain indentation.
	StyleIndented
	// StyleMarkdown emits a nested markdown list.
	StyleMarkdown
)

func (s Style) String() string {
	switch s {
	case StyleTree:
		return "tree"
	case StyleFlat:
		return "flat"
	case StyleIndented:
		return "indented"
	case StyleMarkdown:
		return "markdown"
	default:
		return "unknown"
	}
}

// ParseStyle parses the config string form of a style.
func ParseStyle(s string) (Style, error) {
	switch s {
	case "", "tree":
		return StyleTree, nil
	case "flat":
		return StyleFlat, nil
	case "indented":
		return StyleIndented, nil
	case "markdown":
		return StyleMarkdown, nil
	default:
		return StyleTree, errs.NewConfigError("parse_style", "unknown structure style", nil).
			WithCode(errs.CodeConfigValidation).
			WithDetail("style", s)
	}
}

// SortOrder selects how sibling entries are ordered.
type SortOrder int

const (
	// SortAlpha orders case-insensitively by name.
	SortAlpha SortOrder = iota
	// SortDirsFirst groups directories before files.
	SortDirsFirst
	// SortFilesFirst groups files before directories.
	SortFilesFirst
	// SortModified orders by modification time, oldest first.
	SortModified
	// SortSize orders by file size, smallest first; directories count as zero.
	SortSize
)

func (o SortOrder) String() string {
	switch o {
	case SortAlpha:
		return "alpha"
	case SortDirsFirst:
		return "dirs_first"
	case SortFilesFirst:
		return "files_first"
	case SortModified:
		return "modified"
	case SortSize:
		return "size"
	default:
		return "unknown"
	}
}

// ParseSortOrder parses the config string form of a sort order.
func ParseSortOrder(s string) (SortOrder, error) {
	switch s {
	case "", "alpha":
		return SortAlpha, nil
	case "dirs_first":
		return SortDirsFirst, nil
	case "files_first":
		return SortFilesFirst, nil
	case "modified":
		return SortModified, nil
	case "size":
		return SortSize, nil
	default:
		return SortAlpha, errs.NewConfigError("parse_sort_order", "unknown sort order", nil).
			WithCode(errs.CodeConfigValidation).
			WithDetail("sort_order", s)
	}
}

// entry is one recorded filesystem item.
type entry struct {
	rel      string // forward-slash path relative to the root
	name     string
	isDir    bool
	size     int64
	modified time.Time
	errMsg   string // non-empty when the entry could not be read
}

// Options bundles the printer's dependencies.
type Options struct {
	Settings    config.StructureSettings
	Paths       *config.PathConfig
	Logger      logger.Logger
	MaxAttempts int

	// Progress, when non-nil, tracks the run item by item.
	Progress *logger.ProgressBar
}

// Printer drives the structure tool.
type Printer struct {
	settings config.StructureSettings
	paths    *config.PathConfig
	log      logger.Logger
	style    Style
	order    SortOrder
	maxAtt   int
	bar      *logger.ProgressBar
	output   string // absolute output path, empty for stdout

	dirSet   map[string]bool
	scanErrs map[string]string // dir path -> read failure message

	mu      sync.Mutex
	entries map[string]*entry
}

// New creates a Printer. Style and sort order are resolved eagerly so a bad
// configuration fails before the filesystem is touched.
func New(opts Options) (*Printer, error) {
	style, err := ParseStyle(opts.Settings.Style)
	if err != nil {
		return nil, err
	}
	order, err := ParseSortOrder(opts.Settings.SortOrder)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	output := opts.Settings.OutputFile
	if output != "" {
		if !filepath.IsAbs(output) {
			output = filepath.Join(opts.Paths.Root, output)
		}
		abs, err := filepath.Abs(output)
		if err != nil {
			return nil, errs.NewPathError("structure", "cannot resolve output path", output, err).
				WithCode(errs.CodePathInvalid)
		}
		output = abs
	}

	return &Printer{
		settings: opts.Settings,
		paths:    opts.Paths,
		log:      log,
		style:    style,
		order:    order,
		maxAtt:   opts.MaxAttempts,
		bar:      opts.Progress,
		output:   output,
		entries:  map[string]*entry{},
	}, nil
}

// listFilter applies ignore patterns to every entry and include patterns to
// files only; directories always pass so the listing keeps its shape.
type listFilter struct {
	paths  *config.PathConfig
	dirSet map[string]bool
}

func (f *listFilter) ShouldProcess(path string) (bool, string) {
	pc := f.paths
	if matched, pat := pc.MatchesAny(path, pc.Settings.IgnorePatterns); matched {
		return false, fmt.Sprintf("ignoring %s (matched pattern %q)",
			pc.Matcher().RelativePath(path), pat)
	}
	if f.dirSet[path] {
		return true, ""
	}
	if len(pc.Settings.IncludePatterns) > 0 {
		matched, _ := pc.MatchesAny(path, pc.Settings.IncludePatterns)
		return matched, ""
	}
	return true, ""
}

// Run scans the root, records every surviving entry and assembles the report.
// When an output file is configured the report is also written there.
func (p *Printer) Run() (*processor.Result, error) {
	scan, err := fileutil.Scan(p.paths)
	if err != nil {
		return nil, err
	}

	p.dirSet = make(map[string]bool, len(scan.Dirs))
	for _, dir := range scan.Dirs {
		p.dirSet[dir] = true
	}
	p.scanErrs = map[string]string{}
	for _, scanErr := range scan.Errors {
		var fe *errs.FileError
		if errors.As(scanErr, &fe) {
			p.scanErrs[fe.Path] = fe.Message
		}
		p.log.Warn("structure: %v", scanErr)
	}

	proc := processor.New(processor.ItemHandlerFunc(p.recordEntry), processor.Options{
		Operation:   "structure",
		Paths:       p.paths,
		ItemType:    tracker.ItemTypeBoth,
		MaxAttempts: p.maxAtt,
		Filter:      &listFilter{paths: p.paths, dirSet: p.dirSet},
		Logger:      p.log,
		Progress:    p.bar,
	})
	if err := proc.Configure(); err != nil {
		return nil, err
	}
	for _, dir := range scan.Dirs {
		if err := proc.AddPending(dir); err != nil {
			return nil, err
		}
	}
	for _, file := range scan.Files {
		// The report of a previous run is never an input.
		if file == p.output {
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

	if p.output != "" {
		if err := filelock.LockAndWrite(p.output, []byte(p.Report())); err != nil {
			return nil, err
		}
		p.log.Info("structure: wrote %s", p.output)
	}
	return result, nil
}

// OutputPath returns the absolute report path, or "" when printing to stdout.
func (p *Printer) OutputPath() string {
	return p.output
}

// recordEntry stats one path and stores its entry. A directory whose listing
// failed during the scan keeps its place in the report but is counted as an
// item error.
func (p *Printer) recordEntry(path string) error {
	e := &entry{
		rel:   p.paths.Matcher().RelativePath(path),
		name:  filepath.Base(path),
		isDir: p.dirSet[path],
	}

	info, err := os.Stat(path)
	if err != nil {
		e.errMsg = "cannot stat entry"
		p.store(e)
		return errs.NewFileError("structure", "cannot stat entry", path, err).
			WithCode(errs.CodeFileRead)
	}
	e.isDir = info.IsDir()
	e.size = info.Size()
	e.modified = info.ModTime()

	if msg, unreadable := p.scanErrs[path]; unreadable {
		e.errMsg = msg
		p.store(e)
		return errs.NewFileError("structure", msg, path, nil).
			WithCode(errs.CodeFileRead)
	}

	p.store(e)
	return nil
}

func (p *Printer) store(e *entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[e.rel] = e
}

// Report assembles the report from the recorded entries.
func (p *Printer) Report() string {
	p.mu.Lock()
	all := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		all = append(all, e)
	}
	p.mu.Unlock()

	children := map[string][]*entry{}
	for _, e := range all {
		children[parentRel(e.rel)] = append(children[parentRel(e.rel)], e)
	}

	var b strings.Builder
	b.WriteString(filepath.Base(p.paths.Root) + "/\n")
	switch p.style {
	case StyleFlat:
		p.renderFlat(&b, children)
	case StyleIndented:
		p.renderIndented(&b, children, "", 0)
	case StyleMarkdown:
		p.renderMarkdown(&b, children, "", 0)
	default:
		p.renderTree(&b, children, "", "", 0)
	}
	return b.String()
}

func parentRel(rel string) string {
	idx := strings.LastIndex(rel, "/")
	if idx < 0 {
		return ""
	}
	return rel[:idx]
}

// visibleChildren filters and sorts one directory level. Depth counts root
// children as level zero. Directories with no recorded children are pruned
// unless IncludeEmpty is set; unreadable directories always stay visible.
func (p *Printer) visibleChildren(children map[string][]*entry, parent string, depth int) []*entry {
	if p.settings.MaxDepth > 0 && depth >= p.settings.MaxDepth {
		return nil
	}
	var out []*entry
	for _, e := range children[parent] {
		if e.isDir && !p.settings.IncludeEmpty && e.errMsg == "" && len(children[e.rel]) == 0 {
			continue
		}
		out = append(out, e)
	}
	p.sortEntries(out, false)
	return out
}

func (p *Printer) renderTree(b *strings.Builder, children map[string][]*entry, parent, prefix string, depth int) {
	visible := p.visibleChildren(children, parent, depth)
	for i, e := range visible {
		connector := "├── "
		childPrefix := prefix + "│   "
		if i == len(visible)-1 {
			connector = "└── "
			childPrefix = prefix + "    "
		}
		b.WriteString(prefix + connector + p.entryText(e) + "\n")
		if e.isDir {
			p.renderTree(b, children, e.rel, childPrefix, depth+1)
		}
	}
}

func (p *Printer) renderIndented(b *strings.Builder, children map[string][]*entry, parent string, depth int) {
	for _, e := range p.visibleChildren(children, parent, depth) {
		b.WriteString(strings.Repeat("    ", depth) + p.entryText(e) + "\n")
		if e.isDir {
			p.renderIndented(b, children, e.rel, depth+1)
		}
	}
}

func (p *Printer) renderMarkdown(b *strings.Builder, children map[string][]*entry, parent string, depth int) {
	for _, e := range p.visibleChildren(children, parent, depth) {
		b.WriteString(strings.Repeat("  ", depth) + "- " + p.entryText(e) + "\n")
		if e.isDir {
			p.renderMarkdown(b, children, e.rel, depth+1)
		}
	}
}

// renderFlat lists every visible entry's relative path on one line, sorted
// globally instead of per directory level.
func (p *Printer) renderFlat(b *strings.Builder, children map[string][]*entry) {
	var flat []*entry
	var collect func(parent string, depth int)
	collect = func(parent string, depth int) {
		for _, e := range p.visibleChildren(children, parent, depth) {
			flat = append(flat, e)
			if e.isDir {
				collect(e.rel, depth+1)
			}
		}
	}
	collect("", 0)

	p.sortEntries(flat, true)
	for _, e := range flat {
		b.WriteString(p.annotate(e, e.rel) + "\n")
	}
}

// sortEntries orders siblings (or, for the flat style, all entries) in place.
// byRel switches the textual key from the entry name to the relative path.
func (p *Printer) sortEntries(list []*entry, byRel bool) {
	key := func(e *entry) string {
		if byRel {
			return strings.ToLower(e.rel)
		}
		return strings.ToLower(e.name)
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		switch p.order {
		case SortDirsFirst:
			if a.isDir != b.isDir {
				return a.isDir
			}
		case SortFilesFirst:
			if a.isDir != b.isDir {
				return !a.isDir
			}
		case SortModified:
			if !a.modified.Equal(b.modified) {
				return a.modified.Before(b.modified)
			}
		case SortSize:
			as, bs := sizeKey(a), sizeKey(b)
			if as != bs {
				return as < bs
			}
		}
		return key(a) < key(b)
	})
}

func sizeKey(e *entry) int64 {
	if e.isDir {
		return 0
	}
	return e.size
}

// entryText renders one entry's display name with the configured annotations.
func (p *Printer) entryText(e *entry) string {
	name := e.name
	if e.isDir {
		name += "/"
	}
	return p.annotate(e, name)
}

func (p *Printer) annotate(e *entry, text string) string {
	if p.settings.ShowSizes && !e.isDir && e.errMsg == "" {
		text += " (" + formatSize(e.size) + ")"
	}
	if p.settings.ShowModified && e.errMsg == "" {
		text += " [" + e.modified.Format("2006-01-02 15:04") + "]"
	}
	if e.errMsg != "" {
		text += " [Error: " + e.errMsg + "]"
	}
	return text
}

// formatSize renders a byte count with binary units from B up to TB.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	value := float64(n)
	units := []string{"KB", "MB", "GB", "TB"}
	for i, u := range units {
		value /= unit
		if value < unit || i == len(units)-1 {
			return fmt.Sprintf("%.1f %s", value, u)
		}
	}
	return fmt.Sprintf("%d B", n)
}
