// Package initgen generates __init__.py files for Python packages. It scans
// the project for package directories, analyzes each module's exports with
// pymod, and writes structured init files with sectioned imports and an
// optional __all__ block. Files are only touched when their content changes.
package initgen

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
	"github.com/edwardmakesthings/pyweaver/internal/pymod"
	"github.com/edwardmakesthings/pyweaver/internal/tracker"
)

// Options bundles the generator's dependencies.
type Options struct {
	Settings    config.InitSettings
	Paths       *config.PathConfig
	Logger      logger.Logger
	MaxAttempts int

	// Progress, when non-nil, tracks the run item by item.
	Progress *logger.ProgressBar
}

// Generator creates and updates __init__.py files under a project root.
type Generator struct {
	settings config.InitSettings
	paths    *config.PathConfig
	log      logger.Logger
	analyzer *pymod.Analyzer
	maxAtt   int
	bar      *logger.ProgressBar

	mu       sync.Mutex
	previews map[string]string
	written  []string
}

// New creates a Generator rooted at the Paths root.
func New(opts Options) *Generator {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	analyzer := pymod.NewAnalyzer(pymod.Options{
		IncludePrivate:   opts.Settings.IncludePrivate,
		ConstantPatterns: opts.Settings.ConstantPatterns,
	}, opts.Paths.Matcher())

	return &Generator{
		settings: opts.Settings,
		paths:    opts.Paths,
		log:      log,
		analyzer: analyzer,
		maxAtt:   opts.MaxAttempts,
		bar:      opts.Progress,
		previews: make(map[string]string),
	}
}

// Run scans for package directories and processes each one. Directories that
// fail analysis are retried and reported through the result, never aborting
// the batch.
func (g *Generator) Run() (*processor.Result, error) {
	dirs, err := g.packageDirs()
	if err != nil {
		return nil, err
	}

	proc := processor.New(processor.ItemHandlerFunc(g.processDir), processor.Options{
		Operation:   "init",
		Paths:       g.paths,
		ItemType:    tracker.ItemTypeDirectories,
		MaxAttempts: g.maxAtt,
		Logger:      g.log,
		Progress:    g.bar,
	})
	if err := proc.Configure(); err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := proc.AddPending(dir); err != nil {
			return nil, err
		}
	}
	return proc.Process()
}

// Preview returns the generated content per __init__.py path collected so
// far. With DryRun set, Run populates this without writing anything.
func (g *Generator) Preview() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]string, len(g.previews))
	for k, v := range g.previews {
		out[k] = v
	}
	return out
}

// Written returns the paths actually written during Run.
func (g *Generator) Written() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.written...)
}

// packageDirs finds directories containing at least one Python module other
// than __init__.py itself. The root counts when it holds modules directly.
func (g *Generator) packageDirs() ([]string, error) {
	result, err := fileutil.Scan(g.paths)
	if err != nil {
		return nil, err
	}
	for _, scanErr := range result.Errors {
		g.log.Warn("init: %v", scanErr)
	}

	seen := make(map[string]bool)
	var dirs []string
	for _, file := range result.Files {
		if filepath.Ext(file) != ".py" || filepath.Base(file) == "__init__.py" {
			continue
		}
		dir := filepath.Dir(file)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// processDir analyzes one package directory and updates its __init__.py.
func (g *Generator) processDir(dir string) error {
	modules, err := g.analyzeModules(dir)
	if err != nil {
		return err
	}
	if len(modules) == 0 {
		g.log.Debug("init: no exportable modules in %s", dir)
		return nil
	}

	content := g.render(dir, modules)
	initPath := filepath.Join(dir, "__init__.py")

	g.mu.Lock()
	g.previews[initPath] = content
	g.mu.Unlock()

	if g.settings.DryRun {
		return nil
	}

	wrote, err := filelock.WriteIfChanged(initPath, []byte(content))
	if err != nil {
		return err
	}
	if wrote {
		g.mu.Lock()
		g.written = append(g.written, initPath)
		g.mu.Unlock()
		g.log.Info("init: updated %s", g.paths.Matcher().RelativePath(initPath))
	} else {
		g.log.Debug("init: unchanged %s", initPath)
	}
	return nil
}

// analyzeModules parses every non-init Python module in the directory,
// keyed and sorted by module name.
func (g *Generator) analyzeModules(dir string) (map[string]*pymod.Module, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.NewFileError("init", "cannot read package directory", dir, err).
			WithCode(errs.CodeFileRead)
	}

	excluded := make(map[string]bool, len(g.settings.ExcludedModules))
	for _, name := range g.settings.ExcludedModules {
		excluded[name] = true
	}

	modules := make(map[string]*pymod.Module)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".py" || name == "__init__.py" {
			continue
		}
		modName := strings.TrimSuffix(name, ".py")
		if excluded[modName] {
			continue
		}

		mod, err := g.analyzer.AnalyzeFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if mod.IsEmpty() {
			continue
		}
		modules[modName] = mod
	}
	return modules, nil
}

type section struct {
	header string
	pick   func(mod *pymod.Module, allowed map[string]bool) []string
}

// Section order follows the generated-file convention: classes, functions,
// constants, then type definitions.
var sections = []section{
	{"# Classes", func(m *pymod.Module, allowed map[string]bool) []string {
		var names []string
		for _, c := range m.Classes {
			if allowed[c.Name] {
				names = append(names, c.Name)
			}
		}
		return names
	}},
	{"# Functions", func(m *pymod.Module, allowed map[string]bool) []string {
		var names []string
		for _, f := range m.Functions {
			if allowed[f.Name] {
				names = append(names, f.Name)
			}
		}
		return names
	}},
	{"# Constants", func(m *pymod.Module, allowed map[string]bool) []string {
		var names []string
		for _, n := range m.Constants {
			if allowed[n] {
				names = append(names, n)
			}
		}
		return names
	}},
	{"# Type Definitions", func(m *pymod.Module, allowed map[string]bool) []string {
		var names []string
		for _, n := range m.TypeDefs {
			if allowed[n] {
				names = append(names, n)
			}
		}
		return names
	}},
}

// render builds the full __init__.py content for one package.
func (g *Generator) render(dir string, modules map[string]*pymod.Module) string {
	modNames := make([]string, 0, len(modules))
	for name := range modules {
		modNames = append(modNames, name)
	}
	sort.Strings(modNames)

	relDir := g.paths.Matcher().RelativePath(dir)

	var b strings.Builder
	b.WriteString(`"""`)
	b.WriteString(g.docstring(dir, relDir))
	b.WriteString("\n")

	// One-line class summaries, indented inside the docstring.
	var classDocs []string
	for _, name := range modNames {
		for _, c := range modules[name].Classes {
			if c.Doc != "" {
				classDocs = append(classDocs, fmt.Sprintf("    %s: %s", c.Name, c.Doc))
			}
		}
	}
	if len(classDocs) > 0 {
		sort.Strings(classDocs)
		b.WriteString("\n")
		b.WriteString(strings.Join(classDocs, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("\nPath: ")
	if relDir == "." || relDir == "" {
		b.WriteString("__init__.py")
	} else {
		b.WriteString(relDir + "/__init__.py")
	}
	b.WriteString("\n\"\"\"\n")

	imported := make(map[string]bool)
	for _, sec := range sections {
		var lines []string
		for _, name := range modNames {
			mod := modules[name]
			allowed := allowedNames(mod, imported)
			names := sec.pick(mod, allowed)
			if len(names) == 0 {
				continue
			}
			sort.Strings(names)
			for _, n := range names {
				imported[n] = true
			}
			lines = append(lines, fmt.Sprintf("from .%s import %s", name, strings.Join(names, ", ")))
		}
		if len(lines) > 0 {
			b.WriteString("\n" + sec.header + "\n")
			b.WriteString(strings.Join(lines, "\n"))
			b.WriteString("\n")
		}
	}

	if g.settings.GenerateAll {
		var exports []string
		for name := range imported {
			exports = append(exports, name)
		}
		if len(exports) > 0 {
			sort.Strings(exports)
			b.WriteString("\n__all__ = [\n")
			for _, e := range exports {
				b.WriteString(fmt.Sprintf("    %q,\n", e))
			}
			b.WriteString("]\n")
		}
	}

	return b.String()
}

// docstring applies the configured template for one package directory.
func (g *Generator) docstring(dir, relDir string) string {
	tpl := g.settings.DocstringTemplate
	if tpl == "" {
		tpl = "{package} package."
	}
	doc := strings.ReplaceAll(tpl, "{package}", filepath.Base(dir))
	doc = strings.ReplaceAll(doc, "{path}", relDir)
	return doc
}

// allowedNames restricts imports to the module's export surface, minus names
// already imported from an earlier module.
func allowedNames(mod *pymod.Module, imported map[string]bool) map[string]bool {
	allowed := make(map[string]bool)
	for _, n := range mod.Exports() {
		if !imported[n] {
			allowed[n] = true
		}
	}
	return allowed
}
