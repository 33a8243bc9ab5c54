// Package pymod analyzes Python source files without executing them. It is a
// line-oriented scanner, not a full parser: module-level definitions are
// recognized by shape (column-zero class/def statements, simple assignments,
// __all__ lists) which covers the layout of real-world Python modules well
// enough to drive __init__.py generation.
package pymod

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/edwardmakesthings/pyweaver/internal/errs"
	"github.com/edwardmakesthings/pyweaver/internal/pattern"
)

// Class is a module-level class definition.
type Class struct {
	Name  string
	Doc   string
	Bases []string
}

// Function is a module-level function definition.
type Function struct {
	Name string
	Doc  string
}

// Module is the information extracted from one Python source file.
type Module struct {
	Path      string
	Docstring string
	Classes   []Class
	Functions []Function
	TypeDefs  []string
	Constants []string

	// All holds the names of an explicit __all__ list; HasAll distinguishes
	// an empty list from a missing one.
	All    []string
	HasAll bool
}

// Exports returns the module's exported names: the __all__ list verbatim when
// present, otherwise every collected public name, sorted.
func (m *Module) Exports() []string {
	if m.HasAll {
		return append([]string(nil), m.All...)
	}

	var names []string
	for _, c := range m.Classes {
		names = append(names, c.Name)
	}
	for _, f := range m.Functions {
		names = append(names, f.Name)
	}
	names = append(names, m.TypeDefs...)
	names = append(names, m.Constants...)
	sort.Strings(names)
	return names
}

// IsEmpty reports whether the module declares nothing worth exporting.
func (m *Module) IsEmpty() bool {
	return len(m.Classes) == 0 && len(m.Functions) == 0 &&
		len(m.TypeDefs) == 0 && len(m.Constants) == 0 && !m.HasAll
}

// Options configures an Analyzer.
type Options struct {
	// IncludePrivate keeps single-underscore names; dunder names are always
	// skipped.
	IncludePrivate bool

	// ConstantPatterns are name globs (from the init config) that force an
	// assignment into the constants section. ALL_CAPS names qualify
	// regardless.
	ConstantPatterns []string
}

// Analyzer extracts Module information from Python sources.
type Analyzer struct {
	opts    Options
	matcher *pattern.Matcher
}

// NewAnalyzer creates an analyzer. The matcher is only consulted for
// constant-name classification.
func NewAnalyzer(opts Options, matcher *pattern.Matcher) *Analyzer {
	if matcher == nil {
		matcher = pattern.NewMatcher(pattern.Config{})
	}
	return &Analyzer{opts: opts, matcher: matcher}
}

var (
	classRe  = regexp.MustCompile(`^class\s+(\w+)\s*(?:\(([^)]*)\))?\s*:`)
	defRe    = regexp.MustCompile(`^(?:async\s+)?def\s+(\w+)\s*\(`)
	assignRe = regexp.MustCompile(`^(\w+)\s*(?::\s*[^=]+)?=\s*(.*)$`)
)

// AnalyzeFile reads and analyzes one Python source file.
func (a *Analyzer) AnalyzeFile(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.NewFileError("analyze", "cannot read python source", path, err).
			WithCode(errs.CodeFileRead)
	}
	return a.Analyze(path, string(data)), nil
}

// Analyze scans the given source. It never fails: unrecognized constructs are
// simply not collected.
func (a *Analyzer) Analyze(path, source string) *Module {
	mod := &Module{Path: path}
	lines := strings.Split(source, "\n")

	mod.Docstring = moduleDocstring(lines)

	inString := false
	stringDelim := ""
	for i := 0; i < len(lines); i++ {
		line := lines[i]

		// Track triple-quoted strings so definitions inside docstrings or
		// string literals are not mistaken for real ones.
		if inString {
			if strings.Contains(line, stringDelim) {
				inString = false
			}
			continue
		}

		if m := classRe.FindStringSubmatch(line); m != nil {
			if a.exportable(m[1]) {
				mod.Classes = append(mod.Classes, Class{
					Name:  m[1],
					Doc:   firstDocLine(lines, i+1),
					Bases: splitBases(m[2]),
				})
			}
			continue
		}

		if m := defRe.FindStringSubmatch(line); m != nil {
			if a.exportable(m[1]) {
				mod.Functions = append(mod.Functions, Function{
					Name: m[1],
					Doc:  firstDocLine(lines, i+1),
				})
			}
			continue
		}

		if m := assignRe.FindStringSubmatch(line); m != nil {
			name, value := m[1], strings.TrimSpace(m[2])
			if name == "__all__" {
				names, consumed := parseAllList(lines, i)
				mod.All = names
				mod.HasAll = true
				i += consumed
				continue
			}
			if a.exportable(name) {
				a.classifyAssignment(mod, name, value)
			}
			if delim, open := opensTripleQuote(value); open {
				inString = true
				stringDelim = delim
			}
			continue
		}

		if delim, open := opensTripleQuote(strings.TrimSpace(line)); open && !strings.HasPrefix(strings.TrimSpace(line), "#") {
			inString = true
			stringDelim = delim
		}
	}

	return mod
}

// exportable reports whether a module-level name should be collected.
func (a *Analyzer) exportable(name string) bool {
	if strings.HasPrefix(name, "__") {
		return false
	}
	if strings.HasPrefix(name, "_") {
		return a.opts.IncludePrivate
	}
	return true
}

func (a *Analyzer) classifyAssignment(mod *Module, name, value string) {
	if a.isConstantName(name) {
		mod.Constants = append(mod.Constants, name)
		return
	}
	if isTypeDef(name, value) {
		mod.TypeDefs = append(mod.TypeDefs, name)
	}
}

func (a *Analyzer) isConstantName(name string) bool {
	for _, p := range a.opts.ConstantPatterns {
		if ok, err := a.matcher.MatchesName(name, p); err == nil && ok {
			return true
		}
	}
	return name == strings.ToUpper(name) && strings.ContainsAny(name, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
}

// isTypeDef recognizes type aliases by naming convention or by a value built
// from typing constructs.
func isTypeDef(name, value string) bool {
	if strings.HasSuffix(name, "Type") {
		return true
	}
	for _, marker := range []string{"TypeVar(", "NamedTuple(", "TypedDict(", "Union[", "Optional[", "Callable[", "Literal["} {
		if strings.Contains(value, marker) {
			return true
		}
	}
	return false
}

// moduleDocstring extracts a leading triple-quoted docstring, skipping
// shebangs, encoding lines, comments, and blanks.
func moduleDocstring(lines []string) string {
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		delim := tripleQuoteDelim(trimmed)
		if delim == "" {
			return ""
		}

		rest := trimmed[len(delim):]
		if idx := strings.Index(rest, delim); idx >= 0 {
			return strings.TrimSpace(rest[:idx])
		}

		var doc []string
		if rest != "" {
			doc = append(doc, rest)
		}
		for j := i + 1; j < len(lines); j++ {
			if idx := strings.Index(lines[j], delim); idx >= 0 {
				doc = append(doc, lines[j][:idx])
				return strings.TrimSpace(strings.Join(doc, "\n"))
			}
			doc = append(doc, lines[j])
		}
		return strings.TrimSpace(strings.Join(doc, "\n"))
	}
	return ""
}

// firstDocLine returns the first line of a definition's docstring, used for
// the one-line summaries in generated files.
func firstDocLine(lines []string, start int) string {
	for i := start; i < len(lines) && i < start+10; i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}

		delim := tripleQuoteDelim(trimmed)
		if delim == "" {
			return ""
		}
		rest := trimmed[len(delim):]
		if idx := strings.Index(rest, delim); idx >= 0 {
			rest = rest[:idx]
		}
		rest = strings.TrimSpace(rest)
		if rest != "" {
			return rest
		}
		// Opening quotes on their own line; the summary is the next one.
		for j := i + 1; j < len(lines) && j < i+10; j++ {
			next := strings.TrimSpace(lines[j])
			if next == "" || strings.HasPrefix(next, delim) {
				return ""
			}
			return strings.TrimSuffix(next, delim)
		}
		return ""
	}
	return ""
}

func tripleQuoteDelim(s string) string {
	if strings.HasPrefix(s, `"""`) {
		return `"""`
	}
	if strings.HasPrefix(s, "'''") {
		return "'''"
	}
	// Raw/formatted docstrings: r"""...""" etc.
	for _, prefix := range []string{"r", "R", "f", "F", "u", "U"} {
		if strings.HasPrefix(s, prefix+`"""`) {
			return `"""`
		}
		if strings.HasPrefix(s, prefix+"'''") {
			return "'''"
		}
	}
	return ""
}

// opensTripleQuote reports whether the value starts a triple-quoted string
// that does not close on the same line.
func opensTripleQuote(value string) (string, bool) {
	delim := tripleQuoteDelim(value)
	if delim == "" {
		return "", false
	}
	idx := strings.Index(value, delim)
	rest := value[idx+len(delim):]
	return delim, !strings.Contains(rest, delim)
}

var allNameRe = regexp.MustCompile(`["']([^"']+)["']`)

// parseAllList parses an __all__ assignment starting at line i, following the
// list across lines until the closing bracket. It returns the names and how
// many extra lines were consumed.
func parseAllList(lines []string, i int) ([]string, int) {
	var buf strings.Builder
	consumed := 0
	for j := i; j < len(lines); j++ {
		buf.WriteString(lines[j])
		buf.WriteString("\n")
		if j > i {
			consumed++
		}
		if strings.Contains(lines[j], "]") {
			break
		}
	}

	names := []string{}
	for _, m := range allNameRe.FindAllStringSubmatch(buf.String(), -1) {
		names = append(names, m[1])
	}
	return names, consumed
}

func splitBases(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var bases []string
	for _, b := range strings.Split(s, ",") {
		b = strings.TrimSpace(b)
		// Keyword arguments like metaclass=... are not base classes.
		if b == "" || strings.Contains(b, "=") {
			continue
		}
		bases = append(bases, b)
	}
	return bases
}
