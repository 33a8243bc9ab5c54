// Package pattern implements glob-style matching for paths and identifier
// names. Patterns support * and ? wildcards, ** for any number of path
// segments, a leading / to anchor at the path start and a leading ! for
// negation. Compiled patterns and match results are held in bounded
// per-matcher caches.
package pattern

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/edwardmakesthings/pyweaver/internal/errs"
)

// Type describes a pattern's characteristics, computed once per pattern and
// used to pick a matching strategy.
type Type struct {
	HasWildcards     bool // pattern contains * or ?
	HasDeepWildcards bool // pattern contains **
	IsAbsolute       bool // pattern starts with / (anchors at path start)
	IsNegated        bool // pattern starts with ! (result is inverted)
}

// Classify examines a raw pattern string and reports its characteristics.
// Classification looks at the string as given, so "!/x" is negated but not
// absolute.
func Classify(pattern string) Type {
	return Type{
		HasWildcards:     strings.ContainsAny(pattern, "*?"),
		HasDeepWildcards: strings.Contains(pattern, "**"),
		IsAbsolute:       strings.HasPrefix(pattern, "/") || strings.HasPrefix(pattern, "\\"),
		IsNegated:        strings.HasPrefix(pattern, "!"),
	}
}

// WarnLogger receives notices about patterns skipped during exclusion checks.
type WarnLogger interface {
	Warn(format string, args ...any)
}

// Config carries matcher construction options.
type Config struct {
	RootDir   string     // root for relative-path reporting (optional)
	Excluded  []string   // glob patterns consulted by IsExcluded
	CacheSize int        // per-tier cache bound, DefaultCacheSize when zero
	Logger    WarnLogger // optional, receives skipped-pattern notices
}

// Matcher matches paths and names against glob patterns, caching compiled
// regexes and match results. Safe for concurrent use.
type Matcher struct {
	rootDir  string
	excluded []string
	logger   WarnLogger

	pathCache *Cache
	nameCache *Cache
}

// NewMatcher creates a matcher from cfg.
func NewMatcher(cfg Config) *Matcher {
	size := cfg.CacheSize
	if size < 1 {
		size = DefaultCacheSize
	}
	return &Matcher{
		rootDir:   cfg.RootDir,
		excluded:  cfg.Excluded,
		logger:    cfg.Logger,
		pathCache: NewCache(size),
		nameCache: NewCache(size),
	}
}

// MatchesPath reports whether path matches the glob pattern. A leading !
// inverts the result after matching; the inversion is never baked into the
// cached regex, so p and !p share one compiled pattern. An uncompilable
// pattern returns a ValidationError rather than silently matching literally.
func (m *Matcher) MatchesPath(path, pattern string) (bool, error) {
	pathStr := normalizePath(path)
	pattern = strings.ReplaceAll(pattern, "\\", "/")

	cacheKey := pathStr + ":" + pattern
	if cached, ok := m.pathCache.Result(cacheKey); ok {
		return cached, nil
	}

	info := Classify(pattern)
	body := pattern
	if info.IsNegated {
		body = body[1:]
	}

	re, err := m.compilePathPattern(body)
	if err != nil {
		return false, errs.NewValidationError("match_path", "invalid path pattern", err).
			WithCode(errs.CodeValidationFormat).
			WithDetail("pattern", pattern).
			WithDetail("path", path)
	}

	matches := re.MatchString(pathStr)
	if info.IsNegated {
		matches = !matches
	}

	m.pathCache.SetResult(cacheKey, matches)
	return matches, nil
}

// MatchesName matches an identifier name against a simple glob pattern. Only
// * is supported and the match is anchored to the full string. Used for
// classifying exports (e.g. "*Error", "CONFIG_*"), not paths.
func (m *Matcher) MatchesName(name, pattern string) (bool, error) {
	cacheKey := name + ":" + pattern
	if cached, ok := m.nameCache.Result(cacheKey); ok {
		return cached, nil
	}

	re, ok := m.nameCache.Pattern(pattern)
	if !ok {
		var err error
		re, err = regexp.Compile(nameToRegex(pattern))
		if err != nil {
			return false, errs.NewValidationError("match_name", "invalid name pattern", err).
				WithCode(errs.CodeValidationFormat).
				WithDetail("pattern", pattern).
				WithDetail("name", name)
		}
		m.nameCache.SetPattern(pattern, re)
	}

	matches := re.MatchString(name)
	m.nameCache.SetResult(cacheKey, matches)
	return matches, nil
}

// IsExcluded reports whether path matches any configured exclusion pattern.
// A pattern that fails to compile is reported to the logger and skipped so a
// single bad exclusion cannot disable the rest of the set.
func (m *Matcher) IsExcluded(path string) bool {
	for _, pat := range m.excluded {
		matched, err := m.MatchesPath(path, pat)
		if err != nil {
			if m.logger != nil {
				m.logger.Warn("skipping exclusion pattern %q: %v", pat, err)
			}
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// RelativePath returns path relative to the matcher's root directory with
// forward slashes, or the path unchanged when no root is configured or the
// path lies outside it.
func (m *Matcher) RelativePath(path string) string {
	if m.rootDir == "" {
		return path
	}
	rel, err := filepath.Rel(m.rootDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// ClearCaches drops both the path and name caches.
func (m *Matcher) ClearCaches() {
	m.pathCache.Clear()
	m.nameCache.Clear()
}

// compilePathPattern returns the compiled regex for a pattern body with any
// negation prefix already stripped. A leading / anchors the expression at the
// path start; otherwise it may match starting at any segment boundary. The
// cache is keyed by the derived regex source, so p and !p share one entry
// while anchored and unanchored forms of the same body stay distinct.
func (m *Matcher) compilePathPattern(body string) (*regexp.Regexp, error) {
	var expr string
	if strings.HasPrefix(body, "/") {
		expr = "^" + globToRegex(body[1:]) + "$"
	} else {
		expr = "(?:^|/)" + globToRegex(body) + "$"
	}

	if cached, ok := m.pathCache.Pattern(expr); ok {
		return cached, nil
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, err)
	}
	m.pathCache.SetPattern(expr, re)
	return re, nil
}

// globToRegex converts a glob pattern body to a regular expression in a
// single pass so inserted regex fragments are never rewritten by a later
// wildcard substitution.
func globToRegex(pattern string) string {
	var sb strings.Builder
	i := 0
	for i < len(pattern) {
		switch {
		case strings.HasPrefix(pattern[i:], "**/"):
			// Any number of whole path segments, including none.
			sb.WriteString(".*?/")
			i += 3
		case strings.HasPrefix(pattern[i:], "/**"):
			sb.WriteString("/.*?")
			i += 3
		case pattern[i] == '*':
			sb.WriteString("[^/]*")
			i++
		case pattern[i] == '?':
			sb.WriteString("[^/]")
			i++
		case pattern[i] == '[' || pattern[i] == ']':
			// Character classes pass through. An unbalanced class fails at
			// compile time and surfaces as a ValidationError.
			sb.WriteByte(pattern[i])
			i++
		default:
			// Everything else is quoted so ".", "(" and friends never leak
			// regex semantics into the match.
			sb.WriteString(regexp.QuoteMeta(string(pattern[i])))
			i++
		}
	}
	return sb.String()
}

// nameToRegex converts a name pattern to an anchored full-string regex. Only
// * is supported; every other character matches literally.
func nameToRegex(pattern string) string {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return "^" + strings.Join(parts, ".*") + "$"
}

func normalizePath(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}
