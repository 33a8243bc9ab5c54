package config

import (
	"strings"

	"github.com/edwardmakesthings/pyweaver/internal/errs"
	"github.com/edwardmakesthings/pyweaver/internal/pattern"
)

// maxPatternLength bounds a single glob pattern. Anything longer is almost
// certainly pasted garbage and would bloat the caches.
const maxPatternLength = 1000

// DefaultIgnorePatterns are excluded by every tool unless overridden.
func DefaultIgnorePatterns() []string {
	return []string{
		"*.pyc",
		"__pycache__",
		".git",
		".venv",
		"node_modules",
	}
}

// PathSettings selects which filesystem items the tools operate on.
type PathSettings struct {
	// IgnorePatterns are glob patterns for paths to skip.
	IgnorePatterns []string `yaml:"ignore_patterns" json:"ignore_patterns"`

	// IncludePatterns, when non-empty, restrict processing to matching paths.
	IncludePatterns []string `yaml:"include_patterns" json:"include_patterns"`

	// MaxDepth limits directory recursion (0 = unlimited).
	MaxDepth int `yaml:"max_depth" json:"max_depth"`

	// FollowSymlinks enables walking through symlinked directories.
	FollowSymlinks bool `yaml:"follow_symlinks" json:"follow_symlinks"`

	// AdditionalOptions carries tool-specific extras that have no typed field.
	AdditionalOptions map[string]any `yaml:"additional_options" json:"additional_options"`
}

// DefaultPathSettings returns path settings with the stock ignore set.
func DefaultPathSettings() PathSettings {
	return PathSettings{
		IgnorePatterns: DefaultIgnorePatterns(),
	}
}

// Validate rejects malformed patterns. Patterns must be non-empty, at most
// maxPatternLength characters, and every ** must be followed by / or end the
// pattern.
func (s *PathSettings) Validate() error {
	check := func(kind string, patterns []string) error {
		for _, p := range patterns {
			if strings.TrimSpace(p) == "" {
				return errs.NewValidationError("validate_settings",
					"empty "+kind+" pattern", nil).
					WithCode(errs.CodeValidationFormat)
			}
			if len(p) > maxPatternLength {
				return errs.NewValidationError("validate_settings",
					"pattern exceeds maximum length", nil).
					WithCode(errs.CodeValidationConstraint).
					WithDetail("pattern", p[:40]+"...").
					WithDetail("length", len(p))
			}
			if err := validateDeepWildcards(p); err != nil {
				return err
			}
		}
		return nil
	}

	if err := check("ignore", s.IgnorePatterns); err != nil {
		return err
	}
	if err := check("include", s.IncludePatterns); err != nil {
		return err
	}
	if s.MaxDepth < 0 {
		return errs.NewValidationError("validate_settings",
			"max_depth cannot be negative", nil).
			WithCode(errs.CodeValidationConstraint).
			WithDetail("max_depth", s.MaxDepth)
	}
	return nil
}

// validateDeepWildcards checks that each ** is a whole segment: followed by /
// or closing the pattern.
func validateDeepWildcards(p string) error {
	for i := 0; i+1 < len(p); i++ {
		if p[i] != '*' || p[i+1] != '*' {
			continue
		}
		if i+2 < len(p) && p[i+2] == '*' {
			return errs.NewValidationError("validate_settings",
				"*** is not a valid wildcard", nil).
				WithCode(errs.CodeValidationFormat).
				WithDetail("pattern", p)
		}
		if i+2 < len(p) && p[i+2] != '/' {
			return errs.NewValidationError("validate_settings",
				"** must be followed by /", nil).
				WithCode(errs.CodeValidationFormat).
				WithDetail("pattern", p)
		}
		i++ // skip the second star
	}
	return nil
}

// Merge returns a copy of s with override applied: pattern sets are unioned
// (first occurrence wins on duplicates), scalar options take the override
// value when it is set, and additional options are override-merged by key.
func (s PathSettings) Merge(override PathSettings) PathSettings {
	merged := PathSettings{
		IgnorePatterns:  unionPatterns(s.IgnorePatterns, override.IgnorePatterns),
		IncludePatterns: unionPatterns(s.IncludePatterns, override.IncludePatterns),
		MaxDepth:        s.MaxDepth,
		FollowSymlinks:  s.FollowSymlinks || override.FollowSymlinks,
	}
	if override.MaxDepth != 0 {
		merged.MaxDepth = override.MaxDepth
	}
	if len(s.AdditionalOptions) > 0 || len(override.AdditionalOptions) > 0 {
		merged.AdditionalOptions = make(map[string]any, len(s.AdditionalOptions)+len(override.AdditionalOptions))
		for k, v := range s.AdditionalOptions {
			merged.AdditionalOptions[k] = v
		}
		for k, v := range override.AdditionalOptions {
			merged.AdditionalOptions[k] = v
		}
	}
	return merged
}

func unionPatterns(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	var out []string
	for _, p := range append(append([]string{}, base...), extra...) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// PathConfig binds path settings to a root directory and a shared matcher.
// Tools and the processor consult it instead of touching pattern internals.
type PathConfig struct {
	Root     string
	Settings PathSettings

	matcher *pattern.Matcher
}

// NewPathConfig creates a PathConfig whose matcher treats the settings'
// ignore patterns as its exclusion set.
func NewPathConfig(root string, settings PathSettings, warn pattern.WarnLogger) *PathConfig {
	return &PathConfig{
		Root:     root,
		Settings: settings,
		matcher: pattern.NewMatcher(pattern.Config{
			RootDir:  root,
			Excluded: settings.IgnorePatterns,
			Logger:   warn,
		}),
	}
}

// Matcher returns the shared pattern matcher.
func (pc *PathConfig) Matcher() *pattern.Matcher {
	return pc.matcher
}

// MatchesAny reports whether the root-relative form of path matches any of
// the given patterns, returning the first pattern that matched. Patterns are
// validated at load time, so a pattern failing to compile here is skipped.
func (pc *PathConfig) MatchesAny(path string, patterns []string) (bool, string) {
	rel := pc.matcher.RelativePath(path)
	for _, p := range patterns {
		matched, err := pc.matcher.MatchesPath(rel, p)
		if err != nil {
			continue
		}
		if matched {
			return true, p
		}
	}
	return false, ""
}

// IsExcluded reports whether path matches the configured ignore set.
func (pc *PathConfig) IsExcluded(path string) bool {
	return pc.matcher.IsExcluded(pc.matcher.RelativePath(path))
}
