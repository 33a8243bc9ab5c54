// Package readme rewrites a repository README into its docs-site variant.
// The source is parsed with goldmark to locate headings and link targets, then
// edited at the line level: the badge header is stripped or retitled, the
// configured sections are dropped with their bodies, and repo-relative links
// are rewritten against the docs-site prefix.
package readme

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/edwardmakesthings/pyweaver/internal/config"
	"github.com/edwardmakesthings/pyweaver/internal/errs"
	"github.com/edwardmakesthings/pyweaver/internal/filelock"
	"github.com/edwardmakesthings/pyweaver/internal/logger"
)

// Transformer drives the readme tool.
type Transformer struct {
	settings config.ReadmeSettings
	log      logger.Logger
	markdown goldmark.Markdown
}

// New creates a Transformer for the given settings.
func New(settings config.ReadmeSettings, log logger.Logger) *Transformer {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Transformer{
		settings: settings,
		log:      log,
		markdown: goldmark.New(),
	}
}

// Run reads the configured input README under root, transforms it and writes
// the result to the configured output path. Returns the absolute output path.
func (t *Transformer) Run(root string) (string, error) {
	in := t.settings.InputFile
	if !filepath.IsAbs(in) {
		in = filepath.Join(root, in)
	}
	source, err := os.ReadFile(in)
	if err != nil {
		return "", errs.NewFileError("readme", "cannot read input file", in, err).
			WithCode(errs.CodeFileRead)
	}

	transformed := t.Transform(source)

	out := t.settings.OutputFile
	if !filepath.IsAbs(out) {
		out = filepath.Join(root, out)
	}
	if err := filelock.AtomicWrite(out, transformed); err != nil {
		return "", err
	}
	t.log.Info("readme: wrote %s", out)
	return out, nil
}

// heading is one ATX heading located in the source.
type heading struct {
	line  int
	level int
	title string
}

// Transform rewrites one README document. The AST decides what a heading or a
// link is (so nothing inside fenced code blocks is touched); the edits
// themselves happen on the source lines.
func (t *Transformer) Transform(source []byte) []byte {
	doc := t.markdown.Parser().Parse(text.NewReader(source))
	lines := strings.Split(string(source), "\n")
	starts := lineStarts(source)

	var headings []heading
	links := map[string]bool{}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if node.Lines().Len() == 0 {
				return ast.WalkContinue, nil
			}
			headings = append(headings, heading{
				line:  lineAt(starts, node.Lines().At(0).Start),
				level: node.Level,
				title: extractText(node, source),
			})
		case *ast.Link:
			links[string(node.Destination)] = true
		}
		return ast.WalkContinue, nil
	})

	drop := make([]bool, len(lines))
	t.dropSections(headings, drop, len(lines))
	t.reheader(headings, lines, drop)

	var kept []string
	for i, line := range lines {
		if i < len(drop) && drop[i] {
			continue
		}
		kept = append(kept, line)
	}
	result := strings.Join(kept, "\n")
	result = t.rewriteLinks(result, links)
	result = collapseBlanks(result)
	return []byte(result)
}

// dropSections marks every configured section, heading line through the line
// before the next heading of the same or a shallower level.
func (t *Transformer) dropSections(headings []heading, drop []bool, total int) {
	if len(t.settings.DropSections) == 0 {
		return
	}
	names := map[string]bool{}
	for _, s := range t.settings.DropSections {
		names[strings.ToLower(strings.TrimSpace(s))] = true
	}

	for i, h := range headings {
		if !names[strings.ToLower(h.title)] {
			continue
		}
		end := total
		for _, next := range headings[i+1:] {
			if next.level <= h.level {
				end = next.line
				break
			}
		}
		for l := h.line; l < end && l < len(drop); l++ {
			drop[l] = true
		}
	}
}

// reheader retitles the top-level heading and strips the badge lines directly
// below it.
func (t *Transformer) reheader(headings []heading, lines []string, drop []bool) {
	if len(headings) == 0 || headings[0].level != 1 {
		return
	}
	top := headings[0].line
	if t.settings.Title != "" && top < len(lines) {
		lines[top] = "# " + t.settings.Title
	}
	if !t.settings.StripBadges {
		return
	}
	for l := top + 1; l < len(lines); l++ {
		trimmed := strings.TrimSpace(lines[l])
		if trimmed == "" {
			continue
		}
		if !isBadgeLine(trimmed) {
			return
		}
		drop[l] = true
	}
}

// rewriteLinks prefixes every repo-relative link target found in the AST.
// Longer targets are replaced first so a target that is a prefix of another
// cannot clobber it.
func (t *Transformer) rewriteLinks(content string, links map[string]bool) string {
	prefix := strings.TrimSuffix(t.settings.LinkPrefix, "/")
	if prefix == "" {
		return content
	}

	targets := make([]string, 0, len(links))
	for dest := range links {
		if isRepoRelative(dest) {
			targets = append(targets, dest)
		}
	}
	sort.Slice(targets, func(i, j int) bool { return len(targets[i]) > len(targets[j]) })

	for _, dest := range targets {
		rewritten := prefix + "/" + strings.TrimPrefix(dest, "./")
		content = strings.ReplaceAll(content, "]("+dest+")", "]("+rewritten+")")
	}
	return content
}

// isRepoRelative reports whether a link target points inside the repository.
func isRepoRelative(dest string) bool {
	if dest == "" {
		return false
	}
	if strings.HasPrefix(dest, "#") || strings.HasPrefix(dest, "/") {
		return false
	}
	if strings.Contains(dest, "://") || strings.HasPrefix(dest, "mailto:") {
		return false
	}
	return true
}

// isBadgeLine reports whether a trimmed line consists of badge images.
func isBadgeLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "![") || strings.HasPrefix(trimmed, "[![")
}

// collapseBlanks squeezes runs of blank lines left behind by dropped content
// and ends the document with a single newline.
func collapseBlanks(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blanks++
			if blanks > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blanks = 0
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n") + "\n"
}

// lineStarts returns the byte offset of every line start.
func lineStarts(source []byte) []int {
	starts := []int{0}
	for i, b := range source {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineAt maps a byte offset to its zero-based line index.
func lineAt(starts []int, offset int) int {
	lo, hi := 0, len(starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if starts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// extractText collects the plain text of a node's inline children.
func extractText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
	}
	return buf.String()
}
