package combiner

import (
	"regexp"
	"strings"

	"github.com/edwardmakesthings/pyweaver/internal/config"
	"github.com/edwardmakesthings/pyweaver/internal/errs"
)

// ContentMode selects how much of each file survives combining.
type ContentMode int

const (
	// ModeFull keeps content untouched.
	ModeFull ContentMode = iota
	// ModeNoComments strips comments.
	ModeNoComments
	// ModeNoDocstrings strips docstrings and doc comments.
	ModeNoDocstrings
	// ModeMinimal strips both.
	ModeMinimal
)

func (m ContentMode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeNoComments:
		return "no_comments"
	case ModeNoDocstrings:
		return "no_docstrings"
	case ModeMinimal:
		return "minimal"
	default:
		return "unknown"
	}
}

func (m ContentMode) stripComments() bool {
	return m == ModeNoComments || m == ModeMinimal
}

func (m ContentMode) stripDocstrings() bool {
	return m == ModeNoDocstrings || m == ModeMinimal
}

// ParseContentMode parses the config string form of a mode.
func ParseContentMode(s string) (ContentMode, error) {
	switch s {
	case "full":
		return ModeFull, nil
	case "no_comments":
		return ModeNoComments, nil
	case "no_docstrings":
		return ModeNoDocstrings, nil
	case "minimal":
		return ModeMinimal, nil
	default:
		return ModeFull, errs.NewConfigError("parse_content_mode", "unknown content mode", nil).
			WithCode(errs.CodeConfigValidation).
			WithDetail("content_mode", s)
	}
}

// ResolveContentMode picks the effective mode: an explicit ContentMode string
// wins, otherwise the Remove* booleans decide.
func ResolveContentMode(s config.CombinerSettings) (ContentMode, error) {
	if s.ContentMode != "" {
		return ParseContentMode(s.ContentMode)
	}
	switch {
	case s.RemoveComments && s.RemoveDocstrings:
		return ModeMinimal, nil
	case s.RemoveComments:
		return ModeNoComments, nil
	case s.RemoveDocstrings:
		return ModeNoDocstrings, nil
	default:
		return ModeFull, nil
	}
}

// contentProcessor transforms one file's content for a mode. Processors never
// fail: content they cannot interpret passes through.
type contentProcessor func(content string, mode ContentMode) string

// processorFor returns the processor for a file extension (with dot), or nil
// for pass-through types.
func processorFor(ext string) contentProcessor {
	switch strings.ToLower(ext) {
	case ".py":
		return processPython
	case ".js", ".ts", ".jsx", ".tsx":
		return processJavaScript
	case ".css", ".scss", ".less":
		return processStyle
	case ".html", ".htm":
		return processHTML
	case ".vue":
		return processVue
	default:
		return nil
	}
}

// processPython strips docstrings by line scanning and comments with a
// string-aware split, so a # inside a literal survives.
func processPython(content string, mode ContentMode) string {
	if mode == ModeFull {
		return content
	}
	if mode.stripDocstrings() {
		content = removePythonDocstrings(content)
	}
	if mode.stripComments() {
		content = removePythonComments(content)
	}
	return content
}

func removePythonDocstrings(content string) string {
	var lines []string
	inDocstring := false
	delim := ""

	for _, line := range strings.Split(content, "\n") {
		stripped := strings.TrimSpace(line)

		if inDocstring {
			if strings.Contains(stripped, delim) {
				inDocstring = false
				delim = ""
			}
			continue
		}

		var d string
		switch {
		case strings.HasPrefix(stripped, `"""`):
			d = `"""`
		case strings.HasPrefix(stripped, "'''"):
			d = "'''"
		}
		if d != "" {
			// A single-line docstring opens and closes on this line.
			if strings.Count(stripped, d) >= 2 {
				continue
			}
			inDocstring = true
			delim = d
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func removePythonComments(content string) string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if !strings.Contains(line, "#") {
			lines = append(lines, line)
			continue
		}

		inString := false
		var stringChar byte
		commentPos := -1
	scan:
		for i := 0; i < len(line); i++ {
			c := line[i]
			switch {
			case c == '"' || c == '\'':
				if !inString {
					inString = true
					stringChar = c
				} else if c == stringChar && (i == 0 || line[i-1] != '\\') {
					inString = false
				}
			case c == '#' && !inString:
				commentPos = i
				break scan
			}
		}

		if commentPos < 0 {
			lines = append(lines, line)
			continue
		}
		code := strings.TrimRight(line[:commentPos], " \t")
		if code != "" {
			lines = append(lines, code)
		}
	}
	return strings.Join(lines, "\n")
}

// processJavaScript walks the whole source once, skipping string literals,
// and drops // comments, /* */ blocks and /** */ JSDoc blocks according to
// the mode. Lines left empty by removal are cleaned up by post-processing.
func processJavaScript(content string, mode ContentMode) string {
	if mode == ModeFull {
		return content
	}

	var b strings.Builder
	n := len(content)
	i := 0
	for i < n {
		c := content[i]

		// Line comment.
		if c == '/' && i+1 < n && content[i+1] == '/' {
			j := strings.IndexByte(content[i:], '\n')
			if !mode.stripComments() {
				if j < 0 {
					b.WriteString(content[i:])
					return b.String()
				}
				b.WriteString(content[i : i+j])
			}
			if j < 0 {
				return b.String()
			}
			i += j
			continue
		}

		// Block comment, doc or plain.
		if c == '/' && i+1 < n && content[i+1] == '*' {
			isDoc := i+3 < n && content[i+2] == '*' && content[i+3] != '/'
			close := n
			if end := strings.Index(content[i+2:], "*/"); end >= 0 {
				close = i + 2 + end + 2
			}
			remove := (isDoc && mode.stripDocstrings()) || (!isDoc && mode.stripComments())
			if !remove {
				b.WriteString(content[i:close])
			}
			i = close
			continue
		}

		// String literals pass through untouched; only template literals
		// continue across newlines.
		if c == '"' || c == '\'' || c == '`' {
			quote := c
			b.WriteByte(c)
			i++
			for i < n {
				ch := content[i]
				b.WriteByte(ch)
				i++
				if ch == '\\' && i < n {
					b.WriteByte(content[i])
					i++
					continue
				}
				if ch == quote || (ch == '\n' && quote != '`') {
					break
				}
			}
			continue
		}

		b.WriteByte(c)
		i++
	}
	return b.String()
}

var (
	styleBlockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	styleLineCommentRe  = regexp.MustCompile(`(?m)//[^\n]*$`)
)

// processStyle strips CSS/SCSS/LESS comments.
func processStyle(content string, mode ContentMode) string {
	if mode.stripComments() {
		content = styleBlockCommentRe.ReplaceAllString(content, "")
		content = styleLineCommentRe.ReplaceAllString(content, "")
	}
	return content
}

// processHTML strips <!-- --> comments while preserving conditional comments
// like <!--[if IE]> and their <![endif]--> closers.
func processHTML(content string, mode ContentMode) string {
	if !mode.stripComments() {
		return content
	}

	var out strings.Builder
	for {
		start := strings.Index(content, "<!--")
		if start < 0 {
			out.WriteString(content)
			break
		}
		end := strings.Index(content[start:], "-->")
		if end < 0 {
			out.WriteString(content)
			break
		}
		end += start + 3

		inner := content[start+4 : end-3]
		out.WriteString(content[:start])
		if isConditionalComment(inner) {
			out.WriteString(content[start:end])
		}
		content = content[end:]
	}
	return out.String()
}

func isConditionalComment(inner string) bool {
	trimmed := strings.TrimSpace(inner)
	return strings.HasPrefix(trimmed, "[") || strings.Contains(trimmed, "<![")
}

var vueSectionRe = regexp.MustCompile(`</?(?:template|script|style)[^>]*>`)

// processVue splits a single-file component at its section tags and delegates
// each body to the matching language processor.
func processVue(content string, mode ContentMode) string {
	if mode == ModeFull {
		return content
	}

	var out strings.Builder
	current := ""
	pos := 0
	for _, loc := range vueSectionRe.FindAllStringIndex(content, -1) {
		out.WriteString(processVueBody(content[pos:loc[0]], current, mode))

		tag := content[loc[0]:loc[1]]
		out.WriteString(tag)
		switch {
		case strings.HasPrefix(tag, "</"):
			current = ""
		case strings.HasPrefix(tag, "<template"):
			current = "template"
		case strings.HasPrefix(tag, "<script"):
			current = "script"
		case strings.HasPrefix(tag, "<style"):
			current = "style"
		}
		pos = loc[1]
	}
	out.WriteString(processVueBody(content[pos:], current, mode))
	return out.String()
}

func processVueBody(body, section string, mode ContentMode) string {
	switch section {
	case "template":
		return processHTML(body, mode)
	case "script":
		return processJavaScript(body, mode)
	case "style":
		return processStyle(body, mode)
	default:
		return body
	}
}
