package combiner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwardmakesthings/pyweaver/internal/config"
)

func TestResolveContentMode(t *testing.T) {
	tests := []struct {
		name     string
		settings config.CombinerSettings
		want     ContentMode
		wantErr  bool
	}{
		{"explicit mode wins", config.CombinerSettings{ContentMode: "minimal"}, ModeMinimal, false},
		{"explicit full", config.CombinerSettings{ContentMode: "full", RemoveComments: true}, ModeFull, false},
		{"no flags", config.CombinerSettings{}, ModeFull, false},
		{"comments flag", config.CombinerSettings{RemoveComments: true}, ModeNoComments, false},
		{"docstrings flag", config.CombinerSettings{RemoveDocstrings: true}, ModeNoDocstrings, false},
		{"both flags", config.CombinerSettings{RemoveComments: true, RemoveDocstrings: true}, ModeMinimal, false},
		{"bad mode", config.CombinerSettings{ContentMode: "sparse"}, ModeFull, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveContentMode(tt.settings)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProcessPythonDocstrings(t *testing.T) {
	source := `"""Module docstring."""

def f():
    """Single line."""
    x = 1
    return x

def g():
    '''
    Multi
    line.
    '''
    return "# not a comment"
`
	got := processPython(source, ModeNoDocstrings)
	assert.NotContains(t, got, "Module docstring")
	assert.NotContains(t, got, "Single line")
	assert.NotContains(t, got, "Multi")
	assert.Contains(t, got, "x = 1")
	assert.Contains(t, got, `return "# not a comment"`)
}

func TestProcessPythonComments(t *testing.T) {
	source := `x = 1  # trailing comment
# full line comment
s = "a # not a comment"
y = 2
`
	got := processPython(source, ModeNoComments)
	assert.Contains(t, got, "x = 1")
	assert.NotContains(t, got, "trailing comment")
	assert.NotContains(t, got, "full line")
	assert.Contains(t, got, `s = "a # not a comment"`)
	// Docstrings survive comment-only mode.
	withDoc := "\"\"\"Doc.\"\"\"\nx = 1\n"
	assert.Contains(t, processPython(withDoc, ModeNoComments), "Doc.")
}

func TestProcessJavaScript(t *testing.T) {
	source := `/** JSDoc for f. */
function f() {
  // line comment
  const url = "http://example.com"; /* inline */
  const tpl = ` + "`a // not comment`" + `;
  return url;
}
`
	t.Run("minimal removes everything", func(t *testing.T) {
		got := processJavaScript(source, ModeMinimal)
		assert.NotContains(t, got, "JSDoc")
		assert.NotContains(t, got, "line comment")
		assert.NotContains(t, got, "inline")
		assert.Contains(t, got, `"http://example.com"`)
		assert.Contains(t, got, "a // not comment")
	})

	t.Run("no_docstrings keeps plain comments", func(t *testing.T) {
		got := processJavaScript(source, ModeNoDocstrings)
		assert.NotContains(t, got, "JSDoc")
		assert.Contains(t, got, "// line comment")
		assert.Contains(t, got, "/* inline */")
	})

	t.Run("no_comments keeps jsdoc", func(t *testing.T) {
		got := processJavaScript(source, ModeNoComments)
		assert.Contains(t, got, "JSDoc")
		assert.NotContains(t, got, "line comment")
		assert.NotContains(t, got, "inline")
	})
}

func TestProcessJavaScriptMultilineBlock(t *testing.T) {
	source := "a();\n/* one\n   two */\nb();\n"
	got := processJavaScript(source, ModeNoComments)
	assert.NotContains(t, got, "one")
	assert.Contains(t, got, "a();")
	assert.Contains(t, got, "b();")
}

func TestProcessStyle(t *testing.T) {
	source := `/* header */
.a { color: red; } // scss note
.b { color: blue; }
`
	got := processStyle(source, ModeNoComments)
	assert.NotContains(t, got, "header")
	assert.NotContains(t, got, "scss note")
	assert.Contains(t, got, ".a { color: red; }")
	assert.Contains(t, got, ".b { color: blue; }")

	assert.Equal(t, source, processStyle(source, ModeNoDocstrings),
		"styles have no docstrings to strip")
}

func TestProcessHTMLPreservesConditionalComments(t *testing.T) {
	source := `<html>
<!-- normal comment -->
<!--[if IE]><link rel="stylesheet" href="ie.css"><![endif]-->
<body></body>
</html>
`
	got := processHTML(source, ModeNoComments)
	assert.NotContains(t, got, "normal comment")
	assert.Contains(t, got, "<!--[if IE]>")
	assert.Contains(t, got, "<![endif]-->")
	assert.Contains(t, got, "<body></body>")
}

func TestProcessVue(t *testing.T) {
	source := `<template>
  <!-- template comment -->
  <div>{{ msg }}</div>
</template>
<script>
// script comment
export default { name: "App" };
</script>
<style scoped>
/* style comment */
.app { color: red; }
</style>
`
	got := processVue(source, ModeNoComments)
	assert.NotContains(t, got, "template comment")
	assert.NotContains(t, got, "script comment")
	assert.NotContains(t, got, "style comment")
	assert.Contains(t, got, "<div>{{ msg }}</div>")
	assert.Contains(t, got, `export default { name: "App" };`)
	assert.Contains(t, got, ".app { color: red; }")
	assert.Contains(t, got, "<template>")
	assert.Contains(t, got, "<style scoped>")
}

func TestProcessorForUnknownExtension(t *testing.T) {
	assert.Nil(t, processorFor(".md"))
	assert.Nil(t, processorFor(""))
	assert.NotNil(t, processorFor(".PY"), "extension matching is case-insensitive")
}

func TestPostProcess(t *testing.T) {
	in := "a  \r\nb\t\n\n\n\nc\n\n"
	assert.Equal(t, "a\nb\n\nc\n", postProcess(in))
}
