package pymod

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSource = `"""Widget helpers.

Utilities for building widgets.
"""
import os
from typing import Optional

MAX_WIDGETS = 100
_CACHE_SIZE = 10
default_timeout = 30

WidgetType = Optional[str]
Handler = Callable[[str], None]

class Widget(Base, mixin=Tracked):
    """A configurable widget."""

    def render(self):
        """Render the widget."""
        return None

class _Hidden:
    pass

def make_widget(name):
    """Create a widget by name."""
    return Widget()

async def fetch_widget(name):
    '''
    Fetch a widget from the registry.
    '''
    return None

def _internal():
    pass
`

func TestAnalyzeCollectsDefinitions(t *testing.T) {
	a := NewAnalyzer(Options{}, nil)
	mod := a.Analyze("widgets.py", sampleSource)

	assert.Equal(t, "Widget helpers.\n\nUtilities for building widgets.", mod.Docstring)

	require.Len(t, mod.Classes, 1)
	assert.Equal(t, "Widget", mod.Classes[0].Name)
	assert.Equal(t, "A configurable widget.", mod.Classes[0].Doc)
	assert.Equal(t, []string{"Base"}, mod.Classes[0].Bases, "keyword arguments are not bases")

	require.Len(t, mod.Functions, 2)
	assert.Equal(t, "make_widget", mod.Functions[0].Name)
	assert.Equal(t, "Create a widget by name.", mod.Functions[0].Doc)
	assert.Equal(t, "fetch_widget", mod.Functions[1].Name)
	assert.Equal(t, "Fetch a widget from the registry.", mod.Functions[1].Doc)

	assert.Equal(t, []string{"MAX_WIDGETS"}, mod.Constants)
	assert.Equal(t, []string{"WidgetType", "Handler"}, mod.TypeDefs)
	assert.False(t, mod.HasAll)
}

func TestAnalyzeSkipsPrivateNames(t *testing.T) {
	a := NewAnalyzer(Options{}, nil)
	mod := a.Analyze("widgets.py", sampleSource)

	for _, c := range mod.Classes {
		assert.NotEqual(t, "_Hidden", c.Name)
	}
	for _, f := range mod.Functions {
		assert.NotEqual(t, "_internal", f.Name)
	}
	assert.NotContains(t, mod.Constants, "_CACHE_SIZE")
}

func TestAnalyzeIncludePrivate(t *testing.T) {
	a := NewAnalyzer(Options{IncludePrivate: true}, nil)
	mod := a.Analyze("widgets.py", sampleSource)

	var classNames []string
	for _, c := range mod.Classes {
		classNames = append(classNames, c.Name)
	}
	assert.Contains(t, classNames, "_Hidden")
	assert.Contains(t, mod.Constants, "_CACHE_SIZE")
}

func TestAnalyzeRespectsAll(t *testing.T) {
	source := `"""Mod."""
__all__ = [
    "Widget",
    "make_widget",
]

class Widget: pass
class Extra: pass
def make_widget(): pass
`
	a := NewAnalyzer(Options{}, nil)
	mod := a.Analyze("mod.py", source)

	require.True(t, mod.HasAll)
	assert.Equal(t, []string{"Widget", "make_widget"}, mod.All)
	assert.Equal(t, []string{"Widget", "make_widget"}, mod.Exports(),
		"__all__ wins over collected names")
}

func TestAnalyzeExportsWithoutAll(t *testing.T) {
	a := NewAnalyzer(Options{}, nil)
	mod := a.Analyze("widgets.py", sampleSource)

	assert.Equal(t,
		[]string{"Handler", "MAX_WIDGETS", "Widget", "WidgetType", "fetch_widget", "make_widget"},
		mod.Exports())
}

func TestAnalyzeConstantPatterns(t *testing.T) {
	source := `"""Mod."""
default_timeout = 30
settings_key = "abc"
`
	a := NewAnalyzer(Options{ConstantPatterns: []string{"default_*"}}, nil)
	mod := a.Analyze("mod.py", source)

	assert.Equal(t, []string{"default_timeout"}, mod.Constants,
		"configured name patterns promote lowercase names to constants")
}

func TestAnalyzeIgnoresDefinitionsInsideStrings(t *testing.T) {
	source := `"""Mod."""
TEMPLATE = """
class NotReal:
    pass
def also_not_real():
    pass
"""

def real(): pass
`
	a := NewAnalyzer(Options{}, nil)
	mod := a.Analyze("mod.py", source)

	assert.Empty(t, mod.Classes)
	require.Len(t, mod.Functions, 1)
	assert.Equal(t, "real", mod.Functions[0].Name)
	assert.Equal(t, []string{"TEMPLATE"}, mod.Constants)
}

func TestAnalyzeIgnoresNestedDefinitions(t *testing.T) {
	source := `"""Mod."""
class Outer:
    class Inner: pass
    def method(self): pass

def top(): pass
`
	a := NewAnalyzer(Options{}, nil)
	mod := a.Analyze("mod.py", source)

	require.Len(t, mod.Classes, 1)
	assert.Equal(t, "Outer", mod.Classes[0].Name)
	require.Len(t, mod.Functions, 1)
	assert.Equal(t, "top", mod.Functions[0].Name)
}

func TestAnalyzeEmptyModule(t *testing.T) {
	a := NewAnalyzer(Options{}, nil)
	mod := a.Analyze("empty.py", "# just a comment\n")

	assert.True(t, mod.IsEmpty())
	assert.Empty(t, mod.Docstring)
}

func TestAnalyzeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.py")
	require.NoError(t, os.WriteFile(path, []byte("\"\"\"Doc.\"\"\"\nclass C: pass\n"), 0644))

	a := NewAnalyzer(Options{}, nil)
	mod, err := a.AnalyzeFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Doc.", mod.Docstring)
	require.Len(t, mod.Classes, 1)

	_, err = a.AnalyzeFile(filepath.Join(dir, "missing.py"))
	require.Error(t, err)
}
