package readme

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwardmakesthings/pyweaver/internal/config"
	"github.com/edwardmakesthings/pyweaver/internal/errs"
)

const sampleReadme = `# pyweaver

[![CI](https://img.shields.io/ci.svg)](https://ci.example.com/pyweaver)
![Coverage](https://img.shields.io/cov.svg)

Weaves Python project files together.

## Install

See [the guide](docs/install.md) and [contributing](./CONTRIBUTING.md).

## Development

Internal release notes.

### Testing

Run the suite before pushing.

## Usage

Visit [the site](https://example.com) or jump to [install](#install).
`

func transform(t *testing.T, settings config.ReadmeSettings, source string) string {
	t.Helper()
	return string(New(settings, nil).Transform([]byte(source)))
}

func TestTransformRetitlesAndStripsBadges(t *testing.T) {
	got := transform(t, config.ReadmeSettings{
		Title:       "pyweaver documentation",
		StripBadges: true,
	}, sampleReadme)

	assert.True(t, strings.HasPrefix(got, "# pyweaver documentation\n\nWeaves Python"), got)
	assert.NotContains(t, got, "shields.io")
}

func TestTransformKeepsBadgesWhenDisabled(t *testing.T) {
	got := transform(t, config.ReadmeSettings{}, sampleReadme)
	assert.Contains(t, got, "[![CI](https://img.shields.io/ci.svg)]")
}

func TestTransformDropsSections(t *testing.T) {
	got := transform(t, config.ReadmeSettings{
		DropSections: []string{"development"},
	}, sampleReadme)

	assert.NotContains(t, got, "## Development")
	assert.NotContains(t, got, "Internal release notes")
	// Subsections go with their parent.
	assert.NotContains(t, got, "### Testing")
	assert.NotContains(t, got, "Run the suite")
	// Surrounding sections survive.
	assert.Contains(t, got, "## Install")
	assert.Contains(t, got, "## Usage")
}

func TestTransformRewritesRepoRelativeLinks(t *testing.T) {
	got := transform(t, config.ReadmeSettings{
		LinkPrefix: "https://docs.example.com/",
	}, sampleReadme)

	assert.Contains(t, got, "(https://docs.example.com/docs/install.md)")
	assert.Contains(t, got, "(https://docs.example.com/CONTRIBUTING.md)")
	// External links and anchors are untouched.
	assert.Contains(t, got, "[the site](https://example.com)")
	assert.Contains(t, got, "[install](#install)")
}

func TestTransformIgnoresHeadingsInCodeBlocks(t *testing.T) {
	source := "# Tool\n\n## Usage\n\n```\n## Keep\nnot a heading\n```\n\n## Keep\n\nAfter.\n"
	got := transform(t, config.ReadmeSettings{
		DropSections: []string{"Usage"},
	}, source)

	// The fenced "## Keep" inside the Usage section is not a heading, so the
	// drop runs through it and stops at the real Keep section.
	assert.NotContains(t, got, "not a heading")
	assert.Contains(t, got, "## Keep\n\nAfter.")
}

func TestTransformCollapsesBlankRuns(t *testing.T) {
	source := "# Tool\n\nIntro.\n\n## Gone\n\nBody.\n\n## Kept\n\nTail.\n"
	got := transform(t, config.ReadmeSettings{DropSections: []string{"Gone"}}, source)

	assert.NotContains(t, got, "\n\n\n")
	assert.Contains(t, got, "Intro.\n\n## Kept")
	assert.True(t, strings.HasSuffix(got, "Tail.\n"))
}

func TestRunWritesOutputFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte(sampleReadme), 0644))

	tr := New(config.ReadmeSettings{
		InputFile:   "README.md",
		OutputFile:  filepath.Join("docs", "index.md"),
		Title:       "Docs",
		StripBadges: true,
	}, nil)

	out, err := tr.Run(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "docs", "index.md"), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Docs\n"))
}

func TestRunMissingInput(t *testing.T) {
	tr := New(config.ReadmeSettings{InputFile: "README.md", OutputFile: "out.md"}, nil)
	_, err := tr.Run(t.TempDir())
	require.Error(t, err)
	assert.True(t, errs.IsFileError(err))
}

func TestIsRepoRelative(t *testing.T) {
	tests := []struct {
		dest string
		want bool
	}{
		{"docs/install.md", true},
		{"./CONTRIBUTING.md", true},
		{"#anchor", false},
		{"/absolute/path", false},
		{"https://example.com", false},
		{"mailto:dev@example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRepoRelative(tt.dest), tt.dest)
	}
}
