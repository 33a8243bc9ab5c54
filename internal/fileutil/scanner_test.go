package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwardmakesthings/pyweaver/internal/config"
	"github.com/edwardmakesthings/pyweaver/internal/errs"
)

// writeTree creates the given relative files under root, making parent
// directories as needed.
func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("content\n"), 0644))
	}
}

func relFiles(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestScanCollectsFilesAndDirs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.py", "pkg/b.py", "pkg/sub/c.py")

	pc := config.NewPathConfig(root, config.PathSettings{}, nil)
	result, err := Scan(pc)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.py", "pkg/b.py", "pkg/sub/c.py"}, relFiles(t, root, result.Files))
	assert.Equal(t, []string{"pkg", "pkg/sub"}, relFiles(t, root, result.Dirs))
	assert.Empty(t, result.Errors)
}

func TestScanPrunesExcludedDirectories(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"src/main.py",
		"__pycache__/main.cpython-311.pyc",
		"src/__pycache__/x.pyc",
		".git/HEAD",
	)

	pc := config.NewPathConfig(root, config.DefaultPathSettings(), nil)
	result, err := Scan(pc)
	require.NoError(t, err)

	assert.Equal(t, []string{"src/main.py"}, relFiles(t, root, result.Files))
	assert.Equal(t, []string{"src"}, relFiles(t, root, result.Dirs))
}

func TestScanExcludesFilesByPattern(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "keep.py", "drop.pyc")

	pc := config.NewPathConfig(root, config.PathSettings{
		IgnorePatterns: []string{"*.pyc"},
	}, nil)
	result, err := Scan(pc)
	require.NoError(t, err)

	assert.Equal(t, []string{"keep.py"}, relFiles(t, root, result.Files))
}

func TestScanMaxDepth(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "top.py", "l1/mid.py", "l1/l2/deep.py")

	pc := config.NewPathConfig(root, config.PathSettings{MaxDepth: 2}, nil)
	result, err := Scan(pc)
	require.NoError(t, err)

	assert.Equal(t, []string{"l1/mid.py", "top.py"}, relFiles(t, root, result.Files))
}

func TestScanMissingRoot(t *testing.T) {
	pc := config.NewPathConfig(filepath.Join(t.TempDir(), "absent"), config.PathSettings{}, nil)
	_, err := Scan(pc)
	require.Error(t, err)
	assert.True(t, errs.IsPathError(err))
}

func TestScanRootIsFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "f.py")

	pc := config.NewPathConfig(filepath.Join(root, "f.py"), config.PathSettings{}, nil)
	_, err := Scan(pc)
	require.Error(t, err)
	assert.True(t, errs.IsPathError(err))
}

func TestScanSymlinks(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "real/mod.py")
	link := filepath.Join(root, "linked")
	if err := os.Symlink(filepath.Join(root, "real"), link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	t.Run("skipped by default", func(t *testing.T) {
		pc := config.NewPathConfig(root, config.PathSettings{}, nil)
		result, err := Scan(pc)
		require.NoError(t, err)
		assert.Equal(t, []string{"real/mod.py"}, relFiles(t, root, result.Files))
	})

	t.Run("followed when enabled without revisiting", func(t *testing.T) {
		pc := config.NewPathConfig(root, config.PathSettings{FollowSymlinks: true}, nil)
		result, err := Scan(pc)
		require.NoError(t, err)
		// Both directory entries are listed, but the shared target is only
		// walked once, so the file appears exactly once.
		assert.Equal(t, []string{"linked", "real"}, relFiles(t, root, result.Dirs))
		require.Len(t, result.Files, 1)
		assert.Equal(t, "mod.py", filepath.Base(result.Files[0]))
	})
}

func TestScanUnreadableDirectoryCollectsError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	root := t.TempDir()
	writeTree(t, root, "ok.py", "locked/secret.py")
	require.NoError(t, os.Chmod(filepath.Join(root, "locked"), 0000))
	t.Cleanup(func() { os.Chmod(filepath.Join(root, "locked"), 0755) })

	pc := config.NewPathConfig(root, config.PathSettings{}, nil)
	result, err := Scan(pc)
	require.NoError(t, err, "per-entry failures must not abort the scan")

	assert.Equal(t, []string{"ok.py"}, relFiles(t, root, result.Files))
	assert.NotEmpty(t, result.Errors)
}
