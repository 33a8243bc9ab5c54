// Package fileutil provides directory scanning shared by the pyweaver tools.
// The scanner walks a PathConfig's root, prunes excluded directories before
// descending, and returns deterministic sorted results with collected
// per-entry errors.
package fileutil

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/edwardmakesthings/pyweaver/internal/config"
	"github.com/edwardmakesthings/pyweaver/internal/errs"
)

// ScanResult contains the results of a directory scan.
type ScanResult struct {
	// Files are the absolute paths of non-excluded files, sorted.
	Files []string
	// Dirs are the absolute paths of non-excluded directories, sorted.
	Dirs []string
	// Errors collects per-entry failures; they do not abort the scan.
	Errors []error
}

// Scan walks the PathConfig's root and collects candidate files and
// directories. Excluded directories are pruned without descending. Include
// patterns are deliberately not applied here; the processor's predicate
// owns that decision so skipped items are still tracked and counted.
func Scan(pc *config.PathConfig) (*ScanResult, error) {
	root, err := filepath.Abs(pc.Root)
	if err != nil {
		return nil, errs.NewPathError("scan", "cannot resolve root", pc.Root, err).
			WithCode(errs.CodePathInvalid)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, errs.NewPathError("scan", "cannot access root", root, err).
			WithCode(errs.CodePathAccess)
	}
	if !info.IsDir() {
		return nil, errs.NewPathError("scan", "root is not a directory", root, nil).
			WithCode(errs.CodePathInvalid)
	}

	result := &ScanResult{}
	visited := map[string]bool{root: true}
	scanDir(pc, root, 1, visited, result)

	sort.Strings(result.Files)
	sort.Strings(result.Dirs)
	return result, nil
}

// scanDir lists one directory level; entries live at the given depth (root
// children are depth 1). Unreadable entries are recorded and skipped.
func scanDir(pc *config.PathConfig, dir string, depth int, visited map[string]bool, result *ScanResult) {
	maxDepth := pc.Settings.MaxDepth
	if maxDepth > 0 && depth > maxDepth {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		result.Errors = append(result.Errors,
			errs.NewFileError("scan", "cannot read directory", dir, err).
				WithCode(errs.CodeFileRead))
		return
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		isDir := entry.IsDir()

		if entry.Type()&os.ModeSymlink != 0 {
			if !pc.Settings.FollowSymlinks {
				continue
			}
			target, err := os.Stat(path)
			if err != nil {
				result.Errors = append(result.Errors,
					errs.NewPathError("scan", "broken symlink", path, err).
						WithCode(errs.CodePathAccess))
				continue
			}
			isDir = target.IsDir()
		}

		if pc.IsExcluded(path) {
			continue
		}

		if !isDir {
			result.Files = append(result.Files, path)
			continue
		}

		result.Dirs = append(result.Dirs, path)

		// Guard against symlink cycles before descending.
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			real = path
		}
		if visited[real] {
			continue
		}
		visited[real] = true

		scanDir(pc, path, depth+1, visited, result)
	}
}
