// Package layout owns the build-scoped output tree.
//
//	<root>/            PyInstaller .spec files, icon cache, history.db
//	<root>/dist/       finished artifacts
//	<root>/pyi_build/  PyInstaller intermediate state
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	DistDirName = "dist"
	WorkDirName = "pyi_build"
)

// Paths are the directories a build writes to.
type Paths struct {
	Root    string
	DistDir string
	WorkDir string
	SpecDir string
}

// For computes the layout under root without touching the file system.
func For(root string) *Paths {
	return &Paths{
		Root:    root,
		DistDir: filepath.Join(root, DistDirName),
		WorkDir: filepath.Join(root, WorkDirName),
		SpecDir: root,
	}
}

// Prepare creates the layout under root. Existing directories are fine.
func Prepare(root string) (*Paths, error) {
	p := For(root)
	for _, dir := range []string{p.Root, p.DistDir, p.WorkDir, p.SpecDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("cannot create %s: %w", dir, err)
		}
	}
	return p, nil
}

// CheckConfined returns an error when building into root could write into
// repoRoot itself: root must be a strict descendant of repoRoot or lie
// outside it entirely, and never an ancestor of it.
func CheckConfined(repoRoot, root string) error {
	repo := filepath.Clean(repoRoot)
	build := filepath.Clean(root)

	if build == repo {
		return fmt.Errorf("build root %s is the repository root", root)
	}
	if isWithin(repo, build) {
		return fmt.Errorf("build root %s contains the repository root %s", root, repoRoot)
	}
	return nil
}

// isWithin reports whether path is a strict descendant of dir.
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Clean removes build products under root and returns what it removed.
// By default the icon cache and build history are kept; all removes root
// entirely. Roots that would reach into repoRoot are refused.
func Clean(repoRoot, root string, all bool) ([]string, error) {
	if err := CheckConfined(repoRoot, root); err != nil {
		return nil, err
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	var targets []string
	if all {
		targets = []string{root}
	} else {
		p := For(root)
		targets = []string{p.DistDir, p.WorkDir}
		specs, err := filepath.Glob(filepath.Join(p.SpecDir, "*.spec"))
		if err != nil {
			return nil, err
		}
		targets = append(targets, specs...)
	}

	var removed []string
	for _, t := range targets {
		if _, err := os.Lstat(t); os.IsNotExist(err) {
			continue
		}
		if err := os.RemoveAll(t); err != nil {
			return removed, fmt.Errorf("cannot remove %s: %w", t, err)
		}
		removed = append(removed, t)
	}
	return removed, nil
}
