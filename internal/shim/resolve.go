// Package shim recognises interpreter paths that are version-manager shims
// or symlinks and maps them to the executable that actually runs.
//
// Version managers such as pyenv and asdf put a directory named "shims" on
// PATH; every entry in it is a small launcher that re-execs the selected
// interpreter. Homebrew and most Linux distributions use plain symlinks
// (python3 -> python3.12). Neither form is what a user wants to see when a
// build reports which interpreter it used.
package shim

import (
	"os"
	"path/filepath"
	"strings"
)

const shimDirName = "shims"

// IsShim reports whether path lives in a version-manager shim directory.
func IsShim(path string) bool {
	return filepath.Base(filepath.Dir(path)) == shimDirName
}

// ResolveReal follows symlinks from path. It returns path unchanged when
// resolution fails so callers always have something to display.
func ResolveReal(path string) string {
	if path == "" {
		return ""
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path
	}
	return resolved
}

// DisplayPath picks the most useful path to show for an interpreter.
// reported is what the interpreter itself said it was (sys.executable);
// it wins when present because a shim cannot know its target statically.
func DisplayPath(candidate, reported string) string {
	reported = strings.TrimSpace(reported)
	if reported != "" {
		return ResolveReal(reported)
	}
	return ResolveReal(candidate)
}

// DirsOnPath returns the shim directories present in the PATH value, in
// PATH order.
func DirsOnPath(pathEnv string) []string {
	var dirs []string
	for _, dir := range filepath.SplitList(pathEnv) {
		if filepath.Base(dir) == shimDirName {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// ShadowedBy reports which shim directory on PATH would intercept a lookup
// of name, or "" when none would.
func ShadowedBy(name, pathEnv string) string {
	for _, dir := range DirsOnPath(pathEnv) {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return dir
		}
	}
	return ""
}
