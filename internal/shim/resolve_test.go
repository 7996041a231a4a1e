package shim

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestIsShim(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/home/u/.pyenv/shims/python", true},
		{"/home/u/.asdf/shims/python3", true},
		{"/usr/bin/python3", false},
		{"/opt/conda/envs/gui/bin/python", false},
	}
	for _, tt := range tests {
		if got := IsShim(filepath.FromSlash(tt.path)); got != tt.want {
			t.Errorf("IsShim(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestResolveReal_FollowsSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	dir := t.TempDir()
	real := filepath.Join(dir, "python3.12")
	if err := os.WriteFile(real, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "python3")
	if err := os.Symlink(real, link); err != nil {
		t.Fatal(err)
	}

	want, _ := filepath.EvalSymlinks(real)
	if got := ResolveReal(link); got != want {
		t.Errorf("ResolveReal(%q) = %q, want %q", link, got, want)
	}
}

func TestResolveReal_MissingPathUnchanged(t *testing.T) {
	p := filepath.Join(t.TempDir(), "missing")
	if got := ResolveReal(p); got != p {
		t.Errorf("ResolveReal(%q) = %q, want unchanged", p, got)
	}
	if got := ResolveReal(""); got != "" {
		t.Errorf("ResolveReal(\"\") = %q, want empty", got)
	}
}

func TestDisplayPath_PrefersReported(t *testing.T) {
	dir := t.TempDir()
	reported := filepath.Join(dir, "real-python")
	if err := os.WriteFile(reported, nil, 0755); err != nil {
		t.Fatal(err)
	}
	want, _ := filepath.EvalSymlinks(reported)

	got := DisplayPath("/home/u/.pyenv/shims/python", reported+"\n")
	if got != want {
		t.Errorf("DisplayPath = %q, want %q", got, want)
	}

	fallback := filepath.Join(dir, "candidate")
	if got := DisplayPath(fallback, "  "); got != fallback {
		t.Errorf("DisplayPath with empty report = %q, want %q", got, fallback)
	}
}

func TestDirsOnPathAndShadowedBy(t *testing.T) {
	root := t.TempDir()
	shims := filepath.Join(root, ".pyenv", "shims")
	bin := filepath.Join(root, "bin")
	for _, d := range []string{shims, bin} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(shims, "python3"), nil, 0755); err != nil {
		t.Fatal(err)
	}

	pathEnv := bin + string(filepath.ListSeparator) + shims
	dirs := DirsOnPath(pathEnv)
	if len(dirs) != 1 || dirs[0] != shims {
		t.Errorf("DirsOnPath = %v, want [%s]", dirs, shims)
	}
	if got := ShadowedBy("python3", pathEnv); got != shims {
		t.Errorf("ShadowedBy(python3) = %q, want %q", got, shims)
	}
	if got := ShadowedBy("ruby", pathEnv); got != "" {
		t.Errorf("ShadowedBy(ruby) = %q, want empty", got)
	}
}
