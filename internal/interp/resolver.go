// Package interp locates the Python interpreter used for a build and checks
// that PyInstaller can be imported from it.
//
// Candidates are tried in a fixed priority order and the first one that
// runs wins:
//
//  1. an explicit path (--python, then GUIPACK_PYTHON)
//  2. the root of an active environment (CONDA_PREFIX, then VIRTUAL_ENV)
//  3. a conda environment known only by name (CONDA_DEFAULT_ENV + CONDA_EXE)
//  4. python3 / python from PATH
//
// Resolution only spawns probe processes; it never touches the file system.
package interp

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/blackwell-systems/guipack/internal/proc"
	"github.com/blackwell-systems/guipack/internal/shim"
)

// Environment variables consulted by the resolver.
const (
	EnvExplicit     = "GUIPACK_PYTHON"
	EnvCondaPrefix  = "CONDA_PREFIX"
	EnvVirtualEnv   = "VIRTUAL_ENV"
	EnvCondaDefault = "CONDA_DEFAULT_ENV"
	EnvCondaExe     = "CONDA_EXE"
)

const (
	probeScript = "import sys; print(sys.executable)"
	toolScript  = "import PyInstaller; print(PyInstaller.__version__)"
)

// Resolver walks the interpreter priority chain.
type Resolver struct {
	runner   proc.Runner
	logger   *slog.Logger
	getenv   func(string) string
	lookPath func(string) (string, error)
	goos     string
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for per-candidate debug output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithEnv replaces os.Getenv, mainly for tests.
func WithEnv(getenv func(string) string) Option {
	return func(r *Resolver) { r.getenv = getenv }
}

// WithLookPath replaces exec.LookPath, mainly for tests.
func WithLookPath(lookPath func(string) (string, error)) Option {
	return func(r *Resolver) { r.lookPath = lookPath }
}

// WithGOOS makes the resolver lay out environment roots as on goos.
func WithGOOS(goos string) Option {
	return func(r *Resolver) { r.goos = goos }
}

// NewResolver creates a Resolver that probes candidates through runner.
func NewResolver(runner proc.Runner, opts ...Option) *Resolver {
	r := &Resolver{
		runner:   runner,
		logger:   slog.Default(),
		getenv:   os.Getenv,
		lookPath: exec.LookPath,
		goos:     runtime.GOOS,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the first runnable interpreter in the chain together with
// its PyInstaller version. explicit may be empty.
func (r *Resolver) Resolve(explicit string) (*Environment, error) {
	candidates, attempts := r.Candidates(explicit)

	for _, c := range candidates {
		reported, reason := r.probe(c.Path)
		if reason != "" {
			r.logger.Debug("interpreter candidate rejected", "path", c.Path, "source", c.Source, "reason", reason)
			attempts = append(attempts, Attempt{Candidate: c, Reason: reason})
			continue
		}

		env := &Environment{
			Interpreter: c.Path,
			DisplayPath: shim.DisplayPath(c.Path, reported),
			Source:      c.Source,
			Origin:      c.Origin,
		}
		r.logger.Debug("interpreter accepted", "path", env.Interpreter, "real", env.DisplayPath, "source", c.Source)

		version, err := r.ToolVersion(env.Interpreter)
		if err != nil {
			if tErr, ok := err.(*ToolNotAvailableError); ok {
				tErr.RealPath = env.DisplayPath
			}
			return nil, err
		}
		env.ToolVersion = version
		return env, nil
	}

	return nil, &EnvironmentNotFoundError{Attempts: attempts}
}

// ToolVersion confirms PyInstaller is importable in interpreter and returns
// its version string.
func (r *Resolver) ToolVersion(interpreter string) (string, error) {
	res, err := r.runner.Run(proc.Command{Name: interpreter, Args: []string{"-c", toolScript}})
	if err != nil {
		return "", &ToolNotAvailableError{Interpreter: interpreter, Detail: err.Error()}
	}
	if !res.Success() {
		return "", &ToolNotAvailableError{
			Interpreter: interpreter,
			Detail:      lastLine(res.Stderr),
		}
	}
	version := strings.TrimSpace(string(res.Stdout))
	if version == "" {
		return "", &ToolNotAvailableError{Interpreter: interpreter, Detail: "version probe printed nothing"}
	}
	return version, nil
}

// probe launches path in a minimal mode. It returns the interpreter's own
// idea of its executable, or a non-empty reason when the candidate is unusable.
func (r *Resolver) probe(path string) (string, string) {
	res, err := r.runner.Run(proc.Command{Name: path, Args: []string{"-c", probeScript}})
	if err != nil {
		return "", fmt.Sprintf("cannot start: %v", err)
	}
	if !res.Success() {
		return "", fmt.Sprintf("probe exited with status %d", res.ExitCode)
	}
	out := strings.TrimSpace(string(res.Stdout))
	if out == "" {
		return "", "probe produced no output"
	}
	return out, ""
}

// Candidates lists the interpreter paths to try, in priority order, with
// duplicates removed. Steps that cannot produce a path at all (nothing on
// PATH) are returned as pre-rejected attempts so the final error lists them.
func (r *Resolver) Candidates(explicit string) ([]Candidate, []Attempt) {
	var (
		out      []Candidate
		rejected []Attempt
		seen     = map[string]bool{}
	)
	add := func(c Candidate) {
		key := filepath.Clean(c.Path)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, c)
	}

	// 1. explicit
	if explicit != "" {
		add(Candidate{Path: explicit, Source: SourceExplicit, Origin: "--python"})
	} else if p := r.getenv(EnvExplicit); p != "" {
		add(Candidate{Path: p, Source: SourceExplicit, Origin: EnvExplicit})
	}

	// 2. active environment roots
	for _, name := range []string{EnvCondaPrefix, EnvVirtualEnv} {
		root := r.getenv(name)
		if root == "" {
			continue
		}
		for _, p := range r.interpretersIn(root) {
			add(Candidate{Path: p, Source: SourceEnvRoot, Origin: name})
		}
	}

	// 3. environment name, root derived from the conda executable
	if root := r.rootFromName(); root != "" {
		for _, p := range r.interpretersIn(root) {
			add(Candidate{Path: p, Source: SourceEnvName, Origin: EnvCondaDefault})
		}
	}

	// 4. default search path
	for _, name := range r.searchNames() {
		p, err := r.lookPath(name)
		if err != nil {
			rejected = append(rejected, Attempt{
				Candidate: Candidate{Path: name, Source: SourceSearchPath, Origin: "PATH"},
				Reason:    "not found on PATH",
			})
			continue
		}
		add(Candidate{Path: p, Source: SourceSearchPath, Origin: "PATH"})
	}

	return out, rejected
}

// rootFromName derives an environment root from CONDA_DEFAULT_ENV when
// only the name is known. CONDA_EXE lives in <base>/bin (or <base>\Scripts
// on Windows), so the base install is two levels up.
func (r *Resolver) rootFromName() string {
	name := r.getenv(EnvCondaDefault)
	condaExe := r.getenv(EnvCondaExe)
	if name == "" || condaExe == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	base := filepath.Dir(filepath.Dir(condaExe))
	if name == "base" {
		return base
	}
	return filepath.Join(base, "envs", name)
}

// interpretersIn returns where an interpreter lives inside an environment root.
func (r *Resolver) interpretersIn(root string) []string {
	if r.goos == "windows" {
		return []string{
			filepath.Join(root, "python.exe"),
			filepath.Join(root, "Scripts", "python.exe"),
		}
	}
	return []string{filepath.Join(root, "bin", "python")}
}

func (r *Resolver) searchNames() []string {
	if r.goos == "windows" {
		return []string{"python", "python3"}
	}
	return []string{"python3", "python"}
}

func lastLine(b []byte) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
