// Package packager drives PyInstaller for one build.
package packager

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/blackwell-systems/guipack/internal/config"
	"github.com/blackwell-systems/guipack/internal/icon"
	"github.com/blackwell-systems/guipack/internal/interp"
	"github.com/blackwell-systems/guipack/internal/layout"
	"github.com/blackwell-systems/guipack/internal/proc"
)

// Module is the Python module run with -m.
const Module = "PyInstaller"

// outputTailLines is how much of the tool's output an error message carries.
const outputTailLines = 10

// PackagingError reports a PyInstaller run that did not succeed. Output is
// the combined stdout and stderr, unmodified; Error includes its last lines.
type PackagingError struct {
	ExitCode int
	Output   string
	// Err is set when the process could not be started at all.
	Err error
}

func (e *PackagingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("packaging tool could not be started: %v", e.Err)
	}
	msg := fmt.Sprintf("packaging tool exited with status %d", e.ExitCode)
	if tail := e.Tail(outputTailLines); len(tail) > 0 {
		msg += "\n  | " + strings.Join(tail, "\n  | ")
	}
	return msg
}

// Tail returns the last n non-blank lines of Output.
func (e *PackagingError) Tail(n int) []string {
	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(e.Output, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, strings.TrimRight(l, " \t"))
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

func (e *PackagingError) Unwrap() error { return e.Err }

// Request gathers everything a single invocation depends on.
type Request struct {
	Config *config.Build
	Env    *interp.Environment
	Paths  *layout.Paths
	// Icon is the derived icon, nil for the tool's default.
	Icon *icon.Ref
}

// Invocation is the ordered argument list for one PyInstaller run. It is
// built once and not modified afterwards.
type Invocation struct {
	interpreter string
	args        []string
	artifact    string
}

// NewInvocation builds the argument list for req in its fixed order.
func NewInvocation(p PlatformPackager, req Request) *Invocation {
	b := req.Config

	args := []string{
		"-m", Module,
		"--name", b.AppName,
		"--onefile",
		"--windowed",
		"--clean",
		"--noconfirm",
	}
	args = append(args, p.PlatformFlags(b)...)
	args = append(args,
		"--distpath", req.Paths.DistDir,
		"--workpath", req.Paths.WorkDir,
		"--specpath", req.Paths.SpecDir,
	)
	// The raw image ships with the app so the GUI can set its window icon.
	if fileExists(b.Icon) {
		args = append(args, "--add-data", b.Icon+p.DataSeparator()+b.DataDest)
	}
	if req.Icon != nil {
		args = append(args, "--icon", req.Icon.Path)
	}
	args = append(args, b.EntryPoint)

	return &Invocation{
		interpreter: req.Env.Interpreter,
		args:        args,
		artifact:    filepath.Join(req.Paths.DistDir, b.AppName+p.ArtifactSuffix()),
	}
}

// Interpreter is the program the invocation runs.
func (inv *Invocation) Interpreter() string { return inv.interpreter }

// Args returns a copy of the argument list.
func (inv *Invocation) Args() []string {
	return append([]string(nil), inv.args...)
}

// Artifact is the path the artifact is expected at after a successful run.
func (inv *Invocation) Artifact() string { return inv.artifact }

func (inv *Invocation) String() string {
	return inv.interpreter + " " + strings.Join(inv.args, " ")
}

// Run executes the invocation, streaming its output to stream, and returns
// the artifact path. The artifact's existence is not verified.
func (inv *Invocation) Run(runner proc.Runner, stream io.Writer) (string, error) {
	res, err := runner.Run(proc.Command{
		Name:   inv.interpreter,
		Args:   inv.Args(),
		Stream: stream,
	})
	if err != nil {
		return "", &PackagingError{ExitCode: -1, Err: err}
	}
	if !res.Success() {
		return "", &PackagingError{ExitCode: res.ExitCode, Output: string(res.Combined)}
	}
	return inv.artifact, nil
}

// Invoke builds and runs the invocation for req in one step.
func Invoke(runner proc.Runner, p PlatformPackager, req Request, stream io.Writer) (string, error) {
	return NewInvocation(p, req).Run(runner, stream)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
