package interp

import (
	"errors"
	"fmt"
	"strings"
)

// Source identifies which step of the priority chain produced a candidate.
type Source string

const (
	SourceExplicit   Source = "explicit"
	SourceEnvRoot    Source = "environment root"
	SourceEnvName    Source = "environment name"
	SourceSearchPath Source = "search path"
)

// Candidate is one interpreter path considered during resolution.
type Candidate struct {
	Path   string
	Source Source
	// Origin names the flag or variable the path came from, e.g. CONDA_PREFIX.
	Origin string
}

// Attempt is a rejected candidate and why it was rejected.
type Attempt struct {
	Candidate
	Reason string
}

// Environment describes the accepted interpreter. It is built once per
// build and never persisted.
type Environment struct {
	// Interpreter is the path subprocesses are started with.
	Interpreter string
	// DisplayPath is the real executable behind any shim or symlink.
	DisplayPath string
	// ToolVersion is PyInstaller's __version__ as reported by the interpreter.
	ToolVersion string
	Source      Source
	Origin      string
}

var (
	// ErrEnvironmentNotFound is matched by *EnvironmentNotFoundError.
	ErrEnvironmentNotFound = errors.New("no usable Python interpreter found")
	// ErrToolNotAvailable is matched by *ToolNotAvailableError.
	ErrToolNotAvailable = errors.New("PyInstaller is not available")
)

// EnvironmentNotFoundError is returned when no candidate in the chain ran.
type EnvironmentNotFoundError struct {
	Attempts []Attempt
}

func (e *EnvironmentNotFoundError) Error() string {
	var sb strings.Builder
	sb.WriteString(ErrEnvironmentNotFound.Error())
	if len(e.Attempts) == 0 {
		sb.WriteString(" (no candidates: set --python or GUIPACK_PYTHON)")
		return sb.String()
	}
	sb.WriteString("; tried:")
	for _, a := range e.Attempts {
		origin := string(a.Source)
		if a.Origin != "" {
			origin = a.Origin
		}
		fmt.Fprintf(&sb, "\n  - %s (%s): %s", a.Path, origin, a.Reason)
	}
	return sb.String()
}

func (e *EnvironmentNotFoundError) Unwrap() error { return ErrEnvironmentNotFound }

// ToolNotAvailableError is returned when the interpreter runs but cannot
// import PyInstaller.
type ToolNotAvailableError struct {
	// Interpreter is the path builds spawn; the remedy must run it.
	Interpreter string
	// RealPath is the executable behind Interpreter when that differs,
	// e.g. the base install a virtualenv links to.
	RealPath string
	Detail   string
}

func (e *ToolNotAvailableError) Error() string {
	msg := fmt.Sprintf("%s in %s", ErrToolNotAvailable, e.Interpreter)
	if e.RealPath != "" && e.RealPath != e.Interpreter {
		msg += fmt.Sprintf(" (%s)", e.RealPath)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg + fmt.Sprintf("\n  Action: %s -m pip install pyinstaller", e.Interpreter)
}

func (e *ToolNotAvailableError) Unwrap() error { return ErrToolNotAvailable }
