// Package proc runs external programs synchronously and reports their exit
// status and captured output.
//
// Every subprocess guipack starts (interpreter probes, icon conversion, the
// packaging tool, iconutil) goes through a Runner so tests can replace it.
package proc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Command describes one program invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Stream, when set, receives stdout and stderr as they are produced in
	// addition to the captured copies in Result.
	Stream io.Writer
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, a := range c.Args {
		if strings.ContainsAny(a, " \t\"") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Result is the outcome of a process that was started.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	// Combined holds stdout and stderr interleaved in arrival order.
	Combined []byte
}

// Success reports whether the process exited with status 0.
func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0
}

// Runner starts a process and waits for it to exit.
//
// A non-nil error means the process could not be started at all (binary
// missing, permission denied). A process that ran and exited non-zero is
// reported through Result.ExitCode with a nil error.
type Runner interface {
	Run(cmd Command) (*Result, error)
}

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct{}

// NewExecRunner returns a Runner that spawns real processes.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes cmd and blocks until it exits. There is no timeout.
func (ExecRunner) Run(cmd Command) (*Result, error) {
	c := exec.Command(cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir

	var stdout, stderr bytes.Buffer
	combined := &lockedBuffer{}

	outW := io.MultiWriter(&stdout, combined)
	errW := io.MultiWriter(&stderr, combined)
	if cmd.Stream != nil {
		stream := &lockedWriter{w: cmd.Stream}
		outW = io.MultiWriter(outW, stream)
		errW = io.MultiWriter(errW, stream)
	}
	c.Stdout = outW
	c.Stderr = errW

	err := c.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Combined: combined.Bytes(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return nil, fmt.Errorf("start %s: %w", cmd.Name, err)
	}
	return res, nil
}

// lockedBuffer serialises writes from the stdout and stderr copy goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Bytes()
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
