// Package proctest provides a scripted proc.Runner for tests.
package proctest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blackwell-systems/guipack/internal/proc"
)

// Response is a canned answer returned by FakeRunner.
type Response struct {
	Result *proc.Result
	Err    error
	// Effect runs before the response is returned, e.g. to create the file
	// a real converter would have written.
	Effect func(cmd proc.Command) error
}

// FakeRunner records invocations and replays canned responses. Handlers are
// matched against the rendered command line by substring, first match wins;
// unmatched commands fail to start.
type FakeRunner struct {
	mu       sync.Mutex
	handlers []fakeHandler
	Calls    []proc.Command
}

type fakeHandler struct {
	match string
	resp  Response
}

// On registers resp for any command whose rendered line contains match.
func (f *FakeRunner) On(match string, resp Response) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, fakeHandler{match: match, resp: resp})
	return f
}

// OnStdout is a shorthand for a successful command printing out.
func (f *FakeRunner) OnStdout(match, out string) *FakeRunner {
	return f.On(match, Response{Result: &proc.Result{Stdout: []byte(out), Combined: []byte(out)}})
}

// OnExit is a shorthand for a command exiting with code and stderr.
func (f *FakeRunner) OnExit(match string, code int, stderr string) *FakeRunner {
	return f.On(match, Response{Result: &proc.Result{ExitCode: code, Stderr: []byte(stderr), Combined: []byte(stderr)}})
}

// Run implements proc.Runner.
func (f *FakeRunner) Run(cmd proc.Command) (*proc.Result, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, cmd)
	handlers := append([]fakeHandler(nil), f.handlers...)
	f.mu.Unlock()

	line := cmd.String()
	for _, h := range handlers {
		if !strings.Contains(line, h.match) {
			continue
		}
		if h.resp.Effect != nil {
			if err := h.resp.Effect(cmd); err != nil {
				return nil, err
			}
		}
		if h.resp.Err != nil {
			return nil, h.resp.Err
		}
		if cmd.Stream != nil && h.resp.Result != nil {
			cmd.Stream.Write(h.resp.Result.Combined)
		}
		return h.resp.Result, nil
	}
	return nil, fmt.Errorf("start %s: executable file not found", cmd.Name)
}

// CallsMatching returns the recorded commands whose line contains match.
func (f *FakeRunner) CallsMatching(match string) []proc.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []proc.Command
	for _, c := range f.Calls {
		if strings.Contains(c.String(), match) {
			out = append(out, c)
		}
	}
	return out
}
