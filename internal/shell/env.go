// Package shell manages process environment variables inherited by the
// subprocesses guipack spawns.
package shell

import (
	"fmt"
	"os"
)

// Scope is a snapshot of one environment variable taken before it was
// changed. Restore puts the variable back exactly as it was, including the
// distinction between "unset" and "set to empty".
type Scope struct {
	name     string
	prev     string
	wasSet   bool
	released bool
}

// Acquire snapshots name and sets it to value. An empty value unsets the
// variable so child processes do not see it at all.
//
// Callers must defer Restore immediately:
//
//	scope, err := shell.Acquire("PYTHONPATH", "")
//	if err != nil {
//		return err
//	}
//	defer scope.Restore()
func Acquire(name, value string) (*Scope, error) {
	prev, wasSet := os.LookupEnv(name)
	s := &Scope{name: name, prev: prev, wasSet: wasSet}

	var err error
	if value == "" {
		err = os.Unsetenv(name)
	} else {
		err = os.Setenv(name, value)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot change %s: %w", name, err)
	}
	return s, nil
}

// Name returns the variable this scope guards.
func (s *Scope) Name() string {
	return s.name
}

// Previous returns the value captured at acquisition and whether the
// variable was set at all.
func (s *Scope) Previous() (string, bool) {
	return s.prev, s.wasSet
}

// Restore reinstates the captured value. Calling it more than once is a
// no-op, so it is safe to both defer it and call it explicitly.
func (s *Scope) Restore() error {
	if s == nil || s.released {
		return nil
	}
	s.released = true

	if !s.wasSet {
		if err := os.Unsetenv(s.name); err != nil {
			return fmt.Errorf("cannot unset %s: %w", s.name, err)
		}
		return nil
	}
	if err := os.Setenv(s.name, s.prev); err != nil {
		return fmt.Errorf("cannot restore %s: %w", s.name, err)
	}
	return nil
}
