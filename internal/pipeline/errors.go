package pipeline

import "fmt"

// Stage names a fatal step of a build.
type Stage string

const (
	StageResolve Stage = "resolve"
	StageLayout  Stage = "layout"
	StagePackage Stage = "package"
)

// StageError tags a fatal error with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
