package store

import "time"

// Status is the outcome of a recorded build.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// BuildRecord is one row of build history.
type BuildRecord struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	App           string
	Platform      string
	Interpreter   string
	ToolVersion   string
	IconStatus    string // "cached", "regenerated", "fallback" or "none"
	Artifact      string
	ArtifactBytes int64
	ExitCode      int
	Status        Status
	Error         string
}

// Duration is the wall time the build took.
func (r *BuildRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
