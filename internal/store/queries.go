package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeLayout is fixed-width so that started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const buildColumns = `id, started_at, finished_at, app, platform, interpreter, tool_version,
	icon_status, artifact, artifact_bytes, exit_code, status, error`

// InsertBuild stores rec, assigning a new ID when rec.ID is empty.
func (s *Store) InsertBuild(rec *BuildRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	query := `INSERT INTO builds (` + buildColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		rec.ID,
		rec.StartedAt.UTC().Format(timeLayout),
		rec.FinishedAt.UTC().Format(timeLayout),
		rec.App,
		rec.Platform,
		rec.Interpreter,
		rec.ToolVersion,
		rec.IconStatus,
		rec.Artifact,
		rec.ArtifactBytes,
		rec.ExitCode,
		string(rec.Status),
		rec.Error,
	)
	if err != nil {
		return wrapQueryErr(fmt.Sprintf("failed to insert build %s", rec.ID), err)
	}
	return nil
}

// GetBuild retrieves a build by ID.
func (s *Store) GetBuild(id string) (*BuildRecord, error) {
	row := s.db.QueryRow(`SELECT `+buildColumns+` FROM builds WHERE id = ?`, id)
	rec, err := scanBuild(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("build %s not found", id)
	}
	if err != nil {
		return nil, wrapQueryErr(fmt.Sprintf("failed to get build %s", id), err)
	}
	return rec, nil
}

// ListBuilds returns the most recent builds first. A limit of zero or less
// returns every build.
func (s *Store) ListBuilds(limit int) ([]*BuildRecord, error) {
	query := `SELECT ` + buildColumns + ` FROM builds ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapQueryErr("failed to list builds", err)
	}
	defer rows.Close()

	var builds []*BuildRecord
	for rows.Next() {
		rec, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build row: %w", err)
		}
		builds = append(builds, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating builds: %w", err)
	}
	return builds, nil
}

// LastSuccessful returns the newest succeeded build of app, or nil.
func (s *Store) LastSuccessful(app string) (*BuildRecord, error) {
	row := s.db.QueryRow(`SELECT `+buildColumns+` FROM builds
		WHERE app = ? AND status = ? ORDER BY started_at DESC LIMIT 1`, app, string(StatusSucceeded))
	rec, err := scanBuild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapQueryErr("failed to get last successful build", err)
	}
	return rec, nil
}

// CountBuilds returns the number of recorded builds.
func (s *Store) CountBuilds() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM builds`).Scan(&n); err != nil {
		return 0, wrapQueryErr("failed to count builds", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (*BuildRecord, error) {
	var rec BuildRecord
	var startedAt, finishedAt, status string
	var interpreter, toolVersion, iconStatus, artifact, errText sql.NullString
	var artifactBytes, exitCode sql.NullInt64

	err := row.Scan(
		&rec.ID,
		&startedAt,
		&finishedAt,
		&rec.App,
		&rec.Platform,
		&interpreter,
		&toolVersion,
		&iconStatus,
		&artifact,
		&artifactBytes,
		&exitCode,
		&status,
		&errText,
	)
	if err != nil {
		return nil, err
	}

	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("failed to parse started_at for %s: %w", rec.ID, err)
	}
	if rec.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
		return nil, fmt.Errorf("failed to parse finished_at for %s: %w", rec.ID, err)
	}
	rec.Interpreter = interpreter.String
	rec.ToolVersion = toolVersion.String
	rec.IconStatus = iconStatus.String
	rec.Artifact = artifact.String
	rec.ArtifactBytes = artifactBytes.Int64
	rec.ExitCode = int(exitCode.Int64)
	rec.Status = Status(status)
	rec.Error = errText.String
	return &rec, nil
}
