package store

const schema = `
CREATE TABLE IF NOT EXISTS builds (
    id TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    app TEXT NOT NULL,
    platform TEXT NOT NULL,
    interpreter TEXT,
    tool_version TEXT,
    icon_status TEXT,
    artifact TEXT,
    artifact_bytes INTEGER,
    exit_code INTEGER,
    status TEXT NOT NULL,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started_at);
CREATE INDEX IF NOT EXISTS idx_builds_app ON builds(app);
`
