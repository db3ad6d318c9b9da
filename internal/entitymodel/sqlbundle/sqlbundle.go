// Package sqlbundle exposes the entity-model DDL bundles applied by the SQL
// persistence adapters on startup. Every statement is guarded with IF NOT
// EXISTS so re-applying the bundle is idempotent.
package sqlbundle

import (
	"bufio"
	"strings"
)

const sqliteDDL = `
CREATE TABLE IF NOT EXISTS bundle_versions (
    fqid TEXT PRIMARY KEY,
    uuid TEXT NOT NULL,
    version TEXT NOT NULL,
    manifest TEXT NOT NULL,
    aggregate_metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_bundle_versions_uuid ON bundle_versions(uuid);

CREATE TABLE IF NOT EXISTS file_versions (
    fqid TEXT PRIMARY KEY,
    uuid TEXT NOT NULL,
    version TEXT NOT NULL,
    schema_type TEXT,
    schema_major_version INTEGER,
    schema_minor_version INTEGER,
    body TEXT,
    content_type TEXT,
    size INTEGER NOT NULL DEFAULT 0,
    extension TEXT
);
CREATE INDEX IF NOT EXISTS idx_file_versions_uuid ON file_versions(uuid);
CREATE INDEX IF NOT EXISTS idx_file_versions_schema_type ON file_versions(schema_type);

CREATE TABLE IF NOT EXISTS bundle_file_links (
    bundle_fqid TEXT NOT NULL,
    file_fqid TEXT NOT NULL,
    name TEXT NOT NULL,
    PRIMARY KEY (bundle_fqid, file_fqid)
);
CREATE INDEX IF NOT EXISTS idx_bundle_file_links_file ON bundle_file_links(file_fqid);

CREATE TABLE IF NOT EXISTS processes (
    process_uuid TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS process_file_links (
    process_uuid TEXT NOT NULL,
    file_uuid TEXT NOT NULL,
    connection_type TEXT NOT NULL,
    PRIMARY KEY (process_uuid, file_uuid, connection_type)
);
CREATE INDEX IF NOT EXISTS idx_process_file_links_file ON process_file_links(file_uuid, connection_type);

CREATE TABLE IF NOT EXISTS process_process_edges (
    parent_process_uuid TEXT NOT NULL,
    child_process_uuid TEXT NOT NULL,
    PRIMARY KEY (parent_process_uuid, child_process_uuid)
);
CREATE INDEX IF NOT EXISTS idx_process_process_edges_child ON process_process_edges(child_process_uuid);

CREATE TABLE IF NOT EXISTS schema_types (
    name TEXT PRIMARY KEY,
    discovered_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS latest_bundles (
    uuid TEXT PRIMARY KEY,
    fqid TEXT NOT NULL,
    version TEXT NOT NULL,
    manifest TEXT NOT NULL,
    aggregate_metadata TEXT
);

CREATE TABLE IF NOT EXISTS latest_files (
    uuid TEXT PRIMARY KEY,
    fqid TEXT NOT NULL,
    version TEXT NOT NULL,
    schema_type TEXT,
    schema_major_version INTEGER,
    schema_minor_version INTEGER,
    body TEXT,
    content_type TEXT,
    size INTEGER NOT NULL DEFAULT 0,
    extension TEXT
);

CREATE TABLE IF NOT EXISTS async_query_jobs (
    job_id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    status TEXT NOT NULL,
    query TEXT NOT NULL,
    result_location TEXT,
    error TEXT
);
CREATE INDEX IF NOT EXISTS idx_async_query_jobs_created ON async_query_jobs(created_at);
`

const postgresDDL = `
CREATE TABLE IF NOT EXISTS bundle_versions (
    fqid TEXT PRIMARY KEY,
    uuid TEXT NOT NULL,
    version TEXT NOT NULL,
    manifest JSONB NOT NULL,
    aggregate_metadata JSONB
);
CREATE INDEX IF NOT EXISTS idx_bundle_versions_uuid ON bundle_versions(uuid);

CREATE TABLE IF NOT EXISTS file_versions (
    fqid TEXT PRIMARY KEY,
    uuid TEXT NOT NULL,
    version TEXT NOT NULL,
    schema_type TEXT,
    schema_major_version INTEGER,
    schema_minor_version INTEGER,
    body JSONB,
    content_type TEXT,
    size BIGINT NOT NULL DEFAULT 0,
    extension TEXT
);
CREATE INDEX IF NOT EXISTS idx_file_versions_uuid ON file_versions(uuid);
CREATE INDEX IF NOT EXISTS idx_file_versions_schema_type ON file_versions(schema_type);

CREATE TABLE IF NOT EXISTS bundle_file_links (
    bundle_fqid TEXT NOT NULL,
    file_fqid TEXT NOT NULL,
    name TEXT NOT NULL,
    PRIMARY KEY (bundle_fqid, file_fqid)
);
CREATE INDEX IF NOT EXISTS idx_bundle_file_links_file ON bundle_file_links(file_fqid);

CREATE TABLE IF NOT EXISTS processes (
    process_uuid TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS process_file_links (
    process_uuid TEXT NOT NULL,
    file_uuid TEXT NOT NULL,
    connection_type TEXT NOT NULL,
    PRIMARY KEY (process_uuid, file_uuid, connection_type)
);
CREATE INDEX IF NOT EXISTS idx_process_file_links_file ON process_file_links(file_uuid, connection_type);

CREATE TABLE IF NOT EXISTS process_process_edges (
    parent_process_uuid TEXT NOT NULL,
    child_process_uuid TEXT NOT NULL,
    PRIMARY KEY (parent_process_uuid, child_process_uuid)
);
CREATE INDEX IF NOT EXISTS idx_process_process_edges_child ON process_process_edges(child_process_uuid);

CREATE TABLE IF NOT EXISTS schema_types (
    name TEXT PRIMARY KEY,
    discovered_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS latest_bundles (
    uuid TEXT PRIMARY KEY,
    fqid TEXT NOT NULL,
    version TEXT NOT NULL,
    manifest JSONB NOT NULL,
    aggregate_metadata JSONB
);

CREATE TABLE IF NOT EXISTS latest_files (
    uuid TEXT PRIMARY KEY,
    fqid TEXT NOT NULL,
    version TEXT NOT NULL,
    schema_type TEXT,
    schema_major_version INTEGER,
    schema_minor_version INTEGER,
    body JSONB,
    content_type TEXT,
    size BIGINT NOT NULL DEFAULT 0,
    extension TEXT
);

CREATE TABLE IF NOT EXISTS async_query_jobs (
    job_id TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL,
    status TEXT NOT NULL,
    query TEXT NOT NULL,
    result_location TEXT,
    error TEXT
);
CREATE INDEX IF NOT EXISTS idx_async_query_jobs_created ON async_query_jobs(created_at);
`

// SQLite returns the SQLite DDL for the entity model.
func SQLite() string {
	return sqliteDDL
}

// Postgres returns the Postgres DDL for the entity model.
func Postgres() string {
	return postgresDDL
}

// SplitStatements splits a semicolon-terminated DDL script into executable
// statements, skipping blank lines and "--" comments.
func SplitStatements(ddl string) []string {
	var stmts []string
	var buf strings.Builder

	scanner := bufio.NewScanner(strings.NewReader(ddl))
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		buf.WriteString(scanner.Text())
		buf.WriteByte('\n')
		if !strings.HasSuffix(trimmed, ";") {
			continue
		}
		if stmt := strings.TrimSpace(buf.String()); stmt != "" {
			stmts = append(stmts, stmt)
		}
		buf.Reset()
	}
	if stmt := strings.TrimSpace(buf.String()); stmt != "" {
		stmts = append(stmts, stmt)
	}
	return stmts
}
