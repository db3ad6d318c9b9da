package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"lineagecore/pkg/domain"
)

func (t *tx) LinkBundleFile(bundleFQID, fileFQID, name string) error {
	_, err := t.exec(
		`INSERT INTO bundle_file_links (bundle_fqid, file_fqid, name)
		 VALUES (?, ?, ?) ON CONFLICT (bundle_fqid, file_fqid) DO NOTHING`,
		bundleFQID, fileFQID, name,
	)
	if err != nil {
		return fmt.Errorf("link bundle %s file %s: %w", bundleFQID, fileFQID, err)
	}
	return nil
}

func (t *tx) LinkProcessFile(processUUID, fileUUID string, role domain.ConnectionType) error {
	// Process nodes are created on first sighting and never updated.
	if _, err := t.exec(
		`INSERT INTO processes (process_uuid) VALUES (?) ON CONFLICT (process_uuid) DO NOTHING`,
		processUUID,
	); err != nil {
		return fmt.Errorf("ensure process %s: %w", processUUID, err)
	}
	_, err := t.exec(
		`INSERT INTO process_file_links (process_uuid, file_uuid, connection_type)
		 VALUES (?, ?, ?) ON CONFLICT (process_uuid, file_uuid, connection_type) DO NOTHING`,
		processUUID, fileUUID, string(role),
	)
	if err != nil {
		return fmt.Errorf("link process %s file %s: %w", processUUID, fileUUID, err)
	}
	return nil
}

func (t *tx) RecordProcessEdge(parentUUID, childUUID string) error {
	if parentUUID == childUUID {
		return nil
	}
	_, err := t.exec(
		`INSERT INTO process_process_edges (parent_process_uuid, child_process_uuid)
		 VALUES (?, ?) ON CONFLICT (parent_process_uuid, child_process_uuid) DO NOTHING`,
		parentUUID, childUUID,
	)
	if err != nil {
		return fmt.Errorf("record edge %s->%s: %w", parentUUID, childUUID, err)
	}
	return nil
}

func (t *tx) UnlinkBundle(bundleFQID string) ([]string, error) {
	rows, err := t.query(`SELECT file_fqid FROM bundle_file_links WHERE bundle_fqid = ? ORDER BY file_fqid`, bundleFQID)
	if err != nil {
		return nil, fmt.Errorf("select bundle links: %w", err)
	}
	fqids, err := collectStrings(rows)
	if err != nil {
		return nil, err
	}
	// Postgres: pin the candidate file rows for the remainder of the
	// transaction so a concurrent drop cannot interleave between the link
	// removal and the orphan check. SQLite transactions are single-writer.
	if t.dialect == DialectPostgres && len(fqids) > 0 {
		lockRows, err := t.query(`SELECT fqid FROM file_versions WHERE fqid IN (`+placeholders(len(fqids))+`) FOR UPDATE`, toAnySlice(fqids)...)
		if err != nil {
			return nil, fmt.Errorf("lock candidate files: %w", err)
		}
		if _, err := collectStrings(lockRows); err != nil {
			return nil, err
		}
	}
	if _, err := t.exec(`DELETE FROM bundle_file_links WHERE bundle_fqid = ?`, bundleFQID); err != nil {
		return nil, fmt.Errorf("unlink bundle %s: %w", bundleFQID, err)
	}
	return fqids, nil
}

func (t *tx) FilesForBundles(bundleFQIDs []string) ([]domain.BundleFileLink, error) {
	if len(bundleFQIDs) == 0 {
		return nil, nil
	}
	rows, err := t.query(
		`SELECT bundle_fqid, file_fqid, name FROM bundle_file_links
		 WHERE bundle_fqid IN (`+placeholders(len(bundleFQIDs))+`) ORDER BY bundle_fqid, file_fqid`,
		toAnySlice(bundleFQIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("files for bundles: %w", err)
	}
	return collectLinks(rows)
}

func (t *tx) BundlesForFiles(fileFQIDs []string) ([]domain.BundleFileLink, error) {
	if len(fileFQIDs) == 0 {
		return nil, nil
	}
	rows, err := t.query(
		`SELECT bundle_fqid, file_fqid, name FROM bundle_file_links
		 WHERE file_fqid IN (`+placeholders(len(fileFQIDs))+`) ORDER BY file_fqid, bundle_fqid`,
		toAnySlice(fileFQIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("bundles for files: %w", err)
	}
	return collectLinks(rows)
}

func (t *tx) ProcessesForFiles(fileUUIDs []string, role domain.ConnectionType) ([]string, error) {
	if len(fileUUIDs) == 0 {
		return nil, nil
	}
	args := append(toAnySlice(fileUUIDs), string(role))
	rows, err := t.query(
		`SELECT DISTINCT process_uuid FROM process_file_links
		 WHERE file_uuid IN (`+placeholders(len(fileUUIDs))+`) AND connection_type = ? ORDER BY process_uuid`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("processes for files: %w", err)
	}
	return collectStrings(rows)
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

func collectLinks(rows *sql.Rows) ([]domain.BundleFileLink, error) {
	defer func() { _ = rows.Close() }()
	var out []domain.BundleFileLink
	for rows.Next() {
		var l domain.BundleFileLink
		if err := rows.Scan(&l.BundleFQID, &l.FileFQID, &l.Name); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return out, nil
}

// FilesForBundles returns membership links for the given bundle fqids.
func (s *Store) FilesForBundles(ctx context.Context, bundleFQIDs []string) ([]domain.BundleFileLink, error) {
	if len(bundleFQIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT bundle_fqid, file_fqid, name FROM bundle_file_links
		 WHERE bundle_fqid IN (`+placeholders(len(bundleFQIDs))+`) ORDER BY bundle_fqid, file_fqid`),
		toAnySlice(bundleFQIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("files for bundles: %w", err)
	}
	return collectLinks(rows)
}

// BundlesForFiles returns membership links for the given file fqids.
func (s *Store) BundlesForFiles(ctx context.Context, fileFQIDs []string) ([]domain.BundleFileLink, error) {
	if len(fileFQIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT bundle_fqid, file_fqid, name FROM bundle_file_links
		 WHERE file_fqid IN (`+placeholders(len(fileFQIDs))+`) ORDER BY file_fqid, bundle_fqid`),
		toAnySlice(fileFQIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("bundles for files: %w", err)
	}
	return collectLinks(rows)
}

// ProcessesForFile returns processes linked to the file uuid, optionally
// filtered by connection type.
func (s *Store) ProcessesForFile(ctx context.Context, fileUUID string, role *domain.ConnectionType) ([]string, error) {
	query := `SELECT DISTINCT process_uuid FROM process_file_links WHERE file_uuid = ?`
	args := []any{fileUUID}
	if role != nil {
		query += ` AND connection_type = ?`
		args = append(args, string(*role))
	}
	query += ` ORDER BY process_uuid`
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("processes for file %s: %w", fileUUID, err)
	}
	return collectStrings(rows)
}
