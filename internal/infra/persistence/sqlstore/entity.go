package sqlstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"lineagecore/pkg/domain"
)

// equalJSON compares two values by their canonical JSON encoding; it is the
// payload-identity test behind idempotent upserts.
func equalJSON(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ab, bb)
}

func (t *tx) PutBundle(b domain.BundleVersion) (bool, error) {
	manifest, err := json.Marshal(b.Manifest)
	if err != nil {
		return false, fmt.Errorf("encode manifest: %w", err)
	}
	res, err := t.exec(
		`INSERT INTO bundle_versions (fqid, uuid, version, manifest, aggregate_metadata)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT (fqid) DO NOTHING`,
		b.FQID(), b.UUID, b.Version, jsonParam(manifest), jsonParam(b.AggregateMetadata),
	)
	if err != nil {
		return false, fmt.Errorf("put bundle %s: %w", b.FQID(), err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return true, nil
	}
	existing, err := scanBundle(t.queryRow(`SELECT uuid, version, manifest, aggregate_metadata FROM bundle_versions WHERE fqid = ?`, b.FQID()))
	if err != nil {
		return false, fmt.Errorf("reread bundle %s: %w", b.FQID(), err)
	}
	if !equalJSON(existing, b) {
		return false, domain.ErrConflict{Entity: domain.EntityBundle, ID: b.FQID()}
	}
	return false, nil
}

func (t *tx) PutFile(f domain.FileVersion) (bool, error) {
	res, err := t.exec(
		`INSERT INTO file_versions (fqid, uuid, version, schema_type, schema_major_version, schema_minor_version, body, content_type, size, extension)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (fqid) DO NOTHING`,
		f.FQID(), f.UUID, f.Version, nullString(f.SchemaType), f.SchemaMajor, f.SchemaMinor,
		jsonParam(f.Body), nullString(f.ContentType), f.Size, nullString(f.Extension),
	)
	if err != nil {
		return false, fmt.Errorf("put file %s: %w", f.FQID(), err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return true, nil
	}
	existing, err := scanFile(t.queryRow(`SELECT uuid, version, schema_type, schema_major_version, schema_minor_version, body, content_type, size, extension FROM file_versions WHERE fqid = ?`, f.FQID()))
	if err != nil {
		return false, fmt.Errorf("reread file %s: %w", f.FQID(), err)
	}
	if !equalJSON(existing, f) {
		return false, domain.ErrConflict{Entity: domain.EntityFile, ID: f.FQID()}
	}
	return false, nil
}

func (t *tx) DeleteBundles(fqids []string) error {
	if len(fqids) == 0 {
		return nil
	}
	_, err := t.exec(`DELETE FROM bundle_versions WHERE fqid IN (`+placeholders(len(fqids))+`)`, toAnySlice(fqids)...)
	if err != nil {
		return fmt.Errorf("delete bundles: %w", err)
	}
	return nil
}

func (t *tx) DeleteFiles(fqids []string) error {
	if len(fqids) == 0 {
		return nil
	}
	_, err := t.exec(`DELETE FROM file_versions WHERE fqid IN (`+placeholders(len(fqids))+`)`, toAnySlice(fqids)...)
	if err != nil {
		return fmt.Errorf("delete files: %w", err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBundle(row rowScanner) (domain.BundleVersion, error) {
	var b domain.BundleVersion
	var manifest, aggregate any
	if err := row.Scan(&b.UUID, &b.Version, &manifest, &aggregate); err != nil {
		return domain.BundleVersion{}, err
	}
	if raw := asBytes(manifest); raw != nil {
		if err := json.Unmarshal(raw, &b.Manifest); err != nil {
			return domain.BundleVersion{}, fmt.Errorf("decode manifest: %w", err)
		}
	}
	if raw := asBytes(aggregate); raw != nil {
		b.AggregateMetadata = json.RawMessage(raw)
	}
	return b, nil
}

func scanFile(row rowScanner) (domain.FileVersion, error) {
	var f domain.FileVersion
	var schemaType, contentType, extension sql.NullString
	var major, minor sql.NullInt64
	var body any
	if err := row.Scan(&f.UUID, &f.Version, &schemaType, &major, &minor, &body, &contentType, &f.Size, &extension); err != nil {
		return domain.FileVersion{}, err
	}
	f.SchemaType = schemaType.String
	f.SchemaMajor = int(major.Int64)
	f.SchemaMinor = int(minor.Int64)
	f.ContentType = contentType.String
	f.Extension = extension.String
	if raw := asBytes(body); raw != nil {
		f.Body = json.RawMessage(raw)
	}
	return f, nil
}

// GetBundle returns the bundle version for the fqid, if present.
func (s *Store) GetBundle(ctx context.Context, fqid string) (domain.BundleVersion, bool, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT uuid, version, manifest, aggregate_metadata FROM bundle_versions WHERE fqid = ?`), fqid)
	b, err := scanBundle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BundleVersion{}, false, nil
	}
	if err != nil {
		return domain.BundleVersion{}, false, fmt.Errorf("get bundle %s: %w", fqid, err)
	}
	return b, true, nil
}

// GetFile returns the file version for the fqid, if present.
func (s *Store) GetFile(ctx context.Context, fqid string) (domain.FileVersion, bool, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT uuid, version, schema_type, schema_major_version, schema_minor_version, body, content_type, size, extension FROM file_versions WHERE fqid = ?`), fqid)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FileVersion{}, false, nil
	}
	if err != nil {
		return domain.FileVersion{}, false, fmt.Errorf("get file %s: %w", fqid, err)
	}
	return f, true, nil
}
