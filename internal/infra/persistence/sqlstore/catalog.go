package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"lineagecore/pkg/domain"
)

func (t *tx) RegisterSchemaType(name string) (bool, error) {
	res, err := t.exec(
		`INSERT INTO schema_types (name, discovered_at) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`,
		name, timeParam(nowUTC()),
	)
	if err != nil {
		return false, fmt.Errorf("register schema type %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("register schema type %s: %w", name, err)
	}
	return n > 0, nil
}

// ListSchemaTypes returns the discovered schema types in name order.
func (s *Store) ListSchemaTypes(ctx context.Context) ([]domain.SchemaType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, discovered_at FROM schema_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list schema types: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.SchemaType
	for rows.Next() {
		var st domain.SchemaType
		var at any
		if err := rows.Scan(&st.Name, &at); err != nil {
			return nil, fmt.Errorf("scan schema type: %w", err)
		}
		if st.DiscoveredAt, err = asTime(at); err != nil {
			return nil, fmt.Errorf("schema type %s: %w", st.Name, err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schema types: %w", err)
	}
	return out, nil
}

// RefreshSchemaProjections creates a per-type projection for every registered
// schema type and refreshes the ones that materialize. Any statement here is
// safe to re-run, so the whole operation is retriable.
func (s *Store) RefreshSchemaProjections(ctx context.Context) error {
	types, err := s.ListSchemaTypes(ctx)
	if err != nil {
		return err
	}
	for _, st := range types {
		view := projectionName(st.Name)
		selectStmt := fmt.Sprintf(
			`SELECT fqid, uuid, version, schema_major_version, schema_minor_version, body FROM file_versions WHERE schema_type = '%s'`,
			strings.ReplaceAll(st.Name, "'", "''"),
		)
		switch s.dialect {
		case DialectPostgres:
			if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE MATERIALIZED VIEW IF NOT EXISTS %s AS %s`, view, selectStmt)); err != nil {
				return fmt.Errorf("create projection %s: %w", view, err)
			}
			if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`REFRESH MATERIALIZED VIEW %s`, view)); err != nil {
				return fmt.Errorf("refresh projection %s: %w", view, err)
			}
		default:
			// SQLite views are not materialized; creating the view once is
			// the whole refresh.
			if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE VIEW IF NOT EXISTS %s AS %s`, view, selectStmt)); err != nil {
				return fmt.Errorf("create projection %s: %w", view, err)
			}
		}
	}
	return nil
}

// projectionName derives a safe relation name from a schema type. Schema
// types come from document contents, so everything outside [a-z0-9_] is
// squashed before the name reaches DDL.
func projectionName(schemaType string) string {
	var b strings.Builder
	b.WriteString("metadata_")
	for _, r := range strings.ToLower(schemaType) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
