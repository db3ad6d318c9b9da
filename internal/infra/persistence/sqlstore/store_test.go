package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"lineagecore/internal/entitymodel/sqlbundle"
	"lineagecore/pkg/domain"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	for _, stmt := range sqlbundle.SplitStatements(sqlbundle.SQLite()) {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("apply ddl: %v", err)
		}
	}
	return New(db, DialectSQLite, nil)
}

func TestRebind(t *testing.T) {
	q := `INSERT INTO t (a, b) VALUES (?, ?)`
	if got := DialectSQLite.rebind(q); got != q {
		t.Fatalf("sqlite rebind changed query: %s", got)
	}
	want := `INSERT INTO t (a, b) VALUES ($1, $2)`
	if got := DialectPostgres.rebind(q); got != want {
		t.Fatalf("postgres rebind = %s, want %s", got, want)
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(0); got != "" {
		t.Fatalf("placeholders(0) = %q", got)
	}
	if got := placeholders(1); got != "?" {
		t.Fatalf("placeholders(1) = %q", got)
	}
	if got := placeholders(3); got != "?,?,?" {
		t.Fatalf("placeholders(3) = %q", got)
	}
}

func TestJSONAndTimeHelpers(t *testing.T) {
	if jsonParam(nil) != nil {
		t.Fatalf("expected nil param for empty payload")
	}
	if got := jsonParam([]byte(`{}`)); got != "{}" {
		t.Fatalf("unexpected json param %v", got)
	}
	if got := asBytes("x"); string(got) != "x" {
		t.Fatalf("asBytes(string) = %q", got)
	}
	if got := asBytes(nil); got != nil {
		t.Fatalf("asBytes(nil) = %v", got)
	}

	now := time.Date(2026, 4, 1, 12, 30, 0, 0, time.UTC)
	parsed, err := asTime(timeParam(now))
	if err != nil {
		t.Fatalf("asTime round trip: %v", err)
	}
	if !parsed.Equal(now) {
		t.Fatalf("round trip changed time: %v != %v", parsed, now)
	}
	if same, err := asTime(now); err != nil || !same.Equal(now) {
		t.Fatalf("asTime(time.Time) = %v, %v", same, err)
	}
	if _, err := asTime(42); err == nil {
		t.Fatalf("expected error for unsupported representation")
	}
}

func TestProjectionName(t *testing.T) {
	cases := map[string]string{
		"donor_organism":      "metadata_donor_organism",
		"Donor Organism":      "metadata_donor_organism",
		"links; DROP TABLE x": "metadata_links__drop_table_x",
	}
	for in, want := range cases {
		if got := projectionName(in); got != want {
			t.Fatalf("projectionName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExecuteReturnsRows(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	err := store.RunInTransaction(ctx, func(tx domain.Tx) error {
		_, err := tx.PutBundle(domain.BundleVersion{UUID: "b-1", Version: "v1"})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	result, err := store.Execute(ctx, `SELECT uuid, version FROM bundle_versions ORDER BY uuid`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Columns) != 2 || result.Columns[0] != "uuid" {
		t.Fatalf("unexpected columns %v", result.Columns)
	}
	if len(result.Rows) != 1 || result.Rows[0][0] != "b-1" || result.Rows[0][1] != "v1" {
		t.Fatalf("unexpected rows %v", result.Rows)
	}
}

func TestExecuteDeadlineMapsToTimeout(t *testing.T) {
	store := newSQLiteStore(t)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := store.Execute(ctx, `SELECT uuid FROM bundle_versions`)
	if !errors.Is(err, domain.ErrQueryTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestSchemaProjectionViewIsQueryable(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	err := store.RunInTransaction(ctx, func(tx domain.Tx) error {
		if _, err := tx.RegisterSchemaType("donor_organism"); err != nil {
			return err
		}
		_, err := tx.PutFile(domain.FileVersion{
			UUID: "f-1", Version: "v1", SchemaType: "donor_organism",
			SchemaMajor: 10, SchemaMinor: 2, Body: json.RawMessage(`{"organ":"brain"}`),
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.RefreshSchemaProjections(ctx); err != nil {
		t.Fatalf("refresh projections: %v", err)
	}

	result, err := store.Execute(ctx, `SELECT uuid, body FROM metadata_donor_organism`)
	if err != nil {
		t.Fatalf("query projection: %v", err)
	}
	if len(result.Rows) != 1 || result.Rows[0][0] != "f-1" {
		t.Fatalf("unexpected projection rows %v", result.Rows)
	}

	// Re-running the refresh against existing views is a no-op.
	if err := store.RefreshSchemaProjections(ctx); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
}

func TestRollbackOnError(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	seedErr := errors.New("boom")
	err := store.RunInTransaction(ctx, func(tx domain.Tx) error {
		if _, err := tx.PutBundle(domain.BundleVersion{UUID: "b-1", Version: "v1"}); err != nil {
			return err
		}
		return seedErr
	})
	if !errors.Is(err, seedErr) {
		t.Fatalf("expected fn error to surface, got %v", err)
	}
	if _, ok, _ := store.GetBundle(ctx, "b-1.v1"); ok {
		t.Fatalf("expected rollback to discard the write")
	}
}
