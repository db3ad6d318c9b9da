// Package sqlstore implements the metadata, job, and query-engine contracts
// on top of database/sql. The same implementation serves the SQLite and
// Postgres adapters; the Dialect value captures the handful of places where
// the engines differ (placeholder style, JSON column handling, materialized
// projections, row locking).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"lineagecore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.MetadataStore = (*Store)(nil)
	_ domain.JobStore      = (*Store)(nil)
	_ domain.QueryEngine   = (*Store)(nil)
)

// Dialect identifies the SQL engine behind the store.
type Dialect string

const (
	// DialectSQLite targets modernc.org/sqlite.
	DialectSQLite Dialect = "sqlite"
	// DialectPostgres targets PostgreSQL via the pgx stdlib driver.
	DialectPostgres Dialect = "postgres"
)

// rebind rewrites ?-style placeholders to the engine's native style.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Store is a SQL-backed metadata store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	log     *zap.SugaredLogger
	nowFn   func() time.Time
	idFn    func() string
}

// New wraps an open database handle. The caller is responsible for having
// applied the entity-model DDL. A nil logger is replaced with a no-op.
func New(db *sql.DB, dialect Dialect, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{
		db:      db,
		dialect: dialect,
		log:     log,
		nowFn:   func() time.Time { return time.Now().UTC() },
		idFn:    newID,
	}
}

// DB exposes the underlying handle for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// SetNowFunc overrides the clock, for tests.
func (s *Store) SetNowFunc(fn func() time.Time) { s.nowFn = fn }

// SetIDFunc overrides job id generation, for tests.
func (s *Store) SetIDFunc(fn func() string) { s.idFn = fn }

// RunInTransaction executes fn within one database transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = dbTx.Rollback()
		}
	}()
	if err := fn(&tx{ctx: ctx, tx: dbTx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// tx implements domain.Tx over one *sql.Tx. The context supplied to
// RunInTransaction bounds every statement in the scope.
type tx struct {
	ctx     context.Context
	tx      *sql.Tx
	dialect Dialect
}

var _ domain.Tx = (*tx)(nil)

func (t *tx) exec(query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(t.ctx, t.dialect.rebind(query), args...)
}

func (t *tx) query(query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(t.ctx, t.dialect.rebind(query), args...)
}

func (t *tx) queryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(t.ctx, t.dialect.rebind(query), args...)
}

// placeholders returns "?,?,...,?" of length n.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// jsonParam adapts a JSON payload for the engine: Postgres JSONB parameters
// bind cleanly as text, SQLite stores TEXT either way. Empty payloads become
// SQL NULL.
func jsonParam(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// asBytes normalizes a scanned JSON column, which surfaces as []byte or
// string depending on the driver.
func asBytes(v any) []byte {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return val
	case string:
		return []byte(val)
	default:
		return nil
	}
}

// asTime normalizes a scanned timestamp column. SQLite stores RFC 3339 text;
// Postgres returns time.Time natively.
func asTime(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case string:
		return time.Parse(time.RFC3339Nano, val)
	case []byte:
		return time.Parse(time.RFC3339Nano, string(val))
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp representation %T", v)
	}
}

// timeParam formats a timestamp for storage. Both engines accept RFC 3339
// text; Postgres casts it to TIMESTAMPTZ on insert.
func timeParam(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nowUTC() time.Time { return time.Now().UTC() }

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
