// Package sqlite opens a SQLite-backed metadata store using the pure Go
// modernc driver and applies the entity-model DDL on startup.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"lineagecore/internal/entitymodel/sqlbundle"
	"lineagecore/internal/infra/persistence/sqlstore"
)

// Store is a sqlstore.Store bound to a SQLite database file.
type Store struct {
	*sqlstore.Store
	path string
}

// NewStore opens (or creates) the database at path and applies the DDL.
// An empty path falls back to ./lineagecore.db; ":memory:" is honored for
// tests.
func NewStore(path string, log *zap.SugaredLogger) (*Store, error) {
	if path == "" {
		path = "lineagecore.db"
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	ctx := context.Background()
	for _, stmt := range sqlbundle.SplitStatements(sqlbundle.SQLite()) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("execute ddl: %w", err)
		}
	}
	return &Store{Store: sqlstore.New(db, sqlstore.DialectSQLite, log), path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
