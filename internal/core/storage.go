package core

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"lineagecore/internal/infra/persistence/memory"
	"lineagecore/internal/infra/persistence/postgres"
	"lineagecore/internal/infra/persistence/sqlite"
	"lineagecore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// Backend bundles the store surfaces one storage driver provides. Engine is
// nil for the in-memory driver, which has no ad hoc query surface.
type Backend struct {
	Store  domain.MetadataStore
	Jobs   domain.JobStore
	Engine domain.QueryEngine
}

// OpenBackend selects a backend using environment variables. Defaults to
// sqlite when unset.
//
//	LINEAGECORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	LINEAGECORE_SQLITE_PATH: path to sqlite file (default ./lineagecore.db)
//	LINEAGECORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenBackend(log *zap.SugaredLogger) (Backend, error) {
	driver := os.Getenv("LINEAGECORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		st := memory.NewStore()
		return Backend{Store: st, Jobs: st}, nil
	case StorageSQLite:
		st, err := sqlite.NewStore(os.Getenv("LINEAGECORE_SQLITE_PATH"), log)
		if err != nil {
			return Backend{}, err
		}
		return Backend{Store: st, Jobs: st, Engine: st}, nil
	case StoragePostgres:
		st, err := postgres.NewStore(os.Getenv("LINEAGECORE_POSTGRES_DSN"), log)
		if err != nil {
			return Backend{}, err
		}
		return Backend{Store: st, Jobs: st, Engine: st}, nil
	default:
		return Backend{}, fmt.Errorf("unknown storage driver %s", driver)
	}
}
