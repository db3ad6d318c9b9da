package core

import (
	"path/filepath"
	"testing"
)

func TestOpenBackendDefaultsToSQLite(t *testing.T) {
	t.Setenv("LINEAGECORE_STORAGE_DRIVER", "")
	t.Setenv("LINEAGECORE_SQLITE_PATH", filepath.Join(t.TempDir(), "meta.db"))
	backend, err := OpenBackend(nil)
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	if backend.Store == nil || backend.Jobs == nil || backend.Engine == nil {
		t.Fatalf("expected all surfaces for sqlite, got %+v", backend)
	}
}

func TestOpenBackendMemory(t *testing.T) {
	t.Setenv("LINEAGECORE_STORAGE_DRIVER", "memory")
	backend, err := OpenBackend(nil)
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	if backend.Store == nil || backend.Jobs == nil {
		t.Fatalf("expected store surfaces, got %+v", backend)
	}
	if backend.Engine != nil {
		t.Fatalf("memory backend must have no query engine")
	}
}

func TestOpenBackendUnknownDriver(t *testing.T) {
	t.Setenv("LINEAGECORE_STORAGE_DRIVER", "oracle")
	if _, err := OpenBackend(nil); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
