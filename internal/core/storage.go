package core

import (
	"context"
	"fmt"
	"io"

	"todoapi/internal/infra/persistence/memory"
	"todoapi/internal/infra/persistence/postgres"
	"todoapi/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // process-local, reset on restart (default)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file snapshot
	StoragePostgres StorageDriver = "postgres" // PostgreSQL snapshot
)

// StorageOptions selects and configures the backend.
type StorageOptions struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenPersistentStore builds the configured backend. Backends holding external
// resources also implement io.Closer; see CloseStore.
func OpenPersistentStore(ctx context.Context, opts StorageOptions) (PersistentStore, error) {
	driver := opts.Driver
	if driver == "" {
		driver = StorageMemory
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(opts.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, opts.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// CloseStore releases the backend's resources when it holds any.
func CloseStore(store PersistentStore) error {
	if closer, ok := store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
