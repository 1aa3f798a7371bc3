package core

import (
	"brewcore/internal/infra/persistence/memory"
	"brewcore/internal/infra/persistence/postgres"
	"brewcore/internal/infra/persistence/sqlite"
	"brewcore/pkg/domain"
	"context"
	"fmt"
	"os"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// StorageOptions selects and configures a backend.
type StorageOptions struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// StorageOptionsFromEnv reads the backend selection from the environment.
// Defaults to sqlite when unset.
//
//	BREWCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	BREWCORE_SQLITE_PATH: path to sqlite file (default ./brewcore.db)
//	BREWCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func StorageOptionsFromEnv() StorageOptions {
	driver := StorageDriver(os.Getenv("BREWCORE_STORAGE_DRIVER"))
	if driver == "" {
		driver = StorageSQLite
	}
	return StorageOptions{
		Driver:      driver,
		SQLitePath:  os.Getenv("BREWCORE_SQLITE_PATH"),
		PostgresDSN: os.Getenv("BREWCORE_POSTGRES_DSN"),
	}
}

// OpenPersistentStore opens the backend named by opts.
func OpenPersistentStore(ctx context.Context, opts StorageOptions, engine *RulesEngine) (PersistentStore, error) {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	switch opts.Driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite, "":
		store, err := sqlite.NewStore(opts.SQLitePath, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, opts.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", opts.Driver)
	}
}
