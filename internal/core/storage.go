package core

import (
	"context"
	"fmt"
	"io"

	"vivariumcore/internal/infra/persistence/firestore"
	"vivariumcore/internal/infra/persistence/memory"
	"vivariumcore/internal/infra/persistence/postgres"
	"vivariumcore/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory    StorageDriver = "memory"    // in-memory only (tests / ephemeral)
	StorageSQLite    StorageDriver = "sqlite"    // embedded sqlite file
	StoragePostgres  StorageDriver = "postgres"  // PostgreSQL server
	StorageFirestore StorageDriver = "firestore" // Cloud Firestore collections
)

// StorageOptions selects and configures a repository backend.
type StorageOptions struct {
	Driver               StorageDriver
	SQLitePath           string
	PostgresDSN          string
	FirestoreProject     string
	FirestoreCredentials string
}

// OpenRepository builds the repository named by opts.Driver, defaulting to sqlite. On
// success the returned closer releases backend handles.
func OpenRepository(ctx context.Context, opts StorageOptions) (Repository, io.Closer, error) {
	driver := opts.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nopCloser{}, nil
	case StorageSQLite:
		store, err := sqlite.NewStore(ctx, opts.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case StorageFirestore:
		store, err := firestore.NewStore(ctx, firestore.Config{
			ProjectID:       opts.FirestoreProject,
			CredentialsFile: opts.FirestoreCredentials,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
