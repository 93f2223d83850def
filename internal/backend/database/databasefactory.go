package database

import (
	"context"
	"fmt"
	"log/slog"
)

// NewDatabase creates the store for databaseType and ensures its schema exists.
// Supported types are sqlite, redis, bolt and none.
func NewDatabase(ctx context.Context, databaseType, connectionString string) (database DatabaseService, err error) {
	switch databaseType {
	case "sqlite":
		database, err = NewSQLiteDatabase(connectionString)
	case "redis":
		database, err = NewRedisDatabase(connectionString)
	case "bolt":
		database, err = NewBoltDatabase(connectionString)
	case "none", "":
		database = NewNoopDatabase()
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", databaseType)
	}
	if err != nil {
		return nil, err
	}

	// idempotent; in-memory SQLite needs it on every start
	slog.Debug("Database: initializing schema", "type", databaseType)
	if err = database.CreateDatabase(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return database, nil
}
