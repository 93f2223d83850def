package database

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// DatabaseService persists user settings and a log of generated icons.
// Every call is its own transaction; there is no atomicity across calls.
type DatabaseService interface {
	CreateDatabase(ctx context.Context) error
	DoesDatabaseExist(ctx context.Context) bool
	Close() error

	// SaveSettings overwrites the single settings record
	SaveSettings(ctx context.Context, settings *Settings) error
	// LoadSettings returns ErrNotFound when nothing was saved yet
	LoadSettings(ctx context.Context) (*Settings, error)

	// AddIconRecord appends a record and returns its auto-numbered id
	AddIconRecord(ctx context.Context, record *IconRecord) (int64, error)
	// GetIconRecords returns records newest first. An empty sourceType matches all; limit <= 0 means no limit.
	GetIconRecords(ctx context.Context, sourceType string, limit int) ([]*IconRecord, error)
}
