package database

import "context"

// NoopDatabase stores nothing. It is used when persistence is disabled or unavailable.
type NoopDatabase struct{}

func NewNoopDatabase() DatabaseService {
	return &NoopDatabase{}
}

func (n *NoopDatabase) CreateDatabase(ctx context.Context) error { return nil }

func (n *NoopDatabase) DoesDatabaseExist(ctx context.Context) bool { return false }

func (n *NoopDatabase) Close() error { return nil }

func (n *NoopDatabase) SaveSettings(ctx context.Context, settings *Settings) error { return nil }

func (n *NoopDatabase) LoadSettings(ctx context.Context) (*Settings, error) { return nil, ErrNotFound }

func (n *NoopDatabase) AddIconRecord(ctx context.Context, record *IconRecord) (int64, error) {
	return 0, nil
}

func (n *NoopDatabase) GetIconRecords(ctx context.Context, sourceType string, limit int) ([]*IconRecord, error) {
	return []*IconRecord{}, nil
}
