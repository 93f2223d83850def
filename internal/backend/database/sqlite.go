package database

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

// NewSQLiteDatabase opens a SQLite database. ":memory:" keeps everything in process.
func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	if connectionString == "" {
		connectionString = ":memory:"
	}
	dsn := connectionString
	if !strings.HasPrefix(connectionString, ":memory:") {
		if err := os.MkdirAll(filepath.Dir(connectionString), 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dsn = connectionString + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// single writer; also keeps one shared in-memory database
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

// CreateDatabase runs all pending migrations
func (s *SQLiteDatabase) CreateDatabase(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist(ctx context.Context) bool {
	// the file is created on connect, so a successful ping is enough
	return s.db.PingContext(ctx) == nil
}

func (s *SQLiteDatabase) SaveSettings(ctx context.Context, settings *Settings) error {
	value, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		SettingsKey, string(value))
	return err
}

func (s *SQLiteDatabase) LoadSettings(ctx context.Context) (*Settings, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", SettingsKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var settings Settings
	if err := json.Unmarshal([]byte(value), &settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &settings, nil
}

func (s *SQLiteDatabase) AddIconRecord(ctx context.Context, record *IconRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO icons (filename, size, format, source_type, preview, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		record.Filename, record.Size, record.Format, record.SourceType, TruncatePreview(record.Preview), record.CreatedAt.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteDatabase) GetIconRecords(ctx context.Context, sourceType string, limit int) ([]*IconRecord, error) {
	query := "SELECT id, filename, size, format, source_type, preview, created_at FROM icons"
	var args []any
	if sourceType != "" {
		query += " WHERE source_type = ?"
		args = append(args, sourceType)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	records := []*IconRecord{}
	for rows.Next() {
		var record IconRecord
		var createdAt int64
		if err := rows.Scan(&record.ID, &record.Filename, &record.Size, &record.Format, &record.SourceType, &record.Preview, &createdAt); err != nil {
			return nil, err
		}
		record.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, &record)
	}
	return records, rows.Err()
}
