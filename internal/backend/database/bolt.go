package database

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	iconsBucket    = []byte("icons")
	settingsBucket = []byte("settings")
)

type BoltDatabase struct {
	db   *bbolt.DB
	path string
}

// NewBoltDatabase opens or creates the bolt file at path
func NewBoltDatabase(path string) (DatabaseService, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt database requires a file path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}
	return &BoltDatabase{db: db, path: path}, nil
}

// CreateDatabase creates the buckets if they do not exist
func (b *BoltDatabase) CreateDatabase(ctx context.Context) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{iconsBucket, settingsBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
}

func (b *BoltDatabase) Close() error {
	return b.db.Close()
}

func (b *BoltDatabase) DoesDatabaseExist(ctx context.Context) bool {
	err := b.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(iconsBucket) == nil || tx.Bucket(settingsBucket) == nil {
			return ErrNotFound
		}
		return nil
	})
	return err == nil
}

func (b *BoltDatabase) SaveSettings(ctx context.Context, settings *Settings) error {
	value, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(settingsBucket).Put([]byte(SettingsKey), value)
	})
}

func (b *BoltDatabase) LoadSettings(ctx context.Context) (*Settings, error) {
	var settings *Settings
	err := b.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(settingsBucket).Get([]byte(SettingsKey))
		if value == nil {
			return ErrNotFound
		}
		settings = &Settings{}
		return json.Unmarshal(value, settings)
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (b *BoltDatabase) AddIconRecord(ctx context.Context, record *IconRecord) (int64, error) {
	var id int64
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(iconsBucket)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		id = int64(seq)

		stored := *record
		stored.ID = id
		stored.Preview = TruncatePreview(record.Preview)
		value, err := json.Marshal(&stored)
		if err != nil {
			return fmt.Errorf("failed to encode icon record: %w", err)
		}
		return bucket.Put(itob(seq), value)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (b *BoltDatabase) GetIconRecords(ctx context.Context, sourceType string, limit int) ([]*IconRecord, error) {
	records := []*IconRecord{}
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(iconsBucket).ForEach(func(k, v []byte) error {
			var record IconRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to unmarshal icon record %x: %w", k, err)
			}
			if sourceType == "" || record.SourceType == sourceType {
				records = append(records, &record)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortNewestFirst(records)
	return applyLimit(records, limit), nil
}

// itob encodes a sequence number so keys sort in insertion order
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
