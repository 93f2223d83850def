package database

import (
	"sort"
	"time"
)

// SettingsKey is the fixed key the settings record is stored under
const SettingsKey = "userSettings"

// PreviewLength is the number of payload characters kept in an icon record
const PreviewLength = 256

type Settings struct {
	SelectedSizes []int     `json:"selectedSizes"`
	OutputFormat  string    `json:"outputFormat"`
	Timestamp     time.Time `json:"timestamp"`
}

type IconRecord struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	Size       int       `json:"size"`
	Format     string    `json:"format"`
	SourceType string    `json:"sourceType"`
	Preview    string    `json:"preview"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TruncatePreview shortens an encoded payload to PreviewLength characters
func TruncatePreview(encoded string) string {
	if len(encoded) <= PreviewLength {
		return encoded
	}
	return encoded[:PreviewLength]
}

// sortNewestFirst orders records by creation time, then id, both descending
func sortNewestFirst(records []*IconRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
}

func applyLimit(records []*IconRecord, limit int) []*IconRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
