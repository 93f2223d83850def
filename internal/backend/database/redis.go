package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisIconSequenceKey = "icons:seq"
	redisIconsByTimeKey  = "icons:by_time"
	redisSettingsKey     = "settings:" + SettingsKey
)

func redisIconKey(id int64) string {
	return "icons:" + strconv.FormatInt(id, 10)
}

type RedisDatabase struct {
	client *redis.Client
}

// NewRedisDatabase connects using a redis:// URL; a bare host:port is accepted too
func NewRedisDatabase(connectionString string) (DatabaseService, error) {
	opts, err := redis.ParseURL(connectionString)
	if err != nil {
		opts = &redis.Options{Addr: connectionString}
	}
	return &RedisDatabase{client: redis.NewClient(opts)}, nil
}

// CreateDatabase only verifies the connection; redis needs no schema
func (r *RedisDatabase) CreateDatabase(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}
	return nil
}

func (r *RedisDatabase) Close() error {
	return r.client.Close()
}

func (r *RedisDatabase) DoesDatabaseExist(ctx context.Context) bool {
	return r.client.Ping(ctx).Err() == nil
}

func (r *RedisDatabase) SaveSettings(ctx context.Context, settings *Settings) error {
	value, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return r.client.Set(ctx, redisSettingsKey, value, 0).Err()
}

func (r *RedisDatabase) LoadSettings(ctx context.Context) (*Settings, error) {
	value, err := r.client.Get(ctx, redisSettingsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var settings Settings
	if err := json.Unmarshal(value, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &settings, nil
}

func (r *RedisDatabase) AddIconRecord(ctx context.Context, record *IconRecord) (int64, error) {
	id, err := r.client.Incr(ctx, redisIconSequenceKey).Result()
	if err != nil {
		return 0, err
	}

	createdAt := record.CreatedAt.UnixMilli()
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, redisIconKey(id), map[string]any{
			"filename":    record.Filename,
			"size":        record.Size,
			"format":      record.Format,
			"source_type": record.SourceType,
			"preview":     TruncatePreview(record.Preview),
			"created_at":  createdAt,
		})
		pipe.ZAdd(ctx, redisIconsByTimeKey, redis.Z{Score: float64(createdAt), Member: id})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetIconRecords reads only the newest limit ids when no type filter applies.
// Members tied on the boundary score are all read, since ties sort by member rather than id.
func (r *RedisDatabase) GetIconRecords(ctx context.Context, sourceType string, limit int) ([]*IconRecord, error) {
	ids, err := r.recordIDs(ctx, sourceType == "" && limit > 0, limit)
	if err != nil {
		return nil, err
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, redisIconKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	records := []*IconRecord{}
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 || (sourceType != "" && fields["source_type"] != sourceType) {
			continue
		}
		size, _ := strconv.Atoi(fields["size"])
		createdAt, _ := strconv.ParseInt(fields["created_at"], 10, 64)
		records = append(records, &IconRecord{
			ID:         ids[i],
			Filename:   fields["filename"],
			Size:       size,
			Format:     fields["format"],
			SourceType: fields["source_type"],
			Preview:    fields["preview"],
			CreatedAt:  time.UnixMilli(createdAt),
		})
	}

	sortNewestFirst(records)
	return applyLimit(records, limit), nil
}

func (r *RedisDatabase) recordIDs(ctx context.Context, bounded bool, limit int) ([]int64, error) {
	if !bounded {
		members, err := r.client.ZRevRange(ctx, redisIconsByTimeKey, 0, -1).Result()
		if err != nil {
			return nil, err
		}
		return parseRedisIDs(members), nil
	}

	newest, err := r.client.ZRevRangeWithScores(ctx, redisIconsByTimeKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	members := make([]string, 0, len(newest))
	for _, z := range newest {
		members = append(members, fmt.Sprint(z.Member))
	}
	if len(newest) < limit {
		return parseRedisIDs(members), nil
	}

	boundary := strconv.FormatFloat(newest[len(newest)-1].Score, 'f', -1, 64)
	tied, err := r.client.ZRangeByScore(ctx, redisIconsByTimeKey, &redis.ZRangeBy{Min: boundary, Max: boundary}).Result()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(members))
	for _, member := range members {
		seen[member] = struct{}{}
	}
	for _, member := range tied {
		if _, ok := seen[member]; !ok {
			members = append(members, member)
		}
	}
	return parseRedisIDs(members), nil
}

func parseRedisIDs(members []string) []int64 {
	ids := make([]int64, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
