package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	cachePort "vestigia/internal/ports/cache"
)

// SnapshotRepositoryRedis keeps one hash per user, one field per view.
type SnapshotRepositoryRedis struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewSnapshotRepositoryRedis(client *redis.Client, ttl time.Duration) *SnapshotRepositoryRedis {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SnapshotRepositoryRedis{Client: client, TTL: ttl}
}

type snapshotEntry struct {
	Date    string          `json:"date"`
	Payload json.RawMessage `json:"payload"`
}

func snapshotKey(userID string) string { return "snapshot:" + userID }

func (r *SnapshotRepositoryRedis) Save(ctx context.Context, userID, view, date string, payload []byte) error {
	if !json.Valid(payload) {
		return errors.New("snapshot payload is not JSON")
	}
	data, err := json.Marshal(snapshotEntry{Date: date, Payload: payload})
	if err != nil {
		return err
	}
	key := snapshotKey(userID)
	pipe := r.Client.TxPipeline()
	pipe.HSet(ctx, key, view, data)
	pipe.Expire(ctx, key, r.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepositoryRedis) Load(ctx context.Context, userID, view string) (string, []byte, error) {
	data, err := r.Client.HGet(ctx, snapshotKey(userID), view).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", nil, cachePort.ErrMiss
	}
	if err != nil {
		return "", nil, err
	}
	var entry snapshotEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return entry.Date, entry.Payload, nil
}

// Invalidate drops every view of userID captured at a date other than date.
func (r *SnapshotRepositoryRedis) Invalidate(ctx context.Context, userID, date string) (int, error) {
	key := snapshotKey(userID)
	all, err := r.Client.HGetAll(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	var stale []string
	for view, raw := range all {
		var entry snapshotEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.Date != date {
			stale = append(stale, view)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := r.Client.HDel(ctx, key, stale...).Err(); err != nil {
		return 0, err
	}
	return len(stale), nil
}
