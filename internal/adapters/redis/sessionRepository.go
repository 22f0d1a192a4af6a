package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionRepositoryRedis stores revoked session ids and pending OAuth states.
type SessionRepositoryRedis struct {
	Client *redis.Client
}

func NewSessionRepositoryRedis(client *redis.Client) *SessionRepositoryRedis {
	return &SessionRepositoryRedis{Client: client}
}

func (r *SessionRepositoryRedis) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.Client.Set(ctx, "session:revoked:"+sessionID, 1, ttl).Err()
}

func (r *SessionRepositoryRedis) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.Client.Exists(ctx, "session:revoked:"+sessionID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SessionRepositoryRedis) SaveState(ctx context.Context, state string, ttl time.Duration) error {
	return r.Client.Set(ctx, "oauth:state:"+state, 1, ttl).Err()
}

// ConsumeState deletes state so it can be used once.
func (r *SessionRepositoryRedis) ConsumeState(ctx context.Context, state string) (bool, error) {
	n, err := r.Client.Del(ctx, "oauth:state:"+state).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
