package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"vestigia/internal/core/changefeed"
)

const channelPrefix = "changes:"

// ChangeFeedRepositoryRedis carries row changes over Redis pub/sub, one
// channel per table.
type ChangeFeedRepositoryRedis struct {
	Client *redis.Client
	Logger *zap.Logger
}

func NewChangeFeedRepositoryRedis(client *redis.Client, logger *zap.Logger) *ChangeFeedRepositoryRedis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChangeFeedRepositoryRedis{Client: client, Logger: logger}
}

func channelFor(table string) string { return channelPrefix + table }

// Publish sends ev to the channel of its table.
func (r *ChangeFeedRepositoryRedis) Publish(ctx context.Context, ev changefeed.Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	if err := r.Client.Publish(ctx, channelFor(ev.Table), data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Table, err)
	}
	r.Logger.Debug("Published change", zap.String("table", ev.Table), zap.String("type", string(ev.Type)))
	return nil
}

// Subscribe streams the changes of table that pass filter. The channel is
// closed when ctx ends or the Redis subscription drops.
func (r *ChangeFeedRepositoryRedis) Subscribe(ctx context.Context, table string, filter changefeed.Filter) (<-chan changefeed.Event, error) {
	sub := r.Client.Subscribe(ctx, channelFor(table))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", table, err)
	}

	out := make(chan changefeed.Event, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev changefeed.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.Logger.Warn("Dropping malformed change event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				if !filter.Match(ev) {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
