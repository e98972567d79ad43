package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher the subset of redis.Client the driver uses
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisDriver queue relay over redis PUBLISH; subscribers use <prefix><channel>
type RedisDriver struct {
	client RedisPublisher
	prefix string
}

// NewRedisDriver 생성자
func NewRedisDriver(client RedisPublisher, prefix string) *RedisDriver {
	return &RedisDriver{client: client, prefix: prefix}
}

func (d *RedisDriver) Name() string { return "redis" }

// Topic redis channel for ch
func (d *RedisDriver) Topic(ch Channel) string {
	return d.prefix + string(ch.Class) + "." + ch.Name
}

func (d *RedisDriver) Broadcast(ctx context.Context, ev Event) error {
	for _, ch := range ev.Channels {
		data, err := json.Marshal(ev.Envelope(ch))
		if err != nil {
			return fmt.Errorf("encoding %s: %w", ev.Name, err)
		}
		if err := d.client.Publish(ctx, d.Topic(ch), data).Err(); err != nil {
			return fmt.Errorf("redis publish %s: %w", d.Topic(ch), err)
		}
	}
	return nil
}
