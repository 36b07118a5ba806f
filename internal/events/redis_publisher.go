package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/doctor-appointments/internal/appointment"
)

// RedisPublisher fans events out over Redis pub/sub.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client, channel: RedisChannel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev appointment.EventLog) error {
	data, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("encode event %d: %w", ev.ID, err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish event %d: %w", ev.ID, err)
	}
	return nil
}

// Close is a no-op, the client is owned by the caller.
func (p *RedisPublisher) Close() error {
	return nil
}
