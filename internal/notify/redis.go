package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel prefix; the delivery channel is appended.
const DefaultRedisChannel = "smartbuy:notifications"

// RedisDispatcher publishes notifications for downstream delivery workers.
type RedisDispatcher struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

var _ Dispatcher = (*RedisDispatcher)(nil)

// NewRedisDispatcher publishes on "<prefix>:<channel>". An empty prefix uses DefaultRedisChannel.
func NewRedisDispatcher(client *redis.Client, prefix string) *RedisDispatcher {
	if prefix == "" {
		prefix = DefaultRedisChannel
	}
	return &RedisDispatcher{client: client, prefix: prefix, now: time.Now}
}

type redisMessage struct {
	Channel Channel   `json:"channel"`
	SentAt  time.Time `json:"sent_at"`
	Payload
}

// Topic returns the pub/sub channel used for channel.
func (d *RedisDispatcher) Topic(channel Channel) string {
	return d.prefix + ":" + string(channel)
}

func (d *RedisDispatcher) Send(ctx context.Context, channel Channel, payload Payload) (Result, error) {
	sentAt := d.now().UTC()
	data, err := json.Marshal(redisMessage{Channel: channel, SentAt: sentAt, Payload: payload})
	if err != nil {
		return Result{}, &DispatchError{Channel: channel, Err: fmt.Errorf("encode payload: %w", err)}
	}

	if err := d.client.Publish(ctx, d.Topic(channel), data).Err(); err != nil {
		return Result{Timestamp: sentAt}, &DispatchError{Channel: channel, Err: err}
	}
	return Result{Success: true, Timestamp: sentAt}, nil
}
