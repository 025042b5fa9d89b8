package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/julianstephens/carelog/internal/constants"
)

// RedisSink appends triggers to a redis stream for an external delivery
// worker to consume.
type RedisSink struct {
	client redis.Cmdable
	closer func() error
	stream string
}

func NewRedisSink(addr, stream string) *RedisSink {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return newRedisSink(client, client.Close, stream)
}

func newRedisSink(client redis.Cmdable, closer func() error, stream string) *RedisSink {
	if stream == "" {
		stream = constants.DefaultRedisStream
	}
	return &RedisSink{client: client, closer: closer, stream: stream}
}

func (r *RedisSink) Send(ctx context.Context, t Trigger) error {
	_, err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"occurrence_id": t.OccurrenceID,
			"at":            t.At.Format(time.RFC3339),
			"payload":       t.Payload,
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}

func (r *RedisSink) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
