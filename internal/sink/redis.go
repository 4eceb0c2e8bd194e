package sink

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultStream is the Redis stream inbound events are appended to.
	DefaultStream = "status-relay:events"
	// defaultMaxLen bounds the stream with approximate trimming.
	defaultMaxLen = 10000
)

// Redis appends each event to a Redis stream via XADD. Consumers read
// the stream with XREAD or consumer groups.
type Redis struct {
	client *redis.Client
	stream string
	maxLen int64
}

// RedisConfig configures a Redis sink.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string // empty means DefaultStream
	MaxLen   int64  // zero means defaultMaxLen
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	stream := cfg.Stream
	if stream == "" {
		stream = DefaultStream
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	return &Redis{client: client, stream: stream, maxLen: maxLen}, nil
}

func (r *Redis) Deliver(ctx context.Context, text, routingKey string) error {
	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{
			"routing_key": routingKey,
			"text":        text,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}

// Close releases the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
