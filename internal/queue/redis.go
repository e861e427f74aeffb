package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bgpkit/ris-live-go/internal/circuitbreaker"
	"github.com/bgpkit/ris-live-go/internal/decode"
)

// RedisSink publishes decoded elements onto a Redis list so downstream
// consumers can pop them at their own pace. Publishes go through a circuit
// breaker: when Redis is down the sink fails fast instead of stalling the
// feed loop on every message.
type RedisSink struct {
	cli     *redis.Client
	key     string
	breaker *circuitbreaker.Breaker
}

func NewRedis(addr, key string) (*RedisSink, error) {
	cli := redis.NewClient(&redis.Options{Addr: addr})
	if err := cli.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisSink{
		cli:     cli,
		key:     key,
		breaker: circuitbreaker.New(5, 0.5, 30*time.Second),
	}, nil
}

// Publish pushes one element. Returns circuitbreaker.ErrOpen without
// touching Redis while the breaker is open.
func (s *RedisSink) Publish(ctx context.Context, e decode.Element) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.breaker.Execute(func() error {
		return s.cli.LPush(ctx, s.key, data).Err()
	})
}

// Ping checks connectivity, for the health endpoint.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.cli.Ping(ctx).Err()
}

func (s *RedisSink) Close() error {
	return s.cli.Close()
}
