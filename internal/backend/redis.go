package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// Redis stores manifests with SET and signals reloads with PUBLISH.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis backend. The connection is established lazily.
func NewRedis(opts RedisOptions) *Redis {
	return NewRedisFromClient(redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}))
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (r *Redis) Publish(ctx context.Context, channel, payload string) (int64, error) {
	n, err := r.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return n, nil
}

// Subscribe returns once the server has confirmed the subscription, so a
// Publish issued afterwards counts this subscriber.
func (r *Redis) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := r.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}
	sub := &redisSubscription{ps: ps, out: make(chan string, 16), done: make(chan struct{})}
	go sub.pump()
	return sub, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

type redisSubscription struct {
	ps       *redis.PubSub
	out      chan string
	done     chan struct{}
	once     sync.Once
	closeErr error
}

func (s *redisSubscription) pump() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		select {
		case s.out <- msg.Payload:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan string { return s.out }

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.closeErr = s.ps.Close()
	})
	return s.closeErr
}
