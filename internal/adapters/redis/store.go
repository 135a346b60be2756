package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"biz_dashboard/internal/adapters/observability"
	"biz_dashboard/internal/domain"
)

const keyPrefix = "bizdash:session:"

// Store keeps session views as JSON strings with a per-write TTL.
type Store struct{ c *redis.Client }

func New(addr, pass string, db int) *Store {
	return &Store{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

// NewWithClient wraps an existing client (tests point it at miniredis).
func NewWithClient(c *redis.Client) *Store { return &Store{c: c} }

func (s *Store) Ping(ctx context.Context) error { return s.c.Ping(ctx).Err() }

func (s *Store) Close() error { return s.c.Close() }

func (s *Store) Get(ctx context.Context, id string) (domain.SessionView, bool, error) {
	b, err := s.c.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveStore("redis", "miss")
		return domain.SessionView{}, false, nil
	}
	if err != nil {
		return domain.SessionView{}, false, err
	}
	observability.ObserveStore("redis", "hit")
	var v domain.SessionView
	if err := json.Unmarshal(b, &v); err != nil {
		return domain.SessionView{}, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, id string, v domain.SessionView, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}
	observability.ObserveStore("redis", "set")
	return s.c.Set(ctx, keyPrefix+id, b, ttl).Err()
}

func (s *Store) Del(ctx context.Context, id string) error {
	observability.ObserveStore("redis", "del")
	return s.c.Del(ctx, keyPrefix+id).Err()
}
