package domain

import (
	"context"
	"time"
)

// SessionStore keeps one SessionView per session id. Get reports false on a miss.
type SessionStore interface {
	Get(ctx context.Context, id string) (SessionView, bool, error)
	Set(ctx context.Context, id string, v SessionView, ttl time.Duration) error
	Del(ctx context.Context, id string) error
}

// Rand is the random source behind the generator; math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}
