package memory

import (
	"context"
	"sync"
	"time"

	"biz_dashboard/internal/adapters/observability"
	"biz_dashboard/internal/domain"
)

type entry struct {
	v       domain.SessionView
	expires time.Time // zero: no expiry
}

// Store is a process-local SessionStore used when no Redis address is configured.
// Expired entries are dropped lazily on read and by Sweep.
type Store struct {
	mu  sync.Mutex
	m   map[string]entry
	now func() time.Time
}

func New() *Store {
	return &Store{m: make(map[string]entry), now: time.Now}
}

func (s *Store) Get(_ context.Context, id string) (domain.SessionView, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[id]
	if ok && !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.m, id)
		ok = false
	}
	if !ok {
		observability.ObserveStore("memory", "miss")
		return domain.SessionView{}, false, nil
	}
	observability.ObserveStore("memory", "hit")
	return cloneView(e.v), true, nil
}

func (s *Store) Set(_ context.Context, id string, v domain.SessionView, ttl time.Duration) error {
	e := entry{v: cloneView(v)}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.m[id] = e
	s.mu.Unlock()
	observability.ObserveStore("memory", "set")
	return nil
}

func (s *Store) Del(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
	observability.ObserveStore("memory", "del")
	return nil
}

// Sweep drops expired sessions and reports how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now, n := s.now(), 0
	for id, e := range s.m {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(s.m, id)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}

// cloneView copies the record so callers never share it with the map.
func cloneView(v domain.SessionView) domain.SessionView {
	if v.Record != nil {
		r := *v.Record
		v.Record = &r
	}
	return v
}
