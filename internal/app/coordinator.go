package app

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"biz_dashboard/internal/adapters/observability"
	"biz_dashboard/internal/domain"
)

const lockStripes = 64

// DefaultStaleAfter is how long a Loading view may sit without resolving before
// it is treated as abandoned (its generation died with a previous process).
// NewCoordinator raises it to staleFactor times the longest generator delay.
const DefaultStaleAfter = 30 * time.Second

const staleFactor = 4

// Coordinator drives the per-session Idle -> Loading -> Ready state machine.
// Generations run detached from the request that started them and cannot be
// cancelled; a reset only makes their result go nowhere.
type Coordinator struct {
	store      domain.SessionStore
	gen        *Generator
	ttl        time.Duration
	staleAfter time.Duration
	sem        *semaphore.Weighted
	now        func() time.Time

	// seq is process-wide and seeded from the clock, so a token is never
	// reused after a reset or by a later process sharing the store.
	seq   atomic.Uint64
	locks [lockStripes]sync.Mutex
	wg    sync.WaitGroup

	// live holds the seq of every generation this process has started and not
	// yet resolved; such a Loading view is never stale.
	liveMu sync.Mutex
	live   map[uint64]struct{}
}

func NewCoordinator(store domain.SessionStore, gen *Generator, ttl time.Duration, maxInflight int) *Coordinator {
	if maxInflight <= 0 {
		maxInflight = 1
	}
	c := &Coordinator{
		store:      store,
		gen:        gen,
		ttl:        ttl,
		staleAfter: max(DefaultStaleAfter, staleFactor*gen.longestDelay()),
		sem:        semaphore.NewWeighted(int64(maxInflight)),
		now:        time.Now,
		live:       make(map[uint64]struct{}),
	}
	c.seq.Store(uint64(time.Now().UnixNano()))
	return c
}

// SetStaleAfter overrides the abandoned-Loading threshold; d <= 0 disables the check.
func (c *Coordinator) SetStaleAfter(d time.Duration) { c.staleAfter = d }

func (c *Coordinator) nextSeq() uint64 { return c.seq.Add(1) }

func (c *Coordinator) track(seq uint64) {
	c.liveMu.Lock()
	c.live[seq] = struct{}{}
	c.liveMu.Unlock()
}

func (c *Coordinator) untrack(seq uint64) {
	c.liveMu.Lock()
	delete(c.live, seq)
	c.liveMu.Unlock()
}

func (c *Coordinator) owns(seq uint64) bool {
	c.liveMu.Lock()
	defer c.liveMu.Unlock()
	_, ok := c.live[seq]
	return ok
}

func (c *Coordinator) lock(sid string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sid))
	m := &c.locks[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}

// View returns the session's current state; a session with nothing stored is Idle.
func (c *Coordinator) View(ctx context.Context, sid string) (domain.SessionView, error) {
	v, ok, err := c.store.Get(ctx, sid)
	if err != nil {
		return domain.SessionView{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return domain.IdleView(), nil
	}
	if v.Loading() && c.staleAfter > 0 && c.now().Sub(v.UpdatedAt) > c.staleAfter && !c.owns(v.Seq) {
		// nobody will resolve it; fall back to what the user had before
		v.Pending, v.Name, v.Location = domain.PendingNone, "", ""
		v.Phase = domain.PhaseIdle
		if v.Record != nil {
			v.Phase = domain.PhaseReady
		}
	}
	return v, nil
}

// Submit validates the form and, when it passes, moves an Idle session to Loading
// and starts the initial generation. Invalid input leaves the session untouched.
func (c *Coordinator) Submit(ctx context.Context, sid, name, location string) (domain.SessionView, domain.FieldErrors, error) {
	unlock := c.lock(sid)
	defer unlock()

	cur, err := c.View(ctx, sid)
	if err != nil {
		return domain.SessionView{}, nil, err
	}
	if errs := Validate(name, location); !errs.Valid() {
		for f, fe := range errs {
			observability.ObserveValidation(f, string(fe.Code))
		}
		return cur, errs, nil
	}
	switch {
	case cur.Loading():
		return cur, nil, domain.ErrBusy
	case cur.Record != nil:
		return cur, nil, domain.ErrRecordExists
	}

	name, location = strings.TrimSpace(name), strings.TrimSpace(location)
	next := domain.SessionView{
		Phase:     domain.PhaseLoading,
		Pending:   domain.PendingInitial,
		Name:      name,
		Location:  location,
		Seq:       c.nextSeq(),
		UpdatedAt: c.now(),
	}
	if err := c.save(ctx, sid, next); err != nil {
		return cur, nil, err
	}
	c.launch(ctx, sid, next.Seq, domain.PendingInitial, func(gctx context.Context) domain.BusinessRecord {
		return c.gen.Generate(gctx, name, location)
	})
	return next, nil, nil
}

// Regenerate moves a Ready session to Loading, keeping its record, and draws a new headline.
func (c *Coordinator) Regenerate(ctx context.Context, sid string) (domain.SessionView, error) {
	unlock := c.lock(sid)
	defer unlock()

	cur, err := c.View(ctx, sid)
	if err != nil {
		return domain.SessionView{}, err
	}
	switch {
	case cur.Loading():
		return cur, domain.ErrBusy
	case cur.Record == nil:
		return cur, domain.ErrNoRecord
	}

	rec := *cur.Record
	next := cur
	next.Phase = domain.PhaseLoading
	next.Pending = domain.PendingRegenerate
	next.Seq = c.nextSeq()
	next.UpdatedAt = c.now()
	if err := c.save(ctx, sid, next); err != nil {
		return cur, err
	}
	c.launch(ctx, sid, next.Seq, domain.PendingRegenerate, func(gctx context.Context) domain.BusinessRecord {
		return c.gen.RegenerateHeadline(gctx, rec)
	})
	return next, nil
}

// Reset discards the record and any pending state; the session is Idle afterwards.
func (c *Coordinator) Reset(ctx context.Context, sid string) error {
	unlock := c.lock(sid)
	defer unlock()

	if err := c.store.Del(ctx, sid); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	log.Ctx(ctx).Debug().Str("session", sid).Msg("session reset")
	return nil
}

// Wait blocks until every started generation has resolved.
func (c *Coordinator) Wait() { c.wg.Wait() }

func (c *Coordinator) save(ctx context.Context, sid string, v domain.SessionView) error {
	if err := c.store.Set(ctx, sid, v, c.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (c *Coordinator) launch(ctx context.Context, sid string, seq uint64, kind domain.Pending, run func(context.Context) domain.BusinessRecord) {
	// keep request-scoped values (logger, request id) but not its cancellation
	gctx := context.WithoutCancel(ctx)

	// tracked before the goroutine starts so View never sees an untracked gap
	c.track(seq)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.untrack(seq)
		start := c.now()

		if err := c.sem.Acquire(gctx, 1); err != nil {
			log.Ctx(gctx).Error().Err(err).Str("session", sid).Msg("semaphore acquire failed")
			return
		}
		observability.GenerationsInflight.Inc()
		rec := run(gctx)
		observability.GenerationsInflight.Dec()
		c.sem.Release(1)

		applied := c.resolve(gctx, sid, seq, rec)
		observability.ObserveGeneration(string(kind), applied, c.now().Sub(start))
	}()
}

// resolve stores rec as the Ready record if the session is still in the Loading
// state that started this generation.
func (c *Coordinator) resolve(ctx context.Context, sid string, seq uint64, rec domain.BusinessRecord) bool {
	unlock := c.lock(sid)
	defer unlock()

	l := log.Ctx(ctx).With().Str("session", sid).Uint64("seq", seq).Logger()
	cur, ok, err := c.store.Get(ctx, sid)
	if err != nil {
		l.Error().Err(err).Msg("load session on resolve failed")
		return false
	}
	if !ok || cur.Seq != seq || !cur.Loading() {
		l.Debug().Msg("generation result dropped; session moved on")
		return false
	}

	next := domain.SessionView{
		Phase:     domain.PhaseReady,
		Record:    &rec,
		Seq:       c.nextSeq(),
		UpdatedAt: c.now(),
	}
	if err := c.save(ctx, sid, next); err != nil {
		l.Error().Err(err).Msg("store generated record failed")
		return false
	}
	l.Info().Float64("rating", rec.Rating).Int("reviews", rec.Reviews).Msg("generation resolved")
	return true
}
