package app

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"biz_dashboard/internal/domain"
)

// headlineTemplates use {name} and {location} slots, substituted verbatim.
var headlineTemplates = []string{
	"Why {name} is {location}'s Best-Kept Secret in 2025",
	"{name}: The {location} Business Everyone's Talking About",
	"How {name} Became {location}'s Top-Rated Local Favorite",
	"{name} Dominates {location}'s Market - Here's Why",
	"The Rise of {name}: {location}'s Premier Business Success Story",
	"{name} Sets New Standards for Excellence in {location}",
	"Local {location} Gem: {name} Exceeds All Expectations",
	"{name}: Transforming the {location} Business Landscape",
}

// HeadlineTemplates returns a copy of the fixed template set.
func HeadlineTemplates() []string {
	return append([]string(nil), headlineTemplates...)
}

// RenderHeadline fills one template. Single pass, so a name containing
// "{location}" is kept as typed.
func RenderHeadline(tmpl, name, location string) string {
	return strings.NewReplacer("{name}", name, "{location}", location).Replace(tmpl)
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.Intn(n) }

type GeneratorOption func(*Generator)

// WithRand swaps the random source; calls into it are serialized.
func WithRand(r domain.Rand) GeneratorOption {
	return func(g *Generator) { g.rnd = r }
}

// WithDelays overrides the simulated latency of the initial generation and of a regeneration.
func WithDelays(initial, regenerate time.Duration) GeneratorOption {
	return func(g *Generator) { g.initialDelay, g.regenDelay = initial, regenerate }
}

// Generator produces mocked business metrics. It performs no I/O and cannot fail.
type Generator struct {
	mu           sync.Mutex
	rnd          domain.Rand
	initialDelay time.Duration
	regenDelay   time.Duration
}

func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		rnd:          globalRand{},
		initialDelay: 1500 * time.Millisecond,
		regenDelay:   800 * time.Millisecond,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate waits out the initial delay and builds a fresh record.
// A done ctx only shortens the wait.
func (g *Generator) Generate(ctx context.Context, name, location string) domain.BusinessRecord {
	sleepCtx(ctx, g.initialDelay)

	g.mu.Lock()
	defer g.mu.Unlock()
	return domain.BusinessRecord{
		Name:     name,
		Location: location,
		Rating:   math.Round((3.5+g.rnd.Float64()*1.5)*10) / 10,
		Reviews:  int(math.Floor(50 + g.rnd.Float64()*200)),
		Headline: g.headlineLocked(name, location),
	}
}

// RegenerateHeadline draws a new headline for rec; every other field is kept.
// The previous headline may come up again.
func (g *Generator) RegenerateHeadline(ctx context.Context, rec domain.BusinessRecord) domain.BusinessRecord {
	sleepCtx(ctx, g.regenDelay)

	g.mu.Lock()
	defer g.mu.Unlock()
	return rec.WithHeadline(g.headlineLocked(rec.Name, rec.Location))
}

func (g *Generator) longestDelay() time.Duration {
	return max(g.initialDelay, g.regenDelay)
}

func (g *Generator) headlineLocked(name, location string) string {
	return RenderHeadline(headlineTemplates[g.rnd.IntN(len(headlineTemplates))], name, location)
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
