// Package ratelimit throttles comment creation per user per thread. State
// is process-local and best-effort; horizontal scaling would need a shared
// store behind the same interface.
package ratelimit

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// Scope is the dimension a cool-down is keyed on, e.g. one note's comment
// thread.
type Scope string

func NoteScope(noteID string) Scope { return Scope("note::" + noteID) }
func BlogScope(blogID string) Scope { return Scope("blog::" + blogID) }

// Store decides whether a user may post in a scope right now. The check and
// the timestamp record are a single atomic operation.
type Store interface {
	Allow(userID string, scope Scope) bool
}

// Pool is the in-memory Store: one rate.Limiter per (user, scope) key with
// burst 1 and a refill interval equal to the cool-down, held in a bounded
// LRU so sustained traffic cannot grow the map without limit.
type Pool struct {
	mu       sync.Mutex
	entries  *lru.Cache[string, *rate.Limiter]
	cooldown time.Duration
	now      func() time.Time
}

type Option func(*Pool)

// WithClock overrides the pool's clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// NewPool creates a Pool allowing one post per cooldown per key, remembering
// at most maxEntries keys.
func NewPool(cooldown time.Duration, maxEntries int, opts ...Option) *Pool {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	cache, err := lru.New[string, *rate.Limiter](maxEntries)
	if err != nil {
		// lru.New only errors on a non-positive size.
		panic(err)
	}
	p := &Pool{
		entries:  cache,
		cooldown: cooldown,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Allow reports whether userID may post in scope now, consuming the slot if
// so. Anonymous users (empty id) are exempt; the punishment gate's IP checks
// are the substitute control for them.
func (p *Pool) Allow(userID string, scope Scope) bool {
	if userID == "" {
		return true
	}
	key := string(scope) + "::" + userID

	p.mu.Lock()
	limiter, ok := p.entries.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rate.Every(p.cooldown), 1)
		p.entries.Add(key, limiter)
	}
	p.mu.Unlock()

	return limiter.AllowN(p.now(), 1)
}
