// Package ratelimit throttles command usage per user so one person cannot
// spam expensive commands.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limit describes a per-user allowance for one command.
type Limit struct {
	Every time.Duration // sustained rate: one use per Every
	Burst int
}

// Limiter hands out a token-bucket limiter per (user, command) pair.
// Entries idle past the janitor horizon are dropped to keep the map bounded.
type Limiter struct {
	defaults  Limit
	overrides map[string]Limit

	mu      sync.Mutex
	buckets map[string]*bucket

	stop chan struct{}
	once sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New builds a limiter with a default allowance and optional per-command
// overrides keyed by command name.
func New(defaults Limit, overrides map[string]Limit) *Limiter {
	if defaults.Every <= 0 {
		defaults.Every = 3 * time.Second
	}
	if defaults.Burst < 1 {
		defaults.Burst = 3
	}

	l := &Limiter{
		defaults:  defaults,
		overrides: overrides,
		buckets:   make(map[string]*bucket),
		stop:      make(chan struct{}),
	}
	go l.janitor()
	return l
}

// Allow reports whether the user may run the command now, consuming a token
// when allowed.
func (l *Limiter) Allow(userID, command string) bool {
	limit := l.defaults
	if override, ok := l.overrides[command]; ok {
		limit = override
	}

	key := userID + ":" + command

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(limit.Every), limit.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = time.Now()
	l.mu.Unlock()

	return b.limiter.Allow()
}

// RetryAfter estimates how long until the user's next allowed use. Zero means
// a use is available immediately.
func (l *Limiter) RetryAfter(userID, command string) time.Duration {
	key := userID + ":" + command

	l.mu.Lock()
	b, ok := l.buckets[key]
	l.mu.Unlock()
	if !ok {
		return 0
	}

	res := b.limiter.Reserve()
	delay := res.Delay()
	res.Cancel()
	return delay
}

// Close stops the janitor goroutine.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
		}

		horizon := time.Now().Add(-10 * time.Minute)
		l.mu.Lock()
		for key, b := range l.buckets {
			if b.lastSeen.Before(horizon) {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}
