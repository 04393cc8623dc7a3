// Package rate holds in-process fixed-window counters. State is per process
// and lost on restart.
package rate

import (
	"sync"
	"time"
)

type bucket struct {
	count int
	start time.Time
}

type Limiter struct {
	mu      sync.Mutex
	buckets map[string]bucket
	lastGC  time.Time
	now     func() time.Time
}

func NewLimiter() *Limiter {
	return newLimiterAt(time.Now)
}

func newLimiterAt(now func() time.Time) *Limiter {
	return &Limiter{buckets: map[string]bucket{}, lastGC: now().UTC(), now: now}
}

// Allow counts one hit against key. When the window is exhausted it returns
// false and the time left until the window resets.
func (l *Limiter) Allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now().UTC()
	if now.Sub(l.lastGC) > time.Minute {
		for k, b := range l.buckets {
			if now.Sub(b.start) > 3*window {
				delete(l.buckets, k)
			}
		}
		l.lastGC = now
	}
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.start) >= window {
		l.buckets[key] = bucket{count: 1, start: now}
		return true, 0
	}
	if b.count >= limit {
		return false, window - now.Sub(b.start)
	}
	b.count++
	l.buckets[key] = b
	return true, 0
}
