package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type keyedEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter holds one token bucket per key (a phone number, an IP).
// Buckets idle for longer than idleTTL are dropped by Sweep.
type KeyedLimiter struct {
	mu      sync.RWMutex
	entries map[string]*keyedEntry
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
}

// NewKeyedLimiter allows burst events per key and refills one event every
// interval.
func NewKeyedLimiter(interval time.Duration, burst int) *KeyedLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &KeyedLimiter{
		entries: make(map[string]*keyedEntry),
		limit:   rate.Every(interval),
		burst:   burst,
		idleTTL: 10 * interval,
	}
}

// Allow reports whether key may proceed now and consumes a token if so.
func (l *KeyedLimiter) Allow(key string) bool {
	return l.get(key).Allow()
}

func (l *KeyedLimiter) get(key string) *rate.Limiter {
	now := time.Now()

	l.mu.RLock()
	e, ok := l.entries[key]
	l.mu.RUnlock()
	if ok {
		l.mu.Lock()
		e.lastSeen = now
		l.mu.Unlock()
		return e.limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	e = &keyedEntry{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
	l.entries[key] = e
	return e.limiter
}

// Sweep removes buckets that have not been used for idleTTL.
func (l *KeyedLimiter) Sweep() {
	cutoff := time.Now().Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}

// Len returns the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
