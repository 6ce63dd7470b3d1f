// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package handoff

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterEntry holds a per-host rate limiter and the last time it was used.
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter implements per-host token-bucket rate limiting with
// periodic eviction of idle entries.
type rateLimiter struct {
	mu       sync.Mutex
	entries  map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	stopCh   chan struct{}
	stopOnce sync.Once
	staleAge time.Duration
	interval time.Duration
}

// newRateLimiter creates a per-host rate limiter. The cleanup goroutine
// runs every cleanupInterval and drops entries idle for longer than
// staleAge.
func newRateLimiter(r float64, burst int, staleAge, cleanupInterval time.Duration) *rateLimiter {
	rl := &rateLimiter{
		entries:  make(map[string]*limiterEntry),
		rate:     rate.Limit(r),
		burst:    burst,
		stopCh:   make(chan struct{}),
		staleAge: staleAge,
		interval: cleanupInterval,
	}
	go rl.cleanup()
	return rl
}

// Allow reports whether a request from addr should be permitted. addr may
// be a bare host or a host:port pair; the port is ignored.
func (rl *rateLimiter) Allow(addr string) bool {
	host := hostOf(addr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.entries[host]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.entries[host] = e
	}
	e.lastSeen = time.Now()
	return e.limiter.Allow()
}

// Len returns the number of tracked hosts.
func (rl *rateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

// Stop halts the background cleanup goroutine. It is safe to call more
// than once.
func (rl *rateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for host, e := range rl.entries {
				if now.Sub(e.lastSeen) > rl.staleAge {
					delete(rl.entries, host)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func hostOf(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
