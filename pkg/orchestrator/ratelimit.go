package orchestrator

import (
	"sync"
	"time"
)

// RateLimiter is a sliding 60s-window limiter keyed by caller (the
// scanning client's IP in the excluded HTTP layer; a domain or org id in
// direct core callers). Kept in-process: a single orchestrator instance
// is expected per process, matching the teacher's in-memory throttle in
// pkg/engine/ratelimit before any distributed limiter was needed.
type RateLimiter struct {
	mu       sync.Mutex
	window   time.Duration
	limit    int
	requests map[string][]time.Time
	now      func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		window:   window,
		limit:    limit,
		requests: map[string][]time.Time{},
		now:      time.Now,
	}
}

// Allow records a request attempt for key and reports whether it falls
// within the sliding window's limit.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.window)

	kept := r.requests[key][:0]
	for _, t := range r.requests[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= r.limit {
		r.requests[key] = kept
		return false
	}

	r.requests[key] = append(kept, now)
	return true
}
