package components

import (
	"sync"
	"time"
)

// RateLimiter enforces a per-user cooldown between generation requests.
type RateLimiter struct {
	users map[string]time.Time
	mu    sync.Mutex
	limit time.Duration
}

func NewRateLimiter(limit time.Duration) *RateLimiter {
	return &RateLimiter{
		users: map[string]time.Time{},
		limit: limit,
	}
}

// CanUse reports whether the user is allowed to fire a request now and, if
// so, stamps the attempt.
func (r *RateLimiter) CanUse(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	lastUse, exists := r.users[userID]
	if !exists || time.Since(lastUse) >= r.limit {
		if len(r.users) > 4096 {
			r.prune()
		}
		r.users[userID] = time.Now()
		return true
	}
	return false
}

// TimeUntilNext returns how long the user must still wait, zero when the
// cooldown has passed.
func (r *RateLimiter) TimeUntilNext(userID string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	lastUse, exists := r.users[userID]
	if !exists {
		return 0
	}
	elapsed := time.Since(lastUse)
	if elapsed >= r.limit {
		return 0
	}
	return r.limit - elapsed
}

// prune drops expired stamps. Caller holds the lock.
func (r *RateLimiter) prune() {
	cutoff := time.Now().Add(-r.limit)
	for id, stamp := range r.users {
		if stamp.Before(cutoff) {
			delete(r.users, id)
		}
	}
}
