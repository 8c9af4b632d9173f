package gateway

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a per-client token bucket limiter
type RateLimiter struct {
	buckets    map[string]*tokenBucket
	bucketsMux sync.RWMutex
	limit      int
	period     time.Duration
	now        func() time.Time
}

type tokenBucket struct {
	tokens     int
	lastRefill time.Time
	lastSeen   time.Time
	mutex      sync.Mutex
}

// NewRateLimiter allows limit requests per period for each client key
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// Allow takes a token from key's bucket, refilling it in proportion to the
// time elapsed since the last refill. A client pacing its requests evenly
// gets the full limit per period.
func (rl *RateLimiter) Allow(key string) bool {
	bucket := rl.getBucket(key)

	bucket.mutex.Lock()
	defer bucket.mutex.Unlock()

	now := rl.now()
	bucket.lastSeen = now

	elapsed := now.Sub(bucket.lastRefill)
	if elapsed >= rl.period {
		bucket.tokens = rl.limit
		bucket.lastRefill = now
	} else if refill := int(elapsed * time.Duration(rl.limit) / rl.period); refill > 0 {
		// Advance only by the time the granted tokens account for so the
		// remainder counts towards the next token.
		bucket.tokens = min(bucket.tokens+refill, rl.limit)
		bucket.lastRefill = bucket.lastRefill.Add(time.Duration(refill) * rl.period / time.Duration(rl.limit))
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}
	return false
}

// Remaining returns the tokens left for key without consuming one
func (rl *RateLimiter) Remaining(key string) int {
	rl.bucketsMux.RLock()
	bucket, ok := rl.buckets[key]
	rl.bucketsMux.RUnlock()
	if !ok {
		return rl.limit
	}

	bucket.mutex.Lock()
	defer bucket.mutex.Unlock()
	return bucket.tokens
}

func (rl *RateLimiter) getBucket(key string) *tokenBucket {
	rl.bucketsMux.RLock()
	bucket, exists := rl.buckets[key]
	rl.bucketsMux.RUnlock()
	if exists {
		return bucket
	}

	rl.bucketsMux.Lock()
	defer rl.bucketsMux.Unlock()

	if bucket, exists := rl.buckets[key]; exists {
		return bucket
	}

	now := rl.now()
	bucket = &tokenBucket{
		tokens:     rl.limit,
		lastRefill: now,
		lastSeen:   now,
	}
	rl.buckets[key] = bucket
	return bucket
}

// cleanup drops buckets idle for longer than maxIdle
func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	rl.bucketsMux.Lock()
	defer rl.bucketsMux.Unlock()

	cutoff := rl.now().Add(-maxIdle)
	for key, bucket := range rl.buckets {
		bucket.mutex.Lock()
		if bucket.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
		bucket.mutex.Unlock()
	}
}

// StartCleanup drops idle buckets every interval until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup(interval)
			}
		}
	}()
}
