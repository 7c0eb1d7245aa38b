package core

// load_limiter.go implements concurrency control for file loads.
//
// Every load decodes and parses a whole file in memory, so the limiter uses
// a semaphore to cap how many run at once. When all slots are occupied, new
// requests wait up to maxWait before failing with ErrTooManyLoads.
//
// The limiter also supports graceful shutdown via WaitForDrain, which blocks
// until all active loads complete.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyLoads is returned when all load slots are occupied and the wait
// timeout expires. Clients should retry after a short delay.
var ErrTooManyLoads = errors.New("too many concurrent loads, please try again later")

// DefaultMaxConcurrentLoads is the default limit for parallel loads.
const DefaultMaxConcurrentLoads = 4

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 10 * time.Second

// LoadLimiter caps concurrent file loads using a semaphore.
type LoadLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewLoadLimiter creates a limiter that allows at most maxConcurrent
// simultaneous loads. Requests that cannot acquire a slot within maxWait
// receive ErrTooManyLoads.
func NewLoadLimiter(maxConcurrent int, maxWait time.Duration) *LoadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentLoads
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &LoadLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire attempts to acquire a load slot.
// Returns nil on success, ErrTooManyLoads if the wait timeout expires.
// The caller MUST call Release() when the load completes (use defer).
func (l *LoadLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		// Distinguish caller cancellation from a slot timeout.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyLoads
	}
}

// TryAcquire attempts to acquire a slot without blocking.
func (l *LoadLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release releases a previously acquired slot.
// Must be called exactly once for each successful Acquire/TryAcquire.
func (l *LoadLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of currently active loads.
func (l *LoadLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the maximum allowed concurrent loads.
func (l *LoadLimiter) MaxConcurrent() int {
	return cap(l.semaphore)
}

// Available returns the number of free slots.
func (l *LoadLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until all active loads complete or the context is
// cancelled. Used for graceful shutdown.
func (l *LoadLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// LoadLimiterStatus is a snapshot of the limiter's current state.
type LoadLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the current limiter state for monitoring.
func (l *LoadLimiter) Status() LoadLimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return LoadLimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
