package web

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyRuns is returned when every validation slot stays busy for the
// whole wait window.
var ErrTooManyRuns = errors.New("too many validation runs in progress, please try again later")

// RunLimiter bounds the number of validation runs executing at once. Each run
// holds a slot from Acquire until Release; waiters give up after maxWait.
type RunLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
	waiting atomic.Int64
}

// RunLimiterStatus is a point-in-time view of the limiter, reported by /healthz.
type RunLimiterStatus struct {
	Active    int `json:"active"`
	Waiting   int `json:"waiting"`
	Available int `json:"available"`
	Max       int `json:"max"`
}

// NewRunLimiter allows maxConcurrent runs. Non-positive arguments fall back
// to one slot and a five second wait.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	return &RunLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait. It returns ErrTooManyRuns on
// timeout and ctx.Err() if ctx ends first. Callers must Release on success.
func (l *RunLimiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	default:
	}

	l.waiting.Add(1)
	defer l.waiting.Add(-1)

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyRuns
	}
}

// Release returns a slot taken by Acquire.
func (l *RunLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active returns the number of runs holding a slot.
func (l *RunLimiter) Active() int {
	return int(l.active.Load())
}

// Status reports slot usage.
func (l *RunLimiter) Status() RunLimiterStatus {
	return RunLimiterStatus{
		Active:    l.Active(),
		Waiting:   int(l.waiting.Load()),
		Available: cap(l.slots) - len(l.slots),
		Max:       cap(l.slots),
	}
}

// WaitForDrain blocks until no run holds a slot or ctx ends. Used during
// shutdown so in-flight validations can finish.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
