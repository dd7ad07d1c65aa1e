// Package clock provides the time source used for job, catalog and delivery
// timestamps.
//
// Production code calls clock.Now() and clock.Since() instead of the time
// package so tests can pin timestamps:
//
//	clock.Set(clock.FixedClock{Time: fixed})
//	t.Cleanup(clock.Reset)
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

var (
	mu      sync.RWMutex
	current Clock = RealClock{}
)

// Now returns the current time from the active clock.
func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return current.Now()
}

// Since returns the time elapsed since t according to the active clock.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}

// Set replaces the active clock.
func Set(c Clock) {
	mu.Lock()
	defer mu.Unlock()
	current = c
}

// Reset restores the real clock. Call in test cleanup.
func Reset() {
	Set(RealClock{})
}

// RealClock uses the system time in UTC.
type RealClock struct{}

// Now returns the current UTC time.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant.
type FixedClock struct {
	Time time.Time
}

// Now returns the fixed time.
func (c FixedClock) Now() time.Time {
	return c.Time
}

// StepClock starts at Start and moves forward by Step on every call to Now.
// Elapsed-time measurements taken with it are deterministic.
type StepClock struct {
	Start time.Time
	Step  time.Duration

	mu    sync.Mutex
	calls int
}

// Now returns Start + n*Step for the n-th call (zero-based).
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.Start.Add(time.Duration(c.calls) * c.Step)
	c.calls++
	return t
}
