package ble

import "time"

// Ticks is a millisecond timestamp from a monotonic source that is allowed
// to roll over. Never compare Ticks directly; go through Diff, whose signed
// subtraction stays correct across the wraparound.
type Ticks uint32

// Diff returns a-b in milliseconds, wraparound-safe.
func Diff(a, b Ticks) int32 {
	return int32(a - b)
}

// Add offsets a timestamp by ms milliseconds.
func (t Ticks) Add(ms int32) Ticks {
	return t + Ticks(ms)
}

// reached reports whether now is at or past deadline.
func reached(now, deadline Ticks) bool {
	return Diff(now, deadline) >= 0
}

// Clock supplies the current tick count. Tests substitute a manual clock.
type Clock interface {
	Now() Ticks
}

type monotonicClock struct {
	start time.Time
}

// NewClock returns a Clock backed by the runtime monotonic clock.
func NewClock() Clock {
	return &monotonicClock{start: time.Now()}
}

func (c *monotonicClock) Now() Ticks {
	return Ticks(time.Since(c.start).Milliseconds())
}
