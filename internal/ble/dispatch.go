package ble

import (
	"errors"

	"github.com/pshapiro/cubealarm/internal/gan"
)

// PendingCommand is one queued opcode payload awaiting encryption and
// delivery. Created by Submit, destroyed on success or retry exhaustion.
type PendingCommand struct {
	payload     []byte
	retries     int
	nextAttempt Ticks
	poll        bool // a rate-limited facelets poll; at most one queued
}

// DispatcherConfig tunes the retry scheduler.
type DispatcherConfig struct {
	RetryBudget     int   // attempts per command
	RetryIntervalMs int32 // delay after a failed (non-busy) attempt
	RearmMs         int32 // shorter delay after a busy failure
	PollDelayMs     int32 // defer between a move event and its state poll
	PollMinGapMs    int32 // rate limit between state polls
	MaxQueue        int
}

// DefaultDispatcherConfig mirrors the firmware's tuning: 3 retries at 200ms,
// polls deferred 80ms and rate-limited to one per 250ms.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		RetryBudget:     3,
		RetryIntervalMs: 200,
		RearmMs:         50,
		PollDelayMs:     80,
		PollMinGapMs:    250,
		MaxQueue:        16,
	}
}

// Dispatcher queues outgoing commands and drains them from the session
// tick, outside the transport callback context. Delivery is advisory
// telemetry polling: exhausted commands are dropped, not reported.
type Dispatcher struct {
	cfg      DispatcherConfig
	queue    []*PendingCommand
	pollGate Ticks
	gateSet  bool
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = 1
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = 16
	}
	return &Dispatcher{cfg: cfg}
}

// Submit enqueues a command payload for delivery no earlier than now.
func (d *Dispatcher) Submit(payload []byte, now Ticks) {
	d.enqueue(payload, now, false)
}

func (d *Dispatcher) enqueue(payload []byte, at Ticks, poll bool) {
	if len(d.queue) >= d.cfg.MaxQueue {
		return
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	d.queue = append(d.queue, &PendingCommand{
		payload:     p,
		retries:     d.cfg.RetryBudget,
		nextAttempt: at,
		poll:        poll,
	})
}

// SchedulePoll queues a rate-limited full-state request in response to a
// move event. Each move would otherwise trigger a redundant poll, so polls
// are deferred slightly and capped to one per PollMinGapMs. Reports whether
// a poll was scheduled.
func (d *Dispatcher) SchedulePoll(now Ticks) bool {
	if d.gateSet && !reached(now, d.pollGate) {
		return false
	}
	for _, cmd := range d.queue {
		if cmd.poll {
			return false
		}
	}
	d.pollGate = now.Add(d.cfg.PollMinGapMs)
	d.gateSet = true
	d.enqueue(gan.RequestFacelets(), now.Add(d.cfg.PollDelayMs), true)
	return true
}

// Tick attempts delivery of the head command if it is due and the session
// cooldown gate has passed. One write per tick keeps the transport serial.
// A busy failure re-arms at a short interval without consuming a retry; any
// other failure consumes one, and exhaustion drops the command.
func (d *Dispatcher) Tick(now, gate Ticks, write func(payload []byte) error) {
	if len(d.queue) == 0 || !reached(now, gate) {
		return
	}
	cmd := d.queue[0]
	if !reached(now, cmd.nextAttempt) {
		return
	}

	err := write(cmd.payload)
	switch {
	case err == nil:
		d.queue = d.queue[1:]
	case errors.Is(err, ErrBusy):
		cmd.nextAttempt = now.Add(d.cfg.RearmMs)
	default:
		cmd.retries--
		if cmd.retries <= 0 {
			d.queue = d.queue[1:]
			return
		}
		cmd.nextAttempt = now.Add(d.cfg.RetryIntervalMs)
	}
}

// Pending returns the number of queued commands.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Reset discards all queued commands and the poll rate limiter. Called on
// disconnect: a new session starts with empty queues.
func (d *Dispatcher) Reset() {
	d.queue = nil
	d.gateSet = false
}
