// Package timelock is the delayed-execution governance utility: an admin
// queues named calls that become executable only after a fixed minimum
// delay, and expire after a grace window. It is standalone tooling; the
// auction core does not depend on it.
package timelock

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// MinimumDelay is the shortest configurable execution delay.
	MinimumDelay = 2 * 24 * time.Hour
	// MaximumDelay is the longest configurable execution delay.
	MaximumDelay = 30 * 24 * time.Hour
	// GracePeriod is how long past its ETA a queued call stays executable.
	GracePeriod = 14 * 24 * time.Hour
)

var (
	// ErrNotAdmin is returned for admin-only operations by a non-admin.
	ErrNotAdmin = errors.New("timelock: caller is not admin")

	// ErrDelayOutOfRange is returned when a delay is outside
	// [MinimumDelay, MaximumDelay].
	ErrDelayOutOfRange = errors.New("timelock: delay out of range")

	// ErrETATooSoon is returned when a queued call's ETA does not satisfy
	// the configured delay.
	ErrETATooSoon = errors.New("timelock: eta must satisfy delay")

	// ErrNotQueued is returned when executing or cancelling a call that was
	// never queued or was already consumed.
	ErrNotQueued = errors.New("timelock: call not queued")

	// ErrNotReady is returned when executing a call before its ETA.
	ErrNotReady = errors.New("timelock: call has not surpassed eta")

	// ErrStale is returned when executing a call past its grace window.
	ErrStale = errors.New("timelock: call is stale")

	// ErrUnknownTarget is returned when no handler is registered for a
	// call's target/signature.
	ErrUnknownTarget = errors.New("timelock: no handler for call")
)

// Call identifies one queued invocation. Data is opaque to the timelock and
// handed verbatim to the registered handler.
type Call struct {
	Target    string
	Signature string
	Data      []byte
	ETA       time.Time
}

// Hash is the queue key: sha256 over the call's identifying fields.
func (c Call) Hash() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%x|%d", c.Target, c.Signature, c.Data, c.ETA.Unix())))
	return fmt.Sprintf("%x", sum)
}

// Handler executes a call's payload once its timelock has elapsed.
type Handler func(data []byte) error

// Timelock queues, cancels, and executes delayed calls under a single admin.
type Timelock struct {
	mu           sync.Mutex
	admin        string
	pendingAdmin string
	delay        time.Duration
	queued       map[string]time.Time // call hash → eta
	handlers     map[string]Handler   // target|signature → handler
	now          func() time.Time
}

func New(admin string, delay time.Duration) (*Timelock, error) {
	if delay < MinimumDelay || delay > MaximumDelay {
		return nil, fmt.Errorf("%w: %s", ErrDelayOutOfRange, delay)
	}
	return &Timelock{
		admin:    admin,
		delay:    delay,
		queued:   make(map[string]time.Time),
		handlers: make(map[string]Handler),
		now:      time.Now,
	}, nil
}

// SetClock overrides the clock, for tests.
func (t *Timelock) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

func (t *Timelock) Admin() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.admin
}

func (t *Timelock) Delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delay
}

// Register binds a handler to a target/signature pair.
func (t *Timelock) Register(target, signature string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[target+"|"+signature] = h
}

// Queue schedules a call. The ETA must be at least delay in the future.
func (t *Timelock) Queue(caller string, c Call) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if caller != t.admin {
		return "", fmt.Errorf("queue: %w", ErrNotAdmin)
	}
	if c.ETA.Before(t.now().Add(t.delay)) {
		return "", fmt.Errorf("queue: %w", ErrETATooSoon)
	}
	h := c.Hash()
	t.queued[h] = c.ETA
	return h, nil
}

// Cancel removes a queued call.
func (t *Timelock) Cancel(caller string, c Call) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if caller != t.admin {
		return fmt.Errorf("cancel: %w", ErrNotAdmin)
	}
	h := c.Hash()
	if _, ok := t.queued[h]; !ok {
		return fmt.Errorf("cancel: %w", ErrNotQueued)
	}
	delete(t.queued, h)
	return nil
}

// Queued reports whether a call is currently queued.
func (t *Timelock) Queued(c Call) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.queued[c.Hash()]
	return ok
}

// Execute runs a queued call whose ETA has passed and whose grace window has
// not. The call is consumed whether or not the handler succeeds; a stale
// call is dropped from the queue.
func (t *Timelock) Execute(caller string, c Call) error {
	t.mu.Lock()

	if caller != t.admin {
		t.mu.Unlock()
		return fmt.Errorf("execute: %w", ErrNotAdmin)
	}
	h := c.Hash()
	eta, ok := t.queued[h]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("execute: %w", ErrNotQueued)
	}
	now := t.now()
	if now.Before(eta) {
		t.mu.Unlock()
		return fmt.Errorf("execute: %w", ErrNotReady)
	}
	if now.After(eta.Add(GracePeriod)) {
		delete(t.queued, h)
		t.mu.Unlock()
		return fmt.Errorf("execute: %w", ErrStale)
	}
	handler, ok := t.handlers[c.Target+"|"+c.Signature]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("execute %s.%s: %w", c.Target, c.Signature, ErrUnknownTarget)
	}
	delete(t.queued, h)
	t.mu.Unlock()

	// The handler runs outside the lock so it may queue follow-up calls.
	if err := handler(c.Data); err != nil {
		return fmt.Errorf("execute %s.%s: %w", c.Target, c.Signature, err)
	}
	return nil
}

// SetDelay changes the execution delay. Meant to be invoked from a handler
// the timelock governs itself with, mirroring the admin handover flow.
func (t *Timelock) SetDelay(delay time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if delay < MinimumDelay || delay > MaximumDelay {
		return fmt.Errorf("setDelay: %w: %s", ErrDelayOutOfRange, delay)
	}
	t.delay = delay
	return nil
}

// SetPendingAdmin nominates a successor admin.
func (t *Timelock) SetPendingAdmin(caller, pending string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.admin {
		return fmt.Errorf("setPendingAdmin: %w", ErrNotAdmin)
	}
	t.pendingAdmin = pending
	return nil
}

// AcceptAdmin completes the handover; only the nominated successor may call.
func (t *Timelock) AcceptAdmin(caller string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pendingAdmin == "" || caller != t.pendingAdmin {
		return fmt.Errorf("acceptAdmin: %w", ErrNotAdmin)
	}
	t.admin = caller
	t.pendingAdmin = ""
	return nil
}
