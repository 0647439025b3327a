// Package timer implements the rest timer shown between sets.
//
// Remaining time is always derived from a stored end time (or a frozen
// remainder while paused), never by counting ticks, so missed or coalesced
// ticks cannot drift the countdown.
package timer

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Status is the state of the rest timer.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusExpired Status = "expired"
)

// ErrInvalidState is returned when an operation is not valid in the current status.
var ErrInvalidState = errors.New("timer: invalid state")

// EventKind distinguishes countdown updates from the completion signal.
type EventKind int

const (
	EventTick EventKind = iota
	EventExpired
)

// Event is emitted on Events() while the timer runs.
type Event struct {
	Kind      EventKind
	Remaining time.Duration
	BlockRef  string
}

// State is a snapshot of the timer.
type State struct {
	Status           Status        `json:"status"`
	RemainingSeconds int           `json:"remaining_seconds"`
	Duration         time.Duration `json:"duration"`
	EndsAt           time.Time     `json:"ends_at,omitzero"`
	BlockRef         string        `json:"block_ref,omitempty"`
	Minimized        bool          `json:"minimized"`
}

// Option configures a Timer.
type Option func(*Timer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Timer) { t.now = now }
}

// WithTickInterval sets how often EventTick fires while running.
func WithTickInterval(d time.Duration) Option {
	return func(t *Timer) { t.interval = d }
}

// Timer is a rest countdown with Idle, Running, Paused and Expired states.
type Timer struct {
	mu       sync.Mutex
	now      func() time.Time
	interval time.Duration
	events   chan Event
	closed   bool

	status    Status
	duration  time.Duration
	endsAt    time.Time     // valid while running
	frozen    time.Duration // valid while paused
	blockRef  string
	minimized bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates an idle Timer.
func New(opts ...Option) *Timer {
	t := &Timer{
		now:      time.Now,
		interval: time.Second,
		events:   make(chan Event, 32),
		status:   StatusIdle,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Events returns the channel of tick and expiry events. It is closed by Close.
func (t *Timer) Events() <-chan Event {
	return t.events
}

// Start begins a countdown of d for the given exercise block, replacing any
// countdown already in progress.
func (t *Timer) Start(d time.Duration, blockRef string) error {
	if d <= 0 {
		return fmt.Errorf("timer: duration must be positive, got %s", d)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrInvalidState
	}

	t.stopTicker()
	t.status = StatusRunning
	t.duration = d
	t.endsAt = t.now().Add(d)
	t.frozen = 0
	t.blockRef = blockRef
	t.startTicker()
	return nil
}

// Pause freezes a running countdown.
func (t *Timer) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.refresh()
	if t.status != StatusRunning {
		return fmt.Errorf("pause while %s: %w", t.status, ErrInvalidState)
	}
	t.frozen = t.endsAt.Sub(t.now())
	t.status = StatusPaused
	t.stopTicker()
	return nil
}

// Resume continues a paused countdown from its frozen remainder.
func (t *Timer) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusPaused {
		return fmt.Errorf("resume while %s: %w", t.status, ErrInvalidState)
	}
	t.status = StatusRunning
	t.endsAt = t.now().Add(t.frozen)
	t.frozen = 0
	t.refresh()
	if t.status == StatusRunning {
		t.startTicker()
	}
	return nil
}

// AddSeconds extends (or, with a negative delta, shortens) a running or paused
// countdown. Remaining time never drops below zero.
func (t *Timer) AddSeconds(delta int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.refresh()
	d := time.Duration(delta) * time.Second
	switch t.status {
	case StatusRunning:
		now := t.now()
		t.endsAt = t.endsAt.Add(d)
		if t.endsAt.Before(now) {
			t.endsAt = now
		}
		t.refresh()
	case StatusPaused:
		t.frozen = max(t.frozen+d, 0)
	default:
		return fmt.Errorf("add seconds while %s: %w", t.status, ErrInvalidState)
	}
	return nil
}

// Skip returns the timer to Idle from any state. No events fire afterwards
// until the next Start.
func (t *Timer) Skip() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset()
}

// Dismiss clears an expired countdown. It is a no-op in any other state.
func (t *Timer) Dismiss() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.refresh()
	if t.status == StatusExpired {
		t.reset()
	}
}

// SetMinimized records whether the timer UI is collapsed.
func (t *Timer) SetMinimized(minimized bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.minimized = minimized
}

// State returns a snapshot, expiring the countdown first if its end time passed.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.refresh()
	s := State{
		Status:    t.status,
		Duration:  t.duration,
		BlockRef:  t.blockRef,
		Minimized: t.minimized,
	}
	s.RemainingSeconds = ceilSeconds(t.remaining())
	if t.status == StatusRunning {
		s.EndsAt = t.endsAt
	}
	return s
}

// RemainingSeconds is a shorthand for State().RemainingSeconds.
func (t *Timer) RemainingSeconds() int {
	return t.State().RemainingSeconds
}

// Close stops the ticker goroutine and closes the event channel.
func (t *Timer) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.reset()
	t.closed = true
	t.mu.Unlock()

	t.wg.Wait()
	close(t.events)
}

// remaining is the countdown left. Caller holds t.mu.
func (t *Timer) remaining() time.Duration {
	switch t.status {
	case StatusRunning:
		return max(t.endsAt.Sub(t.now()), 0)
	case StatusPaused:
		return t.frozen
	default:
		return 0
	}
}

// refresh expires a running countdown whose end time has passed. Caller holds t.mu.
func (t *Timer) refresh() {
	if t.status != StatusRunning || t.now().Before(t.endsAt) {
		return
	}
	t.status = StatusExpired
	t.stopTicker()
	t.emit(Event{Kind: EventExpired, BlockRef: t.blockRef})
}

func (t *Timer) reset() {
	t.stopTicker()
	t.status = StatusIdle
	t.duration = 0
	t.endsAt = time.Time{}
	t.frozen = 0
	t.blockRef = ""
	t.minimized = false
}

// emit sends without blocking; a UI that stops reading only misses ticks.
func (t *Timer) emit(e Event) {
	if t.closed {
		return
	}
	select {
	case t.events <- e:
	default:
	}
}

func (t *Timer) startTicker() {
	stop := make(chan struct{})
	t.stop = stop
	t.wg.Add(1)
	go t.run(stop)
}

func (t *Timer) stopTicker() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

func (t *Timer) run(stop chan struct{}) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.tick(stop)
		}
	}
}

func (t *Timer) tick(stop chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// A tick racing with Skip or a restart belongs to a finished countdown.
	if t.stop != stop || t.status != StatusRunning {
		return
	}
	t.refresh()
	if t.status == StatusRunning {
		t.emit(Event{Kind: EventTick, Remaining: t.remaining(), BlockRef: t.blockRef})
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
