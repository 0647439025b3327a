// Package upload delivers queued workouts to the server: the HTTP client for
// the save RPC and the Flusher that drains the offline outbox.
package upload

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/claude/liftsync/internal/models"
	"github.com/claude/liftsync/internal/netstatus"
	"github.com/claude/liftsync/internal/outbox"
)

// Saver performs the remote save call. *Client satisfies it.
type Saver interface {
	SaveWorkout(ctx context.Context, payload models.WorkoutPayload) (SaveResult, error)
}

// Notifier receives user-visible status notices.
type Notifier interface {
	Notify(models.Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(models.Notice)

func (f NotifierFunc) Notify(n models.Notice) { f(n) }

// Stats tracks flush progress over the Flusher's lifetime.
type Stats struct {
	Passes    int
	Delivered int
	Failed    int
	Skipped   int // passes ignored because one was already running
}

// PassResult is the outcome of a single flush pass.
type PassResult struct {
	Delivered int
	Failed    int
	Remaining int
	// RetryIn is the wait stamped on this pass's failed entries. Zero when
	// nothing failed.
	RetryIn time.Duration
}

// Config tunes the timed retry schedule. Entries are never dropped: the
// schedule only decides how soon the next attempt happens.
type Config struct {
	InitialRetry time.Duration
	MaxRetry     time.Duration
	// PollInterval is how often Run checks for due entries, including ones
	// queued by other processes. Zero disables polling.
	PollInterval time.Duration
}

// DefaultConfig retries after 5s, backing off to at most 5 minutes, and
// polls every 30s.
func DefaultConfig() Config {
	return Config{InitialRetry: 5 * time.Second, MaxRetry: 5 * time.Minute, PollInterval: 30 * time.Second}
}

// Flusher drains the outbox, one entry at a time in enqueue order.
// It is Idle or Flushing; a trigger while Flushing is ignored because the
// running pass already covers anything still pending.
type Flusher struct {
	outbox  *outbox.Outbox
	saver   Saver
	monitor *netstatus.Monitor
	notify  Notifier
	log     *slog.Logger

	flushing atomic.Bool

	mu      sync.Mutex
	stats   Stats
	backoff *backoff.ExponentialBackOff
	poll    time.Duration
	now     func() time.Time
}

// NewFlusher creates a Flusher. notify may be nil.
func NewFlusher(ob *outbox.Outbox, saver Saver, monitor *netstatus.Monitor, notify Notifier, cfg Config, log *slog.Logger) *Flusher {
	if notify == nil {
		notify = NotifierFunc(func(models.Notice) {})
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialRetry
	b.MaxInterval = cfg.MaxRetry
	b.MaxElapsedTime = 0
	b.Reset()

	return &Flusher{
		outbox:  ob,
		saver:   saver,
		monitor: monitor,
		notify:  notify,
		log:     log,
		backoff: b,
		poll:    cfg.PollInterval,
		now:     time.Now,
	}
}

// Flushing reports whether a pass is running.
func (f *Flusher) Flushing() bool {
	return f.flushing.Load()
}

// Stats returns a copy of the lifetime counters.
func (f *Flusher) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Flush runs one pass over the outbox. ran is false if another pass was
// already in progress, in which case nothing is done.
func (f *Flusher) Flush(ctx context.Context) (res PassResult, ran bool) {
	if !f.flushing.CompareAndSwap(false, true) {
		f.mu.Lock()
		f.stats.Skipped++
		f.mu.Unlock()
		f.log.Debug("flush already in progress, ignoring trigger")
		return PassResult{}, false
	}
	defer f.flushing.Store(false)

	pending := f.outbox.ListPending()
	if len(pending) > 0 {
		f.log.Info("flushing outbox", "pending", len(pending))
	}

	for _, entry := range pending {
		if ctx.Err() != nil || !f.monitor.Online() {
			break
		}

		result, err := f.saver.SaveWorkout(ctx, entry.Payload)
		if err != nil {
			res.Failed++
			if res.RetryIn == 0 {
				res.RetryIn = f.nextBackoff()
			}
			next := f.now().Add(res.RetryIn)
			if markErr := f.outbox.MarkFailed(entry.ID, err, next); markErr != nil {
				f.log.Warn("failed to record retry", "entry_id", entry.ID, "error", markErr)
			}
			f.log.Warn("outbox delivery failed, will retry",
				"entry_id", entry.ID,
				"draft_id", entry.Payload.DraftID,
				"retry_count", entry.RetryCount+1,
				"error", err,
			)
			if errors.Is(err, ErrUnreachable) {
				// Nothing after this entry can get through either.
				f.monitor.ReportFailure(err)
				break
			}
			continue
		}

		res.Delivered++
		if !f.outbox.Ack(entry) {
			f.log.Info("entry replaced during delivery, keeping newer payload",
				"entry_id", entry.ID, "draft_id", entry.Payload.DraftID)
		}
		f.log.Info("outbox entry synced",
			"entry_id", entry.ID,
			"draft_id", entry.Payload.DraftID,
			"workout_id", result.WorkoutID,
		)
		f.notify.Notify(models.Notice{
			Kind:      models.NoticeSynced,
			DraftID:   entry.Payload.DraftID,
			WorkoutID: result.WorkoutID,
		})
	}

	res.Remaining = f.outbox.Len()
	if res.Failed == 0 {
		f.resetBackoff()
	}

	f.mu.Lock()
	f.stats.Passes++
	f.stats.Delivered += res.Delivered
	f.stats.Failed += res.Failed
	f.mu.Unlock()

	return res, true
}

// Run drains the outbox whenever connectivity returns, on a backoff timer
// while entries keep failing, and on each poll that finds a due entry, until
// ctx is cancelled.
func (f *Flusher) Run(ctx context.Context) {
	sub := f.monitor.Subscribe()
	defer f.monitor.Unsubscribe(sub)

	var wg sync.WaitGroup
	defer wg.Wait()

	done := make(chan PassResult, 1)
	retry := time.NewTimer(time.Hour)
	retry.Stop()
	defer retry.Stop()

	var poll <-chan time.Time
	if f.poll > 0 {
		ticker := time.NewTicker(f.poll)
		defer ticker.Stop()
		poll = ticker.C
	}

	start := func() {
		if f.flushing.Load() {
			f.mu.Lock()
			f.stats.Skipped++
			f.mu.Unlock()
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, ran := f.Flush(ctx)
			if !ran {
				return
			}
			select {
			case done <- res:
			case <-ctx.Done():
			}
		}()
	}

	if f.monitor.Online() && f.outbox.Len() > 0 {
		start()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case online := <-sub:
			if online {
				start()
			}
		case <-retry.C:
			if f.monitor.Online() {
				start()
			}
		case <-poll:
			if f.monitor.Online() && !f.flushing.Load() && f.due() {
				start()
			}
		case res := <-done:
			retry.Stop()
			if res.RetryIn > 0 && f.monitor.Online() {
				f.log.Info("scheduling outbox retry", "pending", res.Remaining, "in", res.RetryIn.String())
				retry.Reset(res.RetryIn)
			}
		}
	}
}

// due reports whether any queued entry is ready for an attempt.
func (f *Flusher) due() bool {
	now := f.now()
	for _, e := range f.outbox.ListPending() {
		if e.NextAttempt.IsZero() || !e.NextAttempt.After(now) {
			return true
		}
	}
	return false
}

func (f *Flusher) nextBackoff() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.backoff.NextBackOff()
}

func (f *Flusher) resetBackoff() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backoff.Reset()
}
