// Package outbox holds finalized workouts that could not be sent because the
// client was offline. The queue lives in a kv.Store so it survives restarts and
// is shared by every client process on the same state directory. Entries whose
// write was rejected (quota) stay in memory for the life of the process.
package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/claude/liftsync/internal/kv"
	"github.com/claude/liftsync/internal/models"
	"github.com/google/uuid"
)

// Key is the storage key of the persisted queue.
const Key = "liftsync.outbox"

// Outbox is a durable FIFO of workout payloads, deduplicated by draft ID.
type Outbox struct {
	mu      sync.Mutex
	kv      kv.Store
	log     *slog.Logger
	entries []models.OutboxEntry // last known queue
	unsaved []models.OutboxEntry // queued here, not yet in storage
	now     func() time.Time
}

// New loads the persisted queue from s. A missing or corrupt queue starts empty.
func New(s kv.Store, log *slog.Logger) *Outbox {
	o := &Outbox{kv: s, log: log, now: time.Now}
	o.refresh()
	return o
}

func (o *Outbox) decode(data []byte) []models.OutboxEntry {
	if data == nil {
		return nil
	}
	var entries []models.OutboxEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		o.log.Warn("discarding corrupt outbox", "error", err)
		return nil
	}
	return entries
}

// refresh reloads the queue so entries queued by other processes show up.
// A failed read keeps the last known queue. Caller holds o.mu.
func (o *Outbox) refresh() {
	data, err := o.kv.Get(Key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		o.entries = merge(nil, o.unsaved)
	case err != nil:
		o.log.Warn("outbox read failed", "error", err)
	default:
		o.entries = merge(o.decode(data), o.unsaved)
	}
}

// mutate applies fn to the stored queue inside one kv update, so writes from
// other processes are merged instead of overwritten. When storage rejects the
// write, fn is applied to the in-memory queue and the error is returned.
// fn may run twice and must be deterministic. Caller holds o.mu.
func (o *Outbox) mutate(fn func([]models.OutboxEntry) []models.OutboxEntry) error {
	var next []models.OutboxEntry
	err := o.kv.Update(Key, func(data []byte) ([]byte, error) {
		next = fn(merge(o.decode(data), o.unsaved))
		if len(next) == 0 {
			return nil, nil
		}
		return json.Marshal(next)
	})
	if err == nil {
		o.entries = next
		o.unsaved = nil
		return nil
	}

	o.entries = fn(slices.Clone(o.entries))
	kept := o.unsaved[:0]
	for _, u := range o.unsaved {
		if i := indexByID(o.entries, u.ID); i >= 0 {
			kept = append(kept, o.entries[i])
		}
	}
	o.unsaved = kept
	return err
}

// Enqueue queues a payload and returns the stored entry. If the payload's
// draft is already queued, the newer payload replaces the older one in place
// so delivery order still follows the first enqueue.
//
// A non-nil error means the entry could not be written to storage. It is
// still queued in memory and will be delivered if this process lives long
// enough, but it will not survive a restart.
func (o *Outbox) Enqueue(p models.WorkoutPayload) (models.OutboxEntry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	fresh := models.OutboxEntry{
		ID:         uuid.New().String(),
		Payload:    p,
		EnqueuedAt: o.now(),
	}
	var (
		queued   models.OutboxEntry
		replaced bool
	)
	err := o.mutate(func(entries []models.OutboxEntry) []models.OutboxEntry {
		for i := range entries {
			if entries[i].Payload.DraftID != p.DraftID {
				continue
			}
			entries[i].Payload = p
			entries[i].EnqueuedAt = fresh.EnqueuedAt
			entries[i].Revision++
			queued, replaced = entries[i], true
			return entries
		}
		queued, replaced = fresh, false
		return append(entries, fresh)
	})
	if err != nil {
		o.unsaved = upsert(o.unsaved, queued)
		o.log.Warn("outbox save failed, keeping in memory only",
			"entry_id", queued.ID, "draft_id", p.DraftID, "error", err)
		return queued, fmt.Errorf("persisting outbox entry: %w", err)
	}

	if replaced {
		o.log.Info("outbox entry replaced", "entry_id", queued.ID, "draft_id", p.DraftID, "revision", queued.Revision)
	} else {
		o.log.Info("outbox entry queued", "entry_id", queued.ID, "draft_id", p.DraftID, "pending", len(o.entries))
	}
	return queued, nil
}

// ListPending returns a snapshot of all entries, oldest first.
func (o *Outbox) ListPending() []models.OutboxEntry {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.refresh()
	return slices.Clone(o.entries)
}

// Len returns the number of queued entries.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.refresh()
	return len(o.entries)
}

// Remove deletes an entry after confirmed delivery. Removing an unknown ID is a no-op.
func (o *Outbox) Remove(entryID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	err := o.mutate(func(entries []models.OutboxEntry) []models.OutboxEntry {
		if i := indexByID(entries, entryID); i >= 0 {
			return slices.Delete(entries, i, i+1)
		}
		return entries
	})
	if err != nil {
		o.log.Warn("outbox remove not persisted", "entry_id", entryID, "error", err)
	}
}

// MarkFailed records a failed delivery attempt for an entry.
func (o *Outbox) MarkFailed(entryID string, cause error, next time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var found bool
	err := o.mutate(func(entries []models.OutboxEntry) []models.OutboxEntry {
		i := indexByID(entries, entryID)
		found = i >= 0
		if !found {
			return entries
		}
		entries[i].RetryCount++
		entries[i].NextAttempt = next
		if cause != nil {
			entries[i].LastError = cause.Error()
		}
		return entries
	})
	if !found {
		return fmt.Errorf("outbox entry %s not found", entryID)
	}
	if err != nil {
		o.log.Warn("outbox retry state not persisted", "entry_id", entryID, "error", err)
	}
	return nil
}

// Ack removes a delivered entry unless it was replaced by a newer payload for
// the same draft while the delivery was in flight. It reports whether the
// entry was removed.
func (o *Outbox) Ack(delivered models.OutboxEntry) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	var removed bool
	err := o.mutate(func(entries []models.OutboxEntry) []models.OutboxEntry {
		i := indexByID(entries, delivered.ID)
		removed = i >= 0 && entries[i].Revision == delivered.Revision
		if !removed {
			return entries
		}
		return slices.Delete(entries, i, i+1)
	})
	if err != nil {
		o.log.Warn("outbox ack not persisted", "entry_id", delivered.ID, "error", err)
	}
	return removed
}

// merge lays entries that only exist in memory over the stored queue. An
// unsaved payload for a draft that is already stored under another entry
// replaces that entry's payload.
func merge(stored, unsaved []models.OutboxEntry) []models.OutboxEntry {
	out := slices.Clone(stored)
	for _, u := range unsaved {
		if i := indexByID(out, u.ID); i >= 0 {
			out[i] = u
			continue
		}
		if i := slices.IndexFunc(out, func(e models.OutboxEntry) bool {
			return e.Payload.DraftID == u.Payload.DraftID
		}); i >= 0 {
			out[i].Payload = u.Payload
			out[i].EnqueuedAt = u.EnqueuedAt
			out[i].Revision++
			continue
		}
		out = append(out, u)
	}
	return out
}

func upsert(entries []models.OutboxEntry, e models.OutboxEntry) []models.OutboxEntry {
	if i := indexByID(entries, e.ID); i >= 0 {
		entries[i] = e
		return entries
	}
	return append(entries, e)
}

func indexByID(entries []models.OutboxEntry, id string) int {
	return slices.IndexFunc(entries, func(e models.OutboxEntry) bool { return e.ID == id })
}
