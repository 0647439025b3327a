package outbox

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/claude/liftsync/internal/kv"
	"github.com/claude/liftsync/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func payload(draftID, name string) models.WorkoutPayload {
	return models.WorkoutPayload{DraftID: draftID, Name: name}
}

// TestListPendingOrder verifies entries come back in enqueue order.
func TestListPendingOrder(t *testing.T) {
	o := New(kv.NewMemory(0), testLogger())
	for i := range 5 {
		o.Enqueue(payload(fmt.Sprintf("d%d", i), ""))
	}

	pending := o.ListPending()
	if len(pending) != 5 {
		t.Fatalf("pending = %d, want 5", len(pending))
	}
	for i, e := range pending {
		if want := fmt.Sprintf("d%d", i); e.Payload.DraftID != want {
			t.Errorf("pending[%d] = %s, want %s", i, e.Payload.DraftID, want)
		}
		if e.ID == "" {
			t.Errorf("pending[%d] has no ID", i)
		}
	}
}

// TestEnqueueDedup verifies a second enqueue for the same draft keeps exactly
// one entry, holding the latest payload, at the original position.
func TestEnqueueDedup(t *testing.T) {
	o := New(kv.NewMemory(0), testLogger())
	first, _ := o.Enqueue(payload("a", "v1"))
	o.Enqueue(payload("b", ""))
	second, _ := o.Enqueue(payload("a", "v2"))

	pending := o.ListPending()
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].Payload.DraftID != "a" || pending[0].Payload.Name != "v2" {
		t.Errorf("pending[0] = %+v, want draft a with latest payload", pending[0].Payload)
	}
	if second.ID != first.ID {
		t.Errorf("replacement changed entry ID %s -> %s", first.ID, second.ID)
	}
}

// TestPersistAcrossRestart verifies a new Outbox on the same store sees the queue.
func TestPersistAcrossRestart(t *testing.T) {
	mem := kv.NewMemory(0)
	o := New(mem, testLogger())
	e, err := o.Enqueue(payload("a", "legs"))
	if err != nil {
		t.Fatal(err)
	}

	reopened := New(mem, testLogger())
	pending := reopened.ListPending()
	if len(pending) != 1 || pending[0].ID != e.ID {
		t.Fatalf("reopened pending = %+v, want entry %s", pending, e.ID)
	}

	reopened.Remove(e.ID)
	if _, err := mem.Get(Key); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("empty outbox should remove its key, got %v", err)
	}
}

// TestCorruptQueueStartsEmpty verifies unreadable persisted data is ignored.
func TestCorruptQueueStartsEmpty(t *testing.T) {
	mem := kv.NewMemory(0)
	if err := mem.Set(Key, []byte("[{")); err != nil {
		t.Fatal(err)
	}
	o := New(mem, testLogger())
	if n := o.Len(); n != 0 {
		t.Errorf("Len = %d, want 0", n)
	}
}

// TestEnqueueVisibleWhenPersistFails verifies quota failures are reported and
// keep the entry in memory.
func TestEnqueueVisibleWhenPersistFails(t *testing.T) {
	o := New(kv.NewMemory(10), testLogger())
	e, err := o.Enqueue(payload("a", "too big to persist"))
	if !errors.Is(err, kv.ErrQuotaExceeded) {
		t.Errorf("Enqueue err = %v, want ErrQuotaExceeded", err)
	}

	pending := o.ListPending()
	if len(pending) != 1 || pending[0].ID != e.ID {
		t.Fatalf("pending = %+v, want the enqueued entry", pending)
	}
}

// TestMarkFailed verifies retry bookkeeping.
func TestMarkFailed(t *testing.T) {
	o := New(kv.NewMemory(0), testLogger())
	e, _ := o.Enqueue(payload("a", ""))
	next := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if err := o.MarkFailed(e.ID, errors.New("status 500"), next); err != nil {
		t.Fatal(err)
	}
	if err := o.MarkFailed(e.ID, errors.New("status 502"), next); err != nil {
		t.Fatal(err)
	}
	got := o.ListPending()[0]
	if got.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2", got.RetryCount)
	}
	if got.LastError != "status 502" {
		t.Errorf("last error = %q", got.LastError)
	}
	if !got.NextAttempt.Equal(next) {
		t.Errorf("next attempt = %v, want %v", got.NextAttempt, next)
	}

	if err := o.MarkFailed("nope", nil, next); err == nil {
		t.Error("expected error for unknown entry")
	}
}

// TestAckSkipsReplacedEntry verifies an in-flight delivery of an older payload
// does not remove the newer payload that replaced it.
func TestAckSkipsReplacedEntry(t *testing.T) {
	o := New(kv.NewMemory(0), testLogger())
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	o.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	old, _ := o.Enqueue(payload("a", "v1"))
	o.Enqueue(payload("a", "v2"))

	if o.Ack(old) {
		t.Fatal("Ack removed an entry that was replaced during delivery")
	}
	current := o.ListPending()[0]
	if !o.Ack(current) {
		t.Fatal("Ack of current entry should remove it")
	}
	if o.Len() != 0 {
		t.Errorf("Len = %d, want 0", o.Len())
	}
}

// TestAckSkipsReplacedEntrySameInstant verifies replacement is detected even
// when both enqueues carry the same timestamp.
func TestAckSkipsReplacedEntrySameInstant(t *testing.T) {
	o := New(kv.NewMemory(0), testLogger())
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return fixed }

	old, _ := o.Enqueue(payload("a", "v1"))
	newer, _ := o.Enqueue(payload("a", "v2"))
	if newer.Revision != old.Revision+1 {
		t.Errorf("revision = %d, want %d", newer.Revision, old.Revision+1)
	}

	if o.Ack(old) {
		t.Fatal("Ack removed the newer payload")
	}
	if got := o.ListPending(); len(got) != 1 || got[0].Payload.Name != "v2" {
		t.Fatalf("pending = %+v, want the v2 payload", got)
	}
	if !o.Ack(newer) {
		t.Error("Ack of the current revision should remove it")
	}
}

// TestSharedStateAcrossProcesses runs two outboxes on one state directory, as
// a long-running sync and a separate submit command do. Entries queued by one
// must be visible to the other and survive the other's acks.
func TestSharedStateAcrossProcesses(t *testing.T) {
	dir := t.TempDir()
	open := func() (*Outbox, *kv.SQLite) {
		t.Helper()
		s, err := kv.OpenSQLite(dir, kv.DefaultQuota)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { s.Close() })
		return New(s, testLogger()), s
	}

	submitA, _ := open()
	a, err := submitA.Enqueue(payload("a", "push"))
	if err != nil {
		t.Fatal(err)
	}

	syncer, _ := open()
	if n := syncer.Len(); n != 1 {
		t.Fatalf("sync sees %d entries, want 1", n)
	}

	submitB, _ := open()
	b, err := submitB.Enqueue(payload("b", "pull"))
	if err != nil {
		t.Fatal(err)
	}

	pending := syncer.ListPending()
	if len(pending) != 2 || pending[1].ID != b.ID {
		t.Fatalf("sync pending = %+v, want a then b", pending)
	}
	if !syncer.Ack(a) {
		t.Fatal("Ack(a) did not remove it")
	}

	fresh, _ := open()
	left := fresh.ListPending()
	if len(left) != 1 || left[0].ID != b.ID {
		t.Fatalf("persisted after ack = %+v, want only b", left)
	}

	if err := syncer.MarkFailed(b.ID, errors.New("status 500"), time.Time{}); err != nil {
		t.Fatal(err)
	}
	if got := fresh.ListPending(); len(got) != 1 || got[0].RetryCount != 1 {
		t.Errorf("retry state not shared: %+v", got)
	}
}

// TestUnsavedEntryMergesWithStoredQueue verifies an entry kept in memory after
// a failed write is carried into the next successful write.
func TestUnsavedEntryMergesWithStoredQueue(t *testing.T) {
	mem := kv.NewMemory(400)
	o := New(mem, testLogger())
	big, err := o.Enqueue(models.WorkoutPayload{DraftID: "big", Notes: strings.Repeat("x", 500)})
	if err == nil {
		t.Fatal("expected the oversized entry to be rejected by storage")
	}
	if _, err := o.Enqueue(payload("small", "")); err == nil {
		t.Fatal("the queue still holds the oversized entry, so writes should keep failing")
	}
	if n := o.Len(); n != 2 {
		t.Fatalf("Len = %d, want 2 in memory", n)
	}

	o.Remove(big.ID)
	data, err := mem.Get(Key)
	if err != nil {
		t.Fatalf("queue not persisted once it fits: %v", err)
	}
	if !strings.Contains(string(data), `"draft_id":"small"`) {
		t.Errorf("persisted queue = %s, want the small entry", data)
	}
	if n := New(mem, testLogger()).Len(); n != 1 {
		t.Errorf("reloaded Len = %d, want 1", n)
	}
}
