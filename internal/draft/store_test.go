package draft

import (
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/claude/liftsync/internal/kv"
	"github.com/claude/liftsync/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func sampleDraft() models.WorkoutDraft {
	return models.WorkoutDraft{
		ID:        "7f1c9a4e-0000-4000-8000-000000000001",
		Name:      "Lower A",
		Notes:     "knee felt fine",
		CreatedAt: time.Date(2026, 2, 3, 18, 30, 0, 0, time.UTC),
		Exercises: []models.ExerciseBlock{
			{
				ExerciseID:   "squat",
				ExerciseName: "Back Squat",
				Sets: []models.Set{
					{WeightKg: ptr(100.0), Reps: ptr(5), Completed: true, RIR: ptr(2.0)},
					{WeightKg: ptr(100.0)},
				},
			},
			{ExerciseID: "rdl", ExerciseName: "Romanian Deadlift", Sets: []models.Set{}},
		},
	}
}

// TestRoundTrip verifies Save followed by Load returns an identical draft.
func TestRoundTrip(t *testing.T) {
	s := NewStore(kv.NewMemory(kv.DefaultQuota), testLogger())
	d := sampleDraft()

	s.Save(d)
	got := s.Load()
	if got == nil {
		t.Fatal("Load returned nil after Save")
	}
	if !reflect.DeepEqual(*got, d) {
		t.Errorf("Load = %+v\nwant %+v", *got, d)
	}
}

// TestLoadAbsent verifies Load returns nil when nothing was saved.
func TestLoadAbsent(t *testing.T) {
	s := NewStore(kv.NewMemory(0), testLogger())
	if got := s.Load(); got != nil {
		t.Errorf("Load = %+v, want nil", got)
	}
}

// TestLoadCorrupt verifies unparseable stored data is treated as absent.
func TestLoadCorrupt(t *testing.T) {
	mem := kv.NewMemory(0)
	if err := mem.Set(Key, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	s := NewStore(mem, testLogger())
	if got := s.Load(); got != nil {
		t.Errorf("Load = %+v, want nil for corrupt data", got)
	}
}

// TestSaveOverQuotaIsSwallowed verifies a quota failure neither panics nor
// clobbers the previously stored draft.
func TestSaveOverQuotaIsSwallowed(t *testing.T) {
	mem := kv.NewMemory(400)
	s := NewStore(mem, testLogger())

	small := models.WorkoutDraft{ID: "small"}
	s.Save(small)

	big := sampleDraft()
	big.Notes = string(make([]byte, 1000))
	s.Save(big)

	got := s.Load()
	if got == nil || got.ID != "small" {
		t.Errorf("Load = %+v, want previous draft kept", got)
	}
}

// TestClear verifies Clear removes the draft.
func TestClear(t *testing.T) {
	mem := kv.NewMemory(0)
	s := NewStore(mem, testLogger())
	s.Save(sampleDraft())
	s.Clear()

	if _, err := mem.Get(Key); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("key still present after Clear: %v", err)
	}
	if s.Load() != nil {
		t.Error("Load after Clear should be nil")
	}
}
