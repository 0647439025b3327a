// Package session owns one user's workout session: the active draft, the rest
// timer and the submission path that either saves remotely or queues offline.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/liftsync/internal/draft"
	"github.com/claude/liftsync/internal/guard"
	"github.com/claude/liftsync/internal/kv"
	"github.com/claude/liftsync/internal/models"
	"github.com/claude/liftsync/internal/netstatus"
	"github.com/claude/liftsync/internal/outbox"
	"github.com/claude/liftsync/internal/timer"
	"github.com/claude/liftsync/internal/upload"
	"github.com/google/uuid"
)

var (
	// ErrSaveFailed wraps a remote save error. The draft is kept so the user can retry.
	ErrSaveFailed = errors.New("could not save workout")
	// ErrNoDraft is returned by operations that need an active draft.
	ErrNoDraft = errors.New("no active draft")
	// ErrDraftActive is returned by Start while another draft is in progress.
	ErrDraftActive = errors.New("a draft is already active")
	// ErrSubmitting rejects edits while the draft's save is in flight.
	ErrSubmitting = errors.New("draft is being submitted")
	// ErrInvalidIndex is returned for an exercise block or set index out of range.
	ErrInvalidIndex = errors.New("index out of range")
)

// Result is what a submission produced.
type Result struct {
	DraftID   string
	WorkoutID string // empty when queued
	Created   bool
	Queued    bool // saved offline, delivery pending
}

// Deps are the collaborators a Session is built from.
type Deps struct {
	Store    kv.Store
	Outbox   *outbox.Outbox
	Saver    upload.Saver
	Monitor  *netstatus.Monitor
	Notifier upload.Notifier // optional
	Timer    *timer.Timer    // optional, a default Timer is created when nil

	// DefaultRest starts the rest timer whenever a set is completed. Zero disables it.
	DefaultRest time.Duration

	Log *slog.Logger
	Now func() time.Time // optional
}

// Session is the explicitly owned replacement for process-wide draft and
// timer state. Create it when the user opens the workout editor and Close it
// when they leave.
type Session struct {
	drafts      *draft.Store
	outbox      *outbox.Outbox
	saver       upload.Saver
	monitor     *netstatus.Monitor
	notify      upload.Notifier
	timer       *timer.Timer
	guard       *guard.Guard[Result]
	defaultRest time.Duration
	log         *slog.Logger
	now         func() time.Time

	mu    sync.Mutex
	draft *models.WorkoutDraft
}

// New creates a Session and resumes a persisted draft if there is one.
func New(d Deps) *Session {
	s := &Session{
		drafts:      draft.NewStore(d.Store, d.Log),
		outbox:      d.Outbox,
		saver:       d.Saver,
		monitor:     d.Monitor,
		notify:      d.Notifier,
		timer:       d.Timer,
		guard:       guard.New[Result](),
		defaultRest: d.DefaultRest,
		log:         d.Log,
		now:         d.Now,
	}
	if s.notify == nil {
		s.notify = upload.NotifierFunc(func(models.Notice) {})
	}
	if s.timer == nil {
		s.timer = timer.New()
	}
	if s.now == nil {
		s.now = time.Now
	}

	if restored := s.drafts.Load(); restored != nil {
		s.draft = restored
		s.log.Info("resumed draft", "draft_id", restored.ID, "exercises", len(restored.Exercises))
	}
	return s
}

// Timer exposes the session's rest timer.
func (s *Session) Timer() *timer.Timer {
	return s.timer
}

// Draft returns a copy of the active draft, or nil.
func (s *Session) Draft() *models.WorkoutDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return nil
	}
	c := s.draft.Clone()
	return &c
}

// Start begins a new draft.
func (s *Session) Start(name string) (models.WorkoutDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft != nil {
		return models.WorkoutDraft{}, fmt.Errorf("starting %q: %w", name, ErrDraftActive)
	}
	d := models.WorkoutDraft{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: s.now().UTC(),
		Exercises: []models.ExerciseBlock{},
	}
	s.draft = &d
	s.drafts.Save(d)
	s.log.Info("draft started", "draft_id", d.ID, "name", name)
	return d.Clone(), nil
}

// AddExercise appends an exercise block and returns its index.
func (s *Session) AddExercise(exerciseID, exerciseName string) (int, error) {
	var idx int
	err := s.edit(func(d *models.WorkoutDraft) error {
		d.Exercises = append(d.Exercises, models.ExerciseBlock{
			ExerciseID:   exerciseID,
			ExerciseName: exerciseName,
			Sets:         []models.Set{},
		})
		idx = len(d.Exercises) - 1
		return nil
	})
	return idx, err
}

// RemoveExercise deletes an exercise block and its sets.
func (s *Session) RemoveExercise(block int) error {
	return s.edit(func(d *models.WorkoutDraft) error {
		if err := checkBlock(d, block); err != nil {
			return err
		}
		d.Exercises = append(d.Exercises[:block], d.Exercises[block+1:]...)
		return nil
	})
}

// AddSet appends a set to a block and returns its index.
func (s *Session) AddSet(block int, set models.Set) (int, error) {
	var idx int
	err := s.edit(func(d *models.WorkoutDraft) error {
		if err := checkBlock(d, block); err != nil {
			return err
		}
		b := &d.Exercises[block]
		b.Sets = append(b.Sets, set)
		idx = len(b.Sets) - 1
		return nil
	})
	return idx, err
}

// RemoveSet deletes one set.
func (s *Session) RemoveSet(block, idx int) error {
	return s.edit(func(d *models.WorkoutDraft) error {
		if err := checkSet(d, block, idx); err != nil {
			return err
		}
		b := &d.Exercises[block]
		b.Sets = append(b.Sets[:idx], b.Sets[idx+1:]...)
		return nil
	})
}

// UpdateSet replaces one set's values.
func (s *Session) UpdateSet(block, idx int, set models.Set) error {
	return s.edit(func(d *models.WorkoutDraft) error {
		if err := checkSet(d, block, idx); err != nil {
			return err
		}
		d.Exercises[block].Sets[idx] = set
		return nil
	})
}

// CompleteSet marks a set done and, with a default rest configured, starts the
// rest timer for the set's exercise.
func (s *Session) CompleteSet(block, idx int) error {
	var ref string
	err := s.edit(func(d *models.WorkoutDraft) error {
		if err := checkSet(d, block, idx); err != nil {
			return err
		}
		d.Exercises[block].Sets[idx].Completed = true
		ref = d.Exercises[block].ExerciseID
		return nil
	})
	if err != nil {
		return err
	}

	if s.defaultRest > 0 {
		if err := s.timer.Start(s.defaultRest, ref); err != nil {
			s.log.Warn("rest timer not started", "error", err)
		}
	}
	return nil
}

// SetNotes replaces the draft's free-text notes.
func (s *Session) SetNotes(notes string) error {
	return s.edit(func(d *models.WorkoutDraft) error {
		d.Notes = notes
		return nil
	})
}

// Summary computes statistics for the active draft.
func (s *Session) Summary() (models.WorkoutSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return models.WorkoutSummary{}, ErrNoDraft
	}
	return models.Summarize(s.draft.Exercises), nil
}

// Submit finalizes the active draft. Online it calls the remote save; offline
// it queues the payload and reports Queued. Concurrent calls for the same
// draft share one save. On remote failure the draft is kept and the error
// wraps ErrSaveFailed. The same holds offline when the queue cannot be
// written to local storage.
func (s *Session) Submit(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.draft == nil {
		s.mu.Unlock()
		return Result{}, ErrNoDraft
	}
	id := s.draft.ID
	s.mu.Unlock()

	res, shared, err := s.guard.TrySubmit(ctx, id, func(ctx context.Context) (Result, error) {
		return s.submit(ctx, id)
	})
	if shared {
		s.log.Debug("joined in-flight submission", "draft_id", id)
	}
	return res, err
}

func (s *Session) submit(ctx context.Context, id string) (Result, error) {
	s.mu.Lock()
	if s.draft == nil || s.draft.ID != id {
		s.mu.Unlock()
		return Result{}, ErrNoDraft
	}
	payload := s.draft.Payload(s.now().UTC())
	s.mu.Unlock()

	if !s.monitor.Online() {
		// The stored draft is dropped first so its bytes do not count against
		// the queue's quota.
		s.drafts.Clear()
		entry, err := s.outbox.Enqueue(payload)
		if err != nil {
			s.outbox.Remove(entry.ID)
			s.mu.Lock()
			if s.draft != nil && s.draft.ID == id {
				s.drafts.Save(*s.draft)
			}
			s.mu.Unlock()
			s.log.Warn("workout could not be saved offline", "draft_id", id, "error", err)
			return Result{}, fmt.Errorf("%w: %w", ErrSaveFailed, err)
		}
		s.finish(id)
		s.notify.Notify(models.Notice{Kind: models.NoticeSavedOffline, DraftID: id})
		s.log.Info("workout saved offline", "draft_id", id, "entry_id", entry.ID)
		return Result{DraftID: id, Queued: true}, nil
	}

	saved, err := s.saver.SaveWorkout(ctx, payload)
	if err != nil {
		if errors.Is(err, upload.ErrUnreachable) {
			s.monitor.ReportFailure(err)
		}
		s.log.Warn("workout save failed", "draft_id", id, "error", err)
		return Result{}, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	s.finish(id)
	s.notify.Notify(models.Notice{Kind: models.NoticeSaved, DraftID: id, WorkoutID: saved.WorkoutID})
	s.log.Info("workout saved", "draft_id", id, "workout_id", saved.WorkoutID, "created", saved.Created)
	return Result{DraftID: id, WorkoutID: saved.WorkoutID, Created: saved.Created}, nil
}

// Discard drops the active draft without saving.
func (s *Session) Discard() error {
	s.mu.Lock()
	if s.draft == nil {
		s.mu.Unlock()
		return ErrNoDraft
	}
	id := s.draft.ID
	if s.guard.InFlight(id) {
		s.mu.Unlock()
		return ErrSubmitting
	}
	s.mu.Unlock()

	s.finish(id)
	s.log.Info("draft discarded", "draft_id", id)
	return nil
}

// Close ends the session. The persisted draft, if any, is left for the next session.
func (s *Session) Close() {
	s.timer.Close()
}

// finish tears down the draft-bound state once the workout has left the editor.
func (s *Session) finish(id string) {
	s.mu.Lock()
	if s.draft != nil && s.draft.ID == id {
		s.draft = nil
		s.drafts.Clear()
	}
	s.mu.Unlock()
	s.timer.Skip()
}

// edit applies fn to a copy of the draft and commits it only if fn succeeds.
func (s *Session) edit(fn func(d *models.WorkoutDraft) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft == nil {
		return ErrNoDraft
	}
	if s.guard.InFlight(s.draft.ID) {
		return ErrSubmitting
	}
	next := s.draft.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	s.draft = &next
	s.drafts.Save(next)
	return nil
}

func checkBlock(d *models.WorkoutDraft, block int) error {
	if block < 0 || block >= len(d.Exercises) {
		return fmt.Errorf("exercise block %d: %w", block, ErrInvalidIndex)
	}
	return nil
}

func checkSet(d *models.WorkoutDraft, block, idx int) error {
	if err := checkBlock(d, block); err != nil {
		return err
	}
	if idx < 0 || idx >= len(d.Exercises[block].Sets) {
		return fmt.Errorf("set %d of block %d: %w", idx, block, ErrInvalidIndex)
	}
	return nil
}
