// Package draft persists the in-progress workout so it survives restarts.
// Persistence is best effort: failures are logged, never returned, and the
// caller's in-memory draft stays authoritative.
package draft

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/claude/liftsync/internal/kv"
	"github.com/claude/liftsync/internal/models"
)

// Key is the fixed storage key of the active draft.
const Key = "liftsync.draft"

// Store saves and restores the single active WorkoutDraft.
type Store struct {
	kv  kv.Store
	log *slog.Logger
}

// NewStore creates a draft Store on top of a kv.Store.
func NewStore(s kv.Store, log *slog.Logger) *Store {
	return &Store{kv: s, log: log}
}

// Save overwrites the stored draft. No validation is performed.
func (s *Store) Save(d models.WorkoutDraft) {
	data, err := json.Marshal(d)
	if err != nil {
		s.log.Warn("draft encode failed", "draft_id", d.ID, "error", err)
		return
	}
	if err := s.kv.Set(Key, data); err != nil {
		s.log.Warn("draft save failed", "draft_id", d.ID, "bytes", len(data), "error", err)
	}
}

// Load returns the stored draft, or nil if there is none or it can't be decoded.
func (s *Store) Load() *models.WorkoutDraft {
	data, err := s.kv.Get(Key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.log.Warn("draft read failed", "error", err)
		}
		return nil
	}

	var d models.WorkoutDraft
	if err := json.Unmarshal(data, &d); err != nil {
		s.log.Warn("discarding corrupt draft", "error", err)
		return nil
	}
	return &d
}

// Clear removes the stored draft.
func (s *Store) Clear() {
	if err := s.kv.Remove(Key); err != nil {
		s.log.Warn("draft clear failed", "error", err)
	}
}
