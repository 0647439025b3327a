// Package ingest holds what the bulk workout importers share.
package ingest

import (
	"context"

	"github.com/claude/liftsync/internal/models"
	"github.com/claude/liftsync/internal/storage"
)

// Saver persists one workout atomically. *storage.DB satisfies it.
type Saver interface {
	SaveWorkout(ctx context.Context, userID int, p models.WorkoutPayload) (storage.SaveResult, error)
}

// Result holds the outcome of an ingest operation.
type Result struct {
	Sessions int `json:"sessions"`
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Sets     int `json:"sets"`

	Message string `json:"message,omitempty"`
}

// Add folds another result into r.
func (r *Result) Add(o Result) {
	r.Sessions += o.Sessions
	r.Created += o.Created
	r.Updated += o.Updated
	r.Sets += o.Sets
}
