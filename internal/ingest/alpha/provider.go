package alpha

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/claude/liftsync/internal/ingest"
)

// Provider processes Alpha Progression CSV exports.
type Provider struct {
	store ingest.Saver
	loc   *time.Location
	log   *slog.Logger
}

// NewProvider creates a new Alpha Progression ingest provider. Export
// times are read in the server's local zone.
func NewProvider(store ingest.Saver, log *slog.Logger) *Provider {
	return &Provider{store: store, loc: time.Local, log: log}
}

// Ingest parses a CSV export and saves every session as a workout.
func (p *Provider) Ingest(ctx context.Context, r io.Reader, userID int) (*ingest.Result, error) {
	sessions, err := Parse(r, p.loc)
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}
	return p.Save(ctx, sessions, userID)
}

// Save stores parsed sessions. Each session is its own transaction; a
// failure stops the import but keeps the sessions saved before it.
func (p *Provider) Save(ctx context.Context, sessions []Session, userID int) (*ingest.Result, error) {
	result := &ingest.Result{}
	for _, s := range sessions {
		payload := s.Payload()
		saved, err := p.store.SaveWorkout(ctx, userID, payload)
		if err != nil {
			return result, fmt.Errorf("saving session %q (%s): %w", s.Name, s.Date.Format("2006-01-02"), err)
		}

		result.Sessions++
		result.Sets += saved.Sets
		if saved.Created {
			result.Created++
		} else {
			result.Updated++
		}
		p.log.Debug("imported session",
			"name", s.Name,
			"date", s.Date.Format("2006-01-02"),
			"workout_id", saved.WorkoutID,
			"created", saved.Created,
		)
	}
	return result, nil
}
