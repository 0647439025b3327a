package mcp

import (
	"context"
	"time"

	"github.com/claude/liftsync/internal/models"
	"github.com/claude/liftsync/internal/storage"
	"github.com/google/uuid"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	QueryWorkouts(ctx context.Context, start, end time.Time, userID int) ([]models.WorkoutRow, error)
	RecentWorkouts(ctx context.Context, userID, limit int) ([]models.WorkoutRow, error)
	GetWorkout(ctx context.Context, workoutID uuid.UUID, userID int) (*storage.WorkoutDetail, error)
	ListExercises(ctx context.Context, userID int) ([]storage.ExerciseInfo, error)
	QueryExerciseProgress(ctx context.Context, exerciseID string, start, end time.Time, userID int) ([]storage.ExerciseSession, error)
	GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.TrainingSummaryPeriod, error)
	GetDataStats(ctx context.Context, userID int) (*storage.DataStats, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
