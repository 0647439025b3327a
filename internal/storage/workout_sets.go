package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExerciseSession is one workout's performance on a single exercise.
type ExerciseSession struct {
	WorkoutID   uuid.UUID `json:"workout_id"`
	StartedAt   time.Time `json:"started_at"`
	Exercise    string    `json:"exercise_name"`
	Sets        int       `json:"sets"`
	TotalReps   int       `json:"total_reps"`
	TopWeightKg float64   `json:"top_weight_kg"`
	VolumeKg    float64   `json:"volume_kg"`
	// Estimated one-rep max of the best set (Epley).
	Est1RMKg float64 `json:"est_1rm_kg"`
}

// QueryExerciseProgress returns per-workout aggregates for one exercise in a
// date range, oldest first. Only completed sets with weight and reps count.
func (db *DB) QueryExerciseProgress(ctx context.Context, exerciseID string, start, end time.Time, userID int) ([]ExerciseSession, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT w.id, w.started_at, MAX(e.exercise_name),
		        COUNT(*)::int,
		        COALESCE(SUM(s.reps), 0)::int,
		        COALESCE(MAX(s.weight_kg), 0),
		        COALESCE(SUM(s.weight_kg * s.reps), 0),
		        COALESCE(MAX(s.weight_kg * (1 + s.reps / 30.0)), 0)
		 FROM workouts w
		 JOIN workout_exercises e ON e.workout_id = w.id
		 JOIN workout_sets s ON s.workout_id = e.workout_id AND s.exercise_position = e.position
		 WHERE e.exercise_id = $1 AND w.user_id = $2
		   AND w.started_at >= $3 AND w.started_at < $4
		   AND s.completed AND s.weight_kg IS NOT NULL AND s.reps IS NOT NULL
		 GROUP BY w.id, w.started_at
		 ORDER BY w.started_at ASC`,
		exerciseID, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying exercise progress: %w", err)
	}
	defer rows.Close()

	result := []ExerciseSession{}
	for rows.Next() {
		var r ExerciseSession
		if err := rows.Scan(&r.WorkoutID, &r.StartedAt, &r.Exercise, &r.Sets, &r.TotalReps,
			&r.TopWeightKg, &r.VolumeKg, &r.Est1RMKg); err != nil {
			return nil, fmt.Errorf("scanning exercise progress: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
