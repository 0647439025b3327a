package storage

import (
	"context"
	"fmt"
	"time"
)

// ExerciseInfo describes an exercise the user has logged at least once.
type ExerciseInfo struct {
	ExerciseID    string    `json:"exercise_id"`
	ExerciseName  string    `json:"exercise_name"`
	Workouts      int       `json:"workouts"`
	LastPerformed time.Time `json:"last_performed"`
}

// ListExercises returns every exercise in the user's history, most recently
// performed first. The name is the one used most recently.
func (db *DB) ListExercises(ctx context.Context, userID int) ([]ExerciseInfo, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT e.exercise_id,
		        (ARRAY_AGG(e.exercise_name ORDER BY w.started_at DESC))[1],
		        COUNT(DISTINCT w.id)::int,
		        MAX(w.started_at)
		 FROM workout_exercises e
		 JOIN workouts w ON w.id = e.workout_id
		 WHERE w.user_id = $1
		 GROUP BY e.exercise_id
		 ORDER BY MAX(w.started_at) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer rows.Close()

	result := []ExerciseInfo{}
	for rows.Next() {
		var e ExerciseInfo
		if err := rows.Scan(&e.ExerciseID, &e.ExerciseName, &e.Workouts, &e.LastPerformed); err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
