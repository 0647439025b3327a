package storage

import (
	"context"
	"fmt"
	"time"
)

// DataStats holds aggregate statistics about a user's saved training.
type DataStats struct {
	TotalWorkouts int64          `json:"total_workouts"`
	TotalSets     int64          `json:"total_sets"`
	CountedSets   int64          `json:"counted_sets"`
	VolumeKg      float64        `json:"volume_kg"`
	EarliestData  *time.Time     `json:"earliest_data"`
	LatestData    *time.Time     `json:"latest_data"`
	TopExercises  []ExerciseStat `json:"top_exercises"`
}

// ExerciseStat holds summary stats for a single exercise.
type ExerciseStat struct {
	ExerciseID string  `json:"exercise_id"`
	Name       string  `json:"name"`
	Workouts   int64   `json:"workouts"`
	Sets       int64   `json:"sets"`
	VolumeKg   float64 `json:"volume_kg"`
}

// GetDataStats returns aggregate statistics for a user's stored data.
func (db *DB) GetDataStats(ctx context.Context, userID int) (*DataStats, error) {
	stats := &DataStats{TopExercises: []ExerciseStat{}}

	// Workouts and date range
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), MIN(started_at), MAX(started_at) FROM workouts WHERE user_id = $1`, userID,
	).Scan(&stats.TotalWorkouts, &stats.EarliestData, &stats.LatestData)
	if err != nil {
		return nil, fmt.Errorf("counting workouts: %w", err)
	}

	// Sets and volume
	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE s.completed AND s.weight_kg IS NOT NULL AND s.reps IS NOT NULL),
		        COALESCE(SUM(s.weight_kg * s.reps) FILTER (WHERE s.completed), 0)
		 FROM workout_sets s
		 JOIN workouts w ON w.id = s.workout_id
		 WHERE w.user_id = $1`, userID,
	).Scan(&stats.TotalSets, &stats.CountedSets, &stats.VolumeKg)
	if err != nil {
		return nil, fmt.Errorf("counting sets: %w", err)
	}

	// Most trained exercises
	rows, err := db.Pool.Query(ctx,
		`SELECT e.exercise_id, MAX(e.exercise_name), COUNT(DISTINCT w.id), COUNT(s.set_number),
		        COALESCE(SUM(s.weight_kg * s.reps) FILTER (WHERE s.completed), 0)
		 FROM workout_exercises e
		 JOIN workouts w ON w.id = e.workout_id
		 LEFT JOIN workout_sets s ON s.workout_id = e.workout_id AND s.exercise_position = e.position
		 WHERE w.user_id = $1
		 GROUP BY e.exercise_id
		 ORDER BY COUNT(DISTINCT w.id) DESC, e.exercise_id
		 LIMIT 10`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying exercise stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s ExerciseStat
		if err := rows.Scan(&s.ExerciseID, &s.Name, &s.Workouts, &s.Sets, &s.VolumeKg); err != nil {
			return nil, fmt.Errorf("scanning exercise stat: %w", err)
		}
		stats.TopExercises = append(stats.TopExercises, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
