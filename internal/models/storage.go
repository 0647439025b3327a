package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkoutRow is a row of the workouts table.
type WorkoutRow struct {
	ID          uuid.UUID `json:"id"`
	UserID      int       `json:"user_id"`
	DraftID     string    `json:"draft_id"`
	Name        string    `json:"name"`
	Notes       string    `json:"notes"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DurationSec float64   `json:"duration_sec"`
	CreatedAt   time.Time `json:"created_at"`
}

// WorkoutExerciseRow is a row of the workout_exercises table.
type WorkoutExerciseRow struct {
	WorkoutID    uuid.UUID `json:"workout_id"`
	Position     int       `json:"position"`
	ExerciseID   string    `json:"exercise_id"`
	ExerciseName string    `json:"exercise_name"`
}

// WorkoutSetRow is a row of the workout_sets table.
type WorkoutSetRow struct {
	WorkoutID        uuid.UUID `json:"workout_id"`
	ExercisePosition int       `json:"exercise_position"`
	SetNumber        int       `json:"set_number"`
	WeightKg         *float64  `json:"weight_kg"`
	Reps             *int      `json:"reps"`
	Completed        bool      `json:"completed"`
	RIR              *float64  `json:"rir,omitempty"`
	Technique        string    `json:"technique,omitempty"`
}
