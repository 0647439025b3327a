package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/claude/liftsync/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a workout does not exist for the user.
var ErrNotFound = errors.New("not found")

// SaveResult is the outcome of an atomic workout save.
type SaveResult struct {
	WorkoutID uuid.UUID `json:"workout_id"`
	Created   bool      `json:"created"`
	Exercises int       `json:"-"`
	Sets      int       `json:"-"`
}

// SaveWorkout persists a finalized workout in one transaction. The draft ID is
// the idempotency key: saving the same draft again replaces the earlier
// exercises and sets and reports Created=false, so a retried delivery never
// produces a second workout.
func (db *DB) SaveWorkout(ctx context.Context, userID int, p models.WorkoutPayload) (SaveResult, error) {
	if p.DraftID == "" {
		return SaveResult{}, fmt.Errorf("saving workout: draft_id is required")
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return SaveResult{}, fmt.Errorf("beginning save: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	duration := p.FinishedAt.Sub(p.StartedAt).Seconds()
	if duration < 0 {
		duration = 0
	}

	var res SaveResult
	err = tx.QueryRow(ctx,
		`INSERT INTO workouts (user_id, draft_id, name, notes, started_at, finished_at, duration_sec)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (user_id, draft_id) DO UPDATE SET
		   name = EXCLUDED.name, notes = EXCLUDED.notes,
		   started_at = EXCLUDED.started_at, finished_at = EXCLUDED.finished_at,
		   duration_sec = EXCLUDED.duration_sec, updated_at = NOW()
		 RETURNING id, (xmax = 0)`,
		userID, p.DraftID, p.Name, p.Notes, p.StartedAt, p.FinishedAt, duration,
	).Scan(&res.WorkoutID, &res.Created)
	if err != nil {
		return SaveResult{}, fmt.Errorf("upserting workout: %w", err)
	}

	if !res.Created {
		if _, err := tx.Exec(ctx, `DELETE FROM workout_exercises WHERE workout_id = $1`, res.WorkoutID); err != nil {
			return SaveResult{}, fmt.Errorf("clearing previous exercises: %w", err)
		}
	}

	exercises, sets := flattenPayload(res.WorkoutID, p)
	if err := insertExercises(ctx, tx, exercises); err != nil {
		return SaveResult{}, err
	}
	if err := insertSets(ctx, tx, sets); err != nil {
		return SaveResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return SaveResult{}, fmt.Errorf("committing save: %w", err)
	}
	res.Exercises = len(exercises)
	res.Sets = len(sets)
	return res, nil
}

// flattenPayload turns the nested payload into table rows. Positions and set
// numbers are 1-based and follow payload order.
func flattenPayload(workoutID uuid.UUID, p models.WorkoutPayload) ([]models.WorkoutExerciseRow, []models.WorkoutSetRow) {
	exercises := make([]models.WorkoutExerciseRow, 0, len(p.Exercises))
	var sets []models.WorkoutSetRow
	for i, b := range p.Exercises {
		pos := i + 1
		exercises = append(exercises, models.WorkoutExerciseRow{
			WorkoutID:    workoutID,
			Position:     pos,
			ExerciseID:   b.ExerciseID,
			ExerciseName: b.ExerciseName,
		})
		for j, s := range b.Sets {
			sets = append(sets, models.WorkoutSetRow{
				WorkoutID:        workoutID,
				ExercisePosition: pos,
				SetNumber:        j + 1,
				WeightKg:         s.WeightKg,
				Reps:             s.Reps,
				Completed:        s.Completed,
				RIR:              s.RIR,
				Technique:        s.Technique,
			})
		}
	}
	return exercises, sets
}

func insertExercises(ctx context.Context, tx pgx.Tx, rows []models.WorkoutExerciseRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO workout_exercises (workout_id, position, exercise_id, exercise_name) VALUES `
	args := make([]any, 0, len(rows)*4)
	valueStrings := make([]string, 0, len(rows))

	for i, r := range rows {
		base := i * 4
		valueStrings = append(valueStrings, fmt.Sprintf("($%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4))
		args = append(args, r.WorkoutID, r.Position, r.ExerciseID, r.ExerciseName)
	}

	if _, err := tx.Exec(ctx, query+strings.Join(valueStrings, ","), args...); err != nil {
		return fmt.Errorf("inserting workout exercises: %w", err)
	}
	return nil
}

func insertSets(ctx context.Context, tx pgx.Tx, rows []models.WorkoutSetRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO workout_sets (workout_id, exercise_position, set_number,
		weight_kg, reps, completed, rir, technique) VALUES `
	args := make([]any, 0, len(rows)*8)
	valueStrings := make([]string, 0, len(rows))

	for i, r := range rows {
		base := i * 8
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args, r.WorkoutID, r.ExercisePosition, r.SetNumber,
			r.WeightKg, r.Reps, r.Completed, r.RIR, r.Technique)
	}

	if _, err := tx.Exec(ctx, query+strings.Join(valueStrings, ","), args...); err != nil {
		return fmt.Errorf("inserting workout sets: %w", err)
	}
	return nil
}

// WorkoutDetail is a workout with its exercises and sets.
type WorkoutDetail struct {
	models.WorkoutRow
	Exercises []ExerciseDetail      `json:"exercises"`
	Summary   models.WorkoutSummary `json:"summary"`
}

// ExerciseDetail is one exercise of a saved workout.
type ExerciseDetail struct {
	models.WorkoutExerciseRow
	Sets []models.WorkoutSetRow `json:"sets"`
}

// QueryWorkouts retrieves workouts started in a time range, newest first.
func (db *DB) QueryWorkouts(ctx context.Context, start, end time.Time, userID int) ([]models.WorkoutRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, draft_id, name, notes, started_at, finished_at, duration_sec, created_at
		 FROM workouts
		 WHERE started_at >= $1 AND started_at < $2 AND user_id = $3
		 ORDER BY started_at DESC`,
		start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	defer rows.Close()

	return scanWorkoutRows(rows)
}

// RecentWorkouts returns the user's latest workouts.
func (db *DB) RecentWorkouts(ctx context.Context, userID, limit int) ([]models.WorkoutRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, draft_id, name, notes, started_at, finished_at, duration_sec, created_at
		 FROM workouts
		 WHERE user_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent workouts: %w", err)
	}
	defer rows.Close()

	return scanWorkoutRows(rows)
}

// GetWorkout retrieves a single workout by ID with all exercises and sets.
func (db *DB) GetWorkout(ctx context.Context, workoutID uuid.UUID, userID int) (*WorkoutDetail, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, draft_id, name, notes, started_at, finished_at, duration_sec, created_at
		 FROM workouts
		 WHERE id = $1 AND user_id = $2`,
		workoutID, userID)

	var w models.WorkoutRow
	err := row.Scan(&w.ID, &w.UserID, &w.DraftID, &w.Name, &w.Notes,
		&w.StartedAt, &w.FinishedAt, &w.DurationSec, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying workout: %w", err)
	}

	detail := &WorkoutDetail{WorkoutRow: w}

	exRows, err := db.Pool.Query(ctx,
		`SELECT workout_id, position, exercise_id, exercise_name
		 FROM workout_exercises
		 WHERE workout_id = $1
		 ORDER BY position ASC`,
		workoutID)
	if err != nil {
		return nil, fmt.Errorf("querying workout exercises: %w", err)
	}
	defer exRows.Close()

	byPos := make(map[int]int)
	for exRows.Next() {
		var e ExerciseDetail
		if err := exRows.Scan(&e.WorkoutID, &e.Position, &e.ExerciseID, &e.ExerciseName); err != nil {
			return nil, fmt.Errorf("scanning workout exercise: %w", err)
		}
		e.Sets = []models.WorkoutSetRow{}
		byPos[e.Position] = len(detail.Exercises)
		detail.Exercises = append(detail.Exercises, e)
	}
	if err := exRows.Err(); err != nil {
		return nil, err
	}

	setRows, err := db.Pool.Query(ctx,
		`SELECT workout_id, exercise_position, set_number, weight_kg, reps, completed, rir, technique
		 FROM workout_sets
		 WHERE workout_id = $1
		 ORDER BY exercise_position ASC, set_number ASC`,
		workoutID)
	if err != nil {
		return nil, fmt.Errorf("querying workout sets: %w", err)
	}
	defer setRows.Close()

	for setRows.Next() {
		var s models.WorkoutSetRow
		if err := setRows.Scan(&s.WorkoutID, &s.ExercisePosition, &s.SetNumber,
			&s.WeightKg, &s.Reps, &s.Completed, &s.RIR, &s.Technique); err != nil {
			return nil, fmt.Errorf("scanning workout set: %w", err)
		}
		if i, ok := byPos[s.ExercisePosition]; ok {
			detail.Exercises[i].Sets = append(detail.Exercises[i].Sets, s)
		}
	}
	if err := setRows.Err(); err != nil {
		return nil, err
	}

	detail.Summary = models.Summarize(detail.Blocks())
	return detail, nil
}

// Blocks converts the stored rows back into payload-shaped exercise blocks.
func (d *WorkoutDetail) Blocks() []models.ExerciseBlock {
	blocks := make([]models.ExerciseBlock, len(d.Exercises))
	for i, e := range d.Exercises {
		b := models.ExerciseBlock{
			ExerciseID:   e.ExerciseID,
			ExerciseName: e.ExerciseName,
			Sets:         make([]models.Set, len(e.Sets)),
		}
		for j, s := range e.Sets {
			b.Sets[j] = models.Set{
				WeightKg:  s.WeightKg,
				Reps:      s.Reps,
				Completed: s.Completed,
				RIR:       s.RIR,
				Technique: s.Technique,
			}
		}
		blocks[i] = b
	}
	return blocks
}

func scanWorkoutRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]models.WorkoutRow, error) {
	result := []models.WorkoutRow{}
	for rows.Next() {
		var w models.WorkoutRow
		if err := rows.Scan(&w.ID, &w.UserID, &w.DraftID, &w.Name, &w.Notes,
			&w.StartedAt, &w.FinishedAt, &w.DurationSec, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		result = append(result, w)
	}
	return result, rows.Err()
}
