package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveLog records the outcome of one save RPC call.
type SaveLog struct {
	ID           int64      `json:"id"`
	UserID       int        `json:"user_id"`
	CreatedAt    time.Time  `json:"created_at"`
	DraftID      string     `json:"draft_id"`
	WorkoutID    *uuid.UUID `json:"workout_id"`
	Status       string     `json:"status"`
	Created      bool       `json:"created"`
	Exercises    int        `json:"exercises"`
	Sets         int        `json:"sets"`
	DurationMs   *int       `json:"duration_ms"`
	ErrorMessage *string    `json:"error_message"`
}

// InsertSaveLog creates a new save log entry and returns its ID.
func (db *DB) InsertSaveLog(ctx context.Context, log SaveLog) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO save_logs (user_id, draft_id, workout_id, status, created,
		 exercises, sets, duration_ms, error_message)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 RETURNING id`,
		log.UserID, log.DraftID, log.WorkoutID, log.Status, log.Created,
		log.Exercises, log.Sets, log.DurationMs, log.ErrorMessage,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting save log: %w", err)
	}
	return id, nil
}

// QuerySaveLogs returns the most recent save logs for a user.
func (db *DB) QuerySaveLogs(ctx context.Context, userID, limit int) ([]SaveLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, created_at, draft_id, workout_id, status, created,
		 exercises, sets, duration_ms, error_message
		 FROM save_logs
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying save logs: %w", err)
	}
	defer rows.Close()

	result := []SaveLog{}
	for rows.Next() {
		var l SaveLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.CreatedAt, &l.DraftID, &l.WorkoutID, &l.Status,
			&l.Created, &l.Exercises, &l.Sets, &l.DurationMs, &l.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scanning save log: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}
