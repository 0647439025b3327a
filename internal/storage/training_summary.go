package storage

import (
	"context"
	"fmt"
	"time"
)

// TrainingSummaryPeriod holds aggregated training volume for one time period.
type TrainingSummaryPeriod struct {
	Period            string  `json:"period"`
	Sessions          int     `json:"sessions"`
	WorkingSets       int     `json:"working_sets"`
	TotalReps         int     `json:"total_reps"`
	TonnageKg         float64 `json:"tonnage_kg"`
	AvgDurationSec    float64 `json:"avg_duration_sec"`
	AvgSetsPerSession float64 `json:"avg_sets_per_session"`
}

// GetTrainingSummary returns aggregated volume stats per period, newest first.
// Working sets are completed sets with weight and reps.
func (db *DB) GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]TrainingSummaryPeriod, error) {
	rows, err := db.Pool.Query(ctx,
		`WITH per_workout AS (
		   SELECT w.id, w.started_at, w.duration_sec,
		          COUNT(s.set_number) FILTER (WHERE s.completed AND s.weight_kg IS NOT NULL AND s.reps IS NOT NULL) AS sets,
		          COALESCE(SUM(s.reps) FILTER (WHERE s.completed AND s.weight_kg IS NOT NULL), 0) AS reps,
		          COALESCE(SUM(s.weight_kg * s.reps) FILTER (WHERE s.completed), 0) AS tonnage
		   FROM workouts w
		   LEFT JOIN workout_sets s ON s.workout_id = w.id
		   WHERE w.started_at >= $2 AND w.started_at < $3 AND w.user_id = $4
		   GROUP BY w.id
		 )
		 SELECT date_trunc($1, started_at)::date AS period,
		        COUNT(*)::int,
		        COALESCE(SUM(sets), 0)::int,
		        COALESCE(SUM(reps), 0)::int,
		        COALESCE(SUM(tonnage), 0),
		        COALESCE(AVG(duration_sec), 0)
		 FROM per_workout
		 GROUP BY period
		 ORDER BY period DESC`,
		truncInterval(bucket), start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying training summary: %w", err)
	}
	defer rows.Close()

	result := []TrainingSummaryPeriod{}
	for rows.Next() {
		var periodTime time.Time
		var p TrainingSummaryPeriod
		if err := rows.Scan(&periodTime, &p.Sessions, &p.WorkingSets, &p.TotalReps, &p.TonnageKg, &p.AvgDurationSec); err != nil {
			return nil, fmt.Errorf("scanning training summary: %w", err)
		}
		p.Period = periodTime.Format("2006-01-02")
		if p.Sessions > 0 {
			p.AvgSetsPerSession = float64(p.WorkingSets) / float64(p.Sessions)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// truncInterval converts bucket strings like "1 month" to the interval name
// that date_trunc expects (e.g. "month", "week").
func truncInterval(bucket string) string {
	switch bucket {
	case "1 day":
		return "day"
	case "1 week":
		return "week"
	case "1 month":
		return "month"
	default:
		return "week"
	}
}
