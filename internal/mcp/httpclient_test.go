package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/claude/liftsync/internal/models"
	"github.com/claude/liftsync/internal/storage"
	"github.com/google/uuid"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by path. Verifies the HTTP client sends correct paths and query params.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestQueryWorkouts verifies the HTTP client sends the time range and parses
// the workout list.
func TestQueryWorkouts(t *testing.T) {
	id := uuid.New()
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/workouts": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("start"); got != "2026-01-01T00:00:00Z" {
				t.Errorf("start=%q, want 2026-01-01T00:00:00Z", got)
			}
			if got := r.URL.Query().Get("end"); got != "2026-01-07T00:00:00Z" {
				t.Errorf("end=%q, want 2026-01-07T00:00:00Z", got)
			}
			writeTestJSON(t, w, []models.WorkoutRow{{ID: id, Name: "Push Day", DurationSec: 3600}})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)

	workouts, err := client.QueryWorkouts(context.Background(), start, end, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(workouts) != 1 {
		t.Fatalf("got %d workouts, want 1", len(workouts))
	}
	if workouts[0].ID != id || workouts[0].Name != "Push Day" {
		t.Errorf("workout = %+v", workouts[0])
	}
}

// TestRecentWorkoutsTrims verifies RecentWorkouts keeps only the newest limit rows.
func TestRecentWorkoutsTrims(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/workouts": func(w http.ResponseWriter, _ *http.Request) {
			writeTestJSON(t, w, []models.WorkoutRow{{Name: "a"}, {Name: "b"}, {Name: "c"}})
		},
	})
	defer ts.Close()

	workouts, err := NewHTTPClient(ts.URL).RecentWorkouts(context.Background(), 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(workouts) != 2 || workouts[1].Name != "b" {
		t.Errorf("workouts = %+v, want a, b", workouts)
	}
}

// TestGetWorkoutNotFound verifies a 404 maps to storage.ErrNotFound.
func TestGetWorkoutNotFound(t *testing.T) {
	id := uuid.New()
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/workouts/" + id.String(): func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"workout not found"}`))
		},
	})
	defer ts.Close()

	_, err := NewHTTPClient(ts.URL).GetWorkout(context.Background(), id, 1)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// TestGetWorkoutDetail verifies nested exercises and sets decode.
func TestGetWorkoutDetail(t *testing.T) {
	id := uuid.New()
	w, r := 100.0, 5
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/workouts/" + id.String(): func(rw http.ResponseWriter, _ *http.Request) {
			writeTestJSON(t, rw, storage.WorkoutDetail{
				WorkoutRow: models.WorkoutRow{ID: id, Name: "Legs"},
				Exercises: []storage.ExerciseDetail{{
					WorkoutExerciseRow: models.WorkoutExerciseRow{WorkoutID: id, Position: 1, ExerciseID: "squat"},
					Sets:               []models.WorkoutSetRow{{SetNumber: 1, WeightKg: &w, Reps: &r, Completed: true}},
				}},
				Summary: models.WorkoutSummary{Exercises: 1, TotalSets: 1, CountedSets: 1, VolumeKg: 500},
			})
		},
	})
	defer ts.Close()

	detail, err := NewHTTPClient(ts.URL).GetWorkout(context.Background(), id, 1)
	if err != nil {
		t.Fatal(err)
	}
	if detail.Name != "Legs" || len(detail.Exercises) != 1 {
		t.Fatalf("detail = %+v", detail)
	}
	if got := detail.Exercises[0].Sets[0]; *got.WeightKg != 100 || *got.Reps != 5 {
		t.Errorf("set = %+v", got)
	}
	if detail.Summary.VolumeKg != 500 {
		t.Errorf("volume = %v, want 500", detail.Summary.VolumeKg)
	}
}

// TestQueryExerciseProgressEscapesID verifies exercise IDs are path-escaped.
func TestQueryExerciseProgressEscapesID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/api/v1/exercises/bench%20press/progress" {
			t.Errorf("path = %q", r.URL.EscapedPath())
		}
		writeTestJSON(t, w, []storage.ExerciseSession{{Exercise: "Bench Press", Sets: 3, Est1RMKg: 116.7}})
	}))
	defer ts.Close()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sessions, err := NewHTTPClient(ts.URL).QueryExerciseProgress(context.Background(), "bench press", start, start.AddDate(0, 1, 0), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].Sets != 3 {
		t.Errorf("sessions = %+v", sessions)
	}
}

// TestBucketToAgg verifies the bucket-to-agg mapping used for summary requests.
func TestBucketToAgg(t *testing.T) {
	cases := []struct {
		bucket string
		want   string
	}{
		{"1 day", "daily"},
		{"1 week", "weekly"},
		{"1 month", "monthly"},
		{"", "weekly"},
	}
	for _, tc := range cases {
		if got := bucketToAgg(tc.bucket); got != tc.want {
			t.Errorf("bucketToAgg(%q) = %q, want %q", tc.bucket, got, tc.want)
		}
	}
}

// TestHTTPClientServerError verifies the client returns an error on non-200 responses.
func TestHTTPClientServerError(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/exercises": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"database down"}`))
		},
	})
	defer ts.Close()

	_, err := NewHTTPClient(ts.URL).ListExercises(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if errors.Is(err, storage.ErrNotFound) {
		t.Error("500 must not map to ErrNotFound")
	}
}

// TestGetTrainingSummary verifies the training-summary endpoint receives agg.
func TestGetTrainingSummary(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/training-summary": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("agg"); got != "monthly" {
				t.Errorf("agg=%q, want monthly", got)
			}
			writeTestJSON(t, w, []storage.TrainingSummaryPeriod{
				{Period: "2026-01", Sessions: 12, TonnageKg: 48000},
			})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	periods, err := client.GetTrainingSummary(context.Background(), start, end, "1 month", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(periods) != 1 || periods[0].Sessions != 12 {
		t.Fatalf("periods = %+v", periods)
	}
}

// TestGetDataStats verifies the stats endpoint decodes top exercises.
func TestGetDataStats(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/stats": func(w http.ResponseWriter, _ *http.Request) {
			writeTestJSON(t, w, storage.DataStats{
				TotalWorkouts: 40,
				TopExercises:  []storage.ExerciseStat{{ExerciseID: "squat", Sets: 120}},
			})
		},
	})
	defer ts.Close()

	stats, err := NewHTTPClient(ts.URL).GetDataStats(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalWorkouts != 40 || len(stats.TopExercises) != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
