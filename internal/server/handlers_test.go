package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/claude/liftsync/internal/models"
	"github.com/claude/liftsync/internal/storage"
	"github.com/google/uuid"
)

type fakeStore struct {
	mu       sync.Mutex
	pingErr  error
	saveErr  error
	saved    map[string]uuid.UUID // draft id -> workout id
	payloads []models.WorkoutPayload
	logs     []storage.SaveLog
	users    map[string]int
	userErr  error
	lastUID  int
	limit    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: map[string]uuid.UUID{}, users: map[string]int{}}
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) GetOrCreateUser(_ context.Context, login, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userErr != nil {
		return 0, f.userErr
	}
	if id, ok := f.users[login]; ok {
		return id, nil
	}
	id := len(f.users) + 2
	f.users[login] = id
	return id, nil
}

func (f *fakeStore) SaveWorkout(_ context.Context, userID int, p models.WorkoutPayload) (storage.SaveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUID = userID
	if f.saveErr != nil {
		return storage.SaveResult{}, f.saveErr
	}
	f.payloads = append(f.payloads, p)
	if id, ok := f.saved[p.DraftID]; ok {
		return storage.SaveResult{WorkoutID: id, Exercises: len(p.Exercises)}, nil
	}
	id := uuid.New()
	f.saved[p.DraftID] = id
	return storage.SaveResult{WorkoutID: id, Created: true, Exercises: len(p.Exercises)}, nil
}

func (f *fakeStore) QueryWorkouts(_ context.Context, start, end time.Time, userID int) ([]models.WorkoutRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUID = userID
	var rows []models.WorkoutRow
	for draftID, id := range f.saved {
		rows = append(rows, models.WorkoutRow{ID: id, UserID: userID, DraftID: draftID, StartedAt: start})
	}
	return rows, nil
}

func (f *fakeStore) GetWorkout(_ context.Context, workoutID uuid.UUID, userID int) (*storage.WorkoutDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for draftID, id := range f.saved {
		if id == workoutID {
			return &storage.WorkoutDetail{WorkoutRow: models.WorkoutRow{ID: id, UserID: userID, DraftID: draftID}}, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) ListExercises(context.Context, int) ([]storage.ExerciseInfo, error) {
	return []storage.ExerciseInfo{{ExerciseID: "squat", ExerciseName: "Back Squat", Workouts: 3}}, nil
}

func (f *fakeStore) QueryExerciseProgress(_ context.Context, exerciseID string, _, _ time.Time, _ int) ([]storage.ExerciseSession, error) {
	return []storage.ExerciseSession{{Exercise: exerciseID, Sets: 3, TopWeightKg: 100}}, nil
}

func (f *fakeStore) GetDataStats(context.Context, int) (*storage.DataStats, error) {
	return &storage.DataStats{TotalWorkouts: int64(len(f.saved))}, nil
}

func (f *fakeStore) GetTrainingSummary(_ context.Context, _, _ time.Time, bucket string, _ int) ([]storage.TrainingSummaryPeriod, error) {
	return []storage.TrainingSummaryPeriod{{Period: bucket}}, nil
}

func (f *fakeStore) InsertSaveLog(_ context.Context, l storage.SaveLog) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, l)
	return int64(len(f.logs)), nil
}

func (f *fakeStore) QuerySaveLogs(_ context.Context, _ int, limit int) ([]storage.SaveLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
	return f.logs, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func savePayload(draftID string) []byte {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := models.WorkoutPayload{
		DraftID:    draftID,
		Name:       "Legs",
		StartedAt:  start,
		FinishedAt: start.Add(time.Hour),
		Exercises: []models.ExerciseBlock{{
			ExerciseID: "squat",
			Sets:       []models.Set{{WeightKg: ptr(50.0), Reps: ptr(10), Completed: true}},
		}},
	}
	data, _ := json.Marshal(p)
	return data
}

func doSave(s *Server, key string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rpc/save_workout", bytes.NewReader(body))
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

// TestSaveWorkoutRPC verifies a valid save returns the workout id and a
// repeated save of the same draft reports created=false with the same id.
func TestSaveWorkoutRPC(t *testing.T) {
	db := newFakeStore()
	s := New(db, "secret", testLogger())

	rec := doSave(s, "secret", savePayload("d1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var first struct {
		WorkoutID string `json:"workout_id"`
		Created   bool   `json:"created"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&first); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if first.WorkoutID == "" || !first.Created {
		t.Errorf("first save = %+v", first)
	}

	rec = doSave(s, "secret", savePayload("d1"))
	var second struct {
		WorkoutID string `json:"workout_id"`
		Created   bool   `json:"created"`
	}
	json.NewDecoder(rec.Body).Decode(&second)
	if second.WorkoutID != first.WorkoutID || second.Created {
		t.Errorf("second save = %+v, want same id and created=false", second)
	}

	if db.lastUID != 1 {
		t.Errorf("saved as user %d, want dev user 1", db.lastUID)
	}
	if len(db.logs) != 2 || db.logs[0].Status != "success" || !db.logs[0].Created {
		t.Errorf("save logs = %+v", db.logs)
	}
}

// TestSaveWorkoutRejects verifies auth and validation failures come back as 4xx.
func TestSaveWorkoutRejects(t *testing.T) {
	s := New(newFakeStore(), "secret", testLogger())

	tests := []struct {
		name string
		key  string
		body []byte
		want int
	}{
		{"missing key", "", savePayload("d1"), http.StatusUnauthorized},
		{"wrong key", "nope", savePayload("d1"), http.StatusForbidden},
		{"bad json", "secret", []byte("{"), http.StatusBadRequest},
		{"no draft id", "secret", savePayload(""), http.StatusBadRequest},
		{"no timestamps", "secret", []byte(`{"draft_id":"d1"}`), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := doSave(s, tt.key, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

// TestSaveWorkoutStoreError verifies a failed transaction returns 500 and is logged.
func TestSaveWorkoutStoreError(t *testing.T) {
	db := newFakeStore()
	db.saveErr = errors.New("connection reset")
	s := New(db, "secret", testLogger())

	rec := doSave(s, "secret", savePayload("d1"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if len(db.logs) != 1 || db.logs[0].Status != "error" || db.logs[0].ErrorMessage == nil {
		t.Errorf("save logs = %+v", db.logs)
	}
}

// TestValidatePayload checks the payload rules the save RPC enforces.
func TestValidatePayload(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	base := models.WorkoutPayload{DraftID: "d1", StartedAt: start, FinishedAt: start.Add(time.Hour)}

	if err := validatePayload(base); err != nil {
		t.Errorf("valid payload: %v", err)
	}

	backwards := base
	backwards.FinishedAt = start.Add(-time.Minute)
	if err := validatePayload(backwards); err == nil {
		t.Error("finished before started accepted")
	}

	noExercise := base
	noExercise.Exercises = []models.ExerciseBlock{{}}
	if err := validatePayload(noExercise); err == nil {
		t.Error("block without exercise_id accepted")
	}

	negative := base
	negative.Exercises = []models.ExerciseBlock{{ExerciseID: "x", Sets: []models.Set{{Reps: ptr(-1)}}}}
	if err := validatePayload(negative); err == nil {
		t.Error("negative reps accepted")
	}
}

// TestGetWorkout verifies id parsing and not-found handling.
func TestGetWorkout(t *testing.T) {
	db := newFakeStore()
	s := New(db, "secret", testLogger())
	doSave(s, "secret", savePayload("d1"))
	id := db.saved["d1"]

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/workouts/" + id.String(), http.StatusOK},
		{"/api/v1/workouts/not-a-uuid", http.StatusBadRequest},
		{"/api/v1/workouts/" + uuid.NewString(), http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

// TestQueryWorkoutsTimeRange verifies bad ranges are rejected and good ones are passed through.
func TestQueryWorkoutsTimeRange(t *testing.T) {
	s := New(newFakeStore(), "secret", testLogger())

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/workouts?start=yesterday", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad start status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/workouts?start=2026-03-01&end=2026-03-07", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// TestParseTimeRangeDateOnlyEnd verifies a date-only end covers that whole day.
func TestParseTimeRangeDateOnlyEnd(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?start=2026-03-01&end=2026-03-07", nil)
	start, end, err := parseTimeRange(req)
	if err != nil {
		t.Fatal(err)
	}
	if !start.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	if !end.Equal(time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v, want start of 2026-03-08", end)
	}
}

// TestHealth verifies the health endpoint reflects database reachability.
func TestHealth(t *testing.T) {
	db := newFakeStore()
	s := New(db, "secret", testLogger())

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	db.pingErr = errors.New("down")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

// TestSaveLogsLimit verifies the limit query parameter, falling back to 50.
func TestSaveLogsLimit(t *testing.T) {
	db := newFakeStore()
	s := New(db, "secret", testLogger())

	for query, want := range map[string]int{"?limit=5": 5, "?limit=abc": 50, "": 50} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/save-logs"+query, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if db.limit != want {
			t.Errorf("limit for %q = %d, want %d", query, db.limit, want)
		}
	}
}

// TestTrainingSummaryBucket verifies the agg parameter selects the bucket.
func TestTrainingSummaryBucket(t *testing.T) {
	s := New(newFakeStore(), "secret", testLogger())

	for agg, want := range map[string]string{"daily": "1 day", "monthly": "1 month", "": "1 week"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/training-summary?agg="+agg, nil))
		var periods []storage.TrainingSummaryPeriod
		json.NewDecoder(rec.Body).Decode(&periods)
		if len(periods) != 1 || periods[0].Period != want {
			t.Errorf("agg=%q periods = %+v, want bucket %q", agg, periods, want)
		}
	}
}

// TestExerciseProgressRoute verifies the exercise id is taken from the path.
func TestExerciseProgressRoute(t *testing.T) {
	s := New(newFakeStore(), "secret", testLogger())

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/exercises/squat/progress", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"exercise_name":"squat"`) {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

// TestHandleMeDefault verifies the /api/v1/me endpoint returns the dev user
// identity when no Tailscale identity is configured.
func TestHandleMeDefault(t *testing.T) {
	s := New(newFakeStore(), "secret", testLogger())
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))

	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if info.Login != "local" {
		t.Errorf("login = %q, want %q", info.Login, "local")
	}
}

// TestHandleMeTailscaleUser verifies a configured identity function resolves
// the caller and maps it to a stored user.
func TestHandleMeTailscaleUser(t *testing.T) {
	db := newFakeStore()
	s := New(db, "secret", testLogger())
	s.SetIdentity(func(ctx context.Context, remoteAddr string) (UserInfo, error) {
		return UserInfo{Login: "alice@example.com", DisplayName: "Alice"}, nil
	})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	var info UserInfo
	json.NewDecoder(rec.Body).Decode(&info)
	if info.Login != "alice@example.com" || info.DisplayName != "Alice" {
		t.Errorf("info = %+v", info)
	}

	doSave(s, "secret", savePayload("d1"))
	if db.lastUID != db.users["alice@example.com"] {
		t.Errorf("saved as user %d, want %d", db.lastUID, db.users["alice@example.com"])
	}
}

// TestIdentityFailure verifies unknown callers are refused.
func TestIdentityFailure(t *testing.T) {
	s := New(newFakeStore(), "secret", testLogger())
	s.SetIdentity(func(context.Context, string) (UserInfo, error) {
		return UserInfo{}, errors.New("not on tailnet")
	})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/workouts", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	// Health stays reachable for client probes.
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}
