package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/liftsync/internal/ingest/alpha"
	"github.com/claude/liftsync/internal/models"
	"github.com/claude/liftsync/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Store is the persistence the HTTP API needs. *storage.DB satisfies it.
type Store interface {
	Ping(ctx context.Context) error
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
	SaveWorkout(ctx context.Context, userID int, p models.WorkoutPayload) (storage.SaveResult, error)
	QueryWorkouts(ctx context.Context, start, end time.Time, userID int) ([]models.WorkoutRow, error)
	GetWorkout(ctx context.Context, workoutID uuid.UUID, userID int) (*storage.WorkoutDetail, error)
	ListExercises(ctx context.Context, userID int) ([]storage.ExerciseInfo, error)
	QueryExerciseProgress(ctx context.Context, exerciseID string, start, end time.Time, userID int) ([]storage.ExerciseSession, error)
	GetDataStats(ctx context.Context, userID int) (*storage.DataStats, error)
	GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.TrainingSummaryPeriod, error)
	InsertSaveLog(ctx context.Context, log storage.SaveLog) (int64, error)
	QuerySaveLogs(ctx context.Context, userID, limit int) ([]storage.SaveLog, error)
}

// IdentityFunc resolves the caller behind a remote address, e.g. via Tailscale WhoIs.
type IdentityFunc func(ctx context.Context, remoteAddr string) (UserInfo, error)

// Server holds dependencies for HTTP handlers.
type Server struct {
	db       Store
	log      *slog.Logger
	apiKey   string
	identity IdentityFunc
	alpha    *alpha.Provider
	router   chi.Router
}

// New creates a new Server with all routes configured.
func New(db Store, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		db:     db,
		log:    log,
		apiKey: apiKey,
		alpha:  alpha.NewProvider(db, log),
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetIdentity switches request identity from the local dev user to fn.
func (s *Server) SetIdentity(fn IdentityFunc) {
	s.identity = fn
}

// MountMCP serves the MCP streamable HTTP handler at /mcp.
func (s *Server) MountMCP(h http.Handler) {
	s.router.With(s.identify).Handle("/mcp", h)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Get("/api/v1/health", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(s.identify)

		// Remote procedure calls from clients (API key required)
		r.Route("/api/v1/rpc", func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/save_workout", s.handleSaveWorkout)
			r.Post("/import/alpha", s.handleImportAlpha)
		})

		// History API endpoints (no key, tsnet handles access)
		r.Get("/api/v1/me", s.handleMe)
		r.Get("/api/v1/workouts", s.handleQueryWorkouts)
		r.Get("/api/v1/workouts/{id}", s.handleGetWorkout)
		r.Get("/api/v1/exercises", s.handleListExercises)
		r.Get("/api/v1/exercises/{id}/progress", s.handleExerciseProgress)
		r.Get("/api/v1/stats", s.handleStats)
		r.Get("/api/v1/training-summary", s.handleTrainingSummary)
		r.Get("/api/v1/save-logs", s.handleSaveLogs)
	})
}
