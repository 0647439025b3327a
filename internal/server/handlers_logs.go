package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/liftsync/internal/models"
	"github.com/claude/liftsync/internal/storage"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetDataStats(r.Context(), userIDFromContext(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSaveLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	logs, err := s.db.QuerySaveLogs(r.Context(), userIDFromContext(r), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// logSave records a save call's outcome to the save_logs table.
func (s *Server) logSave(uid int, p models.WorkoutPayload, result storage.SaveResult, saveErr error, durationMs int) {
	entry := storage.SaveLog{
		UserID:     uid,
		DraftID:    p.DraftID,
		Status:     "success",
		DurationMs: &durationMs,
	}
	if saveErr != nil {
		entry.Status = "error"
		msg := saveErr.Error()
		entry.ErrorMessage = &msg
		entry.Exercises = len(p.Exercises)
	} else {
		id := result.WorkoutID
		entry.WorkoutID = &id
		entry.Created = result.Created
		entry.Exercises = result.Exercises
		entry.Sets = result.Sets
	}

	ctx, cancel := contextWithTimeout()
	defer cancel()

	if _, err := s.db.InsertSaveLog(ctx, entry); err != nil {
		s.log.Error("failed to log save", "draft_id", p.DraftID, "error", err)
	}
}

// contextWithTimeout returns a background context with a 5-second timeout for logging
// that must outlive a cancelled request.
func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second) //nolint:mnd
}
