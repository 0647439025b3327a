package server

import (
	"net/http"
)

// maxImportBytes bounds an uploaded CSV export.
const maxImportBytes = 10 << 20

// handleImportAlpha saves every session of an Alpha Progression CSV export
// posted as the request body. Re-posting the same export updates in place.
func (s *Server) handleImportAlpha(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)

	result, err := s.alpha.Ingest(r.Context(), body, uid)
	if err != nil {
		s.log.Error("alpha import error", "error", err)
		status := http.StatusBadRequest
		if result != nil {
			// Parsed fine; a save failed part-way.
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]any{"error": err.Error(), "result": result})
		return
	}

	s.log.Info("alpha import",
		"sessions", result.Sessions,
		"created", result.Created,
		"updated", result.Updated,
		"sets", result.Sets,
	)
	writeJSON(w, http.StatusOK, result)
}
