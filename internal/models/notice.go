package models

// NoticeKind identifies a transient status message for the user.
type NoticeKind string

const (
	NoticeSaved        NoticeKind = "saved"
	NoticeSavedOffline NoticeKind = "saved_offline"
	NoticeSynced       NoticeKind = "synced"
)

// Notice is a transient, user-visible status update emitted by the core.
// The UI layer decides how (and whether) to display it.
type Notice struct {
	Kind      NoticeKind `json:"kind"`
	DraftID   string     `json:"draft_id"`
	WorkoutID string     `json:"workout_id,omitempty"`
}
