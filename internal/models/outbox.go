package models

import "time"

// OutboxEntry is a finalized workout waiting for delivery to the server.
type OutboxEntry struct {
	ID          string         `json:"id"`
	Payload     WorkoutPayload `json:"payload"`
	EnqueuedAt  time.Time      `json:"enqueued_at"`
	Revision    int            `json:"revision"` // bumped when a newer payload replaces this one
	RetryCount  int            `json:"retry_count"`
	LastError   string         `json:"last_error,omitempty"`
	NextAttempt time.Time      `json:"next_attempt,omitzero"`
}
