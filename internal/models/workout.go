package models

import "time"

// WorkoutDraft is an in-progress workout that only lives on the client until saved.
type WorkoutDraft struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Notes     string          `json:"notes"`
	CreatedAt time.Time       `json:"created_at"`
	Exercises []ExerciseBlock `json:"exercises"`
}

// ExerciseBlock is one exercise within a draft with its ordered sets.
type ExerciseBlock struct {
	ExerciseID   string `json:"exercise_id"`
	ExerciseName string `json:"exercise_name"`
	Sets         []Set  `json:"sets"`
}

// Set is a single logged attempt. Weight and Reps stay nil until entered.
type Set struct {
	WeightKg  *float64 `json:"weight_kg"`
	Reps      *int     `json:"reps"`
	Completed bool     `json:"completed"`
	RIR       *float64 `json:"rir,omitempty"`
	Technique string   `json:"technique,omitempty"`
}

// Counts reports whether the set contributes to summary statistics.
func (s Set) Counts() bool {
	return s.Completed && s.WeightKg != nil && s.Reps != nil
}

// WorkoutPayload is the body of the remote save call.
// DraftID doubles as the server-side idempotency key.
type WorkoutPayload struct {
	DraftID    string          `json:"draft_id"`
	Name       string          `json:"name"`
	Notes      string          `json:"notes"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Exercises  []ExerciseBlock `json:"exercises"`
}

// Payload finalizes a draft into the shape the remote save call expects.
func (d WorkoutDraft) Payload(finishedAt time.Time) WorkoutPayload {
	exercises := make([]ExerciseBlock, len(d.Exercises))
	for i, b := range d.Exercises {
		exercises[i] = b.clone()
	}
	return WorkoutPayload{
		DraftID:    d.ID,
		Name:       d.Name,
		Notes:      d.Notes,
		StartedAt:  d.CreatedAt,
		FinishedAt: finishedAt,
		Exercises:  exercises,
	}
}

// Clone returns a deep copy so callers can't mutate shared set pointers.
func (d WorkoutDraft) Clone() WorkoutDraft {
	out := d
	out.Exercises = make([]ExerciseBlock, len(d.Exercises))
	for i, b := range d.Exercises {
		out.Exercises[i] = b.clone()
	}
	return out
}

func (b ExerciseBlock) clone() ExerciseBlock {
	out := b
	out.Sets = make([]Set, len(b.Sets))
	for i, s := range b.Sets {
		out.Sets[i] = s.clone()
	}
	return out
}

func (s Set) clone() Set {
	out := s
	if s.WeightKg != nil {
		w := *s.WeightKg
		out.WeightKg = &w
	}
	if s.Reps != nil {
		r := *s.Reps
		out.Reps = &r
	}
	if s.RIR != nil {
		r := *s.RIR
		out.RIR = &r
	}
	return out
}
