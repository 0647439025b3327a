package alpha

import (
	"strings"
	"unicode"

	"github.com/claude/liftsync/internal/models"
	"github.com/google/uuid"
)

// draftNamespace scopes the name-based UUIDs used as import draft IDs.
var draftNamespace = uuid.MustParse("6f1d3a8e-2c4b-4e1a-9b7f-5d0c8e2a1f34")

// DraftID is stable for a session name and start time, so importing the
// same export twice updates the workouts instead of duplicating them.
func (s Session) DraftID() string {
	key := s.Name + "|" + s.Date.UTC().Format("2006-01-02T15:04")
	return "alpha-" + uuid.NewSHA1(draftNamespace, []byte(key)).String()
}

// Payload converts the session into a save payload. Warmups are kept but
// left uncompleted so they don't count toward volume.
func (s Session) Payload() models.WorkoutPayload {
	p := models.WorkoutPayload{
		DraftID:    s.DraftID(),
		Name:       s.Name,
		StartedAt:  s.Date,
		FinishedAt: s.Date.Add(s.Duration),
		Exercises:  make([]models.ExerciseBlock, 0, len(s.Exercises)),
	}

	for _, ex := range s.Exercises {
		block := models.ExerciseBlock{
			ExerciseID:   ExerciseID(ex.Name, ex.Equipment),
			ExerciseName: ex.Name,
			Sets:         make([]models.Set, 0, len(ex.Sets)),
		}
		for _, set := range ex.Sets {
			block.Sets = append(block.Sets, set.model())
		}
		p.Exercises = append(p.Exercises, block)
	}
	return p
}

func (s Set) model() models.Set {
	weight, reps := s.WeightKg, s.Reps
	out := models.Set{
		WeightKg:  &weight,
		Reps:      &reps,
		Completed: !s.Warmup,
	}
	switch {
	case s.Warmup:
		out.Technique = "warmup"
	case s.BodyweightPlus:
		out.Technique = "bodyweight_plus"
	}
	if !s.Warmup {
		rir := s.RIR
		out.RIR = &rir
	}
	return out
}

// ExerciseID derives a slug such as "hack-squats-machine" so the same
// movement on different equipment tracks separately.
func ExerciseID(name, equipment string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name + " " + equipment)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
