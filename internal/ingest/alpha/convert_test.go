package alpha

import (
	"strings"
	"testing"
	"time"
)

// TestPayloadConversion verifies sessions map onto save payloads with
// warmups kept but not counted.
func TestPayloadConversion(t *testing.T) {
	sessions, err := Parse(strings.NewReader(sampleCSV), time.UTC)
	if err != nil {
		t.Fatal(err)
	}

	p := sessions[0].Payload()
	if p.Name != sessions[0].Name {
		t.Errorf("name = %q", p.Name)
	}
	if got := p.FinishedAt.Sub(p.StartedAt); got != 62*time.Minute {
		t.Errorf("duration = %v, want 62m", got)
	}
	if len(p.Exercises) != 6 {
		t.Fatalf("exercises = %d, want 6", len(p.Exercises))
	}

	hack := p.Exercises[0]
	if hack.ExerciseID != "hack-squats-machine" {
		t.Errorf("exercise id = %q", hack.ExerciseID)
	}
	if len(hack.Sets) != 5 {
		t.Fatalf("sets = %d, want 5", len(hack.Sets))
	}
	wu := hack.Sets[0]
	if wu.Completed || wu.Technique != "warmup" || wu.RIR != nil {
		t.Errorf("warmup = %+v, want uncompleted warmup without RIR", wu)
	}
	work := hack.Sets[2]
	if !work.Completed || *work.WeightKg != 115 || *work.Reps != 8 || *work.RIR != 1 {
		t.Errorf("working set = %+v", work)
	}

	hyper := p.Exercises[2].Sets[1]
	if hyper.Technique != "bodyweight_plus" || *hyper.WeightKg != 35 {
		t.Errorf("bodyweight plus set = %+v", hyper)
	}
}

// TestDraftIDStable verifies re-parsing yields the same draft ID while
// different sessions get different ones.
func TestDraftIDStable(t *testing.T) {
	a, _ := Parse(strings.NewReader(sampleCSV), time.UTC)
	b, _ := Parse(strings.NewReader(sampleCSV), time.UTC)

	if a[0].DraftID() != b[0].DraftID() {
		t.Error("draft ID changed between parses")
	}
	if a[0].DraftID() == a[1].DraftID() {
		t.Error("distinct sessions share a draft ID")
	}
	if !strings.HasPrefix(a[0].DraftID(), "alpha-") {
		t.Errorf("draft ID = %q, want alpha- prefix", a[0].DraftID())
	}
}

// TestExerciseID verifies slugging of names and equipment.
func TestExerciseID(t *testing.T) {
	cases := []struct {
		name, equipment, want string
	}{
		{"Hack Squats", "Machine", "hack-squats-machine"},
		{"Sumo Squats", "Smith machine", "sumo-squats-smith-machine"},
		{"Pull-Ups", "", "pull-ups"},
		{"  Curl (EZ)  ", "Barbell", "curl-ez-barbell"},
	}
	for _, tc := range cases {
		if got := ExerciseID(tc.name, tc.equipment); got != tc.want {
			t.Errorf("ExerciseID(%q, %q) = %q, want %q", tc.name, tc.equipment, got, tc.want)
		}
	}
}
