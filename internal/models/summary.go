package models

// WorkoutSummary aggregates the sets of a workout. Only sets for which
// Set.Counts is true contribute to reps, volume and best sets.
type WorkoutSummary struct {
	Exercises   int               `json:"exercises"`
	TotalSets   int               `json:"total_sets"`
	CountedSets int               `json:"counted_sets"`
	TotalReps   int               `json:"total_reps"`
	VolumeKg    float64           `json:"volume_kg"`
	BestSets    []ExerciseBestSet `json:"best_sets,omitempty"`
}

// ExerciseBestSet is the heaviest counted set of an exercise (ties broken by reps).
type ExerciseBestSet struct {
	ExerciseID   string  `json:"exercise_id"`
	ExerciseName string  `json:"exercise_name"`
	WeightKg     float64 `json:"weight_kg"`
	Reps         int     `json:"reps"`
}

// Summarize computes a WorkoutSummary over exercise blocks.
func Summarize(blocks []ExerciseBlock) WorkoutSummary {
	var sum WorkoutSummary
	sum.Exercises = len(blocks)

	for _, b := range blocks {
		var best *ExerciseBestSet
		for _, s := range b.Sets {
			sum.TotalSets++
			if !s.Counts() {
				continue
			}
			w, r := *s.WeightKg, *s.Reps
			sum.CountedSets++
			sum.TotalReps += r
			sum.VolumeKg += w * float64(r)

			if best == nil || w > best.WeightKg || (w == best.WeightKg && r > best.Reps) {
				best = &ExerciseBestSet{
					ExerciseID:   b.ExerciseID,
					ExerciseName: b.ExerciseName,
					WeightKg:     w,
					Reps:         r,
				}
			}
		}
		if best != nil {
			sum.BestSets = append(sum.BestSets, *best)
		}
	}
	return sum
}
