package domain

import (
	"time"
)

// DefaultExerciseCategory is assigned when an exercise is created on first use.
const DefaultExerciseCategory = "other"

// Exercise is a catalog entry shared across users. Names are soft-unique:
// lookups are case-insensitive and a second casing of an existing name must
// never create a second row.
type Exercise struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkoutSession groups all sets a user logged on one calendar day.
// It is created lazily when the first set of the day arrives.
type WorkoutSession struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	SessionDate     string    `json:"session_date"` // YYYY-MM-DD
	Notes           string    `json:"notes,omitempty"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	Sets            []*WorkoutSet `json:"workout_sets,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// WorkoutSet is a single set of one exercise within a session.
type WorkoutSet struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	ExerciseID   string    `json:"exercise_id"`
	ExerciseName string    `json:"exercise_name,omitempty"`
	SetNumber    int       `json:"set_number"`
	WeightLbs    float64   `json:"weight_lbs"`
	Reps         int       `json:"reps"`
	CreatedAt    time.Time `json:"created_at"`
}

// DateOnly formats a timestamp as the session-date granularity used
// throughout the store (YYYY-MM-DD).
func DateOnly(t time.Time) string {
	return t.Format("2006-01-02")
}
