package domain

import (
	"time"
)

// Meal types accepted by the food log.
const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"
	MealSnack     = "snack"
)

// ValidMealType reports whether s is one of the accepted meal types.
func ValidMealType(s string) bool {
	switch s {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// FoodLog is one logged meal or snack. Missing macro fields are stored as
// zero, never NULL.
type FoodLog struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	MealDate string    `json:"meal_date"` // YYYY-MM-DD
	MealType string    `json:"meal_type"`
	FoodName string    `json:"food_name"`
	Calories float64   `json:"calories"`
	ProteinG float64   `json:"protein_g"`
	CarbsG   float64   `json:"carbs_g"`
	FatG     float64   `json:"fat_g"`
	CreatedAt time.Time `json:"created_at"`
}
