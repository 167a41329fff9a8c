package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/musclelog/server/internal/auth"
	"github.com/musclelog/server/internal/domain"
)

// seedPlan is one demo day: exercises with weights, plus meals.
type seedDay struct {
	exercises []seedExercise
	meals     []seedMeal
	weightLbs float64
}

type seedExercise struct {
	name      string
	category  string
	weightLbs float64
	reps      int
	sets      int
}

type seedMeal struct {
	mealType string
	food     string
	calories float64
	protein  float64
	carbs    float64
	fat      float64
}

// HandleSeed fills the calling user's account with a week of demo data.
// Registered only when SEED_ENABLED is set; meant for local development.
func (h *Handler) HandleSeed(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	days := []seedDay{
		{ // push day
			exercises: []seedExercise{
				{"Bench Press", "Chest", 185, 8, 4},
				{"Overhead Press", "Shoulders", 95, 10, 3},
				{"Tricep Pushdown", "Arms", 50, 12, 3},
			},
			meals: []seedMeal{
				{domain.MealBreakfast, "Oatmeal with banana", 350, 12, 60, 8},
				{domain.MealLunch, "Chicken rice bowl", 650, 45, 70, 15},
				{domain.MealDinner, "Salmon with vegetables", 550, 40, 20, 30},
			},
			weightLbs: 180.2,
		},
		{ // pull day
			exercises: []seedExercise{
				{"Deadlift", "Back", 275, 5, 3},
				{"Pull Up", "Back", 0, 10, 3},
				{"Barbell Row", "Back", 135, 10, 3},
			},
			meals: []seedMeal{
				{domain.MealBreakfast, "Greek yogurt with berries", 280, 20, 30, 6},
				{domain.MealLunch, "Turkey sandwich", 520, 35, 50, 18},
				{domain.MealSnack, "Protein shake", 180, 30, 8, 3},
			},
		},
		{ // leg day
			exercises: []seedExercise{
				{"Squat", "Legs", 225, 8, 4},
				{"Leg Press", "Legs", 360, 12, 3},
				{"Calf Raise", "Legs", 90, 15, 3},
			},
			meals: []seedMeal{
				{domain.MealBreakfast, "Scrambled eggs and toast", 400, 24, 30, 20},
				{domain.MealDinner, "Beef stir fry", 600, 42, 45, 25},
			},
			weightLbs: 179.8,
		},
		{ // rest day, cardio
			exercises: []seedExercise{
				{"Running", "Cardio", 0, 30, 1},
			},
			meals: []seedMeal{
				{domain.MealLunch, "Caesar salad with chicken", 480, 35, 20, 28},
				{domain.MealSnack, "Apple with peanut butter", 250, 7, 28, 14},
			},
		},
	}

	sets, foods, measurements := 0, 0, 0
	now := time.Now().UTC()
	for i, day := range days {
		date := domain.DateOnly(now.AddDate(0, 0, -(i*2 + 1)))

		if len(day.exercises) > 0 {
			session, err := h.repo.GetOrCreateSession(r.Context(), userID, date)
			if err != nil {
				Error(w, http.StatusInternalServerError, fmt.Sprintf("seed session: %v", err))
				return
			}
			for _, se := range day.exercises {
				ex, err := h.repo.GetOrCreateExercise(r.Context(), se.name, se.category)
				if err != nil {
					Error(w, http.StatusInternalServerError, fmt.Sprintf("seed exercise: %v", err))
					return
				}
				for n := 1; n <= se.sets; n++ {
					err := h.repo.InsertSet(r.Context(), &domain.WorkoutSet{
						SessionID:  session.ID,
						ExerciseID: ex.ID,
						SetNumber:  n,
						WeightLbs:  se.weightLbs,
						Reps:       se.reps,
					})
					if err != nil {
						Error(w, http.StatusInternalServerError, fmt.Sprintf("seed set: %v", err))
						return
					}
					sets++
				}
			}
		}

		for _, m := range day.meals {
			err := h.repo.InsertFoodLog(r.Context(), &domain.FoodLog{
				UserID:   userID,
				MealDate: date,
				MealType: m.mealType,
				FoodName: m.food,
				Calories: m.calories,
				ProteinG: m.protein,
				CarbsG:   m.carbs,
				FatG:     m.fat,
			})
			if err != nil {
				Error(w, http.StatusInternalServerError, fmt.Sprintf("seed food: %v", err))
				return
			}
			foods++
		}

		if day.weightLbs > 0 {
			err := h.repo.InsertMeasurement(r.Context(), &domain.BodyMeasurement{
				UserID:     userID,
				MeasuredAt: now.AddDate(0, 0, -(i*2 + 1)),
				WeightLbs:  day.weightLbs,
			})
			if err != nil {
				Error(w, http.StatusInternalServerError, fmt.Sprintf("seed measurement: %v", err))
				return
			}
			measurements++
		}
	}

	slog.Info("demo data seeded", "user_id", userID, "sets", sets, "food_logs", foods, "measurements", measurements)
	JSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"sets":         sets,
		"food_logs":    foods,
		"measurements": measurements,
	})
}
