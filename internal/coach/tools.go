package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/musclelog/server/internal/domain"
	"github.com/musclelog/server/internal/llm"
	"github.com/musclelog/server/internal/store"
)

// Tool names in the fixed catalog.
const (
	toolLogWorkoutSets     = "log_workout_sets"
	toolLogFood            = "log_food"
	toolLogBodyMeasurement = "log_body_measurement"
	toolGetWorkoutHistory  = "get_workout_history"
	toolGetFoodLogs        = "get_food_logs"
	toolGetStatistics      = "get_statistics"
	toolUpdatePreferences  = "update_ai_preferences"
)

// toolCatalog is the fixed set of tools offered on every decision call.
func toolCatalog() []llm.Tool {
	fn := func(name, description, parameters string) llm.Tool {
		return llm.Tool{
			Type: "function",
			Function: llm.ToolDefinition{
				Name:        name,
				Description: description,
				Parameters:  json.RawMessage(parameters),
			},
		}
	}

	return []llm.Tool{
		fn(toolLogWorkoutSets,
			"Log workout sets. MANDATORY: call this whenever the user reports training, even a single set.",
			`{
				"type": "object",
				"properties": {
					"sets": {
						"type": "array",
						"items": {
							"type": "object",
							"properties": {
								"exercise_name": {"type": "string", "description": "Name in English (e.g. Chest Press)"},
								"weight_lbs": {"type": "number", "description": "Weight in lbs (0 for bodyweight/cardio)"},
								"reps": {"type": "number", "description": "Reps, or minutes for cardio"},
								"num_sets": {"type": "number", "description": "Number of sets (default 1)"}
							},
							"required": ["exercise_name", "weight_lbs", "reps"]
						}
					}
				},
				"required": ["sets"]
			}`),
		fn(toolLogFood,
			"Log food. MANDATORY: if the user ate something, call this.",
			`{
				"type": "object",
				"properties": {
					"food_name": {"type": "string"},
					"meal_type": {"type": "string", "enum": ["breakfast", "lunch", "dinner", "snack"]},
					"calories": {"type": "number"},
					"protein_g": {"type": "number"},
					"carbs_g": {"type": "number"},
					"fat_g": {"type": "number"}
				},
				"required": ["food_name"]
			}`),
		fn(toolLogBodyMeasurement,
			"Record the user's body weight and optional body fat percentage.",
			`{
				"type": "object",
				"properties": {
					"weight": {"type": "number"},
					"unit": {"type": "string", "enum": ["kg", "lbs"]},
					"body_fat_percent": {"type": "number"}
				},
				"required": ["weight", "unit"]
			}`),
		fn(toolGetWorkoutHistory,
			"Retrieve recent workout sessions with their sets.",
			`{
				"type": "object",
				"properties": {
					"limit": {"type": "number", "description": "How many sessions (default 10)"}
				}
			}`),
		fn(toolGetFoodLogs,
			"Retrieve recent food logs.",
			`{"type": "object", "properties": {}}`),
		fn(toolGetStatistics,
			"Overall stats: workout count for a period plus recent weight measurements.",
			`{
				"type": "object",
				"properties": {
					"period": {"type": "string", "enum": ["week", "month"]}
				}
			}`),
		fn(toolUpdatePreferences,
			"Change assistant preferences: reply language, weight unit, or automatic nutrient prediction.",
			`{
				"type": "object",
				"properties": {
					"locale": {"type": "string"},
					"weight_unit": {"type": "string", "enum": ["kg", "lbs"]},
					"predict_nutrients": {"type": "boolean"}
				}
			}`),
	}
}

// Executor runs tool invocations against the data store.
type Executor struct {
	repo store.Repository
}

// NewExecutor creates a tool executor.
func NewExecutor(repo store.Repository) *Executor {
	return &Executor{repo: repo}
}

// Execute dispatches one tool invocation. Failures never propagate as errors:
// they degrade to a {success:false, error} result that the narration call can
// explain to the user.
func (e *Executor) Execute(ctx context.Context, userID string, now time.Time, call llm.ToolCall) ToolResult {
	res := ToolResult{ToolCallID: call.ID, Name: call.Function.Name}

	var result map[string]any
	var err error
	switch call.Function.Name {
	case toolLogWorkoutSets:
		result, err = e.logWorkoutSets(ctx, userID, now, call.Function.Arguments)
	case toolLogFood:
		result, err = e.logFood(ctx, userID, now, call.Function.Arguments)
	case toolLogBodyMeasurement:
		result, err = e.logBodyMeasurement(ctx, userID, now, call.Function.Arguments)
	case toolGetWorkoutHistory:
		result, err = e.getWorkoutHistory(ctx, userID, call.Function.Arguments)
	case toolGetFoodLogs:
		result, err = e.getFoodLogs(ctx, userID)
	case toolGetStatistics:
		result, err = e.getStatistics(ctx, userID, now, call.Function.Arguments)
	case toolUpdatePreferences:
		result, err = e.updatePreferences(ctx, userID, call.Function.Arguments)
	default:
		err = fmt.Errorf("unknown tool %q", call.Function.Name)
	}

	if err != nil {
		res.Result = map[string]any{"success": false, "error": err.Error()}
		return res
	}
	res.Result = result
	return res
}

type workoutSetItem struct {
	ExerciseName string  `json:"exercise_name"`
	WeightLbs    float64 `json:"weight_lbs"`
	Reps         int     `json:"reps"`
	NumSets      int     `json:"num_sets,omitempty"`
}

type workoutSetArgs struct {
	Sets []workoutSetItem `json:"sets"`
}

func (e *Executor) logWorkoutSets(ctx context.Context, userID string, now time.Time, rawArgs string) (map[string]any, error) {
	var args workoutSetArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return nil, err
	}
	if len(args.Sets) == 0 {
		return nil, fmt.Errorf("no sets provided")
	}

	session, err := e.repo.GetOrCreateSession(ctx, userID, domain.DateOnly(now))
	if err != nil {
		return nil, fmt.Errorf("resolve today's session: %w", err)
	}

	var logged []string
	var failed []map[string]any
	for _, item := range args.Sets {
		if item.ExerciseName == "" {
			failed = append(failed, map[string]any{"error": "missing exercise_name"})
			continue
		}
		numSets := item.NumSets
		if numSets <= 0 {
			numSets = 1
		}

		exercise, err := e.repo.GetOrCreateExercise(ctx, item.ExerciseName, domain.DefaultExerciseCategory)
		if err != nil {
			failed = append(failed, map[string]any{
				"exercise_name": item.ExerciseName,
				"error":         err.Error(),
			})
			continue
		}

		successCount := 0
		for i := 0; i < numSets; i++ {
			set := &domain.WorkoutSet{
				SessionID:  session.ID,
				ExerciseID: exercise.ID,
				SetNumber:  i + 1,
				WeightLbs:  item.WeightLbs,
				Reps:       item.Reps,
			}
			if err := e.repo.InsertSet(ctx, set); err != nil {
				failed = append(failed, map[string]any{
					"exercise_name": item.ExerciseName,
					"set_number":    i + 1,
					"error":         err.Error(),
				})
				continue
			}
			successCount++
		}
		if successCount > 0 {
			logged = append(logged, fmt.Sprintf("%s (%d/%d sets)", exercise.Name, successCount, numSets))
		}
	}

	return map[string]any{
		"success": len(logged) > 0,
		"logged":  logged,
		"failed":  failed,
	}, nil
}

type foodArgs struct {
	FoodName string  `json:"food_name"`
	MealType string  `json:"meal_type,omitempty"`
	Calories float64 `json:"calories,omitempty"`
	ProteinG float64 `json:"protein_g,omitempty"`
	CarbsG   float64 `json:"carbs_g,omitempty"`
	FatG     float64 `json:"fat_g,omitempty"`
}

func (e *Executor) logFood(ctx context.Context, userID string, now time.Time, rawArgs string) (map[string]any, error) {
	var args foodArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return nil, err
	}
	if args.FoodName == "" {
		return nil, fmt.Errorf("missing food_name")
	}

	mealType := args.MealType
	if !domain.ValidMealType(mealType) {
		mealType = domain.MealSnack
	}

	log := &domain.FoodLog{
		UserID:   userID,
		MealDate: domain.DateOnly(now),
		MealType: mealType,
		FoodName: args.FoodName,
		Calories: args.Calories,
		ProteinG: args.ProteinG,
		CarbsG:   args.CarbsG,
		FatG:     args.FatG,
	}
	if err := e.repo.InsertFoodLog(ctx, log); err != nil {
		return nil, fmt.Errorf("insert food log: %w", err)
	}

	return map[string]any{"success": true, "logged": log}, nil
}

type measurementArgs struct {
	Weight         float64 `json:"weight"`
	Unit           string  `json:"unit"`
	BodyFatPercent float64 `json:"body_fat_percent,omitempty"`
}

func (e *Executor) logBodyMeasurement(ctx context.Context, userID string, now time.Time, rawArgs string) (map[string]any, error) {
	var args measurementArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return nil, err
	}
	if args.Weight <= 0 {
		return nil, fmt.Errorf("missing or non-positive weight")
	}

	var weightKg, weightLbs float64
	switch args.Unit {
	case domain.UnitKg:
		weightKg = args.Weight
		weightLbs = domain.KgToLbs(args.Weight)
	case domain.UnitLbs:
		weightLbs = args.Weight
		weightKg = domain.LbsToKg(args.Weight)
	default:
		return nil, fmt.Errorf("unit must be %q or %q", domain.UnitKg, domain.UnitLbs)
	}

	// The profile holds the canonical current weight in kg; the measurement
	// history table records pounds.
	if err := e.repo.UpdateProfileWeight(ctx, userID, weightKg); err != nil {
		return nil, fmt.Errorf("update current weight: %w", err)
	}
	m := &domain.BodyMeasurement{
		UserID:         userID,
		MeasuredAt:     now,
		WeightLbs:      weightLbs,
		BodyFatPercent: args.BodyFatPercent,
	}
	if err := e.repo.InsertMeasurement(ctx, m); err != nil {
		return nil, fmt.Errorf("insert measurement: %w", err)
	}

	return map[string]any{
		"success": true,
		"logged": map[string]any{
			"weight_kg":        weightKg,
			"weight_lbs":       weightLbs,
			"body_fat_percent": args.BodyFatPercent,
		},
	}, nil
}

type historyArgs struct {
	Limit int `json:"limit,omitempty"`
}

func (e *Executor) getWorkoutHistory(ctx context.Context, userID, rawArgs string) (map[string]any, error) {
	var args historyArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return nil, err
	}
	sessions, err := e.repo.ListSessions(ctx, userID, args.Limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []*domain.WorkoutSession{}
	}
	return map[string]any{"workouts": sessions}, nil
}

func (e *Executor) getFoodLogs(ctx context.Context, userID string) (map[string]any, error) {
	logs, err := e.repo.ListFoodLogs(ctx, userID, 20)
	if err != nil {
		return nil, fmt.Errorf("list food logs: %w", err)
	}
	if logs == nil {
		logs = []*domain.FoodLog{}
	}
	return map[string]any{"food_logs": logs}, nil
}

type statsArgs struct {
	Period string `json:"period,omitempty"`
}

func (e *Executor) getStatistics(ctx context.Context, userID string, now time.Time, rawArgs string) (map[string]any, error) {
	var args statsArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return nil, err
	}

	since := now.AddDate(0, 0, -7)
	if args.Period == "month" {
		since = now.AddDate(0, -1, 0)
	}

	count, err := e.repo.CountSessionsSince(ctx, userID, domain.DateOnly(since))
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	measurements, err := e.repo.ListMeasurements(ctx, userID, 7)
	if err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	if measurements == nil {
		measurements = []*domain.BodyMeasurement{}
	}

	return map[string]any{
		"total_workouts": count,
		"measurements":   measurements,
	}, nil
}

type prefsArgs struct {
	Locale           *string `json:"locale,omitempty"`
	WeightUnit       *string `json:"weight_unit,omitempty"`
	PredictNutrients *bool   `json:"predict_nutrients,omitempty"`
}

func (e *Executor) updatePreferences(ctx context.Context, userID, rawArgs string) (map[string]any, error) {
	var args prefsArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return nil, err
	}
	if args.WeightUnit != nil && *args.WeightUnit != domain.UnitKg && *args.WeightUnit != domain.UnitLbs {
		return nil, fmt.Errorf("weight_unit must be %q or %q", domain.UnitKg, domain.UnitLbs)
	}

	update := domain.PreferenceUpdate{
		Locale:           args.Locale,
		WeightUnit:       args.WeightUnit,
		PredictNutrients: args.PredictNutrients,
	}
	if update.Empty() {
		return nil, fmt.Errorf("no preference fields provided")
	}
	if err := e.repo.UpdatePreferences(ctx, userID, update); err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}

	return map[string]any{"success": true}, nil
}

// decodeArgs unmarshals model-supplied tool arguments into a typed struct.
// A malformed payload is a tool failure, not a guess.
func decodeArgs(raw string, v any) error {
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("invalid tool arguments: %w", err)
	}
	return nil
}
