package coach

import (
	"context"
	"math"
	"testing"

	"github.com/musclelog/server/internal/domain"
	"github.com/musclelog/server/internal/llm"
)

func call(name, args string) llm.ToolCall {
	return llm.ToolCall{
		ID:       "call-1",
		Type:     "function",
		Function: llm.FunctionCall{Name: name, Arguments: args},
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	e := NewExecutor(newFakeRepo())

	res := e.Execute(context.Background(), "u1", testTime(t), call("drop_tables", "{}"))
	if success, _ := res.Result["success"].(bool); success {
		t.Error("Expected failure for unknown tool")
	}
}

func TestLogWorkoutSetsExpandsNumSets(t *testing.T) {
	repo := newFakeRepo()
	e := NewExecutor(repo)

	res := e.Execute(context.Background(), "u1", testTime(t), call(toolLogWorkoutSets,
		`{"sets": [{"exercise_name": "Squat", "weight_lbs": 225, "reps": 5, "num_sets": 4}]}`))

	if success, _ := res.Result["success"].(bool); !success {
		t.Fatalf("Expected success, got %#v", res.Result)
	}
	if len(repo.sets) != 4 {
		t.Fatalf("Expected 4 sets, got %d", len(repo.sets))
	}
	for i, set := range repo.sets {
		if set.SetNumber != i+1 {
			t.Errorf("Set %d: expected set_number %d, got %d", i, i+1, set.SetNumber)
		}
	}
}

func TestLogWorkoutSetsDefaultsToOneSet(t *testing.T) {
	repo := newFakeRepo()
	e := NewExecutor(repo)

	e.Execute(context.Background(), "u1", testTime(t), call(toolLogWorkoutSets,
		`{"sets": [{"exercise_name": "Pull Up", "weight_lbs": 0, "reps": 10}]}`))

	if len(repo.sets) != 1 {
		t.Fatalf("Expected 1 set when num_sets is absent, got %d", len(repo.sets))
	}
}

func TestLogWorkoutSetsSharesDailySession(t *testing.T) {
	repo := newFakeRepo()
	e := NewExecutor(repo)
	now := testTime(t)

	e.Execute(context.Background(), "u1", now, call(toolLogWorkoutSets,
		`{"sets": [{"exercise_name": "Squat", "weight_lbs": 225, "reps": 5}]}`))
	e.Execute(context.Background(), "u1", now, call(toolLogWorkoutSets,
		`{"sets": [{"exercise_name": "Deadlift", "weight_lbs": 275, "reps": 5}]}`))

	if len(repo.sessions) != 1 {
		t.Errorf("Expected one session per day, got %d", len(repo.sessions))
	}
	if repo.sets[0].SessionID != repo.sets[1].SessionID {
		t.Error("Expected both sets in the same session")
	}
}

func TestLogWorkoutSetsReusesExerciseCaseInsensitively(t *testing.T) {
	repo := newFakeRepo()
	e := NewExecutor(repo)

	e.Execute(context.Background(), "u1", testTime(t), call(toolLogWorkoutSets,
		`{"sets": [{"exercise_name": "Bench Press", "weight_lbs": 185, "reps": 8}]}`))
	e.Execute(context.Background(), "u1", testTime(t), call(toolLogWorkoutSets,
		`{"sets": [{"exercise_name": "bench press", "weight_lbs": 185, "reps": 8}]}`))

	if len(repo.exercises) != 1 {
		t.Errorf("Expected one catalog entry across casings, got %d", len(repo.exercises))
	}
}

func TestLogWorkoutSetsMalformedArguments(t *testing.T) {
	repo := newFakeRepo()
	e := NewExecutor(repo)

	res := e.Execute(context.Background(), "u1", testTime(t), call(toolLogWorkoutSets, `{"sets": "oops"}`))

	if success, _ := res.Result["success"].(bool); success {
		t.Error("Expected failure for malformed arguments")
	}
	if len(repo.sets) != 0 {
		t.Error("No sets must be written on malformed arguments")
	}
}

func TestLogFoodDefaultsMealType(t *testing.T) {
	repo := newFakeRepo()
	e := NewExecutor(repo)

	res := e.Execute(context.Background(), "u1", testTime(t), call(toolLogFood,
		`{"food_name": "mystery bar", "meal_type": "brunch"}`))

	if success, _ := res.Result["success"].(bool); !success {
		t.Fatalf("Expected success, got %#v", res.Result)
	}
	if len(repo.foodLogs) != 1 {
		t.Fatalf("Expected 1 food log, got %d", len(repo.foodLogs))
	}
	log := repo.foodLogs[0]
	if log.MealType != domain.MealSnack {
		t.Errorf("Expected invalid meal type coerced to snack, got %q", log.MealType)
	}
	if log.Calories != 0 || log.ProteinG != 0 || log.CarbsG != 0 || log.FatG != 0 {
		t.Error("Omitted macros must be stored as zero")
	}
}

func TestLogFoodRequiresName(t *testing.T) {
	e := NewExecutor(newFakeRepo())

	res := e.Execute(context.Background(), "u1", testTime(t), call(toolLogFood, `{"calories": 500}`))
	if success, _ := res.Result["success"].(bool); success {
		t.Error("Expected failure for missing food_name")
	}
}

func TestLogBodyMeasurementKilograms(t *testing.T) {
	repo := newFakeRepo()
	e := NewExecutor(repo)

	res := e.Execute(context.Background(), "u1", testTime(t), call(toolLogBodyMeasurement,
		`{"weight": 100, "unit": "kg"}`))

	if success, _ := res.Result["success"].(bool); !success {
		t.Fatalf("Expected success, got %#v", res.Result)
	}
	if got := repo.profiles["u1"].WeightKg; got != 100 {
		t.Errorf("Expected profile weight 100 kg, got %v", got)
	}
	if len(repo.measurements) != 1 {
		t.Fatalf("Expected 1 measurement, got %d", len(repo.measurements))
	}
	if got := repo.measurements[0].WeightLbs; math.Abs(got-220.462) > 0.001 {
		t.Errorf("Expected 220.462 lbs in history, got %v", got)
	}
}

func TestLogBodyMeasurementPounds(t *testing.T) {
	repo := newFakeRepo()
	e := NewExecutor(repo)

	e.Execute(context.Background(), "u1", testTime(t), call(toolLogBodyMeasurement,
		`{"weight": 180, "unit": "lbs", "body_fat_percent": 15}`))

	if got := repo.measurements[0].WeightLbs; got != 180 {
		t.Errorf("Expected 180 lbs stored as-is, got %v", got)
	}
	if got := repo.profiles["u1"].WeightKg; math.Abs(got-180/domain.LbsPerKg) > 0.001 {
		t.Errorf("Expected converted kg on profile, got %v", got)
	}
	if got := repo.measurements[0].BodyFatPercent; got != 15 {
		t.Errorf("Expected body fat 15, got %v", got)
	}
}

func TestLogBodyMeasurementRejectsBadUnit(t *testing.T) {
	repo := newFakeRepo()
	e := NewExecutor(repo)

	res := e.Execute(context.Background(), "u1", testTime(t), call(toolLogBodyMeasurement,
		`{"weight": 100, "unit": "stone"}`))

	if success, _ := res.Result["success"].(bool); success {
		t.Error("Expected failure for unknown unit")
	}
	if len(repo.measurements) != 0 {
		t.Error("No measurement must be written for unknown unit")
	}
}

func TestGetStatisticsPeriods(t *testing.T) {
	repo := newFakeRepo()
	e := NewExecutor(repo)
	now := testTime(t)

	e.Execute(context.Background(), "u1", now, call(toolGetStatistics, `{"period": "week"}`))
	if want := domain.DateOnly(now.AddDate(0, 0, -7)); repo.lastCountSince != want {
		t.Errorf("Expected week window since %s, got %s", want, repo.lastCountSince)
	}

	e.Execute(context.Background(), "u1", now, call(toolGetStatistics, `{"period": "month"}`))
	if want := domain.DateOnly(now.AddDate(0, -1, 0)); repo.lastCountSince != want {
		t.Errorf("Expected month window since %s, got %s", want, repo.lastCountSince)
	}
}

func TestUpdatePreferences(t *testing.T) {
	repo := newFakeRepo()
	e := NewExecutor(repo)

	res := e.Execute(context.Background(), "u1", testTime(t), call(toolUpdatePreferences,
		`{"locale": "ru", "weight_unit": "kg"}`))

	if success, _ := res.Result["success"].(bool); !success {
		t.Fatalf("Expected success, got %#v", res.Result)
	}
	if len(repo.prefUpdates) != 1 {
		t.Fatalf("Expected 1 preference update, got %d", len(repo.prefUpdates))
	}
	update := repo.prefUpdates[0]
	if update.Locale == nil || *update.Locale != "ru" {
		t.Errorf("Expected locale ru, got %v", update.Locale)
	}
	if update.WeightUnit == nil || *update.WeightUnit != domain.UnitKg {
		t.Errorf("Expected weight unit kg, got %v", update.WeightUnit)
	}
	if update.PredictNutrients != nil {
		t.Error("Unset field must stay nil")
	}
}

func TestUpdatePreferencesRejectsBadUnit(t *testing.T) {
	repo := newFakeRepo()
	e := NewExecutor(repo)

	res := e.Execute(context.Background(), "u1", testTime(t), call(toolUpdatePreferences,
		`{"weight_unit": "stone"}`))

	if success, _ := res.Result["success"].(bool); success {
		t.Error("Expected failure for invalid weight unit")
	}
	if len(repo.prefUpdates) != 0 {
		t.Error("No update must be applied for invalid weight unit")
	}
}

func TestUpdatePreferencesRejectsEmptyUpdate(t *testing.T) {
	e := NewExecutor(newFakeRepo())

	res := e.Execute(context.Background(), "u1", testTime(t), call(toolUpdatePreferences, `{}`))
	if success, _ := res.Result["success"].(bool); success {
		t.Error("Expected failure for empty preference update")
	}
}
