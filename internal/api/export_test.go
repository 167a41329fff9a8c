package api

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/musclelog/server/internal/domain"
)

func TestHandleExportRequiresPro(t *testing.T) {
	h, repo := newTestHandler(t, &scriptedModel{}, nil)

	if err := repo.UpsertProfile(context.Background(), &domain.Profile{UserID: "u1"}); err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}

	w := httptest.NewRecorder()
	h.HandleExport(w, authedRequest(http.MethodGet, "/api/export?type=workouts", ""))

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for non-pro user, got %d", w.Code)
	}
}

func TestHandleExportBadType(t *testing.T) {
	h, repo := newTestHandler(t, &scriptedModel{}, nil)

	if err := repo.UpsertProfile(context.Background(), &domain.Profile{UserID: "u1", IsPro: true}); err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}

	w := httptest.NewRecorder()
	h.HandleExport(w, authedRequest(http.MethodGet, "/api/export?type=selfies", ""))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown type, got %d", w.Code)
	}
}

func TestHandleExportWorkoutsCSV(t *testing.T) {
	h, repo := newTestHandler(t, &scriptedModel{}, nil)
	ctx := context.Background()

	if err := repo.UpsertProfile(ctx, &domain.Profile{UserID: "u1", IsPro: true}); err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}
	sess, err := repo.GetOrCreateSession(ctx, "u1", "2025-03-10")
	if err != nil {
		t.Fatalf("GetOrCreateSession failed: %v", err)
	}
	ex, err := repo.GetOrCreateExercise(ctx, "Bench Press", "Chest")
	if err != nil {
		t.Fatalf("GetOrCreateExercise failed: %v", err)
	}
	err = repo.InsertSet(ctx, &domain.WorkoutSet{
		SessionID: sess.ID, ExerciseID: ex.ID, SetNumber: 1, WeightLbs: 185.5, Reps: 8,
	})
	if err != nil {
		t.Fatalf("InsertSet failed: %v", err)
	}

	w := httptest.NewRecorder()
	h.HandleExport(w, authedRequest(http.MethodGet, "/api/export?type=workouts", ""))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Expected text/csv, got %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Expected attachment disposition, got %q", cd)
	}

	records, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected header + 1 row, got %d records", len(records))
	}
	header := records[0]
	if header[0] != "Date" || header[1] != "Exercise" || header[2] != "Weight" || header[3] != "Reps" {
		t.Errorf("Unexpected header %v", header)
	}
	row := records[1]
	if row[0] != "2025-03-10" || row[1] != "Bench Press" || row[2] != "185.5" || row[3] != "8" {
		t.Errorf("Unexpected row %v", row)
	}
}

func TestHandleExportFoodCSV(t *testing.T) {
	h, repo := newTestHandler(t, &scriptedModel{}, nil)
	ctx := context.Background()

	if err := repo.UpsertProfile(ctx, &domain.Profile{UserID: "u1", IsPro: true}); err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}
	err := repo.InsertFoodLog(ctx, &domain.FoodLog{
		UserID: "u1", MealDate: "2025-03-10", MealType: domain.MealLunch,
		FoodName: "Chicken bowl", Calories: 650, ProteinG: 45, CarbsG: 70, FatG: 15,
	})
	if err != nil {
		t.Fatalf("InsertFoodLog failed: %v", err)
	}

	w := httptest.NewRecorder()
	h.HandleExport(w, authedRequest(http.MethodGet, "/api/export?type=food", ""))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	records, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected header + 1 row, got %d records", len(records))
	}
	row := records[1]
	if row[1] != "lunch" || row[2] != "Chicken bowl" || row[3] != "650" {
		t.Errorf("Unexpected row %v", row)
	}
}
