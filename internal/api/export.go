package api

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/musclelog/server/internal/auth"
)

// exportLimit caps how many rows an export fetches in one request.
const exportLimit = 1000

// HandleExport handles GET /api/export?type=workouts|food. Pro-gated CSV
// download.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profile, err := h.repo.GetProfile(r.Context(), userID)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if profile == nil || !profile.IsPro {
		Error(w, http.StatusForbidden, "Pro subscription required")
		return
	}

	exportType := r.URL.Query().Get("type")
	var fileName string
	var write func(*csv.Writer) error

	switch exportType {
	case "workouts":
		fileName = fmt.Sprintf("workouts_export_%s.csv", time.Now().Format("2006-01-02"))
		write = func(cw *csv.Writer) error { return h.writeWorkoutCSV(r, cw, userID) }
	case "food":
		fileName = fmt.Sprintf("food_export_%s.csv", time.Now().Format("2006-01-02"))
		write = func(cw *csv.Writer) error { return h.writeFoodCSV(r, cw, userID) }
	default:
		Error(w, http.StatusBadRequest, "type must be workouts or food")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))

	cw := csv.NewWriter(w)
	if err := write(cw); err != nil {
		// Headers are already sent; log and abandon the response.
		slog.Error("export failed", "user_id", userID, "type", exportType, "error", err)
		return
	}
	cw.Flush()
}

func (h *Handler) writeWorkoutCSV(r *http.Request, cw *csv.Writer, userID string) error {
	sessions, err := h.repo.ListSessions(r.Context(), userID, exportLimit)
	if err != nil {
		return err
	}
	if err := cw.Write([]string{"Date", "Exercise", "Weight", "Reps"}); err != nil {
		return err
	}
	for _, sess := range sessions {
		for _, set := range sess.Sets {
			record := []string{
				sess.SessionDate,
				set.ExerciseName,
				strconv.FormatFloat(set.WeightLbs, 'f', -1, 64),
				strconv.Itoa(set.Reps),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) writeFoodCSV(r *http.Request, cw *csv.Writer, userID string) error {
	logs, err := h.repo.ListFoodLogs(r.Context(), userID, exportLimit)
	if err != nil {
		return err
	}
	if err := cw.Write([]string{"Date", "Meal", "Food", "Calories", "Protein", "Carbs", "Fat"}); err != nil {
		return err
	}
	for _, log := range logs {
		record := []string{
			log.MealDate,
			log.MealType,
			log.FoodName,
			strconv.FormatFloat(log.Calories, 'f', -1, 64),
			strconv.FormatFloat(log.ProteinG, 'f', -1, 64),
			strconv.FormatFloat(log.CarbsG, 'f', -1, 64),
			strconv.FormatFloat(log.FatG, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return nil
}
