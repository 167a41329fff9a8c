package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/musclelog/server/internal/auth"
	"github.com/musclelog/server/internal/llm"
	"github.com/musclelog/server/internal/metrics"
)

// validCategories are the classifications the batch job accepts.
var validCategories = []string{"Chest", "Back", "Legs", "Shoulders", "Arms", "Core", "Cardio"}

// classifyResponse is the JSON shape the model is instructed to return.
// Decoding is strict: an unexpected shape rejects the whole response instead
// of guessing at field names.
type classifyResponse struct {
	Results []classifyItem `json:"results"`
}

type classifyItem struct {
	ID       string `json:"id"`
	Category string `json:"category"`
}

// HandleClassifyExercises handles POST /api/admin/classify-exercises: sends
// the whole exercise catalog to the model and applies the returned categories.
// Admin only.
func (h *Handler) HandleClassifyExercises(w http.ResponseWriter, r *http.Request) {
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
	if profile == nil || !profile.IsAdmin {
		Error(w, http.StatusForbidden, "admin only")
		return
	}

	exercises, err := h.repo.ListExercises(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(exercises) == 0 {
		JSON(w, http.StatusOK, map[string]interface{}{"message": "no exercises found", "success": true})
		return
	}

	catalog := make([]map[string]string, 0, len(exercises))
	for _, ex := range exercises {
		catalog = append(catalog, map[string]string{"id": ex.ID, "name": ex.Name})
	}
	data, err := json.Marshal(catalog)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	prompt := fmt.Sprintf(`As a fitness expert, classify these gym exercises into exactly ONE category: %s.
Names may be in any language.
Respond with ONLY a JSON object: {"results": [{"id": "...", "category": "..."}]}.
Data: %s`, strings.Join(validCategories, ", "), data)

	result, err := h.llm.ChatCompletion(r.Context(), llm.ChatRequest{
		Model: h.llm.Model(false),
		Messages: []llm.Message{
			{Role: "system", Content: "You are a precise fitness classifier. Response must be JSON."},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &llm.ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		metrics.ModelCalls.WithLabelValues("classify", "error").Inc()
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.ModelCalls.WithLabelValues("classify", "ok").Inc()

	dec := json.NewDecoder(bytes.NewReader([]byte(result.Message.Content)))
	dec.DisallowUnknownFields()
	var parsed classifyResponse
	if err := dec.Decode(&parsed); err != nil {
		Error(w, http.StatusBadGateway, fmt.Sprintf("model returned unexpected shape: %v", err))
		return
	}

	updated := 0
	var errors []map[string]string
	for _, item := range parsed.Results {
		if item.ID == "" || item.Category == "" {
			continue
		}
		matched := ""
		for _, c := range validCategories {
			if strings.EqualFold(c, item.Category) {
				matched = c
				break
			}
		}
		if matched == "" {
			continue
		}
		if err := h.repo.UpdateExerciseCategory(r.Context(), item.ID, matched); err != nil {
			errors = append(errors, map[string]string{"id": item.ID, "error": err.Error()})
			continue
		}
		updated++
	}

	slog.Info("exercise classification complete", "updated", updated, "total", len(exercises), "errors", len(errors))

	resp := map[string]interface{}{
		"success": true,
		"count":   updated,
		"total":   len(exercises),
	}
	if len(errors) > 0 {
		resp["errors"] = errors
	}
	JSON(w, http.StatusOK, resp)
}
