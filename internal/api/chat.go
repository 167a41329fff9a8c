package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/musclelog/server/internal/auth"
	"github.com/musclelog/server/internal/coach"
	"github.com/musclelog/server/internal/domain"
)

// maxChatBodySize bounds the chat request body (1MB).
const maxChatBodySize = 1 << 20

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	Query           string                    `json:"query"`
	History         []domain.ConversationTurn `json:"history,omitempty"`
	IsPro           bool                      `json:"isPro,omitempty"`
	CurrentTime     string                    `json:"currentTime,omitempty"`
	CurrentLanguage string                    `json:"currentLanguage,omitempty"`
	// UserID is honored only for service-credential calls (e.g. the
	// WhatsApp webhook acting on a linked user's behalf).
	UserID string `json:"user_id,omitempty"`
}

// ChatResponse is the POST /api/chat reply.
type ChatResponse struct {
	Response string             `json:"response"`
	Data     []coach.ToolResult `json:"data"`
	Debug    ChatDebug          `json:"debug"`
}

// ChatDebug carries diagnostic metadata about the model's decision.
type ChatDebug struct {
	ToolCalls interface{} `json:"tool_calls"`
}

// resolveChatRequest validates the body and resolves the acting user.
func (h *Handler) resolveChatRequest(r *http.Request, req *ChatRequest) (coach.Request, int, string) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		if !auth.IsServiceCall(r.Context()) || req.UserID == "" {
			return coach.Request{}, http.StatusUnauthorized, "unauthorized"
		}
		userID = req.UserID
	}

	if req.Query == "" {
		return coach.Request{}, http.StatusBadRequest, "query is required"
	}

	now := time.Now()
	if req.CurrentTime != "" {
		parsed, err := time.Parse(time.RFC3339, req.CurrentTime)
		if err != nil {
			return coach.Request{}, http.StatusBadRequest, "currentTime must be RFC 3339"
		}
		now = parsed
	}

	return coach.Request{
		UserID:   userID,
		Query:    req.Query,
		History:  req.History,
		Pro:      req.IsPro,
		Now:      now,
		Language: req.CurrentLanguage,
	}, 0, ""
}

// HandleChat handles POST /api/chat requests.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	coachReq, status, msg := h.resolveChatRequest(r, &req)
	if status != 0 {
		Error(w, status, msg)
		return
	}

	if !h.rateLimiter.Allow(coachReq.UserID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	slog.Info("chat request",
		"user_id", coachReq.UserID,
		"history_len", len(coachReq.History),
		"query_len", len(coachReq.Query),
		"pro", coachReq.Pro,
	)

	result, err := h.orchestrator.Respond(r.Context(), coachReq)
	if err != nil {
		slog.Error("orchestrator failed", "user_id", coachReq.UserID, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	JSON(w, http.StatusOK, ChatResponse{
		Response: result.Response,
		Data:     result.Data,
		Debug:    ChatDebug{ToolCalls: result.ToolCalls},
	})
}
