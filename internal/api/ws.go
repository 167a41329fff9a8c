package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/musclelog/server/internal/auth"
)

// wsIdleTimeout closes connections that send nothing for this long.
const wsIdleTimeout = 10 * time.Minute

// wsError is sent to the client when a message cannot be processed. The
// connection stays open; only protocol-level failures end the session.
type wsError struct {
	Error string `json:"error"`
}

// HandleChatSocket handles GET /ws/chat: a persistent coach conversation.
// Each incoming frame is a ChatRequest, each reply a ChatResponse.
func (h *Handler) HandleChatSocket(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	slog.Info("websocket connection request", "user_id", userID, "ip", r.RemoteAddr)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept websocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	for {
		msgCtx, cancel := context.WithTimeout(r.Context(), wsIdleTimeout)
		var req ChatRequest
		err := wsjson.Read(msgCtx, ws, &req)
		cancel()
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				errors.Is(err, io.EOF) || r.Context().Err() != nil {
				return
			}
			slog.Debug("websocket read error", "error", err, "user_id", userID)
			return
		}

		coachReq, status, msg := h.resolveChatRequest(r, &req)
		if status != 0 {
			if writeErr := wsjson.Write(r.Context(), ws, wsError{Error: msg}); writeErr != nil {
				return
			}
			continue
		}

		if !h.rateLimiter.Allow(coachReq.UserID) {
			if writeErr := wsjson.Write(r.Context(), ws, wsError{Error: "rate limit exceeded"}); writeErr != nil {
				return
			}
			continue
		}

		result, err := h.orchestrator.Respond(r.Context(), coachReq)
		if err != nil {
			slog.Error("orchestrator failed", "user_id", coachReq.UserID, "error", err)
			if writeErr := wsjson.Write(r.Context(), ws, wsError{Error: err.Error()}); writeErr != nil {
				return
			}
			continue
		}

		resp := ChatResponse{
			Response: result.Response,
			Data:     result.Data,
			Debug:    ChatDebug{ToolCalls: result.ToolCalls},
		}
		if err := wsjson.Write(r.Context(), ws, resp); err != nil {
			slog.Debug("websocket write error", "error", err, "user_id", userID)
			return
		}
	}
}
