package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/musclelog/server/internal/auth"
)

// maxAudioSize bounds transcription uploads (15MB).
const maxAudioSize = 15 << 20

// HandleTranscribe handles POST /api/transcribe: multipart audio in,
// recognized text out.
func (h *Handler) HandleTranscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioSize)
	if err := r.ParseMultipartForm(maxAudioSize); err != nil {
		Error(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		Error(w, http.StatusBadRequest, "no audio file provided")
		return
	}
	defer file.Close()

	filename := header.Filename
	if filename == "" {
		filename = "audio.webm"
	}
	language := r.FormValue("language")

	slog.Info("transcription request", "user_id", userID, "filename", filename, "size", header.Size)

	text, err := h.llm.Transcribe(r.Context(), filename, file, language)
	if err != nil {
		slog.Error("transcription failed", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"text":    strings.TrimSpace(text),
		"success": true,
	})
}
