// Package messaging bridges the coach to WhatsApp via Twilio.
package messaging

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/musclelog/server/internal/coach"
	"github.com/musclelog/server/internal/config"
	"github.com/musclelog/server/internal/store"
)

const onboardingReply = "Hi! I'm Coach Hazzem from MuscleLog. I don't recognize this number yet. " +
	"Link your WhatsApp number in the app settings, then message me again to log workouts and meals."

// Sender delivers one outbound WhatsApp message. Satisfied by *TwilioSender;
// tests substitute a fake.
type Sender interface {
	Send(to, body string) error
}

// TwilioSender sends WhatsApp messages through the Twilio REST API.
type TwilioSender struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewTwilioSender creates a sender using the given Twilio credentials.
func NewTwilioSender(cfg config.TwilioConfig) *TwilioSender {
	return &TwilioSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		}),
		fromNumber: cfg.WhatsAppNumber,
	}
}

// Send delivers one WhatsApp message.
func (s *TwilioSender) Send(to, body string) error {
	params := &openapi.CreateMessageParams{}
	params.SetFrom("whatsapp:" + s.fromNumber)
	params.SetTo("whatsapp:" + to)
	params.SetBody(body)

	_, err := s.client.Api.CreateMessage(params)
	return err
}

// WhatsAppHandler receives inbound Twilio WhatsApp webhooks and replies
// through the sender.
type WhatsAppHandler struct {
	repo         store.Repository
	orchestrator *coach.Orchestrator
	sender       Sender
}

// NewWhatsAppHandler creates a WhatsApp webhook handler.
func NewWhatsAppHandler(repo store.Repository, orchestrator *coach.Orchestrator, sender Sender) *WhatsAppHandler {
	return &WhatsAppHandler{
		repo:         repo,
		orchestrator: orchestrator,
		sender:       sender,
	}
}

// ServeHTTP handles POST /webhooks/whatsapp. Twilio retries on non-2xx, so
// every outcome answers 200; failures are logged and surfaced to the user as
// a reply message where possible.
func (h *WhatsAppHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Warn("whatsapp webhook: bad form", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	from := strings.TrimPrefix(r.PostFormValue("From"), "whatsapp:")
	body := strings.TrimSpace(r.PostFormValue("Body"))
	if from == "" || body == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	slog.Info("whatsapp message received", "from", from, "body_len", len(body))

	profile, err := h.repo.GetProfileByPhone(r.Context(), from)
	if err != nil {
		slog.Error("whatsapp webhook: profile lookup failed", "from", from, "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	if profile == nil {
		h.reply(from, onboardingReply)
		w.WriteHeader(http.StatusOK)
		return
	}

	result, err := h.orchestrator.Respond(r.Context(), coach.Request{
		UserID:   profile.UserID,
		Query:    body,
		Pro:      profile.IsPro,
		Now:      time.Now(),
		Language: profile.Locale,
	})
	if err != nil {
		slog.Error("whatsapp webhook: coach failed", "user_id", profile.UserID, "error", err)
		h.reply(from, "Sorry, I couldn't process that right now. Please try again in a moment.")
		w.WriteHeader(http.StatusOK)
		return
	}

	h.reply(from, result.Response)
	w.WriteHeader(http.StatusOK)
}

// reply sends one outbound message. Errors are logged, not returned; there is
// nothing the webhook caller can do about them.
func (h *WhatsAppHandler) reply(to, body string) {
	if err := h.sender.Send(to, body); err != nil {
		slog.Error("whatsapp send failed", "to", to, "error", err)
	}
}
