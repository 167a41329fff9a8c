package messaging

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/musclelog/server/internal/coach"
	"github.com/musclelog/server/internal/domain"
	"github.com/musclelog/server/internal/llm"
	"github.com/musclelog/server/internal/store"
)

type fakeSender struct {
	sent []sentMessage
}

type sentMessage struct {
	to   string
	body string
}

func (f *fakeSender) Send(to, body string) error {
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	return nil
}

type scriptedModel struct {
	responses []*llm.ChatResult
}

func (m *scriptedModel) ChatCompletion(_ context.Context, req llm.ChatRequest) (*llm.ChatResult, error) {
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("no scripted response left")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func (m *scriptedModel) Model(pro bool) string { return "test-model" }

func newTestHandler(t *testing.T, model coach.Completer) (*WhatsAppHandler, store.Repository, *fakeSender) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	sender := &fakeSender{}
	return NewWhatsAppHandler(repo, coach.New(repo, model), sender), repo, sender
}

func postWebhook(t *testing.T, h *WhatsAppHandler, from, body string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	if from != "" {
		form.Set("From", from)
	}
	if body != "" {
		form.Set("Body", body)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestWhatsAppUnknownNumberGetsOnboarding(t *testing.T) {
	h, _, sender := newTestHandler(t, &scriptedModel{})

	w := postWebhook(t, h, "whatsapp:+15550001111", "I did 20 pushups")

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("Expected 1 reply, got %d", len(sender.sent))
	}
	if sender.sent[0].to != "+15550001111" {
		t.Errorf("Expected reply to bare number, got %q", sender.sent[0].to)
	}
	if !strings.Contains(sender.sent[0].body, "don't recognize this number") {
		t.Errorf("Expected onboarding reply, got %q", sender.sent[0].body)
	}
}

func TestWhatsAppKnownNumberRunsCoach(t *testing.T) {
	model := &scriptedModel{responses: []*llm.ChatResult{
		{Message: llm.Message{Role: domain.RoleAssistant, Content: "Nice pushups, Sam!"}},
	}}
	h, repo, sender := newTestHandler(t, model)

	err := repo.UpsertProfile(context.Background(), &domain.Profile{
		UserID:      "u1",
		DisplayName: "Sam",
		PhoneNumber: "+15550001111",
	})
	if err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}

	w := postWebhook(t, h, "whatsapp:+15550001111", "I did 20 pushups")

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("Expected 1 reply, got %d", len(sender.sent))
	}
	if sender.sent[0].body != "Nice pushups, Sam!" {
		t.Errorf("Expected coach reply, got %q", sender.sent[0].body)
	}
}

func TestWhatsAppEmptyPayloadIgnored(t *testing.T) {
	h, _, sender := newTestHandler(t, &scriptedModel{})

	w := postWebhook(t, h, "", "")

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 even for empty payload, got %d", w.Code)
	}
	if len(sender.sent) != 0 {
		t.Errorf("Expected no reply for empty payload, got %d", len(sender.sent))
	}
}

func TestWhatsAppCoachFailureStillAnswers200(t *testing.T) {
	h, repo, sender := newTestHandler(t, &scriptedModel{}) // no scripted responses

	err := repo.UpsertProfile(context.Background(), &domain.Profile{
		UserID:      "u1",
		PhoneNumber: "+15550001111",
	})
	if err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}

	w := postWebhook(t, h, "whatsapp:+15550001111", "log my lunch")

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 on coach failure, got %d", w.Code)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("Expected apology reply, got %d messages", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].body, "couldn't process") {
		t.Errorf("Expected apology text, got %q", sender.sent[0].body)
	}
}
