package coach

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/musclelog/server/internal/domain"
	"github.com/musclelog/server/internal/llm"
)

// fakeRepo is an in-memory store.Repository for orchestrator and executor tests.
type fakeRepo struct {
	profiles     map[string]*domain.Profile
	sessions     map[string]*domain.WorkoutSession // keyed user|date
	exercises    []*domain.Exercise
	sets         []*domain.WorkoutSet
	foodLogs     []*domain.FoodLog
	measurements []*domain.BodyMeasurement
	prefUpdates  []domain.PreferenceUpdate
	tokenUsage   map[string]int64

	insertSetErr     error
	addTokenUsageErr error

	lastCountSince string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		profiles:   map[string]*domain.Profile{},
		sessions:   map[string]*domain.WorkoutSession{},
		tokenUsage: map[string]int64{},
	}
}

func (f *fakeRepo) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	return f.profiles[userID], nil
}

func (f *fakeRepo) GetProfileByPhone(_ context.Context, phone string) (*domain.Profile, error) {
	for _, p := range f.profiles {
		if p.PhoneNumber == phone {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) UpsertProfile(_ context.Context, p *domain.Profile) error {
	f.profiles[p.UserID] = p
	return nil
}

func (f *fakeRepo) UpdatePreferences(_ context.Context, userID string, update domain.PreferenceUpdate) error {
	f.prefUpdates = append(f.prefUpdates, update)
	return nil
}

func (f *fakeRepo) UpdateProfileWeight(_ context.Context, userID string, weightKg float64) error {
	p, ok := f.profiles[userID]
	if !ok {
		p = &domain.Profile{UserID: userID}
		f.profiles[userID] = p
	}
	p.WeightKg = weightKg
	return nil
}

func (f *fakeRepo) AddTokenUsage(_ context.Context, userID string, tokens int64) error {
	if f.addTokenUsageErr != nil {
		return f.addTokenUsageErr
	}
	f.tokenUsage[userID] += tokens
	return nil
}

func (f *fakeRepo) SetStripeCustomerID(_ context.Context, userID, customerID string) error {
	return nil
}

func (f *fakeRepo) SetSubscriptionByCustomer(_ context.Context, customerID string, isPro bool, endsAt *time.Time) error {
	return nil
}

func (f *fakeRepo) ListWeeklyEmailProfiles(_ context.Context) ([]*domain.Profile, error) {
	return nil, nil
}

func (f *fakeRepo) GetUserIDByTokenHash(_ context.Context, tokenHash string) (string, error) {
	return "", nil
}

func (f *fakeRepo) InsertAPIToken(_ context.Context, tokenHash, userID string) error {
	return nil
}

func (f *fakeRepo) GetOrCreateSession(_ context.Context, userID, sessionDate string) (*domain.WorkoutSession, error) {
	key := userID + "|" + sessionDate
	if s, ok := f.sessions[key]; ok {
		return s, nil
	}
	s := &domain.WorkoutSession{
		ID:          fmt.Sprintf("session-%d", len(f.sessions)+1),
		UserID:      userID,
		SessionDate: sessionDate,
	}
	f.sessions[key] = s
	return s, nil
}

func (f *fakeRepo) GetOrCreateExercise(_ context.Context, name, category string) (*domain.Exercise, error) {
	for _, ex := range f.exercises {
		if strings.EqualFold(ex.Name, name) {
			return ex, nil
		}
	}
	ex := &domain.Exercise{
		ID:       fmt.Sprintf("exercise-%d", len(f.exercises)+1),
		Name:     name,
		Category: category,
	}
	f.exercises = append(f.exercises, ex)
	return ex, nil
}

func (f *fakeRepo) InsertSet(_ context.Context, set *domain.WorkoutSet) error {
	if f.insertSetErr != nil {
		return f.insertSetErr
	}
	f.sets = append(f.sets, set)
	return nil
}

func (f *fakeRepo) ListSessions(_ context.Context, userID string, limit int) ([]*domain.WorkoutSession, error) {
	var out []*domain.WorkoutSession
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountSessionsSince(_ context.Context, userID string, since string) (int, error) {
	f.lastCountSince = since
	count := 0
	for _, s := range f.sessions {
		if s.UserID == userID && s.SessionDate >= since {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) InsertFoodLog(_ context.Context, log *domain.FoodLog) error {
	f.foodLogs = append(f.foodLogs, log)
	return nil
}

func (f *fakeRepo) ListFoodLogs(_ context.Context, userID string, limit int) ([]*domain.FoodLog, error) {
	var out []*domain.FoodLog
	for _, l := range f.foodLogs {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeRepo) FoodTotalsSince(_ context.Context, userID string, since string) (float64, int, error) {
	total, entries := 0.0, 0
	for _, l := range f.foodLogs {
		if l.UserID == userID && l.MealDate >= since {
			total += l.Calories
			entries++
		}
	}
	return total, entries, nil
}

func (f *fakeRepo) InsertMeasurement(_ context.Context, m *domain.BodyMeasurement) error {
	f.measurements = append(f.measurements, m)
	return nil
}

func (f *fakeRepo) ListMeasurements(_ context.Context, userID string, limit int) ([]*domain.BodyMeasurement, error) {
	var out []*domain.BodyMeasurement
	for _, m := range f.measurements {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListExercises(_ context.Context) ([]*domain.Exercise, error) {
	return f.exercises, nil
}

func (f *fakeRepo) UpdateExerciseCategory(_ context.Context, exerciseID, category string) error {
	for _, ex := range f.exercises {
		if ex.ID == exerciseID {
			ex.Category = category
			return nil
		}
	}
	return fmt.Errorf("exercise %s not found", exerciseID)
}

func (f *fakeRepo) Ping(_ context.Context) error { return nil }
func (f *fakeRepo) Close() error                 { return nil }

// fakeModel replays scripted responses and records every request.
type fakeModel struct {
	responses []*llm.ChatResult
	requests  []llm.ChatRequest
	err       error
}

func (m *fakeModel) ChatCompletion(_ context.Context, req llm.ChatRequest) (*llm.ChatResult, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("no scripted response left")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func (m *fakeModel) Model(pro bool) string {
	if pro {
		return "pro-model"
	}
	return "fast-model"
}

func testTime(t *testing.T) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, "2025-03-10T12:30:00Z")
	if err != nil {
		t.Fatalf("Failed to parse test time: %v", err)
	}
	return ts
}

func TestRespondRequiresQueryAndTime(t *testing.T) {
	o := New(newFakeRepo(), &fakeModel{})

	if _, err := o.Respond(context.Background(), Request{UserID: "u1", Now: testTime(t)}); err == nil {
		t.Error("Expected error for empty query")
	}
	if _, err := o.Respond(context.Background(), Request{UserID: "u1", Query: "hi"}); err == nil {
		t.Error("Expected error for zero request time")
	}
}

func TestRespondNoToolCall(t *testing.T) {
	repo := newFakeRepo()
	model := &fakeModel{responses: []*llm.ChatResult{
		{
			Message: llm.Message{Role: domain.RoleAssistant, Content: "Hello! How was your workout?"},
			Usage:   llm.Usage{PromptTokens: 50, CompletionTokens: 10, TotalTokens: 60},
		},
	}}
	o := New(repo, model)

	result, err := o.Respond(context.Background(), Request{
		UserID: "u1",
		Query:  "hey coach",
		Now:    testTime(t),
	})
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	if result.Response != "Hello! How was your workout?" {
		t.Errorf("Unexpected response: %q", result.Response)
	}
	if result.Data == nil || len(result.Data) != 0 {
		t.Errorf("Expected empty non-nil data, got %#v", result.Data)
	}
	if len(model.requests) != 1 {
		t.Errorf("Expected a single model call, got %d", len(model.requests))
	}
	if repo.tokenUsage["u1"] != 60 {
		t.Errorf("Expected 60 tokens accounted, got %d", repo.tokenUsage["u1"])
	}
}

func TestRespondToolPipeline(t *testing.T) {
	repo := newFakeRepo()
	model := &fakeModel{responses: []*llm.ChatResult{
		{
			Message: llm.Message{
				Role: domain.RoleAssistant,
				ToolCalls: []llm.ToolCall{{
					ID:   "call-1",
					Type: "function",
					Function: llm.FunctionCall{
						Name:      toolLogWorkoutSets,
						Arguments: `{"sets": [{"exercise_name": "Bench Press", "weight_lbs": 185, "reps": 8, "num_sets": 3}]}`,
					},
				}},
			},
			Usage: llm.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
		},
		{
			Message: llm.Message{Role: domain.RoleAssistant, Content: "Logged 3 sets of bench press, nice work!"},
			Usage:   llm.Usage{PromptTokens: 80, CompletionTokens: 15, TotalTokens: 95},
		},
	}}
	o := New(repo, model)

	result, err := o.Respond(context.Background(), Request{
		UserID: "u1",
		Query:  "bench press 185 for 3 sets of 8",
		Now:    testTime(t),
	})
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	if len(repo.sets) != 3 {
		t.Fatalf("Expected 3 sets inserted, got %d", len(repo.sets))
	}
	for i, set := range repo.sets {
		if set.SetNumber != i+1 {
			t.Errorf("Set %d: expected set_number %d, got %d", i, i+1, set.SetNumber)
		}
		if set.WeightLbs != 185 || set.Reps != 8 {
			t.Errorf("Set %d: unexpected weight/reps: %v/%v", i, set.WeightLbs, set.Reps)
		}
	}

	if result.Response != "Logged 3 sets of bench press, nice work!" {
		t.Errorf("Expected narration text as response, got %q", result.Response)
	}
	if len(result.Data) != 1 {
		t.Fatalf("Expected 1 tool result, got %d", len(result.Data))
	}
	if success, _ := result.Data[0].Result["success"].(bool); !success {
		t.Errorf("Expected tool success, got %#v", result.Data[0].Result)
	}

	// Narration payload must carry the query and the serialized results.
	if len(model.requests) != 2 {
		t.Fatalf("Expected 2 model calls, got %d", len(model.requests))
	}
	narration := model.requests[1]
	if len(narration.Tools) != 0 {
		t.Error("Narration call must not offer tools")
	}
	userMsg := narration.Messages[len(narration.Messages)-1].Content
	if !strings.Contains(userMsg, "bench press 185") || !strings.Contains(userMsg, "Bench Press") {
		t.Errorf("Narration payload missing query or data: %q", userMsg)
	}

	if got := result.Usage.TotalTokens; got != 215 {
		t.Errorf("Expected summed usage 215, got %d", got)
	}
	if repo.tokenUsage["u1"] != 215 {
		t.Errorf("Expected 215 tokens accounted, got %d", repo.tokenUsage["u1"])
	}
}

func TestRespondProTierRequiresProfileFlag(t *testing.T) {
	repo := newFakeRepo()
	repo.profiles["u1"] = &domain.Profile{UserID: "u1", IsPro: false}
	model := &fakeModel{responses: []*llm.ChatResult{
		{Message: llm.Message{Role: domain.RoleAssistant, Content: "ok"}},
	}}
	o := New(repo, model)

	_, err := o.Respond(context.Background(), Request{
		UserID: "u1",
		Query:  "hello",
		Pro:    true, // claimed, not backed by the profile
		Now:    testTime(t),
	})
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	if model.requests[0].Model != "fast-model" {
		t.Errorf("Expected fast tier for unverified pro flag, got %q", model.requests[0].Model)
	}
	if strings.Contains(model.requests[0].Messages[0].Content, "higher-capability") {
		t.Error("System prompt must not include the pro block for unverified pro flag")
	}
}

func TestRespondProTierVerified(t *testing.T) {
	repo := newFakeRepo()
	repo.profiles["u1"] = &domain.Profile{
		UserID:             "u1",
		IsPro:              true,
		NutritionGoal:      "cut to 80kg",
		CustomInstructions: "keep replies short",
	}
	model := &fakeModel{responses: []*llm.ChatResult{
		{Message: llm.Message{Role: domain.RoleAssistant, Content: "ok"}},
	}}
	o := New(repo, model)

	_, err := o.Respond(context.Background(), Request{
		UserID: "u1",
		Query:  "hello",
		Pro:    true,
		Now:    testTime(t),
	})
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	if model.requests[0].Model != "pro-model" {
		t.Errorf("Expected pro tier, got %q", model.requests[0].Model)
	}
	system := model.requests[0].Messages[0].Content
	if !strings.Contains(system, "cut to 80kg") {
		t.Error("System prompt missing nutrition goal")
	}
	if !strings.Contains(system, "keep replies short") {
		t.Error("System prompt missing custom instructions")
	}
}

func TestBuildMessagesHistoryEndsOnAssistant(t *testing.T) {
	o := New(newFakeRepo(), &fakeModel{})

	msgs := o.buildMessages(Request{
		UserID: "u1",
		Query:  "yes, log it",
		Now:    testTime(t),
		History: []domain.ConversationTurn{
			{Role: domain.RoleUser, Content: "I did pushups"},
			{Role: domain.RoleAssistant, Content: "How many?"},
		},
	}, nil)

	last := msgs[len(msgs)-1]
	if last.Role != domain.RoleUser || last.Content != "yes, log it" {
		t.Errorf("Expected appended user query as final message, got %+v", last)
	}
}

func TestBuildMessagesHistoryEndsOnUser(t *testing.T) {
	o := New(newFakeRepo(), &fakeModel{})

	history := []domain.ConversationTurn{
		{Role: domain.RoleUser, Content: "I did 20 pushups"},
	}
	msgs := o.buildMessages(Request{UserID: "u1", Query: "I did 20 pushups", Now: testTime(t), History: history}, nil)

	// 1 system + 1 history turn; the query is already the final user turn.
	if len(msgs) != 2 {
		t.Errorf("Expected 2 messages, got %d", len(msgs))
	}
}

func TestRespondUsageAccountingFailureIsSwallowed(t *testing.T) {
	repo := newFakeRepo()
	repo.addTokenUsageErr = fmt.Errorf("disk full")
	model := &fakeModel{responses: []*llm.ChatResult{
		{
			Message: llm.Message{Role: domain.RoleAssistant, Content: "hi"},
			Usage:   llm.Usage{TotalTokens: 42},
		},
	}}
	o := New(repo, model)

	result, err := o.Respond(context.Background(), Request{UserID: "u1", Query: "hey", Now: testTime(t)})
	if err != nil {
		t.Fatalf("Respond must not fail on usage accounting errors: %v", err)
	}
	if result.Response != "hi" {
		t.Errorf("Unexpected response: %q", result.Response)
	}
}

func TestRespondDecisionCallError(t *testing.T) {
	model := &fakeModel{err: fmt.Errorf("upstream 500")}
	o := New(newFakeRepo(), model)

	_, err := o.Respond(context.Background(), Request{UserID: "u1", Query: "hey", Now: testTime(t)})
	if err == nil {
		t.Fatal("Expected error from failed decision call")
	}
	if !strings.Contains(err.Error(), "decision call") {
		t.Errorf("Expected decision call error, got %v", err)
	}
}

func TestRespondFailedToolStillNarrates(t *testing.T) {
	repo := newFakeRepo()
	model := &fakeModel{responses: []*llm.ChatResult{
		{
			Message: llm.Message{
				Role: domain.RoleAssistant,
				ToolCalls: []llm.ToolCall{{
					ID:       "call-1",
					Type:     "function",
					Function: llm.FunctionCall{Name: toolLogFood, Arguments: `{not json`},
				}},
			},
		},
		{
			Message: llm.Message{Role: domain.RoleAssistant, Content: "Sorry, I couldn't save that."},
		},
	}}
	o := New(repo, model)

	result, err := o.Respond(context.Background(), Request{UserID: "u1", Query: "I ate pizza", Now: testTime(t)})
	if err != nil {
		t.Fatalf("Tool failure must not fail the request: %v", err)
	}

	if len(result.Data) != 1 {
		t.Fatalf("Expected 1 tool result, got %d", len(result.Data))
	}
	if success, _ := result.Data[0].Result["success"].(bool); success {
		t.Error("Expected success=false for malformed arguments")
	}
	if _, ok := result.Data[0].Result["error"]; !ok {
		t.Error("Expected error field in failed tool result")
	}
	if result.Response != "Sorry, I couldn't save that." {
		t.Errorf("Unexpected response: %q", result.Response)
	}
}
