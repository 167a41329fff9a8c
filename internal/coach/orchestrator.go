// Package coach implements the conversational command orchestrator: one
// decision call against the completion API, sequential tool execution, and a
// narration call that phrases the outcome.
package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/musclelog/server/internal/domain"
	"github.com/musclelog/server/internal/llm"
	"github.com/musclelog/server/internal/metrics"
	"github.com/musclelog/server/internal/store"
)

// Orchestrator runs the chat-to-database pipeline. It is stateless across
// requests; conversation history is caller-owned.
type Orchestrator struct {
	repo     store.Repository
	model    Completer
	executor *Executor
}

// New creates an orchestrator.
func New(repo store.Repository, model Completer) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		model:    model,
		executor: NewExecutor(repo),
	}
}

// Respond processes one user utterance end to end. Errors returned here are
// fatal to the request (context assembly or a model call failed); individual
// tool failures are folded into the result instead.
func (o *Orchestrator) Respond(ctx context.Context, req Request) (*Result, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if req.Now.IsZero() {
		return nil, fmt.Errorf("request time is required")
	}

	profile, err := o.repo.GetProfile(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	// The tier flag counts only when the profile confirms it. The verified
	// value also drives the prompt's tier block.
	pro := req.Pro && profile != nil && profile.IsPro
	req.Pro = pro

	messages := o.buildMessages(req, profile)

	decision, err := o.model.ChatCompletion(ctx, llm.ChatRequest{
		Model:      o.model.Model(pro),
		Messages:   messages,
		Tools:      toolCatalog(),
		ToolChoice: "auto",
	})
	if err != nil {
		metrics.ModelCalls.WithLabelValues("decision", "error").Inc()
		return nil, fmt.Errorf("decision call: %w", err)
	}
	metrics.ModelCalls.WithLabelValues("decision", "ok").Inc()

	usage := decision.Usage

	// No tool desired: the model's text is the final reply.
	if len(decision.Message.ToolCalls) == 0 {
		o.accountUsage(ctx, req.UserID, usage)
		return &Result{
			Response: decision.Message.Content,
			Data:     []ToolResult{},
			Usage:    usage,
		}, nil
	}

	results := make([]ToolResult, 0, len(decision.Message.ToolCalls))
	for _, call := range decision.Message.ToolCalls {
		res := o.executor.Execute(ctx, req.UserID, req.Now, call)
		outcome := "ok"
		if success, present := res.Result["success"]; present {
			if ok, _ := success.(bool); !ok {
				outcome = "failed"
			}
		}
		metrics.ToolExecutions.WithLabelValues(res.Name, outcome).Inc()
		slog.Info("tool executed",
			"user_id", req.UserID,
			"tool", res.Name,
			"outcome", outcome,
		)
		results = append(results, res)
	}

	serialized, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("serialize tool results: %w", err)
	}

	narration, err := o.model.ChatCompletion(ctx, llm.ChatRequest{
		Model: o.model.Model(pro),
		Messages: []llm.Message{
			{Role: "system", Content: narrationPrompt(req, profile)},
			{Role: domain.RoleUser, Content: fmt.Sprintf(
				"User query: %q. Data: %s. Respond naturally based on the data.",
				req.Query, serialized,
			)},
		},
	})
	if err != nil {
		metrics.ModelCalls.WithLabelValues("narration", "error").Inc()
		return nil, fmt.Errorf("narration call: %w", err)
	}
	metrics.ModelCalls.WithLabelValues("narration", "ok").Inc()

	usage.PromptTokens += narration.Usage.PromptTokens
	usage.CompletionTokens += narration.Usage.CompletionTokens
	usage.TotalTokens += narration.Usage.TotalTokens
	o.accountUsage(ctx, req.UserID, usage)

	return &Result{
		Response:  narration.Message.Content,
		Data:      results,
		ToolCalls: decision.Message.ToolCalls,
		Usage:     usage,
	}, nil
}

// buildMessages assembles the prompt for the decision call: system block
// first, then the caller-supplied history, ending on the current query.
func (o *Orchestrator) buildMessages(req Request, profile *domain.Profile) []llm.Message {
	messages := []llm.Message{
		{Role: "system", Content: systemPrompt(req, profile)},
	}

	if len(req.History) == 0 {
		return append(messages, llm.Message{Role: domain.RoleUser, Content: req.Query})
	}

	for _, turn := range req.History {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	// The final message must be the user's current query. If the caller's
	// history ends on an assistant turn, append the query rather than fail.
	if last := req.History[len(req.History)-1]; last.Role != domain.RoleUser {
		slog.Warn("history does not end on a user turn, appending query", "user_id", req.UserID)
		messages = append(messages, llm.Message{Role: domain.RoleUser, Content: req.Query})
	}
	return messages
}

// accountUsage adds the reported token usage to the user's running counter.
// Best-effort: failures are logged and swallowed.
func (o *Orchestrator) accountUsage(ctx context.Context, userID string, usage llm.Usage) {
	if usage.TotalTokens == 0 {
		return
	}
	metrics.TokensUsed.Add(float64(usage.TotalTokens))
	if err := o.repo.AddTokenUsage(ctx, userID, int64(usage.TotalTokens)); err != nil {
		slog.Warn("failed to update token usage counter", "user_id", userID, "error", err)
	}
}
