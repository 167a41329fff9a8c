package coach

import (
	"context"
	"time"

	"github.com/musclelog/server/internal/domain"
	"github.com/musclelog/server/internal/llm"
)

// Request is one orchestrator invocation: an authenticated user's utterance
// plus the caller-held conversation history.
type Request struct {
	UserID   string
	Query    string
	History  []domain.ConversationTurn
	Pro      bool      // request the higher-capability model tier
	Now      time.Time // caller wall-clock, used for date and meal inference
	Language string    // UI locale; overrides the stored preference
}

// ToolResult is the outcome of one executed tool invocation. Result always
// carries a "success" key for write tools; read tools return their payload
// directly.
type ToolResult struct {
	ToolCallID string         `json:"tool_call_id"`
	Name       string         `json:"name"`
	Result     map[string]any `json:"result"`
}

// Result is the orchestrator's reply.
type Result struct {
	Response  string         `json:"response"`
	Data      []ToolResult   `json:"data"`
	ToolCalls []llm.ToolCall `json:"tool_calls,omitempty"`
	Usage     llm.Usage      `json:"usage"`
}

// Completer is the completion API surface the orchestrator depends on.
type Completer interface {
	ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResult, error)
	Model(pro bool) string
}
