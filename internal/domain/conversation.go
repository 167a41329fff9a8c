package domain

// Conversation turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one entry of the caller-supplied chat history. The
// server never stores or mutates history; the client owns it.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
