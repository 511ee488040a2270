package domain

import (
	"encoding/json"
	"time"
)

// ─── Chat Session ───────────────────────────────────────────────────────────

// ChatMessage is one turn in a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // user / assistant / tool
	Content string `json:"content"`
}

// ChatSession is a persisted conversation with the assistant.
type ChatSession struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Messages  []ChatMessage `json:"messages,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func (s ChatSession) Kind() RecordKind { return KindChatSession }
func (s ChatSession) Key() string      { return s.ID }

// ─── Assistant Protocol ─────────────────────────────────────────────────────
// The conversational model is treated as an opaque request/response channel
// plus a tool-call contract. Generation strategy is out of scope.

// ModelRequest is one user turn sent to the assistant.
type ModelRequest struct {
	Text    string `json:"text"`
	Image   []byte `json:"image,omitempty"`
	Context string `json:"context,omitempty"` // free-text summary of current records
	Memory  string `json:"memory,omitempty"`  // persistent user memory string
	Ignite  bool   `json:"ignite"`            // elevated cost tier
}

// ToolCall is a structured mutation instruction emitted by the assistant.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"` // create_task, update_task, delete_task, ...
	Args json.RawMessage `json:"args"`
}

// ModelResponse is the assistant's reply: text plus zero or more tool calls.
type ModelResponse struct {
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
}

// ToolResult is sent back to the assistant channel, one per call id.
type ToolResult struct {
	CallID   string `json:"callId"`
	Success  bool   `json:"success"`
	RecordID string `json:"recordId,omitempty"`
	Error    string `json:"error,omitempty"`
}
