package domain

import "time"

// MessageRole identifies who produced a conversation turn.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// Conversation is a stored chat exchange. Saves replace the full message
// list; there is no append or patch path.
type Conversation struct {
	Meta
	Title          string    `json:"title"`
	Messages       []Message `json:"messages"`
	SystemPromptID string    `json:"systemPromptId,omitempty"`
}

func (c *Conversation) Summarize() Summary {
	return Summary{
		ID:           c.ID,
		Title:        c.Title,
		Created:      c.Created,
		LastModified: c.LastModified,
		Messages:     len(c.Messages),
	}
}
