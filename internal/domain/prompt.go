package domain

// SystemPrompt is a reusable prompt preamble applied to conversations.
type SystemPrompt struct {
	Meta
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}

func (p *SystemPrompt) Summarize() Summary {
	return Summary{
		ID:           p.ID,
		Title:        p.Title,
		Created:      p.Created,
		LastModified: p.LastModified,
		Characters:   len(p.Prompt),
	}
}
