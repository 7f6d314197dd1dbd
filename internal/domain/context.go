package domain

// ContextNote is free-form background material attached to the workspace.
type ContextNote struct {
	Meta
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (c *ContextNote) Summarize() Summary {
	return Summary{
		ID:           c.ID,
		Title:        c.Title,
		Created:      c.Created,
		LastModified: c.LastModified,
		Characters:   len(c.Body),
	}
}
