package domain

// Narrative is a long-form written piece. Content is rich-text HTML as the
// editor produced it; the store treats it as an opaque string.
type Narrative struct {
	Meta
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (n *Narrative) Summarize() Summary {
	return Summary{
		ID:           n.ID,
		Title:        n.Title,
		Created:      n.Created,
		LastModified: n.LastModified,
		Characters:   len(n.Content),
	}
}
