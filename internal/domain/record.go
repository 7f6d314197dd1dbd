package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntityClass identifies one of the record kinds sharing the store contract.
type EntityClass string

const (
	ClassConversations EntityClass = "conversations"
	ClassNarratives    EntityClass = "narratives"
	ClassSystemPrompts EntityClass = "system-prompts"
	ClassContexts      EntityClass = "contexts"
	ClassImages        EntityClass = "images"
)

// EntityClasses lists every class in a stable order.
var EntityClasses = []EntityClass{
	ClassConversations,
	ClassNarratives,
	ClassSystemPrompts,
	ClassContexts,
	ClassImages,
}

// ParseEntityClass validates a class name from an external caller.
func ParseEntityClass(s string) (EntityClass, error) {
	for _, c := range EntityClasses {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown entity class %q", s)
}

// NewRecordID generates a timestamp+random composite ID. The millisecond
// prefix keeps directory listings roughly chronological.
func NewRecordID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}

// Meta carries the identity and lifecycle fields every record shares.
// Records embed it; stores manage its values on save.
type Meta struct {
	ID           string    `json:"id"`
	Created      time.Time `json:"created"`
	LastModified time.Time `json:"lastModified"`
}

func (m *Meta) EntityID() string        { return m.ID }
func (m *Meta) SetEntityID(id string)   { m.ID = id }
func (m *Meta) CreatedAt() time.Time    { return m.Created }
func (m *Meta) SetCreated(t time.Time)  { m.Created = t }
func (m *Meta) ModifiedAt() time.Time   { return m.LastModified }
func (m *Meta) SetModified(t time.Time) { m.LastModified = t }

// Entity is implemented by every record type the generic store persists.
type Entity interface {
	EntityID() string
	SetEntityID(id string)
	CreatedAt() time.Time
	SetCreated(t time.Time)
	ModifiedAt() time.Time
	SetModified(t time.Time)
	Summarize() Summary
}

// Summary is the lightweight listing view of a record: enough for an index
// page without shipping the full plaintext back to the caller.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Created      time.Time `json:"created"`
	LastModified time.Time `json:"lastModified"`
	Characters   int       `json:"characters,omitempty"`
	Messages     int       `json:"messages,omitempty"`
}
