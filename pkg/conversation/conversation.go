package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a bounded, ordered transcript of messages tied to one book.
// Messages are ordered by append time; UpdatedAt is bumped on every append
// and never moves backwards. BookKey is immutable after creation.
type Conversation struct {
	ID        uuid.UUID  `json:"id"`
	BookKey   string     `json:"bookKey"`
	Messages  []*Message `json:"messages"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Title     string     `json:"title,omitempty"`
}

// Label is what conversation pickers display: the title when one was set,
// otherwise the creation date.
func (c *Conversation) Label() string {
	if c.Title != "" {
		return c.Title
	}
	return "Conversation " + c.CreatedAt.Format("2006-01-02 15:04")
}
