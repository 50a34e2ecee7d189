package memory

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// NoteType is the Type() of a NoteMemory.
const NoteType = "note"

// NoteMemory stores a free-text memory entry, such as "fixed bug #12",
// for one memory-engine user.
type NoteMemory struct {
	id        string
	ownerID   string
	createdAt time.Time
	embedding []float32
	metadata  map[string]interface{}

	Body string
}

// NewNoteMemory creates a NoteMemory owned by ownerID.
func NewNoteMemory(ownerID string, body string) *NoteMemory {
	return &NoteMemory{
		id:        uuid.New().String(),
		ownerID:   ownerID,
		createdAt: time.Now().UTC(),
		metadata: map[string]interface{}{
			"length": len(body),
		},
		Body: body,
	}
}

// NewNoteMemoryFromStorage rebuilds a NoteMemory read back from a Store.
func NewNoteMemoryFromStorage(
	id string,
	ownerID string,
	createdAt time.Time,
	embedding []float32,
	body string,
	metadata map[string]interface{},
) *NoteMemory {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	return &NoteMemory{
		id:        id,
		ownerID:   ownerID,
		createdAt: createdAt,
		embedding: embedding,
		metadata:  metadata,
		Body:      body,
	}
}

func (n *NoteMemory) ID() string {
	return n.id
}

func (n *NoteMemory) OwnerID() string {
	return n.ownerID
}

func (n *NoteMemory) Type() string {
	return NoteType
}

func (n *NoteMemory) Content() interface{} {
	return map[string]interface{}{
		"body": n.Body,
	}
}

func (n *NoteMemory) Metadata() map[string]interface{} {
	return n.metadata
}

func (n *NoteMemory) CreatedAt() time.Time {
	return n.createdAt
}

func (n *NoteMemory) Text() string {
	return n.Body
}

func (n *NoteMemory) Embedding() []float32 {
	return n.embedding
}

func (n *NoteMemory) SetEmbedding(emb []float32) {
	n.embedding = emb
}

// Format renders the note as "[2006-01-02] body", truncated to MaxLength.
func (n *NoteMemory) Format(ctx FormatContext) string {
	body := strings.TrimSpace(n.Body)
	if ctx.MaxLength > 0 {
		body = truncate(body, ctx.MaxLength)
	}
	if n.createdAt.IsZero() {
		return body
	}
	return fmt.Sprintf("[%s] %s", n.createdAt.Format("2006-01-02"), body)
}

// truncate truncates a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return "..."
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}
