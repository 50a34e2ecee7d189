package memory

import (
	"context"
	"time"
)

// Memory is the core interface for stored memories.
//
// Each memory type controls its own:
//   - Content structure (fields, data)
//   - Formatting for prompt injection (Format method)
//   - Metadata schema
type Memory interface {
	// Identity & Ownership
	ID() string
	OwnerID() string // Memory-engine user ID
	Type() string    // Memory type identifier (e.g., "note")

	// Content & Metadata
	Content() interface{}
	Metadata() map[string]interface{}

	// Temporal
	CreatedAt() time.Time

	// Operations
	Format(ctx FormatContext) string // Formats this memory for prompt injection
	Text() string                    // Text used to compute the embedding
	Embedding() []float32
	SetEmbedding([]float32)
}

// FormatContext provides context for memory formatting.
type FormatContext struct {
	UserID    string // Owner of the memories being formatted
	Query     string // Conversation the memories are retrieved for
	MaxLength int    // Max characters for this memory's output
}

// Match is a memory returned by a similarity query.
type Match struct {
	Memory     Memory
	Similarity float32 // Cosine similarity in [-1, 1]
}

// Manager orchestrates memory operations for the memory engine.
//
// The engine decides WHEN memory is read or written (add and extract calls).
// The Manager decides HOW:
//   - Which text is worth storing
//   - Which memories are relevant to a conversation
//   - How they are formatted
type Manager interface {
	// Record stores text as a memory owned by userID.
	Record(ctx context.Context, userID string, text string) error

	// Retrieve finds memories relevant to query and returns them formatted
	// for prompt injection. Returns "" when nothing relevant is stored.
	Retrieve(ctx context.Context, userID string, query string) (string, error)
}

// Store is the vector storage backend interface.
type Store interface {
	// Store saves a memory with its embedding.
	// Memory must have embedding set before calling Store.
	Store(ctx context.Context, mem Memory) error

	// Query retrieves the owner's memories by vector similarity.
	// Returns matches sorted by similarity (highest first).
	Query(ctx context.Context, ownerID string, embedding []float32, limit int) ([]Match, error)

	// Get retrieves a specific memory by ID and owner.
	Get(ctx context.Context, ownerID string, memoryID string) (Memory, error)

	// Delete removes a memory permanently.
	Delete(ctx context.Context, ownerID string, memoryID string) error

	// Count returns the number of memories stored for the owner.
	Count(ctx context.Context, ownerID string) (int, error)

	// Close releases resources.
	Close() error
}

// Embedder converts text to vector embeddings.
// Implementations: hash (offline), remote (Ollama/OpenAI), onnx (local model).
type Embedder interface {
	// Embed converts a single text to embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns embedding vector size.
	Dimensions() int
}
