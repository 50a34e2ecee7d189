package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"
)

// SimpleManager is the default Manager implementation.
//
// Features:
//   - Automatic embedding on record
//   - Vector similarity search scoped to the owner
//   - Similarity threshold and result cap
//   - Formatting within a character budget
type SimpleManager struct {
	store    Store
	embedder Embedder // Internal: the engine never sees this
	config   *Config
}

// NewSimpleManager creates a new SimpleManager.
func NewSimpleManager(store Store, embedder Embedder, config *Config) *SimpleManager {
	if config == nil {
		config = DefaultConfig
	}
	return &SimpleManager{
		store:    store,
		embedder: embedder,
		config:   config,
	}
}

// Record embeds text and stores it as a NoteMemory owned by userID.
func (m *SimpleManager) Record(ctx context.Context, userID string, text string) error {
	if !m.config.Enabled {
		return nil // Memory disabled
	}
	if strings.TrimSpace(text) == "" {
		log.Printf("[MEMORY] Skipping empty memory for user=%s", userID)
		return nil
	}

	mem := NewNoteMemory(userID, text)

	embedding, err := m.embedder.Embed(ctx, mem.Text())
	if err != nil {
		return fmt.Errorf("embed memory: %w", err)
	}
	mem.SetEmbedding(embedding)

	if err := m.store.Store(ctx, mem); err != nil {
		return fmt.Errorf("store memory: %w", err)
	}

	log.Printf("[MEMORY] Stored memory id=%s for user=%s: %q", mem.ID(), userID, truncateLog(text, 50))
	return nil
}

// Retrieve finds relevant memories and returns a formatted string.
func (m *SimpleManager) Retrieve(ctx context.Context, userID string, query string) (string, error) {
	if !m.config.Enabled {
		return "", nil // Memory disabled
	}

	// An empty conversation still retrieves the user's memories.
	text := query
	if strings.TrimSpace(text) == "" {
		text = "recent memories"
	}

	embedding, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	matches, err := m.store.Query(ctx, userID, embedding, m.maxResults())
	if err != nil {
		return "", fmt.Errorf("query store: %w", err)
	}

	relevant := m.filterRelevant(matches)

	log.Printf("[MEMORY] Retrieved %d memories (%d above threshold) for query: %q",
		len(matches), len(relevant), truncateLog(query, 50))
	if len(relevant) == 0 {
		return "", nil
	}

	return m.formatMemories(relevant, userID, query), nil
}

// filterRelevant drops matches below MinSimilarity. A zero threshold keeps all.
func (m *SimpleManager) filterRelevant(matches []Match) []Memory {
	var memories []Memory
	for _, match := range matches {
		if m.config.MinSimilarity > 0 && float64(match.Similarity) < m.config.MinSimilarity {
			continue
		}
		memories = append(memories, match.Memory)
	}
	return memories
}

// formatMemories formats retrieved memories into a structured string.
func (m *SimpleManager) formatMemories(memories []Memory, userID string, query string) string {
	if len(memories) == 0 {
		return ""
	}

	var parts []string
	parts = append(parts, "=== RELEVANT REPOSITORY MEMORIES ===")

	budget := m.config.MaxContextChars
	if budget <= 0 {
		budget = DefaultConfig.MaxContextChars
	}
	maxLengthPerMemory := budget / len(memories)
	if maxLengthPerMemory < 100 {
		maxLengthPerMemory = 100 // Minimum reasonable length
	}

	for i, mem := range memories {
		formatted := mem.Format(FormatContext{
			UserID:    userID,
			Query:     query,
			MaxLength: maxLengthPerMemory,
		})
		parts = append(parts, fmt.Sprintf("%d. %s", i+1, formatted))
	}

	return strings.Join(parts, "\n")
}

func (m *SimpleManager) maxResults() int {
	if m.config.MaxResults > 0 {
		return m.config.MaxResults
	}
	return DefaultConfig.MaxResults
}

// truncateLog truncates text to maxLen runes for logging.
func truncateLog(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

// Config holds SimpleManager configuration.
type Config struct {
	// Enabled toggles memory on/off.
	Enabled bool

	// MinSimilarity is the minimum similarity for retrieval [0.0-1.0].
	// Zero disables the threshold.
	// Note: Tiny models (all-MiniLM-L6-v2) produce lower scores (~0.35 for similar text),
	// and the hash embedder produces no semantic similarity at all.
	MinSimilarity float64

	// MaxResults caps the number of memories retrieved per query.
	// Default: 10
	MaxResults int

	// MaxContextChars is the character budget shared by all formatted memories.
	// Default: 2000
	MaxContextChars int
}

// DefaultConfig returns defaults for the local memory engine.
var DefaultConfig = &Config{
	Enabled:         true,
	MinSimilarity:   0,
	MaxResults:      10,
	MaxContextChars: 2000,
}
