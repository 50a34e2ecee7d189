package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/nim-memory-gateway/memory"
)

// ChromemStore wraps chromem-go for vector storage.
// chromem-go is a pure Go, embedded vector database.
type ChromemStore struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection // Per-owner collections
	mu          sync.RWMutex
}

// Options configures a ChromemStore.
type Options struct {
	// Path persists the database under this directory. Empty keeps it in memory.
	Path string

	// Compress gzips persisted documents.
	Compress bool
}

// New creates a new chromem-based store.
func New(opts Options) (*ChromemStore, error) {
	var db *chromem.DB
	if opts.Path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(opts.Path, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("open persistent db: %w", err)
		}
		log.Printf("[CHROMEM] Opened persistent store at %s (%d collections)", opts.Path, len(db.ListCollections()))
	}

	return &ChromemStore{
		db:          db,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// noEmbed is handed to chromem so it never calls a remote embedding API.
// Callers always supply embeddings.
func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem: embeddings must be supplied by the caller")
}

// collectionName returns the collection holding an owner's memories.
func collectionName(ownerID string) string {
	if ownerID == "" {
		return "global"
	}
	return "user_" + ownerID
}

// getOrCreateCollection returns the collection for an owner.
// Each owner gets their own collection for namespace isolation.
func (s *ChromemStore) getOrCreateCollection(ownerID string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[ownerID]
	s.mu.RUnlock()

	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := s.collections[ownerID]; exists {
		return col, nil
	}

	// GetOrCreate picks up collections loaded from disk.
	col, err := s.db.GetOrCreateCollection(collectionName(ownerID), nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	s.collections[ownerID] = col
	return col, nil
}

// Store saves a memory with its embedding.
func (s *ChromemStore) Store(ctx context.Context, mem memory.Memory) error {
	if len(mem.Embedding()) == 0 {
		return fmt.Errorf("memory %s has no embedding", mem.ID())
	}

	col, err := s.getOrCreateCollection(mem.OwnerID())
	if err != nil {
		return err
	}

	log.Printf("[CHROMEM] Storing memory: id=%s, owner=%s, type=%s",
		mem.ID(), mem.OwnerID(), mem.Type())

	stored, err := serializeMemory(mem)
	if err != nil {
		return fmt.Errorf("serialize memory: %w", err)
	}

	doc := chromem.Document{
		ID:        mem.ID(),
		Content:   stored.ContentJSON,
		Embedding: mem.Embedding(),
		Metadata:  stored.Metadata,
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	return nil
}

// Query retrieves memories by vector similarity.
func (s *ChromemStore) Query(ctx context.Context, ownerID string, embedding []float32, limit int) ([]memory.Match, error) {
	col, err := s.getOrCreateCollection(ownerID)
	if err != nil {
		return nil, err
	}

	// chromem-go requires nResults <= collection size
	if n := col.Count(); limit > n {
		limit = n
	}
	if limit <= 0 {
		log.Printf("[CHROMEM] Collection for owner=%s is empty", ownerID)
		return nil, nil
	}

	log.Printf("[CHROMEM] Querying collection for owner=%s, limit=%d", ownerID, limit)

	results, err := col.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	matches := make([]memory.Match, 0, len(results))
	for i, result := range results {
		mem, err := deserializeMemory(result.ID, result.Content, result.Metadata, result.Embedding)
		if err != nil {
			log.Printf("[CHROMEM] Skipping result #%d: %v", i+1, err)
			continue
		}
		matches = append(matches, memory.Match{Memory: mem, Similarity: result.Similarity})
	}

	log.Printf("[CHROMEM] Returning %d memories", len(matches))
	return matches, nil
}

// Get retrieves a specific memory by ID and owner.
func (s *ChromemStore) Get(ctx context.Context, ownerID string, memoryID string) (memory.Memory, error) {
	col, err := s.getOrCreateCollection(ownerID)
	if err != nil {
		return nil, err
	}

	doc, err := col.GetByID(ctx, memoryID)
	if err != nil {
		return nil, fmt.Errorf("get memory %s: %w", memoryID, err)
	}

	return deserializeMemory(doc.ID, doc.Content, doc.Metadata, doc.Embedding)
}

// Delete removes a memory.
func (s *ChromemStore) Delete(ctx context.Context, ownerID string, memoryID string) error {
	col, err := s.getOrCreateCollection(ownerID)
	if err != nil {
		return err
	}

	if err := col.Delete(ctx, nil, nil, memoryID); err != nil {
		return fmt.Errorf("delete memory %s: %w", memoryID, err)
	}
	return nil
}

// Count returns the number of memories stored for the owner.
func (s *ChromemStore) Count(ctx context.Context, ownerID string) (int, error) {
	col, err := s.getOrCreateCollection(ownerID)
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

// Close releases resources.
func (s *ChromemStore) Close() error {
	// Persistent collections are written on every add; nothing to flush.
	return nil
}

// StoredMemory represents a serialized memory for storage.
type StoredMemory struct {
	Type        string
	ContentJSON string
	Metadata    map[string]string
}

// serializeMemory converts a Memory interface to storage format.
func serializeMemory(mem memory.Memory) (*StoredMemory, error) {
	contentBytes, err := json.Marshal(mem.Content())
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}

	metadata := map[string]string{
		"type":       mem.Type(),
		"owner_id":   mem.OwnerID(),
		"created_at": mem.CreatedAt().Format(time.RFC3339Nano),
	}

	// Custom metadata; non-string values are stored as JSON
	for k, v := range mem.Metadata() {
		if str, ok := v.(string); ok {
			metadata[k] = str
		} else if bytes, err := json.Marshal(v); err == nil {
			metadata[k] = string(bytes)
		}
	}

	return &StoredMemory{
		Type:        mem.Type(),
		ContentJSON: string(contentBytes),
		Metadata:    metadata,
	}, nil
}

// deserializeMemory converts stored format back to Memory interface.
func deserializeMemory(id, content string, meta map[string]string, embedding []float32) (memory.Memory, error) {
	switch memType := meta["type"]; memType {
	case memory.NoteType:
		return deserializeNoteMemory(id, content, meta, embedding)
	default:
		return nil, fmt.Errorf("unknown memory type: %s", memType)
	}
}

// deserializeNoteMemory deserializes a NoteMemory from a chromem document.
func deserializeNoteMemory(id, content string, meta map[string]string, embedding []float32) (*memory.NoteMemory, error) {
	var body struct {
		Body string `json:"body"`
	}
	if err := json.Unmarshal([]byte(content), &body); err != nil {
		return nil, fmt.Errorf("unmarshal content: %w", err)
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, meta["created_at"])

	metadata := make(map[string]interface{})
	for k, v := range meta {
		if k != "type" && k != "owner_id" && k != "created_at" {
			metadata[k] = v
		}
	}

	return memory.NewNoteMemoryFromStorage(
		id,
		meta["owner_id"],
		createdAt,
		embedding,
		body.Body,
		metadata,
	), nil
}
