package memory_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/becomeliminal/nim-memory-gateway/memory"
	"github.com/becomeliminal/nim-memory-gateway/memory/embedder/hash"
	"github.com/becomeliminal/nim-memory-gateway/memory/store/chromem"
)

// failingEmbedder always returns err.
type failingEmbedder struct {
	err error
}

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, f.err
}

func (f *failingEmbedder) Dimensions() int {
	return 384
}

func newManager(t *testing.T, config *memory.Config) (*memory.SimpleManager, *chromem.ChromemStore) {
	t.Helper()
	store, err := chromem.New(chromem.Options{})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return memory.NewSimpleManager(store, hash.New(), config), store
}

func TestSimpleManager_RecordAndRetrieve(t *testing.T) {
	ctx := context.Background()
	manager, _ := newManager(t, nil)

	if err := manager.Record(ctx, "user123", "fixed bug #12"); err != nil {
		t.Fatalf("Failed to record memory: %v", err)
	}

	formatted, err := manager.Retrieve(ctx, "user123", "fixed bug #12")
	if err != nil {
		t.Fatalf("Failed to retrieve memories: %v", err)
	}

	if !strings.Contains(formatted, "RELEVANT REPOSITORY MEMORIES") {
		t.Errorf("Expected formatted output to contain header, got %q", formatted)
	}
	if !strings.Contains(formatted, "fixed bug #12") {
		t.Errorf("Expected formatted output to contain the memory, got %q", formatted)
	}
}

func TestSimpleManager_UserNamespacing(t *testing.T) {
	ctx := context.Background()
	manager, _ := newManager(t, nil)

	if err := manager.Record(ctx, "user1", "user1 prefers tabs"); err != nil {
		t.Fatalf("Failed to record user1 memory: %v", err)
	}
	if err := manager.Record(ctx, "user2", "user2 prefers spaces"); err != nil {
		t.Fatalf("Failed to record user2 memory: %v", err)
	}

	formatted1, err := manager.Retrieve(ctx, "user1", "indentation")
	if err != nil {
		t.Fatalf("Failed to retrieve user1 memories: %v", err)
	}
	formatted2, err := manager.Retrieve(ctx, "user2", "indentation")
	if err != nil {
		t.Fatalf("Failed to retrieve user2 memories: %v", err)
	}

	if strings.Contains(formatted1, "user2") {
		t.Error("User1 should not see user2's memories")
	}
	if strings.Contains(formatted2, "user1") {
		t.Error("User2 should not see user1's memories")
	}
	if !strings.Contains(formatted1, "tabs") || !strings.Contains(formatted2, "spaces") {
		t.Errorf("Each user should see their own memory: %q / %q", formatted1, formatted2)
	}
}

func TestSimpleManager_NoMemories(t *testing.T) {
	manager, _ := newManager(t, nil)

	formatted, err := manager.Retrieve(context.Background(), "new-user", "discussing widget sizing")
	if err != nil {
		t.Fatalf("Retrieve should not error for a user without memories: %v", err)
	}
	if formatted != "" {
		t.Errorf("Expected empty result, got %q", formatted)
	}
}

func TestSimpleManager_SkipsBlankText(t *testing.T) {
	ctx := context.Background()
	manager, store := newManager(t, nil)

	if err := manager.Record(ctx, "user1", "   \n"); err != nil {
		t.Fatalf("Record should accept blank text: %v", err)
	}

	n, err := store.Count(ctx, "user1")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected blank text to be skipped, store has %d memories", n)
	}
}

func TestSimpleManager_DisabledConfig(t *testing.T) {
	ctx := context.Background()
	manager, store := newManager(t, &memory.Config{Enabled: false})

	if err := manager.Record(ctx, "user1", "test"); err != nil {
		t.Fatalf("Record should not error when disabled: %v", err)
	}

	formatted, err := manager.Retrieve(ctx, "user1", "test query")
	if err != nil {
		t.Fatalf("Retrieve should not error when disabled: %v", err)
	}
	if formatted != "" {
		t.Error("Expected empty result when memory is disabled")
	}

	if n, _ := store.Count(ctx, "user1"); n != 0 {
		t.Errorf("Expected nothing stored when disabled, got %d", n)
	}
}

func TestSimpleManager_MinSimilarity(t *testing.T) {
	ctx := context.Background()
	manager, _ := newManager(t, &memory.Config{
		Enabled:       true,
		MinSimilarity: 0.99,
		MaxResults:    10,
	})

	if err := manager.Record(ctx, "user1", "deploys happen on tuesdays"); err != nil {
		t.Fatalf("Failed to record: %v", err)
	}

	// Hash embeddings of different text are nearly orthogonal.
	formatted, err := manager.Retrieve(ctx, "user1", "something unrelated")
	if err != nil {
		t.Fatalf("Failed to retrieve: %v", err)
	}
	if formatted != "" {
		t.Errorf("Expected threshold to filter unrelated memory, got %q", formatted)
	}

	formatted, err = manager.Retrieve(ctx, "user1", "deploys happen on tuesdays")
	if err != nil {
		t.Fatalf("Failed to retrieve: %v", err)
	}
	if !strings.Contains(formatted, "tuesdays") {
		t.Errorf("Expected exact match above threshold, got %q", formatted)
	}
}

func TestSimpleManager_MaxResults(t *testing.T) {
	ctx := context.Background()
	manager, _ := newManager(t, &memory.Config{Enabled: true, MaxResults: 2})

	for _, text := range []string{"one", "two", "three", "four"} {
		if err := manager.Record(ctx, "user1", "memory "+text); err != nil {
			t.Fatalf("Failed to record: %v", err)
		}
	}

	formatted, err := manager.Retrieve(ctx, "user1", "memory")
	if err != nil {
		t.Fatalf("Failed to retrieve: %v", err)
	}
	if got := strings.Count(formatted, "memory "); got != 2 {
		t.Errorf("Expected 2 memories, got %d in %q", got, formatted)
	}
}

func TestSimpleManager_EmbedError(t *testing.T) {
	store, err := chromem.New(chromem.Options{})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	boom := errors.New("embedder offline")
	manager := memory.NewSimpleManager(store, &failingEmbedder{err: boom}, nil)

	if err := manager.Record(context.Background(), "user1", "text"); !errors.Is(err, boom) {
		t.Errorf("Expected embed error to be wrapped, got %v", err)
	}
	if _, err := manager.Retrieve(context.Background(), "user1", "text"); !errors.Is(err, boom) {
		t.Errorf("Expected embed error to be wrapped, got %v", err)
	}
}

func TestNoteMemory_Format(t *testing.T) {
	note := memory.NewNoteMemory("user1", strings.Repeat("x", 50))

	out := note.Format(memory.FormatContext{MaxLength: 10})
	if !strings.HasSuffix(out, "xxxxxxx...") {
		t.Errorf("Expected truncated body, got %q", out)
	}
	if !strings.HasPrefix(out, "[") {
		t.Errorf("Expected date prefix, got %q", out)
	}
}
