package chromem_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory-gateway/memory"
	"github.com/becomeliminal/nim-memory-gateway/memory/embedder/hash"
	"github.com/becomeliminal/nim-memory-gateway/memory/store/chromem"
)

func newNote(t *testing.T, owner, body string) *memory.NoteMemory {
	t.Helper()
	mem := memory.NewNoteMemory(owner, body)
	emb, err := hash.New().Embed(context.Background(), body)
	require.NoError(t, err)
	mem.SetEmbedding(emb)
	return mem
}

func TestChromemStore_StoreAndQuery(t *testing.T) {
	ctx := context.Background()
	store, err := chromem.New(chromem.Options{})
	require.NoError(t, err)
	defer store.Close()

	note := newNote(t, "user-1", "fixed bug #12")
	require.NoError(t, store.Store(ctx, note))

	matches, err := store.Query(ctx, "user-1", note.Embedding(), 10)
	require.NoError(t, err)
	require.Len(t, matches, 1, "limit is clamped to the collection size")

	got := matches[0]
	assert.Equal(t, note.ID(), got.Memory.ID())
	assert.Equal(t, "user-1", got.Memory.OwnerID())
	assert.Equal(t, "fixed bug #12", got.Memory.Text())
	assert.InDelta(t, 1.0, got.Similarity, 1e-4, "identical text embeds identically")
}

func TestChromemStore_EmptyCollection(t *testing.T) {
	store, err := chromem.New(chromem.Options{})
	require.NoError(t, err)

	emb, _ := hash.New().Embed(context.Background(), "anything")
	matches, err := store.Query(context.Background(), "nobody", emb, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestChromemStore_OwnerIsolation(t *testing.T) {
	ctx := context.Background()
	store, err := chromem.New(chromem.Options{})
	require.NoError(t, err)

	require.NoError(t, store.Store(ctx, newNote(t, "user-1", "widget sizing uses rem")))
	require.NoError(t, store.Store(ctx, newNote(t, "user-2", "gadgets ship on fridays")))

	n, err := store.Count(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	emb, _ := hash.New().Embed(ctx, "gadgets ship on fridays")
	matches, err := store.Query(ctx, "user-1", emb, 10)
	require.NoError(t, err)
	for _, m := range matches {
		assert.Equal(t, "user-1", m.Memory.OwnerID())
	}
}

func TestChromemStore_GetAndDelete(t *testing.T) {
	ctx := context.Background()
	store, err := chromem.New(chromem.Options{})
	require.NoError(t, err)

	note := newNote(t, "user-1", "release branch is cut on mondays")
	require.NoError(t, store.Store(ctx, note))

	got, err := store.Get(ctx, "user-1", note.ID())
	require.NoError(t, err)
	assert.Equal(t, note.Body, got.Text())
	assert.Equal(t, memory.NoteType, got.Type())
	assert.WithinDuration(t, note.CreatedAt(), got.CreatedAt(), 0)

	require.NoError(t, store.Delete(ctx, "user-1", note.ID()))
	_, err = store.Get(ctx, "user-1", note.ID())
	assert.Error(t, err)
}

func TestChromemStore_RejectsMissingEmbedding(t *testing.T) {
	store, err := chromem.New(chromem.Options{})
	require.NoError(t, err)

	err = store.Store(context.Background(), memory.NewNoteMemory("user-1", "no vector"))
	assert.Error(t, err)
}

func TestChromemStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := chromem.New(chromem.Options{Path: dir})
	require.NoError(t, err)
	note := newNote(t, "user-1", "migrations live in db/migrate")
	require.NoError(t, store.Store(ctx, note))
	require.NoError(t, store.Close())

	reopened, err := chromem.New(chromem.Options{Path: dir})
	require.NoError(t, err)

	got, err := reopened.Get(ctx, "user-1", note.ID())
	require.NoError(t, err)
	assert.Equal(t, "migrations live in db/migrate", got.Text())
}
