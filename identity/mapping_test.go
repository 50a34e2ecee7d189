package identity

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory-gateway/core"
)

func newSQLiteMapping(t *testing.T) *SQLiteMapping {
	t.Helper()
	m, err := NewSQLiteMapping(filepath.Join(t.TempDir(), "mapping.db"))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func newRedisMapping(t *testing.T) (*RedisMapping, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	m, err := NewRedisMapping(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m, mr
}

func TestMappings(t *testing.T) {
	redisMapping, _ := newRedisMapping(t)
	mappings := map[string]Mapping{
		"sqlite": newSQLiteMapping(t),
		"redis":  redisMapping,
	}

	for name, m := range mappings {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
			first := core.User{ID: "user-1", Name: "acme/widgets", CreatedAt: created}
			second := core.User{ID: "user-2", Name: "acme/widgets", CreatedAt: created}

			_, ok, err := m.Lookup(ctx, "acme/widgets")
			require.NoError(t, err)
			assert.False(t, ok)

			saved, err := m.Save(ctx, "acme/widgets", first)
			require.NoError(t, err)
			assert.Equal(t, "user-1", saved.ID)

			saved, err = m.Save(ctx, "acme/widgets", second)
			require.NoError(t, err)
			assert.Equal(t, "user-1", saved.ID, "a losing save reports the stored user")

			got, ok, err := m.Lookup(ctx, "acme/widgets")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "user-1", got.ID, "first save wins")
			assert.Equal(t, "acme/widgets", got.Name)
			assert.True(t, created.Equal(got.CreatedAt))

			_, ok, err = m.Lookup(ctx, "Acme/Widgets")
			require.NoError(t, err)
			assert.False(t, ok, "lookups are case-sensitive")

			require.NoError(t, m.Delete(ctx, "acme/widgets"))
			_, ok, err = m.Lookup(ctx, "acme/widgets")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRedisMapping_KeyPrefix(t *testing.T) {
	m, mr := newRedisMapping(t)

	_, err := m.Save(context.Background(), "acme/widgets", core.User{ID: "user-1", Name: "acme/widgets"})
	require.NoError(t, err)
	assert.True(t, mr.Exists(DefaultRedisPrefix+"acme/widgets"))
}

func TestNewRedisMapping_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisMapping(context.Background(), "redis://"+addr)
	assert.Error(t, err)
}

func TestResolve_RedisMappingReadFailureFallsThrough(t *testing.T) {
	ctx := context.Background()
	m, mr := newRedisMapping(t)
	require.NoError(t, mr.Set(DefaultRedisPrefix+"acme/widgets", "not json"))

	dir := newCountingDirectory()
	u, err := NewResolver(dir, WithMapping(m)).Resolve(ctx, "acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, "acme/widgets", u.Name)
	assert.EqualValues(t, 1, dir.lists.Load())
}
