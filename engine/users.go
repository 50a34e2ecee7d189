package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/becomeliminal/nim-memory-gateway/core"
)

// UserStore persists engine users.
type UserStore interface {
	List(ctx context.Context) ([]core.User, error)
	Create(ctx context.Context, name string) (core.User, error)
	Get(ctx context.Context, id string) (core.User, error)
	Close() error
}

// newUser builds a user record with a fresh ID.
func newUser(name string) core.User {
	return core.User{
		ID:        "user-" + uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// MemoryUsers is an in-process UserStore. Users are lost on restart.
type MemoryUsers struct {
	mu    sync.RWMutex
	users []core.User
	byID  map[string]int
}

// NewMemoryUsers creates an empty in-process user store.
func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{byID: make(map[string]int)}
}

// List returns users in creation order.
func (s *MemoryUsers) List(ctx context.Context) ([]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.User, len(s.users))
	copy(out, s.users)
	return out, nil
}

// Create appends a new user. Names are not unique.
func (s *MemoryUsers) Create(ctx context.Context, name string) (core.User, error) {
	u := newUser(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[u.ID] = len(s.users)
	s.users = append(s.users, u)
	return u, nil
}

// Get returns the user with the given ID or core.ErrUserNotFound.
func (s *MemoryUsers) Get(ctx context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return core.User{}, core.ErrUserNotFound
	}
	return s.users[i], nil
}

// Close is a no-op.
func (s *MemoryUsers) Close() error {
	return nil
}
