package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/becomeliminal/nim-memory-gateway/core"
	"github.com/becomeliminal/nim-memory-gateway/memory"
)

// Local is an in-process memory engine: users in a UserStore, memories in a
// memory.Manager, and an optional Condenser that extracts the system-prompt
// context from retrieved memories.
type Local struct {
	users     UserStore
	memory    memory.Manager
	condenser Condenser // Optional: without it, formatted memories are returned as is
}

// Option configures the local engine.
type Option func(*Local)

// WithCondenser sets the condenser used by ExtractMemoryForSystemPrompt.
func WithCondenser(c Condenser) Option {
	return func(l *Local) {
		l.condenser = c
	}
}

// NewLocal creates a local engine.
func NewLocal(users UserStore, mem memory.Manager, opts ...Option) *Local {
	l := &Local{
		users:  users,
		memory: mem,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ListUsers returns all users.
func (l *Local) ListUsers(ctx context.Context) ([]core.User, error) {
	return l.users.List(ctx)
}

// CreateUser creates a user named name.
func (l *Local) CreateUser(ctx context.Context, name string) (core.User, error) {
	u, err := l.users.Create(ctx, name)
	if err != nil {
		return core.User{}, err
	}
	log.Printf("[ENGINE] Created user id=%s name=%q", u.ID, u.Name)
	return u, nil
}

// AddMemory records text for the user.
func (l *Local) AddMemory(ctx context.Context, userID string, text string) error {
	if _, err := l.users.Get(ctx, userID); err != nil {
		return fmt.Errorf("add memory for %s: %w", userID, err)
	}
	return l.memory.Record(ctx, userID, text)
}

// ExtractMemoryForSystemPrompt retrieves the user's memories relevant to the
// conversation and condenses them.
func (l *Local) ExtractMemoryForSystemPrompt(ctx context.Context, userID string, conversation string) (string, error) {
	if _, err := l.users.Get(ctx, userID); err != nil {
		return "", fmt.Errorf("extract memory for %s: %w", userID, err)
	}

	memories, err := l.memory.Retrieve(ctx, userID, conversation)
	if err != nil {
		return "", err
	}
	if memories == "" || l.condenser == nil {
		return memories, nil
	}

	return l.condenser.Condense(ctx, conversation, memories)
}

// Close releases the user store.
func (l *Local) Close() error {
	return l.users.Close()
}

var _ Engine = (*Local)(nil)
