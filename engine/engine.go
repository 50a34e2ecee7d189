// Package engine defines the memory engine the gateway delegates to, and a
// local implementation built on the memory package and Claude.
package engine

import (
	"context"

	"github.com/becomeliminal/nim-memory-gateway/core"
)

// Directory is the user-management subset of an Engine.
// The identity resolver only needs these two calls.
type Directory interface {
	// ListUsers returns every user the engine knows.
	ListUsers(ctx context.Context) ([]core.User, error)

	// CreateUser creates a user with the given name. Engines are not required
	// to reject duplicate names.
	CreateUser(ctx context.Context, name string) (core.User, error)
}

// Engine is the memory engine capability surface.
type Engine interface {
	Directory

	// AddMemory ingests text as a memory of the user.
	AddMemory(ctx context.Context, userID string, text string) error

	// ExtractMemoryForSystemPrompt returns the memory context relevant to the
	// conversation, or "" when there is none.
	ExtractMemoryForSystemPrompt(ctx context.Context, userID string, conversation string) (string, error)
}
