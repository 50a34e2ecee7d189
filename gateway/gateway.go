// Package gateway stores and extracts memories for repositories.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/becomeliminal/nim-memory-gateway/core"
	"github.com/becomeliminal/nim-memory-gateway/engine"
)

// Resolver maps a repository identifier to its engine user.
type Resolver interface {
	Resolve(ctx context.Context, repo string) (core.User, error)
	Forget(ctx context.Context, repo string) error
}

// Gateway scopes engine memory calls to the user owning a repository.
type Gateway struct {
	resolver Resolver
	engine   engine.Engine
}

// New creates a gateway.
func New(resolver Resolver, eng engine.Engine) *Gateway {
	return &Gateway{
		resolver: resolver,
		engine:   eng,
	}
}

// Add stores text as a memory of repo's user.
func (g *Gateway) Add(ctx context.Context, repo string, text string) error {
	user, err := g.withUser(ctx, repo, func(user core.User) error {
		return g.engine.AddMemory(ctx, user.ID, text)
	})
	if err != nil {
		log.Printf("[GATEWAY] Add failed for repo=%q user=%s: %v", repo, user.ID, err)
		return err
	}

	log.Printf("[GATEWAY] Added memory for repo=%q user=%s (%d chars)", repo, user.ID, len(text))
	return nil
}

// SystemPrompt returns the memory context of repo's user for conversation.
// It returns "" when the engine has nothing to contribute.
func (g *Gateway) SystemPrompt(ctx context.Context, repo string, conversation string) (string, error) {
	var memoryContext string
	user, err := g.withUser(ctx, repo, func(user core.User) error {
		var err error
		memoryContext, err = g.engine.ExtractMemoryForSystemPrompt(ctx, user.ID, conversation)
		return err
	})
	if err != nil {
		log.Printf("[GATEWAY] System prompt failed for repo=%q user=%s: %v", repo, user.ID, err)
		return "", err
	}

	log.Printf("[GATEWAY] Extracted %d chars of memory context for repo=%q user=%s", len(memoryContext), repo, user.ID)
	return memoryContext, nil
}

// withUser resolves repo and calls fn with its user. When the engine no
// longer knows a remembered user, the repo is forgotten and resolved once
// more against the engine's directory.
func (g *Gateway) withUser(ctx context.Context, repo string, fn func(core.User) error) (core.User, error) {
	user, err := g.resolver.Resolve(ctx, repo)
	if err != nil {
		return core.User{}, err
	}
	err = fn(user)
	if !errors.Is(err, core.ErrUserNotFound) {
		return user, err
	}

	log.Printf("[GATEWAY] Engine has no user=%s for repo=%q, resolving again", user.ID, repo)
	if err := g.resolver.Forget(ctx, repo); err != nil {
		return user, fmt.Errorf("forget stale user for repo %q: %w", repo, err)
	}
	if user, err = g.resolver.Resolve(ctx, repo); err != nil {
		return core.User{}, err
	}
	return user, fn(user)
}
