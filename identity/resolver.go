// Package identity maps repository identifiers to memory-engine users.
//
// A Resolver looks a repository up in three places, cheapest first: an
// in-process cache, an optional durable Mapping, and finally the engine's user
// directory, creating the user there when no user carries the repository's
// name. Concurrent resolves of one repository share a single directory lookup,
// so a process never creates two users for the same repository.
package identity

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"

	"github.com/becomeliminal/nim-memory-gateway/core"
	"github.com/becomeliminal/nim-memory-gateway/engine"
)

// Outcome describes where a resolve found its user.
type Outcome string

const (
	OutcomeCached  Outcome = "cached"  // in-process cache hit
	OutcomeMapped  Outcome = "mapped"  // durable mapping hit
	OutcomeFound   Outcome = "found"   // existing engine user with a matching name
	OutcomeCreated Outcome = "created" // new engine user
)

// Observer is notified after every successful resolve.
type Observer func(repo string, user core.User, outcome Outcome)

// Resolver turns repository identifiers into engine users.
type Resolver struct {
	directory engine.Directory
	cache     *ristretto.Cache
	mapping   Mapping
	observer  Observer
	timeout   time.Duration
	group     singleflight.Group
}

// DefaultTimeout bounds one directory lookup shared by concurrent resolves.
const DefaultTimeout = 30 * time.Second

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache enables the in-process cache.
func WithCache(cache *ristretto.Cache) Option {
	return func(r *Resolver) {
		r.cache = cache
	}
}

// WithMapping persists repo to user assignments across restarts.
func WithMapping(m Mapping) Option {
	return func(r *Resolver) {
		r.mapping = m
	}
}

// WithObserver registers fn to receive resolve outcomes.
func WithObserver(fn Observer) Option {
	return func(r *Resolver) {
		r.observer = fn
	}
}

// WithTimeout bounds the shared directory lookup.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewResolver creates a resolver backed by directory.
func NewResolver(directory engine.Directory, opts ...Option) *Resolver {
	r := &Resolver{directory: directory, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewCache builds a ristretto cache sized for roughly maxEntries repositories.
func NewCache(maxEntries int64) (*ristretto.Cache, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create identity cache: %w", err)
	}
	return cache, nil
}

type resolution struct {
	user    core.User
	outcome Outcome
}

// Resolve returns the user for repo, creating it in the engine if needed.
// Errors from the engine are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, repo string) (core.User, error) {
	if repo == "" {
		return core.User{}, fmt.Errorf("%w: repo is required", core.ErrInvalidRequest)
	}

	if u, ok := r.cached(repo); ok {
		r.notify(repo, u, OutcomeCached)
		return u, nil
	}

	// The shared lookup outlives any one caller; each caller stops waiting
	// when its own ctx ends.
	ch := r.group.DoChan(repo, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.resolveSlow(shared, repo)
	})

	select {
	case <-ctx.Done():
		return core.User{}, ctx.Err()
	case out := <-ch:
		if out.Err != nil {
			return core.User{}, out.Err
		}
		res := out.Val.(resolution)
		r.notify(repo, res.user, res.outcome)
		return res.user, nil
	}
}

// Forget drops repo from the cache and the mapping so the next Resolve asks
// the directory again. The engine user is kept.
func (r *Resolver) Forget(ctx context.Context, repo string) error {
	if r.cache != nil {
		r.cache.Del(repo)
	}
	if r.mapping == nil {
		return nil
	}
	return r.mapping.Delete(ctx, repo)
}

func (r *Resolver) resolveSlow(ctx context.Context, repo string) (resolution, error) {
	if u, ok := r.cached(repo); ok {
		return resolution{u, OutcomeCached}, nil
	}

	if r.mapping != nil {
		u, ok, err := r.mapping.Lookup(ctx, repo)
		switch {
		case err != nil:
			log.Printf("[IDENTITY] Mapping lookup failed for repo=%q: %v", repo, err)
		case ok:
			r.remember(repo, u)
			return resolution{u, OutcomeMapped}, nil
		}
	}

	users, err := r.directory.ListUsers(ctx)
	if err != nil {
		return resolution{}, err
	}

	outcome := OutcomeFound
	u, found := core.FindByName(users, repo)
	if !found {
		u, err = r.directory.CreateUser(ctx, repo)
		if err != nil {
			return resolution{}, err
		}
		outcome = OutcomeCreated
		log.Printf("[IDENTITY] Created user id=%s for repo=%q", u.ID, repo)
	}

	if r.mapping != nil {
		saved, err := r.mapping.Save(ctx, repo, u)
		switch {
		case err != nil:
			log.Printf("[IDENTITY] Mapping save failed for repo=%q: %v", repo, err)
		case saved.ID != u.ID:
			log.Printf("[IDENTITY] repo=%q already mapped to user=%s, dropping user=%s", repo, saved.ID, u.ID)
			u, outcome = saved, OutcomeMapped
		}
	}
	r.remember(repo, u)
	return resolution{u, outcome}, nil
}

func (r *Resolver) cached(repo string) (core.User, bool) {
	if r.cache == nil {
		return core.User{}, false
	}
	v, ok := r.cache.Get(repo)
	if !ok {
		return core.User{}, false
	}
	u, ok := v.(core.User)
	return u, ok
}

func (r *Resolver) remember(repo string, u core.User) {
	if r.cache == nil {
		return
	}
	r.cache.Set(repo, u, 1)
	r.cache.Wait()
}

func (r *Resolver) notify(repo string, u core.User, outcome Outcome) {
	if r.observer != nil {
		r.observer(repo, u, outcome)
	}
}
