// Command gateway serves repository-scoped memory over HTTP, WebSocket and
// (optionally) gRPC.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/becomeliminal/nim-memory-gateway/config"
	"github.com/becomeliminal/nim-memory-gateway/core"
	"github.com/becomeliminal/nim-memory-gateway/engine"
	"github.com/becomeliminal/nim-memory-gateway/gateway"
	"github.com/becomeliminal/nim-memory-gateway/identity"
	"github.com/becomeliminal/nim-memory-gateway/memory"
	"github.com/becomeliminal/nim-memory-gateway/memory/store/chromem"
	"github.com/becomeliminal/nim-memory-gateway/server"
)

func main() {
	// ============================================================================
	// CONFIGURATION
	// ============================================================================
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, core.ErrMissingConfiguration) {
			log.Fatalf("❌ %v", err)
		}
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			log.Fatalf("❌ Failed to create data dir: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ============================================================================
	// MEMORY ENGINE SETUP
	// ============================================================================
	embedder, closeEmbedder, err := newEmbedder(cfg.Embedder)
	if err != nil {
		log.Fatalf("❌ Failed to create %s embedder: %v", cfg.Embedder.Provider, err)
	}
	defer closeEmbedder()

	store, err := chromem.New(chromem.Options{Path: dataPath(cfg, "vectors"), Compress: true})
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	memoryMgr := memory.NewSimpleManager(store, embedder, &memory.Config{
		Enabled:         true,
		MinSimilarity:   cfg.Memory.MinSimilarity,
		MaxResults:      cfg.Memory.MaxResults,
		MaxContextChars: memory.DefaultConfig.MaxContextChars,
	})
	log.Printf("✅ Memory configured (chromem-go + %s embedder)", cfg.Embedder.Provider)

	var users engine.UserStore = engine.NewMemoryUsers()
	if cfg.DataDir != "" {
		users, err = engine.NewSQLiteUsers(dataPath(cfg, "users.db"))
		if err != nil {
			log.Fatal(err)
		}
	}

	condenser := engine.NewClaudeCondenser(cfg.AnthropicAPIKey, []engine.ClaudeOption{
		engine.WithModel(cfg.AnthropicModel),
		engine.WithMaxTokens(cfg.AnthropicMaxTokens),
	})

	eng := engine.NewLocal(users, memoryMgr, engine.WithCondenser(condenser))
	defer eng.Close()
	log.Println("✅ Local memory engine ready (Claude condenser)")

	// ============================================================================
	// IDENTITY RESOLUTION
	// ============================================================================
	cache, err := identity.NewCache(cfg.CacheSize)
	if err != nil {
		log.Fatal(err)
	}
	defer cache.Close()

	resolverOpts := []identity.Option{
		identity.WithCache(cache),
		identity.WithObserver(server.ObserveResolution),
	}

	mapping, err := newMapping(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Failed to open identity mapping: %v", err)
	}
	if mapping != nil {
		defer mapping.Close()
		resolverOpts = append(resolverOpts, identity.WithMapping(mapping))
	}

	gw := gateway.New(identity.NewResolver(eng, resolverOpts...), eng)

	// ============================================================================
	// START SERVER
	// ============================================================================
	srv, err := server.New(server.Config{
		Gateway:         gw,
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	if err != nil {
		log.Fatal(err)
	}

	grpcAddr := ""
	if cfg.GRPCPort != "" {
		grpcAddr = ":" + cfg.GRPCPort
	}

	log.Println("=============================================================")
	log.Println("  MIRIX Memory Gateway Running")
	log.Println("=============================================================")
	log.Printf("Add:           POST http://localhost:%s/mirix/add", cfg.Port)
	log.Printf("System prompt: POST http://localhost:%s/mirix/system_prompt", cfg.Port)
	log.Printf("WebSocket:     ws://localhost:%s/ws", cfg.Port)
	log.Printf("Health:        http://localhost:%s/health", cfg.Port)
	if grpcAddr != "" {
		log.Printf("gRPC:          localhost:%s (%s)", cfg.GRPCPort, server.GRPCServiceName)
	}
	log.Println("=============================================================")

	if err := srv.Serve(ctx, ":"+cfg.Port, grpcAddr); err != nil {
		log.Fatal(err)
	}
	log.Println("Gateway stopped")
}

// dataPath returns name under the data dir, or "" when running in memory.
func dataPath(cfg *config.Config, name string) string {
	if cfg.DataDir == "" {
		return ""
	}
	return filepath.Join(cfg.DataDir, name)
}

// newMapping opens the durable identity mapping: Redis when configured,
// otherwise SQLite under the data dir, otherwise none.
func newMapping(ctx context.Context, cfg *config.Config) (identity.Mapping, error) {
	switch {
	case cfg.RedisURL != "":
		m, err := identity.NewRedisMapping(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		log.Println("✅ Identity mapping in Redis")
		return m, nil
	case cfg.DataDir != "":
		m, err := identity.NewSQLiteMapping(dataPath(cfg, "mapping.db"))
		if err != nil {
			return nil, err
		}
		log.Println("✅ Identity mapping in SQLite")
		return m, nil
	default:
		return nil, nil
	}
}
