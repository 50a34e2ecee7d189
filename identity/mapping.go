package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	_ "modernc.org/sqlite"

	"github.com/becomeliminal/nim-memory-gateway/core"
)

// Mapping stores which engine user a repository resolved to.
type Mapping interface {
	// Lookup reports the user saved for repo. ok is false when there is none.
	Lookup(ctx context.Context, repo string) (user core.User, ok bool, err error)
	// Save records user for repo unless repo is already mapped, and returns
	// the user the mapping holds afterwards.
	Save(ctx context.Context, repo string, user core.User) (core.User, error)
	Delete(ctx context.Context, repo string) error
	Close() error
}

// SQLiteMapping keeps the mapping in a SQLite database.
type SQLiteMapping struct {
	db *sql.DB
}

// NewSQLiteMapping opens (or creates) the mapping database at path.
func NewSQLiteMapping(path string) (*SQLiteMapping, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open mapping db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS repo_users (
		repo            TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		user_name       TEXT NOT NULL,
		user_created_at TEXT NOT NULL,
		mapped_at       TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create repo_users table: %w", err)
	}

	return &SQLiteMapping{db: db}, nil
}

// Lookup implements Mapping.
func (m *SQLiteMapping) Lookup(ctx context.Context, repo string) (core.User, bool, error) {
	var u core.User
	var createdAt string
	err := m.db.QueryRowContext(ctx,
		`SELECT user_id, user_name, user_created_at FROM repo_users WHERE repo = ?`, repo,
	).Scan(&u.ID, &u.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, false, nil
	}
	if err != nil {
		return core.User{}, false, fmt.Errorf("lookup repo %q: %w", repo, err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return u, true, nil
}

// Save implements Mapping. The first user saved for a repo wins.
func (m *SQLiteMapping) Save(ctx context.Context, repo string, u core.User) (core.User, error) {
	res, err := m.db.ExecContext(ctx,
		`INSERT INTO repo_users (repo, user_id, user_name, user_created_at, mapped_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(repo) DO NOTHING`,
		repo, u.ID, u.Name, u.CreatedAt.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return core.User{}, fmt.Errorf("save repo %q: %w", repo, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return u, nil
	}
	return storedUser(ctx, m, repo)
}

// Delete implements Mapping.
func (m *SQLiteMapping) Delete(ctx context.Context, repo string) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM repo_users WHERE repo = ?`, repo); err != nil {
		return fmt.Errorf("delete repo %q: %w", repo, err)
	}
	return nil
}

// Close closes the database.
func (m *SQLiteMapping) Close() error {
	return m.db.Close()
}

// RedisMapping keeps the mapping in Redis, shared by every gateway pointed at
// the same server.
type RedisMapping struct {
	client *redis.Client
	prefix string
}

// DefaultRedisPrefix namespaces mapping keys.
const DefaultRedisPrefix = "mirix:repo:"

// NewRedisMapping connects to the Redis server at url (redis://host:port/db)
// and verifies it responds.
func NewRedisMapping(ctx context.Context, url string) (*RedisMapping, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisMappingWithClient(client, DefaultRedisPrefix), nil
}

// NewRedisMappingWithClient wraps an existing client.
func NewRedisMappingWithClient(client *redis.Client, prefix string) *RedisMapping {
	return &RedisMapping{client: client, prefix: prefix}
}

// Lookup implements Mapping.
func (m *RedisMapping) Lookup(ctx context.Context, repo string) (core.User, bool, error) {
	data, err := m.client.Get(ctx, m.prefix+repo).Bytes()
	if err == redis.Nil {
		return core.User{}, false, nil
	}
	if err != nil {
		return core.User{}, false, fmt.Errorf("lookup repo %q: %w", repo, err)
	}

	var u core.User
	if err := json.Unmarshal(data, &u); err != nil {
		return core.User{}, false, fmt.Errorf("decode user for repo %q: %w", repo, err)
	}
	return u, true, nil
}

// Save implements Mapping. SETNX keeps the first user saved for a repo.
func (m *RedisMapping) Save(ctx context.Context, repo string, u core.User) (core.User, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return core.User{}, fmt.Errorf("encode user: %w", err)
	}
	set, err := m.client.SetNX(ctx, m.prefix+repo, data, 0).Result()
	if err != nil {
		return core.User{}, fmt.Errorf("save repo %q: %w", repo, err)
	}
	if set {
		return u, nil
	}
	return storedUser(ctx, m, repo)
}

// Delete implements Mapping.
func (m *RedisMapping) Delete(ctx context.Context, repo string) error {
	if err := m.client.Del(ctx, m.prefix+repo).Err(); err != nil {
		return fmt.Errorf("delete repo %q: %w", repo, err)
	}
	return nil
}

// Close closes the client.
func (m *RedisMapping) Close() error {
	return m.client.Close()
}

// storedUser reads back the user that won a lost Save.
func storedUser(ctx context.Context, m Mapping, repo string) (core.User, error) {
	u, ok, err := m.Lookup(ctx, repo)
	if err != nil {
		return core.User{}, err
	}
	if !ok {
		return core.User{}, fmt.Errorf("repo %q was unmapped while saving", repo)
	}
	return u, nil
}
