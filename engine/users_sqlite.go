package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/becomeliminal/nim-memory-gateway/core"
)

// SQLiteUsers provides SQLite-backed storage for engine users.
type SQLiteUsers struct {
	db *sql.DB
}

// NewSQLiteUsers opens (or creates) a SQLite database and initializes the schema.
func NewSQLiteUsers(path string) (*SQLiteUsers, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer keeps SQLITE_BUSY away under concurrent creates.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	createSQL := `CREATE TABLE IF NOT EXISTS users (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`
	if _, err := db.Exec(createSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteUsers{db: db}, nil
}

// List returns all users in creation order.
func (s *SQLiteUsers) List(ctx context.Context) ([]core.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM users ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create inserts a new user. Duplicate names are allowed.
func (s *SQLiteUsers) Create(ctx context.Context, name string) (core.User, error) {
	u := newUser(name)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)`,
		u.ID, u.Name, u.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Get returns the user with the given ID or core.ErrUserNotFound.
func (s *SQLiteUsers) Get(ctx context.Context, id string) (core.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	return u, err
}

// Close closes the database connection.
func (s *SQLiteUsers) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (core.User, error) {
	var u core.User
	var createdAt string
	if err := row.Scan(&u.ID, &u.Name, &createdAt); err != nil {
		return core.User{}, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return u, nil
}
