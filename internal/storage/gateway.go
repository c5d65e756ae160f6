package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"caja/internal/core"

	_ "modernc.org/sqlite"
)

// Gateway is the sole owner of the database connection. Every operation,
// read or write, runs inside one critical section guarded by mu, so
// composite read-then-write sequences never interleave.
type Gateway struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
}

// Open creates the database directory if needed, connects and migrates.
func Open(dbPath string) (*Gateway, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Gateway{db: db, path: dbPath}, nil
}

// Path returns the database file location.
func (g *Gateway) Path() string {
	return g.path
}

// View runs fn against the store while holding the guard. It uses the raw
// connection, so statements that cannot run in a transaction (VACUUM) go here.
func (g *Gateway) View(ctx context.Context, op string, fn func(context.Context, *Queries) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return core.StorageError(op, errors.New("gateway closed"))
	}
	// Once the guard is held the call runs to completion.
	ctx = context.WithoutCancel(ctx)
	return classify(op, fn(ctx, New(g.db)))
}

// Update runs fn inside a SQL transaction while holding the guard. Any error
// returned by fn rolls back every write it made.
func (g *Gateway) Update(ctx context.Context, op string, fn func(context.Context, *Queries) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return core.StorageError(op, errors.New("gateway closed"))
	}
	ctx = context.WithoutCancel(ctx)

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return core.StorageError(op, fmt.Errorf("begin: %w", err))
	}
	if err := fn(ctx, New(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return classify(op, err)
	}
	if err := tx.Commit(); err != nil {
		return core.StorageError(op, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Close releases the connection. Later calls fail with a storage error.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	return g.db.Close()
}

// classify passes ledger errors through and turns anything else into a
// storage error.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *core.Error
	if errors.As(err, &ce) {
		return err
	}
	return core.StorageError(op, err)
}
