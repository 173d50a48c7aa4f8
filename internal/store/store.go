// Package store persists users and streams them back row by row.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/oremus-labs/ol-jsonl/internal/users"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store wraps the SQL database holding users.
type Store struct {
	db     *sql.DB
	driver string
}

// Open initializes the datastore using the supplied DSN/file path and driver.
func Open(dsn string, driver string) (*Store, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("datastore DSN is required")
	}

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create datastore directory: %w", err)
		}
		conn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dsn)
		db, err = sql.Open("sqlite", conn)
	case DriverPostgres:
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported datastore driver: %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s datastore: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	stmt := `CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL
	);`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("schema apply failed: %w", err)
	}
	return nil
}

// Close shuts down the datastore.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var (
		b strings.Builder
		n int
	)
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Upsert inserts u or renames the existing user with the same ID.
func (s *Store) Upsert(ctx context.Context, u users.User) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO users (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`), int64(u.ID), u.Name)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", u.ID, err)
	}
	return nil
}

// Count returns the number of stored users.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// Seed inserts seed when the table is empty and reports how many rows it wrote.
func (s *Store) Seed(ctx context.Context, seed []users.User) (int, error) {
	n, err := s.Count(ctx)
	if err != nil || n > 0 {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	for _, u := range seed {
		if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO users (id, name) VALUES (?, ?)`), int64(u.ID), u.Name); err != nil {
			return 0, fmt.Errorf("seed user %d: %w", u.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(seed), nil
}

// Users streams users ordered by ID. Rows are read one at a time and the
// result set is closed as soon as the consumer stops.
func (s *Store) Users(ctx context.Context) iter.Seq2[users.User, error] {
	return func(yield func(users.User, error) bool) {
		rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM users ORDER BY id`)
		if err != nil {
			yield(users.User{}, fmt.Errorf("query users: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id   int64
				name string
			)
			if err := rows.Scan(&id, &name); err != nil {
				yield(users.User{}, fmt.Errorf("scan user: %w", err))
				return
			}
			if id < 0 || id > math.MaxUint32 {
				yield(users.User{}, fmt.Errorf("scan user: id %d out of range", id))
				return
			}
			if !yield(users.User{ID: uint32(id), Name: name}, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(users.User{}, err)
		}
	}
}
