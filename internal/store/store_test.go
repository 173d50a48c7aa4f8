package store

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"reflect"
	"testing"

	"github.com/oremus-labs/ol-jsonl/internal/users"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "state", "users.db")
	s, err := Open(dsn, "sqlite")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestStoreSeedAndStream(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	n, err := s.Seed(ctx, users.Defaults)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if n != len(users.Defaults) {
		t.Fatalf("expected %d seeded users got %d", len(users.Defaults), n)
	}
	if n, err := s.Seed(ctx, users.Defaults); err != nil || n != 0 {
		t.Fatalf("second Seed should be a no-op, got %d %v", n, err)
	}

	if err := s.Upsert(ctx, users.User{ID: 2, Name: "Bobby"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Upsert(ctx, users.User{ID: 5, Name: "Eve"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	var got []users.User
	for u, err := range s.Users(ctx) {
		if err != nil {
			t.Fatalf("Users: %v", err)
		}
		got = append(got, u)
	}
	want := []users.User{{ID: 1, Name: "Alice"}, {ID: 2, Name: "Bobby"}, {ID: 3, Name: "Charlie"}, {ID: 4, Name: "David"}, {ID: 5, Name: "Eve"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected users %+v", got)
	}

	count, err := s.Count(ctx)
	if err != nil || count != 5 {
		t.Fatalf("Count = %d, %v", count, err)
	}
}

func TestStoreUsersEarlyStopReleasesRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	if _, err := s.Seed(ctx, users.Defaults); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	s.db.SetMaxOpenConns(1)

	for range 3 {
		seen := 0
		for _, err := range s.Users(ctx) {
			if err != nil {
				t.Fatalf("Users: %v", err)
			}
			seen++
			if seen == 1 {
				break
			}
		}
	}

	// With a single connection this only succeeds if every early stop closed its rows.
	if _, err := s.Count(ctx); err != nil {
		t.Fatalf("Count after early stops: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open("x", "bolt"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
	if _, err := Open(" ", "sqlite"); err == nil {
		t.Fatalf("expected DSN required error")
	}
}

func TestRebindForPostgres(t *testing.T) {
	t.Parallel()

	s := &Store{driver: DriverPostgres}
	got := s.rebind(`INSERT INTO users (id, name) VALUES (?, ?)`)
	if got != `INSERT INTO users (id, name) VALUES ($1, $2)` {
		t.Fatalf("unexpected query %q", got)
	}
	s.driver = DriverSQLite
	if q := s.rebind("SELECT ?"); q != "SELECT ?" {
		t.Fatalf("sqlite queries must be left untouched: %q", q)
	}
}

func TestStoreUsersRejectsOutOfRangeIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	if err := s.Upsert(ctx, users.User{ID: math.MaxUint32, Name: "Max"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// Written outside Upsert, as another tool sharing the database could.
	if _, err := s.db.ExecContext(ctx, `INSERT INTO users (id, name) VALUES (?, ?)`, int64(math.MaxUint32)+1, "Overflow"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var (
		got     []users.User
		lastErr error
	)
	for u, err := range s.Users(ctx) {
		if err != nil {
			lastErr = err
			continue
		}
		got = append(got, u)
	}
	if len(got) != 1 || got[0].ID != math.MaxUint32 {
		t.Fatalf("expected the in-range user only, got %+v", got)
	}
	if lastErr == nil || !strings.Contains(lastErr.Error(), "out of range") {
		t.Fatalf("expected an out of range error, got %v", lastErr)
	}
}
