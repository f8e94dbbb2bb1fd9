package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nao1215/passivedns/internal/model"
	"github.com/nao1215/passivedns/internal/state"
	"github.com/nao1215/passivedns/internal/state/statetest"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) (*StateDB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "state.db")
	db, err := Open(t.Context(), path, DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	return db, path
}

func TestStateDBQueue(t *testing.T) {
	t.Parallel()

	statetest.Run(t, func(t *testing.T) state.Queue {
		t.Helper()
		db, _ := setupTestDB(t)
		return db
	})
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "newdir", "subdir", "state.db")
		db, err := Open(t.Context(), path, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != path {
			t.Errorf("Path() = %q, want %q", db.Path(), path)
		}
	})

	t.Run("CreateIfNotExists=false fails for missing file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "missing.db")
		_, err := Open(t.Context(), path, Options{CreateIfNotExists: false})
		if err == nil {
			t.Fatal("expected error for missing database")
		}
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			t.Error("database file should not have been created")
		}
	})

	t.Run("CreateIfNotExists=false opens existing file", func(t *testing.T) {
		t.Parallel()

		db, path := setupTestDB(t)
		if err := db.Close(); err != nil {
			t.Fatalf("Close() error: %v", err)
		}

		db2, err := Open(t.Context(), path, Options{CreateIfNotExists: false})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db2.Close()
	})
}

// TestResume interrupts a crawl after the first hop and picks it up again
// from a fresh handle on the same file.
func TestResume(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	db, path := setupTestDB(t)

	if _, err := db.AddQueryAt(ctx, "example.org", model.StatusPending, 0); err != nil {
		t.Fatalf("AddQueryAt() error: %v", err)
	}
	for query, err := range db.Pending(ctx, 2) {
		if err != nil {
			t.Fatalf("Pending() error: %v", err)
		}
		if query != "example.org" {
			t.Fatalf("claimed %q, want example.org", query)
		}
		r := model.Result{Source: "test", Query: "example.org", Answer: "192.0.2.1", RRType: "A"}
		if err := db.AddResult(ctx, r); err != nil {
			t.Fatalf("AddResult() error: %v", err)
		}
		break
	}
	before, err := db.Level(ctx)
	if err != nil {
		t.Fatalf("Level() error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	resumed, err := Open(ctx, path, DefaultOptions())
	if err != nil {
		t.Fatalf("failed to reopen database: %v", err)
	}
	defer resumed.Close()

	level, err := resumed.Level(ctx)
	if err != nil {
		t.Fatalf("Level() error: %v", err)
	}
	if level != before || level != 1 {
		t.Errorf("Level() = %d, want %d before and after reopen", level, before)
	}

	added, err := resumed.AddQueryAt(ctx, "example.org", model.StatusPending, 0)
	if err != nil {
		t.Fatalf("AddQueryAt() error: %v", err)
	}
	if added {
		t.Error("reopening must not re-insert the seed")
	}

	if got := statetest.Results(t, resumed); len(got) != 1 || got[0].Answer != "192.0.2.1" {
		t.Errorf("results after reopen = %+v", got)
	}

	items := statetest.Items(t, resumed)
	if items["example.org"].Status != model.StatusQueried {
		t.Errorf("seed status = %s, want queried", items["example.org"].Status)
	}
	if it := items["192.0.2.1"]; it.Status != model.StatusPending || it.Depth != 1 {
		t.Errorf("answer item = %+v, want pending at depth 1", it)
	}

	// New discoveries continue below the resumed level.
	if _, err := resumed.AddQuery(ctx, "late.example", model.StatusPending); err != nil {
		t.Fatalf("AddQuery() error: %v", err)
	}
	if got := statetest.Items(t, resumed)["late.example"].Depth; got != 2 {
		t.Errorf("late.example depth = %d, want 2", got)
	}

	claimed := statetest.Claim(t, resumed, 2)
	if len(claimed) != 1 || claimed[0] != "192.0.2.1" {
		t.Errorf("claimed after resume = %v, want [192.0.2.1]", claimed)
	}
}

func TestResultsPaging(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	db, _ := setupTestDB(t)
	defer db.Close()

	const n = resultsPageSize + 7
	for i := range n {
		r := model.Result{Source: "test", Query: "example.org", Answer: "192.0.2.1", RRType: "A", Count: model.IntPtr(i)}
		if err := db.AddResult(ctx, r); err != nil {
			t.Fatalf("AddResult() error: %v", err)
		}
	}

	got := statetest.Results(t, db)
	if len(got) != n {
		t.Fatalf("len(results) = %d, want %d", len(got), n)
	}
	for i, r := range got {
		if r.Count == nil || *r.Count != i {
			t.Fatalf("results[%d].Count = %v, want %d", i, r.Count, i)
		}
	}
}

func TestPendingCancelled(t *testing.T) {
	t.Parallel()

	db, _ := setupTestDB(t)
	defer db.Close()

	if _, err := db.AddQueryAt(t.Context(), "example.org", model.StatusPending, 0); err != nil {
		t.Fatalf("AddQueryAt() error: %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	var gotErr error
	for _, err := range db.Pending(ctx, 1) {
		gotErr = err
	}
	if !errors.Is(gotErr, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", gotErr)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		zero  bool
	}{
		{input: "2024-01-02T03:04:05.123456789Z"},
		{input: "2024-01-02T03:04:05Z"},
		{input: "2024-01-02T03:04:05"},
		{input: "2024-01-02 03:04:05"},
		{input: "2024-01-02 03:04:05.123"},
		{input: "not a time", zero: true},
	}
	for _, tt := range tests {
		got := parseTimestamp(tt.input)
		if got.IsZero() != tt.zero {
			t.Errorf("parseTimestamp(%q) = %v, zero=%v", tt.input, got, tt.zero)
		}
	}
}
