package history

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo, err := NewSQLiteRepository(db)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	return repo
}

func TestRecordAndRecent(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	changes := []struct{ block, value int }{
		{0, 20},
		{1, 21},
		{0, 0},
	}
	for _, c := range changes {
		if err := repo.RecordRoutingChange(ctx, c.block, c.value, SourceReply); err != nil {
			t.Fatalf("RecordRoutingChange(%d, %d) error = %v", c.block, c.value, err)
		}
	}

	entries, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	// Newest first.
	if entries[0].Block != 0 || entries[0].Value != 0 {
		t.Errorf("entries[0] = block %d value %d, want block 0 value 0", entries[0].Block, entries[0].Value)
	}
	if entries[2].Block != 0 || entries[2].Value != 20 {
		t.Errorf("entries[2] = block %d value %d, want block 0 value 20", entries[2].Block, entries[2].Value)
	}
	for _, e := range entries {
		if e.Source != SourceReply {
			t.Errorf("entry %d source = %q, want %q", e.ID, e.Source, SourceReply)
		}
		if e.CreatedAt.IsZero() {
			t.Errorf("entry %d has zero timestamp", e.ID)
		}
	}
}

func TestRecentLimit(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.RecordRoutingChange(ctx, i%4, i, SourceToggle); err != nil {
			t.Fatalf("RecordRoutingChange() error = %v", err)
		}
	}

	entries, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries with limit 2, want 2", len(entries))
	}

	// Zero limit falls back to the default.
	entries, err = repo.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent(0) error = %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("got %d entries with default limit, want 5", len(entries))
	}
}

func TestRecordValidation(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.RecordRoutingChange(ctx, -1, 0, SourceReply); err == nil {
		t.Error("negative block should be rejected")
	}

	// Empty source falls back to reply.
	if err := repo.RecordRoutingChange(ctx, 0, 20, ""); err != nil {
		t.Fatalf("RecordRoutingChange() error = %v", err)
	}
	entries, err := repo.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if entries[0].Source != SourceReply {
		t.Errorf("source = %q, want fallback %q", entries[0].Source, SourceReply)
	}
}

func TestPrune(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339)
	if _, err := repo.db.Exec(
		"INSERT INTO routing_history (block, value, source, created_at) VALUES (0, 20, 'reply', ?)",
		old,
	); err != nil {
		t.Fatalf("inserting old row: %v", err)
	}
	if err := repo.RecordRoutingChange(ctx, 1, 21, SourceReply); err != nil {
		t.Fatalf("RecordRoutingChange() error = %v", err)
	}

	deleted, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("Prune() deleted %d rows, want 1", deleted)
	}

	entries, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Block != 1 {
		t.Errorf("after prune got %+v, want single block-1 entry", entries)
	}

	if _, err := repo.Prune(ctx, 0); err == nil {
		t.Error("Prune(0) should be rejected")
	}
}
