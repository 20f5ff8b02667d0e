package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/sqlvalley/internal/storage"
	"github.com/felixgeelhaar/sqlvalley/internal/storage/storagetest"
)

func newStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := NewStore(t.Context(), path, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func TestNewStore_WAL(t *testing.T) {
	s := newStore(t, filepath.Join(t.TempDir(), "progress.db"))
	defer s.Close()

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q; want wal", journalMode)
	}
}

func TestNewStore_SchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.db")
	steps, err := schemaSteps()
	if err != nil {
		t.Fatalf("schemaSteps() error = %v", err)
	}
	latest := steps[len(steps)-1].version

	s := newStore(t, path)
	version, err := s.SchemaVersion(t.Context())
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != latest {
		t.Errorf("SchemaVersion() = %d; want %d", version, latest)
	}
	var name string
	if err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='kv'").Scan(&name); err != nil {
		t.Errorf("kv table missing: %v", err)
	}
	s.Close()

	// Reopening an up-to-date file applies nothing.
	s = newStore(t, path)
	defer s.Close()
	if version, _ := s.SchemaVersion(t.Context()); version != latest {
		t.Errorf("SchemaVersion() after reopen = %d; want %d", version, latest)
	}
}

func TestNewStore_UpgradesOlderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.db")

	// A file written before the updated_at index existed.
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ddl, err := schemaFS.ReadFile("schema/001_kv.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := db.Exec(string(ddl)); err != nil {
		t.Fatalf("create kv: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 1"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO kv (key, value) VALUES ('progress/streak', '2')`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	db.Close()

	s := newStore(t, path)
	defer s.Close()

	var index string
	if err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name='idx_kv_updated_at'").Scan(&index); err != nil {
		t.Errorf("updated_at index missing after upgrade: %v", err)
	}
	got, err := s.Get(t.Context(), "progress/streak")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "2" {
		t.Errorf("Get() = %q, want 2", got)
	}
}

func TestSchemaSteps_Ordered(t *testing.T) {
	steps, err := schemaSteps()
	if err != nil {
		t.Fatalf("schemaSteps() error = %v", err)
	}
	for i := 1; i < len(steps); i++ {
		if steps[i].version <= steps[i-1].version {
			t.Errorf("step %s does not follow %s", steps[i].name, steps[i-1].name)
		}
	}
}

func TestStore_Conformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s := newStore(t, filepath.Join(t.TempDir(), "progress.db"))
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.db")
	ctx := t.Context()

	s := newStore(t, path)
	if err := s.Set(ctx, "progress/total_points", []byte("55")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	s.Close()

	s = newStore(t, path)
	defer s.Close()
	got, err := s.Get(ctx, "progress/total_points")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "55" {
		t.Errorf("Get() = %q, want 55", got)
	}
}
