package db

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"itpsession/internal/db/migration"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := openSQLite(dbPath)
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func mustHaveColumns(t *testing.T, db *gorm.DB, table string, columns []string) {
	t.Helper()

	for _, column := range columns {
		if !db.Migrator().HasColumn(table, column) {
			t.Fatalf("table %s missing column %s", table, column)
		}
	}
}

func TestOpen_CreatesCoreTables(t *testing.T) {
	gdb, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = Close(gdb) }()

	mustHaveColumns(t, gdb, "proof_sessions", []string{
		"session_id", "source_file", "command", "outcome", "node_count", "proved_roots", "started_at", "ended_at",
	})
	mustHaveColumns(t, gdb, "node_snapshots", []string{
		"session_id", "position", "node_id", "parent_id", "display_parent", "name", "node_type", "status", "color",
	})
}

func TestOpen_SetsPragmas(t *testing.T) {
	gdb, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = Close(gdb) }()
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("DB failed: %v", err)
	}

	var timeout int
	if err := sqlDB.QueryRow(`PRAGMA busy_timeout;`).Scan(&timeout); err != nil {
		t.Fatalf("query busy_timeout failed: %v", err)
	}
	if timeout < 5000 {
		t.Fatalf("expected busy_timeout >= 5000, got %d", timeout)
	}
	var mode string
	if err := sqlDB.QueryRow(`PRAGMA journal_mode;`).Scan(&mode); err != nil {
		t.Fatalf("read journal mode failed: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected wal journal mode, got %q", mode)
	}
}

func TestOpen_IsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	gdb, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if err := gdb.Create(&ProofSession{SessionID: "s1", StartedAt: 10, EndedAt: 20, Outcome: "saved"}).Error; err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	_ = Close(gdb)

	gdb, err = Open(dbPath)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer func() { _ = Close(gdb) }()
	var got ProofSession
	if err := gdb.First(&got, "session_id = ?", "s1").Error; err != nil {
		t.Fatalf("load after reopen failed: %v", err)
	}
	if got.Outcome != "saved" || got.EndedAt != 20 {
		t.Fatalf("reopen changed a finished session: %+v", got)
	}
}

func TestMigrateUp_ClosesAbandonedSessions(t *testing.T) {
	db := openTestDB(t)
	if err := SyncSchema(db); err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&ProofSession{SessionID: "open", StartedAt: 100}).Error; err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Fatal(err)
	}

	var got ProofSession
	if err := db.First(&got, "session_id = ?", "open").Error; err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Outcome != migration.OutcomeAbandoned || got.EndedAt != 100 {
		t.Fatalf("expected abandoned session closed at its start, got %+v", got)
	}
}
