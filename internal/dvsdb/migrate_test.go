package dvsdb

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func openBareDB(t *testing.T) *DB {
	t.Helper()
	raw, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { raw.Close() })
	return &DB{raw}
}

func TestMigrateUpAndVersion(t *testing.T) {
	db := openBareDB(t)

	version, dirty, err := db.MigrateVersion("migrations")
	if err != nil {
		t.Fatalf("version before: %v", err)
	}
	if version != 0 || dirty {
		t.Errorf("fresh db version = (%d, %v), want (0, false)", version, dirty)
	}

	if err := db.MigrateUp("migrations"); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	version, dirty, err = db.MigrateVersion("migrations")
	if err != nil {
		t.Fatalf("version after: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("version = (%d, %v), want (1, false)", version, dirty)
	}

	// Tables from the migration are usable.
	if _, err := db.Exec(`INSERT INTO runs (run_id) VALUES ('r1')`); err != nil {
		t.Errorf("insert into migrated table: %v", err)
	}

	// Re-running up is a no-op.
	if err := db.MigrateUp("migrations"); err != nil {
		t.Errorf("second migrate up: %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	db := openBareDB(t)

	if err := db.MigrateUp("migrations"); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	if err := db.MigrateDown("migrations"); err != nil {
		t.Fatalf("migrate down: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO runs (run_id) VALUES ('r1')`); err == nil {
		t.Error("runs table still exists after down migration")
	}
}
