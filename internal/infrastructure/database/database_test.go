package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

// TestOpen verifies database connection establishment.
func TestOpen(t *testing.T) {
	t.Run("creates nested directory and file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "state.db")

		db, err := Open(context.Background(), Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := db.ExecContext(context.Background(), "CREATE TABLE t (id INTEGER)"); err != nil {
			t.Fatalf("ExecContext() error = %v", err)
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("rejects empty path", func(t *testing.T) {
		if _, err := Open(context.Background(), Config{}); err == nil {
			t.Error("Open() with empty path should fail")
		}
	})
}

// TestHealthCheck verifies the health check functionality.
func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

// TestClose verifies graceful shutdown.
func TestClose(t *testing.T) {
	db, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "c.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v", err)
	}
}

func TestMigrate(t *testing.T) {
	fsys := fstest.MapFS{
		"20250102_000000_second.up.sql":  {Data: []byte("ALTER TABLE widgets ADD COLUMN colour TEXT;")},
		"20250101_000000_first.up.sql":   {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);")},
		"README.md":                      {Data: []byte("ignored")},
		"20250103_000000_later.down.sql": {Data: []byte("ignored")},
	}

	db := openTestDB(t)
	ctx := context.Background()

	n, err := db.Migrate(ctx, fsys)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Migrate() applied %d, want 2", n)
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO widgets (colour) VALUES ('red')"); err != nil {
		t.Errorf("migrated schema unusable: %v", err)
	}

	n, err = db.Migrate(ctx, fsys)
	if err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if n != 0 {
		t.Errorf("second Migrate() applied %d, want 0", n)
	}
}

func TestMigrate_FailureRollsBack(t *testing.T) {
	fsys := fstest.MapFS{
		"20250101_000000_good.up.sql": {Data: []byte("CREATE TABLE good (id INTEGER);")},
		"20250102_000000_bad.up.sql":  {Data: []byte("CREATE TABLE broken (;")},
	}

	db := openTestDB(t)
	ctx := context.Background()

	n, err := db.Migrate(ctx, fsys)
	if err == nil {
		t.Fatal("Migrate() expected error for invalid SQL")
	}
	if n != 1 {
		t.Errorf("Migrate() applied %d before failing, want 1", n)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("schema_migrations has %d rows, want 1", count)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{filename: "20250101_000000_thermostat_state.up.sql", wantVersion: "20250101_000000", wantName: "thermostat_state", wantOK: true},
		{filename: "20250101_120000.up.sql", wantVersion: "20250101_120000", wantName: "20250101_120000", wantOK: true},
		{filename: "20250101_000000_x.down.sql"},
		{filename: "schema.sql"},
		{filename: "2025_01_x.up.sql"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK || version != tt.wantVersion || name != tt.wantName {
				t.Errorf("parseMigrationFilename() = %q, %q, %v; want %q, %q, %v",
					version, name, ok, tt.wantVersion, tt.wantName, tt.wantOK)
			}
		})
	}
}
