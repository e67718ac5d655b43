package db

import (
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestDetectDriver(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@localhost/explora": DriverPostgres,
		"PostgreSQL://localhost/explora":   DriverPostgres,
		"host=localhost dbname=explora":    DriverPostgres,
		"data/explora.db":                  DriverSQLite,
		"file:explora.db?cache=shared":     DriverSQLite,
	}
	for dsn, want := range tests {
		if got := DetectDriver(dsn); got != want {
			t.Errorf("DetectDriver(%q) = %s, want %s", dsn, got, want)
		}
	}
}

func TestRebind(t *testing.T) {
	sqlite := &DB{driver: DriverSQLite}
	pg := &DB{driver: DriverPostgres}
	q := "UPDATE packages SET name = $1 WHERE id = $12"
	if got := sqlite.Rebind(q); got != "UPDATE packages SET name = ? WHERE id = ?" {
		t.Fatalf("sqlite rebind = %q", got)
	}
	if got := pg.Rebind(q); got != q {
		t.Fatalf("postgres rebind changed query: %q", got)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	database, err := New(filepath.Join(t.TempDir(), "nested", "explora.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer database.Close()

	for i := 0; i < 2; i++ {
		if err := database.RunMigrations(); err != nil {
			t.Fatalf("RunMigrations #%d: %v", i+1, err)
		}
	}
	var count int
	if err := database.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("recorded %d migrations, want 1", count)
	}
	if _, err := database.Exec("SELECT id, name, includes FROM packages"); err != nil {
		t.Fatalf("packages table missing: %v", err)
	}
}

func TestReadMigrationsOrdersAndSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"m/010_later.sql":       {Data: []byte("SELECT 10")},
		"m/002_second_step.sql": {Data: []byte("SELECT 2")},
		"m/notes.txt":           {Data: []byte("ignored")},
		"m/bad_name.sql":        {Data: []byte("ignored")},
	}
	got, err := readMigrations(fsys, "m")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d migrations", len(got))
	}
	if got[0].Number != 2 || got[0].Name != "second_step" || got[1].Number != 10 {
		t.Fatalf("migrations = %+v", got)
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error")
	}
}
