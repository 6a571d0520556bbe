package database

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/nerrad567/gray-logic-roku/migrations"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260101_000000_create_widgets.up.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE widgets (id TEXT PRIMARY KEY);"),
		},
		"20260101_000000_create_widgets.down.sql": &fstest.MapFile{
			Data: []byte("DROP TABLE widgets;"),
		},
		"20260102_000000_add_gadgets.up.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE gadgets (id TEXT PRIMARY KEY);"),
		},
		"README.md": &fstest.MapFile{Data: []byte("not a migration")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("sqlite_master query error = %v", err)
	}
	return count == 1
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	for _, table := range []string{"widgets", "gadgets"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	applied, pending, err := db.GetMigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied = %d, pending = %d, want 2 and 0", len(applied), len(pending))
	}
	if applied[0].Version != "20260101_000000" || applied[1].Version != "20260102_000000" {
		t.Errorf("applied order = %v", applied)
	}

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrate_NilFS(t *testing.T) {
	db := openTestDB(t)

	if err := db.Migrate(context.Background(), nil); err != nil {
		t.Fatalf("Migrate(nil) error = %v", err)
	}
}

func TestMigrate_FailureStopsAtBadMigration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fsys := testMigrations()
	fsys["20260102_000000_add_gadgets.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE oops (")}

	err := db.Migrate(ctx, fsys)
	if err == nil || !strings.Contains(err.Error(), "add_gadgets") {
		t.Fatalf("Migrate() error = %v, want failure naming add_gadgets", err)
	}
	if !tableExists(t, db, "widgets") {
		t.Error("earlier migration should stay committed")
	}

	_, pending, err := db.GetMigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1", len(pending))
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()
	delete(fsys, "20260102_000000_add_gadgets.up.sql")

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "widgets") {
		t.Error("widgets should be dropped")
	}

	// Nothing left to roll back.
	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v", err)
	}
}

func TestMigrateDown_NoDownSQL(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, fsys); err == nil {
		t.Error("MigrateDown() should fail when the latest migration has no down SQL")
	}
}

func TestMigrate_ServiceSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate(migrations.FS) error = %v", err)
	}
	for _, table := range []string{"devices", "state_history"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	// Every service migration must be reversible.
	for range 2 {
		if err := db.MigrateDown(ctx, migrations.FS); err != nil {
			t.Fatalf("MigrateDown() error = %v", err)
		}
	}
	if tableExists(t, db, "devices") {
		t.Error("devices should be dropped after full rollback")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantIsUp    bool
		wantOk      bool
	}{
		{"valid up", "20260301_120000_create_devices.up.sql", "20260301_120000", true, true},
		{"valid down", "20260301_120000_create_devices.down.sql", "20260301_120000", false, true},
		{"not sql", "readme.txt", "", false, false},
		{"missing direction", "20260301_120000_create_devices.sql", "", false, false},
		{"invalid format", "invalid.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && (version != tt.wantVersion || isUp != tt.wantIsUp) {
				t.Errorf("got (%q, %v), want (%q, %v)", version, isUp, tt.wantVersion, tt.wantIsUp)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20260301_120000_create_devices.up.sql", "create_devices"},
		{"20260301_120100_create_state_history.down.sql", "create_state_history"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := extractMigrationName(tt.filename); got != tt.want {
				t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
