package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-roku/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-roku/migrations"
)

// setupTestDB opens an in-memory database with the service schema applied.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db.DB
}

func strPtr(s string) *string { return &s }

// testDevice returns a valid Roku device.
func testDevice(id, name string) *Device {
	return &Device{
		ID:           id,
		Name:         name,
		Type:         DeviceTypeMediaPlayer,
		Protocol:     ProtocolRoku,
		Address:      Address{"host": "192.168.1.160"},
		Capabilities: []Capability{CapOnOff, CapMediaTransport, CapRemoteKeys},
		Manufacturer: strPtr("Roku"),
		Model:        strPtr("Roku 3"),
		SWVersion:    strPtr("7.5.0"),
	}
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	dev := testDevice("1GU48T017973", "My Roku 3")
	if err := repo.Create(ctx, dev); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if dev.CreatedAt.IsZero() || dev.UpdatedAt.IsZero() {
		t.Error("Create() should set timestamps")
	}

	got, err := repo.GetByID(ctx, "1GU48T017973")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "My Roku 3" || got.Type != DeviceTypeMediaPlayer || got.Protocol != ProtocolRoku {
		t.Errorf("GetByID() = %+v", got)
	}
	if got.Address.Host() != "192.168.1.160" {
		t.Errorf("Address.Host() = %q", got.Address.Host())
	}
	if len(got.Capabilities) != 3 || got.Capabilities[2] != CapRemoteKeys {
		t.Errorf("Capabilities = %v", got.Capabilities)
	}
	if got.Model == nil || *got.Model != "Roku 3" || got.SWVersion == nil || *got.SWVersion != "7.5.0" {
		t.Errorf("metadata = %v %v", got.Model, got.SWVersion)
	}
	if got.HealthStatus != HealthStatusUnknown {
		t.Errorf("HealthStatus = %q, want unknown", got.HealthStatus)
	}
	if len(got.State) != 0 {
		t.Errorf("State = %v, want empty", got.State)
	}
}

func TestSQLiteRepository_CreateDuplicate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testDevice("dup", "First")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, testDevice("dup", "Second")); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("Create() duplicate error = %v, want ErrDeviceExists", err)
	}
}

func TestSQLiteRepository_CreateMinimal(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	dev := &Device{ID: "bare", Name: "Bare", Type: DeviceTypeMediaPlayer, Protocol: ProtocolRoku}
	if err := repo.Create(ctx, dev); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "bare")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Manufacturer != nil || got.Model != nil || got.SWVersion != nil {
		t.Error("nil metadata should round trip as nil")
	}
	if got.Capabilities == nil || len(got.Capabilities) != 0 {
		t.Errorf("Capabilities = %#v, want empty slice", got.Capabilities)
	}
}

func TestSQLiteRepository_GetByID_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	empty, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("List() on empty table = %#v, want empty slice", empty)
	}

	for _, id := range []string{"c", "a", "b"} {
		if err := repo.Create(ctx, testDevice(id, "Roku "+id)); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 3 || devices[0].ID != "a" || devices[2].ID != "c" {
		t.Errorf("List() order = %v", devices)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	history := NewSQLiteStateHistoryRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testDevice("gone", "Gone")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := history.RecordStateChange(ctx, "gone", State{"state": "idle"}, ""); err != nil {
		t.Fatalf("RecordStateChange() error = %v", err)
	}

	if err := repo.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, "gone"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() after delete error = %v", err)
	}

	entries, err := history.GetHistory(ctx, "gone", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("history should cascade on delete, got %d entries", len(entries))
	}

	if err := repo.Delete(ctx, "gone"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Delete() missing error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_UpdateState(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testDevice("r1", "Roku")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.UpdateState(ctx, "r1", State{"state": "playing", "app_id": "12", "available": true}); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	// Partial update keeps app_id.
	if err := repo.UpdateState(ctx, "r1", State{"state": "paused"}); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.State["state"] != "paused" || got.State["app_id"] != "12" || got.State["available"] != true {
		t.Errorf("State = %v", got.State)
	}
	if got.StateUpdatedAt == nil {
		t.Error("StateUpdatedAt should be set")
	}

	if err := repo.UpdateState(ctx, "missing", State{"state": "idle"}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("UpdateState() missing error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_UpdateHealth(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testDevice("r1", "Roku")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	seen := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	if err := repo.UpdateHealth(ctx, "r1", HealthStatusOffline, seen); err != nil {
		t.Fatalf("UpdateHealth() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.HealthStatus != HealthStatusOffline {
		t.Errorf("HealthStatus = %q, want offline", got.HealthStatus)
	}
	if got.HealthLastSeen == nil || !got.HealthLastSeen.Equal(seen) {
		t.Errorf("HealthLastSeen = %v, want %v", got.HealthLastSeen, seen)
	}

	if err := repo.UpdateHealth(ctx, "missing", HealthStatusOnline, seen); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("UpdateHealth() missing error = %v, want ErrDeviceNotFound", err)
	}
}
