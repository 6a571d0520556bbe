package device

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

// MockRepository is a test implementation of Repository.
type MockRepository struct {
	mu      sync.Mutex
	devices map[string]*Device

	createErr       error
	listErr         error
	updateStateErr  error
	updateHealthErr error
	creates         int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{devices: make(map[string]*Device)}
}

func (m *MockRepository) GetByID(_ context.Context, id string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

func (m *MockRepository) List(_ context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	devices := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, *d.DeepCopy())
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

func (m *MockRepository) Create(_ context.Context, device *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.devices[device.ID]; exists {
		return ErrDeviceExists
	}
	if device.HealthStatus == "" {
		device.HealthStatus = HealthStatusUnknown
	}
	m.devices[device.ID] = device.DeepCopy()
	return nil
}

func (m *MockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[id]; !ok {
		return ErrDeviceNotFound
	}
	delete(m.devices, id)
	return nil
}

func (m *MockRepository) UpdateState(_ context.Context, id string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateStateErr != nil {
		return m.updateStateErr
	}
	d, ok := m.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}
	if d.State == nil {
		d.State = State{}
	}
	for k, v := range state {
		d.State[k] = v
	}
	return nil
}

func (m *MockRepository) UpdateHealth(_ context.Context, id string, status HealthStatus, lastSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateHealthErr != nil {
		return m.updateHealthErr
	}
	d, ok := m.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}
	d.HealthStatus = status
	d.HealthLastSeen = &lastSeen
	return nil
}

func (m *MockRepository) addDevice(d *Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[d.ID] = d.DeepCopy()
}

func TestRegistry_RefreshCache(t *testing.T) {
	repo := NewMockRepository()
	repo.addDevice(testDevice("a", "A"))
	repo.addDevice(testDevice("b", "B"))

	registry := NewRegistry(repo)
	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	if registry.GetDeviceCount() != 2 {
		t.Errorf("GetDeviceCount() = %d, want 2", registry.GetDeviceCount())
	}

	repo.listErr = errors.New("disk on fire")
	if err := registry.RefreshCache(context.Background()); err == nil {
		t.Error("RefreshCache() should propagate repository errors")
	}
}

func TestRegistry_GetDevice(t *testing.T) {
	repo := NewMockRepository()
	repo.addDevice(testDevice("a", "A"))
	registry := NewRegistry(repo)
	ctx := context.Background()

	// Not cached yet: falls back to the repository and caches.
	got, err := registry.GetDevice(ctx, "a")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if registry.GetDeviceCount() != 1 {
		t.Error("GetDevice() should cache repository hits")
	}

	// Returned copies are isolated from the cache.
	got.Address["host"] = "10.0.0.1"
	again, _ := registry.GetDevice(ctx, "a") //nolint:errcheck // checked above
	if again.Address.Host() != "192.168.1.160" {
		t.Error("mutating a returned device changed the cache")
	}

	if _, err := registry.GetDevice(ctx, "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetDevice() missing error = %v", err)
	}
}

func TestRegistry_ListDevices(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	empty, err := registry.ListDevices(ctx)
	if err != nil || len(empty) != 0 {
		t.Fatalf("ListDevices() on empty = %v, %v", empty, err)
	}

	for _, id := range []string{"c", "a", "b"} {
		if err := registry.CreateDevice(ctx, testDevice(id, "Roku "+id)); err != nil {
			t.Fatalf("CreateDevice(%s) error = %v", id, err)
		}
	}

	devices, err := registry.ListDevices(ctx)
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 3 || devices[0].ID != "a" || devices[1].ID != "b" || devices[2].ID != "c" {
		t.Errorf("ListDevices() order = %v", devices)
	}
}

func TestRegistry_CreateDevice(t *testing.T) {
	tests := []struct {
		name    string
		device  *Device
		wantErr error
	}{
		{"valid", testDevice("roku-1", "Lounge"), nil},
		{"generated id", testDevice("", "Bedroom"), nil},
		{"empty name", testDevice("roku-2", " "), ErrInvalidName},
		{"no host", func() *Device { d := testDevice("roku-3", "Den"); d.Address = nil; return d }(), ErrInvalidAddress},
		{"bad capability", func() *Device { d := testDevice("roku-4", "Den"); d.Capabilities = []Capability{"dim"}; return d }(), ErrInvalidCapability},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry(NewMockRepository())
			err := registry.CreateDevice(context.Background(), tt.device)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CreateDevice() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				if tt.device.ID == "" {
					t.Error("CreateDevice() should generate an ID")
				}
				if registry.GetDeviceCount() != 1 {
					t.Error("created device should be cached")
				}
			}
		})
	}
}

func TestRegistry_CreateDeviceIfNotExists(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	created, err := registry.CreateDeviceIfNotExists(ctx, testDevice("roku-1", "Lounge"))
	if err != nil || !created {
		t.Fatalf("first CreateDeviceIfNotExists() = %v, %v", created, err)
	}

	// Second seed must not overwrite a user-renamed device.
	created, err = registry.CreateDeviceIfNotExists(ctx, testDevice("roku-1", "Renamed by seed"))
	if err != nil || created {
		t.Fatalf("second CreateDeviceIfNotExists() = %v, %v", created, err)
	}
	got, _ := registry.GetDevice(ctx, "roku-1") //nolint:errcheck // exists
	if got.Name != "Lounge" {
		t.Errorf("Name = %q, want Lounge", got.Name)
	}
	if repo.creates != 1 {
		t.Errorf("repository creates = %d, want 1", repo.creates)
	}

	repo.createErr = errors.New("disk full")
	if _, err := registry.CreateDeviceIfNotExists(ctx, testDevice("roku-2", "Den")); err == nil {
		t.Error("CreateDeviceIfNotExists() should propagate repository errors")
	}
}

func TestRegistry_DeleteDevice(t *testing.T) {
	registry := NewRegistry(NewMockRepository())
	ctx := context.Background()

	if err := registry.CreateDevice(ctx, testDevice("roku-1", "Lounge")); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if err := registry.DeleteDevice(ctx, "roku-1"); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}
	if registry.GetDeviceCount() != 0 {
		t.Error("deleted device still cached")
	}
	if err := registry.DeleteDevice(ctx, "roku-1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("DeleteDevice() missing error = %v", err)
	}
}

func TestRegistry_SetDeviceState(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	if err := registry.CreateDevice(ctx, testDevice("roku-1", "Lounge")); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	if err := registry.SetDeviceState(ctx, "roku-1", State{"state": "playing", "app_id": "12"}); err != nil {
		t.Fatalf("SetDeviceState() error = %v", err)
	}
	if err := registry.SetDeviceState(ctx, "roku-1", State{"state": "paused"}); err != nil {
		t.Fatalf("SetDeviceState() error = %v", err)
	}

	got, _ := registry.GetDevice(ctx, "roku-1") //nolint:errcheck // exists
	if got.State["state"] != "paused" || got.State["app_id"] != "12" {
		t.Errorf("State = %v", got.State)
	}
	if got.StateUpdatedAt == nil {
		t.Error("StateUpdatedAt should be set")
	}

	if err := registry.SetDeviceState(ctx, "missing", State{"state": "idle"}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("SetDeviceState() missing error = %v", err)
	}

	repo.updateStateErr = errors.New("locked")
	if err := registry.SetDeviceState(ctx, "roku-1", State{"state": "idle"}); err == nil {
		t.Error("SetDeviceState() should propagate repository errors")
	}
	got, _ = registry.GetDevice(ctx, "roku-1") //nolint:errcheck // exists
	if got.State["state"] != "paused" {
		t.Error("failed write must not change the cache")
	}
}

func TestRegistry_SetDeviceHealth(t *testing.T) {
	registry := NewRegistry(NewMockRepository())
	ctx := context.Background()

	if err := registry.CreateDevice(ctx, testDevice("roku-1", "Lounge")); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	if err := registry.SetDeviceHealth(ctx, "roku-1", HealthStatusOnline); err != nil {
		t.Fatalf("SetDeviceHealth() error = %v", err)
	}
	got, _ := registry.GetDevice(ctx, "roku-1") //nolint:errcheck // exists
	if got.HealthStatus != HealthStatusOnline || got.HealthLastSeen == nil {
		t.Errorf("health = %q, last seen %v", got.HealthStatus, got.HealthLastSeen)
	}

	if err := registry.SetDeviceHealth(ctx, "roku-1", "sleepy"); !errors.Is(err, ErrInvalidHealth) {
		t.Errorf("SetDeviceHealth(invalid) error = %v", err)
	}
}

func TestRegistry_GetStats(t *testing.T) {
	registry := NewRegistry(NewMockRepository())
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := registry.CreateDevice(ctx, testDevice(id, "Roku "+id)); err != nil {
			t.Fatalf("CreateDevice() error = %v", err)
		}
	}
	if err := registry.SetDeviceHealth(ctx, "a", HealthStatusOnline); err != nil {
		t.Fatalf("SetDeviceHealth() error = %v", err)
	}

	stats := registry.GetStats()
	if stats.TotalDevices != 3 {
		t.Errorf("TotalDevices = %d, want 3", stats.TotalDevices)
	}
	if stats.ByHealthStatus[HealthStatusOnline] != 1 || stats.ByHealthStatus[HealthStatusUnknown] != 2 {
		t.Errorf("ByHealthStatus = %v", stats.ByHealthStatus)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewRegistry(NewMockRepository())
	ctx := context.Background()

	if err := registry.CreateDevice(ctx, testDevice("concurrent", "Concurrent")); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(3)
		go func() {
			defer wg.Done()
			registry.GetDevice(ctx, "concurrent") //nolint:errcheck // race check only
		}()
		go func(n int) {
			defer wg.Done()
			registry.SetDeviceState(ctx, "concurrent", State{"count": n}) //nolint:errcheck // race check only
		}(i)
		go func() {
			defer wg.Done()
			registry.SetDeviceHealth(ctx, "concurrent", HealthStatusOnline) //nolint:errcheck // race check only
		}()
	}
	wg.Wait()

	if _, err := registry.GetDevice(ctx, "concurrent"); err != nil {
		t.Errorf("GetDevice() after concurrent access error = %v", err)
	}
}
