package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry adds an in-memory cache and validation over a Repository.
//
// The cache is populated on startup via RefreshCache and kept in sync by
// every write. Values returned to callers are deep copies. All methods are
// safe for concurrent use.
type Registry struct {
	repo    Repository
	cache   map[string]*Device
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new device registry over repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		r.cache[devices[i].ID] = devices[i].DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice returns ErrDeviceNotFound if the device does not exist.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	device, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = device.DeepCopy()
	r.cacheMu.Unlock()

	return device, nil
}

// ListDevices returns all devices ordered by ID.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	if len(r.cache) == 0 {
		r.cacheMu.RUnlock()
		return r.repo.List(ctx)
	}

	devices := make([]Device, 0, len(r.cache))
	for _, d := range r.cache {
		devices = append(devices, *d.DeepCopy())
	}
	r.cacheMu.RUnlock()

	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

// CreateDevice validates and persists a new device. A missing ID is generated.
func (r *Registry) CreateDevice(ctx context.Context, device *Device) error {
	if device.ID == "" {
		device.ID = GenerateID()
	}
	if err := ValidateDevice(device); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, device); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device created", "id", device.ID, "name", device.Name)
	return nil
}

// CreateDeviceIfNotExists creates device unless one with the same ID
// exists, in which case the stored record is left untouched so user edits
// survive restarts. created reports whether a row was inserted.
func (r *Registry) CreateDeviceIfNotExists(ctx context.Context, device *Device) (created bool, err error) {
	if _, err := r.GetDevice(ctx, device.ID); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrDeviceNotFound) {
		return false, err
	}

	if err := r.CreateDevice(ctx, device); err != nil {
		if errors.Is(err, ErrDeviceExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteDevice removes a device.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// SetDeviceState merges state into the device's stored state.
func (r *Registry) SetDeviceState(ctx context.Context, id string, state State) error {
	if err := ValidateState(state); err != nil {
		return err
	}
	if err := r.repo.UpdateState(ctx, id, state); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		if updated.State == nil {
			updated.State = State{}
		}
		for k, v := range deepCopyMap(state) {
			if v == nil {
				delete(updated.State, k)
				continue
			}
			updated.State[k] = v
		}
		now := time.Now().UTC()
		updated.StateUpdatedAt = &now
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device state updated", "id", id)
	return nil
}

// SetDeviceHealth updates the health status and last-seen time of a device.
func (r *Registry) SetDeviceHealth(ctx context.Context, id string, status HealthStatus) error {
	if _, ok := validHealthStatus[status]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidHealth, status)
	}

	now := time.Now().UTC()
	if err := r.repo.UpdateHealth(ctx, id, status, now); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		updated.HealthStatus = status
		updated.HealthLastSeen = &now
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device health updated", "id", id, "status", status)
	return nil
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Stats holds registry statistics for monitoring.
type Stats struct {
	TotalDevices   int                  `json:"total_devices"`
	ByHealthStatus map[HealthStatus]int `json:"by_health_status"`
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		TotalDevices:   len(r.cache),
		ByHealthStatus: make(map[HealthStatus]int),
	}
	for _, d := range r.cache {
		stats.ByHealthStatus[d.HealthStatus]++
	}
	return stats
}
