package roku

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-roku/internal/ecp"
)

// DeviceClient is the device-facing surface a Session needs.
// It is satisfied by *ecp.Client and by test fakes.
type DeviceClient interface {
	// Update fetches a complete, fresh device snapshot.
	Update(ctx context.Context) (*ecp.Device, error)

	// Remote presses a remote-control key identifier.
	Remote(ctx context.Context, key string) error

	// Launch starts the channel with the given application id.
	Launch(ctx context.Context, appID string) error

	// Tune switches the antenna input to a channel.
	Tune(ctx context.Context, channel string) error

	// AppIconURL returns the artwork URL for an application id without I/O.
	AppIconURL(appID string) string
}

// Identity is the fixed addressing and discovery metadata of a device.
// The host is the session key.
type Identity struct {
	Host   string `json:"host"`
	Port   int    `json:"port,omitempty"`
	Name   string `json:"name,omitempty"`
	Serial string `json:"serial,omitempty"`
}

// UpdateListener is notified after every refresh attempt with the current
// snapshot (possibly stale or nil) and the resulting availability.
type UpdateListener func(snapshot *ecp.Device, available bool)

// Session is the per-device holder of the latest snapshot.
//
// The snapshot pointer is replaced, never modified. Readers may keep a
// reference returned by Current for as long as they like.
type Session struct {
	identity Identity
	client   DeviceClient

	// refreshMu serialises Refresh so one round-trip is in flight at a time.
	refreshMu sync.Mutex

	mu         sync.RWMutex
	snapshot   *ecp.Device
	available  bool
	lastUpdate time.Time
	lastErr    error
	listeners  []UpdateListener
}

// NewSession creates a session for identity backed by client.
// The session has no snapshot until Refresh succeeds.
func NewSession(identity Identity, client DeviceClient) *Session {
	return &Session{
		identity: identity,
		client:   client,
	}
}

// Identity returns the device identity.
func (s *Session) Identity() Identity {
	return s.identity
}

// Client returns the device client used for commands.
func (s *Session) Client() DeviceClient {
	return s.client
}

// Refresh performs one round-trip to the device.
//
// On success the snapshot is replaced and the session becomes available.
// On failure the previous snapshot is kept, the session becomes unavailable
// and an error wrapping ErrDeviceUnreachable is returned. No retries.
func (s *Session) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	dev, err := s.client.Update(ctx)

	s.mu.Lock()
	if err != nil {
		s.available = false
		s.lastErr = err
	} else {
		s.snapshot = dev
		s.available = true
		s.lastUpdate = time.Now().UTC()
		s.lastErr = nil
	}
	snapshot := s.snapshot
	available := s.available
	listeners := make([]UpdateListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot, available)
	}

	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDeviceUnreachable, s.identity.Host, err)
	}
	return nil
}

// Current returns the latest successful snapshot, or nil before the first
// successful refresh. It performs no I/O.
func (s *Session) Current() *ecp.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Available reports whether the most recent refresh succeeded.
func (s *Session) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

// LastUpdate returns when the snapshot was last replaced.
func (s *Session) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}

// LastError returns the error of the most recent failed refresh, or nil.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// OnUpdate registers a listener for refresh results. Listeners run inside
// Refresh, one refresh at a time, in registration order.
func (s *Session) OnUpdate(fn UpdateListener) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}
