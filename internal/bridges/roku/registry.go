package roku

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ClientFactory builds a device client for an identity.
type ClientFactory func(identity Identity) (DeviceClient, error)

// Registry is the explicit mapping from device host to its Session.
// Sessions are created by Setup and released by Unload.
type Registry struct {
	newClient ClientFactory

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry that builds clients with factory.
func NewRegistry(factory ClientFactory) *Registry {
	return &Registry{
		newClient: factory,
		sessions:  make(map[string]*Session),
	}
}

// Setup creates a session for identity and performs its first refresh.
//
// If the device cannot be reached the session is discarded and an error
// wrapping ErrNotReady is returned; nothing is registered. A host can only
// be set up once until it is unloaded.
func (r *Registry) Setup(ctx context.Context, identity Identity) (*Session, error) {
	if identity.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidParameters)
	}

	r.mu.RLock()
	_, exists := r.sessions[identity.Host]
	r.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, identity.Host)
	}

	client, err := r.newClient(identity)
	if err != nil {
		return nil, fmt.Errorf("%w: creating client for %s: %w", ErrNotReady, identity.Host, err)
	}

	session := NewSession(identity, client)
	if err := session.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotReady, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[identity.Host]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, identity.Host)
	}
	r.sessions[identity.Host] = session

	return session, nil
}

// Get returns the session for host.
func (r *Registry) Get(host string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[host]
	return s, ok
}

// Unload releases the session for host. It reports whether one existed.
func (r *Registry) Unload(host string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[host]; !ok {
		return false
	}
	delete(r.sessions, host)
	return true
}

// List returns all sessions ordered by host.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].identity.Host < out[j].identity.Host
	})
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
