package roku

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-roku/internal/ecp"
)

const (
	// DefaultRepeatCount is used when SendCommand is given a count below one.
	DefaultRepeatCount = 1

	// MaxRepeatCount bounds how often one send_command repeats its keys.
	MaxRepeatCount = 20
)

// Remote is the remote-control view of a device.
//
// It does not poll; it is kept current by the update events of its session,
// which the media player's polling drives.
type Remote struct {
	baseEntity

	mu       sync.RWMutex
	onChange func(*Remote)
}

// NewRemote creates a remote over session and subscribes to its updates.
func NewRemote(session *Session) *Remote {
	r := &Remote{baseEntity: baseEntity{session: session}}
	session.OnUpdate(func(_ *ecp.Device, _ bool) {
		r.mu.RLock()
		fn := r.onChange
		r.mu.RUnlock()
		if fn != nil {
			fn(r)
		}
	})
	return r
}

// SetOnChange registers a callback invoked after every session refresh.
func (r *Remote) SetOnChange(fn func(*Remote)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// ShouldPoll is always false.
func (r *Remote) ShouldPoll() bool {
	return false
}

// IsOn reports whether the device is out of standby. A device that has
// never been refreshed is reported off.
func (r *Remote) IsOn() bool {
	dev := r.session.Current()
	return dev != nil && !dev.State.Standby
}

// SendCommand presses every key in commands, in order, repeatCount times.
// Calls are strictly sequential and stop at the first failure.
func (r *Remote) SendCommand(ctx context.Context, commands []string, repeatCount int) error {
	if repeatCount < 1 {
		repeatCount = DefaultRepeatCount
	}
	if repeatCount > MaxRepeatCount {
		return fmt.Errorf("%w: repeat count %d exceeds %d", ErrInvalidParameters, repeatCount, MaxRepeatCount)
	}

	client := r.session.Client()
	for i := 0; i < repeatCount; i++ {
		for _, cmd := range commands {
			if err := client.Remote(ctx, cmd); err != nil {
				return wrapCommandError(r.session.Identity().Host, err)
			}
		}
	}
	return nil
}

// RemoteState is the published view of a remote.
type RemoteState struct {
	Available bool `json:"available"`
	IsOn      bool `json:"is_on"`
}

// Snapshot returns the current remote properties.
func (r *Remote) Snapshot() RemoteState {
	return RemoteState{
		Available: r.Available(),
		IsOn:      r.IsOn(),
	}
}
