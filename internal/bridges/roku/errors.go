package roku

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-roku/internal/ecp"
)

// Domain errors for the Roku bridge package.
var (
	// ErrDeviceUnreachable is returned when a refresh or command cannot reach
	// the device. Every transport and decode failure from the device client
	// is reported as this single condition.
	ErrDeviceUnreachable = errors.New("roku: device unreachable")

	// ErrNotReady is returned by Registry.Setup when the first refresh of a
	// new session fails. The host is expected to retry setup later.
	ErrNotReady = errors.New("roku: device not ready")

	// ErrDeviceNotFound is returned when no session or entity exists for an id.
	ErrDeviceNotFound = errors.New("roku: device not found")

	// ErrAlreadyRegistered is returned when a session already exists for a host.
	ErrAlreadyRegistered = errors.New("roku: device already registered")

	// ErrInvalidCommand is returned for an unknown bridge command.
	ErrInvalidCommand = errors.New("roku: invalid command")

	// ErrInvalidParameters is returned when command parameters are missing or malformed.
	ErrInvalidParameters = errors.New("roku: invalid parameters")
)

// wrapCommandError classifies a device client error from a command.
// Unknown remote keys are a caller mistake; everything else means the
// device could not be reached.
func wrapCommandError(host string, err error) error {
	if errors.Is(err, ecp.ErrInvalidKey) {
		return fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrDeviceUnreachable, host, err)
}
