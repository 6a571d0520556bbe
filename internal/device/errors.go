package device

import "errors"

// Domain errors for the device package, checked with errors.Is.
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	ErrInvalidDevice     = errors.New("device: invalid")
	ErrInvalidID         = errors.New("device: invalid id")
	ErrInvalidName       = errors.New("device: invalid name")
	ErrInvalidProtocol   = errors.New("device: invalid protocol")
	ErrInvalidDeviceType = errors.New("device: invalid type")
	ErrInvalidCapability = errors.New("device: invalid capability")
	ErrInvalidAddress    = errors.New("device: invalid address")
	ErrInvalidState      = errors.New("device: invalid state")
	ErrInvalidHealth     = errors.New("device: invalid health status")
)
