package ecp

import "errors"

// Domain errors for the ECP client.
var (
	// ErrConnection is returned when the device cannot be reached, the
	// request times out, or the device answers with a non-2xx status.
	ErrConnection = errors.New("ecp: device connection failed")

	// ErrInvalidResponse is returned when a query response cannot be decoded.
	ErrInvalidResponse = errors.New("ecp: invalid response")

	// ErrInvalidKey is returned when a remote key identifier is not known.
	ErrInvalidKey = errors.New("ecp: invalid remote key")

	// ErrInvalidHost is returned when the client is created without a host.
	ErrInvalidHost = errors.New("ecp: host is required")
)
