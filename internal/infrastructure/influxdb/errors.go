package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when telemetry is switched off.
	// Callers treat it as "run without InfluxDB", not as a failure.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps the first ping made by Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrUnhealthy means the server answered the ping but reported itself not ready.
	ErrUnhealthy = errors.New("influxdb: server not healthy")

	// ErrNotConnected is returned after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps batch write errors passed to the SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
