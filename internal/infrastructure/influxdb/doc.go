// Package influxdb provides InfluxDB connectivity for the Roku service.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, metric writing and health monitoring.
//
// # Purpose
//
// The API's state subscription records every Roku state change here:
//   - roku_media: availability, power and playback state per device,
//     tagged with the foreground app
//   - device_metrics: numeric counters such as bridge polls and errors
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry is optional
//	}
//	defer client.Close()
//
//	client.WriteMediaState(msg.DeviceID, msg.State, msg.Timestamp)
//
// # Error Handling
//
// Writes are non-blocking; batch failures are delivered to the SetOnError
// callback. Connection and health check errors are returned directly.
package influxdb
