// Package api implements the HTTP REST API and WebSocket server for the
// Roku service.
//
// This package provides:
//   - Read access to the persisted device registry and its state history
//   - The live view of every managed player and a command endpoint
//   - A WebSocket hub relaying bridge state publications in real time
//   - JWT bearer authentication (HS256, shared secret with Gray Logic Core)
//
// # Routes
//
//	GET  /api/v1/health                           no auth
//	GET  /api/v1/ws?token=<jwt>                   WebSocket
//	GET  /api/v1/devices                          persisted devices
//	GET  /api/v1/devices/{id}
//	GET  /api/v1/devices/{id}/history?limit=N
//	GET  /api/v1/roku/entities                    live player state
//	GET  /api/v1/roku/entities/{id}
//	POST /api/v1/roku/entities/{id}/commands      202 + command_id
//	GET  /api/v1/roku/metrics
//
// # WebSocket channels
//
//   - device.state_changed: every graylogic/state/roku/+ message
//   - command.result: outcome of commands accepted by the API
//
// # Graceful Degradation
//
// The server runs without MQTT (no relay) and without the bridge (roku
// routes answer 503).
package api
