// Package ecp implements a client for the Roku External Control Protocol.
//
// ECP is a small HTTP API served by every Roku device on port 8060. Queries
// return XML documents; actions are bodiless POST requests:
//
//	GET  /query/device-info        device descriptor and power mode
//	GET  /query/apps               installed channels
//	GET  /query/active-app         foreground channel or screensaver
//	GET  /query/icon/{id}          channel artwork
//	POST /keypress/{Key}           remote-control key
//	POST /launch/{id}              start a channel
//	POST /launch/tvinput.dtv?ch=N  tune the antenna input (Roku TV)
//
// Client.Update performs the three queries and returns an immutable Device
// snapshot. Callers keep the snapshot until the next successful Update.
//
// # Thread Safety
//
// Client is safe for concurrent use. Keypresses are paced by a shared
// token-bucket limiter so that rapid command bursts are not dropped by the
// device.
package ecp
