// Package roku implements the Roku streaming-player bridge for Gray Logic.
//
// The bridge owns one session per physical player, polls it over ECP and
// exposes two views of each player to Gray Logic Core over MQTT:
//
//	┌─────────────────┐          ┌─────────────────┐   HTTP :8060
//	│   Gray Logic    │   MQTT   │   Roku Bridge   │◄────────────► Roku
//	│      Core       │◄────────►│   (this pkg)    │      ECP      players
//	└─────────────────┘          └─────────────────┘
//
// # Components
//
//   - Session: holds the latest device snapshot and availability for one
//     player. Refresh replaces the snapshot wholesale; a failed refresh keeps
//     the previous snapshot and marks the session unavailable.
//   - Registry: explicit host → Session map. Setup performs the first
//     refresh and reports ErrNotReady when the player cannot be reached.
//   - MediaPlayer: polling entity mapping the snapshot onto a playback
//     state, a source list and a channel index, and mapping media commands
//     onto remote keys, channel launches and tuner changes.
//   - Remote: non-polling entity exposing on/off and raw key sequences.
//   - Bridge: scheduler and MQTT surface. Runs setup retries and the poll
//     loop, routes commands, publishes state and health.
//
// # Playback State
//
// State is derived from the snapshot in strict precedence order:
//
//	standby                      → standby
//	no foreground app            → unknown
//	"Power Saver" or screensaver → idle
//	"Roku" (home screen)         → home
//	anything else                → playing
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
// Refreshes of a single session are serialised.
package roku
