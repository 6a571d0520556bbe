// Package device provides the device registry for the Roku service.
//
// The registry is the persisted catalogue of every media player the bridge
// has announced. The bridge seeds a record the first time a player is
// registered, then keeps its state snapshot and health current as MQTT
// messages arrive. The REST API reads from it.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                        Device Registry                        │
//	│                                                               │
//	│  ┌─────────────────┐   ┌──────────────────┐   ┌────────────┐  │
//	│  │    Registry     │──▶│    Repository    │   │ Validation │  │
//	│  │  (registry.go)  │   │ (repository.go)  │   │            │  │
//	│  │ in-memory cache │   │  SQLite queries  │   │            │  │
//	│  └─────────────────┘   └──────────────────┘   └────────────┘  │
//	│                                                               │
//	│  ┌──────────────────────────────────────────┐                 │
//	│  │ StateHistoryRepository (state_history.go)│                 │
//	│  └──────────────────────────────────────────┘                 │
//	└──────────────────────────────────────────────────────────────┘
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	created, err := registry.CreateDeviceIfNotExists(ctx, &device.Device{
//	    ID:       "1GU48T017973",
//	    Name:     "My Roku 3",
//	    Type:     device.DeviceTypeMediaPlayer,
//	    Protocol: device.ProtocolRoku,
//	    Address:  device.Address{"host": "192.168.1.160"},
//	})
//
//	registry.SetDeviceState(ctx, id, device.State{"state": "playing", "app_id": "12"})
//
// Merges into stored state are shallow: a key set to nil is removed.
//
// The Registry is safe for concurrent use.
package device
