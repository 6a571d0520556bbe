package device

import (
	"context"
	"time"
)

// State history source values.
const (
	StateHistorySourceMQTT    = "mqtt"
	StateHistorySourceCommand = "command"
)

// StateHistoryEntry is one recorded state snapshot. It gives a local audit
// trail even when InfluxDB is disabled.
type StateHistoryEntry struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	State     State     `json:"state"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// StateHistoryRepository stores and retrieves device state change history.
type StateHistoryRepository interface {
	// RecordStateChange records a snapshot. An empty source means mqtt.
	RecordStateChange(ctx context.Context, deviceID string, state State, source string) error

	// GetHistory returns entries newest first. limit <= 0 means 50; values
	// above 200 are clamped.
	GetHistory(ctx context.Context, deviceID string, limit int) ([]StateHistoryEntry, error)

	// PruneHistory deletes entries older than olderThan across all devices.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}
