package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// historyTimeFormat is fixed width so created_at sorts lexically.
	historyTimeFormat = "2006-01-02T15:04:05.000000Z"
)

// SQLiteStateHistoryRepository stores state snapshots as JSON in the
// state_history table.
type SQLiteStateHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteStateHistoryRepository creates a new SQLite state history repository.
func NewSQLiteStateHistoryRepository(db *sql.DB) *SQLiteStateHistoryRepository {
	return &SQLiteStateHistoryRepository{db: db}
}

// RecordStateChange inserts a new state history entry for a device. The
// device must exist in the devices table.
func (r *SQLiteStateHistoryRepository) RecordStateChange(ctx context.Context, deviceID string, state State, source string) error {
	if deviceID == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidID)
	}
	if source == "" {
		source = StateHistorySourceMQTT
	}
	if state == nil {
		state = State{}
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO state_history (device_id, state, source, created_at) VALUES (?, ?, ?, ?)",
		deviceID,
		string(stateJSON),
		source,
		time.Now().UTC().Format(historyTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}

	return nil
}

// GetHistory returns recent state history entries for a device, newest first.
func (r *SQLiteStateHistoryRepository) GetHistory(ctx context.Context, deviceID string, limit int) ([]StateHistoryEntry, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrInvalidID)
	}
	limit = clampHistoryLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, state, source, created_at
		 FROM state_history
		 WHERE device_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]StateHistoryEntry, 0, limit)
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}

	return entries, nil
}

// clampHistoryLimit maps limit onto 1..maxHistoryLimit, 0 or less meaning
// the default.
func clampHistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultHistoryLimit
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	default:
		return limit
	}
}

// scanHistoryEntry decodes one state_history row.
func scanHistoryEntry(rows *sql.Rows) (StateHistoryEntry, error) {
	var (
		entry     StateHistoryEntry
		stateJSON string
		createdAt string
	)
	if err := rows.Scan(&entry.ID, &entry.DeviceID, &stateJSON, &entry.Source, &createdAt); err != nil {
		return entry, fmt.Errorf("scanning state history: %w", err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &entry.State); err != nil {
		return entry, fmt.Errorf("state history %d: decoding state: %w", entry.ID, err)
	}

	ts, err := parseHistoryTimestamp(createdAt)
	if err != nil {
		return entry, fmt.Errorf("state history %d: %w", entry.ID, err)
	}
	entry.CreatedAt = ts
	return entry, nil
}

// PruneHistory deletes entries older than olderThan and returns the count.
func (r *SQLiteStateHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("prune state history: olderThan must be positive, got %v", olderThan)
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(historyTimeFormat)
	result, err := r.db.ExecContext(ctx, "DELETE FROM state_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning state history: %w", err)
	}
	return result.RowsAffected()
}

// parseHistoryTimestamp accepts the fixed-width write format and, for rows
// written by hand or older builds, RFC 3339.
func parseHistoryTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(historyTimeFormat, value); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing created_at %q: %w", value, err)
	}
	return ts, nil
}
