package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines device persistence operations.
type Repository interface {
	// GetByID returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List returns all devices ordered by ID.
	List(ctx context.Context) ([]Device, error)

	// Create returns ErrDeviceExists if the ID is taken.
	Create(ctx context.Context, device *Device) error

	Delete(ctx context.Context, id string) error

	// UpdateState merges state into the stored state.
	UpdateState(ctx context.Context, id string, state State) error

	UpdateHealth(ctx context.Context, id string, status HealthStatus, lastSeen time.Time) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectDeviceColumns = `
	SELECT id, name, type, protocol, address, capabilities,
	       manufacturer, model, sw_version,
	       health_status, health_last_seen, state, state_updated_at,
	       created_at, updated_at
	FROM devices`

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, selectDeviceColumns+" WHERE id = ?", id)
	device, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting device %s: %w", id, err)
	}
	return device, nil
}

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, selectDeviceColumns+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	devices := make([]Device, 0)
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// Create inserts a new device. CreatedAt and UpdatedAt are set when zero.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	addressJSON, err := json.Marshal(orEmptyMap(device.Address))
	if err != nil {
		return fmt.Errorf("marshalling address: %w", err)
	}
	capabilities := device.Capabilities
	if capabilities == nil {
		capabilities = []Capability{}
	}
	capsJSON, err := json.Marshal(capabilities)
	if err != nil {
		return fmt.Errorf("marshalling capabilities: %w", err)
	}
	stateJSON, err := json.Marshal(orEmptyMap(device.State))
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now
	if device.HealthStatus == "" {
		device.HealthStatus = HealthStatusUnknown
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (
			id, name, type, protocol, address, capabilities,
			manufacturer, model, sw_version,
			health_status, health_last_seen, state, state_updated_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		device.ID,
		device.Name,
		string(device.Type),
		string(device.Protocol),
		string(addressJSON),
		string(capsJSON),
		nullableString(device.Manufacturer),
		nullableString(device.Model),
		nullableString(device.SWVersion),
		string(device.HealthStatus),
		nullableTime(device.HealthLastSeen),
		string(stateJSON),
		nullableTime(device.StateUpdatedAt),
		device.CreatedAt.UTC().Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// Delete removes a device and, by cascade, its state history.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireRow(result)
}

// UpdateState merges the given state fields into the stored state using
// json_patch; keys absent from state keep their stored value.
func (r *SQLiteRepository) UpdateState(ctx context.Context, id string, state State) error {
	stateJSON, err := json.Marshal(orEmptyMap(state))
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET state = json_patch(COALESCE(state, '{}'), ?),
		    state_updated_at = ?,
		    updated_at = ?
		WHERE id = ?`,
		string(stateJSON), now, now, id,
	)
	if err != nil {
		return fmt.Errorf("updating device state: %w", err)
	}
	return requireRow(result)
}

// UpdateHealth updates the health status and last seen timestamp.
func (r *SQLiteRepository) UpdateHealth(ctx context.Context, id string, status HealthStatus, lastSeen time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET health_status = ?, health_last_seen = ?, updated_at = ?
		WHERE id = ?`,
		string(status),
		lastSeen.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device health: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// rowScanner is implemented by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var manufacturer, model, swVersion sql.NullString
	var healthLastSeen, stateUpdatedAt sql.NullString
	var addressJSON, capsJSON, stateJSON string
	var deviceType, protocol, healthStatus string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.Name,
		&deviceType,
		&protocol,
		&addressJSON,
		&capsJSON,
		&manufacturer,
		&model,
		&swVersion,
		&healthStatus,
		&healthLastSeen,
		&stateJSON,
		&stateUpdatedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = DeviceType(deviceType)
	d.Protocol = Protocol(protocol)
	d.HealthStatus = HealthStatus(healthStatus)
	d.Manufacturer = stringPtr(manufacturer)
	d.Model = stringPtr(model)
	d.SWVersion = stringPtr(swVersion)
	d.HealthLastSeen = timePtr(healthLastSeen)
	d.StateUpdatedAt = timePtr(stateUpdatedAt)

	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	if err := json.Unmarshal([]byte(addressJSON), &d.Address); err != nil {
		return nil, fmt.Errorf("unmarshalling address: %w", err)
	}
	if err := json.Unmarshal([]byte(capsJSON), &d.Capabilities); err != nil {
		return nil, fmt.Errorf("unmarshalling capabilities: %w", err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &d.State); err != nil {
		return nil, fmt.Errorf("unmarshalling state: %w", err)
	}

	return &d, nil
}

func orEmptyMap[M ~map[string]any](m M) M {
	if m == nil {
		return M{}
	}
	return m
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func timePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
