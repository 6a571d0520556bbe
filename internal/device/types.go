package device

import "time"

// Device is a persisted media player known to the service.
// It matches the devices table in migrations/20260301_120000_create_devices.up.sql.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Type     DeviceType `json:"type"`
	Protocol Protocol   `json:"protocol"`
	Address  Address    `json:"address"`

	Capabilities []Capability `json:"capabilities"`

	// Current state, the last snapshot published by the bridge.
	State          State      `json:"state"`
	StateUpdatedAt *time.Time `json:"state_updated_at,omitempty"`

	HealthStatus   HealthStatus `json:"health_status"`
	HealthLastSeen *time.Time   `json:"health_last_seen,omitempty"`

	Manufacturer *string `json:"manufacturer,omitempty"`
	Model        *string `json:"model,omitempty"`
	SWVersion    *string `json:"sw_version,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy returns an independent copy; maps and slices are cloned so
// cached devices cannot be mutated through a returned value.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d
	cpy.Address = deepCopyMap(d.Address)
	cpy.State = deepCopyMap(d.State)
	if d.Capabilities != nil {
		cpy.Capabilities = make([]Capability, len(d.Capabilities))
		copy(cpy.Capabilities, d.Capabilities)
	}

	return &cpy
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	case []string:
		cpy := make([]string, len(val))
		copy(cpy, val)
		return cpy
	default:
		return v
	}
}

// Address holds protocol-specific address information.
//
//	Roku: {"host": "192.168.1.160"}
type Address map[string]any

// Host returns the "host" entry of a Roku address, or "".
func (a Address) Host() string {
	host, _ := a["host"].(string) //nolint:errcheck // type assertion, not an error
	return host
}

// State holds the last published device state.
//
//	{"available": true, "state": "playing", "app_name": "Netflix", "app_id": "12", "is_on": true}
type State map[string]any

// Protocol represents the communication protocol for a device.
type Protocol string

// ProtocolRoku is the Roku External Control Protocol.
const ProtocolRoku Protocol = "roku"

// AllProtocols returns all valid protocol values.
func AllProtocols() []Protocol {
	return []Protocol{ProtocolRoku}
}

// DeviceType represents the specific kind of device.
type DeviceType string //nolint:revive // device.DeviceType is clearer than device.Type in calling code

// DeviceTypeMediaPlayer is a Roku player or Roku TV.
const DeviceTypeMediaPlayer DeviceType = "media_player"

// AllDeviceTypes returns all valid device types.
func AllDeviceTypes() []DeviceType {
	return []DeviceType{DeviceTypeMediaPlayer}
}

// Capability is something a device can do.
type Capability string

// Capability constants.
const (
	CapOnOff          Capability = "on_off"
	CapMediaTransport Capability = "media_transport"
	CapVolumeStep     Capability = "volume_step"
	CapSourceSelect   Capability = "source_select"
	CapRemoteKeys     Capability = "remote_keys"
)

// AllCapabilities returns all valid capability values.
func AllCapabilities() []Capability {
	return []Capability{
		CapOnOff, CapMediaTransport, CapVolumeStep, CapSourceSelect, CapRemoteKeys,
	}
}

// HealthStatus represents the device health state.
type HealthStatus string

// HealthStatus constants.
const (
	HealthStatusOnline   HealthStatus = "online"
	HealthStatusOffline  HealthStatus = "offline"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusUnknown  HealthStatus = "unknown"
)

// AllHealthStatuses returns all valid health status values.
func AllHealthStatuses() []HealthStatus {
	return []HealthStatus{
		HealthStatusOnline, HealthStatusOffline, HealthStatusDegraded, HealthStatusUnknown,
	}
}
