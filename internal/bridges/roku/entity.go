package roku

import (
	"github.com/nerrad567/gray-logic-roku/internal/ecp"
)

// Protocol is the protocol identifier used in MQTT topics and device records.
const Protocol = "roku"

// DefaultManufacturer is reported when a device has not been refreshed yet.
const DefaultManufacturer = "Roku"

// DeviceInfo is the device descriptor shared by every entity of a device.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// Entity is the host-facing capability set common to all adapters.
type Entity interface {
	// Name is the display name of the entity.
	Name() string

	// UniqueID is stable across restarts (the device serial number).
	UniqueID() string

	// DeviceInfo describes the physical device behind the entity.
	DeviceInfo() DeviceInfo

	// ShouldPoll reports whether the scheduler must call Update periodically.
	ShouldPoll() bool

	// Available reports whether the last refresh of the device succeeded.
	Available() bool

	// Session returns the owning device session.
	Session() *Session
}

// baseEntity implements the identity part of Entity on top of a Session.
type baseEntity struct {
	session *Session
}

func (e baseEntity) Session() *Session {
	return e.session
}

func (e baseEntity) Available() bool {
	return e.session.Available()
}

func (e baseEntity) info() *ecp.Info {
	if dev := e.session.Current(); dev != nil {
		return &dev.Info
	}
	return nil
}

func (e baseEntity) Name() string {
	if info := e.info(); info != nil && info.Name != "" {
		return info.Name
	}
	if id := e.session.Identity(); id.Name != "" {
		return id.Name
	}
	return e.session.Identity().Host
}

func (e baseEntity) UniqueID() string {
	if info := e.info(); info != nil && info.SerialNumber != "" {
		return info.SerialNumber
	}
	if id := e.session.Identity(); id.Serial != "" {
		return id.Serial
	}
	return e.session.Identity().Host
}

func (e baseEntity) DeviceInfo() DeviceInfo {
	di := DeviceInfo{
		Identifiers:  []string{Protocol + ":" + e.UniqueID()},
		Name:         e.Name(),
		Manufacturer: DefaultManufacturer,
	}
	if info := e.info(); info != nil {
		if info.Brand != "" {
			di.Manufacturer = info.Brand
		}
		di.Model = info.ModelName
		di.SWVersion = info.SoftwareVersion
	}
	return di
}
