package device

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation limits.
const (
	maxIDLength       = 100
	maxNameLength     = 100
	maxAddressKeys    = 20
	maxStateKeys      = 100
	maxCapabilities   = 20
	maxStringValueLen = 1024
)

var (
	validProtocols    = toSet(AllProtocols())
	validDeviceTypes  = toSet(AllDeviceTypes())
	validCapabilities = toSet(AllCapabilities())
	validHealthStatus = toSet(AllHealthStatuses())
)

func toSet[T comparable](values []T) map[T]struct{} {
	set := make(map[T]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// ValidateDevice returns the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if err := ValidateID(d.ID); err != nil {
		return err
	}
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	if _, ok := validProtocols[d.Protocol]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidProtocol, d.Protocol)
	}
	if _, ok := validDeviceTypes[d.Type]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidDeviceType, d.Type)
	}

	if len(d.Capabilities) > maxCapabilities {
		return fmt.Errorf("%w: too many capabilities (%d > %d)", ErrInvalidCapability, len(d.Capabilities), maxCapabilities)
	}
	for _, c := range d.Capabilities {
		if _, ok := validCapabilities[c]; !ok {
			return fmt.Errorf("%w: %q", ErrInvalidCapability, c)
		}
	}

	if d.HealthStatus != "" {
		if _, ok := validHealthStatus[d.HealthStatus]; !ok {
			return fmt.Errorf("%w: %q", ErrInvalidHealth, d.HealthStatus)
		}
	}

	if err := ValidateAddress(d.Protocol, d.Address); err != nil {
		return err
	}
	return ValidateState(d.State)
}

// ValidateID checks an ID is non-empty, bounded and contains no MQTT
// wildcard or separator characters.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidID)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidID, maxIDLength)
	}
	if strings.ContainsAny(id, "/+#") {
		return fmt.Errorf("%w: %q contains a topic separator or wildcard", ErrInvalidID, id)
	}
	return nil
}

// ValidateName checks a device name is non-empty and bounded.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidName)
	}
	if len(trimmed) > maxNameLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateAddress checks the protocol-specific address. Roku devices need
// a host.
func ValidateAddress(protocol Protocol, addr Address) error {
	if len(addr) > maxAddressKeys {
		return fmt.Errorf("%w: too many keys (%d > %d)", ErrInvalidAddress, len(addr), maxAddressKeys)
	}
	if protocol == ProtocolRoku && addr.Host() == "" {
		return fmt.Errorf("%w: roku address requires host", ErrInvalidAddress)
	}
	return nil
}

// ValidateState bounds the size of a state map.
func ValidateState(state State) error {
	if len(state) > maxStateKeys {
		return fmt.Errorf("%w: too many keys (%d > %d)", ErrInvalidState, len(state), maxStateKeys)
	}
	for k, v := range state {
		if s, ok := v.(string); ok && len(s) > maxStringValueLen {
			return fmt.Errorf("%w: value for %q exceeds %d characters", ErrInvalidState, k, maxStringValueLen)
		}
	}
	return nil
}

// GenerateID returns a new random device ID for devices with no natural
// identifier.
func GenerateID() string {
	return uuid.NewString()
}
