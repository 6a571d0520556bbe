package roku

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-roku/internal/ecp"
)

// MQTT message types for communication between Gray Logic Core and the Roku bridge.
// They follow the same bridge interface as every other protocol bridge.

// CommandMessage is sent from Core to Bridge to execute a device command.
// Topic: graylogic/command/roku/{device_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the Gray Logic device identifier (the player serial number).
	DeviceID string `json:"device_id"`

	// Command is the command name (e.g., "turn_on", "select_source", "send_command").
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"source": "Netflix"} for select_source
	//   {"media_type": "channel", "media_id": "2.1"} for play_media
	//   {"commands": ["up", "select"], "repeat_count": 2} for send_command
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	// Values: "api", "automation", "voice", "scene"
	Source string `json:"source"`

	// UserID is the user who triggered the command (if applicable).
	UserID string `json:"user_id,omitempty"`
}

// Command names accepted by the bridge.
const (
	CommandTurnOn       = "turn_on"
	CommandTurnOff      = "turn_off"
	CommandPlayPause    = "play_pause"
	CommandPrevious     = "previous"
	CommandNext         = "next"
	CommandMute         = "mute"
	CommandVolumeUp     = "volume_up"
	CommandVolumeDown   = "volume_down"
	CommandSelectSource = "select_source"
	CommandPlayMedia    = "play_media"
	CommandSendCommand  = "send_command"
	CommandRefresh      = "refresh"
)

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was received and sent to the device.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the device did not respond within the timeout.
	AckTimeout AckStatus = "timeout"
)

// AckMessage is sent from Bridge to Core to acknowledge a command.
// Topic: graylogic/ack/roku/{device_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`

	// Address is the player host.
	Address string `json:"address"`

	// Error contains details if status is "failed" or "timeout".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage is sent from Bridge to Core when device state changes.
// Topic: graylogic/state/roku/{device_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`

	// State is the flattened media player and remote view of the device:
	//   {"available": true, "state": "playing", "app_name": "Netflix",
	//    "app_id": "12", "source_list": [...], "is_on": true, ...}
	State map[string]any `json:"state"`

	Protocol string `json:"protocol"`
	Address  string `json:"address"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is operating with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the bridge is not connected (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is sent from Bridge to Core to report operational status.
// Topic: graylogic/health/roku
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	// Statistics contains operational metrics.
	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// DevicesManaged is the number of players with an active session.
	DevicesManaged int `json:"devices_managed"`

	// DevicesAvailable is the number of players whose last refresh succeeded.
	DevicesAvailable int `json:"devices_available"`

	// DevicesPending is the number of configured players still awaiting setup.
	DevicesPending int `json:"devices_pending,omitempty"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// BridgeStatistics contains operational metrics.
type BridgeStatistics struct {
	Polls         uint64 `json:"polls"`
	PollErrors    uint64 `json:"poll_errors"`
	CommandsSent  uint64 `json:"commands_sent"`
	CommandErrors uint64 `json:"command_errors"`
}

// RequestMessage is sent from Core to Bridge for request/response operations.
// Topic: graylogic/request/roku/{request_id}
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	// Action is the requested operation.
	// Values: "read_state", "read_all"
	Action string `json:"action"`

	// DeviceID is the target device (for device-specific actions).
	DeviceID string `json:"device_id,omitempty"`

	Parameters map[string]any `json:"parameters,omitempty"`
}

// ResponseMessage is sent from Bridge to Core in response to a request.
// Topic: graylogic/response/roku/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DiscoveryMessage is sent from Bridge to Core to announce discovered players.
// Topic: graylogic/discovery/roku
type DiscoveryMessage struct {
	Timestamp time.Time          `json:"timestamp"`
	Bridge    string             `json:"bridge"`
	Devices   []DiscoveredDevice `json:"devices"`
}

// DiscoveredDevice represents a player found during SSDP discovery.
type DiscoveredDevice struct {
	Protocol      string   `json:"protocol"`
	Address       string   `json:"address"`
	Type          string   `json:"type"`
	Capabilities  []string `json:"capabilities"`
	Manufacturer  string   `json:"manufacturer,omitempty"`
	Serial        string   `json:"serial,omitempty"`
	SuggestedName string   `json:"suggested_name,omitempty"`
	Configured    bool     `json:"configured"`
}

// DeviceType is the Gray Logic device type of every player.
const DeviceType = "media_player"

// deviceCapabilities lists what a player can do, for discovery and seeding.
var deviceCapabilities = []string{"on_off", "media_transport", "volume_step", "source_select", "remote_keys"}

// MarshalJSON marshals a CommandMessage to JSON.
func (m *CommandMessage) MarshalJSON() ([]byte, error) {
	type Alias CommandMessage
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(m),
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON unmarshals a CommandMessage from JSON.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// Validate checks the command name and its required parameters without
// contacting the device.
func (m *CommandMessage) Validate() error {
	switch m.Command {
	case CommandTurnOn, CommandTurnOff, CommandPlayPause, CommandPrevious, CommandNext,
		CommandMute, CommandVolumeUp, CommandVolumeDown, CommandRefresh:
		return nil
	case CommandSelectSource:
		_, err := stringParam(m.Parameters, "source")
		return err
	case CommandPlayMedia:
		if _, err := stringParam(m.Parameters, "media_type"); err != nil {
			return err
		}
		_, err := stringParam(m.Parameters, "media_id")
		return err
	case CommandSendCommand:
		keys, err := stringListParam(m.Parameters, "commands")
		if err != nil {
			return err
		}
		for _, key := range keys {
			if !ecp.ValidKey(key) {
				return fmt.Errorf("%w: unknown key %q", ErrInvalidParameters, key)
			}
		}
		_, err = repeatParam(m.Parameters)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCommand, m.Command)
	}
}

// NewAckMessage creates an acknowledgment message for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus, address string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    status,
		Protocol:  Protocol,
		Address:   address,
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, address, code, message string) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	ack := NewAckMessage(cmd, status, address)
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// NewStateMessage creates a state message for a device.
func NewStateMessage(deviceID, address string, state map[string]any) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		State:     state,
		Protocol:  Protocol,
		Address:   address,
	}
}

// NewLWTMessage creates a Last Will and Testament message for MQTT.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// Topic helpers

const (
	// TopicPrefix is the base topic for all Gray Logic messages.
	TopicPrefix = "graylogic"
)

// CommandTopic returns the MQTT topic for commands to a device.
// Example: graylogic/command/roku/1GU48T017973
func CommandTopic(deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, Protocol, EncodeTopicSegment(deviceID))
}

// AckTopic returns the MQTT topic for command acknowledgments.
func AckTopic(deviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, Protocol, EncodeTopicSegment(deviceID))
}

// StateTopic returns the MQTT topic for state updates.
func StateTopic(deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, Protocol, EncodeTopicSegment(deviceID))
}

// HealthTopic returns the MQTT topic for health status.
func HealthTopic() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, Protocol)
}

// RequestTopic returns the MQTT topic for requests.
func RequestTopic(requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, Protocol, requestID)
}

// ResponseTopic returns the MQTT topic for responses.
func ResponseTopic(requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, Protocol, requestID)
}

// DiscoveryTopic returns the MQTT topic for device discovery.
func DiscoveryTopic() string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefix, Protocol)
}

// CommandSubscribeTopic returns the subscription pattern for all commands.
func CommandSubscribeTopic() string {
	return fmt.Sprintf("%s/command/%s/#", TopicPrefix, Protocol)
}

// RequestSubscribeTopic returns the subscription pattern for all requests.
func RequestSubscribeTopic() string {
	return fmt.Sprintf("%s/request/%s/#", TopicPrefix, Protocol)
}

// StateSubscribeTopic returns the subscription pattern for all state updates.
func StateSubscribeTopic() string {
	return fmt.Sprintf("%s/state/%s/+", TopicPrefix, Protocol)
}

var (
	topicEncoder = strings.NewReplacer("%", "%25", "/", "%2F", "+", "%2B", "#", "%23")
	topicDecoder = strings.NewReplacer("%25", "%", "%2F", "/", "%2B", "+", "%23", "#")
)

// EncodeTopicSegment escapes an identifier for use as one MQTT topic level.
// Example: "living/room" → "living%2Froom"
func EncodeTopicSegment(s string) string {
	return topicEncoder.Replace(s)
}

// DecodeTopicSegment reverses EncodeTopicSegment.
func DecodeTopicSegment(s string) string {
	return topicDecoder.Replace(s)
}
