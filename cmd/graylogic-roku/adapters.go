package main

import (
	"context"

	"github.com/nerrad567/gray-logic-roku/internal/bridges/roku"
	"github.com/nerrad567/gray-logic-roku/internal/device"
	"github.com/nerrad567/gray-logic-roku/internal/infrastructure/mqtt"
)

// mqttPublishSubscriber is the part of *mqtt.Client the bridge needs.
type mqttPublishSubscriber interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to roku.MQTTClient.
// Bridge handlers do not return errors; the infrastructure client expects
// them to.
type mqttBridgeAdapter struct {
	client mqttPublishSubscriber
}

func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// registryAdapter adapts *device.Registry to roku.DeviceRegistry.
type registryAdapter struct {
	registry *device.Registry
}

func (a *registryAdapter) SetDeviceState(ctx context.Context, id string, state map[string]any) error {
	return a.registry.SetDeviceState(ctx, id, device.State(state))
}

func (a *registryAdapter) SetDeviceHealth(ctx context.Context, id string, status string) error {
	return a.registry.SetDeviceHealth(ctx, id, device.HealthStatus(status))
}

func (a *registryAdapter) CreateDeviceIfNotExists(ctx context.Context, seed roku.DeviceSeed) error {
	_, err := a.registry.CreateDeviceIfNotExists(ctx, seedToDevice(seed))
	return err
}

// seedToDevice converts a bridge seed to a registry device.
func seedToDevice(seed roku.DeviceSeed) *device.Device {
	dev := &device.Device{
		ID:           seed.ID,
		Name:         seed.Name,
		Type:         device.DeviceType(seed.Type),
		Protocol:     device.Protocol(seed.Protocol),
		Address:      make(device.Address, len(seed.Address)),
		Capabilities: make([]device.Capability, 0, len(seed.Capabilities)),
		Manufacturer: optional(seed.Manufacturer),
		Model:        optional(seed.Model),
		SWVersion:    optional(seed.SWVersion),
	}
	for k, v := range seed.Address {
		dev.Address[k] = v
	}
	for _, c := range seed.Capabilities {
		dev.Capabilities = append(dev.Capabilities, device.Capability(c))
	}
	return dev
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
