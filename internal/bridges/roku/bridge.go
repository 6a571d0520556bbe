package roku

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nerrad567/gray-logic-roku/internal/ecp"
)

// Bridge operation constants.
const (
	// minTopicParts is the minimum number of parts in a valid MQTT topic.
	minTopicParts = 3

	// commandTimeout bounds a single command including a multi-key send_command.
	commandTimeout = 30 * time.Second

	// maxConcurrentPolls caps simultaneous device refreshes per poll cycle.
	maxConcurrentPolls = 8

	// healthOnline and healthOffline are the registry health values.
	healthOnline  = "online"
	healthOffline = "offline"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// DeviceRegistry provides device state and health persistence.
// This interface is satisfied by *device.Registry (via adapter in main.go).
// It is optional - if nil, the bridge operates without registry integration.
type DeviceRegistry interface {
	// SetDeviceState updates the state of a device.
	SetDeviceState(ctx context.Context, id string, state map[string]any) error

	// SetDeviceHealth updates the health status of a device.
	SetDeviceHealth(ctx context.Context, id string, status string) error

	// CreateDeviceIfNotExists seeds a device record from a refreshed player.
	// No-op if the device already exists (preserves user modifications).
	CreateDeviceIfNotExists(ctx context.Context, seed DeviceSeed) error
}

// MetricsWriter records numeric bridge measurements.
// This interface is satisfied by *influxdb.Client. It is optional.
type MetricsWriter interface {
	WriteDeviceMetric(deviceID string, measurement string, value float64)
}

// DeviceSeed holds device fields derivable from a player snapshot.
type DeviceSeed struct {
	ID           string
	Name         string
	Type         string
	Protocol     string
	Manufacturer string
	Model        string
	SWVersion    string
	Capabilities []string
	Address      map[string]string
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config is the loaded bridge configuration.
	Config *Config

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Logger is optional structured logger.
	Logger Logger

	// Registry is optional device registry for state/health persistence.
	Registry DeviceRegistry

	// ClientFactory overrides how device clients are built.
	// If nil, ECP clients are created from the config timeouts.
	ClientFactory ClientFactory

	// Discoverer overrides SSDP discovery. Only used when discovery is enabled.
	Discoverer Discoverer

	// Metrics is optional; bridge counters are written after every poll cycle.
	Metrics MetricsWriter

	// Version is reported in health messages.
	Version string
}

// Bridge runs setup, polling and the MQTT command surface for all players.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg        *Config
	mqtt       MQTTClient
	sessions   *Registry
	registry   DeviceRegistry
	discoverer Discoverer
	metrics    MetricsWriter
	health     *HealthReporter

	// Entities by device id (unique id), plus host → device id.
	entitiesMu sync.RWMutex
	players    map[string]*MediaPlayer
	remotes    map[string]*Remote
	hostToID   map[string]string
	pending    map[string]Identity

	// One command at a time per device, granted in arrival order.
	commandSlots map[string]*semaphore.Weighted

	// Last published state per device, for change detection.
	stateCache   map[string]map[string]any
	stateCacheMu sync.Mutex

	// Counters
	polls         atomic.Uint64
	pollErrors    atomic.Uint64
	commandsSent  atomic.Uint64
	commandErrors atomic.Uint64

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	factory := opts.ClientFactory
	if factory == nil {
		factory = ecpClientFactory(opts.Config)
	}

	discoverer := opts.Discoverer
	if discoverer == nil {
		discoverer = &SSDPDiscoverer{}
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:          opts.Config,
		mqtt:         opts.MQTTClient,
		sessions:     NewRegistry(factory),
		registry:     opts.Registry,
		discoverer:   discoverer,
		metrics:      opts.Metrics,
		players:      make(map[string]*MediaPlayer),
		remotes:      make(map[string]*Remote),
		hostToID:     make(map[string]string),
		pending:      make(map[string]Identity),
		commandSlots: make(map[string]*semaphore.Weighted),
		stateCache:   make(map[string]map[string]any),
		done:         make(chan struct{}),
		ctx:          ctx,
		ctxCancel:    ctxCancel,
		logger:       opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.Bridge.ID,
		Version:   version,
		Interval:  opts.Config.GetHealthInterval(),
		Publisher: opts.MQTTClient,
		Stats:     b,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// ecpClientFactory builds ECP clients using the bridge timeouts.
func ecpClientFactory(cfg *Config) ClientFactory {
	return func(id Identity) (DeviceClient, error) {
		return ecp.NewClient(ecp.Config{
			Host:             id.Host,
			Port:             id.Port,
			RequestTimeout:   cfg.GetRequestTimeout(),
			KeypressInterval: cfg.GetKeypressInterval(),
		})
	}
}

// Start begins bridge operation.
//
// Every configured player is set up concurrently. Players that are not
// ready are retried in the background every setup_retry_interval. Start
// fails only when MQTT subscriptions cannot be made.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	identities := make([]Identity, 0, len(b.cfg.Devices))
	for _, d := range b.cfg.Devices {
		identities = append(identities, d.Identity())
	}
	b.setupAll(ctx, identities)

	if b.cfg.Discovery.Enabled {
		b.runDiscovery(ctx)
	}

	commandTopic := CommandSubscribeTopic()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	requestTopic := RequestSubscribeTopic()
	if err := b.mqtt.Subscribe(requestTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logInfo("subscribed to requests", "topic", requestTopic)

	b.wg.Add(2)
	go b.pollLoop()
	go b.setupRetryLoop()

	b.health.Start(b.ctx)

	managed, available, pending := b.DeviceSummary()
	b.logInfo("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"devices", managed,
		"available", available,
		"pending", pending)

	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		// Cancel bridge context to abort in-flight refreshes and commands
		b.ctxCancel()

		b.wg.Wait()

		// Publishes "stopping" status
		b.health.Stop()

		b.logInfo("bridge stopped")
	})
}

// setupAll sets up identities concurrently. Failures are queued for retry.
func (b *Bridge) setupAll(ctx context.Context, identities []Identity) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPolls)
	for _, id := range identities {
		g.Go(func() error {
			b.setupDevice(gctx, id)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // setupDevice never returns errors
}

// setupDevice performs setup for one player and registers its entities.
// It reports whether the player is now managed.
func (b *Bridge) setupDevice(ctx context.Context, id Identity) bool {
	session, err := b.sessions.Setup(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAlreadyRegistered) {
			b.clearPending(id.Host)
			return true
		}
		b.entitiesMu.Lock()
		b.pending[id.Host] = id
		b.entitiesMu.Unlock()
		b.logWarn("device not ready, will retry",
			"host", id.Host,
			"retry_in", b.cfg.GetSetupRetryInterval().String(),
			"error", err)
		return false
	}

	player := NewMediaPlayer(session, b.getLogger())
	remote := NewRemote(session)
	deviceID := player.UniqueID()

	var powerMu sync.Mutex
	lastOn := remote.IsOn()
	remote.SetOnChange(func(r *Remote) {
		powerMu.Lock()
		defer powerMu.Unlock()
		if on := r.IsOn(); on != lastOn {
			lastOn = on
			b.logDebug("power state changed", "device_id", deviceID, "on", on)
		}
	})

	b.entitiesMu.Lock()
	delete(b.pending, id.Host)
	if existing, dup := b.players[deviceID]; dup {
		b.entitiesMu.Unlock()
		b.sessions.Unload(id.Host)
		b.logWarn("duplicate device ignored",
			"device_id", deviceID,
			"host", id.Host,
			"managed_host", existing.Session().Identity().Host)
		return false
	}
	b.players[deviceID] = player
	b.remotes[deviceID] = remote
	b.hostToID[id.Host] = deviceID
	b.commandSlots[deviceID] = semaphore.NewWeighted(1)
	b.entitiesMu.Unlock()

	b.seedRegistry(ctx, player)
	b.publishDeviceState(deviceID, true)

	b.logInfo("device set up",
		"device_id", deviceID,
		"host", id.Host,
		"name", player.Name(),
		"model", player.DeviceInfo().Model)

	return true
}

func (b *Bridge) clearPending(host string) {
	b.entitiesMu.Lock()
	delete(b.pending, host)
	b.entitiesMu.Unlock()
}

// seedRegistry creates the persisted device record for a player.
func (b *Bridge) seedRegistry(ctx context.Context, player *MediaPlayer) {
	if b.registry == nil {
		return
	}

	info := player.DeviceInfo()
	identity := player.Session().Identity()
	seed := DeviceSeed{
		ID:           player.UniqueID(),
		Name:         player.Name(),
		Type:         DeviceType,
		Protocol:     Protocol,
		Manufacturer: info.Manufacturer,
		Model:        info.Model,
		SWVersion:    info.SWVersion,
		Capabilities: deviceCapabilities,
		Address:      map[string]string{"host": identity.Host},
	}
	if err := b.registry.CreateDeviceIfNotExists(ctx, seed); err != nil {
		b.logDebug("registry seed skipped", "device", seed.ID, "reason", err.Error())
	}
}

// Unload stops managing the player at host.
func (b *Bridge) Unload(host string) bool {
	b.entitiesMu.Lock()
	deviceID, ok := b.hostToID[host]
	if ok {
		delete(b.players, deviceID)
		delete(b.remotes, deviceID)
		delete(b.commandSlots, deviceID)
		delete(b.hostToID, host)
	}
	_, wasPending := b.pending[host]
	delete(b.pending, host)
	b.entitiesMu.Unlock()

	if ok {
		b.stateCacheMu.Lock()
		delete(b.stateCache, deviceID)
		b.stateCacheMu.Unlock()
	}

	return b.sessions.Unload(host) || ok || wasPending
}

// setupRetryLoop retries players that were not ready.
func (b *Bridge) setupRetryLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.GetSetupRetryInterval())
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.retryPending()
		}
	}
}

// retryPending attempts setup of every pending player once.
func (b *Bridge) retryPending() {
	b.entitiesMu.RLock()
	ids := make([]Identity, 0, len(b.pending))
	for _, id := range b.pending {
		ids = append(ids, id)
	}
	b.entitiesMu.RUnlock()

	if len(ids) == 0 {
		return
	}
	b.setupAll(b.ctx, ids)
}

// pollLoop refreshes every polling entity on the scan interval.
func (b *Bridge) pollLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.GetScanInterval())
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.PollOnce(b.ctx)
		}
	}
}

// PollOnce runs one poll cycle: players are refreshed concurrently, each
// player at most once.
func (b *Bridge) PollOnce(ctx context.Context) {
	b.entitiesMu.RLock()
	players := make(map[string]*MediaPlayer, len(b.players))
	for id, p := range b.players {
		players[id] = p
	}
	b.entitiesMu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPolls)
	for id, player := range players {
		if !player.ShouldPoll() {
			continue
		}
		g.Go(func() error {
			b.updatePlayer(gctx, id, player)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // updatePlayer never returns errors

	b.recordStatistics()
}

// recordStatistics writes the bridge counters, tagged with the bridge id.
func (b *Bridge) recordStatistics() {
	if b.metrics == nil {
		return
	}

	stats := b.Statistics()
	managed, available, _ := b.DeviceSummary()
	bridgeID := b.cfg.Bridge.ID
	b.metrics.WriteDeviceMetric(bridgeID, "polls", float64(stats.Polls))
	b.metrics.WriteDeviceMetric(bridgeID, "poll_errors", float64(stats.PollErrors))
	b.metrics.WriteDeviceMetric(bridgeID, "commands_sent", float64(stats.CommandsSent))
	b.metrics.WriteDeviceMetric(bridgeID, "command_errors", float64(stats.CommandErrors))
	b.metrics.WriteDeviceMetric(bridgeID, "devices_managed", float64(managed))
	b.metrics.WriteDeviceMetric(bridgeID, "devices_available", float64(available))
}

// updatePlayer refreshes one player and publishes the outcome.
func (b *Bridge) updatePlayer(ctx context.Context, deviceID string, player *MediaPlayer) {
	wasAvailable := player.Available()

	player.Update(ctx)
	b.polls.Add(1)

	available := player.Available()
	if !available {
		b.pollErrors.Add(1)
	}

	switch {
	case wasAvailable && !available:
		b.logWarn("device unavailable",
			"device_id", deviceID,
			"host", player.Session().Identity().Host,
			"error", player.Session().LastError())
	case !wasAvailable && available:
		b.logInfo("device available again",
			"device_id", deviceID,
			"host", player.Session().Identity().Host)
	}

	b.publishDeviceState(deviceID, false)
}

// DeviceState returns the flattened state of a device as published on MQTT.
func (b *Bridge) DeviceState(deviceID string) (map[string]any, error) {
	b.entitiesMu.RLock()
	player, ok := b.players[deviceID]
	remote := b.remotes[deviceID]
	b.entitiesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	return buildState(player, remote), nil
}

// buildState flattens media player and remote views into one state map.
func buildState(player *MediaPlayer, remote *Remote) map[string]any {
	snap := player.Snapshot()
	state := map[string]any{
		"available":          snap.Available,
		"state":              string(snap.State),
		"app_name":           snap.AppName,
		"app_id":             snap.AppID,
		"source":             snap.Source,
		"source_list":        snap.SourceList,
		"media_content_type": snap.MediaContentType,
		"media_image_url":    snap.MediaImageURL,
		"supported_features": uint32(snap.SupportedFeatures),
	}
	if remote != nil {
		state["is_on"] = remote.IsOn()
	}
	return state
}

// publishDeviceState publishes the device state if it changed (or force is
// set) and persists it to the device registry.
func (b *Bridge) publishDeviceState(deviceID string, force bool) {
	b.entitiesMu.RLock()
	player, ok := b.players[deviceID]
	remote := b.remotes[deviceID]
	b.entitiesMu.RUnlock()
	if !ok {
		return
	}

	state := buildState(player, remote)
	available := player.Available()

	if !b.stateChanged(deviceID, state) && !force {
		return
	}

	host := player.Session().Identity().Host
	msg := NewStateMessage(deviceID, host, state)
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}

	if err := b.mqtt.Publish(StateTopic(deviceID), payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
	}

	if b.registry == nil {
		return
	}

	health := healthOnline
	if !available {
		health = healthOffline
	}
	if err := b.registry.SetDeviceHealth(b.ctx, deviceID, health); err != nil {
		b.logDebug("registry health update skipped", "device", deviceID, "reason", err.Error())
	}
	if available {
		if err := b.registry.SetDeviceState(b.ctx, deviceID, state); err != nil {
			b.logDebug("registry state update skipped", "device", deviceID, "reason", err.Error())
		}
	}
}

// stateChanged records state and reports whether it differs from the last
// published value.
func (b *Bridge) stateChanged(deviceID string, state map[string]any) bool {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()

	if prev, ok := b.stateCache[deviceID]; ok && reflect.DeepEqual(prev, state) {
		return false
	}
	b.stateCache[deviceID] = state
	return true
}

// handleMQTTMessage routes incoming MQTT messages to appropriate handlers.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}

	switch parts[1] {
	case "command":
		b.handleCommand(parts, payload)
	case "request":
		b.handleRequest(payload)
	default:
		b.logError("unknown message type", fmt.Errorf("type: %s", parts[1]))
	}
}

// handleCommand processes a command message from Core.
func (b *Bridge) handleCommand(topicParts []string, payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return
	}
	if cmd.DeviceID == "" && len(topicParts) > minTopicParts {
		cmd.DeviceID = DecodeTopicSegment(topicParts[minTopicParts])
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command)

	host := b.hostFor(cmd.DeviceID)

	if err := b.Execute(b.ctx, cmd); err != nil {
		code := errorCode(err)
		b.publishAck(NewAckError(cmd, host, code, err.Error()))
		b.logError("command failed", fmt.Errorf("code=%s: %w", code, err))
		return
	}

	b.publishAck(NewAckMessage(cmd, AckAccepted, host))
}

func (b *Bridge) hostFor(deviceID string) string {
	b.entitiesMu.RLock()
	defer b.entitiesMu.RUnlock()
	if p, ok := b.players[deviceID]; ok {
		return p.Session().Identity().Host
	}
	return ""
}

// errorCode maps an Execute error to an ack error code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrDeviceNotFound):
		return ErrCodeNotConfigured
	case errors.Is(err, ErrInvalidCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrInvalidParameters):
		return ErrCodeInvalidParameters
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, ErrDeviceUnreachable):
		return ErrCodeDeviceUnreachable
	default:
		return ErrCodeBridgeError
	}
}

// Execute runs a command against a player. Successful media player
// commands are followed by a refresh so the new state is published
// immediately; remote commands are not.
//
// Commands for the same device run one at a time in arrival order; the
// follow-up refresh belongs to the command. Time spent waiting counts
// towards the command timeout.
func (b *Bridge) Execute(ctx context.Context, cmd CommandMessage) error {
	b.entitiesMu.RLock()
	player, ok := b.players[cmd.DeviceID]
	remote := b.remotes[cmd.DeviceID]
	slot := b.commandSlots[cmd.DeviceID]
	b.entitiesMu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, cmd.DeviceID)
	}
	if err := cmd.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := slot.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for %s: %w", cmd.DeviceID, err)
	}
	defer slot.Release(1)

	refresh := true
	var err error

	switch cmd.Command {
	case CommandTurnOn:
		err = player.TurnOn(ctx)
	case CommandTurnOff:
		err = player.TurnOff(ctx)
	case CommandPlayPause:
		err = player.PlayPause(ctx)
	case CommandPrevious:
		err = player.Previous(ctx)
	case CommandNext:
		err = player.Next(ctx)
	case CommandMute:
		mute, _ := cmd.Parameters["mute"].(bool) //nolint:errcheck // toggle ignores the value
		err = player.MuteVolume(ctx, mute)
	case CommandVolumeUp:
		err = player.VolumeUp(ctx)
	case CommandVolumeDown:
		err = player.VolumeDown(ctx)
	case CommandSelectSource:
		source, perr := stringParam(cmd.Parameters, "source")
		if perr != nil {
			return perr
		}
		err = player.SelectSource(ctx, source)
	case CommandPlayMedia:
		mediaType, perr := stringParam(cmd.Parameters, "media_type")
		if perr != nil {
			return perr
		}
		mediaID, perr := stringParam(cmd.Parameters, "media_id")
		if perr != nil {
			return perr
		}
		err = player.PlayMedia(ctx, mediaType, mediaID)
	case CommandSendCommand:
		refresh = false
		commands, perr := stringListParam(cmd.Parameters, "commands")
		if perr != nil {
			return perr
		}
		repeat, perr := repeatParam(cmd.Parameters)
		if perr != nil {
			return perr
		}
		err = remote.SendCommand(ctx, commands, repeat)
	case CommandRefresh:
		b.updatePlayer(ctx, cmd.DeviceID, player)
		if !player.Available() {
			return fmt.Errorf("%w: %s", ErrDeviceUnreachable, player.Session().Identity().Host)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidCommand, cmd.Command)
	}

	b.commandsSent.Add(1)
	if err != nil {
		b.commandErrors.Add(1)
		return err
	}

	if refresh {
		b.updatePlayer(ctx, cmd.DeviceID, player)
	}
	return nil
}

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidParameters, key)
	}
	return v, nil
}

func stringListParam(params map[string]any, key string) ([]string, error) {
	switch v := params[key].(type) {
	case []string:
		if len(v) > 0 {
			return v, nil
		}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must contain strings", ErrInvalidParameters, key)
			}
			out = append(out, s)
		}
		if len(out) > 0 {
			return out, nil
		}
	case string:
		if v != "" {
			return []string{v}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s is required", ErrInvalidParameters, key)
}

// repeatParam reads repeat_count. Missing or non-positive values mean one
// pass; values above MaxRepeatCount are rejected.
func repeatParam(params map[string]any) (int, error) {
	var n float64
	switch v := params["repeat_count"].(type) {
	case nil:
		return DefaultRepeatCount, nil
	case float64:
		n = v
	case int:
		n = float64(v)
	default:
		return 0, fmt.Errorf("%w: repeat_count must be a number", ErrInvalidParameters)
	}
	if n > MaxRepeatCount {
		return 0, fmt.Errorf("%w: repeat_count must be at most %d", ErrInvalidParameters, MaxRepeatCount)
	}
	if n < 1 {
		return DefaultRepeatCount, nil
	}
	return int(n), nil
}

// publishAck publishes a command acknowledgment.
func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}

	if err := b.mqtt.Publish(AckTopic(ack.DeviceID), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// handleRequest processes a request message from Core.
func (b *Bridge) handleRequest(payload []byte) {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logError("failed to parse request", err)
		return
	}

	b.logInfo("received request",
		"request_id", req.RequestID,
		"action", req.Action)

	var resp ResponseMessage
	switch req.Action {
	case "read_state":
		resp = b.handleReadState(req)
	case "read_all":
		resp = b.handleReadAll(req)
	default:
		resp = errorResponse(req, ErrCodeInvalidCommand, fmt.Sprintf("unknown action: %s", req.Action))
	}

	respPayload, err := json.Marshal(resp)
	if err != nil {
		b.logError("failed to marshal response", err)
		return
	}

	if err := b.mqtt.Publish(ResponseTopic(req.RequestID), respPayload, 1, false); err != nil {
		b.logError("failed to publish response", err)
	}
}

func errorResponse(req RequestMessage, code, message string) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   false,
		Error:     &ResponseError{Code: code, Message: message},
	}
}

// handleReadState refreshes one player and returns its state.
func (b *Bridge) handleReadState(req RequestMessage) ResponseMessage {
	if req.DeviceID == "" {
		return errorResponse(req, ErrCodeInvalidParameters, "device_id is required")
	}

	b.entitiesMu.RLock()
	player, ok := b.players[req.DeviceID]
	b.entitiesMu.RUnlock()
	if !ok {
		return errorResponse(req, ErrCodeNotConfigured, fmt.Sprintf("device %s not configured", req.DeviceID))
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()
	b.updatePlayer(ctx, req.DeviceID, player)

	state, err := b.DeviceState(req.DeviceID)
	if err != nil {
		return errorResponse(req, ErrCodeNotConfigured, err.Error())
	}

	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data: map[string]any{
			"device_id": req.DeviceID,
			"state":     state,
		},
	}
}

// handleReadAll returns the cached state of every player without I/O.
func (b *Bridge) handleReadAll(req RequestMessage) ResponseMessage {
	devices := make(map[string]any)
	for _, e := range b.Entities() {
		devices[e.DeviceID] = e.State
	}

	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data: map[string]any{
			"devices": devices,
			"count":   len(devices),
		},
	}
}

// runDiscovery performs one SSDP pass, announces results and optionally
// sets up unconfigured players.
func (b *Bridge) runDiscovery(ctx context.Context) {
	found, err := b.discoverer.Discover(ctx, b.cfg.GetDiscoveryTimeout())
	if err != nil {
		b.logError("discovery failed", err)
		return
	}

	configured := make(map[string]bool, len(b.cfg.Devices))
	for _, d := range b.cfg.Devices {
		configured[d.Host] = true
	}

	msg := DiscoveryMessage{
		Timestamp: time.Now().UTC(),
		Bridge:    b.cfg.Bridge.ID,
		Devices:   make([]DiscoveredDevice, 0, len(found)),
	}
	var toAdd []Identity
	for _, id := range found {
		msg.Devices = append(msg.Devices, DiscoveredDevice{
			Protocol:      Protocol,
			Address:       id.Host,
			Type:          DeviceType,
			Capabilities:  deviceCapabilities,
			Manufacturer:  DefaultManufacturer,
			Serial:        id.Serial,
			SuggestedName: id.Name,
			Configured:    configured[id.Host],
		})
		if !configured[id.Host] && b.cfg.Discovery.AutoAdd {
			toAdd = append(toAdd, id)
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal discovery", err)
		return
	}
	if err := b.mqtt.Publish(DiscoveryTopic(), payload, 1, false); err != nil {
		b.logError("failed to publish discovery", err)
	}
	b.logInfo("discovery complete", "found", len(found), "added", len(toAdd))

	if len(toAdd) > 0 {
		b.setupAll(ctx, toAdd)
	}
}

// EntityState is the API view of one managed player.
type EntityState struct {
	DeviceID    string           `json:"device_id"`
	Name        string           `json:"name"`
	Host        string           `json:"host"`
	DeviceInfo  DeviceInfo       `json:"device_info"`
	MediaPlayer MediaPlayerState `json:"media_player"`
	Remote      RemoteState      `json:"remote"`
	LastUpdate  *time.Time       `json:"last_update,omitempty"`
	State       map[string]any   `json:"state"`
}

// Entities returns the state of every managed player ordered by device id.
func (b *Bridge) Entities() []EntityState {
	b.entitiesMu.RLock()
	ids := make([]string, 0, len(b.players))
	for id := range b.players {
		ids = append(ids, id)
	}
	b.entitiesMu.RUnlock()
	sort.Strings(ids)

	out := make([]EntityState, 0, len(ids))
	for _, id := range ids {
		if e, ok := b.Entity(id); ok {
			out = append(out, e)
		}
	}
	return out
}

// Entity returns the state of one managed player.
func (b *Bridge) Entity(deviceID string) (EntityState, bool) {
	b.entitiesMu.RLock()
	player, ok := b.players[deviceID]
	remote := b.remotes[deviceID]
	b.entitiesMu.RUnlock()
	if !ok {
		return EntityState{}, false
	}

	e := EntityState{
		DeviceID:    deviceID,
		Name:        player.Name(),
		Host:        player.Session().Identity().Host,
		DeviceInfo:  player.DeviceInfo(),
		MediaPlayer: player.Snapshot(),
		Remote:      remote.Snapshot(),
		State:       buildState(player, remote),
	}
	if t := player.Session().LastUpdate(); !t.IsZero() {
		e.LastUpdate = &t
	}
	return e, true
}

// DeviceSummary implements StatsProvider.
func (b *Bridge) DeviceSummary() (managed, available, pending int) {
	b.entitiesMu.RLock()
	defer b.entitiesMu.RUnlock()

	for _, p := range b.players {
		if p.Available() {
			available++
		}
	}
	return len(b.players), available, len(b.pending)
}

// Statistics implements StatsProvider.
func (b *Bridge) Statistics() BridgeStatistics {
	return BridgeStatistics{
		Polls:         b.polls.Load(),
		PollErrors:    b.pollErrors.Load(),
		CommandsSent:  b.commandsSent.Load(),
		CommandErrors: b.commandErrors.Load(),
	}
}

// BridgeMetrics contains metrics data for the API metrics endpoint.
type BridgeMetrics struct {
	Connected        bool             `json:"connected"`
	Status           string           `json:"status"`
	DevicesManaged   int              `json:"devices_managed"`
	DevicesAvailable int              `json:"devices_available"`
	DevicesPending   int              `json:"devices_pending"`
	Statistics       BridgeStatistics `json:"statistics"`
}

// GetMetrics returns current bridge metrics for the API metrics endpoint.
func (b *Bridge) GetMetrics() BridgeMetrics {
	managed, available, pending := b.DeviceSummary()
	status, _ := b.health.determineStatus()
	return BridgeMetrics{
		Connected:        b.mqtt.IsConnected(),
		Status:           string(status),
		DevicesManaged:   managed,
		DevicesAvailable: available,
		DevicesPending:   pending,
		Statistics:       b.Statistics(),
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
