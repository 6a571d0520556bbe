package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-roku/internal/bridges/roku"
	"github.com/nerrad567/gray-logic-roku/internal/device"
	"github.com/nerrad567/gray-logic-roku/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-roku/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

const (
	channelStateChanged = "device.state_changed"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// knownChannels are the event channels a client may subscribe to.
var knownChannels = map[string]struct{}{
	channelStateChanged:  {},
	channelCommandResult: {},
}

// WSMessage is the envelope of every WebSocket frame in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub tracks connected WebSocket clients and fans events out to the
// clients subscribed to each channel.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient is one connected WebSocket peer.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex

	// Identity from the token presented at upgrade.
	userID string
	role   string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checking is handled by the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "user_id", client.userID, "role", client.role, "clients", count)
}

// Unregister removes a client. Only the caller that removes the client from
// the map closes its send channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	count := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "user_id", client.userID, "clients", count)
}

// Broadcast sends an event to all clients subscribed to channel. The client
// list is snapshotted so hub and client locks are never held together.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if client.isSubscribed(channel) {
			client.trySend(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// subscribeStateUpdates relays bridge state publications to WebSocket
// clients on device.state_changed, appends them to the state history and
// writes them to telemetry. The bridge itself persists the current state.
func (s *Server) subscribeStateUpdates() error {
	if s.mqtt == nil {
		return nil
	}
	topic := roku.StateSubscribeTopic()
	s.logger.Info("subscribing to state updates for WebSocket relay", "topic", topic)
	return s.mqtt.Subscribe(topic, 1, s.handleStateMessage)
}

// handleStateMessage processes one graylogic/state/roku/<id> payload.
func (s *Server) handleStateMessage(topic string, payload []byte) error {
	var msg roku.StateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warn("failed to parse state message", "topic", topic, "error", err)
		return nil
	}
	if msg.DeviceID == "" || msg.State == nil {
		s.logger.Debug("ignoring state message without device or state", "topic", topic)
		return nil
	}

	s.logger.Debug("broadcasting state to WebSocket", "topic", topic, "device_id", msg.DeviceID)
	s.hub.Broadcast(channelStateChanged, msg)

	if s.history != nil {
		err := s.history.RecordStateChange(context.Background(), msg.DeviceID, device.State(msg.State), device.StateHistorySourceMQTT)
		if err != nil {
			s.logger.Debug("state history write failed", "device_id", msg.DeviceID, "error", err)
		}
	}

	if s.telemetry != nil {
		ts := msg.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		s.telemetry.WriteMediaState(msg.DeviceID, msg.State, ts)
	}
	return nil
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection.
// The JWT is passed as ?token= because browsers cannot set headers on the
// upgrade request.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		writeUnauthorized(w, "token query parameter is required")
		return
	}
	claims, err := s.parseToken(raw)
	if err != nil {
		writeUnauthorized(w, "invalid or expired token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		userID:        claims.Subject,
		role:          claims.Role,
	}

	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump reads client frames until the connection fails, then unregisters.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(deadline)) }

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	extend() //nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "user_id", c.userID, "error", err)
			}
			return
		}
		// Application frames count as liveness too.
		extend() //nolint:errcheck // a failed deadline surfaces as a read error
		c.handleMessage(message)
	}
}

// writePump drains the send channel and pings on the configured interval.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(messageType int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write error caught below
		return c.conn.WriteMessage(messageType, data)
	}

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // best-effort close frame
				return
			}
			if err := write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming WebSocket message.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.updateSubscriptions(msg, true)
	case WSTypeUnsubscribe:
		c.updateSubscriptions(msg, false)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// updateSubscriptions adds or removes the channels named in msg.
// Unknown channels reject the whole request.
func (c *WSClient) updateSubscriptions(msg WSMessage, subscribe bool) {
	channels, err := decodeChannels(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, err.Error())
		return
	}

	c.mu.Lock()
	for _, ch := range channels {
		if subscribe {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if subscribe {
		key = "subscribed"
	}
	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{key: channels})
}

func decodeChannels(payload any) ([]string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid payload")
	}
	var sub WSSubscribePayload
	if err := json.Unmarshal(raw, &sub); err != nil || len(sub.Channels) == 0 {
		return nil, fmt.Errorf("payload must list channels")
	}
	for _, ch := range sub.Channels {
		if _, ok := knownChannels[ch]; !ok {
			return nil, fmt.Errorf("unknown channel: %s", ch)
		}
	}
	return sub.Channels, nil
}

// trySend queues data without blocking. Full buffers drop the frame and a
// send on a channel closed by a concurrent Unregister is absorbed.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on closed channel
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
