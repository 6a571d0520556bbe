package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-roku/internal/bridges/roku"
	"github.com/nerrad567/gray-logic-roku/internal/ecp"
)

// Command result channel and sources.
const (
	channelCommandResult = "command.result"
	commandSourceAPI     = "api"

	// apiCommandTimeout bounds a command executed on behalf of an API call.
	apiCommandTimeout = 30 * time.Second
)

// EntityCommand is the body of POST /roku/entities/{id}/commands.
type EntityCommand struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// handleListEntities returns the live view of every managed player.
func (s *Server) handleListEntities(w http.ResponseWriter, _ *http.Request) {
	if s.roku == nil {
		writeServiceUnavailable(w, "roku bridge is not running")
		return
	}
	entities := s.roku.Entities()
	writeJSON(w, http.StatusOK, map[string]any{"entities": entities, "count": len(entities)})
}

// handleGetEntity returns the live view of one player.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	if s.roku == nil {
		writeServiceUnavailable(w, "roku bridge is not running")
		return
	}
	entity, ok := s.roku.Entity(chi.URLParam(r, "id"))
	if !ok {
		writeNotFound(w, "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

// handleEntityCommand validates a command and runs it in the background.
// The outcome is broadcast on the command.result WebSocket channel.
func (s *Server) handleEntityCommand(w http.ResponseWriter, r *http.Request) {
	if s.roku == nil {
		writeServiceUnavailable(w, "roku bridge is not running")
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := s.roku.Entity(id); !ok {
		writeNotFound(w, "entity not found")
		return
	}

	var body EntityCommand
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if body.Command == "" {
		writeBadRequest(w, "command field is required")
		return
	}

	cmd := roku.CommandMessage{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		DeviceID:   id,
		Command:    body.Command,
		Parameters: body.Parameters,
		Source:     commandSourceAPI,
	}
	if claims, ok := claimsFromContext(r.Context()); ok {
		cmd.UserID = claims.Subject
	}
	if err := cmd.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	go s.executeCommand(cmd)

	s.logger.Info("device command accepted",
		"device_id", id,
		"command", cmd.Command,
		"command_id", cmd.ID,
		"user_id", cmd.UserID,
	)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"command_id": cmd.ID,
		"status":     "accepted",
	})
}

// executeCommand runs cmd detached from the HTTP request and reports the result.
func (s *Server) executeCommand(cmd roku.CommandMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), apiCommandTimeout)
	defer cancel()

	result := map[string]any{
		"command_id": cmd.ID,
		"device_id":  cmd.DeviceID,
		"command":    cmd.Command,
		"status":     "completed",
	}
	if err := s.roku.Execute(ctx, cmd); err != nil {
		result["status"] = "failed"
		result["error"] = err.Error()
		if errors.Is(err, roku.ErrDeviceUnreachable) {
			s.logger.Warn("device command failed", "device_id", cmd.DeviceID, "command", cmd.Command, "error", err)
		} else {
			s.logger.Info("device command rejected", "device_id", cmd.DeviceID, "command", cmd.Command, "error", err)
		}
	}
	s.hub.Broadcast(channelCommandResult, result)
}

// handleListKeys returns the key identifiers send_command accepts.
func (s *Server) handleListKeys(w http.ResponseWriter, _ *http.Request) {
	keys := ecp.Keys()
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys, "count": len(keys)})
}

// handleRokuMetrics returns bridge counters and device availability.
func (s *Server) handleRokuMetrics(w http.ResponseWriter, _ *http.Request) {
	if s.roku == nil {
		writeServiceUnavailable(w, "roku bridge is not running")
		return
	}

	metrics := s.roku.GetMetrics()
	stats := s.registry.GetStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"bridge":            metrics,
		"devices_persisted": stats.TotalDevices,
		"devices_by_health": stats.ByHealthStatus,
		"websocket_clients": s.hub.ClientCount(),
	})
}
