package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-roku/internal/device"
)

// maxQueryParamLen bounds path and query values echoed into lookups.
const maxQueryParamLen = 100

// handleListDevices returns every persisted device.
//
// Query parameters:
//   - health: filter by health status (online, offline, degraded, unknown)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.ListDevices(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}

	if health := r.URL.Query().Get("health"); health != "" {
		filtered := make([]device.Device, 0, len(devices))
		for _, d := range devices {
			if string(d.HealthStatus) == health {
				filtered = append(filtered, d)
			}
		}
		devices = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleDeleteDevice removes a persisted device record. A player the
// bridge still manages is seeded again the next time it is set up.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid device ID")
		return
	}

	if err := s.registry.DeleteDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetDeviceHistory returns recorded state snapshots, newest first.
func (s *Server) handleGetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeServiceUnavailable(w, "state history is not enabled")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	dev, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	entries, err := s.history.GetHistory(r.Context(), dev.ID, limit)
	if err != nil {
		writeInternalError(w, "failed to load state history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": dev.ID,
		"history":   entries,
		"count":     len(entries),
	})
}

// lookupDevice resolves the {id} path parameter, writing the error
// response itself when it fails.
func (s *Server) lookupDevice(w http.ResponseWriter, r *http.Request) (*device.Device, bool) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid device ID")
		return nil, false
	}

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return nil, false
		}
		writeInternalError(w, "failed to get device")
		return nil, false
	}
	return dev, true
}

// parseHistoryLimit parses ?limit=. Empty means the repository default;
// large values are clamped by the repository.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	return limit, nil
}
