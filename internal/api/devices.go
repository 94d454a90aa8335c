package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumenhome/lumen-core/internal/command"
	"github.com/lumenhome/lumen-core/internal/device"
)

// deviceResponse wraps a device record with its computed online flag.
// Online is derived at read time from last_seen and the staleness
// threshold, never stored.
type deviceResponse struct {
	device.Device
	State  string `json:"state"`
	Online bool   `json:"online"`
}

func (s *Server) toDeviceResponse(d device.Device, now time.Time) deviceResponse {
	online := d.OnlineAt(now, s.staleness)
	state := d.StateString()
	if !online {
		state = device.StateOffline
	}
	return deviceResponse{
		Device: d,
		State:  state,
		Online: online,
	}
}

// createDeviceRequest is the request body for POST /devices.
type createDeviceRequest struct {
	DeviceID    string `json:"device_id"`
	DisplayName string `json:"display_name"`
	OwnerID     string `json:"owner_id"`
}

// renameDeviceRequest is the request body for PATCH /devices/{id}.
type renameDeviceRequest struct {
	DisplayName string `json:"display_name"`
}

// commandRequest is the request body for POST /devices/command.
type commandRequest struct {
	DeviceID   string  `json:"device_id"`
	State      *string `json:"state"`
	Mode       *string `json:"mode"`
	Brightness *int    `json:"brightness"`
}

// handleListDevices returns all devices, with an optional owner filter.
//
// Query parameters:
//   - owner_id: filter by owning user
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		devices []device.Device
		err     error
	)
	if ownerID := r.URL.Query().Get("owner_id"); ownerID != "" {
		devices, err = s.devices.ListByOwner(ctx, ownerID)
	} else {
		devices, err = s.devices.List(ctx)
	}
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}

	now := time.Now()
	out := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, s.toDeviceResponse(d, now))
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": out, "count": len(out)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, s.toDeviceResponse(*dev, time.Now()))
}

// handleCreateDevice registers a new device record.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev := device.Device{
		DeviceID:    req.DeviceID,
		DisplayName: req.DisplayName,
		OwnerID:     req.OwnerID,
		Mode:        device.ModeManual,
	}
	if err := s.devices.Create(r.Context(), &dev); err != nil {
		switch {
		case errors.Is(err, device.ErrInvalidDevice):
			writeValidationError(w, err.Error())
		case errors.Is(err, device.ErrDeviceExists):
			writeConflict(w, "device already exists")
		default:
			writeInternalError(w, "failed to create device")
		}
		return
	}

	writeJSON(w, http.StatusCreated, s.toDeviceResponse(dev, time.Now()))
}

// handleRenameDevice updates a device's display name.
func (s *Server) handleRenameDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req renameDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DisplayName == "" {
		writeValidationError(w, "display_name is required")
		return
	}

	if err := s.devices.Rename(r.Context(), id, req.DisplayName); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to rename device")
		return
	}

	dev, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, s.toDeviceResponse(*dev, time.Now()))
}

// handleDeleteDevice removes a device record.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.devices.Delete(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCommand publishes a user command toward a device.
//
// The command travels fire-and-forget over MQTT; the authoritative state
// only changes when the device reports back on its state topic, so the
// response confirms acceptance, not application.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeValidationError(w, "device_id is required")
		return
	}

	dev, err := s.devices.GetByID(r.Context(), req.DeviceID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to look up device")
		return
	}

	result, err := s.dispatcher.Submit(r.Context(), dev.OwnerID, dev.DeviceID, req.State, req.Mode, req.Brightness)
	if err != nil {
		switch {
		case errors.Is(err, command.ErrValidation):
			writeValidationError(w, err.Error())
		case errors.Is(err, command.ErrPublish):
			writeBadGateway(w, "failed to publish command")
		default:
			writeInternalError(w, "failed to dispatch command")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "accepted",
		"topic":  result.Topic,
	})
}
