package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumenhome/lumen-core/internal/schedule"
)

// scheduleRequest is the request body for creating or updating a schedule.
type scheduleRequest struct {
	DeviceID  string `json:"device_id"`
	OwnerID   string `json:"owner_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Active    *bool  `json:"active"`
}

// handleListSchedules returns all schedules, with an optional owner filter.
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		schedules []schedule.Schedule
		err       error
	)
	if ownerID := r.URL.Query().Get("owner_id"); ownerID != "" {
		schedules, err = s.schedules.ListByOwner(ctx, ownerID)
	} else {
		schedules, err = s.schedules.List(ctx)
	}
	if err != nil {
		writeInternalError(w, "failed to list schedules")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"schedules": schedules, "count": len(schedules)})
}

// handleGetSchedule returns a single schedule by ID.
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sched, err := s.schedules.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			writeNotFound(w, "schedule not found")
			return
		}
		writeInternalError(w, "failed to get schedule")
		return
	}

	writeJSON(w, http.StatusOK, sched)
}

// handleCreateSchedule creates a new on/off schedule for a device.
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	sched := schedule.Schedule{
		DeviceID:  req.DeviceID,
		OwnerID:   req.OwnerID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Active:    true,
	}
	if req.Active != nil {
		sched.Active = *req.Active
	}

	if err := s.schedules.Create(r.Context(), &sched); err != nil {
		if errors.Is(err, schedule.ErrInvalidSchedule) {
			writeValidationError(w, err.Error())
			return
		}
		writeInternalError(w, "failed to create schedule")
		return
	}

	writeJSON(w, http.StatusCreated, sched)
}

// handleUpdateSchedule replaces the mutable fields of a schedule.
func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.schedules.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			writeNotFound(w, "schedule not found")
			return
		}
		writeInternalError(w, "failed to get schedule")
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.StartTime != "" {
		existing.StartTime = req.StartTime
	}
	if req.EndTime != "" {
		existing.EndTime = req.EndTime
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}

	if err := s.schedules.Update(r.Context(), existing); err != nil {
		switch {
		case errors.Is(err, schedule.ErrInvalidSchedule):
			writeValidationError(w, err.Error())
		case errors.Is(err, schedule.ErrScheduleNotFound):
			writeNotFound(w, "schedule not found")
		default:
			writeInternalError(w, "failed to update schedule")
		}
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteSchedule removes a schedule.
func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.schedules.Delete(r.Context(), id); err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			writeNotFound(w, "schedule not found")
			return
		}
		writeInternalError(w, "failed to delete schedule")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
