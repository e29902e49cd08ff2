package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/opd-frontdesk/internal/announce"
	"github.com/hackgods/opd-frontdesk/internal/appointment"
	"github.com/hackgods/opd-frontdesk/internal/clinic"
	"github.com/hackgods/opd-frontdesk/internal/opd"
	"github.com/hackgods/opd-frontdesk/internal/patient"
	redisclient "github.com/hackgods/opd-frontdesk/internal/redis"
	"github.com/hackgods/opd-frontdesk/internal/report"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func parseUUID(w http.ResponseWriter, raw, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+field, fmt.Sprintf("%s must be a valid UUID", field))
		return uuid.Nil, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return parseUUID(w, chi.URLParam(r, "id"), "id")
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{clinic.ErrPatientNotFound, http.StatusNotFound, "patient_not_found"},
	{clinic.ErrAppointmentNotFound, http.StatusNotFound, "appointment_not_found"},
	{clinic.ErrVisitNotFound, http.StatusNotFound, "visit_not_found"},
	{clinic.ErrInvalidBackup, http.StatusBadRequest, "invalid_backup"},
	{patient.ErrInvalidPatient, http.StatusBadRequest, "invalid_patient"},
	{appointment.ErrInvalidRequest, http.StatusBadRequest, "invalid_appointment"},
	{appointment.ErrUnknownDoctor, http.StatusBadRequest, "unknown_doctor"},
	{appointment.ErrSlotNotInTemplate, http.StatusBadRequest, "slot_not_offered"},
	{appointment.ErrAppointmentInPast, http.StatusBadRequest, "appointment_in_past"},
	{appointment.ErrSlotAlreadyBooked, http.StatusConflict, "slot_already_booked"},
	{appointment.ErrSlotBeingBooked, http.StatusConflict, "slot_being_booked"},
	{redisclient.ErrLockNotAcquired, http.StatusConflict, "slot_being_booked"},
	{appointment.ErrInvalidStatusTransition, http.StatusConflict, "invalid_status_transition"},
	{opd.ErrInvalidVisit, http.StatusBadRequest, "invalid_visit"},
	{opd.ErrActiveVisitExists, http.StatusConflict, "active_visit_exists"},
	{opd.ErrInvalidVisitTransition, http.StatusConflict, "invalid_visit_transition"},
	{opd.ErrQueueEmpty, http.StatusNotFound, "queue_empty"},
	{announce.ErrInvalidAnnouncement, http.StatusBadRequest, "invalid_announcement"},
	{report.ErrInvalidRange, http.StatusBadRequest, "invalid_range"},
}

// handleError maps service errors onto HTTP responses; anything unknown is a 500.
func handleError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
}
