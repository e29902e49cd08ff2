package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/opd-frontdesk/internal/appointment"
	"github.com/hackgods/opd-frontdesk/internal/clinic"
	"github.com/hackgods/opd-frontdesk/internal/metrics"
	redisclient "github.com/hackgods/opd-frontdesk/internal/redis"
)

func createAppointmentHandler(svc *appointment.Service, m *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		patientID, ok := parseUUID(w, req.PatientID, "patient_id")
		if !ok {
			return
		}

		appt, err := svc.Book(r.Context(), appointment.BookRequest{
			PatientID:  patientID,
			DoctorName: req.DoctorName,
			Department: req.Department,
			Date:       req.Date,
			Time:       req.Time,
			Notes:      req.Notes,
		})
		if err != nil {
			if errors.Is(err, appointment.ErrSlotAlreadyBooked) ||
				errors.Is(err, appointment.ErrSlotBeingBooked) ||
				errors.Is(err, redisclient.ErrLockNotAcquired) {
				m.RecordBookingConflict()
			}
			handleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, appt)
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := clinic.AppointmentFilter{
			DoctorName: q.Get("doctor"),
			Date:       q.Get("date"),
			Status:     clinic.AppointmentStatus(q.Get("status")),
		}
		if raw := q.Get("patient_id"); raw != "" {
			id, ok := parseUUID(w, raw, "patient_id")
			if !ok {
				return
			}
			filter.PatientID = id
		}

		appts, err := svc.List(r.Context(), filter)
		if err != nil {
			handleError(w, err)
			return
		}
		if appts == nil {
			appts = []clinic.Appointment{}
		}
		writeJSON(w, http.StatusOK, appts)
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func updateAppointmentStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req UpdateStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), id, clinic.AppointmentStatus(req.Status))
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func deleteAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			handleError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listDoctorsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dept := r.URL.Query().Get("department"); dept != "" {
			doctors := svc.Directory().DoctorsIn(dept)
			if doctors == nil {
				doctors = []appointment.DoctorProfile{}
			}
			writeJSON(w, http.StatusOK, doctors)
			return
		}
		writeJSON(w, http.StatusOK, svc.Doctors())
	}
}

func listDepartmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Departments())
	}
}

func availableSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctor, err := url.PathUnescape(chi.URLParam(r, "name"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor", "doctor name is not valid")
			return
		}
		date := r.URL.Query().Get("date")

		slots, err := svc.AvailableSlots(r.Context(), doctor, date)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SlotsResponse{DoctorName: doctor, Date: date, Slots: slots})
	}
}

func patientAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		appts, err := svc.List(r.Context(), clinic.AppointmentFilter{PatientID: id})
		if err != nil {
			handleError(w, err)
			return
		}
		if appts == nil {
			appts = []clinic.Appointment{}
		}
		writeJSON(w, http.StatusOK, appts)
	}
}
