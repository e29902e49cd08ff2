package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/opd-frontdesk/internal/announce"
	"github.com/hackgods/opd-frontdesk/internal/clinic"
	"github.com/hackgods/opd-frontdesk/internal/display"
	"github.com/hackgods/opd-frontdesk/internal/metrics"
	"github.com/hackgods/opd-frontdesk/internal/opd"
)

// queueNotifier refreshes the waiting gauge and the display boards after the line changes.
type queueNotifier struct {
	svc     *opd.Service
	hub     *display.Hub
	metrics *metrics.Collector
	log     zerolog.Logger
}

func (n queueNotifier) changed(ctx context.Context) {
	entries, err := n.svc.QueueView(ctx)
	if err != nil {
		n.log.Warn().Err(err).Msg("refresh queue view")
		return
	}
	n.metrics.SetWaitingPatients(len(entries))
	if n.hub != nil {
		if err := n.hub.PublishQueue(entries); err != nil {
			n.log.Warn().Err(err).Msg("publish queue to displays")
		}
	}
}

func checkInHandler(svc *opd.Service, notify queueNotifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CheckInRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		patientID, ok := parseUUID(w, req.PatientID, "patient_id")
		if !ok {
			return
		}

		visit, err := svc.CheckIn(r.Context(), opd.CheckInRequest{
			PatientID:    patientID,
			DoctorName:   req.DoctorName,
			Symptoms:     req.Symptoms,
			Diagnosis:    req.Diagnosis,
			Prescription: req.Prescription,
			LabTests:     req.LabTests,
			FollowUpDate: req.FollowUpDate,
			Notes:        req.Notes,
			VitalSigns:   req.VitalSigns,
		})
		if err != nil {
			handleError(w, err)
			return
		}

		notify.changed(r.Context())
		writeJSON(w, http.StatusCreated, visit)
	}
}

// listVisitsHandler serves GET /opd/visits?date=&doctor=&status=&patient_id=.
func listVisitsHandler(svc *opd.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := clinic.VisitFilter{
			DoctorName: q.Get("doctor"),
			Status:     clinic.VisitStatus(q.Get("status")),
		}
		if raw := q.Get("patient_id"); raw != "" {
			id, ok := parseUUID(w, raw, "patient_id")
			if !ok {
				return
			}
			filter.PatientID = id
		}
		if raw := q.Get("date"); raw != "" {
			day, err := time.ParseInLocation(clinic.DateLayout, raw, time.Local)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			filter.From, filter.To = clinic.DayRange(day)
		}

		visits, err := svc.ListVisits(r.Context(), filter)
		if err != nil {
			handleError(w, err)
			return
		}
		if visits == nil {
			visits = []clinic.OPDVisit{}
		}
		writeJSON(w, http.StatusOK, visits)
	}
}

func getVisitHandler(svc *opd.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		visit, err := svc.GetVisit(r.Context(), id)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, visit)
	}
}

func updateVisitHandler(svc *opd.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req UpdateVisitRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		visit, err := svc.UpdateClinical(r.Context(), id, opd.ClinicalUpdate{
			Symptoms:     req.Symptoms,
			Diagnosis:    req.Diagnosis,
			Prescription: req.Prescription,
			LabTests:     req.LabTests,
			Notes:        req.Notes,
			FollowUpDate: req.FollowUpDate,
			VitalSigns:   req.VitalSigns,
		})
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, visit)
	}
}

func completeVisitHandler(svc *opd.Service, notify queueNotifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		visit, err := svc.Complete(r.Context(), id)
		if err != nil {
			handleError(w, err)
			return
		}

		notify.changed(r.Context())
		writeJSON(w, http.StatusOK, visit)
	}
}

func followUpHandler(svc *opd.Service, notify queueNotifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req FollowUpRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		visit, err := svc.RequireFollowUp(r.Context(), id, req.Date)
		if err != nil {
			handleError(w, err)
			return
		}

		notify.changed(r.Context())
		writeJSON(w, http.StatusOK, visit)
	}
}

func followUpsDueHandler(svc *opd.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day := time.Now()
		if raw := r.URL.Query().Get("date"); raw != "" {
			parsed, err := time.ParseInLocation(clinic.DateLayout, raw, time.Local)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			day = parsed
		}

		due, err := svc.FollowUpsDue(r.Context(), day)
		if err != nil {
			handleError(w, err)
			return
		}
		if due == nil {
			due = []clinic.OPDVisit{}
		}
		writeJSON(w, http.StatusOK, due)
	}
}

func queueHandler(svc *opd.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.QueueView(r.Context())
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func completionsHandler(svc *opd.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records := svc.Queue().Completed()
		if r.URL.Query().Get("pending") == "true" {
			records = svc.Queue().PendingAnnouncements()
		}
		if records == nil {
			records = []opd.CompletionRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

// callNextHandler announces the head of the line to a room. The patient stays in line
// until the consultation is completed.
func callNextHandler(svc *opd.Service, engine *announce.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.CallNext(r.Context())
		if err != nil {
			handleError(w, err)
			return
		}

		msg, err := engine.AnnouncePatientCall(r.Context(), p.Name, r.URL.Query().Get("room"))
		resp := CallNextResponse{Patient: p, Announced: msg}
		if err != nil {
			resp.DeliveryError = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func queuePositionHandler(svc *opd.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		pos := svc.Position(id)
		if pos < 0 {
			writeError(w, http.StatusNotFound, "not_in_queue", "patient is not waiting")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"patient_id": id, "position": pos})
	}
}

// resetDayHandler clears the completion tracker and the engine's announced set together.
func resetDayHandler(svc *opd.Service, engine *announce.Engine, notify queueNotifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.ResetDay()
		if r.URL.Query().Get("keep_announced") != "true" {
			engine.ClearAnnouncedToday()
		}
		notify.changed(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}
