package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hackgods/opd-frontdesk/internal/announce"
	"github.com/hackgods/opd-frontdesk/internal/clinic"
	"github.com/hackgods/opd-frontdesk/internal/opd"
	"github.com/hackgods/opd-frontdesk/internal/patient"
)

// announcementControl owns the long-lived context the poll loop runs under;
// a request context would stop the loop as soon as the response is written.
type announcementControl struct {
	engine *announce.Engine
	repo   clinic.Repository
	base   context.Context
}

func (c announcementControl) start(w http.ResponseWriter, r *http.Request) {
	c.engine.Start(c.base)
	writeJSON(w, http.StatusOK, c.engine.Status())
}

func (c announcementControl) stop(w http.ResponseWriter, r *http.Request) {
	c.engine.Stop()
	writeJSON(w, http.StatusOK, c.engine.Status())
}

func (c announcementControl) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.engine.Status())
}

// maxIntervalSeconds caps poll intervals at one day.
const maxIntervalSeconds = 24 * 60 * 60

// setInterval applies the interval to the engine and stores the clamped value in settings.
func (c announcementControl) setInterval(w http.ResponseWriter, r *http.Request) {
	var req IntervalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Seconds <= 0 || req.Seconds > maxIntervalSeconds {
		writeError(w, http.StatusBadRequest, "invalid_interval", "seconds must be between 1 and 86400")
		return
	}

	applied := c.engine.SetInterval(time.Duration(req.Seconds) * time.Second)
	seconds := int(applied / time.Second)

	settings, err := c.repo.GetSettings(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	settings.AnnouncementIntervalSeconds = seconds
	if err := c.repo.SaveSettings(r.Context(), settings); err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, IntervalResponse{Seconds: seconds})
}

func (c announcementControl) clear(w http.ResponseWriter, r *http.Request) {
	c.engine.ClearAnnouncedToday()
	writeJSON(w, http.StatusOK, c.engine.Status())
}

// poll runs one cycle now, outside the loop's schedule.
func (c announcementControl) poll(w http.ResponseWriter, r *http.Request) {
	n, err := c.engine.Poll(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"announced": n})
}

// respondAnnouncement reports what was said. Rejected input is a client error; a failing sink
// is reported alongside the message because the other sink may still have delivered it.
func respondAnnouncement(w http.ResponseWriter, msg string, err error) {
	if err != nil && (errors.Is(err, announce.ErrInvalidAnnouncement) || msg == "") {
		handleError(w, err)
		return
	}
	resp := AnnouncementResponse{Message: msg}
	if err != nil {
		resp.DeliveryError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func announceNowHandler(engine *announce.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnnounceRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		msg, err := engine.AnnounceNow(r.Context(), req.PatientName, req.Message)
		respondAnnouncement(w, msg, err)
	}
}

func announceCallHandler(engine *announce.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CallRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		msg, err := engine.AnnouncePatientCall(r.Context(), req.PatientName, req.Room)
		respondAnnouncement(w, msg, err)
	}
}

func announceQueuePositionHandler(engine *announce.Engine, patients *patient.Service, visits *opd.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QueuePositionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		id, ok := parseUUID(w, req.PatientID, "patient_id")
		if !ok {
			return
		}

		pos := visits.Position(id)
		if pos < 0 {
			writeError(w, http.StatusNotFound, "not_in_queue", "patient is not waiting")
			return
		}
		p, err := patients.Get(r.Context(), id)
		if err != nil {
			handleError(w, err)
			return
		}

		msg, err := engine.AnnounceQueuePosition(r.Context(), p.Name, pos)
		respondAnnouncement(w, msg, err)
	}
}

func announcePresetHandler(engine *announce.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PresetRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		msg, err := engine.AnnouncePreset(r.Context(), announce.Preset(req.Preset), req.PatientName, req.Text)
		respondAnnouncement(w, msg, err)
	}
}

func announceTestHandler(engine *announce.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnnounceRequest
		// An empty body falls back to the default test message.
		if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
			return
		}
		msg, err := engine.Test(r.Context(), req.Message)
		respondAnnouncement(w, msg, err)
	}
}

func getSettingsHandler(repo clinic.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := repo.GetSettings(r.Context())
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// updateSettings persists the changed fields and applies the announcement ones to the running engine.
func (c announcementControl) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s, err := c.repo.GetSettings(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	if req.HospitalName != nil {
		s.HospitalName = *req.HospitalName
	}
	if req.AutoBackupEnabled != nil {
		s.AutoBackupEnabled = *req.AutoBackupEnabled
	}
	if req.AnnouncementInterval != nil {
		if *req.AnnouncementInterval <= 0 || *req.AnnouncementInterval > maxIntervalSeconds {
			writeError(w, http.StatusBadRequest, "invalid_interval", "announcement_interval must be between 1 and 86400")
			return
		}
		applied := c.engine.SetInterval(time.Duration(*req.AnnouncementInterval) * time.Second)
		s.AnnouncementIntervalSeconds = int(applied / time.Second)
	}
	if req.AnnouncementEnabled != nil {
		s.AnnouncementEnabled = *req.AnnouncementEnabled
		if s.AnnouncementEnabled {
			c.engine.Start(c.base)
		} else {
			c.engine.Stop()
		}
	}

	if err := c.repo.SaveSettings(r.Context(), s); err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
