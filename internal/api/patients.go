package api

import (
	"net/http"
	"strconv"

	"github.com/hackgods/opd-frontdesk/internal/clinic"
	"github.com/hackgods/opd-frontdesk/internal/opd"
	"github.com/hackgods/opd-frontdesk/internal/patient"
)

func (p PatientRequest) details() patient.Details {
	return patient.Details{
		Name:    p.Name,
		Age:     p.Age,
		Gender:  p.Gender,
		Contact: p.Contact,
		Address: p.Address,
		Phone:   p.Phone,
	}
}

func registerPatientHandler(svc *patient.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PatientRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		p, err := svc.Register(r.Context(), req.details())
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

// searchPatientsHandler serves GET /patients?q=&gender=&min_age=&max_age=.
func searchPatientsHandler(svc *patient.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := patient.Filter{Gender: q.Get("gender")}

		for _, p := range []struct {
			name string
			dst  *int
		}{{"min_age", &filter.MinAge}, {"max_age", &filter.MaxAge}} {
			raw := q.Get(p.name)
			if raw == "" {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid_"+p.name, p.name+" must be a non-negative integer")
				return
			}
			*p.dst = n
		}

		patients, err := svc.Search(r.Context(), q.Get("q"), filter)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, patients)
	}
}

func getPatientHandler(svc *patient.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		p, err := svc.Get(r.Context(), id)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func updatePatientHandler(svc *patient.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req PatientRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		p, err := svc.Update(r.Context(), id, req.details())
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func deletePatientHandler(svc *patient.Service) http.HandlerFunc {
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

func patientVisitsHandler(svc *opd.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		visits, err := svc.ListVisits(r.Context(), clinic.VisitFilter{PatientID: id})
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
