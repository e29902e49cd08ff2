package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/opd-frontdesk/internal/clinic"
	"github.com/hackgods/opd-frontdesk/internal/report"
)

// writeReport answers with JSON, or CSV when ?format=csv. CSV carries the row-level
// detail unless ?view=stats asks for the flattened statistics.
func writeReport(w http.ResponseWriter, r *http.Request, name string, v any) {
	if r.URL.Query().Get("format") != "csv" {
		writeJSON(w, http.StatusOK, v)
		return
	}

	t := report.Detail(v)
	if r.URL.Query().Get("view") == "stats" {
		t = report.Stats(v)
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, name))
	// Headers are already out, so a write error has nowhere to go.
	_ = report.WriteCSV(w, t)
}

func summaryReportHandler(gen *report.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := gen.SummaryStats(r.Context())
		if err != nil {
			handleError(w, err)
			return
		}
		writeReport(w, r, "summary", s)
	}
}

func dailyReportHandler(gen *report.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		s, err := gen.DailySummary(r.Context(), date)
		if err != nil {
			handleError(w, err)
			return
		}
		writeReport(w, r, "daily_summary_"+date, s)
	}
}

func visitsReportHandler(gen *report.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		rep, err := gen.PatientVisits(r.Context(), q.Get("from"), q.Get("to"), q.Get("doctor"))
		if err != nil {
			handleError(w, err)
			return
		}
		writeReport(w, r, "patient_visits", rep)
	}
}

func appointmentsReportHandler(gen *report.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		rep, err := gen.Appointments(r.Context(), q.Get("from"), q.Get("to"), q.Get("doctor"))
		if err != nil {
			handleError(w, err)
			return
		}
		writeReport(w, r, "appointments", rep)
	}
}

func doctorReportHandler(gen *report.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctor, err := url.PathUnescape(chi.URLParam(r, "name"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor", "doctor name is not valid")
			return
		}
		q := r.URL.Query()
		rep, err := gen.DoctorConsultations(r.Context(), doctor, q.Get("from"), q.Get("to"))
		if err != nil {
			handleError(w, err)
			return
		}
		writeReport(w, r, "doctor_consultations", rep)
	}
}

// BackupStore is implemented by stores that can snapshot themselves to disk.
type BackupStore interface {
	CreateBackup(ctx context.Context) (string, error)
	ListBackups(ctx context.Context) ([]clinic.BackupInfo, error)
	RestoreBackup(ctx context.Context, path string) error
}

func createBackupHandler(store BackupStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := store.CreateBackup(r.Context())
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, BackupResponse{Path: path})
	}
}

func listBackupsHandler(store BackupStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		backups, err := store.ListBackups(r.Context())
		if err != nil {
			handleError(w, err)
			return
		}
		if backups == nil {
			backups = []clinic.BackupInfo{}
		}
		writeJSON(w, http.StatusOK, backups)
	}
}

// restoreBackupHandler only restores files the store itself lists, by name.
func restoreBackupHandler(store BackupStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RestoreRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		name := strings.TrimSpace(req.Name)

		backups, err := store.ListBackups(r.Context())
		if err != nil {
			handleError(w, err)
			return
		}
		for _, b := range backups {
			if b.Name != name {
				continue
			}
			if err := store.RestoreBackup(r.Context(), b.Path); err != nil {
				handleError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, BackupResponse{Path: b.Path})
			return
		}
		writeError(w, http.StatusNotFound, "backup_not_found", fmt.Sprintf("no backup named %q", name))
	}
}

func backupsUnsupported(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotImplemented, "backups_unsupported", "the configured store does not support file backups")
}
