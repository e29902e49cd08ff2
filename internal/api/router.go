package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/opd-frontdesk/internal/announce"
	"github.com/hackgods/opd-frontdesk/internal/appointment"
	"github.com/hackgods/opd-frontdesk/internal/clinic"
	"github.com/hackgods/opd-frontdesk/internal/display"
	"github.com/hackgods/opd-frontdesk/internal/metrics"
	"github.com/hackgods/opd-frontdesk/internal/opd"
	"github.com/hackgods/opd-frontdesk/internal/patient"
	"github.com/hackgods/opd-frontdesk/internal/report"
)

type RouterConfig struct {
	Store        clinic.Repository
	Backups      BackupStore // nil when the store cannot back itself up
	Patients     *patient.Service
	Appointments *appointment.Service
	OPD          *opd.Service
	Announcer    *announce.Engine
	Reports      *report.Generator
	Hub          *display.Hub // optional
	Metrics      *metrics.Collector
	Redis        *redis.Client // optional
	Logger       zerolog.Logger
	// BaseContext outlives requests; the announcement loop is started under it.
	BaseContext context.Context
	Env         string
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoverMiddleware(cfg.Logger))
	r.Use(cfg.Metrics.HTTPMiddleware)

	health := NewHealthHandler(cfg.Store, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Route("/patients", func(r chi.Router) {
		r.Post("/", registerPatientHandler(cfg.Patients))
		r.Get("/", searchPatientsHandler(cfg.Patients))
		r.Get("/{id}", getPatientHandler(cfg.Patients))
		r.Put("/{id}", updatePatientHandler(cfg.Patients))
		r.Delete("/{id}", deletePatientHandler(cfg.Patients))
		r.Get("/{id}/appointments", patientAppointmentsHandler(cfg.Appointments))
		r.Get("/{id}/visits", patientVisitsHandler(cfg.OPD))
	})

	r.Get("/departments", listDepartmentsHandler(cfg.Appointments))
	r.Get("/doctors", listDoctorsHandler(cfg.Appointments))
	r.Get("/doctors/{name}/slots", availableSlotsHandler(cfg.Appointments))

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Appointments, cfg.Metrics))
		r.Get("/", listAppointmentsHandler(cfg.Appointments))
		r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
		r.Put("/{id}/status", updateAppointmentStatusHandler(cfg.Appointments))
		r.Delete("/{id}", deleteAppointmentHandler(cfg.Appointments))
	})

	notify := queueNotifier{svc: cfg.OPD, hub: cfg.Hub, metrics: cfg.Metrics, log: cfg.Logger}
	r.Route("/opd", func(r chi.Router) {
		r.Post("/visits", checkInHandler(cfg.OPD, notify))
		r.Get("/visits", listVisitsHandler(cfg.OPD))
		r.Get("/visits/{id}", getVisitHandler(cfg.OPD))
		r.Patch("/visits/{id}", updateVisitHandler(cfg.OPD))
		r.Post("/visits/{id}/complete", completeVisitHandler(cfg.OPD, notify))
		r.Post("/visits/{id}/follow-up", followUpHandler(cfg.OPD, notify))
		r.Get("/follow-ups", followUpsDueHandler(cfg.OPD))
		r.Get("/queue", queueHandler(cfg.OPD))
		r.Post("/queue/call-next", callNextHandler(cfg.OPD, cfg.Announcer))
		r.Get("/queue/{id}/position", queuePositionHandler(cfg.OPD))
		r.Get("/completions", completionsHandler(cfg.OPD))
		r.Post("/day/reset", resetDayHandler(cfg.OPD, cfg.Announcer, notify))
	})

	control := announcementControl{engine: cfg.Announcer, repo: cfg.Store, base: cfg.BaseContext}
	r.Route("/announcements", func(r chi.Router) {
		r.Post("/start", control.start)
		r.Post("/stop", control.stop)
		r.Get("/status", control.status)
		r.Put("/interval", control.setInterval)
		r.Post("/clear", control.clear)
		r.Post("/poll", control.poll)
		r.Post("/now", announceNowHandler(cfg.Announcer))
		r.Post("/call", announceCallHandler(cfg.Announcer))
		r.Post("/queue-position", announceQueuePositionHandler(cfg.Announcer, cfg.Patients, cfg.OPD))
		r.Post("/preset", announcePresetHandler(cfg.Announcer))
		r.Post("/test", announceTestHandler(cfg.Announcer))
	})

	r.Get("/settings", getSettingsHandler(cfg.Store))
	r.Put("/settings", control.updateSettings)

	r.Route("/reports", func(r chi.Router) {
		r.Get("/summary", summaryReportHandler(cfg.Reports))
		r.Get("/daily", dailyReportHandler(cfg.Reports))
		r.Get("/visits", visitsReportHandler(cfg.Reports))
		r.Get("/appointments", appointmentsReportHandler(cfg.Reports))
		r.Get("/doctors/{name}", doctorReportHandler(cfg.Reports))
	})

	r.Route("/backups", func(r chi.Router) {
		if cfg.Backups == nil {
			r.HandleFunc("/*", backupsUnsupported)
			r.HandleFunc("/", backupsUnsupported)
			return
		}
		r.Post("/", createBackupHandler(cfg.Backups))
		r.Get("/", listBackupsHandler(cfg.Backups))
		r.Post("/restore", restoreBackupHandler(cfg.Backups))
	})

	if cfg.Hub != nil {
		r.Get("/display/ws", cfg.Hub.ServeWS)
	}

	return r
}
