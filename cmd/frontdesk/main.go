package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/opd-frontdesk/internal/announce"
	"github.com/hackgods/opd-frontdesk/internal/api"
	"github.com/hackgods/opd-frontdesk/internal/appointment"
	"github.com/hackgods/opd-frontdesk/internal/clinic"
	"github.com/hackgods/opd-frontdesk/internal/config"
	"github.com/hackgods/opd-frontdesk/internal/db"
	"github.com/hackgods/opd-frontdesk/internal/display"
	"github.com/hackgods/opd-frontdesk/internal/logging"
	"github.com/hackgods/opd-frontdesk/internal/metrics"
	"github.com/hackgods/opd-frontdesk/internal/opd"
	"github.com/hackgods/opd-frontdesk/internal/patient"
	redisclient "github.com/hackgods/opd-frontdesk/internal/redis"
	"github.com/hackgods/opd-frontdesk/internal/report"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg, "frontdesk")
	log.Info().
		Str("env", cfg.Env).
		Str("addr", cfg.HTTPAddr).
		Str("store", cfg.StoreDriver).
		Msg("frontdesk starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.OpenStore(rootCtx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("store open error")
	}
	defer store.Close()

	locker, rdb, err := redisclient.NewLocker(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis")
			}
		}()
	}

	dir, err := appointment.LoadDirectory(cfg.DoctorsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.DoctorsFile).Msg("doctor directory load error")
	}

	m := metrics.New("frontdesk")
	patients := patient.NewService(store, cfg.PhoneRegion, log)
	appointments := appointment.NewService(store, locker, dir, log)
	visits := opd.NewService(store, opd.NewQueue(), dir, log)
	if _, err := visits.RestoreQueue(rootCtx); err != nil {
		log.Fatal().Err(err).Msg("waiting line restore error")
	}
	hub := display.NewHub(log)

	opts := announce.Options{
		StopTimeout: cfg.AnnounceStopTimeout,
		Display:     announce.MultiDisplay(announce.LogDisplay(log), hub),
		Metrics:     m,
		OnAnnounced: func(k announce.DedupKey) { visits.MarkAnnounced(k.PatientID, k.VisitID) },
	}
	if speaker := detectSpeaker(cfg, log); speaker != nil {
		opts.Speaker = speaker
	}
	engine := announce.NewEngine(store, log, opts)

	settings, err := store.GetSettings(rootCtx)
	if err != nil {
		log.Fatal().Err(err).Msg("settings load error")
	}
	if settings.AnnouncementIntervalSeconds > 0 {
		engine.SetInterval(time.Duration(settings.AnnouncementIntervalSeconds) * time.Second)
	}
	if settings.AnnouncementEnabled {
		engine.Start(rootCtx)
	}

	var backups api.BackupStore
	if store.JSON != nil {
		backups = store.JSON
		autoBackup(rootCtx, store.JSON, settings, log)
	}

	router := api.NewRouter(api.RouterConfig{
		Store:        store,
		Backups:      backups,
		Patients:     patients,
		Appointments: appointments,
		OPD:          visits,
		Announcer:    engine,
		Reports:      report.NewGenerator(store),
		Hub:          hub,
		Metrics:      m,
		Redis:        rdb,
		Logger:       log,
		BaseContext:  rootCtx,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	engine.Stop()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("frontdesk stopped")
}

// detectSpeaker returns nil when speech is disabled or no backend is installed,
// in which case announcements go to the display sinks only.
func detectSpeaker(cfg config.Config, log zerolog.Logger) announce.Speaker {
	if cfg.TTSDisabled {
		log.Info().Msg("speech disabled by TTS_DISABLED")
		return nil
	}
	speaker, ok := announce.DetectSpeaker(cfg.TTSCommand)
	if !ok {
		log.Warn().Str("command", cfg.TTSCommand).Msg("no text-to-speech backend found, announcing on displays only")
		return nil
	}
	log.Info().Str("backend", speaker.Name()).Msg("speech backend ready")
	return speaker
}

// autoBackup takes the first backup of the day when auto backup is on.
func autoBackup(ctx context.Context, store *clinic.JSONRepository, s clinic.Settings, log zerolog.Logger) {
	if !s.AutoBackupEnabled {
		return
	}
	today := time.Now().Format(clinic.DateLayout)
	if strings.HasPrefix(s.LastBackup, today) {
		return
	}
	path, err := store.CreateBackup(ctx)
	if err != nil {
		log.Error().Err(err).Msg("auto backup failed")
		return
	}
	log.Info().Str("path", path).Msg("auto backup created")
}
