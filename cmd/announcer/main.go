package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/opd-frontdesk/internal/announce"
	"github.com/hackgods/opd-frontdesk/internal/clinic"
	"github.com/hackgods/opd-frontdesk/internal/config"
	"github.com/hackgods/opd-frontdesk/internal/db"
	"github.com/hackgods/opd-frontdesk/internal/logging"
	"github.com/hackgods/opd-frontdesk/internal/metrics"
)

// settingsRefresh is how often the announcer picks up settings edited at the desk.
const settingsRefresh = time.Minute

// The announcer runs the completion announcement loop on its own, for a waiting-room
// machine that shares the record store with the desk. Run it with the desk's
// announcements disabled, otherwise both processes announce every completion.
func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg, "announcer")
	log.Info().Str("env", cfg.Env).Str("store", cfg.StoreDriver).Msg("announcer starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.OpenStore(rootCtx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("store open error")
	}
	defer store.Close()

	m := metrics.New("announcer")
	opts := announce.Options{
		StopTimeout: cfg.AnnounceStopTimeout,
		Metrics:     m,
	}
	if !cfg.TTSDisabled {
		if speaker, ok := announce.DetectSpeaker(cfg.TTSCommand); ok {
			log.Info().Str("backend", speaker.Name()).Msg("speech backend ready")
			opts.Speaker = speaker
		} else {
			log.Warn().Msg("no text-to-speech backend found, logging announcements only")
		}
	}
	engine := announce.NewEngine(store, log, opts)

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = serveMetrics(cfg.MetricsAddr, m, log)
	}

	applySettings(rootCtx, store, engine, log)

	ticker := time.NewTicker(settingsRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping announcer")
			engine.Stop()
			if metricsSrv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("metrics server shutdown error")
				}
				cancel()
			}
			return
		case <-ticker.C:
			applySettings(rootCtx, store, engine, log)
		}
	}
}

func applySettings(ctx context.Context, store clinic.Repository, engine *announce.Engine, log zerolog.Logger) {
	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s, err := store.GetSettings(readCtx)
	if err != nil {
		log.Error().Err(err).Msg("settings read error")
		return
	}

	if s.AnnouncementIntervalSeconds > 0 {
		want := max(time.Duration(s.AnnouncementIntervalSeconds)*time.Second, announce.MinInterval)
		if want != engine.Interval() {
			engine.SetInterval(want)
		}
	}

	switch {
	case s.AnnouncementEnabled && !engine.Running():
		engine.Start(ctx)
	case !s.AnnouncementEnabled && engine.Running():
		engine.Stop()
	}
}

func serveMetrics(addr string, m *metrics.Collector, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("metrics listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()
	return srv
}
