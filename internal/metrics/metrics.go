package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so tests and several processes never clash on the default one.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	pollCyclesTotal      *prometheus.CounterVec
	announcementsTotal   *prometheus.CounterVec
	sinkFailuresTotal    *prometheus.CounterVec
	announcedVisits      prometheus.Gauge
	waitingPatients      prometheus.Gauge
	bookingConflictTotal prometheus.Counter
}

func New(service string) *Collector {
	labels := prometheus.Labels{"service": service}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "frontdesk_http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "frontdesk_http_request_duration_seconds",
				Help:        "Duration of HTTP requests in seconds",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"method", "route"},
		),
		pollCyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "frontdesk_announcement_poll_cycles_total",
				Help:        "Announcement poll cycles by result",
				ConstLabels: labels,
			},
			[]string{"result"},
		),
		announcementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "frontdesk_announcements_total",
				Help:        "Announcements delivered by origin",
				ConstLabels: labels,
			},
			[]string{"origin"},
		),
		sinkFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "frontdesk_announcement_sink_failures_total",
				Help:        "Announcement sink delivery failures",
				ConstLabels: labels,
			},
			[]string{"sink"},
		),
		announcedVisits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "frontdesk_announced_visits",
			Help:        "Visits currently in the announced set",
			ConstLabels: labels,
		}),
		waitingPatients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "frontdesk_opd_waiting_patients",
			Help:        "Patients waiting in the OPD queue",
			ConstLabels: labels,
		}),
		bookingConflictTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "frontdesk_booking_conflicts_total",
			Help:        "Bookings rejected because the slot was taken or locked",
			ConstLabels: labels,
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.httpRequestsTotal,
		c.httpRequestDuration,
		c.pollCyclesTotal,
		c.announcementsTotal,
		c.sinkFailuresTotal,
		c.announcedVisits,
		c.waitingPatients,
		c.bookingConflictTotal,
	)

	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) RecordPollCycle(ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.pollCyclesTotal.WithLabelValues(result).Inc()
}

func (c *Collector) RecordAnnouncement(origin string) {
	if c == nil {
		return
	}
	c.announcementsTotal.WithLabelValues(origin).Inc()
}

func (c *Collector) RecordSinkFailure(sink string) {
	if c == nil {
		return
	}
	c.sinkFailuresTotal.WithLabelValues(sink).Inc()
}

func (c *Collector) SetAnnouncedVisits(n int) {
	if c == nil {
		return
	}
	c.announcedVisits.Set(float64(n))
}

func (c *Collector) SetWaitingPatients(n int) {
	if c == nil {
		return
	}
	c.waitingPatients.Set(float64(n))
}

func (c *Collector) RecordBookingConflict() {
	if c == nil {
		return
	}
	c.bookingConflictTotal.Inc()
}

// HTTPMiddleware records request counts and latency labelled by the chi route pattern.
func (c *Collector) HTTPMiddleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		c.RecordHTTPRequest(r.Method, route, rw.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
