package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.RecordPollCycle(true)
		c.RecordAnnouncement("poll")
		c.RecordSinkFailure("speech")
		c.SetAnnouncedVisits(3)
		c.SetWaitingPatients(1)
		c.RecordBookingConflict()
	})
}

func TestCollector_Counters(t *testing.T) {
	c := New("test")

	c.RecordPollCycle(true)
	c.RecordPollCycle(false)
	c.RecordPollCycle(false)
	c.RecordAnnouncement("manual")
	c.SetAnnouncedVisits(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.pollCyclesTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.pollCyclesTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.announcementsTotal.WithLabelValues("manual")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.announcedVisits))
}

func TestCollector_HTTPMiddlewareAndHandler(t *testing.T) {
	c := New("test")

	r := chi.NewRouter()
	r.Use(c.HTTPMiddleware)
	r.Get("/patients/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/patients/abc", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/patients/{id}", "404")))

	rec = httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "frontdesk_http_requests_total")
}
