package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/opd-frontdesk/internal/announce"
	"github.com/hackgods/opd-frontdesk/internal/appointment"
	"github.com/hackgods/opd-frontdesk/internal/clinic"
	"github.com/hackgods/opd-frontdesk/internal/metrics"
	"github.com/hackgods/opd-frontdesk/internal/opd"
	"github.com/hackgods/opd-frontdesk/internal/patient"
	redisclient "github.com/hackgods/opd-frontdesk/internal/redis"
	"github.com/hackgods/opd-frontdesk/internal/report"
)

type board struct {
	mu   sync.Mutex
	msgs []string
}

func (b *board) Show(a announce.Announcement) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, a.Message)
	return nil
}

func (b *board) messages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.msgs...)
}

type testServer struct {
	handler http.Handler
	engine  *announce.Engine
	board   *board
	metrics *metrics.Collector
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo, err := clinic.OpenJSONRepository(t.TempDir())
	require.NoError(t, err)

	log := zerolog.Nop()
	dir := appointment.DefaultDirectory()
	m := metrics.New("test")
	b := &board{}

	opdSvc := opd.NewService(repo, opd.NewQueue(), dir, log)
	engine := announce.NewEngine(repo, log, announce.Options{
		Interval: time.Minute,
		Display:  b,
		Metrics:  m,
		OnAnnounced: func(k announce.DedupKey) {
			opdSvc.MarkAnnounced(k.PatientID, k.VisitID)
		},
	})
	t.Cleanup(engine.Stop)

	handler := NewRouter(RouterConfig{
		Store:        repo,
		Backups:      repo,
		Patients:     patient.NewService(repo, "US", log),
		Appointments: appointment.NewService(repo, redisclient.NewMemorySlotLocker(time.Second), dir, log),
		OPD:          opdSvc,
		Announcer:    engine,
		Reports:      report.NewGenerator(repo),
		Metrics:      m,
		Logger:       log,
		Env:          "test",
		Version:      "dev",
	})

	return &testServer{handler: handler, engine: engine, board: b, metrics: m}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) registerPatient(t *testing.T, name string) clinic.Patient {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/patients", PatientRequest{Name: name, Age: 40, Gender: "Female", Phone: "+1 650-253-0000"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[clinic.Patient](t, rec)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = s.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "ok", ready.Status)
	assert.Equal(t, map[string]string{"store": "ok"}, ready.Dependencies)
}

func TestFrontDeskDay(t *testing.T) {
	s := newTestServer(t)
	ana := s.registerPatient(t, "Ana Ruiz")
	date := time.Now().AddDate(0, 0, 7).Format(clinic.DateLayout)

	// booking takes the slot out of the doctor's free list
	rec := s.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID: ana.ID.String(), DoctorName: "Dr. Smith", Date: date, Time: "09:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decode[clinic.Appointment](t, rec)
	assert.Equal(t, "General Medicine", appt.Department)

	rec = s.do(t, http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID: ana.ID.String(), DoctorName: "Dr. Smith", Date: date, Time: "09:00",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_already_booked", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/doctors/Dr.%20Smith/slots?date="+date, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	slots := decode[SlotsResponse](t, rec)
	assert.Equal(t, []string{"10:00", "11:00", "14:00", "15:00", "16:00"}, slots.Slots)

	// check-in puts Ana in line; calling next announces her to a room
	rec = s.do(t, http.MethodPost, "/opd/visits", CheckInRequest{PatientID: ana.ID.String(), DoctorName: "Dr. Smith", Symptoms: "fever"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	visit := decode[clinic.OPDVisit](t, rec)
	assert.Equal(t, clinic.VisitInProgress, visit.Status)

	rec = s.do(t, http.MethodGet, "/opd/queue", nil)
	queue := decode[[]opd.QueueEntry](t, rec)
	require.Len(t, queue, 1)
	assert.Equal(t, "Ana Ruiz", queue[0].PatientName)

	rec = s.do(t, http.MethodPost, "/opd/queue/call-next?room=4", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Patient Ana Ruiz, please report to room 4 for your appointment.", decode[CallNextResponse](t, rec).Announced)

	// an in-progress visit is never announced by the poll loop
	rec = s.do(t, http.MethodPost, "/announcements/poll", nil)
	assert.Equal(t, map[string]int{"announced": 0}, decode[map[string]int](t, rec))

	rec = s.do(t, http.MethodPost, "/opd/visits/"+visit.ID.String()+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/announcements/poll", nil)
	assert.Equal(t, map[string]int{"announced": 1}, decode[map[string]int](t, rec))
	rec = s.do(t, http.MethodPost, "/announcements/poll", nil)
	assert.Equal(t, map[string]int{"announced": 0}, decode[map[string]int](t, rec))

	msgs := s.board.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1], "Ana Ruiz")
	assert.Contains(t, msgs[1], "Dr. Smith")

	rec = s.do(t, http.MethodGet, "/opd/completions?pending=true", nil)
	assert.Empty(t, decode[[]opd.CompletionRecord](t, rec))

	// resetting the day also clears the announced set, so the visit fires once more
	rec = s.do(t, http.MethodPost, "/opd/day/reset", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodPost, "/announcements/poll", nil)
	assert.Equal(t, map[string]int{"announced": 1}, decode[map[string]int](t, rec))

	rec = s.do(t, http.MethodGet, "/patients/"+ana.ID.String(), nil)
	p := decode[clinic.Patient](t, rec)
	assert.Len(t, p.MedicalHistory, 1)
	assert.Len(t, p.OPDVisits, 1)
	assert.Len(t, p.Appointments, 1)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"bad json", http.MethodPost, "/patients", "not an object", http.StatusBadRequest, "invalid_request_body"},
		{"bad id", http.MethodGet, "/patients/nope", nil, http.StatusBadRequest, "invalid_id"},
		{"missing patient", http.MethodGet, "/patients/6f1c3c2e-4f4e-4a53-8a5b-0f1f3d6d2b10", nil, http.StatusNotFound, "patient_not_found"},
		{"invalid patient", http.MethodPost, "/patients", PatientRequest{Name: "X", Age: 0, Gender: "Male", Phone: "+1 650-253-0000"}, http.StatusBadRequest, "invalid_patient"},
		{"unknown doctor", http.MethodPost, "/appointments", CreateAppointmentRequest{PatientID: "6f1c3c2e-4f4e-4a53-8a5b-0f1f3d6d2b10", DoctorName: "Dr. Who", Date: "2099-01-01", Time: "09:00"}, http.StatusBadRequest, "unknown_doctor"},
		{"empty queue", http.MethodPost, "/opd/queue/call-next", nil, http.StatusNotFound, "queue_empty"},
		{"bad report range", http.MethodGet, "/reports/visits?from=2026-02-01&to=2026-01-01", nil, http.StatusBadRequest, "invalid_range"},
		{"empty announcement", http.MethodPost, "/announcements/now", AnnounceRequest{}, http.StatusBadRequest, "invalid_announcement"},
		{"unknown backup", http.MethodPost, "/backups/restore", RestoreRequest{Name: "nope.json"}, http.StatusNotFound, "backup_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestAnnouncementControl(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/announcements/interval", IntervalRequest{Seconds: 3})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, decode[IntervalResponse](t, rec).Seconds, "clamped to the floor")

	rec = s.do(t, http.MethodGet, "/settings", nil)
	assert.Equal(t, 10, decode[clinic.Settings](t, rec).AnnouncementIntervalSeconds)

	rec = s.do(t, http.MethodPost, "/announcements/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[announce.Status](t, rec).Running)
	assert.True(t, s.engine.Running(), "loop outlives the request")

	rec = s.do(t, http.MethodPost, "/announcements/stop", nil)
	assert.False(t, decode[announce.Status](t, rec).Running)

	rec = s.do(t, http.MethodPost, "/announcements/test", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, announce.DefaultTestMessage, decode[AnnouncementResponse](t, rec).Message)

	rec = s.do(t, http.MethodPost, "/announcements/preset", PresetRequest{Preset: string(announce.PresetPrescriptionReady), PatientName: "Li"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[AnnouncementResponse](t, rec).Message, "prescription is ready")
}

func TestAnnouncementInterval_OutOfRange(t *testing.T) {
	s := newTestServer(t)

	for _, seconds := range []int{0, -5, 86401, 10_000_000_000} {
		rec := s.do(t, http.MethodPut, "/announcements/interval", IntervalRequest{Seconds: seconds})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "seconds=%d", seconds)
	}

	huge := 10_000_000_000
	rec := s.do(t, http.MethodPut, "/settings", SettingsRequest{AnnouncementInterval: &huge})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/settings", nil)
	assert.Equal(t, clinic.DefaultSettings().AnnouncementIntervalSeconds, decode[clinic.Settings](t, rec).AnnouncementIntervalSeconds)

	rec = s.do(t, http.MethodPut, "/announcements/interval", IntervalRequest{Seconds: 86400})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 86400, decode[IntervalResponse](t, rec).Seconds)
	assert.Equal(t, 24*time.Hour, s.engine.Interval())
}

func TestQueuePositionAnnouncement(t *testing.T) {
	s := newTestServer(t)
	first := s.registerPatient(t, "Ben")
	second := s.registerPatient(t, "Cy")

	for _, p := range []clinic.Patient{first, second} {
		rec := s.do(t, http.MethodPost, "/opd/visits", CheckInRequest{PatientID: p.ID.String(), DoctorName: "Dr. Brown", Symptoms: "knee pain"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := s.do(t, http.MethodPost, "/announcements/queue-position", QueuePositionRequest{PatientID: second.ID.String()})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Patient Cy, you are number 2 in the queue.", decode[AnnouncementResponse](t, rec).Message)

	rec = s.do(t, http.MethodGet, "/opd/queue/"+first.ID.String()+"/position", nil)
	assert.Equal(t, float64(1), decode[map[string]any](t, rec)["position"])

	assert.Equal(t, 2.0, gaugeValue(t, s.metrics, "frontdesk_opd_waiting_patients"))
}

func TestSettingsUpdate(t *testing.T) {
	s := newTestServer(t)
	name := "Riverside Clinic"
	enabled := true
	interval := 45

	rec := s.do(t, http.MethodPut, "/settings", SettingsRequest{HospitalName: &name, AnnouncementEnabled: &enabled, AnnouncementInterval: &interval})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[clinic.Settings](t, rec)
	assert.Equal(t, name, got.HospitalName)
	assert.Equal(t, 45, got.AnnouncementIntervalSeconds)
	assert.True(t, s.engine.Running())
	assert.Equal(t, 45*time.Second, s.engine.Interval())

	enabled = false
	rec = s.do(t, http.MethodPut, "/settings", SettingsRequest{AnnouncementEnabled: &enabled})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, s.engine.Running())
}

func TestBackups(t *testing.T) {
	s := newTestServer(t)
	s.registerPatient(t, "Dee")

	rec := s.do(t, http.MethodPost, "/backups", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/backups", nil)
	backups := decode[[]clinic.BackupInfo](t, rec)
	require.Len(t, backups, 1)

	s.registerPatient(t, "Eve")
	rec = s.do(t, http.MethodPost, "/backups/restore", RestoreRequest{Name: backups[0].Name})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/patients", nil)
	patients := decode[[]clinic.Patient](t, rec)
	require.Len(t, patients, 1)
	assert.Equal(t, "Dee", patients[0].Name)
}

func TestReportsCSV(t *testing.T) {
	s := newTestServer(t)
	s.registerPatient(t, "Fay")

	rec := s.do(t, http.MethodGet, "/reports/summary?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Metric", "Key", "Value"}, rows[0])
	assert.Contains(t, rows, []string{"Total Patients", "", "1"})

	today := time.Now().Format(clinic.DateLayout)
	rec = s.do(t, http.MethodGet, "/reports/daily?date="+today, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[report.DailySummary](t, rec).NewPatients)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/health/live", nil)

	rec := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `frontdesk_http_requests_total{method="GET",route="/health/live",service="test",status_code="200"} 1`)
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func gaugeValue(t *testing.T, m *metrics.Collector, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

