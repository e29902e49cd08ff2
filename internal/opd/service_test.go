package opd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/opd-frontdesk/internal/appointment"
	"github.com/hackgods/opd-frontdesk/internal/clinic"
)

var clinicDay = time.Date(2030, 6, 12, 10, 0, 0, 0, time.Local)

type fixture struct {
	svc  *Service
	repo *clinic.JSONRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := clinic.OpenJSONRepository(t.TempDir())
	require.NoError(t, err)

	svc := NewService(repo, NewQueue(), appointment.DefaultDirectory(), zerolog.Nop())
	svc.now = func() time.Time { return clinicDay }
	return &fixture{svc: svc, repo: repo}
}

func (f *fixture) patient(t *testing.T, name string) uuid.UUID {
	t.Helper()
	p := &clinic.Patient{Name: name, Age: 40, Gender: "Male"}
	require.NoError(t, f.repo.SavePatient(context.Background(), p))
	return p.ID
}

func TestCheckIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.patient(t, "Arjun")

	visit, err := f.svc.CheckIn(ctx, CheckInRequest{
		PatientID:  pid,
		DoctorName: "Dr. Smith",
		Symptoms:   "fever",
		VitalSigns: clinic.VitalSigns{Temperature: "101F"},
	})
	require.NoError(t, err)
	assert.Equal(t, clinic.VisitInProgress, visit.Status)
	assert.Equal(t, clinicDay, visit.VisitTimestamp)
	require.NotNil(t, visit.VitalSigns.RecordedAt)
	assert.Equal(t, 1, f.svc.Position(pid))

	// One open visit per patient per day.
	_, err = f.svc.CheckIn(ctx, CheckInRequest{PatientID: pid, DoctorName: "Dr. Smith", Symptoms: "cough"})
	assert.ErrorIs(t, err, ErrActiveVisitExists)
}

func TestCheckIn_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.patient(t, "Arjun")

	_, err := f.svc.CheckIn(ctx, CheckInRequest{PatientID: pid, DoctorName: "Dr. Smith"})
	assert.ErrorIs(t, err, ErrInvalidVisit)

	_, err = f.svc.CheckIn(ctx, CheckInRequest{PatientID: pid, DoctorName: "Dr. Nobody", Symptoms: "x"})
	assert.ErrorIs(t, err, appointment.ErrUnknownDoctor)

	_, err = f.svc.CheckIn(ctx, CheckInRequest{PatientID: pid, DoctorName: "Dr. Smith", Symptoms: "x", FollowUpDate: "next week"})
	assert.ErrorIs(t, err, ErrInvalidVisit)

	_, err = f.svc.CheckIn(ctx, CheckInRequest{PatientID: uuid.New(), DoctorName: "Dr. Smith", Symptoms: "x"})
	assert.ErrorIs(t, err, clinic.ErrPatientNotFound)
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.patient(t, "Lata")

	visit, err := f.svc.CheckIn(ctx, CheckInRequest{PatientID: pid, DoctorName: "Dr. Davis", Symptoms: "rash"})
	require.NoError(t, err)

	diagnosis := "contact dermatitis"
	_, err = f.svc.UpdateClinical(ctx, visit.ID, ClinicalUpdate{Diagnosis: &diagnosis})
	require.NoError(t, err)

	done, err := f.svc.Complete(ctx, visit.ID)
	require.NoError(t, err)
	assert.Equal(t, clinic.VisitCompleted, done.Status)
	assert.Equal(t, -1, f.svc.Position(pid))

	pending := f.svc.Queue().PendingAnnouncements()
	require.Len(t, pending, 1)
	assert.Equal(t, "Lata", pending[0].PatientName)
	assert.Equal(t, visit.ID, pending[0].VisitID)

	p, err := f.repo.GetPatientByID(ctx, pid)
	require.NoError(t, err)
	require.Len(t, p.MedicalHistory, 1)
	assert.Equal(t, "Dr. Davis: contact dermatitis", p.MedicalHistory[0].Summary)

	_, err = f.svc.Complete(ctx, visit.ID)
	assert.ErrorIs(t, err, ErrInvalidVisitTransition)

	f.svc.MarkAnnounced(pid, visit.ID)
	assert.Empty(t, f.svc.Queue().PendingAnnouncements())
}

func TestRequireFollowUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.patient(t, "Kiran")

	visit, err := f.svc.CheckIn(ctx, CheckInRequest{PatientID: pid, DoctorName: "Dr. Brown", Symptoms: "knee pain"})
	require.NoError(t, err)

	_, err = f.svc.RequireFollowUp(ctx, visit.ID, "")
	assert.ErrorIs(t, err, ErrInvalidVisit)

	updated, err := f.svc.RequireFollowUp(ctx, visit.ID, "2030-06-19")
	require.NoError(t, err)
	assert.Equal(t, clinic.VisitFollowUpRequired, updated.Status)
	assert.Equal(t, -1, f.svc.Position(pid))
	assert.Empty(t, f.svc.Queue().PendingAnnouncements())

	_, err = f.svc.RequireFollowUp(ctx, visit.ID, "2030-06-20")
	assert.ErrorIs(t, err, ErrInvalidVisitTransition)

	due, err := f.svc.FollowUpsDue(ctx, clinicDay.AddDate(0, 0, 6))
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = f.svc.FollowUpsDue(ctx, clinicDay.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, visit.ID, due[0].ID)
}

func TestQueueViewAndCallNext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CallNext(ctx)
	assert.ErrorIs(t, err, ErrQueueEmpty)

	view, err := f.svc.QueueView(ctx)
	require.NoError(t, err)
	assert.Empty(t, view)

	first := f.patient(t, "First")
	second := f.patient(t, "Second")
	_, err = f.svc.CheckIn(ctx, CheckInRequest{PatientID: first, DoctorName: "Dr. Smith", Symptoms: "a"})
	require.NoError(t, err)
	_, err = f.svc.CheckIn(ctx, CheckInRequest{PatientID: second, DoctorName: "Dr. Johnson", Symptoms: "b"})
	require.NoError(t, err)

	view, err = f.svc.QueueView(ctx)
	require.NoError(t, err)
	require.Len(t, view, 2)
	assert.Equal(t, 1, view[0].Position)
	assert.Equal(t, "First", view[0].PatientName)
	assert.Equal(t, "Dr. Johnson", view[1].DoctorName)

	next, err := f.svc.CallNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "First", next.Name)
	assert.Equal(t, 2, f.svc.Queue().Len())

	f.svc.ResetDay()
	assert.Equal(t, 0, f.svc.Queue().Len())
}

type failingHistoryRepo struct {
	*clinic.JSONRepository
}

func (failingHistoryRepo) SavePatient(context.Context, *clinic.Patient) error {
	return errors.New("disk full")
}

func TestComplete_HistoryWriteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.patient(t, "Meera")

	visit, err := f.svc.CheckIn(ctx, CheckInRequest{PatientID: pid, DoctorName: "Dr. Smith", Symptoms: "cough"})
	require.NoError(t, err)

	f.svc.repo = failingHistoryRepo{f.repo}
	done, err := f.svc.Complete(ctx, visit.ID)
	require.NoError(t, err)
	assert.Equal(t, clinic.VisitCompleted, done.Status)

	assert.Equal(t, -1, f.svc.Position(pid))
	pending := f.svc.Queue().PendingAnnouncements()
	require.Len(t, pending, 1)
	assert.Equal(t, visit.ID, pending[0].VisitID)
}

func TestRestoreQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.patient(t, "Arjun")
	second := f.patient(t, "Bela")
	done := f.patient(t, "Chitra")
	for _, pid := range []uuid.UUID{first, second, done} {
		_, err := f.svc.CheckIn(ctx, CheckInRequest{PatientID: pid, DoctorName: "Dr. Smith", Symptoms: "fever"})
		require.NoError(t, err)
	}
	view, err := f.svc.QueueView(ctx)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, view[2].VisitID)
	require.NoError(t, err)

	// A fresh process over the same store.
	restarted := NewService(f.repo, NewQueue(), appointment.DefaultDirectory(), zerolog.Nop())
	restarted.now = func() time.Time { return clinicDay.Add(2 * time.Hour) }
	assert.Equal(t, -1, restarted.Position(first))

	n, err := restarted.RestoreQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, restarted.Position(first))
	assert.Equal(t, 2, restarted.Position(second))
	assert.Equal(t, -1, restarted.Position(done))

	next, err := restarted.CallNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Arjun", next.Name)

	n, err = restarted.RestoreQueue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, restarted.Queue().Len())

	// The next day starts with an empty line.
	nextDay := NewService(f.repo, NewQueue(), appointment.DefaultDirectory(), zerolog.Nop())
	nextDay.now = func() time.Time { return clinicDay.AddDate(0, 0, 1) }
	n, err = nextDay.RestoreQueue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
