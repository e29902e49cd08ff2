package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/opd-frontdesk/internal/clinic"
	redisclient "github.com/hackgods/opd-frontdesk/internal/redis"
)

var fixedNow = time.Date(2030, 4, 1, 8, 30, 0, 0, time.Local)

func newTestService(t *testing.T) (*Service, *clinic.JSONRepository, uuid.UUID) {
	t.Helper()

	repo, err := clinic.OpenJSONRepository(t.TempDir())
	require.NoError(t, err)

	p := &clinic.Patient{Name: "Meera", Age: 29, Gender: "Female"}
	require.NoError(t, repo.SavePatient(context.Background(), p))

	svc := NewService(repo, redisclient.NewMemorySlotLocker(time.Second), DefaultDirectory(), zerolog.Nop())
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, p.ID
}

func TestBook_Success(t *testing.T) {
	svc, repo, patientID := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, BookRequest{PatientID: patientID, DoctorName: "Dr. Smith", Date: "2030-04-01", Time: "10:00"})
	require.NoError(t, err)
	assert.Equal(t, clinic.AppointmentScheduled, appt.Status)
	assert.Equal(t, "General Medicine", appt.Department)

	stored, err := repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "10:00", stored.Time)

	slots, err := svc.AvailableSlots(ctx, "Dr. Smith", "2030-04-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "11:00", "14:00", "15:00", "16:00"}, slots)
}

func TestBook_Rejections(t *testing.T) {
	svc, _, patientID := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  BookRequest
		want error
	}{
		{"missing fields", BookRequest{PatientID: patientID, DoctorName: "Dr. Smith"}, ErrInvalidRequest},
		{"bad date", BookRequest{PatientID: patientID, DoctorName: "Dr. Smith", Date: "01/04/2030", Time: "10:00"}, ErrInvalidRequest},
		{"bad time", BookRequest{PatientID: patientID, DoctorName: "Dr. Smith", Date: "2030-04-01", Time: "10am"}, ErrInvalidRequest},
		{"unknown doctor", BookRequest{PatientID: patientID, DoctorName: "Dr. Who", Date: "2030-04-01", Time: "10:00"}, ErrUnknownDoctor},
		{"outside template", BookRequest{PatientID: patientID, DoctorName: "Dr. Smith", Date: "2030-04-01", Time: "10:15"}, ErrSlotNotInTemplate},
		{"in the past", BookRequest{PatientID: patientID, DoctorName: "Dr. Williams", Date: "2030-04-01", Time: "08:00"}, ErrAppointmentInPast},
		{"unknown patient", BookRequest{PatientID: uuid.New(), DoctorName: "Dr. Smith", Date: "2030-04-01", Time: "10:00"}, clinic.ErrPatientNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Book(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBook_DoubleBookingRejected(t *testing.T) {
	svc, _, patientID := newTestService(t)
	ctx := context.Background()
	req := BookRequest{PatientID: patientID, DoctorName: "Dr. Davis", Date: "2030-04-02", Time: "09:00"}

	first, err := svc.Book(ctx, req)
	require.NoError(t, err)

	_, err = svc.Book(ctx, req)
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)

	// Cancelling frees the slot again.
	_, err = svc.UpdateStatus(ctx, first.ID, clinic.AppointmentCancelled)
	require.NoError(t, err)

	_, err = svc.Book(ctx, req)
	assert.NoError(t, err)
}

func TestBook_ConcurrentSameSlot(t *testing.T) {
	svc, _, patientID := newTestService(t)
	req := BookRequest{PatientID: patientID, DoctorName: "Dr. Brown", Date: "2030-04-03", Time: "11:00"}

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Book(context.Background(), req)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrSlotAlreadyBooked), errors.Is(err, ErrSlotBeingBooked):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestUpdateStatus_Transitions(t *testing.T) {
	svc, _, patientID := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, BookRequest{PatientID: patientID, DoctorName: "Dr. Johnson", Date: "2030-04-05", Time: "09:30"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, appt.ID, "Postponed")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = svc.UpdateStatus(ctx, appt.ID, clinic.AppointmentScheduled)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	updated, err := svc.UpdateStatus(ctx, appt.ID, clinic.AppointmentNoShow)
	require.NoError(t, err)
	assert.Equal(t, clinic.AppointmentNoShow, updated.Status)

	_, err = svc.UpdateStatus(ctx, appt.ID, clinic.AppointmentCompleted)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = svc.UpdateStatus(ctx, uuid.New(), clinic.AppointmentCompleted)
	assert.ErrorIs(t, err, clinic.ErrAppointmentNotFound)
}

func TestDeleteAndList(t *testing.T) {
	svc, _, patientID := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, BookRequest{PatientID: patientID, DoctorName: "Dr. Smith", Date: "2030-04-06", Time: "14:00"})
	require.NoError(t, err)

	list, err := svc.List(ctx, clinic.AppointmentFilter{PatientID: patientID})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, appt.ID))
	assert.ErrorIs(t, svc.Delete(ctx, appt.ID), clinic.ErrAppointmentNotFound)

	_, err = svc.Get(ctx, appt.ID)
	assert.ErrorIs(t, err, clinic.ErrAppointmentNotFound)
}

func TestServiceAvailableSlots_UnknownDoctorAndBadDate(t *testing.T) {
	svc, _, _ := newTestService(t)

	slots, err := svc.AvailableSlots(context.Background(), "Dr. Nobody", "2030-04-01")
	require.NoError(t, err)
	assert.Empty(t, slots)

	_, err = svc.AvailableSlots(context.Background(), "Dr. Smith", "tomorrow")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
