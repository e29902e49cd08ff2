package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrVisitNotFound       = errors.New("opd visit not found")
)

type AppointmentFilter struct {
	PatientID  uuid.UUID
	DoctorName string
	Date       string
	Status     AppointmentStatus
}

func (f AppointmentFilter) Match(a Appointment) bool {
	if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
		return false
	}
	if f.DoctorName != "" && a.DoctorName != f.DoctorName {
		return false
	}
	if f.Date != "" && a.Date != f.Date {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}

// VisitFilter selects visits. From and To bound the visit timestamp as [From, To).
type VisitFilter struct {
	PatientID  uuid.UUID
	DoctorName string
	Status     VisitStatus
	From       time.Time
	To         time.Time
}

func (f VisitFilter) Match(v OPDVisit) bool {
	if f.PatientID != uuid.Nil && v.PatientID != f.PatientID {
		return false
	}
	if f.DoctorName != "" && v.DoctorName != f.DoctorName {
		return false
	}
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && v.VisitTimestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !v.VisitTimestamp.Before(f.To) {
		return false
	}
	return true
}

// Repository is the record store behind every front-desk operation.
type Repository interface {
	ListPatients(ctx context.Context) ([]Patient, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	SavePatient(ctx context.Context, p *Patient) error
	DeletePatient(ctx context.Context, id uuid.UUID) error

	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	SaveAppointment(ctx context.Context, a *Appointment) error
	DeleteAppointment(ctx context.Context, id uuid.UUID) error

	ListVisits(ctx context.Context, filter VisitFilter) ([]OPDVisit, error)
	// ListVisitsForDate returns the visits of day's calendar date in store order.
	ListVisitsForDate(ctx context.Context, day time.Time) ([]OPDVisit, error)
	GetVisitByID(ctx context.Context, id uuid.UUID) (*OPDVisit, error)
	SaveVisit(ctx context.Context, v *OPDVisit) error

	GetSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error

	Ping(ctx context.Context) error
}

// DayRange returns the half-open range covering day's calendar date.
func DayRange(day time.Time) (time.Time, time.Time) {
	start := StartOfDay(day)
	return start, start.AddDate(0, 0, 1)
}

func appendUnique(ids []uuid.UUID, id uuid.UUID) ([]uuid.UUID, bool) {
	for _, existing := range ids {
		if existing == id {
			return ids, false
		}
	}
	return append(ids, id), true
}
