package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/opd-frontdesk/internal/clinic"
	redisclient "github.com/hackgods/opd-frontdesk/internal/redis"
)

const (
	EventAppointmentBooked  = "APPOINTMENT_BOOKED"
	EventAppointmentUpdated = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentDeleted = "APPOINTMENT_DELETED"
)

var (
	ErrInvalidRequest          = errors.New("invalid appointment request")
	ErrUnknownDoctor           = errors.New("unknown doctor")
	ErrSlotNotInTemplate       = errors.New("time is not one of the doctor's slots")
	ErrAppointmentInPast       = errors.New("appointment date and time are in the past")
	ErrSlotAlreadyBooked       = errors.New("slot already has an active appointment")
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

type BookRequest struct {
	PatientID  uuid.UUID
	DoctorName string
	Department string
	Date       string
	Time       string
	Notes      string
}

type Service struct {
	repo   clinic.Repository
	locker redisclient.Locker
	dir    *Directory
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(repo clinic.Repository, locker redisclient.Locker, dir *Directory, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		dir:    dir,
		log:    log.With().Str("component", "appointments").Logger(),
		now:    time.Now,
	}
}

func (s *Service) Directory() *Directory { return s.dir }

func (s *Service) Doctors() []DoctorProfile { return s.dir.Doctors() }

func (s *Service) Departments() []string { return s.dir.Departments() }

// Book schedules an appointment after the soft double-booking check.
// The check and the write run under a per-slot lock so that concurrent bookings
// sharing the locker cannot both take the same slot.
func (s *Service) Book(ctx context.Context, req BookRequest) (*clinic.Appointment, error) {
	req.DoctorName = strings.TrimSpace(req.DoctorName)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)

	if req.PatientID == uuid.Nil || req.DoctorName == "" || req.Date == "" || req.Time == "" {
		return nil, fmt.Errorf("%w: patient, doctor, date and time are required", ErrInvalidRequest)
	}
	if _, err := time.Parse(clinic.DateLayout, req.Date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidRequest)
	}
	if _, err := time.Parse(clinic.TimeLayout, req.Time); err != nil {
		return nil, fmt.Errorf("%w: time must be HH:MM", ErrInvalidRequest)
	}

	doc, ok := s.dir.Lookup(req.DoctorName)
	if !ok {
		return nil, ErrUnknownDoctor
	}
	if !doc.HasSlot(req.Time) {
		return nil, ErrSlotNotInTemplate
	}

	now := s.now()
	startsAt, err := time.ParseInLocation(clinic.DateLayout+" "+clinic.TimeLayout, req.Date+" "+req.Time, now.Location())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if startsAt.Before(now) {
		return nil, ErrAppointmentInPast
	}

	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, clinic.ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	department := strings.TrimSpace(req.Department)
	if department == "" {
		department = doc.Department
	}

	var created *clinic.Appointment

	key := redisclient.SlotKey(doc.Name, req.Date, req.Time)
	err = s.locker.WithSlotLock(ctx, key, func(lockCtx context.Context) error {
		// Inside the critical section re-read the doctor's day
		existing, err := s.repo.ListAppointments(lockCtx, clinic.AppointmentFilter{DoctorName: doc.Name, Date: req.Date})
		if err != nil {
			return fmt.Errorf("check existing appointments: %w", err)
		}
		for _, a := range existing {
			if a.Time == req.Time && a.Status.Blocking() {
				return ErrSlotAlreadyBooked
			}
		}

		appt := &clinic.Appointment{
			ID:          uuid.New(),
			PatientID:   req.PatientID,
			DoctorName:  doc.Name,
			Department:  department,
			Date:        req.Date,
			Time:        req.Time,
			Status:      clinic.AppointmentScheduled,
			Notes:       strings.TrimSpace(req.Notes),
			CreatedDate: now,
		}
		if err := s.repo.SaveAppointment(lockCtx, appt); err != nil {
			return fmt.Errorf("save appointment: %w", err)
		}

		created = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.logEvent(created, EventAppointmentBooked)
	return created, nil
}

// UpdateStatus moves a Scheduled appointment to Completed, Cancelled or No-Show.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status clinic.AppointmentStatus) (*clinic.Appointment, error) {
	if !status.Valid() || status == clinic.AppointmentScheduled {
		return nil, ErrInvalidStatusTransition
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status != clinic.AppointmentScheduled {
		return nil, ErrInvalidStatusTransition
	}

	appt.Status = status
	if err := s.repo.SaveAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(appt, EventAppointmentUpdated)
	return appt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) List(ctx context.Context, filter clinic.AppointmentFilter) ([]clinic.Appointment, error) {
	appts, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}
	if err := s.repo.DeleteAppointment(ctx, id); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	s.logEvent(appt, EventAppointmentDeleted)
	return nil
}

// AvailableSlots lists the doctor's open slots for date. An unknown doctor has none.
func (s *Service) AvailableSlots(ctx context.Context, doctorName, date string) ([]string, error) {
	if _, err := time.Parse(clinic.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidRequest)
	}
	if _, ok := s.dir.Lookup(doctorName); !ok {
		return []string{}, nil
	}

	existing, err := s.repo.ListAppointments(ctx, clinic.AppointmentFilter{DoctorName: doctorName, Date: date})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return AvailableSlots(s.dir, doctorName, date, existing), nil
}

func (s *Service) logEvent(appt *clinic.Appointment, eventType string) {
	s.log.Info().
		Str("event", eventType).
		Str("appointment_id", appt.ID.String()).
		Str("patient_id", appt.PatientID.String()).
		Str("doctor", appt.DoctorName).
		Str("date", appt.Date).
		Str("time", appt.Time).
		Str("status", string(appt.Status)).
		Msg("appointment event")
}
