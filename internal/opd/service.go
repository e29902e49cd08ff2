package opd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/opd-frontdesk/internal/appointment"
	"github.com/hackgods/opd-frontdesk/internal/clinic"
)

var (
	ErrInvalidVisit           = errors.New("invalid opd visit")
	ErrActiveVisitExists      = errors.New("patient already has an in-progress visit today")
	ErrInvalidVisitTransition = errors.New("invalid visit status transition")
	ErrQueueEmpty             = errors.New("no patients waiting")
)

type CheckInRequest struct {
	PatientID    uuid.UUID
	DoctorName   string
	Symptoms     string
	Diagnosis    string
	Prescription string
	LabTests     string
	FollowUpDate string
	Notes        string
	VitalSigns   clinic.VitalSigns
}

// ClinicalUpdate carries the fields to overwrite; nil fields are left untouched.
type ClinicalUpdate struct {
	Symptoms     *string
	Diagnosis    *string
	Prescription *string
	LabTests     *string
	Notes        *string
	FollowUpDate *string
	VitalSigns   *clinic.VitalSigns
}

type QueueEntry struct {
	Position    int       `json:"position"`
	PatientID   uuid.UUID `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	VisitID     uuid.UUID `json:"visit_id"`
	DoctorName  string    `json:"doctor_name,omitempty"`
	CheckedInAt time.Time `json:"checked_in_at"`
}

type Service struct {
	repo  clinic.Repository
	queue *Queue
	dir   *appointment.Directory
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(repo clinic.Repository, queue *Queue, dir *appointment.Directory, log zerolog.Logger) *Service {
	return &Service{
		repo:  repo,
		queue: queue,
		dir:   dir,
		log:   log.With().Str("component", "opd").Logger(),
		now:   time.Now,
	}
}

func (s *Service) Queue() *Queue { return s.queue }

// RestoreQueue puts today's in-progress visits back in line in store order.
// It returns how many patients were enqueued.
func (s *Service) RestoreQueue(ctx context.Context) (int, error) {
	visits, err := s.repo.ListVisitsForDate(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("list today's visits: %w", err)
	}

	n := 0
	for _, v := range visits {
		if v.Status != clinic.VisitInProgress || s.queue.Position(v.PatientID) > 0 {
			continue
		}
		s.queue.Enqueue(v.PatientID)
		n++
	}
	if n > 0 {
		s.log.Info().Int("waiting", n).Msg("waiting line restored")
	}
	return n, nil
}

// CheckIn opens an in-progress visit for the patient and puts them in line.
func (s *Service) CheckIn(ctx context.Context, req CheckInRequest) (*clinic.OPDVisit, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient is required", ErrInvalidVisit)
	}
	if strings.TrimSpace(req.Symptoms) == "" {
		return nil, fmt.Errorf("%w: symptoms are required", ErrInvalidVisit)
	}
	if err := validateFollowUp(req.FollowUpDate); err != nil {
		return nil, err
	}

	doc, ok := s.dir.Lookup(strings.TrimSpace(req.DoctorName))
	if !ok {
		return nil, appointment.ErrUnknownDoctor
	}

	patient, err := s.repo.GetPatientByID(ctx, req.PatientID)
	if err != nil {
		if errors.Is(err, clinic.ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	now := s.now()
	from, to := clinic.DayRange(now)
	active, err := s.repo.ListVisits(ctx, clinic.VisitFilter{
		PatientID: patient.ID,
		Status:    clinic.VisitInProgress,
		From:      from,
		To:        to,
	})
	if err != nil {
		return nil, fmt.Errorf("check active visits: %w", err)
	}
	if len(active) > 0 {
		return nil, ErrActiveVisitExists
	}

	visit := &clinic.OPDVisit{
		ID:             uuid.New(),
		PatientID:      patient.ID,
		DoctorName:     doc.Name,
		VisitTimestamp: now,
		Symptoms:       strings.TrimSpace(req.Symptoms),
		Diagnosis:      strings.TrimSpace(req.Diagnosis),
		Prescription:   strings.TrimSpace(req.Prescription),
		LabTests:       strings.TrimSpace(req.LabTests),
		FollowUpDate:   strings.TrimSpace(req.FollowUpDate),
		Notes:          strings.TrimSpace(req.Notes),
		Status:         clinic.VisitInProgress,
		VitalSigns:     stampVitals(req.VitalSigns, now),
	}
	if err := s.repo.SaveVisit(ctx, visit); err != nil {
		return nil, fmt.Errorf("save visit: %w", err)
	}

	s.queue.Enqueue(patient.ID)

	s.log.Info().
		Str("visit_id", visit.ID.String()).
		Str("patient_id", patient.ID.String()).
		Str("doctor", doc.Name).
		Int("position", s.queue.Position(patient.ID)).
		Msg("patient checked in")

	return visit, nil
}

func (s *Service) UpdateClinical(ctx context.Context, visitID uuid.UUID, upd ClinicalUpdate) (*clinic.OPDVisit, error) {
	visit, err := s.repo.GetVisitByID(ctx, visitID)
	if err != nil {
		return nil, fmt.Errorf("load visit: %w", err)
	}

	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&visit.Symptoms, upd.Symptoms)
	set(&visit.Diagnosis, upd.Diagnosis)
	set(&visit.Prescription, upd.Prescription)
	set(&visit.LabTests, upd.LabTests)
	set(&visit.Notes, upd.Notes)

	if upd.FollowUpDate != nil {
		if err := validateFollowUp(*upd.FollowUpDate); err != nil {
			return nil, err
		}
		set(&visit.FollowUpDate, upd.FollowUpDate)
	}
	if upd.VitalSigns != nil {
		visit.VitalSigns = stampVitals(*upd.VitalSigns, s.now())
	}
	if visit.Symptoms == "" {
		return nil, fmt.Errorf("%w: symptoms are required", ErrInvalidVisit)
	}

	if err := s.repo.SaveVisit(ctx, visit); err != nil {
		return nil, fmt.Errorf("save visit: %w", err)
	}
	return visit, nil
}

// Complete closes the consultation. The poll loop of the announcement engine
// picks the visit up from the store on its next cycle.
func (s *Service) Complete(ctx context.Context, visitID uuid.UUID) (*clinic.OPDVisit, error) {
	visit, err := s.repo.GetVisitByID(ctx, visitID)
	if err != nil {
		return nil, fmt.Errorf("load visit: %w", err)
	}
	if visit.Status == clinic.VisitCompleted {
		return nil, ErrInvalidVisitTransition
	}

	patient, err := s.repo.GetPatientByID(ctx, visit.PatientID)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}

	now := s.now()
	visit.Status = clinic.VisitCompleted
	if err := s.repo.SaveVisit(ctx, visit); err != nil {
		return nil, fmt.Errorf("save visit: %w", err)
	}

	s.queue.Dequeue(patient.ID)
	s.queue.MarkCompleted(CompletionRecord{
		PatientID:   patient.ID,
		VisitID:     visit.ID,
		PatientName: patient.Name,
		CompletedAt: now,
	})

	// The visit is already closed in the store; a history write failure is only logged.
	patient.MedicalHistory = append(patient.MedicalHistory, clinic.HistoryEntry{
		Date:    now,
		Summary: historySummary(visit),
		VisitID: visit.ID,
	})
	if err := s.repo.SavePatient(ctx, patient); err != nil {
		s.log.Error().Err(err).
			Str("visit_id", visit.ID.String()).
			Str("patient_id", patient.ID.String()).
			Msg("medical history update failed")
	}

	s.log.Info().
		Str("visit_id", visit.ID.String()).
		Str("patient_id", patient.ID.String()).
		Str("doctor", visit.DoctorName).
		Msg("consultation completed")

	return visit, nil
}

// RequireFollowUp closes an in-progress visit with a follow-up date.
func (s *Service) RequireFollowUp(ctx context.Context, visitID uuid.UUID, date string) (*clinic.OPDVisit, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return nil, fmt.Errorf("%w: follow-up date is required", ErrInvalidVisit)
	}
	if err := validateFollowUp(date); err != nil {
		return nil, err
	}

	visit, err := s.repo.GetVisitByID(ctx, visitID)
	if err != nil {
		return nil, fmt.Errorf("load visit: %w", err)
	}
	if visit.Status != clinic.VisitInProgress {
		return nil, ErrInvalidVisitTransition
	}

	visit.Status = clinic.VisitFollowUpRequired
	visit.FollowUpDate = date
	if err := s.repo.SaveVisit(ctx, visit); err != nil {
		return nil, fmt.Errorf("save visit: %w", err)
	}

	s.queue.Dequeue(visit.PatientID)

	s.log.Info().
		Str("visit_id", visit.ID.String()).
		Str("follow_up_date", date).
		Msg("follow-up required")

	return visit, nil
}

func (s *Service) GetVisit(ctx context.Context, visitID uuid.UUID) (*clinic.OPDVisit, error) {
	visit, err := s.repo.GetVisitByID(ctx, visitID)
	if err != nil {
		return nil, fmt.Errorf("get visit: %w", err)
	}
	return visit, nil
}

func (s *Service) ListVisits(ctx context.Context, filter clinic.VisitFilter) ([]clinic.OPDVisit, error) {
	visits, err := s.repo.ListVisits(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	return visits, nil
}

// QueueView resolves the waiting line against today's visits and the patient records.
func (s *Service) QueueView(ctx context.Context) ([]QueueEntry, error) {
	waiting := s.queue.Waiting()
	if len(waiting) == 0 {
		return []QueueEntry{}, nil
	}

	visits, err := s.repo.ListVisitsForDate(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("list today's visits: %w", err)
	}
	latest := make(map[uuid.UUID]clinic.OPDVisit)
	for _, v := range visits {
		if v.Status == clinic.VisitInProgress {
			latest[v.PatientID] = v
		}
	}

	entries := make([]QueueEntry, 0, len(waiting))
	for i, id := range waiting {
		entry := QueueEntry{Position: i + 1, PatientID: id}

		p, err := s.repo.GetPatientByID(ctx, id)
		switch {
		case err == nil:
			entry.PatientName = p.Name
		case errors.Is(err, clinic.ErrPatientNotFound):
		default:
			return nil, fmt.Errorf("load patient: %w", err)
		}

		if v, ok := latest[id]; ok {
			entry.VisitID = v.ID
			entry.DoctorName = v.DoctorName
			entry.CheckedInAt = v.VisitTimestamp
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CallNext resolves the head of the line without removing it.
func (s *Service) CallNext(ctx context.Context) (*clinic.Patient, error) {
	id, ok := s.queue.PeekNext()
	if !ok {
		return nil, ErrQueueEmpty
	}
	p, err := s.repo.GetPatientByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}
	return p, nil
}

func (s *Service) Position(patientID uuid.UUID) int {
	return s.queue.Position(patientID)
}

// FollowUpsDue lists visits whose follow-up date falls on or before day.
func (s *Service) FollowUpsDue(ctx context.Context, day time.Time) ([]clinic.OPDVisit, error) {
	visits, err := s.repo.ListVisits(ctx, clinic.VisitFilter{})
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}

	var due []clinic.OPDVisit
	for _, v := range visits {
		if v.FollowUpDue(day) {
			due = append(due, v)
		}
	}
	return due, nil
}

// MarkAnnounced is the hook the announcement engine calls after delivering a completion.
func (s *Service) MarkAnnounced(patientID, visitID uuid.UUID) {
	s.queue.MarkAnnounced(patientID, visitID)
}

// ResetDay clears the in-memory tracker only; stored visits are untouched.
func (s *Service) ResetDay() {
	s.queue.ResetDay()
	s.log.Info().Msg("opd day reset")
}

func validateFollowUp(date string) error {
	date = strings.TrimSpace(date)
	if date == "" {
		return nil
	}
	if _, err := time.Parse(clinic.DateLayout, date); err != nil {
		return fmt.Errorf("%w: follow-up date must be YYYY-MM-DD", ErrInvalidVisit)
	}
	return nil
}

func stampVitals(v clinic.VitalSigns, now time.Time) clinic.VitalSigns {
	if v == (clinic.VitalSigns{}) {
		return v
	}
	v.RecordedAt = &now
	return v
}

func historySummary(v *clinic.OPDVisit) string {
	if v.Diagnosis != "" {
		return fmt.Sprintf("%s: %s", v.DoctorName, v.Diagnosis)
	}
	return "Consultation with " + v.DoctorName
}
