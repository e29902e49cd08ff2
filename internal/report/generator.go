package report

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/opd-frontdesk/internal/clinic"
)

var ErrInvalidRange = errors.New("invalid report range")

const AllDoctors = "All Doctors"

type PatientVisits struct {
	ReportType      string            `json:"report_type"`
	DateRange       string            `json:"date_range"`
	DoctorFilter    string            `json:"doctor_filter"`
	TotalVisits     int               `json:"total_visits"`
	AverageDaily    float64           `json:"average_daily_visits"`
	DailyBreakdown  map[string]int    `json:"daily_breakdown"`
	DoctorBreakdown map[string]int    `json:"doctor_breakdown"`
	StatusBreakdown map[string]int    `json:"status_breakdown"`
	Visits          []clinic.OPDVisit `json:"visits"`
	GeneratedAt     string            `json:"generated_at"`
}

type Appointments struct {
	ReportType          string               `json:"report_type"`
	DateRange           string               `json:"date_range"`
	DoctorFilter        string               `json:"doctor_filter"`
	TotalAppointments   int                  `json:"total_appointments"`
	CompletionRate      float64              `json:"completion_rate"`
	StatusBreakdown     map[string]int       `json:"status_breakdown"`
	DoctorBreakdown     map[string]int       `json:"doctor_breakdown"`
	DepartmentBreakdown map[string]int       `json:"department_breakdown"`
	DailyBreakdown      map[string]int       `json:"daily_breakdown"`
	Appointments        []clinic.Appointment `json:"appointments"`
	GeneratedAt         string               `json:"generated_at"`
}

type DoctorConsultations struct {
	ReportType         string               `json:"report_type"`
	DoctorName         string               `json:"doctor_name"`
	DateRange          string               `json:"date_range"`
	TotalConsultations int                  `json:"total_consultations"`
	TotalAppointments  int                  `json:"total_appointments"`
	UniquePatients     int                  `json:"unique_patients"`
	AverageDaily       float64              `json:"average_daily_consultations"`
	DailyBreakdown     map[string]int       `json:"daily_breakdown"`
	Consultations      []clinic.OPDVisit    `json:"consultations"`
	Appointments       []clinic.Appointment `json:"appointments"`
	GeneratedAt        string               `json:"generated_at"`
}

type DailySummary struct {
	ReportType          string               `json:"report_type"`
	Date                string               `json:"date"`
	NewPatients         int                  `json:"new_patients"`
	TotalAppointments   int                  `json:"total_appointments"`
	TotalConsultations  int                  `json:"total_consultations"`
	AppointmentStatus   map[string]int       `json:"appointment_status"`
	ConsultationStatus  map[string]int       `json:"consultation_status"`
	DoctorConsultations map[string]int       `json:"doctor_consultations"`
	NewPatientDetails   []clinic.Patient     `json:"new_patient_details"`
	Appointments        []clinic.Appointment `json:"appointments"`
	Consultations       []clinic.OPDVisit    `json:"consultations"`
	GeneratedAt         string               `json:"generated_at"`
}

// Summary is the dashboard snapshot.
type Summary struct {
	TotalPatients         int `json:"total_patients"`
	NewPatientsThisMonth  int `json:"new_patients_this_month"`
	AppointmentsToday     int `json:"appointments_today"`
	ConsultationsToday    int `json:"consultations_today"`
	PendingAppointments   int `json:"pending_appointments"`
	CompletedVisitsToday  int `json:"completed_visits_today"`
	FollowUpsDue          int `json:"follow_ups_due"`
	InProgressVisitsToday int `json:"in_progress_visits_today"`
}

// Generator builds read-only reports from the record store.
type Generator struct {
	repo clinic.Repository
	loc  *time.Location
	now  func() time.Time
}

func NewGenerator(repo clinic.Repository) *Generator {
	return &Generator{repo: repo, loc: time.Local, now: time.Now}
}

type dateRange struct {
	from, to   string
	start, end time.Time // end is exclusive
}

func (r dateRange) String() string { return r.from + " to " + r.to }

func (r dateRange) days() int {
	return int(r.end.Sub(r.start).Hours()/24 + 0.5)
}

func (r dateRange) containsDate(date string) bool {
	return date >= r.from && date <= r.to
}

func (g *Generator) parseRange(from, to string) (dateRange, error) {
	start, err := time.ParseInLocation(clinic.DateLayout, from, g.loc)
	if err != nil {
		return dateRange{}, fmt.Errorf("%w: from must be YYYY-MM-DD", ErrInvalidRange)
	}
	end, err := time.ParseInLocation(clinic.DateLayout, to, g.loc)
	if err != nil {
		return dateRange{}, fmt.Errorf("%w: to must be YYYY-MM-DD", ErrInvalidRange)
	}
	if end.Before(start) {
		return dateRange{}, fmt.Errorf("%w: %s is after %s", ErrInvalidRange, from, to)
	}
	return dateRange{from: from, to: to, start: start, end: end.AddDate(0, 0, 1)}, nil
}

func (g *Generator) generatedAt() string {
	return g.now().In(g.loc).Format(clinic.TimestampLayout)
}

func (g *Generator) PatientVisits(ctx context.Context, from, to, doctor string) (*PatientVisits, error) {
	r, err := g.parseRange(from, to)
	if err != nil {
		return nil, err
	}
	visits, err := g.repo.ListVisits(ctx, clinic.VisitFilter{DoctorName: doctor, From: r.start, To: r.end})
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}

	out := &PatientVisits{
		ReportType:      "Patient Visits Report",
		DateRange:       r.String(),
		DoctorFilter:    doctorLabel(doctor),
		TotalVisits:     len(visits),
		AverageDaily:    round2(float64(len(visits)) / float64(r.days())),
		DailyBreakdown:  map[string]int{},
		DoctorBreakdown: map[string]int{},
		StatusBreakdown: map[string]int{},
		Visits:          nonNil(visits),
		GeneratedAt:     g.generatedAt(),
	}
	for _, v := range visits {
		out.DailyBreakdown[v.VisitTimestamp.In(g.loc).Format(clinic.DateLayout)]++
		out.DoctorBreakdown[v.DoctorName]++
		out.StatusBreakdown[string(v.Status)]++
	}
	return out, nil
}

func (g *Generator) Appointments(ctx context.Context, from, to, doctor string) (*Appointments, error) {
	r, err := g.parseRange(from, to)
	if err != nil {
		return nil, err
	}
	appts, err := g.appointmentsIn(ctx, r, doctor)
	if err != nil {
		return nil, err
	}

	out := &Appointments{
		ReportType:          "Appointment Summary Report",
		DateRange:           r.String(),
		DoctorFilter:        doctorLabel(doctor),
		TotalAppointments:   len(appts),
		StatusBreakdown:     map[string]int{},
		DoctorBreakdown:     map[string]int{},
		DepartmentBreakdown: map[string]int{},
		DailyBreakdown:      map[string]int{},
		Appointments:        appts,
		GeneratedAt:         g.generatedAt(),
	}
	for _, a := range appts {
		out.StatusBreakdown[string(a.Status)]++
		out.DoctorBreakdown[a.DoctorName]++
		out.DepartmentBreakdown[a.Department]++
		out.DailyBreakdown[a.Date]++
	}
	if len(appts) > 0 {
		completed := out.StatusBreakdown[string(clinic.AppointmentCompleted)]
		out.CompletionRate = round2(float64(completed) / float64(len(appts)) * 100)
	}
	return out, nil
}

func (g *Generator) DoctorConsultations(ctx context.Context, doctor, from, to string) (*DoctorConsultations, error) {
	if doctor == "" {
		return nil, fmt.Errorf("%w: doctor is required", ErrInvalidRange)
	}
	r, err := g.parseRange(from, to)
	if err != nil {
		return nil, err
	}
	visits, err := g.repo.ListVisits(ctx, clinic.VisitFilter{DoctorName: doctor, From: r.start, To: r.end})
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	appts, err := g.appointmentsIn(ctx, r, doctor)
	if err != nil {
		return nil, err
	}

	daily := map[string]int{}
	patients := map[uuid.UUID]struct{}{}
	for _, v := range visits {
		daily[v.VisitTimestamp.In(g.loc).Format(clinic.DateLayout)]++
		patients[v.PatientID] = struct{}{}
	}

	return &DoctorConsultations{
		ReportType:         "Doctor Consultation Report",
		DoctorName:         doctor,
		DateRange:          r.String(),
		TotalConsultations: len(visits),
		TotalAppointments:  len(appts),
		UniquePatients:     len(patients),
		AverageDaily:       round2(float64(len(visits)) / float64(r.days())),
		DailyBreakdown:     daily,
		Consultations:      nonNil(visits),
		Appointments:       appts,
		GeneratedAt:        g.generatedAt(),
	}, nil
}

func (g *Generator) DailySummary(ctx context.Context, date string) (*DailySummary, error) {
	day, err := time.ParseInLocation(clinic.DateLayout, date, g.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidRange)
	}

	appts, err := g.repo.ListAppointments(ctx, clinic.AppointmentFilter{Date: date})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	visits, err := g.repo.ListVisitsForDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	patients, err := g.repo.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}

	out := &DailySummary{
		ReportType:          "Daily Summary Report",
		Date:                date,
		TotalAppointments:   len(appts),
		TotalConsultations:  len(visits),
		AppointmentStatus:   map[string]int{},
		ConsultationStatus:  map[string]int{},
		DoctorConsultations: map[string]int{},
		NewPatientDetails:   []clinic.Patient{},
		Appointments:        nonNil(appts),
		Consultations:       nonNil(visits),
		GeneratedAt:         g.generatedAt(),
	}
	for _, p := range patients {
		if clinic.SameDay(p.RegistrationDate.In(g.loc), day) {
			out.NewPatientDetails = append(out.NewPatientDetails, p)
		}
	}
	out.NewPatients = len(out.NewPatientDetails)
	for _, a := range appts {
		out.AppointmentStatus[string(a.Status)]++
	}
	for _, v := range visits {
		out.ConsultationStatus[string(v.Status)]++
		out.DoctorConsultations[v.DoctorName]++
	}
	return out, nil
}

func (g *Generator) SummaryStats(ctx context.Context) (*Summary, error) {
	now := g.now().In(g.loc)
	today := now.Format(clinic.DateLayout)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, g.loc)

	patients, err := g.repo.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	appts, err := g.repo.ListAppointments(ctx, clinic.AppointmentFilter{Date: today})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	visits, err := g.repo.ListVisitsForDate(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	followUps, err := g.repo.ListVisits(ctx, clinic.VisitFilter{})
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}

	s := &Summary{
		TotalPatients:      len(patients),
		AppointmentsToday:  len(appts),
		ConsultationsToday: len(visits),
	}
	for _, p := range patients {
		if !p.RegistrationDate.Before(monthStart) {
			s.NewPatientsThisMonth++
		}
	}
	for _, a := range appts {
		if a.Status == clinic.AppointmentScheduled {
			s.PendingAppointments++
		}
	}
	for _, v := range visits {
		switch v.Status {
		case clinic.VisitCompleted:
			s.CompletedVisitsToday++
		case clinic.VisitInProgress:
			s.InProgressVisitsToday++
		}
	}
	for _, v := range followUps {
		if v.FollowUpDate == today {
			s.FollowUpsDue++
		}
	}
	return s, nil
}

func (g *Generator) appointmentsIn(ctx context.Context, r dateRange, doctor string) ([]clinic.Appointment, error) {
	all, err := g.repo.ListAppointments(ctx, clinic.AppointmentFilter{DoctorName: doctor})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	out := []clinic.Appointment{}
	for _, a := range all {
		if r.containsDate(a.Date) {
			out = append(out, a)
		}
	}
	return out, nil
}

func doctorLabel(doctor string) string {
	if doctor == "" {
		return AllDoctors
	}
	return doctor
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
