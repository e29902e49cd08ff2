package clinic

import (
	"time"

	"github.com/google/uuid"
)

const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04"
	TimestampLayout = "2006-01-02 15:04:05"
)

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "Scheduled"
	AppointmentCompleted AppointmentStatus = "Completed"
	AppointmentCancelled AppointmentStatus = "Cancelled"
	AppointmentNoShow    AppointmentStatus = "No-Show"
)

// Blocking reports whether an appointment in this status occupies its slot.
func (s AppointmentStatus) Blocking() bool {
	return s == AppointmentScheduled || s == AppointmentCompleted
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentScheduled, AppointmentCompleted, AppointmentCancelled, AppointmentNoShow:
		return true
	}
	return false
}

type VisitStatus string

const (
	VisitInProgress       VisitStatus = "In Progress"
	VisitCompleted        VisitStatus = "Completed"
	VisitFollowUpRequired VisitStatus = "Follow-up Required"
)

func (s VisitStatus) Valid() bool {
	switch s {
	case VisitInProgress, VisitCompleted, VisitFollowUpRequired:
		return true
	}
	return false
}

type Patient struct {
	ID               uuid.UUID      `json:"patient_id"`
	Name             string         `json:"name"`
	Age              int            `json:"age"`
	Gender           string         `json:"gender"`
	Contact          string         `json:"contact"`
	Address          string         `json:"address"`
	Phone            string         `json:"phone"`
	RegistrationDate time.Time      `json:"registration_date"`
	Appointments     []uuid.UUID    `json:"appointments"`
	OPDVisits        []uuid.UUID    `json:"opd_visits"`
	MedicalHistory   []HistoryEntry `json:"medical_history"`
}

type HistoryEntry struct {
	Date    time.Time `json:"date"`
	Summary string    `json:"summary"`
	VisitID uuid.UUID `json:"visit_id"`
}

type Appointment struct {
	ID          uuid.UUID         `json:"appointment_id"`
	PatientID   uuid.UUID         `json:"patient_id"`
	DoctorName  string            `json:"doctor_name"`
	Department  string            `json:"department"`
	Date        string            `json:"appointment_date"` // YYYY-MM-DD
	Time        string            `json:"appointment_time"` // HH:MM, one of the doctor's slots
	Status      AppointmentStatus `json:"status"`
	Notes       string            `json:"notes"`
	CreatedDate time.Time         `json:"created_date"`
}

// StartsAt returns the appointment date and time in loc.
func (a Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, a.Date+" "+a.Time, loc)
}

type VitalSigns struct {
	BloodPressure string     `json:"blood_pressure,omitempty"`
	Temperature   string     `json:"temperature,omitempty"`
	Pulse         string     `json:"pulse,omitempty"`
	Weight        string     `json:"weight,omitempty"`
	Height        string     `json:"height,omitempty"`
	RecordedAt    *time.Time `json:"recorded_at,omitempty"`
}

type OPDVisit struct {
	ID             uuid.UUID   `json:"visit_id"`
	PatientID      uuid.UUID   `json:"patient_id"`
	DoctorName     string      `json:"doctor_name"`
	VisitTimestamp time.Time   `json:"visit_date"`
	Symptoms       string      `json:"symptoms"`
	Diagnosis      string      `json:"diagnosis"`
	Prescription   string      `json:"prescription"`
	LabTests       string      `json:"lab_tests"`
	FollowUpDate   string      `json:"follow_up_date"` // YYYY-MM-DD or empty
	Notes          string      `json:"notes"`
	Status         VisitStatus `json:"status"`
	VitalSigns     VitalSigns  `json:"vital_signs"`
}

// OnDay reports whether the visit took place on the calendar day of day, in day's location.
func (v OPDVisit) OnDay(day time.Time) bool {
	return SameDay(v.VisitTimestamp.In(day.Location()), day)
}

// NeedsFollowUp is true when a follow-up date is set or the status asks for one.
func (v OPDVisit) NeedsFollowUp() bool {
	return v.FollowUpDate != "" || v.Status == VisitFollowUpRequired
}

// FollowUpDue reports whether the follow-up date is on or before day.
func (v OPDVisit) FollowUpDue(day time.Time) bool {
	if v.FollowUpDate == "" {
		return false
	}
	due, err := time.ParseInLocation(DateLayout, v.FollowUpDate, day.Location())
	if err != nil {
		return false
	}
	return !due.After(StartOfDay(day))
}

type Settings struct {
	HospitalName                string `json:"hospital_name"`
	AnnouncementEnabled         bool   `json:"announcement_enabled"`
	AnnouncementIntervalSeconds int    `json:"announcement_interval"`
	LastBackup                  string `json:"last_backup"`
	AutoBackupEnabled           bool   `json:"auto_backup_enabled"`
}

func DefaultSettings() Settings {
	return Settings{
		HospitalName:                "City Hospital",
		AnnouncementEnabled:         true,
		AnnouncementIntervalSeconds: 30,
		AutoBackupEnabled:           true,
	}
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
