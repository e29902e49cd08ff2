package api

import (
	"github.com/hackgods/opd-frontdesk/internal/clinic"
)

type PatientRequest struct {
	Name    string `json:"name"`
	Age     int    `json:"age"`
	Gender  string `json:"gender"`
	Contact string `json:"contact"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type CreateAppointmentRequest struct {
	PatientID  string `json:"patient_id"`
	DoctorName string `json:"doctor_name"`
	Department string `json:"department"`
	Date       string `json:"appointment_date"`
	Time       string `json:"appointment_time"`
	Notes      string `json:"notes"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type SlotsResponse struct {
	DoctorName string   `json:"doctor_name"`
	Date       string   `json:"date"`
	Slots      []string `json:"slots"`
}

type CheckInRequest struct {
	PatientID    string            `json:"patient_id"`
	DoctorName   string            `json:"doctor_name"`
	Symptoms     string            `json:"symptoms"`
	Diagnosis    string            `json:"diagnosis"`
	Prescription string            `json:"prescription"`
	LabTests     string            `json:"lab_tests"`
	FollowUpDate string            `json:"follow_up_date"`
	Notes        string            `json:"notes"`
	VitalSigns   clinic.VitalSigns `json:"vital_signs"`
}

// UpdateVisitRequest only overwrites the fields present in the body.
type UpdateVisitRequest struct {
	Symptoms     *string            `json:"symptoms"`
	Diagnosis    *string            `json:"diagnosis"`
	Prescription *string            `json:"prescription"`
	LabTests     *string            `json:"lab_tests"`
	Notes        *string            `json:"notes"`
	FollowUpDate *string            `json:"follow_up_date"`
	VitalSigns   *clinic.VitalSigns `json:"vital_signs"`
}

type FollowUpRequest struct {
	Date string `json:"follow_up_date"`
}

type CallNextResponse struct {
	Patient       *clinic.Patient `json:"patient"`
	Announced     string          `json:"announced,omitempty"`
	DeliveryError string          `json:"delivery_error,omitempty"`
}

type IntervalRequest struct {
	Seconds int `json:"seconds"`
}

type IntervalResponse struct {
	Seconds int `json:"seconds"`
}

type AnnounceRequest struct {
	PatientName string `json:"patient_name"`
	Message     string `json:"message"`
}

type CallRequest struct {
	PatientName string `json:"patient_name"`
	Room        string `json:"room"`
}

// QueuePositionRequest names a waiting patient; the position comes from the live queue.
type QueuePositionRequest struct {
	PatientID string `json:"patient_id"`
}

type PresetRequest struct {
	Preset      string `json:"preset"`
	PatientName string `json:"patient_name"`
	Text        string `json:"text"`
}

type AnnouncementResponse struct {
	Message string `json:"message"`
	// DeliveryError is set when a sink failed; the other sink may still have delivered.
	DeliveryError string `json:"delivery_error,omitempty"`
}

type SettingsRequest struct {
	HospitalName         *string `json:"hospital_name"`
	AnnouncementEnabled  *bool   `json:"announcement_enabled"`
	AnnouncementInterval *int    `json:"announcement_interval"`
	AutoBackupEnabled    *bool   `json:"auto_backup_enabled"`
}

type RestoreRequest struct {
	Name string `json:"name"`
}

type BackupResponse struct {
	Path string `json:"path"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
