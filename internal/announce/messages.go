package announce

import (
	"fmt"
	"strings"
)

const (
	DefaultTestMessage = "This is a test announcement. The announcement system is working properly."
	TestPrefix         = "TEST: "
)

// Preset is a canned front-desk message.
type Preset string

const (
	PresetConsultationComplete Preset = "consultation_complete"
	PresetPrescriptionReady    Preset = "prescription_ready"
	PresetReportToReception    Preset = "report_to_reception"
	PresetCustom               Preset = "custom"
)

func CompletionMessage(patientName, doctorName string) string {
	return fmt.Sprintf("Patient %s consultation with %s is complete. Please collect your prescription from the front desk.", patientName, doctorName)
}

func FrontDeskMessage(patientName string) string {
	return fmt.Sprintf("Patient %s, please proceed to the front desk.", patientName)
}

func PatientCallMessage(patientName, room string) string {
	room = strings.TrimSpace(room)
	if room == "" {
		return fmt.Sprintf("Patient %s, please report to the consultation room for your appointment.", patientName)
	}
	return fmt.Sprintf("Patient %s, please report to room %s for your appointment.", patientName, room)
}

func QueuePositionMessage(patientName string, position int) string {
	if position == 1 {
		return fmt.Sprintf("Patient %s, you are next in line.", patientName)
	}
	return fmt.Sprintf("Patient %s, you are number %d in the queue.", patientName, position)
}

// PresetMessage renders a preset; text is only used by PresetCustom.
func PresetMessage(p Preset, patientName, text string) (string, error) {
	switch p {
	case PresetConsultationComplete:
		return fmt.Sprintf("Patient %s, your consultation is complete. Please collect your prescription from the front desk.", patientName), nil
	case PresetPrescriptionReady:
		return fmt.Sprintf("Patient %s, your prescription is ready for collection at the pharmacy counter.", patientName), nil
	case PresetReportToReception:
		return fmt.Sprintf("Patient %s, please report to the reception desk for assistance.", patientName), nil
	case PresetCustom:
		text = strings.TrimSpace(text)
		if text == "" {
			return "", fmt.Errorf("%w: custom preset needs text", ErrInvalidAnnouncement)
		}
		return fmt.Sprintf("Patient %s, %s", patientName, text), nil
	default:
		return "", fmt.Errorf("%w: unknown preset %q", ErrInvalidAnnouncement, p)
	}
}
