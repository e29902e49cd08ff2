package announce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatientCallMessage(t *testing.T) {
	assert.Equal(t, "Patient Mira, please report to room 12 for your appointment.", PatientCallMessage("Mira", "12"))
	assert.Equal(t, "Patient Mira, please report to the consultation room for your appointment.", PatientCallMessage("Mira", " "))
}

func TestPresetMessage(t *testing.T) {
	tests := []struct {
		preset Preset
		text   string
		want   string
	}{
		{PresetConsultationComplete, "", "Patient Dev, your consultation is complete. Please collect your prescription from the front desk."},
		{PresetPrescriptionReady, "", "Patient Dev, your prescription is ready for collection at the pharmacy counter."},
		{PresetReportToReception, "", "Patient Dev, please report to the reception desk for assistance."},
		{PresetCustom, "your reports are ready.", "Patient Dev, your reports are ready."},
	}
	for _, tt := range tests {
		t.Run(string(tt.preset), func(t *testing.T) {
			got, err := PresetMessage(tt.preset, "Dev", tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := PresetMessage(PresetCustom, "Dev", "")
	assert.ErrorIs(t, err, ErrInvalidAnnouncement)
}

func TestSpeechArgs(t *testing.T) {
	assert.Equal(t, []string{"-s", "150", "-a", "160", "hi"}, speechArgs("espeak-ng")("hi"))
	assert.Equal(t, []string{"-r", "150", "hi"}, speechArgs("say")("hi"))
	assert.Equal(t, []string{"-w", "-i", "60", "hi"}, speechArgs("spd-say")("hi"))
	assert.Equal(t, []string{"hi"}, speechArgs("my-tts")("hi"))
}

func TestDetectSpeaker_UnknownCommand(t *testing.T) {
	_, ok := DetectSpeaker("definitely-not-a-real-tts-binary")
	assert.False(t, ok)
}
