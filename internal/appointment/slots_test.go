package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/opd-frontdesk/internal/clinic"
)

func threeSlotDirectory(t *testing.T) *Directory {
	t.Helper()
	dir, err := NewDirectory([]DoctorProfile{
		{Name: "Dr. Rao", Department: "General Medicine", Slots: []string{"09:00", "10:00", "11:00"}},
	})
	require.NoError(t, err)
	return dir
}

func TestAvailableSlots(t *testing.T) {
	dir := threeSlotDirectory(t)
	const day = "2030-04-01"

	tests := []struct {
		name     string
		existing []clinic.Appointment
		want     []string
	}{
		{
			name: "no appointments",
			want: []string{"09:00", "10:00", "11:00"},
		},
		{
			name:     "scheduled blocks",
			existing: []clinic.Appointment{{DoctorName: "Dr. Rao", Date: day, Time: "10:00", Status: clinic.AppointmentScheduled}},
			want:     []string{"09:00", "11:00"},
		},
		{
			name:     "completed blocks",
			existing: []clinic.Appointment{{DoctorName: "Dr. Rao", Date: day, Time: "09:00", Status: clinic.AppointmentCompleted}},
			want:     []string{"10:00", "11:00"},
		},
		{
			name: "cancelled and no-show free the slot",
			existing: []clinic.Appointment{
				{DoctorName: "Dr. Rao", Date: day, Time: "10:00", Status: clinic.AppointmentCancelled},
				{DoctorName: "Dr. Rao", Date: day, Time: "11:00", Status: clinic.AppointmentNoShow},
			},
			want: []string{"09:00", "10:00", "11:00"},
		},
		{
			name: "other doctor or date ignored",
			existing: []clinic.Appointment{
				{DoctorName: "Dr. Other", Date: day, Time: "10:00", Status: clinic.AppointmentScheduled},
				{DoctorName: "Dr. Rao", Date: "2030-04-02", Time: "10:00", Status: clinic.AppointmentScheduled},
			},
			want: []string{"09:00", "10:00", "11:00"},
		},
		{
			name: "all taken",
			existing: []clinic.Appointment{
				{DoctorName: "Dr. Rao", Date: day, Time: "09:00", Status: clinic.AppointmentScheduled},
				{DoctorName: "Dr. Rao", Date: day, Time: "10:00", Status: clinic.AppointmentScheduled},
				{DoctorName: "Dr. Rao", Date: day, Time: "11:00", Status: clinic.AppointmentCompleted},
			},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AvailableSlots(dir, "Dr. Rao", day, tt.existing))
		})
	}
}

func TestAvailableSlots_UnknownDoctorIsEmpty(t *testing.T) {
	assert.Empty(t, AvailableSlots(threeSlotDirectory(t), "Dr. Nobody", "2030-04-01", nil))
}

func TestAvailableSlots_KeepsTemplateOrder(t *testing.T) {
	dir, err := NewDirectory([]DoctorProfile{
		{Name: "Dr. Late", Department: "Cardiology", Slots: []string{"16:00", "08:00", "12:00"}},
	})
	require.NoError(t, err)

	got := AvailableSlots(dir, "Dr. Late", "2030-04-01", []clinic.Appointment{
		{DoctorName: "Dr. Late", Date: "2030-04-01", Time: "08:00", Status: clinic.AppointmentScheduled},
	})
	assert.Equal(t, []string{"16:00", "12:00"}, got)
}
