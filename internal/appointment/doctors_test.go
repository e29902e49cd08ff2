package appointment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDirectory(t *testing.T) {
	dir := DefaultDirectory()

	assert.Len(t, dir.Doctors(), 5)
	assert.Equal(t, []string{"Cardiology", "Dermatology", "General Medicine", "Orthopedics", "Pediatrics"}, dir.Departments())

	smith, ok := dir.Lookup("Dr. Smith")
	require.True(t, ok)
	assert.Equal(t, "General Medicine", smith.Department)
	assert.Equal(t, []string{"09:00", "10:00", "11:00", "14:00", "15:00", "16:00"}, smith.Slots)

	// Callers get copies.
	smith.Slots[0] = "23:59"
	again, _ := dir.Lookup("Dr. Smith")
	assert.Equal(t, "09:00", again.Slots[0])
}

func TestNewDirectory_Validation(t *testing.T) {
	_, err := NewDirectory(nil)
	assert.Error(t, err)

	_, err = NewDirectory([]DoctorProfile{{Name: "A", Slots: []string{"9am"}}})
	assert.Error(t, err)

	_, err = NewDirectory([]DoctorProfile{{Name: "A", Slots: []string{"09:00", "09:00"}}})
	assert.Error(t, err)

	_, err = NewDirectory([]DoctorProfile{{Name: "A"}, {Name: "A"}})
	assert.Error(t, err)
}

func TestLoadDirectory(t *testing.T) {
	dir, err := LoadDirectory("")
	require.NoError(t, err)
	assert.Len(t, dir.Doctors(), 5)

	path := filepath.Join(t.TempDir(), "doctors.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"name": "Dr. Iyer", "department": "ENT", "slots": ["10:00", "10:30"]},
		{"name": "Dr. Khan", "department": "ENT", "slots": ["11:00"]}
	]`), 0o644))

	dir, err = LoadDirectory(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ENT"}, dir.Departments())
	assert.Len(t, dir.DoctorsIn("ENT"), 2)

	_, err = LoadDirectory(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
