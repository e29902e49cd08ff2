package appointment

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/hackgods/opd-frontdesk/internal/clinic"
)

// DoctorProfile is static reference data: who consults, in which department, and
// the ordered daily slots they offer.
type DoctorProfile struct {
	Name       string   `json:"name"`
	Department string   `json:"department"`
	Slots      []string `json:"slots"`
}

func (d DoctorProfile) HasSlot(t string) bool {
	for _, s := range d.Slots {
		if s == t {
			return true
		}
	}
	return false
}

// Directory is a read-only set of doctor profiles. Safe for concurrent use.
type Directory struct {
	doctors []DoctorProfile
	byName  map[string]int
}

var defaultDoctors = []DoctorProfile{
	{Name: "Dr. Smith", Department: "General Medicine", Slots: []string{"09:00", "10:00", "11:00", "14:00", "15:00", "16:00"}},
	{Name: "Dr. Johnson", Department: "Cardiology", Slots: []string{"09:30", "10:30", "11:30", "14:30", "15:30"}},
	{Name: "Dr. Williams", Department: "Pediatrics", Slots: []string{"08:00", "09:00", "10:00", "11:00", "14:00", "15:00"}},
	{Name: "Dr. Brown", Department: "Orthopedics", Slots: []string{"10:00", "11:00", "14:00", "15:00", "16:00"}},
	{Name: "Dr. Davis", Department: "Dermatology", Slots: []string{"09:00", "10:00", "11:00", "15:00", "16:00"}},
}

func DefaultDirectory() *Directory {
	d, _ := NewDirectory(defaultDoctors)
	return d
}

// NewDirectory validates profiles: unique non-empty names and HH:MM slots without repeats.
func NewDirectory(doctors []DoctorProfile) (*Directory, error) {
	if len(doctors) == 0 {
		return nil, errors.New("doctor directory is empty")
	}

	d := &Directory{byName: make(map[string]int, len(doctors))}
	for _, doc := range doctors {
		if doc.Name == "" {
			return nil, errors.New("doctor name is required")
		}
		if _, dup := d.byName[doc.Name]; dup {
			return nil, fmt.Errorf("duplicate doctor %q", doc.Name)
		}
		seen := make(map[string]struct{}, len(doc.Slots))
		for _, s := range doc.Slots {
			if _, err := time.Parse(clinic.TimeLayout, s); err != nil {
				return nil, fmt.Errorf("doctor %q: invalid slot %q", doc.Name, s)
			}
			if _, dup := seen[s]; dup {
				return nil, fmt.Errorf("doctor %q: duplicate slot %q", doc.Name, s)
			}
			seen[s] = struct{}{}
		}

		doc.Slots = append([]string(nil), doc.Slots...)
		d.byName[doc.Name] = len(d.doctors)
		d.doctors = append(d.doctors, doc)
	}
	return d, nil
}

// LoadDirectory reads profiles from a JSON array file; an empty path yields the default doctors.
func LoadDirectory(path string) (*Directory, error) {
	if path == "" {
		return DefaultDirectory(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read doctors file: %w", err)
	}

	var doctors []DoctorProfile
	if err := json.Unmarshal(data, &doctors); err != nil {
		return nil, fmt.Errorf("decode doctors file: %w", err)
	}
	return NewDirectory(doctors)
}

func (d *Directory) Lookup(name string) (DoctorProfile, bool) {
	i, ok := d.byName[name]
	if !ok {
		return DoctorProfile{}, false
	}
	doc := d.doctors[i]
	doc.Slots = append([]string(nil), doc.Slots...)
	return doc, true
}

// Doctors returns all profiles in configuration order.
func (d *Directory) Doctors() []DoctorProfile {
	out := make([]DoctorProfile, len(d.doctors))
	for i, doc := range d.doctors {
		doc.Slots = append([]string(nil), doc.Slots...)
		out[i] = doc
	}
	return out
}

// Departments returns the sorted unique department names.
func (d *Directory) Departments() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, doc := range d.doctors {
		if _, ok := seen[doc.Department]; ok {
			continue
		}
		seen[doc.Department] = struct{}{}
		out = append(out, doc.Department)
	}
	sort.Strings(out)
	return out
}

// DoctorsIn returns the doctors of one department in configuration order.
func (d *Directory) DoctorsIn(department string) []DoctorProfile {
	var out []DoctorProfile
	for _, doc := range d.Doctors() {
		if doc.Department == department {
			out = append(out, doc)
		}
	}
	return out
}
