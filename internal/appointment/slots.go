package appointment

import "github.com/hackgods/opd-frontdesk/internal/clinic"

// AvailableSlots returns the doctor's template slots for date that no Scheduled or
// Completed appointment holds, in template order. Unknown doctors yield nil.
func AvailableSlots(dir *Directory, doctorName, date string, existing []clinic.Appointment) []string {
	doc, ok := dir.Lookup(doctorName)
	if !ok {
		return nil
	}

	taken := make(map[string]struct{})
	for _, a := range existing {
		if a.DoctorName == doctorName && a.Date == date && a.Status.Blocking() {
			taken[a.Time] = struct{}{}
		}
	}

	free := make([]string, 0, len(doc.Slots))
	for _, s := range doc.Slots {
		if _, busy := taken[s]; !busy {
			free = append(free, s)
		}
	}
	return free
}
