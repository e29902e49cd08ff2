package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/hackgods/opd-frontdesk/internal/clinic"
)

var (
	appointmentColumns = []string{"appointment_id", "patient_id", "doctor_name", "department", "appointment_date", "appointment_time", "status"}
	visitColumns       = []string{"visit_id", "patient_id", "doctor_name", "visit_date", "symptoms", "diagnosis", "status"}
)

// Table is a report flattened into rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Detail returns the row-level view of a report: its appointments, else its visits.
// Reports without either are flattened to key/value rows.
func Detail(r any) Table {
	switch v := r.(type) {
	case *Appointments:
		return appointmentTable(v.Appointments)
	case *DoctorConsultations:
		return appointmentTable(v.Appointments)
	case *DailySummary:
		return appointmentTable(v.Appointments)
	case *PatientVisits:
		return visitTable(v.Visits)
	}
	return Stats(r)
}

// Stats flattens the scalar and breakdown fields of a report.
func Stats(r any) Table {
	t := Table{Header: []string{"Metric", "Key", "Value"}}
	add := func(metric, key, value string) {
		t.Rows = append(t.Rows, []string{metric, key, value})
	}
	addMap := func(metric string, m map[string]int) {
		for _, k := range sortedKeys(m) {
			add(metric, k, strconv.Itoa(m[k]))
		}
	}

	switch v := r.(type) {
	case *PatientVisits:
		add("Report Type", "", v.ReportType)
		add("Date Range", "", v.DateRange)
		add("Doctor Filter", "", v.DoctorFilter)
		add("Total Visits", "", strconv.Itoa(v.TotalVisits))
		add("Average Daily Visits", "", formatFloat(v.AverageDaily))
		addMap("Daily Breakdown", v.DailyBreakdown)
		addMap("Doctor Breakdown", v.DoctorBreakdown)
		addMap("Status Breakdown", v.StatusBreakdown)
		add("Generated At", "", v.GeneratedAt)
	case *Appointments:
		add("Report Type", "", v.ReportType)
		add("Date Range", "", v.DateRange)
		add("Doctor Filter", "", v.DoctorFilter)
		add("Total Appointments", "", strconv.Itoa(v.TotalAppointments))
		add("Completion Rate", "", formatFloat(v.CompletionRate))
		addMap("Status Breakdown", v.StatusBreakdown)
		addMap("Doctor Breakdown", v.DoctorBreakdown)
		addMap("Department Breakdown", v.DepartmentBreakdown)
		addMap("Daily Breakdown", v.DailyBreakdown)
		add("Generated At", "", v.GeneratedAt)
	case *DoctorConsultations:
		add("Report Type", "", v.ReportType)
		add("Doctor Name", "", v.DoctorName)
		add("Date Range", "", v.DateRange)
		add("Total Consultations", "", strconv.Itoa(v.TotalConsultations))
		add("Total Appointments", "", strconv.Itoa(v.TotalAppointments))
		add("Unique Patients", "", strconv.Itoa(v.UniquePatients))
		add("Average Daily Consultations", "", formatFloat(v.AverageDaily))
		addMap("Daily Breakdown", v.DailyBreakdown)
		add("Generated At", "", v.GeneratedAt)
	case *DailySummary:
		add("Report Type", "", v.ReportType)
		add("Date", "", v.Date)
		add("New Patients", "", strconv.Itoa(v.NewPatients))
		add("Total Appointments", "", strconv.Itoa(v.TotalAppointments))
		add("Total Consultations", "", strconv.Itoa(v.TotalConsultations))
		addMap("Appointment Status", v.AppointmentStatus)
		addMap("Consultation Status", v.ConsultationStatus)
		addMap("Doctor Consultations", v.DoctorConsultations)
		add("Generated At", "", v.GeneratedAt)
	case *Summary:
		add("Total Patients", "", strconv.Itoa(v.TotalPatients))
		add("New Patients This Month", "", strconv.Itoa(v.NewPatientsThisMonth))
		add("Appointments Today", "", strconv.Itoa(v.AppointmentsToday))
		add("Consultations Today", "", strconv.Itoa(v.ConsultationsToday))
		add("Pending Appointments", "", strconv.Itoa(v.PendingAppointments))
		add("Completed Visits Today", "", strconv.Itoa(v.CompletedVisitsToday))
		add("In Progress Visits Today", "", strconv.Itoa(v.InProgressVisitsToday))
		add("Follow-ups Due", "", strconv.Itoa(v.FollowUpsDue))
	}
	return t
}

func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

func RenderTable(w io.Writer, t Table) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(t.Header)
	tw.SetAutoWrapText(false)
	tw.AppendBulk(t.Rows)
	tw.Render()
}

func appointmentTable(appts []clinic.Appointment) Table {
	t := Table{Header: appointmentColumns}
	for _, a := range appts {
		t.Rows = append(t.Rows, []string{
			a.ID.String(), a.PatientID.String(), a.DoctorName, a.Department, a.Date, a.Time, string(a.Status),
		})
	}
	return t
}

func visitTable(visits []clinic.OPDVisit) Table {
	t := Table{Header: visitColumns}
	for _, v := range visits {
		t.Rows = append(t.Rows, []string{
			v.ID.String(), v.PatientID.String(), v.DoctorName, v.VisitTimestamp.Format(clinic.TimestampLayout),
			v.Symptoms, v.Diagnosis, string(v.Status),
		})
	}
	return t
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
