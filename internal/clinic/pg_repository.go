package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS patients (
	id                UUID PRIMARY KEY,
	name              TEXT NOT NULL,
	age               INT NOT NULL,
	gender            TEXT NOT NULL,
	contact           TEXT NOT NULL DEFAULT '',
	address           TEXT NOT NULL DEFAULT '',
	phone             TEXT NOT NULL DEFAULT '',
	registration_date TIMESTAMPTZ NOT NULL DEFAULT now(),
	medical_history   JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS appointments (
	id               UUID PRIMARY KEY,
	patient_id       UUID NOT NULL,
	doctor_name      TEXT NOT NULL,
	department       TEXT NOT NULL DEFAULT '',
	appointment_date DATE NOT NULL,
	appointment_time TEXT NOT NULL,
	status           TEXT NOT NULL,
	notes            TEXT NOT NULL DEFAULT '',
	created_date     TIMESTAMPTZ NOT NULL DEFAULT now(),
	seq              BIGSERIAL
);
CREATE INDEX IF NOT EXISTS appointments_doctor_date_idx ON appointments (doctor_name, appointment_date);

CREATE TABLE IF NOT EXISTS opd_visits (
	id             UUID PRIMARY KEY,
	patient_id     UUID NOT NULL,
	doctor_name    TEXT NOT NULL,
	visit_date     TIMESTAMPTZ NOT NULL,
	symptoms       TEXT NOT NULL DEFAULT '',
	diagnosis      TEXT NOT NULL DEFAULT '',
	prescription   TEXT NOT NULL DEFAULT '',
	lab_tests      TEXT NOT NULL DEFAULT '',
	follow_up_date TEXT NOT NULL DEFAULT '',
	notes          TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	vital_signs    JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS opd_visits_visit_date_idx ON opd_visits (visit_date);

CREATE TABLE IF NOT EXISTS clinic_settings (
	id   SMALLINT PRIMARY KEY DEFAULT 1,
	data JSONB NOT NULL
);
`

// EnsureSchema creates the clinic tables when they are missing.
func (r *PgRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Helpers

const patientColumns = `
	p.id, p.name, p.age, p.gender, p.contact, p.address, p.phone, p.registration_date, p.medical_history,
	COALESCE((SELECT array_agg(a.id::text ORDER BY a.seq) FROM appointments a WHERE a.patient_id = p.id), '{}'),
	COALESCE((SELECT array_agg(v.id::text ORDER BY v.visit_date) FROM opd_visits v WHERE v.patient_id = p.id), '{}')`

const appointmentColumns = `
	id, patient_id, doctor_name, department, to_char(appointment_date, 'YYYY-MM-DD'),
	appointment_time, status, notes, created_date`

const visitColumns = `
	id, patient_id, doctor_name, visit_date, symptoms, diagnosis, prescription,
	lab_tests, follow_up_date, notes, status, vital_signs`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var history []byte
	var appointmentIDs, visitIDs []string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Age,
		&p.Gender,
		&p.Contact,
		&p.Address,
		&p.Phone,
		&p.RegistrationDate,
		&history,
		&appointmentIDs,
		&visitIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &p.MedicalHistory); err != nil {
			return nil, fmt.Errorf("decode medical history: %w", err)
		}
	}
	if p.Appointments, err = parseIDs(appointmentIDs); err != nil {
		return nil, err
	}
	if p.OPDVisits, err = parseIDs(visitIDs); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorName,
		&a.Department,
		&a.Date,
		&a.Time,
		&a.Status,
		&a.Notes,
		&a.CreatedDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanVisit(row pgx.Row) (*OPDVisit, error) {
	var v OPDVisit
	var vitals []byte

	err := row.Scan(
		&v.ID,
		&v.PatientID,
		&v.DoctorName,
		&v.VisitTimestamp,
		&v.Symptoms,
		&v.Diagnosis,
		&v.Prescription,
		&v.LabTests,
		&v.FollowUpDate,
		&v.Notes,
		&v.Status,
		&vitals,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVisitNotFound
		}
		return nil, err
	}

	if len(vitals) > 0 {
		if err := json.Unmarshal(vitals, &v.VitalSigns); err != nil {
			return nil, fmt.Errorf("decode vital signs: %w", err)
		}
	}
	return &v, nil
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func collectRows[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	var result []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// whereClause joins conditions with AND and numbers placeholders in order.
type whereClause struct {
	conds []string
	args  []any
}

func (w *whereClause) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// Patients

func (r *PgRepository) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+patientColumns+` FROM patients p ORDER BY p.registration_date, p.id`)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return collectRows(rows, scanPatient)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients p WHERE p.id = $1`, id)
	return scanPatient(row)
}

func (r *PgRepository) SavePatient(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.RegistrationDate.IsZero() {
		p.RegistrationDate = time.Now()
	}
	history, err := json.Marshal(nonNilHistory(p.MedicalHistory))
	if err != nil {
		return fmt.Errorf("encode medical history: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO patients (id, name, age, gender, contact, address, phone, registration_date, medical_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    age = EXCLUDED.age,
		    gender = EXCLUDED.gender,
		    contact = EXCLUDED.contact,
		    address = EXCLUDED.address,
		    phone = EXCLUDED.phone,
		    medical_history = EXCLUDED.medical_history
	`, p.ID, p.Name, p.Age, p.Gender, p.Contact, p.Address, p.Phone, p.RegistrationDate, history)
	if err != nil {
		return fmt.Errorf("save patient: %w", err)
	}
	return nil
}

func nonNilHistory(h []HistoryEntry) []HistoryEntry {
	if h == nil {
		return []HistoryEntry{}
	}
	return h
}

func (r *PgRepository) DeletePatient(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

// Appointments

func (r *PgRepository) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error) {
	var w whereClause
	if filter.PatientID != uuid.Nil {
		w.add("patient_id = ?", filter.PatientID)
	}
	if filter.DoctorName != "" {
		w.add("doctor_name = ?", filter.DoctorName)
	}
	if filter.Date != "" {
		w.add("appointment_date = ?::date", filter.Date)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments`+w.String()+` ORDER BY seq`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collectRows(rows, scanAppointment)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) SaveAppointment(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedDate.IsZero() {
		a.CreatedDate = time.Now()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_name, department, appointment_date, appointment_time, status, notes, created_date)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET doctor_name = EXCLUDED.doctor_name,
		    department = EXCLUDED.department,
		    appointment_date = EXCLUDED.appointment_date,
		    appointment_time = EXCLUDED.appointment_time,
		    status = EXCLUDED.status,
		    notes = EXCLUDED.notes
	`, a.ID, a.PatientID, a.DoctorName, a.Department, a.Date, a.Time, a.Status, a.Notes, a.CreatedDate)
	if err != nil {
		return fmt.Errorf("save appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// Visits

func (r *PgRepository) ListVisits(ctx context.Context, filter VisitFilter) ([]OPDVisit, error) {
	var w whereClause
	if filter.PatientID != uuid.Nil {
		w.add("patient_id = ?", filter.PatientID)
	}
	if filter.DoctorName != "" {
		w.add("doctor_name = ?", filter.DoctorName)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if !filter.From.IsZero() {
		w.add("visit_date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("visit_date < ?", filter.To)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+visitColumns+` FROM opd_visits`+w.String()+` ORDER BY visit_date`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	return collectRows(rows, scanVisit)
}

func (r *PgRepository) ListVisitsForDate(ctx context.Context, day time.Time) ([]OPDVisit, error) {
	from, to := DayRange(day)
	return r.ListVisits(ctx, VisitFilter{From: from, To: to})
}

func (r *PgRepository) GetVisitByID(ctx context.Context, id uuid.UUID) (*OPDVisit, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+visitColumns+` FROM opd_visits WHERE id = $1`, id)
	return scanVisit(row)
}

func (r *PgRepository) SaveVisit(ctx context.Context, v *OPDVisit) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.VisitTimestamp.IsZero() {
		v.VisitTimestamp = time.Now()
	}
	vitals, err := json.Marshal(v.VitalSigns)
	if err != nil {
		return fmt.Errorf("encode vital signs: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO opd_visits (id, patient_id, doctor_name, visit_date, symptoms, diagnosis, prescription, lab_tests, follow_up_date, notes, status, vital_signs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
		SET doctor_name = EXCLUDED.doctor_name,
		    symptoms = EXCLUDED.symptoms,
		    diagnosis = EXCLUDED.diagnosis,
		    prescription = EXCLUDED.prescription,
		    lab_tests = EXCLUDED.lab_tests,
		    follow_up_date = EXCLUDED.follow_up_date,
		    notes = EXCLUDED.notes,
		    status = EXCLUDED.status,
		    vital_signs = EXCLUDED.vital_signs
	`, v.ID, v.PatientID, v.DoctorName, v.VisitTimestamp, v.Symptoms, v.Diagnosis, v.Prescription,
		v.LabTests, v.FollowUpDate, v.Notes, v.Status, vitals)
	if err != nil {
		return fmt.Errorf("save visit: %w", err)
	}
	return nil
}

// Settings

func (r *PgRepository) GetSettings(ctx context.Context) (Settings, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM clinic_settings WHERE id = 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}

	s := DefaultSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

func (r *PgRepository) SaveSettings(ctx context.Context, s Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO clinic_settings (id, data) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data
	`, data)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (r *PgRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
