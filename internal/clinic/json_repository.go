package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	patientsFile     = "patients.json"
	appointmentsFile = "appointments.json"
	visitsFile       = "opd_visits.json"
	settingsFile     = "settings.json"
	backupDir        = "backups"
	backupVersion    = "1.0"
)

var ErrInvalidBackup = errors.New("invalid backup file")

// JSONRepository keeps every collection in its own flat JSON file under dir.
// Each file holds an object keyed by entity ID plus an "order" list that keeps
// insertion order stable across rewrites.
type JSONRepository struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

type collection[T any] struct {
	Order   []uuid.UUID     `json:"order"`
	Records map[uuid.UUID]T `json:"records"`
}

func newCollection[T any]() collection[T] {
	return collection[T]{Records: make(map[uuid.UUID]T)}
}

func (c *collection[T]) put(id uuid.UUID, v T) {
	if _, ok := c.Records[id]; !ok {
		c.Order = append(c.Order, id)
	}
	c.Records[id] = v
}

func (c *collection[T]) remove(id uuid.UUID) bool {
	if _, ok := c.Records[id]; !ok {
		return false
	}
	delete(c.Records, id)
	for i, existing := range c.Order {
		if existing == id {
			c.Order = append(c.Order[:i], c.Order[i+1:]...)
			break
		}
	}
	return true
}

func (c *collection[T]) list() []T {
	out := make([]T, 0, len(c.Order))
	for _, id := range c.Order {
		if v, ok := c.Records[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

// OpenJSONRepository creates dir when needed and seeds missing files with empty collections and default settings.
func OpenJSONRepository(dir string) (*JSONRepository, error) {
	r := &JSONRepository{dir: dir, now: time.Now}

	if err := os.MkdirAll(filepath.Join(dir, backupDir), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	seeds := map[string]any{
		patientsFile:     newCollection[Patient](),
		appointmentsFile: newCollection[Appointment](),
		visitsFile:       newCollection[OPDVisit](),
		settingsFile:     DefaultSettings(),
	}
	for name, v := range seeds {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		if err := r.writeFile(name, v); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *JSONRepository) Dir() string { return r.dir }

func (r *JSONRepository) readFile(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(r.dir, name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// writeFile copies the current file to <name>.backup, then replaces it through a temp file and rename.
func (r *JSONRepository) writeFile(name string, v any) error {
	path := filepath.Join(r.dir, name)

	if err := copyFile(path, path+".backup"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("backup %s: %w", name, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (r *JSONRepository) patients() (collection[Patient], error) {
	c := newCollection[Patient]()
	err := r.readFile(patientsFile, &c)
	if c.Records == nil {
		c.Records = make(map[uuid.UUID]Patient)
	}
	return c, err
}

func (r *JSONRepository) appointments() (collection[Appointment], error) {
	c := newCollection[Appointment]()
	err := r.readFile(appointmentsFile, &c)
	if c.Records == nil {
		c.Records = make(map[uuid.UUID]Appointment)
	}
	return c, err
}

func (r *JSONRepository) visits() (collection[OPDVisit], error) {
	c := newCollection[OPDVisit]()
	err := r.readFile(visitsFile, &c)
	if c.Records == nil {
		c.Records = make(map[uuid.UUID]OPDVisit)
	}
	return c, err
}

// Patients

func (r *JSONRepository) ListPatients(ctx context.Context) ([]Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.patients()
	if err != nil {
		return nil, err
	}
	return c.list(), nil
}

func (r *JSONRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.patients()
	if err != nil {
		return nil, err
	}
	p, ok := c.Records[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *JSONRepository) SavePatient(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.RegistrationDate.IsZero() {
		p.RegistrationDate = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.patients()
	if err != nil {
		return err
	}
	c.put(p.ID, *p)
	return r.writeFile(patientsFile, c)
}

func (r *JSONRepository) DeletePatient(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.patients()
	if err != nil {
		return err
	}
	if !c.remove(id) {
		return ErrPatientNotFound
	}
	return r.writeFile(patientsFile, c)
}

// linkToPatient appends an appointment or visit ID to its owner, silently skipping unknown patients.
func (r *JSONRepository) linkToPatient(patientID, id uuid.UUID, visit bool) error {
	c, err := r.patients()
	if err != nil {
		return err
	}
	p, ok := c.Records[patientID]
	if !ok {
		return nil
	}

	var added bool
	if visit {
		p.OPDVisits, added = appendUnique(p.OPDVisits, id)
	} else {
		p.Appointments, added = appendUnique(p.Appointments, id)
	}
	if !added {
		return nil
	}

	c.put(p.ID, p)
	return r.writeFile(patientsFile, c)
}

// Appointments

func (r *JSONRepository) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.appointments()
	if err != nil {
		return nil, err
	}

	var out []Appointment
	for _, a := range c.list() {
		if filter.Match(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *JSONRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.appointments()
	if err != nil {
		return nil, err
	}
	a, ok := c.Records[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *JSONRepository) SaveAppointment(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedDate.IsZero() {
		a.CreatedDate = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.appointments()
	if err != nil {
		return err
	}
	c.put(a.ID, *a)
	if err := r.writeFile(appointmentsFile, c); err != nil {
		return err
	}
	return r.linkToPatient(a.PatientID, a.ID, false)
}

func (r *JSONRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.appointments()
	if err != nil {
		return err
	}
	if !c.remove(id) {
		return ErrAppointmentNotFound
	}
	return r.writeFile(appointmentsFile, c)
}

// Visits

func (r *JSONRepository) ListVisits(ctx context.Context, filter VisitFilter) ([]OPDVisit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.visits()
	if err != nil {
		return nil, err
	}

	var out []OPDVisit
	for _, v := range c.list() {
		if filter.Match(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *JSONRepository) ListVisitsForDate(ctx context.Context, day time.Time) ([]OPDVisit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.visits()
	if err != nil {
		return nil, err
	}

	var out []OPDVisit
	for _, v := range c.list() {
		if v.OnDay(day) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *JSONRepository) GetVisitByID(ctx context.Context, id uuid.UUID) (*OPDVisit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.visits()
	if err != nil {
		return nil, err
	}
	v, ok := c.Records[id]
	if !ok {
		return nil, ErrVisitNotFound
	}
	return &v, nil
}

func (r *JSONRepository) SaveVisit(ctx context.Context, v *OPDVisit) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.VisitTimestamp.IsZero() {
		v.VisitTimestamp = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.visits()
	if err != nil {
		return err
	}
	c.put(v.ID, *v)
	if err := r.writeFile(visitsFile, c); err != nil {
		return err
	}
	return r.linkToPatient(v.PatientID, v.ID, true)
}

// Settings

func (r *JSONRepository) GetSettings(ctx context.Context) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := DefaultSettings()
	if err := r.readFile(settingsFile, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (r *JSONRepository) SaveSettings(ctx context.Context, s Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.writeFile(settingsFile, s)
}

func (r *JSONRepository) Ping(ctx context.Context) error {
	info, err := os.Stat(r.dir)
	if err != nil {
		return fmt.Errorf("stat data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data dir %s is not a directory", r.dir)
	}
	return nil
}

// Backups

type backupBundle struct {
	Patients      *collection[Patient]     `json:"patients"`
	Appointments  *collection[Appointment] `json:"appointments"`
	OPDVisits     *collection[OPDVisit]    `json:"opd_visits"`
	Settings      *Settings                `json:"settings"`
	BackupCreated string                   `json:"backup_created"`
	Version       string                   `json:"version"`
}

type BackupInfo struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// CreateBackup bundles all collections into backups/hospital_backup_<stamp>.json and records it in settings.
func (r *JSONRepository) CreateBackup(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	patients, err := r.patients()
	if err != nil {
		return "", err
	}
	appts, err := r.appointments()
	if err != nil {
		return "", err
	}
	visits, err := r.visits()
	if err != nil {
		return "", err
	}
	settings := DefaultSettings()
	if err := r.readFile(settingsFile, &settings); err != nil {
		return "", err
	}

	now := r.now()
	bundle := backupBundle{
		Patients:      &patients,
		Appointments:  &appts,
		OPDVisits:     &visits,
		Settings:      &settings,
		BackupCreated: now.Format(time.RFC3339),
		Version:       backupVersion,
	}

	name := filepath.Join(backupDir, "hospital_backup_"+now.Format("20060102_150405")+".json")
	if err := r.writeFile(name, bundle); err != nil {
		return "", err
	}

	settings.LastBackup = now.Format(TimestampLayout)
	if err := r.writeFile(settingsFile, settings); err != nil {
		return "", err
	}

	return filepath.Join(r.dir, name), nil
}

// ListBackups returns backup bundles newest first.
func (r *JSONRepository) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	entries, err := os.ReadDir(filepath.Join(r.dir, backupDir))
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}

	var out []BackupInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "hospital_backup_") || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, BackupInfo{
			Path:    filepath.Join(r.dir, backupDir, e.Name()),
			Name:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	// Names embed the timestamp, so lexical order is chronological.
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

// RestoreBackup replaces every collection with the bundle at path.
func (r *JSONRepository) RestoreBackup(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	var bundle backupBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if bundle.Patients == nil {
		return fmt.Errorf("%w: missing patients", ErrInvalidBackup)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.writeFile(patientsFile, bundle.Patients); err != nil {
		return err
	}
	if bundle.Appointments != nil {
		if err := r.writeFile(appointmentsFile, bundle.Appointments); err != nil {
			return err
		}
	}
	if bundle.OPDVisits != nil {
		if err := r.writeFile(visitsFile, bundle.OPDVisits); err != nil {
			return err
		}
	}
	if bundle.Settings != nil {
		if err := r.writeFile(settingsFile, bundle.Settings); err != nil {
			return err
		}
	}
	return nil
}
