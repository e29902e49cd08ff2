package patient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog"

	"github.com/hackgods/opd-frontdesk/internal/clinic"
)

var ErrInvalidPatient = errors.New("invalid patient")

var genders = []string{"Male", "Female", "Other"}

type Details struct {
	Name    string `json:"name"`
	Age     int    `json:"age"`
	Gender  string `json:"gender"`
	Contact string `json:"contact"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// Filter narrows a search. Zero values match everything.
type Filter struct {
	Gender string
	MinAge int
	MaxAge int
}

type Service struct {
	repo   clinic.Repository
	region string
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(repo clinic.Repository, phoneRegion string, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		region: strings.ToUpper(phoneRegion),
		log:    log.With().Str("component", "patients").Logger(),
		now:    time.Now,
	}
}

func (s *Service) Register(ctx context.Context, d Details) (*clinic.Patient, error) {
	d, err := s.validate(d)
	if err != nil {
		return nil, err
	}

	p := &clinic.Patient{
		ID:               uuid.New(),
		Name:             d.Name,
		Age:              d.Age,
		Gender:           d.Gender,
		Contact:          d.Contact,
		Address:          d.Address,
		Phone:            d.Phone,
		RegistrationDate: s.now(),
		Appointments:     []uuid.UUID{},
		OPDVisits:        []uuid.UUID{},
		MedicalHistory:   []clinic.HistoryEntry{},
	}
	if err := s.repo.SavePatient(ctx, p); err != nil {
		return nil, fmt.Errorf("save patient: %w", err)
	}

	s.log.Info().Str("patient_id", p.ID.String()).Msg("patient registered")
	return p, nil
}

// Update replaces the demographic fields; identity, links and history are kept.
func (s *Service) Update(ctx context.Context, id uuid.UUID, d Details) (*clinic.Patient, error) {
	d, err := s.validate(d)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.GetPatientByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}

	p.Name = d.Name
	p.Age = d.Age
	p.Gender = d.Gender
	p.Contact = d.Contact
	p.Address = d.Address
	p.Phone = d.Phone

	if err := s.repo.SavePatient(ctx, p); err != nil {
		return nil, fmt.Errorf("save patient: %w", err)
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*clinic.Patient, error) {
	p, err := s.repo.GetPatientByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context) ([]clinic.Patient, error) {
	patients, err := s.repo.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return patients, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeletePatient(ctx, id); err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	s.log.Info().Str("patient_id", id.String()).Msg("patient deleted")
	return nil
}

// Search does a case-insensitive substring match over the patient's fields, then applies filter.
func (s *Service) Search(ctx context.Context, query string, filter Filter) ([]clinic.Patient, error) {
	patients, err := s.repo.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}

	query = strings.ToLower(strings.TrimSpace(query))
	out := []clinic.Patient{}
	for _, p := range patients {
		if !matches(p, query) {
			continue
		}
		if filter.Gender != "" && !strings.EqualFold(p.Gender, filter.Gender) {
			continue
		}
		if filter.MinAge > 0 && p.Age < filter.MinAge {
			continue
		}
		if filter.MaxAge > 0 && p.Age > filter.MaxAge {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func matches(p clinic.Patient, query string) bool {
	if query == "" {
		return true
	}
	for _, field := range []string{p.Name, p.ID.String(), p.Phone, p.Gender, p.Contact, p.Address, strconv.Itoa(p.Age)} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func (s *Service) validate(d Details) (Details, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Gender = strings.TrimSpace(d.Gender)
	d.Contact = strings.TrimSpace(d.Contact)
	d.Address = strings.TrimSpace(d.Address)

	if d.Name == "" {
		return d, fmt.Errorf("%w: name is required", ErrInvalidPatient)
	}
	if d.Age <= 0 {
		return d, fmt.Errorf("%w: age must be greater than 0", ErrInvalidPatient)
	}
	gender, ok := canonicalGender(d.Gender)
	if !ok {
		return d, fmt.Errorf("%w: gender must be one of %s", ErrInvalidPatient, strings.Join(genders, ", "))
	}
	d.Gender = gender

	phone, err := s.normalizePhone(d.Phone)
	if err != nil {
		return d, err
	}
	d.Phone = phone
	return d, nil
}

func canonicalGender(g string) (string, bool) {
	for _, known := range genders {
		if strings.EqualFold(g, known) {
			return known, true
		}
	}
	return "", false
}

// normalizePhone parses the number for the configured region and returns it in international format.
func (s *Service) normalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: phone number is required", ErrInvalidPatient)
	}

	num, err := phonenumbers.Parse(raw, s.region)
	if err != nil {
		return "", fmt.Errorf("%w: invalid phone number format", ErrInvalidPatient)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: invalid phone number", ErrInvalidPatient)
	}
	return phonenumbers.Format(num, phonenumbers.INTERNATIONAL), nil
}
