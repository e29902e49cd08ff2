package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog"

	"github.com/hackgods/opd-frontdesk/internal/appointment"
	"github.com/hackgods/opd-frontdesk/internal/clinic"
	"github.com/hackgods/opd-frontdesk/internal/config"
	"github.com/hackgods/opd-frontdesk/internal/db"
	"github.com/hackgods/opd-frontdesk/internal/logging"
	"github.com/hackgods/opd-frontdesk/internal/patient"
	redisclient "github.com/hackgods/opd-frontdesk/internal/redis"
)

var (
	symptoms  = []string{"fever", "cough", "headache", "back pain", "rash", "chest discomfort", "joint pain", "sore throat"}
	diagnoses = []string{"viral fever", "migraine", "muscle strain", "dermatitis", "hypertension", "pharyngitis", "arthritis"}
	medicines = []string{"paracetamol 500mg", "ibuprofen 400mg", "cetirizine 10mg", "amoxicillin 250mg", "amlodipine 5mg"}
	pastMix   = []clinic.AppointmentStatus{
		clinic.AppointmentCompleted, clinic.AppointmentCompleted, clinic.AppointmentCompleted,
		clinic.AppointmentCancelled, clinic.AppointmentNoShow,
	}
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config load error")
	}
	log := logging.New(cfg, "seed")

	patientCount := envInt("SEED_PATIENTS", 200)
	historyDays := envInt("SEED_HISTORY_DAYS", 30)
	log.Info().Int("patients", patientCount).Int("history_days", historyDays).Str("store", cfg.StoreDriver).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := db.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("store open error")
	}
	defer store.Close()

	quiet := log.Level(zerolog.WarnLevel)
	dir := appointment.DefaultDirectory()
	patients := patient.NewService(store, cfg.PhoneRegion, quiet)
	appointments := appointment.NewService(store, redisclient.NewMemorySlotLocker(cfg.LockTTL), dir, quiet)

	if err := gofakeit.Seed(time.Now().UnixNano()); err != nil {
		log.Fatal().Err(err).Msg("seed faker")
	}

	ids, err := seedPatients(ctx, patients, cfg.PhoneRegion, patientCount, log)
	if err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedHistory(ctx, store, dir, ids, historyDays, log); err != nil {
		log.Fatal().Err(err).Msg("seed history")
	}
	if err := seedUpcoming(ctx, appointments, dir, ids, log); err != nil {
		log.Fatal().Err(err).Msg("seed upcoming appointments")
	}

	log.Info().Msg("seed complete")
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// fakePhone varies the subscriber digits of the region's example mobile number.
func fakePhone(region string) string {
	example := phonenumbers.GetExampleNumberForType(region, phonenumbers.MOBILE)
	if example == nil {
		return gofakeit.Phone()
	}
	n := example.GetNationalNumber()
	n = n - n%10000 + uint64(gofakeit.Number(0, 9999))
	return fmt.Sprintf("+%d%d", example.GetCountryCode(), n)
}

func seedPatients(ctx context.Context, svc *patient.Service, region string, count int, log zerolog.Logger) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, count)
	genders := []string{"Male", "Female", "Other"}

	for attempts := 0; len(ids) < count; attempts++ {
		if attempts > count*10 {
			return ids, fmt.Errorf("gave up after %d attempts, %d patients registered", attempts, len(ids))
		}
		addr := gofakeit.Address()
		p, err := svc.Register(ctx, patient.Details{
			Name:    gofakeit.Name(),
			Age:     gofakeit.Number(1, 90),
			Gender:  genders[gofakeit.Number(0, len(genders)-1)],
			Contact: gofakeit.Email(),
			Address: addr.Street + ", " + addr.City,
			Phone:   fakePhone(region),
		})
		if errors.Is(err, patient.ErrInvalidPatient) {
			continue
		}
		if err != nil {
			return ids, err
		}
		ids = append(ids, p.ID)

		if len(ids)%100 == 0 {
			log.Info().Int("done", len(ids)).Int("total", count).Msg("patients seeded")
		}
	}

	log.Info().Int("count", len(ids)).Msg("patients seeded")
	return ids, nil
}

// seedHistory writes past appointments and completed visits directly, since the
// booking rules refuse dates in the past.
func seedHistory(ctx context.Context, store clinic.Repository, dir *appointment.Directory, ids []uuid.UUID, days int, log zerolog.Logger) error {
	if len(ids) == 0 {
		return nil
	}
	doctors := dir.Doctors()
	today := clinic.StartOfDay(time.Now())
	var appts, visits int

	for d := days; d >= 1; d-- {
		day := today.AddDate(0, 0, -d)
		for _, doc := range doctors {
			for _, slot := range doc.Slots {
				if !gofakeit.Bool() {
					continue
				}
				pid := ids[gofakeit.Number(0, len(ids)-1)]
				status := pastMix[gofakeit.Number(0, len(pastMix)-1)]

				a := &clinic.Appointment{
					PatientID:   pid,
					DoctorName:  doc.Name,
					Department:  doc.Department,
					Date:        day.Format(clinic.DateLayout),
					Time:        slot,
					Status:      status,
					CreatedDate: day.AddDate(0, 0, -gofakeit.Number(1, 7)),
				}
				if err := store.SaveAppointment(ctx, a); err != nil {
					return fmt.Errorf("save appointment: %w", err)
				}
				appts++

				if status != clinic.AppointmentCompleted {
					continue
				}
				startsAt, err := a.StartsAt(day.Location())
				if err != nil {
					return err
				}
				if err := store.SaveVisit(ctx, pastVisit(pid, doc.Name, startsAt, today)); err != nil {
					return fmt.Errorf("save visit: %w", err)
				}
				visits++
			}
		}
	}

	log.Info().Int("appointments", appts).Int("visits", visits).Msg("history seeded")
	return nil
}

func pastVisit(pid uuid.UUID, doctor string, at, today time.Time) *clinic.OPDVisit {
	recorded := at.Add(5 * time.Minute)
	v := &clinic.OPDVisit{
		PatientID:      pid,
		DoctorName:     doctor,
		VisitTimestamp: at,
		Symptoms:       symptoms[gofakeit.Number(0, len(symptoms)-1)],
		Diagnosis:      diagnoses[gofakeit.Number(0, len(diagnoses)-1)],
		Prescription:   medicines[gofakeit.Number(0, len(medicines)-1)],
		Status:         clinic.VisitCompleted,
		VitalSigns: clinic.VitalSigns{
			BloodPressure: fmt.Sprintf("%d/%d", gofakeit.Number(105, 145), gofakeit.Number(65, 95)),
			Temperature:   fmt.Sprintf("%.1f", gofakeit.Float64Range(97.0, 101.5)),
			Pulse:         strconv.Itoa(gofakeit.Number(60, 100)),
			RecordedAt:    &recorded,
		},
	}
	if gofakeit.Number(1, 5) == 1 {
		v.Status = clinic.VisitFollowUpRequired
		v.FollowUpDate = today.AddDate(0, 0, gofakeit.Number(0, 14)).Format(clinic.DateLayout)
	}
	return v
}

// seedUpcoming books roughly half of the next week's slots through the booking service.
func seedUpcoming(ctx context.Context, svc *appointment.Service, dir *appointment.Directory, ids []uuid.UUID, log zerolog.Logger) error {
	if len(ids) == 0 {
		return nil
	}
	today := clinic.StartOfDay(time.Now())
	var booked int

	for d := 1; d <= 7; d++ {
		date := today.AddDate(0, 0, d).Format(clinic.DateLayout)
		for _, doc := range dir.Doctors() {
			for _, slot := range doc.Slots {
				if !gofakeit.Bool() {
					continue
				}
				_, err := svc.Book(ctx, appointment.BookRequest{
					PatientID:  ids[gofakeit.Number(0, len(ids)-1)],
					DoctorName: doc.Name,
					Date:       date,
					Time:       slot,
					Notes:      gofakeit.Phrase(),
				})
				if errors.Is(err, appointment.ErrSlotAlreadyBooked) {
					continue
				}
				if err != nil {
					return err
				}
				booked++
			}
		}
	}

	log.Info().Int("appointments", booked).Msg("upcoming appointments seeded")
	return nil
}
