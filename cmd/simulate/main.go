package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/opd-frontdesk/internal/api"
	"github.com/hackgods/opd-frontdesk/internal/appointment"
	"github.com/hackgods/opd-frontdesk/internal/clinic"
	"github.com/hackgods/opd-frontdesk/internal/config"
	"github.com/hackgods/opd-frontdesk/internal/logging"
	"github.com/hackgods/opd-frontdesk/internal/report"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	VisitRatio    float64
	ReadRatio     float64
	BookAheadDays int
}

// DataPool holds what the workers pick from. Patients and doctors are loaded once;
// open visits grow and shrink as workers check patients in and complete them.
type DataPool struct {
	Patients []uuid.UUID
	Doctors  []appointment.DoctorProfile

	mu     sync.Mutex
	visits []uuid.UUID
}

func (dp *DataPool) AddVisit(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.visits = append(dp.visits, id)
}

// TakeVisit removes and returns a random open visit.
func (dp *DataPool) TakeVisit(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.visits) == 0 {
		return uuid.Nil, false
	}
	i := rng.Intn(len(dp.visits))
	id := dp.visits[i]
	dp.visits[i] = dp.visits[len(dp.visits)-1]
	dp.visits = dp.visits[:len(dp.visits)-1]
	return id, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, worst time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	pick := func(pct int) time.Duration {
		return latencies[min(len(latencies)*pct/100, len(latencies)-1)]
	}
	return sum / time.Duration(len(latencies)), pick(50), pick(95), latencies[len(latencies)-1]
}

type Metrics struct {
	Booking  OperationMetrics
	CheckIn  OperationMetrics
	Complete OperationMetrics
	Slots    OperationMetrics
	Queue    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     zerolog.Logger
	metrics Metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config load error")
	}
	log := logging.New(baseCfg, "simulate")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid simulation config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("visits", cfg.VisitRatio).
		Float64("reads", cfg.ReadRatio).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sim.pool, err = sim.loadDataPool(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}
	log.Info().Int("patients", len(sim.pool.Patients)).Int("doctors", len(sim.pool.Doctors)).Msg("data pool loaded")

	sim.Run()
	sim.PrintReport(os.Stdout)
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 4),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.4),
		VisitRatio:    getFloat("SIM_VISIT_RATIO", 0.3),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
		BookAheadDays: getInt("SIM_BOOK_AHEAD_DAYS", 3),
	}

	total := cfg.BookingRatio + cfg.VisitRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.VisitRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.BookAheadDays <= 0 {
		return fmt.Errorf("SIM_BOOK_AHEAD_DAYS must be > 0")
	}
	return nil
}

func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	dp := &DataPool{}

	var patients []clinic.Patient
	if _, err := s.getJSON(ctx, "/patients", &patients); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for _, p := range patients {
		dp.Patients = append(dp.Patients, p.ID)
	}

	if _, err := s.getJSON(ctx, "/doctors", &dp.Doctors); err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}

	if len(dp.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run the seed command first")
	}
	if len(dp.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded")
	}
	return dp, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.VisitRatio:
			// Half the visit traffic checks patients in, half completes them.
			if rng.Intn(2) == 0 {
				s.doCheckIn(ctx, rng)
			} else {
				s.doComplete(ctx, rng)
			}
		default:
			if rng.Intn(2) == 0 {
				s.doSlots(ctx, rng)
			} else {
				s.doQueue(ctx)
			}
		}
	}
}

func (s *Simulator) randomDoctor(rng *rand.Rand) appointment.DoctorProfile {
	return s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
}

func (s *Simulator) randomPatient(rng *rand.Rand) uuid.UUID {
	return s.pool.Patients[rng.Intn(len(s.pool.Patients))]
}

func (s *Simulator) randomDate(rng *rand.Rand) string {
	return time.Now().AddDate(0, 0, 1+rng.Intn(s.config.BookAheadDays)).Format(clinic.DateLayout)
}

// doBooking goes straight for a random template slot so that collisions between
// workers show up as 409 conflicts.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	doc := s.randomDoctor(rng)
	if len(doc.Slots) == 0 {
		return
	}
	req := api.CreateAppointmentRequest{
		PatientID:  s.randomPatient(rng).String(),
		DoctorName: doc.Name,
		Date:       s.randomDate(rng),
		Time:       doc.Slots[rng.Intn(len(doc.Slots))],
	}

	start := time.Now()
	status, err := s.send(ctx, http.MethodPost, "/appointments", req, nil)
	s.metrics.Booking.Record(time.Since(start), status, err)
}

func (s *Simulator) doCheckIn(ctx context.Context, rng *rand.Rand) {
	req := api.CheckInRequest{
		PatientID:  s.randomPatient(rng).String(),
		DoctorName: s.randomDoctor(rng).Name,
		Symptoms:   "simulated visit",
	}

	var visit clinic.OPDVisit
	start := time.Now()
	status, err := s.send(ctx, http.MethodPost, "/opd/visits", req, &visit)
	s.metrics.CheckIn.Record(time.Since(start), status, err)

	if err == nil && status == http.StatusCreated && visit.ID != uuid.Nil {
		s.pool.AddVisit(visit.ID)
	}
}

func (s *Simulator) doComplete(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.TakeVisit(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.send(ctx, http.MethodPost, "/opd/visits/"+id.String()+"/complete", nil, nil)
	s.metrics.Complete.Record(time.Since(start), status, err)
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	doc := s.randomDoctor(rng)
	path := fmt.Sprintf("/doctors/%s/slots?date=%s", url.PathEscape(doc.Name), s.randomDate(rng))

	var slots api.SlotsResponse
	start := time.Now()
	status, err := s.getJSON(ctx, path, &slots)
	s.metrics.Slots.Record(time.Since(start), status, err)
}

func (s *Simulator) doQueue(ctx context.Context) {
	var entries []json.RawMessage
	start := time.Now()
	status, err := s.getJSON(ctx, "/opd/queue", &entries)
	s.metrics.Queue.Record(time.Since(start), status, err)
}

func (s *Simulator) getJSON(ctx context.Context, path string, out any) (int, error) {
	return s.send(ctx, http.MethodGet, path, nil, out)
}

// send returns the status code; out is only decoded for 2xx answers.
func (s *Simulator) send(ctx context.Context, method, path string, body, out any) (int, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, r)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

func (s *Simulator) PrintReport(w io.Writer) {
	fmt.Fprintf(w, "\nSimulation: %s with %d workers\n\n", s.config.Duration, s.config.Workers)

	t := report.Table{Header: []string{"Operation", "Total", "Success", "Conflict", "Error", "Avg", "P50", "P95", "Max"}}
	ops := []struct {
		name string
		om   *OperationMetrics
	}{
		{"Booking", &s.metrics.Booking},
		{"Check-in", &s.metrics.CheckIn},
		{"Complete", &s.metrics.Complete},
		{"Free slots", &s.metrics.Slots},
		{"Queue", &s.metrics.Queue},
	}
	for _, op := range ops {
		total := atomic.LoadInt64(&op.om.Total)
		if total == 0 {
			continue
		}
		avg, p50, p95, worst := op.om.Stats()
		t.Rows = append(t.Rows, []string{
			op.name,
			strconv.FormatInt(total, 10),
			percent(atomic.LoadInt64(&op.om.Success), total),
			percent(atomic.LoadInt64(&op.om.Conflict), total),
			percent(atomic.LoadInt64(&op.om.Error), total),
			avg.Round(time.Millisecond).String(),
			p50.Round(time.Millisecond).String(),
			p95.Round(time.Millisecond).String(),
			worst.Round(time.Millisecond).String(),
		})
	}
	report.RenderTable(w, t)
}

func percent(n, total int64) string {
	return fmt.Sprintf("%d (%.1f%%)", n, float64(n)/float64(total)*100)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
