package announce

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/opd-frontdesk/internal/clinic"
	"github.com/hackgods/opd-frontdesk/internal/metrics"
)

const (
	DefaultInterval    = 30 * time.Second
	MinInterval        = 10 * time.Second
	DefaultStopTimeout = 5 * time.Second
)

var ErrInvalidAnnouncement = errors.New("invalid announcement")

// Store is the slice of the record store the engine reads.
type Store interface {
	ListVisitsForDate(ctx context.Context, day time.Time) ([]clinic.OPDVisit, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*clinic.Patient, error)
}

// DedupKey identifies one completed visit.
type DedupKey struct {
	PatientID uuid.UUID
	VisitID   uuid.UUID
}

type Options struct {
	Interval    time.Duration
	StopTimeout time.Duration
	Clock       func() time.Time
	Display     Display // defaults to LogDisplay
	Speaker     Speaker // nil means no speech for the lifetime of the engine
	Metrics     *metrics.Collector
	// OnAnnounced runs after a poll-triggered announcement was delivered.
	OnAnnounced func(key DedupKey)
}

type Status struct {
	Running         bool      `json:"running"`
	SpeechAvailable bool      `json:"speech_available"`
	IntervalSeconds int       `json:"interval"`
	AnnouncedCount  int       `json:"announced_count"`
	LastMessage     string    `json:"last_message,omitempty"`
	LastAnnouncedAt time.Time `json:"last_announced_at,omitempty"`
}

// Engine announces completed OPD visits once each and delivers ad-hoc front-desk announcements.
type Engine struct {
	store       Store
	log         zerolog.Logger
	display     Display
	speaker     Speaker
	metrics     *metrics.Collector
	clock       func() time.Time
	stopTimeout time.Duration
	onAnnounced func(DedupKey)

	// cycleMu keeps poll cycles from overlapping.
	cycleMu sync.Mutex

	mu        sync.Mutex
	announced map[DedupKey]struct{}
	interval  time.Duration
	running   bool
	stop      chan struct{}
	done      chan struct{}
	lastMsg   string
	lastAt    time.Time
}

func NewEngine(store Store, log zerolog.Logger, opts Options) *Engine {
	log = log.With().Str("component", "announcer").Logger()

	e := &Engine{
		store:       store,
		log:         log,
		display:     opts.Display,
		speaker:     opts.Speaker,
		metrics:     opts.Metrics,
		clock:       opts.Clock,
		stopTimeout: opts.StopTimeout,
		onAnnounced: opts.OnAnnounced,
		announced:   make(map[DedupKey]struct{}),
		interval:    clampInterval(opts.Interval),
	}
	if e.display == nil {
		e.display = LogDisplay(log)
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.stopTimeout <= 0 {
		e.stopTimeout = DefaultStopTimeout
	}
	if opts.Interval == 0 {
		e.interval = DefaultInterval
	}
	return e
}

func clampInterval(d time.Duration) time.Duration {
	if d < MinInterval {
		return MinInterval
	}
	return d
}

// Start launches the poll loop: one cycle right away, then one per interval.
// Calling Start on a running engine does nothing.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return
	}
	e.running = true
	e.stop = make(chan struct{})
	e.done = make(chan struct{})

	go e.loop(ctx, e.stop, e.done)

	e.log.Info().Dur("interval", e.interval).Msg("announcement service started")
}

func (e *Engine) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	// Cycles are never interrupted half way; stop is only observed between them.
	cycleCtx := context.WithoutCancel(ctx)

	for {
		if _, err := e.Poll(cycleCtx); err != nil {
			e.log.Warn().Err(err).Msg("announcement poll cycle failed")
		}

		timer := time.NewTimer(e.Interval())
		select {
		case <-stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			e.markStopped(stop)
			return
		case <-timer.C:
		}
	}
}

// markStopped flips running off when the loop exits on its own context.
func (e *Engine) markStopped(stop <-chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stop == stop && e.running {
		e.running = false
		close(e.stop)
	}
}

// Stop signals the loop and waits for an in-flight cycle up to the stop timeout.
// Running is false as soon as Stop returns, even when the wait timed out.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stop)
	done := e.done
	e.mu.Unlock()

	timer := time.NewTimer(e.stopTimeout)
	defer timer.Stop()

	select {
	case <-done:
		e.log.Info().Msg("announcement service stopped")
	case <-timer.C:
		e.log.Warn().Dur("timeout", e.stopTimeout).Msg("announcement cycle still running after stop timeout")
	}
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// SetInterval applies from the next wait. Values under MinInterval are clamped.
func (e *Engine) SetInterval(d time.Duration) time.Duration {
	d = clampInterval(d)

	e.mu.Lock()
	e.interval = d
	e.mu.Unlock()

	e.log.Info().Dur("interval", d).Msg("announcement interval updated")
	return d
}

func (e *Engine) Interval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interval
}

// ClearAnnouncedToday forgets every announced visit so the poll loop may announce them again.
// The OPD tracker is not touched.
func (e *Engine) ClearAnnouncedToday() {
	e.mu.Lock()
	e.announced = make(map[DedupKey]struct{})
	e.mu.Unlock()

	e.metrics.SetAnnouncedVisits(0)
	e.log.Info().Msg("announced visits cleared")
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Status{
		Running:         e.running,
		SpeechAvailable: e.speaker != nil,
		IntervalSeconds: int(e.interval / time.Second),
		AnnouncedCount:  len(e.announced),
		LastMessage:     e.lastMsg,
		LastAnnouncedAt: e.lastAt,
	}
}

// Poll runs one cycle and returns how many visits it announced. Lookup misses are
// skipped and retried next cycle; any other failure, panics included, aborts the
// cycle and is returned.
func (e *Engine) Poll(ctx context.Context) (n int, err error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("poll cycle panic: %v", r)
		}
		e.metrics.RecordPollCycle(err == nil)
	}()

	visits, err := e.store.ListVisitsForDate(ctx, e.clock())
	if err != nil {
		return 0, fmt.Errorf("list today's visits: %w", err)
	}

	for _, v := range visits {
		if v.Status != clinic.VisitCompleted {
			continue
		}

		key := DedupKey{PatientID: v.PatientID, VisitID: v.ID}
		if e.isAnnounced(key) {
			continue
		}

		patient, err := e.store.GetPatientByID(ctx, v.PatientID)
		if errors.Is(err, clinic.ErrPatientNotFound) {
			e.log.Debug().Str("visit_id", v.ID.String()).Msg("patient not resolvable yet, retrying next cycle")
			continue
		}
		if err != nil {
			return n, fmt.Errorf("resolve patient %s: %w", v.PatientID, err)
		}

		a := Announcement{
			Message:     CompletionMessage(patient.Name, v.DoctorName),
			Origin:      OriginPoll,
			PatientName: patient.Name,
			PatientID:   v.PatientID,
			VisitID:     v.ID,
		}
		if err := e.deliver(ctx, a, a.Message); err != nil {
			e.log.Warn().Err(err).Str("visit_id", v.ID.String()).Msg("announcement delivered with errors")
		}

		e.markAnnounced(key)
		n++

		if e.onAnnounced != nil {
			e.onAnnounced(key)
		}
	}

	return n, nil
}

func (e *Engine) isAnnounced(key DedupKey) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.announced[key]
	return ok
}

func (e *Engine) markAnnounced(key DedupKey) {
	e.mu.Lock()
	e.announced[key] = struct{}{}
	count := len(e.announced)
	e.mu.Unlock()

	e.metrics.SetAnnouncedVisits(count)
}

// deliver tries display then speech; one failing never skips the other.
func (e *Engine) deliver(ctx context.Context, a Announcement, speech string) error {
	if a.At.IsZero() {
		a.At = e.clock()
	}

	var errs []error

	if err := showSafely(e.display, a); err != nil {
		e.metrics.RecordSinkFailure("display")
		errs = append(errs, fmt.Errorf("display: %w", err))
	}

	if e.speaker != nil && speech != "" {
		if err := e.speakSafely(ctx, speech); err != nil {
			e.metrics.RecordSinkFailure("speech")
			e.log.Warn().Err(err).Msg("speech delivery failed")
			errs = append(errs, fmt.Errorf("speech: %w", err))
		}
	}

	e.mu.Lock()
	e.lastMsg = a.Message
	e.lastAt = a.At
	e.mu.Unlock()

	e.metrics.RecordAnnouncement(string(a.Origin))
	return errors.Join(errs...)
}

func (e *Engine) speakSafely(ctx context.Context, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("speaker panicked: %v", r)
		}
	}()
	return e.speaker.Speak(ctx, text)
}

// AnnounceNow delivers message, or the front-desk default, immediately. It ignores the dedup set.
func (e *Engine) AnnounceNow(ctx context.Context, patientName, message string) (string, error) {
	patientName = strings.TrimSpace(patientName)
	message = strings.TrimSpace(message)
	if patientName == "" && message == "" {
		return "", fmt.Errorf("%w: patient name or message is required", ErrInvalidAnnouncement)
	}
	if message == "" {
		message = FrontDeskMessage(patientName)
	}

	a := Announcement{Message: message, Origin: OriginManual, PatientName: patientName}
	return message, e.deliver(ctx, a, message)
}

func (e *Engine) AnnouncePatientCall(ctx context.Context, patientName, room string) (string, error) {
	patientName = strings.TrimSpace(patientName)
	if patientName == "" {
		return "", fmt.Errorf("%w: patient name is required", ErrInvalidAnnouncement)
	}

	msg := PatientCallMessage(patientName, room)
	a := Announcement{Message: msg, Origin: OriginCall, PatientName: patientName}
	return msg, e.deliver(ctx, a, msg)
}

func (e *Engine) AnnounceQueuePosition(ctx context.Context, patientName string, position int) (string, error) {
	patientName = strings.TrimSpace(patientName)
	if patientName == "" || position < 1 {
		return "", fmt.Errorf("%w: patient name and a positive position are required", ErrInvalidAnnouncement)
	}

	msg := QueuePositionMessage(patientName, position)
	a := Announcement{Message: msg, Origin: OriginQueue, PatientName: patientName}
	return msg, e.deliver(ctx, a, msg)
}

func (e *Engine) AnnouncePreset(ctx context.Context, preset Preset, patientName, text string) (string, error) {
	patientName = strings.TrimSpace(patientName)
	if patientName == "" {
		return "", fmt.Errorf("%w: patient name is required", ErrInvalidAnnouncement)
	}

	msg, err := PresetMessage(preset, patientName, text)
	if err != nil {
		return "", err
	}
	a := Announcement{Message: msg, Origin: OriginPreset, PatientName: patientName}
	return msg, e.deliver(ctx, a, msg)
}

// Test shows "TEST: <message>" and speaks the bare message. A missing speech backend is not an error.
func (e *Engine) Test(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = DefaultTestMessage
	}

	a := Announcement{Message: TestPrefix + message, Origin: OriginTest}
	return message, e.deliver(ctx, a, message)
}
