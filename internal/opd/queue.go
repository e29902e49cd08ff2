package opd

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// CompletionRecord notes a finished consultation that still has to be, or has been, announced.
type CompletionRecord struct {
	PatientID   uuid.UUID `json:"patient_id"`
	VisitID     uuid.UUID `json:"visit_id"`
	PatientName string    `json:"patient_name"`
	CompletedAt time.Time `json:"completed_at"`
	Announced   bool      `json:"announced"`
}

// Queue tracks who is waiting in OPD today and whose completion is pending announcement.
// Operations on absent patients are no-ops. Safe for concurrent use.
type Queue struct {
	mu        sync.Mutex
	waiting   []uuid.UUID
	completed []CompletionRecord
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends patientID unless it is already waiting.
func (q *Queue) Enqueue(patientID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.indexLocked(patientID) >= 0 {
		return
	}
	q.waiting = append(q.waiting, patientID)
}

func (q *Queue) Dequeue(patientID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(patientID)
	if i < 0 {
		return
	}
	q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
}

// PeekNext returns the head of the waiting line without removing it.
func (q *Queue) PeekNext() (uuid.UUID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.waiting) == 0 {
		return uuid.Nil, false
	}
	return q.waiting[0], true
}

// Position is the 1-based place of patientID in line, or -1 when absent.
func (q *Queue) Position(patientID uuid.UUID) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(patientID)
	if i < 0 {
		return -1
	}
	return i + 1
}

func (q *Queue) Waiting() []uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]uuid.UUID(nil), q.waiting...)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.waiting)
}

func (q *Queue) MarkCompleted(rec CompletionRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec.Announced = false
	q.completed = append(q.completed, rec)
}

// PendingAnnouncements returns completion records not yet announced, oldest first.
func (q *Queue) PendingAnnouncements() []CompletionRecord {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []CompletionRecord
	for _, rec := range q.completed {
		if !rec.Announced {
			out = append(out, rec)
		}
	}
	return out
}

func (q *Queue) Completed() []CompletionRecord {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]CompletionRecord(nil), q.completed...)
}

// MarkAnnounced flags the unannounced record for exactly this patient and visit.
func (q *Queue) MarkAnnounced(patientID, visitID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.completed {
		rec := &q.completed[i]
		if rec.PatientID == patientID && rec.VisitID == visitID && !rec.Announced {
			rec.Announced = true
			return true
		}
	}
	return false
}

// ResetDay clears both the waiting line and today's completions.
func (q *Queue) ResetDay() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.waiting = nil
	q.completed = nil
}

func (q *Queue) indexLocked(patientID uuid.UUID) int {
	for i, id := range q.waiting {
		if id == patientID {
			return i
		}
	}
	return -1
}
