package opd

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestQueue_EnqueueIsIdempotent(t *testing.T) {
	q := NewQueue()
	p := uuid.New()

	q.Enqueue(p)
	q.Enqueue(p)

	assert.Equal(t, []uuid.UUID{p}, q.Waiting())
	assert.Equal(t, 1, q.Position(p))
}

func TestQueue_PositionTracksLine(t *testing.T) {
	q := NewQueue()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	q.Enqueue(a)
	q.Enqueue(b)
	q.Enqueue(c)
	assert.Equal(t, 2, q.Position(b))

	q.Dequeue(a)
	assert.Equal(t, 1, q.Position(b))
	assert.Equal(t, 2, q.Position(c))
	assert.Equal(t, -1, q.Position(a))

	// Absent patients are ignored.
	q.Dequeue(uuid.New())
	assert.Equal(t, 2, q.Len())
}

func TestQueue_PeekNext(t *testing.T) {
	q := NewQueue()

	_, ok := q.PeekNext()
	assert.False(t, ok)

	a, b := uuid.New(), uuid.New()
	q.Enqueue(a)
	q.Enqueue(b)

	next, ok := q.PeekNext()
	assert.True(t, ok)
	assert.Equal(t, a, next)
	assert.Equal(t, 2, q.Len(), "peek must not remove")
}

func TestQueue_CompletionLifecycle(t *testing.T) {
	q := NewQueue()
	p := uuid.New()
	v1, v2 := uuid.New(), uuid.New()
	now := time.Now()

	q.MarkCompleted(CompletionRecord{PatientID: p, VisitID: v1, PatientName: "Jane", CompletedAt: now})
	q.MarkCompleted(CompletionRecord{PatientID: uuid.New(), VisitID: v2, PatientName: "Jane", CompletedAt: now})
	assert.Len(t, q.PendingAnnouncements(), 2)

	// Same display name, different visit: only the exact pair is flagged.
	assert.True(t, q.MarkAnnounced(p, v1))
	pending := q.PendingAnnouncements()
	assert.Len(t, pending, 1)
	assert.Equal(t, v2, pending[0].VisitID)

	assert.False(t, q.MarkAnnounced(p, v1), "already announced")
	assert.False(t, q.MarkAnnounced(uuid.New(), uuid.New()))
	assert.Len(t, q.Completed(), 2)
}

func TestQueue_ResetDay(t *testing.T) {
	q := NewQueue()
	q.Enqueue(uuid.New())
	q.MarkCompleted(CompletionRecord{PatientID: uuid.New(), VisitID: uuid.New()})

	q.ResetDay()

	assert.Empty(t, q.Waiting())
	assert.Empty(t, q.PendingAnnouncements())
	assert.Empty(t, q.Completed())
}
