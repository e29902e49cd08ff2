package redisclient

import (
	"context"
	"sync"
	"time"
)

type memorySlotLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
	ttl  time.Duration
}

// NewMemorySlotLocker is the single-process locker used when no Redis is configured.
// A slot that is already held fails fast with ErrLockNotAcquired, like the Redis locker.
func NewMemorySlotLocker(ttl time.Duration) Locker {
	return &memorySlotLocker{
		held: make(map[string]struct{}),
		ttl:  ttl,
	}
}

func (l *memorySlotLocker) WithSlotLock(ctx context.Context, slot string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if _, busy := l.held[slot]; busy {
		l.mu.Unlock()
		return ErrLockNotAcquired
	}
	l.held[slot] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, slot)
		l.mu.Unlock()
	}()

	if l.ttl <= 0 {
		return fn(ctx)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}
