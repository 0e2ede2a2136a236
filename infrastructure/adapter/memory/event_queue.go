package memory

import (
	"context"
	"sync"
	"time"

	"github.com/syncora/syncora/domain"
)

// DeadLetterEntry is one exhausted or invalid event kept for inspection.
type DeadLetterEntry struct {
	Event  domain.SyncEvent
	Reason string
	At     time.Time
}

// EventQueue is an in-memory outbound.EventQueue with strict tier priority
// and FIFO order within a tier.
type EventQueue struct {
	mu    sync.Mutex
	tiers map[domain.Priority][]*domain.SyncEvent
	dead  []DeadLetterEntry
	wake  chan struct{}
}

// NewEventQueue builds an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{
		tiers: make(map[domain.Priority][]*domain.SyncEvent),
		wake:  make(chan struct{}),
	}
}

func (q *EventQueue) Publish(ctx context.Context, event *domain.SyncEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	cloned := *event
	if cloned.EnqueuedAt.IsZero() {
		cloned.EnqueuedAt = time.Now().UTC()
	}

	q.mu.Lock()
	q.tiers[cloned.Priority] = append(q.tiers[cloned.Priority], &cloned)
	wake := q.wake
	q.wake = make(chan struct{})
	q.mu.Unlock()

	// Closing the generation channel wakes every blocked Dequeue at once.
	close(wake)
	return nil
}

// Dequeue blocks until an event is available or ctx is done. Critical drains
// before high, high before background.
func (q *EventQueue) Dequeue(ctx context.Context) (*domain.SyncEvent, error) {
	for {
		q.mu.Lock()
		if event := q.popLocked(); event != nil {
			q.mu.Unlock()
			return event, nil
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
	}
}

// Ack is a no-op: the in-memory queue has no crash to recover from, so
// Dequeue removes outright.
func (q *EventQueue) Ack(ctx context.Context, event *domain.SyncEvent) error {
	return nil
}

// TryDequeue pops the next event without blocking. Returns nil when empty.
func (q *EventQueue) TryDequeue() *domain.SyncEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *EventQueue) popLocked() *domain.SyncEvent {
	for _, tier := range domain.Priorities {
		if queue := q.tiers[tier]; len(queue) > 0 {
			event := queue[0]
			q.tiers[tier] = queue[1:]
			return event
		}
	}
	return nil
}

func (q *EventQueue) Depths(ctx context.Context) (map[domain.Priority]int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	depths := make(map[domain.Priority]int64, len(domain.Priorities))
	for _, tier := range domain.Priorities {
		depths[tier] = int64(len(q.tiers[tier]))
	}
	return depths, nil
}

func (q *EventQueue) DeadLetter(ctx context.Context, event *domain.SyncEvent, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, DeadLetterEntry{Event: *event, Reason: reason, At: time.Now().UTC()})
	return nil
}

// DeadLetters returns the recorded dead-letter entries.
func (q *EventQueue) DeadLetters() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadLetterEntry(nil), q.dead...)
}
