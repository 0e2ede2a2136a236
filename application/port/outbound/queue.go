package outbound

import (
	"context"

	"github.com/syncora/syncora/domain"
)

// EventQueue is the durable priority-tiered queue driving propagation.
type EventQueue interface {
	// Publish enqueues the event durably: it must not return nil until the
	// event would survive a crash between enqueue and processing.
	Publish(ctx context.Context, event *domain.SyncEvent) error
	// Dequeue blocks until an event is available or ctx is done. Tiers drain
	// strictly in priority order; within a tier, first-enqueued-first-served.
	// The dequeued event stays in flight until Ack, so a crash between the
	// two loses nothing.
	Dequeue(ctx context.Context) (*domain.SyncEvent, error)
	// Ack discards the in-flight copy retained for a dequeued event. Call it
	// once handling has finished, whatever the outcome; events never acked
	// are re-enqueued on restart.
	Ack(ctx context.Context, event *domain.SyncEvent) error
	// Depths returns the current queue depth per priority tier.
	Depths(ctx context.Context) (map[domain.Priority]int64, error)
	// DeadLetter records an exhausted or invalid event so it is never
	// silently dropped.
	DeadLetter(ctx context.Context, event *domain.SyncEvent, reason string) error
}
