// Package redisqueue implements the durable priority-tiered event queue on
// Redis lists. Each tier lives in its own list, swept in priority order with
// FIFO inside a tier. Dequeued entries move to a processing list and stay
// there until acked, so events in flight survive a worker crash; entries
// orphaned by a previous run are re-enqueued at startup.
package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/syncora/syncora/application/port/outbound"
	"github.com/syncora/syncora/domain"
	"github.com/syncora/syncora/infrastructure/service/logger"
)

const (
	deadLetterKey = "sync:failed"
	processingKey = "sync:processing"
	pollInterval  = 250 * time.Millisecond
)

type EventQueueAdapter struct {
	client *redis.Client
	log    logger.Logger
	keys   []string

	mu       sync.Mutex
	inflight map[*domain.SyncEvent]string
}

// NewEventQueueAdapter connects to Redis and verifies the connection before
// returning.
func NewEventQueueAdapter(redisURL string, log logger.Logger) (*EventQueueAdapter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keys := make([]string, len(domain.Priorities))
	for i, tier := range domain.Priorities {
		keys[i] = tier.QueueName()
	}
	q := &EventQueueAdapter{
		client:   client,
		log:      log,
		keys:     keys,
		inflight: make(map[*domain.SyncEvent]string),
	}
	q.recoverOrphans(ctx)
	return q, nil
}

var _ outbound.EventQueue = (*EventQueueAdapter)(nil)

// Publish appends the event to its tier's list. LPUSH is acknowledged only
// after the write, so a nil return means the event is durable.
func (q *EventQueueAdapter) Publish(ctx context.Context, event *domain.SyncEvent) error {
	if event == nil {
		return &domain.ValidationError{Field: "event", Reason: "must not be nil"}
	}
	if err := event.Validate(); err != nil {
		return err
	}
	if event.EnqueuedAt.IsZero() {
		event.EnqueuedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return &domain.PersistenceError{Op: "queue_publish", Err: err}
	}
	if err := q.client.LPush(ctx, event.Priority.QueueName(), payload).Err(); err != nil {
		return &domain.PersistenceError{Op: "queue_publish", Err: err}
	}
	q.log.Debug(ctx, "Event published", map[string]interface{}{
		"queue":       event.Priority.QueueName(),
		"entity_type": event.EntityType,
		"operation":   event.Operation,
		"source_id":   event.SourceID,
	})
	return nil
}

// Dequeue moves the next event onto the processing list and returns it. The
// tier lists are swept in priority order, so critical always drains before
// high, and high before background; an empty sweep waits pollInterval before
// the next one. The processing-list entry is kept until Ack.
func (q *EventQueueAdapter) Dequeue(ctx context.Context) (*domain.SyncEvent, error) {
	for {
		for _, key := range q.keys {
			raw, err := q.client.RPopLPush(ctx, key, processingKey).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, &domain.PersistenceError{Op: "queue_dequeue", Err: err}
			}
			event := new(domain.SyncEvent)
			if err := json.Unmarshal([]byte(raw), event); err != nil {
				q.quarantine(ctx, raw, err)
				q.dropProcessing(ctx, raw)
				continue
			}
			q.mu.Lock()
			q.inflight[event] = raw
			q.mu.Unlock()
			return event, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Ack removes the processing-list entry retained for a dequeued event.
// Unknown events are a no-op.
func (q *EventQueueAdapter) Ack(ctx context.Context, event *domain.SyncEvent) error {
	q.mu.Lock()
	raw, ok := q.inflight[event]
	delete(q.inflight, event)
	q.mu.Unlock()
	if !ok {
		return nil
	}
	if err := q.client.LRem(ctx, processingKey, 1, raw).Err(); err != nil {
		return &domain.PersistenceError{Op: "queue_ack", Err: err}
	}
	return nil
}

func (q *EventQueueAdapter) dropProcessing(ctx context.Context, raw string) {
	if err := q.client.LRem(ctx, processingKey, 1, raw).Err(); err != nil {
		q.log.Error(ctx, "Processing-list cleanup failed", err, nil)
	}
}

// recoverOrphans re-enqueues processing-list entries left behind by a crashed
// run. It must finish before any worker dequeues; recovered entries go to the
// pop end of their tier so they are handled first.
func (q *EventQueueAdapter) recoverOrphans(ctx context.Context) {
	recovered := 0
	for {
		raw, err := q.client.RPop(ctx, processingKey).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			q.log.Error(ctx, "Orphan recovery failed", err, nil)
			break
		}
		var event domain.SyncEvent
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			q.quarantine(ctx, raw, err)
			continue
		}
		if err := q.client.RPush(ctx, event.Priority.QueueName(), raw).Err(); err != nil {
			// Put it back so the next start can retry.
			if lpErr := q.client.LPush(ctx, processingKey, raw).Err(); lpErr != nil {
				q.log.Error(ctx, "Orphan requeue failed", lpErr, nil)
			}
			q.log.Error(ctx, "Orphan requeue failed", err, nil)
			break
		}
		recovered++
	}
	if recovered > 0 {
		q.log.Warn(ctx, "Recovered in-flight events from previous run", map[string]interface{}{
			"count": recovered,
		})
	}
}

// quarantine parks an undecodable raw entry on the dead-letter list so it is
// never silently dropped.
func (q *EventQueueAdapter) quarantine(ctx context.Context, raw string, cause error) {
	entry, _ := json.Marshal(map[string]interface{}{
		"reason": "undecodable event: " + cause.Error(),
		"raw":    raw,
		"at":     time.Now().UTC(),
	})
	if err := q.client.LPush(ctx, deadLetterKey, entry).Err(); err != nil {
		q.log.Error(ctx, "Dead-letter write failed", err, nil)
	}
	q.log.Error(ctx, "Undecodable event quarantined", cause, nil)
}

func (q *EventQueueAdapter) Depths(ctx context.Context) (map[domain.Priority]int64, error) {
	depths := make(map[domain.Priority]int64, len(domain.Priorities))
	for _, tier := range domain.Priorities {
		depth, err := q.client.LLen(ctx, tier.QueueName()).Result()
		if err != nil {
			return nil, &domain.PersistenceError{Op: "queue_depths", Err: err}
		}
		depths[tier] = depth
	}
	return depths, nil
}

func (q *EventQueueAdapter) DeadLetter(ctx context.Context, event *domain.SyncEvent, reason string) error {
	entry, err := json.Marshal(map[string]interface{}{
		"event":  event,
		"reason": reason,
		"at":     time.Now().UTC(),
	})
	if err != nil {
		return &domain.PersistenceError{Op: "queue_dead_letter", Err: err}
	}
	if err := q.client.LPush(ctx, deadLetterKey, entry).Err(); err != nil {
		return &domain.PersistenceError{Op: "queue_dead_letter", Err: err}
	}
	q.log.Warn(ctx, "Event dead-lettered", map[string]interface{}{
		"entity_type": event.EntityType,
		"operation":   event.Operation,
		"source_id":   event.SourceID,
		"reason":      reason,
	})
	return nil
}

// Close releases the underlying connection pool.
func (q *EventQueueAdapter) Close() error {
	return q.client.Close()
}
