package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/syncora/syncora/application/port/inbound"
	"github.com/syncora/syncora/application/port/outbound"
	"github.com/syncora/syncora/domain"
	"github.com/syncora/syncora/infrastructure/service/logger"
)

const maxBackoff = 30 * time.Second

// DispatcherConfig tunes the worker pool and its retry cycle.
type DispatcherConfig struct {
	Workers     int
	MaxAttempts int
	BaseDelay   time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 200 * time.Millisecond
	}
	return c
}

// Dispatcher drains the event queue with a fixed pool of workers. Each event
// is handed to the orchestrator; transient failures are re-enqueued with
// exponential backoff, anything else (or retry exhaustion) marks the entity
// failed and moves the event to the dead-letter queue.
type Dispatcher struct {
	queue        outbound.EventQueue
	states       outbound.SyncStateRepository
	orchestrator inbound.Orchestrator
	log          logger.Logger
	cfg          DispatcherConfig

	wg sync.WaitGroup
}

// NewDispatcher builds a dispatcher; zero config fields take defaults.
func NewDispatcher(queue outbound.EventQueue, states outbound.SyncStateRepository, orchestrator inbound.Orchestrator, log logger.Logger, cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		queue:        queue,
		states:       states,
		orchestrator: orchestrator,
		log:          log,
		cfg:          cfg.withDefaults(),
	}
}

// Start launches the worker pool and returns immediately. Cancelling ctx
// stops the workers; Stop waits for them to drain.
func (d *Dispatcher) Start(ctx context.Context) {
	d.log.Info(ctx, "Dispatcher starting", map[string]interface{}{
		"workers":      d.cfg.Workers,
		"max_attempts": d.cfg.MaxAttempts,
	})
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func(worker int) {
			defer d.wg.Done()
			d.run(ctx, worker)
		}(i)
	}
}

// Stop blocks until every worker has exited. Cancel the Start ctx first.
func (d *Dispatcher) Stop() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, worker int) {
	for {
		event, err := d.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Error(ctx, "Dequeue failed", err, map[string]interface{}{"worker": worker})
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		d.Handle(ctx, event)
		// Every Handle outcome re-enqueues, dead-letters or completes the
		// event, so the in-flight copy is always safe to discard.
		if err := d.queue.Ack(context.WithoutCancel(ctx), event); err != nil {
			d.log.Error(ctx, "Ack failed", err, map[string]interface{}{"worker": worker})
		}
	}
}

// Handle processes one event through a full attempt cycle step: process,
// then either finish, re-enqueue with backoff, or dead-letter.
func (d *Dispatcher) Handle(ctx context.Context, event *domain.SyncEvent) {
	event.Attempts++
	err := d.orchestrator.ProcessEvent(ctx, event)
	if err == nil {
		return
	}

	if domain.IsTransient(err) && event.Attempts < d.cfg.MaxAttempts {
		delay := d.backoff(event.Attempts)
		d.log.Warn(ctx, "Transient failure, retrying", map[string]interface{}{
			"entity_type": event.EntityType,
			"source_id":   event.SourceID,
			"attempt":     event.Attempts,
			"delay":       delay.String(),
		})
		select {
		case <-ctx.Done():
			// Shutdown mid-retry: requeue without the delay so the event
			// survives the restart.
		case <-time.After(delay):
		}
		if pubErr := d.queue.Publish(context.WithoutCancel(ctx), event); pubErr != nil {
			d.exhaust(ctx, event, pubErr)
		}
		return
	}

	d.exhaust(ctx, event, err)
}

// exhaust marks the entity failed and parks the event on the dead-letter
// queue for operator inspection.
func (d *Dispatcher) exhaust(ctx context.Context, event *domain.SyncEvent, cause error) {
	detached := context.WithoutCancel(ctx)
	if err := d.states.Update(detached, event.EntityType, event.SourceID, event.SourceSystem, "", domain.SyncFailed, cause.Error()); err != nil {
		d.log.Error(detached, "Status update failed", err, map[string]interface{}{"source_id": event.SourceID})
	}
	if err := d.queue.DeadLetter(detached, event, cause.Error()); err != nil {
		d.log.Error(detached, "Dead-letter failed", err, map[string]interface{}{"source_id": event.SourceID})
	}
	d.log.Error(detached, "Event exhausted", cause, map[string]interface{}{
		"entity_type": event.EntityType,
		"operation":   event.Operation,
		"source_id":   event.SourceID,
		"attempts":    event.Attempts,
	})
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
