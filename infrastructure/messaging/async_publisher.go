// Package messaging holds the event publishers that sit behind ports.EventPublisher.
package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"rhealth-backend/application/ports"
	"rhealth-backend/domain/events"
	"rhealth-backend/pkg/observability"

	"go.uber.org/zap"
)

// ErrQueueFull is reported to metrics when an event is dropped
var ErrQueueFull = errors.New("event queue full")

// AsyncPublisher hands events to a background worker so that publishing never
// holds up the dispatch loop. When the queue is full the event is dropped and logged.
type AsyncPublisher struct {
	next    ports.EventPublisher
	queue   chan events.DomainEvent
	timeout time.Duration
	metrics *observability.Collector
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncPublisher starts the worker. Close must be called to drain it.
func NewAsyncPublisher(next ports.EventPublisher, queueSize int, metrics *observability.Collector, logger *zap.Logger) *AsyncPublisher {
	if queueSize <= 0 {
		queueSize = 256
	}
	p := &AsyncPublisher{
		next:    next,
		queue:   make(chan events.DomainEvent, queueSize),
		timeout: 10 * time.Second,
		metrics: metrics,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues the event without blocking
func (p *AsyncPublisher) Publish(_ context.Context, event events.DomainEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil
	}

	select {
	case p.queue <- event:
	default:
		p.metrics.RecordEventPublished(event.GetEventType(), ErrQueueFull)
		p.logger.Warn("Event queue full, dropping event",
			zap.String("eventType", event.GetEventType()),
			zap.String("aggregateID", event.GetAggregateID()),
		)
	}
	return nil
}

// PublishBatch enqueues every event
func (p *AsyncPublisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for _, event := range domainEvents {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Close stops accepting events and waits for the queue to drain or ctx to expire
func (p *AsyncPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *AsyncPublisher) run() {
	defer close(p.done)

	for event := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		startTime := time.Now()
		err := p.next.Publish(ctx, event)
		cancel()

		if err != nil {
			p.logger.Error("Failed to publish event",
				zap.String("eventType", event.GetEventType()),
				zap.String("aggregateID", event.GetAggregateID()),
				zap.Duration("duration", time.Since(startTime)),
				zap.Error(err),
			)
			continue
		}

		p.logger.Debug("Event published",
			zap.String("eventType", event.GetEventType()),
			zap.String("aggregateID", event.GetAggregateID()),
			zap.Duration("duration", time.Since(startTime)),
		)
	}
}

// NoopPublisher discards every event. Used when no event bus is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, events.DomainEvent) error        { return nil }
func (NoopPublisher) PublishBatch(context.Context, []events.DomainEvent) error { return nil }
