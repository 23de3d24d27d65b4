// Package dispatch serializes every roster event through one goroutine.
//
// Registrations, unregistrations, mutations and selections are queued in
// arrival order and each runs to completion, store write and roster enqueue
// included, before the next is taken. Sessions only ever see roster snapshots
// in commit order because of this.
package dispatch

import (
	"context"
	"sync"

	"rhealth-backend/application/commands"
	"rhealth-backend/application/ports"
	"rhealth-backend/domain/patient"
	apperrors "rhealth-backend/pkg/errors"
	"rhealth-backend/pkg/observability"

	"go.uber.org/zap"
)

// Mutator applies mutations and selections
type Mutator interface {
	Handle(ctx context.Context, cmd commands.Mutation) (patient.Patient, error)
	Select(ctx context.Context, cmd commands.SelectPatientCommand)
}

// Notifier delivers messages to a single session
type Notifier interface {
	SendRoster(ctx context.Context, s ports.Session) error
	SendSelection(s ports.Session)
	SendError(s ports.Session, requestID string, err error)
}

// ErrStopped is returned when an event is submitted after Run has returned
var ErrStopped = apperrors.NewInternal("dispatcher stopped", nil)

type eventKind int

const (
	eventRegister eventKind = iota
	eventUnregister
	eventMutation
	eventSelect
)

type event struct {
	kind      eventKind
	session   ports.Session
	mutation  commands.Mutation
	selection commands.SelectPatientCommand
	reply     chan result
}

type result struct {
	patient patient.Patient
	err     error
}

// Dispatcher owns the event queue and the goroutine that drains it
type Dispatcher struct {
	events   chan event
	stopped  chan struct{}
	stopOnce sync.Once

	registry ports.SessionRegistry
	mutator  Mutator
	notifier Notifier
	metrics  *observability.Collector
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher with a queue of the given size
func NewDispatcher(
	queueSize int,
	registry ports.SessionRegistry,
	mutator Mutator,
	notifier Notifier,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		events:   make(chan event, queueSize),
		stopped:  make(chan struct{}),
		registry: registry,
		mutator:  mutator,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run drains the queue until ctx is cancelled. It must be called exactly once.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.stopOnce.Do(func() { close(d.stopped) })

	// Accepted events are never cancelled half way through
	work := context.WithoutCancel(ctx)

	d.logger.Info("Dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Dispatcher stopped", zap.Int("pending", len(d.events)))
			return ctx.Err()
		case ev := <-d.events:
			d.handle(work, ev)
		}
	}
}

// Connect queues a registration. The session receives the current roster,
// then the current selection if any, before any later broadcast.
func (d *Dispatcher) Connect(ctx context.Context, s ports.Session) error {
	return d.enqueue(ctx, event{kind: eventRegister, session: s})
}

// Disconnect queues an unregistration. Disconnecting twice is harmless.
func (d *Dispatcher) Disconnect(s ports.Session) {
	// Unregistration must not be lost to a cancelled request context
	_ = d.enqueue(context.Background(), event{kind: eventUnregister, session: s})
}

// Submit queues a mutation from s. Failures are reported back to s only.
func (d *Dispatcher) Submit(ctx context.Context, s ports.Session, m commands.Mutation) error {
	return d.enqueue(ctx, event{kind: eventMutation, session: s, mutation: m})
}

// Do queues a mutation and waits for its outcome. Failures are reported to
// the caller and, when s is non-nil, to s as well.
func (d *Dispatcher) Do(ctx context.Context, s ports.Session, m commands.Mutation) (patient.Patient, error) {
	reply := make(chan result, 1)
	if err := d.enqueue(ctx, event{kind: eventMutation, session: s, mutation: m, reply: reply}); err != nil {
		return patient.Patient{}, err
	}
	select {
	case r := <-reply:
		return r.patient, r.err
	case <-d.stopped:
		return patient.Patient{}, ErrStopped
	case <-ctx.Done():
		return patient.Patient{}, apperrors.NewInternal("gave up waiting for mutation", ctx.Err())
	}
}

// Select queues a selection signal
func (d *Dispatcher) Select(ctx context.Context, cmd commands.SelectPatientCommand) error {
	return d.enqueue(ctx, event{kind: eventSelect, selection: cmd})
}

func (d *Dispatcher) enqueue(ctx context.Context, ev event) error {
	select {
	case <-d.stopped:
		return ErrStopped
	default:
	}

	select {
	case d.events <- ev:
		return nil
	case <-d.stopped:
		return ErrStopped
	case <-ctx.Done():
		return apperrors.NewInternal("event not queued", ctx.Err())
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case eventRegister:
		d.register(ctx, ev.session)
	case eventUnregister:
		if d.registry.Unregister(ev.session) {
			d.metrics.SessionClosed()
			d.logger.Info("Session unregistered",
				zap.String("connectionID", ev.session.ID()),
				zap.Int("sessions", d.registry.Count()),
			)
		}
	case eventMutation:
		d.mutate(ctx, ev)
	case eventSelect:
		d.mutator.Select(ctx, ev.selection)
	}
}

func (d *Dispatcher) register(ctx context.Context, s ports.Session) {
	d.registry.Register(s)
	d.metrics.SessionOpened()
	d.logger.Info("Session registered",
		zap.String("connectionID", s.ID()),
		zap.Int("sessions", d.registry.Count()),
	)

	if err := d.notifier.SendRoster(ctx, s); err != nil {
		d.logger.Error("Failed to send initial roster",
			zap.String("connectionID", s.ID()),
			zap.Error(err),
		)
		d.notifier.SendError(s, "", err)
	}
	d.notifier.SendSelection(s)
}

func (d *Dispatcher) mutate(ctx context.Context, ev event) {
	p, err := d.mutator.Handle(ctx, ev.mutation)
	if err != nil && ev.session != nil {
		d.notifier.SendError(ev.session, ev.mutation.Origin().RequestID, err)
	}
	if ev.reply != nil {
		ev.reply <- result{patient: p, err: err}
	}
}
