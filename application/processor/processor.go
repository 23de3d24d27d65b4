// Package processor validates roster mutations, applies them to the patient
// store and triggers the roster broadcast that follows every successful write.
package processor

import (
	"context"
	"fmt"
	"time"

	"rhealth-backend/application/commands"
	"rhealth-backend/application/ports"
	"rhealth-backend/domain/events"
	"rhealth-backend/domain/patient"
	apperrors "rhealth-backend/pkg/errors"
	"rhealth-backend/pkg/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Broadcaster is the part of the broadcast coordinator the processor drives
type Broadcaster interface {
	BroadcastRoster(ctx context.Context, requestID string) error
	BroadcastSelection(id int64, requestID string)
}

// Processor handles roster mutations. It is not safe for concurrent use; the
// dispatcher calls it from a single goroutine.
type Processor struct {
	store       ports.PatientStore
	broadcaster Broadcaster
	publisher   ports.EventPublisher
	metrics     *observability.Collector
	tracer      trace.Tracer
	logger      *zap.Logger
	now         func() time.Time
}

// NewProcessor creates a new mutation processor
func NewProcessor(
	store ports.PatientStore,
	broadcaster Broadcaster,
	publisher ports.EventPublisher,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		store:       store,
		broadcaster: broadcaster,
		publisher:   publisher,
		metrics:     metrics,
		tracer:      tracer,
		logger:      logger,
		now:         time.Now,
	}
}

// Handle executes one mutation. On success the store write has committed and
// exactly one roster broadcast has been issued before Handle returns. For a
// delete the returned patient only carries the ID.
func (p *Processor) Handle(ctx context.Context, cmd commands.Mutation) (result patient.Patient, err error) {
	start := p.now()
	origin := cmd.Origin()

	ctx, span := p.tracer.Start(ctx, "mutation."+cmd.CommandName(),
		trace.WithAttributes(
			attribute.String("connection.id", origin.SessionID),
			attribute.String("request.id", origin.RequestID),
		),
	)
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(apperrors.TypeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		p.metrics.RecordMutation(cmd.CommandName(), outcome, p.now().Sub(start))
		span.End()
	}()

	if err := cmd.Validate(); err != nil {
		p.logger.Debug("Rejected invalid mutation",
			zap.String("command", cmd.CommandName()),
			zap.String("connectionID", origin.SessionID),
			zap.Error(err),
		)
		return patient.Patient{}, err
	}

	var event events.DomainEvent
	switch c := cmd.(type) {
	case commands.AddPatientCommand:
		result, err = p.store.Insert(ctx, c.Fields)
		if err != nil {
			return patient.Patient{}, apperrors.Wrap(err, "failed to add patient")
		}
		event = events.NewPatientAdded(result, origin.SessionID, p.now())

	case commands.UpdatePatientCommand:
		result, err = p.store.Update(ctx, c.PatientID, c.Patch)
		if err != nil {
			return patient.Patient{}, apperrors.Wrap(err, "failed to update patient")
		}
		event = events.NewPatientUpdated(result, origin.SessionID, p.now())

	case commands.DeletePatientCommand:
		if err := p.store.Delete(ctx, c.PatientID); err != nil {
			return patient.Patient{}, apperrors.Wrap(err, "failed to delete patient")
		}
		result = patient.Patient{ID: c.PatientID}
		event = events.NewPatientDeleted(c.PatientID, origin.SessionID, p.now())

	default:
		return patient.Patient{}, apperrors.NewInternal(fmt.Sprintf("unsupported command %T", cmd), nil)
	}

	span.SetAttributes(attribute.Int64("patient.id", result.ID))

	// The write has committed; a failed roster read must not turn it into an error.
	if err := p.broadcaster.BroadcastRoster(ctx, origin.RequestID); err != nil {
		p.logger.Error("Roster broadcast failed after committed write",
			zap.String("command", cmd.CommandName()),
			zap.Int64("patientID", result.ID),
			zap.Error(err),
		)
	}

	p.publish(ctx, event)

	p.logger.Info("Mutation applied",
		zap.String("command", cmd.CommandName()),
		zap.Int64("patientID", result.ID),
		zap.String("connectionID", origin.SessionID),
	)
	return result, nil
}

// Select relays a selection to every session. The store is never consulted.
func (p *Processor) Select(ctx context.Context, cmd commands.SelectPatientCommand) {
	p.broadcaster.BroadcastSelection(cmd.PatientID, cmd.RequestID)
	p.publish(ctx, events.NewPatientSelected(cmd.PatientID, cmd.SessionID, p.now()))
}

func (p *Processor) publish(ctx context.Context, event events.DomainEvent) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, event); err != nil {
		p.logger.Warn("Failed to publish domain event",
			zap.String("eventType", event.GetEventType()),
			zap.String("aggregateID", event.GetAggregateID()),
			zap.Error(err),
		)
	}
}
