// Package broadcast fans roster snapshots and selection signals out to every
// registered session.
package broadcast

import (
	"context"

	"rhealth-backend/application/ports"
	apperrors "rhealth-backend/pkg/errors"
	"rhealth-backend/pkg/observability"
	"rhealth-backend/pkg/protocol"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Coordinator pushes full-roster snapshots and selection changes to sessions.
// A failed delivery to one session never affects the others.
type Coordinator struct {
	store     ports.PatientStore
	registry  ports.SessionRegistry
	selection SelectionCell
	metrics   *observability.Collector
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewCoordinator creates a new broadcast coordinator
func NewCoordinator(
	store ports.PatientStore,
	registry ports.SessionRegistry,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		store:    store,
		registry: registry,
		metrics:  metrics,
		tracer:   tracer,
		logger:   logger,
	}
}

// BroadcastRoster reads the full roster and pushes it to every registered
// session. requestID names the mutation that caused the push, if any.
func (c *Coordinator) BroadcastRoster(ctx context.Context, requestID string) error {
	ctx, span := c.tracer.Start(ctx, "broadcast.roster",
		trace.WithAttributes(attribute.String("request.id", requestID)),
	)
	defer span.End()

	data, n, err := c.encodeRoster(ctx, requestID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "roster read failed")
		return err
	}

	sessions := c.registry.Sessions()
	span.SetAttributes(
		attribute.Int("roster.size", n),
		attribute.Int("sessions", len(sessions)),
	)
	c.metrics.SetRosterSize(n)
	c.fanOut(protocol.TypePatients, data, sessions)
	return nil
}

// SendRoster pushes the current roster to one session only.
func (c *Coordinator) SendRoster(ctx context.Context, s ports.Session) error {
	ctx, span := c.tracer.Start(ctx, "broadcast.roster.single",
		trace.WithAttributes(attribute.String("connection.id", s.ID())),
	)
	defer span.End()

	data, _, err := c.encodeRoster(ctx, "")
	if err != nil {
		span.RecordError(err)
		return err
	}
	c.deliver(s, protocol.TypePatients, data)
	return nil
}

// BroadcastSelection records id as the current selection and relays it to
// every session, the sender included. The id is not checked against the store.
func (c *Coordinator) BroadcastSelection(id int64, requestID string) {
	c.selection.Set(id)

	data, err := protocol.EncodeSelectionFor(requestID, id)
	if err != nil {
		c.logger.Error("Failed to encode selection", zap.Int64("patientID", id), zap.Error(err))
		return
	}
	c.metrics.SelectionRelayed()
	c.fanOut(protocol.TypeSelectedPatient, data, c.registry.Sessions())
}

// SendSelection sends the current selection, if one was ever made, to one session.
func (c *Coordinator) SendSelection(s ports.Session) {
	id, ok := c.selection.Get()
	if !ok {
		return
	}
	data, err := protocol.EncodeSelection(id)
	if err != nil {
		c.logger.Error("Failed to encode selection", zap.Int64("patientID", id), zap.Error(err))
		return
	}
	c.deliver(s, protocol.TypeSelectedPatient, data)
}

// Selection returns the current selection
func (c *Coordinator) Selection() (int64, bool) {
	return c.selection.Get()
}

// SendError reports a failed request to the session it came from.
func (c *Coordinator) SendError(s ports.Session, requestID string, cause error) {
	data, err := protocol.EncodeError(requestID, cause)
	if err != nil {
		c.logger.Error("Failed to encode error message", zap.Error(err))
		return
	}
	c.deliver(s, protocol.TypeError, data)
}

func (c *Coordinator) encodeRoster(ctx context.Context, requestID string) ([]byte, int, error) {
	roster, err := c.store.ListAll(ctx)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, "failed to read roster")
	}
	data, err := protocol.EncodeRosterFor(requestID, roster)
	if err != nil {
		return nil, 0, apperrors.NewInternal("failed to encode roster", err)
	}
	return data, len(roster), nil
}

func (c *Coordinator) fanOut(msgType string, data []byte, sessions []ports.Session) {
	for _, s := range sessions {
		c.deliver(s, msgType, data)
	}
}

func (c *Coordinator) deliver(s ports.Session, msgType string, data []byte) {
	if err := s.Send(data); err != nil {
		c.metrics.MessageDropped(msgType)
		c.logger.Warn("Dropped message for session",
			zap.String("connectionID", s.ID()),
			zap.String("messageType", msgType),
			zap.Error(err),
		)
		return
	}
	c.metrics.MessageSent(msgType)
}
