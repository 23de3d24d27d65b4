package decorators

import (
	"context"
	"time"

	"rhealth-backend/application/ports"
	"rhealth-backend/domain/patient"
	"rhealth-backend/pkg/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// InstrumentedStore records metrics, spans and logs for every store call
type InstrumentedStore struct {
	inner         ports.PatientStore
	metrics       *observability.Collector
	tracer        trace.Tracer
	logger        *zap.Logger
	slowThreshold time.Duration
}

// NewInstrumentedStore wraps inner
func NewInstrumentedStore(inner ports.PatientStore, metrics *observability.Collector, tracer trace.Tracer, logger *zap.Logger) *InstrumentedStore {
	return &InstrumentedStore{
		inner:         inner,
		metrics:       metrics,
		tracer:        tracer,
		logger:        logger,
		slowThreshold: time.Second,
	}
}

func (s *InstrumentedStore) Insert(ctx context.Context, fields patient.Fields) (p patient.Patient, err error) {
	ctx, done := s.begin(ctx, "insert")
	defer func() { done(err, attribute.Int64("patient.id", p.ID)) }()
	return s.inner.Insert(ctx, fields)
}

func (s *InstrumentedStore) Update(ctx context.Context, id int64, patch patient.Patch) (p patient.Patient, err error) {
	ctx, done := s.begin(ctx, "update")
	defer func() { done(err, attribute.Int64("patient.id", id)) }()
	return s.inner.Update(ctx, id, patch)
}

func (s *InstrumentedStore) Delete(ctx context.Context, id int64) (err error) {
	ctx, done := s.begin(ctx, "delete")
	defer func() { done(err, attribute.Int64("patient.id", id)) }()
	return s.inner.Delete(ctx, id)
}

func (s *InstrumentedStore) ListAll(ctx context.Context) (roster []patient.Patient, err error) {
	ctx, done := s.begin(ctx, "list_all")
	defer func() { done(err, attribute.Int("roster.size", len(roster))) }()
	return s.inner.ListAll(ctx)
}

func (s *InstrumentedStore) begin(ctx context.Context, operation string) (context.Context, func(error, ...attribute.KeyValue)) {
	ctx, span := s.tracer.Start(ctx, "store."+operation)
	startTime := time.Now()

	return ctx, func(err error, attrs ...attribute.KeyValue) {
		duration := time.Since(startTime)
		s.metrics.RecordStoreOperation(operation, duration, err)

		span.SetAttributes(attrs...)
		fields := []zap.Field{zap.String("operation", operation), zap.Duration("duration", duration)}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.Warn("Store operation failed", append(fields, zap.Error(err))...)
		} else if duration > s.slowThreshold {
			s.logger.Warn("Slow store operation", fields...)
		} else {
			s.logger.Debug("Store operation", fields...)
		}
		span.End()
	}
}
