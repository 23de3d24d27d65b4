// Package decorators wraps a ports.PatientStore with cross-cutting behavior.
// Order used by the server: base -> circuit breaker -> instrumentation.
package decorators

import (
	"context"
	"errors"

	"rhealth-backend/application/ports"
	"rhealth-backend/domain/patient"
	"rhealth-backend/infrastructure/config"
	apperrors "rhealth-backend/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// CircuitBreakerStore stops calling the store after repeated failures.
// Only store errors count against the breaker; NotFound and Validation are
// answers from a healthy store.
type CircuitBreakerStore struct {
	inner ports.PatientStore
	cb    *gobreaker.CircuitBreaker
}

// NewCircuitBreakerStore wraps inner with a breaker tuned by cfg
func NewCircuitBreakerStore(inner ports.PatientStore, cfg config.BreakerConfig, logger *zap.Logger) *CircuitBreakerStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "patient-store",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Only trip if we have enough requests to make a decision
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || apperrors.IsNotFound(err) || apperrors.IsValidation(err)
		},
	})
	return &CircuitBreakerStore{inner: inner, cb: cb}
}

// State reports the breaker state
func (s *CircuitBreakerStore) State() gobreaker.State {
	return s.cb.State()
}

func (s *CircuitBreakerStore) Insert(ctx context.Context, fields patient.Fields) (patient.Patient, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.inner.Insert(ctx, fields)
	})
	if err != nil {
		return patient.Patient{}, breakerError(err)
	}
	return out.(patient.Patient), nil
}

func (s *CircuitBreakerStore) Update(ctx context.Context, id int64, patch patient.Patch) (patient.Patient, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.inner.Update(ctx, id, patch)
	})
	if err != nil {
		return patient.Patient{}, breakerError(err)
	}
	return out.(patient.Patient), nil
}

func (s *CircuitBreakerStore) Delete(ctx context.Context, id int64) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.inner.Delete(ctx, id)
	})
	if err != nil {
		return breakerError(err)
	}
	return nil
}

func (s *CircuitBreakerStore) ListAll(ctx context.Context) ([]patient.Patient, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.inner.ListAll(ctx)
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return out.([]patient.Patient), nil
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.NewStore("patient store temporarily unavailable", err)
	}
	return err
}
