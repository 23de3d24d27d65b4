package ports

import (
	"context"

	"rhealth-backend/domain/events"
	"rhealth-backend/domain/patient"
)

// PatientStore defines the interface for patient persistence.
// This is a port in hexagonal architecture - the sync core doesn't know about the implementation.
// Implementations return errors from rhealth-backend/pkg/errors: NotFound for unknown
// ids and Store for anything the backing engine reports.
type PatientStore interface {
	// Insert persists a new record and returns it with its assigned ID.
	// IDs are unique and never reused, even after a delete.
	Insert(ctx context.Context, fields patient.Fields) (patient.Patient, error)

	// Update applies the patch to an existing record and returns the stored result
	Update(ctx context.Context, id int64, patch patient.Patch) (patient.Patient, error)

	// Delete removes a record
	Delete(ctx context.Context, id int64) error

	// ListAll returns every record ordered by ID
	ListAll(ctx context.Context) ([]patient.Patient, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}
