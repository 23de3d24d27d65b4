package events

import (
	"strconv"
	"time"

	"rhealth-backend/domain/patient"
)

// Event sources - These define where events originate from
const (
	// SourceBackend is the roster sync service
	SourceBackend = "rhealth.backend"
)

// Event types - These define the types of events in the system
const (
	TypePatientAdded    = "patient.added"
	TypePatientUpdated  = "patient.updated"
	TypePatientDeleted  = "patient.deleted"
	TypePatientSelected = "patient.selected"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(id int64, eventType string, timestamp time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: strconv.FormatInt(id, 10),
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     1,
	}
}

// PatientAdded is raised after a new record is committed
type PatientAdded struct {
	BaseEvent
	Patient   patient.Patient `json:"patient"`
	SessionID string          `json:"session_id,omitempty"`
}

// NewPatientAdded creates a PatientAdded event
func NewPatientAdded(p patient.Patient, sessionID string, timestamp time.Time) PatientAdded {
	return PatientAdded{
		BaseEvent: newBase(p.ID, TypePatientAdded, timestamp),
		Patient:   p,
		SessionID: sessionID,
	}
}

// PatientUpdated is raised after an update is committed. Patient is the
// record as stored after the write.
type PatientUpdated struct {
	BaseEvent
	Patient   patient.Patient `json:"patient"`
	SessionID string          `json:"session_id,omitempty"`
}

// NewPatientUpdated creates a PatientUpdated event
func NewPatientUpdated(p patient.Patient, sessionID string, timestamp time.Time) PatientUpdated {
	return PatientUpdated{
		BaseEvent: newBase(p.ID, TypePatientUpdated, timestamp),
		Patient:   p,
		SessionID: sessionID,
	}
}

// PatientDeleted is raised after a record is removed
type PatientDeleted struct {
	BaseEvent
	PatientID int64  `json:"patient_id"`
	SessionID string `json:"session_id,omitempty"`
}

// NewPatientDeleted creates a PatientDeleted event
func NewPatientDeleted(id int64, sessionID string, timestamp time.Time) PatientDeleted {
	return PatientDeleted{
		BaseEvent: newBase(id, TypePatientDeleted, timestamp),
		PatientID: id,
		SessionID: sessionID,
	}
}

// PatientSelected is raised when a session moves the shared selection
type PatientSelected struct {
	BaseEvent
	PatientID int64  `json:"patient_id"`
	SessionID string `json:"session_id,omitempty"`
}

// NewPatientSelected creates a PatientSelected event
func NewPatientSelected(id int64, sessionID string, timestamp time.Time) PatientSelected {
	return PatientSelected{
		BaseEvent: newBase(id, TypePatientSelected, timestamp),
		PatientID: id,
		SessionID: sessionID,
	}
}
