package commands

import "rhealth-backend/domain/patient"

// AddPatientCommand represents a command to create a patient record
type AddPatientCommand struct {
	Fields    patient.Fields
	SessionID string
	RequestID string
}

// CommandName implements Mutation
func (c AddPatientCommand) CommandName() string { return "add_patient" }

// Origin implements Mutation
func (c AddPatientCommand) Origin() Origin {
	return Origin{SessionID: c.SessionID, RequestID: c.RequestID}
}

// Validate validates the AddPatientCommand
func (c AddPatientCommand) Validate() error {
	return patient.ValidateFields(c.Fields)
}
