package commands

import apperrors "rhealth-backend/pkg/errors"

// DeletePatientCommand represents a command to delete a patient record
type DeletePatientCommand struct {
	PatientID int64
	SessionID string
	RequestID string
}

// CommandName implements Mutation
func (c DeletePatientCommand) CommandName() string { return "delete_patient" }

// Origin implements Mutation
func (c DeletePatientCommand) Origin() Origin {
	return Origin{SessionID: c.SessionID, RequestID: c.RequestID}
}

// Validate validates the DeletePatientCommand
func (c DeletePatientCommand) Validate() error {
	if c.PatientID <= 0 {
		return apperrors.NewValidation("patient ID must be positive")
	}
	return nil
}
