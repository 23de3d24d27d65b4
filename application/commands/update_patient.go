package commands

import (
	"rhealth-backend/domain/patient"
	apperrors "rhealth-backend/pkg/errors"
)

// UpdatePatientCommand represents a command to change some fields of a record
type UpdatePatientCommand struct {
	PatientID int64
	Patch     patient.Patch
	SessionID string
	RequestID string
}

// CommandName implements Mutation
func (c UpdatePatientCommand) CommandName() string { return "update_patient" }

// Origin implements Mutation
func (c UpdatePatientCommand) Origin() Origin {
	return Origin{SessionID: c.SessionID, RequestID: c.RequestID}
}

// Validate validates the UpdatePatientCommand
func (c UpdatePatientCommand) Validate() error {
	if c.PatientID <= 0 {
		return apperrors.NewValidation("patient ID must be positive")
	}
	return patient.ValidatePatch(c.Patch)
}
