package commands

// SelectPatientCommand moves the shared selection. It never touches the store
// and the id is relayed as given, even if no such patient exists.
type SelectPatientCommand struct {
	PatientID int64
	SessionID string
	RequestID string
}
