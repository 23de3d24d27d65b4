package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rhealth-backend/domain/patient"
	apperrors "rhealth-backend/pkg/errors"
)

// PatientStore provides an in-memory implementation of ports.PatientStore.
// Records are lost on restart.
type PatientStore struct {
	mu       sync.RWMutex
	patients map[int64]patient.Patient
	lastID   int64
}

// NewPatientStore creates a new in-memory patient store
func NewPatientStore() *PatientStore {
	return &PatientStore{
		patients: make(map[int64]patient.Patient),
	}
}

// Insert saves a new record under the next ID
func (s *PatientStore) Insert(ctx context.Context, fields patient.Fields) (patient.Patient, error) {
	if err := ctx.Err(); err != nil {
		return patient.Patient{}, apperrors.NewStore("insert cancelled", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// IDs only ever grow so a deleted ID is never handed out again
	s.lastID++
	p := patient.New(s.lastID, fields)
	s.patients[p.ID] = p
	return p.Clone(), nil
}

// Update applies the patch to an existing record
func (s *PatientStore) Update(ctx context.Context, id int64, patch patient.Patch) (patient.Patient, error) {
	if err := ctx.Err(); err != nil {
		return patient.Patient{}, apperrors.NewStore("update cancelled", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.patients[id]
	if !exists {
		return patient.Patient{}, apperrors.NewNotFound(fmt.Sprintf("patient %d not found", id))
	}

	updated := patient.Apply(current, patch)
	s.patients[id] = updated
	return updated.Clone(), nil
}

// Delete removes a record
func (s *PatientStore) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewStore("delete cancelled", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.patients[id]; !exists {
		return apperrors.NewNotFound(fmt.Sprintf("patient %d not found", id))
	}
	delete(s.patients, id)
	return nil
}

// ListAll returns copies of every record ordered by ID
func (s *PatientStore) ListAll(ctx context.Context) ([]patient.Patient, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStore("list cancelled", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]patient.Patient, 0, len(s.patients))
	for _, p := range s.patients {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
