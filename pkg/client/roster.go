// Package client keeps a local copy of the shared roster in step with the server.
//
// The server is authoritative: every patients push replaces the local
// collection outright. Local edits are shown optimistically as overlays keyed
// by request id until the next push confirms them or an error with the same
// request id rolls them back.
package client

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"rhealth-backend/domain/patient"
	"rhealth-backend/pkg/protocol"
)

// DefaultPageSize matches the dashboard's table
const DefaultPageSize = 10

type overlayKind int

const (
	overlayAdd overlayKind = iota
	overlayUpdate
	overlayDelete
)

type overlay struct {
	kind      overlayKind
	requestID string
	id        int64
	added     patient.Patient
	patch     patient.Patch
}

// Update describes what an inbound message changed
type Update struct {
	Type      string
	RequestID string
	// Patients is the snapshot carried by a patients message
	Patients []patient.Patient
	// Err is set for error messages
	Err *protocol.ErrorData
	// RolledBack reports whether an error removed a pending edit
	RolledBack bool
}

// Roster is the client's reconciled view. It is safe for concurrent use.
type Roster struct {
	mu           sync.RWMutex
	snapshot     []patient.Patient
	received     bool
	selected     int64
	hasSelection bool
	pending      []overlay
	nextTempID   int64
}

// NewRoster returns an empty roster that has not yet received a snapshot
func NewRoster() *Roster {
	return &Roster{}
}

// ApplySnapshot replaces the local collection and drops every pending edit
func (r *Roster) ApplySnapshot(roster []patient.Patient) {
	copied := make([]patient.Patient, len(roster))
	for i, p := range roster {
		copied[i] = p.Clone()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = copied
	r.received = true
	r.pending = nil
}

// ApplySelection sets the selected id even if no such patient exists
func (r *Roster) ApplySelection(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = id
	r.hasSelection = true
}

// Received reports whether at least one snapshot has arrived
func (r *Roster) Received() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.received
}

// Add records an optimistic add. The returned patient carries a negative
// placeholder id until the server assigns one.
func (r *Roster) Add(requestID string, fields patient.Fields) patient.Patient {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextTempID--
	p := patient.New(r.nextTempID, fields)
	r.pending = append(r.pending, overlay{kind: overlayAdd, requestID: requestID, id: p.ID, added: p})
	return p.Clone()
}

// Update records an optimistic update
func (r *Roster) Update(requestID string, id int64, patch patient.Patch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, overlay{kind: overlayUpdate, requestID: requestID, id: id, patch: patch})
}

// Delete records an optimistic delete
func (r *Roster) Delete(requestID string, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, overlay{kind: overlayDelete, requestID: requestID, id: id})
}

// Reject rolls back the pending edit with the given request id
func (r *Roster) Reject(requestID string) bool {
	if requestID == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, o := range r.pending {
		if o.requestID == requestID {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Pending returns the number of unconfirmed edits
func (r *Roster) Pending() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pending)
}

// View returns the last snapshot with pending edits applied in order
func (r *Roster) View() []patient.Patient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.viewLocked()
}

func (r *Roster) viewLocked() []patient.Patient {
	view := make([]patient.Patient, 0, len(r.snapshot))
	for _, p := range r.snapshot {
		view = append(view, p.Clone())
	}

	for _, o := range r.pending {
		switch o.kind {
		case overlayAdd:
			view = append(view, o.added.Clone())
		case overlayUpdate:
			for i := range view {
				if view[i].ID == o.id {
					view[i] = patient.Apply(view[i], o.patch)
				}
			}
		case overlayDelete:
			for i := range view {
				if view[i].ID == o.id {
					view = append(view[:i], view[i+1:]...)
					break
				}
			}
		}
	}
	return view
}

// SelectedID returns the shared selection, if one has been pushed
func (r *Roster) SelectedID() (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selected, r.hasSelection
}

// Selected resolves the shared selection against the current view.
// A dangling selection is reported as found=false.
func (r *Roster) Selected() (patient.Patient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.hasSelection {
		return patient.Patient{}, false
	}
	for _, p := range r.viewLocked() {
		if p.ID == r.selected {
			return p, true
		}
	}
	return patient.Patient{}, false
}

// Handle applies one server message
func (r *Roster) Handle(raw []byte) (Update, error) {
	env, err := protocol.Decode(raw)
	if err != nil {
		return Update{}, err
	}

	u := Update{Type: env.Type, RequestID: env.RequestID}
	switch env.Type {
	case protocol.TypePatients:
		var roster []patient.Patient
		if err := json.Unmarshal(env.Data, &roster); err != nil {
			return u, fmt.Errorf("decode roster: %w", err)
		}
		r.ApplySnapshot(roster)
		u.Patients = roster

	case protocol.TypeSelectedPatient:
		id, err := protocol.DecodeID(env.Data)
		if err != nil {
			return u, fmt.Errorf("decode selection: %w", err)
		}
		r.ApplySelection(id)

	case protocol.TypeError:
		var data protocol.ErrorData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return u, fmt.Errorf("decode error: %w", err)
		}
		u.Err = &data
		u.RolledBack = r.Reject(env.RequestID)

	default:
		return u, fmt.Errorf("unknown message type %q", env.Type)
	}
	return u, nil
}

// Filter returns the patients of list matching query, case-insensitively,
// against id, name, age, gender and the recorded vitals.
func Filter(list []patient.Patient, query string) []patient.Patient {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return list
	}

	out := make([]patient.Patient, 0, len(list))
	for _, p := range list {
		if matches(p, query) {
			out = append(out, p)
		}
	}
	return out
}

func matches(p patient.Patient, query string) bool {
	fields := []string{
		strconv.FormatInt(p.ID, 10),
		p.Name,
		strconv.Itoa(p.Age),
		p.Gender,
		formatVital(p.HeartRate),
		formatVital(p.OxygenSaturation),
		formatVital(p.Temperature),
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

func formatVital(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// Page returns the 1-based page n of list and the total page count.
// Out of range pages are empty.
func Page(list []patient.Patient, n, size int) ([]patient.Patient, int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := (len(list) + size - 1) / size
	if n < 1 || n > total {
		return []patient.Patient{}, total
	}
	start := (n - 1) * size
	end := start + size
	if end > len(list) {
		end = len(list)
	}
	return list[start:end], total
}
