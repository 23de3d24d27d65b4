// Package sessiontest provides an in-process ports.Session for tests.
package sessiontest

import (
	"encoding/json"
	"errors"
	"sync"

	"rhealth-backend/pkg/protocol"
)

// ErrClosed is returned by Send once the recorder is failing
var ErrClosed = errors.New("session closed")

// Recorder is a session that keeps every message it is sent.
type Recorder struct {
	id string

	mu       sync.Mutex
	messages []protocol.Envelope
	failing  bool
}

// NewRecorder creates a recorder with the given connection ID
func NewRecorder(id string) *Recorder {
	return &Recorder{id: id}
}

// ID implements ports.Session
func (r *Recorder) ID() string { return r.id }

// Send implements ports.Session
func (r *Recorder) Send(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failing {
		return ErrClosed
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	r.messages = append(r.messages, env)
	return nil
}

// Fail makes every later Send return ErrClosed
func (r *Recorder) Fail() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing = true
}

// Messages returns everything received so far
func (r *Recorder) Messages() []protocol.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.Envelope, len(r.messages))
	copy(out, r.messages)
	return out
}

// OfType returns the messages of one type in arrival order
func (r *Recorder) OfType(msgType string) []protocol.Envelope {
	var out []protocol.Envelope
	for _, m := range r.Messages() {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// Rosters returns the data of every patients message as raw JSON strings
func (r *Recorder) Rosters() []string {
	var out []string
	for _, m := range r.OfType(protocol.TypePatients) {
		out = append(out, string(m.Data))
	}
	return out
}
