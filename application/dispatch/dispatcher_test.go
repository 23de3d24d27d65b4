package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"rhealth-backend/application/broadcast"
	"rhealth-backend/application/commands"
	"rhealth-backend/application/processor"
	"rhealth-backend/application/session"
	"rhealth-backend/application/session/sessiontest"
	"rhealth-backend/domain/patient"
	"rhealth-backend/infrastructure/persistence/memory"
	apperrors "rhealth-backend/pkg/errors"
	"rhealth-backend/pkg/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

type harness struct {
	d        *Dispatcher
	store    *memory.PatientStore
	registry *session.Registry
	cancel   context.CancelFunc
	done     chan error
	stopOnce sync.Once
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tracer := noop.NewTracerProvider().Tracer("test")
	logger := zap.NewNop()

	store := memory.NewPatientStore()
	registry := session.NewRegistry()
	coordinator := broadcast.NewCoordinator(store, registry, nil, tracer, logger)
	proc := processor.NewProcessor(store, coordinator, nil, nil, tracer, logger)
	d := NewDispatcher(16, registry, proc, coordinator, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{d: d, store: store, registry: registry, cancel: cancel, done: make(chan error, 1)}
	go func() { h.done <- d.Run(ctx) }()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.stopOnce.Do(func() {
		h.cancel()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
		}
	})
}

// flush waits until every event queued so far has been handled
func (h *harness) flush(t *testing.T) {
	t.Helper()
	_, err := h.d.Do(context.Background(), nil, commands.DeletePatientCommand{})
	require.True(t, apperrors.IsValidation(err))
}

func (h *harness) connect(t *testing.T, id string) *sessiontest.Recorder {
	t.Helper()
	s := sessiontest.NewRecorder(id)
	require.NoError(t, h.d.Connect(context.Background(), s))
	return s
}

func decodeRoster(t *testing.T, raw string) []patient.Patient {
	t.Helper()
	var roster []patient.Patient
	require.NoError(t, json.Unmarshal([]byte(raw), &roster))
	return roster
}

func addFields(name string) patient.Fields {
	return patient.Fields{Name: name, Age: patient.Int(40), Gender: "F"}
}

func TestDispatcher_ThreeSessionsSeeTheSameAdd(t *testing.T) {
	// Arrange
	h := newHarness(t)
	a, b, c := h.connect(t, "a"), h.connect(t, "b"), h.connect(t, "c")

	// Act
	require.NoError(t, h.d.Submit(context.Background(), a, commands.AddPatientCommand{Fields: addFields("A"), SessionID: "a"}))
	h.flush(t)

	// Assert
	for _, s := range []*sessiontest.Recorder{a, b, c} {
		rosters := s.Rosters()
		require.Len(t, rosters, 2, s.ID())
		assert.Equal(t, "[]", rosters[0])
		latest := decodeRoster(t, rosters[1])
		require.Len(t, latest, 1)
		assert.Equal(t, "A", latest[0].Name)
	}
	assert.Equal(t, a.Rosters(), b.Rosters())
	assert.Equal(t, b.Rosters(), c.Rosters())
}

func TestDispatcher_SameSnapshotSequence(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect(t, "a"), h.connect(t, "b")
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, h.d.Submit(ctx, a, commands.AddPatientCommand{Fields: addFields(name)}))
	}
	require.NoError(t, h.d.Submit(ctx, b, commands.UpdatePatientCommand{PatientID: 2, Patch: patient.Patch{HeartRate: patient.SetTo(99)}}))
	require.NoError(t, h.d.Submit(ctx, b, commands.DeletePatientCommand{PatientID: 1}))
	h.flush(t)

	assert.Len(t, a.Rosters(), 6)
	assert.Equal(t, a.Rosters(), b.Rosters())

	final := decodeRoster(t, a.Rosters()[5])
	require.Len(t, final, 2)
	assert.Equal(t, int64(2), final[0].ID)
	assert.Equal(t, 99.0, *final[0].HeartRate)
}

func TestDispatcher_LateJoinerGetsSnapshotAndSelection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.store.Insert(ctx, addFields("Existing"))
	require.NoError(t, err)
	require.NoError(t, h.d.Select(ctx, commands.SelectPatientCommand{PatientID: 1}))

	late := h.connect(t, "late")
	h.flush(t)

	msgs := late.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, protocol.TypePatients, msgs[0].Type)
	assert.Equal(t, "Existing", decodeRoster(t, string(msgs[0].Data))[0].Name)
	assert.Equal(t, protocol.TypeSelectedPatient, msgs[1].Type)
	assert.JSONEq(t, "1", string(msgs[1].Data))
}

func TestDispatcher_ErrorsGoToSenderOnly(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect(t, "a"), h.connect(t, "b")

	require.NoError(t, h.d.Submit(context.Background(), a, commands.DeletePatientCommand{PatientID: 77, RequestID: "r-1"}))
	h.flush(t)

	errs := a.OfType(protocol.TypeError)
	require.Len(t, errs, 1)
	assert.Equal(t, "r-1", errs[0].RequestID)
	assert.Contains(t, string(errs[0].Data), "NOT_FOUND")
	assert.Empty(t, b.OfType(protocol.TypeError))
	assert.Len(t, b.Rosters(), 1, "a failed mutation is not broadcast")
}

func TestDispatcher_StaleSelectionRelayed(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect(t, "a"), h.connect(t, "b")
	ctx := context.Background()

	added, err := h.d.Do(ctx, a, commands.AddPatientCommand{Fields: addFields("Gone")})
	require.NoError(t, err)
	_, err = h.d.Do(ctx, a, commands.DeletePatientCommand{PatientID: added.ID})
	require.NoError(t, err)

	require.NoError(t, h.d.Select(ctx, commands.SelectPatientCommand{PatientID: added.ID, SessionID: "b"}))
	h.flush(t)

	for _, s := range []*sessiontest.Recorder{a, b} {
		sel := s.OfType(protocol.TypeSelectedPatient)
		require.Len(t, sel, 1)
		id, err := protocol.DecodeID(sel[0].Data)
		require.NoError(t, err)
		assert.Equal(t, added.ID, id)
	}
}

func TestDispatcher_Disconnect(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect(t, "a"), h.connect(t, "b")

	h.d.Disconnect(b)
	h.d.Disconnect(b)
	require.NoError(t, h.d.Submit(context.Background(), a, commands.AddPatientCommand{Fields: addFields("A")}))
	h.flush(t)

	assert.Equal(t, 1, h.registry.Count())
	assert.Len(t, a.Rosters(), 2)
	assert.Len(t, b.Rosters(), 1)
}

func TestDispatcher_SlowSessionDoesNotBlockOthers(t *testing.T) {
	h := newHarness(t)
	dead, live := h.connect(t, "dead"), h.connect(t, "live")
	h.flush(t)
	dead.Fail()

	require.NoError(t, h.d.Submit(context.Background(), live, commands.AddPatientCommand{Fields: addFields("A")}))
	h.flush(t)

	assert.Len(t, live.Rosters(), 2)
	assert.Equal(t, 2, h.registry.Count())
}

func TestDispatcher_Stopped(t *testing.T) {
	h := newHarness(t)
	h.stop()

	err := h.d.Submit(context.Background(), nil, commands.AddPatientCommand{Fields: addFields("A")})
	assert.ErrorIs(t, err, ErrStopped)
}
