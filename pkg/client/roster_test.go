package client

import (
	"fmt"
	"testing"

	"rhealth-backend/domain/patient"
	apperrors "rhealth-backend/pkg/errors"
	"rhealth-backend/pkg/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []patient.Patient {
	return []patient.Patient{
		{ID: 1, Name: "Ada Lovelace", Age: 36, Gender: "F", HeartRate: patient.Float(72)},
		{ID: 2, Name: "Lin", Age: 81, Gender: "M", Temperature: patient.Float(38.4)},
	}
}

func TestRoster_SnapshotReplacesAndClearsOverlays(t *testing.T) {
	r := NewRoster()
	assert.False(t, r.Received())

	r.ApplySnapshot(sample())
	r.Update("req-1", 1, patient.Patch{Name: patient.String("Ada K")})
	r.Add("req-2", patient.Fields{Name: "New", Age: patient.Int(5), Gender: "F"})
	require.Equal(t, 2, r.Pending())

	view := r.View()
	require.Len(t, view, 3)
	assert.Equal(t, "Ada K", view[0].Name)
	assert.Less(t, view[2].ID, int64(0))

	r.ApplySnapshot([]patient.Patient{{ID: 1, Name: "Ada", Age: 36, Gender: "F"}})
	assert.True(t, r.Received())
	assert.Equal(t, 0, r.Pending())
	assert.Equal(t, []patient.Patient{{ID: 1, Name: "Ada", Age: 36, Gender: "F"}}, r.View())
}

func TestRoster_RejectRollsBackOnlyThatEdit(t *testing.T) {
	r := NewRoster()
	r.ApplySnapshot(sample())
	r.Delete("req-del", 2)
	r.Update("req-upd", 1, patient.Patch{HeartRate: patient.Clear()})

	assert.Len(t, r.View(), 1)
	assert.Nil(t, r.View()[0].HeartRate)

	assert.True(t, r.Reject("req-del"))
	assert.False(t, r.Reject("req-del"))
	assert.False(t, r.Reject(""))

	view := r.View()
	require.Len(t, view, 2)
	assert.Nil(t, view[0].HeartRate)
}

func TestRoster_ViewDoesNotAliasSnapshot(t *testing.T) {
	r := NewRoster()
	r.ApplySnapshot(sample())

	view := r.View()
	*view[0].HeartRate = 200

	assert.Equal(t, 72.0, *r.View()[0].HeartRate)
}

func TestRoster_Selection(t *testing.T) {
	r := NewRoster()
	r.ApplySnapshot(sample())

	_, ok := r.Selected()
	assert.False(t, ok)

	r.ApplySelection(2)
	p, ok := r.Selected()
	require.True(t, ok)
	assert.Equal(t, "Lin", p.Name)

	// Dangling selections are kept but resolve to nothing
	r.ApplySelection(99)
	id, has := r.SelectedID()
	assert.True(t, has)
	assert.Equal(t, int64(99), id)
	_, ok = r.Selected()
	assert.False(t, ok)
}

func TestRoster_Handle(t *testing.T) {
	r := NewRoster()

	raw, err := protocol.EncodeRosterFor("req-1", sample())
	require.NoError(t, err)
	u, err := r.Handle(raw)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypePatients, u.Type)
	assert.Equal(t, "req-1", u.RequestID)
	assert.Len(t, u.Patients, 2)
	assert.Len(t, r.View(), 2)

	raw, err = protocol.EncodeSelection(1)
	require.NoError(t, err)
	_, err = r.Handle(raw)
	require.NoError(t, err)
	id, _ := r.SelectedID()
	assert.Equal(t, int64(1), id)

	r.Delete("req-9", 1)
	raw, err = protocol.EncodeError("req-9", apperrors.NewNotFound("patient 1 not found"))
	require.NoError(t, err)
	u, err = r.Handle(raw)
	require.NoError(t, err)
	require.NotNil(t, u.Err)
	assert.Equal(t, "NOT_FOUND", u.Err.Code)
	assert.True(t, u.RolledBack)
	assert.Len(t, r.View(), 2)

	_, err = r.Handle([]byte(`{"type":"mystery","data":1}`))
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	list := sample()

	tests := []struct {
		query string
		want  []int64
	}{
		{"", []int64{1, 2}},
		{"ada", []int64{1}},
		{"LIN", []int64{2}},
		{"m", []int64{2}},
		{"38.4", []int64{2}},
		{"72", []int64{1}},
		{"nobody", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var got []int64
			for _, p := range Filter(list, tt.query) {
				got = append(got, p.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPage(t *testing.T) {
	var list []patient.Patient
	for i := 1; i <= 23; i++ {
		list = append(list, patient.Patient{ID: int64(i), Name: fmt.Sprintf("P%d", i)})
	}

	page, total := Page(list, 1, 0)
	assert.Equal(t, 3, total)
	assert.Len(t, page, DefaultPageSize)
	assert.Equal(t, int64(1), page[0].ID)

	page, _ = Page(list, 3, 10)
	assert.Len(t, page, 3)
	assert.Equal(t, int64(21), page[0].ID)

	page, _ = Page(list, 4, 10)
	assert.Empty(t, page)

	page, total = Page(nil, 1, 10)
	assert.Empty(t, page)
	assert.Equal(t, 0, total)
}
