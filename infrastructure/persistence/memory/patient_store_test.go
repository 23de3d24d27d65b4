package memory

import (
	"context"
	"testing"

	"rhealth-backend/domain/patient"
	apperrors "rhealth-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fields(name string) patient.Fields {
	return patient.Fields{Name: name, Age: patient.Int(40), Gender: "F"}
}

func TestPatientStore_InsertListDelete(t *testing.T) {
	ctx := context.Background()
	store := NewPatientStore()

	// Act
	a, err := store.Insert(ctx, fields("A"))
	require.NoError(t, err)
	b, err := store.Insert(ctx, fields("B"))
	require.NoError(t, err)

	// Assert
	assert.NotEqual(t, a.ID, b.ID)
	list, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Name)
	assert.Equal(t, "B", list[1].Name)

	require.NoError(t, store.Delete(ctx, a.ID))
	list, err = store.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, []int64{list[0].ID})
	assert.Len(t, list, 1)
}

func TestPatientStore_IDsNotReused(t *testing.T) {
	ctx := context.Background()
	store := NewPatientStore()

	a, _ := store.Insert(ctx, fields("A"))
	require.NoError(t, store.Delete(ctx, a.ID))
	b, err := store.Insert(ctx, fields("B"))
	require.NoError(t, err)

	assert.Greater(t, b.ID, a.ID)
}

func TestPatientStore_Update(t *testing.T) {
	ctx := context.Background()
	store := NewPatientStore()
	p, _ := store.Insert(ctx, patient.Fields{Name: "X", Age: patient.Int(50), Gender: "M", HeartRate: patient.Float(70)})

	updated, err := store.Update(ctx, p.ID, patient.Patch{HeartRate: patient.SetTo(90)})
	require.NoError(t, err)
	assert.Equal(t, 90.0, *updated.HeartRate)
	assert.Equal(t, "X", updated.Name)

	_, err = store.Update(ctx, 999, patient.Patch{Name: patient.String("Y")})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestPatientStore_DeleteUnknown(t *testing.T) {
	store := NewPatientStore()
	err := store.Delete(context.Background(), 5)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestPatientStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewPatientStore()
	p, _ := store.Insert(ctx, patient.Fields{Name: "X", Age: patient.Int(1), Gender: "M", HeartRate: patient.Float(70)})

	*p.HeartRate = 1
	list, _ := store.ListAll(ctx)
	assert.Equal(t, 70.0, *list[0].HeartRate)
}
