package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"rhealth-backend/domain/patient"
	apperrors "rhealth-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rhealth.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestOpen_Idempotent(t *testing.T) {
	s, path := openTestStore(t)
	_, err := s.Insert(context.Background(), patient.Fields{Name: "A", Age: patient.Int(1), Gender: "F"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	version, err := reopened.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)

	list, err := reopened.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_InsertListDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	a, err := s.Insert(ctx, patient.Fields{Name: " Ada ", Age: patient.Int(36), Gender: "F", HeartRate: patient.Float(72.5)})
	require.NoError(t, err)
	b, err := s.Insert(ctx, patient.Fields{Name: "Lin", Age: patient.Int(0), Gender: "M"})
	require.NoError(t, err)

	list, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a, list[0])
	assert.Equal(t, "Ada", list[0].Name)
	assert.Equal(t, 72.5, *list[0].HeartRate)
	assert.Nil(t, list[1].HeartRate)

	require.NoError(t, s.Delete(ctx, a.ID))
	list, err = s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	err = s.Delete(ctx, a.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStore_IDsNotReused(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	a, _ := s.Insert(ctx, patient.Fields{Name: "A", Age: patient.Int(1), Gender: "F"})
	require.NoError(t, s.Delete(ctx, a.ID))
	b, err := s.Insert(ctx, patient.Fields{Name: "B", Age: patient.Int(1), Gender: "F"})
	require.NoError(t, err)

	assert.Greater(t, b.ID, a.ID)
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	p, _ := s.Insert(ctx, patient.Fields{Name: "X", Age: patient.Int(50), Gender: "M", HeartRate: patient.Float(70), Temperature: patient.Float(37)})

	updated, err := s.Update(ctx, p.ID, patient.Patch{HeartRate: patient.SetTo(90), Temperature: patient.Clear()})
	require.NoError(t, err)
	assert.Equal(t, 90.0, *updated.HeartRate)
	assert.Nil(t, updated.Temperature)

	list, _ := s.ListAll(ctx)
	assert.Equal(t, updated, list[0])

	_, err = s.Update(ctx, 12345, patient.Patch{Name: patient.String("Y")})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStore_ClosedIsStoreError(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.ListAll(context.Background())
	assert.True(t, apperrors.IsStore(err))
}
