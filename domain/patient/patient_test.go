package patient

import (
	"strings"
	"testing"

	apperrors "rhealth-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFields(t *testing.T) {
	t.Run("Should accept required fields only", func(t *testing.T) {
		err := ValidateFields(Fields{Name: "A", Age: Int(30), Gender: "F"})
		assert.NoError(t, err)
	})

	t.Run("Should accept a newborn", func(t *testing.T) {
		err := ValidateFields(Fields{Name: "Baby", Age: Int(0), Gender: "M"})
		assert.NoError(t, err)
	})

	t.Run("Should reject missing age", func(t *testing.T) {
		err := ValidateFields(Fields{Name: "A", Gender: "F"})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Contains(t, err.Error(), "age is required")
	})

	t.Run("Should reject blank name and gender", func(t *testing.T) {
		err := ValidateFields(Fields{Name: "   ", Age: Int(40), Gender: ""})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name is required")
		assert.Contains(t, err.Error(), "gender is required")
	})

	t.Run("Should reject negative age", func(t *testing.T) {
		err := ValidateFields(Fields{Name: "A", Age: Int(-1), Gender: "F"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "age must be at least 0")
	})

	t.Run("Should reject impossible oxygen saturation", func(t *testing.T) {
		err := ValidateFields(Fields{Name: "A", Age: Int(30), Gender: "F", OxygenSaturation: Float(140)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "oxygenSaturation must be at most 100")
	})
}

func TestValidate_PlausibilityBounds(t *testing.T) {
	valid := func(mutate func(*Fields)) Fields {
		f := Fields{Name: "A", Age: Int(30), Gender: "F"}
		mutate(&f)
		return f
	}

	tests := []struct {
		name       string
		atLimit    Patch
		over       Patch
		overFields Fields
		wantErr    string
	}{
		{
			name:       "name",
			atLimit:    Patch{Name: String(strings.Repeat("n", 255))},
			over:       Patch{Name: String(strings.Repeat("n", 256))},
			overFields: valid(func(f *Fields) { f.Name = strings.Repeat("n", 256) }),
			wantErr:    "name must be at most 255 characters",
		},
		{
			name:       "age",
			atLimit:    Patch{Age: Int(150)},
			over:       Patch{Age: Int(151)},
			overFields: valid(func(f *Fields) { f.Age = Int(151) }),
			wantErr:    "age must be at most 150",
		},
		{
			name:       "heartRate",
			atLimit:    Patch{HeartRate: SetTo(400)},
			over:       Patch{HeartRate: SetTo(401)},
			overFields: valid(func(f *Fields) { f.HeartRate = Float(401) }),
			wantErr:    "heartRate must be at most 400",
		},
		{
			name:       "oxygenSaturation",
			atLimit:    Patch{OxygenSaturation: SetTo(100)},
			over:       Patch{OxygenSaturation: SetTo(100.5)},
			overFields: valid(func(f *Fields) { f.OxygenSaturation = Float(100.5) }),
			wantErr:    "oxygenSaturation must be at most 100",
		},
		{
			name:       "temperature",
			atLimit:    Patch{Temperature: SetTo(120)},
			over:       Patch{Temperature: SetTo(121)},
			overFields: valid(func(f *Fields) { f.Temperature = Float(121) }),
			wantErr:    "temperature must be at most 120",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, ValidatePatch(tt.atLimit))

			err := ValidatePatch(tt.over)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantErr)

			err = ValidateFields(tt.overFields)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidatePatch(t *testing.T) {
	t.Run("Should reject an empty patch", func(t *testing.T) {
		err := ValidatePatch(Patch{})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("Should accept clearing a vital", func(t *testing.T) {
		assert.NoError(t, ValidatePatch(Patch{HeartRate: Clear()}))
	})

	t.Run("Should reject blanking the name", func(t *testing.T) {
		err := ValidatePatch(Patch{Name: String(" ")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name is required")
	})

	t.Run("Should reject negative heart rate", func(t *testing.T) {
		err := ValidatePatch(Patch{HeartRate: SetTo(-5)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "heartRate must be at least 0")
	})
}

func TestApply(t *testing.T) {
	base := New(7, Fields{Name: "X", Age: Int(50), Gender: "M", HeartRate: Float(70), Temperature: Float(36.6)})

	t.Run("Should change only supplied fields", func(t *testing.T) {
		// Act
		updated := Apply(base, Patch{HeartRate: SetTo(90)})

		// Assert
		assert.Equal(t, int64(7), updated.ID)
		assert.Equal(t, "X", updated.Name)
		assert.Equal(t, 50, updated.Age)
		require.NotNil(t, updated.HeartRate)
		assert.Equal(t, 90.0, *updated.HeartRate)
		require.NotNil(t, updated.Temperature)
		assert.Equal(t, 36.6, *updated.Temperature)
	})

	t.Run("Should clear a vital set to null", func(t *testing.T) {
		updated := Apply(base, Patch{Temperature: Clear()})
		assert.Nil(t, updated.Temperature)
	})

	t.Run("Should not alias the original record", func(t *testing.T) {
		updated := Apply(base.Clone(), Patch{Name: String("Y")})
		*updated.HeartRate = 1

		assert.Equal(t, 70.0, *base.HeartRate)
		assert.Equal(t, "X", base.Name)
	})
}
