package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeChecks(t *testing.T) {
	cause := errors.New("disk on fire")

	tests := []struct {
		name     string
		err      error
		expected ErrorType
	}{
		{"validation", NewValidation("name is required"), ErrorTypeValidation},
		{"not found", NewNotFound("patient 7 not found"), ErrorTypeNotFound},
		{"store", NewStore("insert failed", cause), ErrorTypeStore},
		{"transport", NewTransport("send failed", cause), ErrorTypeTransport},
		{"internal", NewInternal("boom", cause), ErrorTypeInternal},
		{"foreign error", cause, ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TypeOf(tt.err))
		})
	}
}

func TestIsHelpersSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("processing update: %w", NewNotFound("patient 3 not found"))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.False(t, IsStore(err))
}

func TestWrap(t *testing.T) {
	t.Run("Should preserve AppError type", func(t *testing.T) {
		err := Wrap(NewValidation("age must be numeric"), "add patient")

		assert.True(t, IsValidation(err))
		assert.Equal(t, "VALIDATION: add patient: age must be numeric", err.Error())
	})

	t.Run("Should turn foreign errors into internal errors", func(t *testing.T) {
		cause := errors.New("unexpected")
		err := Wrap(cause, "list patients")

		assert.True(t, IsInternal(err))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("Should return nil for nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "noop"))
	})
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "name is required", PublicMessage(NewValidation("name is required")))
	assert.Equal(t, "patient 9 not found", PublicMessage(NewNotFound("patient 9 not found")))
	assert.Equal(t, "patient store unavailable, please resubmit",
		PublicMessage(NewStore("insert failed", errors.New("connection refused"))))
	assert.Equal(t, "internal error", PublicMessage(errors.New("secret detail")))
}
