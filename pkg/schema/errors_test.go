package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperonError_Format(t *testing.T) {
	e := NewError(ErrCodeConfig, "duplicate step name")
	assert.Equal(t, "[CONFIG_ERROR] duplicate step name", e.Error())

	e = e.WithOperation("signup")
	assert.Equal(t, "[CONFIG_ERROR] signup: duplicate step name", e.Error())

	e = e.WithStep("createUser")
	assert.Equal(t, "[CONFIG_ERROR] signup/createUser: duplicate step name", e.Error())
}

func TestOperonError_StepOnly(t *testing.T) {
	e := NewErrorf(ErrCodeStepFailed, "no handler attached").WithStep("sendEmail")
	assert.Equal(t, "[STEP_FAILED] step sendEmail: no handler attached", e.Error())
}

func TestOperonError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	e := NewError(ErrCodeExecution, "external call failed").WithCause(cause)

	assert.ErrorIs(t, e, cause)

	var oe *OperonError
	assert.ErrorAs(t, error(e), &oe)
	assert.Equal(t, ErrCodeExecution, oe.Code)
}

func TestFieldOf(t *testing.T) {
	m := map[string]any{"email": "sam@example.com"}
	v, ok := FieldOf(m, "email")
	assert.True(t, ok)
	assert.Equal(t, "sam@example.com", v)

	_, ok = FieldOf(m, "missing")
	assert.False(t, ok)

	_, ok = FieldOf(42, "email")
	assert.False(t, ok)
}
