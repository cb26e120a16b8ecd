package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Validation("x").Status)
	assert.Equal(t, http.StatusUnauthorized, Unauthenticated("x").Status)
	assert.Equal(t, http.StatusForbidden, Forbidden("x").Status)
	assert.Equal(t, http.StatusNotFound, NotFound("x").Status)
	assert.Equal(t, http.StatusConflict, Conflict("x").Status)

	internal := Internal(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, internal.Status)
	assert.Equal(t, "Internal server error", internal.Message)
}

func TestWrapKeepsMessageAndOriginal(t *testing.T) {
	base := Forbidden("Invalid or expired token")
	cause := errors.New("token expired")

	wrapped := base.Wrap(cause)
	assert.Equal(t, base.Message, wrapped.Message)
	assert.ErrorIs(t, wrapped, cause)
	assert.Nil(t, base.Err)
}

func TestAs(t *testing.T) {
	err := fmt.Errorf("handler: %w", Conflict("Email already registered"))

	got, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "Email already registered", got.Message)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
