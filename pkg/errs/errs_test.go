package errs

import (
	"net/http"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestMarks(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		check  func(error) bool
	}{
		{"not found", NotFoundf("subscription %s not found", "abc"), http.StatusNotFound, IsNotFound},
		{"conflict", Conflictf("already canceled"), http.StatusConflict, IsConflict},
		{"unprocessable", Unprocessablef("no rate"), http.StatusUnprocessableEntity, IsUnprocessable},
		{"validation", Validationf("bad page"), http.StatusBadRequest, IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.True(t, IsExpected(tt.err))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestMarkSurvivesWrapping(t *testing.T) {
	err := errors.Wrap(NotFoundf("plan not found"), "failed to create subscription")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
}

func TestBuilder(t *testing.T) {
	err := From(errors.New("invalid currency")).WithHint("currency must be one of BRL, USD").Mark(ErrValidation)
	assert.True(t, IsValidation(err))
	assert.Contains(t, PublicMessage(err), "invalid currency")
	assert.Contains(t, PublicMessage(err), "currency must be one of BRL, USD")
}

func TestPublicMessageHidesFatal(t *testing.T) {
	err := errors.New("pq: connection refused")
	assert.False(t, IsExpected(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	assert.Equal(t, "internal server error", PublicMessage(err))
	assert.Equal(t, "", PublicMessage(nil))
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
}
