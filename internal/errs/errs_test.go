package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Input("bad field"), http.StatusBadRequest},
		{Auth(), http.StatusUnauthorized},
		{Forbidden(), http.StatusForbidden},
		{SecurityBlock(), http.StatusForbidden},
		{RateLimited(time.Minute), http.StatusTooManyRequests},
		{NotFound("missing"), http.StatusNotFound},
		{Conflict("duplicate"), http.StatusConflict},
		{Upstream(errors.New("db down")), http.StatusInternalServerError},
		{errors.New("untyped"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err))
	}
}

func TestWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")

	wrapped := fmt.Errorf("creating application: %w", err)
	e, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindUpstream, e.Kind)
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(wrapped))
}

func TestInputCarriesDetails(t *testing.T) {
	err := Input("essay: too long", "gpa: out of range")
	assert.Equal(t, "VALIDATION_FAILED", err.Code)
	assert.Len(t, err.Details, 2)
}
