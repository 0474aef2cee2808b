package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("bad", nil), http.StatusBadRequest},
		{BusinessRule("nope"), http.StatusBadRequest},
		{Precondition("inactive"), http.StatusBadRequest},
		{Unauthenticated("who"), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{NotFound("gone"), http.StatusNotFound},
		{Conflict("twice"), http.StatusConflict},
		{Internal(errors.New("db down")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("check-in: %w", Conflict("already checked in today"))

	assert.True(t, IsKind(err, KindConflict))
	assert.Equal(t, "already checked in today", PublicMessage(err))
}

func TestInternalMessageIsHidden(t *testing.T) {
	err := Internal(errors.New("pq: connection refused"))

	assert.Equal(t, "Internal server error", PublicMessage(err))
	assert.ErrorContains(t, err, "connection refused")
}
