package apperr

import (
	"errors"
	"net/http"
	"testing"
)

func TestWrapKeepsKindAndMessage(t *testing.T) {
	err := Wrap(ErrConflict, "task has already been taken")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("errors.Is(wrapped, ErrConflict) = false")
	}
	if err.Error() != "task has already been taken" {
		t.Fatalf("Error() = %q, want the bare message", err.Error())
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrUnauthenticated, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{ErrValidation, http.StatusBadRequest},
		{ErrConflict, http.StatusConflict},
		{ErrInvalidTransition, http.StatusUnprocessableEntity},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrUpstream, http.StatusBadGateway},
		{errors.New("surprise"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := Status(Wrap(tt.err, "x")); got != tt.want {
			t.Fatalf("Status(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestIsInternal(t *testing.T) {
	if !IsInternal(Wrap(ErrUpstream, "db down")) {
		t.Fatalf("IsInternal(Upstream) = false")
	}
	if IsInternal(Wrap(ErrConflict, "taken")) {
		t.Fatalf("IsInternal(Conflict) = true")
	}
}
