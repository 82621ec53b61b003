package services_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"crewbe/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "upload", "put object", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"upload", "put object", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestMarkerForStatus(t *testing.T) {
	cases := []struct {
		code int
		want error
	}{
		{http.StatusUnauthorized, services.ErrUnauthorized},
		{http.StatusForbidden, services.ErrUnauthorized},
		{http.StatusNotFound, services.ErrNotFound},
		{http.StatusGatewayTimeout, services.ErrTimeout},
		{http.StatusBadRequest, services.ErrValidation},
		{http.StatusRequestEntityTooLarge, services.ErrTooLarge},
		{http.StatusTooManyRequests, services.ErrTransient},
		{http.StatusInternalServerError, services.ErrTransient},
	}
	for _, tc := range cases {
		if got := services.MarkerForStatus(tc.code); got != tc.want {
			t.Fatalf("status %d: got %v want %v", tc.code, got, tc.want)
		}
	}
}
