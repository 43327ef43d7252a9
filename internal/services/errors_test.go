package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"muteguard/internal/services"
)

type fakeUserError struct{}

func (fakeUserError) Error() string       { return "dial tcp: i/o timeout" }
func (fakeUserError) UserMessage() string { return "The subtitle service timed out." }

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("disk full")
	err := services.Wrap(services.ErrPersistence, "store", "save", "write artifact", base)
	if !errors.Is(err, services.ErrPersistence) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	for _, fragment := range []string{"store", "save", "write artifact", "disk full"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in error string %q", fragment, err.Error())
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

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"user facing wins", fmt.Errorf("search: %w", fakeUserError{}), "The subtitle service timed out."},
		{"no results", services.Wrap(services.ErrNoResults, "ranker", "rank", "", nil), "No suitable subtitle was found for this title."},
		{"network", services.Wrap(services.ErrNetwork, "client", "search", "", nil), "The subtitle service could not be reached. Try again later."},
		{"plain", errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.UserMessage(tt.err); got != tt.want {
				t.Fatalf("UserMessage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExitCodeMapping(t *testing.T) {
	if code := services.ExitCode(services.Wrap(services.ErrValidation, "cli", "analyze", "missing title", nil)); code != 2 {
		t.Fatalf("expected 2 for validation error, got %d", code)
	}
	if code := services.ExitCode(services.Wrap(services.ErrNoResults, "search", "", "", nil)); code != 3 {
		t.Fatalf("expected 3 for no results, got %d", code)
	}
	if code := services.ExitCode(services.Wrap(services.ErrNetwork, "search", "", "", nil)); code != 4 {
		t.Fatalf("expected 4 for network error, got %d", code)
	}
	if code := services.ExitCode(errors.New("io")); code != 1 {
		t.Fatalf("expected 1 for generic error, got %d", code)
	}
	if code := services.ExitCode(nil); code != 0 {
		t.Fatalf("expected 0 for nil, got %d", code)
	}
}
