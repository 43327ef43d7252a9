package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNetwork       = errors.New("network error")
	ErrNoResults     = errors.New("no suitable subtitle found")
	ErrPersistence   = errors.New("persistence error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// UserFacing is implemented by errors that carry their own user-facing text,
// such as typed network failures.
type UserFacing interface {
	UserMessage() string
}

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// UserMessage selects a short explanation suitable for CLI output.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var facing UserFacing
	if errors.As(err, &facing) {
		if msg := strings.TrimSpace(facing.UserMessage()); msg != "" {
			return msg
		}
	}
	switch {
	case errors.Is(err, ErrNoResults):
		return "No suitable subtitle was found for this title."
	case errors.Is(err, ErrNetwork):
		return "The subtitle service could not be reached. Try again later."
	case errors.Is(err, ErrPersistence):
		return "Results could not be saved to disk."
	case errors.Is(err, ErrConfiguration):
		return "Configuration is incomplete. Run 'muteguard config validate'."
	case errors.Is(err, ErrValidation):
		return "The request was invalid."
	case errors.Is(err, ErrNotFound):
		return "Nothing matched the request."
	default:
		return err.Error()
	}
}

// ExitCode maps an error to the process exit status used by the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return 2
	case errors.Is(err, ErrNoResults), errors.Is(err, ErrNotFound):
		return 3
	case errors.Is(err, ErrNetwork):
		return 4
	default:
		return 1
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
