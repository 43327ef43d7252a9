package opensubtitles

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"muteguard/internal/services"
)

// NetworkErrorKind names the transport failure class.
type NetworkErrorKind string

const (
	KindTimeout           NetworkErrorKind = "timeout"
	KindDNS               NetworkErrorKind = "dns"
	KindTLS               NetworkErrorKind = "tls"
	KindConnectionRefused NetworkErrorKind = "connection-refused"
	KindHTTPStatus        NetworkErrorKind = "http-status"
	KindOther             NetworkErrorKind = "other"
)

// StatusError reports an unexpected HTTP status from the API.
type StatusError struct {
	Operation string
	Code      int
	Body      string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("opensubtitles %s failed: %d", e.Operation, e.Code)
	}
	return fmt.Sprintf("opensubtitles %s failed: %d %s", e.Operation, e.Code, e.Body)
}

func newStatusError(operation string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{
		Operation: operation,
		Code:      resp.StatusCode,
		Body:      strings.TrimSpace(string(body)),
	}
}

// NetworkError is the surfaced form of a failed remote call.
type NetworkError struct {
	Kind       NetworkErrorKind
	Operation  string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("opensubtitles %s: %s after %d attempt(s): %v", e.Operation, e.Kind, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is lets callers match any NetworkError with services.ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == services.ErrNetwork
}

// UserMessage implements services.UserFacing.
func (e *NetworkError) UserMessage() string {
	switch e.Kind {
	case KindTimeout:
		return "The subtitle service timed out. Try again later."
	case KindDNS:
		return "The subtitle service host could not be resolved. Check your network connection."
	case KindTLS:
		return "A secure connection to the subtitle service could not be established."
	case KindConnectionRefused:
		return "The subtitle service refused the connection."
	case KindHTTPStatus:
		switch {
		case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
			return "The subtitle service rejected the API key. Check opensubtitles.api_key."
		case e.StatusCode == http.StatusTooManyRequests:
			return "The subtitle service rate limit was reached. Try again later."
		case e.StatusCode >= 500:
			return "The subtitle service is unavailable. Try again later."
		}
		return fmt.Sprintf("The subtitle service returned HTTP %d.", e.StatusCode)
	default:
		return "The subtitle service could not be reached. Try again later."
	}
}

// classify converts the last attempt error into a NetworkError. Errors that
// are neither transport nor status failures (decode errors, cancellation) are
// returned unchanged.
func classify(operation string, attempts int, err error) error {
	if err == nil {
		return nil
	}
	var existing *NetworkError
	if errors.As(err, &existing) {
		return err
	}
	kind, status, ok := kindOf(err)
	if !ok {
		return err
	}
	return &NetworkError{
		Kind:       kind,
		Operation:  operation,
		StatusCode: status,
		Attempts:   attempts,
		Err:        err,
	}
}

func kindOf(err error) (NetworkErrorKind, int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return KindHTTPStatus, statusErr.Code, true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNS, 0, true
	}
	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var recordErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) || errors.As(err, &hostErr) || errors.As(err, &recordErr) {
		return KindTLS, 0, true
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindConnectionRefused, 0, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout, 0, true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, 0, true
	}
	if errors.As(err, &netErr) {
		return KindOther, 0, true
	}
	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "connection refused"):
		return KindConnectionRefused, 0, true
	case strings.Contains(message, "timeout"):
		return KindTimeout, 0, true
	case strings.Contains(message, "tls:") || strings.Contains(message, "x509:"):
		return KindTLS, 0, true
	case strings.Contains(message, "connection reset"):
		return KindOther, 0, true
	}
	return "", 0, false
}
