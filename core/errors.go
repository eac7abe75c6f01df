package core

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ClientErrorUnreachable         = "CLIENT_UNREACHABLE"
	ClientErrorUnauthorized        = "CLIENT_UNAUTHORIZED"
	ClientErrorInvalidCredentials  = "CLIENT_INVALID_CREDENTIALS"
	ClientErrorServiceUnavailable  = "CLIENT_SERVICE_UNAVAILABLE"
	ClientErrorRejected            = "CLIENT_REJECTED"
	ClientErrorMalformed           = "CLIENT_MALFORMED"
	ClientErrorBadInput            = "CLIENT_BAD_INPUT"
	ClientErrorNotConnected        = "CLIENT_NOT_CONNECTED"
	ClientErrorCanceled            = "CLIENT_CANCELED"
	ClientErrorInternal            = "CLIENT_INTERNAL_ERROR"
	DefaultUserFacingErrorMessage  = "Something went wrong, please try again"
	defaultUnreachableErrorMessage = "Unable to reach the server, check your connection"
)

// ErrorKind is the caller-facing failure taxonomy.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindUnreachable        ErrorKind = "unreachable"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindServiceUnavailable ErrorKind = "service_unavailable"
	KindClientRejected     ErrorKind = "client_rejected"
	KindMalformed          ErrorKind = "malformed"
	KindNotConnected       ErrorKind = "not_connected"
	KindCanceled           ErrorKind = "canceled"
	KindOther              ErrorKind = "other"
)

// NewUnreachableError marks a failure where no response was received.
// Only this kind drives candidate failover.
func NewUnreachableError(source error, metadata map[string]any) error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(defaultUnreachableErrorMessage, goerrors.CategoryExternal)
	} else {
		err = &goerrors.Error{
			Category:  goerrors.CategoryExternal,
			Message:   defaultUnreachableErrorMessage,
			Source:    source,
			Timestamp: time.Now(),
			Severity:  goerrors.SeverityError,
		}
	}
	err.WithCode(http.StatusServiceUnavailable).WithTextCode(ClientErrorUnreachable)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// NewCanceledError reports a call abandoned by its caller.
func NewCanceledError(source error) error {
	return goerrors.Wrap(source, goerrors.CategoryOperation, "request canceled").
		WithCode(499).
		WithTextCode(ClientErrorCanceled)
}

// StatusError converts a non-2xx response into the client taxonomy. It
// returns nil for 2xx/3xx statuses.
func StatusError(status int, body []byte, metadata map[string]any) error {
	if status < http.StatusBadRequest {
		return nil
	}
	var err *goerrors.Error
	switch {
	case status == http.StatusUnauthorized:
		err = goerrors.New(ErrorMessage(body, "Your session has expired, please sign in again"), goerrors.CategoryAuth).
			WithTextCode(ClientErrorUnauthorized)
	case status >= http.StatusInternalServerError:
		err = goerrors.New(ErrorMessage(body, "The service is temporarily unavailable"), goerrors.CategoryExternal).
			WithTextCode(ClientErrorServiceUnavailable)
	default:
		err = goerrors.New(ErrorMessage(body, http.StatusText(status)), goerrors.HTTPStatusToCategory(status)).
			WithTextCode(ClientErrorRejected)
	}
	err.WithCode(status)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func NewInvalidCredentialsError(message string, status int) error {
	if strings.TrimSpace(message) == "" {
		message = "Invalid credentials"
	}
	if status == 0 {
		status = http.StatusUnauthorized
	}
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(status).
		WithTextCode(ClientErrorInvalidCredentials)
}

func NewMalformedError(message string, source error) error {
	if source == nil {
		return goerrors.New(message, goerrors.CategoryBadInput).
			WithCode(http.StatusUnprocessableEntity).
			WithTextCode(ClientErrorMalformed)
	}
	return goerrors.Wrap(source, goerrors.CategoryBadInput, message).
		WithCode(http.StatusUnprocessableEntity).
		WithTextCode(ClientErrorMalformed)
}

func NewBadInputError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ClientErrorBadInput)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func NewNotConnectedError(message string) error {
	return goerrors.New(message, goerrors.CategoryOperation).
		WithCode(http.StatusConflict).
		WithTextCode(ClientErrorNotConnected)
}

func NewInternalError(message string, source error) error {
	if source == nil {
		return goerrors.New(message, goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(ClientErrorInternal)
	}
	return goerrors.Wrap(source, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ClientErrorInternal)
}

// Classify maps any error produced by the client, or a raw network error,
// onto the failure taxonomy.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		switch rich.TextCode {
		case ClientErrorUnreachable:
			return KindUnreachable
		case ClientErrorUnauthorized:
			return KindUnauthorized
		case ClientErrorInvalidCredentials:
			return KindInvalidCredentials
		case ClientErrorServiceUnavailable:
			return KindServiceUnavailable
		case ClientErrorRejected:
			return KindClientRejected
		case ClientErrorMalformed:
			return KindMalformed
		case ClientErrorNotConnected:
			return KindNotConnected
		case ClientErrorCanceled:
			return KindCanceled
		}
		if rich.Code == http.StatusUnauthorized {
			return KindUnauthorized
		}
		return KindOther
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if IsResponseless(err) {
		return KindUnreachable
	}
	return KindOther
}

// IsResponseless reports whether err is a transport failure that carries no
// HTTP response: timeouts, refused connections, DNS failures, resets.
func IsResponseless(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && !errors.Is(err, context.Canceled)
}

func IsUnreachable(err error) bool {
	return Classify(err) == KindUnreachable
}

func IsUnauthorized(err error) bool {
	return Classify(err) == KindUnauthorized
}

// ErrorMessage picks a human readable message from a failure body:
// the "error" field, then the "message" field, then fallback.
func ErrorMessage(body []byte, fallback string) string {
	if len(body) > 0 {
		var payload map[string]any
		if json.Unmarshal(body, &payload) == nil {
			for _, key := range []string{"error", "message"} {
				if msg := messageField(payload[key]); msg != "" {
					return msg
				}
			}
		}
	}
	if strings.TrimSpace(fallback) == "" {
		return DefaultUserFacingErrorMessage
	}
	return fallback
}

func messageField(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case map[string]any:
		if nested, ok := typed["message"].(string); ok {
			return strings.TrimSpace(nested)
		}
	}
	return ""
}

// UserMessage returns a message suitable for display for any error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && strings.TrimSpace(rich.Message) != "" {
		return rich.Message
	}
	if IsResponseless(err) {
		return defaultUnreachableErrorMessage
	}
	return DefaultUserFacingErrorMessage
}

// StatusCode returns the HTTP status attached to err, or zero.
func StatusCode(err error) int {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Code
	}
	return 0
}
