package api

import (
	"errors"
	"fmt"

	"cityweather/internal/validator"
)

// User-facing messages. Nothing else reaches the caller of GetCurrentWeather.
const (
	MsgNetworkError  = "Network error. Please check your connection and try again."
	MsgCityNotFound  = "City not found. Please check the spelling and try again."
	MsgInvalidAPIKey = "Invalid API key. Please check your configuration."
	MsgRateLimited   = "Too many requests. Please try again later."
	MsgGeneric       = "Something went wrong. Please try again."
)

// Kind labels a failure for logs and metrics
type Kind string

const (
	KindValidation Kind = "validation"
	KindTransport  Kind = "transport"
	KindHTTPStatus Kind = "http_status"
	KindMalformed  Kind = "malformed"
	KindUnknown    Kind = "unknown"
)

// ValidationError is re-exported so callers only need this package
type ValidationError = validator.ValidationError

// TransportError means no response was obtained at all
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError is a non-2xx response from the provider
type HTTPStatusError struct {
	Status  int
	Message string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("API error: status %d: %s", e.Status, e.Message)
}

// MalformedResponseError means the body did not decode or lacked a required field
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.Reason, e.Err)
	}
	return "malformed response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// StructuredError carries a message that is meant for the user
type StructuredError struct {
	Message string
}

func (e *StructuredError) Error() string { return e.Message }

func (e *StructuredError) UserMessage() string { return e.Message }

// userMessager is any error that knows how it should be shown
type userMessager interface {
	UserMessage() string
}

// LookupError is what GetCurrentWeather returns: the classified message and
// a kind, without the underlying cause.
type LookupError struct {
	Kind    Kind
	Message string
}

func (e *LookupError) Error() string { return e.Message }

// Classifier maps any error to exactly one user-facing message
type Classifier struct {
	// Offline reports whether the host is known to have no connectivity.
	// Nil means never offline.
	Offline func() bool
}

var defaultClassifier Classifier

// Classify uses a classifier that never reports offline
func Classify(err error) string {
	return defaultClassifier.Classify(err)
}

// Classify returns one of the fixed messages, or a user message carried by err
func (c Classifier) Classify(err error) string {
	if err == nil {
		return MsgGeneric
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Status {
		case 404:
			return MsgCityNotFound
		case 401:
			return MsgInvalidAPIKey
		case 429:
			return MsgRateLimited
		default:
			return MsgGeneric
		}
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) || (c.Offline != nil && c.Offline()) {
		return MsgNetworkError
	}

	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return MsgGeneric
	}

	var structured *StructuredError
	if errors.As(err, &structured) && structured.Message != "" {
		return structured.Message
	}

	var lookup *LookupError
	if errors.As(err, &lookup) && lookup.Message != "" {
		return lookup.Message
	}

	var um userMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}

	return MsgGeneric
}

// KindOf reports the failure kind of err
func KindOf(err error) Kind {
	var (
		verr      *ValidationError
		transport *TransportError
		status    *HTTPStatusError
		malformed *MalformedResponseError
		lookup    *LookupError
	)
	switch {
	case errors.As(err, &lookup):
		return lookup.Kind
	case errors.As(err, &verr):
		return KindValidation
	case errors.As(err, &transport):
		return KindTransport
	case errors.As(err, &status):
		return KindHTTPStatus
	case errors.As(err, &malformed):
		return KindMalformed
	default:
		return KindUnknown
	}
}
