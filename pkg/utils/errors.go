package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures across strategies, the engine and the API
type ErrorKind string

const (
	KindNetwork       ErrorKind = "network"
	KindTimeout       ErrorKind = "timeout"
	KindOversized     ErrorKind = "oversized_response"
	KindParse         ErrorKind = "parse"
	KindRateLimit     ErrorKind = "rate_limit"
	KindNoJobs        ErrorKind = "no_jobs"
	KindUnsupported   ErrorKind = "unsupported"
	KindConfiguration ErrorKind = "configuration"
	KindValidation    ErrorKind = "validation"
	KindConflict      ErrorKind = "conflict"
	KindNotFound      ErrorKind = "not_found"
	KindInternal      ErrorKind = "internal"
)

// ScrapeError represents a classified application error
type ScrapeError struct {
	Kind    ErrorKind `json:"kind"`
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
	Err     error     `json:"-"`
}

func (e *ScrapeError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// Is matches any *ScrapeError of the same kind so errors.Is(err, &ScrapeError{Kind: KindNoJobs}) works
func (e *ScrapeError) Is(target error) bool {
	t, ok := target.(*ScrapeError)
	return ok && t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// WithCause attaches an underlying error
func (e *ScrapeError) WithCause(err error) *ScrapeError {
	e.Err = err
	return e
}

// NewNetworkError covers DNS, connection and non-2xx failures; status is 0 for transport errors
func NewNetworkError(status int, detail string) *ScrapeError {
	return &ScrapeError{Kind: KindNetwork, Code: status, Message: "Network request failed", Detail: detail}
}

func NewTimeoutError(detail string) *ScrapeError {
	return &ScrapeError{Kind: KindTimeout, Code: http.StatusGatewayTimeout, Message: "Request timed out", Detail: detail}
}

func NewOversizedError(limit int64, detail string) *ScrapeError {
	return &ScrapeError{
		Kind:    KindOversized,
		Code:    http.StatusRequestEntityTooLarge,
		Message: fmt.Sprintf("Response exceeds %d bytes", limit),
		Detail:  detail,
	}
}

func NewParseError(detail string) *ScrapeError {
	return &ScrapeError{Kind: KindParse, Code: http.StatusUnprocessableEntity, Message: "Failed to parse response", Detail: detail}
}

func NewRateLimitError(detail string) *ScrapeError {
	return &ScrapeError{Kind: KindRateLimit, Code: http.StatusTooManyRequests, Message: "Rate limited", Detail: detail}
}

func NewNoJobsError(detail string) *ScrapeError {
	return &ScrapeError{Kind: KindNoJobs, Code: http.StatusNotFound, Message: "No jobs found", Detail: detail}
}

func NewUnsupportedError(detail string) *ScrapeError {
	return &ScrapeError{Kind: KindUnsupported, Code: http.StatusNotImplemented, Message: "Unsupported", Detail: detail}
}

func NewConfigurationError(detail string) *ScrapeError {
	return &ScrapeError{Kind: KindConfiguration, Code: http.StatusPreconditionFailed, Message: "Not configured", Detail: detail}
}

func NewValidationError(detail string) *ScrapeError {
	return &ScrapeError{Kind: KindValidation, Code: http.StatusBadRequest, Message: "Validation failed", Detail: detail}
}

func NewConflictError(detail string) *ScrapeError {
	return &ScrapeError{Kind: KindConflict, Code: http.StatusConflict, Message: "Conflict", Detail: detail}
}

func NewNotFoundError(detail string) *ScrapeError {
	return &ScrapeError{Kind: KindNotFound, Code: http.StatusNotFound, Message: "Not found", Detail: detail}
}

func NewInternalServerError(detail string) *ScrapeError {
	return &ScrapeError{Kind: KindInternal, Code: http.StatusInternalServerError, Message: "Internal error", Detail: detail}
}

// KindOf returns the kind of the first ScrapeError in the chain. Context
// deadlines map to timeout; anything else unclassified is a network error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindInternal
	}
	return KindNetwork
}

// IsRetryable reports whether a failure is transient. Oversized responses,
// parse failures, rate limits and empty results are never retried.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout:
		var se *ScrapeError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
			return false
		}
		return true
	default:
		return false
	}
}

// HTTPStatus maps an error to the status code the API should answer with
func HTTPStatus(err error) int {
	var se *ScrapeError
	if errors.As(err, &se) && se.Code != 0 {
		return se.Code
	}
	return http.StatusInternalServerError
}
