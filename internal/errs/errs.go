// Package errs implements the closed error taxonomy of spec.md §7 and the
// user-visible API error envelope that every failure response carries.
package errs

import (
	"errors"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the closed taxonomy an implementation must distinguish.
type Kind int

const (
	KindInvalidInput Kind = iota
	KindProviderTimeout
	KindProviderUnavailable
	KindProviderProtocol
	KindCancelled
	KindInternalInvariant
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindProviderTimeout:
		return "ProviderTimeout"
	case KindProviderUnavailable:
		return "ProviderUnavailable"
	case KindProviderProtocol:
		return "ProviderProtocol"
	case KindCancelled:
		return "Cancelled"
	default:
		return "InternalInvariant"
	}
}

// Retryable reports whether a task in this Kind should be retried.
func (k Kind) Retryable() bool {
	switch k {
	case KindProviderTimeout, KindProviderUnavailable:
		return true
	case KindProviderProtocol:
		return true // retryable once; the scheduler's retry loop enforces the single retry
	default:
		return false
	}
}

// HTTPStatus maps a Kind to its surfaced status code, per spec.md §7.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput:
		return 400
	case KindProviderTimeout:
		return 408
	case KindProviderUnavailable:
		return 503
	case KindCancelled:
		return 499
	case KindProviderProtocol:
		return 502
	default:
		return 500
	}
}

// TaskError is a classified error carried on a SegmentTask/provider call.
type TaskError struct {
	Kind Kind
	Err  error
}

func (e *TaskError) Error() string { return e.Kind.String() + ": " + e.Err.Error() }
func (e *TaskError) Unwrap() error { return e.Err }

// New wraps err with an explicit Kind.
func New(kind Kind, err error) *TaskError {
	return &TaskError{Kind: kind, Err: err}
}

// Classify maps a raw transport/provider error to a Kind by symptom,
// matching alantangok-Scriberr's OpenAI adapter's string-matched transient
// error classification, generalized into a standalone function per
// spec.md §9 ("dynamic error classification... model as a closed taxonomy").
func Classify(err error) Kind {
	if err == nil {
		return KindInternalInvariant
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindProviderTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "context deadline exceeded"),
		strings.Contains(msg, "timeout"):
		return KindProviderTimeout

	case strings.Contains(msg, "context canceled"):
		return KindCancelled

	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "network is unreachable"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "connection closed"),
		strings.Contains(msg, "eof"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "service unavailable"):
		return KindProviderUnavailable

	case strings.Contains(msg, "unmarshal"),
		strings.Contains(msg, "malformed"),
		strings.Contains(msg, "unexpected response"),
		strings.Contains(msg, "invalid json"):
		return KindProviderProtocol

	default:
		return KindProviderUnavailable
	}
}

// APIError is the JSON envelope every failure response carries, per
// spec.md §7.
type APIError struct {
	Success          bool     `json:"success"`
	Error            string   `json:"error"`
	ErrorCode        string   `json:"errorCode"`
	CorrelationID    string   `json:"correlationId"`
	Timestamp        string   `json:"timestamp"`
	Severity         string   `json:"severity"`
	IsRecoverable    bool     `json:"isRecoverable"`
	SuggestedActions []string `json:"suggestedActions"`
}

// NewAPIError builds a failure envelope from a classified Kind.
func NewAPIError(kind Kind, humanMsg string) APIError {
	return APIError{
		Success:          false,
		Error:            humanMsg,
		ErrorCode:        kind.String(),
		CorrelationID:    uuid.NewString(),
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		Severity:         severityFor(kind),
		IsRecoverable:    kind.Retryable(),
		SuggestedActions: suggestionsFor(kind),
	}
}

func severityFor(kind Kind) string {
	switch kind {
	case KindInvalidInput:
		return "warning"
	case KindInternalInvariant:
		return "critical"
	case KindCancelled:
		return "info"
	default:
		return "error"
	}
}

func suggestionsFor(kind Kind) []string {
	switch kind {
	case KindInvalidInput:
		return []string{"check the request body", "verify file size and type"}
	case KindProviderTimeout:
		return []string{"retry the request", "consider a shorter document or smaller chunks"}
	case KindProviderUnavailable:
		return []string{"retry later", "check provider health endpoint"}
	case KindProviderProtocol:
		return []string{"retry the request", "report if the problem persists"}
	case KindCancelled:
		return []string{}
	default:
		return []string{"contact support with the correlation id"}
	}
}
