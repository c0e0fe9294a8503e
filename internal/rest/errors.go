package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Use errors.Is to test an *Error against them.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrBadRequest    = errors.New("bad request")
	ErrNotFound      = errors.New("not found")
	ErrRequestFailed = errors.New("request failed")
)

// ErrDisposed is returned by every call on a disposed client.
var ErrDisposed = errors.New("rest: client disposed")

// ErrBaseURIMissing is returned when a request is made before SetBaseURI.
var ErrBaseURIMissing = errors.New("rest: base URI not set")

// ProblemDetails is an RFC 7807 problem document returned by the server.
type ProblemDetails struct {
	Type     string              `json:"type,omitempty"`
	Title    string              `json:"title,omitempty"`
	Status   int                 `json:"status,omitempty"`
	Detail   string              `json:"detail,omitempty"`
	Instance string              `json:"instance,omitempty"`
	Errors   map[string][]string `json:"errors,omitempty"`
}

// StatusError is the transport-level failure: a response outside 2xx.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
}

// Error is a classified REST failure.
type Error struct {
	// Kind is one of ErrUnauthorized, ErrForbidden, ErrBadRequest,
	// ErrNotFound or ErrRequestFailed.
	Kind       error
	Message    string
	StatusCode int
	// Problem is nil when the response body was not a problem document.
	Problem *ProblemDetails
	Cause   *StatusError
}

func (e *Error) Error() string {
	if e.Problem != nil && e.Problem.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Problem.Detail)
	}
	if e.Problem != nil && e.Problem.Title != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Problem.Title)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func kindOf(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrRequestFailed
	}
}

// newError classifies a non-2xx response. body is the already read response
// body.
func newError(resp *http.Response, body []byte) *Error {
	cause := &StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
	if cause.Status == "" {
		cause.Status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if resp.Request != nil {
		cause.Method = resp.Request.Method
		cause.URL = resp.Request.URL.Redacted()
	}

	kind := kindOf(resp.StatusCode)
	e := &Error{
		Kind:       kind,
		Message:    kind.Error(),
		StatusCode: resp.StatusCode,
		Cause:      cause,
	}
	if kind == ErrRequestFailed {
		e.Message = cause.Error()
	}

	var problem ProblemDetails
	if len(body) > 0 && json.Unmarshal(body, &problem) == nil {
		e.Problem = &problem
	}
	return e
}
