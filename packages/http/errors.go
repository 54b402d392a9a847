package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failed response.
type ErrorKind string

const (
	KindNotAuthenticated ErrorKind = "NotAuthenticated"
	KindNotAuthorized    ErrorKind = "NotAuthorized"
	KindUnknown          ErrorKind = "Unknown"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrUnknownAPI       = errors.New("unknown API error")

	// ErrUnsupportedRequestType is wrapped by UnsupportedRequestTypeError.
	ErrUnsupportedRequestType = errors.New("unsupported request type")
)

// APIError is returned for any non-2xx response. It carries the original
// status and the raw response text.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Status     string
	Text       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.sentinel().Error(), e.StatusCode)
}

// Is lets errors.Is match the ErrNotAuthenticated, ErrNotAuthorized and
// ErrUnknownAPI sentinels.
func (e *APIError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *APIError) sentinel() error {
	switch e.Kind {
	case KindNotAuthenticated:
		return ErrNotAuthenticated
	case KindNotAuthorized:
		return ErrNotAuthorized
	default:
		return ErrUnknownAPI
	}
}

// WithText reports whether the raw response text contains s.
func (e *APIError) WithText(s string) bool {
	return strings.Contains(e.Text, s)
}

// JSON parses the raw response text. It returns an empty map when the text
// is not a JSON object.
func (e *APIError) JSON() map[string]any {
	var result map[string]any
	if err := json.Unmarshal([]byte(e.Text), &result); err != nil || result == nil {
		return map[string]any{}
	}
	return result
}

// classify builds the APIError for a non-2xx outcome.
func classify(out *Outcome) *APIError {
	kind := KindUnknown
	switch out.StatusCode {
	case 401:
		kind = KindNotAuthenticated
	case 403:
		kind = KindNotAuthorized
	}
	return &APIError{
		Kind:       kind,
		StatusCode: out.StatusCode,
		Status:     out.Status,
		Text:       string(out.Body),
	}
}

// UnsupportedRequestTypeError is returned when a response cannot be decoded
// because the requested decode mode is unknown.
type UnsupportedRequestTypeError struct {
	Type RequestType
}

func (e *UnsupportedRequestTypeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnsupportedRequestType.Error(), string(e.Type))
}

func (e *UnsupportedRequestTypeError) Unwrap() error {
	return ErrUnsupportedRequestType
}
