package service

import (
	"errors"
	"fmt"
)

// Kind identifies one of the four failure modes a fetch can end in
type Kind string

const (
	KindInvalidURL      Kind = "invalid_url"
	KindInvalidData     Kind = "invalid_data"
	KindNetworkFailure  Kind = "network_failure"
	KindDecodingFailure Kind = "decoding_failure"
)

// ServiceError is the closed error taxonomy returned by the countries client.
//
// Decoding failures never reach callers on their own: the client always
// reports them nested inside a network failure, so every non-validation
// error a caller sees has the same outer shape.
type ServiceError struct {
	Kind Kind

	// URL is the unmodified input that failed validation (KindInvalidURL only)
	URL string

	// Cause is the wrapped error for KindNetworkFailure, or the underlying
	// parse error for KindDecodingFailure
	Cause error
}

var (
	// ErrInvalidData is returned when the transport succeeds with an empty body
	ErrInvalidData = &ServiceError{Kind: KindInvalidData}

	// ErrDecodingFailure matches any decoding failure regardless of its detail
	ErrDecodingFailure = &ServiceError{Kind: KindDecodingFailure}

	// ErrNetworkFailure matches any network failure regardless of its cause
	ErrNetworkFailure = &ServiceError{Kind: KindNetworkFailure}
)

// InvalidURL returns the validation error for raw
func InvalidURL(raw string) *ServiceError {
	return &ServiceError{Kind: KindInvalidURL, URL: raw}
}

// NetworkFailure wraps cause as a network-level failure
func NetworkFailure(cause error) *ServiceError {
	return &ServiceError{Kind: KindNetworkFailure, Cause: cause}
}

// decodingFailure records the parse error behind a decoding failure
func decodingFailure(cause error) *ServiceError {
	return &ServiceError{Kind: KindDecodingFailure, Cause: cause}
}

func (e *ServiceError) Error() string {
	switch e.Kind {
	case KindInvalidURL:
		return fmt.Sprintf("invalid url %q", e.URL)
	case KindInvalidData:
		return "invalid data: empty response body"
	case KindNetworkFailure:
		if e.Cause == nil {
			return "network failure"
		}
		return fmt.Sprintf("network failure: %v", e.Cause)
	case KindDecodingFailure:
		if e.Cause == nil {
			return "decoding failure"
		}
		return fmt.Sprintf("decoding failure: %v", e.Cause)
	default:
		return fmt.Sprintf("unknown service error %q", string(e.Kind))
	}
}

// Unwrap exposes the wrapped cause to errors.Is and errors.As
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// Is reports structural equality with target.
//
// Invalid URLs match on the exact input. A network failure target with a nil
// cause matches every network failure; otherwise the causes must match. All
// decoding failures are equal to each other.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok || t == nil {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}

	switch e.Kind {
	case KindInvalidURL:
		return e.URL == t.URL
	case KindNetworkFailure:
		if t.Cause == nil {
			return true
		}
		if e.Cause == nil {
			return false
		}
		return errors.Is(e.Cause, t.Cause)
	default:
		return true
	}
}

// KindOf returns the kind of the outermost ServiceError in err's chain, or
// the empty Kind if err is not a ServiceError
func KindOf(err error) Kind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// ErrorKindName names the kind of err for storage and API responses.
// Decoding failures keep their nesting: "network_failure/decoding_failure".
func ErrorKindName(err error) string {
	kind := KindOf(err)
	if kind == KindNetworkFailure && errors.Is(err, ErrDecodingFailure) {
		return string(KindNetworkFailure) + "/" + string(KindDecodingFailure)
	}
	return string(kind)
}

// DomainNet is the domain of every error raised by the HTTP transport
const DomainNet = "net"

// Transport error codes
const (
	CodeUnknown = iota + 1
	CodeCancelled
	CodeTimedOut
	CodeCannotFindHost
	CodeCannotConnectToHost
)

// TransportError is the structured identity of a transport-level failure.
// Two transport errors are equal when domain, code, message and failing URL
// all match.
type TransportError struct {
	Domain  string
	Code    int
	Message string
	URL     string
	Err     error
}

func (e *TransportError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s error %d: %s", e.Domain, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error %d: %s (%s)", e.Domain, e.Code, e.Message, e.URL)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is compares identity fields and ignores the underlying Err
func (e *TransportError) Is(target error) bool {
	t, ok := target.(*TransportError)
	if !ok || t == nil {
		return false
	}
	return e.Domain == t.Domain &&
		e.Code == t.Code &&
		e.Message == t.Message &&
		e.URL == t.URL
}
