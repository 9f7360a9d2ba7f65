// Package fault defines the error taxonomy shared by every BaaS component and
// the single JSON envelope every failure is rendered into.
//
// All failures carry Status "Failed" and an Error string. Fix, Debug and
// Exception are optional, and components may attach extra named fields
// (Parameter, Where, Table, ...) that clients read with the same decoder.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	// Driver is an underlying SQL engine failure.
	Driver Kind = iota
	// Configuration is a missing or invalid server setting.
	Configuration
	// AccessDenied is an invalid key or a rate-limited client.
	AccessDenied
	// Validation is a malformed request: arity, missing field, bad value.
	Validation
	// NotFound is a reference to a table that does not exist.
	NotFound
	// NotImplemented is an unrecognized route.
	NotImplemented
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case AccessDenied:
		return "access_denied"
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case NotImplemented:
		return "not_implemented"
	default:
		return "driver"
	}
}

// Error is a classified failure that renders to the BaaS envelope.
type Error struct {
	Kind      Kind
	Message   string
	Fix       string
	Debug     string
	Exception string
	Fields    map[string]any
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// With attaches an extra envelope field and returns e.
func (e *Error) With(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// WithFix sets the suggested fix and returns e.
func (e *Error) WithFix(fix string) *Error {
	e.Fix = fix
	return e
}

// WithDebug sets the debug detail (usually the generated SQL) and returns e.
func (e *Error) WithDebug(debug string) *Error {
	e.Debug = debug
	return e
}

// HTTPStatus maps the kind to the status code sent to clients.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case Validation:
		return http.StatusBadRequest
	case AccessDenied:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case NotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Envelope renders the error as the JSON object sent on the wire.
// Debug is only included when debug is true.
func (e *Error) Envelope(debug bool) map[string]any {
	env := make(map[string]any, 4+len(e.Fields))
	for k, v := range e.Fields {
		env[k] = v
	}
	env["Status"] = "Failed"
	env["Error"] = e.Message
	if e.Fix != "" {
		env["Fix"] = e.Fix
	}
	if e.Exception != "" {
		env["Exception"] = e.Exception
	}
	if debug && e.Debug != "" {
		env["Debug"] = e.Debug
	}
	return env
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validationf creates a Validation error.
func Validationf(format string, args ...any) *Error {
	return New(Validation, format, args...)
}

// Configf creates a Configuration error.
func Configf(format string, args ...any) *Error {
	return New(Configuration, format, args...)
}

// FromDriver converts an engine error into a Driver-kind error, keeping the
// engine message in Exception.
func FromDriver(err error) *Error {
	return &Error{
		Kind:      Driver,
		Message:   "SQL exception happened",
		Exception: err.Error(),
		Cause:     err,
	}
}

// As extracts a *Error from err. Errors that are not classified become
// Driver errors so callers always have an envelope to send.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return FromDriver(err)
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}
