// Package fault classifies domain errors so transports can map them to
// response codes without knowing the domain.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	Unexpected Kind = iota
	NotFound
	Validation
	Rejected
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Validation:
		return "validation_failed"
	case Rejected:
		return "business_rule_rejected"
	default:
		return "unexpected"
	}
}

// Error is a classified domain error. Two errors match under errors.Is when
// they share kind and code, so sentinels can be compared after wrapping.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code != "" && e.Code == t.Code
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// With returns a copy of e carrying a more specific message.
func (e *Error) With(message string) *Error {
	c := *e
	c.Message = message
	return &c
}

// Wrap returns a copy of e that records cause.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: NotFound, Code: "not_found", Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: Validation, Code: "validation_failed", Message: fmt.Sprintf(format, args...)}
}

func Rejectedf(format string, args ...interface{}) *Error {
	return &Error{Kind: Rejected, Code: "rejected", Message: fmt.Sprintf(format, args...)}
}

func Unexpectedf(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: Unexpected, Code: "unexpected", Message: fmt.Sprintf(format, args...), Err: cause}
}

func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unexpected
}

func Status(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case Validation, Rejected:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client facing text for err. Unexpected errors are
// replaced by fallback when redact is set.
func Message(err error, redact bool, fallback string) string {
	var fe *Error
	if !errors.As(err, &fe) {
		if redact {
			return fallback
		}
		return err.Error()
	}
	if fe.Kind == Unexpected && redact {
		return fallback
	}
	return fe.Message
}
