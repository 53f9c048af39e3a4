package apperr

import (
	"errors"
	"fmt"
)

// Kind groups errors by how a caller should react to them.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindConstraint   Kind = "constraint"
	KindState        Kind = "state"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindInternal     Kind = "internal"
)

// Code is the stable machine-readable reason for a rejection.
type Code string

const (
	CodeInvalidRequest Code = "InvalidRequest"

	CodeBookingDisabled    Code = "BookingDisabled"
	CodeDoctorNotAvailable Code = "DoctorNotAvailable"
	CodeServiceNotOffered  Code = "ServiceNotOffered"
	CodeInvalidSlot        Code = "InvalidSlot"
	CodeClinicClosed       Code = "ClinicClosed"
	CodeClinicInactive     Code = "ClinicInactive"
	CodeSlotTaken          Code = "SlotTaken"

	CodeInvalidTransition Code = "InvalidTransition"
	CodeAlreadyCompleted  Code = "AlreadyCompleted"
	CodeWrongDepartment   Code = "WrongDepartment"

	CodeNotFound      Code = "NotFound"
	CodeStaleState    Code = "StaleState"
	CodeUnauthorized  Code = "Unauthorized"
	CodeForbidden     Code = "Forbidden"
	CodeInternalError Code = "InternalError"
)

// Error is the application error carried from the domain packages to the
// transport layer.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Details map[string]any
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

// Is matches another *Error by code so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// With returns a copy of e carrying an extra detail.
func (e *Error) With(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(message string) *Error {
	return New(KindValidation, CodeInvalidRequest, message)
}

func Constraint(code Code, message string) *Error {
	return New(KindConstraint, code, message)
}

func NotFound(resource string) *Error {
	return New(KindNotFound, CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func Conflict(message string) *Error {
	return New(KindConflict, CodeStaleState, message)
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, CodeUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, CodeForbidden, message)
}

// InvalidTransition names both the current and the requested state.
func InvalidTransition(from, to string) *Error {
	return New(KindState, CodeInvalidTransition, fmt.Sprintf("cannot move from %s to %s", from, to)).
		With("current", from).
		With("requested", to)
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternalError, Message: "internal error", Err: err}
}

// KindOf reports the kind of err, defaulting to internal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf reports the code of err, or the internal code for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternalError
}

// HasCode reports whether err carries code anywhere in its chain.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
