package message

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure a request can end in.
type ErrorKind uint8

const (
	_ ErrorKind = iota
	AccessDenied
	MalformedRequest
	UnknownOperation
	TypeMismatch
	OperationFailure
	// RegistryError aborts startup; it never reaches a client.
	RegistryError
)

var kindNames = map[ErrorKind]string{
	AccessDenied:     "AccessDenied",
	MalformedRequest: "MalformedRequest",
	UnknownOperation: "UnknownOperation",
	TypeMismatch:     "TypeMismatch",
	OperationFailure: "OperationFailure",
	RegistryError:    "RegistryError",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// ParseErrorKind is the inverse of String. Unrecognized names map to
// OperationFailure.
func ParseErrorKind(s string) ErrorKind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return OperationFailure
}

// Fault codes.
const (
	CodeClient = "client-error"
	CodeServer = "server-error"
)

// Code returns the fault code category for the kind. Client-caused errors are
// not worth retrying unchanged.
func (k ErrorKind) Code() string {
	switch k {
	case MalformedRequest, UnknownOperation, TypeMismatch:
		return CodeClient
	default:
		return CodeServer
	}
}

// Sentinels for errors.Is matching on kind alone.
var (
	ErrAccessDenied     = &Error{Kind: AccessDenied}
	ErrMalformedRequest = &Error{Kind: MalformedRequest}
	ErrUnknownOperation = &Error{Kind: UnknownOperation}
	ErrTypeMismatch     = &Error{Kind: TypeMismatch}
	ErrOperationFailure = &Error{Kind: OperationFailure}
	ErrRegistry         = &Error{Kind: RegistryError}
)

// Error is the typed error every layer returns. Message is what ends up in the
// fault string.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Errorf creates an Error of the given kind.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around err. The message defaults to
// err's text.
func Wrap(kind ErrorKind, err error, msg string) *Error {
	if msg == "" && err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels (no message, no cause) by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// Fault converts the error to its wire form.
func (e *Error) Fault() *Fault {
	return newFault(e.Kind, e.Message)
}

// KindOf extracts the taxonomy kind from err.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// UnknownErrorMessage replaces empty fault strings.
const UnknownErrorMessage = "Unknown error"

// Fault is the standardized error payload returned in place of a result.
type Fault struct {
	Code    string
	Message string
	Kind    ErrorKind
}

func newFault(kind ErrorKind, msg string) *Fault {
	if kind == 0 {
		kind = OperationFailure
	}
	if msg == "" {
		msg = UnknownErrorMessage
	}
	return &Fault{Code: kind.Code(), Message: msg, Kind: kind}
}

// FaultFrom is the catch-all translation from any error to a Fault. Errors
// outside the taxonomy are reported as OperationFailure.
func FaultFrom(err error) *Fault {
	if err == nil {
		return newFault(OperationFailure, "")
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Fault()
	}
	return newFault(OperationFailure, err.Error())
}

// Err turns a received fault back into an error.
func (f *Fault) Err() *Error {
	return &Error{Kind: f.Kind, Message: f.Message}
}
