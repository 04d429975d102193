package tracking

import (
	"errors"
	"strings"
)

// Error kinds. Every error the gateway produces for a client action wraps exactly one of them.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrAuthorization  = errors.New("not authorized")
	ErrValidation     = errors.New("invalid payload")
	ErrTransientInfra = errors.New("temporarily unavailable")
)

// Error carries the kind, the operation that failed, a client-safe message and the cause.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

func Authentication(op, msg string, cause error) error {
	return newError(ErrAuthentication, op, msg, cause)
}

func Authorization(op, msg string) error {
	return newError(ErrAuthorization, op, msg, nil)
}

func Validation(op, msg string, cause error) error {
	return newError(ErrValidation, op, msg, cause)
}

func TransientInfra(op, msg string, cause error) error {
	return newError(ErrTransientInfra, op, msg, cause)
}

// PublicMessage is the text sent to a client in connection:error. Causes stay server-side,
// except for validation causes which describe the client's own payload.
func PublicMessage(err error) string {
	var te *Error
	if !errors.As(err, &te) {
		return "internal error"
	}

	msg := te.Kind.Error()
	if te.Msg != "" {
		msg += ": " + te.Msg
	}
	if errors.Is(te.Kind, ErrValidation) && te.Err != nil {
		msg += ": " + te.Err.Error()
	}
	return msg
}
