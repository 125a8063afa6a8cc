package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure by how the caller is expected to react to it.
type Kind string

const (
	// KindUnauthorized means the credential is missing or expired; the session must re-login.
	KindUnauthorized Kind = "unauthorized"
	// KindForbidden means the actor's role lacks the capability; callers redirect instead of reporting.
	KindForbidden Kind = "forbidden"
	// KindIllegalTransition means the requested status is not reachable from the current status.
	KindIllegalTransition Kind = "illegal_transition"
	// KindValidationFailed means input was incomplete or invalid and submission was blocked.
	KindValidationFailed Kind = "validation_failed"
	// KindRemoteFailure means the backend call failed or returned an unusable payload.
	KindRemoteFailure Kind = "remote_failure"
)

// GenericRemoteMessage is shown when the backend did not supply a message of its own.
const GenericRemoteMessage = "request failed, please try again"

// Sentinels for errors.Is checks. Any *Error of the same Kind matches.
var (
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrIllegalTransition = &Error{Kind: KindIllegalTransition}
	ErrValidationFailed  = &Error{Kind: KindValidationFailed}
	ErrRemoteFailure     = &Error{Kind: KindRemoteFailure}
)

// Error is the typed failure returned by every dcms package.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	message := strings.TrimSpace(e.Message)
	if message == "" {
		message = string(e.Kind)
	}
	var builder strings.Builder
	if op := strings.TrimSpace(e.Op); op != "" {
		builder.WriteString(op)
		builder.WriteString(": ")
	}
	builder.WriteString(message)
	if e.Err != nil {
		builder.WriteString(": ")
		builder.WriteString(e.Err.Error())
	}
	return builder.String()
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind, so sentinels work through wrapping.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Newf builds an error of the given kind with a formatted message.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and operation to an underlying error.
func Wrap(kind Kind, op string, err error, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Kinded is implemented by typed errors from other packages that map onto the taxonomy.
type Kinded interface {
	FaultKind() Kind
}

// KindOf classifies err. Unknown errors are treated as remote failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	var kinded Kinded
	if errors.As(err, &kinded) {
		return kinded.FaultKind()
	}
	return KindRemoteFailure
}

// UserMessage returns the text that should be shown to a person for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		if message := strings.TrimSpace(typed.Message); message != "" {
			return message
		}
		if typed.Kind == KindRemoteFailure {
			return GenericRemoteMessage
		}
		return string(typed.Kind)
	}
	return err.Error()
}
